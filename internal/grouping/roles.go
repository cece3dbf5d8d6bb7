// Package grouping discovers functional modules for a codebase, either
// through the two-agent LLM pipeline or the deterministic heuristic grouper.
package grouping

import (
	"path"
	"strings"
	"unicode"

	"github.com/codeatlas-dev/codeatlas/internal/analysis"
)

// Role is the architectural role assigned to a file.
type Role string

const (
	RoleEntrypoint  Role = "entrypoint"
	RoleUIComponent Role = "ui-component"
	RoleHook        Role = "hook"
	RoleState       Role = "state"
	RoleService     Role = "service"
	RoleAPI         Role = "api"
	RoleDataModel   Role = "data-model"
	RoleUtility     Role = "utility"
	RoleConfig      Role = "config"
)

func Roles() []Role {
	return []Role{
		RoleEntrypoint,
		RoleUIComponent,
		RoleHook,
		RoleState,
		RoleService,
		RoleAPI,
		RoleDataModel,
		RoleUtility,
		RoleConfig,
	}
}

func (r Role) Valid() bool {
	switch r {
	case RoleEntrypoint, RoleUIComponent, RoleHook, RoleState, RoleService,
		RoleAPI, RoleDataModel, RoleUtility, RoleConfig:
		return true
	default:
		return false
	}
}

// ParseRole normalizes a free-form role string. The second result is false
// when the value is not one of Roles().
func ParseRole(raw string) (Role, bool) {
	r := Role(strings.ToLower(strings.TrimSpace(raw)))
	r = Role(strings.ReplaceAll(string(r), "_", "-"))
	return r, r.Valid()
}

var (
	configWords  = []string{"config", "settings", "constants", "env", "options", "preferences"}
	stateWords   = []string{"store", "slice", "reducer", "state", "context", "atom", "signal"}
	apiWords     = []string{"api", "route", "router", "handler", "controller", "endpoint", "server"}
	serviceWords = []string{"service", "client", "provider", "repository", "gateway", "worker"}
	modelWords   = []string{"model", "schema", "types", "entity", "dto", "interface", "enum"}
	uiDirs       = []string{"components", "component", "views", "pages", "ui", "screens", "layouts", "widgets"}
	apiDirs      = []string{"api", "routes", "handlers", "controllers", "endpoints"}
	hookDirs     = []string{"hooks", "composables"}
)

// ClassifyRole assigns a role from path naming conventions alone.
func ClassifyRole(filePath string) Role {
	p := strings.ReplaceAll(filePath, "\\", "/")
	base := path.Base(p)
	ext := strings.ToLower(path.Ext(base))
	stem := strings.TrimSuffix(base, path.Ext(base))
	lower := strings.ToLower(stem)
	dirs := strings.Split(strings.ToLower(path.Dir(p)), "/")

	switch {
	case analysis.IsEntryPoint(p):
		return RoleEntrypoint
	case isHookName(stem) || hasAny(dirs, hookDirs):
		return RoleHook
	case ext == ".json" || ext == ".yaml" || ext == ".yml" || ext == ".toml" || containsAny(lower, configWords):
		return RoleConfig
	case containsAny(lower, stateWords):
		return RoleState
	case hasAny(dirs, apiDirs) || containsAny(lower, apiWords):
		return RoleAPI
	case containsAny(lower, serviceWords):
		return RoleService
	case strings.HasSuffix(lower, ".d") || containsAny(lower, modelWords) || hasAny(dirs, []string{"models", "types", "schemas", "entities"}):
		return RoleDataModel
	case ext == ".tsx" || ext == ".jsx" || ext == ".vue" || ext == ".svelte" || hasAny(dirs, uiDirs):
		return RoleUIComponent
	default:
		return RoleUtility
	}
}

// isHookName matches the React convention useSomething.
func isHookName(stem string) bool {
	if len(stem) <= 3 || !strings.HasPrefix(stem, "use") {
		return false
	}
	return unicode.IsUpper(rune(stem[3]))
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

func hasAny(values, wanted []string) bool {
	for _, v := range values {
		for _, w := range wanted {
			if v == w {
				return true
			}
		}
	}
	return false
}
