package grouping

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

var knownPaths = []string{
	"src/components/Button.tsx",
	"src/lib/utils.ts",
	"src/server/utils.ts",
	"cmd/app/main.go",
}

func TestPathResolverIsIdempotentOnKnownPaths(t *testing.T) {
	r := NewPathResolver(knownPaths)
	for _, p := range knownPaths {
		got, ok := r.Resolve(p)
		assert.True(t, ok, p)
		assert.Equal(t, p, got)
	}
}

func TestPathResolverVariants(t *testing.T) {
	r := NewPathResolver(knownPaths)
	tests := []struct {
		raw  string
		want string
	}{
		{"./src/components/Button.tsx", "src/components/Button.tsx"},
		{"/src/components/Button.tsx", "src/components/Button.tsx"},
		{`src\components\Button.tsx`, "src/components/Button.tsx"},
		{`"src/lib/utils.ts"`, "src/lib/utils.ts"},
		{" src/lib/utils ", "src/lib/utils.ts"},
		{"src/components/Button", "src/components/Button.tsx"},
		{"components/Button.tsx", "src/components/Button.tsx"},
		{"lib/utils.ts", "src/lib/utils.ts"},
		{"Button.tsx", "src/components/Button.tsx"},
		{"Button", "src/components/Button.tsx"},
		{"main.go", "cmd/app/main.go"},
	}
	for _, tt := range tests {
		got, ok := r.Resolve(tt.raw)
		assert.True(t, ok, tt.raw)
		assert.Equal(t, tt.want, got, tt.raw)
	}
}

func TestPathResolverNeverGuessesAmbiguousBasenames(t *testing.T) {
	r := NewPathResolver(knownPaths)
	for _, raw := range []string{"utils.ts", "utils", "./utils.ts", "missing.ts", "", "   "} {
		got, ok := r.Resolve(raw)
		assert.False(t, ok, raw)
		assert.Empty(t, got, raw)
	}
}

func TestClassifyRole(t *testing.T) {
	tests := map[string]Role{
		"src/main.ts":               RoleEntrypoint,
		"cmd/server/main.go":        RoleEntrypoint,
		"src/hooks/useAuth.ts":      RoleHook,
		"src/useChat.ts":            RoleHook,
		"settings.json":             RoleConfig,
		"src/config/theme.ts":       RoleUtility,
		"src/appConfig.ts":          RoleConfig,
		"src/store/cartSlice.ts":    RoleState,
		"src/api/users.ts":          RoleAPI,
		"src/lib/paymentService.ts": RoleService,
		"src/models/user.ts":        RoleDataModel,
		"src/components/Button.tsx": RoleUIComponent,
		"src/lib/format.ts":         RoleUtility,
		"src/user.d.ts":             RoleDataModel,
	}
	for p, want := range tests {
		assert.Equal(t, want, ClassifyRole(p), p)
	}
}

func TestParseRole(t *testing.T) {
	r, ok := ParseRole(" UI_Component ")
	assert.True(t, ok)
	assert.Equal(t, RoleUIComponent, r)

	_, ok = ParseRole("controller")
	assert.False(t, ok)
	assert.Len(t, Roles(), 9)
}
