package graph

import (
	"fmt"
	"time"
)

// NodeKind is the closed set of node kinds.
type NodeKind string

const (
	KindSystem    NodeKind = "system"
	KindPackage   NodeKind = "package"
	KindModule    NodeKind = "module"
	KindClass     NodeKind = "class"
	KindFunction  NodeKind = "function"
	KindInterface NodeKind = "interface"
	KindVariable  NodeKind = "variable"
	KindMethod    NodeKind = "method"
	KindField     NodeKind = "field"
)

func (k NodeKind) Valid() bool {
	switch k {
	case KindSystem, KindPackage, KindModule, KindClass, KindFunction,
		KindInterface, KindVariable, KindMethod, KindField:
		return true
	default:
		return false
	}
}

// Depth is the hierarchy level of a node.
type Depth int

const (
	DepthSystem Depth = iota
	DepthModule
	DepthFile
	DepthSymbol
)

func (d Depth) String() string {
	switch d {
	case DepthSystem:
		return "system"
	case DepthModule:
		return "module"
	case DepthFile:
		return "file"
	case DepthSymbol:
		return "symbol"
	default:
		return "unknown"
	}
}

// RelationType is the closed set of relation types.
type RelationType string

const (
	RelContains   RelationType = "contains"
	RelDependsOn  RelationType = "depends_on"
	RelInherits   RelationType = "inherits"
	RelImplements RelationType = "implements"
	RelCalls      RelationType = "calls"
)

func (t RelationType) Valid() bool {
	switch t {
	case RelContains, RelDependsOn, RelInherits, RelImplements, RelCalls:
		return true
	default:
		return false
	}
}

// SyncStatus is the drift classification of a tracked file.
type SyncStatus string

const (
	StatusLocked   SyncStatus = "locked"
	StatusModified SyncStatus = "modified"
	StatusMissing  SyncStatus = "missing"
)

func (s SyncStatus) Valid() bool {
	switch s {
	case StatusLocked, StatusModified, StatusMissing:
		return true
	default:
		return false
	}
}

// SourceRef points a node at its source. An empty ContentHash means the
// content was not hashed (remote scans, symbols).
type SourceRef struct {
	FilePath    string `json:"file_path"`
	LineStart   int    `json:"line_start,omitempty"`
	LineEnd     int    `json:"line_end,omitempty"`
	ContentHash string `json:"content_hash,omitempty"`
}

// LensOverride holds per-lens display overrides for a node.
type LensOverride struct {
	Label  string `json:"label,omitempty"`
	Hidden bool   `json:"hidden,omitempty"`
	Color  string `json:"color,omitempty"`
}

type Node struct {
	ID            string                  `json:"id"`
	Name          string                  `json:"name"`
	Description   string                  `json:"description,omitempty"`
	Kind          NodeKind                `json:"kind"`
	Depth         Depth                   `json:"depth"`
	ParentID      string                  `json:"parent_id,omitempty"`
	Children      []string                `json:"children,omitempty"`
	SourceRef     *SourceRef              `json:"source_ref,omitempty"`
	Tags          []string                `json:"tags,omitempty"`
	LensOverrides map[string]LensOverride `json:"lens_overrides,omitempty"`
	DomainRefs    []string                `json:"domain_refs,omitempty"`
}

type Relation struct {
	ID       string       `json:"id"`
	SourceID string       `json:"source_id"`
	TargetID string       `json:"target_id"`
	Type     RelationType `json:"type"`
	Label    string       `json:"label,omitempty"`
}

type SyncLockEntry struct {
	NodeID      string     `json:"node_id"`
	SourceRef   SourceRef  `json:"source_ref"`
	Status      SyncStatus `json:"status"`
	LastChecked time.Time  `json:"last_checked"`
}

type FlowStep struct {
	NodeID string `json:"node_id"`
	Label  string `json:"label"`
	Order  int    `json:"order"`
}

// Flow is an ordered narrative over file nodes. Diagram is an opaque
// sequence-diagram text block handed to renderers.
type Flow struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	ScopeNodeID string     `json:"scope_node_id"`
	Steps       []FlowStep `json:"steps"`
	Diagram     string     `json:"diagram,omitempty"`
}

// Lens is a named view configuration. The core only carries it through.
type Lens struct {
	ID     string            `json:"id"`
	Name   string            `json:"name"`
	Config map[string]string `json:"config,omitempty"`
}

type DomainNode struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	NodeRefs    []string `json:"node_refs,omitempty"`
}

type DomainRelation struct {
	ID       string `json:"id"`
	SourceID string `json:"source_id"`
	TargetID string `json:"target_id"`
	Label    string `json:"label,omitempty"`
}

// CodeGraph is the aggregate root. Outside of a Draft it is treated as an
// immutable value: updates go through the With* methods.
type CodeGraph struct {
	ID              string                     `json:"id"`
	Name            string                     `json:"name"`
	WorkspaceID     string                     `json:"workspace_id"`
	RepoID          string                     `json:"repo_id"`
	RootID          string                     `json:"root_id"`
	Nodes           map[string]*Node           `json:"nodes"`
	Relations       map[string]*Relation       `json:"relations"`
	Lenses          []Lens                     `json:"lenses,omitempty"`
	ActiveLensID    string                     `json:"active_lens_id,omitempty"`
	DomainNodes     map[string]*DomainNode     `json:"domain_nodes,omitempty"`
	DomainRelations map[string]*DomainRelation `json:"domain_relations,omitempty"`
	Flows           map[string]*Flow           `json:"flows,omitempty"`
	SyncLock        map[string]SyncLockEntry   `json:"sync_lock,omitempty"`
	CreatedAt       time.Time                  `json:"created_at"`
	UpdatedAt       time.Time                  `json:"updated_at"`
}

const RootID = "root"

// ModuleNodeID returns the deterministic id of a depth-1 node.
func ModuleNodeID(name string) string {
	return "module:" + name
}

// SymbolNodeID returns the deterministic id of a depth-3 node.
func SymbolNodeID(path, name string, line int) string {
	return fmt.Sprintf("symbol:%s#%s@%d", path, name, line)
}

// FileNodeID returns the deterministic id of a depth-2 node.
func FileNodeID(path string) string {
	return "file:" + path
}
