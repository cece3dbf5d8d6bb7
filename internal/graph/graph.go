// Package graph holds the multi-level code graph: a depth 0..3 containment
// hierarchy (system, module, file, symbol) plus typed relations, flows and
// the sync-lock snapshot used for drift detection.
package graph

import (
	"sort"
	"strings"
	"time"
)

// Root returns the depth-0 node.
func (g *CodeGraph) Root() *Node {
	return g.Nodes[g.RootID]
}

// Node looks a node up by id.
func (g *CodeGraph) Node(id string) (*Node, bool) {
	n, ok := g.Nodes[id]
	return n, ok
}

// NodesAtDepth returns every node at depth d, sorted by id.
func (g *CodeGraph) NodesAtDepth(d Depth) []*Node {
	out := make([]*Node, 0)
	for _, n := range g.Nodes {
		if n.Depth == d {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ChildrenOf returns the children of id in their stored order.
func (g *CodeGraph) ChildrenOf(id string) []*Node {
	parent, ok := g.Nodes[id]
	if !ok {
		return nil
	}
	out := make([]*Node, 0, len(parent.Children))
	for _, childID := range parent.Children {
		if child, ok := g.Nodes[childID]; ok {
			out = append(out, child)
		}
	}
	return out
}

// RelationsOfType returns relations of type t sorted by id.
func (g *CodeGraph) RelationsOfType(t RelationType) []*Relation {
	out := make([]*Relation, 0)
	for _, r := range g.Relations {
		if r.Type == t {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// FileNodeByPath finds the depth-2 node whose source ref points at path.
func (g *CodeGraph) FileNodeByPath(path string) (*Node, bool) {
	path = strings.TrimPrefix(strings.TrimSpace(path), "./")
	if n, ok := g.Nodes[FileNodeID(path)]; ok && n.Depth == DepthFile {
		return n, true
	}
	for _, n := range g.Nodes {
		if n.Depth == DepthFile && n.SourceRef != nil && n.SourceRef.FilePath == path {
			return n, true
		}
	}
	return nil, false
}

// OwningFile walks up from nodeID to its depth-2 ancestor (or itself).
func (g *CodeGraph) OwningFile(nodeID string) (*Node, bool) {
	return g.ancestorAt(nodeID, DepthFile)
}

// OwningModule walks up from nodeID to its depth-1 ancestor (or itself).
func (g *CodeGraph) OwningModule(nodeID string) (*Node, bool) {
	return g.ancestorAt(nodeID, DepthModule)
}

func (g *CodeGraph) ancestorAt(nodeID string, depth Depth) (*Node, bool) {
	n, ok := g.Nodes[nodeID]
	for ok {
		if n.Depth == depth {
			return n, true
		}
		if n.Depth < depth || n.ParentID == "" {
			return nil, false
		}
		n, ok = g.Nodes[n.ParentID]
	}
	return nil, false
}

// Clone returns a deep copy. Every With* update starts from one.
func (g *CodeGraph) Clone() *CodeGraph {
	out := *g
	out.Nodes = make(map[string]*Node, len(g.Nodes))
	for id, n := range g.Nodes {
		out.Nodes[id] = cloneNode(n)
	}
	out.Relations = make(map[string]*Relation, len(g.Relations))
	for id, r := range g.Relations {
		rc := *r
		out.Relations[id] = &rc
	}
	out.Lenses = cloneLenses(g.Lenses)
	out.DomainNodes = cloneDomainNodes(g.DomainNodes)
	out.DomainRelations = cloneDomainRelations(g.DomainRelations)
	out.Flows = cloneFlows(g.Flows)
	out.SyncLock = make(map[string]SyncLockEntry, len(g.SyncLock))
	for id, e := range g.SyncLock {
		out.SyncLock[id] = e
	}
	return &out
}

// WithFlows replaces the flow set.
func (g *CodeGraph) WithFlows(flows []*Flow) *CodeGraph {
	out := g.Clone()
	out.Flows = make(map[string]*Flow, len(flows))
	for _, f := range flows {
		out.Flows[f.ID] = cloneFlow(f)
	}
	out.UpdatedAt = time.Now().UTC()
	return out
}

// WithSyncLock replaces the sync-lock snapshot.
func (g *CodeGraph) WithSyncLock(entries map[string]SyncLockEntry) *CodeGraph {
	out := g.Clone()
	out.SyncLock = make(map[string]SyncLockEntry, len(entries))
	for id, e := range entries {
		out.SyncLock[id] = e
	}
	out.UpdatedAt = time.Now().UTC()
	return out
}

// WithIdentity swaps in another graph's identity.
func (g *CodeGraph) WithIdentity(id, name string, createdAt time.Time) *CodeGraph {
	out := g.Clone()
	out.ID = id
	out.Name = name
	out.CreatedAt = createdAt
	out.UpdatedAt = time.Now().UTC()
	return out
}

// Overlays is the part of a graph that survives a full resync besides its identity.
type Overlays struct {
	Lenses          []Lens
	ActiveLensID    string
	DomainNodes     map[string]*DomainNode
	DomainRelations map[string]*DomainRelation
}

// Overlays returns a copy of the lens and domain layers.
func (g *CodeGraph) Overlays() Overlays {
	return Overlays{
		Lenses:          cloneLenses(g.Lenses),
		ActiveLensID:    g.ActiveLensID,
		DomainNodes:     cloneDomainNodes(g.DomainNodes),
		DomainRelations: cloneDomainRelations(g.DomainRelations),
	}
}

// WithOverlays replaces the lens configuration and domain layer.
// Domain back-references on nodes that no longer exist are dropped.
func (g *CodeGraph) WithOverlays(o Overlays) *CodeGraph {
	out := g.Clone()
	out.Lenses = cloneLenses(o.Lenses)
	out.ActiveLensID = o.ActiveLensID
	out.DomainNodes = cloneDomainNodes(o.DomainNodes)
	out.DomainRelations = cloneDomainRelations(o.DomainRelations)
	for _, dn := range out.DomainNodes {
		kept := dn.NodeRefs[:0]
		for _, ref := range dn.NodeRefs {
			if _, ok := out.Nodes[ref]; ok {
				kept = append(kept, ref)
			}
		}
		dn.NodeRefs = kept
		for _, ref := range dn.NodeRefs {
			n := out.Nodes[ref]
			if !containsString(n.DomainRefs, dn.ID) {
				n.DomainRefs = append(n.DomainRefs, dn.ID)
			}
		}
	}
	out.UpdatedAt = time.Now().UTC()
	return out
}

// SortedFlows returns flows ordered by name then id.
func (g *CodeGraph) SortedFlows() []*Flow {
	out := make([]*Flow, 0, len(g.Flows))
	for _, f := range g.Flows {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name == out[j].Name {
			return out[i].ID < out[j].ID
		}
		return out[i].Name < out[j].Name
	})
	return out
}

func cloneNode(n *Node) *Node {
	c := *n
	c.Children = append([]string(nil), n.Children...)
	c.Tags = append([]string(nil), n.Tags...)
	c.DomainRefs = append([]string(nil), n.DomainRefs...)
	if n.SourceRef != nil {
		ref := *n.SourceRef
		c.SourceRef = &ref
	}
	if n.LensOverrides != nil {
		c.LensOverrides = make(map[string]LensOverride, len(n.LensOverrides))
		for k, v := range n.LensOverrides {
			c.LensOverrides[k] = v
		}
	}
	return &c
}

func cloneFlow(f *Flow) *Flow {
	c := *f
	c.Steps = append([]FlowStep(nil), f.Steps...)
	return &c
}

func cloneFlows(in map[string]*Flow) map[string]*Flow {
	out := make(map[string]*Flow, len(in))
	for id, f := range in {
		out[id] = cloneFlow(f)
	}
	return out
}

func cloneLenses(in []Lens) []Lens {
	if in == nil {
		return nil
	}
	out := make([]Lens, len(in))
	for i, l := range in {
		out[i] = l
		if l.Config != nil {
			out[i].Config = make(map[string]string, len(l.Config))
			for k, v := range l.Config {
				out[i].Config[k] = v
			}
		}
	}
	return out
}

func cloneDomainNodes(in map[string]*DomainNode) map[string]*DomainNode {
	if in == nil {
		return nil
	}
	out := make(map[string]*DomainNode, len(in))
	for id, dn := range in {
		c := *dn
		c.NodeRefs = append([]string(nil), dn.NodeRefs...)
		out[id] = &c
	}
	return out
}

func cloneDomainRelations(in map[string]*DomainRelation) map[string]*DomainRelation {
	if in == nil {
		return nil
	}
	out := make(map[string]*DomainRelation, len(in))
	for id, dr := range in {
		c := *dr
		out[id] = &c
	}
	return out
}

func containsString(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}
