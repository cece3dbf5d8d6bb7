package graph

import (
	"errors"
	"fmt"
	"sort"
)

// ErrInvalidGraph wraps every invariant violation reported by Validate.
var ErrInvalidGraph = errors.New("invalid graph")

// Validate checks the structural invariants and reports every violation.
func (g *CodeGraph) Validate() error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: %s", ErrInvalidGraph, fmt.Sprintf(format, args...)))
	}

	roots := 0
	for _, id := range sortedNodeIDs(g.Nodes) {
		n := g.Nodes[id]
		if n.ID != id {
			fail("node key %q holds id %q", id, n.ID)
		}
		if !n.Kind.Valid() {
			fail("node %q has invalid kind %q", id, n.Kind)
		}
		if n.Depth == DepthSystem {
			roots++
			if n.ParentID != "" {
				fail("root %q has a parent", id)
			}
			if id != g.RootID {
				fail("depth-0 node %q is not the graph root %q", id, g.RootID)
			}
			continue
		}
		parent, ok := g.Nodes[n.ParentID]
		if !ok {
			fail("node %q has missing parent %q", id, n.ParentID)
			continue
		}
		if n.Depth != parent.Depth+1 {
			fail("node %q at depth %d under %q at depth %d", id, n.Depth, parent.ID, parent.Depth)
		}
		if !containsString(parent.Children, id) {
			fail("parent %q does not list child %q", parent.ID, id)
		}
	}
	if roots != 1 {
		fail("expected exactly one root, found %d", roots)
	}

	contains := make(map[string]bool)
	for _, id := range sortedRelationIDs(g.Relations) {
		r := g.Relations[id]
		if !r.Type.Valid() {
			fail("relation %q has invalid type %q", id, r.Type)
		}
		_, srcOK := g.Nodes[r.SourceID]
		_, dstOK := g.Nodes[r.TargetID]
		if !srcOK || !dstOK {
			fail("relation %q has dangling endpoint %q -> %q", id, r.SourceID, r.TargetID)
			continue
		}
		if r.Type == RelContains {
			contains[r.SourceID+"|"+r.TargetID] = true
			if g.Nodes[r.TargetID].ParentID != r.SourceID {
				fail("contains relation %q disagrees with parent of %q", id, r.TargetID)
			}
		}
	}
	for _, id := range sortedNodeIDs(g.Nodes) {
		for _, childID := range g.Nodes[id].Children {
			child, ok := g.Nodes[childID]
			if !ok {
				fail("node %q lists missing child %q", id, childID)
				continue
			}
			if child.ParentID != id {
				fail("node %q lists child %q owned by %q", id, childID, child.ParentID)
			}
			if !contains[id+"|"+childID] {
				fail("no contains relation for %q -> %q", id, childID)
			}
		}
	}

	for _, id := range sortedFlowIDs(g.Flows) {
		f := g.Flows[id]
		if !g.IsValidScope(f.ScopeNodeID) {
			fail("flow %q has invalid scope %q", id, f.ScopeNodeID)
		}
		for _, step := range f.Steps {
			n, ok := g.Nodes[step.NodeID]
			if !ok || n.Depth != DepthFile {
				fail("flow %q step %d references %q which is not a file node", id, step.Order, step.NodeID)
			}
		}
	}

	for _, id := range sortedLockIDs(g.SyncLock) {
		e := g.SyncLock[id]
		n, ok := g.Nodes[id]
		if !ok {
			fail("sync lock entry for missing node %q", id)
			continue
		}
		if e.SourceRef.ContentHash == "" || n.SourceRef == nil || n.SourceRef.ContentHash == "" {
			fail("sync lock entry for %q without content hash", id)
		}
		if !e.Status.Valid() {
			fail("sync lock entry for %q has invalid status %q", id, e.Status)
		}
	}

	return errors.Join(errs...)
}

// IsValidScope reports whether id is the root or a depth-1 node.
func (g *CodeGraph) IsValidScope(id string) bool {
	if id == g.RootID && id != "" {
		return true
	}
	n, ok := g.Nodes[id]
	return ok && n.Depth == DepthModule
}

func sortedNodeIDs(m map[string]*Node) []string {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func sortedRelationIDs(m map[string]*Relation) []string {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func sortedFlowIDs(m map[string]*Flow) []string {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func sortedLockIDs(m map[string]SyncLockEntry) []string {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
