package graph

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Draft is the mutable handle a single construction run uses to assemble a
// graph. It is not safe for concurrent use and must not outlive Finish.
type Draft struct {
	g        *CodeGraph
	relIndex map[string]string // type|source|target -> relation id
	finished bool
}

// NewDraft starts a new graph with a fresh id.
func NewDraft(workspaceID, repoID, name string) *Draft {
	now := time.Now().UTC()
	return &Draft{
		g: &CodeGraph{
			ID:          uuid.NewString(),
			Name:        name,
			WorkspaceID: workspaceID,
			RepoID:      repoID,
			Nodes:       make(map[string]*Node),
			Relations:   make(map[string]*Relation),
			Flows:       make(map[string]*Flow),
			SyncLock:    make(map[string]SyncLockEntry),
			CreatedAt:   now,
			UpdatedAt:   now,
		},
		relIndex: make(map[string]string),
	}
}

// AddRoot creates the single depth-0 node.
func (d *Draft) AddRoot(name, description string) (*Node, error) {
	if d.g.RootID != "" {
		return nil, fmt.Errorf("root already exists: %s", d.g.RootID)
	}
	root := &Node{
		ID:          RootID,
		Name:        name,
		Description: description,
		Kind:        KindSystem,
		Depth:       DepthSystem,
	}
	d.g.Nodes[root.ID] = root
	d.g.RootID = root.ID
	return root, nil
}

// AddChild attaches node under parentID, deriving its depth from the parent
// and recording the mirrored contains relation.
func (d *Draft) AddChild(parentID string, node Node) (*Node, error) {
	parent, ok := d.g.Nodes[parentID]
	if !ok {
		return nil, fmt.Errorf("parent %q not found", parentID)
	}
	if node.ID == "" {
		return nil, fmt.Errorf("node id is required")
	}
	if _, exists := d.g.Nodes[node.ID]; exists {
		return nil, fmt.Errorf("duplicate node id %q", node.ID)
	}
	if !node.Kind.Valid() {
		return nil, fmt.Errorf("node %q has invalid kind %q", node.ID, node.Kind)
	}

	n := node
	n.ParentID = parentID
	n.Depth = parent.Depth + 1
	n.Children = nil
	d.g.Nodes[n.ID] = &n
	parent.Children = append(parent.Children, n.ID)

	if _, err := d.AddRelation(parentID, n.ID, RelContains, ""); err != nil {
		return nil, err
	}
	return &n, nil
}

// AddRelation records a relation between two existing nodes. A second
// relation with the same type and endpoints is ignored and reports false.
func (d *Draft) AddRelation(sourceID, targetID string, relType RelationType, label string) (bool, error) {
	if !relType.Valid() {
		return false, fmt.Errorf("invalid relation type %q", relType)
	}
	if _, ok := d.g.Nodes[sourceID]; !ok {
		return false, fmt.Errorf("relation source %q not found", sourceID)
	}
	if _, ok := d.g.Nodes[targetID]; !ok {
		return false, fmt.Errorf("relation target %q not found", targetID)
	}
	key := relationKey(relType, sourceID, targetID)
	if _, exists := d.relIndex[key]; exists {
		return false, nil
	}
	rel := &Relation{
		ID:       RelationID(relType, sourceID, targetID),
		SourceID: sourceID,
		TargetID: targetID,
		Type:     relType,
		Label:    label,
	}
	d.g.Relations[rel.ID] = rel
	d.relIndex[key] = rel.ID
	return true, nil
}

// Lock registers a sync-lock snapshot. Entries without a content hash are refused.
func (d *Draft) Lock(nodeID string, ref SourceRef, at time.Time) error {
	if ref.ContentHash == "" {
		return fmt.Errorf("node %q has no content hash", nodeID)
	}
	node, ok := d.g.Nodes[nodeID]
	if !ok {
		return fmt.Errorf("node %q not found", nodeID)
	}
	if node.Depth != DepthFile {
		return fmt.Errorf("node %q is not a file node", nodeID)
	}
	d.g.SyncLock[nodeID] = SyncLockEntry{
		NodeID:      nodeID,
		SourceRef:   ref,
		Status:      StatusLocked,
		LastChecked: at.UTC(),
	}
	return nil
}

// Node returns a node added to the draft so far.
func (d *Draft) Node(id string) (*Node, bool) {
	n, ok := d.g.Nodes[id]
	return n, ok
}

// Finish validates the assembled graph and hands it over. The draft cannot
// be used afterwards.
func (d *Draft) Finish() (*CodeGraph, error) {
	if d.finished {
		return nil, fmt.Errorf("draft already finished")
	}
	d.finished = true
	d.g.UpdatedAt = time.Now().UTC()
	if err := d.g.Validate(); err != nil {
		return nil, err
	}
	g := d.g
	d.g = nil
	return g, nil
}

// RelationID is deterministic so rebuilding the same input yields the same ids.
func RelationID(relType RelationType, sourceID, targetID string) string {
	return fmt.Sprintf("%s:%s->%s", relType, sourceID, targetID)
}

func relationKey(relType RelationType, sourceID, targetID string) string {
	return string(relType) + "|" + sourceID + "|" + targetID
}
