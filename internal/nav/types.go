// Package nav walks relations of a stored graph: neighbours, bounded
// traces and shortest paths between nodes.
package nav

import "github.com/codeatlas-dev/codeatlas/internal/graph"

// Direction selects which end of a relation to follow.
type Direction int

const (
	Outgoing Direction = iota
	Incoming
)

type NodeRecord struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Kind  string `json:"kind"`
	Depth string `json:"depth"`
	File  string `json:"file,omitempty"`
	Line  int    `json:"line,omitempty"`
}

type EdgeRecord struct {
	Node  NodeRecord         `json:"node"`
	Type  graph.RelationType `json:"type"`
	Label string             `json:"label,omitempty"`
}

type TraceHop struct {
	Depth int                `json:"depth"`
	From  NodeRecord         `json:"from"`
	To    NodeRecord         `json:"to"`
	Type  graph.RelationType `json:"type"`
	Label string             `json:"label,omitempty"`
}

func RecordFromNode(n *graph.Node) NodeRecord {
	rec := NodeRecord{ID: n.ID, Name: n.Name, Kind: string(n.Kind), Depth: n.Depth.String()}
	if n.SourceRef != nil {
		rec.File = n.SourceRef.FilePath
		rec.Line = n.SourceRef.LineStart
	}
	return rec
}

// NavigableTypes are the relation types followed when none are given.
var NavigableTypes = []graph.RelationType{graph.RelCalls, graph.RelDependsOn, graph.RelInherits, graph.RelImplements}
