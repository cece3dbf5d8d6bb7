package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/codeatlas-dev/codeatlas/internal/graph"
)

// GraphInfo is the listing entry kept beside each stored graph.
type GraphInfo struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	WorkspaceID string    `json:"workspace_id"`
	Nodes       int       `json:"nodes"`
	Relations   int       `json:"relations"`
	Flows       int       `json:"flows"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// GraphStore saves whole graphs, JSON encoded and zstd compressed, keyed by
// workspace and graph id.
type GraphStore struct {
	backend Backend
	enc     *zstd.Encoder
	dec     *zstd.Decoder
}

func NewGraphStore(b Backend) (*GraphStore, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, err
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	return &GraphStore{backend: b, enc: enc, dec: dec}, nil
}

func graphKey(workspaceID, id string) string {
	return "graphs/" + workspaceID + "/" + id
}

func infoPrefix(workspaceID string) string {
	return "index/" + workspaceID + "/"
}

// Save writes g, replacing any graph with the same workspace and id.
func (s *GraphStore) Save(ctx context.Context, g *graph.CodeGraph) error {
	if g.ID == "" {
		return errors.New("graph has no id")
	}
	data, err := json.Marshal(g)
	if err != nil {
		return fmt.Errorf("failed to encode graph: %w", err)
	}
	if err := s.backend.Put(ctx, graphKey(g.WorkspaceID, g.ID), s.enc.EncodeAll(data, nil)); err != nil {
		return err
	}

	info, err := json.Marshal(GraphInfo{
		ID:          g.ID,
		Name:        g.Name,
		WorkspaceID: g.WorkspaceID,
		Nodes:       len(g.Nodes),
		Relations:   len(g.Relations),
		Flows:       len(g.Flows),
		CreatedAt:   g.CreatedAt,
		UpdatedAt:   g.UpdatedAt,
	})
	if err != nil {
		return err
	}
	return s.backend.Put(ctx, infoPrefix(g.WorkspaceID)+g.ID, info)
}

func (s *GraphStore) Load(ctx context.Context, workspaceID, id string) (*graph.CodeGraph, error) {
	blob, err := s.backend.Get(ctx, graphKey(workspaceID, id))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("graph %s: %w", id, ErrNotFound)
		}
		return nil, err
	}
	data, err := s.dec.DecodeAll(blob, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress graph %s: %w", id, err)
	}
	var g graph.CodeGraph
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("failed to decode graph %s: %w", id, err)
	}
	return &g, nil
}

// List returns the graphs of a workspace, most recently updated first.
func (s *GraphStore) List(ctx context.Context, workspaceID string) ([]GraphInfo, error) {
	prefix := infoPrefix(workspaceID)
	keys, err := s.backend.Keys(ctx, prefix)
	if err != nil {
		return nil, err
	}
	out := make([]GraphInfo, 0, len(keys))
	for _, k := range keys {
		raw, err := s.backend.Get(ctx, k)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		var info GraphInfo
		if err := json.Unmarshal(raw, &info); err != nil {
			return nil, fmt.Errorf("corrupt index entry %s: %w", strings.TrimPrefix(k, prefix), err)
		}
		out = append(out, info)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// Resolve finds a graph by exact id, unique id prefix or exact name.
func (s *GraphStore) Resolve(ctx context.Context, workspaceID, ref string) (GraphInfo, error) {
	infos, err := s.List(ctx, workspaceID)
	if err != nil {
		return GraphInfo{}, err
	}
	var matches []GraphInfo
	for _, info := range infos {
		if info.ID == ref {
			return info, nil
		}
		if strings.HasPrefix(info.ID, ref) || info.Name == ref {
			matches = append(matches, info)
		}
	}
	switch len(matches) {
	case 1:
		return matches[0], nil
	case 0:
		return GraphInfo{}, fmt.Errorf("graph %q: %w", ref, ErrNotFound)
	default:
		return GraphInfo{}, fmt.Errorf("graph %q is ambiguous (%d matches)", ref, len(matches))
	}
}

func (s *GraphStore) Delete(ctx context.Context, workspaceID, id string) error {
	if _, err := s.backend.Get(ctx, infoPrefix(workspaceID)+id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return fmt.Errorf("graph %s: %w", id, ErrNotFound)
		}
		return err
	}
	if err := s.backend.Delete(ctx, infoPrefix(workspaceID)+id); err != nil {
		return err
	}
	return s.backend.Delete(ctx, graphKey(workspaceID, id))
}

func (s *GraphStore) Close() error {
	s.dec.Close()
	if err := s.enc.Close(); err != nil {
		return err
	}
	return s.backend.Close()
}
