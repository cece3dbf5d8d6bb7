package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/codeatlas-dev/codeatlas/internal/fileutil"
	"github.com/codeatlas-dev/codeatlas/internal/graph"
	"github.com/codeatlas-dev/codeatlas/internal/nav"
	"github.com/codeatlas-dev/codeatlas/internal/search"
)

func OptionalIntFlag(cmd *cobra.Command, name string, fallback int) (int, error) {
	if cmd == nil || cmd.Flags().Lookup(name) == nil {
		return fallback, nil
	}
	value, err := cmd.Flags().GetInt(name)
	if err != nil {
		return fallback, fmt.Errorf("failed to read --%s flag: %w", name, err)
	}
	return value, nil
}

func loadGraph(cmd *cobra.Command, ref string) (*graph.CodeGraph, error) {
	s, err := openSession(cmd, true)
	if err != nil {
		return nil, err
	}
	defer s.Close()
	return s.engine.Load(commandContext(cmd), ref)
}

func parseRelationTypes(cmd *cobra.Command) ([]graph.RelationType, error) {
	if cmd.Flags().Lookup("rel") == nil {
		return nil, nil
	}
	raw, err := cmd.Flags().GetStringSlice("rel")
	if err != nil {
		return nil, fmt.Errorf("failed to read --rel flag: %w", err)
	}
	out := make([]graph.RelationType, 0, len(raw))
	for _, r := range raw {
		t := graph.RelationType(strings.ToLower(strings.TrimSpace(r)))
		if !t.Valid() {
			return nil, fmt.Errorf("unknown relation type %q", r)
		}
		out = append(out, t)
	}
	return out, nil
}

func RunFind(cmd *cobra.Command, args []string) error {
	asJSON, err := OptionalBoolFlag(cmd, "json", false)
	if err != nil {
		return err
	}
	limit, err := OptionalIntFlag(cmd, "limit", 10)
	if err != nil {
		return err
	}
	g, err := loadGraph(cmd, args[0])
	if err != nil {
		return err
	}

	query := strings.Join(args[1:], " ")
	idx := search.Build(g)
	matches, err := nav.Resolve(g, idx, query, limit)
	if err != nil {
		return err
	}
	records := make([]nav.NodeRecord, 0, len(matches))
	for _, n := range matches {
		records = append(records, nav.RecordFromNode(n))
	}

	out := cmd.OutOrStdout()
	if asJSON {
		return fileutil.PrintJSON(out, map[string]any{"query": query, "matches": records})
	}
	fmt.Fprintf(out, "matches for %q (%d)\n", query, len(records))
	for _, r := range records {
		fmt.Fprintf(out, "- %s [%s]%s\n", r.ID, r.Kind, location(r))
	}
	return nil
}

func RunCallers(cmd *cobra.Command, args []string) error {
	return runNeighbors(cmd, args, nav.Incoming, "callers")
}

func RunCallees(cmd *cobra.Command, args []string) error {
	return runNeighbors(cmd, args, nav.Outgoing, "callees")
}

func runNeighbors(cmd *cobra.Command, args []string, dir nav.Direction, label string) error {
	asJSON, err := OptionalBoolFlag(cmd, "json", false)
	if err != nil {
		return err
	}
	types, err := parseRelationTypes(cmd)
	if err != nil {
		return err
	}
	g, err := loadGraph(cmd, args[0])
	if err != nil {
		return err
	}
	node, err := nav.ResolveOne(g, nil, args[1])
	if err != nil {
		return err
	}

	edges := nav.NewAdjacency(g, types...).Neighbors(node.ID, dir)
	out := cmd.OutOrStdout()
	if asJSON {
		return fileutil.PrintJSON(out, map[string]any{"node": nav.RecordFromNode(node), label: edges})
	}
	fmt.Fprintf(out, "%s of %s (%d)\n", label, node.ID, len(edges))
	for _, e := range edges {
		fmt.Fprintf(out, "- %s [%s]%s\n", e.Node.ID, e.Type, location(e.Node))
	}
	return nil
}

func RunTrace(cmd *cobra.Command, args []string) error {
	asJSON, err := OptionalBoolFlag(cmd, "json", false)
	if err != nil {
		return err
	}
	depth, err := OptionalIntFlag(cmd, "depth", 2)
	if err != nil {
		return err
	}
	if depth < 1 {
		return fmt.Errorf("--depth must be >= 1")
	}
	types, err := parseRelationTypes(cmd)
	if err != nil {
		return err
	}
	g, err := loadGraph(cmd, args[0])
	if err != nil {
		return err
	}
	node, err := nav.ResolveOne(g, nil, args[1])
	if err != nil {
		return err
	}

	hops := nav.NewAdjacency(g, types...).Trace(node.ID, depth)
	out := cmd.OutOrStdout()
	if asJSON {
		return fileutil.PrintJSON(out, map[string]any{"root": nav.RecordFromNode(node), "depth": depth, "hops": hops})
	}
	fmt.Fprintf(out, "trace from %s (depth=%d, hops=%d)\n", node.ID, depth, len(hops))
	for _, h := range hops {
		fmt.Fprintf(out, "%s%s -> %s [%s]\n", strings.Repeat("  ", h.Depth-1), h.From.Name, h.To.Name, h.Type)
	}
	return nil
}

func RunPath(cmd *cobra.Command, args []string) error {
	asJSON, err := OptionalBoolFlag(cmd, "json", false)
	if err != nil {
		return err
	}
	types, err := parseRelationTypes(cmd)
	if err != nil {
		return err
	}
	g, err := loadGraph(cmd, args[0])
	if err != nil {
		return err
	}
	idx := search.Build(g)
	from, err := nav.ResolveOne(g, idx, args[1])
	if err != nil {
		return err
	}
	to, err := nav.ResolveOne(g, idx, args[2])
	if err != nil {
		return err
	}

	ids := nav.NewAdjacency(g, types...).ShortestPath(from.ID, to.ID)
	out := cmd.OutOrStdout()
	if asJSON {
		return fileutil.PrintJSON(out, map[string]any{"from": from.ID, "to": to.ID, "path": ids})
	}
	if len(ids) == 0 {
		fmt.Fprintf(out, "no path from %s to %s\n", from.ID, to.ID)
		return nil
	}
	fmt.Fprintln(out, strings.Join(ids, " -> "))
	return nil
}

func location(r nav.NodeRecord) string {
	switch {
	case r.File == "":
		return ""
	case r.Line > 0:
		return fmt.Sprintf(" %s:%d", r.File, r.Line)
	default:
		return " " + r.File
	}
}
