package cli

import (
	"github.com/spf13/cobra"

	"github.com/codeatlas-dev/codeatlas/internal/engine"
)

func RunFlows(cmd *cobra.Command, args []string) error {
	asJSON, err := OptionalBoolFlag(cmd, "json", false)
	if err != nil {
		return err
	}
	mode, err := ParseMergeFlag(cmd)
	if err != nil {
		return err
	}
	scope, err := OptionalStringFlag(cmd, "scope")
	if err != nil {
		return err
	}
	request, err := OptionalStringFlag(cmd, "request")
	if err != nil {
		return err
	}

	s, err := openSession(cmd, asJSON)
	if err != nil {
		return err
	}
	defer s.Close()

	res, g, err := s.engine.RegenerateFlows(commandContext(cmd), args[0], engine.FlowRequest{
		Mode:          mode,
		ScopeID:       scope,
		CustomRequest: request,
	})
	s.progress.Done("flows")
	if err != nil {
		return err
	}
	return PrintFlowsSummary(cmd.OutOrStdout(), FlowsSummary{
		GraphID:  g.ID,
		Mode:     string(mode),
		Source:   string(res.Source),
		Added:    len(res.Flows),
		Total:    len(g.Flows),
		Warnings: res.Warnings,
	}, asJSON)
}
