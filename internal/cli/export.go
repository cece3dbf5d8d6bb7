package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/codeatlas-dev/codeatlas/internal/report"
)

func RunExport(cmd *cobra.Command, args []string) error {
	s, err := openSession(cmd, false)
	if err != nil {
		return err
	}
	defer s.Close()

	g, err := s.engine.Load(commandContext(cmd), args[0])
	if err != nil {
		return err
	}
	target, err := OptionalStringFlag(cmd, "output")
	if err != nil {
		return err
	}
	if target == "" {
		target = filepath.Join(s.root, report.DefaultFile)
	} else if !filepath.IsAbs(target) {
		target = filepath.Join(s.root, target)
	}

	changed, err := report.UpsertFile(target, report.Render(g))
	if err != nil {
		return err
	}
	if changed {
		fmt.Fprintf(cmd.OutOrStdout(), "Updated %s\n", target)
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "%s is up to date\n", target)
	}
	return nil
}
