package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/codeatlas-dev/codeatlas/internal/fileutil"
)

func RunList(cmd *cobra.Command, args []string) error {
	asJSON, err := OptionalBoolFlag(cmd, "json", false)
	if err != nil {
		return err
	}
	s, err := openSession(cmd, asJSON)
	if err != nil {
		return err
	}
	defer s.Close()

	infos, err := s.store.List(commandContext(cmd), s.cfg.Workspace)
	if err != nil {
		return err
	}
	return PrintGraphList(cmd.OutOrStdout(), infos, asJSON)
}

func RunShow(cmd *cobra.Command, args []string) error {
	asJSON, err := OptionalBoolFlag(cmd, "json", false)
	if err != nil {
		return err
	}
	s, err := openSession(cmd, asJSON)
	if err != nil {
		return err
	}
	defer s.Close()

	g, err := s.engine.Load(commandContext(cmd), args[0])
	if err != nil {
		return err
	}
	if asJSON {
		return fileutil.PrintJSON(cmd.OutOrStdout(), g)
	}
	return PrintGraph(cmd.OutOrStdout(), g)
}

func RunDelete(cmd *cobra.Command, args []string) error {
	s, err := openSession(cmd, false)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx := commandContext(cmd)
	info, err := s.store.Resolve(ctx, s.cfg.Workspace, args[0])
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, s.cfg.Workspace, info.ID); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted graph %s (%s)\n", info.Name, info.ID)
	return nil
}
