package cli

import (
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/codeatlas-dev/codeatlas/internal/engine"
)

func RunBuild(cmd *cobra.Command, args []string) error {
	asJSON, err := OptionalBoolFlag(cmd, "json", false)
	if err != nil {
		return err
	}
	s, err := openSession(cmd, asJSON)
	if err != nil {
		return err
	}
	defer s.Close()

	langs, err := ParseLanguageFilter(cmd)
	if err != nil {
		return err
	}
	if len(langs) > 0 {
		s.cfg.Scan.Languages = langs
		s.engine.Registry.Restrict(langs)
	}
	mode, err := ParseModeFlag(cmd, "grouping")
	if err != nil {
		return err
	}
	if mode != "" {
		s.cfg.Grouping.Mode = mode
	}
	name, err := OptionalStringFlag(cmd, "name")
	if err != nil {
		return err
	}

	dir := s.root
	if len(args) > 0 {
		dir = args[0]
		if !filepath.IsAbs(dir) {
			dir = filepath.Join(s.root, dir)
		}
	}

	started := time.Now()
	res, err := s.engine.Build(commandContext(cmd), engine.BuildRequest{Dir: dir, Name: name})
	s.progress.Done("build")
	if err != nil {
		return err
	}
	return PrintRunSummary(cmd.OutOrStdout(), newRunSummary("build", dir, res, started), asJSON)
}

func RunResync(cmd *cobra.Command, args []string) error {
	asJSON, err := OptionalBoolFlag(cmd, "json", false)
	if err != nil {
		return err
	}
	s, err := openSession(cmd, asJSON)
	if err != nil {
		return err
	}
	defer s.Close()

	started := time.Now()
	res, err := s.engine.Resync(commandContext(cmd), args[0], nil)
	s.progress.Done("resync")
	if err != nil {
		return err
	}
	return PrintRunSummary(cmd.OutOrStdout(), newRunSummary("resync", res.Graph.RepoID, res, started), asJSON)
}
