package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func NewRootCommand(version string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "atlas",
		Short: "Build navigable architecture graphs of a codebase",
		Long: `Atlas scans a repository, groups its files into functional modules,
discovers the main execution flows and stores the result as a multi-level
graph (system, module, file, symbol) that can be synced as the code changes.

Graphs are kept in the store configured in .atlas/config.yaml.`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringP("dir", "C", "", "Repository root (default: working directory)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Log debug events to stderr")

	// Core Commands
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Create .atlas/config.yaml in the current project",
		RunE:  RunInit,
	}
	initCmd.Flags().Bool("build", false, "Build a graph right after initializing")

	buildCmd := &cobra.Command{
		Use:   "build [path]",
		Short: "Scan, group and build a new graph",
		Args:  cobra.MaximumNArgs(1),
		RunE:  RunBuild,
	}
	buildCmd.Flags().String("name", "", "Graph name (default: directory name)")
	buildCmd.Flags().StringSliceP("lang", "l", []string{}, "Languages to include (default: all supported)")
	buildCmd.Flags().String("grouping", "", "Grouping mode: auto|ai|heuristic")
	buildCmd.Flags().Bool("json", false, "Print machine-readable run summary")

	flowsCmd := &cobra.Command{
		Use:   "flows <graph>",
		Short: "Regenerate execution flows for a stored graph",
		Args:  cobra.ExactArgs(1),
		RunE:  RunFlows,
	}
	flowsCmd.Flags().String("mode", "replace", "Merge mode: replace|additive|scope")
	flowsCmd.Flags().String("scope", "", "Module node id for --mode scope")
	flowsCmd.Flags().String("request", "", "Free-text focus passed to the model")
	flowsCmd.Flags().Bool("json", false, "Print machine-readable run summary")

	// Sync Commands
	syncCmd := &cobra.Command{
		Use:   "sync <graph>",
		Short: "Classify tracked files as locked, modified or missing",
		Args:  cobra.ExactArgs(1),
		RunE:  RunSync,
	}
	syncCmd.Flags().Bool("watch", false, "Keep watching the repository and sync on change")
	syncCmd.Flags().Duration("debounce", 0, "Watch debounce window (default 500ms)")
	syncCmd.Flags().String("metrics-addr", "", "Serve Prometheus metrics on this address while watching")
	syncCmd.Flags().Bool("json", false, "Print machine-readable sync report")

	resyncCmd := &cobra.Command{
		Use:   "resync <graph>",
		Short: "Rebuild a graph from its directory, keeping id and overlays",
		Args:  cobra.ExactArgs(1),
		RunE:  RunResync,
	}
	resyncCmd.Flags().Bool("json", false, "Print machine-readable run summary")

	// Inspect Commands
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List stored graphs in the workspace",
		Args:  cobra.NoArgs,
		RunE:  RunList,
	}
	listCmd.Flags().Bool("json", false, "Print machine-readable graph list")

	showCmd := &cobra.Command{
		Use:   "show <graph>",
		Short: "Show modules, flows and drift of a stored graph",
		Args:  cobra.ExactArgs(1),
		RunE:  RunShow,
	}
	showCmd.Flags().Bool("json", false, "Print the full graph as JSON")

	deleteCmd := &cobra.Command{
		Use:   "delete <graph>",
		Short: "Delete a stored graph",
		Args:  cobra.ExactArgs(1),
		RunE:  RunDelete,
	}

	exportCmd := &cobra.Command{
		Use:   "export <graph>",
		Short: "Write modules and flow diagrams into ARCHITECTURE.md",
		Args:  cobra.ExactArgs(1),
		RunE:  RunExport,
	}
	exportCmd.Flags().StringP("output", "o", "", "Target file (default: ARCHITECTURE.md in the repository root)")

	// Navigate Commands
	findCmd := &cobra.Command{
		Use:   "find <graph> <query...>",
		Short: "Search modules, files and symbols by name, path or description",
		Args:  cobra.MinimumNArgs(2),
		RunE:  RunFind,
	}
	findCmd.Flags().Int("limit", 10, "Maximum number of matches to return")
	findCmd.Flags().Bool("json", false, "Print machine-readable matches")

	callersCmd := &cobra.Command{
		Use:   "callers <graph> <node>",
		Short: "Show nodes with a relation into a node",
		Args:  cobra.ExactArgs(2),
		RunE:  RunCallers,
	}
	callersCmd.Flags().StringSlice("rel", nil, "Relation types to follow (default: calls,depends_on,inherits,implements)")
	callersCmd.Flags().Bool("json", false, "Print machine-readable caller results")

	calleesCmd := &cobra.Command{
		Use:   "callees <graph> <node>",
		Short: "Show nodes a node has a relation to",
		Args:  cobra.ExactArgs(2),
		RunE:  RunCallees,
	}
	calleesCmd.Flags().StringSlice("rel", nil, "Relation types to follow (default: calls,depends_on,inherits,implements)")
	calleesCmd.Flags().Bool("json", false, "Print machine-readable callee results")

	traceCmd := &cobra.Command{
		Use:   "trace <graph> <node>",
		Short: "Trace outgoing relations from a node up to depth N",
		Args:  cobra.ExactArgs(2),
		RunE:  RunTrace,
	}
	traceCmd.Flags().Int("depth", 2, "Traversal depth (>=1)")
	traceCmd.Flags().StringSlice("rel", nil, "Relation types to follow")
	traceCmd.Flags().Bool("json", false, "Print machine-readable trace results")

	pathCmd := &cobra.Command{
		Use:   "path <graph> <from> <to>",
		Short: "Find the shortest relation path between two nodes",
		Args:  cobra.ExactArgs(3),
		RunE:  RunPath,
	}
	pathCmd.Flags().StringSlice("rel", nil, "Relation types to follow")
	pathCmd.Flags().Bool("json", false, "Print machine-readable path results")

	// Additional Commands
	installHookCmd := &cobra.Command{
		Use:   "install-hook <graph>",
		Short: "Install git pre-commit hook that syncs the graph",
		Args:  cobra.ExactArgs(1),
		RunE:  RunInstallHook,
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "atlas %s\n", version)
		},
	}

	rootCmd.AddCommand(
		initCmd,
		buildCmd,
		flowsCmd,
		syncCmd,
		resyncCmd,
		listCmd,
		showCmd,
		deleteCmd,
		exportCmd,
		findCmd,
		callersCmd,
		calleesCmd,
		traceCmd,
		pathCmd,
		installHookCmd,
		versionCmd,
	)

	return rootCmd
}
