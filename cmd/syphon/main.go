// Command syphon runs config-driven syncs against external APIs.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

// rootOptions holds global flags shared by all commands.
type rootOptions struct {
	MappingsDir string
	StateDir    string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "syphon",
		Short: "Config-driven incremental API sync",
		Long: `syphon pulls paginated records from external APIs, maps their fields
via declarative YAML mappings and keeps per-mapping state so runs are
incremental and resumable.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&opts.MappingsDir, "mappings", "mappings", "directory containing mapping YAML files")
	cmd.PersistentFlags().StringVar(&opts.StateDir, "state", ".syphon", "directory for per-mapping state files")

	cmd.AddCommand(newRunCommand(opts))
	cmd.AddCommand(newStatusCommand(opts))
	cmd.AddCommand(newListCommand(opts))
	cmd.AddCommand(newDescribeCommand(opts))

	return cmd
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
