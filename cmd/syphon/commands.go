package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/homemade/syphon/sync"
)

// cmdContext returns a context cancelled on interrupt. Page fetches are
// sequential, so cancellation takes effect between requests.
func cmdContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func newStatusCommand(rootOpts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status <mapping>",
		Short: "Show the persisted sync state for a mapping",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store := sync.FileStateStore{Dir: rootOpts.StateDir}
			state, err := store.Load(args[0])
			if err != nil {
				return err
			}
			out, err := json.MarshalIndent(state, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		},
	}
}

func newListCommand(rootOpts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the available mappings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			files, err := sync.ListMappingFiles(rootOpts.MappingsDir)
			if err != nil {
				return err
			}
			for _, f := range files {
				base := filepath.Base(f)
				name := strings.TrimSuffix(strings.TrimSuffix(base, ".yaml"), ".yml")
				fmt.Println(name)
			}
			return nil
		},
	}
}

func newDescribeCommand(rootOpts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "describe <mapping>",
		Short: "Print a mapping's field documentation as CSV",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mapping, err := loadMapping(rootOpts, args[0])
			if err != nil {
				return err
			}
			csv, err := sync.DescribeMapping(mapping).FormatCSV()
			if err != nil {
				return err
			}
			fmt.Print(csv)
			return nil
		},
	}
}
