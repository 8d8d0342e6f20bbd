package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/homemade/syphon/sync"
)

// runOptions holds flags for the run command.
type runOptions struct {
	*rootOptions
	Full            bool
	Endpoint        string
	Token           string
	RecordsEndpoint string
	RecordsAPIKey   string
	RecordRequests  bool
}

func newRunCommand(rootOpts *rootOptions) *cobra.Command {
	opts := &runOptions{rootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <mapping>",
		Short: "Run one sync for a named mapping",
		Long: `Run one sync for a named mapping.

Records are emitted as JSON lines on stdout unless a records service
endpoint is configured, in which case they are upserted there.

Example:
  syphon run crm-contacts --endpoint https://proxy.internal --full`,
		Args:          cobra.ExactArgs(1),
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(opts, args[0])
		},
	}

	cmd.Flags().BoolVar(&opts.Full, "full", false, "ignore incremental state and cursors, pull from the beginning")
	cmd.Flags().StringVar(&opts.Endpoint, "endpoint", os.Getenv("SYPHON_ENDPOINT"), "passthrough endpoint base URL")
	cmd.Flags().StringVar(&opts.Token, "token", os.Getenv("SYPHON_TOKEN"), "passthrough bearer token")
	cmd.Flags().StringVar(&opts.RecordsEndpoint, "records-endpoint", os.Getenv("SYPHON_RECORDS_ENDPOINT"), "records service base URL (default: emit JSON lines)")
	cmd.Flags().StringVar(&opts.RecordsAPIKey, "records-api-key", os.Getenv("SYPHON_RECORDS_API_KEY"), "records service API key")
	cmd.Flags().BoolVar(&opts.RecordRequests, "record-requests", false, "record wire traffic under testdata/.requests")

	return cmd
}

func runSync(opts *runOptions, name string) error {
	mapping, err := loadMapping(opts.rootOptions, name)
	if err != nil {
		return err
	}

	var records sync.RecordStore
	if opts.RecordsEndpoint != "" {
		records = sync.RecordAPI{
			Endpoint:       opts.RecordsEndpoint,
			APIKey:         opts.RecordsAPIKey,
			RecordRequests: opts.RecordRequests,
		}
	} else {
		records = sync.NewJSONLEmitter(os.Stdout)
	}

	syncer := &sync.Syncer{
		Requester: sync.Client{
			Endpoint:       opts.Endpoint,
			Token:          opts.Token,
			ConnectionID:   mapping.ConnectionID,
			ActionID:       mapping.ActionID,
			RecordRequests: opts.RecordRequests,
		},
		Records: records,
		States:  sync.FileStateStore{Dir: opts.StateDir},
	}

	ctx, stop := cmdContext()
	defer stop()
	result := syncer.Run(ctx, mapping, sync.RunOptions{Full: opts.Full})

	summary, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(os.Stderr, string(summary))

	if result.Status == sync.StatusError {
		return fmt.Errorf("sync %s failed: %s", name, result.Error)
	}
	return nil
}

func loadMapping(opts *rootOptions, name string) (sync.Mapping, error) {
	path, err := sync.FindMappingFile(opts.MappingsDir, name)
	if err != nil {
		return sync.Mapping{}, err
	}
	return sync.LoadMappingFile(path)
}
