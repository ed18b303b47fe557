package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/peteski22/sitebridge/internal/config"
	"github.com/peteski22/sitebridge/internal/executor"
	"github.com/peteski22/sitebridge/internal/sync"
)

// rootOptions holds settings shared by every CLI command.
type rootOptions struct {
	// logger is the structured logger, slog.Default when nil.
	logger *slog.Logger

	// policy replaces every provider's pacing and retry policy when set.
	policy *executor.Policy
}

// newRootCmd creates the sitebridge command tree.
func newRootCmd() *cobra.Command {
	return newRootCmdWith(rootOptions{})
}

// newRootCmdWith creates the sitebridge command tree with the given options.
func newRootCmdWith(opts rootOptions) *cobra.Command {
	root := &cobra.Command{
		Use:   "sitebridge",
		Short: "Sync construction platforms with the internal record store",
		Long: `sitebridge synchronizes RFIs, change orders, cost codes, issues, drawings, tasks
and field reports between the internal record store and Procore, Sage 300,
Autodesk Construction Cloud, PlanGrid and Fieldlens.

Credentials are read from ~/.sitebridge/config.yaml (see 'sitebridge init').`,
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	root.AddCommand(
		newInitCmd(),
		newAuthCmd(),
		newRunCmd(opts),
		newStatusCmd(opts),
		newServeCmd(opts),
	)

	return root
}

// newInitCmd creates the init command.
func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create a config file template",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runInit(cmd.OutOrStdout())
		},
	}
}

// newAuthCmd creates the auth command.
func newAuthCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "auth <procore|autodesk>",
		Short:     "Authorize an OAuth2 platform and store its refresh token",
		Args:      cobra.ExactArgs(1),
		ValidArgs: oauthProviders(),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAuth(cmd.Context(), cmd.OutOrStdout(), args[0])
		},
	}
}

// newRunCmd creates the run command.
func newRunCmd(opts rootOptions) *cobra.Command {
	var (
		dryRun   bool
		parallel bool
		since    string
		stage    string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one sync cycle across every configured platform",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := newLocalService(cmd.Context(), opts, localServiceFlags{
				dryRun:   dryRun,
				parallel: parallel,
				since:    since,
				stage:    stage,
			}, nil)
			if err != nil {
				return err
			}

			return writeJSON(cmd.OutOrStdout(), svc.RunCycle(cmd.Context()))
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "log exports and writes instead of performing them")
	cmd.Flags().BoolVar(&parallel, "parallel", false, "sync platforms concurrently")
	cmd.Flags().StringVar(&since, "since", "", "import records changed since this time (RFC 3339 or YYYY-MM-DD)")
	cmd.Flags().StringVar(&stage, "stage", "", "JSON file of records to mark for export before the cycle")

	return cmd
}

// newStatusCmd creates the status command.
func newStatusCmd(opts rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check platform connections and print the integration report",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := newLocalService(cmd.Context(), opts, localServiceFlags{}, nil)
			if err != nil {
				return err
			}

			return writeJSON(cmd.OutOrStdout(), svc.Report(cmd.Context()))
		},
	}
}

// localServiceFlags holds command-line overrides of the local config.
type localServiceFlags struct {
	// dryRun forces a dry run.
	dryRun bool

	// parallel forces parallel provider cycles.
	parallel bool

	// since overrides the import start time.
	since string

	// stage names a JSON file of records to mark for export.
	stage string
}

// newLocalService builds a sync service from the local config file.
// DynamoDB storage is used when both tables are configured, in-memory storage otherwise.
func newLocalService(
	ctx context.Context,
	opts rootOptions,
	flags localServiceFlags,
	metrics metricsRecorder,
) (*sync.Service, error) {
	settings, err := config.LoadLocal(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	if flags.since != "" {
		if err := settings.Sync.Since.UnmarshalText([]byte(flags.since)); err != nil {
			return nil, fmt.Errorf("parsing --since: %w", err)
		}
	}

	tokenDir, err := config.TokenDir()
	if err != nil {
		return nil, fmt.Errorf("getting token directory: %w", err)
	}

	var b *backend
	if settings.HasDynamoDB() {
		b, err = newAWSBackend(ctx, settings)
		if err != nil {
			return nil, fmt.Errorf("creating AWS backend: %w", err)
		}
		b.tokens = fileTokenStores(tokenDir)
	} else {
		b = newLocalBackend(tokenDir)
	}

	dryRun := flags.dryRun || settings.Sync.DryRun
	if flags.stage != "" {
		logger := opts.logger
		if logger == nil {
			logger = slog.Default()
		}
		if _, err := stageRecords(ctx, b.repo, flags.stage, dryRun, logger); err != nil {
			return nil, err
		}
	}

	return newService(settings, b, serviceOptions{
		dryRun:   dryRun,
		logger:   opts.logger,
		metrics:  metrics,
		parallel: flags.parallel || settings.Sync.Parallel,
		policy:   opts.policy,
	})
}

// writeJSON writes v to w as indented JSON.
func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encoding output: %w", err)
	}
	return nil
}
