package main

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/ssm"

	"github.com/peteski22/sitebridge/internal/auth"
	"github.com/peteski22/sitebridge/internal/autodesk"
	"github.com/peteski22/sitebridge/internal/config"
	"github.com/peteski22/sitebridge/internal/connect"
	"github.com/peteski22/sitebridge/internal/executor"
	"github.com/peteski22/sitebridge/internal/fieldlens"
	"github.com/peteski22/sitebridge/internal/plangrid"
	"github.com/peteski22/sitebridge/internal/procore"
	"github.com/peteski22/sitebridge/internal/provider"
	"github.com/peteski22/sitebridge/internal/record"
	"github.com/peteski22/sitebridge/internal/sage"
	"github.com/peteski22/sitebridge/internal/storage"
	"github.com/peteski22/sitebridge/internal/sync"
)

// recordRepository is the persistence collaborator: the orchestrator reads and writes records
// through it and provider clients attach external ids to it.
type recordRepository interface {
	provider.Linker
	sync.Repository

	// Stage upserts a record and marks it for export.
	Stage(ctx context.Context, rec record.Record) error
}

// tokenStoreFunc returns the refresh token store for an OAuth2 provider, or nil when there is none.
type tokenStoreFunc func(providerID string) (auth.TokenStore, error)

// backend holds the storage collaborators a sync service runs against.
type backend struct {
	// mappings persists external record mappings.
	mappings provider.MappingStore

	// repo stores internal records.
	repo recordRepository

	// state persists per-provider sync state.
	state sync.StateStore

	// tokens supplies OAuth2 refresh token stores.
	tokens tokenStoreFunc
}

// newAWSBackend creates a backend on DynamoDB, SSM and Secrets Manager.
func newAWSBackend(ctx context.Context, settings *config.Settings) (*backend, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	dynamoClient := dynamodb.NewFromConfig(awsCfg)

	mappings, err := storage.NewMappingStore(dynamoClient, settings.DynamoDB.MappingsTable)
	if err != nil {
		return nil, fmt.Errorf("creating mapping store: %w", err)
	}

	records, err := storage.NewRecordStore(dynamoClient, settings.DynamoDB.RecordsTable, settings.DynamoDB.PendingIndex)
	if err != nil {
		return nil, fmt.Errorf("creating record store: %w", err)
	}

	state, err := storage.NewStateStore(ssm.NewFromConfig(awsCfg), settings.SSM.ParameterPrefix)
	if err != nil {
		return nil, fmt.Errorf("creating state store: %w", err)
	}

	secrets := secretsmanager.NewFromConfig(awsCfg)

	return &backend{
		mappings: mappings,
		repo:     records,
		state:    state,
		tokens: func(providerID string) (auth.TokenStore, error) {
			arn := refreshTokenSecretARN(settings, providerID)
			if arn == "" {
				return nil, nil
			}
			return storage.NewTokenStore(secrets, providerID, arn)
		},
	}, nil
}

// newLocalBackend creates an in-memory backend with refresh tokens read from tokenDir.
func newLocalBackend(tokenDir string) *backend {
	return &backend{
		mappings: storage.NewMemoryMappingStore(),
		repo:     storage.NewMemoryRecordStore(),
		state:    storage.NewMemoryStateStore(),
		tokens:   fileTokenStores(tokenDir),
	}
}

// fileTokenStores returns a tokenStoreFunc backed by one file per provider under dir.
func fileTokenStores(dir string) tokenStoreFunc {
	return func(providerID string) (auth.TokenStore, error) {
		return storage.NewFileTokenStore(dir, providerID)
	}
}

// refreshTokenSecretARN returns the Secrets Manager ARN configured for an OAuth2 provider.
func refreshTokenSecretARN(settings *config.Settings, providerID string) string {
	switch providerID {
	case autodesk.ID:
		return settings.Autodesk.RefreshTokenSecretARN
	case procore.ID:
		return settings.Procore.RefreshTokenSecretARN
	default:
		return ""
	}
}

// serviceOptions holds optional settings for newService.
type serviceOptions struct {
	// dryRun logs exports and writes instead of performing them.
	dryRun bool

	// logger is the structured logger.
	logger *slog.Logger

	// metrics observes requests and cycles, may be nil.
	metrics metricsRecorder

	// parallel runs providers concurrently.
	parallel bool

	// policy replaces every provider's pacing and retry policy when set.
	policy *executor.Policy
}

// metricsRecorder observes both provider requests and provider cycles.
type metricsRecorder interface {
	executor.Observer
	sync.Recorder
}

// newService builds every provider client and the sync service over them.
func newService(settings *config.Settings, b *backend, opts serviceOptions) (*sync.Service, error) {
	logger := opts.logger
	if logger == nil {
		logger = slog.Default()
	}

	providers, err := buildProviders(settings, b, logger, opts)
	if err != nil {
		return nil, err
	}

	cfg := sync.Config{
		Concurrency:   settings.Sync.Concurrency,
		DryRun:        opts.dryRun,
		Logger:        logger,
		Parallel:      opts.parallel,
		Providers:     providers,
		Repository:    b.repo,
		SinceOverride: settings.Sync.Since.Ptr(),
		StateStore:    b.state,
	}
	if opts.metrics != nil {
		cfg.Recorder = opts.metrics
	}

	return sync.New(cfg)
}

// buildProviders creates the client for every supported provider, configured or not.
// Unconfigured providers are reported as skipped by the orchestrator.
func buildProviders(
	settings *config.Settings,
	b *backend,
	logger *slog.Logger,
	opts serviceOptions,
) ([]sync.Provider, error) {
	common := []connect.Option{
		connect.WithLinker(b.repo),
		connect.WithLogger(logger),
		connect.WithTimeout(settings.Sync.RequestTimeout),
	}
	if opts.metrics != nil {
		common = append(common, connect.WithObserver(opts.metrics))
	}
	if opts.policy != nil {
		common = append(common, connect.WithPolicy(*opts.policy))
	}
	if opts.dryRun {
		common = append(common, connect.WithDryRun())
	}

	optionsFor := func(providerID string, baseURL string) ([]connect.Option, error) {
		o := slices.Clone(common)
		if baseURL != "" {
			o = append(o, connect.WithBaseURL(baseURL))
		}
		if b.tokens != nil {
			store, err := b.tokens(providerID)
			if err != nil {
				return nil, fmt.Errorf("creating %s token store: %w", providerID, err)
			}
			if store != nil {
				o = append(o, connect.WithTokenStore(store))
			}
		}
		return o, nil
	}

	var providers []sync.Provider

	pcOpts, err := optionsFor(procore.ID, settings.Procore.BaseURL)
	if err != nil {
		return nil, err
	}
	pc, err := procore.New(procore.Config{
		CompanyID:  settings.Procore.CompanyID,
		Credential: settings.Procore.Credential(),
		Mappings:   b.mappings,
		ProjectRef: settings.Procore.ProjectID,
	}, pcOpts...)
	if err != nil {
		return nil, fmt.Errorf("creating procore client: %w", err)
	}
	providers = append(providers, pc)

	sageOpts, err := optionsFor(sage.ID, settings.Sage.BaseURL)
	if err != nil {
		return nil, err
	}
	sg, err := sage.New(sage.Config{
		Credential: settings.Sage.Credential(),
		Mappings:   b.mappings,
		ProjectRef: settings.Sage.ProjectID,
	}, sageOpts...)
	if err != nil {
		return nil, fmt.Errorf("creating sage client: %w", err)
	}
	providers = append(providers, sg)

	adOpts, err := optionsFor(autodesk.ID, settings.Autodesk.BaseURL)
	if err != nil {
		return nil, err
	}
	ad, err := autodesk.New(autodesk.Config{
		Credential: settings.Autodesk.Credential(),
		Mappings:   b.mappings,
		ProjectRef: settings.Autodesk.ProjectID,
	}, adOpts...)
	if err != nil {
		return nil, fmt.Errorf("creating autodesk client: %w", err)
	}
	providers = append(providers, ad)

	pgOpts, err := optionsFor(plangrid.ID, settings.PlanGrid.BaseURL)
	if err != nil {
		return nil, err
	}
	pg, err := plangrid.New(plangrid.Config{
		Credential: settings.PlanGrid.Credential(),
		Mappings:   b.mappings,
		ProjectRef: settings.PlanGrid.ProjectID,
	}, pgOpts...)
	if err != nil {
		return nil, fmt.Errorf("creating plangrid client: %w", err)
	}
	providers = append(providers, pg)

	flOpts, err := optionsFor(fieldlens.ID, settings.Fieldlens.BaseURL)
	if err != nil {
		return nil, err
	}
	fl, err := fieldlens.New(fieldlens.Config{
		Credential: settings.Fieldlens.Credential(),
		Mappings:   b.mappings,
		ProjectRef: settings.Fieldlens.ProjectID,
	}, flOpts...)
	if err != nil {
		return nil, fmt.Errorf("creating fieldlens client: %w", err)
	}
	providers = append(providers, fl)

	return providers, nil
}

// logResults logs one line per provider result in provider id order.
func logResults(logger *slog.Logger, results map[string]*sync.Result) {
	ids := make([]string, 0, len(results))
	for id := range results {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	for _, id := range ids {
		r := results[id]
		attrs := []any{
			"provider", id,
			"status", r.Status,
			"imported", r.Imported,
			"exported", r.Exported,
			"errors", len(r.Errors),
			"duration", r.Duration,
		}
		if r.Message != "" {
			attrs = append(attrs, "message", r.Message)
		}
		logger.Info("provider sync result", attrs...)
	}
}
