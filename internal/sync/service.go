package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	gosync "sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/peteski22/sitebridge/internal/record"
)

// Config holds the required configuration for creating a Service.
type Config struct {
	// Concurrency limits how many providers sync at once when Parallel is set. Zero means no limit.
	Concurrency int

	// DryRun indicates exports and persistence writes are logged instead of performed.
	DryRun bool

	// Logger is the structured logger for the service.
	Logger *slog.Logger

	// Parallel runs providers concurrently. Each provider still serializes its own calls.
	Parallel bool

	// Providers are the configured platform clients, in reporting order.
	Providers []Provider

	// Recorder optionally observes every provider cycle.
	Recorder Recorder

	// Repository stores imported records and supplies pending exports.
	Repository Repository

	// SinceOverride optionally overrides every provider's last sync time.
	SinceOverride *time.Time

	// StateStore manages sync state persistence.
	StateStore StateStore
}

// validate checks that all required Config fields are set.
func (c *Config) validate() error {
	var errs []error
	if len(c.Providers) == 0 {
		errs = append(errs, errors.New("at least one provider is required"))
	}
	seen := make(map[string]struct{}, len(c.Providers))
	for i, p := range c.Providers {
		if p == nil {
			errs = append(errs, fmt.Errorf("provider %d is nil", i))
			continue
		}
		if _, dup := seen[p.ID()]; dup {
			errs = append(errs, fmt.Errorf("duplicate provider: %s", p.ID()))
		}
		seen[p.ID()] = struct{}{}
	}
	if c.Repository == nil {
		errs = append(errs, errors.New("repository is required"))
	}
	if c.StateStore == nil {
		errs = append(errs, errors.New("state store is required"))
	}
	if c.Concurrency < 0 {
		errs = append(errs, errors.New("concurrency cannot be negative"))
	}
	return errors.Join(errs...)
}

// Service runs sync cycles across every configured provider.
type Service struct {
	concurrency   int
	dryRun        bool
	lastResults   map[string]*Result
	lastSuccess   map[string]time.Time
	logger        *slog.Logger
	mu            gosync.Mutex
	parallel      bool
	providers     []Provider
	recorder      Recorder
	repo          Repository
	sinceOverride *time.Time
	stateStore    StateStore
}

// New creates a new sync orchestration service.
func New(cfg Config) (*Service, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	providers := cfg.Providers
	repo := cfg.Repository
	stateStore := cfg.StateStore
	if cfg.DryRun {
		providers = make([]Provider, len(cfg.Providers))
		for i, p := range cfg.Providers {
			providers[i] = newDryRunProvider(p, logger)
		}
		repo = newDryRunRepository(cfg.Repository, logger)
		stateStore = &dryRunStateStore{logger: logger, store: cfg.StateStore}
	}

	return &Service{
		concurrency:   cfg.Concurrency,
		dryRun:        cfg.DryRun,
		lastResults:   make(map[string]*Result, len(providers)),
		lastSuccess:   make(map[string]time.Time, len(providers)),
		logger:        logger,
		parallel:      cfg.Parallel,
		providers:     providers,
		recorder:      cfg.Recorder,
		repo:          repo,
		sinceOverride: cfg.SinceOverride,
		stateStore:    stateStore,
	}, nil
}

// RunCycle synchronizes every provider once and returns the results keyed by provider identifier.
// One provider's failure never stops the others.
func (s *Service) RunCycle(ctx context.Context) map[string]*Result {
	s.logger.Info("starting sync cycle",
		"providers", len(s.providers),
		"parallel", s.parallel,
		"dry_run", s.dryRun)

	results := make([]*Result, len(s.providers))

	if s.parallel {
		var g errgroup.Group
		if s.concurrency > 0 {
			g.SetLimit(s.concurrency)
		}
		for i, p := range s.providers {
			g.Go(func() error {
				results[i] = s.runProvider(ctx, p)
				return nil
			})
		}
		_ = g.Wait()
	} else {
		for i, p := range s.providers {
			results[i] = s.runProvider(ctx, p)
		}
	}

	byProvider := make(map[string]*Result, len(results))
	for _, r := range results {
		byProvider[r.Provider] = r
	}

	finished := time.Now().UTC()
	s.mu.Lock()
	for id, r := range byProvider {
		s.lastResults[id] = r
		if r.Status == StatusSuccess {
			s.lastSuccess[id] = finished
		}
	}
	s.mu.Unlock()

	s.logCycleComplete(results)
	return byProvider
}

// Status checks every provider's connection and computes the overall health.
func (s *Service) Status(ctx context.Context) IntegrationStatus {
	return s.status(ctx, true)
}

// Report computes the integration status and recommends configuration changes.
func (s *Service) Report(ctx context.Context) Report {
	return s.report(s.status(ctx, true))
}

// Snapshot reports the integration status without contacting any provider.
// Connected reflects the provider's credentials and the connection check of its last cycle in this process.
func (s *Service) Snapshot(ctx context.Context) Report {
	return s.report(s.status(ctx, false))
}

// status computes the integration status. When live is false no provider is contacted.
func (s *Service) status(ctx context.Context, live bool) IntegrationStatus {
	status := IntegrationStatus{
		CheckedAt:      time.Now().UTC(),
		Providers:      make(map[string]ProviderStatus, len(s.providers)),
		TotalProviders: len(s.providers),
	}

	s.mu.Lock()
	last := make(map[string]Result, len(s.lastResults))
	for id, r := range s.lastResults {
		last[id] = *r
	}
	lastSuccess := make(map[string]time.Time, len(s.lastSuccess))
	for id, t := range s.lastSuccess {
		lastSuccess[id] = t
	}
	s.mu.Unlock()

	for _, p := range s.providers {
		prev := last[p.ID()]
		ps := ProviderStatus{
			LastStatus: prev.Status,
			Name:       p.Name(),
		}
		if t, ok := lastSuccess[p.ID()]; ok {
			ps.LastSuccess = &t
		}

		if msg := connectionMessage(ctx, p, live, prev); msg != "" {
			ps.Message = msg
		} else {
			ps.Connected = true
			status.ActiveConnections++
		}

		lastSync, err := s.stateStore.LastSyncTime(ctx, p.ID())
		if err != nil {
			s.logger.Warn("failed to read last sync time", "provider", p.ID(), "error", err)
		} else if !lastSync.IsZero() {
			ps.LastSync = &lastSync
			if status.LastSync == nil || lastSync.After(*status.LastSync) {
				status.LastSync = &lastSync
			}
		}

		status.Providers[p.ID()] = ps
	}

	status.Health = HealthFor(status.ActiveConnections, status.TotalProviders)
	return status
}

// connectionMessage explains why p is not connected, or returns an empty string when it is.
// When live is false the connection check of the previous cycle stands in for a new one.
func connectionMessage(ctx context.Context, p Provider, live bool, prev Result) string {
	if err := p.Configured(); err != nil {
		return err.Error()
	}
	if !live {
		if prev.Message == reasonConnectionFailed {
			return reasonConnectionFailed
		}
		return ""
	}
	if err := p.CheckConnection(ctx); err != nil {
		return fmt.Sprintf("%s: %v", reasonConnectionFailed, err)
	}
	return ""
}

// report adds recommendations to status.
func (s *Service) report(status IntegrationStatus) Report {
	return Report{
		GeneratedAt:     status.CheckedAt,
		Recommendations: s.recommendations(status),
		Status:          status,
	}
}

// recommendations suggests configuration changes for the given status.
func (s *Service) recommendations(status IntegrationStatus) []string {
	recs := []string{}

	if status.ActiveConnections == 0 {
		recs = append(recs, "Configure API credentials for at least one platform to enable data synchronization")
	}

	for _, p := range s.providers {
		if !status.Providers[p.ID()].Connected {
			recs = append(recs, fmt.Sprintf("Configure %s API credentials to enable integration", p.Name()))
		}
	}

	if status.ActiveConnections < status.TotalProviders {
		recs = append(recs, "Consider enabling additional platform integrations for comprehensive data coverage")
	}

	return recs
}

// runProvider runs one provider's cycle: connection check, import, then export.
func (s *Service) runProvider(ctx context.Context, p Provider) *Result {
	start := time.Now()
	logger := s.logger.With("provider", p.ID())
	result := &Result{
		DryRun:   s.dryRun,
		Provider: p.ID(),
	}
	defer func() {
		result.Duration = time.Since(start)
		if s.recorder != nil {
			s.recorder.RecordResult(result)
		}
	}()

	if err := ctx.Err(); err != nil {
		result.Status = StatusError
		result.Message = err.Error()
		result.Errors = append(result.Errors, err)
		return result
	}

	if err := p.Configured(); err != nil {
		logger.Info("skipping provider", "reason", reasonMissingCreds, "error", err)
		result.Status = StatusSkipped
		result.Message = reasonMissingCreds
		result.Errors = append(result.Errors, err)
		return result
	}

	projectRef := p.ProjectRef()
	if projectRef == "" {
		logger.Info("skipping provider", "reason", reasonNoProjectRef)
		result.Status = StatusSkipped
		result.Message = reasonNoProjectRef
		return result
	}

	if err := p.CheckConnection(ctx); err != nil {
		logger.Error("connection check failed", "error", err)
		result.Status = StatusError
		result.Message = reasonConnectionFailed
		result.Errors = append(result.Errors, err)
		return result
	}

	failed := false

	since := s.since(ctx, logger, p.ID())
	if !s.importRecords(ctx, logger, p, projectRef, since, result) {
		failed = true
	}
	if !s.exportRecords(ctx, logger, p, projectRef, result) {
		failed = true
	}

	if failed {
		result.Status = StatusError
		result.Message = fmt.Sprintf("sync completed with %d errors", len(result.Errors))
		return result
	}

	result.Status = StatusSuccess
	if err := s.stateStore.SetLastSyncTime(ctx, p.ID(), start); err != nil {
		logger.Error("failed to update last sync time", "error", err)
		result.Errors = append(result.Errors, fmt.Errorf("updating last sync time: %w", err))
	}

	return result
}

// importRecords pulls every import type and saves the records. It reports whether all steps succeeded.
func (s *Service) importRecords(
	ctx context.Context,
	logger *slog.Logger,
	p Provider,
	projectRef string,
	since time.Time,
	result *Result,
) bool {
	types := p.ImportTypes()
	if len(types) == 0 {
		return true
	}

	ok := true
	imported, err := p.SyncIn(ctx, types, projectRef, since)
	if err != nil {
		ok = false
		result.Errors = append(result.Errors, fmt.Errorf("importing: %w", err))
	}

	result.Imported = make(map[record.Type]int, len(types))
	for _, t := range types {
		saved := 0
		for _, rec := range imported[t] {
			if err := s.repo.SaveImported(ctx, t, rec); err != nil {
				logger.Error("failed to save imported record",
					"record_type", t,
					"record_id", rec.ID,
					"error", err)
				ok = false
				result.Errors = append(result.Errors, fmt.Errorf("saving %s %s: %w", t, rec.ID, err))
				continue
			}
			saved++
		}
		result.Imported[t] = saved
	}

	logger.Info("import completed", "imported", result.Imported)
	return ok
}

// exportRecords pushes pending records of every export type. Per-record failures are counted, not fatal.
func (s *Service) exportRecords(
	ctx context.Context,
	logger *slog.Logger,
	p Provider,
	projectRef string,
	result *Result,
) bool {
	types := p.ExportTypes()
	if len(types) == 0 {
		return true
	}

	ok := true
	result.Exported = make(map[record.Type]ExportCount, len(types))

	for _, t := range types {
		if err := ctx.Err(); err != nil {
			result.Errors = append(result.Errors, err)
			return false
		}

		pending, err := s.repo.PendingExport(ctx, t)
		if err != nil {
			logger.Error("failed to read pending exports", "record_type", t, "error", err)
			ok = false
			result.Errors = append(result.Errors, fmt.Errorf("reading pending %s: %w", t, err))
			continue
		}
		if len(pending) == 0 {
			result.Exported[t] = ExportCount{}
			continue
		}

		res, err := p.SyncOut(ctx, t, pending, projectRef)
		if res != nil {
			result.Exported[t] = ExportCount{Failed: res.Failed, Succeeded: res.Succeeded}
			result.Errors = append(result.Errors, res.Errors...)
		}
		if err != nil {
			logger.Error("export failed", "record_type", t, "error", err)
			ok = false
			result.Errors = append(result.Errors, fmt.Errorf("exporting %s: %w", t, err))
		}
	}

	logger.Info("export completed", "exported", result.Exported)
	return ok
}

// since returns the time imports for the provider start from. A zero time imports everything.
func (s *Service) since(ctx context.Context, logger *slog.Logger, providerID string) time.Time {
	if s.sinceOverride != nil {
		logger.Info("using override sync time", "since", *s.sinceOverride)
		return *s.sinceOverride
	}

	since, err := s.stateStore.LastSyncTime(ctx, providerID)
	if err != nil {
		logger.Warn("failed to read last sync time, importing everything", "error", err)
		return time.Time{}
	}
	if since.IsZero() {
		logger.Info("initial sync detected")
	}

	return since
}

// logCycleComplete logs the cycle summary.
func (s *Service) logCycleComplete(results []*Result) {
	counts := make(map[Status]int, 3)
	for _, r := range results {
		counts[r.Status]++
	}

	s.logger.Info("sync cycle completed",
		"success", counts[StatusSuccess],
		"error", counts[StatusError],
		"skipped", counts[StatusSkipped],
		"dry_run", s.dryRun)
}
