package sync

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/peteski22/sitebridge/internal/provider"
	"github.com/peteski22/sitebridge/internal/record"
)

// dryRunProvider wraps a Provider and logs exports instead of sending them.
type dryRunProvider struct {
	Provider

	logger *slog.Logger
}

// newDryRunProvider creates a dryRunProvider that wraps the given Provider.
func newDryRunProvider(p Provider, logger *slog.Logger) *dryRunProvider {
	return &dryRunProvider{
		Provider: p,
		logger:   logger.With("provider", p.ID()),
	}
}

// SyncOut logs what would be exported and reports every record as succeeded.
func (d *dryRunProvider) SyncOut(
	_ context.Context,
	t record.Type,
	records []record.Record,
	projectRef string,
) (*provider.ExportResult, error) {
	for _, rec := range records {
		d.logger.Info("[DRY-RUN] would export record",
			"record_type", t,
			"record_id", rec.ID,
			"project_ref", projectRef,
			"fields", len(rec.Fields))
	}

	return &provider.ExportResult{Succeeded: len(records)}, nil
}

// dryRunRepository wraps a Repository and logs saves instead of performing them.
type dryRunRepository struct {
	counter uint64
	logger  *slog.Logger
	repo    Repository
}

// newDryRunRepository creates a dryRunRepository that wraps the given Repository.
func newDryRunRepository(repo Repository, logger *slog.Logger) *dryRunRepository {
	return &dryRunRepository{
		logger: logger,
		repo:   repo,
	}
}

// PendingExport delegates to the real repository.
func (d *dryRunRepository) PendingExport(ctx context.Context, t record.Type) ([]record.Record, error) {
	return d.repo.PendingExport(ctx, t)
}

// SaveImported logs what would be saved.
func (d *dryRunRepository) SaveImported(_ context.Context, t record.Type, rec record.Record) error {
	d.logger.Info("[DRY-RUN] would save imported record",
		"seq", d.nextSeq(),
		"record_type", t,
		"record_id", rec.ID)

	return nil
}

// nextSeq numbers dry-run saves across concurrent provider cycles.
func (d *dryRunRepository) nextSeq() string {
	n := atomic.AddUint64(&d.counter, 1)
	return fmt.Sprintf("dry-run-%d", n)
}

// dryRunStateStore reads real sync state and logs writes instead of performing them.
type dryRunStateStore struct {
	logger *slog.Logger
	store  StateStore
}

// LastSyncTime delegates to the real store.
func (d *dryRunStateStore) LastSyncTime(ctx context.Context, provider string) (time.Time, error) {
	return d.store.LastSyncTime(ctx, provider)
}

// SetLastSyncTime logs what would be stored.
func (d *dryRunStateStore) SetLastSyncTime(_ context.Context, provider string, t time.Time) error {
	d.logger.Info("[DRY-RUN] would update last sync time", "provider", provider, "time", t)
	return nil
}
