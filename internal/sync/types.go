// Package sync orchestrates synchronization cycles across construction platforms.
package sync

import (
	"context"
	"time"

	"github.com/peteski22/sitebridge/internal/provider"
	"github.com/peteski22/sitebridge/internal/record"
)

// Status is the outcome of one provider's sync cycle.
type Status string

const (
	// StatusError means the provider was reachable but the cycle failed, or the connection check failed.
	StatusError Status = "error"

	// StatusSkipped means the provider was not attempted.
	StatusSkipped Status = "skipped"

	// StatusSuccess means import and export ran to completion.
	StatusSuccess Status = "success"
)

// Health summarizes how many providers are connected.
type Health string

const (
	// HealthCritical means no provider is connected.
	HealthCritical Health = "critical"

	// HealthHealthy means at least half of the providers are connected.
	HealthHealthy Health = "healthy"

	// HealthWarning means fewer than half of the providers are connected.
	HealthWarning Health = "warning"
)

// Skip and failure reasons reported in Result.Message.
const (
	reasonConnectionFailed = "connection failed"
	reasonMissingCreds     = "missing credentials"
	reasonNoProjectRef     = "no project reference"
)

// Provider is a configured platform client.
type Provider interface {
	// CheckConnection authenticates and probes the provider.
	CheckConnection(ctx context.Context) error

	// Configured returns an error naming missing credential fields.
	Configured() error

	// ExportTypes returns the record types pushed to the provider.
	ExportTypes() []record.Type

	// ID returns the provider identifier.
	ID() string

	// ImportTypes returns the record types pulled from the provider.
	ImportTypes() []record.Type

	// Name returns the provider display name.
	Name() string

	// ProjectRef returns the configured project reference.
	ProjectRef() string

	// SyncIn lists records of the given types changed since the given time.
	SyncIn(
		ctx context.Context,
		types []record.Type,
		projectRef string,
		since time.Time,
	) (map[record.Type][]record.Record, error)

	// SyncOut creates or updates records at the provider.
	SyncOut(
		ctx context.Context,
		t record.Type,
		records []record.Record,
		projectRef string,
	) (*provider.ExportResult, error)
}

// Repository is the persistence collaborator holding internal records.
type Repository interface {
	// PendingExport returns records of type t waiting to be pushed to providers.
	PendingExport(ctx context.Context, t record.Type) ([]record.Record, error)

	// SaveImported stores a record pulled from a provider.
	SaveImported(ctx context.Context, t record.Type, rec record.Record) error
}

// StateStore persists per-provider sync state.
type StateStore interface {
	// LastSyncTime returns the time of the provider's last successful sync.
	LastSyncTime(ctx context.Context, provider string) (time.Time, error)

	// SetLastSyncTime updates the provider's last successful sync time.
	SetLastSyncTime(ctx context.Context, provider string, t time.Time) error
}

// Recorder receives the outcome of every provider cycle.
type Recorder interface {
	// RecordResult observes a finished provider cycle.
	RecordResult(result *Result)
}

// ExportCount counts the outcome of exporting one record type.
type ExportCount struct {
	// Failed counts records that could not be exported.
	Failed int `json:"failed"`

	// Succeeded counts records created or updated at the provider.
	Succeeded int `json:"succeeded"`
}

// Result contains the outcome of one provider's sync cycle.
type Result struct {
	// DryRun indicates exports were logged instead of sent.
	DryRun bool `json:"dry_run"`

	// Duration is how long the cycle took.
	Duration time.Duration `json:"duration"`

	// Errors holds the failures collected during the cycle.
	Errors []error `json:"-"`

	// Exported counts exported records by type.
	Exported map[record.Type]ExportCount `json:"exported,omitempty"`

	// Imported counts imported records by type.
	Imported map[record.Type]int `json:"imported,omitempty"`

	// Message explains a skipped or failed cycle.
	Message string `json:"message,omitempty"`

	// Provider is the provider identifier.
	Provider string `json:"provider"`

	// Status is the cycle outcome.
	Status Status `json:"status"`
}

// ProviderStatus is the connection state of one provider.
type ProviderStatus struct {
	// Connected indicates the provider is configured and reachable.
	Connected bool `json:"connected"`

	// LastStatus is the status of the provider's most recent cycle in this process.
	LastStatus Status `json:"last_status,omitempty"`

	// LastSuccess is when the provider's most recent successful cycle in this process finished.
	LastSuccess *time.Time `json:"last_success,omitempty"`

	// LastSync is the time of the provider's last successful sync.
	LastSync *time.Time `json:"last_sync,omitempty"`

	// Message explains why the provider is not connected.
	Message string `json:"message,omitempty"`

	// Name is the provider display name.
	Name string `json:"name"`
}

// IntegrationStatus aggregates the connection state of every provider.
type IntegrationStatus struct {
	// ActiveConnections counts connected providers.
	ActiveConnections int `json:"active_connections"`

	// CheckedAt is when the status was computed.
	CheckedAt time.Time `json:"checked_at"`

	// Health is the overall health.
	Health Health `json:"overall_health"`

	// LastSync is the most recent successful sync across all providers.
	LastSync *time.Time `json:"last_sync,omitempty"`

	// Providers holds the per-provider state keyed by provider identifier.
	Providers map[string]ProviderStatus `json:"platforms"`

	// TotalProviders counts every provider, configured or not.
	TotalProviders int `json:"total_integrations"`
}

// Report is the integration status plus recommendations.
type Report struct {
	// GeneratedAt is when the report was produced.
	GeneratedAt time.Time `json:"generated_at"`

	// Recommendations lists suggested configuration changes.
	Recommendations []string `json:"recommendations"`

	// Status is the integration status the report is based on.
	Status IntegrationStatus `json:"integration_summary"`
}

// HealthFor returns the overall health for connected out of total providers.
func HealthFor(connected int, total int) Health {
	switch {
	case connected == 0:
		return HealthCritical
	case connected*2 < total:
		return HealthWarning
	default:
		return HealthHealthy
	}
}
