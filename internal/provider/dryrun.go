package provider

import (
	"context"
	"log/slog"

	"github.com/peteski22/sitebridge/internal/record"
)

// dryRunMappings reads through to the real mapping store and logs writes instead of performing them.
type dryRunMappings struct {
	MappingStore

	// logger is the structured logger.
	logger *slog.Logger
}

// Invalidate logs the mapping that would be removed.
func (m *dryRunMappings) Invalidate(ctx context.Context, mapping record.Mapping) error {
	m.logger.InfoContext(ctx, "[DRY-RUN] would invalidate mapping",
		"record_type", mapping.Type,
		"internal_id", mapping.InternalID,
		"external_id", mapping.ExternalID)
	return nil
}

// Put logs the mapping that would be stored.
func (m *dryRunMappings) Put(ctx context.Context, mapping record.Mapping) error {
	m.logger.InfoContext(ctx, "[DRY-RUN] would store mapping",
		"record_type", mapping.Type,
		"internal_id", mapping.InternalID,
		"external_id", mapping.ExternalID)
	return nil
}

// dryRunLinker logs external id attachments instead of performing them.
type dryRunLinker struct {
	// logger is the structured logger.
	logger *slog.Logger
}

// AttachExternalMapping logs the link that would be recorded.
func (l dryRunLinker) AttachExternalMapping(ctx context.Context, internalID string, _ string, externalID string) error {
	l.logger.InfoContext(ctx, "[DRY-RUN] would attach external mapping",
		"internal_id", internalID,
		"external_id", externalID)
	return nil
}
