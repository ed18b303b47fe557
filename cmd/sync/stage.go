package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/peteski22/sitebridge/internal/record"
)

// stagedRecord is one entry of a staging file.
type stagedRecord struct {
	// Fields holds the record's values keyed by internal field name.
	Fields map[string]any `json:"fields"`

	// ID is the internal record identifier.
	ID string `json:"id"`

	// Type is the record type name.
	Type string `json:"type"`
}

// readStagingFile parses a JSON array of records to export.
func readStagingFile(path string) ([]record.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading staging file: %w", err)
	}

	var staged []stagedRecord
	if err := json.Unmarshal(data, &staged); err != nil {
		return nil, fmt.Errorf("parsing staging file: %w", err)
	}

	var errs []error
	records := make([]record.Record, 0, len(staged))
	for i, s := range staged {
		t, err := record.ParseType(s.Type)
		if err != nil {
			errs = append(errs, fmt.Errorf("record %d: %w", i, err))
			continue
		}
		if s.ID == "" {
			errs = append(errs, fmt.Errorf("record %d: id is required", i))
			continue
		}
		rec := record.New(t, s.ID)
		for k, v := range s.Fields {
			rec.Fields[k] = v
		}
		records = append(records, rec)
	}
	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("invalid staging file: %w", err)
	}

	return records, nil
}

// stageRecords marks every record in the staging file for export in repo.
func stageRecords(
	ctx context.Context,
	repo recordRepository,
	path string,
	dryRun bool,
	logger *slog.Logger,
) (int, error) {
	records, err := readStagingFile(path)
	if err != nil {
		return 0, err
	}

	for _, rec := range records {
		if dryRun {
			logger.Info("[DRY-RUN] would stage record", "record_id", rec.ID, "type", rec.Type)
			continue
		}
		if err := repo.Stage(ctx, rec); err != nil {
			return 0, fmt.Errorf("staging record %s: %w", rec.ID, err)
		}
	}

	logger.Info("staged records for export", "count", len(records), "dry_run", dryRun)
	return len(records), nil
}
