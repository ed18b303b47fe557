package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/peteski22/sitebridge/internal/record"
)

func TestMemoryRecordStore(t *testing.T) {
	t.Parallel()

	store := NewMemoryRecordStore()
	ctx := context.Background()

	rfi := record.New(record.TypeRFI, "rfi-1")
	rfi.Fields[record.FieldSubject] = "Beam depth at grid C4"
	require.NoError(t, store.Stage(ctx, rfi))

	issue := record.New(record.TypeIssue, "issue-1")
	require.NoError(t, store.SaveImported(ctx, record.TypeIssue, issue))

	pending, err := store.PendingExport(ctx, record.TypeRFI)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, "Beam depth at grid C4", pending[0].Fields[record.FieldSubject])

	pending, err = store.PendingExport(ctx, record.TypeIssue)
	require.NoError(t, err)
	require.Empty(t, pending)

	// Re-importing a staged record keeps it pending.
	rfi.Fields[record.FieldStatus] = "closed"
	require.NoError(t, store.SaveImported(ctx, record.TypeRFI, rfi))
	pending, err = store.PendingExport(ctx, record.TypeRFI)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, "closed", pending[0].Fields[record.FieldStatus])

	// Returned records are copies.
	pending[0].Fields[record.FieldSubject] = "changed"
	got, ok := store.Get("rfi-1")
	require.True(t, ok)
	require.Equal(t, "Beam depth at grid C4", got.Fields[record.FieldSubject])

	require.NoError(t, store.AttachExternalMapping(ctx, "rfi-1", "procore", "9001"))
	ext, ok := store.ExternalID("rfi-1", "procore")
	require.True(t, ok)
	require.Equal(t, "9001", ext)
	require.Error(t, store.AttachExternalMapping(ctx, "missing", "procore", "1"))

	require.Equal(t, 2, store.Len())
	require.Equal(t, []string{"rfi-1", "issue-1"}, store.IDs())
	require.Error(t, store.Stage(ctx, record.Record{Type: record.TypeRFI}))
}
