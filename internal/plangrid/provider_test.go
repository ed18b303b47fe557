package plangrid

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/peteski22/sitebridge/internal/apierr"
	"github.com/peteski22/sitebridge/internal/auth"
	"github.com/peteski22/sitebridge/internal/connect"
	"github.com/peteski22/sitebridge/internal/executor"
	"github.com/peteski22/sitebridge/internal/record"
	"github.com/peteski22/sitebridge/internal/storage"
)

func newTestServer(t *testing.T, probes *atomic.Int32) *httptest.Server {
	t.Helper()

	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Token pg-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		switch {
		case r.URL.Path == "/user":
			probes.Add(1)
			_, _ = w.Write([]byte(`{"id": "u-1"}`))
		case r.URL.Path == "/projects/p-5/sheets" && r.URL.Query().Get("skip") == "":
			_, _ = w.Write([]byte(`{"data": [{"id": "sh-1", "name": "A-101"}], "next_page_url": "` + server.URL + `/projects/p-5/sheets?skip=1"}`))
		case r.URL.Path == "/projects/p-5/sheets" && r.URL.Query().Get("skip") == "1":
			_, _ = w.Write([]byte(`{"data": [{"id": "sh-2", "name": "A-102"}], "next_page_url": null}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func TestClient_APIKeyAndNextURL(t *testing.T) {
	t.Parallel()

	var probes atomic.Int32
	server := newTestServer(t, &probes)

	client, err := New(Config{
		Credential: auth.Credential{APIKey: "pg-key"},
		Mappings:   storage.NewMemoryMappingStore(),
		ProjectRef: "p-5",
	},
		connect.WithBaseURL(server.URL),
		connect.WithPolicy(executor.Policy{Sleep: func(context.Context, time.Duration) error { return nil }}),
	)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, client.CheckConnection(ctx))

	got, err := client.SyncIn(ctx, []record.Type{record.TypeDrawing}, "p-5", time.Time{})
	require.NoError(t, err)
	require.Len(t, got[record.TypeDrawing], 2)
	require.Equal(t, "A-102", got[record.TypeDrawing][1].String(record.FieldName))
	require.Equal(t, int32(2), probes.Load())
}

func TestClient_RejectedKey(t *testing.T) {
	t.Parallel()

	var probes atomic.Int32
	server := newTestServer(t, &probes)

	client, err := New(Config{
		Credential: auth.Credential{APIKey: "wrong"},
		Mappings:   storage.NewMemoryMappingStore(),
		ProjectRef: "p-5",
	},
		connect.WithBaseURL(server.URL),
		connect.WithPolicy(executor.Policy{Sleep: func(context.Context, time.Duration) error { return nil }}),
	)
	require.NoError(t, err)

	err = client.CheckConnection(context.Background())
	require.Error(t, err)
	require.Equal(t, apierr.KindAuthentication, apierr.KindOf(err))
	require.Zero(t, probes.Load())
}

func TestClient_NotConfigured(t *testing.T) {
	t.Parallel()

	client, err := New(Config{Mappings: storage.NewMemoryMappingStore()})
	require.NoError(t, err)
	require.EqualError(t, client.Configured(), "missing credentials: api_key")
}
