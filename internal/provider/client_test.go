package provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/peteski22/sitebridge/internal/apierr"
	"github.com/peteski22/sitebridge/internal/executor"
	"github.com/peteski22/sitebridge/internal/record"
	"github.com/peteski22/sitebridge/internal/transform"
)

type response struct {
	body string
	err  error
}

// fakeRequester answers requests keyed by "METHOD path", consuming scripted responses in order.
type fakeRequester struct {
	mu        sync.Mutex
	requests  []executor.Request
	responses map[string][]response
}

func newFakeRequester() *fakeRequester {
	return &fakeRequester{responses: make(map[string][]response)}
}

func (f *fakeRequester) on(method string, path string, responses ...response) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := method + " " + path
	f.responses[key] = append(f.responses[key], responses...)
}

func (f *fakeRequester) Do(_ context.Context, req executor.Request) (json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.requests = append(f.requests, req)
	key := req.Method + " " + req.Path
	queue := f.responses[key]
	if len(queue) == 0 {
		return nil, &apierr.RequestError{Method: req.Method, Path: req.Path, Provider: "test", StatusCode: http.StatusTeapot}
	}
	next := queue[0]
	if len(queue) > 1 {
		f.responses[key] = queue[1:]
	}
	if next.err != nil {
		return nil, next.err
	}
	return json.RawMessage(next.body), nil
}

func (f *fakeRequester) sent() []executor.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]executor.Request, len(f.requests))
	copy(out, f.requests)
	return out
}

type fakeSession struct {
	configured error
	valid      bool
}

func (f *fakeSession) Configured() error {
	return f.configured
}

func (f *fakeSession) EnsureValid(_ context.Context) bool {
	return f.valid
}

// mapStore is an in-memory MappingStore keyed by provider, type and id.
type mapStore struct {
	mu         sync.Mutex
	byExternal map[string]string
	byInternal map[string]string
}

func newMapStore() *mapStore {
	return &mapStore{byExternal: make(map[string]string), byInternal: make(map[string]string)}
}

func key(provider string, t record.Type, id string) string {
	return provider + "|" + string(t) + "|" + id
}

func (s *mapStore) Invalidate(_ context.Context, m record.Mapping) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byExternal, key(m.Provider, m.Type, m.ExternalID))
	delete(s.byInternal, key(m.Provider, m.Type, m.InternalID))
	return nil
}

func (s *mapStore) LookupExternal(_ context.Context, provider string, t record.Type, internalID string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byInternal[key(provider, t, internalID)]
	return id, ok, nil
}

func (s *mapStore) LookupInternal(_ context.Context, provider string, t record.Type, externalID string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byExternal[key(provider, t, externalID)]
	return id, ok, nil
}

func (s *mapStore) Put(_ context.Context, m record.Mapping) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byExternal[key(m.Provider, m.Type, m.ExternalID)] = m.InternalID
	s.byInternal[key(m.Provider, m.Type, m.InternalID)] = m.ExternalID
	return nil
}

type linkCall struct {
	externalID string
	internalID string
	providerID string
}

type fakeLinker struct {
	mu    sync.Mutex
	calls []linkCall
	err   error
}

func (f *fakeLinker) AttachExternalMapping(_ context.Context, internalID string, providerID string, externalID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, linkCall{externalID: externalID, internalID: internalID, providerID: providerID})
	return f.err
}

// issueTransformer maps issues as {"id":..,"title":..}.
type issueTransformer struct{}

func (issueTransformer) ToExternal(t record.Type, rec record.Record) (any, error) {
	if t != record.TypeIssue {
		return nil, transform.Unsupported("acme", t)
	}
	if err := transform.Require("acme", rec, record.FieldSubject); err != nil {
		return nil, err
	}
	return map[string]any{"title": rec.String(record.FieldSubject)}, nil
}

func (issueTransformer) FromExternal(t record.Type, raw json.RawMessage) (record.Record, string, error) {
	if t != record.TypeIssue {
		return record.Record{}, "", transform.Unsupported("acme", t)
	}
	var wire struct {
		ID    transform.ID `json:"id"`
		Title string       `json:"title"`
	}
	if err := transform.Decode("acme", t, raw, &wire); err != nil {
		return record.Record{}, "", err
	}
	rec := record.New(t, "")
	rec.Set(record.FieldSubject, wire.Title)
	return rec, string(wire.ID), nil
}

func testDefinition(pages Paginator) Definition {
	return Definition{
		Endpoints: map[record.Type]Endpoint{
			record.TypeIssue: {
				Create: "/projects/{project}/issues",
				List:   "/projects/{project}/issues",
				Update: "/projects/{project}/issues/{id}",
			},
		},
		Export:      []record.Type{record.TypeIssue},
		ID:          "acme",
		Import:      []record.Type{record.TypeIssue},
		Name:        "Acme Field",
		Pages:       pages,
		ProbePath:   "/me",
		SinceParam:  "updated_since",
		Transformer: issueTransformer{},
	}
}

func newTestClient(t *testing.T, requester *fakeRequester, store *mapStore, opts ...Option) *Client {
	t.Helper()

	c, err := NewClient(Config{
		Definition: testDefinition(SinglePage{}),
		Mappings:   store,
		ProjectRef: "p1",
		Requester:  requester,
		Session:    &fakeSession{valid: true},
	}, opts...)
	require.NoError(t, err)
	return c
}

func TestNewClient(t *testing.T) {
	t.Parallel()

	valid := Config{
		Definition: testDefinition(SinglePage{}),
		Mappings:   newMapStore(),
		Requester:  newFakeRequester(),
		Session:    &fakeSession{},
	}

	tests := map[string]struct {
		cfg     func() Config
		errMsg  string
		opts    []Option
		wantErr bool
	}{
		"valid config": {
			cfg: func() Config { return valid },
		},
		"missing requester": {
			cfg: func() Config {
				c := valid
				c.Requester = nil
				return c
			},
			wantErr: true,
			errMsg:  "requester is required",
		},
		"missing mapping store": {
			cfg: func() Config {
				c := valid
				c.Mappings = nil
				return c
			},
			wantErr: true,
			errMsg:  "mapping store is required",
		},
		"type without endpoint": {
			cfg: func() Config {
				c := valid
				c.Definition.Import = []record.Type{record.TypeIssue, record.TypeDrawing}
				return c
			},
			wantErr: true,
			errMsg:  "no endpoint for record type drawing",
		},
		"missing transformer": {
			cfg: func() Config {
				c := valid
				c.Definition.Transformer = nil
				return c
			},
			wantErr: true,
			errMsg:  "transformer is required",
		},
		"nil logger option": {
			cfg:     func() Config { return valid },
			opts:    []Option{WithLogger(nil)},
			wantErr: true,
			errMsg:  "logger cannot be nil",
		},
		"nil linker option": {
			cfg:     func() Config { return valid },
			opts:    []Option{WithLinker(nil)},
			wantErr: true,
			errMsg:  "linker cannot be nil",
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			c, err := NewClient(tc.cfg(), tc.opts...)

			if tc.wantErr {
				require.Error(t, err)
				require.Contains(t, err.Error(), tc.errMsg)
				require.Nil(t, c)
			} else {
				require.NoError(t, err)
				require.Equal(t, "acme", c.ID())
				require.Equal(t, "Acme Field", c.Name())
				require.Equal(t, []record.Type{record.TypeIssue}, c.ImportTypes())
				require.Equal(t, []record.Type{record.TypeIssue}, c.ExportTypes())
			}
		})
	}
}

func TestClient_CheckConnection(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		errMsg   string
		probe    response
		session  *fakeSession
		wantErr  bool
		wantKind apierr.Kind
	}{
		"connected": {
			probe:   response{body: `{"id":1}`},
			session: &fakeSession{valid: true},
		},
		"no valid token": {
			session:  &fakeSession{},
			wantErr:  true,
			wantKind: apierr.KindAuthentication,
		},
		"probe fails": {
			probe:    response{err: &apierr.TransientError{Provider: "acme", StatusCode: 503}},
			session:  &fakeSession{valid: true},
			wantErr:  true,
			wantKind: apierr.KindTransient,
			errMsg:   "probing connection",
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			requester := newFakeRequester()
			requester.on(http.MethodGet, "/me", tc.probe)

			c, err := NewClient(Config{
				Definition: testDefinition(SinglePage{}),
				Mappings:   newMapStore(),
				Requester:  requester,
				Session:    tc.session,
			})
			require.NoError(t, err)

			err = c.CheckConnection(context.Background())

			if tc.wantErr {
				require.Error(t, err)
				require.Equal(t, tc.wantKind, apierr.KindOf(err))
				require.Contains(t, err.Error(), tc.errMsg)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestClient_Configured(t *testing.T) {
	t.Parallel()

	c, err := NewClient(Config{
		Definition: testDefinition(SinglePage{}),
		Mappings:   newMapStore(),
		Requester:  newFakeRequester(),
		Session:    &fakeSession{configured: errors.New("missing credentials: api_key")},
	})
	require.NoError(t, err)
	require.EqualError(t, c.Configured(), "missing credentials: api_key")
}

func TestClient_SyncIn_ReusesMappedIDs(t *testing.T) {
	t.Parallel()

	requester := newFakeRequester()
	page := response{body: `[{"id":7,"title":"Leak at level 3"},{"id":"8","title":"Cracked slab"}]`}
	requester.on(http.MethodGet, "/projects/p1/issues", page, page)
	store := newMapStore()
	c := newTestClient(t, requester, store)

	first, err := c.SyncIn(context.Background(), []record.Type{record.TypeIssue}, "p1", time.Time{})
	require.NoError(t, err)
	require.Len(t, first[record.TypeIssue], 2)

	second, err := c.SyncIn(context.Background(), []record.Type{record.TypeIssue}, "p1", time.Time{})
	require.NoError(t, err)
	require.Len(t, second[record.TypeIssue], 2)

	for i := range first[record.TypeIssue] {
		require.NotEmpty(t, first[record.TypeIssue][i].ID)
		require.Equal(t, first[record.TypeIssue][i].ID, second[record.TypeIssue][i].ID)
		require.Equal(t, record.TypeIssue, second[record.TypeIssue][i].Type)
	}
	require.Equal(t, "Leak at level 3", first[record.TypeIssue][0].String(record.FieldSubject))

	id, found, err := store.LookupExternal(context.Background(), "acme", record.TypeIssue, first[record.TypeIssue][1].ID)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "8", id)
}

func TestClient_SyncIn_Since(t *testing.T) {
	t.Parallel()

	requester := newFakeRequester()
	requester.on(http.MethodGet, "/projects/p1/issues", response{body: `[]`})
	c := newTestClient(t, requester, newMapStore())

	since := time.Date(2025, 3, 1, 8, 0, 0, 0, time.FixedZone("PST", -8*3600))
	_, err := c.SyncIn(context.Background(), []record.Type{record.TypeIssue}, "p1", since)
	require.NoError(t, err)

	sent := requester.sent()
	require.Len(t, sent, 1)
	require.Equal(t, "2025-03-01T16:00:00Z", sent[0].Query.Get("updated_since"))
}

func TestClient_SyncIn_SkipsBadItems(t *testing.T) {
	t.Parallel()

	requester := newFakeRequester()
	requester.on(http.MethodGet, "/projects/p1/issues", response{body: `[{"id":1,"title":"ok"},{"title":"no id"},{"id":{},"title":"bad"}]`})
	c := newTestClient(t, requester, newMapStore())

	got, err := c.SyncIn(context.Background(), []record.Type{record.TypeIssue}, "p1", time.Time{})
	require.NoError(t, err)
	require.Len(t, got[record.TypeIssue], 1)
}

func TestClient_SyncIn_Errors(t *testing.T) {
	t.Parallel()

	t.Run("unsupported type", func(t *testing.T) {
		t.Parallel()

		c := newTestClient(t, newFakeRequester(), newMapStore())
		_, err := c.SyncIn(context.Background(), []record.Type{record.TypeCostCode}, "p1", time.Time{})
		require.Error(t, err)
		require.Equal(t, apierr.KindMapping, apierr.KindOf(err))
	})

	t.Run("failing type does not stop others", func(t *testing.T) {
		t.Parallel()

		requester := newFakeRequester()
		requester.on(http.MethodGet, "/projects/p1/issues", response{body: `[{"id":1,"title":"ok"}]`})
		c := newTestClient(t, requester, newMapStore())

		got, err := c.SyncIn(context.Background(), []record.Type{record.TypeDrawing, record.TypeIssue}, "p1", time.Time{})
		require.Error(t, err)
		require.Contains(t, err.Error(), "importing drawing")
		require.Len(t, got[record.TypeIssue], 1)
	})

	t.Run("cancelled context", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		requester := newFakeRequester()
		c := newTestClient(t, requester, newMapStore())
		_, err := c.SyncIn(ctx, []record.Type{record.TypeIssue}, "p1", time.Time{})
		require.ErrorIs(t, err, context.Canceled)
		require.Empty(t, requester.sent())
	})
}

func TestClient_SyncIn_Pagination(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		pages     Paginator
		responses []response
		want      int
		wantCalls int
	}{
		"page numbers stop on short page": {
			pages: PageNumbers{PageParam: "page", PerPage: 2, PerPageParam: "per_page"},
			responses: []response{
				{body: `[{"id":1},{"id":2}]`},
				{body: `[{"id":3}]`},
			},
			want:      3,
			wantCalls: 2,
		},
		"cursor follows token": {
			pages: Cursor{ItemsKey: "data", TokenKey: "next_page_token", TokenParam: "page_token"},
			responses: []response{
				{body: `{"data":[{"id":1}],"next_page_token":"abc"}`},
				{body: `{"data":[{"id":2}],"next_page_token":""}`},
			},
			want:      2,
			wantCalls: 2,
		},
		"offset stops at total": {
			pages: Offset{ItemsKey: "results", Limit: 2, LimitParam: "limit", OffsetParam: "offset", PaginationKey: "pagination", TotalKey: "totalResults"},
			responses: []response{
				{body: `{"results":[{"id":1},{"id":2}],"pagination":{"totalResults":3}}`},
				{body: `{"results":[{"id":3}],"pagination":{"totalResults":3}}`},
			},
			want:      3,
			wantCalls: 2,
		},
		"single page": {
			pages:     SinglePage{},
			responses: []response{{body: `[{"id":1},{"id":2}]`}},
			want:      2,
			wantCalls: 1,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			requester := newFakeRequester()
			requester.on(http.MethodGet, "/projects/p1/issues", tc.responses...)

			c, err := NewClient(Config{
				Definition: testDefinition(tc.pages),
				Mappings:   newMapStore(),
				Requester:  requester,
				Session:    &fakeSession{valid: true},
			})
			require.NoError(t, err)

			got, err := c.SyncIn(context.Background(), []record.Type{record.TypeIssue}, "p1", time.Time{})
			require.NoError(t, err)
			require.Len(t, got[record.TypeIssue], tc.want)
			require.Len(t, requester.sent(), tc.wantCalls)
		})
	}
}

func TestClient_SyncIn_NextURL(t *testing.T) {
	t.Parallel()

	requester := newFakeRequester()
	requester.on(http.MethodGet, "/projects/p1/issues", response{body: `{"data":[{"id":1}],"next_page_url":"https://api.example.com/v1/projects/p1/issues?skip=1"}`})
	requester.on(http.MethodGet, "https://api.example.com/v1/projects/p1/issues?skip=1", response{body: `{"data":[{"id":2}],"next_page_url":null}`})

	c, err := NewClient(Config{
		Definition: testDefinition(NextURL{ItemsKey: "data", NextKey: "next_page_url"}),
		Mappings:   newMapStore(),
		Requester:  requester,
		Session:    &fakeSession{valid: true},
	})
	require.NoError(t, err)

	got, err := c.SyncIn(context.Background(), []record.Type{record.TypeIssue}, "p1", time.Time{})
	require.NoError(t, err)
	require.Len(t, got[record.TypeIssue], 2)
}

func TestClient_SyncOut(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	issue := func(id string, subject string) record.Record {
		rec := record.New(record.TypeIssue, id)
		rec.Set(record.FieldSubject, subject)
		return rec
	}

	t.Run("creates then updates", func(t *testing.T) {
		t.Parallel()

		requester := newFakeRequester()
		requester.on(http.MethodPost, "/projects/p1/issues", response{body: `{"id":501}`})
		requester.on(http.MethodPatch, "/projects/p1/issues/501", response{body: `{"id":501}`})
		store := newMapStore()
		linker := &fakeLinker{}
		c := newTestClient(t, requester, store, WithLinker(linker))

		result, err := c.SyncOut(ctx, record.TypeIssue, []record.Record{issue("int-1", "Loose rail")}, "p1")
		require.NoError(t, err)
		require.Equal(t, 1, result.Succeeded)
		require.Equal(t, []linkCall{{externalID: "501", internalID: "int-1", providerID: "acme"}}, linker.calls)

		result, err = c.SyncOut(ctx, record.TypeIssue, []record.Record{issue("int-1", "Loose rail fixed")}, "p1")
		require.NoError(t, err)
		require.Equal(t, 1, result.Succeeded)
		require.Zero(t, result.Failed)

		sent := requester.sent()
		require.Len(t, sent, 2)
		require.Equal(t, http.MethodPost, sent[0].Method)
		require.Equal(t, http.MethodPatch, sent[1].Method)
		require.Equal(t, map[string]any{"title": "Loose rail fixed"}, sent[1].Body)
		require.Len(t, linker.calls, 1)
	})

	t.Run("recreates when update finds nothing", func(t *testing.T) {
		t.Parallel()

		requester := newFakeRequester()
		requester.on(http.MethodPatch, "/projects/p1/issues/9", response{err: &apierr.RequestError{StatusCode: http.StatusNotFound}})
		requester.on(http.MethodPost, "/projects/p1/issues", response{body: `{"id":"10"}`})
		store := newMapStore()
		require.NoError(t, store.Put(ctx, record.Mapping{ExternalID: "9", InternalID: "int-2", Provider: "acme", Type: record.TypeIssue}))
		c := newTestClient(t, requester, store)

		result, err := c.SyncOut(ctx, record.TypeIssue, []record.Record{issue("int-2", "Missing")}, "p1")
		require.NoError(t, err)
		require.Equal(t, 1, result.Succeeded)

		id, found, err := store.LookupExternal(ctx, "acme", record.TypeIssue, "int-2")
		require.NoError(t, err)
		require.True(t, found)
		require.Equal(t, "10", id)
		_, found, _ = store.LookupInternal(ctx, "acme", record.TypeIssue, "9")
		require.False(t, found)
	})

	t.Run("counts failures and continues", func(t *testing.T) {
		t.Parallel()

		requester := newFakeRequester()
		requester.on(http.MethodPost, "/projects/p1/issues",
			response{err: &apierr.RequestError{StatusCode: http.StatusUnprocessableEntity}},
			response{body: `{"id":3}`},
		)
		c := newTestClient(t, requester, newMapStore())

		result, err := c.SyncOut(ctx, record.TypeIssue, []record.Record{
			issue("int-a", ""),
			issue("int-b", "Rejected"),
			issue("int-c", "Accepted"),
		}, "p1")
		require.NoError(t, err)
		require.Equal(t, 1, result.Succeeded)
		require.Equal(t, 2, result.Failed)
		require.Len(t, result.Errors, 2)
		require.Equal(t, apierr.KindValidation, apierr.KindOf(result.Errors[0]))
		require.Equal(t, apierr.KindRequest, apierr.KindOf(result.Errors[1]))
	})

	t.Run("linker failure does not fail export", func(t *testing.T) {
		t.Parallel()

		requester := newFakeRequester()
		requester.on(http.MethodPost, "/projects/p1/issues", response{body: `{"id":4}`})
		c := newTestClient(t, requester, newMapStore(), WithLinker(&fakeLinker{err: errors.New("table busy")}))

		result, err := c.SyncOut(ctx, record.TypeIssue, []record.Record{issue("int-d", "Door")}, "p1")
		require.NoError(t, err)
		require.Equal(t, 1, result.Succeeded)
	})

	t.Run("create response without id fails", func(t *testing.T) {
		t.Parallel()

		requester := newFakeRequester()
		requester.on(http.MethodPost, "/projects/p1/issues", response{body: `{}`})
		c := newTestClient(t, requester, newMapStore())

		result, err := c.SyncOut(ctx, record.TypeIssue, []record.Record{issue("int-e", "Window")}, "p1")
		require.NoError(t, err)
		require.Equal(t, 1, result.Failed)
		require.ErrorContains(t, result.Errors[0], "response has no id")
	})

	t.Run("unsupported type", func(t *testing.T) {
		t.Parallel()

		c := newTestClient(t, newFakeRequester(), newMapStore())
		_, err := c.SyncOut(ctx, record.TypeRFI, nil, "p1")
		require.Equal(t, apierr.KindMapping, apierr.KindOf(err))
	})

	t.Run("cancelled context", func(t *testing.T) {
		t.Parallel()

		cctx, cancel := context.WithCancel(ctx)
		cancel()

		requester := newFakeRequester()
		c := newTestClient(t, requester, newMapStore())
		_, err := c.SyncOut(cctx, record.TypeIssue, []record.Record{issue("int-f", "Roof")}, "p1")
		require.ErrorIs(t, err, context.Canceled)
		require.Empty(t, requester.sent())
	})
}

func TestClient_DryRun(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("import mints ids without storing mappings", func(t *testing.T) {
		t.Parallel()

		requester := newFakeRequester()
		requester.on(http.MethodGet, "/projects/p1/issues", response{body: `[{"id":7,"title":"Leak"},{"id":8,"title":"Crack"}]`})
		store := newMapStore()
		require.NoError(t, store.Put(ctx, record.Mapping{ExternalID: "7", InternalID: "known", Provider: "acme", Type: record.TypeIssue}))
		c := newTestClient(t, requester, store, WithDryRun())

		got, err := c.SyncIn(ctx, []record.Type{record.TypeIssue}, "p1", time.Time{})
		require.NoError(t, err)
		require.Len(t, got[record.TypeIssue], 2)
		require.Equal(t, "known", got[record.TypeIssue][0].ID)
		require.NotEmpty(t, got[record.TypeIssue][1].ID)

		_, found, err := store.LookupInternal(ctx, "acme", record.TypeIssue, "8")
		require.NoError(t, err)
		require.False(t, found)
		require.Len(t, store.byExternal, 1)
	})

	t.Run("export neither stores nor links", func(t *testing.T) {
		t.Parallel()

		requester := newFakeRequester()
		requester.on(http.MethodPost, "/projects/p1/issues", response{body: `{"id":501}`})
		store := newMapStore()
		linker := &fakeLinker{}
		c := newTestClient(t, requester, store, WithLinker(linker), WithDryRun())

		rec := record.New(record.TypeIssue, "int-1")
		rec.Set(record.FieldSubject, "Loose rail")

		result, err := c.SyncOut(ctx, record.TypeIssue, []record.Record{rec}, "p1")
		require.NoError(t, err)
		require.Equal(t, 1, result.Succeeded)
		require.Empty(t, store.byExternal)
		require.Empty(t, linker.calls)
	})
}
