// Package provider implements the generic construction platform client composed from a provider Definition.
package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/peteski22/sitebridge/internal/apierr"
	"github.com/peteski22/sitebridge/internal/executor"
	"github.com/peteski22/sitebridge/internal/record"
	"github.com/peteski22/sitebridge/internal/transform"
)

// maxPages bounds a single listing so a provider repeating a continuation cannot loop forever.
const maxPages = 1000

// Endpoint holds the resource paths for one record type. Paths may contain {project} and {id} placeholders.
type Endpoint struct {
	// Create is the path records are created at.
	Create string

	// CreateMethod is the create HTTP method, POST when empty.
	CreateMethod string

	// List is the path records are listed from.
	List string

	// Update is the path an existing record is updated at.
	Update string

	// UpdateMethod is the update HTTP method, PATCH when empty.
	UpdateMethod string
}

// Definition describes one provider: its endpoints, record types, pagination and payload mapping.
type Definition struct {
	// CreatedID extracts the external id from a create response. Defaults to the top-level "id" field.
	CreatedID func(raw json.RawMessage, rec record.Record) (string, error)

	// Endpoints maps each supported record type to its resource paths.
	Endpoints map[record.Type]Endpoint

	// Export lists the record types pushed to the provider.
	Export []record.Type

	// ID is the provider identifier.
	ID string

	// Import lists the record types pulled from the provider.
	Import []record.Type

	// Name is the display name.
	Name string

	// Pages walks list responses.
	Pages Paginator

	// ProbePath is fetched to test connectivity.
	ProbePath string

	// SinceLayout formats the SinceParam value, RFC 3339 when empty.
	SinceLayout string

	// SinceParam is the list query parameter filtering by modification time, empty when unsupported.
	SinceParam string

	// Transformer maps payloads to and from records.
	Transformer transform.Transformer
}

// validate checks that all required Definition fields are set.
func (d *Definition) validate() error {
	var errs []error
	if d.ID == "" {
		errs = append(errs, errors.New("definition ID is required"))
	}
	if d.Pages == nil {
		errs = append(errs, errors.New("paginator is required"))
	}
	if d.ProbePath == "" {
		errs = append(errs, errors.New("probe path is required"))
	}
	if d.Transformer == nil {
		errs = append(errs, errors.New("transformer is required"))
	}
	for _, t := range slices.Concat(d.Import, d.Export) {
		if _, ok := d.Endpoints[t]; !ok {
			errs = append(errs, fmt.Errorf("no endpoint for record type %s", t))
		}
	}
	return errors.Join(errs...)
}

// Requester performs provider API calls.
type Requester interface {
	// Do executes req and returns the response payload.
	Do(ctx context.Context, req executor.Request) (json.RawMessage, error)
}

// Session reports credential presence and token validity.
type Session interface {
	// Configured returns an error naming missing credential fields.
	Configured() error

	// EnsureValid reports whether a usable token is held, authenticating at most once.
	EnsureValid(ctx context.Context) bool
}

// MappingStore persists external record mappings.
type MappingStore interface {
	// Invalidate removes a mapping the provider has confirmed is gone.
	Invalidate(ctx context.Context, m record.Mapping) error

	// LookupExternal returns the external id mapped to an internal record.
	LookupExternal(ctx context.Context, provider string, t record.Type, internalID string) (string, bool, error)

	// LookupInternal returns the internal id mapped to an external record.
	LookupInternal(ctx context.Context, provider string, t record.Type, externalID string) (string, bool, error)

	// Put stores a mapping. A later Put for the same external id replaces the earlier one.
	Put(ctx context.Context, m record.Mapping) error
}

// Linker records the external id of an exported record against the internal record.
type Linker interface {
	// AttachExternalMapping links internalID to externalID at providerID.
	AttachExternalMapping(ctx context.Context, internalID string, providerID string, externalID string) error
}

// ExportResult counts the outcome of exporting one record type.
type ExportResult struct {
	// Errors holds the per-record failures.
	Errors []error

	// Failed counts records that could not be exported.
	Failed int

	// Succeeded counts records created or updated at the provider.
	Succeeded int
}

// Config holds the required configuration for creating a Client.
type Config struct {
	// Definition describes the provider.
	Definition Definition

	// Mappings persists external record mappings.
	Mappings MappingStore

	// ProjectRef is the provider's project reference, empty when none is configured.
	ProjectRef string

	// Requester performs API calls.
	Requester Requester

	// Session reports credential state.
	Session Session
}

// validate checks that all required Config fields are set.
func (c *Config) validate() error {
	var errs []error
	if err := c.Definition.validate(); err != nil {
		errs = append(errs, err)
	}
	if c.Mappings == nil {
		errs = append(errs, errors.New("mapping store is required"))
	}
	if c.Requester == nil {
		errs = append(errs, errors.New("requester is required"))
	}
	if c.Session == nil {
		errs = append(errs, errors.New("session is required"))
	}
	return errors.Join(errs...)
}

// Option configures optional Client settings.
type Option func(*Client) error

// WithDryRun logs mapping and link writes instead of performing them. Lookups still read the real store.
func WithDryRun() Option {
	return func(c *Client) error {
		c.dryRun = true
		return nil
	}
}

// WithLinker sets the collaborator told about newly exported records.
func WithLinker(linker Linker) Option {
	return func(c *Client) error {
		if linker == nil {
			return errors.New("linker cannot be nil")
		}
		c.linker = linker
		return nil
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		c.logger = logger
		return nil
	}
}

// Client synchronizes records with one provider. Operations on a Client are serialized.
type Client struct {
	// def describes the provider.
	def Definition

	// dryRun logs mapping and link writes instead of performing them.
	dryRun bool

	// linker is told about newly exported records, may be nil.
	linker Linker

	// logger is the structured logger.
	logger *slog.Logger

	// mappings persists external record mappings.
	mappings MappingStore

	// mu serializes all operations on this provider.
	mu sync.Mutex

	// projectRef is the provider's project reference.
	projectRef string

	// requester performs API calls.
	requester Requester

	// session reports credential state.
	session Session
}

// NewClient creates a provider client.
func NewClient(cfg Config, opts ...Option) (*Client, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	c := &Client{
		def:        cfg.Definition,
		logger:     slog.Default(),
		mappings:   cfg.Mappings,
		projectRef: cfg.ProjectRef,
		requester:  cfg.Requester,
		session:    cfg.Session,
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, fmt.Errorf("applying option: %w", err)
		}
	}
	c.logger = c.logger.With("provider", c.def.ID)

	if c.dryRun {
		c.mappings = &dryRunMappings{MappingStore: c.mappings, logger: c.logger}
		if c.linker != nil {
			c.linker = dryRunLinker{logger: c.logger}
		}
	}

	return c, nil
}

// CheckConnection authenticates and fetches the provider's probe endpoint.
func (c *Client) CheckConnection(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.session.EnsureValid(ctx) {
		return &apierr.AuthenticationError{Provider: c.def.ID, Reason: "no valid token"}
	}

	if _, err := c.requester.Do(ctx, executor.Request{
		Method: http.MethodGet,
		Path:   c.expand(c.def.ProbePath, c.projectRef, ""),
	}); err != nil {
		return fmt.Errorf("probing connection: %w", err)
	}

	return nil
}

// Configured returns an error naming missing credential fields.
func (c *Client) Configured() error {
	return c.session.Configured()
}

// ExportTypes returns the record types pushed to the provider.
func (c *Client) ExportTypes() []record.Type {
	return slices.Clone(c.def.Export)
}

// ID returns the provider identifier.
func (c *Client) ID() string {
	return c.def.ID
}

// ImportTypes returns the record types pulled from the provider.
func (c *Client) ImportTypes() []record.Type {
	return slices.Clone(c.def.Import)
}

// Name returns the provider display name.
func (c *Client) Name() string {
	return c.def.Name
}

// ProjectRef returns the configured project reference.
func (c *Client) ProjectRef() string {
	return c.projectRef
}

// SyncIn lists every requested record type from the provider and returns the transformed records.
// Records whose external id is already mapped keep their internal id; new external ids get a fresh one.
// A failing record type is reported in the returned error and the remaining types still run.
// A zero since lists everything.
func (c *Client) SyncIn(
	ctx context.Context,
	types []record.Type,
	projectRef string,
	since time.Time,
) (map[record.Type][]record.Record, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	results := make(map[record.Type][]record.Record, len(types))
	var errs []error

	for _, t := range types {
		if err := ctx.Err(); err != nil {
			return results, errors.Join(append(errs, err)...)
		}

		records, err := c.importType(ctx, t, projectRef, since)
		if err != nil {
			c.logger.Error("import failed", "record_type", t, "error", err)
			errs = append(errs, fmt.Errorf("importing %s: %w", t, err))
		}
		results[t] = records
	}

	return results, errors.Join(errs...)
}

// SyncOut creates or updates records at the provider. Per-record failures are counted and processing continues.
func (c *Client) SyncOut(
	ctx context.Context,
	t record.Type,
	records []record.Record,
	projectRef string,
) (*ExportResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	result := &ExportResult{}

	endpoint, ok := c.def.Endpoints[t]
	if !ok || !slices.Contains(c.def.Export, t) {
		return result, transform.Unsupported(c.def.ID, t)
	}

	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		if err := c.exportRecord(ctx, t, endpoint, rec, projectRef); err != nil {
			c.logger.Warn("export failed",
				"record_type", t,
				"record_id", rec.ID,
				"error", err)
			result.Failed++
			result.Errors = append(result.Errors, err)
			continue
		}
		result.Succeeded++
	}

	return result, nil
}

// importType lists and transforms every record of one type.
func (c *Client) importType(
	ctx context.Context,
	t record.Type,
	projectRef string,
	since time.Time,
) ([]record.Record, error) {
	endpoint, ok := c.def.Endpoints[t]
	if !ok || !slices.Contains(c.def.Import, t) {
		return nil, transform.Unsupported(c.def.ID, t)
	}

	req := executor.Request{Method: http.MethodGet, Path: c.expand(endpoint.List, projectRef, "")}
	if c.def.SinceParam != "" && !since.IsZero() {
		layout := c.def.SinceLayout
		if layout == "" {
			layout = time.RFC3339
		}
		req.Query = url.Values{c.def.SinceParam: {since.UTC().Format(layout)}}
	}
	req = c.def.Pages.First(req)

	var records []record.Record
	for page := 0; page < maxPages; page++ {
		raw, err := c.requester.Do(ctx, req)
		if err != nil {
			return records, fmt.Errorf("listing page %d: %w", page+1, err)
		}

		items, next, err := c.def.Pages.Next(raw, req)
		if err != nil {
			return records, err
		}

		for _, item := range items {
			rec, ok := c.importItem(ctx, t, item)
			if ok {
				records = append(records, rec)
			}
		}

		if next == nil {
			return records, nil
		}
		req = *next
	}

	c.logger.Warn("listing stopped at page limit", "record_type", t, "pages", maxPages)
	return records, nil
}

// importItem transforms one listed item and resolves its internal id.
func (c *Client) importItem(ctx context.Context, t record.Type, item json.RawMessage) (record.Record, bool) {
	rec, externalID, err := c.def.Transformer.FromExternal(t, item)
	if err != nil {
		c.logger.Warn("skipping record", "record_type", t, "error", err)
		return record.Record{}, false
	}
	if externalID == "" {
		c.logger.Warn("skipping record without id", "record_type", t)
		return record.Record{}, false
	}

	internalID, found, err := c.mappings.LookupInternal(ctx, c.def.ID, t, externalID)
	if err != nil {
		c.logger.Warn("skipping record", "record_type", t, "external_id", externalID, "error", err)
		return record.Record{}, false
	}

	if !found {
		internalID = uuid.NewString()
		if err := c.mappings.Put(ctx, record.Mapping{
			ExternalID: externalID,
			InternalID: internalID,
			Provider:   c.def.ID,
			Type:       t,
		}); err != nil {
			c.logger.Warn("skipping record", "record_type", t, "external_id", externalID, "error", err)
			return record.Record{}, false
		}
	}

	rec.ID = internalID
	rec.Type = t
	return rec, true
}

// exportRecord updates a mapped record, or creates it and stores the new mapping.
func (c *Client) exportRecord(
	ctx context.Context,
	t record.Type,
	endpoint Endpoint,
	rec record.Record,
	projectRef string,
) error {
	rec.Type = t
	payload, err := c.def.Transformer.ToExternal(t, rec)
	if err != nil {
		return err
	}

	externalID, found, err := c.mappings.LookupExternal(ctx, c.def.ID, t, rec.ID)
	if err != nil {
		return fmt.Errorf("looking up mapping: %w", err)
	}

	if found && endpoint.Update != "" {
		_, err := c.requester.Do(ctx, executor.Request{
			Body:   payload,
			Method: methodOr(endpoint.UpdateMethod, http.MethodPatch),
			Path:   c.expand(endpoint.Update, projectRef, externalID),
		})
		if err == nil {
			return nil
		}
		if !apierr.IsNotFound(err) {
			return fmt.Errorf("updating %s: %w", externalID, err)
		}

		c.logger.Info("external record gone, recreating", "record_type", t, "external_id", externalID)
		if err := c.mappings.Invalidate(ctx, record.Mapping{
			ExternalID: externalID,
			InternalID: rec.ID,
			Provider:   c.def.ID,
			Type:       t,
		}); err != nil {
			return fmt.Errorf("invalidating mapping: %w", err)
		}
	}

	raw, err := c.requester.Do(ctx, executor.Request{
		Body:   payload,
		Method: methodOr(endpoint.CreateMethod, http.MethodPost),
		Path:   c.expand(endpoint.Create, projectRef, ""),
	})
	if err != nil {
		return fmt.Errorf("creating: %w", err)
	}

	createdID := c.def.CreatedID
	if createdID == nil {
		createdID = topLevelID
	}
	externalID, err = createdID(raw, rec)
	if err != nil {
		return fmt.Errorf("reading created id: %w", err)
	}

	if err := c.mappings.Put(ctx, record.Mapping{
		ExternalID: externalID,
		InternalID: rec.ID,
		Provider:   c.def.ID,
		Type:       t,
	}); err != nil {
		return fmt.Errorf("storing mapping: %w", err)
	}

	if c.linker != nil {
		if err := c.linker.AttachExternalMapping(ctx, rec.ID, c.def.ID, externalID); err != nil {
			c.logger.Warn("attaching external mapping failed",
				"record_id", rec.ID,
				"external_id", externalID,
				"error", err)
		}
	}

	c.logger.Debug("created record", "record_type", t, "record_id", rec.ID, "external_id", externalID)
	return nil
}

// expand substitutes the {project} and {id} placeholders in path.
func (c *Client) expand(path string, projectRef string, id string) string {
	return strings.NewReplacer(
		"{project}", url.PathEscape(projectRef),
		"{id}", url.PathEscape(id),
	).Replace(path)
}

// cloneQuery returns a copy of the request query, never nil.
func cloneQuery(req executor.Request) url.Values {
	q := url.Values{}
	for k, v := range req.Query {
		q[k] = slices.Clone(v)
	}
	return q
}

// methodOr returns method, or fallback when method is empty.
func methodOr(method string, fallback string) string {
	if method == "" {
		return fallback
	}
	return method
}

// topLevelID reads the "id" field of a create response.
func topLevelID(raw json.RawMessage, _ record.Record) (string, error) {
	var resp struct {
		ID transform.ID `json:"id"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", err
	}
	if resp.ID == "" {
		return "", errors.New("response has no id")
	}
	return string(resp.ID), nil
}
