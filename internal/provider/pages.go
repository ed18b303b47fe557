package provider

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/peteski22/sitebridge/internal/executor"
)

// Paginator walks a provider's list responses.
type Paginator interface {
	// First returns the request for the first page.
	First(req executor.Request) executor.Request

	// Next splits a page into items and returns the request for the following page, or nil when done.
	Next(raw json.RawMessage, req executor.Request) ([]json.RawMessage, *executor.Request, error)
}

// PageNumbers paginates top-level JSON arrays with page and per-page query parameters.
// A short page ends the listing.
type PageNumbers struct {
	// PageParam is the page number parameter.
	PageParam string

	// PerPage is the requested page size.
	PerPage int

	// PerPageParam is the page size parameter.
	PerPageParam string
}

// First implements Paginator.
func (p PageNumbers) First(req executor.Request) executor.Request {
	req.Query = cloneQuery(req)
	req.Query.Set(p.PageParam, "1")
	req.Query.Set(p.PerPageParam, strconv.Itoa(p.PerPage))
	return req
}

// Next implements Paginator.
func (p PageNumbers) Next(raw json.RawMessage, req executor.Request) ([]json.RawMessage, *executor.Request, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, nil, fmt.Errorf("decoding page: %w", err)
	}
	if len(items) < p.PerPage {
		return items, nil, nil
	}

	page, _ := strconv.Atoi(req.Query.Get(p.PageParam))
	next := req
	next.Query = cloneQuery(req)
	next.Query.Set(p.PageParam, strconv.Itoa(page+1))
	return items, &next, nil
}

// Cursor paginates object responses holding items under ItemsKey and a continuation token under TokenKey.
type Cursor struct {
	// ItemsKey is the response key holding the items.
	ItemsKey string

	// TokenKey is the response key holding the next-page token.
	TokenKey string

	// TokenParam is the query parameter carrying the token on the next request.
	TokenParam string
}

// First implements Paginator.
func (c Cursor) First(req executor.Request) executor.Request {
	return req
}

// Next implements Paginator.
func (c Cursor) Next(raw json.RawMessage, req executor.Request) ([]json.RawMessage, *executor.Request, error) {
	fields, items, err := splitObject(raw, c.ItemsKey)
	if err != nil {
		return nil, nil, err
	}

	var token string
	if v, ok := fields[c.TokenKey]; ok {
		_ = json.Unmarshal(v, &token)
	}
	if token == "" {
		return items, nil, nil
	}

	next := req
	next.Query = cloneQuery(req)
	next.Query.Set(c.TokenParam, token)
	return items, &next, nil
}

// Offset paginates object responses holding items under ItemsKey using offset and limit parameters.
// The listing ends when the reported total is reached or a short page arrives.
type Offset struct {
	// ItemsKey is the response key holding the items.
	ItemsKey string

	// Limit is the requested page size.
	Limit int

	// LimitParam is the page size parameter.
	LimitParam string

	// OffsetParam is the offset parameter.
	OffsetParam string

	// TotalKey is the key within the pagination object holding the total count.
	TotalKey string

	// PaginationKey is the response key holding the pagination object.
	PaginationKey string
}

// First implements Paginator.
func (o Offset) First(req executor.Request) executor.Request {
	req.Query = cloneQuery(req)
	req.Query.Set(o.OffsetParam, "0")
	req.Query.Set(o.LimitParam, strconv.Itoa(o.Limit))
	return req
}

// Next implements Paginator.
func (o Offset) Next(raw json.RawMessage, req executor.Request) ([]json.RawMessage, *executor.Request, error) {
	fields, items, err := splitObject(raw, o.ItemsKey)
	if err != nil {
		return nil, nil, err
	}

	offset, _ := strconv.Atoi(req.Query.Get(o.OffsetParam))
	nextOffset := offset + len(items)

	total := -1
	if v, ok := fields[o.PaginationKey]; ok {
		var pagination map[string]json.RawMessage
		if err := json.Unmarshal(v, &pagination); err == nil {
			if t, ok := pagination[o.TotalKey]; ok {
				_ = json.Unmarshal(t, &total)
			}
		}
	}

	switch {
	case len(items) == 0:
		return items, nil, nil
	case total >= 0 && nextOffset >= total:
		return items, nil, nil
	case total < 0 && len(items) < o.Limit:
		return items, nil, nil
	}

	next := req
	next.Query = cloneQuery(req)
	next.Query.Set(o.OffsetParam, strconv.Itoa(nextOffset))
	return items, &next, nil
}

// NextURL paginates object responses that link the following page by absolute URL.
type NextURL struct {
	// ItemsKey is the response key holding the items.
	ItemsKey string

	// NextKey is the response key holding the next page URL.
	NextKey string
}

// First implements Paginator.
func (n NextURL) First(req executor.Request) executor.Request {
	return req
}

// Next implements Paginator.
func (n NextURL) Next(raw json.RawMessage, req executor.Request) ([]json.RawMessage, *executor.Request, error) {
	fields, items, err := splitObject(raw, n.ItemsKey)
	if err != nil {
		return nil, nil, err
	}

	var nextURL string
	if v, ok := fields[n.NextKey]; ok {
		_ = json.Unmarshal(v, &nextURL)
	}
	if nextURL == "" {
		return items, nil, nil
	}

	return items, &executor.Request{Method: req.Method, Path: nextURL}, nil
}

// SinglePage treats the response as one complete top-level array.
type SinglePage struct{}

// First implements Paginator.
func (SinglePage) First(req executor.Request) executor.Request {
	return req
}

// Next implements Paginator.
func (SinglePage) Next(raw json.RawMessage, _ executor.Request) ([]json.RawMessage, *executor.Request, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, nil, fmt.Errorf("decoding page: %w", err)
	}
	return items, nil, nil
}

// splitObject decodes an object response and returns its fields and the items array under itemsKey.
func splitObject(raw json.RawMessage, itemsKey string) (map[string]json.RawMessage, []json.RawMessage, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, nil, fmt.Errorf("decoding page: %w", err)
	}

	var items []json.RawMessage
	if v, ok := fields[itemsKey]; ok {
		if err := json.Unmarshal(v, &items); err != nil {
			return nil, nil, fmt.Errorf("decoding page items %q: %w", itemsKey, err)
		}
	}
	return fields, items, nil
}
