// Package client talks to the to-do server's REST routes. The CLI and TUI use it.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"todo-backend/internal/model"
	"todo-backend/internal/todo"
)

type Options struct {
	BaseURL string
	// Token is sent as a bearer token when set (server auth mode "token").
	Token string
	// Caller is sent as X-Todo-Caller when set (server auth mode "dev").
	Caller     string
	HTTPClient *http.Client
}

type Client struct {
	base   *url.URL
	token  string
	caller string
	hc     *http.Client
}

// APIError is a non-2xx response from the server.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("%s (%s)", e.Message, e.Code)
}

func (e *APIError) Is(target error) bool {
	switch e.Code {
	case "not_found":
		return target == todo.ErrNotFound
	case "no_such_user":
		return target == todo.ErrNoSuchUser
	}
	return false
}

func New(opts Options) (*Client, error) {
	raw := strings.TrimSpace(opts.BaseURL)
	if raw == "" {
		return nil, errors.New("client: missing base url")
	}
	u, err := url.Parse(strings.TrimRight(raw, "/"))
	if err != nil {
		return nil, fmt.Errorf("client: bad base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("client: unsupported scheme %q", u.Scheme)
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		base:   u,
		token:  strings.TrimSpace(opts.Token),
		caller: strings.TrimSpace(opts.Caller),
		hc:     hc,
	}, nil
}

type envelope struct {
	Data json.RawMessage            `json:"data"`
	Meta map[string]json.RawMessage `json:"meta,omitempty"`
}

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any, out any) error {
	u := *c.base
	u.Path = c.base.Path + path
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), rd)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if c.caller != "" {
		req.Header.Set("X-Todo-Caller", c.caller)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var eb errorBody
		if json.Unmarshal(b, &eb) == nil && eb.Error != "" {
			return &APIError{Status: resp.StatusCode, Code: eb.Code, Message: eb.Error}
		}
		return &APIError{Status: resp.StatusCode, Message: strings.TrimSpace(string(b))}
	}
	if out == nil {
		return nil
	}
	var env envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return fmt.Errorf("client: decode response: %w", err)
	}
	if e, ok := out.(*envelope); ok {
		*e = env
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("client: decode data: %w", err)
	}
	return nil
}

func limitQuery(q url.Values, limit uint64) url.Values {
	if limit > 0 {
		q.Set("limit", strconv.FormatUint(limit, 10))
	}
	return q
}

// List returns up to limit live items after skipping offset of them. A zero
// limit lets the server pick its default.
func (c *Client) List(ctx context.Context, offset, limit uint64) ([]model.Item, error) {
	q := url.Values{"offset": {strconv.FormatUint(offset, 10)}}
	var items []model.Item
	if err := c.do(ctx, http.MethodGet, "/v1/todos", limitQuery(q, limit), nil, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// Page is one cursor page. NextLastID is set when the page came back full;
// pass it back to ListAfter for the next page.
type Page struct {
	Items      []model.Item
	NextLastID *uint64
}

// ListAfter returns items with ids strictly greater than *lastID, or from the
// first item when lastID is nil.
func (c *Client) ListAfter(ctx context.Context, lastID *uint64, limit uint64) (Page, error) {
	q := url.Values{"after": {"true"}}
	if lastID != nil {
		q.Set("lastId", strconv.FormatUint(*lastID, 10))
	}
	var env envelope
	if err := c.do(ctx, http.MethodGet, "/v1/todos/after", limitQuery(q, limit), nil, &env); err != nil {
		return Page{}, err
	}
	var p Page
	if err := json.Unmarshal(env.Data, &p.Items); err != nil {
		return Page{}, fmt.Errorf("client: decode data: %w", err)
	}
	if raw, ok := env.Meta["nextLastId"]; ok {
		var n uint64
		if err := json.Unmarshal(raw, &n); err != nil {
			return Page{}, fmt.Errorf("client: decode nextLastId: %w", err)
		}
		p.NextLastID = &n
	}
	return p, nil
}

// Get returns the item, or ok=false when the caller has no item with that id.
func (c *Client) Get(ctx context.Context, id uint64) (model.Item, bool, error) {
	var it *model.Item
	if err := c.do(ctx, http.MethodGet, "/v1/todos/"+strconv.FormatUint(id, 10), nil, nil, &it); err != nil {
		return model.Item{}, false, err
	}
	if it == nil {
		return model.Item{}, false, nil
	}
	return *it, true, nil
}

func (c *Client) Add(ctx context.Context, texts []string) (uint64, error) {
	if texts == nil {
		texts = []string{}
	}
	var cnt model.Count
	err := c.do(ctx, http.MethodPost, "/v1/todos", nil, map[string]any{"texts": texts}, &cnt)
	return cnt.Count, err
}

func (c *Client) Remove(ctx context.Context, ids []uint64) (uint64, error) {
	if ids == nil {
		ids = []uint64{}
	}
	var cnt model.Count
	err := c.do(ctx, http.MethodPost, "/v1/todos/remove", nil, map[string]any{"ids": ids}, &cnt)
	return cnt.Count, err
}

func (c *Client) Toggle(ctx context.Context, id uint64) (bool, error) {
	var tg model.Toggled
	err := c.do(ctx, http.MethodPost, "/v1/todos/"+strconv.FormatUint(id, 10)+"/toggle", nil, nil, &tg)
	return tg.Completed, err
}

func (c *Client) UpdateText(ctx context.Context, id uint64, text string) (model.Item, error) {
	var it model.Item
	err := c.do(ctx, http.MethodPut, "/v1/todos/"+strconv.FormatUint(id, 10)+"/text", nil, map[string]any{"text": text}, &it)
	return it, err
}

// Events lists the caller's journal, newest first.
func (c *Client) Events(ctx context.Context, limit uint64) ([]model.Event, error) {
	var evs []model.Event
	if err := c.do(ctx, http.MethodGet, "/v1/events", limitQuery(url.Values{}, limit), nil, &evs); err != nil {
		return nil, err
	}
	return evs, nil
}
