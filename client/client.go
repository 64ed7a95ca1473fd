// Package client provides a Go client for the titlebot coordination
// server.
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
	"strings"
	"time"
)

// Sentinel errors mapped from response status codes. Wrap the server's
// message, so errors.Is works and the detail is still readable.
var (
	ErrNotFound  = errors.New("not found")
	ErrConflict  = errors.New("conflict")
	ErrForbidden = errors.New("forbidden")
)

type Client struct {
	BaseURL string
	HTTP    *http.Client
	APIKey  string
}

type Option func(*Client)

func WithAPIKey(key string) Option {
	return func(c *Client) {
		c.APIKey = strings.TrimSpace(key)
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.HTTP = httpClient
		}
	}
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Titles lists every registered title.
func (c *Client) Titles(ctx context.Context) ([]Title, error) {
	var out struct {
		Titles []Title `json:"titles"`
	}
	if err := c.getJSON(ctx, "/api/titles", &out); err != nil {
		return nil, err
	}
	return out.Titles, nil
}

// Title fetches one title by name (case-insensitive).
func (c *Client) Title(ctx context.Context, name string) (Title, error) {
	var out Title
	err := c.getJSON(ctx, "/api/titles/"+url.PathEscape(name), &out)
	return out, err
}

// Claim takes the title for user, or joins its queue.
func (c *Client) Claim(ctx context.Context, name, user string) (ClaimResponse, error) {
	var out ClaimResponse
	err := c.postJSON(ctx, titleAction(name, "claim"), map[string]string{"user": user}, &out)
	return out, err
}

// Release gives up the title. With a queue waiting the title goes due
// for guardian confirmation; otherwise it frees up immediately.
func (c *Client) Release(ctx context.Context, name, user string) (Title, error) {
	var out Title
	err := c.postJSON(ctx, titleAction(name, "release"), map[string]string{"user": user}, &out)
	return out, err
}

// ForceRelease clears the holder regardless of hold time (guardian).
func (c *Client) ForceRelease(ctx context.Context, name, actor string) (Title, error) {
	var out Title
	err := c.postJSON(ctx, titleAction(name, "force-release"), map[string]string{"actor": actor}, &out)
	return out, err
}

// Acknowledge confirms a due handoff and installs the queue head
// (guardian).
func (c *Client) Acknowledge(ctx context.Context, name, actor string) (Title, error) {
	var out Title
	err := c.postJSON(ctx, titleAction(name, "ack"), map[string]string{"actor": actor}, &out)
	return out, err
}

// Snooze pauses reminders on a due title (guardian). Zero minutes means
// the server default of one hour.
func (c *Client) Snooze(ctx context.Context, name, actor string, minutes int) (Title, error) {
	var out Title
	err := c.postJSON(ctx, titleAction(name, "snooze"), map[string]any{
		"actor":   actor,
		"minutes": minutes,
	}, &out)
	return out, err
}

// History returns the audit records for one title, newest first.
func (c *Client) History(ctx context.Context, name string, limit int) ([]AuditRecord, error) {
	return c.fetchHistory(ctx, titleAction(name, "history"), limit)
}

// FullHistory returns the audit journal across all titles, newest
// first.
func (c *Client) FullHistory(ctx context.Context, limit int) ([]AuditRecord, error) {
	return c.fetchHistory(ctx, "/api/history", limit)
}

func (c *Client) fetchHistory(ctx context.Context, endpoint string, limit int) ([]AuditRecord, error) {
	if limit > 0 {
		endpoint += "?limit=" + fmt.Sprintf("%d", limit)
	}
	var out struct {
		Records []AuditRecord `json:"records"`
	}
	if err := c.getJSON(ctx, endpoint, &out); err != nil {
		return nil, err
	}
	return out.Records, nil
}

// Holdings lists every title the user holds or is queued for.
func (c *Client) Holdings(ctx context.Context, user string) (HoldingsResponse, error) {
	var out HoldingsResponse
	err := c.getJSON(ctx, "/api/holders/"+url.PathEscape(user), &out)
	return out, err
}

// Config fetches the runtime policy.
func (c *Client) Config(ctx context.Context) (Config, error) {
	var out Config
	err := c.getJSON(ctx, "/api/config", &out)
	return out, err
}

// SetConfig applies a partial policy update (admin).
func (c *Client) SetConfig(ctx context.Context, patch ConfigPatch) (Config, error) {
	var out Config
	err := c.doJSON(ctx, http.MethodPut, "/api/config", patch, &out)
	return out, err
}

// ImportTitles registers new titles, returning the names actually
// created; known names only refresh descriptions (admin).
func (c *Client) ImportTitles(ctx context.Context, defs []TitleDef) ([]string, error) {
	var out struct {
		Created []string `json:"created"`
	}
	err := c.postJSON(ctx, "/api/titles", map[string]any{"titles": defs}, &out)
	if err != nil {
		return nil, err
	}
	return out.Created, nil
}

func titleAction(name, action string) string {
	return "/api/titles/" + url.PathEscape(name) + "/" + action
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	return c.doJSON(ctx, http.MethodGet, path, nil, out)
}

func (c *Client) postJSON(ctx context.Context, path string, payload, out any) error {
	return c.doJSON(ctx, http.MethodPost, path, payload, out)
}

func (c *Client) doJSON(ctx context.Context, method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		buf, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return statusError(resp)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func statusError(resp *http.Response) error {
	msg := serverMessage(resp)
	switch resp.StatusCode {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, msg)
	case http.StatusConflict:
		return fmt.Errorf("%w: %s", ErrConflict, msg)
	case http.StatusForbidden, http.StatusUnauthorized:
		return fmt.Errorf("%w: %s", ErrForbidden, msg)
	default:
		return fmt.Errorf("request failed: %d: %s", resp.StatusCode, msg)
	}
}

func serverMessage(resp *http.Response) string {
	var body struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err == nil && body.Error != "" {
		return body.Error
	}
	return resp.Status
}
