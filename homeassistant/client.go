// Package homeassistant is a small client for the Home Assistant REST API.
package homeassistant

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

	"github.com/golang/glog"

	"github.com/HughODwyer90/hugh.casa/data"
)

// ErrNotFound is returned when an entity does not exist.
var ErrNotFound = errors.New("entity not found")

// StatusError is a non-2xx answer from Home Assistant.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("got unexpected HTTP status: %d", e.StatusCode)
	}
	return fmt.Sprintf("got unexpected HTTP status: %d: %s", e.StatusCode, e.Body)
}

type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// New returns a client for the instance at baseURL, e.g. http://homeassistant.local:8123.
// A nil httpClient gets a 30 second timeout.
func New(baseURL, token string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		token:   token,
		http:    httpClient,
	}
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("unable to encode request: %w", err)
		}
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, r)
	if err != nil {
		return fmt.Errorf("unable to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.token))

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("unable to make request: %w", err)
	}
	defer resp.Body.Close()
	glog.V(1).Infof("%s %s: HTTP %d", method, path, resp.StatusCode)

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<10))
		return &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("unable to read response body: %w", err)
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("unable to parse JSON response: %w", err)
	}
	return nil
}

// States returns every entity known to Home Assistant.
func (c *Client) States(ctx context.Context) ([]*data.HAEntity, error) {
	var entities []*data.HAEntity
	if err := c.do(ctx, http.MethodGet, "/api/states", nil, &entities); err != nil {
		return nil, err
	}
	return entities, nil
}

// State returns one entity, or ErrNotFound.
func (c *Client) State(ctx context.Context, entityID string) (*data.HAEntity, error) {
	var e data.HAEntity
	if err := c.do(ctx, http.MethodGet, "/api/states/"+url.PathEscape(entityID), nil, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

// CallService calls domain.service with payload as service data.
func (c *Client) CallService(ctx context.Context, domain, service string, payload any) error {
	path := fmt.Sprintf("/api/services/%s/%s", url.PathEscape(domain), url.PathEscape(service))
	return c.do(ctx, http.MethodPost, path, payload, nil)
}

// InstallUpdate starts the install of an update entity.
func (c *Client) InstallUpdate(ctx context.Context, entityID string) error {
	return c.CallService(ctx, "update", "install", &data.HAServiceTarget{EntityID: entityID})
}

// ConfigEntries lists the configured integrations.
func (c *Client) ConfigEntries(ctx context.Context) ([]*data.HAConfigEntry, error) {
	var entries []*data.HAConfigEntry
	if err := c.do(ctx, http.MethodGet, "/api/config/config_entries/entry", nil, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}
