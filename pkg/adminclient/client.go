// Package adminclient is a small REST client for internal/adminhttp's
// read-only registry snapshots, used by cmd/mediabrokerctl.
package adminclient

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/alxayo/mediabroker/internal/broker/buffer"
	"github.com/alxayo/mediabroker/internal/broker/format"
	"github.com/alxayo/mediabroker/internal/broker/registry"
)

// Client talks to a running broker's admin HTTP surface.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a client against baseURL (e.g. "http://127.0.0.1:8088").
func New(baseURL string) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// APIError is returned for any non-2xx response.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("admin server returned %d: %s", e.StatusCode, e.Body)
}

func (c *Client) get(path string, result any) error {
	req, err := http.NewRequest(http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}
	if resp.StatusCode >= 400 {
		return &APIError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	if result != nil {
		if err := json.Unmarshal(body, result); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

// Health reports whether the admin server responds at all.
func (c *Client) Health() error {
	return c.get("/health", nil)
}

// Nodes fetches the live node snapshot.
func (c *Client) Nodes() ([]registry.LiveInfo, error) {
	var out []registry.LiveInfo
	err := c.get("/nodes", &out)
	return out, err
}

// Formats fetches the interned format description table.
func (c *Client) Formats() ([]format.Description, error) {
	var out []format.Description
	err := c.get("/formats", &out)
	return out, err
}

// Buffers fetches the live buffer snapshot.
func (c *Client) Buffers() ([]buffer.Info, error) {
	var out []buffer.Info
	err := c.get("/buffers", &out)
	return out, err
}

// DefaultEntry mirrors internal/adminhttp's unexported defaultEntry wire
// shape for the /defaults route.
type DefaultEntry struct {
	Slot   string `json:"slot"`
	NodeID int32  `json:"node_id,omitempty"`
	Bound  bool   `json:"bound"`
}

// Defaults fetches the seven default-endpoint slots' binding status.
func (c *Client) Defaults() ([]DefaultEntry, error) {
	var out []DefaultEntry
	err := c.get("/defaults", &out)
	return out, err
}
