package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ValentinKolb/cKV/lib/store"
	"github.com/ValentinKolb/cKV/lib/telemetry"
	"github.com/ValentinKolb/cKV/rpc/common"
)

// --------------------------------------------------------------------------
// Client
// --------------------------------------------------------------------------

// Client talks to a cKV server over HTTP. Transport failures are retried
// up to the configured count; HTTP-level failures are not.
type Client struct {
	config  common.ClientConfig
	baseURL string
	http    *http.Client
}

// New creates a new client for the given configuration.
func New(config common.ClientConfig) *Client {
	baseURL := config.Endpoint
	if !strings.HasPrefix(baseURL, "http://") && !strings.HasPrefix(baseURL, "https://") {
		baseURL = "http://" + baseURL
	}

	return &Client{
		config:  config,
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Timeout: time.Duration(config.TimeoutSecond) * time.Second,
		},
	}
}

// --------------------------------------------------------------------------
// KV Operations
// --------------------------------------------------------------------------

// Set stores a key-value pair. ttlSeconds > 0 schedules expiry; 0 means no
// expiry.
func (c *Client) Set(ns, key, value string, ttlSeconds int64) (common.SetResponse, error) {
	req := common.SetRequest{
		Key:       key,
		Value:     &value,
		Namespace: ns,
	}
	if ttlSeconds > 0 {
		req.TTL = &ttlSeconds
	}

	var resp common.SetResponse
	err := c.call(http.MethodPost, "/set", nil, req, &resp)
	return resp, err
}

// Get looks up a key. A missing or expired key is reported through the
// boolean, not as an error.
func (c *Client) Get(ns, key string) (string, bool, error) {
	var resp common.GetResponse
	err := c.call(http.MethodGet, "/get/"+url.PathEscape(key), nsQuery(ns), nil, &resp)
	if err != nil {
		if isNotFound(err) {
			return "", false, nil
		}
		return "", false, err
	}
	return resp.Value, true, nil
}

// Delete removes a key. A missing key is reported through the boolean.
func (c *Client) Delete(ns, key string) (bool, error) {
	var resp common.DeleteResponse
	err := c.call(http.MethodDelete, "/delete/"+url.PathEscape(key), nsQuery(ns), nil, &resp)
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// --------------------------------------------------------------------------
// Namespace Operations
// --------------------------------------------------------------------------

// Namespaces lists all live namespaces.
func (c *Client) Namespaces() (common.NamespacesResponse, error) {
	var resp common.NamespacesResponse
	err := c.call(http.MethodGet, "/namespaces", nil, nil, &resp)
	return resp, err
}

// NamespaceSize reports the key count of one namespace.
func (c *Client) NamespaceSize(ns string) (common.NamespaceSizeResponse, error) {
	var resp common.NamespaceSizeResponse
	err := c.call(http.MethodGet, "/namespaces/"+url.PathEscape(ns)+"/keys", nil, nil, &resp)
	return resp, err
}

// ClearNamespace removes every key in a namespace.
func (c *Client) ClearNamespace(ns string) (common.ClearNamespaceResponse, error) {
	var resp common.ClearNamespaceResponse
	err := c.call(http.MethodDelete, "/namespaces/"+url.PathEscape(ns), nil, nil, &resp)
	return resp, err
}

// --------------------------------------------------------------------------
// Operational Endpoints
// --------------------------------------------------------------------------

// Stats fetches the store's counters, optionally focused on a namespace.
func (c *Client) Stats(ns string) (store.Stats, error) {
	var resp store.Stats
	err := c.call(http.MethodGet, "/stats", nsQuery(ns), nil, &resp)
	return resp, err
}

// Compact asks the server to rewrite its write-ahead log.
func (c *Client) Compact() (common.CompactResponse, error) {
	var resp common.CompactResponse
	err := c.call(http.MethodPost, "/compact", nil, nil, &resp)
	return resp, err
}

// Health performs a liveness check.
func (c *Client) Health() (common.HealthResponse, error) {
	var resp common.HealthResponse
	err := c.call(http.MethodGet, "/health", nil, nil, &resp)
	return resp, err
}

// Performance fetches the server's latency and throughput summary.
func (c *Client) Performance() (telemetry.Summary, error) {
	var resp telemetry.Summary
	err := c.call(http.MethodGet, "/performance", nil, nil, &resp)
	return resp, err
}

// --------------------------------------------------------------------------
// Helpers
// --------------------------------------------------------------------------

// APIError is an HTTP-level failure carrying the server's structured error
// message.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server responded %d: %s", e.StatusCode, e.Message)
}

// isNotFound reports whether an error is a 404 from the server.
func isNotFound(err error) bool {
	apiErr, ok := err.(*APIError)
	return ok && apiErr.StatusCode == http.StatusNotFound
}

// nsQuery builds the optional ?ns= query.
func nsQuery(ns string) url.Values {
	if ns == "" {
		return nil
	}
	return url.Values{"ns": []string{ns}}
}

// call performs one request with retries on transport failure and decodes
// the JSON response into out.
func (c *Client) call(method, path string, query url.Values, body, out any) error {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return fmt.Errorf("encoding request body: %w", err)
		}
	}

	var lastErr error
	attempts := c.config.RetryCount + 1
	if attempts < 1 {
		attempts = 1
	}

	for attempt := 0; attempt < attempts; attempt++ {
		req, err := http.NewRequest(method, target, bytes.NewReader(payload))
		if err != nil {
			return err
		}
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.http.Do(req)
		if err != nil {
			// transport failure: retry
			lastErr = err
			continue
		}

		return decodeResponse(resp, out)
	}

	return fmt.Errorf("request failed after %d attempts: %w", attempts, lastErr)
}

// decodeResponse turns a non-2xx response into an APIError and decodes a
// successful body into out.
func decodeResponse(resp *http.Response, out any) error {
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr common.ErrorResponse
		data, _ := io.ReadAll(resp.Body)
		if err := json.Unmarshal(data, &apiErr); err != nil || apiErr.Error == "" {
			apiErr.Error = strings.TrimSpace(string(data))
		}
		return &APIError{StatusCode: resp.StatusCode, Message: apiErr.Error}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response body: %w", err)
	}
	return nil
}
