// Package e2e drives a running compliance service over HTTP with godog.
// The suite targets the instance named by TRIDCHECK_E2E_BASE_URL and skips
// itself when the variable is unset, so it never interferes with unit runs.
package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// TestContext holds per-scenario HTTP state shared by all step packages.
// Each scenario gets a fresh context so responses never leak across scenarios.
type TestContext struct {
	baseURL string
	client  *http.Client

	lastStatus int
	lastBody   []byte
}

// NewTestContext creates a context targeting the service at baseURL.
func NewTestContext(baseURL string) *TestContext {
	return &TestContext{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

// POST marshals body as JSON, sends it to path, and records the response.
func (tc *TestContext) POST(path string, body any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request body: %w", err)
	}
	return tc.PostRaw(path, payload)
}

// PostRaw sends a raw JSON body to path and records the response.
func (tc *TestContext) PostRaw(path string, body []byte) error {
	resp, err := tc.client.Post(tc.baseURL+path, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("POST %s: %w", path, err)
	}
	return tc.record(resp)
}

// GET sends a GET request with optional headers and records the response.
func (tc *TestContext) GET(path string, headers map[string]string) error {
	req, err := http.NewRequest(http.MethodGet, tc.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build GET %s: %w", path, err)
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	resp, err := tc.client.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	return tc.record(resp)
}

func (tc *TestContext) record(resp *http.Response) error {
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}
	tc.lastStatus = resp.StatusCode
	tc.lastBody = body
	return nil
}

// GetLastResponseStatus returns the status code of the last response.
func (tc *TestContext) GetLastResponseStatus() int { return tc.lastStatus }

// GetLastResponseBody returns the raw body of the last response.
func (tc *TestContext) GetLastResponseBody() []byte { return tc.lastBody }

// GetResponseField looks up a dotted path in the last JSON response body.
func (tc *TestContext) GetResponseField(field string) (any, error) {
	var doc map[string]any
	if err := json.Unmarshal(tc.lastBody, &doc); err != nil {
		return nil, fmt.Errorf("last response is not a JSON object: %w", err)
	}

	var current any = doc
	for _, part := range strings.Split(field, ".") {
		obj, ok := current.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("field %q: %q is not an object", field, part)
		}
		current, ok = obj[part]
		if !ok {
			return nil, fmt.Errorf("field %q not present in response", field)
		}
	}
	return current, nil
}
