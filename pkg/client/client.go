// Package client is the SDK for the Peterbot sandbox build service.
package client

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/onewithdev/peterbot-sandbox/pkg/buildlog"
	"github.com/onewithdev/peterbot-sandbox/pkg/types"
)

// DefaultBaseURL is used when PETERBOT_BUILD_URL is not set.
const DefaultBaseURL = "http://localhost:8080"

// Client is an HTTP client for the build service API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a new build service client.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// NewFromEnv creates a client from PETERBOT_BUILD_URL and PETERBOT_API_KEY.
func NewFromEnv() *Client {
	baseURL := os.Getenv("PETERBOT_BUILD_URL")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return NewClient(baseURL, os.Getenv("PETERBOT_API_KEY"))
}

// doRequest performs an HTTP request with API key authentication.
func (c *Client) doRequest(ctx context.Context, method, path string, body interface{}) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonData)
	}

	reqURL := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, method, reqURL, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}

	return resp, nil
}

// BuildOption configures a Build call.
type BuildOption func(*buildOptions)

type buildOptions struct {
	tag  string
	logs buildlog.Logger
}

// WithBuildLogs streams build log entries to fn as the service emits them.
func WithBuildLogs(fn buildlog.Logger) BuildOption {
	return func(o *buildOptions) { o.logs = fn }
}

// WithTag tags the built template (default "latest").
func WithTag(tag string) BuildOption {
	return func(o *buildOptions) { o.tag = tag }
}

// Build requests a build of the template definition under the given name
// and blocks until the build finishes. The response is a stream of
// BuildLogEntry values, one JSON object per line; each is delivered to the
// WithBuildLogs callback in order. The terminal "result" entry carries the
// final status. Build has no client-side timeout; cancel via ctx.
func (c *Client) Build(ctx context.Context, def *types.TemplateDefinition, name string, opts ...BuildOption) (*types.TemplateBuild, error) {
	if def == nil {
		return nil, fmt.Errorf("template definition is nil")
	}
	if name == "" {
		return nil, fmt.Errorf("template name is empty")
	}

	options := buildOptions{logs: buildlog.Discard()}
	for _, opt := range opts {
		opt(&options)
	}

	reqBody := types.TemplateBuildRequest{
		Name:       name,
		Tag:        options.tag,
		Definition: def,
	}
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal build request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/templates/builds", bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", c.apiKey)

	// Builds run long; rely on ctx for cancellation instead of the
	// default client timeout.
	httpClient := &http.Client{Transport: c.httpClient.Transport}
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute build request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}

	return readBuildStream(resp.Body, options.logs)
}

// readBuildStream consumes an NDJSON build log stream, forwarding entries
// to the logger until the terminal result entry.
func readBuildStream(r io.Reader, logs buildlog.Logger) (*types.TemplateBuild, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	var result *types.BuildLogEntry
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var entry types.BuildLogEntry
		if err := json.Unmarshal(line, &entry); err != nil {
			return nil, fmt.Errorf("decode build log entry: %w", err)
		}

		logs(entry)

		if entry.Type == types.LogEntryResult {
			result = &entry
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read build stream: %w", err)
	}
	if result == nil {
		return nil, fmt.Errorf("build stream ended without a result entry")
	}

	build := &types.TemplateBuild{
		ID:       result.BuildID,
		Status:   result.Status,
		ImageRef: result.ImageRef,
		Error:    result.Error,
	}
	if result.Status != types.BuildStatusSucceeded {
		return build, fmt.Errorf("build %s failed: %s", result.BuildID, result.Error)
	}
	return build, nil
}

// GetBuild returns a build record by ID.
func (c *Client) GetBuild(ctx context.Context, buildID string) (*types.TemplateBuild, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, fmt.Sprintf("/api/builds/%s", buildID), nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}

	var build types.TemplateBuild
	if err := json.NewDecoder(resp.Body).Decode(&build); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	return &build, nil
}

// ListBuilds lists recent builds, newest first.
func (c *Client) ListBuilds(ctx context.Context) ([]types.TemplateBuild, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/api/builds", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}

	var builds []types.TemplateBuild
	if err := json.NewDecoder(resp.Body).Decode(&builds); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	return builds, nil
}

// GetBuildLogs returns the stored log of a finished build.
func (c *Client) GetBuildLogs(ctx context.Context, buildID string) (string, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, fmt.Sprintf("/api/builds/%s/logs", buildID), nil)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	return string(body), nil
}

// WatchBuild tails a running build's log over a websocket, delivering
// entries to fn until the build finishes or ctx is cancelled.
func (c *Client) WatchBuild(ctx context.Context, buildID string, fn buildlog.Logger) error {
	wsURL := strings.Replace(c.baseURL, "http", "ws", 1) + fmt.Sprintf("/api/builds/%s/logs/ws", buildID)

	header := http.Header{}
	header.Set("X-API-Key", c.apiKey)

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, wsURL, header)
	if err != nil {
		if resp != nil {
			body, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			return fmt.Errorf("watch build (status %d): %s", resp.StatusCode, string(body))
		}
		return fmt.Errorf("watch build: %w", err)
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	for {
		var entry types.BuildLogEntry
		if err := conn.ReadJSON(&entry); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return nil
			}
			return fmt.Errorf("read build log: %w", err)
		}

		fn(entry)

		if entry.Type == types.LogEntryResult {
			return nil
		}
	}
}

// ListTemplates lists all templates known to the service.
func (c *Client) ListTemplates(ctx context.Context) ([]types.Template, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/api/templates", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}

	var templates []types.Template
	if err := json.NewDecoder(resp.Body).Decode(&templates); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	return templates, nil
}

// GetTemplate returns a template by name.
func (c *Client) GetTemplate(ctx context.Context, name string) (*types.Template, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, fmt.Sprintf("/api/templates/%s", name), nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}

	var tmpl types.Template
	if err := json.NewDecoder(resp.Body).Decode(&tmpl); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	return &tmpl, nil
}

// DeleteTemplate removes a template by name.
func (c *Client) DeleteTemplate(ctx context.Context, name string) error {
	resp, err := c.doRequest(ctx, http.MethodDelete, fmt.Sprintf("/api/templates/%s", name), nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}

	return nil
}
