package remote

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

	"go.uber.org/zap"

	"github.com/csaptu/tasksync/internal/store"
	"github.com/csaptu/tasksync/internal/task"
)

// defaultTimeout bounds each request. The engine has no mid-operation
// cancellation; a hung call must surface as a failure on its own.
const defaultTimeout = 15 * time.Second

// maxErrorBody caps how much of an error response lands in the recorded
// error string.
const maxErrorBody = 512

// Client is the HTTP implementation of Service, speaking the task CRUD
// endpoints under /v1/tasks.
type Client struct {
	base *url.URL
	http *http.Client
	log  *zap.Logger
}

// ClientConfig configures NewClient. Only BaseURL is required.
type ClientConfig struct {
	BaseURL string

	// Timeout applies per request. Zero means defaultTimeout.
	Timeout time.Duration

	// HTTPClient overrides the transport, for tests. Its own Timeout wins
	// when set.
	HTTPClient *http.Client

	Logger *zap.Logger
}

// NewClient validates the base URL and builds a client.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("remote client: base url is empty")
	}

	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("remote client: parse base url: %w", err)
	}

	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("remote client: unsupported scheme %q", base.Scheme)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}

		httpClient = &http.Client{Timeout: timeout}
	}

	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	return &Client{base: base, http: httpClient, log: log}, nil
}

// Create posts a new task and returns the canonical record the server stored.
func (c *Client) Create(ctx context.Context, payload *store.CreatePayload) (*task.Task, error) {
	var created task.Task

	err := c.do(ctx, http.MethodPost, "/v1/tasks", payload, &created)
	if err != nil {
		return nil, err
	}

	c.log.Debug("created task", zap.String("id", created.ID))

	return &created, nil
}

// Update patches a task with a field delta and returns the canonical record.
func (c *Client) Update(ctx context.Context, id string, payload *store.UpdatePayload) (*task.Task, error) {
	var updated task.Task

	err := c.do(ctx, http.MethodPatch, "/v1/tasks/"+url.PathEscape(id), payload, &updated)
	if err != nil {
		return nil, err
	}

	c.log.Debug("updated task", zap.String("id", id))

	return &updated, nil
}

// Delete removes a task.
func (c *Client) Delete(ctx context.Context, id string) error {
	err := c.do(ctx, http.MethodDelete, "/v1/tasks/"+url.PathEscape(id), nil, nil)
	if err != nil {
		return err
	}

	c.log.Debug("deleted task", zap.String("id", id))

	return nil
}

// List fetches the authoritative task list.
func (c *Client) List(ctx context.Context) ([]*task.Task, error) {
	var tasks []*task.Task

	err := c.do(ctx, http.MethodGet, "/v1/tasks", nil, &tasks)
	if err != nil {
		return nil, err
	}

	return tasks, nil
}

// do runs one request. Non-2xx responses become errors carrying the status
// and a bounded slice of the body.
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader

	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s %s: encode body: %w", method, path, err)
		}

		body = bytes.NewReader(data)
	}

	target := c.base.JoinPath(path).String()

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return fmt.Errorf("%s %s: build request: %w", method, path, err)
	}

	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

		return fmt.Errorf("%s %s: server returned %d: %s",
			method, path, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	if out == nil {
		return nil
	}

	err = json.NewDecoder(resp.Body).Decode(out)
	if err != nil {
		return fmt.Errorf("%s %s: decode response: %w", method, path, err)
	}

	return nil
}
