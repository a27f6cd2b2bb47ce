// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package langfuse is a client for the Langfuse public ingestion API.
//
// The client issues one best-effort HTTP call per operation. By
// default transport failures are logged and swallowed so telemetry
// export never blocks the instrumented application; set
// Config.PropagateErrors to surface them instead.
package langfuse

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tombee/tracebridge/pkg/httpclient"
)

// DefaultEndpoint is the public cloud endpoint used when none is
// configured.
const DefaultEndpoint = "https://cloud.langfuse.com"

// Config configures the Langfuse client.
type Config struct {
	// PublicKey is the project public key. Required.
	PublicKey string

	// SecretKey is the project secret key. Required.
	SecretKey string

	// Endpoint is the API base URL. Defaults to DefaultEndpoint.
	Endpoint string

	// PropagateErrors makes transport failures surface to the caller
	// instead of being logged and swallowed.
	PropagateErrors bool

	// KeepTransportOnClose leaves pooled connections open when the
	// client is closed. By default Close releases them.
	KeepTransportOnClose bool

	// Timeout is the per-request timeout. Defaults to 30s.
	Timeout time.Duration

	// HTTPClient overrides the default transport. Optional.
	HTTPClient *http.Client

	// Logger receives swallowed-failure warnings. Defaults to the
	// process default logger.
	Logger *slog.Logger
}

// Validate checks that required credentials are present.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.PublicKey) == "" {
		return errors.New("public key is required")
	}
	if strings.TrimSpace(c.SecretKey) == "" {
		return errors.New("secret key is required")
	}
	return nil
}

// Client talks to the Langfuse public API.
type Client struct {
	cfg      Config
	baseURL  string
	http     *http.Client
	ownsHTTP bool
	logger   *slog.Logger
}

// New creates a Langfuse client. Missing credentials are a
// construction-time error; everything else has a default.
func New(cfg Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid langfuse config: %w", err)
	}

	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	httpClient := cfg.HTTPClient
	ownsHTTP := false
	if httpClient == nil {
		clientCfg := httpclient.DefaultConfig()
		clientCfg.Timeout = cfg.Timeout
		clientCfg.UserAgent = "tracebridge/1.0"

		var err error
		httpClient, err = httpclient.New(clientCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create http client: %w", err)
		}
		ownsHTTP = true
	}

	return &Client{
		cfg:      cfg,
		baseURL:  strings.TrimRight(cfg.Endpoint, "/"),
		http:     httpClient,
		ownsHTTP: ownsHTTP,
		logger:   logger.With("component", "langfuse"),
	}, nil
}

// CreateTrace creates a remote trace and returns its id. The id is
// generated client-side before the request, so on a swallowed
// transport failure the caller still receives a usable id and the
// pipeline keeps moving; the trace may simply not exist remotely.
func (c *Client) CreateTrace(ctx context.Context, body TraceBody) (string, error) {
	if body.ID == "" {
		body.ID = uuid.New().String()
	}
	if body.Timestamp.IsZero() {
		body.Timestamp = time.Now().UTC()
	}

	err := c.send(ctx, http.MethodPost, "/api/public/traces", body)
	if err := c.finish("create trace", err); err != nil {
		return "", err
	}
	return body.ID, nil
}

// CreateGeneration records a model-inference observation.
func (c *Client) CreateGeneration(ctx context.Context, body GenerationBody) error {
	err := c.send(ctx, http.MethodPost, "/api/public/generations", body)
	return c.finish("create generation", err)
}

// CreateSpan records a generic step observation.
func (c *Client) CreateSpan(ctx context.Context, body SpanBody) error {
	err := c.send(ctx, http.MethodPost, "/api/public/spans", body)
	return c.finish("create span", err)
}

// CreateEvent records a point-in-time observation.
func (c *Client) CreateEvent(ctx context.Context, body EventBody) error {
	err := c.send(ctx, http.MethodPost, "/api/public/events", body)
	return c.finish("create event", err)
}

// UpdateTrace patches metadata or output on an existing trace.
func (c *Client) UpdateTrace(ctx context.Context, traceID string, update TraceUpdate) error {
	if traceID == "" {
		return errors.New("trace id is required")
	}
	err := c.send(ctx, http.MethodPatch, "/api/public/traces/"+traceID, update)
	return c.finish("update trace", err)
}

// Ingest submits a mixed-kind observation batch in a single request.
func (c *Client) Ingest(ctx context.Context, items []IngestionItem) error {
	if len(items) == 0 {
		return nil
	}
	err := c.send(ctx, http.MethodPost, "/api/public/ingestion", ingestionRequest{Batch: items})
	return c.finish("ingest batch", err)
}

// Close releases the transport the client created, unless configured
// to keep it. A caller-provided HTTPClient is left untouched; its
// lifecycle belongs to the caller. Safe to call once the client is no
// longer needed; in-flight requests are not cancelled.
func (c *Client) Close() {
	if c.cfg.KeepTransportOnClose {
		return
	}
	if c.ownsHTTP {
		c.http.CloseIdleConnections()
	}
}

// send issues a single request and checks for a 2xx response.
func (c *Client) send(ctx context.Context, method, path string, body any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(c.cfg.PublicKey, c.cfg.SecretKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s %s returned %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	// Drain so the connection can be reused.
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// finish applies the configured error policy: propagate, or log and
// swallow so the export pipeline stays non-blocking.
func (c *Client) finish(op string, err error) error {
	if err == nil {
		return nil
	}
	if c.cfg.PropagateErrors {
		return fmt.Errorf("%s: %w", op, err)
	}
	c.logger.Warn("request failed", "op", op, "error", err)
	return nil
}
