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

// Package exporter forwards completed telemetry events to the remote
// collector. It offers two integration flavors over one pipeline: a
// batch SpanExporter for use behind a batch span processor, and a
// listener Processor that reacts to activity start and stop directly.
package exporter

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/tombee/tracebridge/internal/classify"
	"github.com/tombee/tracebridge/internal/mapper"
	"github.com/tombee/tracebridge/pkg/langfuse"
	"github.com/tombee/tracebridge/pkg/telemetry"
)

// DefaultScopePatterns matches the orchestration framework's
// instrumentation scopes. Events from any other scope are ignored.
var DefaultScopePatterns = []string{
	"github.com/tombee/conductor",
	"github.com/tombee/conductor/**",
}

// Collector is the remote API surface the exporter needs.
// Satisfied by *langfuse.Client.
type Collector interface {
	CreateTrace(ctx context.Context, body langfuse.TraceBody) (string, error)
	CreateSpan(ctx context.Context, body langfuse.SpanBody) error
	CreateGeneration(ctx context.Context, body langfuse.GenerationBody) error
	CreateEvent(ctx context.Context, body langfuse.EventBody) error
}

// Options configures an Exporter.
type Options struct {
	// ScopePatterns are glob patterns selecting which instrumentation
	// scopes to forward. Defaults to DefaultScopePatterns.
	ScopePatterns []string

	// Logger receives per-event warnings. Defaults to the process
	// default logger.
	Logger *slog.Logger

	// Metrics records export counters. Optional.
	Metrics *MetricsCollector
}

// Exporter drives the per-event pipeline: scope filter, trace
// resolution, classification, then one remote call per observation.
// It implements sdktrace.SpanExporter for batch use.
type Exporter struct {
	client   Collector
	traces   *mapper.TraceMap
	patterns []string
	logger   *slog.Logger
	metrics  *MetricsCollector
}

// New creates an Exporter. The correlation map is owned by the
// returned exporter and lives until Shutdown.
func New(client Collector, opts Options) *Exporter {
	patterns := opts.ScopePatterns
	if len(patterns) == 0 {
		patterns = DefaultScopePatterns
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Exporter{
		client:   client,
		traces:   mapper.New(client),
		patterns: patterns,
		logger:   logger.With("component", "exporter"),
		metrics:  opts.Metrics,
	}
}

// Traces exposes the correlation map, primarily for the listener
// processor and for tests.
func (e *Exporter) Traces() *mapper.TraceMap {
	return e.traces
}

// ExportSpans forwards a batch of finished spans. Events are
// processed independently: a failure on one is logged and does not
// block the rest, and the batch itself reports success once
// dispatch has begun.
func (e *Exporter) ExportSpans(ctx context.Context, spans []sdktrace.ReadOnlySpan) error {
	for _, span := range spans {
		ev := telemetry.FromSpan(span)
		if err := e.Process(ctx, ev); err != nil {
			e.logger.Warn("failed to export event", "name", ev.Name, "error", err)
		}
	}
	return nil
}

// Shutdown releases the correlation map and the remote client's
// transport when the client owns one.
func (e *Exporter) Shutdown(ctx context.Context) error {
	e.traces.Clear()
	if closer, ok := e.client.(interface{ Close() }); ok {
		closer.Close()
	}
	return nil
}

var _ sdktrace.SpanExporter = (*Exporter)(nil)

// Process runs the full pipeline for one event: events from unknown
// scopes are dropped without any remote call or mapping entry.
func (e *Exporter) Process(ctx context.Context, ev telemetry.Event) error {
	if !e.MatchScope(ev.Scope) {
		e.metrics.RecordFiltered(ctx)
		return nil
	}

	traceID, err := e.traces.ResolveOrCreate(ctx, ev.CorrelationID, ev.Name)
	if err != nil {
		e.metrics.RecordError(ctx)
		return fmt.Errorf("failed to resolve trace: %w", err)
	}

	return e.Emit(ctx, traceID, ev)
}

// Emit classifies the event and sends the matching observation.
func (e *Exporter) Emit(ctx context.Context, traceID string, ev telemetry.Event) error {
	kind := classify.Classify(&ev)

	var err error
	switch kind {
	case classify.KindGeneration:
		err = e.client.CreateGeneration(ctx, generationBody(traceID, &ev))
	default:
		err = e.client.CreateSpan(ctx, spanBody(traceID, &ev))
	}

	if err != nil {
		e.metrics.RecordError(ctx)
		return fmt.Errorf("failed to emit %s %q: %w", kind, ev.Name, err)
	}

	e.metrics.RecordObservation(ctx, kind.String())
	return nil
}

// MatchScope reports whether a scope belongs to the telemetry
// namespace this exporter forwards.
func (e *Exporter) MatchScope(scope string) bool {
	for _, pattern := range e.patterns {
		if ok, err := doublestar.Match(pattern, scope); err == nil && ok {
			return true
		}
	}
	return false
}

// generationBody projects an event onto a generation observation.
// Tags consumed as model, prompt, response, or token counters stay
// out of the metadata bag; everything else goes in, along with
// status, duration, and the serialized sub-events.
func generationBody(traceID string, ev *telemetry.Event) langfuse.GenerationBody {
	metadata := map[string]any{
		"duration_ms": ev.Duration.Milliseconds(),
		"status":      string(ev.Status.Code),
	}
	if ev.Status.Message != "" {
		metadata["status_message"] = ev.Status.Message
	}
	for _, tag := range ev.Tags {
		if !generationField(tag.Key) {
			metadata[tag.Key] = tag.Value
		}
	}
	if len(ev.SubEvents) > 0 {
		metadata["events"] = ev.SubEvents
	}

	return langfuse.GenerationBody{
		TraceID:   traceID,
		Name:      ev.Name,
		StartTime: langfuse.Millis(ev.StartTime),
		EndTime:   langfuse.Millis(ev.EndTime()),
		Model:     classify.Model(ev),
		Input:     classify.Prompt(ev),
		Output:    classify.Response(ev),
		Metadata:  metadata,
		Usage:     classify.Usage(ev),
	}
}

// generationField reports whether a tag key is consumed by one of
// the generation field extractors.
func generationField(key string) bool {
	k := strings.ToLower(key)
	switch {
	case strings.Contains(k, "_token"):
		return true
	case strings.Contains(k, "model"):
		return true
	case strings.Contains(k, "prompt"), strings.Contains(k, "input"):
		return true
	case strings.Contains(k, "response"), strings.Contains(k, "output"), strings.Contains(k, "completion"):
		return true
	}
	return false
}

// spanBody projects an event onto a span observation, splitting tags
// into input, output, and metadata bags by key.
func spanBody(traceID string, ev *telemetry.Event) langfuse.SpanBody {
	var input, output map[string]any
	metadata := map[string]any{
		"duration_ms": ev.Duration.Milliseconds(),
		"status":      string(ev.Status.Code),
	}
	if ev.Status.Message != "" {
		metadata["status_message"] = ev.Status.Message
	}

	for _, tag := range ev.Tags {
		key := strings.ToLower(tag.Key)
		switch {
		case containsAny(key, "input", "prompt", "request"):
			if input == nil {
				input = make(map[string]any)
			}
			input[tag.Key] = tag.Value
		case containsAny(key, "output", "response", "completion", "result"):
			if output == nil {
				output = make(map[string]any)
			}
			output[tag.Key] = tag.Value
		default:
			metadata[tag.Key] = tag.Value
		}
	}

	body := langfuse.SpanBody{
		TraceID:   traceID,
		Name:      ev.Name,
		Metadata:  metadata,
		StartTime: langfuse.Millis(ev.StartTime),
		EndTime:   langfuse.Millis(ev.EndTime()),
	}
	if input != nil {
		body.Input = input
	}
	if output != nil {
		body.Output = output
	}
	return body
}

func containsAny(key string, markers ...string) bool {
	for _, marker := range markers {
		if strings.Contains(key, marker) {
			return true
		}
	}
	return false
}
