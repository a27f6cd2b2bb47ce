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

package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	"github.com/tombee/tracebridge/internal/config"
	"github.com/tombee/tracebridge/internal/exporter"
	"github.com/tombee/tracebridge/pkg/langfuse"
	"github.com/tombee/tracebridge/pkg/telemetry"
)

func newReplayCommand() *cobra.Command {
	var (
		dryRun      bool
		metricsAddr string
	)

	cmd := &cobra.Command{
		Use:   "replay <file>",
		Short: "Re-emit recorded telemetry events",
		Long: `Read telemetry events from a JSON file and push them through the full
export pipeline. Useful for debugging field extraction and classification
against a real or local collector without re-running the workload.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(cmd, args[0], dryRun, metricsAddr)
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print spans to stdout instead of sending them")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while replaying")
	return cmd
}

func runReplay(cmd *cobra.Command, path string, dryRun bool, metricsAddr string) error {
	events, err := readEvents(path)
	if err != nil {
		return err
	}

	spanExporter, cleanup, err := buildExporter(dryRun, metricsAddr)
	if err != nil {
		return err
	}
	defer cleanup()

	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(spanExporter))
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			slog.Warn("tracer provider shutdown incomplete", "error", err)
		}
	}()

	replayEvents(tp, events)

	cmd.Printf("replayed %d events from %s\n", len(events), path)
	return nil
}

func readEvents(path string) ([]telemetry.Event, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read events file: %w", err)
	}

	var events []telemetry.Event
	if err := json.Unmarshal(data, &events); err != nil {
		return nil, fmt.Errorf("failed to parse events file %s: %w", path, err)
	}
	return events, nil
}

// buildExporter picks the span exporter: the real bridge, or a
// stdout exporter for dry runs.
func buildExporter(dryRun bool, metricsAddr string) (sdktrace.SpanExporter, func(), error) {
	if dryRun {
		spanExporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create stdout exporter: %w", err)
		}
		return spanExporter, func() {}, nil
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}

	client, err := langfuse.New(langfuse.Config{
		PublicKey:       cfg.PublicKey,
		SecretKey:       cfg.SecretKey,
		Endpoint:        cfg.Endpoint,
		Timeout:         cfg.Timeout,
		PropagateErrors: cfg.PropagateErrors,
	})
	if err != nil {
		return nil, nil, err
	}

	opts := exporter.Options{ScopePatterns: cfg.Scopes}
	cleanup := func() {}

	if metricsAddr != "" {
		mp, err := exporter.NewMeterProvider()
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create meter provider: %w", err)
		}
		mc, err := exporter.NewMetricsCollector(mp)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create metrics collector: %w", err)
		}
		opts.Metrics = mc

		server := &http.Server{Addr: metricsAddr, Handler: exporter.MetricsHandler()}
		go func() {
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				slog.Warn("metrics server stopped", "error", err)
			}
		}()
		cleanup = func() {
			_ = server.Close()
			_ = mp.Shutdown(context.Background())
		}
	}

	return exporter.New(client, opts), cleanup, nil
}

// replayEvents re-emits recorded events as real spans. Events
// sharing a correlation id are parented under the first one seen so
// they land in a single trace.
func replayEvents(tp *sdktrace.TracerProvider, events []telemetry.Event) {
	roots := make(map[string]context.Context)

	for _, ev := range events {
		tracer := tp.Tracer(ev.Scope)

		parent, ok := roots[ev.CorrelationID]
		if !ok {
			parent = context.Background()
		}

		attrs := make([]attribute.KeyValue, 0, len(ev.Tags))
		for _, tag := range ev.Tags {
			attrs = append(attrs, attribute.String(tag.Key, tag.Value))
		}

		ctx, span := tracer.Start(parent, ev.Name,
			trace.WithTimestamp(ev.StartTime),
			trace.WithAttributes(attrs...),
		)
		if !ok {
			roots[ev.CorrelationID] = ctx
		}

		for _, sub := range ev.SubEvents {
			subAttrs := make([]attribute.KeyValue, 0, len(sub.Tags))
			for _, tag := range sub.Tags {
				subAttrs = append(subAttrs, attribute.String(tag.Key, tag.Value))
			}
			span.AddEvent(sub.Name,
				trace.WithTimestamp(sub.Timestamp),
				trace.WithAttributes(subAttrs...),
			)
		}

		switch ev.Status.Code {
		case telemetry.StatusOK:
			span.SetStatus(codes.Ok, "")
		case telemetry.StatusError:
			span.SetStatus(codes.Error, ev.Status.Message)
		}

		span.End(trace.WithTimestamp(ev.EndTime()))
	}
}
