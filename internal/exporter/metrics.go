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

package exporter

import (
	"context"
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// MetricsCollector records export pipeline metrics. All methods are
// safe on a nil receiver so metrics stay optional.
type MetricsCollector struct {
	observationsTotal metric.Int64Counter
	errorsTotal       metric.Int64Counter
	filteredTotal     metric.Int64Counter
	droppedTotal      metric.Int64Counter

	queueDepth atomic.Int64
}

// NewMetricsCollector creates a collector registered on the given
// meter provider.
func NewMetricsCollector(meterProvider metric.MeterProvider) (*MetricsCollector, error) {
	meter := meterProvider.Meter("tracebridge")

	mc := &MetricsCollector{}

	var err error

	mc.observationsTotal, err = meter.Int64Counter(
		"tracebridge_observations_total",
		metric.WithDescription("Total number of observations exported to the collector"),
		metric.WithUnit("{observation}"),
	)
	if err != nil {
		return nil, err
	}

	mc.errorsTotal, err = meter.Int64Counter(
		"tracebridge_export_errors_total",
		metric.WithDescription("Total number of failed export attempts"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	mc.filteredTotal, err = meter.Int64Counter(
		"tracebridge_events_filtered_total",
		metric.WithDescription("Total number of events ignored for being outside the telemetry namespace"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return nil, err
	}

	mc.droppedTotal, err = meter.Int64Counter(
		"tracebridge_events_dropped_total",
		metric.WithDescription("Total number of events dropped by the work queue or missing mappings"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return nil, err
	}

	_, err = meter.Int64ObservableGauge(
		"tracebridge_queue_depth",
		metric.WithDescription("Current depth of the listener work queue"),
		metric.WithUnit("{item}"),
		metric.WithInt64Callback(func(_ context.Context, observer metric.Int64Observer) error {
			observer.Observe(mc.queueDepth.Load())
			return nil
		}),
	)
	if err != nil {
		return nil, err
	}

	return mc, nil
}

// RecordObservation counts one exported observation of the given kind.
func (mc *MetricsCollector) RecordObservation(ctx context.Context, kind string) {
	if mc == nil {
		return
	}
	mc.observationsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}

// RecordError counts one failed export attempt.
func (mc *MetricsCollector) RecordError(ctx context.Context) {
	if mc == nil {
		return
	}
	mc.errorsTotal.Add(ctx, 1)
}

// RecordFiltered counts one event ignored by the scope filter.
func (mc *MetricsCollector) RecordFiltered(ctx context.Context) {
	if mc == nil {
		return
	}
	mc.filteredTotal.Add(ctx, 1)
}

// RecordDropped counts one event dropped before export.
func (mc *MetricsCollector) RecordDropped(ctx context.Context) {
	if mc == nil {
		return
	}
	mc.droppedTotal.Add(ctx, 1)
}

// QueueDepthAdd adjusts the reported queue depth.
func (mc *MetricsCollector) QueueDepthAdd(delta int64) {
	if mc == nil {
		return
	}
	mc.queueDepth.Add(delta)
}

// NewMeterProvider creates a meter provider backed by the Prometheus
// exporter, which registers with the default Prometheus registry.
func NewMeterProvider() (*sdkmetric.MeterProvider, error) {
	promExporter, err := prometheus.New()
	if err != nil {
		return nil, err
	}
	return sdkmetric.NewMeterProvider(sdkmetric.WithReader(promExporter)), nil
}

// MetricsHandler returns an HTTP handler for the Prometheus metrics
// endpoint.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
