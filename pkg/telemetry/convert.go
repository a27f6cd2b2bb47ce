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

package telemetry

import (
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// FromSpan converts a finished OpenTelemetry span to an Event.
// Attribute values are rendered to strings; a span that ended before
// it started yields a zero duration rather than a negative one.
func FromSpan(span sdktrace.ReadOnlySpan) Event {
	sc := span.SpanContext()

	ev := Event{
		Name:          span.Name(),
		ID:            sc.SpanID().String(),
		CorrelationID: sc.TraceID().String(),
		Scope:         span.InstrumentationScope().Name,
		StartTime:     span.StartTime(),
	}

	if end := span.EndTime(); !end.IsZero() && end.After(ev.StartTime) {
		ev.Duration = end.Sub(ev.StartTime)
	}

	switch status := span.Status(); status.Code {
	case codes.Ok:
		ev.Status = Status{Code: StatusOK}
	case codes.Error:
		ev.Status = Status{Code: StatusError, Message: status.Description}
	default:
		ev.Status = Status{Code: StatusUnset}
	}

	for _, attr := range span.Attributes() {
		ev.Tags = append(ev.Tags, Tag{
			Key:   string(attr.Key),
			Value: attr.Value.Emit(),
		})
	}

	for _, otelEvent := range span.Events() {
		sub := SubEvent{
			Name:      otelEvent.Name,
			Timestamp: otelEvent.Time,
		}
		for _, attr := range otelEvent.Attributes {
			sub.Tags = append(sub.Tags, Tag{
				Key:   string(attr.Key),
				Value: attr.Value.Emit(),
			})
		}
		ev.SubEvents = append(ev.SubEvents, sub)
	}

	return ev
}
