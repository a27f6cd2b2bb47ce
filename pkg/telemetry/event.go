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

// Package telemetry defines the event model the bridge operates on.
// An Event is a completed (or starting) unit of work emitted by an
// instrumented orchestration framework, normalized away from any
// particular tracing SDK so the classifier and exporter can stay
// SDK-agnostic. This package is designed to be embeddable in other
// Go applications.
package telemetry

import (
	"time"
)

// Event is a single observed unit of work.
// Once finalized by the emitting framework an Event is immutable;
// the exporter owns it for the duration of processing.
type Event struct {
	// Name is the display name of the operation.
	Name string `json:"name"`

	// ID uniquely identifies this event within its trace.
	ID string `json:"id"`

	// CorrelationID groups related events. It is the framework's own
	// trace identifier, distinct from any remotely assigned trace id.
	CorrelationID string `json:"correlation_id"`

	// Scope is the instrumentation scope (source namespace) that
	// produced this event. Events from unknown scopes are ignored.
	Scope string `json:"scope"`

	// StartTime is when the operation began.
	StartTime time.Time `json:"start_time"`

	// Duration is how long the operation ran. Never negative.
	Duration time.Duration `json:"duration"`

	// Status is the operation's outcome.
	Status Status `json:"status"`

	// Tags are ordered key-value metadata. Keys are unique per event;
	// on duplicate writes the last value wins.
	Tags []Tag `json:"tags,omitempty"`

	// SubEvents are timestamped occurrences recorded within the
	// operation, such as prompt or completion content events.
	SubEvents []SubEvent `json:"sub_events,omitempty"`
}

// Tag is a single key-value metadata pair.
type Tag struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// SubEvent is a timestamped occurrence within an Event.
type SubEvent struct {
	Name      string    `json:"name"`
	Timestamp time.Time `json:"timestamp"`
	Tags      []Tag     `json:"tags,omitempty"`
}

// Status describes an event's outcome.
type Status struct {
	Code    StatusCode `json:"code"`
	Message string     `json:"message,omitempty"`
}

// StatusCode is the status category of an event.
type StatusCode string

const (
	// StatusUnset indicates no status was explicitly set.
	StatusUnset StatusCode = "unset"

	// StatusOK indicates successful completion.
	StatusOK StatusCode = "ok"

	// StatusError indicates an error occurred.
	StatusError StatusCode = "error"
)

// EndTime returns the completion time derived from start time and
// duration. EndTime is always >= StartTime.
func (e *Event) EndTime() time.Time {
	return e.StartTime.Add(e.Duration)
}

// Tag returns the value for key. When the same key was written more
// than once the most recent value wins.
func (e *Event) Tag(key string) (string, bool) {
	for i := len(e.Tags) - 1; i >= 0; i-- {
		if e.Tags[i].Key == key {
			return e.Tags[i].Value, true
		}
	}
	return "", false
}

// Tag returns the value for key within the sub-event, most recent
// write winning.
func (s *SubEvent) Tag(key string) (string, bool) {
	for i := len(s.Tags) - 1; i >= 0; i-- {
		if s.Tags[i].Key == key {
			return s.Tags[i].Value, true
		}
	}
	return "", false
}

// Failed returns true if the event completed with an error status.
func (e *Event) Failed() bool {
	return e.Status.Code == StatusError
}
