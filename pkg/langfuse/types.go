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

package langfuse

import (
	"fmt"
	"strconv"
	"time"
)

// Millis is a timestamp serialized as milliseconds since the Unix
// epoch, as required by the observation endpoints. Trace creation
// uses a wall-clock timestamp instead (see TraceBody).
type Millis time.Time

// MarshalJSON encodes the timestamp as epoch milliseconds.
func (m Millis) MarshalJSON() ([]byte, error) {
	return []byte(strconv.FormatInt(time.Time(m).UnixMilli(), 10)), nil
}

// UnmarshalJSON decodes an epoch-milliseconds timestamp.
func (m *Millis) UnmarshalJSON(data []byte) error {
	ms, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid epoch-millis timestamp: %w", err)
	}
	*m = Millis(time.UnixMilli(ms).UTC())
	return nil
}

// Time returns the underlying time.
func (m Millis) Time() time.Time {
	return time.Time(m)
}

// Level is the severity attached to an event observation.
type Level string

const (
	LevelDebug   Level = "DEBUG"
	LevelDefault Level = "DEFAULT"
	LevelWarning Level = "WARNING"
	LevelError   Level = "ERROR"
)

// Usage carries token counts for a generation. Each counter is
// independently optional; an absent counter is omitted from the
// payload rather than zero-filled.
type Usage struct {
	PromptTokens     *int `json:"promptTokens,omitempty"`
	CompletionTokens *int `json:"completionTokens,omitempty"`
	TotalTokens      *int `json:"totalTokens,omitempty"`
}

// Empty returns true when no counter is set.
func (u Usage) Empty() bool {
	return u.PromptTokens == nil && u.CompletionTokens == nil && u.TotalTokens == nil
}

// TraceBody is the payload for trace creation. The ID is generated
// client-side before the request is issued.
type TraceBody struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// TraceUpdate is the payload for updating an existing trace.
type TraceUpdate struct {
	Metadata map[string]any `json:"metadata,omitempty"`
	Output   any            `json:"output,omitempty"`
}

// GenerationBody is the payload for a model-inference observation.
type GenerationBody struct {
	TraceID   string         `json:"traceId"`
	Name      string         `json:"name"`
	StartTime Millis         `json:"startTime"`
	EndTime   Millis         `json:"endTime"`
	Model     string         `json:"model"`
	Input     any            `json:"input"`
	Output    any            `json:"output"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Usage     Usage          `json:"usage"`
}

// SpanBody is the payload for a generic step observation.
type SpanBody struct {
	TraceID   string         `json:"traceId"`
	Name      string         `json:"name"`
	Input     any            `json:"input,omitempty"`
	Output    any            `json:"output,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	StartTime Millis         `json:"startTime"`
	EndTime   Millis         `json:"endTime"`
}

// EventBody is the payload for a point-in-time observation.
type EventBody struct {
	TraceID   string         `json:"traceId"`
	Name      string         `json:"name"`
	StartTime Millis         `json:"startTime"`
	EndTime   Millis         `json:"endTime"`
	Level     Level          `json:"level"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}
