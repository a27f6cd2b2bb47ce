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

// IngestionType tags an ingestion batch item with its payload kind.
type IngestionType string

const (
	IngestionTraceCreate      IngestionType = "trace-create"
	IngestionGenerationCreate IngestionType = "generation-create"
	IngestionSpanCreate       IngestionType = "span-create"
	IngestionEventCreate      IngestionType = "event-create"
)

// IngestionItem is one entry of a mixed-kind ingestion batch.
// Construct items with TraceItem, GenerationItem, SpanItem, or
// EventItem so the type tag always matches the body shape.
type IngestionItem struct {
	Type IngestionType `json:"type"`
	Body any           `json:"body"`
}

// TraceItem wraps a trace-create body for batch ingestion.
func TraceItem(body TraceBody) IngestionItem {
	return IngestionItem{Type: IngestionTraceCreate, Body: body}
}

// GenerationItem wraps a generation-create body for batch ingestion.
func GenerationItem(body GenerationBody) IngestionItem {
	return IngestionItem{Type: IngestionGenerationCreate, Body: body}
}

// SpanItem wraps a span-create body for batch ingestion.
func SpanItem(body SpanBody) IngestionItem {
	return IngestionItem{Type: IngestionSpanCreate, Body: body}
}

// EventItem wraps an event-create body for batch ingestion.
func EventItem(body EventBody) IngestionItem {
	return IngestionItem{Type: IngestionEventCreate, Body: body}
}

// ingestionRequest is the envelope for the ingestion endpoint.
type ingestionRequest struct {
	Batch []IngestionItem `json:"batch"`
}
