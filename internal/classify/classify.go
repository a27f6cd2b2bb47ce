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

// Package classify decides whether a telemetry event represents an
// LLM generation or a generic span, and extracts model, prompt,
// response, and token-usage fields from its tags and sub-events.
//
// Every function here is pure and total: missing or malformed data
// degrades to a default ("unknown" model, empty content, unset
// counters), never to an error.
package classify

import (
	"strconv"
	"strings"

	"github.com/tombee/tracebridge/pkg/langfuse"
	"github.com/tombee/tracebridge/pkg/telemetry"
)

// Reserved tag keys, following the OpenTelemetry generative-AI
// semantic conventions emitted by the orchestration framework.
const (
	TagOperationName = "gen_ai.operation.name"
	TagModel         = "gen_ai.request.model"

	TagPromptTokens     = "gen_ai.usage.prompt_tokens"
	TagCompletionTokens = "gen_ai.usage.completion_tokens"
	TagTotalTokens      = "gen_ai.usage.total_tokens"

	// SubEventPrompt and SubEventCompletion name the structured
	// sub-events carrying prompt and completion content.
	SubEventPrompt     = "gen_ai.content.prompt"
	SubEventCompletion = "gen_ai.content.completion"

	// subEventContentTag is the tag holding the content payload
	// within a prompt or completion sub-event.
	subEventContentTag = "content"
)

// Kind is the observation kind an event maps to.
type Kind int

const (
	// KindSpan is a generic step with no model semantics.
	KindSpan Kind = iota

	// KindGeneration is a model-inference call.
	KindGeneration
)

// String returns the kind name.
func (k Kind) String() string {
	if k == KindGeneration {
		return "generation"
	}
	return "span"
}

// generationKeywords mark display names of model calls.
var generationKeywords = []string{"chatcompletion", "textgeneration", "completion"}

// Classify decides the observation kind for an event. An event is a
// generation when its display name contains a known model-call
// keyword, any tag key mentions a model or LLM, or the reserved
// operation-name tag is present. Everything else is a span.
func Classify(ev *telemetry.Event) Kind {
	name := strings.ToLower(ev.Name)
	for _, keyword := range generationKeywords {
		if strings.Contains(name, keyword) {
			return KindGeneration
		}
	}

	for _, tag := range ev.Tags {
		key := strings.ToLower(tag.Key)
		if strings.Contains(key, "model") || strings.Contains(key, "llm") {
			return KindGeneration
		}
		if strings.EqualFold(tag.Key, TagOperationName) {
			return KindGeneration
		}
	}

	return KindSpan
}

// Model extracts the model name: the reserved model tag first, then
// any tag whose key mentions a model, else "unknown".
func Model(ev *telemetry.Event) string {
	if model, ok := ev.Tag(TagModel); ok && model != "" {
		return model
	}
	for _, tag := range ev.Tags {
		if strings.Contains(strings.ToLower(tag.Key), "model") && tag.Value != "" {
			return tag.Value
		}
	}
	return "unknown"
}

// Prompt extracts the prompt content. Structured prompt sub-events
// win over flat tags whose key suggests an input.
func Prompt(ev *telemetry.Event) string {
	if content, ok := subEventContent(ev, SubEventPrompt); ok {
		return content
	}
	return firstTagContaining(ev, "prompt", "input")
}

// Response extracts the completion content. Structured completion
// sub-events win over flat tags whose key suggests an output.
func Response(ev *telemetry.Event) string {
	if content, ok := subEventContent(ev, SubEventCompletion); ok {
		return content
	}
	return firstTagContaining(ev, "response", "output", "completion")
}

// Usage extracts token counters. Each counter parses independently:
// a malformed or missing value leaves that counter unset, and a
// partially populated result is preserved as-is.
func Usage(ev *telemetry.Event) langfuse.Usage {
	var usage langfuse.Usage
	for _, tag := range ev.Tags {
		key := strings.ToLower(tag.Key)
		switch {
		case usage.PromptTokens == nil && tokenKey(key, TagPromptTokens, "prompt"):
			usage.PromptTokens = parseCount(tag.Value)
		case usage.CompletionTokens == nil && tokenKey(key, TagCompletionTokens, "completion"):
			usage.CompletionTokens = parseCount(tag.Value)
		case usage.TotalTokens == nil && tokenKey(key, TagTotalTokens, "total"):
			usage.TotalTokens = parseCount(tag.Value)
		}
	}
	return usage
}

// tokenKey reports whether key is the reserved counter key or a
// "_token" style key mentioning the counter name.
func tokenKey(key, reserved, marker string) bool {
	if key == reserved {
		return true
	}
	return strings.Contains(key, "_token") && strings.Contains(key, marker)
}

// parseCount parses a token counter, returning nil for malformed
// values so they read as absent rather than zero.
func parseCount(value string) *int {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return nil
	}
	return &n
}

// subEventContent returns the content payload of the first sub-event
// with the given name.
func subEventContent(ev *telemetry.Event, name string) (string, bool) {
	for i := range ev.SubEvents {
		sub := &ev.SubEvents[i]
		if !strings.EqualFold(sub.Name, name) {
			continue
		}
		if content, ok := sub.Tag(subEventContentTag); ok {
			return content, true
		}
		if len(sub.Tags) > 0 {
			return sub.Tags[0].Value, true
		}
	}
	return "", false
}

// firstTagContaining returns the first tag value whose key contains
// any of the markers, or empty when none match.
func firstTagContaining(ev *telemetry.Event, markers ...string) string {
	for _, tag := range ev.Tags {
		key := strings.ToLower(tag.Key)
		for _, marker := range markers {
			if strings.Contains(key, marker) {
				return tag.Value
			}
		}
	}
	return ""
}
