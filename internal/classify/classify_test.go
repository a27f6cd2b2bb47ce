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

package classify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tombee/tracebridge/pkg/telemetry"
)

func event(name string, tags ...telemetry.Tag) telemetry.Event {
	return telemetry.Event{
		Name: name,
		Tags: tags,
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		ev   telemetry.Event
		want Kind
	}{
		{
			name: "chat completion name",
			ev:   event("ChatCompletion"),
			want: KindGeneration,
		},
		{
			name: "completion keyword embedded in name",
			ev:   event("openai.ChatCompletionAsync"),
			want: KindGeneration,
		},
		{
			name: "text generation name",
			ev:   event("TextGeneration"),
			want: KindGeneration,
		},
		{
			name: "function invocation without model tags",
			ev:   event("FunctionInvocation", telemetry.Tag{Key: "function.name", Value: "search"}),
			want: KindSpan,
		},
		{
			name: "model tag forces generation regardless of name",
			ev:   event("FunctionInvocation", telemetry.Tag{Key: "request.model", Value: "gpt-4"}),
			want: KindGeneration,
		},
		{
			name: "llm tag forces generation",
			ev:   event("step", telemetry.Tag{Key: "llm.provider", Value: "anthropic"}),
			want: KindGeneration,
		},
		{
			name: "reserved operation name tag",
			ev:   event("invoke", telemetry.Tag{Key: "GEN_AI.OPERATION.NAME", Value: "chat"}),
			want: KindGeneration,
		},
		{
			name: "plain step",
			ev:   event("RenderPrompt-Step", telemetry.Tag{Key: "workflow.id", Value: "w1"}),
			want: KindSpan,
		},
		{
			name: "empty event",
			ev:   event(""),
			want: KindSpan,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(&tt.ev)
			assert.Equal(t, tt.want, got)

			// Classification is deterministic: same input, same answer.
			assert.Equal(t, got, Classify(&tt.ev))
		})
	}
}

func TestModel(t *testing.T) {
	t.Run("reserved key wins", func(t *testing.T) {
		ev := event("gen",
			telemetry.Tag{Key: "custom.model", Value: "other"},
			telemetry.Tag{Key: TagModel, Value: "gpt-4o"},
		)
		assert.Equal(t, "gpt-4o", Model(&ev))
	})

	t.Run("substring fallback", func(t *testing.T) {
		ev := event("gen", telemetry.Tag{Key: "llm.Model.Name", Value: "claude-sonnet"})
		assert.Equal(t, "claude-sonnet", Model(&ev))
	})

	t.Run("default unknown", func(t *testing.T) {
		ev := event("gen", telemetry.Tag{Key: "workflow.id", Value: "w1"})
		assert.Equal(t, "unknown", Model(&ev))
	})
}

func TestPromptAndResponse(t *testing.T) {
	t.Run("structured sub-events win over flat tags", func(t *testing.T) {
		ev := telemetry.Event{
			Name: "ChatCompletion",
			Tags: []telemetry.Tag{
				{Key: "llm.prompt", Value: "flat prompt"},
				{Key: "llm.response", Value: "flat response"},
			},
			SubEvents: []telemetry.SubEvent{
				{
					Name:      SubEventPrompt,
					Timestamp: time.Now(),
					Tags:      []telemetry.Tag{{Key: "content", Value: "structured prompt"}},
				},
				{
					Name:      SubEventCompletion,
					Timestamp: time.Now(),
					Tags:      []telemetry.Tag{{Key: "content", Value: "structured response"}},
				},
			},
		}

		assert.Equal(t, "structured prompt", Prompt(&ev))
		assert.Equal(t, "structured response", Response(&ev))
	})

	t.Run("flat tag fallback", func(t *testing.T) {
		ev := event("gen",
			telemetry.Tag{Key: "request.input", Value: "the prompt"},
			telemetry.Tag{Key: "llm.output", Value: "the answer"},
		)
		assert.Equal(t, "the prompt", Prompt(&ev))
		assert.Equal(t, "the answer", Response(&ev))
	})

	t.Run("absent yields empty, not error", func(t *testing.T) {
		ev := event("gen")
		assert.Empty(t, Prompt(&ev))
		assert.Empty(t, Response(&ev))
	})
}

func TestUsage(t *testing.T) {
	t.Run("reserved keys", func(t *testing.T) {
		ev := event("gen",
			telemetry.Tag{Key: TagPromptTokens, Value: "12"},
			telemetry.Tag{Key: TagCompletionTokens, Value: "34"},
			telemetry.Tag{Key: TagTotalTokens, Value: "46"},
		)

		usage := Usage(&ev)
		require.NotNil(t, usage.PromptTokens)
		require.NotNil(t, usage.CompletionTokens)
		require.NotNil(t, usage.TotalTokens)
		assert.Equal(t, 12, *usage.PromptTokens)
		assert.Equal(t, 34, *usage.CompletionTokens)
		assert.Equal(t, 46, *usage.TotalTokens)
	})

	t.Run("total alone stays partial", func(t *testing.T) {
		ev := event("gen", telemetry.Tag{Key: "llm.total_tokens", Value: "99"})

		usage := Usage(&ev)
		assert.Nil(t, usage.PromptTokens)
		assert.Nil(t, usage.CompletionTokens)
		require.NotNil(t, usage.TotalTokens)
		assert.Equal(t, 99, *usage.TotalTokens)
	})

	t.Run("malformed value reads as absent", func(t *testing.T) {
		ev := event("gen",
			telemetry.Tag{Key: TagPromptTokens, Value: "many"},
			telemetry.Tag{Key: TagTotalTokens, Value: "10"},
		)

		usage := Usage(&ev)
		assert.Nil(t, usage.PromptTokens)
		require.NotNil(t, usage.TotalTokens)
		assert.Equal(t, 10, *usage.TotalTokens)
	})

	t.Run("no matching tags", func(t *testing.T) {
		ev := event("gen", telemetry.Tag{Key: "workflow.id", Value: "w1"})
		assert.True(t, Usage(&ev).Empty())
	})
}
