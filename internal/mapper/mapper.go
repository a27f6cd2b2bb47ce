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

// Package mapper maintains the mapping from framework-local
// correlation ids to remotely assigned trace ids.
package mapper

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/tombee/tracebridge/pkg/langfuse"
)

// TraceCreator creates remote traces. Satisfied by *langfuse.Client.
type TraceCreator interface {
	CreateTrace(ctx context.Context, body langfuse.TraceBody) (string, error)
}

// TraceMap maps correlation ids to remote trace ids. It is owned by
// the exporter that constructs it, safe for concurrent use, and only
// emptied by explicit removal or Clear; there is no size-based
// eviction.
//
// The remote create runs outside the lock, so two concurrent callers
// racing on an unseen correlation id may both create a remote trace.
// The first id stored wins and the duplicate remote trace is simply
// never referenced. That race is tolerated; preventing it is not
// worth serializing every export.
type TraceMap struct {
	creator TraceCreator

	mu  sync.Mutex
	ids map[string]string
}

// New creates an empty TraceMap backed by the given creator.
func New(creator TraceCreator) *TraceMap {
	return &TraceMap{
		creator: creator,
		ids:     make(map[string]string),
	}
}

// ResolveOrCreate returns the remote trace id for a correlation id,
// creating the remote trace on first sight. Subsequent calls with
// the same id make no remote calls.
func (m *TraceMap) ResolveOrCreate(ctx context.Context, correlationID, name string) (string, error) {
	m.mu.Lock()
	id, ok := m.ids[correlationID]
	m.mu.Unlock()
	if ok {
		return id, nil
	}

	id, err := m.creator.CreateTrace(ctx, langfuse.TraceBody{
		Name:      name,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		return "", fmt.Errorf("failed to create trace for %q: %w", correlationID, err)
	}

	m.mu.Lock()
	if existing, ok := m.ids[correlationID]; ok {
		id = existing
	} else {
		m.ids[correlationID] = id
	}
	m.mu.Unlock()

	return id, nil
}

// Bind records a trace id under an additional key, typically the
// narrower activity id used by the listener flavor of the exporter.
func (m *TraceMap) Bind(key, traceID string) {
	m.mu.Lock()
	m.ids[key] = traceID
	m.mu.Unlock()
}

// Lookup returns the trace id bound to key without any remote call.
func (m *TraceMap) Lookup(key string) (string, bool) {
	m.mu.Lock()
	id, ok := m.ids[key]
	m.mu.Unlock()
	return id, ok
}

// Forget removes a single entry. Called once per activity when it
// completes, regardless of whether the downstream export succeeded,
// so per-activity keys never leak.
func (m *TraceMap) Forget(key string) {
	m.mu.Lock()
	delete(m.ids, key)
	m.mu.Unlock()
}

// Len returns the number of live entries.
func (m *TraceMap) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.ids)
}

// Clear empties the map. Called on exporter shutdown.
func (m *TraceMap) Clear() {
	m.mu.Lock()
	m.ids = make(map[string]string)
	m.mu.Unlock()
}
