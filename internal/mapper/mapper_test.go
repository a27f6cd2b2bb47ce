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

package mapper

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tombee/tracebridge/pkg/langfuse"
)

// fakeCreator counts trace creations and hands out sequential ids.
type fakeCreator struct {
	calls atomic.Int64
	err   error
}

func (f *fakeCreator) CreateTrace(_ context.Context, _ langfuse.TraceBody) (string, error) {
	n := f.calls.Add(1)
	if f.err != nil {
		return "", f.err
	}
	return fmt.Sprintf("trace-%d", n), nil
}

func TestResolveOrCreate_FirstSightCreatesOnce(t *testing.T) {
	creator := &fakeCreator{}
	m := New(creator)

	id, err := m.ResolveOrCreate(context.Background(), "corr-1", "workflow")
	require.NoError(t, err)
	assert.Equal(t, "trace-1", id)
	assert.EqualValues(t, 1, creator.calls.Load())

	// Every subsequent sight returns the stored id with no remote call.
	for range 5 {
		again, err := m.ResolveOrCreate(context.Background(), "corr-1", "workflow")
		require.NoError(t, err)
		assert.Equal(t, id, again)
	}
	assert.EqualValues(t, 1, creator.calls.Load())
	assert.Equal(t, 1, m.Len())
}

func TestResolveOrCreate_DistinctCorrelationIDs(t *testing.T) {
	creator := &fakeCreator{}
	m := New(creator)

	first, err := m.ResolveOrCreate(context.Background(), "corr-1", "a")
	require.NoError(t, err)
	second, err := m.ResolveOrCreate(context.Background(), "corr-2", "b")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.EqualValues(t, 2, creator.calls.Load())
}

func TestResolveOrCreate_CreateFailure(t *testing.T) {
	creator := &fakeCreator{err: errors.New("boom")}
	m := New(creator)

	_, err := m.ResolveOrCreate(context.Background(), "corr-1", "workflow")
	require.Error(t, err)

	// A failed creation stores nothing.
	assert.Equal(t, 0, m.Len())
}

func TestResolveOrCreate_Concurrent(t *testing.T) {
	creator := &fakeCreator{}
	m := New(creator)

	const goroutines = 32
	ids := make([]string, goroutines)

	var wg sync.WaitGroup
	for i := range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, err := m.ResolveOrCreate(context.Background(), "corr-1", "workflow")
			assert.NoError(t, err)
			ids[i] = id
		}()
	}
	wg.Wait()

	// Racing creations may hit the remote API more than once; the
	// map still holds exactly one id and later calls converge on it.
	assert.Equal(t, 1, m.Len())
	final, err := m.ResolveOrCreate(context.Background(), "corr-1", "workflow")
	require.NoError(t, err)

	stored, ok := m.Lookup("corr-1")
	require.True(t, ok)
	assert.Equal(t, stored, final)
}

func TestBindLookupForget(t *testing.T) {
	m := New(&fakeCreator{})

	m.Bind("activity-1", "trace-9")

	id, ok := m.Lookup("activity-1")
	require.True(t, ok)
	assert.Equal(t, "trace-9", id)

	m.Forget("activity-1")
	_, ok = m.Lookup("activity-1")
	assert.False(t, ok)

	// Forgetting an unknown key is a no-op.
	m.Forget("activity-1")
}

func TestClear(t *testing.T) {
	creator := &fakeCreator{}
	m := New(creator)

	_, err := m.ResolveOrCreate(context.Background(), "corr-1", "a")
	require.NoError(t, err)
	m.Bind("activity-1", "trace-1")
	require.Equal(t, 2, m.Len())

	m.Clear()
	assert.Equal(t, 0, m.Len())
}
