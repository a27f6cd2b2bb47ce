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
	"sync"
	"time"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/tombee/tracebridge/pkg/langfuse"
	"github.com/tombee/tracebridge/pkg/telemetry"
)

// DefaultQueueSize bounds the listener work queue.
const DefaultQueueSize = 1024

// Processor is the listener flavor of the exporter. It implements
// sdktrace.SpanProcessor: activity starts emit an immediate
// zero-duration event to the collector, activity stops emit the full
// span or generation.
//
// The span SDK invokes OnStart and OnEnd from arbitrary goroutines;
// both enqueue onto a bounded queue drained by a single worker, so a
// slow collector never blocks the instrumented application and a
// failing handler is never silently lost. When the queue is full the
// item is dropped and counted.
type Processor struct {
	exporter *Exporter
	queue    chan queueItem

	// mu excludes enqueue from Shutdown's close of the queue. Senders
	// hold the read lock for the duration of the send; Shutdown flips
	// stopped under the write lock, so once it holds the lock no send
	// can be in flight and closing the queue is safe.
	mu      sync.RWMutex
	stopped bool

	stopOnce sync.Once
	done     chan struct{}
}

type queueItem struct {
	started *startedActivity
	ended   sdktrace.ReadOnlySpan
}

// startedActivity captures the fields needed to announce an activity
// before it completes.
type startedActivity struct {
	id            string
	correlationID string
	name          string
	scope         string
	at            time.Time
}

// NewProcessor creates a Processor draining into the given exporter
// and starts its worker. queueSize <= 0 selects DefaultQueueSize.
func NewProcessor(exporter *Exporter, queueSize int) *Processor {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}

	p := &Processor{
		exporter: exporter,
		queue:    make(chan queueItem, queueSize),
		done:     make(chan struct{}),
	}
	go p.run()
	return p
}

// OnStart enqueues an activity-started announcement.
func (p *Processor) OnStart(_ context.Context, span sdktrace.ReadWriteSpan) {
	sc := span.SpanContext()
	p.enqueue(queueItem{started: &startedActivity{
		id:            sc.SpanID().String(),
		correlationID: sc.TraceID().String(),
		name:          span.Name(),
		scope:         span.InstrumentationScope().Name,
		at:            span.StartTime(),
	}})
}

// OnEnd enqueues the finished span for full export.
func (p *Processor) OnEnd(span sdktrace.ReadOnlySpan) {
	p.enqueue(queueItem{ended: span})
}

// Shutdown stops intake, drains the queue, then shuts the exporter
// down. Returns the context error if draining outlives the deadline.
func (p *Processor) Shutdown(ctx context.Context) error {
	p.stopOnce.Do(func() {
		p.mu.Lock()
		p.stopped = true
		p.mu.Unlock()
		// No sender can be in flight past this point; new arrivals
		// see the stopped flag before touching the queue.
		close(p.queue)
	})

	select {
	case <-p.done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return p.exporter.Shutdown(ctx)
}

// ForceFlush is a no-op; the queue drains continuously.
func (p *Processor) ForceFlush(context.Context) error {
	return nil
}

var _ sdktrace.SpanProcessor = (*Processor)(nil)

func (p *Processor) enqueue(item queueItem) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped {
		return
	}

	select {
	case p.queue <- item:
		p.exporter.metrics.QueueDepthAdd(1)
	default:
		p.exporter.metrics.RecordDropped(context.Background())
		p.exporter.logger.Warn("work queue full, dropping telemetry item")
	}
}

func (p *Processor) run() {
	defer close(p.done)

	ctx := context.Background()
	for item := range p.queue {
		p.exporter.metrics.QueueDepthAdd(-1)
		if item.started != nil {
			p.handleStart(ctx, item.started)
		} else {
			p.handleEnd(ctx, item.ended)
		}
	}
}

// handleStart resolves (or creates) the remote trace, binds the
// activity id for the stop handler, and announces the start with a
// zero-duration event.
func (p *Processor) handleStart(ctx context.Context, activity *startedActivity) {
	if !p.exporter.MatchScope(activity.scope) {
		return
	}

	traceID, err := p.exporter.traces.ResolveOrCreate(ctx, activity.correlationID, activity.name)
	if err != nil {
		p.exporter.logger.Warn("failed to resolve trace for started activity",
			"name", activity.name, "error", err)
		return
	}
	p.exporter.traces.Bind(activity.id, traceID)

	err = p.exporter.client.CreateEvent(ctx, langfuse.EventBody{
		TraceID:   traceID,
		Name:      activity.name,
		StartTime: langfuse.Millis(activity.at),
		EndTime:   langfuse.Millis(activity.at),
		Level:     langfuse.LevelDefault,
		Metadata:  map[string]any{"phase": "started"},
	})
	if err != nil {
		p.exporter.logger.Warn("failed to announce started activity",
			"name", activity.name, "error", err)
	}
}

// handleEnd exports the finished activity. The activity-id mapping
// entry is removed whether or not the export succeeds, so the key
// cannot leak. A stop without a mapping entry (listener registered
// mid-flight, or a restart) is logged and dropped, never turned into
// a fabricated trace.
func (p *Processor) handleEnd(ctx context.Context, span sdktrace.ReadOnlySpan) {
	ev := telemetry.FromSpan(span)
	defer p.exporter.traces.Forget(ev.ID)

	if !p.exporter.MatchScope(ev.Scope) {
		return
	}

	traceID, ok := p.exporter.traces.Lookup(ev.ID)
	if !ok {
		p.exporter.logger.Warn("no trace mapping for completed activity, dropping",
			"activity", ev.ID, "name", ev.Name)
		p.exporter.metrics.RecordDropped(ctx)
		return
	}

	if err := p.exporter.Emit(ctx, traceID, ev); err != nil {
		p.exporter.logger.Warn("failed to export completed activity",
			"name", ev.Name, "error", err)
	}
}
