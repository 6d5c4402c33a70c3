package session

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const dispatchQueueCapacity = 64

type dispatchItem struct {
	name     string
	run      func()
	queuedAt time.Time
}

// sessionRuntime serializes every collaborator-facing callback onto a
// single goroutine, the logical UI thread. Flag writes, display calls and
// mode follow-ups all flow through it, so none of the mutable state owners
// see concurrent mutation from stream goroutines.
type sessionRuntime struct {
	queue   chan dispatchItem
	closeCh chan struct{}
	done    chan struct{}

	startOnce sync.Once
	endOnce   sync.Once

	started atomic.Bool
}

func newSessionRuntime() *sessionRuntime {
	return &sessionRuntime{
		queue:   make(chan dispatchItem, dispatchQueueCapacity),
		closeCh: make(chan struct{}),
		done:    make(chan struct{}),
	}
}

func (r *sessionRuntime) start() (started bool) {
	r.startOnce.Do(func() {
		if r.isClosed() {
			return
		}

		started = true
		r.started.Store(true)
		go func() {
			defer close(r.done)

			for {
				select {
				case <-r.closeCh:
					return
				case item := <-r.queue:
					if r.isClosed() {
						return
					}
					r.process(item)
				}
			}
		}()
	})

	return started
}

func (r *sessionRuntime) end() {
	r.endOnce.Do(func() {
		close(r.closeCh)
	})
}

func (r *sessionRuntime) waitUntilEnded() {
	if r.started.Load() {
		<-r.done
	}
}

// dispatch queues work for the UI goroutine; it reports false once the
// runtime is closed.
func (r *sessionRuntime) dispatch(name string, run func()) bool {
	if r.isClosed() {
		return false
	}

	item := dispatchItem{name: name, run: run, queuedAt: time.Now()}
	select {
	case <-r.closeCh:
		return false
	case r.queue <- item:
		return true
	}
}

func (r *sessionRuntime) isClosed() bool {
	select {
	case <-r.closeCh:
		return true
	default:
		return false
	}
}

func (r *sessionRuntime) process(item dispatchItem) {
	defer func() {
		if recovered := recover(); recovered != nil {
			logger.Error("dispatched work panicked", "work", item.name, "panic", recovered)
		}
	}()

	_, span := tracer.Start(context.Background(), "dispatch "+item.name)
	defer span.End()

	queuedTime := time.Since(item.queuedAt).Seconds()
	span.AddEvent("taken out of queue", trace.WithAttributes(attribute.Float64("dispatch.queued_time", queuedTime)))

	item.run()
}
