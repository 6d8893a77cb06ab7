package events

import (
	"sync"
	"sync/atomic"
	"time"
)

// Subscription identifies a registered handler.
type Subscription struct {
	id    int
	event string // empty for wildcard
}

// ChannelSub is a buffered wildcard subscription used by bridges that
// forward events to slower consumers. When the buffer is full the new
// event is dropped and counted rather than blocking the execution.
type ChannelSub struct {
	id      int
	ch      chan Event
	dropped atomic.Int64
}

// Events returns the subscription's delivery channel. It is closed
// when the subscription is removed or the emitter closes.
func (c *ChannelSub) Events() <-chan Event { return c.ch }

// Dropped returns how many events were discarded due to a full buffer.
func (c *ChannelSub) Dropped() int64 { return c.dropped.Load() }

type handlerSub struct {
	id      int
	handler Handler
}

// Emitter is the per-execution event bus. Handlers are invoked
// synchronously in registration order, named subscriptions before
// wildcard ones; per execution, events are delivered in the order they
// were emitted. Emit must not be called from inside a handler.
type Emitter struct {
	workflowID  string
	executionID string
	logger      Logger

	// dispatchMu serializes deliveries so concurrent emitters cannot
	// interleave events; mu guards subscription bookkeeping only, so
	// handlers may subscribe and unsubscribe freely.
	dispatchMu sync.Mutex
	mu         sync.Mutex
	nextID     int
	named      map[string][]*handlerSub
	wildcard   []*handlerSub
	chans      []*ChannelSub
	closed     bool
}

// NewEmitter creates an emitter bound to one execution.
func NewEmitter(workflowID, executionID string, logger Logger) *Emitter {
	return &Emitter{
		workflowID:  workflowID,
		executionID: executionID,
		logger:      logger,
		named:       make(map[string][]*handlerSub),
	}
}

// WorkflowID returns the owning workflow ID.
func (e *Emitter) WorkflowID() string { return e.workflowID }

// ExecutionID returns the owning execution ID.
func (e *Emitter) ExecutionID() string { return e.executionID }

// On registers a handler for one event type.
func (e *Emitter) On(event string, h Handler) *Subscription {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.nextID++
	e.named[event] = append(e.named[event], &handlerSub{id: e.nextID, handler: h})
	return &Subscription{id: e.nextID, event: event}
}

// OnAny registers a wildcard handler receiving every event.
func (e *Emitter) OnAny(h Handler) *Subscription {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.nextID++
	e.wildcard = append(e.wildcard, &handlerSub{id: e.nextID, handler: h})
	return &Subscription{id: e.nextID}
}

// Off removes a subscription. Unknown subscriptions are a no-op.
func (e *Emitter) Off(sub *Subscription) {
	if sub == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if sub.event != "" {
		e.named[sub.event] = removeSub(e.named[sub.event], sub.id)
		return
	}
	e.wildcard = removeSub(e.wildcard, sub.id)
}

// SubscribeChan registers a buffered wildcard channel subscription.
func (e *Emitter) SubscribeChan(buffer int) *ChannelSub {
	if buffer < 1 {
		buffer = 64
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.nextID++
	cs := &ChannelSub{id: e.nextID, ch: make(chan Event, buffer)}
	if e.closed {
		close(cs.ch)
		return cs
	}
	e.chans = append(e.chans, cs)
	return cs
}

// UnsubscribeChan removes a channel subscription and closes its channel.
func (e *Emitter) UnsubscribeChan(cs *ChannelSub) {
	if cs == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	for i, c := range e.chans {
		if c.id == cs.id {
			e.chans = append(e.chans[:i], e.chans[i+1:]...)
			close(c.ch)
			return
		}
	}
}

// Emit stamps the event with the emitter's IDs and timestamp when
// missing, then delivers it to all matching subscribers.
func (e *Emitter) Emit(ev Event) {
	if ev.WorkflowID == "" {
		ev.WorkflowID = e.workflowID
	}
	if ev.ExecutionID == "" {
		ev.ExecutionID = e.executionID
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}

	e.dispatchMu.Lock()
	defer e.dispatchMu.Unlock()

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	handlers := make([]*handlerSub, 0, len(e.named[ev.Type])+len(e.wildcard))
	handlers = append(handlers, e.named[ev.Type]...)
	handlers = append(handlers, e.wildcard...)
	chans := make([]*ChannelSub, len(e.chans))
	copy(chans, e.chans)
	e.mu.Unlock()

	for _, h := range handlers {
		e.invoke(h.handler, ev)
	}
	for _, cs := range chans {
		select {
		case cs.ch <- ev:
		default:
			cs.dropped.Add(1)
			e.logger.Warn("event dropped, subscriber buffer full",
				"execution_id", e.executionID,
				"event", ev.Type,
				"dropped", cs.Dropped())
		}
	}
}

// invoke runs one handler, recovering panics so one bad subscriber
// cannot take down the execution or starve later subscribers.
func (e *Emitter) invoke(h Handler, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("event handler panicked",
				"execution_id", e.executionID,
				"event", ev.Type,
				"panic", r)
		}
	}()
	h(ev)
}

// Close releases all channel subscriptions. Subsequent emits are
// dropped; handler subscriptions are left in place for idempotent
// teardown.
func (e *Emitter) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.closed = true
	for _, cs := range e.chans {
		close(cs.ch)
	}
	e.chans = nil
}

func removeSub(subs []*handlerSub, id int) []*handlerSub {
	for i, s := range subs {
		if s.id == id {
			return append(subs[:i], subs[i+1:]...)
		}
	}
	return subs
}
