package model

import (
	"github.com/modelgraph/modelgraph/internal/model/meta"
)

// ChangeEvent describes one feature mutation. For multi-valued references Old
// and New are []*Element snapshots of the whole collection.
type ChangeEvent struct {
	Feature *meta.Feature
	Old     any
	New     any
}

// LifecycleEvent is raised when an element is deleted or joins or leaves a
// repository
type LifecycleEvent struct {
	Element *Element
}

// Handler receives an event raised by sender
type Handler[T any] func(sender *Element, e T)

// Event is an ordered list of handlers invoked synchronously in subscription
// order. The zero value is ready to use.
type Event[T any] struct {
	bindings []*binding[T]
}

type binding[T any] struct {
	fn     Handler[T]
	active bool
}

// Subscription is the handle returned by Subscribe
type Subscription struct {
	cancel func()
}

// Unsubscribe removes the handler. It is safe to call more than once and
// from within a running dispatch.
func (s *Subscription) Unsubscribe() {
	if s == nil || s.cancel == nil {
		return
	}
	s.cancel()
	s.cancel = nil
}

// Subscribe appends fn to the handler list
func (e *Event[T]) Subscribe(fn Handler[T]) *Subscription {
	b := &binding[T]{fn: fn, active: true}
	e.bindings = append(e.bindings, b)
	return &Subscription{cancel: func() { e.remove(b) }}
}

// Len returns the number of active handlers
func (e *Event[T]) Len() int {
	return len(e.bindings)
}

func (e *Event[T]) remove(b *binding[T]) {
	b.active = false
	for i, existing := range e.bindings {
		if existing == b {
			// copy so a dispatch iterating the old slice is unaffected
			next := make([]*binding[T], 0, len(e.bindings)-1)
			next = append(next, e.bindings[:i]...)
			e.bindings = append(next, e.bindings[i+1:]...)
			return
		}
	}
}

// fire invokes the handlers that are subscribed when dispatch starts. A
// handler removed by an earlier handler of the same dispatch is skipped.
func (e *Event[T]) fire(sender *Element, args T) {
	bindings := e.bindings
	for _, b := range bindings {
		if b.active {
			b.fn(sender, args)
		}
	}
}

// relay re-raises a source event to its own subscribers and holds the source
// subscription only while it has subscribers of its own
type relay[T any] struct {
	source   func(Handler[T]) *Subscription
	out      Event[T]
	upstream *Subscription
}

func (r *relay[T]) subscribe(fn Handler[T]) *Subscription {
	if r.upstream == nil {
		r.upstream = r.source(r.out.fire)
	}
	inner := r.out.Subscribe(fn)
	return &Subscription{cancel: func() {
		inner.Unsubscribe()
		if r.out.Len() == 0 {
			r.detach()
		}
	}}
}

func (r *relay[T]) attached() bool {
	return r.upstream != nil
}

func (r *relay[T]) detach() {
	r.upstream.Unsubscribe()
	r.upstream = nil
}

func (r *relay[T]) release() {
	for _, b := range r.out.bindings {
		b.active = false
	}
	r.out.bindings = nil
	r.detach()
}
