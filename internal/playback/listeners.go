package playback

import "github.com/ivlev/lessonplay/internal/timeline"

// StateChange carries the states on either side of a transition.
type StateChange struct {
	Previous timeline.EngineState `json:"previous"`
	Current  timeline.EngineState `json:"current"`
}

// SeekEvent is emitted on every explicit seek.
type SeekEvent struct {
	From float64 `json:"from"`
	To   float64 `json:"to"`
}

// registry keeps callbacks in subscription order.
type registry[T any] struct {
	next    int
	entries []listener[T]
}

type listener[T any] struct {
	id int
	fn func(T)
}

func (r *registry[T]) add(fn func(T)) int {
	r.next++
	r.entries = append(r.entries, listener[T]{id: r.next, fn: fn})
	return r.next
}

func (r *registry[T]) remove(id int) {
	for i, l := range r.entries {
		if l.id == id {
			r.entries = append(r.entries[:i:i], r.entries[i+1:]...)
			return
		}
	}
}

func (r *registry[T]) list() []func(T) {
	fns := make([]func(T), len(r.entries))
	for i, l := range r.entries {
		fns[i] = l.fn
	}
	return fns
}

func (r *registry[T]) clear() {
	r.entries = nil
}

func (r *registry[T]) len() int {
	return len(r.entries)
}
