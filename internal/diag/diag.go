// Package diag carries request-scoped log correlation fields (request id,
// user id, route, ...) and moves them across the boundary into deferred work.
//
// Fields travel as an explicit, immutable Context value stored in a
// context.Context. Deferred work never sees the submitting request's
// context.Context (which is cancelled when the response is sent); it sees a
// snapshot of the fields taken at submission time, installed into the
// worker's Slot for the duration of the task and removed afterwards.
package diag

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Field is one correlation key/value pair.
type Field struct {
	Key   string
	Value string
}

// Context is an ordered, immutable set of fields. The zero value is empty.
type Context struct {
	fields []Field
}

type ctxKey struct{}

// Of builds a Context from alternating key/value pairs. A trailing key
// without a value is ignored.
func Of(kv ...string) Context {
	return Context{}.with(kv...)
}

func (c Context) with(kv ...string) Context {
	out := make([]Field, len(c.fields), len(c.fields)+len(kv)/2)
	copy(out, c.fields)
next:
	for i := 0; i+1 < len(kv); i += 2 {
		k, v := kv[i], kv[i+1]
		for j := range out {
			if out[j].Key == k {
				out[j].Value = v
				continue next
			}
		}
		out = append(out, Field{Key: k, Value: v})
	}
	return Context{fields: out}
}

// Empty reports whether c has no fields.
func (c Context) Empty() bool { return len(c.fields) == 0 }

// Len returns the number of fields.
func (c Context) Len() int { return len(c.fields) }

// Get returns the value stored under key.
func (c Context) Get(key string) (string, bool) {
	for _, f := range c.fields {
		if f.Key == key {
			return f.Value, true
		}
	}
	return "", false
}

// Fields returns a copy of the fields in insertion order.
func (c Context) Fields() []Field {
	if len(c.fields) == 0 {
		return nil
	}
	out := make([]Field, len(c.fields))
	copy(out, c.fields)
	return out
}

// Logger returns base enriched with every field as a string attribute.
func (c Context) Logger(base zerolog.Logger) zerolog.Logger {
	if c.Empty() {
		return base
	}
	lc := base.With()
	for _, f := range c.fields {
		lc = lc.Str(f.Key, f.Value)
	}
	return lc.Logger()
}

// With returns a copy of ctx whose diagnostic context has kv added (existing
// keys are overwritten in place, keeping their position).
func With(ctx context.Context, kv ...string) context.Context {
	return context.WithValue(ctx, ctxKey{}, FromContext(ctx).with(kv...))
}

// FromContext returns the diagnostic context stored in ctx, or an empty one.
// The returned value shares no mutable state with ctx.
func FromContext(ctx context.Context) Context {
	if ctx == nil {
		return Context{}
	}
	if c, ok := ctx.Value(ctxKey{}).(Context); ok {
		return c
	}
	return Context{}
}

// Into returns base carrying c both as its diagnostic context and as a
// zerolog logger (retrievable with zerolog.Ctx) enriched with c's fields.
func Into(base context.Context, c Context) context.Context {
	ctx := context.WithValue(base, ctxKey{}, c)
	l := c.Logger(log.Logger)
	return l.WithContext(ctx)
}

// Slot is the diagnostic context owned by one worker goroutine. It is the
// unit that must be empty between two tasks.
type Slot struct {
	mu  sync.Mutex
	cur Context
}

// Install replaces the slot's context with c.
func (s *Slot) Install(c Context) {
	s.mu.Lock()
	s.cur = c
	s.mu.Unlock()
}

// Current returns the slot's context.
func (s *Slot) Current() Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cur
}

// Clear empties the slot.
func (s *Slot) Clear() {
	s.mu.Lock()
	s.cur = Context{}
	s.mu.Unlock()
}

// Task is a unit of deferred work decorated with a diagnostic snapshot.
type Task struct {
	snapshot Context
	fn       func(context.Context)
}

// Wrap snapshots the diagnostic context of ctx and binds it to fn. Only the
// fields are retained; ctx itself (and its cancellation) is not.
func Wrap(ctx context.Context, fn func(context.Context)) Task {
	return Task{snapshot: FromContext(ctx), fn: fn}
}

// Snapshot returns the fields captured by Wrap.
func (t Task) Snapshot() Context { return t.snapshot }

// Run installs the snapshot into slot, runs the task with a context derived
// from base, and clears slot when the task returns or panics.
func (t Task) Run(base context.Context, slot *Slot) {
	if !t.snapshot.Empty() {
		slot.Install(t.snapshot)
	}
	defer slot.Clear()
	t.fn(Into(base, slot.Current()))
}
