// Package dispatch classifies inbound deliveries into event names and fans
// them out to listeners. A Registry is a per-invocation value: every script
// run builds a fresh one and registers its listeners into it, so no state
// leaks between invocations and no locking is needed on the dispatch path.
package dispatch

import (
	"context"
	"fmt"
	"regexp"
	"sync"

	"github.com/slacklet/slacklet/pkg/logger"
	"github.com/slacklet/slacklet/pkg/payload"
)

const component = "dispatch"

// Handler reacts to a delivery that classified into a name it registered
// for. Errors are logged and contained; they never stop sibling handlers.
type Handler func(ctx context.Context, p *payload.Payload) error

// PatternHandler reacts to a delivery whose text matched a registered
// pattern. The match carries the regexp submatches.
type PatternHandler func(ctx context.Context, p *payload.Payload, m *Match) error

// Match is the result of a pattern listener's regexp test.
type Match struct {
	// Groups holds the full match followed by any submatches,
	// as returned by FindStringSubmatch.
	Groups []string
}

// Text returns the full matched text.
func (m *Match) Text() string {
	if len(m.Groups) == 0 {
		return ""
	}
	return m.Groups[0]
}

// Listener is the handle returned by a registration. Its Fired channel
// closes when the listener is first invoked — a convenience for callers
// that want to await "this fired"; dispatch never depends on it.
type Listener struct {
	fired chan struct{}
	once  sync.Once
}

func newListener() *Listener {
	return &Listener{fired: make(chan struct{})}
}

// Fired returns a channel that is closed on the listener's first invocation.
func (l *Listener) Fired() <-chan struct{} { return l.fired }

func (l *Listener) markFired() {
	l.once.Do(func() { close(l.fired) })
}

type entry struct {
	handler Handler
}

// Registry maps event names to ordered listener lists.
type Registry struct {
	entries map[string][]*entry
}

// NewRegistry creates an empty listener registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string][]*entry)}
}

// On registers a handler under one or more event names. Handlers registered
// under the same name run in registration order.
func (r *Registry) On(h Handler, names ...string) *Listener {
	l := newListener()
	e := &entry{handler: func(ctx context.Context, p *payload.Payload) error {
		l.markFired()
		return h(ctx, p)
	}}
	for _, name := range names {
		r.entries[name] = append(r.entries[name], e)
	}
	return l
}

// Hears registers a pattern handler. It is attached to the wildcard name
// and fires only when the regexp matches the delivery's text (top-level
// text first, else the nested event's text). The returned listener fires
// on the first actual match, not on every wildcard dispatch.
func (r *Registry) Hears(re *regexp.Regexp, h PatternHandler) *Listener {
	l := newListener()
	e := &entry{handler: func(ctx context.Context, p *payload.Payload) error {
		text, ok := p.MatchText()
		if !ok {
			return nil
		}
		groups := re.FindStringSubmatch(text)
		if groups == nil {
			return nil
		}
		l.markFired()
		return h(ctx, p, &Match{Groups: groups})
	}}
	r.entries[NameWildcard] = append(r.entries[NameWildcard], e)
	return l
}

// Len reports the number of registered entries across all names.
func (r *Registry) Len() int {
	n := 0
	for _, es := range r.entries {
		n += len(es)
	}
	return n
}

// Dispatch classifies a delivery and invokes every handler registered under
// each classified name. A failing or panicking handler does not prevent the
// remaining handlers from running. Bot-originated deliveries classify into
// nothing and dispatch is a no-op.
func (r *Registry) Dispatch(ctx context.Context, p *payload.Payload) {
	names := Classify(p)
	if len(names) == 0 {
		logger.DebugC(component, "delivery ignored, bot originated")
		return
	}

	for _, name := range names {
		for _, e := range r.entries[name] {
			invoke(ctx, e, name, p)
		}
	}
}

func invoke(ctx context.Context, e *entry, name string, p *payload.Payload) {
	defer func() {
		if rec := recover(); rec != nil {
			logger.ErrorCF(component, "handler panicked", map[string]interface{}{
				"event": name,
				"panic": fmt.Sprintf("%v", rec),
			})
		}
	}()

	if err := e.handler(ctx, p); err != nil {
		logger.ErrorCF(component, "handler failed", map[string]interface{}{
			"event": name,
			"error": err,
		})
	}
}
