// Package script defines what a slacklet script is and the registry the
// coordinator fans out over. A script contributes listeners to a fresh bot
// context on every invocation; it keeps no state of its own between runs
// (durable state belongs in the bot's brain).
package script

import (
	"fmt"

	"github.com/slacklet/slacklet/pkg/bot"
)

// Script is one independently-authored reaction unit.
type Script interface {
	// Name identifies the script in fan-out messages.
	Name() string
	// Setup registers the script's listeners on a fresh bot context.
	// It runs once per invocation, right before dispatch.
	Setup(b *bot.Bot) error
}

// Func adapts a plain function into a Script.
type Func struct {
	name  string
	setup func(b *bot.Bot) error
}

// NewFunc creates a function-backed script.
func NewFunc(name string, setup func(b *bot.Bot) error) *Func {
	return &Func{name: name, setup: setup}
}

func (f *Func) Name() string           { return f.name }
func (f *Func) Setup(b *bot.Bot) error { return f.setup(b) }

// Registry is the ordered, name-unique set of installed scripts.
type Registry struct {
	order  []string
	byName map[string]Script
}

// NewRegistry builds a registry, rejecting duplicate names.
func NewRegistry(scripts ...Script) (*Registry, error) {
	r := &Registry{byName: make(map[string]Script, len(scripts))}
	for _, s := range scripts {
		if err := r.Add(s); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Add appends a script to the registry.
func (r *Registry) Add(s Script) error {
	name := s.Name()
	if name == "" {
		return fmt.Errorf("script: empty name")
	}
	if _, dup := r.byName[name]; dup {
		return fmt.Errorf("script: duplicate name %q", name)
	}
	r.order = append(r.order, name)
	r.byName[name] = s
	return nil
}

// Names returns the script names in registration order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}

// Get resolves a script by name.
func (r *Registry) Get(name string) (Script, bool) {
	s, ok := r.byName[name]
	return s, ok
}

// Len reports the number of installed scripts.
func (r *Registry) Len() int { return len(r.order) }
