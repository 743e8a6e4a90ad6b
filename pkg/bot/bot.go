// Package bot is the context a script runs against: the installation's
// credentials and brain, a fresh listener registry, and the reply helpers
// that route a script's responses back to Slack.
package bot

import (
	"context"
	"regexp"

	"github.com/slacklet/slacklet/pkg/dispatch"
	"github.com/slacklet/slacklet/pkg/payload"
	"github.com/slacklet/slacklet/pkg/slackapi"
	"github.com/slacklet/slacklet/pkg/store"
)

// Bot is built fresh for every script invocation. It is not shared across
// invocations and needs no locking.
type Bot struct {
	registry   *dispatch.Registry
	install    *store.Installation
	sender     slackapi.Sender
	brainDirty bool
}

// New creates a bot context around an installation snapshot.
func New(install *store.Installation, sender slackapi.Sender) *Bot {
	if install == nil {
		install = &store.Installation{}
	}
	if install.Auth == nil {
		install.Auth = &store.Auth{}
	}
	return &Bot{
		registry: dispatch.NewRegistry(),
		install:  install,
		sender:   sender,
	}
}

// On registers a handler for one or more event names.
func (b *Bot) On(h dispatch.Handler, names ...string) *dispatch.Listener {
	return b.registry.On(h, names...)
}

// Hears registers a pattern handler matched against the delivery's text.
func (b *Bot) Hears(re *regexp.Regexp, h dispatch.PatternHandler) *dispatch.Listener {
	return b.registry.Hears(re, h)
}

// Dispatch runs a delivery through the bot's listeners.
func (b *Bot) Dispatch(ctx context.Context, p *payload.Payload) {
	b.registry.Dispatch(ctx, p)
}

// Registry exposes the underlying listener registry.
func (b *Bot) Registry() *dispatch.Registry { return b.registry }

// Installation returns the installation snapshot this bot was built from.
func (b *Bot) Installation() *store.Installation { return b.install }

// TeamID returns the installing workspace's id.
func (b *Bot) TeamID() string { return b.install.TeamID }

// Token returns the API token, preferring the bot token over the user one.
func (b *Bot) Token() string { return b.install.Auth.Token() }

// Brain returns the installation's free-form extension data. Mutations made
// through SetBrain or Remember are written back wholesale when the
// invocation finishes.
func (b *Bot) Brain() map[string]interface{} {
	if b.install.Brain == nil {
		b.install.Brain = make(map[string]interface{})
	}
	return b.install.Brain
}

// SetBrain replaces the brain wholesale and marks it for write-back.
func (b *Bot) SetBrain(brain map[string]interface{}) {
	b.install.Brain = brain
	b.brainDirty = true
}

// Remember stores one key in the brain and marks it for write-back.
func (b *Bot) Remember(key string, value interface{}) {
	b.Brain()[key] = value
	b.brainDirty = true
}

// Recall reads one key from the brain.
func (b *Bot) Recall(key string) (interface{}, bool) {
	v, ok := b.Brain()[key]
	return v, ok
}

// BrainDirty reports whether the brain was mutated during this invocation.
func (b *Bot) BrainDirty() bool { return b.brainDirty }
