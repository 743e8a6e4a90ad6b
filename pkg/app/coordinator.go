// Package app ties the platform together: the fan-out coordinator that
// turns one verified inbound delivery into one bus message per script, the
// per-message execution of a single script, the OAuth install flow, and the
// HTTP server fronting it all.
package app

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/slacklet/slacklet/pkg/bot"
	"github.com/slacklet/slacklet/pkg/bus"
	"github.com/slacklet/slacklet/pkg/config"
	"github.com/slacklet/slacklet/pkg/logger"
	"github.com/slacklet/slacklet/pkg/payload"
	"github.com/slacklet/slacklet/pkg/script"
	"github.com/slacklet/slacklet/pkg/slackapi"
	"github.com/slacklet/slacklet/pkg/store"
)

const component = "app"

// ErrUnauthorized is returned when the delivery's verification token does
// not match the configured one. The delivery is rejected before fan-out.
var ErrUnauthorized = errors.New("app: verification token mismatch")

// Coordinator owns the two-phase execution model: the synchronous receive
// phase (validate, load credentials, publish) and the asynchronous execute
// phase (one isolated script invocation per bus message).
type Coordinator struct {
	cfg        *config.Config
	store      store.Store
	scripts    *script.Registry
	publisher  bus.Publisher
	sender     slackapi.Sender
	authorizer slackapi.Authorizer
}

// NewCoordinator wires a coordinator from its collaborators.
func NewCoordinator(
	cfg *config.Config,
	st store.Store,
	scripts *script.Registry,
	publisher bus.Publisher,
	sender slackapi.Sender,
	authorizer slackapi.Authorizer,
) *Coordinator {
	return &Coordinator{
		cfg:        cfg,
		store:      st,
		scripts:    scripts,
		publisher:  publisher,
		sender:     sender,
		authorizer: authorizer,
	}
}

// ReceiveResult tells the HTTP layer how to answer the inbound request.
type ReceiveResult struct {
	State State
	// Challenge carries the handshake value to echo verbatim when
	// State is StateChallengeAnswered.
	Challenge string
	// Published is the number of fan-out messages issued.
	Published int
}

// Receive runs the synchronous phase for one parsed delivery.
//
// Errors short-circuit before any message is published: a token mismatch
// returns ErrUnauthorized, a failed credential lookup returns the wrapped
// store error. There is never a partial fan-out surfaced as success.
func (c *Coordinator) Receive(ctx context.Context, p *payload.Payload) (*ReceiveResult, error) {
	logger.DebugCF(component, "delivery state", map[string]interface{}{
		"state": StateValidating, "team": p.InstallID(),
	})

	if !c.verifyToken(p) {
		logger.WarnCF(component, "delivery rejected", map[string]interface{}{
			"state": StateRejected, "team": p.InstallID(),
		})
		return nil, ErrUnauthorized
	}

	// Events API handshake: echo and stop, nothing is fanned out.
	if p.Challenge != "" {
		logger.InfoCF(component, "challenge answered", map[string]interface{}{
			"state": StateChallengeAnswered,
		})
		return &ReceiveResult{State: StateChallengeAnswered, Challenge: p.Challenge}, nil
	}

	inst, err := c.store.Get(ctx, p.InstallID())
	if err != nil {
		return nil, fmt.Errorf("load installation: %w", err)
	}

	logger.DebugCF(component, "delivery state", map[string]interface{}{
		"state": StateAuthorized, "team": inst.TeamID,
	})

	names := c.scripts.Names()
	g, gctx := errgroup.WithContext(ctx)
	for _, name := range names {
		msg := bus.NewFanoutMessage(name, inst, p.Raw())
		g.Go(func() error {
			return c.publisher.Publish(gctx, msg)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("fan out: %w", err)
	}

	logger.InfoCF(component, "delivery fanned out", map[string]interface{}{
		"state": StateFannedOut, "team": inst.TeamID, "scripts": len(names),
	})
	return &ReceiveResult{State: StateFannedOut, Published: len(names)}, nil
}

// verifyToken fails closed only when both sides have a token to compare.
func (c *Coordinator) verifyToken(p *payload.Payload) bool {
	if c.cfg.VerificationToken == "" || p.Token == "" {
		return true
	}
	return tokenValid(p.Token, c.cfg.VerificationToken)
}

// Execute runs the asynchronous phase for one fan-out message: a fresh bot
// context, the named script's registration, one dispatch. Failures here are
// contained to this message; sibling invocations are unaffected because
// they arrive as independent bus messages.
func (c *Coordinator) Execute(ctx context.Context, msg *bus.FanoutMessage) error {
	p, err := payload.ParseJSON(msg.Payload)
	if err != nil {
		return fmt.Errorf("execute %s: %w", msg.ID, err)
	}

	s, ok := c.scripts.Get(msg.Script)
	if !ok {
		return fmt.Errorf("execute %s: unknown script %q", msg.ID, msg.Script)
	}

	b := bot.New(msg.Install, c.sender)
	if err := s.Setup(b); err != nil {
		return fmt.Errorf("execute %s: script %s setup: %w", msg.ID, msg.Script, err)
	}

	logger.DebugCF(component, "dispatching", map[string]interface{}{
		"id": msg.ID, "script": msg.Script, "listeners": b.Registry().Len(),
	})
	b.Dispatch(ctx, p)

	// Write the brain back wholesale when a handler changed it. Concurrent
	// invocations for the same installation race here; last writer wins.
	if b.BrainDirty() {
		if err := c.store.Save(ctx, b.Installation()); err != nil {
			return fmt.Errorf("execute %s: save brain: %w", msg.ID, err)
		}
	}
	return nil
}
