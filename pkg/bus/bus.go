// Package bus carries fan-out messages from the synchronous receive phase
// to the asynchronous script invocations. One published message produces
// exactly one handler call (modulo the transport's own at-least-once
// redelivery, so handlers should be idempotent where they mutate state).
package bus

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/slacklet/slacklet/pkg/store"
)

// FanoutMessage is the envelope published once per script per inbound
// delivery. The installation snapshot and the raw payload travel with it so
// the consumer can rebuild a bot context without touching storage.
type FanoutMessage struct {
	ID      string              `json:"id"`
	Script  string              `json:"script"`
	Install *store.Installation `json:"install"`
	Payload json.RawMessage     `json:"payload"`
}

// NewFanoutMessage builds an envelope with a fresh delivery id. The
// installation is snapshotted into the envelope, so concurrent consumers
// never share a brain map with each other or with the publisher.
func NewFanoutMessage(script string, install *store.Installation, rawPayload []byte) *FanoutMessage {
	return &FanoutMessage{
		ID:      uuid.NewString(),
		Script:  script,
		Install: snapshotInstallation(install),
		Payload: rawPayload,
	}
}

// snapshotInstallation deep-copies through JSON, the same shape the record
// takes on a serialized transport.
func snapshotInstallation(install *store.Installation) *store.Installation {
	if install == nil {
		return nil
	}
	data, err := json.Marshal(install)
	if err != nil {
		return install
	}
	copied := &store.Installation{}
	if err := json.Unmarshal(data, copied); err != nil {
		return install
	}
	return copied
}

// Handler consumes one fan-out message. Errors are the handler's own to
// report; the bus only logs them.
type Handler func(ctx context.Context, msg *FanoutMessage) error

// Publisher is the producing half the coordinator depends on.
type Publisher interface {
	Publish(ctx context.Context, msg *FanoutMessage) error
}
