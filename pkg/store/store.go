// Package store persists per-workspace installation records: the OAuth
// credentials granted at install time plus the free-form "brain" scripts
// read and write. Records round-trip wholesale — an invocation loads the
// record once, and writes the whole record back if it changed. Concurrent
// invocations for the same installation may race; last writer wins.
package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned when no installation exists for a team id.
var ErrNotFound = errors.New("store: installation not found")

// IncomingWebhook is the optional channel webhook granted during install.
type IncomingWebhook struct {
	URL     string `json:"url,omitempty"`
	Channel string `json:"channel,omitempty"`
}

// BotAuth holds the bot user's credentials when the app was installed with
// a bot scope.
type BotAuth struct {
	BotUserID      string `json:"bot_user_id,omitempty"`
	BotAccessToken string `json:"bot_access_token,omitempty"`
}

// Auth is the credential set returned by the OAuth exchange.
type Auth struct {
	AccessToken     string           `json:"access_token,omitempty"`
	Scope           string           `json:"scope,omitempty"`
	TeamName        string           `json:"team_name,omitempty"`
	TeamID          string           `json:"team_id,omitempty"`
	Bot             *BotAuth         `json:"bot,omitempty"`
	IncomingWebhook *IncomingWebhook `json:"incoming_webhook,omitempty"`
}

// Token returns the token API calls should use, preferring the bot token
// over the installing user's token.
func (a *Auth) Token() string {
	if a.Bot != nil && a.Bot.BotAccessToken != "" {
		return a.Bot.BotAccessToken
	}
	return a.AccessToken
}

// Installation is one workspace's persisted record: credentials plus the
// scripts' extension data, kept as two explicit fields.
type Installation struct {
	TeamID string                 `json:"team_id"`
	Auth   *Auth                  `json:"auth,omitempty"`
	Brain  map[string]interface{} `json:"brain,omitempty"`
}

// Store is the durable installation storage the coordinator depends on.
type Store interface {
	// Get loads the installation for a team. ErrNotFound when absent.
	Get(ctx context.Context, teamID string) (*Installation, error)
	// Save writes the whole record, creating or replacing it.
	Save(ctx context.Context, inst *Installation) error
}
