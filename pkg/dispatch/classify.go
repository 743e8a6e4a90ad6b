package dispatch

import "github.com/slacklet/slacklet/pkg/payload"

// Event name vocabulary. A single delivery usually classifies into several
// names at once (e.g. "*", "event", "message").
const (
	NameWildcard           = "*"
	NameEvent              = "event"
	NameSlashCommand       = "slash_command"
	NameWebhook            = "webhook"
	NameInteractiveMessage = "interactive_message"
)

// Classify returns the ordered list of event names a delivery matches.
// Bot-originated deliveries classify into nothing, which suppresses
// self-triggered loops before any listener is consulted.
func Classify(p *payload.Payload) []string {
	if p.FromBot() {
		return nil
	}

	names := []string{NameWildcard}

	if p.Type != "" {
		names = append(names, p.Type)
	}
	if p.Event != nil {
		names = append(names, NameEvent, p.Event.Type)
	}
	if p.Command != "" {
		names = append(names, NameSlashCommand, p.Command)
	}
	if p.TriggerWord != "" {
		names = append(names, NameWebhook, p.TriggerWord)
	}
	if p.CallbackID != "" {
		names = append(names, NameInteractiveMessage, p.CallbackID)
	}

	return names
}
