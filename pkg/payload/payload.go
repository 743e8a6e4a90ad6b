// Package payload models the semi-structured deliveries Slack sends to a
// bot's webhook endpoint. One struct covers all delivery kinds (Events API,
// slash commands, outgoing webhooks, interactive messages); the
// discriminating fields are optional and any subset may be present.
package payload

import (
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/tidwall/gjson"
)

// Event is the nested sub-event carried by Events API deliveries.
type Event struct {
	Type    string `json:"type,omitempty"`
	Text    string `json:"text,omitempty"`
	BotID   string `json:"bot_id,omitempty"`
	Channel string `json:"channel,omitempty"`
	User    string `json:"user,omitempty"`
	TS      string `json:"ts,omitempty"`
	Item    *Item  `json:"item,omitempty"`
}

// Item is the target of reaction-style events.
type Item struct {
	Type    string `json:"type,omitempty"`
	Channel string `json:"channel,omitempty"`
	TS      string `json:"ts,omitempty"`
}

// Team identifies the installing workspace on interactive-message payloads.
type Team struct {
	ID     string `json:"id,omitempty"`
	Domain string `json:"domain,omitempty"`
}

// ChannelRef is the top-level channel reference. Interactive messages carry
// an object ({"id":...,"name":...}); other deliveries may carry a bare
// string id, so unmarshalling accepts both.
type ChannelRef struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name,omitempty"`
}

func (c *ChannelRef) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var id string
		if err := json.Unmarshal(data, &id); err != nil {
			return err
		}
		c.ID = id
		return nil
	}
	type alias ChannelRef
	return json.Unmarshal(data, (*alias)(c))
}

// Payload is one inbound delivery.
type Payload struct {
	Type        string      `json:"type,omitempty"`
	Token       string      `json:"token,omitempty"`
	Challenge   string      `json:"challenge,omitempty"`
	Team        *Team       `json:"team,omitempty"`
	TeamID      string      `json:"team_id,omitempty"`
	Command     string      `json:"command,omitempty"`
	TriggerWord string      `json:"trigger_word,omitempty"`
	CallbackID  string      `json:"callback_id,omitempty"`
	Text        string      `json:"text,omitempty"`
	UserID      string      `json:"user_id,omitempty"`
	Channel     *ChannelRef `json:"channel,omitempty"`
	ChannelID   string      `json:"channel_id,omitempty"`
	ResponseURL string      `json:"response_url,omitempty"`
	BotID       string      `json:"bot_id,omitempty"`
	Event       *Event      `json:"event,omitempty"`

	raw []byte
}

// ParseJSON decodes a JSON delivery (Events API, or the embedded
// interactive-message document). The raw bytes are retained for Get.
func ParseJSON(data []byte) (*Payload, error) {
	p := &Payload{}
	if err := json.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("payload: decode json: %w", err)
	}
	p.raw = data
	return p, nil
}

// ParseForm decodes a form-encoded delivery (slash commands, outgoing
// webhooks). Interactive messages arrive as a JSON document embedded in the
// "payload" form field; those are unwrapped and re-parsed as JSON.
func ParseForm(values url.Values) (*Payload, error) {
	if doc := values.Get("payload"); doc != "" {
		return ParseJSON([]byte(doc))
	}

	fields := make(map[string]string, len(values))
	for key := range values {
		if v := values.Get(key); v != "" {
			fields[key] = v
		}
	}

	data, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("payload: encode form: %w", err)
	}
	return ParseJSON(data)
}

// Raw returns the JSON document this payload was parsed from.
func (p *Payload) Raw() []byte { return p.raw }

// Get looks up an arbitrary field of the raw document by gjson path, for
// fields the struct does not model (e.g. "actions.0.value").
func (p *Payload) Get(path string) gjson.Result {
	return gjson.GetBytes(p.raw, path)
}

// InstallID returns the id of the installation this delivery belongs to.
// Interactive messages nest it one level deeper under team.id.
func (p *Payload) InstallID() string {
	if p.TeamID != "" {
		return p.TeamID
	}
	if p.Team != nil {
		return p.Team.ID
	}
	return ""
}

// FromBot reports whether the delivery was produced by a bot, either
// directly or via the nested event. Such payloads are never dispatched.
func (p *Payload) FromBot() bool {
	if p.BotID != "" {
		return true
	}
	return p.Event != nil && p.Event.BotID != ""
}

// DestChannel returns the channel the delivery came from, trying the shapes
// in the order the platform uses them: interactive-message channel object,
// slash-command channel_id, event channel, then reaction item channel.
func (p *Payload) DestChannel() string {
	if p.Channel != nil && p.Channel.ID != "" {
		return p.Channel.ID
	}
	if p.ChannelID != "" {
		return p.ChannelID
	}
	if p.Event != nil {
		if p.Event.Channel != "" {
			return p.Event.Channel
		}
		if p.Event.Item != nil {
			return p.Event.Item.Channel
		}
	}
	return ""
}

// MatchText returns the text a pattern listener should match against:
// the top-level text when present, else the nested event's text.
func (p *Payload) MatchText() (string, bool) {
	if p.Text != "" {
		return p.Text, true
	}
	if p.Event != nil && p.Event.Text != "" {
		return p.Event.Text, true
	}
	return "", false
}
