package slackapi

import "github.com/slack-go/slack"

// Response visibility values Slack understands on response_url posts.
const (
	ResponseTypeInChannel = "in_channel"
	ResponseTypeEphemeral = "ephemeral"
)

// Message is the outbound message shape scripts produce. Plain-text replies
// are normalized into this shape at the boundary (NewTextMessage) so the
// rest of the pipeline deals with exactly one type.
type Message struct {
	Text         string             `json:"text,omitempty"`
	Channel      string             `json:"channel,omitempty"`
	ResponseType string             `json:"response_type,omitempty"`
	ThreadTS     string             `json:"thread_ts,omitempty"`
	Attachments  []slack.Attachment `json:"attachments,omitempty"`
}

// NewTextMessage wraps a plain string as a Message.
func NewTextMessage(text string) *Message {
	return &Message{Text: text}
}

// Clone returns a shallow copy. The router mutates the response type on the
// copy so a script's own Message value is never changed under it.
func (m *Message) Clone() *Message {
	c := *m
	return &c
}

func (m *Message) webhook() *slack.WebhookMessage {
	return &slack.WebhookMessage{
		Text:            m.Text,
		Channel:         m.Channel,
		ResponseType:    m.ResponseType,
		ThreadTimestamp: m.ThreadTS,
		Attachments:     m.Attachments,
	}
}
