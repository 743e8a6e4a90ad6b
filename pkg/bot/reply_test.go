package bot

import (
	"context"
	"errors"
	"testing"

	"github.com/slacklet/slacklet/pkg/payload"
	"github.com/slacklet/slacklet/pkg/slackapi"
	"github.com/slacklet/slacklet/pkg/store"
)

type sentCall struct {
	token    string
	endpoint string
	msg      *slackapi.Message
}

type fakeSender struct {
	calls []sentCall
	err   error
}

func (f *fakeSender) Send(_ context.Context, token, endpoint string, msg *slackapi.Message) error {
	f.calls = append(f.calls, sentCall{token: token, endpoint: endpoint, msg: msg})
	return f.err
}

func mustParse(t *testing.T, doc string) *payload.Payload {
	t.Helper()
	p, err := payload.ParseJSON([]byte(doc))
	if err != nil {
		t.Fatalf("parse payload: %v", err)
	}
	return p
}

func install(auth *store.Auth) *store.Installation {
	return &store.Installation{TeamID: "T1", Auth: auth}
}

func TestReplyPrivateWithoutResponseURLFails(t *testing.T) {
	sender := &fakeSender{}
	b := New(install(&store.Auth{AccessToken: "xoxp-1"}), sender)

	err := b.ReplyPrivate(context.Background(), mustParse(t, `{"type": "message"}`),
		slackapi.NewTextMessage("secret"))

	if !errors.Is(err, ErrNoResponseURL) {
		t.Fatalf("err = %v, want ErrNoResponseURL", err)
	}
	if len(sender.calls) != 0 {
		t.Fatalf("made %d outbound calls, want 0", len(sender.calls))
	}
}

func TestReplyViaResponseURLDefaultsInChannel(t *testing.T) {
	sender := &fakeSender{}
	b := New(install(&store.Auth{AccessToken: "xoxp-1"}), sender)
	p := mustParse(t, `{"command": "/demo", "response_url": "https://hooks.slack.test/cb"}`)

	msg := slackapi.NewTextMessage("hello")
	if err := b.Reply(context.Background(), p, msg); err != nil {
		t.Fatalf("Reply: %v", err)
	}

	if len(sender.calls) != 1 {
		t.Fatalf("made %d calls, want 1", len(sender.calls))
	}
	call := sender.calls[0]
	if call.endpoint != "https://hooks.slack.test/cb" {
		t.Errorf("endpoint = %q", call.endpoint)
	}
	if call.msg.ResponseType != slackapi.ResponseTypeInChannel {
		t.Errorf("response_type = %q, want in_channel", call.msg.ResponseType)
	}
	// the caller's message must not be mutated
	if msg.ResponseType != "" {
		t.Errorf("caller message mutated: response_type = %q", msg.ResponseType)
	}
}

func TestReplyViaResponseURLKeepsExplicitResponseType(t *testing.T) {
	sender := &fakeSender{}
	b := New(install(&store.Auth{AccessToken: "xoxp-1"}), sender)
	p := mustParse(t, `{"response_url": "https://hooks.slack.test/cb"}`)

	err := b.Reply(context.Background(), p, &slackapi.Message{
		Text:         "hi",
		ResponseType: slackapi.ResponseTypeEphemeral,
	})
	if err != nil {
		t.Fatalf("Reply: %v", err)
	}

	if got := sender.calls[0].msg.ResponseType; got != slackapi.ResponseTypeEphemeral {
		t.Errorf("response_type = %q, want ephemeral kept", got)
	}
}

func TestReplyPrivateViaResponseURLDoesNotForceInChannel(t *testing.T) {
	sender := &fakeSender{}
	b := New(install(&store.Auth{AccessToken: "xoxp-1"}), sender)
	p := mustParse(t, `{"response_url": "https://hooks.slack.test/cb"}`)

	if err := b.ReplyPrivate(context.Background(), p, slackapi.NewTextMessage("psst")); err != nil {
		t.Fatalf("ReplyPrivate: %v", err)
	}

	if got := sender.calls[0].msg.ResponseType; got != "" {
		t.Errorf("response_type = %q, want empty (platform default is ephemeral)", got)
	}
}

func TestReplyViaIncomingWebhook(t *testing.T) {
	sender := &fakeSender{}
	auth := &store.Auth{
		AccessToken:     "xoxp-1",
		IncomingWebhook: &store.IncomingWebhook{URL: "https://hooks.slack.test/wh"},
	}
	b := New(install(auth), sender)

	// no response_url, no channel anywhere -> webhook branch
	if err := b.Reply(context.Background(), mustParse(t, `{"type": "message"}`),
		slackapi.NewTextMessage("hi")); err != nil {
		t.Fatalf("Reply: %v", err)
	}

	if got := sender.calls[0].endpoint; got != "https://hooks.slack.test/wh" {
		t.Errorf("endpoint = %q, want webhook url", got)
	}
}

func TestExplicitChannelSuppressesWebhook(t *testing.T) {
	sender := &fakeSender{}
	auth := &store.Auth{
		AccessToken:     "xoxp-1",
		IncomingWebhook: &store.IncomingWebhook{URL: "https://hooks.slack.test/wh"},
	}
	b := New(install(auth), sender)

	// payload names a channel -> fall through to chat.postMessage
	p := mustParse(t, `{"event": {"type": "message", "channel": "C1"}}`)
	if err := b.Reply(context.Background(), p, slackapi.NewTextMessage("hi")); err != nil {
		t.Fatalf("Reply: %v", err)
	}

	call := sender.calls[0]
	if call.endpoint != "chat.postMessage" {
		t.Errorf("endpoint = %q, want chat.postMessage", call.endpoint)
	}
	if call.msg.Channel != "C1" {
		t.Errorf("channel = %q, want C1", call.msg.Channel)
	}
}

func TestMessageChannelSuppressesWebhook(t *testing.T) {
	sender := &fakeSender{}
	auth := &store.Auth{
		AccessToken:     "xoxp-1",
		IncomingWebhook: &store.IncomingWebhook{URL: "https://hooks.slack.test/wh"},
	}
	b := New(install(auth), sender)

	err := b.Reply(context.Background(), mustParse(t, `{}`),
		&slackapi.Message{Text: "hi", Channel: "C9"})
	if err != nil {
		t.Fatalf("Reply: %v", err)
	}

	call := sender.calls[0]
	if call.endpoint != "chat.postMessage" {
		t.Errorf("endpoint = %q, want chat.postMessage", call.endpoint)
	}
	if call.msg.Channel != "C9" {
		t.Errorf("channel = %q, want C9", call.msg.Channel)
	}
}

func TestTokenPrefersBotToken(t *testing.T) {
	sender := &fakeSender{}
	auth := &store.Auth{
		AccessToken: "xoxp-user",
		Bot:         &store.BotAuth{BotAccessToken: "xoxb-bot"},
	}
	b := New(install(auth), sender)

	if err := b.Say(context.Background(), slackapi.NewTextMessage("hi")); err != nil {
		t.Fatalf("Say: %v", err)
	}

	if got := sender.calls[0].token; got != "xoxb-bot" {
		t.Errorf("token = %q, want bot token", got)
	}
}

func TestBrainDirtyTracking(t *testing.T) {
	b := New(install(&store.Auth{}), &fakeSender{})

	if b.BrainDirty() {
		t.Fatal("fresh bot has a dirty brain")
	}
	if _, ok := b.Recall("counter"); ok {
		t.Fatal("unexpected brain value")
	}

	b.Remember("counter", 1)
	if !b.BrainDirty() {
		t.Fatal("Remember did not mark the brain dirty")
	}
	if v, ok := b.Recall("counter"); !ok || v != 1 {
		t.Fatalf("Recall = %v, %v", v, ok)
	}
}
