package bot

import (
	"context"
	"errors"

	"github.com/slacklet/slacklet/pkg/logger"
	"github.com/slacklet/slacklet/pkg/payload"
	"github.com/slacklet/slacklet/pkg/slackapi"
)

const component = "bot"

// ErrNoResponseURL is returned when a private reply is requested for a
// delivery that carries no response_url callback.
var ErrNoResponseURL = errors.New("bot: a private reply requires a callback URL")

// Reply routes a message back to wherever the delivery came from.
func (b *Bot) Reply(ctx context.Context, p *payload.Payload, msg *slackapi.Message) error {
	return b.route(ctx, p, msg, false)
}

// ReplyText is Reply for plain strings.
func (b *Bot) ReplyText(ctx context.Context, p *payload.Payload, text string) error {
	return b.route(ctx, p, slackapi.NewTextMessage(text), false)
}

// ReplyPrivate replies ephemerally: only the triggering user sees it.
// It requires the delivery to carry a response_url.
func (b *Bot) ReplyPrivate(ctx context.Context, p *payload.Payload, msg *slackapi.Message) error {
	return b.route(ctx, p, msg, true)
}

// Say posts a message through chat.postMessage with the bot's token.
func (b *Bot) Say(ctx context.Context, msg *slackapi.Message) error {
	return b.sender.Send(ctx, b.Token(), "chat.postMessage", msg)
}

// Send posts to an arbitrary API method or URL with the bot's token.
func (b *Bot) Send(ctx context.Context, endpoint string, msg *slackapi.Message) error {
	return b.sender.Send(ctx, b.Token(), endpoint, msg)
}

// route picks the reply transport. Decision order, first match wins:
//
//  1. ephemeral without a response_url is invalid — no call is made;
//  2. a response_url (slash commands, interactive messages) is used when
//     present; non-ephemeral messages with no explicit response type
//     default to in_channel;
//  3. the installation's incoming webhook is used when neither the payload
//     nor the message names a destination channel;
//  4. otherwise fall back to chat.postMessage.
//
// Exactly one outbound call happens per invocation.
func (b *Bot) route(ctx context.Context, p *payload.Payload, msg *slackapi.Message, ephemeral bool) error {
	if ephemeral && p.ResponseURL == "" {
		return ErrNoResponseURL
	}

	if p.ResponseURL != "" {
		msg = msg.Clone()
		if !ephemeral && msg.ResponseType == "" {
			msg.ResponseType = slackapi.ResponseTypeInChannel
		}
		logger.DebugCF(component, "reply via response_url", map[string]interface{}{
			"team": b.TeamID(), "ephemeral": ephemeral,
		})
		return b.sender.Send(ctx, "", p.ResponseURL, msg)
	}

	webhook := b.install.Auth.IncomingWebhook
	if webhook != nil && webhook.URL != "" && p.DestChannel() == "" && msg.Channel == "" {
		logger.DebugCF(component, "reply via incoming webhook", map[string]interface{}{
			"team": b.TeamID(),
		})
		return b.sender.Send(ctx, "", webhook.URL, msg)
	}

	if msg.Channel == "" {
		msg = msg.Clone()
		msg.Channel = p.DestChannel()
	}
	logger.DebugCF(component, "reply via chat.postMessage", map[string]interface{}{
		"team": b.TeamID(), "channel": msg.Channel,
	})
	return b.Say(ctx, msg)
}
