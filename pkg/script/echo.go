package script

import (
	"context"
	"encoding/json"
	"regexp"

	"github.com/slacklet/slacklet/pkg/bot"
	"github.com/slacklet/slacklet/pkg/dispatch"
	"github.com/slacklet/slacklet/pkg/payload"
	"github.com/slacklet/slacklet/pkg/slackapi"
)

var johnaganRE = regexp.MustCompile(`johnagan`)

// Echo is the sample script: it answers any slash command, and any message
// mentioning "johnagan", with the pretty-printed delivery it received.
func Echo() Script {
	return NewFunc("echo", func(b *bot.Bot) error {
		b.On(func(ctx context.Context, p *payload.Payload) error {
			return b.Reply(ctx, p, payloadMessage(p))
		}, dispatch.NameSlashCommand)

		b.Hears(johnaganRE, func(ctx context.Context, p *payload.Payload, _ *dispatch.Match) error {
			return b.Reply(ctx, p, payloadMessage(p))
		})

		return nil
	})
}

func payloadMessage(p *payload.Payload) *slackapi.Message {
	pretty, err := json.MarshalIndent(json.RawMessage(p.Raw()), "", "    ")
	if err != nil {
		pretty = p.Raw()
	}
	return slackapi.NewTextMessage("```" + string(pretty) + "```")
}
