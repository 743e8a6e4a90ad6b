// Package slackapi is the platform API boundary: one Send capability that
// covers response_url callbacks, incoming webhooks, and Web API methods,
// plus the OAuth code exchange used by the install flow.
package slackapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/slack-go/slack"

	"github.com/slacklet/slacklet/pkg/logger"
	"github.com/slacklet/slacklet/pkg/store"
)

const component = "slackapi"

const apiBaseURL = "https://slack.com/api/"

// Sender posts one message to one endpoint. The endpoint is either a full
// URL (a response_url callback or an incoming webhook) or a Web API method
// name such as "chat.postMessage". No retries happen at this layer.
type Sender interface {
	Send(ctx context.Context, token, endpoint string, msg *Message) error
}

// Authorizer exchanges an OAuth code for an installation record.
type Authorizer interface {
	Authorize(ctx context.Context, code, redirectURI string) (*store.Installation, error)
}

// Client implements Sender and Authorizer against the real Slack API.
type Client struct {
	clientID     string
	clientSecret string
	httpClient   *http.Client
	baseURL      string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithBaseURL points Web API method calls at a different base URL. Tests
// use this to capture traffic.
func WithBaseURL(base string) Option {
	return func(c *Client) {
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}
		c.baseURL = base
	}
}

// New creates a Client with the app's OAuth credentials.
func New(clientID, clientSecret string, opts ...Option) *Client {
	c := &Client{
		clientID:     clientID,
		clientSecret: clientSecret,
		httpClient:   &http.Client{Timeout: 15 * time.Second},
		baseURL:      apiBaseURL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Send implements Sender.
func (c *Client) Send(ctx context.Context, token, endpoint string, msg *Message) error {
	logger.DebugCF(component, "send", map[string]interface{}{"endpoint": endpoint})

	switch {
	case isURL(endpoint):
		return c.postWebhook(ctx, endpoint, msg)
	case endpoint == "chat.postMessage":
		return c.postMessage(ctx, token, msg)
	default:
		return c.callMethod(ctx, token, endpoint, msg)
	}
}

func isURL(endpoint string) bool {
	return strings.HasPrefix(endpoint, "http://") || strings.HasPrefix(endpoint, "https://")
}

// postWebhook posts to a response_url callback or incoming webhook URL.
func (c *Client) postWebhook(ctx context.Context, url string, msg *Message) error {
	if err := slack.PostWebhookCustomHTTPContext(ctx, url, c.httpClient, msg.webhook()); err != nil {
		return fmt.Errorf("slackapi: webhook post: %w", err)
	}
	return nil
}

// postMessage calls chat.postMessage through the typed client.
func (c *Client) postMessage(ctx context.Context, token string, msg *Message) error {
	api := slack.New(token,
		slack.OptionHTTPClient(c.httpClient),
		slack.OptionAPIURL(c.baseURL),
	)

	opts := []slack.MsgOption{slack.MsgOptionText(msg.Text, false)}
	if len(msg.Attachments) > 0 {
		opts = append(opts, slack.MsgOptionAttachments(msg.Attachments...))
	}
	if msg.ThreadTS != "" {
		opts = append(opts, slack.MsgOptionTS(msg.ThreadTS))
	}

	if _, _, err := api.PostMessageContext(ctx, msg.Channel, opts...); err != nil {
		return fmt.Errorf("slackapi: chat.postMessage: %w", err)
	}
	return nil
}

// callMethod posts form-encoded to an arbitrary Web API method and applies
// the ok-check. slack-go exposes no generic method call, so this is the
// escape hatch for endpoints the typed client does not cover.
func (c *Client) callMethod(ctx context.Context, token, method string, msg *Message) error {
	values := url.Values{}
	if token != "" {
		values.Set("token", token)
	}
	if msg.Text != "" {
		values.Set("text", msg.Text)
	}
	if msg.Channel != "" {
		values.Set("channel", msg.Channel)
	}
	if msg.ThreadTS != "" {
		values.Set("thread_ts", msg.ThreadTS)
	}
	if len(msg.Attachments) > 0 {
		attachments, err := json.Marshal(msg.Attachments)
		if err != nil {
			return fmt.Errorf("slackapi: encode attachments: %w", err)
		}
		values.Set("attachments", string(attachments))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+method, strings.NewReader(values.Encode()))
	if err != nil {
		return fmt.Errorf("slackapi: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("slackapi: %s: %w", method, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("slackapi: %s: read response: %w", method, err)
	}

	var result struct {
		OK    bool   `json:"ok"`
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return fmt.Errorf("slackapi: %s: decode response: %w", method, err)
	}
	if !result.OK {
		return fmt.Errorf("slackapi: %s: %s", method, result.Error)
	}
	return nil
}

// Authorize implements Authorizer: it exchanges the OAuth code and shapes
// the response into an installation record ready to persist.
func (c *Client) Authorize(ctx context.Context, code, redirectURI string) (*store.Installation, error) {
	resp, err := slack.GetOAuthResponseContext(ctx, c.httpClient,
		c.clientID, c.clientSecret, code, redirectURI)
	if err != nil {
		return nil, fmt.Errorf("slackapi: oauth exchange: %w", err)
	}

	auth := &store.Auth{
		AccessToken: resp.AccessToken,
		Scope:       resp.Scope,
		TeamName:    resp.TeamName,
		TeamID:      resp.TeamID,
	}
	if resp.Bot.BotAccessToken != "" {
		auth.Bot = &store.BotAuth{
			BotUserID:      resp.Bot.BotUserID,
			BotAccessToken: resp.Bot.BotAccessToken,
		}
	}
	if resp.IncomingWebhook.URL != "" {
		auth.IncomingWebhook = &store.IncomingWebhook{
			URL:     resp.IncomingWebhook.URL,
			Channel: resp.IncomingWebhook.Channel,
		}
	}

	return &store.Installation{TeamID: resp.TeamID, Auth: auth}, nil
}

var (
	_ Sender     = (*Client)(nil)
	_ Authorizer = (*Client)(nil)
)
