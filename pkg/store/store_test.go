package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

func sampleInstallation() *Installation {
	return &Installation{
		TeamID: "T123",
		Auth: &Auth{
			AccessToken: "xoxp-user",
			Scope:       "bot,commands",
			TeamName:    "Acme",
			TeamID:      "T123",
			Bot: &BotAuth{
				BotUserID:      "U42",
				BotAccessToken: "xoxb-bot",
			},
			IncomingWebhook: &IncomingWebhook{
				URL:     "https://hooks.slack.test/wh",
				Channel: "#general",
			},
		},
		Brain: map[string]interface{}{"greeting": "hello"},
	}
}

func testStores(t *testing.T) map[string]Store {
	t.Helper()
	sqlite, err := OpenSQLite(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { sqlite.Close() })

	return map[string]Store{
		"sqlite": sqlite,
		"memory": NewMemoryStore(),
	}
}

func TestStoreRoundTrip(t *testing.T) {
	for name, s := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			if err := s.Save(ctx, sampleInstallation()); err != nil {
				t.Fatalf("Save: %v", err)
			}

			got, err := s.Get(ctx, "T123")
			if err != nil {
				t.Fatalf("Get: %v", err)
			}
			if got.Auth == nil || got.Auth.Token() != "xoxb-bot" {
				t.Errorf("token = %q, want bot token preferred", got.Auth.Token())
			}
			if got.Auth.IncomingWebhook == nil || got.Auth.IncomingWebhook.URL != "https://hooks.slack.test/wh" {
				t.Errorf("incoming webhook lost: %+v", got.Auth.IncomingWebhook)
			}
			if got.Brain["greeting"] != "hello" {
				t.Errorf("brain lost: %+v", got.Brain)
			}
		})
	}
}

func TestStoreSaveReplacesWholesale(t *testing.T) {
	for name, s := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			inst := sampleInstallation()
			if err := s.Save(ctx, inst); err != nil {
				t.Fatalf("Save: %v", err)
			}

			inst.Brain = map[string]interface{}{"counter": float64(2)}
			if err := s.Save(ctx, inst); err != nil {
				t.Fatalf("Save: %v", err)
			}

			got, err := s.Get(ctx, "T123")
			if err != nil {
				t.Fatalf("Get: %v", err)
			}
			if _, stale := got.Brain["greeting"]; stale {
				t.Error("old brain key survived a wholesale save")
			}
			if got.Brain["counter"] != float64(2) {
				t.Errorf("brain = %+v", got.Brain)
			}
		})
	}
}

func TestStoreGetMissing(t *testing.T) {
	for name, s := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.Get(context.Background(), "T404")
			if !errors.Is(err, ErrNotFound) {
				t.Errorf("err = %v, want ErrNotFound", err)
			}
		})
	}
}

func TestStoreRejectsEmptyTeamID(t *testing.T) {
	for name, s := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			if err := s.Save(context.Background(), &Installation{}); err == nil {
				t.Error("expected an error saving without a team id")
			}
		})
	}
}

func TestAuthTokenFallsBackToUserToken(t *testing.T) {
	auth := &Auth{AccessToken: "xoxp-user"}
	if auth.Token() != "xoxp-user" {
		t.Errorf("token = %q", auth.Token())
	}
	auth.Bot = &BotAuth{}
	if auth.Token() != "xoxp-user" {
		t.Errorf("token = %q, want user token when bot token empty", auth.Token())
	}
}
