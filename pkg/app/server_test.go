package app

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/slacklet/slacklet/pkg/script"
	"github.com/slacklet/slacklet/pkg/store"
)

func TestHandleReceiveChallengeEchoed(t *testing.T) {
	c, _, _, _ := testCoordinator(t, []script.Script{noopScript("a")})
	srv := NewServer(c)

	req := httptest.NewRequest(http.MethodPost, "/slack/receive",
		strings.NewReader(`{"challenge": "abc"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	srv.handleReceive(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := rec.Body.String(); got != "abc" {
		t.Errorf("body = %q, want the challenge verbatim", got)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/plain" {
		t.Errorf("Content-Type = %q", ct)
	}
}

func TestHandleReceiveTokenMismatch(t *testing.T) {
	c, _, _, st := testCoordinator(t, []script.Script{noopScript("a")})
	seedInstallation(t, st)
	srv := NewServer(c)

	req := httptest.NewRequest(http.MethodPost, "/slack/receive",
		strings.NewReader(`{"token": "wrong", "team_id": "T1"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	srv.handleReceive(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestHandleReceiveUnknownTeam(t *testing.T) {
	c, _, _, _ := testCoordinator(t, []script.Script{noopScript("a")})
	srv := NewServer(c)

	req := httptest.NewRequest(http.MethodPost, "/slack/receive",
		strings.NewReader(`{"team_id": "T404"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	srv.handleReceive(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestHandleReceiveFormSlashCommand(t *testing.T) {
	c, pub, _, st := testCoordinator(t, []script.Script{noopScript("a"), noopScript("b")})
	seedInstallation(t, st)
	srv := NewServer(c)

	form := url.Values{
		"token":        {"shh"},
		"team_id":      {"T1"},
		"command":      {"/demo"},
		"text":         {"hello"},
		"response_url": {"https://x"},
	}
	req := httptest.NewRequest(http.MethodPost, "/slack/receive",
		strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()

	srv.handleReceive(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var body struct {
		OK      bool `json:"ok"`
		Scripts int  `json:"scripts"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !body.OK || body.Scripts != 2 {
		t.Errorf("response = %+v, want ok with 2 scripts", body)
	}
	if n := len(pub.published()); n != 2 {
		t.Errorf("published %d, want 2", n)
	}
}

func TestHandleReceiveBadBody(t *testing.T) {
	c, _, _, _ := testCoordinator(t, []script.Script{noopScript("a")})
	srv := NewServer(c)

	req := httptest.NewRequest(http.MethodPost, "/slack/receive",
		strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	srv.handleReceive(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestHandleInstallRedirectsToAuthorize(t *testing.T) {
	c, _, _, _ := testCoordinator(t, nil, func(c *Coordinator) {
		c.cfg.ClientID = "id-1"
		c.cfg.ClientScopes = "bot,commands"
	})

	req := httptest.NewRequest(http.MethodGet, "/slack/install?state=s1", nil)
	rec := httptest.NewRecorder()

	c.HandleInstall(rec, req)

	if rec.Code != http.StatusFound {
		t.Fatalf("status = %d, want 302", rec.Code)
	}
	loc, err := url.Parse(rec.Header().Get("Location"))
	if err != nil {
		t.Fatalf("parse Location: %v", err)
	}
	if loc.Host != "slack.com" {
		t.Errorf("redirected to %q", loc.Host)
	}
	q := loc.Query()
	if q.Get("client_id") != "id-1" || q.Get("state") != "s1" {
		t.Errorf("authorize query = %v", q)
	}
	if !strings.Contains(q.Get("scope"), "bot") {
		t.Errorf("scope = %q", q.Get("scope"))
	}
}

func TestHandleInstallExchangesAndSaves(t *testing.T) {
	inst := &store.Installation{
		TeamID: "T9",
		Auth:   &store.Auth{AccessToken: "xoxp-9"},
	}
	c, _, _, st := testCoordinator(t, nil, func(c *Coordinator) {
		c.authorizer = &fakeAuthorizer{inst: inst}
		c.cfg.InstallRedirect = "https://done.example"
	})

	req := httptest.NewRequest(http.MethodGet, "/slack/install?code=c1&state=s1", nil)
	rec := httptest.NewRecorder()

	c.HandleInstall(rec, req)

	if rec.Code != http.StatusFound {
		t.Fatalf("status = %d, want 302", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "https://done.example?state=s1" {
		t.Errorf("Location = %q", loc)
	}
	if _, err := st.Get(req.Context(), "T9"); err != nil {
		t.Errorf("installation not saved: %v", err)
	}
}

func TestHandleInstallExchangeFailure(t *testing.T) {
	c, _, _, _ := testCoordinator(t, nil, func(c *Coordinator) {
		c.authorizer = &fakeAuthorizer{err: errors.New("invalid_code")}
		c.cfg.InstallRedirect = "https://done.example"
	})

	req := httptest.NewRequest(http.MethodGet, "/slack/install?code=bad", nil)
	rec := httptest.NewRecorder()

	c.HandleInstall(rec, req)

	loc, err := url.Parse(rec.Header().Get("Location"))
	if err != nil {
		t.Fatalf("parse Location: %v", err)
	}
	if loc.Query().Get("error") == "" {
		t.Errorf("redirect %q carries no error parameter", loc)
	}
}

func TestTokenValid(t *testing.T) {
	tests := []struct {
		name     string
		provided string
		expected string
		want     bool
	}{
		{"match", "abc", "abc", true},
		{"mismatch", "abc", "xyz", false},
		{"empty provided", "", "abc", false},
		{"empty expected", "abc", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tokenValid(tt.provided, tt.expected); got != tt.want {
				t.Errorf("tokenValid(%q, %q) = %v, want %v", tt.provided, tt.expected, got, tt.want)
			}
		})
	}
}
