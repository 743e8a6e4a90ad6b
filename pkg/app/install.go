package app

import (
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/oauth2"

	"github.com/slacklet/slacklet/pkg/logger"
)

const slackAuthorizeURL = "https://slack.com/oauth/authorize"

// oauthConfig builds the OAuth flow configuration for the app.
func (c *Coordinator) oauthConfig() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     c.cfg.ClientID,
		ClientSecret: c.cfg.ClientSecret,
		Scopes:       strings.Split(c.cfg.ClientScopes, ","),
		RedirectURL:  c.cfg.OAuthRedirect,
		Endpoint: oauth2.Endpoint{
			AuthURL: slackAuthorizeURL,
		},
	}
}

// HandleInstall is the OAuth entry point. Without a code it redirects the
// browser to Slack's authorize page; with one it exchanges the code, saves
// the installation, and redirects to the configured post-install page
// carrying state and, on failure, an error query parameter.
func (c *Coordinator) HandleInstall(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	code := query.Get("code")
	state := query.Get("state")

	if code == "" {
		authURL := c.oauthConfig().AuthCodeURL(state)
		logger.InfoC(component, "redirecting to authorize")
		http.Redirect(w, r, authURL, http.StatusFound)
		return
	}

	redirect := url.Values{}
	if state != "" {
		redirect.Set("state", state)
	}

	inst, err := c.authorizer.Authorize(r.Context(), code, c.cfg.OAuthRedirect)
	if err == nil {
		err = c.store.Save(r.Context(), inst)
	}
	if err != nil {
		logger.ErrorCF(component, "install failed", map[string]interface{}{"error": err})
		redirect.Set("error", err.Error())
	} else {
		logger.InfoCF(component, "installed", map[string]interface{}{"team": inst.TeamID})
	}

	if c.cfg.InstallRedirect == "" {
		if err != nil {
			writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"team_id": inst.TeamID})
		return
	}

	target := c.cfg.InstallRedirect
	if encoded := redirect.Encode(); encoded != "" {
		target += "?" + encoded
	}
	http.Redirect(w, r, target, http.StatusFound)
}
