package gcal

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/joacortez/kai-go/internal/config"
	"github.com/joacortez/kai-go/internal/logger"
)

// Calendar access is read/write; changing scopes invalidates cached tokens.
var oauthScopes = []string{calendar.CalendarScope}

// Client wraps the Google Calendar API for a single configured calendar.
type Client struct {
	oauth      *oauth2.Config
	tokenFile  string
	calendarID string
	timezone   string

	mu      sync.Mutex // guards token refresh and service init
	token   *oauth2.Token
	service *calendar.Service
}

// NewClient builds a client from the calendar configuration. The returned
// client may be unauthenticated; call Authenticated to check and AuthURL /
// ExchangeCode to run the consent flow.
func NewClient(cfg config.CalendarConfig) (*Client, error) {
	oauthCfg, err := loadOAuthConfig(cfg.CredentialsFile)
	if err != nil {
		return nil, authError("load credentials", err)
	}

	c := &Client{
		oauth:      oauthCfg,
		tokenFile:  cfg.TokenFile,
		calendarID: cfg.CalendarID,
		timezone:   cfg.Timezone,
	}
	if c.calendarID == "" {
		c.calendarID = "primary"
	}

	if token, err := loadToken(cfg.TokenFile); err == nil {
		c.token = token
		if err := c.initService(context.Background()); err != nil {
			logger.L.Warn("cached token rejected, re-auth required", "error", err)
		}
	}

	return c, nil
}

// loadOAuthConfig reads the installed-app client secret from the environment
// or from a credentials file.
func loadOAuthConfig(credentialsFile string) (*oauth2.Config, error) {
	if credJSON := os.Getenv("GOOGLE_CREDENTIALS_JSON"); credJSON != "" {
		return google.ConfigFromJSON([]byte(credJSON), oauthScopes...)
	}

	data, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("no credentials available: %w", err)
	}
	return google.ConfigFromJSON(data, oauthScopes...)
}

func loadToken(path string) (*oauth2.Token, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	token := &oauth2.Token{}
	if err := json.Unmarshal(data, token); err != nil {
		return nil, err
	}
	return token, nil
}

func saveToken(path string, token *oauth2.Token) error {
	data, err := json.Marshal(token)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// Authenticated reports whether the client holds a usable calendar service.
func (c *Client) Authenticated() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.service != nil
}

// AuthURL returns the consent URL for the installed-app flow.
func (c *Client) AuthURL() string {
	return c.oauth.AuthCodeURL("state-token", oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// ExchangeCode trades an authorization code for a token, persists it and
// initializes the calendar service.
func (c *Client) ExchangeCode(ctx context.Context, code string) error {
	token, err := c.oauth.Exchange(ctx, code)
	if err != nil {
		return authError("exchange code", err)
	}

	c.mu.Lock()
	c.token = token
	c.mu.Unlock()

	if err := saveToken(c.tokenFile, token); err != nil {
		logger.L.Warn("could not save token", "path", c.tokenFile, "error", err)
	}
	return c.initService(ctx)
}

// initService refreshes the token if needed and builds the calendar service.
// The mutex makes refresh single-flight when the HTTP endpoint serves
// concurrent requests.
func (c *Client) initService(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token == nil {
		return authError("init service", fmt.Errorf("no token available"))
	}

	if !c.token.Valid() && c.token.RefreshToken != "" {
		newToken, err := c.oauth.TokenSource(ctx, c.token).Token()
		if err != nil {
			return authError("refresh token", err)
		}
		c.token = newToken
		if err := saveToken(c.tokenFile, newToken); err != nil {
			logger.L.Warn("could not save refreshed token", "path", c.tokenFile, "error", err)
		}
	}

	httpClient := c.oauth.Client(ctx, c.token)
	service, err := calendar.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return authError("create service", err)
	}

	c.service = service
	return nil
}

// svc returns the calendar service, or an auth error when the consent flow
// has not completed.
func (c *Client) svc(op string) (*calendar.Service, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.service == nil {
		return nil, authError(op, fmt.Errorf("calendar service not initialized"))
	}
	return c.service, nil
}
