package calendar

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"golang.org/x/oauth2/microsoft"
	gcal "google.golang.org/api/calendar/v3"

	"github.com/iliyamo/soundrent-backoffice/internal/config"
	"github.com/iliyamo/soundrent-backoffice/internal/model"
)

// ErrNotConfigured is returned when the OAuth client of a provider has no
// credentials.
var ErrNotConfigured = errors.New("calendar: provider not configured")

// Microsoft Graph scopes.
const (
	scopeGraphCalendars = "https://graph.microsoft.com/Calendars.ReadWrite"
	scopeOfflineAccess  = "offline_access"
)

// OAuth holds the authorization-code configuration of both providers.
type OAuth struct {
	configs map[string]*oauth2.Config
}

// NewOAuth builds the OAuth clients from cfg. Providers without a client id
// are left out.
func NewOAuth(cfg config.CalendarConfig) *OAuth {
	o := &OAuth{configs: make(map[string]*oauth2.Config, 2)}
	if cfg.GoogleClientID != "" {
		o.configs[model.ProviderGoogle] = &oauth2.Config{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			Endpoint:     google.Endpoint,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{gcal.CalendarScope},
		}
	}
	if cfg.MSClientID != "" {
		o.configs[model.ProviderOutlook] = &oauth2.Config{
			ClientID:     cfg.MSClientID,
			ClientSecret: cfg.MSClientSecret,
			Endpoint:     microsoft.AzureADEndpoint(cfg.MSTenant),
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{scopeGraphCalendars, scopeOfflineAccess},
		}
	}
	return o
}

// Config returns the OAuth configuration of provider.
func (o *OAuth) Config(provider string) (*oauth2.Config, error) {
	switch provider {
	case model.ProviderGoogle, model.ProviderOutlook:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, provider)
	}
	c, ok := o.configs[provider]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotConfigured, provider)
	}
	return c, nil
}

// Configured lists the providers that can be connected.
func (o *OAuth) Configured() []string {
	var out []string
	for _, p := range []string{model.ProviderGoogle, model.ProviderOutlook} {
		if _, ok := o.configs[p]; ok {
			out = append(out, p)
		}
	}
	return out
}

// AuthURL returns the consent page URL. Offline access is requested so a
// refresh token is issued.
func (o *OAuth) AuthURL(provider, state string) (string, error) {
	c, err := o.Config(provider)
	if err != nil {
		return "", err
	}
	opts := []oauth2.AuthCodeOption{oauth2.AccessTypeOffline}
	if provider == model.ProviderGoogle {
		opts = append(opts, oauth2.ApprovalForce)
	}
	return c.AuthCodeURL(state, opts...), nil
}

// Exchange trades an authorization code for a token.
func (o *OAuth) Exchange(ctx context.Context, provider, code string) (*oauth2.Token, error) {
	c, err := o.Config(provider)
	if err != nil {
		return nil, err
	}
	tok, err := c.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchange %s code: %w", provider, err)
	}
	return tok, nil
}

func toModel(provider string, t *oauth2.Token) model.CalendarToken {
	return model.CalendarToken{
		Provider:     provider,
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		TokenType:    t.TokenType,
		Expiry:       t.Expiry,
	}
}

func fromModel(t *model.CalendarToken) *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		TokenType:    t.TokenType,
		Expiry:       t.Expiry,
	}
}
