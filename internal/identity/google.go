// Package identity delegates sign-in to Google and requests the calendar
// scope needed for review reminders.
package identity

import (
	"context"
	"fmt"

	"github.com/kekarecall/apiserver/config"
	"github.com/kekarecall/apiserver/internal/services"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gcal "google.golang.org/api/calendar/v3"
	oauth2api "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"
)

// Scopes requested at consent time: profile fields plus calendar event writes.
var Scopes = []string{
	"openid",
	oauth2api.UserinfoEmailScope,
	oauth2api.UserinfoProfileScope,
	gcal.CalendarEventsScope,
}

// Provider is the external identity provider used by the callback flow.
type Provider interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)
	Profile(ctx context.Context, token *oauth2.Token) (services.ExternalProfile, error)
}

// NewGoogleOAuthConfig builds the OAuth2 client configuration shared by the
// sign-in flow and the calendar notifier.
func NewGoogleOAuthConfig(cfg config.GoogleConfig) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURL,
		Scopes:       Scopes,
		Endpoint:     google.Endpoint,
	}
}

type GoogleProvider struct {
	oauth *oauth2.Config
	// endpoint overrides the Google API base URL when set.
	endpoint string
}

func NewGoogleProvider(oauthCfg *oauth2.Config) *GoogleProvider {
	return &GoogleProvider{oauth: oauthCfg}
}

// AuthCodeURL always asks for offline access and forces the consent screen
// so Google issues a refresh token on every sign-in.
func (p *GoogleProvider) AuthCodeURL(state string) string {
	return p.oauth.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

func (p *GoogleProvider) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	token, err := p.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchange authorization code: %w", err)
	}
	return token, nil
}

func (p *GoogleProvider) Profile(ctx context.Context, token *oauth2.Token) (services.ExternalProfile, error) {
	opts := []option.ClientOption{option.WithHTTPClient(p.oauth.Client(ctx, token))}
	if p.endpoint != "" {
		opts = append(opts, option.WithEndpoint(p.endpoint))
	}
	svc, err := oauth2api.NewService(ctx, opts...)
	if err != nil {
		return services.ExternalProfile{}, fmt.Errorf("init userinfo client: %w", err)
	}

	info, err := svc.Userinfo.Get().Context(ctx).Do()
	if err != nil {
		return services.ExternalProfile{}, fmt.Errorf("fetch profile: %w", err)
	}
	return services.ExternalProfile{Email: info.Email, Name: info.Name}, nil
}
