// Package social builds login redirect URLs for external identity
// providers. Token exchange with the provider happens outside this core.
package social

import (
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

type Provider interface {
	Name() string
	AuthCodeURL(state string) string
}

type oauthProvider struct {
	name   string
	config *oauth2.Config
}

func (p *oauthProvider) Name() string {
	return p.name
}

func (p *oauthProvider) AuthCodeURL(state string) string {
	return p.config.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

func NewGoogleProvider(callbackURL, clientID, clientSecret string) Provider {
	return &oauthProvider{
		name: "google",
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  callbackURL,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     google.Endpoint,
		},
	}
}
