package authapi

import (
	"slices"
	"strings"
)

// Provider names a third-party identity issuer known to the service.
type Provider string

const (
	ProviderApple     Provider = "apple"
	ProviderAzure     Provider = "azure"
	ProviderBitbucket Provider = "bitbucket"
	ProviderDiscord   Provider = "discord"
	ProviderFacebook  Provider = "facebook"
	ProviderFigma     Provider = "figma"
	ProviderGitHub    Provider = "github"
	ProviderGitLab    Provider = "gitlab"
	ProviderGoogle    Provider = "google"
	ProviderKeycloak  Provider = "keycloak"
	ProviderLinkedIn  Provider = "linkedin_oidc"
	ProviderNotion    Provider = "notion"
	ProviderSlack     Provider = "slack_oidc"
	ProviderSpotify   Provider = "spotify"
	ProviderTwitch    Provider = "twitch"
	ProviderTwitter   Provider = "twitter"
	ProviderWorkOS    Provider = "workos"
	ProviderZoom      Provider = "zoom"
)

var providers = []Provider{
	ProviderApple, ProviderAzure, ProviderBitbucket, ProviderDiscord,
	ProviderFacebook, ProviderFigma, ProviderGitHub, ProviderGitLab,
	ProviderGoogle, ProviderKeycloak, ProviderLinkedIn, ProviderNotion,
	ProviderSlack, ProviderSpotify, ProviderTwitch, ProviderTwitter,
	ProviderWorkOS, ProviderZoom,
}

// Providers lists every supported provider.
func Providers() []Provider {
	return slices.Clone(providers)
}

func (p Provider) Valid() bool {
	return slices.Contains(providers, p)
}

// ParseProvider accepts a provider name case-insensitively.
func ParseProvider(s string) (Provider, error) {
	p := Provider(strings.ToLower(strings.TrimSpace(s)))
	if !p.Valid() {
		return "", ErrUnsupportedProvider
	}
	return p, nil
}
