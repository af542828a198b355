package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/facebook"
	"golang.org/x/oauth2/github"
	"golang.org/x/oauth2/google"
)

// Supported social login providers. The names appear in the route
// /api/users/auth/{provider}.
const (
	ProviderGoogle   = "google"
	ProviderFacebook = "facebook"
	ProviderGitHub   = "github"
)

// ErrUnknownProvider is returned when the route names a provider that is not
// configured.
var ErrUnknownProvider = errors.New("auth: unknown social login provider")

// SocialProfile is the provider-neutral identity handed to the resolver.
type SocialProfile struct {
	Provider   string
	ProviderID string
	Email      string
	FirstName  string
	LastName   string
	Username   string
	AvatarURL  string
}

// Credentials are one provider's OAuth app credentials.
type Credentials struct {
	ClientID     string
	ClientSecret string
}

// Provider wraps golang.org/x/oauth2 for one identity provider's
// Authorization Code flow:
//
//  1. AuthURL redirects the browser to the provider's consent screen.
//  2. The provider redirects back to the callback with a short-lived code.
//  3. Exchange trades the code for an access token (server to server, using
//     the client secret) and fetches the user's profile with it.
type Provider struct {
	name       string
	config     *oauth2.Config
	profileURL string
	decode     func(ctx context.Context, client *http.Client, body []byte) (*SocialProfile, error)
}

// Name returns the provider's route name.
func (p *Provider) Name() string {
	return p.name
}

// AuthURL returns the URL to redirect the user to for authorization.
// state is a random value also stored in a cookie and checked on callback
// to prevent CSRF.
func (p *Provider) AuthURL(state string) string {
	return p.config.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// Exchange completes the OAuth flow: trades the authorization code for the
// user's profile.
func (p *Provider) Exchange(ctx context.Context, code string) (*SocialProfile, error) {
	oauthToken, err := p.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("auth: exchanging %s OAuth code: %w", p.name, err)
	}

	// The client adds "Authorization: Bearer <token>" to every request.
	client := p.config.Client(ctx, oauthToken)

	body, err := getJSON(ctx, client, p.profileURL)
	if err != nil {
		return nil, fmt.Errorf("auth: fetching %s profile: %w", p.name, err)
	}

	profile, err := p.decode(ctx, client, body)
	if err != nil {
		return nil, fmt.Errorf("auth: decoding %s profile: %w", p.name, err)
	}
	profile.Provider = p.name

	if profile.Email == "" {
		return nil, fmt.Errorf("auth: %s did not return an email address", p.name)
	}
	return profile, nil
}

// Providers holds the configured social login providers by name.
type Providers struct {
	byName map[string]*Provider
}

// NewProviders builds a provider for every entry in creds with a client ID.
// callbackBaseURL is joined with /api/users/auth/{provider}/redirect.
func NewProviders(creds map[string]Credentials, callbackBaseURL string) *Providers {
	ps := &Providers{byName: make(map[string]*Provider)}
	base := strings.TrimRight(callbackBaseURL, "/")

	for name, c := range creds {
		if c.ClientID == "" {
			continue
		}
		callback := base + "/api/users/auth/" + name + "/redirect"

		var p *Provider
		switch name {
		case ProviderGoogle:
			p = newGoogleProvider(c, callback)
		case ProviderFacebook:
			p = newFacebookProvider(c, callback)
		case ProviderGitHub:
			p = newGitHubProvider(c, callback)
		default:
			continue
		}
		ps.byName[name] = p
	}
	return ps
}

// Get returns the named provider or ErrUnknownProvider.
func (ps *Providers) Get(name string) (*Provider, error) {
	p, ok := ps.byName[name]
	if !ok {
		return nil, ErrUnknownProvider
	}
	return p, nil
}

// Register adds or replaces a provider. Tests use it to point a provider at
// an httptest server.
func (ps *Providers) Register(p *Provider) {
	ps.byName[p.name] = p
}

// =========================================================================
// GOOGLE
// =========================================================================

type googleUser struct {
	Sub        string `json:"sub"`
	Email      string `json:"email"`
	GivenName  string `json:"given_name"`
	FamilyName string `json:"family_name"`
	Picture    string `json:"picture"`
}

func newGoogleProvider(c Credentials, callback string) *Provider {
	return &Provider{
		name: ProviderGoogle,
		config: &oauth2.Config{
			ClientID:     c.ClientID,
			ClientSecret: c.ClientSecret,
			RedirectURL:  callback,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     google.Endpoint,
		},
		profileURL: "https://www.googleapis.com/oauth2/v3/userinfo",
		decode:     decodeGoogle,
	}
}

func decodeGoogle(_ context.Context, _ *http.Client, body []byte) (*SocialProfile, error) {
	var u googleUser
	if err := json.Unmarshal(body, &u); err != nil {
		return nil, err
	}
	if u.Sub == "" {
		return nil, errors.New("missing subject")
	}
	return &SocialProfile{
		ProviderID: u.Sub,
		Email:      u.Email,
		FirstName:  u.GivenName,
		LastName:   u.FamilyName,
		AvatarURL:  u.Picture,
	}, nil
}

// =========================================================================
// FACEBOOK
// =========================================================================

type facebookUser struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Picture   struct {
		Data struct {
			URL string `json:"url"`
		} `json:"data"`
	} `json:"picture"`
}

func newFacebookProvider(c Credentials, callback string) *Provider {
	return &Provider{
		name: ProviderFacebook,
		config: &oauth2.Config{
			ClientID:     c.ClientID,
			ClientSecret: c.ClientSecret,
			RedirectURL:  callback,
			Scopes:       []string{"email", "public_profile"},
			Endpoint:     facebook.Endpoint,
		},
		profileURL: "https://graph.facebook.com/me?fields=id,email,first_name,last_name,picture.type(large)",
		decode:     decodeFacebook,
	}
}

func decodeFacebook(_ context.Context, _ *http.Client, body []byte) (*SocialProfile, error) {
	var u facebookUser
	if err := json.Unmarshal(body, &u); err != nil {
		return nil, err
	}
	if u.ID == "" {
		return nil, errors.New("missing id")
	}
	return &SocialProfile{
		ProviderID: u.ID,
		Email:      u.Email,
		FirstName:  u.FirstName,
		LastName:   u.LastName,
		AvatarURL:  u.Picture.Data.URL,
	}, nil
}

// =========================================================================
// GITHUB
// =========================================================================

// githubUser is the portion of the GitHub /user response we care about.
type githubUser struct {
	ID        int64  `json:"id"`
	Login     string `json:"login"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatar_url"`
}

type githubEmail struct {
	Email    string `json:"email"`
	Primary  bool   `json:"primary"`
	Verified bool   `json:"verified"`
}

const githubAPI = "https://api.github.com"

func newGitHubProvider(c Credentials, callback string) *Provider {
	return &Provider{
		name: ProviderGitHub,
		config: &oauth2.Config{
			ClientID:     c.ClientID,
			ClientSecret: c.ClientSecret,
			RedirectURL:  callback,
			Scopes:       []string{"read:user", "user:email"},
			Endpoint:     github.Endpoint,
		},
		profileURL: githubAPI + "/user",
		decode:     decodeGitHub(githubAPI + "/user/emails"),
	}
}

// decodeGitHub reads /user and, when the public email is hidden, falls back
// to the primary verified address from emailsURL.
func decodeGitHub(emailsURL string) func(context.Context, *http.Client, []byte) (*SocialProfile, error) {
	return func(ctx context.Context, client *http.Client, body []byte) (*SocialProfile, error) {
		var u githubUser
		if err := json.Unmarshal(body, &u); err != nil {
			return nil, err
		}
		if u.ID == 0 {
			return nil, errors.New("invalid user (ID = 0)")
		}

		email := u.Email
		if email == "" {
			raw, err := getJSON(ctx, client, emailsURL)
			if err != nil {
				return nil, err
			}
			var emails []githubEmail
			if err := json.Unmarshal(raw, &emails); err != nil {
				return nil, err
			}
			for _, e := range emails {
				if e.Primary && e.Verified {
					email = e.Email
					break
				}
			}
		}

		first, last, _ := strings.Cut(strings.TrimSpace(u.Name), " ")
		return &SocialProfile{
			ProviderID: strconv.FormatInt(u.ID, 10),
			Email:      email,
			Username:   u.Login,
			FirstName:  first,
			LastName:   strings.TrimSpace(last),
			AvatarURL:  u.AvatarURL,
		}, nil
	}
}

func getJSON(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s returned status %d", url, resp.StatusCode)
	}

	var raw json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, err
	}
	return raw, nil
}
