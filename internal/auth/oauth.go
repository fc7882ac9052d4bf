package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
	"golang.org/x/oauth2/github"
)

// Identity is the provider-neutral profile returned after a successful
// OAuth exchange. (Provider, ProviderID) identifies the account.
type Identity struct {
	Provider   string
	ProviderID string
	Login      string
	Email      string
	AvatarURL  string
}

// Provider is an OAuth identity provider.
type Provider interface {
	Name() string
	AuthURL(state string) string
	Exchange(ctx context.Context, code string) (*Identity, error)
}

// ProfileDecoder turns a provider's user-info response body into an Identity.
type ProfileDecoder func(body []byte) (*Identity, error)

// ProviderConfig describes an Authorization Code provider.
type ProviderConfig struct {
	Name         string
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string
	Endpoint     oauth2.Endpoint
	UserInfoURL  string
	Decode       ProfileDecoder
}

// OAuthProvider implements Provider on top of golang.org/x/oauth2.
type OAuthProvider struct {
	name        string
	config      *oauth2.Config
	userInfoURL string
	decode      ProfileDecoder
}

var _ Provider = (*OAuthProvider)(nil)

func NewProvider(cfg ProviderConfig) *OAuthProvider {
	return &OAuthProvider{
		name: cfg.Name,
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       cfg.Scopes,
			Endpoint:     cfg.Endpoint,
		},
		userInfoURL: cfg.UserInfoURL,
		decode:      cfg.Decode,
	}
}

// NewGitHubProvider registers at https://github.com/settings/developers.
// callbackURL must match the app's "Authorization callback URL" exactly.
func NewGitHubProvider(clientID, clientSecret, callbackURL string) *OAuthProvider {
	return NewProvider(ProviderConfig{
		Name:         "github",
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  callbackURL,
		Scopes:       []string{"read:user", "user:email"},
		Endpoint:     github.Endpoint,
		UserInfoURL:  "https://api.github.com/user",
		Decode:       decodeGitHub,
	})
}

func NewGoogleProvider(clientID, clientSecret, callbackURL string) *OAuthProvider {
	return NewProvider(ProviderConfig{
		Name:         "google",
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  callbackURL,
		Scopes:       []string{"openid", "email", "profile"},
		Endpoint:     endpoints.Google,
		UserInfoURL:  "https://openidconnect.googleapis.com/v1/userinfo",
		Decode:       decodeGoogle,
	})
}

// discordEndpoint is not among the x/oauth2 presets.
var discordEndpoint = oauth2.Endpoint{
	AuthURL:   "https://discord.com/oauth2/authorize",
	TokenURL:  "https://discord.com/api/oauth2/token",
	AuthStyle: oauth2.AuthStyleInParams,
}

func NewDiscordProvider(clientID, clientSecret, callbackURL string) *OAuthProvider {
	return NewProvider(ProviderConfig{
		Name:         "discord",
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  callbackURL,
		Scopes:       []string{"identify", "email"},
		Endpoint:     discordEndpoint,
		UserInfoURL:  "https://discord.com/api/users/@me",
		Decode:       decodeDiscord,
	})
}

func (p *OAuthProvider) Name() string {
	return p.name
}

// AuthURL returns the consent-page URL. state is echoed back on the callback
// and checked against the state cookie to stop login CSRF.
func (p *OAuthProvider) AuthURL(state string) string {
	return p.config.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// Exchange trades the authorization code for an access token server-side and
// fetches the user's profile with it.
func (p *OAuthProvider) Exchange(ctx context.Context, code string) (*Identity, error) {
	oauthToken, err := p.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("auth: exchanging %s OAuth code: %w", p.name, err)
	}

	client := p.config.Client(ctx, oauthToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.userInfoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("auth: building %s profile request: %w", p.name, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("auth: calling %s profile API: %w", p.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("auth: %s profile API returned status %d", p.name, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("auth: reading %s profile: %w", p.name, err)
	}

	id, err := p.decode(body)
	if err != nil {
		return nil, fmt.Errorf("auth: decoding %s profile: %w", p.name, err)
	}
	if id.ProviderID == "" {
		return nil, fmt.Errorf("auth: %s returned a profile without an id", p.name)
	}
	id.Provider = p.name
	return id, nil
}

var errNoID = errors.New("profile has no id")

func decodeGitHub(body []byte) (*Identity, error) {
	var u struct {
		ID        int64  `json:"id"`
		Login     string `json:"login"`
		Email     string `json:"email"`
		AvatarURL string `json:"avatar_url"`
	}
	if err := json.Unmarshal(body, &u); err != nil {
		return nil, err
	}
	if u.ID == 0 {
		return nil, errNoID
	}
	return &Identity{
		ProviderID: strconv.FormatInt(u.ID, 10),
		Login:      u.Login,
		Email:      u.Email,
		AvatarURL:  u.AvatarURL,
	}, nil
}

func decodeGoogle(body []byte) (*Identity, error) {
	var u struct {
		Sub     string `json:"sub"`
		Name    string `json:"name"`
		Email   string `json:"email"`
		Picture string `json:"picture"`
	}
	if err := json.Unmarshal(body, &u); err != nil {
		return nil, err
	}
	if u.Sub == "" {
		return nil, errNoID
	}
	login := u.Name
	if login == "" {
		login = u.Email
	}
	return &Identity{
		ProviderID: u.Sub,
		Login:      login,
		Email:      u.Email,
		AvatarURL:  u.Picture,
	}, nil
}

func decodeDiscord(body []byte) (*Identity, error) {
	var u struct {
		ID       string `json:"id"`
		Username string `json:"username"`
		Email    string `json:"email"`
		Avatar   string `json:"avatar"`
	}
	if err := json.Unmarshal(body, &u); err != nil {
		return nil, err
	}
	if u.ID == "" {
		return nil, errNoID
	}
	id := &Identity{
		ProviderID: u.ID,
		Login:      u.Username,
		Email:      u.Email,
	}
	if u.Avatar != "" {
		id.AvatarURL = fmt.Sprintf("https://cdn.discordapp.com/avatars/%s/%s.png", u.ID, u.Avatar)
	}
	return id, nil
}
