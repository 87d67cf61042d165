package zoho

import (
	"context"
	"net/http"
	"strings"
	"sync"

	"golang.org/x/oauth2"

	companydomain "callflow/backend/internal/company/domain"
)

// OAuthConfig is the Zoho OAuth client registered for the service.
type OAuthConfig struct {
	ClientID     string
	ClientSecret string
	// AccountsURL is the Zoho accounts server, e.g. https://accounts.zoho.com.
	AccountsURL string
}

// TokenSources caches one refreshing token source per company.
type TokenSources struct {
	cfg        *oauth2.Config
	httpClient *http.Client

	mu      sync.Mutex
	sources map[string]cachedSource
}

type cachedSource struct {
	refreshToken string
	source       oauth2.TokenSource
}

// NewTokenSources returns a cache exchanging company refresh tokens at the accounts server.
// httpClient is used for token requests and may be nil.
func NewTokenSources(c OAuthConfig, httpClient *http.Client) *TokenSources {
	return &TokenSources{
		cfg: &oauth2.Config{
			ClientID:     c.ClientID,
			ClientSecret: c.ClientSecret,
			Endpoint: oauth2.Endpoint{
				TokenURL:  strings.TrimRight(c.AccountsURL, "/") + "/oauth/v2/token",
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		httpClient: httpClient,
		sources:    map[string]cachedSource{},
	}
}

// For returns the token source of company. A changed refresh token replaces the cached source.
func (t *TokenSources) For(company *companydomain.Company) (oauth2.TokenSource, error) {
	if company == nil || company.ZohoRefreshToken == "" {
		return nil, companydomain.ErrZohoNotConnected
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if c, ok := t.sources[company.ID]; ok && c.refreshToken == company.ZohoRefreshToken {
		return c.source, nil
	}
	ctx := context.Background()
	if t.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, t.httpClient)
	}
	src := t.cfg.TokenSource(ctx, &oauth2.Token{RefreshToken: company.ZohoRefreshToken})
	t.sources[company.ID] = cachedSource{refreshToken: company.ZohoRefreshToken, source: src}
	return src, nil
}

// transport authorizes requests with the "Zoho-oauthtoken" scheme.
type transport struct {
	source oauth2.TokenSource
	base   http.RoundTripper
}

func (t *transport) RoundTrip(req *http.Request) (*http.Response, error) {
	tok, err := t.source.Token()
	if err != nil {
		return nil, err
	}
	r := req.Clone(req.Context())
	r.Header.Set("Authorization", "Zoho-oauthtoken "+tok.AccessToken)
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	return base.RoundTrip(r)
}

// Provider builds per-company clients.
type Provider struct {
	BaseURL string
	Tokens  *TokenSources
	// Base is the transport under the auth layer; nil uses http.DefaultTransport.
	Base http.RoundTripper
}

// Client returns a client authorized with the company's refresh token.
func (p *Provider) Client(company *companydomain.Company) (*Client, error) {
	src, err := p.Tokens.For(company)
	if err != nil {
		return nil, err
	}
	return NewClient(p.BaseURL, src, p.Base), nil
}
