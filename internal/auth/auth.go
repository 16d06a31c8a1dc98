// Package auth exchanges client credentials for a bearer token against the
// Azure AD v2.0 token endpoint.
package auth

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// DefaultTimeout bounds the token request.
const DefaultTimeout = 30 * time.Second

// Credentials identify the confidential client. They are supplied externally
// and never persisted; the caller must not log them.
type Credentials struct {
	ClientID     string
	ClientSecret string
}

// Authenticator performs the client-credentials grant.
//
// The zero value is not usable; construct with New. Each Token call
// re-authenticates; tokens are not cached across runs, matching the
// one-shot nature of the scheduled job.
type Authenticator struct {
	TokenURL  string
	Scope     string
	UserAgent string

	// HTTPClient is a seam for tests. When nil, a client with DefaultTimeout
	// is used.
	HTTPClient *http.Client
}

// New returns an Authenticator for the given token endpoint and scope.
func New(tokenURL, scope, userAgent string) *Authenticator {
	return &Authenticator{
		TokenURL:  tokenURL,
		Scope:     scope,
		UserAgent: userAgent,
	}
}

// Token obtains a bearer token for creds.
//
// Behavior:
//   - Missing client id or secret fails immediately; no network call is made.
//   - The grant is sent form-encoded with client_id, client_secret, scope and
//     grant_type=client_credentials in the body (AuthStyleInParams), the way
//     the identity provider expects it.
//   - A non-success response, or a success response without an access_token
//     field, is an error.
//
// The returned token is held in memory only; callers must not log it.
func (a *Authenticator) Token(ctx context.Context, creds Credentials) (string, error) {
	if creds.ClientID == "" || creds.ClientSecret == "" {
		return "", fmt.Errorf("client id and client secret must be set")
	}
	if a.TokenURL == "" {
		return "", fmt.Errorf("token endpoint must be set")
	}

	hc := a.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: DefaultTimeout}
	}
	// oauth2 picks its HTTP client up from the context.
	ctx = context.WithValue(ctx, oauth2.HTTPClient, &http.Client{
		Timeout:   hc.Timeout,
		Transport: &headerTransport{base: hc.Transport, userAgent: a.UserAgent},
	})

	cfg := clientcredentials.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		TokenURL:     a.TokenURL,
		Scopes:       []string{a.Scope},
		AuthStyle:    oauth2.AuthStyleInParams,
	}

	tok, err := cfg.Token(ctx)
	if err != nil {
		return "", fmt.Errorf("request token: %w", err)
	}
	if tok.AccessToken == "" {
		return "", fmt.Errorf("token response has no access_token")
	}
	return tok.AccessToken, nil
}

// headerTransport stamps the fixed user-agent and accept headers onto every
// outbound request.
type headerTransport struct {
	base      http.RoundTripper
	userAgent string
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	// RoundTrippers must not mutate the original request.
	clone := req.Clone(req.Context())
	if t.userAgent != "" {
		clone.Header.Set("User-Agent", t.userAgent)
	}
	clone.Header.Set("Accept", "*/*")

	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	return base.RoundTrip(clone)
}
