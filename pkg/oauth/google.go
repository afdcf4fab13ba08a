package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/beam-cloud/gmail2tg/pkg/types"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
)

// GmailScopes lets the relay read messages and change their labels
var GmailScopes = []string{gmail.GmailModifyScope}

// GoogleClient wraps the OAuth client described by credentials.json
type GoogleClient struct {
	config          *oauth2.Config
	credentialsPath string
}

// ResolvePath returns the first candidate that exists on disk
func ResolvePath(candidates []string) (string, error) {
	for _, path := range candidates {
		if path == "" {
			continue
		}
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("none of %s exist", strings.Join(candidates, ", "))
}

// NewGoogleClient loads the first existing OAuth client file. Both the
// "installed" and "web" client shapes are accepted.
func NewGoogleClient(credentialsPaths []string) (*GoogleClient, error) {
	path, err := ResolvePath(credentialsPaths)
	if err != nil {
		return nil, &types.ErrStartup{Reason: "no credentials.json", Err: err}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &types.ErrStartup{Reason: "unable to read client secret file", Err: err}
	}

	cfg, err := google.ConfigFromJSON(data, GmailScopes...)
	if err != nil {
		return nil, &types.ErrStartup{Reason: "unable to parse client secret file " + path, Err: err}
	}

	return &GoogleClient{config: cfg, credentialsPath: path}, nil
}

func (g *GoogleClient) CredentialsPath() string {
	return g.credentialsPath
}

// AuthorizeURL generates the consent URL for the Gmail scopes
func (g *GoogleClient) AuthorizeURL(state string) string {
	// Always prompt so Google hands out a refresh token even on re-authorization
	return g.config.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"),
	)
}

// Exchange trades an authorization code for a token. input may be the bare
// code or the full redirect URL the browser landed on.
func (g *GoogleClient) Exchange(ctx context.Context, input, state string) (*oauth2.Token, error) {
	code, err := ParseAuthCode(input, state)
	if err != nil {
		return nil, err
	}

	token, err := g.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchange failed: %w", err)
	}
	return token, nil
}

// Client returns an HTTP client that refreshes token as needed
func (g *GoogleClient) Client(ctx context.Context, token *oauth2.Token) *http.Client {
	return oauth2.NewClient(ctx, g.config.TokenSource(ctx, token))
}

// ParseAuthCode extracts the code from a pasted redirect URL, checking state
// when the URL carries one.
func ParseAuthCode(input, state string) (string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", errors.New("empty authorization code")
	}
	if !strings.Contains(input, "code=") {
		return input, nil
	}

	raw := input
	if i := strings.Index(input, "?"); i >= 0 {
		raw = input[i+1:]
	}
	values, err := url.ParseQuery(raw)
	if err != nil {
		return "", fmt.Errorf("parse redirect url: %w", err)
	}

	if got := values.Get("state"); got != "" && state != "" && got != state {
		return "", errors.New("state mismatch in redirect url")
	}
	code := values.Get("code")
	if code == "" {
		return "", errors.New("redirect url has no code")
	}
	return code, nil
}

// tokenFile is the on-disk token. expiry_date (epoch ms) is read too so that
// token files written by other Google client libraries keep refreshing.
type tokenFile struct {
	AccessToken  string     `json:"access_token"`
	TokenType    string     `json:"token_type,omitempty"`
	RefreshToken string     `json:"refresh_token,omitempty"`
	Scope        string     `json:"scope,omitempty"`
	Expiry       *time.Time `json:"expiry,omitempty"`
	ExpiryDate   int64      `json:"expiry_date,omitempty"`
}

// LoadToken reads the first existing token file
func LoadToken(candidates []string) (*oauth2.Token, string, error) {
	path, err := ResolvePath(candidates)
	if err != nil {
		return nil, "", &types.ErrStartup{Reason: "no token.json, run 'gmail2tg auth'", Err: err}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", &types.ErrStartup{Reason: "unable to read token file", Err: err}
	}

	var tf tokenFile
	if err := json.Unmarshal(data, &tf); err != nil {
		return nil, "", &types.ErrStartup{Reason: "unable to parse token file " + path, Err: err}
	}
	if tf.AccessToken == "" && tf.RefreshToken == "" {
		return nil, "", &types.ErrStartup{Reason: "token file " + path + " has no access or refresh token"}
	}

	token := &oauth2.Token{
		AccessToken:  tf.AccessToken,
		TokenType:    tf.TokenType,
		RefreshToken: tf.RefreshToken,
	}
	switch {
	case tf.Expiry != nil:
		token.Expiry = *tf.Expiry
	case tf.ExpiryDate > 0:
		token.Expiry = time.UnixMilli(tf.ExpiryDate)
	case tf.RefreshToken != "":
		// Unknown expiry, force a refresh on first use
		token.Expiry = time.Unix(1, 0)
	}

	return token, path, nil
}

// SaveToken writes token to path, readable only by the owner
func SaveToken(path string, token *oauth2.Token) error {
	tf := tokenFile{
		AccessToken:  token.AccessToken,
		TokenType:    token.TokenType,
		RefreshToken: token.RefreshToken,
	}
	if scope, ok := token.Extra("scope").(string); ok {
		tf.Scope = scope
	}
	if !token.Expiry.IsZero() {
		expiry := token.Expiry
		tf.Expiry = &expiry
		tf.ExpiryDate = expiry.UnixMilli()
	}

	data, err := json.MarshalIndent(tf, "", "  ")
	if err != nil {
		return err
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("unable to save oauth token: %w", err)
	}
	// WriteFile keeps the mode of an existing file
	if err := os.Chmod(path, 0o600); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// NewAuthorizedClient builds the Gmail HTTP client from the configured
// credential and token locations. Any failure here is fatal at startup.
func NewAuthorizedClient(ctx context.Context, cfg types.GmailConfig) (*http.Client, error) {
	gc, err := NewGoogleClient(cfg.CredentialsPaths)
	if err != nil {
		return nil, err
	}

	token, _, err := LoadToken(cfg.TokenPaths)
	if err != nil {
		return nil, err
	}

	return gc.Client(ctx, token), nil
}
