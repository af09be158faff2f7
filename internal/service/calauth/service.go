package calauth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/classtrackapp/classtrack/internal/logger"
	"github.com/classtrackapp/classtrack/internal/models"
	"github.com/classtrackapp/classtrack/internal/repository"
)

const (
	// Provider rejected the authorization code: expired, reused or
	// verifier mismatch. Not retryable, user has to restart the link flow
	CodeInvalidGrant = "invalid_grant"

	// No usable refresh token, or the provider rejected it.
	// The caller should drop to the unlinked state and prompt re-auth
	CodeReauthRequired = "reauth_required"

	// Transport-level failure, retryable by the caller
	CodeNetwork = "network"
)

// Margin before the asserted expiry at which a token still counts as fresh.
// Refreshing earlier than needed just burns provider rate limits.
const defaultExpiryMargin = 60 * time.Second

type Error struct {
	Code string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("code: %s, error: %v", e.Code, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(code string, err error) *Error {
	return &Error{Code: code, Err: err}
}

type Config struct {
	ClientID     string
	ClientSecret string
	AuthURL      string
	TokenURL     string
	RedirectURL  string
	Scopes       []string

	// Defaults to 60s if zero
	ExpiryMargin time.Duration
}

// Service drives the PKCE code exchange and token refresh lifecycle for the
// linked external calendar account. Accepted token sets are persisted through
// the token repository, last writer wins.
type Service struct {
	oauth  *oauth2.Config
	margin time.Duration
	tokens repository.TokenRepo
	logger logger.Logger

	// Injected in tests to pin the clock
	now func() time.Time
}

func NewService(cfg Config, tokens repository.TokenRepo, logger logger.Logger) (*Service, error) {
	if cfg.ClientID == "" || cfg.AuthURL == "" || cfg.TokenURL == "" {
		return nil, errors.New("client id, auth url and token url must be set")
	}
	if tokens == nil {
		return nil, errors.New("token repo must not be nil")
	}

	margin := cfg.ExpiryMargin
	if margin == 0 {
		margin = defaultExpiryMargin
	}

	return &Service{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       cfg.Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:  cfg.AuthURL,
				TokenURL: cfg.TokenURL,
			},
		},
		margin: margin,
		tokens: tokens,
		logger: logger,
		now:    time.Now,
	}, nil
}

// AuthCodeLink pairs the provider authorization URL with the one-time PKCE
// verifier bound to it. The verifier must be held in short-lived single-use
// session storage until the callback, consumed there, and never logged.
type AuthCodeLink struct {
	URL      string
	Verifier string
}

func (s *Service) AuthCodeURL(state string) AuthCodeLink {
	verifier := oauth2.GenerateVerifier()
	url := s.oauth.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.S256ChallengeOption(verifier),
	)

	return AuthCodeLink{URL: url, Verifier: verifier}
}

// ExchangeCode swaps the authorization code for a token set and persists it.
// A persistence failure is surfaced, not swallowed: a lost refresh token
// means the user has to authenticate again.
func (s *Service) ExchangeCode(ctx context.Context, userID uuid.UUID, code string, verifier string) (models.OAuthTokenSet, error) {
	tok, err := s.oauth.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return models.OAuthTokenSet{}, mapTokenEndpointError(err, CodeInvalidGrant)
	}

	set := tokenSetFromOAuth(tok)
	if err := s.tokens.Save(ctx, userID, set); err != nil {
		return models.OAuthTokenSet{}, fmt.Errorf("failed to persist token set: %w", err)
	}

	s.logger.Info("calendar account linked", "user_id", userID, "scope", set.Scope)
	return set, nil
}

// EnsureFresh returns the set unchanged, without any network call, while it
// has more than the safety margin left before expiry. Otherwise it refreshes.
func (s *Service) EnsureFresh(ctx context.Context, userID uuid.UUID, set models.OAuthTokenSet) (models.OAuthTokenSet, error) {
	if set.FreshAt(s.now(), s.margin) {
		return set, nil
	}

	return s.Refresh(ctx, userID, set)
}

// Refresh unconditionally swaps the token set for a fresh one using the
// stored refresh token.
func (s *Service) Refresh(ctx context.Context, userID uuid.UUID, set models.OAuthTokenSet) (models.OAuthTokenSet, error) {
	if set.RefreshToken == "" {
		return set, newError(CodeReauthRequired, errors.New("no refresh token stored"))
	}

	src := s.oauth.TokenSource(ctx, &oauth2.Token{RefreshToken: set.RefreshToken})
	tok, err := src.Token()
	if err != nil {
		return set, mapTokenEndpointError(err, CodeReauthRequired)
	}

	fresh := tokenSetFromOAuth(tok)
	if fresh.RefreshToken == "" {
		// Providers may rotate the refresh token or keep it; carry the
		// old one forward when none came back
		fresh.RefreshToken = set.RefreshToken
	}
	if fresh.Scope == "" {
		fresh.Scope = set.Scope
	}

	if err := s.tokens.Save(ctx, userID, fresh); err != nil {
		return set, fmt.Errorf("failed to persist refreshed token set: %w", err)
	}

	s.logger.Debug("calendar access token refreshed", "user_id", userID)
	return fresh, nil
}

// Unlink deletes the stored token set
func (s *Service) Unlink(ctx context.Context, userID uuid.UUID) error {
	return s.tokens.Delete(ctx, userID)
}

// mapTokenEndpointError translates an oauth2 error into our taxonomy.
// rejectedCode is used when the provider itself refused the grant: during
// exchange that means the code is bad, during refresh that re-auth is needed.
func mapTokenEndpointError(err error, rejectedCode string) error {
	var rerr *oauth2.RetrieveError
	if errors.As(err, &rerr) {
		if rerr.Response != nil && rerr.Response.StatusCode >= http.StatusInternalServerError {
			return newError(CodeNetwork, err)
		}
		return newError(rejectedCode, err)
	}

	return newError(CodeNetwork, err)
}

// The oauth2 lib only sets Expiry when the server asserted 'expires_in', so
// a zero Expiry flows through as a zero ExpiresAt (always treated as stale)
// rather than some client-side estimate.
func tokenSetFromOAuth(tok *oauth2.Token) models.OAuthTokenSet {
	scope, _ := tok.Extra("scope").(string)

	return models.OAuthTokenSet{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresAt:    tok.Expiry,
		Scope:        scope,
	}
}
