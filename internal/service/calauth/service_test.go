package calauth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classtrackapp/classtrack/internal/logger"
	"github.com/classtrackapp/classtrack/internal/models"
)

type memTokenRepo struct {
	mu   sync.Mutex
	sets map[uuid.UUID]models.OAuthTokenSet
}

func newMemTokenRepo() *memTokenRepo {
	return &memTokenRepo{sets: make(map[uuid.UUID]models.OAuthTokenSet)}
}

func (r *memTokenRepo) Save(ctx context.Context, userID uuid.UUID, set models.OAuthTokenSet) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sets[userID] = set
	return nil
}

func (r *memTokenRepo) Get(ctx context.Context, userID uuid.UUID) (*models.OAuthTokenSet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.sets[userID]
	if !ok {
		return nil, nil
	}
	return &set, nil
}

func (r *memTokenRepo) Delete(ctx context.Context, userID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sets, userID)
	return nil
}

// tokenEndpointStub is a stand-in provider token endpoint. It records every
// hit and the last form it saw.
type tokenEndpointStub struct {
	mu       sync.Mutex
	hits     int
	lastForm map[string]string

	status int
	body   map[string]any
}

func (s *tokenEndpointStub) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()

		s.mu.Lock()
		s.hits++
		s.lastForm = map[string]string{}
		for key := range r.PostForm {
			s.lastForm[key] = r.PostForm.Get(key)
		}
		status := s.status
		body := s.body
		s.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}
}

func (s *tokenEndpointStub) hitCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits
}

func (s *tokenEndpointStub) form(key string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastForm[key]
}

func newStubService(t *testing.T, stub *tokenEndpointStub, tokens *memTokenRepo) *Service {
	t.Helper()

	server := httptest.NewServer(stub.handler())
	t.Cleanup(server.Close)

	s, err := NewService(Config{
		ClientID:    "client-id",
		AuthURL:     server.URL + "/auth",
		TokenURL:    server.URL + "/token",
		RedirectURL: "http://localhost/callback",
		Scopes:      []string{"calendar.read"},
	}, tokens, logger.NewNoOpLogger())
	require.NoError(t, err)

	return s
}

func Test_AuthCodeURL(t *testing.T) {
	t.Parallel()

	s := newStubService(t, &tokenEndpointStub{status: http.StatusOK}, newMemTokenRepo())

	link := s.AuthCodeURL("state-1")

	assert.NotEmpty(t, link.Verifier)
	assert.Contains(t, link.URL, "state=state-1")
	assert.Contains(t, link.URL, "code_challenge=")
	assert.Contains(t, link.URL, "code_challenge_method=S256")
	assert.NotContains(t, link.URL, link.Verifier, "verifier must never leave the client")

	second := s.AuthCodeURL("state-1")
	assert.NotEqual(t, link.Verifier, second.Verifier, "verifier is one-time")
}

func Test_ExchangeCode(t *testing.T) {
	t.Parallel()

	userID := uuid.New()

	t.Run("stores server-asserted expiry", func(t *testing.T) {
		stub := &tokenEndpointStub{
			status: http.StatusOK,
			body: map[string]any{
				"access_token":  "at-1",
				"refresh_token": "rt-1",
				"token_type":    "Bearer",
				"expires_in":    3600,
				"scope":         "calendar.read",
			},
		}
		tokens := newMemTokenRepo()
		s := newStubService(t, stub, tokens)

		before := time.Now()
		set, err := s.ExchangeCode(t.Context(), userID, "code-1", "verifier-1")

		require.NoError(t, err)
		assert.Equal(t, "at-1", set.AccessToken)
		assert.Equal(t, "rt-1", set.RefreshToken)
		assert.Equal(t, "calendar.read", set.Scope)
		assert.WithinDuration(t, before.Add(time.Hour), set.ExpiresAt, 5*time.Second)

		assert.Equal(t, "code-1", stub.form("code"))
		assert.Equal(t, "verifier-1", stub.form("code_verifier"))

		stored, err := tokens.Get(t.Context(), userID)
		require.NoError(t, err)
		require.NotNil(t, stored)
		assert.Equal(t, set, *stored, "stored set equals the returned one")
	})

	t.Run("missing expires_in keeps zero expiry", func(t *testing.T) {
		stub := &tokenEndpointStub{
			status: http.StatusOK,
			body: map[string]any{
				"access_token": "at-1",
				"token_type":   "Bearer",
			},
		}
		s := newStubService(t, stub, newMemTokenRepo())

		set, err := s.ExchangeCode(t.Context(), userID, "code-1", "verifier-1")

		require.NoError(t, err)
		assert.True(t, set.ExpiresAt.IsZero(), "expiry is never estimated client-side")
	})

	t.Run("rejected code maps to invalid grant", func(t *testing.T) {
		stub := &tokenEndpointStub{
			status: http.StatusBadRequest,
			body:   map[string]any{"error": "invalid_grant"},
		}
		tokens := newMemTokenRepo()
		s := newStubService(t, stub, tokens)

		_, err := s.ExchangeCode(t.Context(), userID, "used-code", "verifier-1")

		require.Error(t, err)
		var authErr *Error
		require.ErrorAs(t, err, &authErr)
		assert.Equal(t, CodeInvalidGrant, authErr.Code)

		stored, err := tokens.Get(t.Context(), userID)
		require.NoError(t, err)
		assert.Nil(t, stored, "nothing stored on failed exchange")
	})

	t.Run("provider 5xx maps to network error", func(t *testing.T) {
		stub := &tokenEndpointStub{status: http.StatusBadGateway, body: map[string]any{}}
		s := newStubService(t, stub, newMemTokenRepo())

		_, err := s.ExchangeCode(t.Context(), userID, "code-1", "verifier-1")

		require.Error(t, err)
		var authErr *Error
		require.ErrorAs(t, err, &authErr)
		assert.Equal(t, CodeNetwork, authErr.Code)
	})
}

func Test_EnsureFresh(t *testing.T) {
	t.Parallel()

	userID := uuid.New()

	t.Run("fresh token returned unchanged with zero network calls", func(t *testing.T) {
		stub := &tokenEndpointStub{status: http.StatusOK}
		s := newStubService(t, stub, newMemTokenRepo())

		set := models.OAuthTokenSet{
			AccessToken:  "at-1",
			RefreshToken: "rt-1",
			ExpiresAt:    time.Now().Add(time.Hour),
		}

		got, err := s.EnsureFresh(t.Context(), userID, set)

		require.NoError(t, err)
		assert.Equal(t, set, got)
		assert.Equal(t, 0, stub.hitCount())
	})

	t.Run("token inside safety margin is refreshed", func(t *testing.T) {
		stub := &tokenEndpointStub{
			status: http.StatusOK,
			body: map[string]any{
				"access_token": "at-2",
				"token_type":   "Bearer",
				"expires_in":   3600,
			},
		}
		tokens := newMemTokenRepo()
		s := newStubService(t, stub, tokens)

		set := models.OAuthTokenSet{
			AccessToken:  "at-1",
			RefreshToken: "rt-1",
			ExpiresAt:    time.Now().Add(30 * time.Second), // inside the 60s margin
			Scope:        "calendar.read",
		}

		got, err := s.EnsureFresh(t.Context(), userID, set)

		require.NoError(t, err)
		assert.Equal(t, 1, stub.hitCount())
		assert.Equal(t, "at-2", got.AccessToken)
		assert.Equal(t, "rt-1", got.RefreshToken, "old refresh token carried forward")
		assert.Equal(t, "calendar.read", got.Scope, "scope carried forward")
		assert.Equal(t, "refresh_token", stub.form("grant_type"))

		stored, err := tokens.Get(t.Context(), userID)
		require.NoError(t, err)
		require.NotNil(t, stored)
		assert.Equal(t, got, *stored)
	})

	t.Run("zero expiry is treated as stale", func(t *testing.T) {
		stub := &tokenEndpointStub{
			status: http.StatusOK,
			body: map[string]any{
				"access_token": "at-2",
				"token_type":   "Bearer",
				"expires_in":   3600,
			},
		}
		s := newStubService(t, stub, newMemTokenRepo())

		_, err := s.EnsureFresh(t.Context(), userID, models.OAuthTokenSet{AccessToken: "at-1", RefreshToken: "rt-1"})

		require.NoError(t, err)
		assert.Equal(t, 1, stub.hitCount())
	})

	t.Run("no refresh token means reauth", func(t *testing.T) {
		stub := &tokenEndpointStub{status: http.StatusOK}
		s := newStubService(t, stub, newMemTokenRepo())

		_, err := s.EnsureFresh(t.Context(), userID, models.OAuthTokenSet{AccessToken: "at-1"})

		require.Error(t, err)
		var authErr *Error
		require.ErrorAs(t, err, &authErr)
		assert.Equal(t, CodeReauthRequired, authErr.Code)
		assert.Equal(t, 0, stub.hitCount())
	})

	t.Run("rejected refresh token means reauth", func(t *testing.T) {
		stub := &tokenEndpointStub{
			status: http.StatusBadRequest,
			body:   map[string]any{"error": "invalid_grant"},
		}
		s := newStubService(t, stub, newMemTokenRepo())

		_, err := s.EnsureFresh(t.Context(), userID, models.OAuthTokenSet{AccessToken: "at-1", RefreshToken: "revoked"})

		require.Error(t, err)
		var authErr *Error
		require.ErrorAs(t, err, &authErr)
		assert.Equal(t, CodeReauthRequired, authErr.Code)
	})
}

func Test_Unlink(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	tokens := newMemTokenRepo()
	require.NoError(t, tokens.Save(t.Context(), userID, models.OAuthTokenSet{AccessToken: "at-1"}))

	s := newStubService(t, &tokenEndpointStub{status: http.StatusOK}, tokens)

	require.NoError(t, s.Unlink(t.Context(), userID))

	stored, err := tokens.Get(t.Context(), userID)
	require.NoError(t, err)
	assert.Nil(t, stored)
}
