package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classtrackapp/classtrack/internal/handlers/userctx"
	"github.com/classtrackapp/classtrack/internal/models"
	"github.com/classtrackapp/classtrack/internal/service/calauth"
)

type fakeCalAuth struct {
	exchangeErr      error
	exchangedCode    string
	exchangeVerifier string
	unlinked         bool
}

func (f *fakeCalAuth) AuthCodeURL(state string) calauth.AuthCodeLink {
	return calauth.AuthCodeLink{
		URL:      "https://provider.test/auth?state=" + state,
		Verifier: "verifier-1",
	}
}

func (f *fakeCalAuth) ExchangeCode(ctx context.Context, userID uuid.UUID, code string, verifier string) (models.OAuthTokenSet, error) {
	f.exchangedCode = code
	f.exchangeVerifier = verifier
	if f.exchangeErr != nil {
		return models.OAuthTokenSet{}, f.exchangeErr
	}
	return models.OAuthTokenSet{AccessToken: "at", Scope: "calendar.read"}, nil
}

func (f *fakeCalAuth) Unlink(ctx context.Context, userID uuid.UUID) error {
	f.unlinked = true
	return nil
}

func cookieByName(cookies []*http.Cookie, name string) *http.Cookie {
	for _, c := range cookies {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func doCalendarRequest(t *testing.T, calAuth calAuthService, method string, path string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, nil)
	req = req.WithContext(userctx.WithUser(req.Context(), models.User{ID: uuid.New(), Username: "gopher"}))
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()

	newTestRouter(testRouterServices{calAuth: calAuth}).ServeHTTP(rec, req)
	return rec
}

func Test_CalendarHandler_Link(t *testing.T) {
	t.Parallel()

	rec := doCalendarRequest(t, &fakeCalAuth{}, http.MethodGet, "/api/user/calendar/link")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "https://provider.test/auth")

	cookies := rec.Result().Cookies()
	state := cookieByName(cookies, stateCookieName)
	pkce := cookieByName(cookies, pkceCookieName)

	require.NotNil(t, state)
	require.NotNil(t, pkce)
	assert.NotEmpty(t, state.Value)
	assert.Equal(t, "verifier-1", pkce.Value)
	assert.True(t, state.HttpOnly, "session cookies must not be script-readable")
	assert.True(t, pkce.HttpOnly)
	assert.Equal(t, linkCookieTTL, state.MaxAge)
	assert.Contains(t, rec.Body.String(), "state="+state.Value, "state in url matches the cookie")
}

func Test_CalendarHandler_Callback(t *testing.T) {
	t.Parallel()

	stateCookie := &http.Cookie{Name: stateCookieName, Value: "state-1"}
	pkceCookie := &http.Cookie{Name: pkceCookieName, Value: "verifier-1"}

	t.Run("links account and clears cookies", func(t *testing.T) {
		calAuth := &fakeCalAuth{}

		rec := doCalendarRequest(t, calAuth, http.MethodGet, "/api/user/calendar/callback?state=state-1&code=code-1", stateCookie, pkceCookie)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"linked":true, "scope":"calendar.read"}`, rec.Body.String())
		assert.Equal(t, "code-1", calAuth.exchangedCode)
		assert.Equal(t, "verifier-1", calAuth.exchangeVerifier)

		cookies := rec.Result().Cookies()
		for _, name := range []string{stateCookieName, pkceCookieName} {
			cleared := cookieByName(cookies, name)
			require.NotNil(t, cleared, "cookie %s must be cleared", name)
			assert.Empty(t, cleared.Value)
			assert.Negative(t, cleared.MaxAge)
		}
	})

	t.Run("cookies cleared even when exchange fails", func(t *testing.T) {
		calAuth := &fakeCalAuth{exchangeErr: &calauth.Error{Code: calauth.CodeInvalidGrant}}

		rec := doCalendarRequest(t, calAuth, http.MethodGet, "/api/user/calendar/callback?state=state-1&code=code-1", stateCookie, pkceCookie)

		require.Equal(t, http.StatusBadRequest, rec.Code)
		cleared := cookieByName(rec.Result().Cookies(), pkceCookieName)
		require.NotNil(t, cleared)
		assert.Negative(t, cleared.MaxAge, "verifier is single-use")
	})

	t.Run("state mismatch rejected", func(t *testing.T) {
		rec := doCalendarRequest(t, &fakeCalAuth{}, http.MethodGet, "/api/user/calendar/callback?state=evil&code=code-1", stateCookie, pkceCookie)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("missing cookies rejected", func(t *testing.T) {
		rec := doCalendarRequest(t, &fakeCalAuth{}, http.MethodGet, "/api/user/calendar/callback?state=state-1&code=code-1")

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("missing code rejected", func(t *testing.T) {
		rec := doCalendarRequest(t, &fakeCalAuth{}, http.MethodGet, "/api/user/calendar/callback?state=state-1", stateCookie, pkceCookie)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("provider unreachable maps to bad gateway", func(t *testing.T) {
		calAuth := &fakeCalAuth{exchangeErr: &calauth.Error{Code: calauth.CodeNetwork}}

		rec := doCalendarRequest(t, calAuth, http.MethodGet, "/api/user/calendar/callback?state=state-1&code=code-1", stateCookie, pkceCookie)

		assert.Equal(t, http.StatusBadGateway, rec.Code)
	})
}

func Test_CalendarHandler_Unlink(t *testing.T) {
	t.Parallel()

	calAuth := &fakeCalAuth{}

	rec := doCalendarRequest(t, calAuth, http.MethodDelete, "/api/user/calendar/link")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"linked":false}`, rec.Body.String())
	assert.True(t, calAuth.unlinked)
}
