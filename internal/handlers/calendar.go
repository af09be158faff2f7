package handlers

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/classtrackapp/classtrack/internal/handlers/render"
	"github.com/classtrackapp/classtrack/internal/handlers/userctx"
	"github.com/classtrackapp/classtrack/internal/models"
	"github.com/classtrackapp/classtrack/internal/service/calauth"
)

// Session cookies for the link flow. The PKCE verifier is a one-time secret:
// stored under a fixed name for the duration of the redirect round-trip and
// consumed on the callback no matter how the exchange ends.
const (
	pkceCookieName  = "cal_pkce"
	stateCookieName = "cal_state"
	linkCookieTTL   = 600 // seconds
)

type calAuthService interface {
	AuthCodeURL(state string) calauth.AuthCodeLink
	ExchangeCode(ctx context.Context, userID uuid.UUID, code string, verifier string) (models.OAuthTokenSet, error)
	Unlink(ctx context.Context, userID uuid.UUID) error
}

type CalendarHandler struct {
	calAuth calAuthService
}

func NewCalendar(calAuth calAuthService) *CalendarHandler {
	return &CalendarHandler{calAuth: calAuth}
}

func (h *CalendarHandler) link(w http.ResponseWriter, r *http.Request) {
	type LinkResponse struct {
		URL string `json:"url"`
	}

	state, err := randomState()
	if err != nil {
		render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	authLink := h.calAuth.AuthCodeURL(state)

	setLinkCookie(w, stateCookieName, state)
	setLinkCookie(w, pkceCookieName, authLink.Verifier)
	render.JSON(w, LinkResponse{URL: authLink.URL})
}

func (h *CalendarHandler) callback(w http.ResponseWriter, r *http.Request) {
	type CallbackResponse struct {
		Linked bool   `json:"linked"`
		Scope  string `json:"scope,omitempty"`
	}

	user, ok := userctx.FromContext(r.Context())
	if !ok {
		render.ServiceError(w, "Authorization required", http.StatusUnauthorized)
		return
	}

	stateCookie, stateErr := r.Cookie(stateCookieName)
	pkceCookie, pkceErr := r.Cookie(pkceCookieName)

	// Single use: both session values die here, success or not
	clearLinkCookie(w, stateCookieName)
	clearLinkCookie(w, pkceCookieName)

	if stateErr != nil || pkceErr != nil {
		render.ServiceError(w, "Link session expired, start again", http.StatusBadRequest)
		return
	}
	if r.URL.Query().Get("state") != stateCookie.Value {
		render.ServiceError(w, "State mismatch", http.StatusBadRequest)
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		render.ServiceError(w, "Missing authorization code", http.StatusBadRequest)
		return
	}

	set, err := h.calAuth.ExchangeCode(r.Context(), user.ID, code, pkceCookie.Value)
	if err != nil {
		var authErr *calauth.Error
		switch {
		case errors.As(err, &authErr) && authErr.Code == calauth.CodeInvalidGrant:
			render.ServiceError(w, "Authorization code rejected, start the link again", http.StatusBadRequest)
		case errors.As(err, &authErr) && authErr.Code == calauth.CodeNetwork:
			render.ServiceError(w, "Calendar provider unreachable", http.StatusBadGateway)
		default:
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
		return
	}

	render.JSON(w, CallbackResponse{Linked: true, Scope: set.Scope})
}

func (h *CalendarHandler) unlink(w http.ResponseWriter, r *http.Request) {
	type UnlinkResponse struct {
		Linked bool `json:"linked"`
	}

	user, ok := userctx.FromContext(r.Context())
	if !ok {
		render.ServiceError(w, "Authorization required", http.StatusUnauthorized)
		return
	}

	if err := h.calAuth.Unlink(r.Context(), user.ID); err != nil {
		render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	render.JSON(w, UnlinkResponse{Linked: false})
}

func randomState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func setLinkCookie(w http.ResponseWriter, name string, value string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/api/user/calendar",
		MaxAge:   linkCookieTTL,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func clearLinkCookie(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/api/user/calendar",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
