package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/classtrackapp/classtrack/internal/apperrors"
	"github.com/classtrackapp/classtrack/internal/handlers/render"
	"github.com/classtrackapp/classtrack/internal/service/account"
)

type accountService interface {
	Register(ctx context.Context, username string, password string) (account.Session, error)
	Login(ctx context.Context, username string, password string) (account.Session, error)
}

type AuthHandler struct {
	accounts accountService
}

func NewAuth(accounts accountService) *AuthHandler {
	return &AuthHandler{accounts: accounts}
}

type sessionResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	Username  string    `json:"username"`
}

func (h *AuthHandler) register(w http.ResponseWriter, r *http.Request) {
	type RegisterRequest struct {
		Username string `json:"username" validate:"required,min=2,max=50"`
		Password string `json:"password" validate:"required,min=8"`
	}

	data, err := render.BindAndValidate[RegisterRequest](w, r)
	if err != nil {
		return
	}

	session, err := h.accounts.Register(r.Context(), data.Username, data.Password)
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrAccountAlreadyExists):
			render.ServiceError(w, "Account already exists", http.StatusConflict)
		default:
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
		return
	}

	render.JSON(w, sessionResponse{
		Token:     session.Token,
		ExpiresAt: session.ExpiresAt,
		Username:  session.User.Username,
	})
}

func (h *AuthHandler) login(w http.ResponseWriter, r *http.Request) {
	type LoginRequest struct {
		Username string `json:"username" validate:"required"`
		Password string `json:"password" validate:"required"`
	}

	data, err := render.BindAndValidate[LoginRequest](w, r)
	if err != nil {
		return
	}

	session, err := h.accounts.Login(r.Context(), data.Username, data.Password)
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrAccountNotFound):
			render.ServiceError(w, "Wrong username or password", http.StatusUnauthorized)
		default:
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
		return
	}

	render.JSON(w, sessionResponse{
		Token:     session.Token,
		ExpiresAt: session.ExpiresAt,
		Username:  session.User.Username,
	})
}
