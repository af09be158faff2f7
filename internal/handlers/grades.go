package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/classtrackapp/classtrack/internal/handlers/render"
	"github.com/classtrackapp/classtrack/internal/handlers/userctx"
	"github.com/classtrackapp/classtrack/internal/models"
	"github.com/classtrackapp/classtrack/internal/service/gpa"
)

type gpaService interface {
	AddGrade(ctx context.Context, userID uuid.UUID, course string, credits decimal.Decimal, score decimal.Decimal) (models.Grade, error)
	ListGrades(ctx context.Context, userID uuid.UUID) ([]models.Grade, error)
	GPA(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error)
}

type GradeHandler struct {
	gpa gpaService
}

func NewGrades(gpa gpaService) *GradeHandler {
	return &GradeHandler{gpa: gpa}
}

type gradeResponse struct {
	ID      uuid.UUID       `json:"id"`
	Course  string          `json:"course"`
	Credits decimal.Decimal `json:"credits"`
	Score   decimal.Decimal `json:"score"`
}

func (h *GradeHandler) addGrade(w http.ResponseWriter, r *http.Request) {
	type AddGradeRequest struct {
		Course  string          `json:"course" validate:"required"`
		Credits decimal.Decimal `json:"credits" validate:"required"`
		Score   decimal.Decimal `json:"score"`
	}

	user, ok := userctx.FromContext(r.Context())
	if !ok {
		render.ServiceError(w, "Authorization required", http.StatusUnauthorized)
		return
	}

	data, err := render.BindAndValidate[AddGradeRequest](w, r)
	if err != nil {
		return
	}

	grade, err := h.gpa.AddGrade(r.Context(), user.ID, data.Course, data.Credits, data.Score)
	if err != nil {
		switch {
		case errors.Is(err, gpa.ErrInvalidCredits), errors.Is(err, gpa.ErrInvalidScore):
			render.ServiceError(w, err.Error(), http.StatusBadRequest)
		default:
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
		return
	}

	render.JSON(w, gradeResponse{ID: grade.ID, Course: grade.Course, Credits: grade.Credits, Score: grade.Score})
}

func (h *GradeHandler) listGrades(w http.ResponseWriter, r *http.Request) {
	user, ok := userctx.FromContext(r.Context())
	if !ok {
		render.ServiceError(w, "Authorization required", http.StatusUnauthorized)
		return
	}

	grades, err := h.gpa.ListGrades(r.Context(), user.ID)
	if err != nil {
		render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	response := make([]gradeResponse, 0, len(grades))
	for _, g := range grades {
		response = append(response, gradeResponse{ID: g.ID, Course: g.Course, Credits: g.Credits, Score: g.Score})
	}

	render.JSON(w, response)
}

func (h *GradeHandler) getGPA(w http.ResponseWriter, r *http.Request) {
	type GPAResponse struct {
		GPA decimal.Decimal `json:"gpa"`
	}

	user, ok := userctx.FromContext(r.Context())
	if !ok {
		render.ServiceError(w, "Authorization required", http.StatusUnauthorized)
		return
	}

	value, err := h.gpa.GPA(r.Context(), user.ID)
	if err != nil {
		render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	render.JSON(w, GPAResponse{GPA: value})
}
