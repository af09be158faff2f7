package gpa

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/classtrackapp/classtrack/internal/models"
	"github.com/classtrackapp/classtrack/internal/repository"
)

var (
	ErrInvalidCredits = errors.New("credits must be positive")
	ErrInvalidScore   = errors.New("score must not be negative")
)

type Service struct {
	grades repository.GradeRepo
}

func NewService(grades repository.GradeRepo) *Service {
	return &Service{grades: grades}
}

func (s *Service) AddGrade(ctx context.Context, userID uuid.UUID, course string, credits decimal.Decimal, score decimal.Decimal) (models.Grade, error) {
	if !credits.IsPositive() {
		return models.Grade{}, ErrInvalidCredits
	}
	if score.IsNegative() {
		return models.Grade{}, ErrInvalidScore
	}

	return s.grades.CreateGrade(ctx, models.Grade{
		UserID:  userID,
		Course:  course,
		Credits: credits,
		Score:   score,
	})
}

func (s *Service) ListGrades(ctx context.Context, userID uuid.UUID) ([]models.Grade, error) {
	return s.grades.ListGrades(ctx, userID)
}

// GPA returns the credit-weighted average score rounded to two places.
// Zero with no recorded grades.
func (s *Service) GPA(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error) {
	grades, err := s.grades.ListGrades(ctx, userID)
	if err != nil {
		return decimal.Zero, err
	}

	totalCredits := decimal.Zero
	totalPoints := decimal.Zero
	for _, g := range grades {
		totalCredits = totalCredits.Add(g.Credits)
		totalPoints = totalPoints.Add(g.Score.Mul(g.Credits))
	}

	if totalCredits.IsZero() {
		return decimal.Zero, nil
	}

	return totalPoints.Div(totalCredits).Round(2), nil
}
