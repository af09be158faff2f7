package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/classtrackapp/classtrack/internal/models"
)

type GradeRepo struct {
	DB DBTX
}

const createGrade = `-- name: CreateGrade
INSERT INTO grades (id, user_id, created_at, course, credits, score)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id, user_id, created_at, course, credits, score
`

func (r *GradeRepo) CreateGrade(ctx context.Context, grade models.Grade) (models.Grade, error) {
	id := grade.ID
	if id == uuid.Nil {
		id = uuid.New()
	}

	rows, _ := r.DB.Query(ctx, createGrade, id, grade.UserID, time.Now(), grade.Course, grade.Credits, grade.Score)
	g, err := pgx.CollectOneRow(rows, rowToGrade)
	if err != nil {
		return g, fmt.Errorf("db error: %w", err)
	}

	return g, nil
}

const listGrades = `-- name: ListGrades
SELECT id, user_id, created_at, course, credits, score
FROM grades
WHERE user_id = $1
ORDER BY created_at, course
`

func (r *GradeRepo) ListGrades(ctx context.Context, userID uuid.UUID) ([]models.Grade, error) {
	rows, _ := r.DB.Query(ctx, listGrades, userID)
	grades, err := pgx.CollectRows(rows, rowToGrade)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return grades, nil
}

func rowToGrade(row pgx.CollectableRow) (models.Grade, error) {
	var g models.Grade
	err := row.Scan(&g.ID, &g.UserID, &g.CreatedAt, &g.Course, &g.Credits, &g.Score)
	return g, err
}
