package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/classtrackapp/classtrack/internal/models"
)

// User repository interface
type UserRepo interface {
	// Create user
	// If user with username exists already has to return apperrors.ErrAccountAlreadyExists
	CreateUser(ctx context.Context, username string, hashedPassword string) (models.User, error)

	// Get user by id or username
	// If user not found must return apperrors.ErrAccountNotFound
	GetUserByID(ctx context.Context, userID uuid.UUID) (models.User, error)
	GetUserByUsername(ctx context.Context, username string) (models.User, error)
}

// Calendar token repository interface.
// One token set per user; the set is the only shared mutable resource in the
// sync pipeline and writes are last-writer-wins.
type TokenRepo interface {
	// Save overwrites any prior token set for the user as a whole,
	// never merges fields
	Save(ctx context.Context, userID uuid.UUID, set models.OAuthTokenSet) error

	// Get returns (nil, nil) if the user has no linked calendar account.
	// "Not linked" is an expected state, not an error
	Get(ctx context.Context, userID uuid.UUID) (*models.OAuthTokenSet, error)

	// Delete removes the token set. Deleting an absent set is not an error
	Delete(ctx context.Context, userID uuid.UUID) error
}

// Schedule item repository interface
type ScheduleRepo interface {
	// CreateItem persists one canonical item and returns its new id
	CreateItem(ctx context.Context, userID uuid.UUID, item models.ScheduleItem) (uuid.UUID, error)

	// ListItems returns all committed items for the user
	ListItems(ctx context.Context, userID uuid.UUID) ([]models.ScheduleItem, error)
}

// Grade repository interface
type GradeRepo interface {
	CreateGrade(ctx context.Context, grade models.Grade) (models.Grade, error)
	ListGrades(ctx context.Context, userID uuid.UUID) ([]models.Grade, error)
}

type Storage interface {
	User() UserRepo
	Token() TokenRepo
	Schedule() ScheduleRepo
	Grade() GradeRepo

	// Run fn within one db transaction
	InTx(ctx context.Context, fn func(Storage) error) error
}
