package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/classtrackapp/classtrack/internal/models"
)

type TokenRepo struct {
	DB DBTX
}

// Whole-row upsert: a stored token set is always replaced in full so stale
// fields from an earlier link can't leak into the new one
const saveTokenSet = `-- name: SaveTokenSet
INSERT INTO calendar_tokens (user_id, access_token, refresh_token, expires_at, scope, updated_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (user_id) DO UPDATE
SET access_token = EXCLUDED.access_token,
    refresh_token = EXCLUDED.refresh_token,
    expires_at = EXCLUDED.expires_at,
    scope = EXCLUDED.scope,
    updated_at = EXCLUDED.updated_at
`

func (r *TokenRepo) Save(ctx context.Context, userID uuid.UUID, set models.OAuthTokenSet) error {
	var expiresAt *time.Time
	if !set.ExpiresAt.IsZero() {
		expiresAt = &set.ExpiresAt
	}

	_, err := r.DB.Exec(ctx, saveTokenSet, userID, set.AccessToken, set.RefreshToken, expiresAt, set.Scope, time.Now())
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

const getTokenSet = `-- name: GetTokenSet
SELECT access_token, refresh_token, expires_at, scope
FROM calendar_tokens
WHERE user_id = $1
`

func (r *TokenRepo) Get(ctx context.Context, userID uuid.UUID) (*models.OAuthTokenSet, error) {
	rows, _ := r.DB.Query(ctx, getTokenSet, userID)
	set, err := pgx.CollectOneRow(rows, func(row pgx.CollectableRow) (models.OAuthTokenSet, error) {
		var s models.OAuthTokenSet
		var expiresAt *time.Time
		err := row.Scan(&s.AccessToken, &s.RefreshToken, &expiresAt, &s.Scope)
		if expiresAt != nil {
			s.ExpiresAt = *expiresAt
		}
		return s, err
	})

	switch {
	case err == nil:
		return &set, nil
	case errors.Is(err, pgx.ErrNoRows):
		return nil, nil
	default:
		return nil, fmt.Errorf("db error: %w", err)
	}
}

const deleteTokenSet = `-- name: DeleteTokenSet
DELETE FROM calendar_tokens
WHERE user_id = $1
`

func (r *TokenRepo) Delete(ctx context.Context, userID uuid.UUID) error {
	_, err := r.DB.Exec(ctx, deleteTokenSet, userID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
