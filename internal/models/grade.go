package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Grade struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Course    string
	Credits   decimal.Decimal
	Score     decimal.Decimal
	CreatedAt time.Time
}
