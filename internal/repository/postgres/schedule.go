package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/classtrackapp/classtrack/internal/models"
)

type ScheduleRepo struct {
	DB DBTX
}

const createScheduleItem = `-- name: CreateScheduleItem
INSERT INTO schedule_items (id, user_id, created_at, title, day, start_min, end_min, location, source, external_id)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
RETURNING id
`

func (r *ScheduleRepo) CreateItem(ctx context.Context, userID uuid.UUID, item models.ScheduleItem) (uuid.UUID, error) {
	id := item.ID
	if id == uuid.Nil {
		id = uuid.New()
	}

	rows, _ := r.DB.Query(ctx, createScheduleItem,
		id, userID, time.Now(),
		item.Title, int16(item.Day), int(item.Start), int(item.End),
		item.Location, item.Source, item.ExternalID,
	)
	id, err := pgx.CollectOneRow(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		return uuid.Nil, fmt.Errorf("db error: %w", err)
	}

	return id, nil
}

const listScheduleItems = `-- name: ListScheduleItems
SELECT id, title, day, start_min, end_min, location, source, external_id
FROM schedule_items
WHERE user_id = $1
ORDER BY day, start_min, title
`

func (r *ScheduleRepo) ListItems(ctx context.Context, userID uuid.UUID) ([]models.ScheduleItem, error) {
	rows, _ := r.DB.Query(ctx, listScheduleItems, userID)
	items, err := pgx.CollectRows(rows, rowToScheduleItem)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return items, nil
}

func rowToScheduleItem(row pgx.CollectableRow) (models.ScheduleItem, error) {
	var item models.ScheduleItem
	var day int16
	var start, end int

	err := row.Scan(&item.ID, &item.Title, &day, &start, &end, &item.Location, &item.Source, &item.ExternalID)
	item.Day = time.Weekday(day)
	item.Start = models.ClockTime(start)
	item.End = models.ClockTime(end)

	return item, err
}
