package schedule

import (
	"context"

	"github.com/google/uuid"

	"github.com/classtrackapp/classtrack/internal/logger"
	"github.com/classtrackapp/classtrack/internal/models"
	"github.com/classtrackapp/classtrack/internal/repository"
)

// Committer persists accepted items one by one. A failed item lands in the
// result's error list and never aborts the rest of the batch: partial
// success is expected and reported. No internal retries; exactly-once across
// runs is what reconciliation on the next run is for.
type Committer struct {
	schedule repository.ScheduleRepo
	logger   logger.Logger
}

func NewCommitter(schedule repository.ScheduleRepo, logger logger.Logger) *Committer {
	return &Committer{schedule: schedule, logger: logger}
}

// Commit writes toCreate and returns the run summary. CreatedIDs keeps the
// order of toCreate so the caller can correlate inputs to new entities.
func (c *Committer) Commit(ctx context.Context, userID uuid.UUID, toCreate []models.ScheduleItem) models.ImportResult {
	result := models.ImportResult{
		CreatedIDs: make([]uuid.UUID, 0, len(toCreate)),
	}

	for _, item := range toCreate {
		id, err := c.schedule.CreateItem(ctx, userID, item)
		if err != nil {
			c.logger.Error("failed to persist schedule item",
				"user_id", userID, "title", item.Title, "error", err)
			result.Errors = append(result.Errors, models.ImportError{
				Title:      item.Title,
				ExternalID: item.ExternalID,
				Stage:      models.StagePersist,
				Reason:     err.Error(),
			})
			continue
		}

		result.CreatedIDs = append(result.CreatedIDs, id)
		result.Created++
	}

	return result
}
