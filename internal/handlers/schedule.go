package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/classtrackapp/classtrack/internal/apperrors"
	"github.com/classtrackapp/classtrack/internal/handlers/render"
	"github.com/classtrackapp/classtrack/internal/handlers/userctx"
	"github.com/classtrackapp/classtrack/internal/models"
	"github.com/classtrackapp/classtrack/internal/service/calauth"
	"github.com/classtrackapp/classtrack/internal/service/calendar"
)

const syncDateLayout = "2006-01-02"

type scheduleService interface {
	SyncCalendar(ctx context.Context, userID uuid.UUID, from time.Time, to time.Time) (models.ImportResult, error)
	ImportExtracted(ctx context.Context, userID uuid.UUID, raw []models.ExtractedScheduleItem) (models.ImportResult, error)
	ListItems(ctx context.Context, userID uuid.UUID) ([]models.ScheduleItem, error)
}

type ScheduleHandler struct {
	schedule scheduleService
}

func NewSchedule(schedule scheduleService) *ScheduleHandler {
	return &ScheduleHandler{schedule: schedule}
}

func (h *ScheduleHandler) sync(w http.ResponseWriter, r *http.Request) {
	type SyncRequest struct {
		From string `json:"from" validate:"required"`
		To   string `json:"to" validate:"required"`
	}

	user, ok := userctx.FromContext(r.Context())
	if !ok {
		render.ServiceError(w, "Authorization required", http.StatusUnauthorized)
		return
	}

	data, err := render.BindAndValidate[SyncRequest](w, r)
	if err != nil {
		return
	}

	from, err := time.Parse(syncDateLayout, data.From)
	if err != nil {
		render.ServiceError(w, "Invalid 'from' date, want YYYY-MM-DD", http.StatusBadRequest)
		return
	}
	to, err := time.Parse(syncDateLayout, data.To)
	if err != nil {
		render.ServiceError(w, "Invalid 'to' date, want YYYY-MM-DD", http.StatusBadRequest)
		return
	}
	if !from.Before(to) {
		render.ServiceError(w, "'from' must be before 'to'", http.StatusBadRequest)
		return
	}

	// The end date is inclusive for the user, exclusive on the wire
	result, err := h.schedule.SyncCalendar(r.Context(), user.ID, from, to.AddDate(0, 0, 1))
	if err != nil {
		writeSyncError(w, err)
		return
	}

	render.JSON(w, result)
}

// writeSyncError maps pipeline failures onto user-facing responses.
// Retryable conditions keep their hints, auth conditions tell the user to
// link the calendar again.
func writeSyncError(w http.ResponseWriter, err error) {
	var authErr *calauth.Error
	var calErr *calendar.Error

	switch {
	case errors.Is(err, apperrors.ErrCalendarNotLinked):
		render.ServiceError(w, "No calendar account linked", http.StatusConflict)
	case errors.As(err, &authErr) && (authErr.Code == calauth.CodeReauthRequired || authErr.Code == calauth.CodeInvalidGrant):
		render.ServiceError(w, "Calendar authorization expired, please link it again", http.StatusUnauthorized)
	case errors.As(err, &calErr) && calErr.Code == calendar.CodeRateLimited:
		if calErr.RetryAfter > 0 {
			w.Header().Set("Retry-After", fmt.Sprintf("%d", int(calErr.RetryAfter.Seconds())))
		}
		render.ServiceError(w, "Calendar provider throttled the request, try again later", http.StatusTooManyRequests)
	case errors.As(err, &authErr), errors.As(err, &calErr):
		render.ServiceError(w, "Calendar provider unreachable", http.StatusBadGateway)
	default:
		render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
	}
}

func (h *ScheduleHandler) importExtracted(w http.ResponseWriter, r *http.Request) {
	type ImportRequest struct {
		Items []models.ExtractedScheduleItem `json:"items" validate:"required"`
	}

	user, ok := userctx.FromContext(r.Context())
	if !ok {
		render.ServiceError(w, "Authorization required", http.StatusUnauthorized)
		return
	}

	data, err := render.BindAndValidate[ImportRequest](w, r)
	if err != nil {
		return
	}

	result, err := h.schedule.ImportExtracted(r.Context(), user.ID, data.Items)
	if err != nil {
		render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	render.JSON(w, result)
}

func (h *ScheduleHandler) list(w http.ResponseWriter, r *http.Request) {
	type ScheduleItemResponse struct {
		ID         uuid.UUID `json:"id"`
		Title      string    `json:"title"`
		Day        string    `json:"day"`
		Start      string    `json:"startTime"`
		End        string    `json:"endTime"`
		Location   string    `json:"location,omitempty"`
		Source     string    `json:"source"`
		ExternalID string    `json:"externalId,omitempty"`
	}

	user, ok := userctx.FromContext(r.Context())
	if !ok {
		render.ServiceError(w, "Authorization required", http.StatusUnauthorized)
		return
	}

	items, err := h.schedule.ListItems(r.Context(), user.ID)
	if err != nil {
		render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	response := make([]ScheduleItemResponse, 0, len(items))
	for _, item := range items {
		response = append(response, ScheduleItemResponse{
			ID:         item.ID,
			Title:      item.Title,
			Day:        item.Day.String(),
			Start:      item.Start.String(),
			End:        item.End.String(),
			Location:   item.Location,
			Source:     item.Source,
			ExternalID: item.ExternalID,
		})
	}

	render.JSON(w, response)
}
