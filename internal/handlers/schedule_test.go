package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classtrackapp/classtrack/internal/apperrors"
	"github.com/classtrackapp/classtrack/internal/handlers/userctx"
	"github.com/classtrackapp/classtrack/internal/models"
	"github.com/classtrackapp/classtrack/internal/service/calauth"
	"github.com/classtrackapp/classtrack/internal/service/calendar"
)

type fakeScheduleService struct {
	syncResult   models.ImportResult
	syncErr      error
	syncFrom     time.Time
	syncTo       time.Time
	importResult models.ImportResult
	items        []models.ScheduleItem
}

func (f *fakeScheduleService) SyncCalendar(ctx context.Context, userID uuid.UUID, from time.Time, to time.Time) (models.ImportResult, error) {
	f.syncFrom = from
	f.syncTo = to
	return f.syncResult, f.syncErr
}

func (f *fakeScheduleService) ImportExtracted(ctx context.Context, userID uuid.UUID, raw []models.ExtractedScheduleItem) (models.ImportResult, error) {
	return f.importResult, nil
}

func (f *fakeScheduleService) ListItems(ctx context.Context, userID uuid.UUID) ([]models.ScheduleItem, error) {
	return f.items, nil
}

func doScheduleRequest(t *testing.T, service scheduleService, method string, path string, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req = req.WithContext(userctx.WithUser(req.Context(), models.User{ID: uuid.New(), Username: "gopher"}))
	rec := httptest.NewRecorder()

	newTestRouter(testRouterServices{schedule: service}).ServeHTTP(rec, req)
	return rec
}

func Test_ScheduleHandler_Sync(t *testing.T) {
	t.Parallel()

	t.Run("ok with inclusive end date", func(t *testing.T) {
		service := &fakeScheduleService{syncResult: models.ImportResult{Created: 2, Skipped: 1}}

		rec := doScheduleRequest(t, service, http.MethodPost, "/api/user/schedule/sync", `{"from":"2026-01-05","to":"2026-01-09"}`)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"created":2, "createdIds":null, "skipped":1}`, rec.Body.String())
		assert.Equal(t, time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC), service.syncFrom)
		assert.Equal(t, time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC), service.syncTo, "user-facing end date is inclusive")
	})

	t.Run("bad dates rejected", func(t *testing.T) {
		tests := []struct {
			name string
			body string
		}{
			{"malformed from", `{"from":"05.01.2026","to":"2026-01-09"}`},
			{"malformed to", `{"from":"2026-01-05","to":"soon"}`},
			{"from after to", `{"from":"2026-01-09","to":"2026-01-05"}`},
			{"missing to", `{"from":"2026-01-05"}`},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				rec := doScheduleRequest(t, &fakeScheduleService{}, http.MethodPost, "/api/user/schedule/sync", tt.body)

				assert.Equal(t, http.StatusBadRequest, rec.Code)
			})
		}
	})

	t.Run("error mapping", func(t *testing.T) {
		tests := []struct {
			name       string
			err        error
			wantStatus int
		}{
			{"not linked", apperrors.ErrCalendarNotLinked, http.StatusConflict},
			{"reauth required", &calauth.Error{Code: calauth.CodeReauthRequired}, http.StatusUnauthorized},
			{"invalid grant", &calauth.Error{Code: calauth.CodeInvalidGrant}, http.StatusUnauthorized},
			{"rate limited", calendar.NewError(calendar.CodeRateLimited, 30*time.Second, assert.AnError), http.StatusTooManyRequests},
			{"auth network", &calauth.Error{Code: calauth.CodeNetwork}, http.StatusBadGateway},
			{"provider unknown", calendar.NewError(calendar.CodeUnknown, 0, assert.AnError), http.StatusBadGateway},
			{"anything else", assert.AnError, http.StatusInternalServerError},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				service := &fakeScheduleService{syncErr: tt.err}

				rec := doScheduleRequest(t, service, http.MethodPost, "/api/user/schedule/sync", `{"from":"2026-01-05","to":"2026-01-09"}`)

				assert.Equal(t, tt.wantStatus, rec.Code)
			})
		}
	})

	t.Run("rate limit response carries retry-after hint", func(t *testing.T) {
		service := &fakeScheduleService{syncErr: calendar.NewError(calendar.CodeRateLimited, 30*time.Second, assert.AnError)}

		rec := doScheduleRequest(t, service, http.MethodPost, "/api/user/schedule/sync", `{"from":"2026-01-05","to":"2026-01-09"}`)

		require.Equal(t, http.StatusTooManyRequests, rec.Code)
		assert.Equal(t, "30", rec.Header().Get("Retry-After"))
	})

	t.Run("no retry-after header without a provider hint", func(t *testing.T) {
		service := &fakeScheduleService{syncErr: calendar.NewError(calendar.CodeRateLimited, 0, assert.AnError)}

		rec := doScheduleRequest(t, service, http.MethodPost, "/api/user/schedule/sync", `{"from":"2026-01-05","to":"2026-01-09"}`)

		require.Equal(t, http.StatusTooManyRequests, rec.Code)
		assert.Empty(t, rec.Header().Values("Retry-After"))
	})

	t.Run("unauthorized without user in context", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/user/schedule/sync", strings.NewReader(`{"from":"2026-01-05","to":"2026-01-09"}`))
		rec := httptest.NewRecorder()

		newTestRouter(testRouterServices{schedule: &fakeScheduleService{}}).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func Test_ScheduleHandler_List(t *testing.T) {
	t.Parallel()

	service := &fakeScheduleService{items: []models.ScheduleItem{
		{
			ID:         uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8"),
			Title:      "Algorithms",
			Day:        time.Monday,
			Start:      models.NewClock(10, 0),
			End:        models.NewClock(11, 30),
			Location:   "Hall A",
			Source:     models.SourceCalendar,
			ExternalID: "evt-1",
		},
	}}

	rec := doScheduleRequest(t, service, http.MethodGet, "/api/user/schedule", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[{
		"id": "6ba7b810-9dad-11d1-80b4-00c04fd430c8",
		"title": "Algorithms",
		"day": "Monday",
		"startTime": "10:00",
		"endTime": "11:30",
		"location": "Hall A",
		"source": "calendar",
		"externalId": "evt-1"
	}]`, rec.Body.String())
}
