package schedule

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/classtrackapp/classtrack/internal/apperrors"
	"github.com/classtrackapp/classtrack/internal/logger"
	"github.com/classtrackapp/classtrack/internal/models"
	"github.com/classtrackapp/classtrack/internal/repository"
	"github.com/classtrackapp/classtrack/internal/service/calendar"
)

type tokenProvider interface {
	EnsureFresh(ctx context.Context, userID uuid.UUID, set models.OAuthTokenSet) (models.OAuthTokenSet, error)
	Refresh(ctx context.Context, userID uuid.UUID, set models.OAuthTokenSet) (models.OAuthTokenSet, error)
}

type eventFetcher interface {
	FetchRange(ctx context.Context, accessToken string, from time.Time, to time.Time) ([]calendar.Event, error)
}

// Service runs the import pipeline: fetch, normalize, reconcile, commit.
// Each stage consumes the prior stage's full output, nothing overlaps within
// one run. The service never retries on its own except the single documented
// re-fetch after a mid-range token rejection; everything else is the
// caller's retry policy. Keeping at most one run in flight per user is also
// the caller's job.
type Service struct {
	loc       *time.Location
	auth      tokenProvider
	fetcher   eventFetcher
	tokens    repository.TokenRepo
	schedule  repository.ScheduleRepo
	committer *Committer
	logger    logger.Logger
}

func NewService(
	loc *time.Location,
	auth tokenProvider,
	fetcher eventFetcher,
	tokens repository.TokenRepo,
	scheduleRepo repository.ScheduleRepo,
	logger logger.Logger,
) (*Service, error) {
	if auth == nil || fetcher == nil || tokens == nil || scheduleRepo == nil {
		return nil, errors.New("auth, fetcher and repos must not be nil")
	}
	if loc == nil {
		loc = time.UTC
	}

	return &Service{
		loc:       loc,
		auth:      auth,
		fetcher:   fetcher,
		tokens:    tokens,
		schedule:  scheduleRepo,
		committer: NewCommitter(scheduleRepo, logger),
		logger:    logger,
	}, nil
}

// SyncCalendar imports the user's external calendar window.
// Returns apperrors.ErrCalendarNotLinked when no account is linked.
func (s *Service) SyncCalendar(ctx context.Context, userID uuid.UUID, from time.Time, to time.Time) (models.ImportResult, error) {
	var result models.ImportResult

	set, err := s.tokens.Get(ctx, userID)
	if err != nil {
		return result, fmt.Errorf("failed to load token set: %w", err)
	}
	if set == nil {
		return result, apperrors.ErrCalendarNotLinked
	}

	fresh, err := s.auth.EnsureFresh(ctx, userID, *set)
	if err != nil {
		return result, err
	}

	events, err := s.fetcher.FetchRange(ctx, fresh.AccessToken, from, to)

	// A token can be revoked or expire mid-pagination. Refresh once and
	// retry the whole range: partial page state is not assumed stable
	// across a token refresh.
	var calErr *calendar.Error
	if errors.As(err, &calErr) && calErr.Code == calendar.CodeUnauthorized {
		s.logger.Info("access token rejected mid-fetch, refreshing and retrying range", "user_id", userID)

		fresh, err = s.auth.Refresh(ctx, userID, fresh)
		if err != nil {
			return result, err
		}
		events, err = s.fetcher.FetchRange(ctx, fresh.AccessToken, from, to)
	}
	if err != nil {
		return result, err
	}

	items, itemErrs := NormalizeCalendarEvents(s.loc, events)
	return s.reconcileAndCommit(ctx, userID, items, itemErrs)
}

// ImportExtracted imports items the extraction service pulled from a
// timetable image. Input is untrusted: invalid items are reported in the
// result, not raised.
func (s *Service) ImportExtracted(ctx context.Context, userID uuid.UUID, raw []models.ExtractedScheduleItem) (models.ImportResult, error) {
	items, itemErrs := NormalizeExtracted(raw)
	return s.reconcileAndCommit(ctx, userID, items, itemErrs)
}

// ListItems returns the user's committed schedule
func (s *Service) ListItems(ctx context.Context, userID uuid.UUID) ([]models.ScheduleItem, error) {
	return s.schedule.ListItems(ctx, userID)
}

func (s *Service) reconcileAndCommit(ctx context.Context, userID uuid.UUID, items []models.ScheduleItem, itemErrs []models.ImportError) (models.ImportResult, error) {
	existing, err := s.schedule.ListItems(ctx, userID)
	if err != nil {
		return models.ImportResult{}, fmt.Errorf("failed to snapshot existing items: %w", err)
	}

	reconciled := Reconcile(existing, items)

	result := s.committer.Commit(ctx, userID, reconciled.ToCreate)
	result.Skipped = len(reconciled.ToSkip)
	result.Errors = append(itemErrs, result.Errors...)

	s.logger.Info("import run finished",
		"user_id", userID,
		"created", result.Created,
		"skipped", result.Skipped,
		"errors", len(result.Errors),
	)

	return result, nil
}
