package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kingrain94/entitlement-api/internal/api/dto"
	"github.com/kingrain94/entitlement-api/internal/domain"
	"github.com/kingrain94/entitlement-api/internal/repository"
	"github.com/kingrain94/entitlement-api/pkg/utils"
)

var ErrInvalidTimeRange = errors.New("invalid time range")

// ArchiveScheduler queues archive requests for the archive worker.
type ArchiveScheduler interface {
	SendArchiveMessage(ctx context.Context, beforeDate time.Time) error
}

type HistoryService struct {
	repo      repository.FlagChangeRepository
	scheduler ArchiveScheduler
	now       func() time.Time
}

func NewHistoryService(repo repository.FlagChangeRepository, scheduler ArchiveScheduler) *HistoryService {
	return &HistoryService{
		repo:      repo,
		scheduler: scheduler,
		now:       time.Now,
	}
}

// GetFlagHistory returns the recorded changes of key, most recent first.
func (s *HistoryService) GetFlagHistory(ctx context.Context, key string, query dto.FlagHistoryQuery) ([]dto.FlagChangeResponse, error) {
	filter := domain.FlagChangeFilter{
		FlagKey:   key,
		Action:    domain.FlagChangeAction(query.Action),
		SubjectID: query.SubjectID,
		ActorID:   query.ActorID,
		Page:      query.Page,
		PageSize:  query.PageSize,
	}

	var err error
	if query.StartTime != "" {
		if filter.StartTime, err = utils.ParseUserTime(query.StartTime, false); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidTimeRange, err)
		}
	}
	if query.EndTime != "" {
		if filter.EndTime, err = utils.ParseUserTime(query.EndTime, true); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidTimeRange, err)
		}
	}
	if !filter.StartTime.IsZero() && !filter.EndTime.IsZero() && filter.EndTime.Before(filter.StartTime) {
		return nil, fmt.Errorf("%w: end_time before start_time", ErrInvalidTimeRange)
	}

	changes, err := s.repo.Search(ctx, &filter)
	if err != nil {
		return nil, err
	}
	return dto.FromFlagChanges(changes), nil
}

// ScheduleArchive queues the archival of every change recorded before the given date.
func (s *HistoryService) ScheduleArchive(ctx context.Context, before string) (time.Time, error) {
	beforeDate, err := utils.ParseUserTime(before, true)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", ErrInvalidTimeRange, err)
	}
	if beforeDate.After(s.now()) {
		return time.Time{}, fmt.Errorf("%w: archive date is in the future", ErrInvalidTimeRange)
	}
	if err := s.scheduler.SendArchiveMessage(ctx, beforeDate); err != nil {
		return time.Time{}, err
	}
	return beforeDate, nil
}
