package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kingrain94/entitlement-api/internal/domain"
	"github.com/kingrain94/entitlement-api/internal/repository"
	"github.com/kingrain94/entitlement-api/internal/utils"
	"github.com/kingrain94/entitlement-api/pkg/logger"
)

// batchConcurrency bounds the goroutines used by batch evaluation.
const batchConcurrency = 16

// FlagStore is the cache the service evaluates against.
type FlagStore interface {
	Get(ctx context.Context, key string) (*domain.FeatureFlag, bool, error)
	All(ctx context.Context) ([]*domain.FeatureFlag, error)
	Put(flag *domain.FeatureFlag)
}

// ChangePublisher announces flag changes to other instances.
type ChangePublisher interface {
	Publish(ctx context.Context, change *domain.FlagChange) error
}

// ChangeRecorder queues flag changes for the history index.
type ChangeRecorder interface {
	SendFlagChange(ctx context.Context, change *domain.FlagChange) error
}

type FeatureFlagService struct {
	repo      repository.FeatureFlagRepository
	cache     FlagStore
	publisher ChangePublisher
	recorder  ChangeRecorder
	logger    *logger.Logger
	now       func() time.Time
}

// NewFeatureFlagService wires the evaluator to its cache. publisher and recorder may be nil.
func NewFeatureFlagService(repo repository.FeatureFlagRepository, cache FlagStore, publisher ChangePublisher, recorder ChangeRecorder, logger *logger.Logger) *FeatureFlagService {
	return &FeatureFlagService{
		repo:      repo,
		cache:     cache,
		publisher: publisher,
		recorder:  recorder,
		logger:    logger,
		now:       time.Now,
	}
}

// GetFeatureFlag evaluates key for ec. Failures are logged and resolve to undefined.
func (s *FeatureFlagService) GetFeatureFlag(ctx context.Context, key string, ec domain.EvaluationContext) domain.Value {
	flag, found, err := s.cache.Get(ctx, key)
	if err != nil {
		s.logger.Error("Failed to load feature flag", err, zap.String("flag", key))
		return domain.Undefined()
	}
	if !found {
		return domain.Undefined()
	}
	return s.evaluate(flag, ec)
}

func (s *FeatureFlagService) evaluate(flag *domain.FeatureFlag, ec domain.EvaluationContext) domain.Value {
	value, err := Evaluate(flag, ec)
	if err != nil {
		s.logger.Error("Failed to evaluate feature flag", err,
			zap.String("flag", flag.Key),
			zap.String("user_id", ec.UserID),
			zap.String("tenant_id", ec.TenantID))
		return domain.Undefined()
	}
	return value
}

// IsFeatureEnabled is the truthiness of GetFeatureFlag.
func (s *FeatureFlagService) IsFeatureEnabled(ctx context.Context, key string, ec domain.EvaluationContext) bool {
	return s.GetFeatureFlag(ctx, key, ec).Truthy()
}

// GetFeatureFlags evaluates each key independently and concurrently.
func (s *FeatureFlagService) GetFeatureFlags(ctx context.Context, keys []string, ec domain.EvaluationContext) map[string]domain.Value {
	result := make(map[string]domain.Value, len(keys))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(batchConcurrency)
	for _, key := range keys {
		g.Go(func() error {
			value := s.GetFeatureFlag(gctx, key, ec)
			mu.Lock()
			result[key] = value
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return result
}

// GetAllFeatureFlags evaluates every known flag for ec.
func (s *FeatureFlagService) GetAllFeatureFlags(ctx context.Context, ec domain.EvaluationContext) map[string]domain.Value {
	flags, err := s.cache.All(ctx)
	if err != nil {
		s.logger.Error("Failed to load feature flags", err)
		return map[string]domain.Value{}
	}

	result := make(map[string]domain.Value, len(flags))
	for _, flag := range flags {
		result[flag.Key] = s.evaluate(flag, ec)
	}
	return result
}

// GetDefinition returns the stored definition of key through the cache.
func (s *FeatureFlagService) GetDefinition(ctx context.Context, key string) (*domain.FeatureFlag, error) {
	flag, found, err := s.cache.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrFeatureFlagNotFound
	}
	return flag, nil
}

func (s *FeatureFlagService) ListDefinitions(ctx context.Context) ([]*domain.FeatureFlag, error) {
	return s.cache.All(ctx)
}

// UpsertFlag creates or replaces the definition of flag.Key. Overrides are preserved.
func (s *FeatureFlagService) UpsertFlag(ctx context.Context, flag *domain.FeatureFlag, actorID string) (*domain.FeatureFlag, error) {
	if err := validateDefinition(flag); err != nil {
		return nil, err
	}

	stored, err := s.repo.Upsert(ctx, flag)
	if err != nil {
		return nil, err
	}
	s.cache.Put(stored)

	s.emit(ctx, &domain.FlagChange{
		FlagKey: stored.Key,
		Action:  domain.FlagChangeUpsert,
		Value:   stored.DefaultValue,
		ActorID: actorID,
	})
	return stored, nil
}

func validateDefinition(flag *domain.FeatureFlag) error {
	switch {
	case flag == nil || flag.Key == "":
		return fmt.Errorf("%w: key is required", ErrInvalidFeatureFlag)
	case !domain.IsValidFlagStatus(string(flag.Status)):
		return fmt.Errorf("%w: status %q", ErrInvalidFeatureFlag, flag.Status)
	case !domain.IsValidPlanLevel(string(flag.PlanLevel)):
		return fmt.Errorf("%w: plan level %q", ErrInvalidPlanLevel, flag.PlanLevel)
	case flag.RolloutPercentage < 0 || flag.RolloutPercentage > 100:
		return fmt.Errorf("%w: rollout percentage %d", ErrInvalidFeatureFlag, flag.RolloutPercentage)
	}
	for plan := range flag.PlanValueMap() {
		if !domain.IsValidPlanLevel(plan) {
			return fmt.Errorf("%w: plan value for %q", ErrInvalidPlanLevel, plan)
		}
	}
	return nil
}

func (s *FeatureFlagService) SetUserOverride(ctx context.Context, key, userID string, value domain.Value, actorID string) (*domain.FeatureFlag, error) {
	return s.setOverride(ctx, domain.OverrideUser, key, userID, value, actorID)
}

func (s *FeatureFlagService) SetTenantOverride(ctx context.Context, key, tenantID string, value domain.Value, actorID string) (*domain.FeatureFlag, error) {
	return s.setOverride(ctx, domain.OverrideTenant, key, tenantID, value, actorID)
}

func (s *FeatureFlagService) RemoveUserOverride(ctx context.Context, key, userID, actorID string) (*domain.FeatureFlag, error) {
	return s.removeOverride(ctx, domain.OverrideUser, key, userID, actorID)
}

func (s *FeatureFlagService) RemoveTenantOverride(ctx context.Context, key, tenantID, actorID string) (*domain.FeatureFlag, error) {
	return s.removeOverride(ctx, domain.OverrideTenant, key, tenantID, actorID)
}

func (s *FeatureFlagService) setOverride(ctx context.Context, target domain.OverrideTarget, key, subjectID string, value domain.Value, actorID string) (*domain.FeatureFlag, error) {
	if !value.IsDefined() {
		return nil, ErrUndefinedValue
	}

	flag, err := s.repo.SetOverride(ctx, target, key, subjectID, value)
	if err != nil {
		return nil, mapFlagError(err)
	}
	s.cache.Put(flag)

	s.emit(ctx, &domain.FlagChange{
		FlagKey:   key,
		Action:    domain.OverrideAction(target, false),
		SubjectID: subjectID,
		Value:     value,
		ActorID:   actorID,
	})
	return flag, nil
}

func (s *FeatureFlagService) removeOverride(ctx context.Context, target domain.OverrideTarget, key, subjectID, actorID string) (*domain.FeatureFlag, error) {
	flag, err := s.repo.RemoveOverride(ctx, target, key, subjectID)
	if err != nil {
		return nil, mapFlagError(err)
	}
	s.cache.Put(flag)

	s.emit(ctx, &domain.FlagChange{
		FlagKey:   key,
		Action:    domain.OverrideAction(target, true),
		SubjectID: subjectID,
		ActorID:   actorID,
	})
	return flag, nil
}

func mapFlagError(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return ErrFeatureFlagNotFound
	}
	return err
}

// emit fans a committed change out. Failures are logged and never undo the mutation.
func (s *FeatureFlagService) emit(ctx context.Context, change *domain.FlagChange) {
	change.ID = uuid.NewString()
	change.Timestamp = s.now().UTC()
	if tenantID, err := utils.GetTenantIDFromContext(ctx); err == nil {
		change.TenantID = tenantID
	}

	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, change); err != nil {
			s.logger.Error("Failed to publish flag change", err,
				zap.String("flag", change.FlagKey),
				zap.String("action", string(change.Action)))
		}
	}
	if s.recorder != nil {
		if err := s.recorder.SendFlagChange(ctx, change); err != nil {
			s.logger.Error("Failed to enqueue flag change", err,
				zap.String("flag", change.FlagKey),
				zap.String("action", string(change.Action)))
		}
	}
}

// SeedFlags stores the given definitions for keys the directory does not know yet.
func (s *FeatureFlagService) SeedFlags(ctx context.Context, flags []*domain.FeatureFlag) (int, error) {
	seeded := 0
	for _, flag := range flags {
		_, err := s.repo.GetByKey(ctx, flag.Key)
		if err == nil {
			continue
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return seeded, fmt.Errorf("failed to check feature flag %s: %w", flag.Key, err)
		}
		if _, err := s.UpsertFlag(ctx, flag, "seed"); err != nil {
			return seeded, err
		}
		seeded++
	}
	return seeded, nil
}
