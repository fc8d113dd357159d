package feature

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"fleettrack/internal/audit"
	dErrors "fleettrack/pkg/domain-errors"
	"fleettrack/pkg/platform/sentinel"
	"fleettrack/pkg/requestcontext"
)

// Service orchestrates feature administration.
type Service struct {
	store    Store
	recorder *audit.Recorder
}

func NewService(store Store, recorder *audit.Recorder) *Service {
	return &Service{store: store, recorder: recorder}
}

func (s *Service) CreateFeature(ctx context.Context, code, name string) (*Feature, error) {
	code = strings.TrimSpace(strings.ToLower(code))
	name = strings.TrimSpace(name)
	if code == "" || name == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "feature code and name are required")
	}

	now := requestcontext.Now(ctx)
	f := &Feature{
		ID:        uuid.New(),
		Code:      code,
		Name:      name,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.Create(ctx, f); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "feature code must be unique")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create feature")
	}

	s.recorder.EntityCreated(ctx, requestcontext.UserID(ctx), audit.EntityFeature, f.ID, f.Code, f.Snapshot())
	return f, nil
}

func (s *Service) GetFeatureByCode(ctx context.Context, code string) (*Feature, error) {
	f, err := s.store.FindByCode(ctx, code)
	if err != nil {
		return nil, wrapFeatureErr(err)
	}
	return f, nil
}

func (s *Service) ListFeatures(ctx context.Context) ([]*Feature, error) {
	return s.store.List(ctx)
}

// ToggleFeature flips the enforceability of a feature. Deactivation takes
// effect on the next authorization decision; permission rows are untouched.
func (s *Service) ToggleFeature(ctx context.Context, id uuid.UUID, active bool) (*Feature, error) {
	f, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, wrapFeatureErr(err)
	}
	if f.Active == active {
		return nil, dErrors.Newf(dErrors.CodeConflict, "feature is already %s", activeLabel(active))
	}

	f.Active = active
	f.UpdatedAt = requestcontext.Now(ctx)
	if err := s.store.Update(ctx, f); err != nil {
		return nil, wrapFeatureErr(err)
	}

	s.recorder.FeatureToggled(ctx, requestcontext.UserID(ctx), f.ID, f.Code, active)
	return f, nil
}

func activeLabel(active bool) string {
	if active {
		return "active"
	}
	return "inactive"
}

func wrapFeatureErr(err error) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "feature not found")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "feature store failure")
}
