package org

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

// Service orchestrates organizational-unit administration. Every mutation
// is audited with field-level values; the actor comes from the request
// context.
type Service struct {
	store    Store
	recorder *audit.Recorder
}

func NewService(store Store, recorder *audit.Recorder) *Service {
	return &Service{store: store, recorder: recorder}
}

func (s *Service) CreateUnit(ctx context.Context, name, code string) (*Unit, error) {
	name = strings.TrimSpace(name)
	code = strings.TrimSpace(strings.ToUpper(code))
	if name == "" || code == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "unit name and code are required")
	}

	now := requestcontext.Now(ctx)
	unit := &Unit{
		ID:        uuid.New(),
		Name:      name,
		Code:      code,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.Create(ctx, unit); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "unit code must be unique")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create unit")
	}

	s.recorder.EntityCreated(ctx, requestcontext.UserID(ctx), audit.EntityUnit, unit.ID, unit.Code, unit.Snapshot())
	return unit, nil
}

func (s *Service) GetUnit(ctx context.Context, id uuid.UUID) (*Unit, error) {
	unit, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, wrapUnitErr(err)
	}
	return unit, nil
}

func (s *Service) ListUnits(ctx context.Context, activeOnly bool) ([]*Unit, error) {
	return s.store.List(ctx, activeOnly)
}

func (s *Service) RenameUnit(ctx context.Context, id uuid.UUID, name string) (*Unit, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "unit name is required")
	}
	return s.updateUnit(ctx, id, func(u *Unit) error {
		u.Name = name
		return nil
	})
}

// DeactivateUnit soft-disables a unit. Grants referencing it stay in place
// but the unit no longer appears in accessible-unit computations.
func (s *Service) DeactivateUnit(ctx context.Context, id uuid.UUID) (*Unit, error) {
	return s.updateUnit(ctx, id, func(u *Unit) error {
		if !u.Active {
			return dErrors.New(dErrors.CodeConflict, "unit is already inactive")
		}
		u.Active = false
		return nil
	})
}

func (s *Service) ReactivateUnit(ctx context.Context, id uuid.UUID) (*Unit, error) {
	return s.updateUnit(ctx, id, func(u *Unit) error {
		if u.Active {
			return dErrors.New(dErrors.CodeConflict, "unit is already active")
		}
		u.Active = true
		return nil
	})
}

func (s *Service) updateUnit(ctx context.Context, id uuid.UUID, mutate func(*Unit) error) (*Unit, error) {
	unit, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, wrapUnitErr(err)
	}

	before := unit.Snapshot()
	if err := mutate(unit); err != nil {
		return nil, err
	}
	unit.UpdatedAt = requestcontext.Now(ctx)

	if err := s.store.Update(ctx, unit); err != nil {
		return nil, wrapUnitErr(err)
	}

	if diff := audit.ComputeDiff(before, unit.Snapshot()); diff != nil {
		s.recorder.EntityUpdated(ctx, requestcontext.UserID(ctx), audit.EntityUnit, unit.ID, unit.Code, diff)
	}
	return unit, nil
}

func wrapUnitErr(err error) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "unit not found")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "unit store failure")
}
