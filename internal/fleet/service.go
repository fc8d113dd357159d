package fleet

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"fleettrack/internal/audit"
	"fleettrack/internal/authz"
	"fleettrack/internal/org"
	"fleettrack/internal/permission"
	dErrors "fleettrack/pkg/domain-errors"
	"fleettrack/pkg/platform/sentinel"
	"fleettrack/pkg/requestcontext"
)

// FeatureCode is the feature every truck operation is authorized against.
const FeatureCode = "trucks"

// Authorizer decides feature/action/unit access. Satisfied by authz.Engine.
type Authorizer interface {
	Authorize(ctx context.Context, userID uuid.UUID, featureCode string, action permission.Action, targetUnitID *uuid.UUID) (authz.Decision, error)
}

// ScopeSource answers which units the caller can see. Satisfied by
// rbac.Service.
type ScopeSource interface {
	AccessibleUnits(ctx context.Context, userID uuid.UUID) (map[uuid.UUID]bool, error)
	IsAdministrator(ctx context.Context, userID uuid.UUID) (bool, error)
}

// UnitSource resolves units for truck placement. Satisfied by org.Store.
type UnitSource interface {
	FindByID(ctx context.Context, id uuid.UUID) (*org.Unit, error)
	FindByCode(ctx context.Context, code string) (*org.Unit, error)
}

// Service manages the truck registry. The route guard has already
// authorized the feature and action by the time a request reaches it; the
// service re-checks against the concrete unit of each truck, since the unit
// is often only known after loading the record.
type Service struct {
	store      Store
	units      UnitSource
	authorizer Authorizer
	scope      ScopeSource
	recorder   *audit.Recorder
}

func NewService(store Store, units UnitSource, authorizer Authorizer, scope ScopeSource, recorder *audit.Recorder) *Service {
	return &Service{store: store, units: units, authorizer: authorizer, scope: scope, recorder: recorder}
}

// TruckInput is the boundary representation of a truck mutation. Enum
// fields fall back to their unknown variants instead of rejecting the
// request.
type TruckInput struct {
	UnitID       uuid.UUID `json:"unitId"`
	Plate        string    `json:"plate"`
	Make         string    `json:"make"`
	Model        string    `json:"model"`
	TrackerState string    `json:"trackerState"`
	Insured      string    `json:"insured"`
}

func (s *Service) CreateTruck(ctx context.Context, input TruckInput) (*Truck, error) {
	if err := s.authorize(ctx, permission.ActionCreate, &input.UnitID); err != nil {
		return nil, err
	}

	plate := strings.TrimSpace(strings.ToUpper(input.Plate))
	if plate == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "plate is required")
	}
	unit, err := s.units.FindByID(ctx, input.UnitID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeBadRequest, "unknown unit")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "unit lookup failed")
	}
	if !unit.Active {
		return nil, dErrors.New(dErrors.CodeConflict, "unit is inactive")
	}

	now := requestcontext.Now(ctx)
	truck := &Truck{
		ID:           uuid.New(),
		UnitID:       input.UnitID,
		Plate:        plate,
		Make:         strings.TrimSpace(input.Make),
		Model:        strings.TrimSpace(input.Model),
		TrackerState: ParseInstallState(input.TrackerState),
		Insured:      ParseTriState(input.Insured),
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.Create(ctx, truck); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "plate already registered in this unit")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create truck")
	}

	s.recorder.EntityCreated(ctx, requestcontext.UserID(ctx), audit.EntityTruck, truck.ID, truck.Plate, truck.Snapshot())
	return truck, nil
}

func (s *Service) GetTruck(ctx context.Context, id uuid.UUID) (*Truck, error) {
	truck, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, wrapTruckErr(err)
	}
	if err := s.authorize(ctx, permission.ActionView, &truck.UnitID); err != nil {
		return nil, err
	}
	return truck, nil
}

// ListTrucks returns trucks visible to the caller. With a unit filter the
// caller must be able to see that unit; without one the list spans the
// caller's accessible units, or every unit for administrators.
func (s *Service) ListTrucks(ctx context.Context, unitID *uuid.UUID, activeOnly bool) ([]*Truck, error) {
	if err := s.authorize(ctx, permission.ActionView, unitID); err != nil {
		return nil, err
	}
	if unitID != nil {
		return s.store.List(ctx, []uuid.UUID{*unitID}, activeOnly)
	}

	userID := requestcontext.UserID(ctx)
	admin, err := s.scope.IsAdministrator(ctx, userID)
	if err != nil {
		return nil, err
	}
	if admin {
		return s.store.List(ctx, nil, activeOnly)
	}

	accessible, err := s.scope.AccessibleUnits(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(accessible) == 0 {
		return nil, nil
	}
	unitIDs := make([]uuid.UUID, 0, len(accessible))
	for id := range accessible {
		unitIDs = append(unitIDs, id)
	}
	return s.store.List(ctx, unitIDs, activeOnly)
}

func (s *Service) UpdateTruck(ctx context.Context, id uuid.UUID, input TruckInput) (*Truck, error) {
	truck, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, wrapTruckErr(err)
	}
	if err := s.authorize(ctx, permission.ActionEdit, &truck.UnitID); err != nil {
		return nil, err
	}
	// Moving a truck needs edit rights on the destination unit too.
	if input.UnitID != truck.UnitID {
		if err := s.authorize(ctx, permission.ActionEdit, &input.UnitID); err != nil {
			return nil, err
		}
		if _, err := s.units.FindByID(ctx, input.UnitID); err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return nil, dErrors.New(dErrors.CodeBadRequest, "unknown unit")
			}
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "unit lookup failed")
		}
	}

	plate := strings.TrimSpace(strings.ToUpper(input.Plate))
	if plate == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "plate is required")
	}

	before := truck.Snapshot()
	truck.UnitID = input.UnitID
	truck.Plate = plate
	truck.Make = strings.TrimSpace(input.Make)
	truck.Model = strings.TrimSpace(input.Model)
	truck.TrackerState = ParseInstallState(input.TrackerState)
	truck.Insured = ParseTriState(input.Insured)
	truck.UpdatedAt = requestcontext.Now(ctx)

	if err := s.store.Update(ctx, truck); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "plate already registered in this unit")
		}
		return nil, wrapTruckErr(err)
	}

	if diff := audit.ComputeDiff(before, truck.Snapshot()); diff != nil {
		s.recorder.EntityUpdated(ctx, requestcontext.UserID(ctx), audit.EntityTruck, truck.ID, truck.Plate, diff)
	}
	return truck, nil
}

// DeactivateTruck soft-removes a truck from the registry.
func (s *Service) DeactivateTruck(ctx context.Context, id uuid.UUID) error {
	truck, err := s.store.FindByID(ctx, id)
	if err != nil {
		return wrapTruckErr(err)
	}
	if err := s.authorize(ctx, permission.ActionDelete, &truck.UnitID); err != nil {
		return err
	}
	if !truck.Active {
		return dErrors.New(dErrors.CodeConflict, "truck is already inactive")
	}

	before := truck.Snapshot()
	truck.Active = false
	truck.UpdatedAt = requestcontext.Now(ctx)
	if err := s.store.Update(ctx, truck); err != nil {
		return wrapTruckErr(err)
	}

	s.recorder.EntityDeleted(ctx, requestcontext.UserID(ctx), audit.EntityTruck, truck.ID, truck.Plate, before)
	return nil
}

// Export returns the caller's visible trucks for download and records the
// export in the audit trail.
func (s *Service) Export(ctx context.Context, unitID *uuid.UUID) ([]*Truck, error) {
	trucks, err := s.ListTrucks(ctx, unitID, false)
	if err != nil {
		return nil, err
	}
	s.recorder.ExportCompleted(ctx, requestcontext.UserID(ctx), audit.EntityTruck, len(trucks))
	return trucks, nil
}

func (s *Service) authorize(ctx context.Context, action permission.Action, unitID *uuid.UUID) error {
	userID := requestcontext.UserID(ctx)
	if userID == uuid.Nil {
		return dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	decision, err := s.authorizer.Authorize(ctx, userID, FeatureCode, action, unitID)
	if err != nil {
		return err
	}
	if !decision.Allowed {
		return dErrors.Newf(dErrors.CodeForbidden, "access denied: %s", decision.Reason)
	}
	return nil
}

func wrapTruckErr(err error) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "truck not found")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "truck store failure")
}
