package fleet

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"fleettrack/internal/audit"
	"fleettrack/internal/permission"
	dErrors "fleettrack/pkg/domain-errors"
	"fleettrack/pkg/platform/sentinel"
	"fleettrack/pkg/requestcontext"
)

// ImportRow is one record of a bulk upload, addressed by unit code and
// plate rather than ids.
type ImportRow struct {
	UnitCode     string `json:"unitCode"`
	Plate        string `json:"plate"`
	Make         string `json:"make"`
	Model        string `json:"model"`
	TrackerState string `json:"trackerState"`
	Insured      string `json:"insured"`
}

// RowError reports why one row was skipped. Line is 1-based over the
// submitted rows.
type RowError struct {
	Line   int    `json:"line"`
	Reason string `json:"reason"`
}

// ImportSummary is the outcome of a bulk import.
type ImportSummary struct {
	Created int        `json:"created"`
	Updated int        `json:"updated"`
	Failed  int        `json:"failed"`
	Errors  []RowError `json:"errors,omitempty"`
}

// Import upserts trucks by (unit, plate). Rows fail individually: a bad or
// unauthorized row never aborts the batch. Unknown enum values fall back to
// their unknown variants instead of failing the row.
func (s *Service) Import(ctx context.Context, rows []ImportRow) (*ImportSummary, error) {
	userID := requestcontext.UserID(ctx)
	if userID == uuid.Nil {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}

	summary := &ImportSummary{}
	for i, row := range rows {
		created, err := s.importRow(ctx, row)
		if err != nil {
			// Resolver outages abort the batch; row-level problems don't.
			if dErrors.HasCode(err, dErrors.CodeUnavailable) {
				return nil, err
			}
			summary.Failed++
			summary.Errors = append(summary.Errors, RowError{Line: i + 1, Reason: dErrors.MessageOf(err)})
			continue
		}
		if created {
			summary.Created++
		} else {
			summary.Updated++
		}
	}

	s.recorder.ImportCompleted(ctx, userID, audit.EntityTruck, summary.Created, summary.Updated, summary.Failed)
	return summary, nil
}

func (s *Service) importRow(ctx context.Context, row ImportRow) (bool, error) {
	unitCode := strings.TrimSpace(strings.ToUpper(row.UnitCode))
	plate := strings.TrimSpace(strings.ToUpper(row.Plate))
	if unitCode == "" || plate == "" {
		return false, dErrors.New(dErrors.CodeBadRequest, "unit code and plate are required")
	}

	unit, err := s.units.FindByCode(ctx, unitCode)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return false, dErrors.Newf(dErrors.CodeBadRequest, "unknown unit: %s", unitCode)
		}
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "unit lookup failed")
	}
	if !unit.Active {
		return false, dErrors.Newf(dErrors.CodeConflict, "unit is inactive: %s", unitCode)
	}

	existing, err := s.store.FindByPlate(ctx, unit.ID, plate)
	switch {
	case err == nil:
		if err := s.authorize(ctx, permission.ActionEdit, &unit.ID); err != nil {
			return false, err
		}
		before := existing.Snapshot()
		existing.Make = strings.TrimSpace(row.Make)
		existing.Model = strings.TrimSpace(row.Model)
		existing.TrackerState = ParseInstallState(row.TrackerState)
		existing.Insured = ParseTriState(row.Insured)
		existing.Active = true
		existing.UpdatedAt = requestcontext.Now(ctx)
		if err := s.store.Update(ctx, existing); err != nil {
			return false, wrapTruckErr(err)
		}
		if diff := audit.ComputeDiff(before, existing.Snapshot()); diff != nil {
			s.recorder.EntityUpdated(ctx, requestcontext.UserID(ctx), audit.EntityTruck, existing.ID, existing.Plate, diff)
		}
		return false, nil

	case errors.Is(err, sentinel.ErrNotFound):
		if err := s.authorize(ctx, permission.ActionCreate, &unit.ID); err != nil {
			return false, err
		}
		now := requestcontext.Now(ctx)
		truck := &Truck{
			ID:           uuid.New(),
			UnitID:       unit.ID,
			Plate:        plate,
			Make:         strings.TrimSpace(row.Make),
			Model:        strings.TrimSpace(row.Model),
			TrackerState: ParseInstallState(row.TrackerState),
			Insured:      ParseTriState(row.Insured),
			Active:       true,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := s.store.Create(ctx, truck); err != nil {
			return false, wrapTruckErr(err)
		}
		s.recorder.EntityCreated(ctx, requestcontext.UserID(ctx), audit.EntityTruck, truck.ID, truck.Plate, truck.Snapshot())
		return true, nil

	default:
		return false, wrapTruckErr(err)
	}
}
