package http

import (
	"encoding/csv"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"fleettrack/internal/fleet"
	dErrors "fleettrack/pkg/domain-errors"
	"fleettrack/pkg/platform/httputil"
)

// FleetHandler serves the truck registry.
type FleetHandler struct {
	fleet *fleet.Service
}

func (h *FleetHandler) Register(r chi.Router) {
	r.Route("/api/trucks", func(r chi.Router) {
		r.Get("/", h.list)
		r.Post("/", h.create)
		r.Get("/export", h.export)
		r.Post("/import", h.importTrucks)
		r.Get("/{truckID}", h.get)
		r.Put("/{truckID}", h.update)
		r.Delete("/{truckID}", h.deactivate)
	})
}

// unitFilter reads the optional ?unit= query parameter.
func unitFilter(r *http.Request) (*uuid.UUID, error) {
	raw := r.URL.Query().Get("unit")
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeBadRequest, "invalid unit id")
	}
	return &id, nil
}

func (h *FleetHandler) list(w http.ResponseWriter, r *http.Request) {
	unitID, err := unitFilter(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	trucks, err := h.fleet.ListTrucks(r.Context(), unitID, r.URL.Query().Get("active") == "true")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, trucks)
}

func (h *FleetHandler) create(w http.ResponseWriter, r *http.Request) {
	input, err := httputil.Decode[fleet.TruckInput](r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	truck, err := h.fleet.CreateTruck(r.Context(), input)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, truck)
}

func (h *FleetHandler) get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "truckID")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	truck, err := h.fleet.GetTruck(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, truck)
}

func (h *FleetHandler) update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "truckID")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	input, err := httputil.Decode[fleet.TruckInput](r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	truck, err := h.fleet.UpdateTruck(r.Context(), id, input)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, truck)
}

func (h *FleetHandler) deactivate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "truckID")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.fleet.DeactivateTruck(r.Context(), id); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type importRequest struct {
	Rows []fleet.ImportRow `json:"rows"`
}

func (h *FleetHandler) importTrucks(w http.ResponseWriter, r *http.Request) {
	req, err := httputil.Decode[importRequest](r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	summary, err := h.fleet.Import(r.Context(), req.Rows)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, summary)
}

func (h *FleetHandler) export(w http.ResponseWriter, r *http.Request) {
	unitID, err := unitFilter(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	trucks, err := h.fleet.Export(r.Context(), unitID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="trucks.csv"`)
	cw := csv.NewWriter(w)
	_ = cw.Write([]string{"unit_id", "plate", "make", "model", "tracker_state", "insured", "active"})
	for _, truck := range trucks {
		active := "false"
		if truck.Active {
			active = "true"
		}
		_ = cw.Write([]string{
			truck.UnitID.String(), truck.Plate, truck.Make, truck.Model,
			string(truck.TrackerState), string(truck.Insured), active,
		})
	}
	cw.Flush()
}
