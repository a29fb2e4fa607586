package handlers

import (
	"context"
	"fleet-sequencing-service/internal/api/dto"
	"fleet-sequencing-service/internal/domain"
	"fleet-sequencing-service/internal/platform/obs"
	"fleet-sequencing-service/internal/ports"
	"fleet-sequencing-service/internal/services"
	"log"
	"net/http"
	"sync"
)

// RouteHandler exposes timelines and every sequencing mutation.
//
// Mutations are serialized so each one, and the store reload that follows it,
// completes before the next request reads the store.
type RouteHandler struct {
	Drivers   ports.DriverDirectory
	Store     *services.RouteStore
	Sequences *services.SequenceManager
	Optimizer *services.Optimizer
	Drag      *services.DragReassigner

	mu sync.Mutex
}

// mutate runs fn under the mutation lock and reloads the store afterwards.
// A failed mutation still reloads so the store matches what was persisted.
func (h *RouteHandler) mutate(ctx context.Context, fn func(ctx context.Context) error) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	err := fn(ctx)
	if rerr := h.Sequences.Refresh(ctx); rerr != nil {
		if err != nil {
			log.Printf("req_id=%s resync after failed mutation: err=%v", obs.RequestID(ctx), rerr)
			return err
		}
		return rerr
	}
	return err
}

// mutateSelfRefreshing is mutate for operations that reload the store on
// success themselves; only failures trigger a resync.
func (h *RouteHandler) mutateSelfRefreshing(ctx context.Context, fn func(ctx context.Context) error) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	err := fn(ctx)
	if err != nil {
		if rerr := h.Sequences.Refresh(ctx); rerr != nil {
			log.Printf("req_id=%s resync after failed mutation: err=%v", obs.RequestID(ctx), rerr)
		}
	}
	return err
}

func (h *RouteHandler) ListDrivers(w http.ResponseWriter, r *http.Request) {
	drivers, err := h.Drivers.ListDrivers(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	res := dto.ListDriversResponse{Drivers: make([]dto.DriverResponse, 0, len(drivers))}
	for _, d := range drivers {
		dr := dto.DriverResponse{ID: d.ID, Name: d.Name, Active: d.Active}
		if d.Location != nil {
			lon, lat := d.Location.Lon, d.Location.Lat
			dr.Lon, dr.Lat = &lon, &lat
		}
		res.Drivers = append(res.Drivers, dr)
	}

	writeJSON(w, r, http.StatusOK, res)
}

// Timeline returns a driver's merged orders and stops in visiting order.
// A driver with nothing assigned has an empty timeline.
func (h *RouteHandler) Timeline(w http.ResponseWriter, r *http.Request) {
	driverID, ok := pathID(w, r, "driverID")
	if !ok {
		return
	}
	writeJSON(w, r, http.StatusOK, toTimelineResponse(driverID, h.Store.TimelineFor(driverID)))
}

// Refresh reloads the store from persistence.
func (h *RouteHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.Sequences.Refresh(r.Context()); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *RouteHandler) MoveOrder(w http.ResponseWriter, r *http.Request) {
	driverID, ok := pathID(w, r, "driverID")
	if !ok {
		return
	}
	orderID, ok := pathID(w, r, "orderID")
	if !ok {
		return
	}

	var req dto.MoveRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	dir, err := services.ParseDirection(req.Direction)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "direction must be up or down")
		return
	}

	var res services.MoveResult
	err = h.mutate(r.Context(), func(ctx context.Context) error {
		var err error
		res, err = h.Sequences.MoveOrder(ctx, driverID, orderID, dir)
		return err
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, dto.MoveResponse{
		Moved:    res.Moved,
		Timeline: toTimelineResponse(driverID, h.Store.TimelineFor(driverID)),
	})
}

func (h *RouteHandler) MoveStop(w http.ResponseWriter, r *http.Request) {
	driverID, ok := pathID(w, r, "driverID")
	if !ok {
		return
	}

	var req dto.MoveStopRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.StopIndex == nil || *req.StopIndex < 0 {
		writeError(w, r, http.StatusBadRequest, "stop_index must be a non-negative integer")
		return
	}
	dir, err := services.ParseDirection(req.Direction)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "direction must be up or down")
		return
	}

	var res services.MoveResult
	err = h.mutate(r.Context(), func(ctx context.Context) error {
		var err error
		res, err = h.Sequences.MoveStop(ctx, driverID, *req.StopIndex, dir)
		return err
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, dto.MoveResponse{
		Moved:    res.Moved,
		Timeline: toTimelineResponse(driverID, h.Store.TimelineFor(driverID)),
	})
}

// NormalizeAnchors rewrites a driver's dangling stop anchors as trailing stops.
func (h *RouteHandler) NormalizeAnchors(w http.ResponseWriter, r *http.Request) {
	driverID, ok := pathID(w, r, "driverID")
	if !ok {
		return
	}

	var updated int
	err := h.mutate(r.Context(), func(ctx context.Context) error {
		var err error
		updated, err = h.Sequences.NormalizeAnchors(ctx, driverID)
		return err
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, dto.NormalizeResponse{Updated: updated})
}

// Reassign applies a drag-and-drop of an order or stop onto another driver.
func (h *RouteHandler) Reassign(w http.ResponseWriter, r *http.Request) {
	var req dto.ReassignRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.ID <= 0 {
		writeError(w, r, http.StatusBadRequest, "id must be positive")
		return
	}

	item := services.DragItem{Kind: domain.ItemKind(req.Kind), ID: req.ID}

	var reassigned bool
	err := h.mutateSelfRefreshing(r.Context(), func(ctx context.Context) error {
		var err error
		reassigned, err = h.Drag.Drop(ctx, item, req.TargetDriverID)
		return err
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, dto.ReassignResponse{Reassigned: reassigned})
}
