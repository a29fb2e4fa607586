package handlers

import (
	"context"
	"fleet-sequencing-service/internal/api/dto"
	"fleet-sequencing-service/internal/domain"
	"net/http"
)

func (h *RouteHandler) CreateStop(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateStopRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	in := domain.NewStop{
		DriverID:         req.DriverID,
		Name:             req.Name,
		Location:         req.Location,
		Instruction:      req.Instruction,
		Payment:          req.Payment,
		InsertAfterIndex: domain.AfterAllOrders,
	}
	if req.InsertAfterIndex != nil {
		in.InsertAfterIndex = *req.InsertAfterIndex
	}

	var created *domain.Stop
	err := h.mutate(r.Context(), func(ctx context.Context) error {
		var err error
		created, err = h.Sequences.CreateStop(ctx, in)
		return err
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusCreated, toStopResponse(created))
}

func (h *RouteHandler) UpdateStop(w http.ResponseWriter, r *http.Request) {
	stopID, ok := pathID(w, r, "stopID")
	if !ok {
		return
	}

	var req dto.UpdateStopRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	patch := domain.StopPatch{
		Name:             req.Name,
		Location:         req.Location,
		Instruction:      req.Instruction,
		Payment:          req.Payment,
		InsertAfterIndex: req.InsertAfterIndex,
		Sequence:         req.Sequence,
	}

	err := h.mutate(r.Context(), func(ctx context.Context) error {
		return h.Sequences.UpdateStop(ctx, stopID, patch)
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	st, ok := h.Store.Snapshot().FindStop(stopID)
	if !ok {
		writeError(w, r, http.StatusNotFound, "stop not found")
		return
	}
	writeJSON(w, r, http.StatusOK, toStopResponse(st))
}

func (h *RouteHandler) DeleteStop(w http.ResponseWriter, r *http.Request) {
	stopID, ok := pathID(w, r, "stopID")
	if !ok {
		return
	}

	err := h.mutate(r.Context(), func(ctx context.Context) error {
		return h.Sequences.DeleteStop(ctx, stopID)
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
