package handlers

import (
	"context"
	"fleet-sequencing-service/internal/api/dto"
	"fleet-sequencing-service/internal/domain"
	"fleet-sequencing-service/internal/services"
	"net/http"
)

// ProposeAll runs one optimization pass per driver. Nothing is persisted.
func (h *RouteHandler) ProposeAll(w http.ResponseWriter, r *http.Request) {
	report, err := h.Optimizer.Propose(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	res := dto.OptimizationReportResponse{
		Results: make([]dto.OptimizationResponse, 0, len(report.Results)),
		Skipped: make([]dto.SkippedDriverResponse, 0, len(report.Skipped)),
	}
	for _, rr := range report.Results {
		res.Results = append(res.Results, toOptimizationResponse(rr))
	}
	for _, s := range report.Skipped {
		res.Skipped = append(res.Skipped, dto.SkippedDriverResponse{DriverID: s.DriverID, Reason: s.Reason})
	}

	writeJSON(w, r, http.StatusOK, res)
}

// ProposeDriver optimizes one driver. A driver that cannot be optimized is
// reported as 422 with the skip reason.
func (h *RouteHandler) ProposeDriver(w http.ResponseWriter, r *http.Request) {
	driverID, ok := pathID(w, r, "driverID")
	if !ok {
		return
	}

	result, err := h.Optimizer.ProposeForDriver(r.Context(), driverID)
	if reason, skipped := services.SkipReason(err); skipped {
		writeJSON(w, r, http.StatusUnprocessableEntity, dto.SkippedDriverResponse{DriverID: driverID, Reason: reason})
		return
	}
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, toOptimizationResponse(result))
}

// ApplyOptimization persists an accepted proposal. The body echoes the
// proposal's order; a route that changed since is rejected with 409.
func (h *RouteHandler) ApplyOptimization(w http.ResponseWriter, r *http.Request) {
	driverID, ok := pathID(w, r, "driverID")
	if !ok {
		return
	}

	var req dto.ApplyOptimizationRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if len(req.ProposedOrderIDs) == 0 {
		writeError(w, r, http.StatusBadRequest, "proposed_order_ids is required")
		return
	}

	proposal := &domain.OptimizationResult{
		DriverID:           driverID,
		ProposedOrderIDs:   req.ProposedOrderIDs,
		UnresolvedOrderIDs: req.UnresolvedOrderIDs,
	}

	err := h.mutateSelfRefreshing(r.Context(), func(ctx context.Context) error {
		return h.Optimizer.Apply(ctx, proposal)
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, toTimelineResponse(driverID, h.Store.TimelineFor(driverID)))
}
