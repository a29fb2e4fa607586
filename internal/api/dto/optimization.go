package dto

type RouteTotals struct {
	DistanceMeters  int `json:"distance_meters"`
	DurationSeconds int `json:"duration_seconds"`
}

type Savings struct {
	TimeSavedMinutes float64 `json:"time_saved_minutes"`
	DistanceSavedKm  float64 `json:"distance_saved_km"`
	CostSaved        float64 `json:"cost_saved"`
}

type OptimizationResponse struct {
	DriverID           int64       `json:"driver_id"`
	CurrentOrderIDs    []int64     `json:"current_order_ids"`
	ProposedOrderIDs   []int64     `json:"proposed_order_ids"`
	UnresolvedOrderIDs []int64     `json:"unresolved_order_ids"`
	Current            RouteTotals `json:"current"`
	Proposed           RouteTotals `json:"proposed"`
	Savings            Savings     `json:"savings"`
	AlreadyOptimized   bool        `json:"already_optimized"`
}

type SkippedDriverResponse struct {
	DriverID int64  `json:"driver_id"`
	Reason   string `json:"reason"`
}

type OptimizationReportResponse struct {
	Results []OptimizationResponse  `json:"results"`
	Skipped []SkippedDriverResponse `json:"skipped"`
}

// ApplyOptimizationRequest echoes the accepted order of a proposal.
type ApplyOptimizationRequest struct {
	ProposedOrderIDs   []int64 `json:"proposed_order_ids"`
	UnresolvedOrderIDs []int64 `json:"unresolved_order_ids"`
}
