package domain

// RouteTotals is the summed travel along a visiting order, starting at the driver.
type RouteTotals struct {
	DistanceMeters  int
	DurationSeconds int
}

// Savings is the estimated gain of the proposed order over the current one.
// Negative values mean the proposal is worse.
type Savings struct {
	TimeSavedMinutes float64
	DistanceSavedKm  float64
	CostSaved        float64
}

// Represents a proposed visiting order for a single driver.
// It is planning data only; nothing is persisted until it is applied.
//
// CurrentOrderIDs and ProposedOrderIDs cover the geocoded orders only.
// UnresolvedOrderIDs lists the driver's remaining orders in their prior order.
type OptimizationResult struct {
	DriverID           int64
	CurrentOrderIDs    []int64
	ProposedOrderIDs   []int64
	UnresolvedOrderIDs []int64
	Current            RouteTotals
	Proposed           RouteTotals
	Savings            Savings
	AlreadyOptimized   bool
}

// SkippedDriver records why no proposal was produced for a driver.
type SkippedDriver struct {
	DriverID int64
	Reason   string
}

type OptimizationReport struct {
	Results []*OptimizationResult
	Skipped []SkippedDriver
}
