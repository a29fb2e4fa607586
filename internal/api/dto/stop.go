package dto

type CreateStopRequest struct {
	DriverID         int64   `json:"driver_id"`
	Name             string  `json:"name"`
	Location         string  `json:"location"`
	Instruction      string  `json:"instruction"`
	Payment          float64 `json:"payment"`
	InsertAfterIndex *int    `json:"insert_after_index"`
}

// UpdateStopRequest changes only the fields present in the body.
type UpdateStopRequest struct {
	Name             *string  `json:"name"`
	Location         *string  `json:"location"`
	Instruction      *string  `json:"instruction"`
	Payment          *float64 `json:"payment"`
	InsertAfterIndex *int     `json:"insert_after_index"`
	Sequence         *int     `json:"sequence"`
}
