package dto

import "time"

type DriverResponse struct {
	ID     int64    `json:"id"`
	Name   string   `json:"name"`
	Lon    *float64 `json:"lon"`
	Lat    *float64 `json:"lat"`
	Active bool     `json:"active"`
}

type ListDriversResponse struct {
	Drivers []DriverResponse `json:"drivers"`
}

type OrderResponse struct {
	ID               int64     `json:"id"`
	DeliveryAddress  string    `json:"delivery_address"`
	DriverID         *int64    `json:"driver_id"`
	DeliverySequence *int      `json:"delivery_sequence"`
	Status           string    `json:"status"`
	CreatedAt        time.Time `json:"created_at"`
}

type StopResponse struct {
	ID               int64     `json:"id"`
	DriverID         int64     `json:"driver_id"`
	Name             string    `json:"name"`
	Location         string    `json:"location"`
	Instruction      string    `json:"instruction"`
	Payment          float64   `json:"payment"`
	InsertAfterIndex int       `json:"insert_after_index"`
	Sequence         int       `json:"sequence"`
	CreatedAt        time.Time `json:"created_at"`
}

// TimelineItemResponse carries exactly one of Order or Stop, matching Kind.
type TimelineItemResponse struct {
	Index int            `json:"index"`
	Kind  string         `json:"kind"`
	ID    int64          `json:"id"`
	Order *OrderResponse `json:"order,omitempty"`
	Stop  *StopResponse  `json:"stop,omitempty"`
}

type TimelineResponse struct {
	DriverID int64                  `json:"driver_id"`
	Items    []TimelineItemResponse `json:"items"`
}

type MoveRequest struct {
	Direction string `json:"direction"`
}

type MoveResponse struct {
	Moved    bool             `json:"moved"`
	Timeline TimelineResponse `json:"timeline"`
}

type ReassignRequest struct {
	Kind           string `json:"kind"`
	ID             int64  `json:"id"`
	TargetDriverID int64  `json:"target_driver_id"`
}

type ReassignResponse struct {
	Reassigned bool `json:"reassigned"`
}

type NormalizeResponse struct {
	Updated int `json:"updated"`
}

// MoveStopRequest addresses a stop by its position among the driver's stops
// in timeline order.
type MoveStopRequest struct {
	StopIndex *int   `json:"stop_index"`
	Direction string `json:"direction"`
}
