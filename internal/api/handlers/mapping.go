package handlers

import (
	"fleet-sequencing-service/internal/api/dto"
	"fleet-sequencing-service/internal/domain"
)

func toTimelineResponse(driverID int64, items []domain.TimelineItem) dto.TimelineResponse {
	res := dto.TimelineResponse{DriverID: driverID, Items: make([]dto.TimelineItemResponse, 0, len(items))}
	for i, it := range items {
		item := dto.TimelineItemResponse{Index: i, Kind: string(it.Kind), ID: it.ID()}
		if it.Kind == domain.KindOrder {
			o := toOrderResponse(it.Order)
			item.Order = &o
		} else {
			s := toStopResponse(it.Stop)
			item.Stop = &s
		}
		res.Items = append(res.Items, item)
	}
	return res
}

func toOrderResponse(o *domain.Order) dto.OrderResponse {
	return dto.OrderResponse{
		ID:               o.ID,
		DeliveryAddress:  o.DeliveryAddress,
		DriverID:         o.DriverID,
		DeliverySequence: o.DeliverySequence,
		Status:           string(o.Status),
		CreatedAt:        o.CreatedAt,
	}
}

func toStopResponse(s *domain.Stop) dto.StopResponse {
	return dto.StopResponse{
		ID:               s.ID,
		DriverID:         s.DriverID,
		Name:             s.Name,
		Location:         s.Location,
		Instruction:      s.Instruction,
		Payment:          s.Payment,
		InsertAfterIndex: s.InsertAfterIndex,
		Sequence:         s.Sequence,
		CreatedAt:        s.CreatedAt,
	}
}

func toOptimizationResponse(r *domain.OptimizationResult) dto.OptimizationResponse {
	return dto.OptimizationResponse{
		DriverID:           r.DriverID,
		CurrentOrderIDs:    nonNil(r.CurrentOrderIDs),
		ProposedOrderIDs:   nonNil(r.ProposedOrderIDs),
		UnresolvedOrderIDs: nonNil(r.UnresolvedOrderIDs),
		Current:            dto.RouteTotals{DistanceMeters: r.Current.DistanceMeters, DurationSeconds: r.Current.DurationSeconds},
		Proposed:           dto.RouteTotals{DistanceMeters: r.Proposed.DistanceMeters, DurationSeconds: r.Proposed.DurationSeconds},
		Savings: dto.Savings{
			TimeSavedMinutes: r.Savings.TimeSavedMinutes,
			DistanceSavedKm:  r.Savings.DistanceSavedKm,
			CostSaved:        r.Savings.CostSaved,
		},
		AlreadyOptimized: r.AlreadyOptimized,
	}
}

// nonNil keeps empty id lists as [] rather than null in responses.
func nonNil(ids []int64) []int64 {
	if ids == nil {
		return []int64{}
	}
	return ids
}
