package aid

import "time"

const (
	DefaultPageLimit = 50
	MaxPageLimit     = 200
)

type CreateAllocationRequest struct {
	CenterID      int64   `json:"center_id" binding:"required"`
	CategoryID    int64   `json:"category_id" binding:"required"`
	TotalQuantity int     `json:"total_quantity" binding:"required"`
	Unit          string  `json:"unit" binding:"required"`
	AllocatedBy   *string `json:"allocated_by,omitempty"`
	Note          *string `json:"note,omitempty"`
}

type CreateDistributionRequest struct {
	AllocationID  int64   `json:"allocation_id" binding:"required"`
	Quantity      int     `json:"quantity" binding:"required"`
	HouseholdID   *int64  `json:"household_id,omitempty"`
	DistributedBy *string `json:"distributed_by,omitempty"`
	Note          *string `json:"note,omitempty"`
}

type AllocationResponse struct {
	AllocationID      int64     `json:"allocation_id"`
	AllocationULID    string    `json:"allocation_ulid"`
	CenterID          int64     `json:"center_id"`
	CategoryID        int64     `json:"category_id"`
	TotalQuantity     int       `json:"total_quantity"`
	RemainingQuantity int       `json:"remaining_quantity"`
	DistributedSum    int       `json:"distributed_quantity"`
	Unit              string    `json:"unit"`
	Status            string    `json:"status"`
	AllocatedBy       *string   `json:"allocated_by,omitempty"`
	Note              *string   `json:"note,omitempty"`
	AllocatedAt       time.Time `json:"allocated_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

type DistributionResponse struct {
	DistributionID   int64     `json:"distribution_id"`
	DistributionULID string    `json:"distribution_ulid"`
	AllocationID     int64     `json:"allocation_id"`
	Quantity         int       `json:"quantity"`
	HouseholdID      *int64    `json:"household_id,omitempty"`
	DistributedBy    *string   `json:"distributed_by,omitempty"`
	DistributedAt    time.Time `json:"distributed_at"`
	Note             *string   `json:"note,omitempty"`
}

// RecalcResponse reports a remaining-quantity reconciliation outcome.
type RecalcResponse struct {
	AllocationID      int64  `json:"allocation_id"`
	PreviousRemaining int    `json:"previous_remaining"`
	RemainingQuantity int    `json:"remaining_quantity"`
	Status            string `json:"status"`
}

func buildAllocationResponse(a *Allocation, distributed int) AllocationResponse {
	resp := AllocationResponse{
		AllocationID:      a.AllocationID,
		AllocationULID:    a.AllocationULID,
		CenterID:          a.CenterID,
		CategoryID:        a.CategoryID,
		TotalQuantity:     a.TotalQuantity,
		RemainingQuantity: a.RemainingQuantity,
		DistributedSum:    distributed,
		Unit:              a.Unit,
		Status:            a.Status,
		AllocatedAt:       a.AllocatedAt,
		UpdatedAt:         a.UpdatedAt,
	}
	if a.AllocatedBy.Valid {
		v := a.AllocatedBy.String
		resp.AllocatedBy = &v
	}
	if a.Note.Valid {
		v := a.Note.String
		resp.Note = &v
	}
	return resp
}

func buildDistributionResponse(d *Distribution) DistributionResponse {
	resp := DistributionResponse{
		DistributionID:   d.DistributionID,
		DistributionULID: d.DistributionULID,
		AllocationID:     d.AllocationID,
		Quantity:         d.Quantity,
		DistributedAt:    d.DistributedAt,
	}
	if d.HouseholdID.Valid {
		v := d.HouseholdID.Int64
		resp.HouseholdID = &v
	}
	if d.DistributedBy.Valid {
		v := d.DistributedBy.String
		resp.DistributedBy = &v
	}
	if d.Note.Valid {
		v := d.Note.String
		resp.Note = &v
	}
	return resp
}
