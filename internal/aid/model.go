package aid

import (
	"database/sql"
	"time"
)

// Allocation statuses. remaining_quantity is denormalized against the
// distribution ledger; Recalculate corrects drift.
const (
	StatusAllocated            = "allocated"
	StatusPartiallyDistributed = "partially_distributed"
	StatusDepleted             = "depleted"
)

// Allocation is one row of aid_allocations.
type Allocation struct {
	AllocationID      int64
	AllocationULID    string
	CenterID          int64
	CategoryID        int64
	TotalQuantity     int
	RemainingQuantity int
	Unit              string
	Status            string
	AllocatedBy       sql.NullString
	Note              sql.NullString
	AllocatedAt       time.Time
	UpdatedAt         time.Time
}

// Distribution is one row of aid_distributions.
type Distribution struct {
	DistributionID   int64
	DistributionULID string
	AllocationID     int64
	Quantity         int
	HouseholdID      sql.NullInt64
	DistributedBy    sql.NullString
	DistributedAt    time.Time
	Note             sql.NullString
}

// allocStatus derives the status from the quantity pair.
func allocStatus(total, remaining int) string {
	switch {
	case remaining <= 0:
		return StatusDepleted
	case remaining < total:
		return StatusPartiallyDistributed
	default:
		return StatusAllocated
	}
}

type AllocationFilter struct {
	CenterID *int64
	Status   *string
	Limit    int
	Offset   int
}
