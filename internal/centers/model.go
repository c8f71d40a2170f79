package centers

import (
	"database/sql"
	"time"
)

// Center is one row of the centers table. CurrentOccupancy is denormalized:
// it reflects the last reconciliation, not real time.
type Center struct {
	CenterID         int64
	Name             string
	Address          sql.NullString
	Capacity         sql.NullInt64
	CurrentOccupancy int
	IsActive         bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

type CenterResponse struct {
	CenterID         int64   `json:"center_id"`
	Name             string  `json:"name"`
	Address          *string `json:"address,omitempty"`
	Capacity         *int64  `json:"capacity,omitempty"`
	CurrentOccupancy int     `json:"current_occupancy"`
	IsActive         bool    `json:"is_active"`
}

func (c *Center) toDTO() CenterResponse {
	resp := CenterResponse{
		CenterID:         c.CenterID,
		Name:             c.Name,
		CurrentOccupancy: c.CurrentOccupancy,
		IsActive:         c.IsActive,
	}
	if c.Address.Valid {
		v := c.Address.String
		resp.Address = &v
	}
	if c.Capacity.Valid {
		v := c.Capacity.Int64
		resp.Capacity = &v
	}
	return resp
}
