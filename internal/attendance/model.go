package attendance

import (
	"database/sql"
	"time"
)

// Record statuses. A record is "active" while status is checked_in and
// check_out_time is NULL; every other combination is terminal.
const (
	StatusCheckedIn   = "checked_in"
	StatusCheckedOut  = "checked_out"
	StatusTransferred = "transferred"
)

// Record is one row of attendance_records.
type Record struct {
	RecordID             int64
	RecordULID           string
	IndividualID         int64
	HouseholdID          int64
	CenterID             int64
	EventID              int64
	Status               string
	CheckInTime          time.Time
	CheckOutTime         sql.NullTime
	TransferTime         sql.NullTime
	TransferFromCenterID sql.NullInt64
	TransferToCenterID   sql.NullInt64
	RecordedBy           string
	Notes                sql.NullString
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// Active reports whether this record is the individual's open presence record.
func (r *Record) Active() bool {
	return r.Status == StatusCheckedIn && !r.CheckOutTime.Valid
}

// RecordDetail is a Record joined with collaborator display names for
// read-side responses.
type RecordDetail struct {
	Record
	IndividualName string
	CenterName     string
	EventName      string
}

// Summary holds per-center (optionally per-event) record counts.
type Summary struct {
	TotalEntries     int64 `json:"total_entries"`
	CurrentCheckedIn int64 `json:"current_checked_in"`
	TotalCheckedOut  int64 `json:"total_checked_out"`
	TotalTransferred int64 `json:"total_transferred"`
}

func (d *RecordDetail) toDTO() RecordResponse {
	resp := RecordResponse{
		RecordID:       d.RecordID,
		RecordULID:     d.RecordULID,
		IndividualID:   d.IndividualID,
		HouseholdID:    d.HouseholdID,
		CenterID:       d.CenterID,
		EventID:        d.EventID,
		Status:         d.Status,
		CheckInTime:    d.CheckInTime,
		RecordedBy:     d.RecordedBy,
		IndividualName: d.IndividualName,
		CenterName:     d.CenterName,
		EventName:      d.EventName,
		CreatedAt:      d.CreatedAt,
		UpdatedAt:      d.UpdatedAt,
	}
	if d.CheckOutTime.Valid {
		t := d.CheckOutTime.Time
		resp.CheckOutTime = &t
	}
	if d.TransferTime.Valid {
		t := d.TransferTime.Time
		resp.TransferTime = &t
	}
	if d.TransferFromCenterID.Valid {
		v := d.TransferFromCenterID.Int64
		resp.TransferFromCenterID = &v
	}
	if d.TransferToCenterID.Valid {
		v := d.TransferToCenterID.Int64
		resp.TransferToCenterID = &v
	}
	if d.Notes.Valid {
		v := d.Notes.String
		resp.Notes = &v
	}
	return resp
}
