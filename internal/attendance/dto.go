package attendance

import "time"

const (
	SortCheckInTime  = "check_in_time"
	SortCheckOutTime = "check_out_time"
	SortTransferTime = "transfer_time"
	SortStatus       = "status"
	SortCenterID     = "center_id"

	DefaultSort      = SortCheckInTime
	DefaultPageLimit = 50
	MaxPageLimit     = 200
	DateLayout       = "2006-01-02"
)

type CheckInRequest struct {
	IndividualID int64      `json:"individual_id" binding:"required"`
	CenterID     int64      `json:"center_id" binding:"required"`
	EventID      int64      `json:"event_id" binding:"required"`
	HouseholdID  int64      `json:"household_id" binding:"required"`
	RecordedBy   *string    `json:"recorded_by_user_id,omitempty"`
	CheckInTime  *time.Time `json:"check_in_time,omitempty"`
	Notes        *string    `json:"notes,omitempty"`
}

type CheckOutRequest struct {
	CheckOutTime *time.Time `json:"check_out_time,omitempty"`
	Notes        *string    `json:"notes,omitempty"`
}

type TransferRequest struct {
	TransferToCenterID int64      `json:"transfer_to_center_id" binding:"required"`
	TransferTime       *time.Time `json:"transfer_time,omitempty"`
	RecordedBy         *string    `json:"recorded_by_user_id,omitempty"`
	Notes              *string    `json:"notes,omitempty"`
}

type RecordResponse struct {
	RecordID             int64      `json:"record_id"`
	RecordULID           string     `json:"record_ulid"`
	IndividualID         int64      `json:"individual_id"`
	HouseholdID          int64      `json:"household_id"`
	CenterID             int64      `json:"center_id"`
	EventID              int64      `json:"event_id"`
	Status               string     `json:"status"`
	CheckInTime          time.Time  `json:"check_in_time"`
	CheckOutTime         *time.Time `json:"check_out_time,omitempty"`
	TransferTime         *time.Time `json:"transfer_time,omitempty"`
	TransferFromCenterID *int64     `json:"transfer_from_center_id,omitempty"`
	TransferToCenterID   *int64     `json:"transfer_to_center_id,omitempty"`
	RecordedBy           string     `json:"recorded_by_user_id"`
	Notes                *string    `json:"notes,omitempty"`
	IndividualName       string     `json:"individual_name,omitempty"`
	CenterName           string     `json:"center_name,omitempty"`
	EventName            string     `json:"event_name,omitempty"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

// CheckInResponse carries the resulting record plus transfer metadata so the
// operator can see where the evacuee came from.
type CheckInResponse struct {
	Record             RecordResponse `json:"record"`
	TransferOccurred   bool           `json:"transfer_occurred"`
	PreviousCenterID   *int64         `json:"previous_center_id,omitempty"`
	PreviousCenterName *string        `json:"previous_center_name,omitempty"`
}

// TransferResponse is the transferred audit record plus the id of the new
// active record at the destination.
type TransferResponse struct {
	Record      RecordResponse `json:"record"`
	NewRecordID int64          `json:"new_record_id"`
}

type ListQuery struct {
	CenterID     *int64
	IndividualID *int64
	EventID      *int64
	HouseholdID  *int64
	Status       *string
	Date         *string // YYYY-MM-DD, matched against check_in_time
	Search       *string // matched against individual display name
	Page         int
	Limit        int
	SortBy       string
	SortOrder    string // asc / desc
}

type TransferListQuery struct {
	CenterID  *int64 // matches either side of the transfer
	Page      int
	Limit     int
	SortBy    string
	SortOrder string
}

type Pagination struct {
	CurrentPage int   `json:"current_page"`
	TotalPages  int   `json:"total_pages"`
	TotalItems  int64 `json:"total_items"`
	Limit       int   `json:"limit"`
}

type PagedRecords struct {
	Results    []RecordResponse `json:"results"`
	Pagination Pagination       `json:"pagination"`
}

// RecalcResult is one center's occupancy reconciliation outcome.
type RecalcResult struct {
	CenterID  int64 `json:"center_id"`
	Previous  int   `json:"previous_occupancy"`
	Occupancy int   `json:"occupancy"`
}

func newPagination(page, limit int, total int64) Pagination {
	pages := int((total + int64(limit) - 1) / int64(limit))
	return Pagination{
		CurrentPage: page,
		TotalPages:  pages,
		TotalItems:  total,
		Limit:       limit,
	}
}
