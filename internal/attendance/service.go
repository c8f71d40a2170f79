package attendance

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"time"

	mysql "github.com/go-sql-driver/mysql"
	"github.com/oklog/ulid/v2"
)

// ===== injected collaborators =====

type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now().UTC() }

type IDGen interface {
	New() (string, error)
}

type ulidGen struct{}

func (ulidGen) New() (string, error) {
	t := time.Now().UTC()
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, err := ulid.New(ulid.Timestamp(t), entropy)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// CenterDirectory is the centers collaborator: display names for responses
// and the denormalized occupancy counter the Reconciler maintains.
type CenterDirectory interface {
	CenterName(ctx context.Context, id int64) (string, bool, error)
	CenterOccupancy(ctx context.Context, id int64) (int, error)
	ListCenterIDs(ctx context.Context) ([]int64, error)
	SetOccupancy(ctx context.Context, id int64, value int) error
}

// ===== Service =====

// Service is the attendance state machine. Every write path runs inside one
// store transaction; the individual's active record is locked before any
// decision is made, so two concurrent check-ins for the same individual
// serialize instead of both observing "no active record".
type Service struct {
	store   Store
	centers CenterDirectory
	clock   Clock
	id      IDGen
}

func NewService(store Store, centers CenterDirectory) *Service {
	return &Service{
		store:   store,
		centers: centers,
		clock:   realClock{},
		id:      ulidGen{},
	}
}

// mapStoreErr translates driver-level duplicate-key failures on the active
// record unique key into the domain Conflict the caller can act on.
func mapStoreErr(err error) error {
	var me *mysql.MySQLError
	if errors.As(err, &me) && me.Number == 1062 {
		return ErrConflict("individual already has an active attendance record")
	}
	return err
}

func (s *Service) newRecord(req CheckInRequest, status string, at time.Time) (*Record, error) {
	id, err := s.id.New()
	if err != nil {
		return nil, err
	}
	return &Record{
		RecordULID:   id,
		IndividualID: req.IndividualID,
		HouseholdID:  req.HouseholdID,
		CenterID:     req.CenterID,
		EventID:      req.EventID,
		Status:       status,
		CheckInTime:  at,
		RecordedBy:   derefStr(req.RecordedBy),
		Notes:        nullStr(req.Notes),
		CreatedAt:    at,
		UpdatedAt:    at,
	}, nil
}

// CheckIn records an individual's presence at a center. When the individual
// is already active at a different center the call resolves itself as a
// transfer: the old record is closed, a transferred audit record is written,
// and a fresh checked_in record is created at the requested center.
func (s *Service) CheckIn(ctx context.Context, req CheckInRequest) (*CheckInResponse, error) {
	if req.IndividualID <= 0 || req.CenterID <= 0 || req.EventID <= 0 || req.HouseholdID <= 0 {
		return nil, ErrInvalid("individual_id, center_id, event_id and household_id are required")
	}
	if derefStr(req.RecordedBy) == "" {
		return nil, ErrInvalid("recorded_by_user_id is required")
	}

	destName, ok, err := s.centers.CenterName(ctx, req.CenterID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotFound(fmt.Sprintf("center %d not found", req.CenterID))
	}

	at := s.clock.Now()
	if req.CheckInTime != nil {
		at = req.CheckInTime.UTC()
	}

	var resp CheckInResponse
	err = s.store.InTx(ctx, func(tx TxStore) error {
		active, err := tx.ActiveByIndividualForUpdate(ctx, req.IndividualID)
		if err != nil {
			return err
		}

		if active == nil {
			rec, err := s.newRecord(req, StatusCheckedIn, at)
			if err != nil {
				return err
			}
			if err := tx.Insert(ctx, rec); err != nil {
				return err
			}
			resp = CheckInResponse{Record: toResponse(rec, destName)}
			return nil
		}

		if active.CenterID == req.CenterID {
			return ErrConflict(fmt.Sprintf(
				"individual %d is already checked in at %s", req.IndividualID, destName))
		}

		fromName, _, err := s.centers.CenterName(ctx, active.CenterID)
		if err != nil {
			return err
		}

		newRec, _, err := s.transferWrites(ctx, tx, active, req, at, fromName, destName)
		if err != nil {
			return err
		}
		resp = CheckInResponse{
			Record:             toResponse(newRec, destName),
			TransferOccurred:   true,
			PreviousCenterID:   &active.CenterID,
			PreviousCenterName: &fromName,
		}
		return nil
	})
	if err != nil {
		return nil, mapStoreErr(err)
	}
	return &resp, nil
}

// transferWrites performs the three-write sequence shared by implicit and
// explicit transfers: close the active record, insert the transferred audit
// record, insert the new checked_in record at the destination. Runs inside
// the caller's transaction; returns the new active record and the audit record.
func (s *Service) transferWrites(ctx context.Context, tx TxStore, active *Record, req CheckInRequest, at time.Time, fromName, destName string) (newRec, audit *Record, err error) {
	closeNote := fmt.Sprintf("transferred to %s", destName)
	if err := tx.Close(ctx, active.RecordID, StatusCheckedOut, at, &closeNote); err != nil {
		return nil, nil, err
	}

	audit, err = s.newRecord(req, StatusTransferred, at)
	if err != nil {
		return nil, nil, err
	}
	audit.TransferTime.Time = at
	audit.TransferTime.Valid = true
	audit.TransferFromCenterID.Int64 = active.CenterID
	audit.TransferFromCenterID.Valid = true
	audit.TransferToCenterID.Int64 = req.CenterID
	audit.TransferToCenterID.Valid = true
	// Closed immediately so the audit row can never satisfy the active predicate.
	audit.CheckOutTime.Time = at
	audit.CheckOutTime.Valid = true
	if !audit.Notes.Valid {
		audit.Notes.String = fmt.Sprintf("transferred from %s", fromName)
		audit.Notes.Valid = true
	}
	if err := tx.Insert(ctx, audit); err != nil {
		return nil, nil, err
	}

	newRec, err = s.newRecord(req, StatusCheckedIn, at)
	if err != nil {
		return nil, nil, err
	}
	if err := tx.Insert(ctx, newRec); err != nil {
		return nil, nil, err
	}
	return newRec, audit, nil
}

// CheckOut closes an active record. Terminal: no transition is valid on the
// record afterwards.
func (s *Service) CheckOut(ctx context.Context, recordID int64, req CheckOutRequest) (*RecordResponse, error) {
	if recordID <= 0 {
		return nil, ErrInvalid("record id must be > 0")
	}

	var resp RecordResponse
	err := s.store.InTx(ctx, func(tx TxStore) error {
		rec, err := tx.GetForUpdate(ctx, recordID)
		if err != nil {
			return err
		}
		if rec == nil {
			return ErrNotFound(fmt.Sprintf("attendance record %d not found", recordID))
		}
		if !rec.Active() {
			return ErrInvalid("record is not currently checked in")
		}

		at := s.clock.Now()
		if req.CheckOutTime != nil {
			at = req.CheckOutTime.UTC()
		}
		if err := tx.Close(ctx, rec.RecordID, StatusCheckedOut, at, req.Notes); err != nil {
			return err
		}

		rec.Status = StatusCheckedOut
		rec.CheckOutTime.Time = at
		rec.CheckOutTime.Valid = true
		rec.UpdatedAt = at
		if req.Notes != nil && *req.Notes != "" {
			if rec.Notes.Valid && rec.Notes.String != "" {
				rec.Notes.String += "\n" + *req.Notes
			} else {
				rec.Notes.String = *req.Notes
				rec.Notes.Valid = true
			}
		}
		name, _, _ := s.centers.CenterName(ctx, rec.CenterID)
		resp = toResponse(rec, name)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// Transfer is the explicit transfer entry point. Same three-write sequence as
// the implicit case inside CheckIn, but addressed by record id.
func (s *Service) Transfer(ctx context.Context, recordID int64, req TransferRequest) (*TransferResponse, error) {
	if recordID <= 0 {
		return nil, ErrInvalid("record id must be > 0")
	}
	if req.TransferToCenterID <= 0 {
		return nil, ErrInvalid("transfer_to_center_id is required")
	}
	if derefStr(req.RecordedBy) == "" {
		return nil, ErrInvalid("recorded_by_user_id is required")
	}

	destName, ok, err := s.centers.CenterName(ctx, req.TransferToCenterID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotFound(fmt.Sprintf("center %d not found", req.TransferToCenterID))
	}

	at := s.clock.Now()
	if req.TransferTime != nil {
		at = req.TransferTime.UTC()
	}

	var resp TransferResponse
	err = s.store.InTx(ctx, func(tx TxStore) error {
		rec, err := tx.GetForUpdate(ctx, recordID)
		if err != nil {
			return err
		}
		if rec == nil {
			return ErrNotFound(fmt.Sprintf("attendance record %d not found", recordID))
		}
		if !rec.Active() {
			return ErrInvalid("record is not currently checked in")
		}
		if rec.CenterID == req.TransferToCenterID {
			return ErrConflict("cannot transfer to same center")
		}

		fromName, _, err := s.centers.CenterName(ctx, rec.CenterID)
		if err != nil {
			return err
		}

		checkIn := CheckInRequest{
			IndividualID: rec.IndividualID,
			CenterID:     req.TransferToCenterID,
			EventID:      rec.EventID,
			HouseholdID:  rec.HouseholdID,
			RecordedBy:   req.RecordedBy,
			Notes:        req.Notes,
		}
		newRec, audit, err := s.transferWrites(ctx, tx, rec, checkIn, at, fromName, destName)
		if err != nil {
			return err
		}
		resp = TransferResponse{
			Record:      toResponse(audit, destName),
			NewRecordID: newRec.RecordID,
		}
		return nil
	})
	if err != nil {
		return nil, mapStoreErr(err)
	}
	return &resp, nil
}

// ===== query side =====

func (s *Service) List(ctx context.Context, q ListQuery) (*PagedRecords, error) {
	if q.Page == 0 {
		q.Page = 1
	}
	if q.Limit == 0 {
		q.Limit = DefaultPageLimit
	}
	if q.Page < 1 || q.Limit < 1 || q.Limit > MaxPageLimit {
		return nil, ErrInvalid("invalid pagination")
	}
	if q.SortBy == "" {
		q.SortBy = DefaultSort
	}

	items, total, err := s.store.List(ctx, q)
	if err != nil {
		return nil, err
	}
	return pagedOf(items, q.Page, q.Limit, total), nil
}

func (s *Service) Current(ctx context.Context, centerID *int64) ([]RecordResponse, error) {
	items, err := s.store.ListCurrent(ctx, centerID)
	if err != nil {
		return nil, err
	}
	return detailsToDTO(items), nil
}

func (s *Service) Transfers(ctx context.Context, q TransferListQuery) (*PagedRecords, error) {
	if q.Page == 0 {
		q.Page = 1
	}
	if q.Limit == 0 {
		q.Limit = DefaultPageLimit
	}
	if q.Page < 1 || q.Limit < 1 || q.Limit > MaxPageLimit {
		return nil, ErrInvalid("invalid pagination")
	}

	items, total, err := s.store.ListTransfers(ctx, q)
	if err != nil {
		return nil, err
	}
	return pagedOf(items, q.Page, q.Limit, total), nil
}

func (s *Service) History(ctx context.Context, individualID int64) ([]RecordResponse, error) {
	if individualID <= 0 {
		return nil, ErrInvalid("individual id must be > 0")
	}
	items, err := s.store.HistoryByIndividual(ctx, individualID)
	if err != nil {
		return nil, err
	}
	return detailsToDTO(items), nil
}

func (s *Service) Get(ctx context.Context, recordID int64) (*RecordResponse, error) {
	d, err := s.store.GetByID(ctx, recordID)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, ErrNotFound(fmt.Sprintf("attendance record %d not found", recordID))
	}
	resp := d.toDTO()
	return &resp, nil
}

func (s *Service) SummaryByCenter(ctx context.Context, centerID int64, eventID *int64) (Summary, error) {
	if centerID <= 0 {
		return Summary{}, ErrInvalid("center id must be > 0")
	}
	return s.store.Summary(ctx, centerID, eventID)
}

// DeleteRecord is the administrative row removal. It does not touch the
// occupancy counter; run a reconciliation afterwards when the deleted record
// was active.
func (s *Service) DeleteRecord(ctx context.Context, recordID int64) error {
	n, err := s.store.Delete(ctx, recordID)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound(fmt.Sprintf("attendance record %d not found", recordID))
	}
	return nil
}

// ===== helpers =====

func toResponse(r *Record, centerName string) RecordResponse {
	d := RecordDetail{Record: *r, CenterName: centerName}
	return d.toDTO()
}

func detailsToDTO(items []RecordDetail) []RecordResponse {
	out := make([]RecordResponse, 0, len(items))
	for i := range items {
		out = append(out, items[i].toDTO())
	}
	return out
}

func pagedOf(items []RecordDetail, page, limit int, total int64) *PagedRecords {
	return &PagedRecords{
		Results:    detailsToDTO(items),
		Pagination: newPagination(page, limit, total),
	}
}

func derefStr(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func nullStr(s *string) (ns sql.NullString) {
	if s != nil && *s != "" {
		ns.String = *s
		ns.Valid = true
	}
	return ns
}
