package attendance

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"ECMS-backend/internal/platform/db"
)

// TxStore is the write-side view of the store inside one transaction. The
// ForUpdate reads take row locks so a concurrent check-in for the same
// individual blocks until this transaction finishes.
type TxStore interface {
	ActiveByIndividualForUpdate(ctx context.Context, individualID int64) (*Record, error)
	GetForUpdate(ctx context.Context, recordID int64) (*Record, error)
	Insert(ctx context.Context, r *Record) error
	Close(ctx context.Context, recordID int64, status string, outAt time.Time, note *string) error
}

// Store is the persistence boundary of the attendance subsystem. The state
// machine gets one injected rather than touching a shared handle.
type Store interface {
	InTx(ctx context.Context, fn func(tx TxStore) error) error
	GetByID(ctx context.Context, recordID int64) (*RecordDetail, error)
	List(ctx context.Context, q ListQuery) ([]RecordDetail, int64, error)
	ListCurrent(ctx context.Context, centerID *int64) ([]RecordDetail, error)
	ListTransfers(ctx context.Context, q TransferListQuery) ([]RecordDetail, int64, error)
	HistoryByIndividual(ctx context.Context, individualID int64) ([]RecordDetail, error)
	Summary(ctx context.Context, centerID int64, eventID *int64) (Summary, error)
	CountActive(ctx context.Context, centerID int64) (int, error)
	Delete(ctx context.Context, recordID int64) (int64, error)
}

type SQLStore struct{ db *sql.DB }

func NewSQLStore(conn *sql.DB) *SQLStore { return &SQLStore{db: conn} }

const recordCols = `
	r.record_id, r.record_ulid, r.individual_id, r.household_id, r.center_id, r.event_id,
	r.status, r.check_in_time, r.check_out_time, r.transfer_time,
	r.transfer_from_center_id, r.transfer_to_center_id, r.recorded_by_user_id, r.notes,
	r.created_at, r.updated_at`

const detailSelect = `
	SELECT` + recordCols + `,
	COALESCE(i.full_name, ''), COALESCE(c.name, ''), COALESCE(e.name, '')
	FROM attendance_records r
	LEFT JOIN individuals i ON i.individual_id = r.individual_id
	LEFT JOIN centers c ON c.center_id = r.center_id
	LEFT JOIN events e ON e.event_id = r.event_id`

type rowScanner interface{ Scan(dest ...any) error }

func scanRecord(sc rowScanner, r *Record) error {
	return sc.Scan(
		&r.RecordID, &r.RecordULID, &r.IndividualID, &r.HouseholdID, &r.CenterID, &r.EventID,
		&r.Status, &r.CheckInTime, &r.CheckOutTime, &r.TransferTime,
		&r.TransferFromCenterID, &r.TransferToCenterID, &r.RecordedBy, &r.Notes,
		&r.CreatedAt, &r.UpdatedAt,
	)
}

func scanDetail(sc rowScanner, d *RecordDetail) error {
	return sc.Scan(
		&d.RecordID, &d.RecordULID, &d.IndividualID, &d.HouseholdID, &d.CenterID, &d.EventID,
		&d.Status, &d.CheckInTime, &d.CheckOutTime, &d.TransferTime,
		&d.TransferFromCenterID, &d.TransferToCenterID, &d.RecordedBy, &d.Notes,
		&d.CreatedAt, &d.UpdatedAt,
		&d.IndividualName, &d.CenterName, &d.EventName,
	)
}

// ===== transactional writes =====

type sqlTx struct{ tx *sql.Tx }

func (s *SQLStore) InTx(ctx context.Context, fn func(tx TxStore) error) error {
	return db.RunInTx(ctx, s.db, &sql.TxOptions{}, func(ctx context.Context, tx *sql.Tx) error {
		return fn(&sqlTx{tx: tx})
	})
}

func (t *sqlTx) ActiveByIndividualForUpdate(ctx context.Context, individualID int64) (*Record, error) {
	q := `SELECT` + recordCols + `
	FROM attendance_records r
	WHERE r.individual_id = ? AND r.status = ? AND r.check_out_time IS NULL
	LIMIT 1 FOR UPDATE`

	var r Record
	err := scanRecord(t.tx.QueryRowContext(ctx, q, individualID, StatusCheckedIn), &r)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (t *sqlTx) GetForUpdate(ctx context.Context, recordID int64) (*Record, error) {
	q := `SELECT` + recordCols + `
	FROM attendance_records r
	WHERE r.record_id = ?
	LIMIT 1 FOR UPDATE`

	var r Record
	err := scanRecord(t.tx.QueryRowContext(ctx, q, recordID), &r)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (t *sqlTx) Insert(ctx context.Context, r *Record) error {
	const q = `
	INSERT INTO attendance_records
	(record_ulid, individual_id, household_id, center_id, event_id, status,
	 check_in_time, check_out_time, transfer_time, transfer_from_center_id, transfer_to_center_id,
	 recorded_by_user_id, notes, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	res, err := t.tx.ExecContext(ctx, q,
		r.RecordULID, r.IndividualID, r.HouseholdID, r.CenterID, r.EventID, r.Status,
		r.CheckInTime, r.CheckOutTime, r.TransferTime, r.TransferFromCenterID, r.TransferToCenterID,
		r.RecordedBy, r.Notes, r.CreatedAt, r.UpdatedAt,
	)
	if err != nil {
		return err
	}
	id, _ := res.LastInsertId()
	r.RecordID = id
	return nil
}

func (t *sqlTx) Close(ctx context.Context, recordID int64, status string, outAt time.Time, note *string) error {
	var (
		q    string
		args []any
	)
	if note != nil && *note != "" {
		// CONCAT_WS skips NULL, so a record without notes just gets the new line.
		q = `UPDATE attendance_records
		SET status = ?, check_out_time = ?, notes = CONCAT_WS('\n', notes, ?), updated_at = ?
		WHERE record_id = ?`
		args = []any{status, outAt, *note, outAt, recordID}
	} else {
		q = `UPDATE attendance_records
		SET status = ?, check_out_time = ?, updated_at = ?
		WHERE record_id = ?`
		args = []any{status, outAt, outAt, recordID}
	}
	res, err := t.tx.ExecContext(ctx, q, args...)
	if err != nil {
		return err
	}
	aff, _ := res.RowsAffected()
	if aff != 1 {
		return ErrInternal("failed to close attendance record")
	}
	return nil
}

// ===== reads =====

func (s *SQLStore) GetByID(ctx context.Context, recordID int64) (*RecordDetail, error) {
	q := detailSelect + ` WHERE r.record_id = ? LIMIT 1`
	var d RecordDetail
	err := scanDetail(s.db.QueryRowContext(ctx, q, recordID), &d)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func listOrder(sortBy, sortOrder string) string {
	col := "r.check_in_time"
	switch sortBy {
	case SortCheckOutTime:
		col = "r.check_out_time"
	case SortTransferTime:
		col = "r.transfer_time"
	case SortStatus:
		col = "r.status"
	case SortCenterID:
		col = "r.center_id"
	}
	dir := "DESC"
	if strings.EqualFold(sortOrder, "asc") {
		dir = "ASC"
	}
	return fmt.Sprintf(" ORDER BY %s %s, r.record_id %s", col, dir, dir)
}

func (s *SQLStore) List(ctx context.Context, q ListQuery) ([]RecordDetail, int64, error) {
	var (
		wheres []string
		args   []any
	)
	if q.CenterID != nil {
		wheres = append(wheres, "r.center_id = ?")
		args = append(args, *q.CenterID)
	}
	if q.IndividualID != nil {
		wheres = append(wheres, "r.individual_id = ?")
		args = append(args, *q.IndividualID)
	}
	if q.EventID != nil {
		wheres = append(wheres, "r.event_id = ?")
		args = append(args, *q.EventID)
	}
	if q.HouseholdID != nil {
		wheres = append(wheres, "r.household_id = ?")
		args = append(args, *q.HouseholdID)
	}
	if q.Status != nil {
		wheres = append(wheres, "r.status = ?")
		args = append(args, *q.Status)
	}
	if q.Date != nil {
		wheres = append(wheres, "DATE(r.check_in_time) = ?")
		args = append(args, *q.Date)
	}
	if q.Search != nil {
		wheres = append(wheres, "i.full_name LIKE ?")
		args = append(args, "%"+*q.Search+"%")
	}

	where := ""
	if len(wheres) > 0 {
		where = " WHERE " + strings.Join(wheres, " AND ")
	}

	sel := detailSelect + where + listOrder(q.SortBy, q.SortOrder) + " LIMIT ? OFFSET ?"
	selArgs := append(append([]any{}, args...), q.Limit, (q.Page-1)*q.Limit)

	rows, err := s.db.QueryContext(ctx, sel, selArgs...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []RecordDetail
	for rows.Next() {
		var d RecordDetail
		if err := scanDetail(rows, &d); err != nil {
			return nil, 0, err
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	cnt := `SELECT COUNT(*)
	FROM attendance_records r
	LEFT JOIN individuals i ON i.individual_id = r.individual_id` + where
	var total int64
	if err := s.db.QueryRowContext(ctx, cnt, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (s *SQLStore) ListCurrent(ctx context.Context, centerID *int64) ([]RecordDetail, error) {
	q := detailSelect + ` WHERE r.status = ? AND r.check_out_time IS NULL`
	args := []any{StatusCheckedIn}
	if centerID != nil {
		q += ` AND r.center_id = ?`
		args = append(args, *centerID)
	}
	q += ` ORDER BY r.check_in_time DESC, r.record_id DESC`

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RecordDetail
	for rows.Next() {
		var d RecordDetail
		if err := scanDetail(rows, &d); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *SQLStore) ListTransfers(ctx context.Context, q TransferListQuery) ([]RecordDetail, int64, error) {
	where := ` WHERE r.status = ?`
	args := []any{StatusTransferred}
	if q.CenterID != nil {
		where += ` AND (r.transfer_from_center_id = ? OR r.transfer_to_center_id = ?)`
		args = append(args, *q.CenterID, *q.CenterID)
	}

	sortBy := q.SortBy
	if sortBy == "" {
		sortBy = SortTransferTime
	}
	sel := detailSelect + where + listOrder(sortBy, q.SortOrder) + ` LIMIT ? OFFSET ?`
	selArgs := append(append([]any{}, args...), q.Limit, (q.Page-1)*q.Limit)

	rows, err := s.db.QueryContext(ctx, sel, selArgs...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []RecordDetail
	for rows.Next() {
		var d RecordDetail
		if err := scanDetail(rows, &d); err != nil {
			return nil, 0, err
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	var total int64
	cnt := `SELECT COUNT(*) FROM attendance_records r` + where
	if err := s.db.QueryRowContext(ctx, cnt, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (s *SQLStore) HistoryByIndividual(ctx context.Context, individualID int64) ([]RecordDetail, error) {
	q := detailSelect + ` WHERE r.individual_id = ? ORDER BY r.check_in_time DESC, r.record_id DESC`
	rows, err := s.db.QueryContext(ctx, q, individualID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RecordDetail
	for rows.Next() {
		var d RecordDetail
		if err := scanDetail(rows, &d); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *SQLStore) Summary(ctx context.Context, centerID int64, eventID *int64) (Summary, error) {
	q := `
	SELECT COUNT(*),
	COALESCE(SUM(status = ? AND check_out_time IS NULL), 0),
	COALESCE(SUM(status = ?), 0),
	COALESCE(SUM(status = ?), 0)
	FROM attendance_records
	WHERE center_id = ?`
	args := []any{StatusCheckedIn, StatusCheckedOut, StatusTransferred, centerID}
	if eventID != nil {
		q += ` AND event_id = ?`
		args = append(args, *eventID)
	}

	var sum Summary
	err := s.db.QueryRowContext(ctx, q, args...).Scan(
		&sum.TotalEntries, &sum.CurrentCheckedIn, &sum.TotalCheckedOut, &sum.TotalTransferred,
	)
	return sum, err
}

func (s *SQLStore) CountActive(ctx context.Context, centerID int64) (int, error) {
	const q = `
	SELECT COUNT(DISTINCT individual_id)
	FROM attendance_records
	WHERE center_id = ? AND status = ? AND check_out_time IS NULL`
	var n int
	err := s.db.QueryRowContext(ctx, q, centerID, StatusCheckedIn).Scan(&n)
	return n, err
}

func (s *SQLStore) Delete(ctx context.Context, recordID int64) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM attendance_records WHERE record_id = ?`, recordID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
