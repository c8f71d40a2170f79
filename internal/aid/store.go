package aid

import (
	"context"
	"database/sql"
	"strings"
)

type Store struct{ db *sql.DB }

func NewStore(db *sql.DB) *Store { return &Store{db: db} }

const allocationCols = `
	allocation_id, allocation_ulid, center_id, category_id, total_quantity, remaining_quantity,
	unit, status, allocated_by, note, allocated_at, updated_at`

func scanAllocation(sc interface{ Scan(...any) error }, a *Allocation) error {
	return sc.Scan(
		&a.AllocationID, &a.AllocationULID, &a.CenterID, &a.CategoryID,
		&a.TotalQuantity, &a.RemainingQuantity, &a.Unit, &a.Status,
		&a.AllocatedBy, &a.Note, &a.AllocatedAt, &a.UpdatedAt,
	)
}

func (s *Store) InsertAllocation(ctx context.Context, a *Allocation) error {
	const q = `
	INSERT INTO aid_allocations
	(allocation_ulid, center_id, category_id, total_quantity, remaining_quantity,
	 unit, status, allocated_by, note, allocated_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	res, err := s.db.ExecContext(ctx, q,
		a.AllocationULID, a.CenterID, a.CategoryID, a.TotalQuantity, a.RemainingQuantity,
		a.Unit, a.Status, a.AllocatedBy, a.Note, a.AllocatedAt, a.UpdatedAt,
	)
	if err != nil {
		return err
	}
	id, _ := res.LastInsertId()
	a.AllocationID = id
	return nil
}

func (s *Store) GetAllocationByID(ctx context.Context, id int64) (*Allocation, error) {
	q := `SELECT` + allocationCols + ` FROM aid_allocations WHERE allocation_id = ? LIMIT 1`
	var a Allocation
	err := scanAllocation(s.db.QueryRowContext(ctx, q, id), &a)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *Store) ListAllocations(ctx context.Context, f AllocationFilter) ([]Allocation, int64, error) {
	var (
		wheres []string
		args   []any
	)
	if f.CenterID != nil {
		wheres = append(wheres, "center_id = ?")
		args = append(args, *f.CenterID)
	}
	if f.Status != nil {
		wheres = append(wheres, "status = ?")
		args = append(args, *f.Status)
	}
	where := ""
	if len(wheres) > 0 {
		where = " WHERE " + strings.Join(wheres, " AND ")
	}

	q := `SELECT` + allocationCols + ` FROM aid_allocations` + where +
		` ORDER BY allocated_at DESC, allocation_id DESC LIMIT ? OFFSET ?`
	selArgs := append(append([]any{}, args...), f.Limit, f.Offset)

	rows, err := s.db.QueryContext(ctx, q, selArgs...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Allocation
	for rows.Next() {
		var a Allocation
		if err := scanAllocation(rows, &a); err != nil {
			return nil, 0, err
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	var total int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM aid_allocations`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (s *Store) SumDistributed(ctx context.Context, allocationID int64) (int, error) {
	const q = `SELECT COALESCE(SUM(quantity), 0) FROM aid_distributions WHERE allocation_id = ?`
	var sum int
	err := s.db.QueryRowContext(ctx, q, allocationID).Scan(&sum)
	return sum, err
}

func (s *Store) ListDistributions(ctx context.Context, allocationID int64) ([]Distribution, error) {
	const q = `
	SELECT distribution_id, distribution_ulid, allocation_id, quantity, household_id,
	       distributed_by, distributed_at, note
	FROM aid_distributions
	WHERE allocation_id = ?
	ORDER BY distributed_at DESC, distribution_id DESC`

	rows, err := s.db.QueryContext(ctx, q, allocationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Distribution
	for rows.Next() {
		var d Distribution
		if err := rows.Scan(
			&d.DistributionID, &d.DistributionULID, &d.AllocationID, &d.Quantity,
			&d.HouseholdID, &d.DistributedBy, &d.DistributedAt, &d.Note,
		); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// lockAllocationRow reads the allocation under FOR UPDATE so concurrent
// distributions against the same allocation serialize.
func lockAllocationRow(ctx context.Context, tx *sql.Tx, id int64) (*Allocation, error) {
	q := `SELECT` + allocationCols + ` FROM aid_allocations WHERE allocation_id = ? LIMIT 1 FOR UPDATE`
	var a Allocation
	err := scanAllocation(tx.QueryRowContext(ctx, q, id), &a)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound("allocation not found")
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func updateAllocationQuantities(ctx context.Context, tx *sql.Tx, id int64, remaining int, status string) error {
	const q = `UPDATE aid_allocations SET remaining_quantity = ?, status = ?, updated_at = NOW(6) WHERE allocation_id = ?`
	res, err := tx.ExecContext(ctx, q, remaining, status, id)
	if err != nil {
		return err
	}
	aff, _ := res.RowsAffected()
	if aff != 1 {
		return ErrInternal("failed to update aid_allocations")
	}
	return nil
}

// ExecDistribute handles the full transaction flow for recording a
// distribution: lock the allocation, reject over-distribution, append the
// ledger row, decrement remaining, transition the status.
func (s *Store) ExecDistribute(ctx context.Context, d *Distribution) (*Allocation, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	a, err := lockAllocationRow(ctx, tx, d.AllocationID)
	if err != nil {
		return nil, err
	}

	if d.Quantity > a.RemainingQuantity {
		err = ErrOverRemaining()
		return nil, err
	}

	const q = `
	INSERT INTO aid_distributions
	(distribution_ulid, allocation_id, quantity, household_id, distributed_by, distributed_at, note)
	VALUES (?, ?, ?, ?, ?, ?, ?)`
	var res sql.Result
	res, err = tx.ExecContext(ctx, q,
		d.DistributionULID, d.AllocationID, d.Quantity, d.HouseholdID,
		d.DistributedBy, d.DistributedAt, d.Note,
	)
	if err != nil {
		return nil, err
	}
	id, _ := res.LastInsertId()
	d.DistributionID = id

	a.RemainingQuantity -= d.Quantity
	a.Status = allocStatus(a.TotalQuantity, a.RemainingQuantity)
	if err = updateAllocationQuantities(ctx, tx, a.AllocationID, a.RemainingQuantity, a.Status); err != nil {
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		return nil, err
	}
	return a, nil
}

// ExecRecalculate recomputes remaining_quantity from the distribution ledger,
// overwriting whatever the counter held.
func (s *Store) ExecRecalculate(ctx context.Context, allocationID int64) (*Allocation, int, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return nil, 0, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	a, err := lockAllocationRow(ctx, tx, allocationID)
	if err != nil {
		return nil, 0, err
	}
	prev := a.RemainingQuantity

	var sum int
	err = tx.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(quantity), 0) FROM aid_distributions WHERE allocation_id = ?`,
		allocationID,
	).Scan(&sum)
	if err != nil {
		return nil, 0, err
	}

	a.RemainingQuantity = a.TotalQuantity - sum
	a.Status = allocStatus(a.TotalQuantity, a.RemainingQuantity)
	if err = updateAllocationQuantities(ctx, tx, a.AllocationID, a.RemainingQuantity, a.Status); err != nil {
		return nil, 0, err
	}

	if err = tx.Commit(); err != nil {
		return nil, 0, err
	}
	return a, prev, nil
}
