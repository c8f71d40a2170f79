package centers

import (
	"context"
	"database/sql"
	"errors"
)

type Store struct{ db *sql.DB }

func NewStore(db *sql.DB) *Store { return &Store{db: db} }

const centerCols = `center_id, name, address, capacity, current_occupancy, is_active, created_at, updated_at`

func scanCenter(row *sql.Row) (*Center, error) {
	var c Center
	var isActiveInt int
	err := row.Scan(
		&c.CenterID, &c.Name, &c.Address, &c.Capacity,
		&c.CurrentOccupancy, &isActiveInt, &c.CreatedAt, &c.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	c.IsActive = isActiveInt != 0
	return &c, nil
}

func (s *Store) GetByID(ctx context.Context, id int64) (*Center, error) {
	q := `SELECT ` + centerCols + ` FROM centers WHERE center_id = ? LIMIT 1`
	return scanCenter(s.db.QueryRowContext(ctx, q, id))
}

func (s *Store) List(ctx context.Context) ([]Center, error) {
	q := `SELECT ` + centerCols + ` FROM centers ORDER BY center_id`
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Center
	for rows.Next() {
		var c Center
		var isActiveInt int
		if err := rows.Scan(
			&c.CenterID, &c.Name, &c.Address, &c.Capacity,
			&c.CurrentOccupancy, &isActiveInt, &c.CreatedAt, &c.UpdatedAt,
		); err != nil {
			return nil, err
		}
		c.IsActive = isActiveInt != 0
		out = append(out, c)
	}
	return out, rows.Err()
}

// ===== attendance.CenterDirectory =====

func (s *Store) CenterName(ctx context.Context, id int64) (string, bool, error) {
	const q = `SELECT name FROM centers WHERE center_id = ? LIMIT 1`
	var name string
	err := s.db.QueryRowContext(ctx, q, id).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return name, true, nil
}

func (s *Store) CenterOccupancy(ctx context.Context, id int64) (int, error) {
	const q = `SELECT current_occupancy FROM centers WHERE center_id = ? LIMIT 1`
	var n int
	err := s.db.QueryRowContext(ctx, q, id).Scan(&n)
	return n, err
}

func (s *Store) ListCenterIDs(ctx context.Context) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT center_id FROM centers ORDER BY center_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (s *Store) SetOccupancy(ctx context.Context, id int64, value int) error {
	const q = `UPDATE centers SET current_occupancy = ?, updated_at = NOW(6) WHERE center_id = ?`
	// MySQL reports 0 affected rows when the value is unchanged, so the
	// affected count is not checked here.
	_, err := s.db.ExecContext(ctx, q, value, id)
	return err
}
