package categories

import (
	"context"
	"database/sql"
)

type Store struct{ db *sql.DB }

func NewStore(db *sql.DB) *Store { return &Store{db: db} }

// GET /aid/categories?all=1
func (s *Store) List(ctx context.Context, includeDisabled bool) ([]AidCategory, error) {
	q := `
		SELECT category_id, category_name, category_code, unit, is_disabled
		FROM aid_categories
	`
	var args []any
	if !includeDisabled {
		q += ` WHERE is_disabled = 0`
	}
	q += ` ORDER BY category_id`

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	res := make([]AidCategory, 0, 16)
	for rows.Next() {
		var c AidCategory
		if err := rows.Scan(&c.CategoryID, &c.Name, &c.Code, &c.Unit, &c.IsDisabled); err != nil {
			return nil, err
		}
		res = append(res, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return res, nil
}

func (s *Store) GetByID(ctx context.Context, id uint) (*AidCategory, error) {
	const q = `
		SELECT category_id, category_name, category_code, unit, is_disabled
		FROM aid_categories
		WHERE category_id = ?
	`
	var c AidCategory
	err := s.db.QueryRowContext(ctx, q, id).Scan(&c.CategoryID, &c.Name, &c.Code, &c.Unit, &c.IsDisabled)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Store) Create(ctx context.Context, name, code, unit string) (*AidCategory, error) {
	const q = `
		INSERT INTO aid_categories (category_name, category_code, unit, is_disabled)
		VALUES (?, ?, ?, 0)
	`
	r, err := s.db.ExecContext(ctx, q, name, code, unit)
	if err != nil {
		return nil, err
	}
	lastID, err := r.LastInsertId()
	if err != nil {
		return nil, err
	}
	return &AidCategory{
		CategoryID: uint(lastID),
		Name:       name,
		Code:       code,
		Unit:       unit,
		IsDisabled: false,
	}, nil
}

func (s *Store) Update(ctx context.Context, id uint, name, code, unit string, disabled bool) error {
	const q = `
		UPDATE aid_categories
		SET category_name = ?, category_code = ?, unit = ?, is_disabled = ?
		WHERE category_id = ?
	`
	r, err := s.db.ExecContext(ctx, q, name, code, unit, disabled, id)
	if err != nil {
		return err
	}
	aff, err := r.RowsAffected()
	if err != nil {
		return err
	}
	if aff == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// DELETE is a soft delete: flip is_disabled.
func (s *Store) Disable(ctx context.Context, id uint) error {
	const q = `
		UPDATE aid_categories
		SET is_disabled = 1
		WHERE category_id = ?
	`
	r, err := s.db.ExecContext(ctx, q, id)
	if err != nil {
		return err
	}
	aff, err := r.RowsAffected()
	if err != nil {
		return err
	}
	if aff == 0 {
		return sql.ErrNoRows
	}
	return nil
}
