package categories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	mysql "github.com/go-sql-driver/mysql"
)

// ===== Error model =====
type Code string

const (
	CodeInvalidArgument Code = "INVALID_ARGUMENT"
	CodeNotFound        Code = "NOT_FOUND"
	CodeConflict        Code = "CONFLICT"
	CodeInternal        Code = "INTERNAL"
)

type APIError struct {
	Code    Code
	Message string
}

func (e *APIError) Error() string      { return fmt.Sprintf("%s: %s", e.Code, e.Message) }
func ErrInvalid(msg string) *APIError  { return &APIError{Code: CodeInvalidArgument, Message: msg} }
func ErrNotFound(msg string) *APIError { return &APIError{Code: CodeNotFound, Message: msg} }
func ErrConflict(msg string) *APIError { return &APIError{Code: CodeConflict, Message: msg} }
func ErrInternal(msg string) *APIError { return &APIError{Code: CodeInternal, Message: msg} }

func toHTTPStatus(err error) int {
	var api *APIError
	if errors.As(err, &api) {
		switch api.Code {
		case CodeInvalidArgument:
			return 400
		case CodeNotFound:
			return 404
		case CodeConflict:
			return 409
		default:
			return 500
		}
	}
	return 500
}

type Service struct {
	db    *sql.DB
	store *Store
}

func NewService(db *sql.DB) *Service { return &Service{db: db, store: NewStore(db)} }

// ===== categories =====
func parseBoolish(s string) bool {
	s = strings.TrimSpace(strings.ToLower(s))
	return s == "1" || s == "true" || s == "yes" || s == "all"
}

func normalizeCode(code string) (string, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return "", ErrInvalid("code is required")
	}
	return strings.ToUpper(code), nil
}

func normalizeName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ErrInvalid("name is required")
	}
	return name, nil
}

func normalizeUnit(unit string) (string, error) {
	unit = strings.TrimSpace(unit)
	if unit == "" {
		return "", ErrInvalid("unit is required")
	}
	return unit, nil
}

func isDuplicateKey(err error) bool {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number == 1062
	}
	return false
}

func (s *Service) List(ctx context.Context, all string) ([]AidCategory, error) {
	includeDisabled := parseBoolish(all)
	return s.store.List(ctx, includeDisabled)
}

func (s *Service) Get(ctx context.Context, id uint) (*AidCategory, error) {
	c, err := s.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound("category not found")
		}
		return nil, ErrInternal("failed to get category")
	}
	return c, nil
}

func (s *Service) Create(ctx context.Context, req CreateCategoryRequest) (*AidCategory, error) {
	n, err := normalizeName(req.Name)
	if err != nil {
		return nil, err
	}
	c, err := normalizeCode(req.Code)
	if err != nil {
		return nil, err
	}
	u, err := normalizeUnit(req.Unit)
	if err != nil {
		return nil, err
	}

	cat, err := s.store.Create(ctx, n, c, u)
	if err != nil {
		if isDuplicateKey(err) {
			return nil, ErrConflict("category_code already exists")
		}
		return nil, ErrInternal("failed to create category")
	}
	return cat, nil
}

func (s *Service) Update(ctx context.Context, id uint, req UpdateCategoryRequest) (*AidCategory, error) {
	n, err := normalizeName(req.Name)
	if err != nil {
		return nil, err
	}
	c, err := normalizeCode(req.Code)
	if err != nil {
		return nil, err
	}
	u, err := normalizeUnit(req.Unit)
	if err != nil {
		return nil, err
	}

	err = s.store.Update(ctx, id, n, c, u, req.IsDisabled)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound("category not found")
		}
		if isDuplicateKey(err) {
			return nil, ErrConflict("category_code already exists")
		}
		return nil, ErrInternal("failed to update category")
	}
	return s.Get(ctx, id)
}

func (s *Service) Delete(ctx context.Context, id uint) error {
	err := s.store.Disable(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound("category not found")
		}
		return ErrInternal("failed to delete category")
	}
	return nil
}
