package aid

import (
	"context"
	"crypto/rand"
	"database/sql"
	"time"

	"github.com/oklog/ulid/v2"
)

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

// AllocationStore is the persistence boundary of the aid ledger. The SQL
// implementation runs the distribute and recalculate flows as transactions.
type AllocationStore interface {
	InsertAllocation(ctx context.Context, a *Allocation) error
	GetAllocationByID(ctx context.Context, id int64) (*Allocation, error)
	ListAllocations(ctx context.Context, f AllocationFilter) ([]Allocation, int64, error)
	SumDistributed(ctx context.Context, allocationID int64) (int, error)
	ListDistributions(ctx context.Context, allocationID int64) ([]Distribution, error)
	ExecDistribute(ctx context.Context, d *Distribution) (*Allocation, error)
	ExecRecalculate(ctx context.Context, allocationID int64) (*Allocation, int, error)
}

type Service struct {
	store AllocationStore
	clock Clock
	id    IDGen
}

func NewService(db *sql.DB) *Service {
	return &Service{
		store: NewStore(db),
		clock: realClock{},
		id:    ulidGen{},
	}
}

func (s *Service) CreateAllocation(ctx context.Context, req CreateAllocationRequest) (*AllocationResponse, error) {
	if req.CenterID <= 0 || req.CategoryID <= 0 {
		return nil, ErrInvalid("center_id and category_id are required")
	}
	if req.TotalQuantity <= 0 {
		return nil, ErrInvalid("total_quantity must be > 0")
	}
	if req.Unit == "" {
		return nil, ErrInvalid("unit is required")
	}

	idStr, err := s.id.New()
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()

	a := &Allocation{
		AllocationULID:    idStr,
		CenterID:          req.CenterID,
		CategoryID:        req.CategoryID,
		TotalQuantity:     req.TotalQuantity,
		RemainingQuantity: req.TotalQuantity,
		Unit:              req.Unit,
		Status:            StatusAllocated,
		AllocatedAt:       now,
		UpdatedAt:         now,
	}
	if req.AllocatedBy != nil && *req.AllocatedBy != "" {
		a.AllocatedBy.String = *req.AllocatedBy
		a.AllocatedBy.Valid = true
	}
	if req.Note != nil && *req.Note != "" {
		a.Note.String = *req.Note
		a.Note.Valid = true
	}

	if err := s.store.InsertAllocation(ctx, a); err != nil {
		return nil, err
	}
	resp := buildAllocationResponse(a, 0)
	return &resp, nil
}

func (s *Service) Distribute(ctx context.Context, req CreateDistributionRequest) (*DistributionResponse, error) {
	if req.AllocationID <= 0 {
		return nil, ErrInvalid("allocation_id is required")
	}
	if req.Quantity <= 0 {
		return nil, ErrInvalid("quantity must be > 0")
	}

	idStr, err := s.id.New()
	if err != nil {
		return nil, err
	}

	d := &Distribution{
		DistributionULID: idStr,
		AllocationID:     req.AllocationID,
		Quantity:         req.Quantity,
		DistributedAt:    s.clock.Now(),
	}
	if req.HouseholdID != nil && *req.HouseholdID > 0 {
		d.HouseholdID.Int64 = *req.HouseholdID
		d.HouseholdID.Valid = true
	}
	if req.DistributedBy != nil && *req.DistributedBy != "" {
		d.DistributedBy.String = *req.DistributedBy
		d.DistributedBy.Valid = true
	}
	if req.Note != nil && *req.Note != "" {
		d.Note.String = *req.Note
		d.Note.Valid = true
	}

	if _, err := s.store.ExecDistribute(ctx, d); err != nil {
		return nil, err
	}
	resp := buildDistributionResponse(d)
	return &resp, nil
}

func (s *Service) GetAllocation(ctx context.Context, id int64) (*AllocationResponse, error) {
	a, err := s.store.GetAllocationByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, ErrNotFound("allocation not found")
	}
	sum, err := s.store.SumDistributed(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := buildAllocationResponse(a, sum)
	return &resp, nil
}

func (s *Service) ListAllocations(ctx context.Context, f AllocationFilter) ([]AllocationResponse, int64, error) {
	if f.Limit <= 0 {
		f.Limit = DefaultPageLimit
	}
	if f.Limit > MaxPageLimit {
		f.Limit = MaxPageLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}

	items, total, err := s.store.ListAllocations(ctx, f)
	if err != nil {
		return nil, 0, err
	}

	out := make([]AllocationResponse, 0, len(items))
	for i := range items {
		sum, err := s.store.SumDistributed(ctx, items[i].AllocationID)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, buildAllocationResponse(&items[i], sum))
	}
	return out, total, nil
}

func (s *Service) ListDistributions(ctx context.Context, allocationID int64) ([]DistributionResponse, error) {
	if allocationID <= 0 {
		return nil, ErrInvalid("allocation id must be > 0")
	}
	a, err := s.store.GetAllocationByID(ctx, allocationID)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, ErrNotFound("allocation not found")
	}

	items, err := s.store.ListDistributions(ctx, allocationID)
	if err != nil {
		return nil, err
	}
	out := make([]DistributionResponse, 0, len(items))
	for i := range items {
		out = append(out, buildDistributionResponse(&items[i]))
	}
	return out, nil
}

func (s *Service) Recalculate(ctx context.Context, allocationID int64) (*RecalcResponse, error) {
	if allocationID <= 0 {
		return nil, ErrInvalid("allocation id must be > 0")
	}
	a, prev, err := s.store.ExecRecalculate(ctx, allocationID)
	if err != nil {
		return nil, err
	}
	return &RecalcResponse{
		AllocationID:      a.AllocationID,
		PreviousRemaining: prev,
		RemainingQuantity: a.RemainingQuantity,
		Status:            a.Status,
	}, nil
}
