package aid

import (
	"context"
	"sort"
	"sync"
)

// MemStore is an in-memory AllocationStore used by unit tests. It applies the
// same guards the SQL transactions do: missing allocation is NOT_FOUND and
// over-distribution is QUANTITY_OVER_REMAINING, with nothing written.
type MemStore struct {
	mu            sync.Mutex
	allocations   map[int64]*Allocation
	distributions map[int64][]Distribution
	nextAllocID   int64
	nextDistID    int64
}

func NewMemStore() *MemStore {
	return &MemStore{
		allocations:   make(map[int64]*Allocation),
		distributions: make(map[int64][]Distribution),
		nextAllocID:   1,
		nextDistID:    1,
	}
}

func (m *MemStore) InsertAllocation(ctx context.Context, a *Allocation) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	a.AllocationID = m.nextAllocID
	m.nextAllocID++
	cp := *a
	m.allocations[a.AllocationID] = &cp
	return nil
}

func (m *MemStore) GetAllocationByID(ctx context.Context, id int64) (*Allocation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.allocations[id]
	if !ok {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}

func (m *MemStore) ListAllocations(ctx context.Context, f AllocationFilter) ([]Allocation, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var matched []*Allocation
	for _, a := range m.allocations {
		if f.CenterID != nil && a.CenterID != *f.CenterID {
			continue
		}
		if f.Status != nil && a.Status != *f.Status {
			continue
		}
		matched = append(matched, a)
	}
	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if !a.AllocatedAt.Equal(b.AllocatedAt) {
			return a.AllocatedAt.After(b.AllocatedAt)
		}
		return a.AllocationID > b.AllocationID
	})

	total := int64(len(matched))
	start := f.Offset
	if start > len(matched) {
		start = len(matched)
	}
	end := start + f.Limit
	if end > len(matched) {
		end = len(matched)
	}

	out := make([]Allocation, 0, end-start)
	for _, a := range matched[start:end] {
		out = append(out, *a)
	}
	return out, total, nil
}

func (m *MemStore) SumDistributed(ctx context.Context, allocationID int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sum := 0
	for _, d := range m.distributions[allocationID] {
		sum += d.Quantity
	}
	return sum, nil
}

func (m *MemStore) ListDistributions(ctx context.Context, allocationID int64) ([]Distribution, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Distribution, len(m.distributions[allocationID]))
	copy(out, m.distributions[allocationID])
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.DistributedAt.Equal(b.DistributedAt) {
			return a.DistributedAt.After(b.DistributedAt)
		}
		return a.DistributionID > b.DistributionID
	})
	return out, nil
}

func (m *MemStore) ExecDistribute(ctx context.Context, d *Distribution) (*Allocation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.allocations[d.AllocationID]
	if !ok {
		return nil, ErrNotFound("allocation not found")
	}
	if d.Quantity > a.RemainingQuantity {
		return nil, ErrOverRemaining()
	}

	d.DistributionID = m.nextDistID
	m.nextDistID++
	m.distributions[d.AllocationID] = append(m.distributions[d.AllocationID], *d)

	a.RemainingQuantity -= d.Quantity
	a.Status = allocStatus(a.TotalQuantity, a.RemainingQuantity)
	a.UpdatedAt = d.DistributedAt

	cp := *a
	return &cp, nil
}

func (m *MemStore) ExecRecalculate(ctx context.Context, allocationID int64) (*Allocation, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.allocations[allocationID]
	if !ok {
		return nil, 0, ErrNotFound("allocation not found")
	}
	prev := a.RemainingQuantity

	sum := 0
	for _, d := range m.distributions[allocationID] {
		sum += d.Quantity
	}
	a.RemainingQuantity = a.TotalQuantity - sum
	a.Status = allocStatus(a.TotalQuantity, a.RemainingQuantity)

	cp := *a
	return &cp, prev, nil
}

// SetRemaining overwrites the denormalized counter, simulating drift.
func (m *MemStore) SetRemaining(id int64, remaining int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok := m.allocations[id]; ok {
		a.RemainingQuantity = remaining
		a.Status = allocStatus(a.TotalQuantity, remaining)
	}
}
