package attendance

import (
	"context"
	"database/sql"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemStore is an in-memory Store used by unit tests and local development.
// InTx snapshots the record set so a failed callback leaves nothing applied,
// matching the SQL implementation's rollback semantics.
type MemStore struct {
	mu      sync.Mutex
	records map[int64]*Record
	nextID  int64

	individualNames map[int64]string
	centerNames     map[int64]string
	eventNames      map[int64]string
}

func NewMemStore() *MemStore {
	return &MemStore{
		records:         make(map[int64]*Record),
		nextID:          1,
		individualNames: make(map[int64]string),
		centerNames:     make(map[int64]string),
		eventNames:      make(map[int64]string),
	}
}

func (m *MemStore) SeedIndividual(id int64, name string) { m.individualNames[id] = name }
func (m *MemStore) SeedCenter(id int64, name string)     { m.centerNames[id] = name }
func (m *MemStore) SeedEvent(id int64, name string)      { m.eventNames[id] = name }

func (m *MemStore) detail(r *Record) RecordDetail {
	return RecordDetail{
		Record:         *r,
		IndividualName: m.individualNames[r.IndividualID],
		CenterName:     m.centerNames[r.CenterID],
		EventName:      m.eventNames[r.EventID],
	}
}

// ===== transactional writes =====

type memTx struct{ store *MemStore }

func (m *MemStore) InTx(ctx context.Context, fn func(tx TxStore) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := make(map[int64]*Record, len(m.records))
	for id, r := range m.records {
		cp := *r
		snapshot[id] = &cp
	}
	snapID := m.nextID

	if err := fn(&memTx{store: m}); err != nil {
		m.records = snapshot
		m.nextID = snapID
		return err
	}
	return nil
}

func (t *memTx) ActiveByIndividualForUpdate(ctx context.Context, individualID int64) (*Record, error) {
	for _, r := range t.store.records {
		if r.IndividualID == individualID && r.Active() {
			cp := *r
			return &cp, nil
		}
	}
	return nil, nil
}

func (t *memTx) GetForUpdate(ctx context.Context, recordID int64) (*Record, error) {
	r, ok := t.store.records[recordID]
	if !ok {
		return nil, nil
	}
	cp := *r
	return &cp, nil
}

func (t *memTx) Insert(ctx context.Context, r *Record) error {
	if r.Active() {
		// Mirrors the storage-level unique key on the active predicate.
		for _, other := range t.store.records {
			if other.IndividualID == r.IndividualID && other.Active() {
				return ErrConflict("individual already has an active attendance record")
			}
		}
	}
	r.RecordID = t.store.nextID
	t.store.nextID++
	cp := *r
	t.store.records[r.RecordID] = &cp
	return nil
}

func (t *memTx) Close(ctx context.Context, recordID int64, status string, outAt time.Time, note *string) error {
	r, ok := t.store.records[recordID]
	if !ok {
		return ErrInternal("failed to close attendance record")
	}
	r.Status = status
	r.CheckOutTime.Time = outAt
	r.CheckOutTime.Valid = true
	r.UpdatedAt = outAt
	if note != nil && *note != "" {
		if r.Notes.Valid && r.Notes.String != "" {
			r.Notes.String += "\n" + *note
		} else {
			r.Notes.String = *note
			r.Notes.Valid = true
		}
	}
	return nil
}

// ===== reads =====

func (m *MemStore) all() []*Record {
	out := make([]*Record, 0, len(m.records))
	for _, r := range m.records {
		out = append(out, r)
	}
	return out
}

func sortRecords(rs []*Record, asc bool) {
	sortRecordsBy(rs, DefaultSort, asc)
}

// sortRecordsBy mirrors listOrder: the same sort keys, record_id as the
// tiebreaker in the same direction, and NULL timestamps ordered the way
// MySQL orders them (first ascending, last descending).
func sortRecordsBy(rs []*Record, sortBy string, asc bool) {
	sort.Slice(rs, func(i, j int) bool {
		a, b := rs[i], rs[j]
		if c := compareBy(a, b, sortBy); c != 0 {
			if asc {
				return c < 0
			}
			return c > 0
		}
		if asc {
			return a.RecordID < b.RecordID
		}
		return a.RecordID > b.RecordID
	})
}

func compareBy(a, b *Record, sortBy string) int {
	switch sortBy {
	case SortCheckOutTime:
		return compareNullTime(a.CheckOutTime, b.CheckOutTime)
	case SortTransferTime:
		return compareNullTime(a.TransferTime, b.TransferTime)
	case SortStatus:
		return strings.Compare(a.Status, b.Status)
	case SortCenterID:
		switch {
		case a.CenterID < b.CenterID:
			return -1
		case a.CenterID > b.CenterID:
			return 1
		}
		return 0
	default:
		return a.CheckInTime.Compare(b.CheckInTime)
	}
}

func compareNullTime(a, b sql.NullTime) int {
	switch {
	case !a.Valid && !b.Valid:
		return 0
	case !a.Valid:
		return -1
	case !b.Valid:
		return 1
	}
	return a.Time.Compare(b.Time)
}

func (m *MemStore) GetByID(ctx context.Context, recordID int64) (*RecordDetail, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[recordID]
	if !ok {
		return nil, nil
	}
	d := m.detail(r)
	return &d, nil
}

func (m *MemStore) List(ctx context.Context, q ListQuery) ([]RecordDetail, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var matched []*Record
	for _, r := range m.all() {
		if q.CenterID != nil && r.CenterID != *q.CenterID {
			continue
		}
		if q.IndividualID != nil && r.IndividualID != *q.IndividualID {
			continue
		}
		if q.EventID != nil && r.EventID != *q.EventID {
			continue
		}
		if q.HouseholdID != nil && r.HouseholdID != *q.HouseholdID {
			continue
		}
		if q.Status != nil && r.Status != *q.Status {
			continue
		}
		if q.Date != nil && r.CheckInTime.Format(DateLayout) != *q.Date {
			continue
		}
		if q.Search != nil && !strings.Contains(
			strings.ToLower(m.individualNames[r.IndividualID]), strings.ToLower(*q.Search)) {
			continue
		}
		matched = append(matched, r)
	}
	sortRecordsBy(matched, q.SortBy, strings.EqualFold(q.SortOrder, "asc"))

	total := int64(len(matched))
	start := (q.Page - 1) * q.Limit
	if start > len(matched) {
		start = len(matched)
	}
	end := start + q.Limit
	if end > len(matched) {
		end = len(matched)
	}

	out := make([]RecordDetail, 0, end-start)
	for _, r := range matched[start:end] {
		out = append(out, m.detail(r))
	}
	return out, total, nil
}

func (m *MemStore) ListCurrent(ctx context.Context, centerID *int64) ([]RecordDetail, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var matched []*Record
	for _, r := range m.all() {
		if !r.Active() {
			continue
		}
		if centerID != nil && r.CenterID != *centerID {
			continue
		}
		matched = append(matched, r)
	}
	sortRecords(matched, false)

	out := make([]RecordDetail, 0, len(matched))
	for _, r := range matched {
		out = append(out, m.detail(r))
	}
	return out, nil
}

func (m *MemStore) ListTransfers(ctx context.Context, q TransferListQuery) ([]RecordDetail, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var matched []*Record
	for _, r := range m.all() {
		if r.Status != StatusTransferred {
			continue
		}
		if q.CenterID != nil &&
			!(r.TransferFromCenterID.Valid && r.TransferFromCenterID.Int64 == *q.CenterID) &&
			!(r.TransferToCenterID.Valid && r.TransferToCenterID.Int64 == *q.CenterID) {
			continue
		}
		matched = append(matched, r)
	}
	sortBy := q.SortBy
	if sortBy == "" {
		sortBy = SortTransferTime
	}
	sortRecordsBy(matched, sortBy, strings.EqualFold(q.SortOrder, "asc"))

	total := int64(len(matched))
	start := (q.Page - 1) * q.Limit
	if start > len(matched) {
		start = len(matched)
	}
	end := start + q.Limit
	if end > len(matched) {
		end = len(matched)
	}

	out := make([]RecordDetail, 0, end-start)
	for _, r := range matched[start:end] {
		out = append(out, m.detail(r))
	}
	return out, total, nil
}

func (m *MemStore) HistoryByIndividual(ctx context.Context, individualID int64) ([]RecordDetail, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var matched []*Record
	for _, r := range m.all() {
		if r.IndividualID == individualID {
			matched = append(matched, r)
		}
	}
	sortRecords(matched, false)

	out := make([]RecordDetail, 0, len(matched))
	for _, r := range matched {
		out = append(out, m.detail(r))
	}
	return out, nil
}

func (m *MemStore) Summary(ctx context.Context, centerID int64, eventID *int64) (Summary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var sum Summary
	for _, r := range m.records {
		if r.CenterID != centerID {
			continue
		}
		if eventID != nil && r.EventID != *eventID {
			continue
		}
		sum.TotalEntries++
		switch {
		case r.Active():
			sum.CurrentCheckedIn++
		case r.Status == StatusCheckedOut:
			sum.TotalCheckedOut++
		case r.Status == StatusTransferred:
			sum.TotalTransferred++
		}
	}
	return sum, nil
}

func (m *MemStore) CountActive(ctx context.Context, centerID int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	seen := make(map[int64]struct{})
	for _, r := range m.records {
		if r.CenterID == centerID && r.Active() {
			seen[r.IndividualID] = struct{}{}
		}
	}
	return len(seen), nil
}

func (m *MemStore) Delete(ctx context.Context, recordID int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[recordID]; !ok {
		return 0, nil
	}
	delete(m.records, recordID)
	return 1, nil
}
