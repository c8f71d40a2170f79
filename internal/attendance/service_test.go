package attendance

import (
	"context"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

// ===== test doubles =====

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time { return c.t }

type seqIDGen struct{ n int }

func (g *seqIDGen) New() (string, error) {
	g.n++
	return fmt.Sprintf("01TESTULID%016d", g.n), nil
}

type fakeCenters struct {
	names     map[int64]string
	occupancy map[int64]int
}

func newFakeCenters() *fakeCenters {
	return &fakeCenters{
		names:     make(map[int64]string),
		occupancy: make(map[int64]int),
	}
}

func (f *fakeCenters) CenterName(ctx context.Context, id int64) (string, bool, error) {
	name, ok := f.names[id]
	return name, ok, nil
}

func (f *fakeCenters) CenterOccupancy(ctx context.Context, id int64) (int, error) {
	return f.occupancy[id], nil
}

func (f *fakeCenters) ListCenterIDs(ctx context.Context) ([]int64, error) {
	ids := make([]int64, 0, len(f.names))
	for id := range f.names {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (f *fakeCenters) SetOccupancy(ctx context.Context, id int64, value int) error {
	f.occupancy[id] = value
	return nil
}

func strp(s string) *string { return &s }
func i64p(v int64) *int64   { return &v }

// ===== suite =====

type ServiceSuite struct {
	suite.Suite
	ctx     context.Context
	store   *MemStore
	centers *fakeCenters
	clock   *fakeClock
	svc     *Service
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = NewMemStore()
	s.centers = newFakeCenters()
	s.clock = &fakeClock{t: time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)}

	s.centers.names[1] = "North Gym"
	s.centers.names[2] = "South Hall"
	s.store.SeedCenter(1, "North Gym")
	s.store.SeedCenter(2, "South Hall")
	s.store.SeedIndividual(100, "Aiko Tanaka")
	s.store.SeedIndividual(101, "Ben Okafor")
	s.store.SeedEvent(7, "2025 Flood")

	s.svc = NewService(s.store, s.centers)
	s.svc.clock = s.clock
	s.svc.id = &seqIDGen{}
}

func (s *ServiceSuite) checkIn(individual, center int64) *CheckInResponse {
	res, err := s.svc.CheckIn(s.ctx, CheckInRequest{
		IndividualID: individual,
		CenterID:     center,
		EventID:      7,
		HouseholdID:  50,
		RecordedBy:   strp("staff-1"),
	})
	s.Require().NoError(err)
	return res
}

func (s *ServiceSuite) apiCode(err error) Code {
	s.Require().Error(err)
	api, ok := err.(*APIError)
	s.Require().True(ok, "expected *APIError, got %T", err)
	return api.Code
}

// ===== check-in =====

func (s *ServiceSuite) TestCheckIn() {
	s.Run("creates an active record", func() {
		res := s.checkIn(100, 1)

		s.Equal(StatusCheckedIn, res.Record.Status)
		s.Equal(int64(1), res.Record.CenterID)
		s.Equal("North Gym", res.Record.CenterName)
		s.Equal("staff-1", res.Record.RecordedBy)
		s.False(res.TransferOccurred)
		s.Nil(res.Record.CheckOutTime)
		s.Equal(s.clock.t, res.Record.CheckInTime)
	})

	s.Run("rejects missing recorder", func() {
		_, err := s.svc.CheckIn(s.ctx, CheckInRequest{
			IndividualID: 100, CenterID: 1, EventID: 7, HouseholdID: 50,
		})
		s.Equal(CodeInvalidArgument, s.apiCode(err))
	})

	s.Run("rejects unknown center", func() {
		_, err := s.svc.CheckIn(s.ctx, CheckInRequest{
			IndividualID: 100, CenterID: 99, EventID: 7, HouseholdID: 50,
			RecordedBy: strp("staff-1"),
		})
		s.Equal(CodeNotFound, s.apiCode(err))
	})

	s.Run("honors a client-supplied check_in_time", func() {
		at := time.Date(2025, 3, 9, 8, 30, 0, 0, time.UTC)
		res, err := s.svc.CheckIn(s.ctx, CheckInRequest{
			IndividualID: 101, CenterID: 1, EventID: 7, HouseholdID: 51,
			RecordedBy: strp("staff-1"), CheckInTime: &at,
		})
		s.Require().NoError(err)
		s.Equal(at, res.Record.CheckInTime)
	})
}

func (s *ServiceSuite) TestCheckInDuplicateSameCenter() {
	s.checkIn(100, 1)

	_, err := s.svc.CheckIn(s.ctx, CheckInRequest{
		IndividualID: 100, CenterID: 1, EventID: 7, HouseholdID: 50,
		RecordedBy: strp("staff-2"),
	})
	s.Equal(CodeConflict, s.apiCode(err))

	// The rejected call must not have duplicated anything.
	n, err := s.store.CountActive(s.ctx, 1)
	s.Require().NoError(err)
	s.Equal(1, n)

	history, err := s.svc.History(s.ctx, 100)
	s.Require().NoError(err)
	s.Len(history, 1)
}

// ===== implicit transfer =====

func (s *ServiceSuite) TestCheckInAtOtherCenterBecomesTransfer() {
	first := s.checkIn(100, 1)
	s.clock.t = s.clock.t.Add(2 * time.Hour)

	res := s.checkIn(100, 2)

	s.True(res.TransferOccurred)
	s.Require().NotNil(res.PreviousCenterID)
	s.Equal(int64(1), *res.PreviousCenterID)
	s.Require().NotNil(res.PreviousCenterName)
	s.Equal("North Gym", *res.PreviousCenterName)
	s.Equal(StatusCheckedIn, res.Record.Status)
	s.Equal(int64(2), res.Record.CenterID)

	// Full history: closed original, transferred audit, new active record.
	history, err := s.svc.History(s.ctx, 100)
	s.Require().NoError(err)
	s.Require().Len(history, 3)

	byStatus := make(map[string]RecordResponse, 3)
	for _, r := range history {
		byStatus[r.Status] = r
	}

	closed := byStatus[StatusCheckedOut]
	s.Equal(first.Record.RecordID, closed.RecordID)
	s.Equal(int64(1), closed.CenterID)
	s.Require().NotNil(closed.CheckOutTime)
	s.Equal(s.clock.t, *closed.CheckOutTime)
	s.Require().NotNil(closed.Notes)
	s.Contains(*closed.Notes, "transferred to South Hall")

	audit := byStatus[StatusTransferred]
	s.Equal(int64(2), audit.CenterID)
	s.Require().NotNil(audit.TransferTime)
	s.Equal(s.clock.t, *audit.TransferTime)
	s.Require().NotNil(audit.TransferFromCenterID)
	s.Equal(int64(1), *audit.TransferFromCenterID)
	s.Require().NotNil(audit.TransferToCenterID)
	s.Equal(int64(2), *audit.TransferToCenterID)
	// The audit record must never look active.
	s.NotNil(audit.CheckOutTime)

	active := byStatus[StatusCheckedIn]
	s.Equal(res.Record.RecordID, active.RecordID)
	s.Equal(int64(2), active.CenterID)
	s.Nil(active.CheckOutTime)

	// Active counts moved with the individual.
	n1, _ := s.store.CountActive(s.ctx, 1)
	n2, _ := s.store.CountActive(s.ctx, 2)
	s.Equal(0, n1)
	s.Equal(1, n2)
}

// ===== check-out =====

func (s *ServiceSuite) TestCheckOut() {
	s.Run("closes an active record", func() {
		res := s.checkIn(100, 1)
		s.clock.t = s.clock.t.Add(time.Hour)

		out, err := s.svc.CheckOut(s.ctx, res.Record.RecordID, CheckOutRequest{
			Notes: strp("returned home"),
		})
		s.Require().NoError(err)
		s.Equal(StatusCheckedOut, out.Status)
		s.Require().NotNil(out.CheckOutTime)
		s.Equal(s.clock.t, *out.CheckOutTime)
		s.Require().NotNil(out.Notes)
		s.Contains(*out.Notes, "returned home")
	})

	s.Run("is terminal", func() {
		res := s.checkIn(101, 1)
		_, err := s.svc.CheckOut(s.ctx, res.Record.RecordID, CheckOutRequest{})
		s.Require().NoError(err)

		_, err = s.svc.CheckOut(s.ctx, res.Record.RecordID, CheckOutRequest{})
		s.Equal(CodeInvalidArgument, s.apiCode(err))
	})

	s.Run("unknown record", func() {
		_, err := s.svc.CheckOut(s.ctx, 9999, CheckOutRequest{})
		s.Equal(CodeNotFound, s.apiCode(err))
	})
}

// ===== explicit transfer =====

func (s *ServiceSuite) TestTransfer() {
	s.Run("moves the individual and returns the audit record", func() {
		res := s.checkIn(100, 1)
		s.clock.t = s.clock.t.Add(30 * time.Minute)

		tr, err := s.svc.Transfer(s.ctx, res.Record.RecordID, TransferRequest{
			TransferToCenterID: 2,
			RecordedBy:         strp("staff-2"),
		})
		s.Require().NoError(err)
		s.Equal(StatusTransferred, tr.Record.Status)
		s.Require().NotNil(tr.Record.TransferFromCenterID)
		s.Equal(int64(1), *tr.Record.TransferFromCenterID)
		s.NotZero(tr.NewRecordID)
		s.NotEqual(res.Record.RecordID, tr.NewRecordID)

		n2, _ := s.store.CountActive(s.ctx, 2)
		s.Equal(1, n2)
	})

	s.Run("rejects transfer to the same center", func() {
		res := s.checkIn(101, 1)
		_, err := s.svc.Transfer(s.ctx, res.Record.RecordID, TransferRequest{
			TransferToCenterID: 1,
			RecordedBy:         strp("staff-2"),
		})
		s.Equal(CodeConflict, s.apiCode(err))
	})

	s.Run("rejects a closed record", func() {
		s.store.SeedIndividual(102, "Chen Wei")
		res := s.checkIn(102, 2)
		_, err := s.svc.CheckOut(s.ctx, res.Record.RecordID, CheckOutRequest{})
		s.Require().NoError(err)

		_, err = s.svc.Transfer(s.ctx, res.Record.RecordID, TransferRequest{
			TransferToCenterID: 1,
			RecordedBy:         strp("staff-2"),
		})
		s.Equal(CodeInvalidArgument, s.apiCode(err))
	})

	s.Run("rejects unknown destination", func() {
		res := s.checkIn(101, 2)
		_, err := s.svc.Transfer(s.ctx, res.Record.RecordID, TransferRequest{
			TransferToCenterID: 99,
			RecordedBy:         strp("staff-2"),
		})
		s.Equal(CodeNotFound, s.apiCode(err))
	})
}

// ===== queries =====

func (s *ServiceSuite) TestQueries() {
	s.checkIn(100, 1)
	s.clock.t = s.clock.t.Add(time.Hour)
	s.checkIn(101, 2)

	s.Run("current per center", func() {
		cur, err := s.svc.Current(s.ctx, i64p(1))
		s.Require().NoError(err)
		s.Require().Len(cur, 1)
		s.Equal(int64(100), cur[0].IndividualID)
	})

	s.Run("list filters by status", func() {
		status := StatusCheckedIn
		res, err := s.svc.List(s.ctx, ListQuery{Status: &status})
		s.Require().NoError(err)
		s.Len(res.Results, 2)
		s.Equal(int64(2), res.Pagination.TotalItems)
	})

	s.Run("list searches by name", func() {
		res, err := s.svc.List(s.ctx, ListQuery{Search: strp("aiko")})
		s.Require().NoError(err)
		s.Require().Len(res.Results, 1)
		s.Equal("Aiko Tanaka", res.Results[0].IndividualName)
	})

	s.Run("summary per center", func() {
		sum, err := s.svc.SummaryByCenter(s.ctx, 1, nil)
		s.Require().NoError(err)
		s.Equal(int64(1), sum.TotalEntries)
		s.Equal(int64(1), sum.CurrentCheckedIn)
	})

	s.Run("transfers query", func() {
		res2 := s.checkIn(100, 2) // implicit transfer away from center 1
		s.Equal(StatusCheckedIn, res2.Record.Status)

		page, err := s.svc.Transfers(s.ctx, TransferListQuery{CenterID: i64p(1)})
		s.Require().NoError(err)
		s.Require().Len(page.Results, 1)
		s.Equal(StatusTransferred, page.Results[0].Status)
	})

	s.Run("invalid pagination", func() {
		_, err := s.svc.List(s.ctx, ListQuery{Limit: MaxPageLimit + 1})
		s.Equal(CodeInvalidArgument, s.apiCode(err))
	})
}

func (s *ServiceSuite) TestGet() {
	res := s.checkIn(100, 1)

	got, err := s.svc.Get(s.ctx, res.Record.RecordID)
	s.Require().NoError(err)
	s.Equal(res.Record.RecordID, got.RecordID)
	s.Equal(StatusCheckedIn, got.Status)
	s.Equal("Aiko Tanaka", got.IndividualName)
	s.Equal("North Gym", got.CenterName)

	_, err = s.svc.Get(s.ctx, 9999)
	s.Equal(CodeNotFound, s.apiCode(err))
}

func (s *ServiceSuite) TestListSorting() {
	s.store.SeedIndividual(102, "Chen Wei")
	a := s.checkIn(100, 2)
	s.clock.t = s.clock.t.Add(time.Hour)
	b := s.checkIn(101, 1)
	s.clock.t = s.clock.t.Add(time.Hour)
	c := s.checkIn(102, 2)

	s.clock.t = s.clock.t.Add(time.Hour)
	_, err := s.svc.CheckOut(s.ctx, b.Record.RecordID, CheckOutRequest{})
	s.Require().NoError(err)

	ids := func(res *PagedRecords) []int64 {
		out := make([]int64, 0, len(res.Results))
		for _, r := range res.Results {
			out = append(out, r.RecordID)
		}
		return out
	}

	s.Run("center_id asc", func() {
		res, err := s.svc.List(s.ctx, ListQuery{SortBy: SortCenterID, SortOrder: "asc"})
		s.Require().NoError(err)
		s.Equal([]int64{b.Record.RecordID, a.Record.RecordID, c.Record.RecordID}, ids(res))
	})

	s.Run("status desc", func() {
		res, err := s.svc.List(s.ctx, ListQuery{SortBy: SortStatus, SortOrder: "desc"})
		s.Require().NoError(err)
		// checked_out sorts after checked_in, so it leads descending.
		s.Require().Len(res.Results, 3)
		s.Equal(b.Record.RecordID, res.Results[0].RecordID)
	})

	s.Run("check_out_time asc puts open records first", func() {
		res, err := s.svc.List(s.ctx, ListQuery{SortBy: SortCheckOutTime, SortOrder: "asc"})
		s.Require().NoError(err)
		s.Equal([]int64{a.Record.RecordID, c.Record.RecordID, b.Record.RecordID}, ids(res))
	})

	s.Run("default key is check-in time", func() {
		res, err := s.svc.List(s.ctx, ListQuery{SortOrder: "desc"})
		s.Require().NoError(err)
		s.Equal([]int64{c.Record.RecordID, b.Record.RecordID, a.Record.RecordID}, ids(res))
	})
}

func (s *ServiceSuite) TestPagination() {
	// 25 individuals checked in, 10 per page.
	for i := int64(0); i < 25; i++ {
		s.store.SeedIndividual(200+i, fmt.Sprintf("Evacuee %02d", i))
		s.checkIn(200+i, 1)
		s.clock.t = s.clock.t.Add(time.Minute)
	}

	page1, err := s.svc.List(s.ctx, ListQuery{Page: 1, Limit: 10})
	s.Require().NoError(err)
	s.Len(page1.Results, 10)
	s.Equal(3, page1.Pagination.TotalPages)
	s.Equal(int64(25), page1.Pagination.TotalItems)
	s.Equal(10, page1.Pagination.Limit)

	page3, err := s.svc.List(s.ctx, ListQuery{Page: 3, Limit: 10})
	s.Require().NoError(err)
	s.Len(page3.Results, 5)
	s.Equal(3, page3.Pagination.CurrentPage)

	page4, err := s.svc.List(s.ctx, ListQuery{Page: 4, Limit: 10})
	s.Require().NoError(err)
	s.Empty(page4.Results)
	s.Equal(int64(25), page4.Pagination.TotalItems)
}

func (s *ServiceSuite) TestDeleteRecord() {
	res := s.checkIn(100, 1)

	s.Require().NoError(s.svc.DeleteRecord(s.ctx, res.Record.RecordID))

	err := s.svc.DeleteRecord(s.ctx, res.Record.RecordID)
	s.Equal(CodeNotFound, s.apiCode(err))
}
