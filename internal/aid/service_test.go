package aid

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time { return c.t }

type seqIDGen struct{ n int }

func (g *seqIDGen) New() (string, error) {
	g.n++
	return fmt.Sprintf("01TESTULID%016d", g.n), nil
}

func strp(s string) *string { return &s }
func i64p(v int64) *int64   { return &v }

type ServiceSuite struct {
	suite.Suite
	ctx   context.Context
	store *MemStore
	clock *fakeClock
	svc   *Service
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = NewMemStore()
	s.clock = &fakeClock{t: time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)}
	s.svc = &Service{store: s.store, clock: s.clock, id: &seqIDGen{}}
}

func (s *ServiceSuite) allocate(total int) *AllocationResponse {
	res, err := s.svc.CreateAllocation(s.ctx, CreateAllocationRequest{
		CenterID:      1,
		CategoryID:    3,
		TotalQuantity: total,
		Unit:          "bottles",
		AllocatedBy:   strp("staff-1"),
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

func (s *ServiceSuite) TestCreateAllocation() {
	s.Run("starts allocated with full remaining", func() {
		res := s.allocate(100)
		s.Equal(StatusAllocated, res.Status)
		s.Equal(100, res.TotalQuantity)
		s.Equal(100, res.RemainingQuantity)
		s.Equal(0, res.DistributedSum)
	})

	s.Run("rejects non-positive quantity", func() {
		_, err := s.svc.CreateAllocation(s.ctx, CreateAllocationRequest{
			CenterID: 1, CategoryID: 3, TotalQuantity: 0, Unit: "bottles",
		})
		s.Equal(CodeInvalidArgument, s.apiCode(err))
	})

	s.Run("rejects missing unit", func() {
		_, err := s.svc.CreateAllocation(s.ctx, CreateAllocationRequest{
			CenterID: 1, CategoryID: 3, TotalQuantity: 10,
		})
		s.Equal(CodeInvalidArgument, s.apiCode(err))
	})
}

func (s *ServiceSuite) TestDistributeStatusTransitions() {
	alloc := s.allocate(10)

	// allocated -> partially_distributed
	_, err := s.svc.Distribute(s.ctx, CreateDistributionRequest{
		AllocationID: alloc.AllocationID, Quantity: 4, HouseholdID: i64p(50),
	})
	s.Require().NoError(err)

	got, err := s.svc.GetAllocation(s.ctx, alloc.AllocationID)
	s.Require().NoError(err)
	s.Equal(StatusPartiallyDistributed, got.Status)
	s.Equal(6, got.RemainingQuantity)
	s.Equal(4, got.DistributedSum)

	// partially_distributed -> depleted
	_, err = s.svc.Distribute(s.ctx, CreateDistributionRequest{
		AllocationID: alloc.AllocationID, Quantity: 6,
	})
	s.Require().NoError(err)

	got, err = s.svc.GetAllocation(s.ctx, alloc.AllocationID)
	s.Require().NoError(err)
	s.Equal(StatusDepleted, got.Status)
	s.Equal(0, got.RemainingQuantity)
}

func (s *ServiceSuite) TestDistributeOverRemaining() {
	alloc := s.allocate(10)

	_, err := s.svc.Distribute(s.ctx, CreateDistributionRequest{
		AllocationID: alloc.AllocationID, Quantity: 7,
	})
	s.Require().NoError(err)

	// 3 remain; asking for 4 must be rejected without touching the ledger.
	_, err = s.svc.Distribute(s.ctx, CreateDistributionRequest{
		AllocationID: alloc.AllocationID, Quantity: 4,
	})
	s.Equal(CodeOverRemaining, s.apiCode(err))
	s.Equal(409, toHTTPStatus(err))

	got, err := s.svc.GetAllocation(s.ctx, alloc.AllocationID)
	s.Require().NoError(err)
	s.Equal(3, got.RemainingQuantity)
	s.Equal(StatusPartiallyDistributed, got.Status)

	items, err := s.svc.ListDistributions(s.ctx, alloc.AllocationID)
	s.Require().NoError(err)
	s.Len(items, 1)
}

func (s *ServiceSuite) TestDistributeValidation() {
	s.Run("unknown allocation", func() {
		_, err := s.svc.Distribute(s.ctx, CreateDistributionRequest{
			AllocationID: 999, Quantity: 1,
		})
		s.Equal(CodeNotFound, s.apiCode(err))
	})

	s.Run("non-positive quantity", func() {
		alloc := s.allocate(10)
		_, err := s.svc.Distribute(s.ctx, CreateDistributionRequest{
			AllocationID: alloc.AllocationID, Quantity: 0,
		})
		s.Equal(CodeInvalidArgument, s.apiCode(err))
	})
}

func (s *ServiceSuite) TestRecalculate() {
	alloc := s.allocate(20)
	_, err := s.svc.Distribute(s.ctx, CreateDistributionRequest{
		AllocationID: alloc.AllocationID, Quantity: 5,
	})
	s.Require().NoError(err)

	// Drifted counter is overwritten from the ledger, not adjusted.
	s.store.SetRemaining(alloc.AllocationID, 2)

	res, err := s.svc.Recalculate(s.ctx, alloc.AllocationID)
	s.Require().NoError(err)
	s.Equal(2, res.PreviousRemaining)
	s.Equal(15, res.RemainingQuantity)
	s.Equal(StatusPartiallyDistributed, res.Status)

	s.Run("unknown allocation", func() {
		_, err := s.svc.Recalculate(s.ctx, 999)
		s.Equal(CodeNotFound, s.apiCode(err))
	})
}

func (s *ServiceSuite) TestListAllocations() {
	a := s.allocate(10)
	s.clock.t = s.clock.t.Add(time.Hour)
	s.allocate(20)

	_, err := s.svc.Distribute(s.ctx, CreateDistributionRequest{
		AllocationID: a.AllocationID, Quantity: 10,
	})
	s.Require().NoError(err)

	s.Run("newest first", func() {
		items, total, err := s.svc.ListAllocations(s.ctx, AllocationFilter{})
		s.Require().NoError(err)
		s.Equal(int64(2), total)
		s.Require().Len(items, 2)
		s.Equal(20, items[0].TotalQuantity)
	})

	s.Run("filters by status", func() {
		status := StatusDepleted
		items, total, err := s.svc.ListAllocations(s.ctx, AllocationFilter{Status: &status})
		s.Require().NoError(err)
		s.Equal(int64(1), total)
		s.Require().Len(items, 1)
		s.Equal(a.AllocationID, items[0].AllocationID)
	})

	s.Run("unknown allocation distributions", func() {
		_, err := s.svc.ListDistributions(s.ctx, 999)
		s.Equal(CodeNotFound, s.apiCode(err))
	})
}
