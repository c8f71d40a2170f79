package attendance

import (
	"context"
	"fmt"
)

// Reconciler recomputes the denormalized occupancy counter from the record
// set. The write paths never call it: occupancy drifts between writes and is
// corrected only by an explicit operator request or an external schedule.
type Reconciler struct {
	store   Store
	centers CenterDirectory
}

func NewReconciler(store Store, centers CenterDirectory) *Reconciler {
	return &Reconciler{store: store, centers: centers}
}

// Recalculate sets the center's occupancy to the count of distinct
// individuals with an active record there, whatever the counter held before.
func (r *Reconciler) Recalculate(ctx context.Context, centerID int64) (RecalcResult, error) {
	_, ok, err := r.centers.CenterName(ctx, centerID)
	if err != nil {
		return RecalcResult{}, err
	}
	if !ok {
		return RecalcResult{}, ErrNotFound(fmt.Sprintf("center %d not found", centerID))
	}

	prev, err := r.centers.CenterOccupancy(ctx, centerID)
	if err != nil {
		return RecalcResult{}, err
	}
	n, err := r.store.CountActive(ctx, centerID)
	if err != nil {
		return RecalcResult{}, err
	}
	if err := r.centers.SetOccupancy(ctx, centerID, n); err != nil {
		return RecalcResult{}, err
	}
	return RecalcResult{CenterID: centerID, Previous: prev, Occupancy: n}, nil
}

// RecalculateAll reconciles every known center.
func (r *Reconciler) RecalculateAll(ctx context.Context) ([]RecalcResult, error) {
	ids, err := r.centers.ListCenterIDs(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]RecalcResult, 0, len(ids))
	for _, id := range ids {
		res, err := r.Recalculate(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, nil
}
