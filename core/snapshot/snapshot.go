// Package snapshot computes the pre-run context shown before a planning
// job is submitted: pending orders, available rakes and stockyards.
package snapshot

import (
	"context"

	"github.com/railops/rakeplan/core/model"
)

// Snapshot is a pure count over the current datasets.
type Snapshot struct {
	PendingOrders  int `json:"pending_orders"`
	AvailableRakes int `json:"available_rakes"`
	StockyardCount int `json:"stockyard_count"`
}

// Compute counts pending orders, available rakes and stockyards. It has
// no state and no side effects.
func Compute(orders []model.Order, rakes []model.Rake, stockyards []model.Stockyard) Snapshot {
	var s Snapshot
	for _, o := range orders {
		if o.Status == model.OrderPending {
			s.PendingOrders++
		}
	}
	for _, r := range rakes {
		if r.Status == model.RakeAvailable {
			s.AvailableRakes++
		}
	}
	s.StockyardCount = len(stockyards)
	return s
}

// Source provides the dataset collections the snapshot counts over.
type Source interface {
	Orders(ctx context.Context) ([]model.Order, error)
	Rakes(ctx context.Context) ([]model.Rake, error)
	Stockyards(ctx context.Context) ([]model.Stockyard, error)
}

// Service fetches the datasets and computes the snapshot.
type Service struct {
	src Source
}

// NewService creates a Service over the given dataset source.
func NewService(src Source) *Service { return &Service{src: src} }

// Current fetches the three collections and counts them.
func (s *Service) Current(ctx context.Context) (Snapshot, error) {
	orders, err := s.src.Orders(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	rakes, err := s.src.Rakes(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	stockyards, err := s.src.Stockyards(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	return Compute(orders, rakes, stockyards), nil
}
