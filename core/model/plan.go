package model

import (
	"fmt"
	"math"
	"time"
)

// Plan is the assignment produced by the Planning Engine for one
// completed job. It is immutable except for the committed transition,
// which only ever goes false to true.
type Plan struct {
	ID              string     `json:"id"`
	JobID           string     `json:"job_id"`
	Name            string     `json:"name"`
	Algorithm       string     `json:"algorithm"`
	TotalCost       float64    `json:"total_cost"`
	FreightCost     float64    `json:"freight_cost"`
	DemurrageCost   float64    `json:"demurrage_cost"`
	IdleCost        float64    `json:"idle_cost"`
	UtilizationPct  float64    `json:"utilization_pct"`
	OrdersFulfilled int        `json:"orders_fulfilled"`
	TotalOrders     int        `json:"total_orders"`
	Committed       bool       `json:"committed"`
	CommittedAt     *time.Time `json:"committed_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	Rakes           []PlanRake `json:"rakes"`
}

// PlanRake is one rake assignment within a plan.
type PlanRake struct {
	RakeNumber string `json:"rake_number"`

	// Origin stockyard reference. All three are set or all are empty.
	OriginStockyardID   string `json:"origin_stockyard_id,omitempty"`
	OriginStockyardName string `json:"origin_stockyard_name,omitempty"`
	OriginStockyardCode string `json:"origin_stockyard_code,omitempty"`

	Destinations   []string          `json:"destinations"`
	OrdersAssigned []OrderAssignment `json:"orders_assigned"`
	TotalWeight    float64           `json:"total_weight"`
	UtilizationPct float64           `json:"utilization_pct"`
	FreightCost    float64           `json:"freight_cost"`

	// CapacityTonnes is the rake's nominal capacity when the engine
	// reports it; zero means unknown.
	CapacityTonnes float64 `json:"capacity_tonnes,omitempty"`
}

// HasOrigin reports whether the rake carries an origin stockyard
// reference.
func (r PlanRake) HasOrigin() bool {
	return r.OriginStockyardID != "" || r.OriginStockyardName != "" || r.OriginStockyardCode != ""
}

// OrderAssignment is one order placed on a rake.
type OrderAssignment struct {
	OrderID     string  `json:"order_id"`
	OrderNumber string  `json:"order_number"`
	ProductCode string  `json:"product_code"`
	Quantity    float64 `json:"quantity"`
	Destination string  `json:"destination"`
	FreightCost float64 `json:"freight_cost"`
}

// FreightTolerance is the accepted rounding slack per rake when
// comparing the plan-level freight cost against the per-rake sum.
const FreightTolerance = 0.5

// Validate checks hard structural invariants. Violations here mean the
// payload is unusable, unlike the soft consistency checks in Check.
func (p Plan) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("plan has no id")
	}
	if p.TotalCost < 0 || p.FreightCost < 0 || p.DemurrageCost < 0 || p.IdleCost < 0 {
		return fmt.Errorf("plan %s has negative cost", p.ID)
	}
	if p.OrdersFulfilled < 0 || p.TotalOrders < 0 {
		return fmt.Errorf("plan %s has negative order counts", p.ID)
	}
	if p.OrdersFulfilled > p.TotalOrders {
		return fmt.Errorf("plan %s fulfils %d of %d orders", p.ID, p.OrdersFulfilled, p.TotalOrders)
	}
	if p.Committed != (p.CommittedAt != nil) {
		return fmt.Errorf("plan %s committed flag and timestamp disagree", p.ID)
	}
	for i, r := range p.Rakes {
		if err := r.validate(); err != nil {
			return fmt.Errorf("rake %d: %w", i, err)
		}
	}
	return nil
}

func (r PlanRake) validate() error {
	if r.RakeNumber == "" {
		return fmt.Errorf("missing rake number")
	}
	if len(r.Destinations) == 0 {
		return fmt.Errorf("rake %s serves no destination", r.RakeNumber)
	}
	if r.TotalWeight < 0 || r.FreightCost < 0 || r.CapacityTonnes < 0 {
		return fmt.Errorf("rake %s has negative figures", r.RakeNumber)
	}
	full := r.OriginStockyardID != "" && r.OriginStockyardName != "" && r.OriginStockyardCode != ""
	if r.HasOrigin() && !full {
		return fmt.Errorf("rake %s has a partial origin stockyard reference", r.RakeNumber)
	}
	for _, o := range r.OrdersAssigned {
		if o.Quantity <= 0 {
			return fmt.Errorf("order %s on rake %s has quantity %v", o.OrderID, r.RakeNumber, o.Quantity)
		}
		if o.FreightCost < 0 {
			return fmt.Errorf("order %s on rake %s has negative freight", o.OrderID, r.RakeNumber)
		}
	}
	return nil
}

// Check runs the soft consistency checks on an engine-supplied plan and
// returns one warning per mismatch. The plan stays displayable; callers
// are expected to recompute the affected figures before showing them.
func (p Plan) Check() []string {
	var warns []string

	var rakeFreight float64
	assigned := 0
	for _, r := range p.Rakes {
		rakeFreight += r.FreightCost
		assigned += len(r.OrdersAssigned)
	}
	tol := FreightTolerance * float64(len(p.Rakes))
	if math.Abs(rakeFreight-p.FreightCost) > tol {
		warns = append(warns, fmt.Sprintf("freight rollup %.2f differs from plan freight %.2f (tolerance %.2f)", rakeFreight, p.FreightCost, tol))
	}
	if assigned > p.TotalOrders {
		warns = append(warns, fmt.Sprintf("%d orders assigned across rakes but plan only has %d", assigned, p.TotalOrders))
	}
	if assigned != p.OrdersFulfilled {
		warns = append(warns, fmt.Sprintf("%d orders assigned across rakes but plan reports %d fulfilled", assigned, p.OrdersFulfilled))
	}
	if p.UtilizationPct < 0 || p.UtilizationPct > 100 {
		warns = append(warns, fmt.Sprintf("plan utilization %.1f%% out of range", p.UtilizationPct))
	}
	for _, r := range p.Rakes {
		if r.UtilizationPct < 0 || r.UtilizationPct > 100 {
			warns = append(warns, fmt.Sprintf("rake %s utilization %.1f%% out of range", r.RakeNumber, r.UtilizationPct))
			continue
		}
		if r.CapacityTonnes > 0 {
			expect := r.TotalWeight / r.CapacityTonnes * 100
			if math.Abs(expect-r.UtilizationPct) > 1 {
				warns = append(warns, fmt.Sprintf("rake %s utilization %.1f%% inconsistent with %.0ft of %.0ft capacity", r.RakeNumber, r.UtilizationPct, r.TotalWeight, r.CapacityTonnes))
			}
		}
	}
	return warns
}
