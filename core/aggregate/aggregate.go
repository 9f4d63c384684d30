// Package aggregate derives rollup metrics from a plan's rake
// assignments. All functions are pure; NormalizePlan is the only one
// that mutates its argument and it does so deterministically.
package aggregate

import (
	"fmt"

	"gonum.org/v1/gonum/stat"

	"github.com/railops/rakeplan/core/model"
)

// CostRollup is the cost breakdown derived from a plan.
type CostRollup struct {
	Freight   float64
	Demurrage float64
	Idle      float64
	Total     float64
}

// RollupCosts sums per-rake freight costs and combines them with the
// plan-level demurrage and idle figures. Negative plan-level figures
// are treated as zero; the engine has no per-rake decomposition for
// them, so they pass through otherwise unchanged.
func RollupCosts(rakes []model.PlanRake, demurrage, idle float64) CostRollup {
	var freight float64
	for _, r := range rakes {
		freight += r.FreightCost
	}
	if demurrage < 0 {
		demurrage = 0
	}
	if idle < 0 {
		idle = 0
	}
	return CostRollup{
		Freight:   freight,
		Demurrage: demurrage,
		Idle:      idle,
		Total:     freight + demurrage + idle,
	}
}

// WeightedUtilization computes the plan-level utilization as the
// capacity-weighted mean of per-rake utilization. It reports false when
// any rake's capacity is unknown, in which case callers fall back to
// the engine-supplied figure.
func WeightedUtilization(rakes []model.PlanRake) (float64, bool) {
	if len(rakes) == 0 {
		return 0, false
	}
	utils := make([]float64, 0, len(rakes))
	caps := make([]float64, 0, len(rakes))
	for _, r := range rakes {
		if r.CapacityTonnes <= 0 {
			return 0, false
		}
		utils = append(utils, r.TotalWeight/r.CapacityTonnes*100)
		caps = append(caps, r.CapacityTonnes)
	}
	return Clamp(stat.Mean(utils, caps), 0, 100), true
}

// FulfillmentRatio returns fulfilled/total as a percentage, and 0 when
// total is zero.
func FulfillmentRatio(fulfilled, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(fulfilled) / float64(total) * 100
}

// Clamp bounds v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// NormalizePlan recomputes figures the engine got wrong or omitted and
// returns one warning per correction. Mismatches are never fatal: the
// plan stays displayable with the recomputed values in place.
func NormalizePlan(p *model.Plan) []string {
	warns := p.Check()

	for i := range p.Rakes {
		r := &p.Rakes[i]
		if r.UtilizationPct < 0 || r.UtilizationPct > 100 {
			if r.CapacityTonnes > 0 {
				r.UtilizationPct = Clamp(r.TotalWeight/r.CapacityTonnes*100, 0, 100)
			} else {
				r.UtilizationPct = Clamp(r.UtilizationPct, 0, 100)
			}
		}
	}

	if p.UtilizationPct <= 0 || p.UtilizationPct > 100 {
		if w, ok := WeightedUtilization(p.Rakes); ok {
			warns = append(warns, fmt.Sprintf("plan utilization recomputed to %.1f%%", w))
			p.UtilizationPct = w
		} else {
			p.UtilizationPct = Clamp(p.UtilizationPct, 0, 100)
		}
	}

	roll := RollupCosts(p.Rakes, p.DemurrageCost, p.IdleCost)
	if p.TotalCost < roll.Freight {
		warns = append(warns, fmt.Sprintf("plan total cost %.2f below freight rollup %.2f, recomputed to %.2f", p.TotalCost, roll.Freight, roll.Total))
		p.TotalCost = roll.Total
	}
	return warns
}
