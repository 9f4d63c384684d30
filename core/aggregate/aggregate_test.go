package aggregate

import (
	"math"
	"testing"

	"github.com/railops/rakeplan/core/model"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestRollupCosts(t *testing.T) {
	rakes := []model.PlanRake{
		{RakeNumber: "R1", FreightCost: 100},
		{RakeNumber: "R2", FreightCost: 250},
	}
	r := RollupCosts(rakes, 40, 10)
	if !almostEqual(r.Freight, 350) {
		t.Fatalf("freight = %v, want 350", r.Freight)
	}
	if !almostEqual(r.Total, 400) {
		t.Fatalf("total = %v, want 400", r.Total)
	}
}

func TestRollupCostsClampsNegatives(t *testing.T) {
	rakes := []model.PlanRake{{RakeNumber: "R1", FreightCost: 120}}
	r := RollupCosts(rakes, -1, -2)
	if r.Demurrage != 0 || r.Idle != 0 {
		t.Fatalf("negative components not clamped: %+v", r)
	}
	if !almostEqual(r.Total, 120) {
		t.Fatalf("total = %v, want 120", r.Total)
	}
}

func TestFulfillmentRatio(t *testing.T) {
	if got := FulfillmentRatio(3, 4); !almostEqual(got, 75) {
		t.Fatalf("ratio = %v, want 75", got)
	}
	if got := FulfillmentRatio(0, 0); got != 0 {
		t.Fatalf("ratio with zero total = %v, want 0", got)
	}
}

func TestWeightedUtilization(t *testing.T) {
	rakes := []model.PlanRake{
		{RakeNumber: "R1", TotalWeight: 2700, CapacityTonnes: 3000},
		{RakeNumber: "R2", TotalWeight: 500, CapacityTonnes: 1000},
	}
	got, ok := WeightedUtilization(rakes)
	if !ok {
		t.Fatalf("expected weighted mean to be available")
	}
	// (90*3000 + 50*1000) / 4000 = 80
	if !almostEqual(got, 80) {
		t.Fatalf("weighted utilization = %v, want 80", got)
	}
}

func TestWeightedUtilizationUnknownCapacity(t *testing.T) {
	rakes := []model.PlanRake{
		{RakeNumber: "R1", TotalWeight: 2700, CapacityTonnes: 3000},
		{RakeNumber: "R2", TotalWeight: 500},
	}
	if _, ok := WeightedUtilization(rakes); ok {
		t.Fatalf("weighted mean must not be computed with unknown capacities")
	}
	if _, ok := WeightedUtilization(nil); ok {
		t.Fatalf("weighted mean of no rakes must not be available")
	}
}

func TestClamp(t *testing.T) {
	cases := []struct{ in, want float64 }{
		{-3, 0},
		{0, 0},
		{42.5, 42.5},
		{100, 100},
		{101.2, 100},
	}
	for _, c := range cases {
		if got := Clamp(c.in, 0, 100); got != c.want {
			t.Fatalf("Clamp(%v) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestNormalizePlanRecomputesUtilization(t *testing.T) {
	p := &model.Plan{
		ID:              "p1",
		FreightCost:     100,
		TotalOrders:     2,
		OrdersFulfilled: 0,
		UtilizationPct:  140,
		Rakes: []model.PlanRake{
			{
				RakeNumber:     "R1",
				Destinations:   []string{"BPL"},
				TotalWeight:    2400,
				CapacityTonnes: 3000,
				UtilizationPct: 120,
				FreightCost:    100,
			},
		},
		TotalCost: 50,
	}
	warnings := NormalizePlan(p)
	if len(warnings) == 0 {
		t.Fatalf("expected warnings for out of range values")
	}
	if !almostEqual(p.Rakes[0].UtilizationPct, 80) {
		t.Fatalf("rake utilization = %v, want 80", p.Rakes[0].UtilizationPct)
	}
	if !almostEqual(p.UtilizationPct, 80) {
		t.Fatalf("plan utilization = %v, want 80", p.UtilizationPct)
	}
	if !almostEqual(p.TotalCost, 100) {
		t.Fatalf("total cost = %v, want 100", p.TotalCost)
	}
}

func TestNormalizePlanCleanPlanUntouched(t *testing.T) {
	orders := []model.OrderAssignment{
		{OrderID: "o1", Quantity: 800, Destination: "BPL", FreightCost: 70},
		{OrderID: "o2", Quantity: 700, Destination: "BPL", FreightCost: 65},
		{OrderID: "o3", Quantity: 750, Destination: "NGP", FreightCost: 65},
	}
	p := &model.Plan{
		ID:              "p1",
		FreightCost:     200,
		DemurrageCost:   40,
		IdleCost:        20,
		TotalCost:       260,
		TotalOrders:     4,
		OrdersFulfilled: 3,
		UtilizationPct:  75,
		Rakes: []model.PlanRake{
			{
				RakeNumber:     "R1",
				Destinations:   []string{"BPL", "NGP"},
				OrdersAssigned: orders,
				TotalWeight:    2250,
				CapacityTonnes: 3000,
				UtilizationPct: 75,
				FreightCost:    200,
			},
		},
	}
	if warnings := NormalizePlan(p); len(warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", warnings)
	}
	if !almostEqual(p.UtilizationPct, 75) {
		t.Fatalf("clean plan modified: utilization %v", p.UtilizationPct)
	}
	if !almostEqual(p.TotalCost, 260) {
		t.Fatalf("clean plan modified: total cost %v", p.TotalCost)
	}
}
