package analytics_test

import (
	"math"
	"slices"
	"testing"

	"github.com/boddenberg/fincore/internal/analytics"
	"github.com/boddenberg/fincore/internal/domain"
	"github.com/shopspring/decimal"
)

func runwayInputs(burn, cash int64) domain.RunwayInputs {
	return domain.RunwayInputs{
		CurrentBurnRate: decimal.NewFromInt(burn),
		CurrentCash:     decimal.NewFromInt(cash),
	}
}

func TestSimulate_Baseline(t *testing.T) {
	res := analytics.Simulate(runwayInputs(85000, 1250000))

	if !res.NewBurnRate.Equal(decimal.NewFromInt(85000)) {
		t.Errorf("expected burn 85000, got %s", res.NewBurnRate)
	}
	if math.Abs(res.NewRunwayMonths-14.7) > 0.05 {
		t.Errorf("expected ~14.7 months, got %f", res.NewRunwayMonths)
	}
	// 14.7 months is past the medium bound.
	if res.RiskLevel != domain.RiskLow {
		t.Errorf("expected low risk, got %s", res.RiskLevel)
	}
	if len(res.Recommendations) != 0 {
		t.Errorf("expected no recommendations, got %v", res.Recommendations)
	}
}

func TestSimulate_HiringDropsRunway(t *testing.T) {
	in := runwayInputs(85000, 1250000)
	in.HiringPlan = decimal.NewFromInt(50000)

	res := analytics.Simulate(in)

	if res.NewRunwayMonths >= 10 {
		t.Errorf("expected runway below 10, got %f", res.NewRunwayMonths)
	}
	if res.RiskLevel != domain.RiskMedium {
		t.Errorf("expected medium risk, got %s", res.RiskLevel)
	}
	if !slices.Contains(res.Recommendations, analytics.RecommendReduceBurn) {
		t.Error("expected burn reduction recommendation")
	}
	if !slices.Contains(res.Recommendations, analytics.RecommendReviewHiring) {
		t.Error("expected hiring recommendation")
	}
}

func TestSimulate_HighRiskBelowSixMonths(t *testing.T) {
	in := runwayInputs(85000, 1250000)
	in.HiringPlan = decimal.NewFromInt(130000) // 1.25M / 215k ≈ 5.81

	res := analytics.Simulate(in)
	if res.RiskLevel != domain.RiskHigh {
		t.Errorf("expected high risk, got %s (%f months)", res.RiskLevel, res.NewRunwayMonths)
	}
}

func TestSimulate_RevenueReducesBurn(t *testing.T) {
	in := runwayInputs(85000, 1250000)
	in.RevenueGrowth = decimal.NewFromInt(5000)
	in.MarketingSpend = decimal.NewFromInt(25000)
	in.OtherChanges = decimal.NewFromInt(-1000)

	res := analytics.Simulate(in)

	if !res.NewBurnRate.Equal(decimal.NewFromInt(104000)) {
		t.Errorf("expected burn 104000, got %s", res.NewBurnRate)
	}
	if !slices.Contains(res.Recommendations, analytics.RecommendReviewMarketing) {
		t.Error("expected marketing recommendation")
	}
}

func TestSimulate_UnboundedWhenBurnNotPositive(t *testing.T) {
	for _, revenue := range []int64{85000, 100000} {
		in := runwayInputs(85000, 1250000)
		in.RevenueGrowth = decimal.NewFromInt(revenue)

		res := analytics.Simulate(in)

		if !res.Unbounded {
			t.Errorf("revenue %d: expected unbounded runway", revenue)
		}
		if res.NewRunwayMonths != 0 || math.IsInf(res.NewRunwayMonths, 0) || math.IsNaN(res.NewRunwayMonths) {
			t.Errorf("revenue %d: expected 0 months marker, got %f", revenue, res.NewRunwayMonths)
		}
		if res.RiskLevel != domain.RiskLow {
			t.Errorf("revenue %d: expected low risk, got %s", revenue, res.RiskLevel)
		}
	}
}

func TestSimulate_ScenariosAndProjection(t *testing.T) {
	res := analytics.Simulate(runwayInputs(100000, 250000))

	if len(res.Scenarios) != 3 {
		t.Fatalf("expected 3 scenarios, got %d", len(res.Scenarios))
	}
	if !res.Scenarios[0].BurnRate.Equal(decimal.NewFromInt(88000)) ||
		!res.Scenarios[2].BurnRate.Equal(decimal.NewFromInt(112000)) {
		t.Errorf("unexpected scenario burn rates: %+v", res.Scenarios)
	}
	if res.Scenarios[1].Runway != res.NewRunwayMonths {
		t.Errorf("current scenario should match headline runway")
	}

	if len(res.CashProjection) != analytics.ProjectionMonths {
		t.Fatalf("expected %d projection points, got %d", analytics.ProjectionMonths, len(res.CashProjection))
	}
	if !res.CashProjection[0].Cash.Equal(decimal.NewFromInt(150000)) {
		t.Errorf("month 1: expected 150000, got %s", res.CashProjection[0].Cash)
	}
	if !res.CashProjection[2].Cash.IsZero() || !res.CashProjection[11].Cash.IsZero() {
		t.Error("projection must floor at zero")
	}
}
