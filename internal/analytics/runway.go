package analytics

import (
	"github.com/boddenberg/fincore/internal/domain"
	"github.com/shopspring/decimal"
)

// Runway risk bounds, in months.
var (
	HighRiskBelowMonths   = decimal.NewFromInt(6)
	MediumRiskBelowMonths = decimal.NewFromInt(12)
)

// Recommendation triggers. Marketing and hiring thresholds are monthly deltas.
var (
	RunwayWarningMonths        = decimal.NewFromInt(12)
	MarketingIncreaseThreshold = decimal.NewFromInt(20000)
	HiringIncreaseThreshold    = decimal.NewFromInt(10000)
)

// Advisory strings returned by Simulate.
const (
	RecommendReduceBurn      = "Consider reducing burn rate to extend runway"
	RecommendReviewMarketing = "Review marketing spend efficiency"
	RecommendReviewHiring    = "Evaluate hiring timeline and priorities"
)

// ScenarioSpread is the burn-rate variation of the Conservative and
// Aggressive scenarios.
var ScenarioSpread = decimal.RequireFromString("0.12")

// ProjectionMonths is the length of the cash projection.
const ProjectionMonths = 12

// Simulate projects burn rate and runway from the current state plus
// hypothetical monthly deltas. Revenue growth reduces net burn; every other
// delta adds to it. A net burn of zero or less is unbounded runway.
func Simulate(in domain.RunwayInputs) domain.RunwayResult {
	burn := in.CurrentBurnRate.
		Add(in.HiringPlan).
		Add(in.MarketingSpend).
		Sub(in.RevenueGrowth).
		Add(in.OtherChanges)

	res := domain.RunwayResult{
		NewBurnRate:     burn,
		Recommendations: []string{},
	}

	months, unbounded := runwayMonths(in.CurrentCash, burn)
	res.Unbounded = unbounded
	switch {
	case unbounded:
		res.RiskLevel = domain.RiskLow
	case months.LessThan(HighRiskBelowMonths):
		res.RiskLevel = domain.RiskHigh
	case months.LessThan(MediumRiskBelowMonths):
		res.RiskLevel = domain.RiskMedium
	default:
		res.RiskLevel = domain.RiskLow
	}
	if !unbounded {
		res.NewRunwayMonths = months.Round(2).InexactFloat64()
	}

	if !unbounded && months.LessThan(RunwayWarningMonths) {
		res.Recommendations = append(res.Recommendations, RecommendReduceBurn)
	}
	if in.MarketingSpend.GreaterThan(MarketingIncreaseThreshold) {
		res.Recommendations = append(res.Recommendations, RecommendReviewMarketing)
	}
	if in.HiringPlan.GreaterThan(HiringIncreaseThreshold) {
		res.Recommendations = append(res.Recommendations, RecommendReviewHiring)
	}

	res.Scenarios = scenarios(in.CurrentCash, burn)
	res.CashProjection = projectCash(in.CurrentCash, burn)
	return res
}

func runwayMonths(cash, burn decimal.Decimal) (decimal.Decimal, bool) {
	if !burn.IsPositive() {
		return decimal.Zero, true
	}
	return cash.Div(burn), false
}

func scenarios(cash, burn decimal.Decimal) []domain.RunwayScenario {
	one := decimal.NewFromInt(1)
	variants := []struct {
		name   string
		factor decimal.Decimal
	}{
		{"Conservative", one.Sub(ScenarioSpread)},
		{"Current", one},
		{"Aggressive", one.Add(ScenarioSpread)},
	}

	out := make([]domain.RunwayScenario, 0, len(variants))
	for _, v := range variants {
		b := burn.Mul(v.factor).Round(2)
		months, unbounded := runwayMonths(cash, b)
		s := domain.RunwayScenario{Name: v.name, BurnRate: b, Unbounded: unbounded}
		if !unbounded {
			s.Runway = months.Round(2).InexactFloat64()
		}
		out = append(out, s)
	}
	return out
}

func projectCash(cash, burn decimal.Decimal) []domain.CashPoint {
	out := make([]domain.CashPoint, 0, ProjectionMonths)
	for m := 1; m <= ProjectionMonths; m++ {
		c := cash.Sub(burn.Mul(decimal.NewFromInt(int64(m))))
		if c.IsNegative() {
			c = decimal.Zero
		}
		out = append(out, domain.CashPoint{Month: m, Cash: c})
	}
	return out
}
