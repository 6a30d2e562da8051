package domain

import "github.com/shopspring/decimal"

// RiskLevel classifies how close an organization is to running out of cash.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// RunwayInputs are the current state plus hypothetical monthly deltas.
// Every field is a monthly figure except CurrentCash.
type RunwayInputs struct {
	CurrentBurnRate decimal.Decimal `json:"currentBurnRate"`
	CurrentCash     decimal.Decimal `json:"currentCash"`
	HiringPlan      decimal.Decimal `json:"hiringPlan"`
	MarketingSpend  decimal.Decimal `json:"marketingSpend"`
	RevenueGrowth   decimal.Decimal `json:"revenueGrowth"`
	OtherChanges    decimal.Decimal `json:"otherChanges"`
}

// RunwayScenario is one named burn-rate variation of a simulation.
type RunwayScenario struct {
	Name      string          `json:"name"`
	BurnRate  decimal.Decimal `json:"burnRate"`
	Runway    float64         `json:"runway"`
	Unbounded bool            `json:"unbounded"`
}

// CashPoint is the projected cash balance after Month months.
type CashPoint struct {
	Month int             `json:"month"`
	Cash  decimal.Decimal `json:"cash"`
}

// RunwayResult is the outcome of a runway simulation. When Unbounded is
// true the net burn is zero or negative and NewRunwayMonths is 0.
type RunwayResult struct {
	NewBurnRate     decimal.Decimal  `json:"newBurnRate"`
	NewRunwayMonths float64          `json:"newRunwayMonths"`
	Unbounded       bool             `json:"unbounded"`
	RiskLevel       RiskLevel        `json:"riskLevel"`
	Recommendations []string         `json:"recommendations"`
	Scenarios       []RunwayScenario `json:"scenarios"`
	CashProjection  []CashPoint      `json:"cashProjection"`
}
