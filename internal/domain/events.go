package domain

import "time"

// Event names emitted by the engine.
const (
	EventBudgetCreated      = "budget.created"
	EventBudgetUpdated      = "budget.updated"
	EventBudgetDeleted      = "budget.deleted"
	EventCategoryCreated    = "category.created"
	EventCategoryUpdated    = "category.updated"
	EventCategoryDeleted    = "category.deleted"
	EventTransactionCreated = "transaction.created"
	EventTransactionUpdated = "transaction.updated"
	EventTransactionDeleted = "transaction.deleted"
	EventReportGenerated    = "report.generated"
	EventBudgetAlert        = "budget.alert"
)

// Event is a fire-and-forget notification about something the engine did.
type Event struct {
	Name           string    `json:"event"`
	OrganizationID string    `json:"organizationId"`
	Payload        any       `json:"payload"`
	OccurredAt     time.Time `json:"occurredAt"`
}
