package dto

import (
	"time"
)

// BatchRunFailure records one isolated subscription group failure inside a
// billing batch run.
type BatchRunFailure struct {
	SubscriptionID string `json:"subscription_id"`
	Error          string `json:"error"`
}

// BatchRunResponse is the aggregated result of one billing batch run.
type BatchRunResponse struct {
	BatchID          string            `json:"batch_id"`
	CutoffDate       time.Time         `json:"cutoff_date"`
	InvoicesCreated  int               `json:"invoices_created"`
	PeriodsProcessed int               `json:"periods_processed"`
	Failures         []BatchRunFailure `json:"failures"`
	StartedAt        time.Time         `json:"started_at"`
	CompletedAt      time.Time         `json:"completed_at"`
}

// OverdueSweepResponse reports the result of the overdue promotion sweep.
type OverdueSweepResponse struct {
	ItemsMarked int       `json:"items_marked"`
	AsOf        time.Time `json:"as_of"`
}
