package models

// Reconciliation sources.
const (
	ReconcileSourceManual  = "manual"
	ReconcileSourceWebhook = "webhook"
	ReconcileSourcePoll    = "poll"
)

// ReconciliationLog is an append-only audit record of every reconciliation
// attempt, kept for dispute resolution. Writes are best-effort and never roll
// back the status update they describe.
type ReconciliationLog struct {
	BaseModel
	ProviderPaymentID string `gorm:"column:provider_payment_id;index" json:"provider_payment_id"`
	OldStatus         string `json:"old_status"`
	NewStatus         string `json:"new_status"`
	OldProviderStatus string `json:"old_provider_status"`
	NewProviderStatus string `json:"new_provider_status"`
	Source            string `json:"source"`
	Changed           bool   `json:"changed"`
}
