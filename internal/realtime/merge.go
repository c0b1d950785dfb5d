package realtime

import (
	"github.com/example/bozor/internal/models"
)

// MergeTransaction applies a pushed transaction record onto a locally cached
// copy. The change feed may deliver duplicates or reorder events, so the
// merge is a compare-and-set on the status machine: terminal statuses never
// regress to pending and replaying the same record reports no change.
func MergeTransaction(local, incoming models.PaymentTransaction) (models.PaymentTransaction, bool) {
	if local.IsTerminal() && !incoming.IsTerminal() {
		// Stale or out-of-order push.
		return local, false
	}
	if incoming.Status == local.Status && incoming.ProviderStatus == local.ProviderStatus {
		return local, false
	}

	merged := incoming
	if merged.CompletedAt == nil {
		merged.CompletedAt = local.CompletedAt
	}
	return merged, true
}
