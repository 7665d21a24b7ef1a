package billing

import "danceschool-backend/models"

// NotificationOutcome describes what the dedup upsert did.
type NotificationOutcome int

const (
	NotificationAppended NotificationOutcome = iota
	NotificationReplaced
	NotificationUnchanged
)

func (o NotificationOutcome) String() string {
	switch o {
	case NotificationAppended:
		return "appended"
	case NotificationReplaced:
		return "replaced"
	case NotificationUnchanged:
		return "unchanged"
	}
	return "unknown"
}

var billingCategories = map[string]bool{
	models.NotificationCategoryReminder:         true,
	models.NotificationCategoryOverdue:          true,
	models.NotificationCategoryBilling:          true,
	models.NotificationCategoryPaymentConfirmed: true,
	models.NotificationCategoryPendingInvoice:   true,
}

// IsBillingCategory reports whether cat is subject to the per-invoice dedup
// rule.
func IsBillingCategory(cat string) bool {
	return billingCategories[cat]
}

// BillingCategories returns the billing category set, for store queries.
func BillingCategories() []string {
	out := make([]string, 0, len(billingCategories))
	for cat := range billingCategories {
		out = append(out, cat)
	}
	return out
}

// MergeBillingNotification applies the dedup rule against the student's
// current live billing entry for the same invoice (existing == nil when there
// is none):
//
//   - no existing entry: append the incoming one;
//   - same category already present: keep it untouched (callers report
//     "already notified");
//   - different billing category: replace content and category in place,
//     preserving the identifier so UI position stays stable. The replaced
//     entry becomes unread and undismissed again.
func MergeBillingNotification(existing *models.PaymentNotification, incoming models.PaymentNotification) (models.PaymentNotification, NotificationOutcome) {
	if existing == nil {
		return incoming, NotificationAppended
	}
	if existing.Category == incoming.Category {
		return *existing, NotificationUnchanged
	}
	merged := *existing
	merged.Category = incoming.Category
	merged.Title = incoming.Title
	merged.Body = incoming.Body
	merged.AmountCents = incoming.AmountCents
	merged.DueDate = incoming.DueDate
	merged.CreatedBy = incoming.CreatedBy
	merged.Read = false
	merged.DismissedAt = nil
	return merged, NotificationReplaced
}
