package billing

import "danceschool-backend/models"

// AggregateStatus derives a student's coarse payment status from their
// invoice set. Cancelled invoices are ignored. Precedence: any overdue wins,
// then any pending; an empty (or all-cancelled) set means no charges.
func AggregateStatus(invoices []models.Invoice) string {
	anyPending := false
	anyLive := false
	for i := range invoices {
		switch invoices[i].Status {
		case models.InvoiceStatusCancelled:
			continue
		case models.InvoiceStatusOverdue:
			return models.PaymentStatusOverdue
		case models.InvoiceStatusPending:
			anyPending = true
		}
		anyLive = true
	}
	if anyPending {
		return models.PaymentStatusPending
	}
	if !anyLive {
		return models.PaymentStatusNoCharges
	}
	return models.PaymentStatusUpToDate
}
