package billing

import (
	"context"
	"time"

	"danceschool-backend/models"
)

// PaymentStatus is the processor's authoritative view of one payment.
type PaymentStatus struct {
	Status            string
	StatusDetail      string
	ExternalReference string // set to the invoice id at creation time
}

// PaymentQuerier is the read side of the payment processor, used by the
// poller, the webhook receiver and the sweeper to re-fetch authoritative
// payment state.
type PaymentQuerier interface {
	QueryPayment(ctx context.Context, paymentID string) (*PaymentStatus, error)
}

// InvoiceStore persists invoices. Get returns a CodeNotFound error for
// unknown ids.
type InvoiceStore interface {
	Get(ctx context.Context, id string) (*models.Invoice, error)

	// SavePaymentDetails persists the processor-side fields set by payment
	// creation (payment id, PIX payload, gateway status, expiry).
	SavePaymentDetails(ctx context.Context, invoice *models.Invoice) error

	// MarkPaid transitions the invoice to paid only if it is still pending
	// or overdue, returning false when the precondition no longer holds.
	// This is the compare-and-swap the reconcile loop relies on.
	MarkPaid(ctx context.Context, id string, paidAt time.Time, method string) (bool, error)

	// ListOpenWithPayment returns pending/overdue invoices that have a
	// processor payment id (the sweep set).
	ListOpenWithPayment(ctx context.Context) ([]models.Invoice, error)

	// ListByStudent returns all of a student's invoices, cancelled included;
	// AggregateStatus does its own filtering.
	ListByStudent(ctx context.Context, studentID string) ([]models.Invoice, error)
}

// TransactionStore is append-only.
type TransactionStore interface {
	Create(ctx context.Context, t *models.Transaction) error
}

type StudentStore interface {
	Get(ctx context.Context, id string) (*models.Student, error)
	SetPaymentStatus(ctx context.Context, id, status string) error
}

// NotificationStore applies the billing-notification dedup rule as one
// atomic read-modify-write per (student, invoice).
type NotificationStore interface {
	UpsertBilling(ctx context.Context, incoming models.PaymentNotification) (NotificationOutcome, models.PaymentNotification, error)
}

// ActivityStore appends human-readable audit entries. Best-effort only.
type ActivityStore interface {
	Append(ctx context.Context, entry models.ActivityLog) error
}
