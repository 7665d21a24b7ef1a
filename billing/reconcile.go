package billing

import (
	"context"
	"fmt"
	"log"
	"time"

	"danceschool-backend/models"
	"danceschool-backend/utils"
)

// Processor status that confirms a payment. Everything else is a no-op for
// the reconcile step; pending/overdue transitions belong to the date
// comparator, not to reconciliation.
const StatusApproved = "approved"

const (
	PaidMethodPix               = "pix"
	TransactionCategoryTuition  = "tuition"
	TransactionCreatedBySystem  = "system"
	NotificationCreatedBySystem = "system"
)

// ReconcileResult reports whether the invoice is paid after the call,
// regardless of which channel got there first. AlreadyPaid distinguishes the
// idempotent short-circuit from a fresh transition.
type ReconcileResult struct {
	InvoicePaid bool
	AlreadyPaid bool
}

// Service is the reconciliation engine shared by the webhook receiver, the
// status poller and the scheduled sweeper.
type Service struct {
	Invoices      InvoiceStore
	Transactions  TransactionStore
	Students      StudentStore
	Notifications NotificationStore
	Activity      ActivityStore // optional, best-effort
	Logger        *log.Logger
}

func NewService(invoices InvoiceStore, transactions TransactionStore, students StudentStore, notifications NotificationStore, activity ActivityStore, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.Default()
	}
	return &Service{
		Invoices:      invoices,
		Transactions:  transactions,
		Students:      students,
		Notifications: notifications,
		Activity:      activity,
		Logger:        logger,
	}
}

// Reconcile converges one processor observation onto the invoice. Safe to
// call concurrently and repeatedly from any channel:
//
//  1. an already-paid invoice short-circuits without writes — this is the
//     single dedup guard against double transactions and notifications;
//  2. a cancelled invoice is never mutated;
//  3. non-approved statuses do nothing;
//  4. the paid transition is a conditional write (MarkPaid only succeeds
//     from pending/overdue). The loser of a concurrent race re-reads and
//     hits the short-circuit instead of creating a second transaction.
//
// Once the paid write has committed, the remaining side effects (accounting
// transaction, aggregate recompute, confirmation notification, activity log)
// are each best-effort: a failure is logged for manual follow-up and never
// rolls back or fails the reconcile call.
func (s *Service) Reconcile(ctx context.Context, invoiceID, paymentID, status, statusDetail string) (ReconcileResult, error) {
	for attempt := 0; attempt < 2; attempt++ {
		invoice, err := s.Invoices.Get(ctx, invoiceID)
		if err != nil {
			return ReconcileResult{}, err
		}
		if invoice.Status == models.InvoiceStatusPaid {
			return ReconcileResult{InvoicePaid: true, AlreadyPaid: true}, nil
		}
		if invoice.Status == models.InvoiceStatusCancelled {
			return ReconcileResult{}, nil
		}
		if status != StatusApproved {
			return ReconcileResult{}, nil
		}

		paidAt := time.Now().UTC()
		ok, err := s.Invoices.MarkPaid(ctx, invoiceID, paidAt, PaidMethodPix)
		if err != nil {
			return ReconcileResult{}, err
		}
		if !ok {
			// Lost the race between read and write; re-read so the paid
			// short-circuit answers.
			continue
		}

		// Point of no return: the invoice is paid.
		s.afterPaid(ctx, invoice, paymentID, paidAt)
		return ReconcileResult{InvoicePaid: true}, nil
	}

	// Two failed conditional writes: someone else moved the invoice. Report
	// its final state.
	invoice, err := s.Invoices.Get(ctx, invoiceID)
	if err != nil {
		return ReconcileResult{}, err
	}
	paid := invoice.Status == models.InvoiceStatusPaid
	return ReconcileResult{InvoicePaid: paid, AlreadyPaid: paid}, nil
}

// afterPaid runs the post-commit side effects. Each is wrapped individually;
// one failing does not stop the others.
func (s *Service) afterPaid(ctx context.Context, invoice *models.Invoice, paymentID string, paidAt time.Time) {
	txn := models.Transaction{
		Category:    TransactionCategoryTuition,
		InvoiceID:   invoice.Id,
		StudentID:   invoice.StudentID,
		AmountCents: invoice.AmountCents,
		Date:        paidAt,
		Method:      PaidMethodPix,
		CreatedBy:   TransactionCreatedBySystem,
	}
	if err := s.Transactions.Create(ctx, &txn); err != nil {
		s.Logger.Printf("reconcile: invoice %s: create transaction failed: %v", invoice.Id, err)
	}

	if err := s.RecomputeStudentStatus(ctx, invoice.StudentID); err != nil {
		s.Logger.Printf("reconcile: invoice %s: aggregate recompute failed: %v", invoice.Id, err)
	}

	if _, err := s.notifyPaymentConfirmed(ctx, invoice); err != nil {
		s.Logger.Printf("reconcile: invoice %s: payment notification failed: %v", invoice.Id, err)
	}

	if s.Activity != nil {
		entry := models.ActivityLog{
			StudentID: invoice.StudentID,
			Kind:      "payment_received",
			Message:   fmt.Sprintf("Payment of %s received for %q (payment %s)", utils.FormatBRL(invoice.AmountCents), invoice.Description, paymentID),
		}
		if err := s.Activity.Append(ctx, entry); err != nil {
			s.Logger.Printf("reconcile: invoice %s: activity log append failed: %v", invoice.Id, err)
		}
	}
}

// RecomputeStudentStatus derives the student's aggregate payment status from
// their live invoice set and persists it only when it changed. This is the
// only writer of the field.
func (s *Service) RecomputeStudentStatus(ctx context.Context, studentID string) error {
	student, err := s.Students.Get(ctx, studentID)
	if err != nil {
		return err
	}
	invoices, err := s.Invoices.ListByStudent(ctx, studentID)
	if err != nil {
		return err
	}
	next := AggregateStatus(invoices)
	if next == student.PaymentStatus {
		return nil
	}
	return s.Students.SetPaymentStatus(ctx, studentID, next)
}

func (s *Service) notifyPaymentConfirmed(ctx context.Context, invoice *models.Invoice) (NotificationOutcome, error) {
	content := NotificationContent{
		Title:       "Payment confirmed",
		Body:        fmt.Sprintf("We received your PIX payment of %s for %s.", utils.FormatBRL(invoice.AmountCents), invoice.Description),
		AmountCents: &invoice.AmountCents,
	}
	return s.UpsertBillingNotification(ctx, invoice.StudentID, models.NotificationCategoryPaymentConfirmed, invoice.Id, content)
}

// NotificationContent is the rendered body of a billing notification.
type NotificationContent struct {
	Title       string
	Body        string
	AmountCents *int64
	DueDate     *time.Time
}

// UpsertBillingNotification posts or replaces the student's live billing
// notification for an invoice, per the dedup rule in
// MergeBillingNotification. NotificationUnchanged means the same category was
// already live ("already notified").
func (s *Service) UpsertBillingNotification(ctx context.Context, studentID, category, invoiceID string, content NotificationContent) (NotificationOutcome, error) {
	if !IsBillingCategory(category) {
		return NotificationUnchanged, E(CodeInvalidArgument, "not a billing notification category: "+category)
	}
	incoming := models.PaymentNotification{
		StudentID:   studentID,
		Category:    category,
		Title:       content.Title,
		Body:        content.Body,
		InvoiceID:   &invoiceID,
		AmountCents: content.AmountCents,
		DueDate:     content.DueDate,
		CreatedBy:   NotificationCreatedBySystem,
	}
	outcome, _, err := s.Notifications.UpsertBilling(ctx, incoming)
	return outcome, err
}
