package database

import (
	"context"
	"errors"
	"time"

	"danceschool-backend/billing"
	"danceschool-backend/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GORM-backed implementations of the billing store interfaces. Each store
// owns its transactions: reconciliation writes must commit independently of
// any enclosing HTTP request.

type InvoiceStore struct {
	DB *gorm.DB
}

func (s *InvoiceStore) Get(ctx context.Context, id string) (*models.Invoice, error) {
	var invoice models.Invoice
	err := s.DB.WithContext(ctx).Where("id = ?", id).First(&invoice).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, billing.E(billing.CodeNotFound, "invoice not found")
	}
	if err != nil {
		return nil, err
	}
	return &invoice, nil
}

func (s *InvoiceStore) SavePaymentDetails(ctx context.Context, invoice *models.Invoice) error {
	return s.DB.WithContext(ctx).Model(&models.Invoice{}).
		Where("id = ?", invoice.Id).
		Updates(map[string]any{
			"payment_id":             invoice.PaymentID,
			"payment_gateway_status": invoice.PaymentGatewayStatus,
			"pix_code":               invoice.PixCode,
			"pix_qr_image":           invoice.PixQRImage,
			"pix_ticket_url":         invoice.PixTicketURL,
			"pix_expires_at":         invoice.PixExpiresAt,
			"updated_at":             time.Now().UTC(),
		}).Error
}

// MarkPaid is the optimistic write reconcile depends on: the row only moves
// to paid if it is still pending or overdue, so a concurrent reconciliation
// loses cleanly (RowsAffected == 0) instead of double-paying.
func (s *InvoiceStore) MarkPaid(ctx context.Context, id string, paidAt time.Time, method string) (bool, error) {
	res := s.DB.WithContext(ctx).Model(&models.Invoice{}).
		Where("id = ? AND status IN ?", id, []string{models.InvoiceStatusPending, models.InvoiceStatusOverdue}).
		Updates(map[string]any{
			"status":                 models.InvoiceStatusPaid,
			"paid_at":                paidAt,
			"paid_method":            method,
			"payment_gateway_status": billing.StatusApproved,
			"updated_at":             paidAt,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (s *InvoiceStore) ListOpenWithPayment(ctx context.Context) ([]models.Invoice, error) {
	var invoices []models.Invoice
	err := s.DB.WithContext(ctx).
		Where("status IN ? AND payment_id IS NOT NULL", []string{models.InvoiceStatusPending, models.InvoiceStatusOverdue}).
		Find(&invoices).Error
	return invoices, err
}

func (s *InvoiceStore) ListByStudent(ctx context.Context, studentID string) ([]models.Invoice, error) {
	var invoices []models.Invoice
	err := s.DB.WithContext(ctx).
		Where("student_id = ?", studentID).
		Order("due_date DESC").
		Find(&invoices).Error
	return invoices, err
}

type TransactionStore struct {
	DB *gorm.DB
}

func (s *TransactionStore) Create(ctx context.Context, t *models.Transaction) error {
	return s.DB.WithContext(ctx).Create(t).Error
}

type StudentStore struct {
	DB *gorm.DB
}

func (s *StudentStore) Get(ctx context.Context, id string) (*models.Student, error) {
	var student models.Student
	err := s.DB.WithContext(ctx).Where("id = ?", id).First(&student).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, billing.E(billing.CodeNotFound, "student not found")
	}
	if err != nil {
		return nil, err
	}
	return &student, nil
}

func (s *StudentStore) SetPaymentStatus(ctx context.Context, id, status string) error {
	return s.DB.WithContext(ctx).Model(&models.Student{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"payment_status": status,
			"updated_at":     time.Now().UTC(),
		}).Error
}

type NotificationStore struct {
	DB *gorm.DB
}

// UpsertBilling runs the dedup merge as one transaction with the existing
// row locked, so two reconciliations for the same student can't interleave
// their read-modify-write.
func (s *NotificationStore) UpsertBilling(ctx context.Context, incoming models.PaymentNotification) (billing.NotificationOutcome, models.PaymentNotification, error) {
	outcome := billing.NotificationUnchanged
	var merged models.PaymentNotification

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// FOR UPDATE only serializes once a row exists; two first-time
		// upserts for the same (student, invoice) would otherwise both see
		// no row and both insert. The advisory lock covers the create path,
		// held until this transaction commits.
		if incoming.InvoiceID != nil {
			lockKey := incoming.StudentID + "/" + *incoming.InvoiceID
			if err := tx.Exec("SELECT pg_advisory_xact_lock(hashtextextended(?, 0))", lockKey).Error; err != nil {
				return err
			}
		}

		var existing models.PaymentNotification
		q := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("student_id = ? AND invoice_id = ? AND category IN ?",
				incoming.StudentID, incoming.InvoiceID, billing.BillingCategories()).
			First(&existing)

		var existingPtr *models.PaymentNotification
		if q.Error == nil {
			existingPtr = &existing
		} else if !errors.Is(q.Error, gorm.ErrRecordNotFound) {
			return q.Error
		}

		merged, outcome = billing.MergeBillingNotification(existingPtr, incoming)
		switch outcome {
		case billing.NotificationAppended:
			return tx.Create(&merged).Error
		case billing.NotificationReplaced:
			return tx.Model(&models.PaymentNotification{}).
				Where("id = ?", merged.Id).
				Updates(map[string]any{
					"category":     merged.Category,
					"title":        merged.Title,
					"body":         merged.Body,
					"amount_cents": merged.AmountCents,
					"due_date":     merged.DueDate,
					"created_by":   merged.CreatedBy,
					"read":         false,
					"dismissed_at": nil,
				}).Error
		}
		return nil
	})

	return outcome, merged, err
}

type WebhookEventStore struct {
	DB *gorm.DB
}

func (s *WebhookEventStore) Record(ctx context.Context, event *models.WebhookEvent) error {
	return s.DB.WithContext(ctx).Create(event).Error
}

type ActivityStore struct {
	DB *gorm.DB
}

func (s *ActivityStore) Append(ctx context.Context, entry models.ActivityLog) error {
	return s.DB.WithContext(ctx).Create(&entry).Error
}
