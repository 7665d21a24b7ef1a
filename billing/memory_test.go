package billing

import (
	"context"
	"io"
	"log"
	"sync"
	"time"

	"danceschool-backend/models"

	"github.com/google/uuid"
)

// In-memory store fakes. They mirror the concurrency contract of the GORM
// stores: MarkPaid is a conditional write, notification upserts are atomic
// per student.

type memInvoiceStore struct {
	mu       sync.Mutex
	invoices map[string]*models.Invoice
}

func newMemInvoiceStore(invoices ...*models.Invoice) *memInvoiceStore {
	s := &memInvoiceStore{invoices: make(map[string]*models.Invoice)}
	for _, inv := range invoices {
		cp := *inv
		s.invoices[inv.Id] = &cp
	}
	return s
}

func (s *memInvoiceStore) Get(ctx context.Context, id string) (*models.Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inv, ok := s.invoices[id]
	if !ok {
		return nil, E(CodeNotFound, "invoice not found")
	}
	cp := *inv
	return &cp, nil
}

func (s *memInvoiceStore) SavePaymentDetails(ctx context.Context, invoice *models.Invoice) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	inv, ok := s.invoices[invoice.Id]
	if !ok {
		return E(CodeNotFound, "invoice not found")
	}
	inv.PaymentID = invoice.PaymentID
	inv.PaymentGatewayStatus = invoice.PaymentGatewayStatus
	inv.PixCode = invoice.PixCode
	inv.PixQRImage = invoice.PixQRImage
	inv.PixTicketURL = invoice.PixTicketURL
	inv.PixExpiresAt = invoice.PixExpiresAt
	inv.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *memInvoiceStore) MarkPaid(ctx context.Context, id string, paidAt time.Time, method string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inv, ok := s.invoices[id]
	if !ok {
		return false, E(CodeNotFound, "invoice not found")
	}
	if !inv.Open() {
		return false, nil
	}
	status := StatusApproved
	inv.Status = models.InvoiceStatusPaid
	inv.PaidAt = &paidAt
	inv.PaidMethod = &method
	inv.PaymentGatewayStatus = &status
	inv.UpdatedAt = paidAt
	return true, nil
}

func (s *memInvoiceStore) ListOpenWithPayment(ctx context.Context) ([]models.Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Invoice
	for _, inv := range s.invoices {
		if inv.Open() && inv.PaymentID != nil {
			out = append(out, *inv)
		}
	}
	return out, nil
}

func (s *memInvoiceStore) ListByStudent(ctx context.Context, studentID string) ([]models.Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Invoice
	for _, inv := range s.invoices {
		if inv.StudentID == studentID {
			out = append(out, *inv)
		}
	}
	return out, nil
}

type memTransactionStore struct {
	mu   sync.Mutex
	txns []models.Transaction
	fail error
}

func (s *memTransactionStore) Create(ctx context.Context, t *models.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return s.fail
	}
	if t.Id == "" {
		t.Id = uuid.NewString()
	}
	t.CreatedAt = time.Now().UTC()
	s.txns = append(s.txns, *t)
	return nil
}

func (s *memTransactionStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.txns)
}

type memStudentStore struct {
	mu       sync.Mutex
	students map[string]*models.Student
}

func newMemStudentStore(students ...*models.Student) *memStudentStore {
	s := &memStudentStore{students: make(map[string]*models.Student)}
	for _, st := range students {
		cp := *st
		s.students[st.Id] = &cp
	}
	return s
}

func (s *memStudentStore) Get(ctx context.Context, id string) (*models.Student, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.students[id]
	if !ok {
		return nil, E(CodeNotFound, "student not found")
	}
	cp := *st
	return &cp, nil
}

func (s *memStudentStore) SetPaymentStatus(ctx context.Context, id, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.students[id]
	if !ok {
		return E(CodeNotFound, "student not found")
	}
	st.PaymentStatus = status
	return nil
}

type memNotificationStore struct {
	mu      sync.Mutex
	entries map[string][]models.PaymentNotification // by student id
}

func newMemNotificationStore() *memNotificationStore {
	return &memNotificationStore{entries: make(map[string][]models.PaymentNotification)}
}

func (s *memNotificationStore) UpsertBilling(ctx context.Context, incoming models.PaymentNotification) (NotificationOutcome, models.PaymentNotification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.entries[incoming.StudentID]
	var existing *models.PaymentNotification
	idx := -1
	for i := range list {
		if list[i].InvoiceID != nil && incoming.InvoiceID != nil &&
			*list[i].InvoiceID == *incoming.InvoiceID && IsBillingCategory(list[i].Category) {
			existing = &list[i]
			idx = i
			break
		}
	}

	merged, outcome := MergeBillingNotification(existing, incoming)
	switch outcome {
	case NotificationAppended:
		merged.Id = uuid.NewString()
		merged.CreatedAt = time.Now().UTC()
		s.entries[incoming.StudentID] = append(list, merged)
	case NotificationReplaced:
		list[idx] = merged
	}
	return outcome, merged, nil
}

func (s *memNotificationStore) forStudent(studentID string) []models.PaymentNotification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.PaymentNotification(nil), s.entries[studentID]...)
}

type memActivityStore struct {
	mu      sync.Mutex
	entries []models.ActivityLog
}

func (s *memActivityStore) Append(ctx context.Context, entry models.ActivityLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
	return nil
}

// fakeQuerier maps payment ids to canned processor answers.
type fakeQuerier struct {
	mu       sync.Mutex
	statuses map[string]*PaymentStatus
	errs     map[string]error
	calls    int
}

func (q *fakeQuerier) QueryPayment(ctx context.Context, paymentID string) (*PaymentStatus, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.calls++
	if err, ok := q.errs[paymentID]; ok {
		return nil, err
	}
	if st, ok := q.statuses[paymentID]; ok {
		cp := *st
		return &cp, nil
	}
	return nil, E(CodeNotFound, "the processor has no record of this payment")
}

func quietLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

type fixture struct {
	invoices      *memInvoiceStore
	transactions  *memTransactionStore
	students      *memStudentStore
	notifications *memNotificationStore
	activity      *memActivityStore
	service       *Service
}

func newFixture(students []*models.Student, invoices []*models.Invoice) *fixture {
	f := &fixture{
		invoices:      newMemInvoiceStore(invoices...),
		transactions:  &memTransactionStore{},
		students:      newMemStudentStore(students...),
		notifications: newMemNotificationStore(),
		activity:      &memActivityStore{},
	}
	f.service = NewService(f.invoices, f.transactions, f.students, f.notifications, f.activity, quietLogger())
	return f
}
