package billing

import (
	"context"
	"sync"
	"testing"

	"danceschool-backend/models"
)

func TestBillingNotificationEscalation(t *testing.T) {
	f := newFixture([]*models.Student{{Id: "stu-1"}}, nil)
	ctx := context.Background()
	amount := int64(5000)
	content := NotificationContent{Title: "Invoice due", Body: "Tuition for March", AmountCents: &amount}

	// reminder -> overdue -> payment_confirmed: one live entry per invoice,
	// category escalates in place.
	outcome, err := f.service.UpsertBillingNotification(ctx, "stu-1", models.NotificationCategoryReminder, "inv-1", content)
	if err != nil {
		t.Fatalf("reminder upsert: %v", err)
	}
	if outcome != NotificationAppended {
		t.Fatalf("reminder outcome = %s, want appended", outcome)
	}
	originalID := f.notifications.forStudent("stu-1")[0].Id

	outcome, err = f.service.UpsertBillingNotification(ctx, "stu-1", models.NotificationCategoryOverdue, "inv-1", content)
	if err != nil {
		t.Fatalf("overdue upsert: %v", err)
	}
	if outcome != NotificationReplaced {
		t.Fatalf("overdue outcome = %s, want replaced", outcome)
	}

	outcome, err = f.service.UpsertBillingNotification(ctx, "stu-1", models.NotificationCategoryPaymentConfirmed, "inv-1", NotificationContent{Title: "Payment confirmed", Body: "Thanks"})
	if err != nil {
		t.Fatalf("confirmation upsert: %v", err)
	}
	if outcome != NotificationReplaced {
		t.Fatalf("confirmation outcome = %s, want replaced", outcome)
	}

	list := f.notifications.forStudent("stu-1")
	if len(list) != 1 {
		t.Fatalf("notifications = %d, want 1", len(list))
	}
	got := list[0]
	if got.Category != models.NotificationCategoryPaymentConfirmed {
		t.Fatalf("category = %q, want payment_confirmed", got.Category)
	}
	if got.Id != originalID {
		t.Fatalf("id changed across replacement: %q -> %q", originalID, got.Id)
	}
	if got.Read || got.DismissedAt != nil {
		t.Fatalf("replaced entry should be unread and undismissed: %+v", got)
	}
}

func TestBillingNotificationSameCategoryUnchanged(t *testing.T) {
	f := newFixture([]*models.Student{{Id: "stu-1"}}, nil)
	ctx := context.Background()
	content := NotificationContent{Title: "Invoice due", Body: "Tuition for March"}

	if _, err := f.service.UpsertBillingNotification(ctx, "stu-1", models.NotificationCategoryReminder, "inv-1", content); err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	outcome, err := f.service.UpsertBillingNotification(ctx, "stu-1", models.NotificationCategoryReminder, "inv-1", NotificationContent{Title: "Invoice due again", Body: "Changed body"})
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if outcome != NotificationUnchanged {
		t.Fatalf("outcome = %s, want unchanged", outcome)
	}

	list := f.notifications.forStudent("stu-1")
	if len(list) != 1 || list[0].Title != "Invoice due" {
		t.Fatalf("existing entry should be untouched: %+v", list)
	}
}

func TestBillingNotificationSeparatePerInvoice(t *testing.T) {
	f := newFixture([]*models.Student{{Id: "stu-1"}}, nil)
	ctx := context.Background()
	content := NotificationContent{Title: "Invoice due"}

	if _, err := f.service.UpsertBillingNotification(ctx, "stu-1", models.NotificationCategoryReminder, "inv-1", content); err != nil {
		t.Fatalf("inv-1 upsert: %v", err)
	}
	outcome, err := f.service.UpsertBillingNotification(ctx, "stu-1", models.NotificationCategoryReminder, "inv-2", content)
	if err != nil {
		t.Fatalf("inv-2 upsert: %v", err)
	}
	if outcome != NotificationAppended {
		t.Fatalf("outcome = %s, want appended (dedup is per invoice)", outcome)
	}
	if got := len(f.notifications.forStudent("stu-1")); got != 2 {
		t.Fatalf("notifications = %d, want 2", got)
	}
}

func TestConcurrentFirstUpsertsLeaveOneLiveEntry(t *testing.T) {
	f := newFixture([]*models.Student{{Id: "stu-1"}}, nil)

	// An admin-posted reminder racing the reconciler's confirmation, with no
	// existing row for the invoice: the upsert must serialize the create path
	// too, not just updates of an existing entry.
	categories := []string{
		models.NotificationCategoryReminder,
		models.NotificationCategoryPaymentConfirmed,
	}
	const callers = 12
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		category := categories[i%len(categories)]
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.service.UpsertBillingNotification(context.Background(), "stu-1", category, "inv-1", NotificationContent{Title: "Invoice due"})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent upsert: %v", err)
		}
	}

	if got := len(f.notifications.forStudent("stu-1")); got != 1 {
		t.Fatalf("live billing notifications = %d, want exactly 1", got)
	}
}

func TestUpsertRejectsNonBillingCategory(t *testing.T) {
	f := newFixture([]*models.Student{{Id: "stu-1"}}, nil)
	_, err := f.service.UpsertBillingNotification(context.Background(), "stu-1", "announcement", "inv-1", NotificationContent{Title: "x"})
	if !IsCode(err, CodeInvalidArgument) {
		t.Fatalf("err = %v, want code %s", err, CodeInvalidArgument)
	}
}

func TestMergeBillingNotificationNoExisting(t *testing.T) {
	incoming := models.PaymentNotification{StudentID: "stu-1", Category: models.NotificationCategoryReminder, Title: "Due"}
	merged, outcome := MergeBillingNotification(nil, incoming)
	if outcome != NotificationAppended {
		t.Fatalf("outcome = %s, want appended", outcome)
	}
	if merged.Title != "Due" {
		t.Fatalf("merged = %+v", merged)
	}
}
