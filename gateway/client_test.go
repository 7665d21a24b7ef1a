package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"danceschool-backend/billing"
)

func newTestClient(handler http.Handler) (*Client, *httptest.Server) {
	srv := httptest.NewServer(handler)
	return NewClient(srv.URL, "test-token", 100), srv
}

func TestCreatePaymentNormalizesBelowMinimum(t *testing.T) {
	var gotBody createPaymentRequest
	var gotIdempotencyKey, gotAuth string

	client, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/payments" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		gotIdempotencyKey = r.Header.Get("X-Idempotency-Key")
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{
			"id": 123456789,
			"status": "pending",
			"status_detail": "pending_waiting_transfer",
			"external_reference": "inv-1",
			"date_of_expiration": "2026-03-10T12:30:00Z",
			"point_of_interaction": {
				"transaction_data": {
					"qr_code": "00020126pixcode",
					"qr_code_base64": "aGVsbG8=",
					"ticket_url": "https://processor.test/ticket/123"
				}
			}
		}`))
	}))
	defer srv.Close()

	// 50 cents is below the 100-cent processor minimum; the charge is rounded
	// up, never rejected.
	result, err := client.CreatePayment(context.Background(), CreatePaymentInput{
		InvoiceID:   "inv-1",
		AmountCents: 50,
		Description: "Monthly tuition",
		PayerEmail:  "student@example.com",
		PayerName:   "Ana",
	})
	if err != nil {
		t.Fatalf("CreatePayment: %v", err)
	}

	if gotBody.TransactionAmount != 1.00 {
		t.Fatalf("transaction_amount = %v, want 1.00", gotBody.TransactionAmount)
	}
	if gotBody.ExternalReference != "inv-1" {
		t.Fatalf("external_reference = %q, want invoice id", gotBody.ExternalReference)
	}
	if gotBody.PaymentMethodID != "pix" {
		t.Fatalf("payment_method_id = %q, want pix", gotBody.PaymentMethodID)
	}
	if !strings.HasPrefix(gotIdempotencyKey, "inv-1-") {
		t.Fatalf("X-Idempotency-Key = %q, want invoice-scoped token", gotIdempotencyKey)
	}
	if gotAuth != "Bearer test-token" {
		t.Fatalf("Authorization = %q", gotAuth)
	}

	if result.PaymentID != "123456789" {
		t.Fatalf("PaymentID = %q", result.PaymentID)
	}
	if result.ChargeCents != 100 {
		t.Fatalf("ChargeCents = %d, want 100", result.ChargeCents)
	}
	if result.PixCode != "00020126pixcode" || result.TicketURL != "https://processor.test/ticket/123" {
		t.Fatalf("pix payload not mapped: %+v", result)
	}
	wantExpiry := time.Date(2026, 3, 10, 12, 30, 0, 0, time.UTC)
	if !result.ExpiresAt.Equal(wantExpiry) {
		t.Fatalf("ExpiresAt = %v, want %v", result.ExpiresAt, wantExpiry)
	}
}

func TestCreatePaymentRequiresPayerEmail(t *testing.T) {
	var calls int32
	client, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer srv.Close()

	_, err := client.CreatePayment(context.Background(), CreatePaymentInput{
		InvoiceID:   "inv-1",
		AmountCents: 5000,
		PayerEmail:  "   ",
	})
	if !billing.IsCode(err, billing.CodeInvalidArgument) {
		t.Fatalf("err = %v, want code %s", err, billing.CodeInvalidArgument)
	}
	if n := atomic.LoadInt32(&calls); n != 0 {
		t.Fatalf("processor was called %d times, want 0", n)
	}
}

func TestCreatePaymentRejected(t *testing.T) {
	client, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id": 42, "status": "rejected", "status_detail": "rejected_high_risk"}`))
	}))
	defer srv.Close()

	_, err := client.CreatePayment(context.Background(), CreatePaymentInput{
		InvoiceID:   "inv-1",
		AmountCents: 5000,
		PayerEmail:  "student@example.com",
	})
	if !billing.IsCode(err, billing.CodePaymentRejected) {
		t.Fatalf("err = %v, want code %s", err, billing.CodePaymentRejected)
	}
	// The raw processor detail never reaches the caller verbatim.
	if strings.Contains(err.Error(), "rejected_high_risk") {
		t.Fatalf("error leaks raw status detail: %v", err)
	}
	if !strings.Contains(err.Error(), "risk checks") {
		t.Fatalf("error missing user-safe rejection message: %v", err)
	}
}

func TestCreatePaymentMissingID(t *testing.T) {
	client, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status": "pending"}`))
	}))
	defer srv.Close()

	_, err := client.CreatePayment(context.Background(), CreatePaymentInput{
		InvoiceID:   "inv-1",
		AmountCents: 5000,
		PayerEmail:  "student@example.com",
	})
	if !billing.IsCode(err, billing.CodeGatewayError) {
		t.Fatalf("err = %v, want code %s", err, billing.CodeGatewayError)
	}
}

func TestCreatePaymentDefaultsPixExpiry(t *testing.T) {
	client, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id": 42, "status": "pending"}`))
	}))
	defer srv.Close()

	before := time.Now().UTC()
	result, err := client.CreatePayment(context.Background(), CreatePaymentInput{
		InvoiceID:   "inv-1",
		AmountCents: 5000,
		PayerEmail:  "student@example.com",
	})
	if err != nil {
		t.Fatalf("CreatePayment: %v", err)
	}
	lo, hi := before.Add(29*time.Minute), before.Add(31*time.Minute)
	if result.ExpiresAt.Before(lo) || result.ExpiresAt.After(hi) {
		t.Fatalf("ExpiresAt = %v, want ~30m from now", result.ExpiresAt)
	}
}

func TestQueryPaymentNotFound(t *testing.T) {
	client, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	_, err := client.QueryPayment(context.Background(), "999")
	if !billing.IsCode(err, billing.CodeNotFound) {
		t.Fatalf("err = %v, want code %s", err, billing.CodeNotFound)
	}
}

func TestQueryPaymentMapsStatus(t *testing.T) {
	client, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/payments/42" {
			t.Errorf("path = %q", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id": 42, "status": "approved", "status_detail": "accredited", "external_reference": "inv-1"}`))
	}))
	defer srv.Close()

	status, err := client.QueryPayment(context.Background(), "42")
	if err != nil {
		t.Fatalf("QueryPayment: %v", err)
	}
	if status.Status != "approved" || status.StatusDetail != "accredited" || status.ExternalReference != "inv-1" {
		t.Fatalf("status = %+v", status)
	}
}

func TestProcessorErrorsAreRedacted(t *testing.T) {
	client, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`unauthorized: Bearer sk-live-abcdef123456 was rejected`))
	}))
	defer srv.Close()

	_, err := client.QueryPayment(context.Background(), "42")
	if !billing.IsCode(err, billing.CodeGatewayError) {
		t.Fatalf("err = %v, want code %s", err, billing.CodeGatewayError)
	}
	if strings.Contains(err.Error(), "sk-live-abcdef123456") {
		t.Fatalf("error leaks credential: %v", err)
	}
	if !strings.Contains(err.Error(), "[redacted]") {
		t.Fatalf("error not redacted: %v", err)
	}
}

func TestRedact(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Authorization: Bearer abc123.def-456", "Authorization: Bearer [redacted]"},
		{`api_key: "supersecretvalue99"`, `api_key=[redacted]"`},
		{"no secrets here", "no secrets here"},
	}
	for _, tc := range cases {
		if got := Redact(tc.in); got != tc.want {
			t.Errorf("Redact(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
