// Package gateway talks to the external PIX payment processor.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"danceschool-backend/billing"
	"danceschool-backend/utils"
)

const (
	createPaymentPath = "/v1/payments"
	getPaymentPath    = "/v1/payments/%s"

	// Applied when the processor omits an expiration on the PIX payload.
	defaultPixExpiry = 30 * time.Minute

	defaultHTTPTimeout = 15 * time.Second
)

// Credential-shaped substrings are masked before any processor error is
// logged or surfaced.
var (
	bearerPattern = regexp.MustCompile(`(?i)bearer\s+[A-Za-z0-9\-._~+/]+=*`)
	apiKeyPattern = regexp.MustCompile(`(?i)(api[_-]?key|access[_-]?token|client[_-]?secret)["'\s:=]+[A-Za-z0-9\-._]{8,}`)
)

// Redact masks bearer tokens and API-key-shaped substrings in s.
func Redact(s string) string {
	s = bearerPattern.ReplaceAllString(s, "Bearer [redacted]")
	s = apiKeyPattern.ReplaceAllString(s, "$1=[redacted]")
	return s
}

// User-safe messages for processor rejection reasons. Unknown reasons fall
// back to a generic template.
var rejectionMessages = map[string]string{
	"rejected_high_risk":          "The payment was declined by the processor's risk checks. Please try a different payment method.",
	"rejected_insufficient_funds": "The payment was declined for insufficient funds.",
	"rejected_by_bank":            "The payment was declined by your bank. Please contact them or try again later.",
	"expired":                     "The PIX code expired before the payment completed. Please request a new one.",
}

func rejectionMessage(statusDetail string) string {
	if msg, ok := rejectionMessages[statusDetail]; ok {
		return msg
	}
	return fmt.Sprintf("The payment could not be completed (reason: %s). Please try again or contact the school.", Redact(statusDetail))
}

// Client is an HTTP client for the processor's payment API.
type Client struct {
	baseURL  string
	token    string
	minCents int64
	httpc    *http.Client
}

func NewClient(baseURL, token string, minCents int64) *Client {
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		token:    token,
		minCents: minCents,
		httpc:    &http.Client{Timeout: defaultHTTPTimeout},
	}
}

// CreatePaymentInput describes the charge to create. AmountCents below the
// processor minimum is normalized up, never rejected.
type CreatePaymentInput struct {
	InvoiceID   string
	AmountCents int64
	Description string
	PayerEmail  string
	PayerName   string
}

// CreatePaymentResult is the processor's answer for a created PIX payment.
type CreatePaymentResult struct {
	PaymentID   string
	Status      string
	ChargeCents int64
	PixCode     string
	PixQRImage  string
	TicketURL   string
	ExpiresAt   time.Time
}

type payerPayload struct {
	Email     string `json:"email"`
	FirstName string `json:"first_name,omitempty"`
}

type createPaymentRequest struct {
	TransactionAmount float64      `json:"transaction_amount"`
	Description       string       `json:"description"`
	PaymentMethodID   string       `json:"payment_method_id"`
	ExternalReference string       `json:"external_reference"`
	Payer             payerPayload `json:"payer"`
}

type paymentResponse struct {
	ID                 json.Number `json:"id"`
	Status             string      `json:"status"`
	StatusDetail       string      `json:"status_detail"`
	ExternalReference  string      `json:"external_reference"`
	DateOfExpiration   string      `json:"date_of_expiration"`
	PointOfInteraction struct {
		TransactionData struct {
			QRCode       string `json:"qr_code"`
			QRCodeBase64 string `json:"qr_code_base64"`
			TicketURL    string `json:"ticket_url"`
		} `json:"transaction_data"`
	} `json:"point_of_interaction"`
}

// CreatePayment creates a PIX charge for an invoice. The payer email is
// mandatory and checked before any processor call. Each call carries a fresh
// idempotency token derived from (invoice id, current time) so a retried
// client request cannot double-charge at the processor.
func (c *Client) CreatePayment(ctx context.Context, in CreatePaymentInput) (*CreatePaymentResult, error) {
	if strings.TrimSpace(in.PayerEmail) == "" {
		return nil, billing.E(billing.CodeInvalidArgument, "payer email is required")
	}

	chargeCents := utils.NormalizeChargeCents(in.AmountCents, c.minCents)
	reqBody := createPaymentRequest{
		TransactionAmount: utils.CentsToAmount(chargeCents),
		Description:       in.Description,
		PaymentMethodID:   "pix",
		ExternalReference: in.InvoiceID,
		Payer: payerPayload{
			Email:     strings.TrimSpace(in.PayerEmail),
			FirstName: strings.TrimSpace(in.PayerName),
		},
	}

	idempotencyToken := fmt.Sprintf("%s-%d", in.InvoiceID, time.Now().UnixNano())
	var resp paymentResponse
	if err := c.do(ctx, http.MethodPost, c.baseURL+createPaymentPath, idempotencyToken, reqBody, &resp); err != nil {
		return nil, err
	}

	if resp.Status == "rejected" {
		return nil, billing.E(billing.CodePaymentRejected, rejectionMessage(resp.StatusDetail))
	}
	if resp.ID.String() == "" {
		return nil, billing.E(billing.CodeGatewayError, "processor response is missing a payment id")
	}

	expiresAt := time.Now().UTC().Add(defaultPixExpiry)
	if resp.DateOfExpiration != "" {
		if t, err := time.Parse(time.RFC3339, resp.DateOfExpiration); err == nil {
			expiresAt = t.UTC()
		}
	}

	return &CreatePaymentResult{
		PaymentID:   resp.ID.String(),
		Status:      resp.Status,
		ChargeCents: chargeCents,
		PixCode:     resp.PointOfInteraction.TransactionData.QRCode,
		PixQRImage:  resp.PointOfInteraction.TransactionData.QRCodeBase64,
		TicketURL:   resp.PointOfInteraction.TransactionData.TicketURL,
		ExpiresAt:   expiresAt,
	}, nil
}

// QueryPayment fetches the processor's authoritative state for one payment.
func (c *Client) QueryPayment(ctx context.Context, paymentID string) (*billing.PaymentStatus, error) {
	if strings.TrimSpace(paymentID) == "" {
		return nil, billing.E(billing.CodeInvalidArgument, "payment id is required")
	}

	var resp paymentResponse
	url := c.baseURL + fmt.Sprintf(getPaymentPath, paymentID)
	if err := c.do(ctx, http.MethodGet, url, "", nil, &resp); err != nil {
		return nil, err
	}

	return &billing.PaymentStatus{
		Status:            resp.Status,
		StatusDetail:      resp.StatusDetail,
		ExternalReference: resp.ExternalReference,
	}, nil
}

// do performs one processor round trip and decodes the response into out.
// Transport and parse failures come back as GatewayError; a 404 as NotFound.
// Error text is redacted of credentials before it leaves this package.
func (c *Client) do(ctx context.Context, method, url, idempotencyToken string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return billing.Wrap(billing.CodeGatewayError, "encode processor request", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return billing.Wrap(billing.CodeGatewayError, "build processor request", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if idempotencyToken != "" {
		req.Header.Set("X-Idempotency-Key", idempotencyToken)
	}

	res, err := c.httpc.Do(req)
	if err != nil {
		return billing.E(billing.CodeGatewayError, "payment processor unreachable: "+Redact(err.Error()))
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return billing.E(billing.CodeGatewayError, "read processor response: "+Redact(err.Error()))
	}

	switch {
	case res.StatusCode == http.StatusNotFound:
		return billing.E(billing.CodeNotFound, "the processor has no record of this payment")
	case res.StatusCode >= 400:
		return billing.E(billing.CodeGatewayError, fmt.Sprintf("processor returned %d: %s", res.StatusCode, Redact(truncate(string(raw), 200))))
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return billing.E(billing.CodeGatewayError, "parse processor response: "+Redact(err.Error()))
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
