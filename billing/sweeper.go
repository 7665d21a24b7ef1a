package billing

import (
	"context"
	"log"
	"time"
)

// Sweeper periodically re-queries the processor for invoices that are still
// pending/overdue but already have a payment id, catching confirmations the
// webhook and the poller both missed.
type Sweeper struct {
	Invoices    InvoiceStore
	Gateway     PaymentQuerier
	Recon       *Service
	Interval    time.Duration
	ItemTimeout time.Duration
	Logger      *log.Logger
}

func NewSweeper(invoices InvoiceStore, gateway PaymentQuerier, recon *Service, interval, itemTimeout time.Duration, logger *log.Logger) *Sweeper {
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	if itemTimeout <= 0 {
		itemTimeout = 10 * time.Second
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Sweeper{
		Invoices:    invoices,
		Gateway:     gateway,
		Recon:       recon,
		Interval:    interval,
		ItemTimeout: itemTimeout,
		Logger:      logger,
	}
}

// Run executes the sweep loop until context cancellation.
func (w *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		if _, err := w.SweepOnce(ctx); err != nil {
			w.Logger.Printf("sweep: iteration failed: %v", err)
		}
	}
}

// SweepOnce reconciles every open invoice that has a processor payment id.
// One slow or failing invoice is skipped and logged; it never halts the rest
// of the sweep. Returns the number of invoices newly marked paid.
func (w *Sweeper) SweepOnce(ctx context.Context) (int, error) {
	invoices, err := w.Invoices.ListOpenWithPayment(ctx)
	if err != nil {
		return 0, err
	}

	paid := 0
	for i := range invoices {
		invoice := &invoices[i]
		if invoice.PaymentID == nil {
			continue
		}
		if ok := w.sweepOne(ctx, invoice.Id, *invoice.PaymentID); ok {
			paid++
		}
		if ctx.Err() != nil {
			return paid, ctx.Err()
		}
	}

	w.Logger.Printf("sweep: checked %d open invoices, %d newly paid", len(invoices), paid)
	return paid, nil
}

// sweepOne handles a single invoice under a bounded timeout. Returns true
// only when this pass freshly marked the invoice paid.
func (w *Sweeper) sweepOne(ctx context.Context, invoiceID, paymentID string) bool {
	itemCtx, cancel := context.WithTimeout(ctx, w.ItemTimeout)
	defer cancel()

	status, err := w.Gateway.QueryPayment(itemCtx, paymentID)
	if err != nil {
		w.Logger.Printf("sweep: invoice %s: processor query failed: %v", invoiceID, err)
		return false
	}
	res, err := w.Recon.Reconcile(itemCtx, invoiceID, paymentID, status.Status, status.StatusDetail)
	if err != nil {
		w.Logger.Printf("sweep: invoice %s: reconcile failed: %v", invoiceID, err)
		return false
	}
	return res.InvoicePaid && !res.AlreadyPaid
}
