package gateway

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/frahmantamala/payment-orchestrator/internal/core/datamodel/payment"
	"github.com/frahmantamala/payment-orchestrator/internal/core/status"
)

const DefaultVoidWindow = 24 * time.Hour

// Reverser is the subset of Adapter the cancel decision tree drives.
type Reverser interface {
	VoidPayment(ctx context.Context, p *payment.Payment) (*Outcome, error)
	CreditPayment(ctx context.Context, p *payment.Payment) (*Outcome, error)
	AuthorizationReversePayment(ctx context.Context, p *payment.Payment) (*Outcome, error)
}

// CancelPolicy picks how to undo a payment from its status history and capture date.
type CancelPolicy struct {
	VoidWindow time.Duration
	Now        func() time.Time
	Logger     *slog.Logger
}

func WasCaptured(current status.Status, history []status.Status) bool {
	if current == status.Successful || current == status.PendingCapture {
		return true
	}
	for _, s := range history {
		if s == status.Successful || s == status.PendingCapture {
			return true
		}
	}
	return false
}

func (c CancelPolicy) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

func (c CancelPolicy) window() time.Duration {
	if c.VoidWindow > 0 {
		return c.VoidWindow
	}
	return DefaultVoidWindow
}

// Cancel never reverses an uncaptured payment with anything but an authorization reversal.
// Inside the void window it voids first and credits only if the void fails, while a
// best-effort reversal runs alongside. Outside the window it credits.
func (c CancelPolicy) Cancel(ctx context.Context, ops Reverser, p *payment.Payment, history []status.Status) (*Outcome, error) {
	logger := c.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if !WasCaptured(p.Status, history) {
		return ops.AuthorizationReversePayment(ctx, p)
	}

	capturedAt, ok := p.CaptureDate()
	if !ok || c.now().Sub(capturedAt) >= c.window() {
		return ops.CreditPayment(ctx, p)
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if _, err := ops.AuthorizationReversePayment(ctx, p); err != nil {
			logger.Warn("authorization reversal during cancel failed",
				"payment_id", p.ID,
				"client_reference", p.ClientReference,
				"error", err)
		}
	}()
	defer wg.Wait()

	outcome, err := ops.VoidPayment(ctx, p)
	if err == nil {
		return outcome, nil
	}
	logger.Info("void failed, falling back to credit",
		"payment_id", p.ID,
		"client_reference", p.ClientReference,
		"error", err)

	return ops.CreditPayment(ctx, p)
}
