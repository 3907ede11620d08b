package gateway_test

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/datatypes"

	"github.com/frahmantamala/payment-orchestrator/internal/core/datamodel/payment"
	"github.com/frahmantamala/payment-orchestrator/internal/core/status"
	"github.com/frahmantamala/payment-orchestrator/internal/gateway"
)

type fakeReverser struct {
	mu        sync.Mutex
	calls     []string
	voidErr   error
	creditErr error
	revErr    error
}

func (f *fakeReverser) record(op string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, op)
}

func (f *fakeReverser) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string{}, f.calls...)
}

func (f *fakeReverser) VoidPayment(ctx context.Context, p *payment.Payment) (*gateway.Outcome, error) {
	f.record("void")
	if f.voidErr != nil {
		return nil, f.voidErr
	}
	return &gateway.Outcome{Status: status.Cancelled, StatusDetail: status.DetailByMerchant}, nil
}

func (f *fakeReverser) CreditPayment(ctx context.Context, p *payment.Payment) (*gateway.Outcome, error) {
	f.record("credit")
	if f.creditErr != nil {
		return nil, f.creditErr
	}
	return &gateway.Outcome{Status: status.Refunded, StatusDetail: status.DetailByMerchant}, nil
}

func (f *fakeReverser) AuthorizationReversePayment(ctx context.Context, p *payment.Payment) (*gateway.Outcome, error) {
	f.record("reversal")
	if f.revErr != nil {
		return nil, f.revErr
	}
	return &gateway.Outcome{Status: status.Cancelled, StatusDetail: status.DetailByMerchant}, nil
}

var _ = Describe("CancelPolicy", func() {
	var (
		now    time.Time
		policy gateway.CancelPolicy
		ops    *fakeReverser
	)

	capturedPayment := func(ago time.Duration) *payment.Payment {
		return &payment.Payment{
			ID:              1,
			ClientReference: "order-1_0_0",
			Status:          status.Successful,
			Metadata: datatypes.JSONMap{
				payment.MetaCaptureDate: now.Add(-ago).Format(time.RFC3339),
			},
		}
	}

	BeforeEach(func() {
		now = time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
		ops = &fakeReverser{}
		policy = gateway.CancelPolicy{
			VoidWindow: 24 * time.Hour,
			Now:        func() time.Time { return now },
			Logger:     slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError})),
		}
	})

	It("only reverses the authorization when the payment was never captured", func() {
		p := &payment.Payment{ID: 1, Status: status.Authorized}
		history := []status.Status{status.Creating, status.PendingAuthorize, status.Authorized}

		outcome, err := policy.Cancel(context.Background(), ops, p, history)
		Expect(err).NotTo(HaveOccurred())
		Expect(outcome.Status).To(Equal(status.Cancelled))
		Expect(ops.Calls()).To(Equal([]string{"reversal"}))
	})

	It("voids a capture inside the window without crediting", func() {
		outcome, err := policy.Cancel(context.Background(), ops, capturedPayment(time.Hour), []status.Status{status.Authorized, status.Successful})
		Expect(err).NotTo(HaveOccurred())
		Expect(outcome.Status).To(Equal(status.Cancelled))
		Expect(ops.Calls()).To(ContainElements("void", "reversal"))
		Expect(ops.Calls()).NotTo(ContainElement("credit"))
	})

	It("credits only after the void fails inside the window", func() {
		ops.voidErr = errors.New("void window closed at processor")

		outcome, err := policy.Cancel(context.Background(), ops, capturedPayment(time.Hour), []status.Status{status.Successful})
		Expect(err).NotTo(HaveOccurred())
		Expect(outcome.Status).To(Equal(status.Refunded))

		calls := ops.Calls()
		Expect(calls).To(ContainElements("void", "credit"))
		voidAt, creditAt := -1, -1
		for i, c := range calls {
			switch c {
			case "void":
				voidAt = i
			case "credit":
				creditAt = i
			}
		}
		Expect(voidAt).To(BeNumerically("<", creditAt))
	})

	It("does not fail the cancel when the cleanup reversal fails", func() {
		ops.revErr = errors.New("reversal rejected")

		_, err := policy.Cancel(context.Background(), ops, capturedPayment(time.Hour), []status.Status{status.Successful})
		Expect(err).NotTo(HaveOccurred())
	})

	It("credits directly outside the window and never voids", func() {
		_, err := policy.Cancel(context.Background(), ops, capturedPayment(30*time.Hour), []status.Status{status.Successful})
		Expect(err).NotTo(HaveOccurred())
		Expect(ops.Calls()).To(Equal([]string{"credit"}))
	})

	It("surfaces a credit failure outside the window", func() {
		ops.creditErr = errors.New("credit refused")

		_, err := policy.Cancel(context.Background(), ops, capturedPayment(48*time.Hour), []status.Status{status.Successful})
		Expect(err).To(MatchError("credit refused"))
		Expect(ops.Calls()).To(Equal([]string{"credit"}))
	})

	It("honours a configured window", func() {
		policy.VoidWindow = 2 * time.Hour

		_, err := policy.Cancel(context.Background(), ops, capturedPayment(3*time.Hour), []status.Status{status.Successful})
		Expect(err).NotTo(HaveOccurred())
		Expect(ops.Calls()).To(Equal([]string{"credit"}))
	})
})
