package payment_test

import (
	"context"
	"errors"
	"log/slog"
	"os"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/frahmantamala/payment-orchestrator/internal"
	gatewaymodel "github.com/frahmantamala/payment-orchestrator/internal/core/datamodel/gateway"
	paymentmodel "github.com/frahmantamala/payment-orchestrator/internal/core/datamodel/payment"
	"github.com/frahmantamala/payment-orchestrator/internal/core/status"
	"github.com/frahmantamala/payment-orchestrator/internal/gateway"
	"github.com/frahmantamala/payment-orchestrator/internal/payment"
	"github.com/frahmantamala/payment-orchestrator/internal/tasks"
)

var _ = Describe("Service", func() {
	var (
		repo       *fakeRepository
		adapter    *fakeAdapter
		resolver   *fakeResolver
		dispatcher *recordingDispatcher
		service    *payment.Service
		ctx        context.Context
	)

	newPayment := func(st status.Status) *paymentmodel.Payment {
		p := &paymentmodel.Payment{
			TenantID:        1,
			PaymentOrderID:  7,
			GatewayMethodID: 3,
			ClientReference: payment.ClientReference("ORD-1", 0, 0),
			Type:            paymentmodel.TypeCreditCard,
			Currency:        "BRL",
			Amount:          15990,
			Installments:    1,
		}
		Expect(repo.Create(ctx, p)).To(Succeed())
		p.Status = st
		p.StatusDetail = status.DetailUnknown
		return p
	}

	BeforeEach(func() {
		ctx = context.Background()
		repo = newFakeRepository()
		adapter = &fakeAdapter{}
		resolver = &fakeResolver{
			adapter: adapter,
			method:  &gatewaymodel.GatewayMethod{ID: 3, GatewayID: 1, MaxRetries: 2},
		}
		dispatcher = &recordingDispatcher{}
		logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		service = payment.NewService(repo, resolver, dispatcher, logger)
	})

	Describe("client references", func() {
		It("formats order reference, index and retry count", func() {
			Expect(payment.ClientReference("ORD-9", 1, 0)).To(Equal("ORD-9_1_0"))
		})

		It("replaces only the retry suffix", func() {
			Expect(payment.NextClientReference("ORD_9_1_0", 2)).To(Equal("ORD_9_1_2"))
			Expect(payment.NextClientReference("plain", 1)).To(Equal("plain_1"))
		})
	})

	Describe("Send", func() {
		It("persists the gateway outcome with its references", func() {
			p := newPayment(status.Creating)
			adapter.sendResults = []*gateway.SendResult{{
				Status:           status.Authorized,
				StatusDetail:     status.DetailApproved,
				GatewayReference: "auth-1",
				Metadata:         map[string]any{paymentmodel.MetaAuthRequestID: "auth-1"},
				RedirectURL:      "https://pay.example/1",
			}}

			last, err := service.Send(ctx, p, gateway.RequestData{})
			Expect(err).ToNot(HaveOccurred())
			Expect(last).To(BeIdenticalTo(p))
			Expect(p.Status).To(Equal(status.Authorized))
			Expect(p.GatewayRef()).To(Equal("auth-1"))
			Expect(p.MetadataString(paymentmodel.MetaAuthRequestID)).To(Equal("auth-1"))
			Expect(p.MetadataString(paymentmodel.MetaRedirectURL)).To(Equal("https://pay.example/1"))
			Expect(repo.history[p.ID]).To(HaveLen(2))
		})

		It("leaves the payment untouched when the gateway fails", func() {
			p := newPayment(status.Creating)
			adapter.sendErr = errors.New("connection reset")

			_, err := service.Send(ctx, p, gateway.RequestData{})
			Expect(err).To(HaveOccurred())

			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Code).To(Equal(internal.ErrCodeGatewayFailed))
			Expect(p.Status).To(Equal(status.Creating))
			Expect(repo.saves).To(BeZero())
		})

		It("restores the payment when the write fails", func() {
			p := newPayment(status.Creating)
			repo.saveErr = errors.New("db down")
			adapter.sendResults = []*gateway.SendResult{{Status: status.Authorized, StatusDetail: status.DetailApproved}}

			_, err := service.Send(ctx, p, gateway.RequestData{})
			Expect(err).To(HaveOccurred())
			Expect(p.Status).To(Equal(status.Creating))
		})

		It("retries retryable rejections with a fresh payment", func() {
			p := newPayment(status.Creating)
			adapter.sendResults = []*gateway.SendResult{
				{Status: status.Rejected, StatusDetail: status.DetailGatewayError, ShouldRetry: true},
				{Status: status.Authorized, StatusDetail: status.DetailApproved},
			}

			last, err := service.Send(ctx, p, gateway.RequestData{})
			Expect(err).ToNot(HaveOccurred())
			Expect(adapter.sent).To(Equal([]string{"ORD-1_0_0", "ORD-1_0_1"}))

			Expect(p.Status).To(Equal(status.Rejected))
			Expect(p.IsRetried()).To(BeTrue())
			Expect(*p.RetriedWithPaymentID).To(Equal(last.ID))
			Expect(last.RetryCount).To(Equal(1))
			Expect(last.Status).To(Equal(status.Authorized))

			valid, err := service.ListValidByOrder(ctx, 7)
			Expect(err).ToNot(HaveOccurred())
			Expect(valid).To(ConsistOf(last))
		})

		It("stops retrying at the gateway method limit", func() {
			p := newPayment(status.Creating)
			adapter.sendResults = []*gateway.SendResult{
				{Status: status.Rejected, StatusDetail: status.DetailGatewayError, ShouldRetry: true},
			}

			last, err := service.Send(ctx, p, gateway.RequestData{})
			Expect(err).ToNot(HaveOccurred())
			Expect(adapter.sent).To(HaveLen(3))
			Expect(last.RetryCount).To(Equal(2))
			Expect(last.Status).To(Equal(status.Rejected))
			Expect(last.IsRetried()).To(BeFalse())
		})

		It("does not retry business rejections", func() {
			p := newPayment(status.Creating)
			adapter.sendResults = []*gateway.SendResult{{Status: status.Rejected, StatusDetail: status.DetailFraud}}

			last, err := service.Send(ctx, p, gateway.RequestData{})
			Expect(err).ToNot(HaveOccurred())
			Expect(adapter.sent).To(HaveLen(1))
			Expect(last.StatusDetail).To(Equal(status.DetailFraud))
		})
	})

	Describe("Execute", func() {
		It("queues exactly one capture task", func() {
			p := newPayment(status.Authorized)

			_, err := service.Execute(ctx, p)
			Expect(err).ToNot(HaveOccurred())
			Expect(p.Status).To(Equal(status.PendingCapture))
			Expect(dispatcher.tasks).To(HaveLen(1))
			Expect(dispatcher.tasks[0].Type).To(Equal(tasks.TypeCapturePayment))
			id, ok := dispatcher.tasks[0].Int64Arg(tasks.ArgPaymentID)
			Expect(ok).To(BeTrue())
			Expect(id).To(Equal(p.ID))
		})

		It("does nothing when the payment is already pending capture", func() {
			p := newPayment(status.PendingCapture)

			_, err := service.Execute(ctx, p)
			Expect(err).ToNot(HaveOccurred())
			Expect(dispatcher.tasks).To(BeEmpty())
		})

		It("keeps the status when the task cannot be queued", func() {
			p := newPayment(status.Authorized)
			dispatcher.err = errors.New("broker unavailable")

			_, err := service.Execute(ctx, p)
			Expect(err).To(HaveOccurred())
			Expect(p.Status).To(Equal(status.Authorized))
		})

		DescribeTable("refuses payments past capture",
			func(current status.Status) {
				p := newPayment(current)

				_, err := service.Execute(ctx, p)
				var invalid *status.InvalidStateChangeError
				Expect(errors.As(err, &invalid)).To(BeTrue())
				Expect(invalid.From).To(Equal(current))
				Expect(p.Status).To(Equal(current))
				Expect(dispatcher.tasks).To(BeEmpty())
			},
			Entry("rejected", status.Rejected),
			Entry("successful", status.Successful),
			Entry("refunded", status.Refunded),
			Entry("cancelled", status.Cancelled),
		)
	})

	Describe("Capture", func() {
		It("writes the capture outcome", func() {
			p := newPayment(status.PendingCapture)
			adapter.captureOutcome = &gateway.Outcome{
				Status:       status.Successful,
				StatusDetail: status.DetailApproved,
				Metadata:     map[string]any{paymentmodel.MetaCaptureRequestID: "cap-1"},
			}

			_, err := service.Capture(ctx, p)
			Expect(err).ToNot(HaveOccurred())
			Expect(p.Status).To(Equal(status.Successful))
			Expect(p.MetadataString(paymentmodel.MetaCaptureRequestID)).To(Equal("cap-1"))
		})

		It("leaves the status unchanged on a declined capture", func() {
			p := newPayment(status.PendingCapture)
			adapter.captureErr = &gateway.DeclinedError{Operation: "capture", Code: "REJECT"}

			_, err := service.Capture(ctx, p)
			Expect(err).To(HaveOccurred())
			var declined *gateway.DeclinedError
			Expect(errors.As(err, &declined)).To(BeTrue())
			Expect(p.Status).To(Equal(status.PendingCapture))
		})

		It("is a no-op for an already successful payment", func() {
			p := newPayment(status.Successful)

			_, err := service.Capture(ctx, p)
			Expect(err).ToNot(HaveOccurred())
			Expect(repo.saves).To(BeZero())
		})
	})

	Describe("Cancel", func() {
		It("cancels unsent payments locally", func() {
			p := newPayment(status.Creating)

			_, err := service.Cancel(ctx, p)
			Expect(err).ToNot(HaveOccurred())
			Expect(p.Status).To(Equal(status.Cancelled))
			Expect(p.StatusDetail).To(Equal(status.DetailByMerchant))
		})

		It("hands the status history to the gateway", func() {
			q := newPayment(status.Authorized)
			repo.appendHistory(q)
			adapter.cancelOutcome = &gateway.Outcome{Status: status.Cancelled, StatusDetail: status.DetailByMerchant}

			_, err := service.Cancel(ctx, q)
			Expect(err).ToNot(HaveOccurred())
			Expect(adapter.cancelHistory).To(ContainElement(status.Authorized))
			Expect(q.Status).To(Equal(status.Cancelled))
		})

		It("keeps the status when the gateway cancel fails", func() {
			p := newPayment(status.Successful)
			adapter.cancelErr = errors.New("credit failed")

			_, err := service.Cancel(ctx, p)
			Expect(err).To(HaveOccurred())
			Expect(p.Status).To(Equal(status.Successful))
		})
	})

	Describe("Rejection", func() {
		It("rejects with the given detail", func() {
			p := newPayment(status.PendingAuthorize)

			_, err := service.Rejection(ctx, p, status.DetailFraud)
			Expect(err).ToNot(HaveOccurred())
			Expect(p.Status).To(Equal(status.Rejected))
			Expect(p.StatusDetail).To(Equal(status.DetailFraud))
		})
	})

	Describe("administrative operations", func() {
		It("records a manual refund on a cancelled payment", func() {
			p := newPayment(status.Cancelled)

			_, err := service.ManualRefund(ctx, p)
			Expect(err).ToNot(HaveOccurred())
			Expect(p.Status).To(Equal(status.Refunded))
			Expect(p.StatusDetail).To(Equal(status.DetailManualRefund))
		})

		It("charges back a refunded payment through the gateway", func() {
			p := newPayment(status.Refunded)
			adapter.chargeBackOutcome = &gateway.Outcome{Status: status.ChargedBack, StatusDetail: status.DetailChargeBack}

			_, err := service.ChargeBack(ctx, p)
			Expect(err).ToNot(HaveOccurred())
			Expect(p.Status).To(Equal(status.ChargedBack))
		})
	})

	Describe("SaveIpnResult", func() {
		It("applies valid transitions", func() {
			p := newPayment(status.PendingAuthorize)

			Expect(service.SaveIpnResult(ctx, p, status.Authorized, status.DetailApproved)).To(Succeed())
			Expect(p.Status).To(Equal(status.Authorized))
		})

		It("skips stale notifications", func() {
			p := newPayment(status.Successful)

			err := service.SaveIpnResult(ctx, p, status.Authorized, status.DetailApproved)
			Expect(gateway.IsSkipIpn(err)).To(BeTrue())
			Expect(p.Status).To(Equal(status.Successful))
		})

		It("skips duplicate deliveries", func() {
			p := newPayment(status.Authorized)

			err := service.SaveIpnResult(ctx, p, status.Authorized, status.DetailApproved)
			Expect(gateway.IsSkipIpn(err)).To(BeTrue())
			Expect(repo.saves).To(BeZero())
		})

		It("persists gateway reported changes outside the graph", func() {
			p := newPayment(status.Rejected)

			Expect(service.SaveIpnResult(ctx, p, status.Successful, status.DetailApproved)).To(Succeed())
			Expect(p.Status).To(Equal(status.Successful))
		})
	})
})
