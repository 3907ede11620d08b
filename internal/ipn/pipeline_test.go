package ipn_test

import (
	"context"
	"errors"
	"log/slog"
	"os"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/frahmantamala/payment-orchestrator/internal/core/datamodel/tenant"
	"github.com/frahmantamala/payment-orchestrator/internal/core/status"
	"github.com/frahmantamala/payment-orchestrator/internal/gateway"
	"github.com/frahmantamala/payment-orchestrator/internal/ipn"
	"github.com/frahmantamala/payment-orchestrator/internal/tasks"
)

var _ = Describe("Pipeline", func() {
	var (
		repo       *fakeRepository
		adapter    *fakeAdapter
		gateways   *fakeGateways
		payments   *fakePayments
		dispatcher *recordingDispatcher
		pipeline   *ipn.Pipeline
		ctx        context.Context
		owner      *tenant.Tenant
	)

	BeforeEach(func() {
		repo = &fakeRepository{}
		adapter = &fakeAdapter{status: status.Authorized}
		gateways = &fakeGateways{adapter: adapter}
		payments = newFakePayments("R1", "R3", "R4", "R5")
		dispatcher = &recordingDispatcher{}
		logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		pipeline = ipn.NewPipeline(repo, gateways, payments, dispatcher, logger)
		ctx = context.Background()
		owner = &tenant.Tenant{ID: 1, Name: "acme"}
	})

	Context("when every record applies", func() {
		It("audits each record and queues propagation", func() {
			adapter.records = records("R1", "R3")

			resolved, result, err := pipeline.Process(ctx, owner, "fake", []byte("{}"), nil)

			Expect(err).ToNot(HaveOccurred())
			Expect(resolved).To(Equal(gateway.Adapter(adapter)))
			Expect(result.Applied).To(Equal(2))
			Expect(repo.incoming).To(HaveLen(2))
			Expect(repo.incoming[0].Skipped).To(BeFalse())
			Expect(repo.incoming[0].GatewayID).To(Equal(int64(7)))
			Expect(dispatcher.tasks).To(HaveLen(2))
			Expect(dispatcher.tasks[0].Type).To(Equal(tasks.TypePaymentUpdated))

			orderID, ok := dispatcher.tasks[0].Int64Arg(tasks.ArgPaymentOrderID)
			Expect(ok).To(BeTrue())
			Expect(orderID).To(Equal(int64(100)))
		})
	})

	Context("when some records of a batch fail", func() {
		It("applies the others and reports exactly the failed references", func() {
			adapter.records = records("R1", "R2", "R3", "R4", "R5")
			payments.saveErr["R4"] = errors.New("connection reset")

			_, result, err := pipeline.Process(ctx, owner, "fake", []byte("{}"), nil)

			var batchErr *ipn.BatchError
			Expect(errors.As(err, &batchErr)).To(BeTrue())
			Expect(batchErr.Failures).To(HaveLen(2))
			Expect(batchErr.Failures).To(HaveKey("R2"))
			Expect(batchErr.Failures).To(HaveKey("R4"))

			Expect(result.Records).To(Equal(5))
			Expect(result.Applied).To(Equal(3))
			Expect(result.Failed).To(Equal(2))
			Expect(payments.applied).To(HaveKey("R1"))
			Expect(payments.applied).To(HaveKey("R3"))
			Expect(payments.applied).To(HaveKey("R5"))
			Expect(dispatcher.tasks).To(HaveLen(3))

			Expect(repo.failed).To(HaveLen(2))
			Expect(*repo.failed[0].ClientReference).To(Equal("R2"))
			Expect(repo.failed[0].PaymentID).To(BeNil())
			Expect(*repo.failed[1].ClientReference).To(Equal("R4"))
			Expect(*repo.failed[1].PaymentID).To(Equal(payments.byRef["R4"].ID))
		})
	})

	Context("when two records of a batch match no payment", func() {
		It("applies the others and stores both failures without a payment", func() {
			delete(payments.byRef, "R4")
			adapter.records = records("R1", "R2", "R3", "R4", "R5")

			_, result, err := pipeline.Process(ctx, owner, "fake", []byte("{}"), nil)

			var batchErr *ipn.BatchError
			Expect(errors.As(err, &batchErr)).To(BeTrue())
			Expect(batchErr.Failures).To(HaveLen(2))
			Expect(batchErr.Failures).To(HaveKey("R2"))
			Expect(batchErr.Failures).To(HaveKey("R4"))

			Expect(result.Applied).To(Equal(3))
			Expect(result.Failed).To(Equal(2))
			Expect(dispatcher.tasks).To(HaveLen(3))

			Expect(repo.failed).To(HaveLen(2))
			Expect(*repo.failed[0].ClientReference).To(Equal("R2"))
			Expect(repo.failed[0].PaymentID).To(BeNil())
			Expect(*repo.failed[1].ClientReference).To(Equal("R4"))
			Expect(repo.failed[1].PaymentID).To(BeNil())
		})
	})

	Context("when a batch repeats a failing reference", func() {
		It("keeps every error for that reference", func() {
			payments.saveErr["R4"] = errors.New("connection reset")
			adapter.records = records("R4", "R1", "R4")

			_, result, err := pipeline.Process(ctx, owner, "fake", []byte("{}"), nil)

			var batchErr *ipn.BatchError
			Expect(errors.As(err, &batchErr)).To(BeTrue())
			Expect(batchErr.Failures).To(HaveLen(1))
			joined, ok := batchErr.Failures["R4"].(interface{ Unwrap() []error })
			Expect(ok).To(BeTrue())
			Expect(joined.Unwrap()).To(HaveLen(2))
			Expect(result.Failed).To(Equal(2))
			Expect(repo.failed).To(HaveLen(2))
		})
	})

	Context("when the body cannot be parsed", func() {
		It("stores the raw payload without a reference and fails permanently", func() {
			adapter.parseErr = gateway.Malformed(errors.New("unexpected EOF"))

			resolved, result, err := pipeline.Process(ctx, owner, "fake", []byte("<broken"), nil)

			Expect(resolved).ToNot(BeNil())
			Expect(result).To(BeNil())
			var parseErr *ipn.ParseError
			Expect(errors.As(err, &parseErr)).To(BeTrue())
			Expect(parseErr.Permanent()).To(BeTrue())

			Expect(repo.failed).To(HaveLen(1))
			Expect(repo.failed[0].ClientReference).To(BeNil())
			Expect(repo.failed[0].Payload).To(Equal("<broken"))
			Expect(dispatcher.tasks).To(BeEmpty())
		})
	})

	Context("when reading the notification hits a temporary failure", func() {
		It("reports a parse error that is not permanent", func() {
			adapter.parseErr = errors.New("get payment 9001: status 503")

			_, _, err := pipeline.Process(ctx, owner, "fake", []byte("{}"), nil)

			var parseErr *ipn.ParseError
			Expect(errors.As(err, &parseErr)).To(BeTrue())
			Expect(parseErr.Permanent()).To(BeFalse())
			Expect(gateway.IsPermanent(err)).To(BeFalse())
			Expect(repo.failed).To(HaveLen(1))
		})
	})

	Context("when the adapter asks to skip the notification", func() {
		It("succeeds without touching payments", func() {
			adapter.parseErr = &gateway.SkipIpnError{Reason: "topic not handled"}

			_, result, err := pipeline.Process(ctx, owner, "fake", []byte("{}"), nil)

			Expect(err).ToNot(HaveOccurred())
			Expect(result.Records).To(BeZero())
			Expect(repo.incoming).To(BeEmpty())
			Expect(repo.failed).To(BeEmpty())
		})
	})

	Context("when a record reports the current status again", func() {
		It("audits it as skipped and queues nothing", func() {
			payments.byRef["R1"].Status = status.Authorized
			adapter.records = records("R1")

			_, result, err := pipeline.Process(ctx, owner, "fake", []byte("{}"), nil)

			Expect(err).ToNot(HaveOccurred())
			Expect(result.Skipped).To(Equal(1))
			Expect(repo.incoming).To(HaveLen(1))
			Expect(repo.incoming[0].Skipped).To(BeTrue())
			Expect(dispatcher.tasks).To(BeEmpty())
		})
	})

	Context("when propagation cannot be queued", func() {
		It("counts the record as failed even though the status was saved", func() {
			dispatcher.err = errors.New("broker unavailable")
			adapter.records = records("R1")

			_, result, err := pipeline.Process(ctx, owner, "fake", []byte("{}"), nil)

			var batchErr *ipn.BatchError
			Expect(errors.As(err, &batchErr)).To(BeTrue())
			Expect(batchErr.Failures).To(HaveKey("R1"))
			Expect(result.Failed).To(Equal(1))
			Expect(payments.applied).To(HaveKeyWithValue("R1", status.Authorized))
		})
	})

	Context("when the tenant has no such gateway", func() {
		It("returns no adapter", func() {
			gateways.err = errors.New("gateway not configured")

			resolved, _, err := pipeline.Process(ctx, owner, "fake", []byte("{}"), nil)

			Expect(err).To(HaveOccurred())
			Expect(resolved).To(BeNil())
		})
	})
})

var _ = Describe("BatchError", func() {
	It("lists failures in reference order", func() {
		err := &ipn.BatchError{Failures: map[string]error{
			"B": errors.New("second"),
			"A": errors.New("first"),
		}}
		Expect(err.Error()).To(Equal("2 notification records failed: A: first; B: second"))
	})
})
