package tasks_test

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/frahmantamala/payment-orchestrator/internal/tasks"
)

var _ = Describe("LocalDispatcher", func() {
	var (
		logger     *slog.Logger
		router     *tasks.Router
		dispatcher *tasks.LocalDispatcher
	)

	BeforeEach(func() {
		logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		router = tasks.NewRouter(logger)
	})

	AfterEach(func() {
		if dispatcher != nil {
			dispatcher.Shutdown()
		}
	})

	It("runs an enqueued task on the worker pool", func() {
		received := make(chan tasks.Task, 1)
		router.Subscribe(tasks.TypeCapturePayment, func(ctx context.Context, task tasks.Task) error {
			received <- task
			return nil
		})
		dispatcher = tasks.NewLocalDispatcher(tasks.LocalConfig{MaxWorkers: 2}, router, logger)

		task := tasks.New(tasks.TypeCapturePayment, 1, map[string]any{tasks.ArgPaymentID: int64(42)})
		Expect(dispatcher.Enqueue(context.Background(), task)).To(Succeed())

		var got tasks.Task
		Eventually(received).Should(Receive(&got))
		Expect(got.ID).To(Equal(task.ID))
		id, ok := got.Int64Arg(tasks.ArgPaymentID)
		Expect(ok).To(BeTrue())
		Expect(id).To(Equal(int64(42)))
	})

	It("holds delayed tasks until they are due", func() {
		var ranAt atomic.Int64
		router.Subscribe(tasks.TypeCancelDecisionManagerReview, func(ctx context.Context, task tasks.Task) error {
			ranAt.Store(time.Now().UnixNano())
			return nil
		})
		dispatcher = tasks.NewLocalDispatcher(tasks.LocalConfig{MaxWorkers: 1}, router, logger)

		start := time.Now()
		task := tasks.New(tasks.TypeCancelDecisionManagerReview, 1, nil).WithDelay(100 * time.Millisecond)
		Expect(dispatcher.Enqueue(context.Background(), task)).To(Succeed())
		Expect(dispatcher.Pending()).To(Equal(1))

		Eventually(func() int64 { return ranAt.Load() }).ShouldNot(BeZero())
		Expect(time.Unix(0, ranAt.Load()).Sub(start)).To(BeNumerically(">=", 100*time.Millisecond))
		Expect(dispatcher.Pending()).To(Equal(0))
	})

	It("retries a failing task a bounded number of times", func() {
		var attempts []int
		var mu sync.Mutex
		router.Subscribe(tasks.TypeNotifyTenant, func(ctx context.Context, task tasks.Task) error {
			mu.Lock()
			defer mu.Unlock()
			attempts = append(attempts, task.Attempt)
			return errors.New("tenant unreachable")
		})
		dispatcher = tasks.NewLocalDispatcher(tasks.LocalConfig{
			MaxWorkers:   1,
			MaxAttempts:  3,
			RetryBackoff: 10 * time.Millisecond,
		}, router, logger)

		Expect(dispatcher.Enqueue(context.Background(), tasks.New(tasks.TypeNotifyTenant, 1, nil))).To(Succeed())

		Eventually(func() []int {
			mu.Lock()
			defer mu.Unlock()
			return append([]int{}, attempts...)
		}).Should(Equal([]int{0, 1, 2}))
		Consistently(func() int {
			mu.Lock()
			defer mu.Unlock()
			return len(attempts)
		}, 200*time.Millisecond).Should(Equal(3))
	})

	It("does not retry permanent failures", func() {
		var attempts atomic.Int32
		router.Subscribe(tasks.TypeCapturePayment, func(ctx context.Context, task tasks.Task) error {
			attempts.Add(1)
			return tasks.Permanent(errors.New("payment_id missing"))
		})
		dispatcher = tasks.NewLocalDispatcher(tasks.LocalConfig{
			MaxWorkers:   1,
			MaxAttempts:  3,
			RetryBackoff: 10 * time.Millisecond,
		}, router, logger)

		Expect(dispatcher.Enqueue(context.Background(), tasks.New(tasks.TypeCapturePayment, 1, nil))).To(Succeed())

		Eventually(func() int32 { return attempts.Load() }).Should(Equal(int32(1)))
		Consistently(func() int32 { return attempts.Load() }, 100*time.Millisecond).Should(Equal(int32(1)))
	})

	It("rejects tasks once shut down", func() {
		dispatcher = tasks.NewLocalDispatcher(tasks.LocalConfig{MaxWorkers: 1}, router, logger)
		dispatcher.Shutdown()

		err := dispatcher.Enqueue(context.Background(), tasks.New(tasks.TypeNotifyTenant, 1, nil))
		Expect(err).To(MatchError(tasks.ErrDispatcherClosed))
		dispatcher = nil
	})
})

var _ = Describe("Retrier", func() {
	It("doubles the backoff on each attempt and stops at the limit", func() {
		retrier := tasks.Retrier{MaxAttempts: 3, Backoff: time.Second}
		task := tasks.New(tasks.TypeNotifyTenant, 1, nil)

		next, ok := retrier.Next(task)
		Expect(ok).To(BeTrue())
		Expect(next.Attempt).To(Equal(1))
		Expect(next.Delay).To(Equal(time.Second))

		next, ok = retrier.Next(next)
		Expect(ok).To(BeTrue())
		Expect(next.Attempt).To(Equal(2))
		Expect(next.Delay).To(Equal(2 * time.Second))

		_, ok = retrier.Next(next)
		Expect(ok).To(BeFalse())
	})
})

var _ = Describe("Router", func() {
	It("stops at the first failing handler", func() {
		logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		router := tasks.NewRouter(logger)
		calls := 0
		router.Subscribe(tasks.TypePaymentUpdated, func(ctx context.Context, task tasks.Task) error {
			calls++
			return errors.New("boom")
		})
		router.Subscribe(tasks.TypePaymentUpdated, func(ctx context.Context, task tasks.Task) error {
			calls++
			return nil
		})

		err := router.Handle(context.Background(), tasks.New(tasks.TypePaymentUpdated, 1, nil))
		Expect(err).To(MatchError(ContainSubstring("boom")))
		Expect(calls).To(Equal(1))
	})

	It("treats tasks without handlers as done", func() {
		logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		router := tasks.NewRouter(logger)
		Expect(router.Handles(tasks.TypeCapturePayment)).To(BeFalse())
		Expect(router.Handle(context.Background(), tasks.New(tasks.TypeCapturePayment, 1, nil))).To(Succeed())
	})
})
