package tasks_test

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/frahmantamala/payment-orchestrator/internal/tasks"
)

type recordingScheduler struct {
	scheduled []tasks.Task
	err       error
}

func (s *recordingScheduler) Schedule(ctx context.Context, task tasks.Task) error {
	if s.err != nil {
		return s.err
	}
	s.scheduled = append(s.scheduled, task)
	return nil
}

func header(msg *sarama.ProducerMessage, key string) string {
	for _, h := range msg.Headers {
		if string(h.Key) == key {
			return string(h.Value)
		}
	}
	return ""
}

var _ = Describe("KafkaPublisher", func() {
	var (
		producer  *mocks.SyncProducer
		scheduler *recordingScheduler
		publisher *tasks.KafkaPublisher
	)

	BeforeEach(func() {
		producer = mocks.NewSyncProducer(GinkgoT(), nil)
		scheduler = &recordingScheduler{}
		publisher = tasks.NewKafkaPublisher(producer, "payment-orchestrator.tasks", scheduler)
	})

	AfterEach(func() {
		Expect(publisher.Close()).To(Succeed())
	})

	It("publishes runnable tasks with type and id headers", func() {
		task := tasks.New(tasks.TypeCapturePayment, 7, map[string]any{tasks.ArgPaymentID: int64(3)})

		producer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
			if msg.Topic != "payment-orchestrator.tasks" {
				return errors.New("unexpected topic " + msg.Topic)
			}
			if header(msg, "task_type") != string(tasks.TypeCapturePayment) {
				return errors.New("missing task_type header")
			}
			if header(msg, "task_id") != task.ID {
				return errors.New("missing task_id header")
			}
			body, err := msg.Value.Encode()
			if err != nil {
				return err
			}
			var decoded tasks.Task
			if err := json.Unmarshal(body, &decoded); err != nil {
				return err
			}
			if decoded.TenantID != 7 {
				return errors.New("tenant not carried")
			}
			return nil
		})

		Expect(publisher.Enqueue(context.Background(), task)).To(Succeed())
		Expect(scheduler.scheduled).To(BeEmpty())
	})

	It("parks delayed tasks in the scheduler instead of publishing", func() {
		task := tasks.New(tasks.TypeCancelDecisionManagerReview, 7, nil).WithDelay(10 * time.Second)

		Expect(publisher.Enqueue(context.Background(), task)).To(Succeed())
		Expect(scheduler.scheduled).To(HaveLen(1))
		Expect(scheduler.scheduled[0].NotBefore).To(BeTemporally("~", time.Now().Add(10*time.Second), time.Second))
	})

	It("surfaces broker failures", func() {
		producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

		err := publisher.Enqueue(context.Background(), tasks.New(tasks.TypeNotifyTenant, 7, nil))
		Expect(err).To(MatchError(ContainSubstring("failed to send task to kafka")))
	})
})

var _ = Describe("KafkaConsumer", func() {
	var (
		logger   *slog.Logger
		router   *tasks.Router
		retried  []tasks.Task
		consumer *tasks.KafkaConsumer
	)

	BeforeEach(func() {
		logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		router = tasks.NewRouter(logger)
		retried = nil
		retry := tasks.DispatcherFunc(func(ctx context.Context, task tasks.Task) error {
			retried = append(retried, task)
			return nil
		})
		consumer = tasks.NewKafkaConsumer(nil, []string{"t"}, router, retry, tasks.Retrier{MaxAttempts: 2, Backoff: time.Second}, logger)
	})

	message := func(task tasks.Task) *sarama.ConsumerMessage {
		body, err := json.Marshal(task)
		Expect(err).NotTo(HaveOccurred())
		return &sarama.ConsumerMessage{Topic: "t", Value: body}
	}

	It("routes decoded tasks to their handler", func() {
		var handled tasks.Task
		router.Subscribe(tasks.TypePaymentUpdated, func(ctx context.Context, task tasks.Task) error {
			handled = task
			return nil
		})

		task := tasks.New(tasks.TypePaymentUpdated, 9, map[string]any{tasks.ArgPaymentID: int64(11)})
		consumer.HandleMessage(context.Background(), message(task))

		Expect(handled.ID).To(Equal(task.ID))
		id, ok := handled.Int64Arg(tasks.ArgPaymentID)
		Expect(ok).To(BeTrue())
		Expect(id).To(Equal(int64(11)))
		Expect(retried).To(BeEmpty())
	})

	It("re-enqueues a failed task with backoff until attempts run out", func() {
		router.Subscribe(tasks.TypeNotifyTenant, func(ctx context.Context, task tasks.Task) error {
			return errors.New("tenant down")
		})

		task := tasks.New(tasks.TypeNotifyTenant, 9, nil)
		consumer.HandleMessage(context.Background(), message(task))
		Expect(retried).To(HaveLen(1))
		Expect(retried[0].Attempt).To(Equal(1))
		Expect(retried[0].Delay).To(Equal(time.Second))

		consumer.HandleMessage(context.Background(), message(retried[0]))
		Expect(retried).To(HaveLen(1))
	})

	It("drops undecodable messages", func() {
		consumer.HandleMessage(context.Background(), &sarama.ConsumerMessage{Topic: "t", Value: []byte("not json")})
		Expect(retried).To(BeEmpty())
	})
})
