package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/IBM/sarama"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/frahmantamala/payment-orchestrator/pkg/logger"
	"github.com/frahmantamala/payment-orchestrator/pkg/metrics"
)

const (
	headerTaskType = "task_type"
	headerTaskID   = "task_id"
)

// Scheduler parks delayed tasks until they are due.
type Scheduler interface {
	Schedule(ctx context.Context, task Task) error
}

// KafkaPublisher publishes runnable tasks to a topic and hands delayed ones to a Scheduler.
type KafkaPublisher struct {
	producer  sarama.SyncProducer
	topic     string
	scheduler Scheduler
}

func NewKafkaProducer(brokers []string) (sarama.SyncProducer, error) {
	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	config.Producer.Retry.Max = 3
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Compression = sarama.CompressionSnappy

	producer, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}
	return producer, nil
}

func NewKafkaPublisher(producer sarama.SyncProducer, topic string, scheduler Scheduler) *KafkaPublisher {
	return &KafkaPublisher{
		producer:  producer,
		topic:     topic,
		scheduler: scheduler,
	}
}

func (p *KafkaPublisher) Enqueue(ctx context.Context, task Task) error {
	var err error
	now := time.Now()
	if due := task.Due(now); p.scheduler != nil && due.After(now) {
		task.NotBefore = due
		err = p.scheduler.Schedule(ctx, task)
	} else {
		err = p.Publish(ctx, task)
	}
	metrics.TasksEnqueued.WithLabelValues(string(task.Type), metrics.Result(err)).Inc()
	return err
}

// Publish sends the task to the topic immediately.
func (p *KafkaPublisher) Publish(ctx context.Context, task Task) error {
	tracer := otel.Tracer("tasks")
	ctx, span := tracer.Start(ctx, "kafka.publish."+string(task.Type),
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			attribute.String("messaging.system", "kafka"),
			attribute.String("messaging.destination", p.topic),
			attribute.String("task.type", string(task.Type)),
			attribute.String("task.id", task.ID),
		),
	)
	defer span.End()

	task.Delay = 0
	task.NotBefore = time.Time{}

	body, err := json.Marshal(task)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to marshal task")
		return fmt.Errorf("failed to marshal task: %w", err)
	}

	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)

	headers := []sarama.RecordHeader{
		{Key: []byte(headerTaskType), Value: []byte(task.Type)},
		{Key: []byte(headerTaskID), Value: []byte(task.ID)},
	}
	for key, value := range carrier {
		headers = append(headers, sarama.RecordHeader{Key: []byte(key), Value: []byte(value)})
	}

	msg := &sarama.ProducerMessage{
		Topic:   p.topic,
		Key:     sarama.StringEncoder(strconv.FormatInt(task.TenantID, 10)),
		Value:   sarama.ByteEncoder(body),
		Headers: headers,
	}

	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to send message")
		return fmt.Errorf("failed to send task to kafka: %w", err)
	}

	span.SetAttributes(
		attribute.Int("messaging.kafka.partition", int(partition)),
		attribute.Int64("messaging.kafka.offset", offset),
	)

	logger.From(ctx).Debug("task published",
		"task_id", task.ID,
		"task_type", task.Type,
		"partition", partition,
		"offset", offset)

	return nil
}

func (p *KafkaPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}

// KafkaConsumer feeds tasks from a consumer group into a Router.
type KafkaConsumer struct {
	group   sarama.ConsumerGroup
	topics  []string
	router  *Router
	retry   Dispatcher
	retrier Retrier
	logger  *slog.Logger
}

func NewKafkaConsumerGroup(brokers []string, groupID string) (sarama.ConsumerGroup, error) {
	config := sarama.NewConfig()
	config.Version = sarama.V2_6_0_0
	config.Consumer.Group.Rebalance.Strategy = sarama.NewBalanceStrategyRoundRobin()
	config.Consumer.Offsets.Initial = sarama.OffsetOldest
	config.Consumer.Return.Errors = true

	group, err := sarama.NewConsumerGroup(brokers, groupID, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka consumer group: %w", err)
	}
	return group, nil
}

// NewKafkaConsumer builds a consumer. Failed tasks go back through retry until retrier gives up.
func NewKafkaConsumer(group sarama.ConsumerGroup, topics []string, router *Router, retry Dispatcher, retrier Retrier, logger *slog.Logger) *KafkaConsumer {
	return &KafkaConsumer{
		group:   group,
		topics:  topics,
		router:  router,
		retry:   retry,
		retrier: retrier,
		logger:  logger,
	}
}

// Run consumes until ctx is cancelled.
func (c *KafkaConsumer) Run(ctx context.Context) error {
	go func() {
		for err := range c.group.Errors() {
			c.logger.Error("kafka consumer error", "error", err)
		}
	}()

	c.logger.Info("kafka consumer started", "topics", c.topics)
	for {
		if err := c.group.Consume(ctx, c.topics, c); err != nil {
			c.logger.Error("error from consumer", "error", err)
		}
		if ctx.Err() != nil {
			return c.group.Close()
		}
	}
}

func (c *KafkaConsumer) Setup(sarama.ConsumerGroupSession) error {
	return nil
}

func (c *KafkaConsumer) Cleanup(sarama.ConsumerGroupSession) error {
	return nil
}

func (c *KafkaConsumer) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for message := range claim.Messages() {
		c.HandleMessage(session.Context(), message)
		session.MarkMessage(message, "")
	}
	return nil
}

// HandleMessage decodes and runs one task. It never returns an error so the offset always advances.
func (c *KafkaConsumer) HandleMessage(ctx context.Context, message *sarama.ConsumerMessage) {
	carrier := propagation.MapCarrier{}
	for _, header := range message.Headers {
		key := string(header.Key)
		if key == "traceparent" || key == "tracestate" {
			carrier[key] = string(header.Value)
		}
	}
	ctx = otel.GetTextMapPropagator().Extract(ctx, carrier)

	var task Task
	if err := json.Unmarshal(message.Value, &task); err != nil {
		c.logger.Error("failed to decode task", "topic", message.Topic, "offset", message.Offset, "error", err)
		return
	}

	ctx, span := otel.Tracer("tasks").Start(ctx, "kafka.consume."+string(task.Type),
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("messaging.system", "kafka"),
			attribute.String("messaging.source", message.Topic),
			attribute.String("task.id", task.ID),
		),
	)
	defer span.End()

	ctx = logger.Into(ctx, c.logger.With("task_id", task.ID, "task_type", task.Type))

	err := c.router.Handle(ctx, task)
	metrics.TasksHandled.WithLabelValues(string(task.Type), metrics.Result(err)).Inc()
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, "task failed")

	next, ok := c.retrier.Next(task)
	if !ok || c.retry == nil || IsPermanent(err) {
		c.logger.Error("task failed, giving up", "task_id", task.ID, "attempts", task.Attempt+1, "error", err)
		return
	}
	if err := c.retry.Enqueue(ctx, next); err != nil {
		c.logger.Error("failed to re-enqueue task", "task_id", task.ID, "error", err)
	}
}
