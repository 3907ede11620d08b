package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
)

type Type string

const (
	TypeCapturePayment              Type = "capturePayment"
	TypeNotifyTenant                Type = "notifyTenant"
	TypePaymentUpdated              Type = "paymentUpdated"
	TypeCancelDecisionManagerReview Type = "cancelDecisionManagerReview"
)

const (
	ArgPaymentID       = "payment_id"
	ArgPaymentOrderID  = "payment_order_id"
	ArgGatewayID       = "gateway_id"
	ArgRequestID       = "request_id"
	ArgClientReference = "client_reference"
)

// Task is a fire-and-forget unit of deferred work.
type Task struct {
	ID        string         `json:"id"`
	Type      Type           `json:"type"`
	TenantID  int64          `json:"tenant_id"`
	Args      map[string]any `json:"args"`
	Attempt   int            `json:"attempt"`
	NotBefore time.Time      `json:"not_before,omitempty"`
	CreatedAt time.Time      `json:"created_at"`

	Delay time.Duration `json:"-"`
}

func New(taskType Type, tenantID int64, args map[string]any) Task {
	if args == nil {
		args = map[string]any{}
	}
	return Task{
		ID:        uuid.NewString(),
		Type:      taskType,
		TenantID:  tenantID,
		Args:      args,
		CreatedAt: time.Now().UTC(),
	}
}

func (t Task) WithDelay(d time.Duration) Task {
	t.Delay = d
	return t
}

// Due returns when the task becomes runnable.
func (t Task) Due(now time.Time) time.Time {
	if !t.NotBefore.IsZero() {
		return t.NotBefore
	}
	return now.Add(t.Delay)
}

// Int64Arg reads a numeric argument, tolerating the float64 values produced by JSON decoding.
func (t Task) Int64Arg(key string) (int64, bool) {
	switch v := t.Args[key].(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case float64:
		return int64(v), true
	case json.Number:
		n, err := v.Int64()
		return n, err == nil
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		return n, err == nil
	}
	return 0, false
}

func (t Task) StringArg(key string) string {
	if v, ok := t.Args[key].(string); ok {
		return v
	}
	return ""
}

// Dispatcher enqueues tasks without observing their completion.
type Dispatcher interface {
	Enqueue(ctx context.Context, task Task) error
}

type DispatcherFunc func(ctx context.Context, task Task) error

func (f DispatcherFunc) Enqueue(ctx context.Context, task Task) error {
	return f(ctx, task)
}

// PermanentError marks a task failure that a retry cannot fix.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string {
	return "permanent task failure: " + e.Err.Error()
}

func (e *PermanentError) Unwrap() error {
	return e.Err
}

func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

func IsPermanent(err error) bool {
	var perm *PermanentError
	return errors.As(err, &perm)
}

// Retrier decides whether a failed task runs again and after how long.
type Retrier struct {
	MaxAttempts int
	Backoff     time.Duration
}

func (r Retrier) Next(task Task) (Task, bool) {
	maxAttempts := r.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	if task.Attempt+1 >= maxAttempts {
		return task, false
	}
	backoff := r.Backoff
	if backoff <= 0 {
		backoff = time.Second
	}
	next := task
	next.Attempt++
	next.NotBefore = time.Time{}
	next.Delay = backoff * time.Duration(1<<uint(task.Attempt))
	return next, true
}
