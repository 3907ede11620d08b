package cybersource_test

import (
	"context"
	"errors"
	"sync"

	"github.com/frahmantamala/payment-orchestrator/internal/gateway/cybersource"
	"github.com/frahmantamala/payment-orchestrator/internal/tasks"
)

// fakeClient answers per service and records which ones ran.
type fakeClient struct {
	mu       sync.Mutex
	services []string
	requests []*cybersource.RequestMessage
	replies  map[string]*cybersource.ReplyMessage
	errs     map[string]error
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		replies: map[string]*cybersource.ReplyMessage{},
		errs:    map[string]error{},
	}
}

func serviceOf(req *cybersource.RequestMessage) string {
	switch {
	case req.AFSService != nil:
		return "dm"
	case req.AuthService != nil:
		return "auth"
	case req.CaptureService != nil:
		return "capture"
	case req.VoidService != nil:
		return "void"
	case req.CreditService != nil:
		return "credit"
	case req.AuthReversalService != nil:
		return "reversal"
	case req.CaseManagementActionService != nil:
		return "case"
	}
	return "unknown"
}

func (f *fakeClient) RunTransaction(ctx context.Context, req *cybersource.RequestMessage) (*cybersource.ReplyMessage, error) {
	svc := serviceOf(req)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.services = append(f.services, svc)
	f.requests = append(f.requests, req)

	if err := f.errs[svc]; err != nil {
		return nil, err
	}
	if reply, ok := f.replies[svc]; ok {
		return reply, nil
	}
	return nil, errors.New("no reply configured for " + svc)
}

func (f *fakeClient) Services() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string{}, f.services...)
}

type recordingDispatcher struct {
	mu    sync.Mutex
	tasks []tasks.Task
	err   error
}

func (d *recordingDispatcher) Enqueue(ctx context.Context, task tasks.Task) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	d.tasks = append(d.tasks, task)
	return nil
}

func (d *recordingDispatcher) Tasks() []tasks.Task {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]tasks.Task{}, d.tasks...)
}
