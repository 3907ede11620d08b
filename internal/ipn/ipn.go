package ipn

import (
	"context"
	"fmt"
	"sort"
	"strings"

	gatewaymodel "github.com/frahmantamala/payment-orchestrator/internal/core/datamodel/gateway"
	ipnmodel "github.com/frahmantamala/payment-orchestrator/internal/core/datamodel/ipn"
	paymentmodel "github.com/frahmantamala/payment-orchestrator/internal/core/datamodel/payment"
	"github.com/frahmantamala/payment-orchestrator/internal/core/status"
	"github.com/frahmantamala/payment-orchestrator/internal/gateway"
)

type RepositoryAPI interface {
	SaveIncoming(ctx context.Context, record *ipnmodel.IncomingIpn) error
	SaveFailed(ctx context.Context, record *ipnmodel.FailedIpn) error
}

type Gateways interface {
	ForTenant(ctx context.Context, tenantID int64, kind string) (gateway.Adapter, *gatewaymodel.Gateway, error)
}

type Payments interface {
	GetByClientReference(ctx context.Context, tenantID int64, clientReference string) (*paymentmodel.Payment, error)
	SaveIpnResult(ctx context.Context, p *paymentmodel.Payment, to status.Status, detail status.Detail) error
}

// ParseError is a notification the gateway adapter could not turn into records.
// It is permanent only when the adapter marked the cause as a malformed body.
type ParseError struct {
	Gateway string
	Err     error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse %s notification: %v", e.Gateway, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

func (e *ParseError) Permanent() bool {
	return gateway.IsPermanent(e.Err)
}

// BatchError lists the records of a notification that failed, keyed by client reference.
// A reference repeated within one notification carries every error it produced.
type BatchError struct {
	Failures map[string]error
}

func (e *BatchError) Error() string {
	refs := make([]string, 0, len(e.Failures))
	for ref := range e.Failures {
		refs = append(refs, ref)
	}
	sort.Strings(refs)

	parts := make([]string, len(refs))
	for i, ref := range refs {
		parts[i] = fmt.Sprintf("%s: %v", ref, e.Failures[ref])
	}
	return fmt.Sprintf("%d notification records failed: %s", len(refs), strings.Join(parts, "; "))
}

func (e *BatchError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures))
	for _, err := range e.Failures {
		errs = append(errs, err)
	}
	return errs
}

// Result counts what happened to the records of one notification.
type Result struct {
	Records int
	Applied int
	Skipped int
	Failed  int
}
