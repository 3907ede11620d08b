package gateway

import (
	"context"
	"errors"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/frahmantamala/payment-orchestrator/internal/core/datamodel/payment"
	"github.com/frahmantamala/payment-orchestrator/internal/core/status"
)

// AuthorizeStatusOrDefault falls back to pendingAuthorize for vocabulary gaps and logs them.
func AuthorizeStatusOrDefault(logger *slog.Logger, kind Kind, st status.Status, err error) (status.Status, error) {
	var nm *NoMatchingStatusError
	if errors.As(err, &nm) {
		logger.Warn("unmapped gateway status, defaulting to pendingAuthorize",
			"gateway", kind,
			"unknown_status", nm.UnknownStatus)
		return status.PendingAuthorize, nil
	}
	return st, err
}

// DetailOrUnknown falls back to the unknown detail for vocabulary gaps and logs them.
func DetailOrUnknown(logger *slog.Logger, kind Kind, d status.Detail, err error) (status.Detail, error) {
	var nm *NoMatchingStatusError
	if errors.As(err, &nm) {
		logger.Warn("unmapped gateway status detail",
			"gateway", kind,
			"unknown_status", nm.UnknownStatus)
		return status.DetailUnknown, nil
	}
	return d, err
}

// TranslateIpn resolves status and detail for a record concurrently.
// A status gap fails the record. A detail gap degrades to unknown.
func TranslateIpn(ctx context.Context, logger *slog.Logger, adapter Adapter, record IpnRecord, p *payment.Payment) (status.Status, status.Detail, error) {
	var (
		st     status.Status
		detail status.Detail
	)

	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		st, err = adapter.TranslateIpnStatus(record, p)
		return err
	})
	g.Go(func() error {
		d, err := adapter.TranslateIpnStatusDetail(record, p)
		detail, err = DetailOrUnknown(logger, adapter.Kind(), d, err)
		return err
	})
	if err := g.Wait(); err != nil {
		return "", "", err
	}
	return st, detail, nil
}
