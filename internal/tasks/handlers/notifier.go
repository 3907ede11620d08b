package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/frahmantamala/payment-orchestrator/internal/paymentorder"
	"github.com/frahmantamala/payment-orchestrator/internal/tasks"
)

const SignatureHeader = "X-Signature"

type NotifierConfig struct {
	Retries uint64
	Backoff time.Duration
}

// Notifier delivers signed order views to tenant endpoints.
type Notifier struct {
	tenants Tenants
	signer  Signer
	client  *http.Client
	config  NotifierConfig
	logger  *slog.Logger
}

func NewNotifier(tenants Tenants, signer Signer, client *http.Client, config NotifierConfig, logger *slog.Logger) *Notifier {
	if config.Backoff <= 0 {
		config.Backoff = time.Second
	}
	return &Notifier{
		tenants: tenants,
		signer:  signer,
		client:  client,
		config:  config,
		logger:  logger,
	}
}

// Notify retries 5xx and transport failures with exponential backoff. A 4xx is final.
func (n *Notifier) Notify(ctx context.Context, tenantID int64, view *paymentorder.View) error {
	t, err := n.tenants.GetTenantByID(ctx, tenantID)
	if err != nil {
		return err
	}
	log := n.logger.With("tenant_id", t.ID, "reference", view.Reference, "status", view.Status)
	if t.IpnURL == "" {
		log.Warn("tenant has no notification url, skipping")
		return nil
	}

	body, err := json.Marshal(view)
	if err != nil {
		return tasks.Permanent(err)
	}
	signature, err := n.signer.Sign(t, view.Reference, body)
	if err != nil {
		return tasks.Permanent(fmt.Errorf("failed to sign notification: %w", err))
	}

	backoff := retry.WithMaxRetries(n.config.Retries, retry.NewExponential(n.config.Backoff))
	attempt := 0
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		code, err := n.post(ctx, t.IpnURL, body, signature)
		if err != nil {
			log.Warn("tenant notification attempt failed", "attempt", attempt, "error", err)
			return retry.RetryableError(err)
		}
		if code >= http.StatusInternalServerError {
			log.Warn("tenant notification attempt rejected", "attempt", attempt, "status_code", code)
			return retry.RetryableError(fmt.Errorf("tenant responded %d", code))
		}
		if code >= http.StatusBadRequest {
			return tasks.Permanent(fmt.Errorf("tenant refused notification with %d", code))
		}
		return nil
	})
	if err != nil {
		log.Error("tenant notification failed", "attempts", attempt, "error", err)
		return err
	}

	log.Info("tenant notified", "attempts", attempt)
	return nil
}

func (n *Notifier) post(ctx context.Context, url string, body []byte, signature string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(SignatureHeader, signature)

	resp, err := n.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}
