package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi"

	"github.com/frahmantamala/payment-orchestrator/internal"
	"github.com/frahmantamala/payment-orchestrator/internal/core/datamodel/tenant"
	"github.com/frahmantamala/payment-orchestrator/internal/transport"
	"github.com/frahmantamala/payment-orchestrator/pkg/logger"
)

type ServiceAPI interface {
	ResolveTenant(ctx context.Context, name string) (*tenant.Tenant, error)
	Authenticate(t *tenant.Tenant, apiKey string) error
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(service ServiceAPI, logger *slog.Logger) *Handler {
	return &Handler{
		BaseHandler: transport.NewBaseHandler(logger),
		Service:     service,
	}
}

// TenantMiddleware resolves the {tenant} path segment and stores the tenant in the context.
func (h *Handler) TenantMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "tenant")

		t, err := h.Service.ResolveTenant(r.Context(), name)
		if err != nil {
			h.Logger.Warn("tenant middleware: tenant not resolved", "tenant", name, "error", err)
			h.HandleServiceError(w, err)
			return
		}

		ctx := ContextWithTenant(r.Context(), t)
		ctx = logger.With(ctx, "tenant_id", t.ID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// APIKeyMiddleware must run after TenantMiddleware.
func (h *Handler) APIKeyMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t, ok := TenantFromContext(r.Context())
		if !ok {
			h.HandleServiceError(w, internal.ErrTenantNotFound)
			return
		}

		apiKey := ExtractAPIKey(r)
		if apiKey == "" {
			h.Logger.Warn("api key middleware: missing api key", "tenant_id", t.ID)
			h.HandleServiceError(w, internal.ErrInvalidAPIKey)
			return
		}

		if err := h.Service.Authenticate(t, apiKey); err != nil {
			h.Logger.Warn("api key middleware: api key rejected", "tenant_id", t.ID)
			h.HandleServiceError(w, err)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// ExtractAPIKey reads the X-Api-Key header, falling back to a Bearer authorization header.
func ExtractAPIKey(r *http.Request) string {
	if key := r.Header.Get(APIKeyHeader); key != "" {
		return key
	}
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
