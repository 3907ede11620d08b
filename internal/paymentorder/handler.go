package paymentorder

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"

	"github.com/frahmantamala/payment-orchestrator/internal/auth"
	ordermodel "github.com/frahmantamala/payment-orchestrator/internal/core/datamodel/paymentorder"
	"github.com/frahmantamala/payment-orchestrator/internal/core/datamodel/tenant"
	"github.com/frahmantamala/payment-orchestrator/internal/transport"
)

type ServiceAPI interface {
	Create(ctx context.Context, t *tenant.Tenant, dto CreatePaymentOrderDTO) (*ordermodel.PaymentOrder, error)
	Get(ctx context.Context, tenantID int64, reference string) (*ordermodel.PaymentOrder, error)
	View(ctx context.Context, order *ordermodel.PaymentOrder) (*View, error)
	Cancel(ctx context.Context, order *ordermodel.PaymentOrder) error
	Execute(ctx context.Context, order *ordermodel.PaymentOrder) error
	ChargeBack(ctx context.Context, order *ordermodel.PaymentOrder) error
	ManualRefund(ctx context.Context, order *ordermodel.PaymentOrder) error
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

func (h *Handler) CreatePaymentOrder(w http.ResponseWriter, r *http.Request) {
	t, ok := auth.TenantFromContext(r.Context())
	if !ok {
		h.WriteError(w, http.StatusNotFound, "tenant not found")
		return
	}

	var dto CreatePaymentOrderDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.Logger.Error("CreatePaymentOrder: invalid request body", "error", err, "tenant_id", t.ID)
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	order, err := h.Service.Create(r.Context(), t, dto)
	if err != nil {
		h.Logger.Error("CreatePaymentOrder: service error", "error", err, "tenant_id", t.ID)
		h.HandleServiceError(w, err)
		return
	}

	h.Logger.Info("CreatePaymentOrder: payment order created",
		"tenant_id", t.ID,
		"reference", order.Reference,
		"status", order.Status)

	h.writeView(w, r, http.StatusCreated, order)
}

func (h *Handler) GetPaymentOrder(w http.ResponseWriter, r *http.Request) {
	order, ok := h.load(w, r)
	if !ok {
		return
	}
	h.writeView(w, r, http.StatusOK, order)
}

func (h *Handler) CancelPaymentOrder(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "CancelPaymentOrder", h.Service.Cancel)
}

func (h *Handler) ExecutePaymentOrder(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "ExecutePaymentOrder", h.Service.Execute)
}

func (h *Handler) ChargeBackPaymentOrder(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "ChargeBackPaymentOrder", h.Service.ChargeBack)
}

func (h *Handler) ManualRefundPaymentOrder(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "ManualRefundPaymentOrder", h.Service.ManualRefund)
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, name string, op func(context.Context, *ordermodel.PaymentOrder) error) {
	order, ok := h.load(w, r)
	if !ok {
		return
	}

	from := order.Status
	if err := op(r.Context(), order); err != nil {
		h.Logger.Error(name+": service error", "error", err, "reference", order.Reference, "status", from)
		h.HandleServiceError(w, err)
		return
	}

	h.Logger.Info(name+": payment order updated",
		"reference", order.Reference,
		"old_status", from,
		"new_status", order.Status)

	h.writeView(w, r, http.StatusOK, order)
}

func (h *Handler) load(w http.ResponseWriter, r *http.Request) (*ordermodel.PaymentOrder, bool) {
	t, ok := auth.TenantFromContext(r.Context())
	if !ok {
		h.WriteError(w, http.StatusNotFound, "tenant not found")
		return nil, false
	}

	reference := chi.URLParam(r, "reference")
	order, err := h.Service.Get(r.Context(), t.ID, reference)
	if err != nil {
		h.HandleServiceError(w, err)
		return nil, false
	}
	return order, true
}

func (h *Handler) writeView(w http.ResponseWriter, r *http.Request, code int, order *ordermodel.PaymentOrder) {
	view, err := h.Service.View(r.Context(), order)
	if err != nil {
		h.Logger.Error("failed to build payment order view", "error", err, "reference", order.Reference)
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, code, view)
}
