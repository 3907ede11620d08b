package auth

import (
	"context"
	"errors"

	"github.com/golang-jwt/jwt/v5"

	"github.com/frahmantamala/payment-orchestrator/internal"
	"github.com/frahmantamala/payment-orchestrator/internal/core/datamodel/tenant"
)

type ctxKey string

const ContextTenantKey ctxKey = "tenant"

const APIKeyHeader = "X-Api-Key"

// RepositoryAPI loads tenants by the name used in request paths.
type RepositoryAPI interface {
	GetTenantByName(ctx context.Context, name string) (*tenant.Tenant, error)
	GetTenantByID(ctx context.Context, id int64) (*tenant.Tenant, error)
}

// NotificationClaims binds a signed tenant notification to its exact body.
type NotificationClaims struct {
	PaymentOrder string `json:"payment_order"`
	BodySHA256   string `json:"body_sha256"`
	jwt.RegisteredClaims
}

var (
	ErrInvalidToken     = errors.New("invalid token")
	ErrTokenExpired     = errors.New("token expired")
	ErrBodyMismatch     = errors.New("notification body does not match signature")
	ErrMissingSignature = errors.New("notification signing secret not configured")
)

func TenantFromContext(ctx context.Context) (*tenant.Tenant, bool) {
	if ctx == nil {
		return nil, false
	}
	t, ok := ctx.Value(ContextTenantKey).(*tenant.Tenant)
	return t, ok && t != nil
}

// ContextWithTenant stores the tenant and its id so lower layers can read either.
func ContextWithTenant(ctx context.Context, t *tenant.Tenant) context.Context {
	ctx = context.WithValue(ctx, ContextTenantKey, t)
	return internal.ContextWithTenantID(ctx, t.ID)
}
