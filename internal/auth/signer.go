package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/frahmantamala/payment-orchestrator/internal/core/datamodel/tenant"
)

const notificationIssuer = "payment-orchestrator"

// NotificationSigner issues the tokens tenants use to verify status notifications.
// A tenant's own secret wins over the deployment-wide key.
type NotificationSigner struct {
	key []byte
	ttl time.Duration
	now func() time.Time
}

func NewNotificationSigner(key string, ttl time.Duration) *NotificationSigner {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &NotificationSigner{
		key: []byte(key),
		ttl: ttl,
		now: time.Now,
	}
}

func (s *NotificationSigner) secret(t *tenant.Tenant) ([]byte, error) {
	if t.NotificationSecret != "" {
		return []byte(t.NotificationSecret), nil
	}
	if len(s.key) == 0 {
		return nil, ErrMissingSignature
	}
	return s.key, nil
}

func bodyDigest(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

func (s *NotificationSigner) Sign(t *tenant.Tenant, reference string, body []byte) (string, error) {
	secret, err := s.secret(t)
	if err != nil {
		return "", err
	}

	now := s.now()
	claims := &NotificationClaims{
		PaymentOrder: reference,
		BodySHA256:   bodyDigest(body),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    notificationIssuer,
			Subject:   reference,
			Audience:  jwt.ClaimStrings{t.Name},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

// Verify is the check a tenant performs on receipt.
func (s *NotificationSigner) Verify(t *tenant.Tenant, tokenString string, body []byte) (*NotificationClaims, error) {
	secret, err := s.secret(t)
	if err != nil {
		return nil, err
	}

	token, err := jwt.ParseWithClaims(tokenString, &NotificationClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	},
		jwt.WithIssuer(notificationIssuer),
		jwt.WithAudience(t.Name),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*NotificationClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.BodySHA256 != bodyDigest(body) {
		return nil, ErrBodyMismatch
	}
	return claims, nil
}
