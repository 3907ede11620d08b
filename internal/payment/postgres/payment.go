package postgres

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/frahmantamala/payment-orchestrator/internal"
	paymentmodel "github.com/frahmantamala/payment-orchestrator/internal/core/datamodel/payment"
	paymentpkg "github.com/frahmantamala/payment-orchestrator/internal/payment"
)

type PaymentRepository struct {
	db *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) paymentpkg.RepositoryAPI {
	return &PaymentRepository{
		db: db,
	}
}

func historyRow(p *paymentmodel.Payment) *paymentmodel.StatusHistory {
	return &paymentmodel.StatusHistory{
		PaymentID:    p.ID,
		Status:       p.Status,
		StatusDetail: p.StatusDetail,
		CreatedAt:    time.Now().UTC(),
	}
}

// CreateWithHistory inserts p and its first history row using tx.
func CreateWithHistory(tx *gorm.DB, p *paymentmodel.Payment) error {
	if err := tx.Create(p).Error; err != nil {
		return err
	}
	return tx.Create(historyRow(p)).Error
}

func (r *PaymentRepository) Create(ctx context.Context, p *paymentmodel.Payment) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return CreateWithHistory(tx, p)
	})
}

func (r *PaymentRepository) CreateRetry(ctx context.Context, previous, next *paymentmodel.Payment) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := CreateWithHistory(tx, next); err != nil {
			return err
		}
		err := tx.Model(&paymentmodel.Payment{}).
			Where("id = ?", previous.ID).
			Update("retried_with_payment_id", next.ID).Error
		if err != nil {
			return err
		}
		previous.RetriedWithPaymentID = &next.ID
		return nil
	})
}

func (r *PaymentRepository) GetByID(ctx context.Context, id int64) (*paymentmodel.Payment, error) {
	var p paymentmodel.Payment
	if err := r.db.WithContext(ctx).First(&p, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, internal.ErrPaymentNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *PaymentRepository) GetByClientReference(ctx context.Context, tenantID int64, clientReference string) (*paymentmodel.Payment, error) {
	var p paymentmodel.Payment
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND client_reference = ?", tenantID, clientReference).
		First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, internal.ErrPaymentNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *PaymentRepository) ListByOrder(ctx context.Context, paymentOrderID int64) ([]*paymentmodel.Payment, error) {
	var payments []*paymentmodel.Payment
	err := r.db.WithContext(ctx).
		Where("payment_order_id = ?", paymentOrderID).
		Order("id ASC").
		Find(&payments).Error
	return payments, err
}

// SaveStatus only touches the columns the transition engine owns.
func (r *PaymentRepository) SaveStatus(ctx context.Context, p *paymentmodel.Payment) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		updates := map[string]interface{}{
			"status":              p.Status,
			"status_detail":       p.StatusDetail,
			"gateway_reference":   p.GatewayReference,
			"metadata":            p.Metadata,
			"payment_information": p.PaymentInformation,
			"expiration_date":     p.ExpirationDate,
			"updated_at":          time.Now().UTC(),
		}
		res := tx.Model(&paymentmodel.Payment{}).Where("id = ?", p.ID).Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return internal.ErrPaymentNotFound
		}
		return tx.Create(historyRow(p)).Error
	})
}

func (r *PaymentRepository) History(ctx context.Context, paymentID int64) ([]*paymentmodel.StatusHistory, error) {
	var rows []*paymentmodel.StatusHistory
	err := r.db.WithContext(ctx).
		Where("payment_id = ?", paymentID).
		Order("id ASC").
		Find(&rows).Error
	return rows, err
}
