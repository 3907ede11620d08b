package postgres

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/frahmantamala/payment-orchestrator/internal"
	paymentmodel "github.com/frahmantamala/payment-orchestrator/internal/core/datamodel/payment"
	ordermodel "github.com/frahmantamala/payment-orchestrator/internal/core/datamodel/paymentorder"
	"github.com/frahmantamala/payment-orchestrator/internal/core/datamodel/tenant"
	paymentpostgres "github.com/frahmantamala/payment-orchestrator/internal/payment/postgres"
	"github.com/frahmantamala/payment-orchestrator/internal/paymentorder"
)

var ErrPaymentMethodNotFound = internal.NewNotFoundError("Payment method not found", internal.ErrCodeUnsupportedPaymentMethod)

type PaymentOrderRepository struct {
	db *gorm.DB
}

func NewPaymentOrderRepository(db *gorm.DB) paymentorder.RepositoryAPI {
	return &PaymentOrderRepository{
		db: db,
	}
}

func orderNotFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return internal.ErrPaymentOrderNotFound
	}
	return err
}

func (r *PaymentOrderRepository) Create(ctx context.Context, order *ordermodel.PaymentOrder, buyer *ordermodel.Buyer, items []*ordermodel.Item, payments []*paymentmodel.Payment) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(buyer).Error; err != nil {
			return err
		}
		order.BuyerID = buyer.ID

		if err := tx.Create(order).Error; err != nil {
			return err
		}

		for _, item := range items {
			item.PaymentOrderID = order.ID
		}
		if len(items) > 0 {
			if err := tx.Create(&items).Error; err != nil {
				return err
			}
		}

		for _, p := range payments {
			p.PaymentOrderID = order.ID
			if err := paymentpostgres.CreateWithHistory(tx, p); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *PaymentOrderRepository) GetByID(ctx context.Context, id int64) (*ordermodel.PaymentOrder, error) {
	var order ordermodel.PaymentOrder
	if err := r.db.WithContext(ctx).First(&order, id).Error; err != nil {
		return nil, orderNotFound(err)
	}
	return &order, nil
}

func (r *PaymentOrderRepository) GetByReference(ctx context.Context, tenantID int64, reference string) (*ordermodel.PaymentOrder, error) {
	var order ordermodel.PaymentOrder
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND reference = ?", tenantID, reference).
		First(&order).Error
	if err != nil {
		return nil, orderNotFound(err)
	}
	return &order, nil
}

func (r *PaymentOrderRepository) SaveStatus(ctx context.Context, order *ordermodel.PaymentOrder) error {
	res := r.db.WithContext(ctx).
		Model(&ordermodel.PaymentOrder{}).
		Where("id = ?", order.ID).
		Updates(map[string]interface{}{
			"status":     order.Status,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return internal.ErrPaymentOrderNotFound
	}
	return nil
}

func (r *PaymentOrderRepository) GetBuyer(ctx context.Context, id int64) (*ordermodel.Buyer, error) {
	var buyer ordermodel.Buyer
	if err := r.db.WithContext(ctx).First(&buyer, id).Error; err != nil {
		return nil, err
	}
	return &buyer, nil
}

func (r *PaymentOrderRepository) ListItems(ctx context.Context, orderID int64) ([]*ordermodel.Item, error) {
	var items []*ordermodel.Item
	err := r.db.WithContext(ctx).
		Where("payment_order_id = ?", orderID).
		Order("id ASC").
		Find(&items).Error
	return items, err
}

func (r *PaymentOrderRepository) GetPaymentMethod(ctx context.Context, tenantID int64, methodType tenant.MethodType) (*tenant.PaymentMethod, error) {
	var method tenant.PaymentMethod
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND type = ?", tenantID, methodType).
		First(&method).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPaymentMethodNotFound
		}
		return nil, err
	}
	return &method, nil
}

func (r *PaymentOrderRepository) GetPaymentMethodByID(ctx context.Context, id int64) (*tenant.PaymentMethod, error) {
	var method tenant.PaymentMethod
	if err := r.db.WithContext(ctx).First(&method, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPaymentMethodNotFound
		}
		return nil, err
	}
	return &method, nil
}
