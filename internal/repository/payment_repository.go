package repository

import (
	"errors"
	"strings"
	"time"

	"github.com/storefront-next/internal/constants"
	"github.com/storefront-next/internal/models"

	"gorm.io/gorm"
)

// PaymentRepository 支付数据访问接口
type PaymentRepository interface {
	Create(payment *models.Payment) error
	GetByProviderRef(providerRef string) (*models.Payment, error)
	GetByIdempotencyKey(key string) (*models.Payment, error)
	MarkRefunded(providerRef string, at time.Time) (int64, error)
	WithTx(tx *gorm.DB) PaymentRepository
}

// GormPaymentRepository GORM 实现
type GormPaymentRepository struct {
	db *gorm.DB
}

// NewPaymentRepository 创建支付仓库
func NewPaymentRepository(db *gorm.DB) *GormPaymentRepository {
	return &GormPaymentRepository{db: db}
}

// WithTx 绑定事务
func (r *GormPaymentRepository) WithTx(tx *gorm.DB) PaymentRepository {
	if tx == nil {
		return r
	}
	return &GormPaymentRepository{db: tx}
}

// Create 创建支付记录
func (r *GormPaymentRepository) Create(payment *models.Payment) error {
	return r.db.Create(payment).Error
}

// GetByProviderRef 根据第三方流水号获取最新支付记录
func (r *GormPaymentRepository) GetByProviderRef(providerRef string) (*models.Payment, error) {
	providerRef = strings.TrimSpace(providerRef)
	if providerRef == "" {
		return nil, nil
	}
	var payment models.Payment
	if err := r.db.Where("provider_ref = ?", providerRef).Order("id DESC").First(&payment).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &payment, nil
}

// GetByIdempotencyKey 根据网关幂等键获取最新支付记录
func (r *GormPaymentRepository) GetByIdempotencyKey(key string) (*models.Payment, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, nil
	}
	var payment models.Payment
	if err := r.db.Where("idempotency_key = ?", key).Order("id DESC").First(&payment).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &payment, nil
}

// MarkRefunded 将成功或待退款的支付记录标记为已退款
func (r *GormPaymentRepository) MarkRefunded(providerRef string, at time.Time) (int64, error) {
	result := r.db.Model(&models.Payment{}).
		Where("provider_ref = ? AND status IN ?", providerRef, []string{constants.PaymentStatusSuccess, constants.PaymentStatusRefundPending}).
		Updates(map[string]interface{}{
			"status":     constants.PaymentStatusRefunded,
			"updated_at": at,
		})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}
