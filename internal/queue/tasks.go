package queue

import (
	"encoding/json"

	"github.com/storefront-next/internal/constants"

	"github.com/hibiken/asynq"
)

const (
	// TaskCartPurgeProduct 商品删除后清理购物车任务
	TaskCartPurgeProduct = constants.TaskCartPurgeProduct
	// TaskPaymentRefund 补偿退款任务
	TaskPaymentRefund = constants.TaskPaymentRefund
	// TaskOrderPlaced 下单成功通知任务
	TaskOrderPlaced = constants.TaskOrderPlaced
)

// CartPurgeProductPayload 购物车清理任务载荷
type CartPurgeProductPayload struct {
	ProductID uint `json:"product_id"`
}

// PaymentRefundPayload 补偿退款任务载荷
type PaymentRefundPayload struct {
	UserID         uint   `json:"user_id"`
	ProviderRef    string `json:"provider_ref"`
	Amount         string `json:"amount"`
	Currency       string `json:"currency"`
	IdempotencyKey string `json:"idempotency_key"`
	Reason         string `json:"reason"`
}

// OrderPlacedPayload 下单成功任务载荷
type OrderPlacedPayload struct {
	OrderID uint   `json:"order_id"`
	OrderNo string `json:"order_no"`
	UserID  uint   `json:"user_id"`
	Total   string `json:"total"`
}

// NewCartPurgeProductTask 创建购物车清理任务
func NewCartPurgeProductTask(payload CartPurgeProductPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskCartPurgeProduct, body), nil
}

// NewPaymentRefundTask 创建补偿退款任务
func NewPaymentRefundTask(payload PaymentRefundPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskPaymentRefund, body), nil
}

// NewOrderPlacedTask 创建下单成功任务
func NewOrderPlacedTask(payload OrderPlacedPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskOrderPlaced, body), nil
}
