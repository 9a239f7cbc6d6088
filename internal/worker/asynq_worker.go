package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/storefront-next/internal/logger"
	"github.com/storefront-next/internal/provider"
	"github.com/storefront-next/internal/queue"
	"github.com/storefront-next/internal/service"

	"github.com/hibiken/asynq"
)

// Consumer 异步任务消费者
type Consumer struct {
	*provider.Container
}

// NewConsumer 创建消费者
func NewConsumer(c *provider.Container) *Consumer {
	return &Consumer{
		Container: c,
	}
}

// Register 注册消费者
func (c *Consumer) Register(mux *asynq.ServeMux) {
	if c == nil || mux == nil {
		logger.Debugw("worker_register_skip_nil", "consumer_nil", c == nil, "mux_nil", mux == nil)
		return
	}
	mux.HandleFunc(queue.TaskCartPurgeProduct, c.handleCartPurgeProduct)
	mux.HandleFunc(queue.TaskPaymentRefund, c.handlePaymentRefund)
	mux.HandleFunc(queue.TaskOrderPlaced, c.handleOrderPlaced)
}

func (c *Consumer) handleCartPurgeProduct(ctx context.Context, task *asynq.Task) error {
	if c == nil || task == nil || c.CartService == nil {
		logger.Debugw("worker_cart_purge_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.CartPurgeProductPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_cart_purge_unmarshal_failed", "error", err)
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}
	if payload.ProductID == 0 {
		logger.Debugw("worker_cart_purge_skip_invalid_payload", "product_id", payload.ProductID)
		return nil
	}
	removed, err := c.CartService.PurgeProduct(ctx, payload.ProductID)
	if err != nil {
		logger.Warnw("worker_cart_purge_failed", "product_id", payload.ProductID, "error", err)
		return err
	}
	logger.Infow("worker_cart_purge_done", "product_id", payload.ProductID, "removed", removed)
	return nil
}

func (c *Consumer) handlePaymentRefund(ctx context.Context, task *asynq.Task) error {
	if c == nil || task == nil || c.OrderService == nil {
		logger.Debugw("worker_payment_refund_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.PaymentRefundPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_payment_refund_unmarshal_failed", "error", err)
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}
	providerRef := strings.TrimSpace(payload.ProviderRef)
	if providerRef == "" {
		logger.Debugw("worker_payment_refund_skip_invalid_payload", "user_id", payload.UserID)
		return nil
	}
	if err := c.OrderService.RefundPayment(ctx, providerRef, payload.IdempotencyKey); err != nil {
		if errors.Is(err, service.ErrNotFound) {
			return nil
		}
		// 最后一次重试失败时需人工介入
		retried, _ := asynq.GetRetryCount(ctx)
		maxRetry, _ := asynq.GetMaxRetry(ctx)
		if retried >= maxRetry {
			logger.Errorw("worker_payment_refund_manual_action_required",
				"provider_ref", providerRef,
				"user_id", payload.UserID,
				"amount", payload.Amount,
				"currency", payload.Currency,
				"reason", payload.Reason,
				"error", err,
			)
		} else {
			logger.Warnw("worker_payment_refund_failed", "provider_ref", providerRef, "retried", retried, "error", err)
		}
		return err
	}
	return nil
}

func (c *Consumer) handleOrderPlaced(_ context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_order_placed_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.OrderPlacedPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_order_placed_unmarshal_failed", "error", err)
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}
	if payload.OrderID == 0 {
		logger.Debugw("worker_order_placed_skip_invalid_payload", "order_id", payload.OrderID)
		return nil
	}
	order, err := c.OrderRepo.GetByID(payload.OrderID)
	if err != nil {
		logger.Warnw("worker_order_placed_fetch_order_failed", "order_id", payload.OrderID, "error", err)
		return err
	}
	if order == nil {
		logger.Debugw("worker_order_placed_skip_order_not_found", "order_id", payload.OrderID)
		return nil
	}
	logger.Infow("worker_order_placed",
		"order_id", order.ID,
		"order_no", order.OrderNo,
		"user_id", order.UserID,
		"total", order.TotalAmount.String(),
		"items", len(order.Items),
	)
	return nil
}
