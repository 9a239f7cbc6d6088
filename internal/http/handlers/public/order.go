package public

import (
	"strings"

	handlershared "github.com/storefront-next/internal/http/handlers/shared"
	"github.com/storefront-next/internal/http/response"
	"github.com/storefront-next/internal/service"

	"github.com/gin-gonic/gin"
)

// IdempotencyKeyHeader 客户端幂等键请求头
const IdempotencyKeyHeader = "Idempotency-Key"

// CreateOrderRequest 下单请求，金额由服务端根据购物车计算
type CreateOrderRequest struct {
	PaymentMethodID string `json:"paymentMethodId"`
}

// CreateOrder 结算购物车并扣款
func (h *Handler) CreateOrder(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	var req CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "invalid request body", nil)
		return
	}
	if strings.TrimSpace(req.PaymentMethodID) == "" {
		respondError(c, response.CodeBadRequest, "payment method ID is required", nil)
		return
	}

	order, err := h.OrderService.PlaceOrder(c.Request.Context(), service.PlaceOrderInput{
		UserID:          uid,
		PaymentMethodID: req.PaymentMethodID,
		IdempotencyKey:  c.GetHeader(IdempotencyKeyHeader),
	})
	if err != nil {
		handlershared.RequestLog(c).Infow("order_create_rejected", "user_id", uid, "error", err)
		respondOrderCreateError(c, err)
		return
	}
	response.Created(c, order)
}

// ListOrders 当前用户订单列表（新到旧）
func (h *Handler) ListOrders(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	page, pageSize := handlershared.ParsePagination(c)

	orders, total, err := h.OrderService.ListOrders(c.Request.Context(), uid, page, pageSize)
	if err != nil {
		respondWithMappedError(c, err, userCommonErrorRules)
		return
	}
	response.SuccessWithPage(c, orders, response.BuildPagination(page, pageSize, total))
}
