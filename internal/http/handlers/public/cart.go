package public

import (
	"strconv"
	"strings"

	handlershared "github.com/storefront-next/internal/http/handlers/shared"
	"github.com/storefront-next/internal/http/response"
	"github.com/storefront-next/internal/service"

	"github.com/gin-gonic/gin"
)

// CartItemRequest 购物车项请求，version 为可选的乐观并发版本号
type CartItemRequest struct {
	ProductID uint    `json:"productId" binding:"required"`
	Quantity  int     `json:"quantity" binding:"required"`
	Version   *uint64 `json:"version"`
}

// GetCart 获取购物车
func (h *Handler) GetCart(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}

	view, err := h.CartService.GetCart(c.Request.Context(), uid)
	if err != nil {
		respondCartError(c, err)
		return
	}
	response.Success(c, view)
}

// UpsertCartItem 添加/更新购物车项（数量覆盖写）
func (h *Handler) UpsertCartItem(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	var req CartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "productId and quantity are required", nil)
		return
	}

	view, err := h.CartService.UpsertItem(c.Request.Context(), service.UpsertCartItemInput{
		UserID:          uid,
		ProductID:       req.ProductID,
		Quantity:        req.Quantity,
		ExpectedVersion: req.Version,
	})
	if err != nil {
		respondCartError(c, err)
		return
	}
	response.Success(c, view)
}

// DeleteCartItem 删除购物车项，不存在时同样返回当前购物车
func (h *Handler) DeleteCartItem(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	productID, ok := handlershared.ParseUintParam(c, "productId")
	if !ok {
		respondError(c, response.CodeBadRequest, "invalid product id", nil)
		return
	}
	var expected *uint64
	if raw := strings.TrimSpace(c.Query("version")); raw != "" {
		version, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			respondError(c, response.CodeBadRequest, "invalid cart version", nil)
			return
		}
		expected = &version
	}

	view, err := h.CartService.RemoveItem(c.Request.Context(), uid, productID, expected)
	if err != nil {
		respondCartError(c, err)
		return
	}
	response.Success(c, view)
}
