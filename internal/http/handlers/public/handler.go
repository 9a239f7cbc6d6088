package public

import "github.com/storefront-next/internal/provider"

// Handler 前台接口处理器入口
// 说明：商品浏览、认证、购物车与下单。
type Handler struct {
	*provider.Container
}

// New 创建前台处理器
func New(c *provider.Container) *Handler {
	return &Handler{Container: c}
}
