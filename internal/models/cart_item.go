package models

import "time"

// CartItem 购物车项（每个用户每个商品至多一行）
type CartItem struct {
	ID        uint      `gorm:"primarykey" json:"id"`                                      // 主键
	UserID    uint      `gorm:"not null;uniqueIndex:idx_cart_user_product" json:"user_id"` // 用户ID
	ProductID uint      `gorm:"not null;uniqueIndex:idx_cart_user_product;index" json:"product_id"`
	Quantity  int       `gorm:"not null" json:"quantity"`       // 数量
	CreatedAt time.Time `gorm:"index" json:"created_at"`        // 创建时间
	UpdatedAt time.Time `gorm:"index" json:"updated_at"`        // 更新时间

	Product *Product `gorm:"foreignKey:ProductID" json:"product,omitempty"` // 关联商品（已删除时为空）
}

// TableName 指定表名
func (CartItem) TableName() string {
	return "cart_items"
}
