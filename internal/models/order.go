package models

import "time"

// Order 订单表，创建后行项目与金额不可变更
type Order struct {
	ID             uint      `gorm:"primarykey" json:"id"`                                                  // 主键
	OrderNo        string    `gorm:"uniqueIndex;not null" json:"order_no"`                                  // 订单编号
	UserID         uint      `gorm:"index;not null;uniqueIndex:idx_order_user_idem" json:"user_id"`         // 用户ID
	Status         string    `gorm:"index;not null" json:"status"`                                          // 订单状态
	Currency       string    `gorm:"type:varchar(8);not null" json:"currency"`                              // 币种
	TotalAmount    Money     `gorm:"type:decimal(20,2);not null;default:0" json:"total"`                    // 订单总额（快照价格计算）
	PaymentRef     string    `gorm:"uniqueIndex;not null" json:"payment_ref"`                               // 支付确认号
	IdempotencyKey string    `gorm:"type:varchar(128);not null;uniqueIndex:idx_order_user_idem" json:"-"`   // 幂等键
	CreatedAt      time.Time `gorm:"index" json:"created_at"`                                               // 创建时间
	UpdatedAt      time.Time `json:"updated_at"`                                                            // 更新时间

	Items []OrderItem `gorm:"foreignKey:OrderID" json:"products"` // 订单项快照
}

// TableName 指定表名
func (Order) TableName() string {
	return "orders"
}
