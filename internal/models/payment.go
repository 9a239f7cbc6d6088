package models

import "time"

// Payment 支付授权记录
type Payment struct {
	ID             uint       `gorm:"primarykey" json:"id"`                           // 主键
	OrderID        uint       `gorm:"index;not null" json:"order_id"`                 // 订单ID
	Provider       string     `gorm:"type:varchar(32);not null" json:"provider"`      // 支付提供方
	ProviderRef    string     `gorm:"index;not null" json:"provider_ref"`             // 第三方流水号
	Amount         Money      `gorm:"type:decimal(20,2);not null" json:"amount"`      // 金额
	Currency       string     `gorm:"type:varchar(8);not null" json:"currency"`       // 币种
	Status         string     `gorm:"index;not null" json:"status"`                   // 支付状态
	IdempotencyKey string     `gorm:"type:varchar(128);index" json:"-"`               // 网关幂等键
	PaidAt         *time.Time `json:"paid_at"`                                        // 支付时间
	CreatedAt      time.Time  `gorm:"index" json:"created_at"`                        // 创建时间
	UpdatedAt      time.Time  `json:"updated_at"`                                     // 更新时间
}

// TableName 指定表名
func (Payment) TableName() string {
	return "payments"
}
