package models

import (
	"time"

	"gorm.io/gorm"
)

// Product 商品表
type Product struct {
	ID          uint           `gorm:"primarykey" json:"id"`                                  // 主键
	Name        string         `gorm:"type:varchar(200);not null;index" json:"name"`          // 名称
	Description string         `gorm:"type:text;not null" json:"description"`                 // 描述
	Price       Money          `gorm:"type:decimal(20,2);not null;default:0" json:"price"`    // 单价
	Category    string         `gorm:"type:varchar(64);not null;index" json:"category"`       // 分类
	Stock       int            `gorm:"not null;default:0" json:"stock"`                       // 库存
	Image       string         `gorm:"type:varchar(500);default:''" json:"image,omitempty"`   // 图片地址
	CreatedAt   time.Time      `gorm:"index" json:"created_at"`                               // 创建时间
	UpdatedAt   time.Time      `json:"updated_at"`                                            // 更新时间
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`                                        // 软删除时间
}

// TableName 指定表名
func (Product) TableName() string {
	return "products"
}
