package models

import (
	"time"

	"gorm.io/gorm"
)

// User 用户表
type User struct {
	ID           uint           `gorm:"primarykey" json:"id"`                                  // 主键
	Name         string         `gorm:"type:varchar(100);not null" json:"name"`                // 昵称
	Email        string         `gorm:"uniqueIndex;not null" json:"email"`                     // 邮箱（小写存储）
	PasswordHash string         `gorm:"not null" json:"-"`                                     // 密码哈希（不返回给前端）
	Role         string         `gorm:"type:varchar(20);not null;default:'user'" json:"role"`  // 角色 user/admin
	Status       string         `gorm:"type:varchar(20);not null;default:'active'" json:"-"`   // 账号状态
	TokenVersion uint64         `gorm:"not null;default:0" json:"-"`                           // Token 版本（用于全量失效）
	CartVersion  uint64         `gorm:"not null;default:0" json:"-"`                           // 购物车版本（乐观并发控制）
	LastLoginAt  *time.Time     `json:"last_login_at,omitempty"`                               // 最后登录时间
	CreatedAt    time.Time      `gorm:"index" json:"created_at"`                               // 创建时间
	UpdatedAt    time.Time      `json:"updated_at"`                                            // 更新时间
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`                                        // 软删除时间
}

// TableName 指定表名
func (User) TableName() string {
	return "users"
}
