package entity

import (
	"time"
)

// User 用户实体
type User struct {
	ID           string     `json:"id" gorm:"primaryKey;size:32"`
	Username     string     `json:"username" gorm:"size:64;not null;uniqueIndex"`
	Name         string     `json:"name" gorm:"size:64;not null"`
	Email        string     `json:"email" gorm:"size:128;uniqueIndex"`
	Mobile       string     `json:"mobile" gorm:"size:20"`
	PasswordHash string     `json:"-" gorm:"size:128;not null"`
	Status       string     `json:"status" gorm:"size:16;not null;default:active"`
	LastLoginAt  *time.Time `json:"last_login_at"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	DeletedAt    *time.Time `json:"deleted_at" gorm:"index"`

	// 关联
	Roles []Role `json:"roles,omitempty" gorm:"many2many:user_roles;"`

	// 非数据库字段
	RoleCodes []string `json:"role_codes,omitempty" gorm:"-"`
}

func (User) TableName() string {
	return "users"
}

// Role 角色实体
type Role struct {
	ID          string    `json:"id" gorm:"primaryKey;size:32"`
	Code        string    `json:"code" gorm:"size:64;not null;uniqueIndex"`
	Name        string    `json:"name" gorm:"size:64;not null"`
	Description string    `json:"description" gorm:"type:text"`
	IsSystem    bool      `json:"is_system" gorm:"not null;default:false"`
	Status      string    `json:"status" gorm:"size:16;not null;default:active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (Role) TableName() string {
	return "roles"
}

// UserRole 用户角色关联
type UserRole struct {
	UserID string `json:"user_id" gorm:"primaryKey;size:32"`
	RoleID string `json:"role_id" gorm:"primaryKey;size:32"`
}

func (UserRole) TableName() string {
	return "user_roles"
}

// 角色编码
const (
	RoleAdmin             = "admin"
	RoleAssetManager      = "asset_manager"
	RoleStockManager      = "stock_manager"
	RoleConsumableManager = "consumable_manager"
	RoleChief             = "chief"
	RoleTechnician        = "technician"
)

// 用户状态
const (
	UserStatusActive   = "active"
	UserStatusDisabled = "disabled"
)
