package entity

import (
	"time"
)

// RoomType 房间类型
type RoomType struct {
	ID        string    `json:"id" gorm:"primaryKey;size:32"`
	Name      string    `json:"name" gorm:"size:64;not null;uniqueIndex"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (RoomType) TableName() string {
	return "room_types"
}

// Room 房间
type Room struct {
	ID        string    `json:"id" gorm:"primaryKey;size:32"`
	Code      string    `json:"code" gorm:"size:32;not null;uniqueIndex"`
	Name      string    `json:"name" gorm:"size:128;not null"`
	TypeID    string    `json:"type_id" gorm:"size:32;index"`
	Building  string    `json:"building" gorm:"size:64"`
	Floor     int       `json:"floor" gorm:"not null;default:0"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// 关联
	Type *RoomType `json:"type,omitempty" gorm:"foreignKey:TypeID"`
}

func (Room) TableName() string {
	return "rooms"
}

// Brand 品牌
type Brand struct {
	ID        string    `json:"id" gorm:"primaryKey;size:32"`
	Name      string    `json:"name" gorm:"size:64;not null;uniqueIndex"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Brand) TableName() string {
	return "brands"
}

// ItemModel 物品型号
type ItemModel struct {
	ID          string    `json:"id" gorm:"primaryKey;size:32"`
	Code        string    `json:"code" gorm:"size:64;not null;uniqueIndex"`
	Name        string    `json:"name" gorm:"size:128;not null"`
	BrandID     string    `json:"brand_id" gorm:"size:32;index"`
	Kind        string    `json:"kind" gorm:"size:16;not null"`
	Description string    `json:"description" gorm:"type:text"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	// 关联
	Brand *Brand `json:"brand,omitempty" gorm:"foreignKey:BrandID"`
}

func (ItemModel) TableName() string {
	return "item_models"
}

// Provider 外部维修服务商
type Provider struct {
	ID          string    `json:"id" gorm:"primaryKey;size:32"`
	Name        string    `json:"name" gorm:"size:128;not null;uniqueIndex"`
	ContactName string    `json:"contact_name" gorm:"size:64"`
	Phone       string    `json:"phone" gorm:"size:32"`
	Email       string    `json:"email" gorm:"size:128"`
	Address     string    `json:"address" gorm:"size:256"`
	RoomID      *string   `json:"room_id" gorm:"size:32"`
	Status      string    `json:"status" gorm:"size:16;not null;default:active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	// 关联
	Room *Room `json:"room,omitempty" gorm:"foreignKey:RoomID"`
}

func (Provider) TableName() string {
	return "providers"
}
