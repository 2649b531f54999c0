package entity

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// JSONB PostgreSQL jsonb字段
type JSONB map[string]interface{}

func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}
	return json.Unmarshal(bytes, j)
}

// Item 设备台账条目（资产/库存件/耗材）
type Item struct {
	ID              string          `json:"id" gorm:"primaryKey;size:32"`
	Code            string          `json:"code" gorm:"size:64;not null;uniqueIndex"`
	Kind            string          `json:"kind" gorm:"size:16;not null"`
	ModelID         string          `json:"model_id" gorm:"size:32;not null;index"`
	Status          string          `json:"status" gorm:"size:32;not null;default:in_stock"`
	CurrentRoomID   *string         `json:"current_room_id" gorm:"size:32;index"`
	CurrentHolderID *string         `json:"current_holder_id" gorm:"size:32;index"`
	OrderID         *string         `json:"order_id" gorm:"size:32;index"`
	PurchasePrice   decimal.Decimal `json:"purchase_price" gorm:"type:numeric(15,4)"`
	Specs           JSONB           `json:"specs" gorm:"type:jsonb"`
	Version         int64           `json:"version" gorm:"not null;default:0"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`

	// 关联
	Model       *ItemModel `json:"model,omitempty" gorm:"foreignKey:ModelID"`
	CurrentRoom *Room      `json:"current_room,omitempty" gorm:"foreignKey:CurrentRoomID"`
	Holder      *User      `json:"holder,omitempty" gorm:"foreignKey:CurrentHolderID"`
}

func (Item) TableName() string {
	return "items"
}

// ItemTransfer 移转历史记录（只追加，不可修改）
type ItemTransfer struct {
	ID         string    `json:"id" gorm:"primaryKey;size:32"`
	ItemID     string    `json:"item_id" gorm:"size:32;not null;index"`
	FromRoomID *string   `json:"from_room_id" gorm:"size:32"`
	ToRoomID   string    `json:"to_room_id" gorm:"size:32;not null"`
	ActorID    string    `json:"actor_id" gorm:"size:32;not null"`
	Note       string    `json:"note" gorm:"type:text"`
	CreatedAt  time.Time `json:"created_at"`

	// 关联
	Item     *Item `json:"item,omitempty" gorm:"foreignKey:ItemID"`
	FromRoom *Room `json:"from_room,omitempty" gorm:"foreignKey:FromRoomID"`
	ToRoom   *Room `json:"to_room,omitempty" gorm:"foreignKey:ToRoomID"`
	Actor    *User `json:"actor,omitempty" gorm:"foreignKey:ActorID"`
}

func (ItemTransfer) TableName() string {
	return "item_transfers"
}

// ItemInclusion 随附件关联（资产随附的库存件/耗材）
type ItemInclusion struct {
	ID             string    `json:"id" gorm:"primaryKey;size:32"`
	ItemID         string    `json:"item_id" gorm:"size:32;not null;index"`
	IncludedItemID string    `json:"included_item_id" gorm:"size:32;not null;index"`
	CreatedAt      time.Time `json:"created_at"`

	// 关联
	Item         *Item `json:"item,omitempty" gorm:"foreignKey:ItemID"`
	IncludedItem *Item `json:"included_item,omitempty" gorm:"foreignKey:IncludedItemID"`
}

func (ItemInclusion) TableName() string {
	return "item_inclusions"
}

// 物品种类
const (
	ItemKindAsset      = "asset"
	ItemKindStockItem  = "stock_item"
	ItemKindConsumable = "consumable"
)

// 物品状态
const (
	ItemStatusProvisioned   = "provisioned_unassigned"
	ItemStatusInStock       = "in_stock"
	ItemStatusAssigned      = "assigned"
	ItemStatusInMaintenance = "in_maintenance"
	ItemStatusRetired       = "retired"
	ItemStatusDestroyed     = "destroyed"
)

// AssignableStatuses 可指派给个人的状态
var AssignableStatuses = []string{ItemStatusInStock, ItemStatusProvisioned, ItemStatusAssigned}
