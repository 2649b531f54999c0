package entity

import (
	"time"
)

// ItemRequest 备件申请（"需要型号M的任意一台"）
type ItemRequest struct {
	ID             string     `json:"id" gorm:"primaryKey;size:32"`
	Type           string     `json:"type" gorm:"size:16;not null"`
	ModelID        string     `json:"model_id" gorm:"size:32;not null;index"`
	StepID         string     `json:"step_id" gorm:"size:32;not null;index"`
	Status         string     `json:"status" gorm:"size:16;not null;default:pending"`
	ResolvedUnitID *string    `json:"resolved_unit_id" gorm:"size:32;index"`
	ResolutionNote string     `json:"resolution_note" gorm:"type:text"`
	RequestedBy    string     `json:"requested_by" gorm:"size:32;not null"`
	ResolvedBy     *string    `json:"resolved_by" gorm:"size:32"`
	ResolvedAt     *time.Time `json:"resolved_at"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`

	// 关联
	Model        *ItemModel       `json:"model,omitempty" gorm:"foreignKey:ModelID"`
	Step         *MaintenanceStep `json:"step,omitempty" gorm:"foreignKey:StepID"`
	ResolvedUnit *Item            `json:"resolved_unit,omitempty" gorm:"foreignKey:ResolvedUnitID"`
}

func (ItemRequest) TableName() string {
	return "item_requests"
}

// 申请类型
const (
	RequestTypeStockItem  = "stock_item"
	RequestTypeConsumable = "consumable"
)

// 申请状态（pending 为唯一非终态，只能变迁一次）
const (
	RequestStatusPending   = "pending"
	RequestStatusFulfilled = "fulfilled"
	RequestStatusRejected  = "rejected"
)
