package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// ProvisionOrder 采购入库单（一次批量建账的载体）
type ProvisionOrder struct {
	ID          string          `json:"id" gorm:"primaryKey;size:32"`
	Code        string          `json:"code" gorm:"size:64;not null;uniqueIndex"`
	Supplier    string          `json:"supplier" gorm:"size:128"`
	InvoiceNo   string          `json:"invoice_no" gorm:"size:64"`
	TotalAmount decimal.Decimal `json:"total_amount" gorm:"type:numeric(15,4)"`
	Note        string          `json:"note" gorm:"type:text"`
	CreatedBy   string          `json:"created_by" gorm:"size:32;not null"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`

	// 关联
	Items []Item `json:"items,omitempty" gorm:"foreignKey:OrderID"`
}

func (ProvisionOrder) TableName() string {
	return "provision_orders"
}
