package entity

import (
	"time"
)

// Maintenance 维修单
type Maintenance struct {
	ID          string     `json:"id" gorm:"primaryKey;size:32"`
	Code        string     `json:"code" gorm:"size:64;not null;uniqueIndex"`
	ItemID      string     `json:"item_id" gorm:"size:32;not null;index"`
	Title       string     `json:"title" gorm:"size:256;not null"`
	Description string     `json:"description" gorm:"type:text"`
	Status      string     `json:"status" gorm:"size:16;not null;default:open"`
	CreatedBy   string     `json:"created_by" gorm:"size:32;not null"`
	ClosedAt    *time.Time `json:"closed_at"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`

	// 关联
	Item  *Item             `json:"item,omitempty" gorm:"foreignKey:ItemID"`
	Steps []MaintenanceStep `json:"steps,omitempty" gorm:"foreignKey:MaintenanceID"`
}

func (Maintenance) TableName() string {
	return "maintenances"
}

// TypicalStep 标准维修步骤定义
type TypicalStep struct {
	ID          string    `json:"id" gorm:"primaryKey;size:32"`
	Name        string    `json:"name" gorm:"size:128;not null;uniqueIndex"`
	Description string    `json:"description" gorm:"type:text"`
	SortOrder   int       `json:"sort_order" gorm:"not null;default:0"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (TypicalStep) TableName() string {
	return "typical_steps"
}

// MaintenanceStep 维修步骤执行记录
// IsSuccessful 为空表示进行中；只有被指派人可以改结果，只有负责人可以改指派。
type MaintenanceStep struct {
	ID            string     `json:"id" gorm:"primaryKey;size:32"`
	MaintenanceID string     `json:"maintenance_id" gorm:"size:32;not null;index"`
	TypicalStepID string     `json:"typical_step_id" gorm:"size:32;not null"`
	AssigneeID    string     `json:"assignee_id" gorm:"size:32;not null;index"`
	IsSuccessful  *bool      `json:"is_successful"`
	Note          string     `json:"note" gorm:"type:text"`
	CompletedAt   *time.Time `json:"completed_at"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`

	// 关联
	Maintenance *Maintenance `json:"maintenance,omitempty" gorm:"foreignKey:MaintenanceID"`
	TypicalStep *TypicalStep `json:"typical_step,omitempty" gorm:"foreignKey:TypicalStepID"`
	Assignee    *User        `json:"assignee,omitempty" gorm:"foreignKey:AssigneeID"`
}

func (MaintenanceStep) TableName() string {
	return "maintenance_steps"
}

// ExternalMaintenanceRecord 外修交接记录
// 四个时间戳按固定顺序逐个揭示，非空前缀必须连续且时间不递减。
type ExternalMaintenanceRecord struct {
	ID                 string     `json:"id" gorm:"primaryKey;size:32"`
	MaintenanceID      string     `json:"maintenance_id" gorm:"size:32;not null;uniqueIndex"`
	ItemID             string     `json:"item_id" gorm:"size:32;not null;index"`
	ProviderID         *string    `json:"provider_id" gorm:"size:32"`
	SentToProvider     *time.Time `json:"sent_to_provider"`
	ReceivedByProvider *time.Time `json:"received_by_provider"`
	SentToCompany      *time.Time `json:"sent_to_company"`
	ReceivedByCompany  *time.Time `json:"received_by_company"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`

	// 关联
	Maintenance *Maintenance `json:"maintenance,omitempty" gorm:"foreignKey:MaintenanceID"`
	Item        *Item        `json:"item,omitempty" gorm:"foreignKey:ItemID"`
	Provider    *Provider    `json:"provider,omitempty" gorm:"foreignKey:ProviderID"`
}

func (ExternalMaintenanceRecord) TableName() string {
	return "external_maintenance_records"
}

// Stage 返回当前所处的交接阶段
func (r *ExternalMaintenanceRecord) Stage() string {
	switch {
	case r.ReceivedByCompany != nil:
		return HandoffStageReceivedByCompany
	case r.SentToCompany != nil:
		return HandoffStageSentToCompany
	case r.ReceivedByProvider != nil:
		return HandoffStageReceivedByProvider
	case r.SentToProvider != nil:
		return HandoffStageSentToProvider
	default:
		return HandoffStageCreated
	}
}

// MaintenanceAttachment 维修单附件（对象存储引用）
type MaintenanceAttachment struct {
	ID            string    `json:"id" gorm:"primaryKey;size:32"`
	MaintenanceID string    `json:"maintenance_id" gorm:"size:32;not null;index"`
	FileName      string    `json:"file_name" gorm:"size:256;not null"`
	ObjectKey     string    `json:"object_key" gorm:"size:512;not null"`
	ContentType   string    `json:"content_type" gorm:"size:128"`
	Size          int64     `json:"size" gorm:"not null;default:0"`
	UploadedBy    string    `json:"uploaded_by" gorm:"size:32;not null"`
	CreatedAt     time.Time `json:"created_at"`
}

func (MaintenanceAttachment) TableName() string {
	return "maintenance_attachments"
}

// 维修单状态
const (
	MaintenanceStatusOpen     = "open"
	MaintenanceStatusExternal = "external"
	MaintenanceStatusClosed   = "closed"
)

// 外修交接阶段
const (
	HandoffStageCreated            = "created"
	HandoffStageSentToProvider     = "sent_to_provider"
	HandoffStageReceivedByProvider = "received_by_provider"
	HandoffStageSentToCompany      = "sent_to_company"
	HandoffStageReceivedByCompany  = "received_by_company"
)
