package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bitfantasy/nimo-eam/internal/eam/entity"
	"gorm.io/gorm"
)

// MaintenanceRepository 维修仓库
type MaintenanceRepository struct {
	db *gorm.DB
}

// NewMaintenanceRepository 创建维修仓库
func NewMaintenanceRepository(db *gorm.DB) *MaintenanceRepository {
	return &MaintenanceRepository{db: db}
}

// GenerateCode 生成维修单编号
func (r *MaintenanceRepository) GenerateCode(ctx context.Context) (string, error) {
	var seq int
	err := r.db.WithContext(ctx).Raw("SELECT nextval('maintenance_code_seq')").Scan(&seq).Error
	if err != nil {
		return "", err
	}
	year := time.Now().Year()
	return fmt.Sprintf("MNT-%d-%04d", year, seq), nil
}

// Create 创建维修单
func (r *MaintenanceRepository) Create(ctx context.Context, m *entity.Maintenance) error {
	return r.db.WithContext(ctx).Create(m).Error
}

// FindByID 根据ID查找维修单
func (r *MaintenanceRepository) FindByID(ctx context.Context, id string) (*entity.Maintenance, error) {
	var m entity.Maintenance
	err := r.db.WithContext(ctx).
		Preload("Item").
		Preload("Steps").
		Preload("Steps.TypicalStep").
		Preload("Steps.Assignee").
		First(&m, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &m, nil
}

// Update 更新维修单
func (r *MaintenanceRepository) Update(ctx context.Context, m *entity.Maintenance) error {
	return r.db.WithContext(ctx).Save(m).Error
}

// List 分页查询维修单
func (r *MaintenanceRepository) List(ctx context.Context, page, size int, status string) ([]entity.Maintenance, int64, error) {
	q := r.db.WithContext(ctx).Model(&entity.Maintenance{})
	if status != "" {
		q = q.Where("status = ?", status)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var list []entity.Maintenance
	err := q.Preload("Item").
		Order("created_at DESC").
		Offset((page - 1) * size).
		Limit(size).
		Find(&list).Error
	return list, total, err
}

// ============================================================
// 维修步骤
// ============================================================

// CreateStep 创建维修步骤
func (r *MaintenanceRepository) CreateStep(ctx context.Context, step *entity.MaintenanceStep) error {
	return r.db.WithContext(ctx).Create(step).Error
}

// FindStepByID 根据ID查找维修步骤
func (r *MaintenanceRepository) FindStepByID(ctx context.Context, id string) (*entity.MaintenanceStep, error) {
	var step entity.MaintenanceStep
	err := r.db.WithContext(ctx).
		Preload("TypicalStep").
		First(&step, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &step, nil
}

// UpdateStep 更新维修步骤
func (r *MaintenanceRepository) UpdateStep(ctx context.Context, step *entity.MaintenanceStep) error {
	return r.db.WithContext(ctx).Save(step).Error
}

// ListSteps 查询维修单的步骤列表
func (r *MaintenanceRepository) ListSteps(ctx context.Context, maintenanceID string) ([]entity.MaintenanceStep, error) {
	var steps []entity.MaintenanceStep
	err := r.db.WithContext(ctx).
		Preload("TypicalStep").
		Preload("Assignee").
		Where("maintenance_id = ?", maintenanceID).
		Order("created_at ASC").
		Find(&steps).Error
	return steps, err
}

// ListTypicalSteps 查询标准步骤定义
func (r *MaintenanceRepository) ListTypicalSteps(ctx context.Context) ([]entity.TypicalStep, error) {
	var steps []entity.TypicalStep
	err := r.db.WithContext(ctx).Order("sort_order ASC").Find(&steps).Error
	return steps, err
}

// CreateTypicalStep 创建标准步骤定义
func (r *MaintenanceRepository) CreateTypicalStep(ctx context.Context, step *entity.TypicalStep) error {
	return r.db.WithContext(ctx).Create(step).Error
}

// ============================================================
// 外修交接记录
// ============================================================

// CreateRecord 创建外修交接记录
func (r *MaintenanceRepository) CreateRecord(ctx context.Context, rec *entity.ExternalMaintenanceRecord) error {
	return r.db.WithContext(ctx).Create(rec).Error
}

// FindRecordByID 根据ID查找外修交接记录
func (r *MaintenanceRepository) FindRecordByID(ctx context.Context, id string) (*entity.ExternalMaintenanceRecord, error) {
	var rec entity.ExternalMaintenanceRecord
	err := r.db.WithContext(ctx).
		Preload("Item").
		Preload("Provider").
		First(&rec, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &rec, nil
}

// FindRecordByIDTx 事务内查找外修交接记录
func (r *MaintenanceRepository) FindRecordByIDTx(tx *gorm.DB, id string) (*entity.ExternalMaintenanceRecord, error) {
	var rec entity.ExternalMaintenanceRecord
	err := tx.First(&rec, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &rec, nil
}

// AdvanceStageTx 事务内推进交接阶段：目标时间戳列必须仍为空，
// 且前序列（如有）必须已填。未命中任何行时返回 ErrConflict。
func (r *MaintenanceRepository) AdvanceStageTx(tx *gorm.DB, recordID, column string, prevColumn string, at time.Time, extra map[string]interface{}) error {
	updates := map[string]interface{}{
		column:       at,
		"updated_at": at,
	}
	for k, v := range extra {
		updates[k] = v
	}

	q := tx.Model(&entity.ExternalMaintenanceRecord{}).
		Where("id = ?", recordID).
		Where(column + " IS NULL")
	if prevColumn != "" {
		q = q.Where(prevColumn + " IS NOT NULL")
	}

	res := q.Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		var count int64
		if err := tx.Model(&entity.ExternalMaintenanceRecord{}).Where("id = ?", recordID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return ErrNotFound
		}
		return ErrConflict
	}
	return nil
}

// ============================================================
// 附件
// ============================================================

// CreateAttachment 创建附件记录
func (r *MaintenanceRepository) CreateAttachment(ctx context.Context, att *entity.MaintenanceAttachment) error {
	return r.db.WithContext(ctx).Create(att).Error
}

// FindAttachmentByID 根据ID查找附件记录
func (r *MaintenanceRepository) FindAttachmentByID(ctx context.Context, id string) (*entity.MaintenanceAttachment, error) {
	var att entity.MaintenanceAttachment
	err := r.db.WithContext(ctx).First(&att, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &att, nil
}

// ListAttachments 查询维修单的附件列表
func (r *MaintenanceRepository) ListAttachments(ctx context.Context, maintenanceID string) ([]entity.MaintenanceAttachment, error) {
	var list []entity.MaintenanceAttachment
	err := r.db.WithContext(ctx).
		Where("maintenance_id = ?", maintenanceID).
		Order("created_at DESC").
		Find(&list).Error
	return list, err
}
