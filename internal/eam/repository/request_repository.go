package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bitfantasy/nimo-eam/internal/eam/entity"
	"gorm.io/gorm"
)

// RequestRepository 备件申请仓库
type RequestRepository struct {
	db *gorm.DB
}

// NewRequestRepository 创建备件申请仓库
func NewRequestRepository(db *gorm.DB) *RequestRepository {
	return &RequestRepository{db: db}
}

// Create 创建申请
func (r *RequestRepository) Create(ctx context.Context, req *entity.ItemRequest) error {
	return r.db.WithContext(ctx).Create(req).Error
}

// FindByID 根据ID查找申请
func (r *RequestRepository) FindByID(ctx context.Context, id string) (*entity.ItemRequest, error) {
	var req entity.ItemRequest
	err := r.db.WithContext(ctx).
		Preload("Model").
		Preload("ResolvedUnit").
		First(&req, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &req, nil
}

// FindByIDTx 事务内查找申请
func (r *RequestRepository) FindByIDTx(tx *gorm.DB, id string) (*entity.ItemRequest, error) {
	var req entity.ItemRequest
	err := tx.First(&req, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &req, nil
}

// List 分页查询申请
func (r *RequestRepository) List(ctx context.Context, page, size int, status, reqType string) ([]entity.ItemRequest, int64, error) {
	q := r.db.WithContext(ctx).Model(&entity.ItemRequest{})
	if status != "" {
		q = q.Where("status = ?", status)
	}
	if reqType != "" {
		q = q.Where("type = ?", reqType)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var list []entity.ItemRequest
	err := q.Preload("Model").
		Order("created_at DESC").
		Offset((page - 1) * size).
		Limit(size).
		Find(&list).Error
	return list, total, err
}

// MarkFulfilledTx 事务内把申请标记为已满足（pending 前置，CAS）
func (r *RequestRepository) MarkFulfilledTx(tx *gorm.DB, id, unitID, resolverID string) error {
	now := time.Now()
	res := tx.Model(&entity.ItemRequest{}).
		Where("id = ? AND status = ?", id, entity.RequestStatusPending).
		Updates(map[string]interface{}{
			"status":           entity.RequestStatusFulfilled,
			"resolved_unit_id": unitID,
			"resolved_by":      resolverID,
			"resolved_at":      now,
			"updated_at":       now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrConflict
	}
	return nil
}

// MarkRejectedTx 事务内把申请标记为已拒绝（pending 前置，CAS）
func (r *RequestRepository) MarkRejectedTx(tx *gorm.DB, id, note, resolverID string) error {
	now := time.Now()
	res := tx.Model(&entity.ItemRequest{}).
		Where("id = ? AND status = ?", id, entity.RequestStatusPending).
		Updates(map[string]interface{}{
			"status":          entity.RequestStatusRejected,
			"resolution_note": note,
			"resolved_by":     resolverID,
			"resolved_at":     now,
			"updated_at":      now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrConflict
	}
	return nil
}

// CountClaimsTx 事务内统计某物品被多少申请解析占用
func (r *RequestRepository) CountClaimsTx(tx *gorm.DB, unitID string) (int64, error) {
	var count int64
	err := tx.Model(&entity.ItemRequest{}).
		Where("resolved_unit_id = ?", unitID).
		Count(&count).Error
	return count, err
}
