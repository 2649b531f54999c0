package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bitfantasy/nimo-eam/internal/eam/entity"
	"gorm.io/gorm"
)

// AssignmentRepository 领用记录仓库
type AssignmentRepository struct {
	db *gorm.DB
}

// NewAssignmentRepository 创建领用记录仓库
func NewAssignmentRepository(db *gorm.DB) *AssignmentRepository {
	return &AssignmentRepository{db: db}
}

// FindOpenByItemTx 事务内查找物品当前未闭合的领用记录
func (r *AssignmentRepository) FindOpenByItemTx(tx *gorm.DB, itemID string) (*entity.Assignment, error) {
	var a entity.Assignment
	err := tx.Where("item_id = ? AND end_at IS NULL", itemID).First(&a).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil // 没有未闭合记录不算错误
		}
		return nil, err
	}
	return &a, nil
}

// CloseTx 事务内闭合领用记录
func (r *AssignmentRepository) CloseTx(tx *gorm.DB, id string, endAt time.Time) error {
	res := tx.Model(&entity.Assignment{}).
		Where("id = ? AND end_at IS NULL", id).
		Update("end_at", endAt)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrConflict
	}
	return nil
}

// CreateTx 事务内创建领用记录
func (r *AssignmentRepository) CreateTx(tx *gorm.DB, a *entity.Assignment) error {
	return tx.Create(a).Error
}

// ListByItem 查询物品的领用历史
func (r *AssignmentRepository) ListByItem(ctx context.Context, itemID string) ([]entity.Assignment, error) {
	var list []entity.Assignment
	err := r.db.WithContext(ctx).
		Preload("User").
		Where("item_id = ?", itemID).
		Order("start_at DESC").
		Find(&list).Error
	return list, err
}

// ListByUser 查询用户名下未归还的物品
func (r *AssignmentRepository) ListByUser(ctx context.Context, userID string) ([]entity.Assignment, error) {
	var list []entity.Assignment
	err := r.db.WithContext(ctx).
		Preload("Item").
		Where("user_id = ? AND end_at IS NULL", userID).
		Order("start_at DESC").
		Find(&list).Error
	return list, err
}
