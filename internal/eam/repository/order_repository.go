package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bitfantasy/nimo-eam/internal/eam/entity"
	"gorm.io/gorm"
)

// OrderRepository 入库单仓库
type OrderRepository struct {
	db *gorm.DB
}

// NewOrderRepository 创建入库单仓库
func NewOrderRepository(db *gorm.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// GenerateCodeTx 事务内生成入库单编号
func (r *OrderRepository) GenerateCodeTx(tx *gorm.DB) (string, error) {
	var seq int
	err := tx.Raw("SELECT nextval('provision_order_code_seq')").Scan(&seq).Error
	if err != nil {
		return "", err
	}
	year := time.Now().Year()
	return fmt.Sprintf("ORD-%d-%04d", year, seq), nil
}

// CreateTx 事务内创建入库单
func (r *OrderRepository) CreateTx(tx *gorm.DB, order *entity.ProvisionOrder) error {
	return tx.Create(order).Error
}

// FindByID 根据ID查找入库单
func (r *OrderRepository) FindByID(ctx context.Context, id string) (*entity.ProvisionOrder, error) {
	var order entity.ProvisionOrder
	err := r.db.WithContext(ctx).
		Preload("Items").
		Preload("Items.Model").
		First(&order, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &order, nil
}

// List 分页查询入库单
func (r *OrderRepository) List(ctx context.Context, page, size int) ([]entity.ProvisionOrder, int64, error) {
	q := r.db.WithContext(ctx).Model(&entity.ProvisionOrder{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var list []entity.ProvisionOrder
	err := q.Order("created_at DESC").
		Offset((page - 1) * size).
		Limit(size).
		Find(&list).Error
	return list, total, err
}

// ListIncludedItems 查询入库单下所有物品的随附件（按种类分组用）
func (r *OrderRepository) ListIncludedItems(ctx context.Context, orderID string) ([]entity.ItemInclusion, error) {
	var inclusions []entity.ItemInclusion
	err := r.db.WithContext(ctx).
		Preload("Item").
		Preload("IncludedItem").
		Preload("IncludedItem.Model").
		Joins("JOIN items ON items.id = item_inclusions.item_id").
		Where("items.order_id = ?", orderID).
		Find(&inclusions).Error
	return inclusions, err
}
