package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bitfantasy/nimo-eam/internal/eam/entity"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ItemRepository 物品仓库（台账唯一写入口）
type ItemRepository struct {
	db *gorm.DB
}

// NewItemRepository 创建物品仓库
func NewItemRepository(db *gorm.DB) *ItemRepository {
	return &ItemRepository{db: db}
}

// DB 返回底层连接（供服务层开启事务）
func (r *ItemRepository) DB() *gorm.DB {
	return r.db
}

// FindByID 根据ID查找物品
func (r *ItemRepository) FindByID(ctx context.Context, id string) (*entity.Item, error) {
	var item entity.Item
	err := r.db.WithContext(ctx).
		Preload("Model").
		First(&item, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &item, nil
}

// FindByIDForUpdateTx 事务内加行锁查找物品
// 同一物品上的并发事务在这里串行化。
func (r *ItemRepository) FindByIDForUpdateTx(tx *gorm.DB, id string) (*entity.Item, error) {
	var item entity.Item
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&item, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &item, nil
}

// FindByIDTx 事务内查找物品
func (r *ItemRepository) FindByIDTx(tx *gorm.DB, id string) (*entity.Item, error) {
	var item entity.Item
	err := tx.First(&item, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &item, nil
}

// FindByCode 根据台账编号查找物品
func (r *ItemRepository) FindByCode(ctx context.Context, code string) (*entity.Item, error) {
	var item entity.Item
	err := r.db.WithContext(ctx).First(&item, "code = ?", code).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &item, nil
}

// ItemListParams 物品列表查询参数
type ItemListParams struct {
	Kind    string
	Status  string
	ModelID string
	RoomID  string
	Page    int
	Size    int
}

// List 分页查询物品
func (r *ItemRepository) List(ctx context.Context, params ItemListParams) ([]entity.Item, int64, error) {
	q := r.db.WithContext(ctx).Model(&entity.Item{})
	if params.Kind != "" {
		q = q.Where("kind = ?", params.Kind)
	}
	if params.Status != "" {
		q = q.Where("status = ?", params.Status)
	}
	if params.ModelID != "" {
		q = q.Where("model_id = ?", params.ModelID)
	}
	if params.RoomID != "" {
		q = q.Where("current_room_id = ?", params.RoomID)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var items []entity.Item
	err := q.Preload("Model").
		Order("created_at DESC").
		Offset((params.Page - 1) * params.Size).
		Limit(params.Size).
		Find(&items).Error
	return items, total, err
}

// CreateTx 事务内创建物品
func (r *ItemRepository) CreateTx(tx *gorm.DB, item *entity.Item) error {
	return tx.Create(item).Error
}

// TransferTx 事务内移转物品：对 current_room_id 做 CAS 更新并追加历史行。
// expectedFromRoomID 为 nil 表示首次上架（物品尚无房间）。
// 前置条件失效时返回 ErrConflict，不做任何修改。
func (r *ItemRepository) TransferTx(tx *gorm.DB, itemID string, expectedFromRoomID *string, toRoomID, actorID, note string) error {
	now := time.Now()

	q := tx.Model(&entity.Item{}).Where("id = ?", itemID)
	if expectedFromRoomID == nil {
		q = q.Where("current_room_id IS NULL")
	} else {
		q = q.Where("current_room_id = ?", *expectedFromRoomID)
	}

	res := q.Updates(map[string]interface{}{
		"current_room_id": toRoomID,
		"version":         gorm.Expr("version + 1"),
		"updated_at":      now,
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		// 区分"物品不存在"和"房间前置条件失效"
		var count int64
		if err := tx.Model(&entity.Item{}).Where("id = ?", itemID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return ErrNotFound
		}
		return ErrConflict
	}

	transfer := &entity.ItemTransfer{
		ID:         uuid.New().String()[:32],
		ItemID:     itemID,
		FromRoomID: expectedFromRoomID,
		ToRoomID:   toRoomID,
		ActorID:    actorID,
		Note:       note,
		CreatedAt:  now,
	}
	return tx.Create(transfer).Error
}

// UpdateStatusTx 事务内按前置状态更新物品状态（CAS）
func (r *ItemRepository) UpdateStatusTx(tx *gorm.DB, itemID string, fromStatuses []string, toStatus string) error {
	res := tx.Model(&entity.Item{}).
		Where("id = ? AND status IN ?", itemID, fromStatuses).
		Updates(map[string]interface{}{
			"status":     toStatus,
			"version":    gorm.Expr("version + 1"),
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrConflict
	}
	return nil
}

// SetHolderTx 事务内更新当前保管人
func (r *ItemRepository) SetHolderTx(tx *gorm.DB, itemID string, holderID *string) error {
	return tx.Model(&entity.Item{}).
		Where("id = ?", itemID).
		Updates(map[string]interface{}{
			"current_holder_id": holderID,
			"updated_at":        time.Now(),
		}).Error
}

// TransferListParams 移转历史查询参数
type TransferListParams struct {
	ItemID string
	RoomID string
	Page   int
	Size   int
}

// ListTransfers 分页查询移转历史
func (r *ItemRepository) ListTransfers(ctx context.Context, params TransferListParams) ([]entity.ItemTransfer, int64, error) {
	q := r.db.WithContext(ctx).Model(&entity.ItemTransfer{})
	if params.ItemID != "" {
		q = q.Where("item_id = ?", params.ItemID)
	}
	if params.RoomID != "" {
		q = q.Where("from_room_id = ? OR to_room_id = ?", params.RoomID, params.RoomID)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var transfers []entity.ItemTransfer
	query := q.Preload("Item").Preload("Item.Model").Preload("FromRoom").Preload("ToRoom").Preload("Actor").
		Order("created_at DESC")
	if params.Size > 0 {
		query = query.Offset((params.Page - 1) * params.Size).Limit(params.Size)
	}
	err := query.Find(&transfers).Error
	return transfers, total, err
}

// ListEligibleUnits 查找某型号当前可分配的物品：
// 状态为在库，且未成为任何未拒绝申请的解析目标。
func (r *ItemRepository) ListEligibleUnits(ctx context.Context, modelID string) ([]entity.Item, error) {
	var items []entity.Item
	err := r.db.WithContext(ctx).
		Where("model_id = ? AND status = ?", modelID, entity.ItemStatusInStock).
		Where("id NOT IN (?)", r.db.Model(&entity.ItemRequest{}).
			Select("resolved_unit_id").
			Where("resolved_unit_id IS NOT NULL")).
		Order("code ASC").
		Find(&items).Error
	return items, err
}

// CreateInclusionTx 事务内创建随附件关联
func (r *ItemRepository) CreateInclusionTx(tx *gorm.DB, inclusion *entity.ItemInclusion) error {
	return tx.Create(inclusion).Error
}

// ListInclusions 查找某物品的随附件
func (r *ItemRepository) ListInclusions(ctx context.Context, itemID string) ([]entity.ItemInclusion, error) {
	var inclusions []entity.ItemInclusion
	err := r.db.WithContext(ctx).
		Preload("IncludedItem").
		Where("item_id = ?", itemID).
		Find(&inclusions).Error
	return inclusions, err
}
