package repository

import (
	"context"
	"errors"

	"github.com/bitfantasy/nimo-eam/internal/eam/entity"
	"gorm.io/gorm"
)

// RoomRepository 房间仓库
type RoomRepository struct {
	db *gorm.DB
}

// NewRoomRepository 创建房间仓库
func NewRoomRepository(db *gorm.DB) *RoomRepository {
	return &RoomRepository{db: db}
}

// FindByID 根据ID查找房间
func (r *RoomRepository) FindByID(ctx context.Context, id string) (*entity.Room, error) {
	var room entity.Room
	err := r.db.WithContext(ctx).Preload("Type").First(&room, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &room, nil
}

// List 查询所有房间
func (r *RoomRepository) List(ctx context.Context) ([]entity.Room, error) {
	var rooms []entity.Room
	err := r.db.WithContext(ctx).Preload("Type").Order("code ASC").Find(&rooms).Error
	return rooms, err
}

// Create 创建房间
func (r *RoomRepository) Create(ctx context.Context, room *entity.Room) error {
	return r.db.WithContext(ctx).Create(room).Error
}

// ListTypes 查询房间类型
func (r *RoomRepository) ListTypes(ctx context.Context) ([]entity.RoomType, error) {
	var types []entity.RoomType
	err := r.db.WithContext(ctx).Order("name ASC").Find(&types).Error
	return types, err
}

// ModelRepository 型号仓库
type ModelRepository struct {
	db *gorm.DB
}

// NewModelRepository 创建型号仓库
func NewModelRepository(db *gorm.DB) *ModelRepository {
	return &ModelRepository{db: db}
}

// FindByID 根据ID查找型号
func (r *ModelRepository) FindByID(ctx context.Context, id string) (*entity.ItemModel, error) {
	var model entity.ItemModel
	err := r.db.WithContext(ctx).Preload("Brand").First(&model, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &model, nil
}

// List 查询型号列表
func (r *ModelRepository) List(ctx context.Context, kind string) ([]entity.ItemModel, error) {
	q := r.db.WithContext(ctx).Preload("Brand")
	if kind != "" {
		q = q.Where("kind = ?", kind)
	}
	var models []entity.ItemModel
	err := q.Order("code ASC").Find(&models).Error
	return models, err
}

// Create 创建型号
func (r *ModelRepository) Create(ctx context.Context, model *entity.ItemModel) error {
	return r.db.WithContext(ctx).Create(model).Error
}

// ListBrands 查询品牌列表
func (r *ModelRepository) ListBrands(ctx context.Context) ([]entity.Brand, error) {
	var brands []entity.Brand
	err := r.db.WithContext(ctx).Order("name ASC").Find(&brands).Error
	return brands, err
}

// ProviderRepository 服务商仓库
type ProviderRepository struct {
	db *gorm.DB
}

// NewProviderRepository 创建服务商仓库
func NewProviderRepository(db *gorm.DB) *ProviderRepository {
	return &ProviderRepository{db: db}
}

// FindByID 根据ID查找服务商
func (r *ProviderRepository) FindByID(ctx context.Context, id string) (*entity.Provider, error) {
	var provider entity.Provider
	err := r.db.WithContext(ctx).First(&provider, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &provider, nil
}

// List 查询服务商列表
func (r *ProviderRepository) List(ctx context.Context) ([]entity.Provider, error) {
	var providers []entity.Provider
	err := r.db.WithContext(ctx).
		Where("status = ?", "active").
		Order("name ASC").
		Find(&providers).Error
	return providers, err
}

// Create 创建服务商
func (r *ProviderRepository) Create(ctx context.Context, provider *entity.Provider) error {
	return r.db.WithContext(ctx).Create(provider).Error
}
