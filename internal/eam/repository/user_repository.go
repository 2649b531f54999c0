package repository

import (
	"context"
	"errors"

	"github.com/bitfantasy/nimo-eam/internal/eam/entity"
	"gorm.io/gorm"
)

// UserRepository 用户仓库
type UserRepository struct {
	db *gorm.DB
}

// NewUserRepository 创建用户仓库
func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// FindByID 根据ID查找用户（带角色）
func (r *UserRepository) FindByID(ctx context.Context, id string) (*entity.User, error) {
	var user entity.User
	err := r.db.WithContext(ctx).
		Preload("Roles").
		First(&user, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	fillRoleCodes(&user)
	return &user, nil
}

// FindByUsername 根据用户名查找用户（带角色）
func (r *UserRepository) FindByUsername(ctx context.Context, username string) (*entity.User, error) {
	var user entity.User
	err := r.db.WithContext(ctx).
		Preload("Roles").
		First(&user, "username = ?", username).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	fillRoleCodes(&user)
	return &user, nil
}

// ListActive 查询所有活跃用户
func (r *UserRepository) ListActive(ctx context.Context) ([]entity.User, error) {
	var users []entity.User
	err := r.db.WithContext(ctx).
		Where("status = ?", entity.UserStatusActive).
		Order("name ASC").
		Find(&users).Error
	return users, err
}

// Search 搜索用户（按名字/邮箱模糊匹配）
func (r *UserRepository) Search(ctx context.Context, query string) ([]entity.User, error) {
	var users []entity.User
	like := "%" + query + "%"
	err := r.db.WithContext(ctx).
		Where("status = ?", entity.UserStatusActive).
		Where("name ILIKE ? OR email ILIKE ?", like, like).
		Limit(20).
		Find(&users).Error
	return users, err
}

// Update 更新用户
func (r *UserRepository) Update(ctx context.Context, user *entity.User) error {
	return r.db.WithContext(ctx).Save(user).Error
}

func fillRoleCodes(user *entity.User) {
	user.RoleCodes = make([]string, 0, len(user.Roles))
	for _, role := range user.Roles {
		user.RoleCodes = append(user.RoleCodes, role.Code)
	}
}
