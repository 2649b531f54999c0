package repository

import (
	"errors"

	"gorm.io/gorm"
)

// 错误定义
var (
	ErrNotFound = errors.New("record not found")
	// ErrConflict 条件更新未命中任何行（前置条件已失效）
	ErrConflict = errors.New("concurrent update conflict")
)

// Repositories 仓库集合
type Repositories struct {
	User        *UserRepository
	Item        *ItemRepository
	Assignment  *AssignmentRepository
	Maintenance *MaintenanceRepository
	Request     *RequestRepository
	Order       *OrderRepository
	Room        *RoomRepository
	Model       *ModelRepository
	Provider    *ProviderRepository
}

// NewRepositories 创建仓库集合
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		User:        NewUserRepository(db),
		Item:        NewItemRepository(db),
		Assignment:  NewAssignmentRepository(db),
		Maintenance: NewMaintenanceRepository(db),
		Request:     NewRequestRepository(db),
		Order:       NewOrderRepository(db),
		Room:        NewRoomRepository(db),
		Model:       NewModelRepository(db),
		Provider:    NewProviderRepository(db),
	}
}
