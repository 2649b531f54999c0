package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bitfantasy/nimo-eam/internal/eam/entity"
	"github.com/bitfantasy/nimo-eam/internal/eam/repository"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MaintenanceService 维修服务
type MaintenanceService struct {
	db              *gorm.DB
	maintenanceRepo *repository.MaintenanceRepository
	itemRepo        *repository.ItemRepository
}

// NewMaintenanceService 创建维修服务
func NewMaintenanceService(db *gorm.DB, maintenanceRepo *repository.MaintenanceRepository, itemRepo *repository.ItemRepository) *MaintenanceService {
	return &MaintenanceService{db: db, maintenanceRepo: maintenanceRepo, itemRepo: itemRepo}
}

// CreateMaintenanceInput 创建维修单
type CreateMaintenanceInput struct {
	ItemID      string
	Title       string
	Description string
}

// Create 创建维修单并把设备转入维修状态
func (s *MaintenanceService) Create(ctx context.Context, actor Actor, in CreateMaintenanceInput) (*entity.Maintenance, error) {
	if !actor.HasAnyRole(entity.RoleChief, entity.RoleAssetManager, entity.RoleTechnician) {
		return nil, fmt.Errorf("%w: 无权创建维修单", ErrPermissionDenied)
	}
	if in.ItemID == "" || in.Title == "" {
		return nil, fmt.Errorf("%w: 设备和标题不能为空", ErrValidation)
	}

	code, err := s.maintenanceRepo.GenerateCode(ctx)
	if err != nil {
		return nil, fmt.Errorf("生成维修单编号失败: %w", err)
	}

	m := &entity.Maintenance{
		ID:          uuid.New().String()[:32],
		Code:        code,
		ItemID:      in.ItemID,
		Title:       in.Title,
		Description: in.Description,
		Status:      entity.MaintenanceStatusOpen,
		CreatedBy:   actor.ID,
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.itemRepo.UpdateStatusTx(tx, in.ItemID,
			[]string{entity.ItemStatusInStock, entity.ItemStatusAssigned}, entity.ItemStatusInMaintenance); err != nil {
			return err
		}
		return tx.Create(m).Error
	})
	if errors.Is(err, repository.ErrConflict) {
		return nil, fmt.Errorf("%w: 设备当前状态不允许报修", ErrStateConflict)
	}
	if err != nil {
		return nil, fmt.Errorf("创建维修单失败: %w", err)
	}
	return m, nil
}

// Get 获取维修单详情
func (s *MaintenanceService) Get(ctx context.Context, id string) (*entity.Maintenance, error) {
	return s.maintenanceRepo.FindByID(ctx, id)
}

// List 分页查询维修单
func (s *MaintenanceService) List(ctx context.Context, page, size int, status string) ([]entity.Maintenance, int64, error) {
	return s.maintenanceRepo.List(ctx, page, size, status)
}

// Close 关闭维修单并把设备转回在库状态
func (s *MaintenanceService) Close(ctx context.Context, actor Actor, id string) error {
	if !actor.HasAnyRole(entity.RoleChief, entity.RoleAssetManager) {
		return fmt.Errorf("%w: 无权关闭维修单", ErrPermissionDenied)
	}
	m, err := s.maintenanceRepo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if m.Status == entity.MaintenanceStatusClosed {
		return fmt.Errorf("%w: 维修单已关闭", ErrStateConflict)
	}

	now := time.Now()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&entity.Maintenance{}).
			Where("id = ? AND status <> ?", id, entity.MaintenanceStatusClosed).
			Updates(map[string]interface{}{
				"status":     entity.MaintenanceStatusClosed,
				"closed_at":  now,
				"updated_at": now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return repository.ErrConflict
		}
		toStatus := entity.ItemStatusInStock
		if m.Item != nil && m.Item.CurrentHolderID != nil {
			toStatus = entity.ItemStatusAssigned
		}
		return s.itemRepo.UpdateStatusTx(tx, m.ItemID,
			[]string{entity.ItemStatusInMaintenance}, toStatus)
	})
	if errors.Is(err, repository.ErrConflict) {
		return fmt.Errorf("%w: 维修单已关闭", ErrStateConflict)
	}
	return err
}

// SendExternal 转外修：创建交接记录并标记维修单为外修中
// 记录此时只是占位，四个交接时间戳全部为空。
func (s *MaintenanceService) SendExternal(ctx context.Context, actor Actor, id string) (*entity.ExternalMaintenanceRecord, error) {
	if !actor.HasAnyRole(entity.RoleAssetManager) {
		return nil, fmt.Errorf("%w: 仅资产管理员可以转外修", ErrPermissionDenied)
	}
	m, err := s.maintenanceRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if m.Status != entity.MaintenanceStatusOpen {
		return nil, fmt.Errorf("%w: 维修单当前状态不允许转外修", ErrStateConflict)
	}

	rec := &entity.ExternalMaintenanceRecord{
		ID:            uuid.New().String()[:32],
		MaintenanceID: id,
		ItemID:        m.ItemID,
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&entity.Maintenance{}).
			Where("id = ? AND status = ?", id, entity.MaintenanceStatusOpen).
			Updates(map[string]interface{}{
				"status":     entity.MaintenanceStatusExternal,
				"updated_at": time.Now(),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return repository.ErrConflict
		}
		return tx.Create(rec).Error
	})
	if errors.Is(err, repository.ErrConflict) {
		return nil, fmt.Errorf("%w: 维修单当前状态不允许转外修", ErrStateConflict)
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// ============================================================
// 维修步骤
// ============================================================

// AddStepInput 添加维修步骤
type AddStepInput struct {
	MaintenanceID string
	TypicalStepID string
	AssigneeID    string
}

// AddStep 为维修单添加一个步骤并指派执行人
func (s *MaintenanceService) AddStep(ctx context.Context, actor Actor, in AddStepInput) (*entity.MaintenanceStep, error) {
	if !actor.HasAnyRole(entity.RoleChief) {
		return nil, fmt.Errorf("%w: 仅负责人可以添加步骤", ErrPermissionDenied)
	}
	if in.MaintenanceID == "" || in.TypicalStepID == "" || in.AssigneeID == "" {
		return nil, fmt.Errorf("%w: 维修单、步骤类型和执行人不能为空", ErrValidation)
	}
	m, err := s.maintenanceRepo.FindByID(ctx, in.MaintenanceID)
	if err != nil {
		return nil, err
	}
	if m.Status == entity.MaintenanceStatusClosed {
		return nil, fmt.Errorf("%w: 维修单已关闭", ErrStateConflict)
	}

	step := &entity.MaintenanceStep{
		ID:            uuid.New().String()[:32],
		MaintenanceID: in.MaintenanceID,
		TypicalStepID: in.TypicalStepID,
		AssigneeID:    in.AssigneeID,
	}
	if err := s.maintenanceRepo.CreateStep(ctx, step); err != nil {
		return nil, fmt.Errorf("创建维修步骤失败: %w", err)
	}
	return step, nil
}

// CompleteStep 填写步骤结果（只有被指派的执行人可以操作）
func (s *MaintenanceService) CompleteStep(ctx context.Context, actor Actor, stepID string, successful bool, note string) error {
	step, err := s.maintenanceRepo.FindStepByID(ctx, stepID)
	if err != nil {
		return err
	}
	if step.AssigneeID != actor.ID && !actor.HasAnyRole(entity.RoleAdmin) {
		return fmt.Errorf("%w: 只有执行人可以填写结果", ErrPermissionDenied)
	}
	if step.IsSuccessful != nil {
		return fmt.Errorf("%w: 步骤结果已填写", ErrStateConflict)
	}

	now := time.Now()
	step.IsSuccessful = &successful
	step.Note = note
	step.CompletedAt = &now
	return s.maintenanceRepo.UpdateStep(ctx, step)
}

// ReassignStep 改派步骤执行人（只有负责人可以操作）
func (s *MaintenanceService) ReassignStep(ctx context.Context, actor Actor, stepID, assigneeID string) error {
	if !actor.HasAnyRole(entity.RoleChief) {
		return fmt.Errorf("%w: 仅负责人可以改派", ErrPermissionDenied)
	}
	if assigneeID == "" {
		return fmt.Errorf("%w: 执行人不能为空", ErrValidation)
	}
	step, err := s.maintenanceRepo.FindStepByID(ctx, stepID)
	if err != nil {
		return err
	}
	if step.IsSuccessful != nil {
		return fmt.Errorf("%w: 步骤已完成，不能改派", ErrStateConflict)
	}
	step.AssigneeID = assigneeID
	return s.maintenanceRepo.UpdateStep(ctx, step)
}

// ListSteps 查询维修单的步骤列表
func (s *MaintenanceService) ListSteps(ctx context.Context, maintenanceID string) ([]entity.MaintenanceStep, error) {
	return s.maintenanceRepo.ListSteps(ctx, maintenanceID)
}

// ListTypicalSteps 查询标准步骤定义
func (s *MaintenanceService) ListTypicalSteps(ctx context.Context) ([]entity.TypicalStep, error) {
	return s.maintenanceRepo.ListTypicalSteps(ctx)
}

// CreateTypicalStep 创建标准步骤定义
func (s *MaintenanceService) CreateTypicalStep(ctx context.Context, actor Actor, name, description string, sortOrder int) (*entity.TypicalStep, error) {
	if !actor.HasAnyRole(entity.RoleChief) {
		return nil, fmt.Errorf("%w: 无权维护标准步骤", ErrPermissionDenied)
	}
	if name == "" {
		return nil, fmt.Errorf("%w: 步骤名称不能为空", ErrValidation)
	}
	step := &entity.TypicalStep{
		ID:          uuid.New().String()[:32],
		Name:        name,
		Description: description,
		SortOrder:   sortOrder,
	}
	if err := s.maintenanceRepo.CreateTypicalStep(ctx, step); err != nil {
		return nil, fmt.Errorf("创建标准步骤失败: %w", err)
	}
	return step, nil
}
