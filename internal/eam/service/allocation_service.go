package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"

	"github.com/bitfantasy/nimo-eam/internal/eam/entity"
	"github.com/bitfantasy/nimo-eam/internal/eam/repository"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AllocationService 备件申请分配服务
// 申请按型号提出，由管理员挑选具体物品完成分配。
// 完成和拒绝都是 pending 状态上的一次性变迁，提交时在事务内
// 重新校验物品仍可用，落败方收到冲突错误而不是脏数据。
type AllocationService struct {
	db          *gorm.DB
	requestRepo *repository.RequestRepository
	itemRepo    *repository.ItemRepository

	mu  sync.Mutex
	rnd *rand.Rand
}

// NewAllocationService 创建分配服务
func NewAllocationService(db *gorm.DB, requestRepo *repository.RequestRepository, itemRepo *repository.ItemRepository, rnd *rand.Rand) *AllocationService {
	return &AllocationService{db: db, requestRepo: requestRepo, itemRepo: itemRepo, rnd: rnd}
}

// requestManagerRole 申请类型对应的管理角色
func requestManagerRole(reqType string) string {
	if reqType == entity.RequestTypeConsumable {
		return entity.RoleConsumableManager
	}
	return entity.RoleStockManager
}

// CreateInput 创建申请
type CreateInput struct {
	Type    string
	ModelID string
	StepID  string
}

// Create 创建备件申请（维修步骤执行人按型号申请）
func (s *AllocationService) Create(ctx context.Context, actor Actor, in CreateInput) (*entity.ItemRequest, error) {
	if in.Type != entity.RequestTypeStockItem && in.Type != entity.RequestTypeConsumable {
		return nil, fmt.Errorf("%w: 未知的申请类型 %s", ErrValidation, in.Type)
	}
	if in.ModelID == "" || in.StepID == "" {
		return nil, fmt.Errorf("%w: 型号和维修步骤不能为空", ErrValidation)
	}

	req := &entity.ItemRequest{
		ID:          uuid.New().String()[:32],
		Type:        in.Type,
		ModelID:     in.ModelID,
		StepID:      in.StepID,
		Status:      entity.RequestStatusPending,
		RequestedBy: actor.ID,
	}
	if err := s.requestRepo.Create(ctx, req); err != nil {
		return nil, fmt.Errorf("创建申请失败: %w", err)
	}
	return req, nil
}

// Get 获取申请详情
func (s *AllocationService) Get(ctx context.Context, id string) (*entity.ItemRequest, error) {
	return s.requestRepo.FindByID(ctx, id)
}

// List 分页查询申请
func (s *AllocationService) List(ctx context.Context, page, size int, status, reqType string) ([]entity.ItemRequest, int64, error) {
	return s.requestRepo.List(ctx, page, size, status, reqType)
}

// ListEligible 列出申请当前可选的物品
// 可选 = 型号匹配、在库、且未被其他申请占用。结果只是建议，
// 真正的裁决发生在 Fulfill 的事务里。
func (s *AllocationService) ListEligible(ctx context.Context, requestID string) ([]entity.Item, error) {
	req, err := s.requestRepo.FindByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.Status != entity.RequestStatusPending {
		return nil, fmt.Errorf("%w: 申请已处理", ErrStateConflict)
	}
	return s.itemRepo.ListEligibleUnits(ctx, req.ModelID)
}

// SelectRandom 随机挑选一个可选物品（不做任何保留）
func (s *AllocationService) SelectRandom(ctx context.Context, requestID string) (*entity.Item, error) {
	items, err := s.ListEligible(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: 没有可分配的物品", ErrNotFound)
	}
	s.mu.Lock()
	idx := s.rnd.Intn(len(items))
	s.mu.Unlock()
	return &items[idx], nil
}

// FulfillInput 完成申请
type FulfillInput struct {
	RequestID    string
	UnitID       string
	SourceRoomID string // 调用方看到的物品当前房间，提交时重新校验
	ToRoomID     string // 物品交付后所在的房间
	Note         string
}

// Fulfill 完成申请：把具体物品绑定到申请并移转到交付房间
// 整个操作在一个事务内完成，并发的另一次分配（无论针对同一申请
// 还是同一物品）必然有一方失败回滚。
func (s *AllocationService) Fulfill(ctx context.Context, actor Actor, in FulfillInput) error {
	if in.RequestID == "" || in.UnitID == "" || in.SourceRoomID == "" || in.ToRoomID == "" {
		return fmt.Errorf("%w: 申请、物品、来源房间和交付房间不能为空", ErrValidation)
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		req, err := s.requestRepo.FindByIDTx(tx, in.RequestID)
		if err != nil {
			return err
		}
		if !actor.HasAnyRole(requestManagerRole(req.Type)) {
			return fmt.Errorf("%w: 无权处理该类申请", ErrPermissionDenied)
		}

		// 锁定物品行，让同一物品上的并发分配在占用检查前串行化。
		// 不加锁时两个事务都可能读到“未被占用”，各自完成不同的申请。
		unit, err := s.itemRepo.FindByIDForUpdateTx(tx, in.UnitID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return fmt.Errorf("%w: 物品不存在", ErrValidation)
			}
			return err
		}
		if unit.ModelID != req.ModelID {
			return fmt.Errorf("%w: 物品型号与申请不符", ErrValidation)
		}
		if unit.Status != entity.ItemStatusInStock {
			return fmt.Errorf("%w: 物品 %s 已不可分配", ErrAllocationConflict, unit.Code)
		}
		if unit.CurrentRoomID == nil || *unit.CurrentRoomID != in.SourceRoomID {
			return fmt.Errorf("%w: 物品 %s 已不在预期房间", ErrAllocationConflict, unit.Code)
		}
		claims, err := s.requestRepo.CountClaimsTx(tx, in.UnitID)
		if err != nil {
			return err
		}
		if claims > 0 {
			return fmt.Errorf("%w: 物品 %s 已被其他申请占用", ErrAllocationConflict, unit.Code)
		}

		if err := s.requestRepo.MarkFulfilledTx(tx, in.RequestID, in.UnitID, actor.ID); err != nil {
			if errors.Is(err, repository.ErrConflict) {
				return fmt.Errorf("%w: 申请已被处理", ErrAllocationConflict)
			}
			return err
		}
		// 交付只改变位置，不改变状态
		if err := s.itemRepo.TransferTx(tx, in.UnitID, unit.CurrentRoomID, in.ToRoomID, actor.ID, in.Note); err != nil {
			if errors.Is(err, repository.ErrConflict) {
				return fmt.Errorf("%w: 物品 %s 已被移动", ErrAllocationConflict, unit.Code)
			}
			return err
		}
		return nil
	})
	return err
}

// Reject 拒绝申请（终态，之后不能再次处理）
func (s *AllocationService) Reject(ctx context.Context, actor Actor, requestID, note string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		req, err := s.requestRepo.FindByIDTx(tx, requestID)
		if err != nil {
			return err
		}
		if !actor.HasAnyRole(requestManagerRole(req.Type)) {
			return fmt.Errorf("%w: 无权处理该类申请", ErrPermissionDenied)
		}
		return s.requestRepo.MarkRejectedTx(tx, requestID, note, actor.ID)
	})
	if errors.Is(err, repository.ErrConflict) {
		return fmt.Errorf("%w: 申请已被处理", ErrStateConflict)
	}
	return err
}
