package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bitfantasy/nimo-eam/internal/eam/entity"
	"github.com/bitfantasy/nimo-eam/internal/eam/repository"
	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

// LedgerService 台账服务（物品位置与持有人的唯一可信来源）
type LedgerService struct {
	db             *gorm.DB
	itemRepo       *repository.ItemRepository
	assignmentRepo *repository.AssignmentRepository
	roomRepo       *repository.RoomRepository
}

// NewLedgerService 创建台账服务
func NewLedgerService(db *gorm.DB, itemRepo *repository.ItemRepository, assignmentRepo *repository.AssignmentRepository, roomRepo *repository.RoomRepository) *LedgerService {
	return &LedgerService{db: db, itemRepo: itemRepo, assignmentRepo: assignmentRepo, roomRepo: roomRepo}
}

// kindManagerRole 物品种类对应的管理角色
func kindManagerRole(kind string) string {
	switch kind {
	case entity.ItemKindStockItem:
		return entity.RoleStockManager
	case entity.ItemKindConsumable:
		return entity.RoleConsumableManager
	default:
		return entity.RoleAssetManager
	}
}

// GetItem 获取物品详情
func (s *LedgerService) GetItem(ctx context.Context, id string) (*entity.Item, error) {
	return s.itemRepo.FindByID(ctx, id)
}

// GetCurrentRoom 查询物品当前所在房间（未上架时为 nil）
func (s *LedgerService) GetCurrentRoom(ctx context.Context, itemID string) (*string, error) {
	item, err := s.itemRepo.FindByID(ctx, itemID)
	if err != nil {
		return nil, err
	}
	return item.CurrentRoomID, nil
}

// GetCurrentHolder 查询物品当前持有人（未借出时为 nil）
func (s *LedgerService) GetCurrentHolder(ctx context.Context, itemID string) (*string, error) {
	item, err := s.itemRepo.FindByID(ctx, itemID)
	if err != nil {
		return nil, err
	}
	return item.CurrentHolderID, nil
}

// ListItems 获取物品列表
func (s *LedgerService) ListItems(ctx context.Context, params repository.ItemListParams) ([]entity.Item, int64, error) {
	return s.itemRepo.List(ctx, params)
}

// TransferInput 转移请求
type TransferInput struct {
	ItemID         string
	ExpectedRoomID *string // 调用方看到的当前房间；不一致则拒绝
	ToRoomID       string
	Note           string
}

// Transfer 转移物品到目标房间
// 使用条件更新保证：只有当物品仍在调用方看到的房间时转移才会发生，
// 并在同一事务内追加一条不可变的转移历史。
func (s *LedgerService) Transfer(ctx context.Context, actor Actor, in TransferInput) error {
	if in.ItemID == "" || in.ToRoomID == "" {
		return fmt.Errorf("%w: 物品和目标房间不能为空", ErrValidation)
	}
	item, err := s.itemRepo.FindByID(ctx, in.ItemID)
	if err != nil {
		return err
	}
	if !actor.HasAnyRole(kindManagerRole(item.Kind)) {
		return fmt.Errorf("%w: 无权转移该类物品", ErrPermissionDenied)
	}
	if item.Status == entity.ItemStatusRetired || item.Status == entity.ItemStatusDestroyed {
		return fmt.Errorf("%w: 物品已退役或销毁", ErrStateConflict)
	}
	if _, err := s.roomRepo.FindByID(ctx, in.ToRoomID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%w: 目标房间不存在", ErrValidation)
		}
		return err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.itemRepo.TransferTx(tx, in.ItemID, in.ExpectedRoomID, in.ToRoomID, actor.ID, in.Note)
	})
	if errors.Is(err, repository.ErrConflict) {
		return fmt.Errorf("%w: 物品已被移动，请刷新后重试", ErrStateConflict)
	}
	return err
}

// AssignInput 分配请求
type AssignInput struct {
	ItemID    string
	UserID    string
	Condition string
	Note      string
}

// Assign 将物品分配给个人
// 关闭已有的在用分配（如果有），创建新分配并更新持有人。
func (s *LedgerService) Assign(ctx context.Context, actor Actor, in AssignInput) error {
	if in.ItemID == "" || in.UserID == "" {
		return fmt.Errorf("%w: 物品和用户不能为空", ErrValidation)
	}
	item, err := s.itemRepo.FindByID(ctx, in.ItemID)
	if err != nil {
		return err
	}
	if !actor.HasAnyRole(kindManagerRole(item.Kind)) {
		return fmt.Errorf("%w: 无权分配该类物品", ErrPermissionDenied)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.itemRepo.UpdateStatusTx(tx, in.ItemID, entity.AssignableStatuses, entity.ItemStatusAssigned); err != nil {
			return err
		}
		open, err := s.assignmentRepo.FindOpenByItemTx(tx, in.ItemID)
		if err != nil {
			return err
		}
		if open != nil {
			if err := s.assignmentRepo.CloseTx(tx, open.ID, time.Now()); err != nil {
				return err
			}
		}
		if err := s.assignmentRepo.CreateTx(tx, &entity.Assignment{
			ID:        uuid.New().String()[:32],
			ItemID:    in.ItemID,
			UserID:    in.UserID,
			StartAt:   time.Now(),
			Condition: in.Condition,
		}); err != nil {
			return err
		}
		return s.itemRepo.SetHolderTx(tx, in.ItemID, &in.UserID)
	})
	if errors.Is(err, repository.ErrConflict) {
		return fmt.Errorf("%w: 物品当前状态不允许分配", ErrStateConflict)
	}
	return err
}

// Unassign 收回个人持有的物品
func (s *LedgerService) Unassign(ctx context.Context, actor Actor, itemID string) error {
	item, err := s.itemRepo.FindByID(ctx, itemID)
	if err != nil {
		return err
	}
	if !actor.HasAnyRole(kindManagerRole(item.Kind)) {
		return fmt.Errorf("%w: 无权收回该类物品", ErrPermissionDenied)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		open, err := s.assignmentRepo.FindOpenByItemTx(tx, itemID)
		if err != nil {
			return err
		}
		if open == nil {
			return fmt.Errorf("%w: 物品未处于分配状态", ErrStateConflict)
		}
		if err := s.assignmentRepo.CloseTx(tx, open.ID, time.Now()); err != nil {
			return err
		}
		if err := s.itemRepo.UpdateStatusTx(tx, itemID, []string{entity.ItemStatusAssigned}, entity.ItemStatusInStock); err != nil {
			return err
		}
		return s.itemRepo.SetHolderTx(tx, itemID, nil)
	})
	if errors.Is(err, repository.ErrConflict) {
		return fmt.Errorf("%w: 物品当前状态不允许收回", ErrStateConflict)
	}
	return err
}

// ListTransfers 查询转移历史
func (s *LedgerService) ListTransfers(ctx context.Context, params repository.TransferListParams) ([]entity.ItemTransfer, int64, error) {
	return s.itemRepo.ListTransfers(ctx, params)
}

// ListAssignments 查询物品的分配历史
func (s *LedgerService) ListAssignments(ctx context.Context, itemID string) ([]entity.Assignment, error) {
	return s.assignmentRepo.ListByItem(ctx, itemID)
}

// ListUserAssignments 查询用户当前持有的物品
func (s *LedgerService) ListUserAssignments(ctx context.Context, userID string) ([]entity.Assignment, error) {
	return s.assignmentRepo.ListByUser(ctx, userID)
}

// ExportTransfers 导出转移历史为Excel
func (s *LedgerService) ExportTransfers(ctx context.Context, params repository.TransferListParams) (*bytes.Buffer, error) {
	params.Page = 0
	params.Size = 0
	transfers, _, err := s.itemRepo.ListTransfers(ctx, params)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	defer f.Close()

	sheet := "转移历史"
	f.SetSheetName("Sheet1", sheet)

	headers := []string{"物品编码", "物品名称", "原房间", "目标房间", "操作人", "备注", "时间"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheet, cell, h)
	}

	for row, t := range transfers {
		fromRoom, toRoom := "", t.ToRoomID
		if t.FromRoom != nil {
			fromRoom = t.FromRoom.Name
		}
		if t.ToRoom != nil {
			toRoom = t.ToRoom.Name
		}
		itemCode, itemName := "", ""
		if t.Item != nil {
			itemCode = t.Item.Code
			if t.Item.Model != nil {
				itemName = t.Item.Model.Name
			}
		}
		actorName := t.ActorID
		if t.Actor != nil {
			actorName = t.Actor.Name
		}
		values := []interface{}{
			itemCode,
			itemName,
			fromRoom,
			toRoom,
			actorName,
			t.Note,
			t.CreatedAt.Format("2006-01-02 15:04:05"),
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			f.SetCellValue(sheet, cell, v)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("生成Excel文件失败: %w", err)
	}
	return buf, nil
}
