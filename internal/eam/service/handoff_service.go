package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bitfantasy/nimo-eam/internal/eam/entity"
	"github.com/bitfantasy/nimo-eam/internal/eam/repository"
	"gorm.io/gorm"
)

// HandoffService 外修交接服务
// 外修交接严格按 送出→对方签收→对方寄回→我方签收 四个阶段推进，
// 每一步都是对时间戳列的条件更新：重复确认或跳步会命中零行并被拒绝。
type HandoffService struct {
	db              *gorm.DB
	maintenanceRepo *repository.MaintenanceRepository
	itemRepo        *repository.ItemRepository
	providerRepo    *repository.ProviderRepository
	roomRepo        *repository.RoomRepository
}

// NewHandoffService 创建外修交接服务
func NewHandoffService(db *gorm.DB, maintenanceRepo *repository.MaintenanceRepository, itemRepo *repository.ItemRepository, providerRepo *repository.ProviderRepository, roomRepo *repository.RoomRepository) *HandoffService {
	return &HandoffService{
		db:              db,
		maintenanceRepo: maintenanceRepo,
		itemRepo:        itemRepo,
		providerRepo:    providerRepo,
		roomRepo:        roomRepo,
	}
}

// GetRecord 获取交接记录
func (s *HandoffService) GetRecord(ctx context.Context, id string) (*entity.ExternalMaintenanceRecord, error) {
	return s.maintenanceRepo.FindRecordByID(ctx, id)
}

// SendToProvider 第一阶段：送出设备
// 填写送出时间并锁定服务商，同时把设备移转到服务商的收货房间。
func (s *HandoffService) SendToProvider(ctx context.Context, actor Actor, recordID, providerID, note string) error {
	if !actor.HasAnyRole(entity.RoleAssetManager) {
		return fmt.Errorf("%w: 仅资产管理员可以执行交接操作", ErrPermissionDenied)
	}
	if providerID == "" {
		return fmt.Errorf("%w: 服务商不能为空", ErrValidation)
	}

	provider, err := s.providerRepo.FindByID(ctx, providerID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%w: 服务商不存在", ErrValidation)
		}
		return err
	}
	if provider.RoomID == nil {
		return fmt.Errorf("%w: 服务商未配置收货房间", ErrValidation)
	}

	now := time.Now()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rec, err := s.maintenanceRepo.FindRecordByIDTx(tx, recordID)
		if err != nil {
			return err
		}
		if err := s.maintenanceRepo.AdvanceStageTx(tx, recordID, "sent_to_provider", "", now, map[string]interface{}{
			"provider_id": providerID,
		}); err != nil {
			return err
		}
		item, err := s.itemRepo.FindByIDTx(tx, rec.ItemID)
		if err != nil {
			return err
		}
		return s.itemRepo.TransferTx(tx, rec.ItemID, item.CurrentRoomID, *provider.RoomID, actor.ID, note)
	})
	if errors.Is(err, repository.ErrConflict) {
		return fmt.Errorf("%w: 设备已送出或已被移动", ErrStateConflict)
	}
	return err
}

// ConfirmReceivedByProvider 第二阶段：服务商签收
func (s *HandoffService) ConfirmReceivedByProvider(ctx context.Context, actor Actor, recordID string) error {
	if !actor.HasAnyRole(entity.RoleAssetManager) {
		return fmt.Errorf("%w: 仅资产管理员可以执行交接操作", ErrPermissionDenied)
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.maintenanceRepo.AdvanceStageTx(tx, recordID, "received_by_provider", "sent_to_provider", time.Now(), nil)
	})
	if errors.Is(err, repository.ErrConflict) {
		return fmt.Errorf("%w: 当前阶段不允许该操作", ErrStateConflict)
	}
	return err
}

// ConfirmSentToCompany 第三阶段：服务商寄回
func (s *HandoffService) ConfirmSentToCompany(ctx context.Context, actor Actor, recordID string) error {
	if !actor.HasAnyRole(entity.RoleAssetManager) {
		return fmt.Errorf("%w: 仅资产管理员可以执行交接操作", ErrPermissionDenied)
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.maintenanceRepo.AdvanceStageTx(tx, recordID, "sent_to_company", "received_by_provider", time.Now(), nil)
	})
	if errors.Is(err, repository.ErrConflict) {
		return fmt.Errorf("%w: 当前阶段不允许该操作", ErrStateConflict)
	}
	return err
}

// ConfirmReceivedByCompany 第四阶段：我方签收
// 填写签收时间并把设备移回公司房间，两者在同一事务内完成。
func (s *HandoffService) ConfirmReceivedByCompany(ctx context.Context, actor Actor, recordID, toRoomID, note string) error {
	if !actor.HasAnyRole(entity.RoleAssetManager) {
		return fmt.Errorf("%w: 仅资产管理员可以执行交接操作", ErrPermissionDenied)
	}
	if toRoomID == "" {
		return fmt.Errorf("%w: 签收房间不能为空", ErrValidation)
	}
	if _, err := s.roomRepo.FindByID(ctx, toRoomID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%w: 签收房间不存在", ErrValidation)
		}
		return err
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rec, err := s.maintenanceRepo.FindRecordByIDTx(tx, recordID)
		if err != nil {
			return err
		}
		if err := s.maintenanceRepo.AdvanceStageTx(tx, recordID, "received_by_company", "sent_to_company", time.Now(), nil); err != nil {
			return err
		}
		item, err := s.itemRepo.FindByIDTx(tx, rec.ItemID)
		if err != nil {
			return err
		}
		return s.itemRepo.TransferTx(tx, rec.ItemID, item.CurrentRoomID, toRoomID, actor.ID, note)
	})
	if errors.Is(err, repository.ErrConflict) {
		return fmt.Errorf("%w: 当前阶段不允许该操作", ErrStateConflict)
	}
	return err
}
