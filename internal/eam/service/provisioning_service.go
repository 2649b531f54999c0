package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/bitfantasy/nimo-eam/internal/eam/entity"
	"github.com/bitfantasy/nimo-eam/internal/eam/repository"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ProvisioningService 采购入库服务
// 一张入库单携带多行待建账物品，整批要么全部入账要么全部不入账。
type ProvisioningService struct {
	db        *gorm.DB
	orderRepo *repository.OrderRepository
	itemRepo  *repository.ItemRepository
	modelRepo *repository.ModelRepository
	roomRepo  *repository.RoomRepository
}

// NewProvisioningService 创建采购入库服务
func NewProvisioningService(db *gorm.DB, orderRepo *repository.OrderRepository, itemRepo *repository.ItemRepository, modelRepo *repository.ModelRepository, roomRepo *repository.RoomRepository) *ProvisioningService {
	return &ProvisioningService{
		db:        db,
		orderRepo: orderRepo,
		itemRepo:  itemRepo,
		modelRepo: modelRepo,
		roomRepo:  roomRepo,
	}
}

// BatchRow 入库单中的一行
// Key 是行在本批次内的标识，Includes 通过 Key 引用同批次的其他行。
type BatchRow struct {
	Key           string          `json:"key"`
	Code          string          `json:"code"`
	ModelID       string          `json:"model_id"`
	RoomID        string          `json:"room_id"` // 为空表示暂不上架
	PurchasePrice decimal.Decimal `json:"purchase_price"`
	Specs         entity.JSONB    `json:"specs"`
	Includes      []string        `json:"includes"`
}

// BatchInput 入库请求
type BatchInput struct {
	Supplier  string
	InvoiceNo string
	Note      string
	Rows      []BatchRow
}

// CommitBatch 提交入库单
// 先整体校验（重复编码、未知型号、悬空的随附引用），再在一个事务内
// 建单、建账、登记首次上架和随附关系。任何一行失败都会整批回滚，
// 错误信息指明出错的行。
func (s *ProvisioningService) CommitBatch(ctx context.Context, actor Actor, in BatchInput) (*entity.ProvisionOrder, error) {
	if !actor.HasAnyRole(entity.RoleAssetManager, entity.RoleStockManager, entity.RoleConsumableManager) {
		return nil, fmt.Errorf("%w: 无权建账", ErrPermissionDenied)
	}
	if len(in.Rows) == 0 {
		return nil, fmt.Errorf("%w: 入库单不能为空", ErrValidation)
	}

	// 批内校验：编码唯一、Key 唯一、随附引用可解析
	byKey := make(map[string]*BatchRow, len(in.Rows))
	seenCodes := make(map[string]string, len(in.Rows))
	for i := range in.Rows {
		row := &in.Rows[i]
		if row.Key == "" {
			return nil, fmt.Errorf("%w: 第%d行缺少行标识", ErrValidation, i+1)
		}
		if _, dup := byKey[row.Key]; dup {
			return nil, fmt.Errorf("%w: 行标识 %s 重复", ErrValidation, row.Key)
		}
		byKey[row.Key] = row
		if row.Code == "" {
			return nil, fmt.Errorf("%w: 行 %s 缺少台账编码", ErrValidation, row.Key)
		}
		if prev, dup := seenCodes[row.Code]; dup {
			return nil, fmt.Errorf("%w: 行 %s 与行 %s 使用了相同的编码 %s", ErrValidation, row.Key, prev, row.Code)
		}
		seenCodes[row.Code] = row.Key
		if row.ModelID == "" {
			return nil, fmt.Errorf("%w: 行 %s 缺少型号", ErrValidation, row.Key)
		}
	}

	// 校验型号与房间引用（批内去重后逐个检查）
	models := make(map[string]*entity.ItemModel)
	for _, row := range in.Rows {
		if _, ok := models[row.ModelID]; ok {
			continue
		}
		model, err := s.modelRepo.FindByID(ctx, row.ModelID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, fmt.Errorf("%w: 行 %s 引用了不存在的型号", ErrValidation, row.Key)
			}
			return nil, err
		}
		models[row.ModelID] = model
	}
	rooms := make(map[string]bool)
	for _, row := range in.Rows {
		if row.RoomID == "" || rooms[row.RoomID] {
			continue
		}
		if _, err := s.roomRepo.FindByID(ctx, row.RoomID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, fmt.Errorf("%w: 行 %s 引用了不存在的房间", ErrValidation, row.Key)
			}
			return nil, err
		}
		rooms[row.RoomID] = true
	}

	// 随附关系只允许资产附带库存件/耗材
	for _, row := range in.Rows {
		if len(row.Includes) == 0 {
			continue
		}
		if models[row.ModelID].Kind != entity.ItemKindAsset {
			return nil, fmt.Errorf("%w: 行 %s 不是资产，不能附带其他物品", ErrValidation, row.Key)
		}
		for _, ref := range row.Includes {
			target, ok := byKey[ref]
			if !ok {
				return nil, fmt.Errorf("%w: 行 %s 的随附引用 %s 不在本批次内", ErrValidation, row.Key, ref)
			}
			if ref == row.Key {
				return nil, fmt.Errorf("%w: 行 %s 不能附带自身", ErrValidation, row.Key)
			}
			if models[target.ModelID].Kind == entity.ItemKindAsset {
				return nil, fmt.Errorf("%w: 行 %s 的随附引用 %s 是资产", ErrValidation, row.Key, ref)
			}
		}
	}

	total := decimal.Zero
	for _, row := range in.Rows {
		total = total.Add(row.PurchasePrice)
	}

	var order *entity.ProvisionOrder
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		code, err := s.orderRepo.GenerateCodeTx(tx)
		if err != nil {
			return fmt.Errorf("生成入库单编号失败: %w", err)
		}
		order = &entity.ProvisionOrder{
			ID:          uuid.New().String()[:32],
			Code:        code,
			Supplier:    in.Supplier,
			InvoiceNo:   in.InvoiceNo,
			TotalAmount: total,
			Note:        in.Note,
			CreatedBy:   actor.ID,
		}
		if err := s.orderRepo.CreateTx(tx, order); err != nil {
			return fmt.Errorf("创建入库单失败: %w", err)
		}

		itemIDs := make(map[string]string, len(in.Rows))
		for _, row := range in.Rows {
			status := entity.ItemStatusProvisioned
			if row.RoomID != "" {
				status = entity.ItemStatusInStock
			}
			item := &entity.Item{
				ID:            uuid.New().String()[:32],
				Code:          row.Code,
				Kind:          models[row.ModelID].Kind,
				ModelID:       row.ModelID,
				Status:        status,
				OrderID:       &order.ID,
				PurchasePrice: row.PurchasePrice,
				Specs:         row.Specs,
			}
			if err := s.itemRepo.CreateTx(tx, item); err != nil {
				return fmt.Errorf("行 %s 建账失败: %w", row.Key, err)
			}
			itemIDs[row.Key] = item.ID
			if row.RoomID != "" {
				if err := s.itemRepo.TransferTx(tx, item.ID, nil, row.RoomID, actor.ID, "采购入库 "+code); err != nil {
					return fmt.Errorf("行 %s 上架失败: %w", row.Key, err)
				}
			}
		}

		for _, row := range in.Rows {
			for _, ref := range row.Includes {
				inclusion := &entity.ItemInclusion{
					ID:             uuid.New().String()[:32],
					ItemID:         itemIDs[row.Key],
					IncludedItemID: itemIDs[ref],
				}
				if err := s.itemRepo.CreateInclusionTx(tx, inclusion); err != nil {
					return fmt.Errorf("行 %s 登记随附关系失败: %w", row.Key, err)
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// GetOrder 获取入库单详情
func (s *ProvisioningService) GetOrder(ctx context.Context, id string) (*entity.ProvisionOrder, error) {
	return s.orderRepo.FindByID(ctx, id)
}

// ListOrders 分页查询入库单
func (s *ProvisioningService) ListOrders(ctx context.Context, page, size int) ([]entity.ProvisionOrder, int64, error) {
	return s.orderRepo.List(ctx, page, size)
}

// ListIncludedItems 查询入库单内全部随附关系
func (s *ProvisioningService) ListIncludedItems(ctx context.Context, orderID string) ([]entity.ItemInclusion, error) {
	return s.orderRepo.ListIncludedItems(ctx, orderID)
}

// ListInclusions 查询单个物品的随附件
func (s *ProvisioningService) ListInclusions(ctx context.Context, itemID string) ([]entity.ItemInclusion, error) {
	return s.itemRepo.ListInclusions(ctx, itemID)
}
