package handler

import (
	"fmt"
	"time"

	"github.com/bitfantasy/nimo-eam/internal/eam/repository"
	"github.com/bitfantasy/nimo-eam/internal/eam/service"
	"github.com/gin-gonic/gin"
)

// ItemHandler 台账处理器
type ItemHandler struct {
	ledger       *service.LedgerService
	provisioning *service.ProvisioningService
}

// NewItemHandler 创建台账处理器
func NewItemHandler(ledger *service.LedgerService, provisioning *service.ProvisioningService) *ItemHandler {
	return &ItemHandler{ledger: ledger, provisioning: provisioning}
}

// List 查询物品列表
// GET /api/v1/items?kind=&status=&model_id=&room_id=
func (h *ItemHandler) List(c *gin.Context) {
	page, size := GetPagination(c)
	items, total, err := h.ledger.ListItems(c.Request.Context(), repository.ItemListParams{
		Kind:    c.Query("kind"),
		Status:  c.Query("status"),
		ModelID: c.Query("model_id"),
		RoomID:  c.Query("room_id"),
		Page:    page,
		Size:    size,
	})
	if err != nil {
		InternalError(c, "获取物品列表失败: "+err.Error())
		return
	}
	Success(c, gin.H{
		"items": items,
		"pagination": Pagination{
			Page:       page,
			PageSize:   size,
			Total:      int(total),
			TotalPages: int((total + int64(size) - 1) / int64(size)),
		},
	})
}

// Get 获取物品详情
// GET /api/v1/items/:id
func (h *ItemHandler) Get(c *gin.Context) {
	item, err := h.ledger.GetItem(c.Request.Context(), c.Param("id"))
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	Success(c, item)
}

type transferRequest struct {
	ExpectedRoomID *string `json:"expected_room_id"`
	ToRoomID       string  `json:"to_room_id" binding:"required"`
	Note           string  `json:"note"`
}

// Transfer 转移物品
// POST /api/v1/items/:id/transfer
func (h *ItemHandler) Transfer(c *gin.Context) {
	var req transferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "目标房间不能为空")
		return
	}
	err := h.ledger.Transfer(c.Request.Context(), GetActor(c), service.TransferInput{
		ItemID:         c.Param("id"),
		ExpectedRoomID: req.ExpectedRoomID,
		ToRoomID:       req.ToRoomID,
		Note:           req.Note,
	})
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	Success(c, nil)
}

type assignRequest struct {
	UserID    string `json:"user_id" binding:"required"`
	Condition string `json:"condition"`
	Note      string `json:"note"`
}

// Assign 分配物品给个人
// POST /api/v1/items/:id/assign
func (h *ItemHandler) Assign(c *gin.Context) {
	var req assignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "用户不能为空")
		return
	}
	err := h.ledger.Assign(c.Request.Context(), GetActor(c), service.AssignInput{
		ItemID:    c.Param("id"),
		UserID:    req.UserID,
		Condition: req.Condition,
		Note:      req.Note,
	})
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	Success(c, nil)
}

// Unassign 收回物品
// POST /api/v1/items/:id/unassign
func (h *ItemHandler) Unassign(c *gin.Context) {
	if err := h.ledger.Unassign(c.Request.Context(), GetActor(c), c.Param("id")); err != nil {
		HandleServiceError(c, err)
		return
	}
	Success(c, nil)
}

// ListTransfers 查询物品的转移历史
// GET /api/v1/items/:id/transfers
func (h *ItemHandler) ListTransfers(c *gin.Context) {
	page, size := GetPagination(c)
	transfers, total, err := h.ledger.ListTransfers(c.Request.Context(), repository.TransferListParams{
		ItemID: c.Param("id"),
		Page:   page,
		Size:   size,
	})
	if err != nil {
		InternalError(c, "获取转移历史失败: "+err.Error())
		return
	}
	Success(c, gin.H{
		"items": transfers,
		"pagination": Pagination{
			Page:       page,
			PageSize:   size,
			Total:      int(total),
			TotalPages: int((total + int64(size) - 1) / int64(size)),
		},
	})
}

// ListAssignments 查询物品的分配历史
// GET /api/v1/items/:id/assignments
func (h *ItemHandler) ListAssignments(c *gin.Context) {
	assignments, err := h.ledger.ListAssignments(c.Request.Context(), c.Param("id"))
	if err != nil {
		InternalError(c, "获取分配历史失败: "+err.Error())
		return
	}
	Success(c, gin.H{"items": assignments})
}

// ListInclusions 查询物品的随附件
// GET /api/v1/items/:id/inclusions
func (h *ItemHandler) ListInclusions(c *gin.Context) {
	inclusions, err := h.provisioning.ListInclusions(c.Request.Context(), c.Param("id"))
	if err != nil {
		InternalError(c, "获取随附件失败: "+err.Error())
		return
	}
	Success(c, gin.H{"items": inclusions})
}

// ExportTransfers 导出转移历史为Excel
// GET /api/v1/transfers/export?item_id=&room_id=
func (h *ItemHandler) ExportTransfers(c *gin.Context) {
	buf, err := h.ledger.ExportTransfers(c.Request.Context(), repository.TransferListParams{
		ItemID: c.Query("item_id"),
		RoomID: c.Query("room_id"),
	})
	if err != nil {
		InternalError(c, "导出转移历史失败: "+err.Error())
		return
	}

	fileName := fmt.Sprintf("transfers_%s.xlsx", time.Now().Format("20060102150405"))
	c.Header("Content-Disposition", "attachment; filename="+fileName)
	c.Data(200, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", buf.Bytes())
}
