package handler

import (
	"github.com/bitfantasy/nimo-eam/internal/eam/service"
	"github.com/gin-gonic/gin"
)

// ProvisioningHandler 采购入库处理器
type ProvisioningHandler struct {
	svc *service.ProvisioningService
}

// NewProvisioningHandler 创建采购入库处理器
func NewProvisioningHandler(svc *service.ProvisioningService) *ProvisioningHandler {
	return &ProvisioningHandler{svc: svc}
}

type commitBatchRequest struct {
	Supplier  string             `json:"supplier"`
	InvoiceNo string             `json:"invoice_no"`
	Note      string             `json:"note"`
	Rows      []service.BatchRow `json:"rows" binding:"required"`
}

// CommitBatch 提交入库单
// POST /api/v1/orders
func (h *ProvisioningHandler) CommitBatch(c *gin.Context) {
	var req commitBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "入库单内容不合法")
		return
	}
	order, err := h.svc.CommitBatch(c.Request.Context(), GetActor(c), service.BatchInput{
		Supplier:  req.Supplier,
		InvoiceNo: req.InvoiceNo,
		Note:      req.Note,
		Rows:      req.Rows,
	})
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	Created(c, order)
}

// List 查询入库单列表
// GET /api/v1/orders
func (h *ProvisioningHandler) List(c *gin.Context) {
	page, size := GetPagination(c)
	orders, total, err := h.svc.ListOrders(c.Request.Context(), page, size)
	if err != nil {
		InternalError(c, "获取入库单列表失败: "+err.Error())
		return
	}
	Success(c, gin.H{
		"items": orders,
		"pagination": Pagination{
			Page:       page,
			PageSize:   size,
			Total:      int(total),
			TotalPages: int((total + int64(size) - 1) / int64(size)),
		},
	})
}

// Get 获取入库单详情
// GET /api/v1/orders/:id
func (h *ProvisioningHandler) Get(c *gin.Context) {
	order, err := h.svc.GetOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	Success(c, order)
}

// ListIncludedItems 查询入库单内的随附关系
// GET /api/v1/orders/:id/inclusions
func (h *ProvisioningHandler) ListIncludedItems(c *gin.Context) {
	inclusions, err := h.svc.ListIncludedItems(c.Request.Context(), c.Param("id"))
	if err != nil {
		InternalError(c, "获取随附关系失败: "+err.Error())
		return
	}
	Success(c, gin.H{"items": inclusions})
}
