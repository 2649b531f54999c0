package handler

import (
	"github.com/bitfantasy/nimo-eam/internal/eam/service"
	"github.com/gin-gonic/gin"
)

// MaintenanceHandler 维修处理器
type MaintenanceHandler struct {
	svc *service.MaintenanceService
}

// NewMaintenanceHandler 创建维修处理器
func NewMaintenanceHandler(svc *service.MaintenanceService) *MaintenanceHandler {
	return &MaintenanceHandler{svc: svc}
}

type createMaintenanceRequest struct {
	ItemID      string `json:"item_id" binding:"required"`
	Title       string `json:"title" binding:"required"`
	Description string `json:"description"`
}

// Create 创建维修单
// POST /api/v1/maintenances
func (h *MaintenanceHandler) Create(c *gin.Context) {
	var req createMaintenanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "设备和标题不能为空")
		return
	}
	m, err := h.svc.Create(c.Request.Context(), GetActor(c), service.CreateMaintenanceInput{
		ItemID:      req.ItemID,
		Title:       req.Title,
		Description: req.Description,
	})
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	Created(c, m)
}

// List 查询维修单列表
// GET /api/v1/maintenances?status=
func (h *MaintenanceHandler) List(c *gin.Context) {
	page, size := GetPagination(c)
	list, total, err := h.svc.List(c.Request.Context(), page, size, c.Query("status"))
	if err != nil {
		InternalError(c, "获取维修单列表失败: "+err.Error())
		return
	}
	Success(c, gin.H{
		"items": list,
		"pagination": Pagination{
			Page:       page,
			PageSize:   size,
			Total:      int(total),
			TotalPages: int((total + int64(size) - 1) / int64(size)),
		},
	})
}

// Get 获取维修单详情
// GET /api/v1/maintenances/:id
func (h *MaintenanceHandler) Get(c *gin.Context) {
	m, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	Success(c, m)
}

// Close 关闭维修单
// POST /api/v1/maintenances/:id/close
func (h *MaintenanceHandler) Close(c *gin.Context) {
	if err := h.svc.Close(c.Request.Context(), GetActor(c), c.Param("id")); err != nil {
		HandleServiceError(c, err)
		return
	}
	Success(c, nil)
}

// SendExternal 转外修
// POST /api/v1/maintenances/:id/external
func (h *MaintenanceHandler) SendExternal(c *gin.Context) {
	rec, err := h.svc.SendExternal(c.Request.Context(), GetActor(c), c.Param("id"))
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	Created(c, rec)
}

type addStepRequest struct {
	TypicalStepID string `json:"typical_step_id" binding:"required"`
	AssigneeID    string `json:"assignee_id" binding:"required"`
}

// AddStep 添加维修步骤
// POST /api/v1/maintenances/:id/steps
func (h *MaintenanceHandler) AddStep(c *gin.Context) {
	var req addStepRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "步骤类型和执行人不能为空")
		return
	}
	step, err := h.svc.AddStep(c.Request.Context(), GetActor(c), service.AddStepInput{
		MaintenanceID: c.Param("id"),
		TypicalStepID: req.TypicalStepID,
		AssigneeID:    req.AssigneeID,
	})
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	Created(c, step)
}

// ListSteps 查询维修步骤
// GET /api/v1/maintenances/:id/steps
func (h *MaintenanceHandler) ListSteps(c *gin.Context) {
	steps, err := h.svc.ListSteps(c.Request.Context(), c.Param("id"))
	if err != nil {
		InternalError(c, "获取维修步骤失败: "+err.Error())
		return
	}
	Success(c, gin.H{"items": steps})
}

type completeStepRequest struct {
	Successful *bool  `json:"successful" binding:"required"`
	Note       string `json:"note"`
}

// CompleteStep 填写步骤结果
// POST /api/v1/steps/:id/complete
func (h *MaintenanceHandler) CompleteStep(c *gin.Context) {
	var req completeStepRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "步骤结果不能为空")
		return
	}
	if err := h.svc.CompleteStep(c.Request.Context(), GetActor(c), c.Param("id"), *req.Successful, req.Note); err != nil {
		HandleServiceError(c, err)
		return
	}
	Success(c, nil)
}

type reassignStepRequest struct {
	AssigneeID string `json:"assignee_id" binding:"required"`
}

// ReassignStep 改派步骤执行人
// POST /api/v1/steps/:id/reassign
func (h *MaintenanceHandler) ReassignStep(c *gin.Context) {
	var req reassignStepRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "执行人不能为空")
		return
	}
	if err := h.svc.ReassignStep(c.Request.Context(), GetActor(c), c.Param("id"), req.AssigneeID); err != nil {
		HandleServiceError(c, err)
		return
	}
	Success(c, nil)
}

// ListTypicalSteps 查询标准步骤定义
// GET /api/v1/typical-steps
func (h *MaintenanceHandler) ListTypicalSteps(c *gin.Context) {
	steps, err := h.svc.ListTypicalSteps(c.Request.Context())
	if err != nil {
		InternalError(c, "获取标准步骤失败: "+err.Error())
		return
	}
	Success(c, gin.H{"items": steps})
}

type createTypicalStepRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	SortOrder   int    `json:"sort_order"`
}

// CreateTypicalStep 创建标准步骤定义
// POST /api/v1/typical-steps
func (h *MaintenanceHandler) CreateTypicalStep(c *gin.Context) {
	var req createTypicalStepRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "步骤名称不能为空")
		return
	}
	step, err := h.svc.CreateTypicalStep(c.Request.Context(), GetActor(c), req.Name, req.Description, req.SortOrder)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	Created(c, step)
}
