package handler

import (
	"github.com/bitfantasy/nimo-eam/internal/eam/service"
	"github.com/gin-gonic/gin"
)

// RequestHandler 备件申请处理器
type RequestHandler struct {
	svc *service.AllocationService
}

// NewRequestHandler 创建备件申请处理器
func NewRequestHandler(svc *service.AllocationService) *RequestHandler {
	return &RequestHandler{svc: svc}
}

type createRequestRequest struct {
	Type    string `json:"type" binding:"required"`
	ModelID string `json:"model_id" binding:"required"`
	StepID  string `json:"step_id" binding:"required"`
}

// Create 创建备件申请
// POST /api/v1/requests
func (h *RequestHandler) Create(c *gin.Context) {
	var req createRequestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "类型、型号和维修步骤不能为空")
		return
	}
	r, err := h.svc.Create(c.Request.Context(), GetActor(c), service.CreateInput{
		Type:    req.Type,
		ModelID: req.ModelID,
		StepID:  req.StepID,
	})
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	Created(c, r)
}

// List 查询申请列表
// GET /api/v1/requests?status=&type=
func (h *RequestHandler) List(c *gin.Context) {
	page, size := GetPagination(c)
	list, total, err := h.svc.List(c.Request.Context(), page, size, c.Query("status"), c.Query("type"))
	if err != nil {
		InternalError(c, "获取申请列表失败: "+err.Error())
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

// Get 获取申请详情
// GET /api/v1/requests/:id
func (h *RequestHandler) Get(c *gin.Context) {
	r, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	Success(c, r)
}

// ListEligible 列出申请当前可选的物品
// GET /api/v1/requests/:id/eligible
func (h *RequestHandler) ListEligible(c *gin.Context) {
	items, err := h.svc.ListEligible(c.Request.Context(), c.Param("id"))
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	Success(c, gin.H{"items": items})
}

// SelectRandom 随机挑选一个可选物品
// GET /api/v1/requests/:id/random
func (h *RequestHandler) SelectRandom(c *gin.Context) {
	item, err := h.svc.SelectRandom(c.Request.Context(), c.Param("id"))
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	Success(c, item)
}

type fulfillRequest struct {
	UnitID       string `json:"unit_id" binding:"required"`
	SourceRoomID string `json:"source_room_id" binding:"required"`
	ToRoomID     string `json:"to_room_id" binding:"required"`
	Note         string `json:"note"`
}

// Fulfill 完成申请
// POST /api/v1/requests/:id/fulfill
func (h *RequestHandler) Fulfill(c *gin.Context) {
	var req fulfillRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "物品、来源房间和交付房间不能为空")
		return
	}
	err := h.svc.Fulfill(c.Request.Context(), GetActor(c), service.FulfillInput{
		RequestID:    c.Param("id"),
		UnitID:       req.UnitID,
		SourceRoomID: req.SourceRoomID,
		ToRoomID:     req.ToRoomID,
		Note:         req.Note,
	})
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	Success(c, nil)
}

type rejectRequest struct {
	Note string `json:"note" binding:"required"`
}

// Reject 拒绝申请
// POST /api/v1/requests/:id/reject
func (h *RequestHandler) Reject(c *gin.Context) {
	var req rejectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "拒绝原因不能为空")
		return
	}
	if err := h.svc.Reject(c.Request.Context(), GetActor(c), c.Param("id"), req.Note); err != nil {
		HandleServiceError(c, err)
		return
	}
	Success(c, nil)
}
