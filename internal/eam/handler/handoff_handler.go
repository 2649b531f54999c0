package handler

import (
	"github.com/bitfantasy/nimo-eam/internal/eam/service"
	"github.com/gin-gonic/gin"
)

// HandoffHandler 外修交接处理器
type HandoffHandler struct {
	svc *service.HandoffService
}

// NewHandoffHandler 创建外修交接处理器
func NewHandoffHandler(svc *service.HandoffService) *HandoffHandler {
	return &HandoffHandler{svc: svc}
}

// Get 获取交接记录
// GET /api/v1/handoffs/:id
func (h *HandoffHandler) Get(c *gin.Context) {
	rec, err := h.svc.GetRecord(c.Request.Context(), c.Param("id"))
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	Success(c, gin.H{
		"record": rec,
		"stage":  rec.Stage(),
	})
}

type sendToProviderRequest struct {
	ProviderID string `json:"provider_id" binding:"required"`
	Note       string `json:"note"`
}

// SendToProvider 第一阶段：送出设备
// POST /api/v1/handoffs/:id/send
func (h *HandoffHandler) SendToProvider(c *gin.Context) {
	var req sendToProviderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "服务商不能为空")
		return
	}
	if err := h.svc.SendToProvider(c.Request.Context(), GetActor(c), c.Param("id"), req.ProviderID, req.Note); err != nil {
		HandleServiceError(c, err)
		return
	}
	Success(c, nil)
}

// ConfirmReceivedByProvider 第二阶段：服务商签收
// POST /api/v1/handoffs/:id/provider-received
func (h *HandoffHandler) ConfirmReceivedByProvider(c *gin.Context) {
	if err := h.svc.ConfirmReceivedByProvider(c.Request.Context(), GetActor(c), c.Param("id")); err != nil {
		HandleServiceError(c, err)
		return
	}
	Success(c, nil)
}

// ConfirmSentToCompany 第三阶段：服务商寄回
// POST /api/v1/handoffs/:id/provider-sent
func (h *HandoffHandler) ConfirmSentToCompany(c *gin.Context) {
	if err := h.svc.ConfirmSentToCompany(c.Request.Context(), GetActor(c), c.Param("id")); err != nil {
		HandleServiceError(c, err)
		return
	}
	Success(c, nil)
}

type receiveRequest struct {
	ToRoomID string `json:"to_room_id" binding:"required"`
	Note     string `json:"note"`
}

// ConfirmReceivedByCompany 第四阶段：我方签收
// POST /api/v1/handoffs/:id/receive
func (h *HandoffHandler) ConfirmReceivedByCompany(c *gin.Context) {
	var req receiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "签收房间不能为空")
		return
	}
	if err := h.svc.ConfirmReceivedByCompany(c.Request.Context(), GetActor(c), c.Param("id"), req.ToRoomID, req.Note); err != nil {
		HandleServiceError(c, err)
		return
	}
	Success(c, nil)
}
