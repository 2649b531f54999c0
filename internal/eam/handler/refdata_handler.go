package handler

import (
	"github.com/bitfantasy/nimo-eam/internal/eam/service"
	"github.com/gin-gonic/gin"
)

// RefDataHandler 基础数据处理器
type RefDataHandler struct {
	svc *service.RefDataService
}

// NewRefDataHandler 创建基础数据处理器
func NewRefDataHandler(svc *service.RefDataService) *RefDataHandler {
	return &RefDataHandler{svc: svc}
}

// ListRooms 查询房间列表
// GET /api/v1/rooms
func (h *RefDataHandler) ListRooms(c *gin.Context) {
	rooms, err := h.svc.ListRooms(c.Request.Context())
	if err != nil {
		InternalError(c, "获取房间列表失败: "+err.Error())
		return
	}
	Success(c, gin.H{"items": rooms})
}

// ListRoomTypes 查询房间类型列表
// GET /api/v1/room-types
func (h *RefDataHandler) ListRoomTypes(c *gin.Context) {
	types, err := h.svc.ListRoomTypes(c.Request.Context())
	if err != nil {
		InternalError(c, "获取房间类型失败: "+err.Error())
		return
	}
	Success(c, gin.H{"items": types})
}

// ListModels 查询型号列表
// GET /api/v1/models?kind=
func (h *RefDataHandler) ListModels(c *gin.Context) {
	models, err := h.svc.ListModels(c.Request.Context(), c.Query("kind"))
	if err != nil {
		InternalError(c, "获取型号列表失败: "+err.Error())
		return
	}
	Success(c, gin.H{"items": models})
}

// ListBrands 查询品牌列表
// GET /api/v1/brands
func (h *RefDataHandler) ListBrands(c *gin.Context) {
	brands, err := h.svc.ListBrands(c.Request.Context())
	if err != nil {
		InternalError(c, "获取品牌列表失败: "+err.Error())
		return
	}
	Success(c, gin.H{"items": brands})
}

// ListProviders 查询服务商列表
// GET /api/v1/providers
func (h *RefDataHandler) ListProviders(c *gin.Context) {
	providers, err := h.svc.ListProviders(c.Request.Context())
	if err != nil {
		InternalError(c, "获取服务商列表失败: "+err.Error())
		return
	}
	Success(c, gin.H{"items": providers})
}
