package handler

import (
	"errors"
	"strconv"

	"github.com/bitfantasy/nimo-eam/internal/config"
	"github.com/bitfantasy/nimo-eam/internal/eam/service"
	"github.com/gin-gonic/gin"
)

// Handlers 处理器集合
type Handlers struct {
	Auth         *AuthHandler
	User         *UserHandler
	Item         *ItemHandler
	Maintenance  *MaintenanceHandler
	Handoff      *HandoffHandler
	Request      *RequestHandler
	Provisioning *ProvisioningHandler
	RefData      *RefDataHandler
	Attachment   *AttachmentHandler
}

// NewHandlers 创建处理器集合
func NewHandlers(svc *service.Services, cfg *config.Config) *Handlers {
	return &Handlers{
		Auth:         NewAuthHandler(svc.Auth),
		User:         NewUserHandler(svc.User),
		Item:         NewItemHandler(svc.Ledger, svc.Provisioning),
		Maintenance:  NewMaintenanceHandler(svc.Maintenance),
		Handoff:      NewHandoffHandler(svc.Handoff),
		Request:      NewRequestHandler(svc.Allocation),
		Provisioning: NewProvisioningHandler(svc.Provisioning),
		RefData:      NewRefDataHandler(svc.RefData),
		Attachment:   NewAttachmentHandler(svc.Attachment),
	}
}

// Response 通用响应结构
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// Pagination 分页信息
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

// Success 成功响应
func Success(c *gin.Context, data interface{}) {
	c.JSON(200, Response{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

// Created 创建成功响应
func Created(c *gin.Context, data interface{}) {
	c.JSON(201, Response{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

// Error 错误响应
func Error(c *gin.Context, code int, message string) {
	statusCode := code / 100
	if statusCode < 100 || statusCode > 599 {
		statusCode = 500
	}
	c.JSON(statusCode, Response{
		Code:    code,
		Message: message,
	})
}

// BadRequest 参数错误响应
func BadRequest(c *gin.Context, message string) {
	Error(c, 40000, message)
}

// Unauthorized 未授权响应
func Unauthorized(c *gin.Context, message string) {
	Error(c, 40100, message)
}

// Forbidden 禁止访问响应
func Forbidden(c *gin.Context, message string) {
	Error(c, 40300, message)
}

// NotFound 资源不存在响应
func NotFound(c *gin.Context, message string) {
	Error(c, 40400, message)
}

// Conflict 状态冲突响应
func Conflict(c *gin.Context, message string) {
	Error(c, 40900, message)
}

// InternalError 服务器错误响应
func InternalError(c *gin.Context, message string) {
	Error(c, 50000, message)
}

// HandleServiceError 按服务层错误类型返回对应响应
func HandleServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrValidation):
		BadRequest(c, err.Error())
	case errors.Is(err, service.ErrInvalidCredentials), errors.Is(err, service.ErrInvalidToken):
		Unauthorized(c, err.Error())
	case errors.Is(err, service.ErrPermissionDenied), errors.Is(err, service.ErrUserDisabled):
		Forbidden(c, err.Error())
	case errors.Is(err, service.ErrNotFound):
		NotFound(c, err.Error())
	case errors.Is(err, service.ErrAllocationConflict):
		Error(c, 40901, err.Error())
	case errors.Is(err, service.ErrStateConflict):
		Conflict(c, err.Error())
	case errors.Is(err, service.ErrStorageUnavailable):
		Error(c, 50300, err.Error())
	default:
		InternalError(c, err.Error())
	}
}

// GetUserID 从上下文获取用户ID
func GetUserID(c *gin.Context) string {
	userID, _ := c.Get("user_id")
	if id, ok := userID.(string); ok {
		return id
	}
	return ""
}

// GetActor 从上下文构造操作者
func GetActor(c *gin.Context) service.Actor {
	actor := service.Actor{ID: GetUserID(c)}
	if roles, exists := c.Get("roles"); exists {
		if rs, ok := roles.([]string); ok {
			actor.Roles = rs
		}
	}
	return actor
}

// GetPagination 从请求获取分页参数
func GetPagination(c *gin.Context) (page, pageSize int) {
	page = 1
	pageSize = 20

	if p := c.Query("page"); p != "" {
		if v, err := strconv.Atoi(p); err == nil && v > 0 {
			page = v
		}
	}

	if ps := c.Query("page_size"); ps != "" {
		if v, err := strconv.Atoi(ps); err == nil && v > 0 && v <= 100 {
			pageSize = v
		}
	}

	return page, pageSize
}

// ============================================================
// User Handler
// ============================================================

type UserHandler struct {
	svc *service.UserService
}

func NewUserHandler(svc *service.UserService) *UserHandler {
	return &UserHandler{svc: svc}
}

func (h *UserHandler) List(c *gin.Context) {
	users, err := h.svc.ListAll(c.Request.Context())
	if err != nil {
		InternalError(c, "获取用户列表失败: "+err.Error())
		return
	}
	Success(c, gin.H{"items": users})
}

func (h *UserHandler) Get(c *gin.Context) {
	user, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	Success(c, user)
}

// Search 搜索用户（按名字模糊匹配）
// GET /api/v1/users/search?q=xxx
func (h *UserHandler) Search(c *gin.Context) {
	q := c.Query("q")
	if q == "" {
		BadRequest(c, "搜索关键字不能为空")
		return
	}
	users, err := h.svc.Search(c.Request.Context(), q)
	if err != nil {
		InternalError(c, "搜索用户失败: "+err.Error())
		return
	}
	Success(c, gin.H{"items": users})
}
