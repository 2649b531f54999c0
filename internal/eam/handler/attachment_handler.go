package handler

import (
	"io"
	"time"

	"github.com/bitfantasy/nimo-eam/internal/eam/service"
	"github.com/gin-gonic/gin"
)

// AttachmentHandler 维修附件处理器
type AttachmentHandler struct {
	svc *service.AttachmentService
}

// NewAttachmentHandler 创建附件处理器
func NewAttachmentHandler(svc *service.AttachmentService) *AttachmentHandler {
	return &AttachmentHandler{svc: svc}
}

// Upload 上传附件
// POST /api/v1/maintenances/:id/attachments
func (h *AttachmentHandler) Upload(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		BadRequest(c, "缺少上传文件")
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		InternalError(c, "读取上传文件失败: "+err.Error())
		return
	}
	defer file.Close()

	att, err := h.svc.Upload(c.Request.Context(), GetActor(c), c.Param("id"),
		fileHeader.Filename, fileHeader.Header.Get("Content-Type"), fileHeader.Size, file)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	Created(c, att)
}

// List 查询维修单的附件列表
// GET /api/v1/maintenances/:id/attachments
func (h *AttachmentHandler) List(c *gin.Context) {
	list, err := h.svc.List(c.Request.Context(), c.Param("id"))
	if err != nil {
		InternalError(c, "获取附件列表失败: "+err.Error())
		return
	}
	Success(c, gin.H{"items": list})
}

// Download 下载附件
// GET /api/v1/attachments/:id/download
func (h *AttachmentHandler) Download(c *gin.Context) {
	att, reader, err := h.svc.Download(c.Request.Context(), c.Param("id"))
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	defer reader.Close()

	c.Header("Content-Disposition", "attachment; filename="+att.FileName)
	c.Header("Content-Type", att.ContentType)
	c.Status(200)
	_, _ = io.Copy(c.Writer, reader)
}

// PresignedURL 获取附件的临时访问链接
// GET /api/v1/attachments/:id/url
func (h *AttachmentHandler) PresignedURL(c *gin.Context) {
	url, err := h.svc.PresignedURL(c.Request.Context(), c.Param("id"), 15*time.Minute)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	Success(c, gin.H{"url": url})
}
