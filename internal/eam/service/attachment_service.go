package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/bitfantasy/nimo-eam/internal/eam/entity"
	"github.com/bitfantasy/nimo-eam/internal/eam/repository"
	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
)

// ErrStorageUnavailable 对象存储未配置或不可用
var ErrStorageUnavailable = errors.New("object storage unavailable")

// AttachmentService 维修附件服务（文件存MinIO，元数据存数据库）
type AttachmentService struct {
	maintenanceRepo *repository.MaintenanceRepository
	client          *minio.Client
	bucket          string
}

// NewAttachmentService 创建附件服务
func NewAttachmentService(maintenanceRepo *repository.MaintenanceRepository, client *minio.Client, bucket string) *AttachmentService {
	return &AttachmentService{maintenanceRepo: maintenanceRepo, client: client, bucket: bucket}
}

// Upload 上传附件
func (s *AttachmentService) Upload(ctx context.Context, actor Actor, maintenanceID, fileName, contentType string, size int64, reader io.Reader) (*entity.MaintenanceAttachment, error) {
	if s.client == nil {
		return nil, ErrStorageUnavailable
	}
	if fileName == "" {
		return nil, fmt.Errorf("%w: 文件名不能为空", ErrValidation)
	}
	if _, err := s.maintenanceRepo.FindByID(ctx, maintenanceID); err != nil {
		return nil, err
	}

	id := uuid.New().String()[:32]
	objectKey := fmt.Sprintf("maintenance/%s/%s/%s%s",
		maintenanceID, time.Now().Format("20060102"), id, path.Ext(fileName))

	_, err := s.client.PutObject(ctx, s.bucket, objectKey, reader, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return nil, fmt.Errorf("上传文件失败: %w", err)
	}

	att := &entity.MaintenanceAttachment{
		ID:            id,
		MaintenanceID: maintenanceID,
		FileName:      fileName,
		ObjectKey:     objectKey,
		ContentType:   contentType,
		Size:          size,
		UploadedBy:    actor.ID,
	}
	if err := s.maintenanceRepo.CreateAttachment(ctx, att); err != nil {
		// 元数据写入失败时清理已上传的对象
		_ = s.client.RemoveObject(ctx, s.bucket, objectKey, minio.RemoveObjectOptions{})
		return nil, fmt.Errorf("保存附件记录失败: %w", err)
	}
	return att, nil
}

// Download 下载附件
func (s *AttachmentService) Download(ctx context.Context, id string) (*entity.MaintenanceAttachment, io.ReadCloser, error) {
	if s.client == nil {
		return nil, nil, ErrStorageUnavailable
	}
	att, err := s.maintenanceRepo.FindAttachmentByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	obj, err := s.client.GetObject(ctx, s.bucket, att.ObjectKey, minio.GetObjectOptions{})
	if err != nil {
		return nil, nil, fmt.Errorf("读取文件失败: %w", err)
	}
	return att, obj, nil
}

// PresignedURL 生成附件的临时访问链接
func (s *AttachmentService) PresignedURL(ctx context.Context, id string, expiry time.Duration) (string, error) {
	if s.client == nil {
		return "", ErrStorageUnavailable
	}
	att, err := s.maintenanceRepo.FindAttachmentByID(ctx, id)
	if err != nil {
		return "", err
	}
	u, err := s.client.PresignedGetObject(ctx, s.bucket, att.ObjectKey, expiry, nil)
	if err != nil {
		return "", fmt.Errorf("生成访问链接失败: %w", err)
	}
	return u.String(), nil
}

// List 查询维修单的附件列表
func (s *AttachmentService) List(ctx context.Context, maintenanceID string) ([]entity.MaintenanceAttachment, error) {
	return s.maintenanceRepo.ListAttachments(ctx, maintenanceID)
}
