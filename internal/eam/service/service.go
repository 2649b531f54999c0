package service

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/bitfantasy/nimo-eam/internal/config"
	"github.com/bitfantasy/nimo-eam/internal/eam/entity"
	"github.com/bitfantasy/nimo-eam/internal/eam/repository"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// 错误定义（处理器按此映射响应码）
var (
	// ErrValidation 输入不合法，任何状态都未被修改
	ErrValidation = errors.New("validation failed")
	// ErrPermissionDenied 操作者角色不满足要求
	ErrPermissionDenied = errors.New("permission denied")
	// ErrStateConflict 变迁前置状态已失效（已完成或被并发操作抢先）
	ErrStateConflict = errors.New("state conflict")
	// ErrAllocationConflict 选中的物品在提交时已不再可分配
	ErrAllocationConflict = errors.New("allocation conflict")
	// ErrNotFound 引用的记录不存在
	ErrNotFound = repository.ErrNotFound
)

// Actor 操作者（服务端能力检查的依据，与前端按钮展示无关）
type Actor struct {
	ID    string
	Roles []string
}

// HasAnyRole 检查操作者是否具有任一角色；admin 不受限
func (a Actor) HasAnyRole(roles ...string) bool {
	for _, have := range a.Roles {
		if have == entity.RoleAdmin {
			return true
		}
		for _, want := range roles {
			if have == want {
				return true
			}
		}
	}
	return false
}

// Services 服务集合
type Services struct {
	Auth         *AuthService
	User         *UserService
	Ledger       *LedgerService
	Handoff      *HandoffService
	Allocation   *AllocationService
	Provisioning *ProvisioningService
	Maintenance  *MaintenanceService
	Attachment   *AttachmentService
	RefData      *RefDataService
}

// NewServices 创建服务集合
func NewServices(db *gorm.DB, repos *repository.Repositories, rdb *redis.Client, cfg *config.Config) *Services {
	// 初始化MinIO客户端
	var minioClient *minio.Client
	if cfg.MinIO.Endpoint != "" {
		var err error
		minioClient, err = minio.New(cfg.MinIO.Endpoint, &minio.Options{
			Creds:  credentials.NewStaticV4(cfg.MinIO.AccessKey, cfg.MinIO.SecretKey, ""),
			Secure: cfg.MinIO.UseSSL,
		})
		if err != nil {
			minioClient = nil
		}
	}

	ledgerSvc := NewLedgerService(db, repos.Item, repos.Assignment, repos.Room)

	return &Services{
		Auth:         NewAuthService(repos.User, rdb, cfg),
		User:         NewUserService(repos.User),
		Ledger:       ledgerSvc,
		Handoff:      NewHandoffService(db, repos.Maintenance, repos.Item, repos.Provider, repos.Room),
		Allocation:   NewAllocationService(db, repos.Request, repos.Item, rand.New(rand.NewSource(time.Now().UnixNano()))),
		Provisioning: NewProvisioningService(db, repos.Order, repos.Item, repos.Model, repos.Room),
		Maintenance:  NewMaintenanceService(db, repos.Maintenance, repos.Item),
		Attachment:   NewAttachmentService(repos.Maintenance, minioClient, cfg.MinIO.Bucket),
		RefData:      NewRefDataService(repos.Room, repos.Model, repos.Provider),
	}
}

// UserService 用户服务
type UserService struct {
	repo *repository.UserRepository
}

// NewUserService 创建用户服务
func NewUserService(repo *repository.UserRepository) *UserService {
	return &UserService{repo: repo}
}

// ListAll 获取所有活跃用户
func (s *UserService) ListAll(ctx context.Context) ([]entity.User, error) {
	return s.repo.ListActive(ctx)
}

// Search 搜索用户（按名字/邮箱模糊匹配）
func (s *UserService) Search(ctx context.Context, query string) ([]entity.User, error) {
	return s.repo.Search(ctx, query)
}

// Get 获取用户详情
func (s *UserService) Get(ctx context.Context, id string) (*entity.User, error) {
	return s.repo.FindByID(ctx, id)
}

// RefDataService 基础数据服务（只读为主的简单封装）
type RefDataService struct {
	roomRepo     *repository.RoomRepository
	modelRepo    *repository.ModelRepository
	providerRepo *repository.ProviderRepository
}

// NewRefDataService 创建基础数据服务
func NewRefDataService(roomRepo *repository.RoomRepository, modelRepo *repository.ModelRepository, providerRepo *repository.ProviderRepository) *RefDataService {
	return &RefDataService{roomRepo: roomRepo, modelRepo: modelRepo, providerRepo: providerRepo}
}

// ListRooms 获取房间列表
func (s *RefDataService) ListRooms(ctx context.Context) ([]entity.Room, error) {
	return s.roomRepo.List(ctx)
}

// ListRoomTypes 获取房间类型列表
func (s *RefDataService) ListRoomTypes(ctx context.Context) ([]entity.RoomType, error) {
	return s.roomRepo.ListTypes(ctx)
}

// ListModels 获取型号列表
func (s *RefDataService) ListModels(ctx context.Context, kind string) ([]entity.ItemModel, error) {
	return s.modelRepo.List(ctx, kind)
}

// ListBrands 获取品牌列表
func (s *RefDataService) ListBrands(ctx context.Context) ([]entity.Brand, error) {
	return s.modelRepo.ListBrands(ctx)
}

// ListProviders 获取服务商列表
func (s *RefDataService) ListProviders(ctx context.Context) ([]entity.Provider, error) {
	return s.providerRepo.List(ctx)
}
