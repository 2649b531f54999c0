package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bitfantasy/nimo-eam/internal/config"
	"github.com/bitfantasy/nimo-eam/internal/eam/entity"
	"github.com/bitfantasy/nimo-eam/internal/eam/repository"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
)

// 认证相关错误
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserDisabled       = errors.New("user disabled")
	ErrInvalidToken       = errors.New("invalid token")
)

// refreshTokenKeyPrefix 刷新令牌在Redis中的键前缀
const refreshTokenKeyPrefix = "token:refresh:"

// AuthService 认证服务
type AuthService struct {
	userRepo *repository.UserRepository
	rdb      *redis.Client
	cfg      *config.Config
}

// NewAuthService 创建认证服务
func NewAuthService(userRepo *repository.UserRepository, rdb *redis.Client, cfg *config.Config) *AuthService {
	return &AuthService{userRepo: userRepo, rdb: rdb, cfg: cfg}
}

// TokenPair 登录成功后返回的令牌对
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

// Login 用户登录
func (s *AuthService) Login(ctx context.Context, username, password string) (*TokenPair, *entity.User, error) {
	user, err := s.userRepo.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, ErrInvalidCredentials
		}
		return nil, nil, err
	}
	if user.Status != entity.UserStatusActive {
		return nil, nil, ErrUserDisabled
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, nil, ErrInvalidCredentials
	}

	pair, err := s.issueTokens(ctx, user)
	if err != nil {
		return nil, nil, err
	}

	now := time.Now()
	user.LastLoginAt = &now
	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, nil, err
	}
	return pair, user, nil
}

// Refresh 用刷新令牌换取新的令牌对
// 旧刷新令牌立即失效，同一令牌不能换取两次。
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	claims, err := s.parseToken(refreshToken)
	if err != nil {
		return nil, ErrInvalidToken
	}
	jti, _ := claims["jti"].(string)
	sub, _ := claims["sub"].(string)
	if jti == "" || sub == "" {
		return nil, ErrInvalidToken
	}

	key := refreshTokenKeyPrefix + jti
	storedUserID, err := s.rdb.GetDel(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}
	if storedUserID != sub {
		return nil, ErrInvalidToken
	}

	user, err := s.userRepo.FindByID(ctx, sub)
	if err != nil {
		return nil, ErrInvalidToken
	}
	if user.Status != entity.UserStatusActive {
		return nil, ErrUserDisabled
	}
	return s.issueTokens(ctx, user)
}

// Logout 注销：删除刷新令牌
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	claims, err := s.parseToken(refreshToken)
	if err != nil {
		return nil // 无效令牌视为已注销
	}
	jti, _ := claims["jti"].(string)
	if jti == "" {
		return nil
	}
	return s.rdb.Del(ctx, refreshTokenKeyPrefix+jti).Err()
}

// CurrentUser 查询当前登录用户
func (s *AuthService) CurrentUser(ctx context.Context, userID string) (*entity.User, error) {
	return s.userRepo.FindByID(ctx, userID)
}

// ChangePassword 修改密码
func (s *AuthService) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	if len(newPassword) < 8 {
		return fmt.Errorf("%w: 新密码长度至少8位", ErrValidation)
	}
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(oldPassword)); err != nil {
		return ErrInvalidCredentials
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	user.PasswordHash = string(hash)
	return s.userRepo.Update(ctx, user)
}

// HashPassword 生成密码哈希（建用户时使用）
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// issueTokens 签发访问令牌和刷新令牌
func (s *AuthService) issueTokens(ctx context.Context, user *entity.User) (*TokenPair, error) {
	now := time.Now()
	accessJTI := uuid.New().String()
	accessClaims := jwt.MapClaims{
		"sub":   user.ID,
		"uid":   user.ID,
		"name":  user.Name,
		"email": user.Email,
		"roles": user.RoleCodes,
		"iss":   s.cfg.JWT.Issuer,
		"iat":   now.Unix(),
		"exp":   now.Add(s.cfg.JWT.AccessTokenExpire).Unix(),
		"jti":   accessJTI,
	}
	accessToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, accessClaims).
		SignedString([]byte(s.cfg.JWT.Secret))
	if err != nil {
		return nil, fmt.Errorf("签发访问令牌失败: %w", err)
	}

	refreshJTI := uuid.New().String()
	refreshClaims := jwt.MapClaims{
		"sub": user.ID,
		"iss": s.cfg.JWT.Issuer,
		"iat": now.Unix(),
		"exp": now.Add(s.cfg.JWT.RefreshTokenExpire).Unix(),
		"jti": refreshJTI,
	}
	refreshToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, refreshClaims).
		SignedString([]byte(s.cfg.JWT.Secret))
	if err != nil {
		return nil, fmt.Errorf("签发刷新令牌失败: %w", err)
	}

	if err := s.rdb.Set(ctx, refreshTokenKeyPrefix+refreshJTI, user.ID, s.cfg.JWT.RefreshTokenExpire).Err(); err != nil {
		return nil, fmt.Errorf("保存刷新令牌失败: %w", err)
	}

	return &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(s.cfg.JWT.AccessTokenExpire.Seconds()),
	}, nil
}

// parseToken 解析并校验令牌
func (s *AuthService) parseToken(tokenString string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(s.cfg.JWT.Secret), nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
