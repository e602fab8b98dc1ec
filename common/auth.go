package common

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"
	"sync"

	"github.com/cloudwego/hertz/pkg/app"
	"go.uber.org/zap"
)

// AuthConfig 认证配置
type AuthConfig struct {
	APIKeys      []string // 调用 /api/v1 接口的 API Key，为空时这些接口不校验
	AdminAPIKeys []string // 管理员 API Key（登录项表格等管理接口）
	PublicPaths  []string // 公开路径（不需要认证）
}

var (
	authMu     sync.RWMutex
	authConfig = AuthConfig{
		PublicPaths: []string{"/ping", "/health", "/metrics"},
	}
)

// InitAuth 初始化认证配置
func InitAuth(apiKeys, adminKeys []string) {
	authMu.Lock()
	authConfig.APIKeys = append([]string(nil), apiKeys...)
	authConfig.AdminAPIKeys = append([]string(nil), adminKeys...)
	authMu.Unlock()

	zap.L().Info("Auth initialized",
		zap.Int("api_keys_count", len(apiKeys)),
		zap.Int("admin_keys_count", len(adminKeys)),
		zap.Bool("api_key_required", len(apiKeys) > 0))
}

// GenerateAPIKey 生成新的 API Key
func GenerateAPIKey() (string, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate API key: %w", err)
	}
	return base64.URLEncoding.EncodeToString(bytes), nil
}

// IsPublicPath 检查路径是否为公开路径
func IsPublicPath(path string) bool {
	authMu.RLock()
	defer authMu.RUnlock()
	for _, publicPath := range authConfig.PublicPaths {
		if path == publicPath || strings.HasPrefix(path, publicPath+"/") {
			return true
		}
	}
	return false
}

func containsKey(keys []string, apiKey string) bool {
	for _, key := range keys {
		if subtle.ConstantTimeCompare([]byte(key), []byte(apiKey)) == 1 {
			return true
		}
	}
	return false
}

// ValidateAPIKey 验证 API Key
func ValidateAPIKey(apiKey string) bool {
	if apiKey == "" {
		return false
	}
	authMu.RLock()
	defer authMu.RUnlock()
	return containsKey(authConfig.APIKeys, apiKey) || containsKey(authConfig.AdminAPIKeys, apiKey)
}

// ValidateAdminAPIKey 验证管理员 API Key
func ValidateAdminAPIKey(apiKey string) bool {
	if apiKey == "" {
		return false
	}
	authMu.RLock()
	defer authMu.RUnlock()
	return containsKey(authConfig.AdminAPIKeys, apiKey)
}

func apiKeyRequired() bool {
	authMu.RLock()
	defer authMu.RUnlock()
	return len(authConfig.APIKeys) > 0
}

// ExtractAPIKey 从请求中提取 API Key
func ExtractAPIKey(c *app.RequestContext) string {
	// 方式1: 从 X-API-Key Header 获取
	apiKey := string(c.GetHeader("X-API-Key"))
	if apiKey != "" {
		return apiKey
	}

	// 方式2: 从 Authorization Header 获取 (Bearer <token>)
	authHeader := string(c.GetHeader("Authorization"))
	if authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.ToLower(parts[0]) == "bearer" {
			return parts[1]
		}
	}

	return ""
}

// AuthMiddleware 认证中间件，未配置 API Key 时放行
func AuthMiddleware() app.HandlerFunc {
	return func(ctx context.Context, c *app.RequestContext) {
		path := string(c.Path())

		if IsPublicPath(path) || !apiKeyRequired() {
			c.Next(ctx)
			return
		}

		apiKey := ExtractAPIKey(c)
		if apiKey == "" {
			zap.L().Warn("API key missing",
				zap.String("path", path),
				zap.String("ip", c.ClientIP()))
			SendError(c, ErrUnauthorized.WithDetails("API key is required. Please provide X-API-Key header or Authorization: Bearer <api_key>"))
			c.Abort()
			return
		}

		if !ValidateAPIKey(apiKey) {
			zap.L().Warn("Invalid API key",
				zap.String("path", path),
				zap.String("ip", c.ClientIP()),
				zap.String("api_key_prefix", maskAPIKey(apiKey)))
			SendError(c, ErrUnauthorized.WithDetails("Invalid API key"))
			c.Abort()
			return
		}

		c.Set("api_key", apiKey)
		c.Next(ctx)
	}
}

// AdminAuthMiddleware 管理员认证中间件（用于管理员接口），总是校验
func AdminAuthMiddleware() app.HandlerFunc {
	return func(ctx context.Context, c *app.RequestContext) {
		path := string(c.Path())

		apiKey := ExtractAPIKey(c)
		if apiKey == "" {
			zap.L().Warn("Admin API key missing",
				zap.String("path", path),
				zap.String("ip", c.ClientIP()))
			SendError(c, ErrUnauthorized.WithDetails("Admin API key is required"))
			c.Abort()
			return
		}

		if !ValidateAdminAPIKey(apiKey) {
			zap.L().Warn("Invalid admin API key",
				zap.String("path", path),
				zap.String("ip", c.ClientIP()),
				zap.String("api_key_prefix", maskAPIKey(apiKey)))
			SendError(c, ErrForbidden.WithDetails("Admin access required"))
			c.Abort()
			return
		}

		c.Set("api_key", apiKey)

		zap.L().Debug("Admin API key validated",
			zap.String("path", path),
			zap.String("api_key_prefix", maskAPIKey(apiKey)))

		c.Next(ctx)
	}
}

// maskAPIKey 掩码 API Key（用于日志，只显示前4位和后4位）
func maskAPIKey(apiKey string) string {
	if len(apiKey) <= 8 {
		return "****"
	}
	return apiKey[:4] + "..." + apiKey[len(apiKey)-4:]
}
