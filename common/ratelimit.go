package common

import (
	"context"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"console-checkout/cache"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RateLimitConfig 速率限制配置
type RateLimitConfig struct {
	Limit  int           // 请求次数限制
	Window time.Duration // 时间窗口
}

// RateLimitStrategy 速率限制策略
type RateLimitStrategy struct {
	Global    RateLimitConfig // 全局限制（按IP）
	Purchase  RateLimitConfig // 下单接口限制（更严格）
	User      RateLimitConfig // 按下单用户限制
	Whitelist []string        // IP 或 CIDR 白名单（不受限制）
}

var (
	// 默认策略
	defaultStrategy = RateLimitStrategy{
		Global: RateLimitConfig{
			Limit:  100, // 每分钟100次
			Window: time.Minute,
		},
		Purchase: RateLimitConfig{
			Limit:  10, // 下单接口每分钟10次
			Window: time.Minute,
		},
		User: RateLimitConfig{
			Limit:  20, // 每个用户每分钟20次下单
			Window: time.Minute,
		},
		Whitelist: []string{"127.0.0.1"},
	}

	// 内存存储（当Redis不可用时使用）
	memoryStore = struct {
		sync.Mutex
		requests map[string][]time.Time
	}{
		requests: make(map[string][]time.Time),
	}
)

// getRateLimitKey 生成速率限制键
func getRateLimitKey(identifier, path string) string {
	return fmt.Sprintf("ratelimit:%s:%s", identifier, path)
}

// getPurchaseUser 下单用户，来自查询串或请求体中的 userName
func getPurchaseUser(c *app.RequestContext) string {
	if user := c.Query("userName"); user != "" {
		return user
	}
	return c.Query("user")
}

// checkRateLimitRedis 使用Redis检查速率限制（有序集合滑动窗口）
func checkRateLimitRedis(ctx context.Context, key string, limit int, window time.Duration) (bool, int, error) {
	client := cache.GetClient()
	if client == nil {
		return false, 0, fmt.Errorf("redis client not available")
	}

	now := time.Now()
	windowStart := now.Add(-window)

	// 先清理窗口外的记录，再计数
	if err := client.ZRemRangeByScore(ctx, key, "0", fmt.Sprintf("%d", windowStart.UnixMilli())).Err(); err != nil {
		zap.L().Warn("Failed to clean expired rate limit records", zap.Error(err))
	}

	start := time.Now()
	count, err := client.ZCard(ctx, key).Result()
	if err != nil {
		RecordRedisOperation("ratelimit", "error", time.Since(start))
		return false, 0, err
	}
	if int(count) >= limit {
		return true, int(count), nil
	}

	err = client.ZAdd(ctx, key, redis.Z{
		Score:  float64(now.UnixMilli()),
		Member: fmt.Sprintf("%d", now.UnixNano()),
	}).Err()
	if err != nil {
		return false, 0, err
	}

	if err := client.Expire(ctx, key, window).Err(); err != nil {
		zap.L().Warn("Failed to set rate limit key expiry", zap.Error(err))
	}
	RecordRedisOperation("ratelimit", "success", time.Since(start))

	return false, int(count) + 1, nil
}

// checkRateLimitMemory 使用内存检查速率限制
func checkRateLimitMemory(key string, limit int, window time.Duration) (bool, int) {
	memoryStore.Lock()
	defer memoryStore.Unlock()

	now := time.Now()
	windowStart := now.Add(-window)

	// 清理过期记录
	validTimes := memoryStore.requests[key][:0]
	for _, t := range memoryStore.requests[key] {
		if t.After(windowStart) {
			validTimes = append(validTimes, t)
		}
	}

	if len(validTimes) >= limit {
		memoryStore.requests[key] = validTimes
		return true, len(validTimes)
	}

	validTimes = append(validTimes, now)
	memoryStore.requests[key] = validTimes
	return false, len(validTimes)
}

// checkLimit Redis 优先，失败时降级到内存
func checkLimit(ctx context.Context, key string, config RateLimitConfig) (bool, int) {
	if cache.IsAvailable() {
		exceeded, count, err := checkRateLimitRedis(ctx, key, config.Limit, config.Window)
		if err == nil {
			return exceeded, count
		}
		zap.L().Warn("Redis rate limit check failed, falling back to memory",
			zap.Error(err),
			zap.String("key", key))
	}
	return checkRateLimitMemory(key, config.Limit, config.Window)
}

// isWhitelisted 检查IP是否在白名单中，支持 CIDR
func isWhitelisted(ip string, whitelist []string) bool {
	parsed := net.ParseIP(ip)
	for _, whiteIP := range whitelist {
		if ip == whiteIP {
			return true
		}
		if strings.Contains(whiteIP, "/") && parsed != nil {
			if _, network, err := net.ParseCIDR(whiteIP); err == nil && network.Contains(parsed) {
				return true
			}
		}
	}
	return false
}

func rejectRateLimited(c *app.RequestContext, config RateLimitConfig, message string) {
	c.Header("X-RateLimit-Limit", fmt.Sprintf("%d", config.Limit))
	c.Header("X-RateLimit-Remaining", "0")
	c.Header("X-RateLimit-Reset", fmt.Sprintf("%d", time.Now().Add(config.Window).Unix()))
	c.Header("Retry-After", fmt.Sprintf("%d", int(config.Window.Seconds())))

	c.JSON(consts.StatusTooManyRequests, utils.H{
		"code":    "RATE_LIMIT_EXCEEDED",
		"message": message,
		"details": fmt.Sprintf("Maximum %d requests per %v allowed", config.Limit, config.Window),
	})
	c.Abort()
}

func setRateLimitHeaders(c *app.RequestContext, config RateLimitConfig, count int) {
	remaining := config.Limit - count
	if remaining < 0 {
		remaining = 0
	}
	c.Header("X-RateLimit-Limit", fmt.Sprintf("%d", config.Limit))
	c.Header("X-RateLimit-Remaining", fmt.Sprintf("%d", remaining))
	c.Header("X-RateLimit-Reset", fmt.Sprintf("%d", time.Now().Add(config.Window).Unix()))
}

// RateLimitMiddleware 全局速率限制中间件（按IP）
func RateLimitMiddleware() app.HandlerFunc {
	return rateLimit(defaultStrategy, defaultStrategy.Global, "ip", false)
}

// PurchaseRateLimitMiddleware 下单接口速率限制（按IP和下单用户，更严格）
func PurchaseRateLimitMiddleware() app.HandlerFunc {
	return rateLimit(defaultStrategy, defaultStrategy.Purchase, "purchase", true)
}

func rateLimit(strategy RateLimitStrategy, config RateLimitConfig, limitType string, perUser bool) app.HandlerFunc {
	return func(ctx context.Context, c *app.RequestContext) {
		path := normalizePath(string(c.Path()))
		clientIP := c.ClientIP()

		// 跳过健康检查端点
		if path == "/ping" || path == "/health" || path == "/metrics" {
			c.Next(ctx)
			return
		}

		if isWhitelisted(clientIP, strategy.Whitelist) {
			c.Next(ctx)
			return
		}

		// 1. 按IP限制
		exceeded, count := checkLimit(ctx, getRateLimitKey(limitType+":"+clientIP, path), config)
		if exceeded {
			RecordRateLimitHit(limitType, path)
			zap.L().Warn("Rate limit exceeded by IP",
				zap.String("ip", clientIP),
				zap.String("path", path),
				zap.Int("count", count),
				zap.Int("limit", config.Limit))
			rejectRateLimited(c, config, "Rate limit exceeded. Please try again later.")
			return
		}

		// 2. 按下单用户限制
		if perUser && strategy.User.Limit > 0 {
			if user := getPurchaseUser(c); user != "" {
				userExceeded, userCount := checkLimit(ctx, getRateLimitKey("user:"+user, path), strategy.User)
				if userExceeded {
					RecordRateLimitHit("user", path)
					zap.L().Warn("Rate limit exceeded by user",
						zap.String("user", user),
						zap.String("ip", clientIP),
						zap.String("path", path),
						zap.Int("count", userCount),
						zap.Int("limit", strategy.User.Limit))
					rejectRateLimited(c, strategy.User, "Rate limit exceeded for this user. Please try again later.")
					return
				}
			}
		}

		setRateLimitHeaders(c, config, count)
		c.Next(ctx)
	}
}
