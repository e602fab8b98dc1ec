package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"console-checkout/biz/models"
	"console-checkout/conf"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var (
	client     *redis.Client
	clientOnce sync.Once
)

// Init 初始化 Redis 连接
func Init() error {
	var err error
	clientOnce.Do(func() {
		cfg := conf.GetConf()

		// 如果 Redis 未配置，跳过初始化
		if cfg.Redis.Address == "" {
			zap.L().Info("Redis not configured, caching disabled")
			return
		}

		client = redis.NewClient(&redis.Options{
			Addr:         fmt.Sprintf("%s:%d", cfg.Redis.Address, cfg.Redis.Port),
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			DialTimeout:  time.Duration(cfg.Redis.DialTimeout) * time.Second,
			ReadTimeout:  time.Duration(cfg.Redis.ReadTimeout) * time.Second,
			WriteTimeout: time.Duration(cfg.Redis.WriteTimeout) * time.Second,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
		})

		// 测试连接
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err = client.Ping(ctx).Err(); err != nil {
			zap.L().Warn("Failed to connect to Redis, caching disabled", zap.Error(err))
			client = nil
			err = nil
			return
		}

		zap.L().Info("Redis connected successfully",
			zap.String("address", fmt.Sprintf("%s:%d", cfg.Redis.Address, cfg.Redis.Port)),
			zap.Int("db", cfg.Redis.DB))
	})
	return err
}

// Close 关闭 Redis 连接
func Close() error {
	if client != nil {
		return client.Close()
	}
	return nil
}

// IsAvailable 检查 Redis 是否可用
func IsAvailable() bool {
	return client != nil
}

// GetClient 获取 Redis 客户端（用于高级操作）
func GetClient() *redis.Client {
	return client
}

// Ping 健康检查
func Ping(ctx context.Context) error {
	if client == nil {
		return errors.New("redis not configured")
	}
	return client.Ping(ctx).Err()
}

// 缓存键前缀
const (
	ProductKeyPrefix     = "product:"
	PricingKeyPrefix     = "pricing:"
	PlanKeyPrefix        = "plan:"
	SigninTableKeyPrefix = "signin_table:"
)

// 默认缓存过期时间
const (
	DefaultProductTTL     = 5 * time.Minute
	DefaultPricingTTL     = 10 * time.Minute
	DefaultSigninTableTTL = 30 * time.Minute
)

// Observe Redis 操作的指标回调，由 common 包注册
var Observe = func(operation, status string, duration time.Duration) {}

func observe(operation string, start time.Time, err error) {
	status := "success"
	switch {
	case err == redis.Nil:
		status = "miss"
	case err != nil:
		status = "error"
	}
	Observe(operation, status, time.Since(start))
}

// Key 生成 owner/name 形式的缓存键
func Key(prefix, owner, name string) string {
	return prefix + owner + "/" + name
}

func getJSON(ctx context.Context, key string, v interface{}) (bool, error) {
	start := time.Now()
	val, err := client.Get(ctx, key).Bytes()
	observe("get", start, err)
	if err == redis.Nil {
		return false, nil // 缓存未命中
	}
	if err != nil {
		zap.L().Warn("Failed to get cache", zap.Error(err), zap.String("key", key))
		return false, err
	}
	if err := json.Unmarshal(val, v); err != nil {
		zap.L().Warn("Failed to unmarshal cache", zap.Error(err), zap.String("key", key))
		return false, err
	}
	return true, nil
}

func setJSON(ctx context.Context, key string, v interface{}, ttl time.Duration) error {
	val, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal cache %s: %w", key, err)
	}
	start := time.Now()
	err = client.Set(ctx, key, val, ttl).Err()
	observe("set", start, err)
	if err != nil {
		zap.L().Warn("Failed to set cache", zap.Error(err), zap.String("key", key))
		return err
	}
	zap.L().Debug("Cached", zap.String("key", key), zap.Duration("ttl", ttl))
	return nil
}

// Delete 删除缓存键
func Delete(ctx context.Context, keys ...string) error {
	if !IsAvailable() || len(keys) == 0 {
		return nil
	}
	start := time.Now()
	err := client.Del(ctx, keys...).Err()
	observe("del", start, err)
	if err != nil {
		zap.L().Warn("Failed to delete cache", zap.Error(err), zap.Strings("keys", keys))
		return err
	}
	return nil
}

// GetProduct 从缓存获取商品，未命中时返回 nil, nil
func GetProduct(ctx context.Context, owner, name string) (*models.Product, error) {
	if !IsAvailable() {
		return nil, nil
	}
	var p models.Product
	ok, err := getJSON(ctx, Key(ProductKeyPrefix, owner, name), &p)
	if !ok || err != nil {
		return nil, err
	}
	return &p, nil
}

// SetProduct 缓存商品（包含支付渠道对象）
func SetProduct(ctx context.Context, p *models.Product, ttl time.Duration) error {
	if !IsAvailable() {
		return nil
	}
	return setJSON(ctx, Key(ProductKeyPrefix, p.Owner, p.Name), p, ttl)
}

// GetPricing 从缓存获取定价
func GetPricing(ctx context.Context, owner, name string) (*models.Pricing, error) {
	if !IsAvailable() {
		return nil, nil
	}
	var p models.Pricing
	ok, err := getJSON(ctx, Key(PricingKeyPrefix, owner, name), &p)
	if !ok || err != nil {
		return nil, err
	}
	return &p, nil
}

// SetPricing 缓存定价
func SetPricing(ctx context.Context, p *models.Pricing, ttl time.Duration) error {
	if !IsAvailable() {
		return nil
	}
	return setJSON(ctx, Key(PricingKeyPrefix, p.Owner, p.Name), p, ttl)
}

// GetPlan 从缓存获取套餐
func GetPlan(ctx context.Context, owner, name string) (*models.Plan, error) {
	if !IsAvailable() {
		return nil, nil
	}
	var p models.Plan
	ok, err := getJSON(ctx, Key(PlanKeyPrefix, owner, name), &p)
	if !ok || err != nil {
		return nil, err
	}
	return &p, nil
}

// SetPlan 缓存套餐
func SetPlan(ctx context.Context, p *models.Plan, ttl time.Duration) error {
	if !IsAvailable() {
		return nil
	}
	return setJSON(ctx, Key(PlanKeyPrefix, p.Owner, p.Name), p, ttl)
}

// GetSigninTable 获取应用登录项表格的原始 JSON，未命中时返回 nil, nil
func GetSigninTable(ctx context.Context, owner, application string) ([]byte, error) {
	if !IsAvailable() {
		return nil, nil
	}
	key := Key(SigninTableKeyPrefix, owner, application)
	start := time.Now()
	val, err := client.Get(ctx, key).Bytes()
	observe("get", start, err)
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		zap.L().Warn("Failed to get signin table cache", zap.Error(err), zap.String("key", key))
		return nil, err
	}
	return val, nil
}

// SetSigninTable 缓存应用登录项表格的原始 JSON
func SetSigninTable(ctx context.Context, owner, application string, raw []byte, ttl time.Duration) error {
	if !IsAvailable() {
		return nil
	}
	key := Key(SigninTableKeyPrefix, owner, application)
	start := time.Now()
	err := client.Set(ctx, key, raw, ttl).Err()
	observe("set", start, err)
	if err != nil {
		zap.L().Warn("Failed to set signin table cache", zap.Error(err), zap.String("key", key))
		return err
	}
	return nil
}

// InvalidateSigninTable 使应用登录项表格缓存失效
func InvalidateSigninTable(ctx context.Context, owner, application string) error {
	return Delete(ctx, Key(SigninTableKeyPrefix, owner, application))
}
