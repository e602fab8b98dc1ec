package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"console-checkout/biz/models"

	"github.com/redis/go-redis/v9"
)

// TestKey 测试缓存键格式
func TestKey(t *testing.T) {
	if got := Key(ProductKeyPrefix, "acme", "widget"); got != "product:acme/widget" {
		t.Errorf("Key() = %q", got)
	}
	if got := Key(SigninTableKeyPrefix, "acme", "app"); got != "signin_table:acme/app" {
		t.Errorf("Key() = %q", got)
	}
}

// TestUnavailable 测试未配置 Redis 时缓存操作均为空操作
func TestUnavailable(t *testing.T) {
	if IsAvailable() {
		t.Skip("Redis client initialized, skipping degraded-mode test")
	}
	ctx := context.Background()

	if p, err := GetProduct(ctx, "acme", "widget"); p != nil || err != nil {
		t.Errorf("GetProduct() = %v, %v", p, err)
	}
	if err := SetProduct(ctx, &models.Product{Owner: "acme", Name: "widget"}, DefaultProductTTL); err != nil {
		t.Errorf("SetProduct() error = %v", err)
	}
	if raw, err := GetSigninTable(ctx, "acme", "app"); raw != nil || err != nil {
		t.Errorf("GetSigninTable() = %v, %v", raw, err)
	}
	if err := InvalidateSigninTable(ctx, "acme", "app"); err != nil {
		t.Errorf("InvalidateSigninTable() error = %v", err)
	}
	if err := Ping(ctx); err == nil {
		t.Error("Expected Ping to fail without a client")
	}
}

// TestObserve 测试 Redis 操作结果的指标状态
func TestObserve(t *testing.T) {
	var got []string
	prev := Observe
	Observe = func(operation, status string, duration time.Duration) {
		got = append(got, operation+":"+status)
	}
	defer func() { Observe = prev }()

	start := time.Now()
	observe("get", start, nil)
	observe("get", start, redis.Nil)
	observe("set", start, errors.New("i/o timeout"))

	want := []string{"get:success", "get:miss", "set:error"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
