package common

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/config"
	"github.com/cloudwego/hertz/pkg/common/ut"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/cloudwego/hertz/pkg/route"
)

func newEngine() *route.Engine {
	return route.NewEngine(config.NewOptions([]config.Option{}))
}

// TestWrapError 测试错误映射
func TestWrapError(t *testing.T) {
	errBusy := errors.New("order busy")
	RegisterError(errBusy, ErrOrderPlacing)

	tests := []struct {
		name     string
		err      error
		wantCode int
	}{
		{"已是 APIError", ErrNotFound, consts.StatusNotFound},
		{"注册的业务错误", fmt.Errorf("submit: %w", errBusy), consts.StatusConflict},
		{"数据库错误", errors.New("sql: no rows"), consts.StatusInternalServerError},
		{"外部服务错误", errors.New("connection refused"), consts.StatusBadGateway},
		{"缺少参数", errors.New("owner is required"), consts.StatusBadRequest},
		{"未知错误", errors.New("boom"), consts.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := WrapError(tt.err); got.Code != tt.wantCode {
				t.Errorf("WrapError(%v).Code = %d, want %d", tt.err, got.Code, tt.wantCode)
			}
		})
	}
}

// TestWithDetailsCopies 测试预定义错误不被修改
func TestWithDetailsCopies(t *testing.T) {
	e := ErrNotFound.WithDetails("product acme/widget")
	if ErrNotFound.Details != "" {
		t.Error("Predefined error was modified")
	}
	if e.Details != "product acme/widget" || e.Code != ErrNotFound.Code {
		t.Errorf("Unexpected copy %+v", e)
	}
}

// TestSanitizeError 测试生产环境移除敏感信息
func TestSanitizeError(t *testing.T) {
	IsDevelopment = false
	got := sanitizeError(errors.New("dial failed\npassword=secret"))
	if got != "dial failed" {
		t.Errorf("sanitizeError() = %q", got)
	}
}

// TestCheckRateLimitMemory 测试内存滑动窗口
func TestCheckRateLimitMemory(t *testing.T) {
	key := getRateLimitKey("test:"+time.Now().String(), "/api/buy-product")
	for i := 1; i <= 3; i++ {
		exceeded, count := checkRateLimitMemory(key, 3, time.Minute)
		if exceeded || count != i {
			t.Fatalf("request %d: exceeded=%v count=%d", i, exceeded, count)
		}
	}
	if exceeded, _ := checkRateLimitMemory(key, 3, time.Minute); !exceeded {
		t.Error("Expected fourth request to be limited")
	}
}

// TestIsWhitelisted 测试白名单
func TestIsWhitelisted(t *testing.T) {
	whitelist := []string{"127.0.0.1", "10.0.0.0/8"}
	tests := []struct {
		ip   string
		want bool
	}{
		{"127.0.0.1", true},
		{"10.1.2.3", true},
		{"192.168.1.1", false},
		{"not-an-ip", false},
	}

	for _, tt := range tests {
		t.Run(tt.ip, func(t *testing.T) {
			if got := isWhitelisted(tt.ip, whitelist); got != tt.want {
				t.Errorf("isWhitelisted(%q) = %v, want %v", tt.ip, got, tt.want)
			}
		})
	}
}

// TestAdminAuthMiddleware 测试管理员认证
func TestAdminAuthMiddleware(t *testing.T) {
	InitAuth([]string{"user-key-123456"}, []string{"admin-key-123456"})
	defer InitAuth(nil, nil)

	r := newEngine()
	r.GET("/admin", AdminAuthMiddleware(), func(ctx context.Context, c *app.RequestContext) {
		c.String(consts.StatusOK, "ok")
	})

	tests := []struct {
		name     string
		headers  []ut.Header
		wantCode int
	}{
		{"缺少 key", nil, consts.StatusUnauthorized},
		{"普通 key", []ut.Header{{Key: "X-API-Key", Value: "user-key-123456"}}, consts.StatusForbidden},
		{"管理员 key", []ut.Header{{Key: "X-API-Key", Value: "admin-key-123456"}}, consts.StatusOK},
		{"Bearer 管理员 key", []ut.Header{{Key: "Authorization", Value: "Bearer admin-key-123456"}}, consts.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := ut.PerformRequest(r, consts.MethodGet, "/admin", nil, tt.headers...)
			if got := w.Result().StatusCode(); got != tt.wantCode {
				t.Errorf("status = %d, want %d", got, tt.wantCode)
			}
		})
	}
}

// TestAuthMiddlewareOptional 测试未配置 API Key 时放行
func TestAuthMiddlewareOptional(t *testing.T) {
	InitAuth(nil, nil)

	r := newEngine()
	r.GET("/api/v1/x", AuthMiddleware(), func(ctx context.Context, c *app.RequestContext) {
		c.String(consts.StatusOK, "ok")
	})

	w := ut.PerformRequest(r, consts.MethodGet, "/api/v1/x", nil)
	if got := w.Result().StatusCode(); got != consts.StatusOK {
		t.Errorf("status = %d, want 200", got)
	}
}

// TestSendEnvelope 测试控制台响应信封
func TestSendEnvelope(t *testing.T) {
	r := newEngine()
	r.GET("/ok", func(ctx context.Context, c *app.RequestContext) { SendOK(c, map[string]string{"name": "widget"}) })
	r.GET("/err", func(ctx context.Context, c *app.RequestContext) { SendStatusError(c, "not found") })

	var body struct {
		Status string            `json:"status"`
		Msg    string            `json:"msg"`
		Data   map[string]string `json:"data"`
	}

	w := ut.PerformRequest(r, consts.MethodGet, "/ok", nil)
	if err := json.Unmarshal(w.Result().Body(), &body); err != nil {
		t.Fatalf("Unmarshal error = %v", err)
	}
	if body.Status != "ok" || body.Data["name"] != "widget" {
		t.Errorf("Unexpected body %+v", body)
	}

	w = ut.PerformRequest(r, consts.MethodGet, "/err", nil)
	if w.Result().StatusCode() != consts.StatusOK {
		t.Error("Envelope errors should use HTTP 200")
	}
	body.Data = nil
	if err := json.Unmarshal(w.Result().Body(), &body); err != nil {
		t.Fatalf("Unmarshal error = %v", err)
	}
	if body.Status != "error" || body.Msg != "not found" {
		t.Errorf("Unexpected body %+v", body)
	}
}

// TestShutdownManagerRunsOnce 测试关闭函数只执行一次
func TestShutdownManagerRunsOnce(t *testing.T) {
	sm := NewShutdownManager(nil)
	calls := 0
	sm.RegisterShutdownFunc(CreateShutdownFunc("counter", func() error {
		calls++
		return nil
	}))

	sm.Shutdown(context.Background())
	sm.Shutdown(context.Background())

	if calls != 1 || !sm.IsShuttingDown() {
		t.Errorf("calls = %d, shuttingDown = %v", calls, sm.IsShuttingDown())
	}
}
