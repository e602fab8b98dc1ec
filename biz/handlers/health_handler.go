package handlers

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// HealthResponse 健康检查响应结构
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Version   string            `json:"version"`
	Uptime    string            `json:"uptime"`
	Services  map[string]string `json:"services"`
}

var (
	startTime = time.Now()
	version   = "1.0.0" // 可以通过构建时注入：-ldflags "-X console-checkout/biz/handlers.version=1.0.0"
)

// Ping 存活检查
func Ping(ctx context.Context, c *app.RequestContext) {
	c.JSON(consts.StatusOK, map[string]string{"message": "pong"})
}

// HealthCheck 健康检查处理器，各依赖并发探测
func HealthCheck(ctx context.Context, c *app.RequestContext) {
	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now(),
		Version:   version,
		Uptime:    formatUptime(time.Since(startTime)),
		Services:  make(map[string]string),
	}

	checks := getDeps().HealthChecks
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)

	checkCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var mu sync.Mutex
	var g errgroup.Group
	for _, name := range names {
		name, check := name, checks[name]
		g.Go(func() error {
			err := check(checkCtx)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				response.Services[name] = "unavailable"
				zap.L().Error("Health check failed", zap.String("service", name), zap.Error(err))
				return fmt.Errorf("%s: %w", name, err)
			}
			response.Services[name] = "ok"
			return nil
		})
	}

	statusCode := consts.StatusOK
	if err := g.Wait(); err != nil {
		response.Status = "unhealthy"
		statusCode = consts.StatusServiceUnavailable
	}

	c.JSON(statusCode, response)
}

// formatUptime 格式化运行时间
func formatUptime(duration time.Duration) string {
	days := int(duration.Hours() / 24)
	hours := int(duration.Hours()) % 24
	minutes := int(duration.Minutes()) % 60
	seconds := int(duration.Seconds()) % 60

	if days > 0 {
		return fmt.Sprintf("%dd%dh%dm%ds", days, hours, minutes, seconds)
	}
	if hours > 0 {
		return fmt.Sprintf("%dh%dm%ds", hours, minutes, seconds)
	}
	if minutes > 0 {
		return fmt.Sprintf("%dm%ds", minutes, seconds)
	}
	return fmt.Sprintf("%ds", seconds)
}
