package common

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cloudwego/hertz/pkg/app/server"
	"go.uber.org/zap"
)

// ShutdownManager 优雅关闭管理器
//
// Hertz 的 Spin() 自己监听 SIGINT/SIGTERM，停止接收新请求并等待处理中的请求，
// 随后依次调用 OnShutdown 钩子；这里把资源释放函数挂到这些钩子上。
type ShutdownManager struct {
	shutdownFuncs []func(context.Context) error
	mu            sync.Mutex
	shuttingDown  bool
	timeout       time.Duration
}

// NewShutdownManager 创建关闭管理器并挂到服务器的关闭钩子上
func NewShutdownManager(s *server.Hertz) *ShutdownManager {
	sm := &ShutdownManager{
		shutdownFuncs: make([]func(context.Context) error, 0),
		timeout:       30 * time.Second,
	}
	if s != nil {
		s.OnShutdown = append(s.OnShutdown, func(ctx context.Context) {
			sm.Shutdown(ctx)
		})
	}
	return sm
}

// RegisterShutdownFunc 注册关闭函数
func (sm *ShutdownManager) RegisterShutdownFunc(fn func(context.Context) error) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.shutdownFuncs = append(sm.shutdownFuncs, fn)
}

// Shutdown 并发执行已注册的关闭函数，只执行一次
func (sm *ShutdownManager) Shutdown(parent context.Context) {
	sm.mu.Lock()
	if sm.shuttingDown {
		sm.mu.Unlock()
		return
	}
	sm.shuttingDown = true
	shutdownFuncs := make([]func(context.Context) error, len(sm.shutdownFuncs))
	copy(shutdownFuncs, sm.shutdownFuncs)
	sm.mu.Unlock()

	zap.L().Info("Starting graceful shutdown...", zap.Int("count", len(shutdownFuncs)))

	ctx, cancel := context.WithTimeout(parent, sm.timeout)
	defer cancel()

	done := make(chan struct{})
	go func() {
		var wg sync.WaitGroup
		for _, fn := range shutdownFuncs {
			wg.Add(1)
			go func(f func(context.Context) error) {
				defer wg.Done()
				if err := f(ctx); err != nil {
					zap.L().Warn("Shutdown function error", zap.Error(err))
				}
			}(fn)
		}
		wg.Wait()
		close(done)
	}()

	// 等待关闭完成或超时
	select {
	case <-done:
		zap.L().Info("All shutdown functions completed")
	case <-ctx.Done():
		zap.L().Warn("Shutdown timeout exceeded, some functions may not have completed",
			zap.Duration("timeout", sm.timeout))
	}

	_ = zap.L().Sync()
}

// IsShuttingDown 检查是否正在关闭
func (sm *ShutdownManager) IsShuttingDown() bool {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return sm.shuttingDown
}

// CreateShutdownFunc 创建标准的关闭函数
func CreateShutdownFunc(name string, fn func() error) func(context.Context) error {
	return func(ctx context.Context) error {
		zap.L().Info("Executing shutdown function",
			zap.String("name", name))

		done := make(chan error, 1)
		go func() {
			done <- fn()
		}()

		select {
		case err := <-done:
			if err != nil {
				zap.L().Error("Shutdown function failed",
					zap.String("name", name),
					zap.Error(err))
				return fmt.Errorf("%s shutdown failed: %w", name, err)
			}
			zap.L().Info("Shutdown function completed",
				zap.String("name", name))
			return nil
		case <-ctx.Done():
			zap.L().Warn("Shutdown function timeout",
				zap.String("name", name))
			return ctx.Err()
		}
	}
}
