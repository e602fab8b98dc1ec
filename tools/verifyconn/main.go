package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"console-checkout/cache"
	"console-checkout/conf"
	"console-checkout/db"

	"go.uber.org/zap"
)

// 检查 MySQL 与 Redis 的连通性，任一已配置的依赖不可用时以非零状态退出
func main() {
	if err := conf.Init(); err != nil {
		fmt.Printf("❌ 配置初始化失败: %v\n", err)
		os.Exit(1)
	}

	logger, _ := zap.NewDevelopment()
	zap.ReplaceGlobals(logger)

	cfg := conf.GetConf()
	failed := false

	fmt.Println("正在连接 MySQL...")
	switch {
	case cfg.Database.Host == "":
		fmt.Println("⚠️  MySQL 未配置，本地商品库不可用（远程模式下可忽略）")
	case db.Init() != nil:
		fmt.Println("❌ MySQL 连接失败")
		failed = true
	default:
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := db.Ping(ctx); err != nil {
			fmt.Printf("❌ MySQL 连接失败: %v\n", err)
			failed = true
		} else {
			fmt.Println("✅ MySQL 连接成功！")
			fmt.Printf("  地址: %s:%d\n", cfg.Database.Host, cfg.Database.Port)
			fmt.Printf("  数据库: %s\n", cfg.Database.Database)
		}
		cancel()
		_ = db.Close()
	}

	fmt.Println("")
	fmt.Println("正在连接 Redis...")
	if err := cache.Init(); err != nil {
		fmt.Printf("❌ Redis 连接失败: %v\n", err)
		failed = true
	} else if cache.IsAvailable() {
		fmt.Println("✅ Redis 连接成功！")
		fmt.Printf("  地址: %s:%d\n", cfg.Redis.Address, cfg.Redis.Port)
		fmt.Printf("  数据库: %d\n", cfg.Redis.DB)
		fmt.Printf("  连接池大小: %d\n", cfg.Redis.PoolSize)
	} else {
		fmt.Println("⚠️  Redis 未配置或连接失败，缓存功能已禁用")
		if cfg.Redis.Address != "" {
			failed = true
		}
	}
	_ = cache.Close()

	if failed {
		os.Exit(1)
	}
}
