package main

import (
	"context"
	"fmt"
	"time"

	"console-checkout/biz/checkout"
	"console-checkout/biz/handlers"
	"console-checkout/biz/services"
	"console-checkout/biz/signin"
	"console-checkout/cache"
	"console-checkout/common"
	"console-checkout/conf"
	"console-checkout/db"

	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/hlog"
	"github.com/hertz-contrib/cors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	// 初始化配置
	if err := conf.Init(); err != nil {
		panic(err)
	}

	// 初始化日志
	initLogger()

	cfg := conf.GetConf()
	common.IsDevelopment = cfg.Log.Environment != "production"

	// 初始化数据库（未配置时跳过，远程模式下可不配置）
	dbInitialized := false
	if err := db.Init(); err != nil {
		zap.L().Warn("Failed to initialize database", zap.Error(err))
		zap.L().Warn("Application will continue without database support")
	} else {
		dbInitialized = db.IsAvailable()
	}

	// 初始化 Redis 缓存
	cacheInitialized := false
	if err := cache.Init(); err != nil {
		zap.L().Warn("Failed to initialize Redis cache", zap.Error(err))
		zap.L().Warn("Application will continue without cache support")
	} else {
		cacheInitialized = cache.IsAvailable()
	}

	common.InitAuth(cfg.Auth.APIKeys, cfg.Auth.AdminAPIKeys)
	signin.SetPlaceholderName(cfg.Checkout.PlaceholderName)

	deps, err := buildDependencies(cfg, dbInitialized, cacheInitialized)
	if err != nil {
		zap.L().Fatal("Failed to build checkout backend", zap.Error(err))
	}
	handlers.Setup(deps)

	h := server.Default(
		server.WithHostPorts(cfg.Server.Host + ":" + cfg.Server.Port),
	)

	h.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Authorization", "Accept", "X-API-Key"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	// 监控指标中间件放在前面，以便记录所有请求
	h.Use(common.MetricsMiddleware())
	h.Use(common.RequestLogger())
	h.Use(common.RecoveryHandler())
	h.Use(common.RateLimitMiddleware())
	// 处理 c.Errors，中间件只对之后注册的路由生效
	h.Use(common.ErrorHandler())

	registerRoutes(h)

	setupGracefulShutdown(h, dbInitialized, cacheInitialized)

	zap.L().Info("Server starting",
		zap.String("host", cfg.Server.Host),
		zap.String("port", cfg.Server.Port),
		zap.Bool("remote_backend", cfg.IsRemote()))

	// Spin 阻塞直到收到 SIGINT/SIGTERM，关闭钩子中释放资源
	h.Spin()

	zap.L().Info("Server stopped")
	_ = zap.L().Sync()
}

// buildDependencies 按配置选择后端：配置了 Casdoor endpoint 时走远程接口，否则使用本地商品库
func buildDependencies(cfg *conf.Config, dbInitialized, cacheInitialized bool) (handlers.Dependencies, error) {
	checks := make(map[string]func(context.Context) error)
	if dbInitialized {
		checks["database"] = db.Ping
	}
	if cacheInitialized {
		checks["redis"] = cache.Ping
	}

	d := handlers.Dependencies{
		Tables:        services.NewSigninTableService(services.NewDBStore()),
		QRCodeRoute:   cfg.Checkout.QRCodeRoute,
		StaticBaseURL: cfg.Checkout.StaticBaseURL,
		HealthChecks:  checks,
	}
	if d.QRCodeRoute == "" {
		d.QRCodeRoute = checkout.DefaultQRCodeRoute
	}

	if cfg.IsRemote() {
		remote, err := services.NewRemoteBackend(
			cfg.Casdoor.Endpoint,
			cfg.Casdoor.ClientID,
			cfg.Casdoor.ClientSecret,
			time.Duration(cfg.Casdoor.Timeout)*time.Second,
		)
		if err != nil {
			return d, err
		}
		d.Backend = remote
		d.Payments = remote
		checks["casdoor"] = remote.Ping
		zap.L().Info("Using remote checkout backend", zap.String("endpoint", cfg.Casdoor.Endpoint))
		return d, nil
	}

	gateways := services.NewGateways(context.Background(), cfg)
	store := services.NewStoreService(cfg, services.NewDBStore(), gateways)
	d.Backend = store
	d.Payments = store
	zap.L().Info("Using local checkout backend", zap.Int("gateways", len(gateways)))
	return d, nil
}

// setupGracefulShutdown 把资源释放挂到服务器的关闭钩子上
func setupGracefulShutdown(h *server.Hertz, dbInitialized, cacheInitialized bool) *common.ShutdownManager {
	shutdownManager := common.NewShutdownManager(h)

	if dbInitialized {
		shutdownManager.RegisterShutdownFunc(common.CreateShutdownFunc("database", func() error {
			zap.L().Info("Closing database connections...")
			return db.Close()
		}))
	}

	if cacheInitialized {
		shutdownManager.RegisterShutdownFunc(common.CreateShutdownFunc("redis", func() error {
			zap.L().Info("Closing Redis connections...")
			return cache.Close()
		}))
	}

	return shutdownManager
}

func registerRoutes(h *server.Hertz) {
	h.GET("/ping", handlers.Ping)
	h.GET("/health", handlers.HealthCheck)
	h.GET("/metrics", common.MetricsHandler)

	// 控制台兼容接口
	api := h.Group("/api")
	api.Use(common.AuthMiddleware())
	{
		api.GET("/get-product", handlers.GetProduct)
		api.GET("/get-pricing", handlers.GetPricing)
		api.GET("/get-plan", handlers.GetPlan)
		api.GET("/get-payment", handlers.GetPayment)
		api.POST("/buy-product", common.PurchaseRateLimitMiddleware(), handlers.BuyProduct)
	}

	v1 := h.Group("/api/v1")
	v1.Use(common.AuthMiddleware())
	{
		v1.GET("/checkout/:owner", handlers.GetCheckout)
		v1.POST("/checkout/:owner/buy", common.PurchaseRateLimitMiddleware(), handlers.Buy)
		v1.GET("/payments/:owner/:name", handlers.GetPaymentResult)

		// 登录项表格（管理员接口）
		tables := v1.Group("/applications/:owner/:name/signin-table")
		tables.Use(common.AdminAuthMiddleware())
		{
			tables.GET("", handlers.GetSigninTable)
			tables.PUT("", handlers.PutSigninTable)
			tables.POST("/intents", handlers.ApplySigninTableIntent)
			tables.GET("/editor", handlers.GetSigninTableEditor)
		}
	}
}

func initLogger() {
	cfg := conf.GetConf()

	var logger *zap.Logger
	var err error

	env := cfg.Log.Environment
	if env == "" {
		env = "development"
	}

	levelStr := cfg.Log.Level
	if levelStr == "" {
		levelStr = "info"
	}
	logLevel, parseErr := zapcore.ParseLevel(levelStr)
	if parseErr != nil {
		logLevel = zapcore.InfoLevel
	}

	if env == "production" {
		config := zap.NewProductionConfig()
		config.Level = zap.NewAtomicLevelAt(logLevel)

		if cfg.Log.Output == "json" {
			config.Encoding = "json"
		} else {
			config.Encoding = "console"
		}

		config.EncoderConfig.TimeKey = "timestamp"
		config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		config.EncoderConfig.StacktraceKey = "stacktrace"
		config.DisableStacktrace = logLevel > zapcore.ErrorLevel

		logger, err = config.Build()
	} else {
		config := zap.NewDevelopmentConfig()
		config.Level = zap.NewAtomicLevelAt(logLevel)
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder

		logger, err = config.Build()
	}

	if err != nil {
		panic(fmt.Errorf("failed to initialize logger: %w", err))
	}

	zap.ReplaceGlobals(logger)

	// Hertz 日志级别与 zap 保持一致
	var hzLevel hlog.Level
	switch logLevel {
	case zapcore.DebugLevel:
		hzLevel = hlog.LevelDebug
	case zapcore.WarnLevel:
		hzLevel = hlog.LevelWarn
	case zapcore.ErrorLevel:
		hzLevel = hlog.LevelError
	default:
		hzLevel = hlog.LevelInfo
	}
	hlog.SetLevel(hzLevel)

	zap.L().Info("Logger initialized",
		zap.String("environment", env),
		zap.String("level", levelStr),
		zap.String("output", cfg.Log.Output))
}
