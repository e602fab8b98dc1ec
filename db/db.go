package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"console-checkout/common"
	"console-checkout/conf"

	"github.com/go-sql-driver/mysql"
	"go.uber.org/zap"
)

var DB *sql.DB

// 本服务依赖的数据表
var requiredTables = []string{"product", "provider", "pricing", "plan", "payment", "signin_table"}

// DSN 根据配置构建 MySQL DSN
func DSN(cfg *conf.Config) string {
	c := mysql.NewConfig()
	c.User = cfg.Database.User
	c.Passwd = cfg.Database.Password
	c.Net = "tcp"
	c.Addr = fmt.Sprintf("%s:%d", cfg.Database.Host, cfg.Database.Port)
	c.DBName = cfg.Database.Database
	c.ParseTime = true
	c.Loc = time.UTC
	// UPDATE 返回匹配行数，值未变化时也不会误判为不存在
	c.ClientFoundRows = true
	c.Params = map[string]string{"charset": "utf8mb4"}
	return c.FormatDSN()
}

// Init 初始化数据库连接
func Init() error {
	cfg := conf.GetConf()
	if cfg.Database.Host == "" {
		zap.L().Info("Database not configured, local store disabled")
		return nil
	}

	var err error
	DB, err = sql.Open("mysql", DSN(cfg))
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	// 设置连接池参数
	DB.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	DB.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	DB.SetConnMaxLifetime(time.Duration(cfg.Database.ConnMaxLifetime) * time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err = DB.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	if err = checkDatabaseSchema(ctx); err != nil {
		return fmt.Errorf("database schema check failed: %w", err)
	}

	zap.L().Info("Database connected successfully",
		zap.String("host", cfg.Database.Host),
		zap.Int("port", cfg.Database.Port),
		zap.String("database", cfg.Database.Database))

	return nil
}

// checkDatabaseSchema 检查必要的数据表是否存在
func checkDatabaseSchema(ctx context.Context) error {
	cfg := conf.GetConf()

	for _, table := range requiredTables {
		var count int
		err := DB.QueryRowContext(ctx, `SELECT COUNT(*)
			FROM information_schema.tables
			WHERE table_schema = DATABASE() AND table_name = ?`, table).Scan(&count)
		if err != nil {
			return fmt.Errorf("failed to check table %s: %w", table, err)
		}
		if count == 0 {
			return fmt.Errorf("database migration required: table %s does not exist in %s", table, cfg.Database.Database)
		}
	}

	zap.L().Info("Database schema check passed", zap.Strings("tables", requiredTables))
	return nil
}

// IsAvailable 数据库是否已连接
func IsAvailable() bool {
	return DB != nil
}

// Ping 健康检查
func Ping(ctx context.Context) error {
	if DB == nil {
		return errors.New("database not configured")
	}
	return DB.PingContext(ctx)
}

// Close 关闭数据库连接
func Close() error {
	if DB != nil {
		return DB.Close()
	}
	return nil
}

// observe 记录一次查询的耗时与结果
func observe(operation, table string, start time.Time, err error) {
	status := "success"
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		status = "error"
	}
	common.RecordDBQuery(operation, table, status, time.Since(start))
}

// isDuplicateEntry 是否为 MySQL 唯一键冲突
func isDuplicateEntry(err error) bool {
	var mysqlErr *mysql.MySQLError
	return errors.As(err, &mysqlErr) && mysqlErr.Number == 1062
}
