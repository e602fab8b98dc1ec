package db

import (
	"context"
	"database/sql"
	"time"

	"go.uber.org/zap"
)

// GetSigninTable 获取应用登录项表格的原始 JSON，不存在时返回 nil, nil
func GetSigninTable(ctx context.Context, owner, application string) ([]byte, error) {
	start := time.Now()
	var raw []byte
	err := DB.QueryRowContext(ctx,
		`SELECT items FROM signin_table WHERE owner = ? AND application = ? LIMIT 1`,
		owner, application).Scan(&raw)
	observe("select", "signin_table", start, err)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		zap.L().Error("Failed to get signin table", zap.Error(err),
			zap.String("owner", owner), zap.String("application", application))
		return nil, err
	}
	return raw, nil
}

// SaveSigninTable 保存应用登录项表格（存在则覆盖）
func SaveSigninTable(ctx context.Context, owner, application string, raw []byte) error {
	query := `INSERT INTO signin_table (owner, application, items, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON DUPLICATE KEY UPDATE items = VALUES(items), updated_at = CURRENT_TIMESTAMP`

	start := time.Now()
	_, err := DB.ExecContext(ctx, query, owner, application, raw)
	observe("upsert", "signin_table", start, err)
	if err != nil {
		zap.L().Error("Failed to save signin table", zap.Error(err),
			zap.String("owner", owner), zap.String("application", application))
		return err
	}

	zap.L().Debug("Signin table saved", zap.String("owner", owner), zap.String("application", application))
	return nil
}
