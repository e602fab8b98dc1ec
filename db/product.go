package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"console-checkout/biz/models"

	"go.uber.org/zap"
)

// GetProduct 根据 owner/name 获取商品，不存在时返回 nil, nil
// 返回的商品不包含支付渠道对象，调用方通过 GetProviders 补全
func GetProduct(ctx context.Context, owner, name string) (*models.Product, error) {
	query := `SELECT owner, name, created_time, display_name, image, detail, description, tag,
		currency, price, quantity, sold, providers, return_url, state
		FROM product
		WHERE owner = ? AND name = ?
		LIMIT 1`

	start := time.Now()
	p := &models.Product{}
	var providers []byte
	err := DB.QueryRowContext(ctx, query, owner, name).Scan(
		&p.Owner,
		&p.Name,
		&p.CreatedTime,
		&p.DisplayName,
		&p.Image,
		&p.Detail,
		&p.Description,
		&p.Tag,
		&p.Currency,
		&p.Price,
		&p.Quantity,
		&p.Sold,
		&providers,
		&p.ReturnUrl,
		&p.State,
	)
	observe("select", "product", start, err)

	if err == sql.ErrNoRows {
		zap.L().Debug("Product not found", zap.String("owner", owner), zap.String("name", name))
		return nil, nil
	}
	if err != nil {
		zap.L().Error("Failed to get product", zap.Error(err), zap.String("owner", owner), zap.String("name", name))
		return nil, err
	}

	if len(providers) > 0 {
		if err := json.Unmarshal(providers, &p.Providers); err != nil {
			return nil, fmt.Errorf("invalid providers of product %s/%s: %w", owner, name, err)
		}
	}
	return p, nil
}

// GetProviders 按名称批量获取支付渠道，结果顺序与 names 一致，缺失的渠道被跳过
func GetProviders(ctx context.Context, owner string, names []string) ([]*models.Provider, error) {
	if len(names) == 0 {
		return nil, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(names)), ",")
	query := `SELECT owner, name, display_name, category, type, logo
		FROM provider
		WHERE owner = ? AND name IN (` + placeholders + `)`

	args := make([]interface{}, 0, len(names)+1)
	args = append(args, owner)
	for _, name := range names {
		args = append(args, name)
	}

	start := time.Now()
	rows, err := DB.QueryContext(ctx, query, args...)
	observe("select", "provider", start, err)
	if err != nil {
		zap.L().Error("Failed to get providers", zap.Error(err), zap.String("owner", owner))
		return nil, err
	}
	defer rows.Close()

	byName := make(map[string]*models.Provider, len(names))
	for rows.Next() {
		pv := &models.Provider{}
		if err := rows.Scan(&pv.Owner, &pv.Name, &pv.DisplayName, &pv.Category, &pv.Type, &pv.Logo); err != nil {
			return nil, err
		}
		byName[pv.Name] = pv
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	providers := make([]*models.Provider, 0, len(names))
	for _, name := range names {
		if pv, ok := byName[name]; ok {
			providers = append(providers, pv)
		} else {
			zap.L().Warn("Provider referenced by product does not exist",
				zap.String("owner", owner),
				zap.String("provider", name))
		}
	}
	return providers, nil
}

// GetPricing 获取定价，不存在时返回 nil, nil
func GetPricing(ctx context.Context, owner, name string) (*models.Pricing, error) {
	query := `SELECT owner, name, display_name, description, plans, is_enabled, application
		FROM pricing
		WHERE owner = ? AND name = ?
		LIMIT 1`

	start := time.Now()
	p := &models.Pricing{}
	var plans []byte
	err := DB.QueryRowContext(ctx, query, owner, name).Scan(
		&p.Owner,
		&p.Name,
		&p.DisplayName,
		&p.Description,
		&plans,
		&p.IsEnabled,
		&p.Application,
	)
	observe("select", "pricing", start, err)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		zap.L().Error("Failed to get pricing", zap.Error(err), zap.String("owner", owner), zap.String("name", name))
		return nil, err
	}

	if len(plans) > 0 {
		if err := json.Unmarshal(plans, &p.Plans); err != nil {
			return nil, fmt.Errorf("invalid plans of pricing %s/%s: %w", owner, name, err)
		}
	}
	return p, nil
}

// GetPlan 获取套餐，不存在时返回 nil, nil
func GetPlan(ctx context.Context, owner, name string) (*models.Plan, error) {
	query := `SELECT owner, name, display_name, product, price, currency, is_enabled
		FROM plan
		WHERE owner = ? AND name = ?
		LIMIT 1`

	start := time.Now()
	p := &models.Plan{}
	err := DB.QueryRowContext(ctx, query, owner, name).Scan(
		&p.Owner,
		&p.Name,
		&p.DisplayName,
		&p.Product,
		&p.Price,
		&p.Currency,
		&p.IsEnabled,
	)
	observe("select", "plan", start, err)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		zap.L().Error("Failed to get plan", zap.Error(err), zap.String("owner", owner), zap.String("name", name))
		return nil, err
	}
	return p, nil
}

// IncrementProductSold 商品销量加一
func IncrementProductSold(ctx context.Context, owner, name string) error {
	start := time.Now()
	_, err := DB.ExecContext(ctx, `UPDATE product SET sold = sold + 1 WHERE owner = ? AND name = ?`, owner, name)
	observe("update", "product", start, err)
	if err != nil {
		zap.L().Error("Failed to increment product sold", zap.Error(err), zap.String("owner", owner), zap.String("name", name))
	}
	return err
}
