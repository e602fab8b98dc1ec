package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"console-checkout/biz/models"

	"go.uber.org/zap"
)

// DuplicatePaymentError 支付名称重复
type DuplicatePaymentError struct {
	Owner string
	Name  string
}

func (e *DuplicatePaymentError) Error() string {
	return fmt.Sprintf("duplicate payment: %s/%s", e.Owner, e.Name)
}

// SavePayment 保存支付记录
func SavePayment(ctx context.Context, p *models.Payment) error {
	query := `INSERT INTO payment
		(owner, name, created_time, provider, type, product_name, product_display_name, price, currency,
		 user, pricing_name, plan_name, state, pay_url, success_url, return_url, out_order_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	start := time.Now()
	_, err := DB.ExecContext(ctx, query,
		p.Owner,
		p.Name,
		p.CreatedTime,
		p.Provider,
		p.ProviderType,
		p.ProductName,
		p.ProductDisplayName,
		p.Price,
		p.Currency,
		p.User,
		p.PricingName,
		p.PlanName,
		p.State,
		p.PayUrl,
		p.SuccessUrl,
		p.ReturnUrl,
		p.OutOrderId,
	)
	observe("insert", "payment", start, err)

	if err != nil {
		if isDuplicateEntry(err) {
			zap.L().Warn("Duplicate payment detected",
				zap.String("owner", p.Owner),
				zap.String("name", p.Name))
			return &DuplicatePaymentError{Owner: p.Owner, Name: p.Name}
		}
		zap.L().Error("Failed to save payment", zap.Error(err), zap.String("name", p.Name))
		return err
	}

	zap.L().Info("Payment saved",
		zap.String("owner", p.Owner),
		zap.String("name", p.Name),
		zap.String("provider", p.Provider),
		zap.String("state", p.State))
	return nil
}

// GetPayment 获取支付记录，不存在时返回 nil, nil
func GetPayment(ctx context.Context, owner, name string) (*models.Payment, error) {
	query := `SELECT owner, name, created_time, provider, type, product_name, product_display_name, price, currency,
		user, pricing_name, plan_name, state, pay_url, success_url, return_url, out_order_id
		FROM payment
		WHERE owner = ? AND name = ?
		LIMIT 1`

	start := time.Now()
	p := &models.Payment{}
	err := DB.QueryRowContext(ctx, query, owner, name).Scan(
		&p.Owner,
		&p.Name,
		&p.CreatedTime,
		&p.Provider,
		&p.ProviderType,
		&p.ProductName,
		&p.ProductDisplayName,
		&p.Price,
		&p.Currency,
		&p.User,
		&p.PricingName,
		&p.PlanName,
		&p.State,
		&p.PayUrl,
		&p.SuccessUrl,
		&p.ReturnUrl,
		&p.OutOrderId,
	)
	observe("select", "payment", start, err)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		zap.L().Error("Failed to get payment", zap.Error(err), zap.String("owner", owner), zap.String("name", name))
		return nil, err
	}
	return p, nil
}

// UpdatePayment 回写渠道下单结果：状态、支付链接和渠道订单号
func UpdatePayment(ctx context.Context, p *models.Payment) error {
	query := `UPDATE payment SET state = ?, pay_url = ?, out_order_id = ? WHERE owner = ? AND name = ?`

	start := time.Now()
	res, err := DB.ExecContext(ctx, query, p.State, p.PayUrl, p.OutOrderId, p.Owner, p.Name)
	observe("update", "payment", start, err)
	if err != nil {
		zap.L().Error("Failed to update payment", zap.Error(err), zap.String("name", p.Name))
		return err
	}

	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}

	zap.L().Info("Payment updated",
		zap.String("owner", p.Owner),
		zap.String("name", p.Name),
		zap.String("state", p.State))
	return nil
}
