package services

import (
	"context"
	"fmt"

	"console-checkout/biz/models"
	"console-checkout/conf"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// PayRequest 向支付渠道发起支付的请求
type PayRequest struct {
	Payment  *models.Payment
	Provider *models.Provider
}

// PayResult 支付渠道返回的跳转信息
type PayResult struct {
	PayURL     string
	OutOrderID string
	State      string // 为空时视为 Created
}

// Gateway 支付渠道
type Gateway interface {
	Pay(ctx context.Context, req *PayRequest) (*PayResult, error)
}

// Gateways 按渠道类型索引的支付渠道
type Gateways map[string]Gateway

// For 获取渠道类型对应的支付渠道
func (g Gateways) For(providerType string) (Gateway, error) {
	gw, ok := g[providerType]
	if !ok || gw == nil {
		return nil, fmt.Errorf("%w: %s", ErrProviderNotSupported, providerType)
	}
	return gw, nil
}

// NewGateways 根据配置创建可用的支付渠道，未配置凭据的渠道不注册
func NewGateways(ctx context.Context, cfg *conf.Config) Gateways {
	g := Gateways{
		models.ProviderTypeDummy:  DummyGateway{},
		models.ProviderTypePayPal: unsupportedGateway{providerType: models.ProviderTypePayPal},
	}

	if cfg.Stripe.SecretKey != "" {
		g[models.ProviderTypeStripe] = NewStripeGateway(cfg.Stripe.SecretKey)
		g[models.ProviderTypeAlipay] = NewAlipayGateway(cfg.Stripe.SecretKey)
	} else {
		zap.L().Info("Stripe not configured, Stripe and Alipay gateways disabled")
	}

	if cfg.WechatPay.MchID != "" {
		wechat, err := NewWechatGateway(ctx, cfg)
		if err != nil {
			zap.L().Warn("Failed to init WeChat Pay gateway", zap.Error(err))
		} else {
			g[models.ProviderTypeWeChatPay] = wechat
		}
	} else {
		zap.L().Info("WeChat Pay not configured, gateway disabled")
	}

	return g
}

// DummyGateway 测试渠道：直接视为支付成功，跳转到成功页
type DummyGateway struct{}

func (DummyGateway) Pay(ctx context.Context, req *PayRequest) (*PayResult, error) {
	return &PayResult{
		PayURL: req.Payment.SuccessUrl,
		State:  models.PaymentStatePaid,
	}, nil
}

type unsupportedGateway struct {
	providerType string
}

func (g unsupportedGateway) Pay(ctx context.Context, req *PayRequest) (*PayResult, error) {
	return nil, fmt.Errorf("%w: %s", ErrProviderNotSupported, g.providerType)
}

// minorUnits 金额转换为最小货币单位（分）
func minorUnits(price decimal.Decimal) int64 {
	return price.Shift(2).Round(0).IntPart()
}
