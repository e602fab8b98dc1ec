package services

import (
	"context"
	"fmt"
	"strings"

	"console-checkout/biz/models"
	"console-checkout/conf"

	"github.com/wechatpay-apiv3/wechatpay-go/core"
	"github.com/wechatpay-apiv3/wechatpay-go/core/option"
	"github.com/wechatpay-apiv3/wechatpay-go/services/payments/native"
	"github.com/wechatpay-apiv3/wechatpay-go/utils"
	"go.uber.org/zap"
)

// WechatGateway 微信支付 Native 下单，返回二维码链接
type WechatGateway struct {
	appID     string
	mchID     string
	notifyURL string
	client    *core.Client
}

// NewWechatGateway 加载商户私钥并创建微信支付客户端（只执行一次）
func NewWechatGateway(ctx context.Context, cfg *conf.Config) (*WechatGateway, error) {
	wc := cfg.WechatPay

	mchPrivateKey, err := utils.LoadPrivateKeyWithPath(wc.MchPrivateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load merchant private key: %w", err)
	}

	opts := []core.ClientOption{
		option.WithWechatPayAutoAuthCipher(
			wc.MchID,
			wc.MchCertificateSerialNumber,
			mchPrivateKey,
			wc.MchAPIv3Key,
		),
	}

	client, err := core.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create wechat pay client: %w", err)
	}

	zap.L().Info("WeChat Pay client initialized", zap.String("mch_id", wc.MchID))
	return &WechatGateway{
		appID:     wc.AppID,
		mchID:     wc.MchID,
		notifyURL: wc.NotifyURL,
		client:    client,
	}, nil
}

// outTradeNo 商户订单号最长 32 位
func outTradeNo(paymentName string) string {
	no := strings.ReplaceAll(strings.TrimPrefix(paymentName, "payment_"), "-", "")
	if len(no) > 32 {
		no = no[:32]
	}
	return no
}

func (g *WechatGateway) Pay(ctx context.Context, req *PayRequest) (*PayResult, error) {
	p := req.Payment
	if !strings.EqualFold(p.Currency, models.CurrencyCNY) {
		return nil, fmt.Errorf("wechat pay only supports %s, got %s", models.CurrencyCNY, p.Currency)
	}

	tradeNo := outTradeNo(p.Name)
	svc := native.NativeApiService{Client: g.client}
	resp, _, err := svc.Prepay(ctx, native.PrepayRequest{
		Appid:       core.String(g.appID),
		Mchid:       core.String(g.mchID),
		Description: core.String(p.ProductDisplayName),
		OutTradeNo:  core.String(tradeNo),
		NotifyUrl:   core.String(g.notifyURL),
		Amount: &native.Amount{
			Total:    core.Int64(minorUnits(p.Price)),
			Currency: core.String(models.CurrencyCNY),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to prepay wechat order: %w", err)
	}
	if resp.CodeUrl == nil {
		return nil, fmt.Errorf("wechat prepay for %s returned no code_url", tradeNo)
	}

	zap.L().Info("WeChat Pay native order created",
		zap.String("out_trade_no", tradeNo),
		zap.String("payment", p.Name))

	return &PayResult{PayURL: *resp.CodeUrl, OutOrderID: tradeNo}, nil
}
