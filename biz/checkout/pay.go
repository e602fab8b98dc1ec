package checkout

import (
	"fmt"
	"net/url"
	"strings"

	"console-checkout/biz/models"
)

// DefaultQRCodeRoute 微信支付二维码页面
const DefaultQRCodeRoute = "/qrcode"

// 支付区域提示
const (
	NoticeNotInSale   = "This product is currently not in sale."
	NoticeNoProviders = "There is no payment channel for this product."
)

var providerTypeText = map[string]string{
	models.ProviderTypeDummy:     "Dummy",
	models.ProviderTypeAlipay:    "Alipay",
	models.ProviderTypeWeChatPay: "WeChat Pay",
	models.ProviderTypePayPal:    "PayPal",
	models.ProviderTypeStripe:    "Stripe",
}

var providerTypeLogo = map[string]string{
	models.ProviderTypeDummy:     "dummy",
	models.ProviderTypeAlipay:    "alipay",
	models.ProviderTypeWeChatPay: "wechat_pay",
	models.ProviderTypePayPal:    "paypal",
	models.ProviderTypeStripe:    "stripe",
}

// PayAction 一个支付按钮
type PayAction struct {
	Provider    string `json:"provider"`
	DisplayName string `json:"displayName"`
	Type        string `json:"type"`
	Text        string `json:"text"`
	Logo        string `json:"logo"`
}

// PayView 支付区域：要么是提示，要么是按钮列表
type PayView struct {
	Notice  string      `json:"notice,omitempty"`
	Actions []PayAction `json:"options,omitempty"`
}

// PayOptions 根据商品状态生成支付区域，商品为空时返回 nil
func PayOptions(product *models.Product, staticBaseURL string) *PayView {
	if product == nil {
		return nil
	}
	if !product.IsPublished() {
		return &PayView{Notice: NoticeNotInSale}
	}
	if len(product.ProviderObjs) == 0 {
		return &PayView{Notice: NoticeNoProviders}
	}

	actions := make([]PayAction, 0, len(product.ProviderObjs))
	for _, provider := range product.ProviderObjs {
		if provider == nil {
			continue
		}
		actions = append(actions, PayAction{
			Provider:    provider.Name,
			DisplayName: provider.DisplayName,
			Type:        provider.Type,
			Text:        ProviderText(provider.Type),
			Logo:        ProviderLogoURL(staticBaseURL, provider),
		})
	}
	return &PayView{Actions: actions}
}

// ProviderText 按钮文案，未知类型直接显示类型名
func ProviderText(providerType string) string {
	if text, ok := providerTypeText[providerType]; ok {
		return text
	}
	return providerType
}

// ProviderLogoURL 渠道自带 logo 优先，否则使用静态资源中的类型图标
func ProviderLogoURL(staticBaseURL string, provider *models.Provider) string {
	if provider.Logo != "" {
		return provider.Logo
	}
	slug, ok := providerTypeLogo[provider.Type]
	if !ok {
		return ""
	}
	return fmt.Sprintf("%s/img/payment/%s.png", strings.TrimRight(staticBaseURL, "/"), slug)
}

// PayRedirect 下单成功后的跳转地址。
// 微信支付需要扫码，跳转到站内二维码页面并携带原始支付地址和成功回调地址；
// 其他渠道直接使用返回的支付地址。
func PayRedirect(qrCodeRoute string, provider *models.Provider, payment *models.Payment) string {
	if provider == nil || provider.Type != models.ProviderTypeWeChatPay {
		return payment.PayUrl
	}
	return fmt.Sprintf("%s/%s/%s?providerName=%s&payUrl=%s&successUrl=%s",
		strings.TrimRight(qrCodeRoute, "/"),
		url.PathEscape(payment.Owner),
		url.PathEscape(payment.Name),
		url.QueryEscape(provider.Name),
		url.QueryEscape(payment.PayUrl),
		url.QueryEscape(payment.SuccessUrl))
}
