package checkout

import (
	"testing"

	"console-checkout/biz/models"

	"github.com/shopspring/decimal"
)

// TestDisplayPrice 测试价格展示
func TestDisplayPrice(t *testing.T) {
	tests := []struct {
		name     string
		price    string
		currency string
		want     string
	}{
		{"美元", "19.99", "USD", "$19.99 (US Dollar)"},
		{"人民币", "88", "CNY", "￥88 (Chinese Yuan)"},
		{"未知币种", "5.5", "EUR", "(Unknown currency)5.5 ((Unknown currency))"},
		{"空币种", "1", "", "(Unknown currency)1 ((Unknown currency))"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &models.Product{Price: decimal.RequireFromString(tt.price), Currency: tt.currency}
			if got := DisplayPrice(p); got != tt.want {
				t.Errorf("DisplayPrice() = %q, want %q", got, tt.want)
			}
		})
	}

	if got := DisplayPrice(nil); got != "" {
		t.Errorf("DisplayPrice(nil) = %q", got)
	}
}

// TestPayOptions 测试支付区域
func TestPayOptions(t *testing.T) {
	unpublished := testProduct()
	unpublished.State = "Draft"
	empty := testProduct()
	empty.ProviderObjs = nil

	if v := PayOptions(unpublished, ""); v.Notice != NoticeNotInSale || len(v.Actions) != 0 {
		t.Errorf("Unexpected view for unpublished product: %+v", v)
	}
	if v := PayOptions(empty, ""); v.Notice != NoticeNoProviders {
		t.Errorf("Unexpected view for product without providers: %+v", v)
	}
	if v := PayOptions(nil, ""); v != nil {
		t.Errorf("Expected nil view, got %+v", v)
	}

	v := PayOptions(testProduct(), "https://cdn.example.com/")
	if v.Notice != "" || len(v.Actions) != 2 {
		t.Fatalf("Unexpected view: %+v", v)
	}
	if v.Actions[0].Text != "WeChat Pay" || v.Actions[0].Logo != "https://cdn.example.com/img/payment/wechat_pay.png" {
		t.Errorf("Unexpected action: %+v", v.Actions[0])
	}
}

// TestProviderText 测试按钮文案
func TestProviderText(t *testing.T) {
	tests := []struct {
		providerType string
		want         string
	}{
		{models.ProviderTypeDummy, "Dummy"},
		{models.ProviderTypeAlipay, "Alipay"},
		{models.ProviderTypeWeChatPay, "WeChat Pay"},
		{models.ProviderTypePayPal, "PayPal"},
		{models.ProviderTypeStripe, "Stripe"},
		{"Balance", "Balance"},
	}

	for _, tt := range tests {
		t.Run(tt.providerType, func(t *testing.T) {
			if got := ProviderText(tt.providerType); got != tt.want {
				t.Errorf("ProviderText(%q) = %q, want %q", tt.providerType, got, tt.want)
			}
		})
	}
}

// TestProviderLogoURL 测试渠道 logo
func TestProviderLogoURL(t *testing.T) {
	own := &models.Provider{Type: models.ProviderTypeStripe, Logo: "https://x/logo.png"}
	if got := ProviderLogoURL("https://cdn", own); got != own.Logo {
		t.Errorf("Expected provider logo, got %q", got)
	}
	unknown := &models.Provider{Type: "Balance"}
	if got := ProviderLogoURL("https://cdn", unknown); got != "" {
		t.Errorf("Expected empty logo, got %q", got)
	}
}

// TestPayRedirectCustomRoute 测试自定义二维码路由
func TestPayRedirectCustomRoute(t *testing.T) {
	provider := &models.Provider{Name: "wx pay", Type: models.ProviderTypeWeChatPay}
	payment := &models.Payment{Owner: "acme", Name: "p1", PayUrl: "weixin://x", SuccessUrl: "http://s/r"}

	want := "/pay/qr/acme/p1?providerName=wx+pay&payUrl=weixin%3A%2F%2Fx&successUrl=http%3A%2F%2Fs%2Fr"
	if got := PayRedirect("/pay/qr/", provider, payment); got != want {
		t.Errorf("PayRedirect() = %q, want %q", got, want)
	}
}
