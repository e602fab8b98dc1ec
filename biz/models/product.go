package models

import "github.com/shopspring/decimal"

// 商品、支付渠道、定价与套餐模型（与控制台 JSON 字段保持一致）

func init() {
	// 价格在 JSON 中以数字输出，与控制台约定一致
	decimal.MarshalJSONWithoutQuotes = true
}

// ProductStatePublished 已上架
const ProductStatePublished = "Published"

// 币种
const (
	CurrencyUSD = "USD"
	CurrencyCNY = "CNY"
)

// 支付渠道类型
const (
	ProviderTypeDummy     = "Dummy"
	ProviderTypeAlipay    = "Alipay"
	ProviderTypeWeChatPay = "WeChat Pay"
	ProviderTypePayPal    = "PayPal"
	ProviderTypeStripe    = "Stripe"
)

// Product 可购买商品
type Product struct {
	Owner       string `json:"owner"`
	Name        string `json:"name"`
	CreatedTime string `json:"createdTime"`

	DisplayName string          `json:"displayName"`
	Image       string          `json:"image"`
	Detail      string          `json:"detail"`
	Description string          `json:"description"`
	Tag         string          `json:"tag"`
	Currency    string          `json:"currency"`
	Price       decimal.Decimal `json:"price"`
	Quantity    int             `json:"quantity"`
	Sold        int             `json:"sold"`
	Providers   []string        `json:"providers"`
	ReturnUrl   string          `json:"returnUrl"`
	State       string          `json:"state"`

	ProviderObjs []*Provider `json:"providerObjs"`
}

// IsPublished 商品是否在售
func (p *Product) IsPublished() bool {
	return p != nil && p.State == ProductStatePublished
}

// FindProvider 在商品的支付渠道中按名称查找
func (p *Product) FindProvider(name string) *Provider {
	if p == nil {
		return nil
	}
	for _, provider := range p.ProviderObjs {
		if provider != nil && provider.Name == name {
			return provider
		}
	}
	return nil
}

// Provider 支付渠道
type Provider struct {
	Owner       string `json:"owner"`
	Name        string `json:"name"`
	DisplayName string `json:"displayName"`
	Category    string `json:"category"`
	Type        string `json:"type"`
	Logo        string `json:"logo"`
}

// Pricing 订阅定价
type Pricing struct {
	Owner       string   `json:"owner"`
	Name        string   `json:"name"`
	DisplayName string   `json:"displayName"`
	Description string   `json:"description"`
	Plans       []string `json:"plans"`
	IsEnabled   bool     `json:"isEnabled"`
	Application string   `json:"application"`
}

// HasPlan 定价是否包含该套餐
func (p *Pricing) HasPlan(name string) bool {
	if p == nil {
		return false
	}
	for _, plan := range p.Plans {
		if plan == name {
			return true
		}
	}
	return false
}

// Plan 订阅套餐，Product 为关联商品名称
type Plan struct {
	Owner       string          `json:"owner"`
	Name        string          `json:"name"`
	DisplayName string          `json:"displayName"`
	Product     string          `json:"product"`
	Price       decimal.Decimal `json:"price"`
	Currency    string          `json:"currency"`
	IsEnabled   bool            `json:"isEnabled"`
}
