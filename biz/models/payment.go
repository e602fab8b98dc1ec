package models

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// 支付状态
const (
	PaymentStateCreated  = "Created"
	PaymentStatePaid     = "Paid"
	PaymentStateCanceled = "Canceled"
	PaymentStateError    = "Error"
)

// Payment 支付记录（buy-product 的返回值）
type Payment struct {
	Owner       string `json:"owner"`
	Name        string `json:"name"`
	CreatedTime string `json:"createdTime"`

	Provider           string          `json:"provider"`
	ProviderType       string          `json:"type"`
	ProductName        string          `json:"productName"`
	ProductDisplayName string          `json:"productDisplayName"`
	Price              decimal.Decimal `json:"price"`
	Currency           string          `json:"currency"`
	User               string          `json:"user"`
	PricingName        string          `json:"pricingName"`
	PlanName           string          `json:"planName"`

	State      string `json:"state"`
	PayUrl     string `json:"payUrl"`
	SuccessUrl string `json:"successUrl"`
	ReturnUrl  string `json:"returnUrl"`
	OutOrderId string `json:"outOrderId"`
}

// BuyProductRequest 购买请求
// 未提供的 pricing/plan/user 以空字符串传递
type BuyProductRequest struct {
	Owner        string `json:"owner"`
	ProductName  string `json:"productName"`
	ProviderName string `json:"providerName"`
	PricingName  string `json:"pricingName"`
	PlanName     string `json:"planName"`
	UserName     string `json:"userName"`
}

// 响应状态
const (
	StatusOK  = "ok"
	StatusErr = "error"
)

// Response Casdoor 风格的响应信封
type Response struct {
	Status string          `json:"status"`
	Msg    string          `json:"msg"`
	Data   json.RawMessage `json:"data,omitempty"`
}

// StatusError 后端以 status=error 返回的业务失败，Error() 即原始 msg
// Err 为本地后端附带的哨兵错误，远程响应解码得到的 StatusError 不带 Err
type StatusError struct {
	Msg string
	Err error
}

func (e *StatusError) Error() string {
	return e.Msg
}

func (e *StatusError) Unwrap() error {
	return e.Err
}
