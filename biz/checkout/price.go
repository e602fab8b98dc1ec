package checkout

import (
	"fmt"

	"console-checkout/biz/models"
)

// UnknownCurrency 未知币种的符号和名称
const UnknownCurrency = "(Unknown currency)"

type currencyInfo struct {
	Symbol string
	Label  string
}

var currencies = map[string]currencyInfo{
	models.CurrencyUSD: {Symbol: "$", Label: "US Dollar"},
	models.CurrencyCNY: {Symbol: "￥", Label: "Chinese Yuan"},
}

// CurrencySymbol 币种符号
func CurrencySymbol(currency string) string {
	if info, ok := currencies[currency]; ok {
		return info.Symbol
	}
	return UnknownCurrency
}

// CurrencyLabel 币种名称
func CurrencyLabel(currency string) string {
	if info, ok := currencies[currency]; ok {
		return info.Label
	}
	return UnknownCurrency
}

// DisplayPrice 例如 "$19.99 (US Dollar)"
func DisplayPrice(product *models.Product) string {
	if product == nil {
		return ""
	}
	return fmt.Sprintf("%s%s (%s)", CurrencySymbol(product.Currency), product.Price.String(), CurrencyLabel(product.Currency))
}
