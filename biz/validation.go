package biz

import (
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"console-checkout/biz/models"

	"github.com/shopspring/decimal"
)

// 验证常量
const (
	MaxNameLength = 100
	MaxURLLength  = 2048
	MaxTableRows  = 50
)

// MaxPrice 单笔订单的最大金额
var MaxPrice = decimal.NewFromInt(1000000)

// 白名单
var (
	// 允许的币种
	allowedCurrencies = map[string]bool{
		models.CurrencyUSD: true,
		models.CurrencyCNY: true,
	}

	// 允许的登录项表格操作
	allowedIntentOps = map[string]bool{
		"add":       true,
		"addCustom": true,
		"delete":    true,
		"up":        true,
		"down":      true,
		"update":    true,
	}

	// 名称格式：字母（包括中文）、数字、下划线、点号、连字符
	namePattern = regexp.MustCompile(`^[\p{L}\p{N}._-]+$`)
)

// ValidationError 验证错误
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
}

// ValidateName 验证 owner、商品、定价、套餐、渠道等名称
func ValidateName(field, name string) error {
	if name == "" {
		return &ValidationError{Field: field, Message: field + " is required"}
	}

	if utf8.RuneCountInString(name) > MaxNameLength {
		return &ValidationError{
			Field:   field,
			Message: fmt.Sprintf("%s length must not exceed %d characters", field, MaxNameLength),
		}
	}

	if !namePattern.MatchString(name) {
		return &ValidationError{
			Field:   field,
			Message: field + " can only contain letters (including Chinese), numbers, underscores, dots, and hyphens",
		}
	}

	return nil
}

// ValidateOptionalName 名称可为空，非空时按 ValidateName 验证
func ValidateOptionalName(field, name string) error {
	if name == "" {
		return nil
	}
	return ValidateName(field, name)
}

// ValidateID 验证 owner/name 形式的 id，返回拆分结果
func ValidateID(id string) (string, string, error) {
	owner, name, ok := strings.Cut(id, "/")
	if !ok {
		return "", "", &ValidationError{Field: "id", Message: "id must be in the form owner/name"}
	}
	if err := ValidateName("owner", owner); err != nil {
		return "", "", err
	}
	if err := ValidateName("name", name); err != nil {
		return "", "", err
	}
	return owner, name, nil
}

// ValidateBuyProductRequest 验证购买请求
func ValidateBuyProductRequest(req *models.BuyProductRequest) error {
	if req == nil {
		return &ValidationError{Field: "request", Message: "request is required"}
	}
	if err := ValidateName("owner", req.Owner); err != nil {
		return err
	}
	if err := ValidateName("productName", req.ProductName); err != nil {
		return err
	}
	if err := ValidateName("providerName", req.ProviderName); err != nil {
		return err
	}
	if err := ValidateOptionalName("pricingName", req.PricingName); err != nil {
		return err
	}
	if err := ValidateOptionalName("planName", req.PlanName); err != nil {
		return err
	}
	if err := ValidateOptionalName("userName", req.UserName); err != nil {
		return err
	}

	// 定价和套餐必须同时提供
	if (req.PricingName == "") != (req.PlanName == "") {
		return &ValidationError{Field: "planName", Message: "pricingName and planName must be provided together"}
	}
	return nil
}

// ValidateURL 验证URL格式
func ValidateURL(urlStr string) error {
	if urlStr == "" {
		return nil // URL是可选的
	}

	// 检查长度
	if len(urlStr) > MaxURLLength {
		return &ValidationError{
			Field:   "url",
			Message: fmt.Sprintf("URL length must not exceed %d characters", MaxURLLength),
		}
	}

	parsedURL, err := url.Parse(urlStr)
	if err != nil {
		return &ValidationError{
			Field:   "url",
			Message: "invalid URL format",
		}
	}

	// 只允许http和https协议
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return &ValidationError{
			Field:   "url",
			Message: "URL must use http or https protocol",
		}
	}

	return nil
}

// ValidateCurrency 验证币种（白名单）
func ValidateCurrency(currency string) error {
	if !allowedCurrencies[strings.ToUpper(strings.TrimSpace(currency))] {
		return &ValidationError{
			Field:   "currency",
			Message: fmt.Sprintf("currency must be one of: %s", strings.Join(sortedKeys(allowedCurrencies), ", ")),
		}
	}
	return nil
}

// ValidatePrice 验证金额范围
func ValidatePrice(price decimal.Decimal) error {
	if !price.IsPositive() {
		return &ValidationError{Field: "price", Message: "price must be greater than 0"}
	}
	if price.GreaterThan(MaxPrice) {
		return &ValidationError{
			Field:   "price",
			Message: fmt.Sprintf("price must not exceed %s", MaxPrice.String()),
		}
	}
	return nil
}

// ValidateIntentOp 验证登录项表格操作（白名单）
func ValidateIntentOp(op string) error {
	if !allowedIntentOps[op] {
		return &ValidationError{
			Field:   "op",
			Message: fmt.Sprintf("op must be one of: %s", strings.Join(sortedKeys(allowedIntentOps), ", ")),
		}
	}
	return nil
}

// ValidateTableSize 验证登录项表格行数
func ValidateTableSize(rows int) error {
	if rows > MaxTableRows {
		return &ValidationError{
			Field:   "items",
			Message: fmt.Sprintf("signin table must not exceed %d rows", MaxTableRows),
		}
	}
	return nil
}

// 辅助函数：获取允许的值列表（用于错误消息）
func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
