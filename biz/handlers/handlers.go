package handlers

import (
	"context"
	"errors"
	"sync"

	"console-checkout/biz/checkout"
	"console-checkout/biz/models"
	"console-checkout/biz/services"
	"console-checkout/biz/signin"
	"console-checkout/common"

	"github.com/cloudwego/hertz/pkg/app"
)

// Dependencies 处理器依赖，由 main 在启动时注入
type Dependencies struct {
	// Backend 商品、定价、套餐与下单（本地商品库或远程 Casdoor）
	Backend  checkout.Backend
	Payments PaymentReader
	Tables   *services.SigninTableService

	QRCodeRoute   string
	StaticBaseURL string

	// HealthChecks 健康检查，名称 -> 检查函数
	HealthChecks map[string]func(context.Context) error
}

// PaymentReader 查询支付记录
type PaymentReader interface {
	GetPayment(ctx context.Context, owner, name string) (*models.Payment, error)
}

var (
	deps   Dependencies
	depsMu sync.RWMutex
)

// Setup 注入处理器依赖
func Setup(d Dependencies) {
	depsMu.Lock()
	defer depsMu.Unlock()
	deps = d
}

func getDeps() Dependencies {
	depsMu.RLock()
	defer depsMu.RUnlock()
	return deps
}

func init() {
	common.RegisterError(checkout.ErrOrderInFlight, common.ErrOrderPlacing)
	common.RegisterError(checkout.ErrProductNotLoaded, common.ErrProductNotFound)
	common.RegisterError(checkout.ErrNotForSale, common.ErrNotForSale)
	common.RegisterError(checkout.ErrNoPaymentChannel, common.ErrConflict)
	common.RegisterError(checkout.ErrUnknownProvider, common.ErrInvalidParameter)

	common.RegisterError(services.ErrNotFound, common.ErrNotFound)
	common.RegisterError(services.ErrNotForSale, common.ErrNotForSale)
	common.RegisterError(services.ErrInvalidPlan, common.ErrInvalidParameter)
	common.RegisterError(services.ErrProviderNotSupported, common.ErrProviderNotSupported)
	common.RegisterError(services.ErrStoreUnavailable, common.ErrServiceUnavailable)

	common.RegisterError(signin.ErrUnknownField, common.ErrTableEdit)
	common.RegisterError(signin.ErrFieldNotEditable, common.ErrTableEdit)
	common.RegisterError(signin.ErrDuplicateName, common.ErrTableEdit)
	common.RegisterError(signin.ErrInvalidValue, common.ErrTableEdit)
	common.RegisterError(signin.ErrUnknownIntent, common.ErrTableEdit)
}

// sendError 发送 /api/v1 错误响应；远程后端拒绝且无对应映射时按 422 返回
func sendError(c *app.RequestContext, err error) {
	var statusErr *models.StatusError
	if errors.As(err, &statusErr) && statusErr.Err == nil {
		common.SendError(c, common.ErrRejected.WithDetails(statusErr.Msg))
		return
	}
	common.SendError(c, err)
}
