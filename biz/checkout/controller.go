// Package checkout 实现商品购买页的结算流程：
// 依次解析定价、套餐、商品，然后向选定的支付渠道下单。
package checkout

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"sync/atomic"

	"console-checkout/biz/models"
	"console-checkout/common"

	"go.uber.org/zap"
)

var (
	ErrOrderInFlight    = errors.New("an order is already being placed")
	ErrProductNotLoaded = errors.New("product is not loaded")
	ErrNotForSale       = errors.New("product is not in sale")
	ErrNoPaymentChannel = errors.New("product has no payment channel")
	ErrUnknownProvider  = errors.New("provider is not offered by this product")
)

// PlacingOrderLabel 下单过程中的提示文案
const PlacingOrderLabel = "Placing order..."

// Backend 结算流程依赖的后端接口，对象不存在时返回错误而不是 nil
type Backend interface {
	GetPricing(ctx context.Context, owner, name string) (*models.Pricing, error)
	GetPlan(ctx context.Context, owner, name string) (*models.Plan, error)
	GetProduct(ctx context.Context, owner, name string) (*models.Product, error)
	BuyProduct(ctx context.Context, req *models.BuyProductRequest) (*models.Payment, error)
}

// Notifier 向用户展示提示消息
type Notifier interface {
	ShowMessage(level, text string)
}

// Navigator 页面跳转
type Navigator interface {
	GoToLink(link string)
}

// Params 结算页入参
type Params struct {
	Owner       string
	ProductName string
	PricingName string
	PlanName    string
	UserName    string
}

// ParamsFromQuery 从路由参数和查询串构造入参，plan 和 user 取自查询串
func ParamsFromQuery(owner, productName, pricingName string, query url.Values) Params {
	return Params{
		Owner:       owner,
		ProductName: productName,
		PricingName: pricingName,
		PlanName:    query.Get("plan"),
		UserName:    query.Get("user"),
	}
}

// Options 控制器的协作方
type Options struct {
	Backend   Backend
	Notifier  Notifier
	Navigator Navigator

	// OnUpdatePricing 定价和套餐解析完成后回调
	OnUpdatePricing func(*models.Pricing)

	// Product 宿主直接提供的商品，设置后优先于拉取到的商品
	Product *models.Product

	QRCodeRoute   string
	StaticBaseURL string
}

// Controller 单个结算页的状态
type Controller struct {
	opts   Options
	params Params

	mu      sync.RWMutex
	product *models.Product
	pricing *models.Pricing
	plan    *models.Plan

	placing atomic.Bool
}

// NewController 创建结算控制器
func NewController(params Params, opts Options) *Controller {
	if opts.QRCodeRoute == "" {
		opts.QRCodeRoute = DefaultQRCodeRoute
	}
	return &Controller{opts: opts, params: params}
}

// Resolve 解析商品上下文。
// 前置条件不满足时直接返回 nil，不发起任何请求；
// 后端失败时提示用户并返回错误，已完成的步骤保留。
func (c *Controller) Resolve(ctx context.Context) error {
	p := c.params
	if p.Owner == "" || (p.ProductName == "" && p.PricingName == "") {
		return nil
	}

	productName := p.ProductName
	if p.PricingName != "" {
		if p.PlanName == "" || p.UserName == "" {
			return nil
		}

		pricing, err := c.opts.Backend.GetPricing(ctx, p.Owner, p.PricingName)
		if err != nil {
			return c.fail("pricing", err)
		}
		plan, err := c.opts.Backend.GetPlan(ctx, p.Owner, p.PlanName)
		if err != nil {
			return c.fail("plan", err)
		}

		c.mu.Lock()
		c.pricing = pricing
		c.plan = plan
		c.mu.Unlock()

		productName = plan.Product
		if c.opts.OnUpdatePricing != nil {
			c.opts.OnUpdatePricing(pricing)
		}
	}

	product, err := c.opts.Backend.GetProduct(ctx, p.Owner, productName)
	if err != nil {
		return c.fail("product", err)
	}

	c.mu.Lock()
	c.product = product
	c.mu.Unlock()

	common.RecordCheckoutResolve("success")
	return nil
}

func (c *Controller) fail(step string, err error) error {
	zap.L().Warn("Checkout resolve failed",
		zap.String("owner", c.params.Owner),
		zap.String("step", step),
		zap.Error(err))
	common.RecordCheckoutResolve(step + "_error")
	c.notify("error", err.Error())
	return err
}

func (c *Controller) notify(level, text string) {
	if c.opts.Notifier != nil {
		c.opts.Notifier.ShowMessage(level, text)
	}
}

// Product 当前商品，宿主提供的商品优先
func (c *Controller) Product() *models.Product {
	if c.opts.Product != nil {
		return c.opts.Product
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.product
}

func (c *Controller) Pricing() *models.Pricing {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.pricing
}

func (c *Controller) Plan() *models.Plan {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.plan
}

// PlacingOrder 是否有订单正在提交
func (c *Controller) PlacingOrder() bool {
	return c.placing.Load()
}

// PayOptions 当前商品的支付区域
func (c *Controller) PayOptions() *PayView {
	return PayOptions(c.Product(), c.opts.StaticBaseURL)
}

// Submit 使用指定渠道下单，成功后跳转并返回跳转地址。
// 成功时保持下单中状态（页面即将离开），失败时清除以便重试。
func (c *Controller) Submit(ctx context.Context, providerName string) (string, error) {
	product := c.Product()
	if product == nil {
		return "", ErrProductNotLoaded
	}
	if !product.IsPublished() {
		return "", ErrNotForSale
	}
	if len(product.ProviderObjs) == 0 {
		return "", ErrNoPaymentChannel
	}
	provider := product.FindProvider(providerName)
	if provider == nil {
		return "", fmt.Errorf("%w: %s", ErrUnknownProvider, providerName)
	}

	if !c.placing.CompareAndSwap(false, true) {
		return "", ErrOrderInFlight
	}

	payment, err := c.opts.Backend.BuyProduct(ctx, &models.BuyProductRequest{
		Owner:        product.Owner,
		ProductName:  product.Name,
		ProviderName: provider.Name,
		PricingName:  c.params.PricingName,
		PlanName:     c.params.PlanName,
		UserName:     c.params.UserName,
	})
	if err != nil {
		c.placing.Store(false)

		var statusErr *models.StatusError
		if errors.As(err, &statusErr) {
			c.notify("error", fmt.Sprintf("Failed to save: %s", statusErr.Msg))
			common.RecordCheckoutSubmit(provider.Type, "rejected")
		} else {
			c.notify("error", fmt.Sprintf("Failed to connect to server: %v", err))
			common.RecordCheckoutSubmit(provider.Type, "transport_error")
		}
		zap.L().Warn("Buy product failed",
			zap.String("owner", product.Owner),
			zap.String("product", product.Name),
			zap.String("provider", provider.Name),
			zap.Error(err))
		return "", err
	}

	link := PayRedirect(c.opts.QRCodeRoute, provider, payment)
	common.RecordCheckoutSubmit(provider.Type, "success")
	zap.L().Info("Order placed",
		zap.String("owner", payment.Owner),
		zap.String("payment", payment.Name),
		zap.String("provider", provider.Name))

	if c.opts.Navigator != nil {
		c.opts.Navigator.GoToLink(link)
	}
	return link, nil
}
