package handlers

import (
	"context"
	"net/url"
	"strings"
	"sync"

	"console-checkout/biz"
	"console-checkout/biz/checkout"
	"console-checkout/biz/models"
	"console-checkout/common"

	"github.com/cloudwego/hertz/pkg/app"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// CheckoutView 结算页数据
type CheckoutView struct {
	Product      *models.Product    `json:"product"`
	Price        string             `json:"price"`
	Pay          *checkout.PayView  `json:"pay"`
	Pricing      *models.Pricing    `json:"pricing,omitempty"`
	Plan         *models.Plan       `json:"plan,omitempty"`
	PlacingOrder bool               `json:"placing_order"`
	Messages     []checkout.Message `json:"messages"`
}

// BuyRequest POST /api/v1/checkout/:owner/buy 请求体
type BuyRequest struct {
	Product  string `json:"product"`
	Pricing  string `json:"pricing"`
	Plan     string `json:"plan"`
	User     string `json:"user"`
	Provider string `json:"provider"`
}

// BuyResponse 下单结果
type BuyResponse struct {
	Redirect     string             `json:"redirect"`
	PlacingOrder bool               `json:"placing_order"`
	Messages     []checkout.Message `json:"messages"`
}

// 同一结算会话同时只允许一个下单请求
var inFlight = struct {
	sync.Mutex
	sessions map[string]*checkout.Controller
}{sessions: make(map[string]*checkout.Controller)}

func sessionKey(p checkout.Params) string {
	return strings.Join([]string{p.Owner, p.ProductName, p.PricingName, p.PlanName, p.UserName}, "|")
}

func newController(c *app.RequestContext, params checkout.Params, notifier checkout.Notifier, navigator checkout.Navigator) *checkout.Controller {
	d := getDeps()
	return checkout.NewController(params, checkout.Options{
		Backend:   d.Backend,
		Notifier:  notifier,
		Navigator: navigator,
		OnUpdatePricing: func(p *models.Pricing) {
			common.LogStage(c, "pricing_resolved", zap.String("pricing", p.Name), zap.Int("plans", len(p.Plans)))
		},
		QRCodeRoute:   d.QRCodeRoute,
		StaticBaseURL: d.StaticBaseURL,
	})
}

func validateParams(p checkout.Params) error {
	if err := biz.ValidateName("owner", p.Owner); err != nil {
		return err
	}
	for field, value := range map[string]string{
		"product": p.ProductName,
		"pricing": p.PricingName,
		"plan":    p.PlanName,
		"user":    p.UserName,
	} {
		if err := biz.ValidateOptionalName(field, value); err != nil {
			return err
		}
	}
	return nil
}

// GetCheckout GET /api/v1/checkout/:owner?product=&pricing=&plan=&user=
// 解析失败不返回错误码，失败信息放在 messages 中由页面展示
func GetCheckout(ctx context.Context, c *app.RequestContext) {
	query := url.Values{}
	query.Set("plan", c.Query("plan"))
	query.Set("user", c.Query("user"))
	params := checkout.ParamsFromQuery(c.Param("owner"), c.Query("product"), c.Query("pricing"), query)

	if err := validateParams(params); err != nil {
		common.SendError(c, err)
		return
	}

	messages := &checkout.MessageLog{}
	ctrl := newController(c, params, messages, nil)
	if err := ctrl.Resolve(ctx); err != nil {
		common.LogStageWithLevel(c, zapcore.WarnLevel, "resolve_failed", zap.Error(err))
	}

	product := ctrl.Product()
	common.SendSuccessResponse(c, CheckoutView{
		Product:      product,
		Price:        checkout.DisplayPrice(product),
		Pay:          ctrl.PayOptions(),
		Pricing:      ctrl.Pricing(),
		Plan:         ctrl.Plan(),
		PlacingOrder: ctrl.PlacingOrder(),
		Messages:     messages.Messages(),
	})
}

// Buy POST /api/v1/checkout/:owner/buy
func Buy(ctx context.Context, c *app.RequestContext) {
	common.LogStage(c, "request_received", zap.String("handler", "Buy"))

	var req BuyRequest
	if err := c.BindJSON(&req); err != nil {
		common.SendError(c, common.ErrInvalidRequest.WithDetails("Failed to bind request: "+err.Error()))
		return
	}

	params := checkout.Params{
		Owner:       c.Param("owner"),
		ProductName: req.Product,
		PricingName: req.Pricing,
		PlanName:    req.Plan,
		UserName:    req.User,
	}
	if err := validateParams(params); err != nil {
		common.SendError(c, err)
		return
	}
	if err := biz.ValidateName("provider", req.Provider); err != nil {
		common.SendError(c, err)
		return
	}

	key := sessionKey(params)
	messages := &checkout.MessageLog{}
	links := &checkout.LinkRecorder{}

	inFlight.Lock()
	if _, busy := inFlight.sessions[key]; busy {
		inFlight.Unlock()
		common.LogStageWithLevel(c, zapcore.WarnLevel, "order_in_flight", zap.String("session", key))
		common.SendError(c, checkout.ErrOrderInFlight)
		return
	}
	ctrl := newController(c, params, messages, links)
	inFlight.sessions[key] = ctrl
	inFlight.Unlock()

	defer func() {
		inFlight.Lock()
		delete(inFlight.sessions, key)
		inFlight.Unlock()
	}()

	if err := ctrl.Resolve(ctx); err != nil {
		sendError(c, err)
		return
	}
	if ctrl.Product() == nil {
		common.SendError(c, common.ErrMissingParameter.WithDetails("product or pricing with plan and user is required"))
		return
	}

	common.LogStage(c, "placing_order", zap.String("provider", req.Provider))
	redirect, err := ctrl.Submit(ctx, req.Provider)
	if err != nil {
		sendError(c, err)
		return
	}

	common.LogStage(c, "order_placed", zap.String("redirect", links.Link()))
	common.SendSuccessResponse(c, BuyResponse{
		Redirect:     redirect,
		PlacingOrder: ctrl.PlacingOrder(),
		Messages:     messages.Messages(),
	})
}

// GetPaymentResult GET /api/v1/payments/:owner/:name，支付结果页查询订单状态
func GetPaymentResult(ctx context.Context, c *app.RequestContext) {
	owner, name := c.Param("owner"), c.Param("name")
	if err := biz.ValidateName("owner", owner); err != nil {
		common.SendError(c, err)
		return
	}
	if err := biz.ValidateName("payment", name); err != nil {
		common.SendError(c, err)
		return
	}

	payment, err := getDeps().Payments.GetPayment(ctx, owner, name)
	if err != nil {
		common.LogStageWithLevel(c, zapcore.WarnLevel, "get_payment_failed", zap.String("payment", owner+"/"+name), zap.Error(err))
		sendError(c, err)
		return
	}
	common.SendSuccessResponse(c, payment)
}
