package handlers

import (
	"context"

	"console-checkout/biz"
	"console-checkout/biz/models"
	"console-checkout/common"

	"github.com/cloudwego/hertz/pkg/app"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// 以下接口兼容 Casdoor 的 /api 约定：HTTP 200 + {status, msg, data}

// GetProduct GET /api/get-product?id=owner/name
func GetProduct(ctx context.Context, c *app.RequestContext) {
	owner, name, err := biz.ValidateID(c.Query("id"))
	if err != nil {
		common.SendStatusError(c, err.Error())
		return
	}

	product, err := getDeps().Backend.GetProduct(ctx, owner, name)
	if err != nil {
		common.LogStageWithLevel(c, zapcore.WarnLevel, "get_product_failed", zap.String("id", owner+"/"+name), zap.Error(err))
		common.SendStatusError(c, err.Error())
		return
	}
	common.SendOK(c, product)
}

// GetPricing GET /api/get-pricing?id=owner/name
func GetPricing(ctx context.Context, c *app.RequestContext) {
	owner, name, err := biz.ValidateID(c.Query("id"))
	if err != nil {
		common.SendStatusError(c, err.Error())
		return
	}

	pricing, err := getDeps().Backend.GetPricing(ctx, owner, name)
	if err != nil {
		common.LogStageWithLevel(c, zapcore.WarnLevel, "get_pricing_failed", zap.String("id", owner+"/"+name), zap.Error(err))
		common.SendStatusError(c, err.Error())
		return
	}
	common.SendOK(c, pricing)
}

// GetPlan GET /api/get-plan?id=owner/name
func GetPlan(ctx context.Context, c *app.RequestContext) {
	owner, name, err := biz.ValidateID(c.Query("id"))
	if err != nil {
		common.SendStatusError(c, err.Error())
		return
	}

	plan, err := getDeps().Backend.GetPlan(ctx, owner, name)
	if err != nil {
		common.LogStageWithLevel(c, zapcore.WarnLevel, "get_plan_failed", zap.String("id", owner+"/"+name), zap.Error(err))
		common.SendStatusError(c, err.Error())
		return
	}
	common.SendOK(c, plan)
}

// GetPayment GET /api/get-payment?id=owner/name
func GetPayment(ctx context.Context, c *app.RequestContext) {
	owner, name, err := biz.ValidateID(c.Query("id"))
	if err != nil {
		common.SendStatusError(c, err.Error())
		return
	}

	payment, err := getDeps().Payments.GetPayment(ctx, owner, name)
	if err != nil {
		common.LogStageWithLevel(c, zapcore.WarnLevel, "get_payment_failed", zap.String("id", owner+"/"+name), zap.Error(err))
		common.SendStatusError(c, err.Error())
		return
	}
	common.SendOK(c, payment)
}

// BuyProduct POST /api/buy-product?id=owner/name&providerName=&pricingName=&planName=&userName=
func BuyProduct(ctx context.Context, c *app.RequestContext) {
	common.LogStage(c, "request_received", zap.String("handler", "BuyProduct"))

	owner, name, err := biz.ValidateID(c.Query("id"))
	if err != nil {
		common.SendStatusError(c, err.Error())
		return
	}

	req := &models.BuyProductRequest{
		Owner:        owner,
		ProductName:  name,
		ProviderName: c.Query("providerName"),
		PricingName:  c.Query("pricingName"),
		PlanName:     c.Query("planName"),
		UserName:     c.Query("userName"),
	}
	if err := biz.ValidateBuyProductRequest(req); err != nil {
		common.LogStageWithLevel(c, zapcore.WarnLevel, "validation_failed", zap.Error(err))
		common.SendStatusError(c, err.Error())
		return
	}

	payment, err := getDeps().Backend.BuyProduct(ctx, req)
	if err != nil {
		common.LogStageWithLevel(c, zapcore.WarnLevel, "buy_product_failed",
			zap.String("id", owner+"/"+name),
			zap.String("provider", req.ProviderName),
			zap.Error(err))
		common.SendStatusError(c, err.Error())
		return
	}

	common.LogStage(c, "payment_created", zap.String("payment", payment.Name), zap.String("state", payment.State))
	common.SendOK(c, payment)
}
