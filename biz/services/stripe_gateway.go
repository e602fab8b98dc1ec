package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v78"
	checkoutsession "github.com/stripe/stripe-go/v78/checkout/session"
	"github.com/stripe/stripe-go/v78/paymentintent"
	"go.uber.org/zap"
)

// StripeGateway Stripe Checkout 收银台
type StripeGateway struct{}

// NewStripeGateway 创建 Stripe 渠道
func NewStripeGateway(secretKey string) *StripeGateway {
	stripe.Key = secretKey
	return &StripeGateway{}
}

func (g *StripeGateway) Pay(ctx context.Context, req *PayRequest) (*PayResult, error) {
	p := req.Payment

	cancelURL := p.ReturnUrl
	if cancelURL == "" {
		cancelURL = p.SuccessUrl
	}

	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(p.SuccessUrl),
		CancelURL:         stripe.String(cancelURL),
		ClientReferenceID: stripe.String(p.Name),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency: stripe.String(strings.ToLower(p.Currency)),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(p.ProductDisplayName),
					},
					UnitAmount: stripe.Int64(minorUnits(p.Price)),
				},
				Quantity: stripe.Int64(1),
			},
		},
	}
	params.Context = ctx
	params.IdempotencyKey = stripe.String(p.Name)
	params.AddMetadata("owner", p.Owner)
	params.AddMetadata("payment_name", p.Name)
	params.AddMetadata("product_name", p.ProductName)

	s, err := checkoutsession.New(params)
	if err != nil {
		return nil, fmt.Errorf("failed to create stripe checkout session: %w", err)
	}

	zap.L().Info("Stripe checkout session created",
		zap.String("session_id", s.ID),
		zap.String("payment", p.Name))

	return &PayResult{PayURL: s.URL, OutOrderID: s.ID}, nil
}

// AlipayGateway 通过 Stripe PaymentIntent 发起支付宝支付
type AlipayGateway struct{}

// NewAlipayGateway 创建支付宝渠道
func NewAlipayGateway(secretKey string) *AlipayGateway {
	stripe.Key = secretKey
	return &AlipayGateway{}
}

func (g *AlipayGateway) Pay(ctx context.Context, req *PayRequest) (*PayResult, error) {
	p := req.Payment

	params := &stripe.PaymentIntentParams{
		Amount:             stripe.Int64(minorUnits(p.Price)),
		Currency:           stripe.String(strings.ToLower(p.Currency)),
		PaymentMethodTypes: stripe.StringSlice([]string{"alipay"}),
		PaymentMethodData: &stripe.PaymentIntentPaymentMethodDataParams{
			Type: stripe.String("alipay"),
		},
		Confirm:   stripe.Bool(true),
		ReturnURL: stripe.String(p.SuccessUrl),
		Metadata: map[string]string{
			"owner":        p.Owner,
			"payment_name": p.Name,
			"product_name": p.ProductName,
		},
	}
	params.Context = ctx
	params.IdempotencyKey = stripe.String(p.Name)

	intent, err := paymentintent.New(params)
	if err != nil {
		return nil, fmt.Errorf("failed to create alipay payment intent: %w", err)
	}

	if intent.NextAction == nil || intent.NextAction.AlipayHandleRedirect == nil {
		return nil, fmt.Errorf("alipay payment intent %s has no redirect", intent.ID)
	}

	zap.L().Info("Alipay payment intent created",
		zap.String("payment_intent_id", intent.ID),
		zap.String("status", string(intent.Status)),
		zap.String("payment", p.Name))

	return &PayResult{PayURL: intent.NextAction.AlipayHandleRedirect.URL, OutOrderID: intent.ID}, nil
}
