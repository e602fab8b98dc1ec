package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"console-checkout/biz"
	"console-checkout/biz/models"
	"console-checkout/cache"
	"console-checkout/common"
	"console-checkout/conf"
	"console-checkout/db"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

var (
	ErrNotFound             = errors.New("not found")
	ErrNotForSale           = errors.New("product is not in sale")
	ErrInvalidPlan          = errors.New("plan does not match the pricing or product")
	ErrProviderNotSupported = errors.New("payment provider is not supported")
	ErrStoreUnavailable     = errors.New("local store is not available")
)

// reject 构造业务失败，Msg 面向用户，Err 供 errors.Is 判断
func reject(sentinel error, format string, args ...interface{}) error {
	return &models.StatusError{Msg: fmt.Sprintf(format, args...), Err: sentinel}
}

// Store 本地商品库的持久化接口
type Store interface {
	GetProduct(ctx context.Context, owner, name string) (*models.Product, error)
	GetProviders(ctx context.Context, owner string, names []string) ([]*models.Provider, error)
	GetPricing(ctx context.Context, owner, name string) (*models.Pricing, error)
	GetPlan(ctx context.Context, owner, name string) (*models.Plan, error)
	SavePayment(ctx context.Context, p *models.Payment) error
	GetPayment(ctx context.Context, owner, name string) (*models.Payment, error)
	UpdatePayment(ctx context.Context, p *models.Payment) error
	IncrementProductSold(ctx context.Context, owner, name string) error
	GetSigninTable(ctx context.Context, owner, application string) ([]byte, error)
	SaveSigninTable(ctx context.Context, owner, application string, raw []byte) error
}

// dbStore 基于 MySQL 的 Store
type dbStore struct{}

// NewDBStore 返回使用 db 包全局连接的 Store
func NewDBStore() Store {
	return dbStore{}
}

func (dbStore) GetProduct(ctx context.Context, owner, name string) (*models.Product, error) {
	if !db.IsAvailable() {
		return nil, ErrStoreUnavailable
	}
	return db.GetProduct(ctx, owner, name)
}

func (dbStore) GetProviders(ctx context.Context, owner string, names []string) ([]*models.Provider, error) {
	if !db.IsAvailable() {
		return nil, ErrStoreUnavailable
	}
	return db.GetProviders(ctx, owner, names)
}

func (dbStore) GetPricing(ctx context.Context, owner, name string) (*models.Pricing, error) {
	if !db.IsAvailable() {
		return nil, ErrStoreUnavailable
	}
	return db.GetPricing(ctx, owner, name)
}

func (dbStore) GetPlan(ctx context.Context, owner, name string) (*models.Plan, error) {
	if !db.IsAvailable() {
		return nil, ErrStoreUnavailable
	}
	return db.GetPlan(ctx, owner, name)
}

func (dbStore) SavePayment(ctx context.Context, p *models.Payment) error {
	if !db.IsAvailable() {
		return ErrStoreUnavailable
	}
	return db.SavePayment(ctx, p)
}

func (dbStore) GetPayment(ctx context.Context, owner, name string) (*models.Payment, error) {
	if !db.IsAvailable() {
		return nil, ErrStoreUnavailable
	}
	return db.GetPayment(ctx, owner, name)
}

func (dbStore) UpdatePayment(ctx context.Context, p *models.Payment) error {
	if !db.IsAvailable() {
		return ErrStoreUnavailable
	}
	return db.UpdatePayment(ctx, p)
}

func (dbStore) IncrementProductSold(ctx context.Context, owner, name string) error {
	if !db.IsAvailable() {
		return ErrStoreUnavailable
	}
	return db.IncrementProductSold(ctx, owner, name)
}

func (dbStore) GetSigninTable(ctx context.Context, owner, application string) ([]byte, error) {
	if !db.IsAvailable() {
		return nil, ErrStoreUnavailable
	}
	return db.GetSigninTable(ctx, owner, application)
}

func (dbStore) SaveSigninTable(ctx context.Context, owner, application string, raw []byte) error {
	if !db.IsAvailable() {
		return ErrStoreUnavailable
	}
	return db.SaveSigninTable(ctx, owner, application, raw)
}

// fillTimeout 合并回源的超时，回源不跟随首个调用方的取消
const fillTimeout = 5 * time.Second

// StoreService 本地后端：商品库 + 缓存 + 支付渠道
type StoreService struct {
	cfg      *conf.Config
	store    Store
	gateways Gateways
	group    singleflight.Group

	now     func() time.Time
	newName func() string
}

// NewStoreService 创建本地后端
func NewStoreService(cfg *conf.Config, store Store, gateways Gateways) *StoreService {
	return &StoreService{
		cfg:      cfg,
		store:    store,
		gateways: gateways,
		now:      time.Now,
		newName:  func() string { return "payment_" + uuid.NewString() },
	}
}

// GetProduct 获取商品及其支付渠道：缓存 -> 合并回源 -> 数据库
func (s *StoreService) GetProduct(ctx context.Context, owner, name string) (*models.Product, error) {
	cached, err := cache.GetProduct(ctx, owner, name)
	if err == nil && cached != nil {
		common.RecordCacheLookup("product", true)
		return cached, nil
	}
	common.RecordCacheLookup("product", false)

	v, err, _ := s.group.Do(cache.Key(cache.ProductKeyPrefix, owner, name), func() (interface{}, error) {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), fillTimeout)
		defer cancel()

		product, err := s.store.GetProduct(ctx, owner, name)
		if err != nil {
			return nil, err
		}
		if product == nil {
			return nil, reject(ErrNotFound, "the product: %s/%s does not exist", owner, name)
		}

		product.ProviderObjs, err = s.store.GetProviders(ctx, owner, product.Providers)
		if err != nil {
			return nil, err
		}

		_ = cache.SetProduct(ctx, product, cache.DefaultProductTTL)
		return product, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*models.Product), nil
}

// GetPricing 获取定价
func (s *StoreService) GetPricing(ctx context.Context, owner, name string) (*models.Pricing, error) {
	cached, err := cache.GetPricing(ctx, owner, name)
	if err == nil && cached != nil {
		common.RecordCacheLookup("pricing", true)
		return cached, nil
	}
	common.RecordCacheLookup("pricing", false)

	v, err, _ := s.group.Do(cache.Key(cache.PricingKeyPrefix, owner, name), func() (interface{}, error) {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), fillTimeout)
		defer cancel()

		pricing, err := s.store.GetPricing(ctx, owner, name)
		if err != nil {
			return nil, err
		}
		if pricing == nil {
			return nil, reject(ErrNotFound, "the pricing: %s/%s does not exist", owner, name)
		}
		_ = cache.SetPricing(ctx, pricing, cache.DefaultPricingTTL)
		return pricing, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*models.Pricing), nil
}

// GetPlan 获取套餐
func (s *StoreService) GetPlan(ctx context.Context, owner, name string) (*models.Plan, error) {
	cached, err := cache.GetPlan(ctx, owner, name)
	if err == nil && cached != nil {
		common.RecordCacheLookup("plan", true)
		return cached, nil
	}
	common.RecordCacheLookup("plan", false)

	v, err, _ := s.group.Do(cache.Key(cache.PlanKeyPrefix, owner, name), func() (interface{}, error) {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), fillTimeout)
		defer cancel()

		plan, err := s.store.GetPlan(ctx, owner, name)
		if err != nil {
			return nil, err
		}
		if plan == nil {
			return nil, reject(ErrNotFound, "the plan: %s/%s does not exist", owner, name)
		}
		_ = cache.SetPlan(ctx, plan, cache.DefaultPricingTTL)
		return plan, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*models.Plan), nil
}

// SuccessURL 支付结果页地址
func (s *StoreService) SuccessURL(owner, paymentName string) string {
	return fmt.Sprintf("%s/payments/%s/%s/result", strings.TrimRight(s.cfg.Checkout.Origin, "/"), owner, paymentName)
}

// BuyProduct 为商品创建支付并向渠道下单
func (s *StoreService) BuyProduct(ctx context.Context, req *models.BuyProductRequest) (*models.Payment, error) {
	if err := biz.ValidateBuyProductRequest(req); err != nil {
		return nil, reject(err, "%s", err.Error())
	}

	product, err := s.GetProduct(ctx, req.Owner, req.ProductName)
	if err != nil {
		return nil, err
	}
	if !product.IsPublished() {
		return nil, reject(ErrNotForSale, "the product: %s is not in sale", product.Name)
	}

	provider := product.FindProvider(req.ProviderName)
	if provider == nil {
		return nil, reject(ErrNotFound, "the provider: %s is not offered by product: %s", req.ProviderName, product.Name)
	}

	price, currency := product.Price, product.Currency
	if req.PricingName != "" {
		pricing, err := s.GetPricing(ctx, req.Owner, req.PricingName)
		if err != nil {
			return nil, err
		}
		plan, err := s.GetPlan(ctx, req.Owner, req.PlanName)
		if err != nil {
			return nil, err
		}
		if !pricing.HasPlan(plan.Name) || plan.Product != product.Name {
			return nil, reject(ErrInvalidPlan, "the plan: %s does not belong to pricing: %s and product: %s", plan.Name, pricing.Name, product.Name)
		}
		price = plan.Price
		if plan.Currency != "" {
			currency = plan.Currency
		}
	}
	if err := biz.ValidatePrice(price); err != nil {
		return nil, reject(err, "%s", err.Error())
	}
	if err := biz.ValidateCurrency(currency); err != nil {
		return nil, reject(err, "%s", err.Error())
	}

	gateway, err := s.gateways.For(provider.Type)
	if err != nil {
		return nil, reject(err, "the provider type: %s is not supported", provider.Type)
	}

	name := s.newName()
	payment := &models.Payment{
		Owner:              req.Owner,
		Name:               name,
		CreatedTime:        s.now().Format(time.RFC3339),
		Provider:           provider.Name,
		ProviderType:       provider.Type,
		ProductName:        product.Name,
		ProductDisplayName: product.DisplayName,
		Price:              price,
		Currency:           currency,
		User:               req.UserName,
		PricingName:        req.PricingName,
		PlanName:           req.PlanName,
		State:              models.PaymentStateCreated,
		SuccessUrl:         s.SuccessURL(req.Owner, name),
		ReturnUrl:          product.ReturnUrl,
	}

	// 先落库再下单，渠道侧订单总能对应到本地记录
	if err := s.store.SavePayment(ctx, payment); err != nil {
		return nil, fmt.Errorf("failed to save payment: %w", err)
	}

	start := time.Now()
	result, err := gateway.Pay(ctx, &PayRequest{Payment: payment, Provider: provider})
	amount := price.InexactFloat64()
	if err != nil {
		common.RecordGatewayPay(provider.Type, "failed", amount, currency, time.Since(start))
		zap.L().Error("Gateway pay failed",
			zap.String("owner", req.Owner),
			zap.String("product", product.Name),
			zap.String("provider", provider.Name),
			zap.Error(err))

		payment.State = models.PaymentStateError
		if updateErr := s.store.UpdatePayment(ctx, payment); updateErr != nil {
			zap.L().Warn("Failed to mark payment as error", zap.String("payment", payment.Name), zap.Error(updateErr))
		}
		return nil, reject(err, "%s", err.Error())
	}
	common.RecordGatewayPay(provider.Type, "created", amount, currency, time.Since(start))

	payment.PayUrl = result.PayURL
	payment.OutOrderId = result.OutOrderID
	if result.State != "" {
		payment.State = result.State
	}

	if err := s.store.UpdatePayment(ctx, payment); err != nil {
		return nil, fmt.Errorf("failed to update payment: %w", err)
	}

	if payment.State == models.PaymentStatePaid {
		if err := s.store.IncrementProductSold(ctx, product.Owner, product.Name); err != nil {
			zap.L().Warn("Failed to update product sold", zap.Error(err))
		}
		_ = cache.Delete(ctx, cache.Key(cache.ProductKeyPrefix, product.Owner, product.Name))
	}

	zap.L().Info("Product bought",
		zap.String("owner", payment.Owner),
		zap.String("payment", payment.Name),
		zap.String("product", payment.ProductName),
		zap.String("provider", payment.Provider),
		zap.String("price", payment.Price.String()),
		zap.String("currency", payment.Currency),
		zap.String("state", payment.State))

	return payment, nil
}

// GetPayment 获取支付记录
func (s *StoreService) GetPayment(ctx context.Context, owner, name string) (*models.Payment, error) {
	payment, err := s.store.GetPayment(ctx, owner, name)
	if err != nil {
		return nil, err
	}
	if payment == nil {
		return nil, reject(ErrNotFound, "the payment: %s/%s does not exist", owner, name)
	}
	return payment, nil
}
