package checkout

import (
	"context"
	"errors"
	"net/url"
	"reflect"
	"sync"
	"testing"

	"console-checkout/biz/models"

	"github.com/shopspring/decimal"
)

// fakeBackend 记录调用顺序的假后端
type fakeBackend struct {
	mu    sync.Mutex
	calls []string

	pricing *models.Pricing
	plan    *models.Plan
	product *models.Product
	payment *models.Payment

	pricingErr error
	planErr    error
	productErr error
	buyErr     error

	buyStarted chan struct{}
	buyRelease chan struct{}
	lastBuy    *models.BuyProductRequest
}

func (f *fakeBackend) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeBackend) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeBackend) GetPricing(ctx context.Context, owner, name string) (*models.Pricing, error) {
	f.record("getPricing:" + owner + "/" + name)
	return f.pricing, f.pricingErr
}

func (f *fakeBackend) GetPlan(ctx context.Context, owner, name string) (*models.Plan, error) {
	f.record("getPlan:" + owner + "/" + name)
	return f.plan, f.planErr
}

func (f *fakeBackend) GetProduct(ctx context.Context, owner, name string) (*models.Product, error) {
	f.record("getProduct:" + owner + "/" + name)
	return f.product, f.productErr
}

func (f *fakeBackend) BuyProduct(ctx context.Context, req *models.BuyProductRequest) (*models.Payment, error) {
	f.record("buyProduct:" + req.ProviderName)
	f.mu.Lock()
	f.lastBuy = req
	f.mu.Unlock()
	if f.buyStarted != nil {
		close(f.buyStarted)
		<-f.buyRelease
	}
	return f.payment, f.buyErr
}

func testProduct() *models.Product {
	return &models.Product{
		Owner:    "acme",
		Name:     "widget",
		Currency: models.CurrencyUSD,
		Price:    decimal.RequireFromString("19.99"),
		State:    models.ProductStatePublished,
		ProviderObjs: []*models.Provider{
			{Name: "wx", Type: models.ProviderTypeWeChatPay},
			{Name: "stripe", Type: models.ProviderTypeStripe},
		},
	}
}

func testPayment() *models.Payment {
	return &models.Payment{
		Owner:      "acme",
		Name:       "payment_1",
		PayUrl:     "weixin://wxpay/bizpayurl?pr=abc",
		SuccessUrl: "http://localhost:8000/payments/acme/payment_1/result",
	}
}

// TestResolveDirectProduct 测试直接购买只请求商品
func TestResolveDirectProduct(t *testing.T) {
	backend := &fakeBackend{product: testProduct()}
	c := NewController(Params{Owner: "acme", ProductName: "widget"}, Options{Backend: backend})

	if err := c.Resolve(context.Background()); err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if got, want := backend.Calls(), []string{"getProduct:acme/widget"}; !reflect.DeepEqual(got, want) {
		t.Errorf("calls = %v, want %v", got, want)
	}
	if c.Product() != backend.product {
		t.Error("Expected fetched product to be stored")
	}
}

// TestResolvePreconditions 测试前置条件不满足时不发请求
func TestResolvePreconditions(t *testing.T) {
	tests := []struct {
		name   string
		params Params
	}{
		{"缺少 owner", Params{ProductName: "widget"}},
		{"缺少商品和定价", Params{Owner: "acme"}},
		{"定价缺少套餐", Params{Owner: "acme", PricingName: "pro", UserName: "alice"}},
		{"定价缺少用户", Params{Owner: "acme", PricingName: "pro", PlanName: "monthly"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := &fakeBackend{product: testProduct()}
			notifier := &MessageLog{}
			c := NewController(tt.params, Options{Backend: backend, Notifier: notifier})

			if err := c.Resolve(context.Background()); err != nil {
				t.Errorf("Resolve() error = %v", err)
			}
			if calls := backend.Calls(); len(calls) != 0 {
				t.Errorf("Expected no backend calls, got %v", calls)
			}
			if msgs := notifier.Messages(); len(msgs) != 0 {
				t.Errorf("Expected no messages, got %v", msgs)
			}
		})
	}
}

// TestResolvePricingPath 测试按定价、套餐、商品的顺序解析
func TestResolvePricingPath(t *testing.T) {
	pricing := &models.Pricing{Owner: "acme", Name: "pro", Plans: []string{"monthly"}}
	backend := &fakeBackend{
		pricing: pricing,
		plan:    &models.Plan{Owner: "acme", Name: "monthly", Product: "widget"},
		product: testProduct(),
	}
	var updated *models.Pricing
	query := url.Values{"plan": {"monthly"}, "user": {"alice"}}
	c := NewController(ParamsFromQuery("acme", "", "pro", query), Options{
		Backend:         backend,
		OnUpdatePricing: func(p *models.Pricing) { updated = p },
	})

	if err := c.Resolve(context.Background()); err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	want := []string{"getPricing:acme/pro", "getPlan:acme/monthly", "getProduct:acme/widget"}
	if got := backend.Calls(); !reflect.DeepEqual(got, want) {
		t.Errorf("calls = %v, want %v", got, want)
	}
	if updated != pricing || c.Pricing() != pricing || c.Plan() != backend.plan {
		t.Error("Expected pricing context to be stored and published")
	}
}

// TestResolveFailures 测试后端失败时提示并中止
func TestResolveFailures(t *testing.T) {
	query := url.Values{"plan": {"monthly"}, "user": {"alice"}}

	tests := []struct {
		name      string
		setup     func(b *fakeBackend)
		wantCalls int
		wantPlan  bool
	}{
		{"定价失败", func(b *fakeBackend) { b.pricingErr = &models.StatusError{Msg: "pricing not found"} }, 1, false},
		{"套餐失败", func(b *fakeBackend) { b.planErr = &models.StatusError{Msg: "plan not found"} }, 2, false},
		{"商品失败", func(b *fakeBackend) { b.productErr = &models.StatusError{Msg: "product not found"} }, 3, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := &fakeBackend{
				pricing: &models.Pricing{Name: "pro"},
				plan:    &models.Plan{Name: "monthly", Product: "widget"},
				product: testProduct(),
			}
			tt.setup(backend)
			notifier := &MessageLog{}
			c := NewController(ParamsFromQuery("acme", "", "pro", query), Options{Backend: backend, Notifier: notifier})

			err := c.Resolve(context.Background())
			if err == nil {
				t.Fatal("Expected error")
			}
			if got := len(backend.Calls()); got != tt.wantCalls {
				t.Errorf("Expected %d calls, got %d", tt.wantCalls, got)
			}
			msgs := notifier.Messages()
			if len(msgs) != 1 || msgs[0].Level != "error" || msgs[0].Text != err.Error() {
				t.Errorf("Unexpected messages %v", msgs)
			}
			if (c.Plan() != nil) != tt.wantPlan {
				t.Errorf("Plan stored = %v, want %v", c.Plan() != nil, tt.wantPlan)
			}
			if c.Product() != nil {
				t.Error("Product should not be stored on failure")
			}
		})
	}
}

// TestSubmitRedirect 测试下单后的跳转地址
func TestSubmitRedirect(t *testing.T) {
	tests := []struct {
		name     string
		provider string
		want     string
	}{
		{
			"微信支付跳转二维码页面", "wx",
			"/qrcode/acme/payment_1?providerName=wx&payUrl=weixin%3A%2F%2Fwxpay%2Fbizpayurl%3Fpr%3Dabc" +
				"&successUrl=http%3A%2F%2Flocalhost%3A8000%2Fpayments%2Facme%2Fpayment_1%2Fresult",
		},
		{"Stripe 直接跳转", "stripe", "weixin://wxpay/bizpayurl?pr=abc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := &fakeBackend{product: testProduct(), payment: testPayment()}
			nav := &LinkRecorder{}
			c := NewController(Params{Owner: "acme", ProductName: "widget"}, Options{Backend: backend, Navigator: nav})
			if err := c.Resolve(context.Background()); err != nil {
				t.Fatalf("Resolve() error = %v", err)
			}

			link, err := c.Submit(context.Background(), tt.provider)
			if err != nil {
				t.Fatalf("Submit() error = %v", err)
			}
			if link != tt.want || nav.Link() != tt.want {
				t.Errorf("link = %q, navigated = %q, want %q", link, nav.Link(), tt.want)
			}
			if !c.PlacingOrder() {
				t.Error("In-flight flag should stay set after success")
			}
		})
	}
}

// TestSubmitRequest 测试下单请求字段
func TestSubmitRequest(t *testing.T) {
	backend := &fakeBackend{product: testProduct(), payment: testPayment()}
	c := NewController(Params{Owner: "acme", ProductName: "widget"}, Options{Backend: backend})
	_ = c.Resolve(context.Background())

	if _, err := c.Submit(context.Background(), "stripe"); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	want := &models.BuyProductRequest{Owner: "acme", ProductName: "widget", ProviderName: "stripe"}
	if !reflect.DeepEqual(backend.lastBuy, want) {
		t.Errorf("request = %+v, want %+v", backend.lastBuy, want)
	}
}

// TestSubmitFailures 测试下单失败时的提示和状态
func TestSubmitFailures(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantMsg string
	}{
		{"业务失败", &models.StatusError{Msg: "out of stock"}, "Failed to save: out of stock"},
		{"网络失败", errors.New("dial tcp: refused"), "Failed to connect to server: dial tcp: refused"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := &fakeBackend{product: testProduct(), buyErr: tt.err}
			notifier := &MessageLog{}
			nav := &LinkRecorder{}
			c := NewController(Params{Owner: "acme", ProductName: "widget"}, Options{Backend: backend, Notifier: notifier, Navigator: nav})
			_ = c.Resolve(context.Background())

			if _, err := c.Submit(context.Background(), "stripe"); !errors.Is(err, tt.err) {
				t.Fatalf("Expected %v, got %v", tt.err, err)
			}
			if c.PlacingOrder() {
				t.Error("In-flight flag should be cleared after failure")
			}
			if nav.Link() != "" {
				t.Error("Should not navigate on failure")
			}
			msgs := notifier.Messages()
			if len(msgs) != 1 || msgs[0].Text != tt.wantMsg {
				t.Errorf("Unexpected messages %v", msgs)
			}
		})
	}
}

// TestSubmitRejected 测试不可购买时不发起下单
func TestSubmitRejected(t *testing.T) {
	unpublished := testProduct()
	unpublished.State = "Draft"
	empty := testProduct()
	empty.ProviderObjs = nil

	tests := []struct {
		name     string
		product  *models.Product
		provider string
		wantErr  error
	}{
		{"商品未加载", nil, "stripe", ErrProductNotLoaded},
		{"商品未上架", unpublished, "stripe", ErrNotForSale},
		{"没有支付渠道", empty, "stripe", ErrNoPaymentChannel},
		{"渠道不属于商品", testProduct(), "paypal", ErrUnknownProvider},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := &fakeBackend{}
			c := NewController(Params{Owner: "acme", ProductName: "widget"}, Options{Backend: backend, Product: tt.product})

			if _, err := c.Submit(context.Background(), tt.provider); !errors.Is(err, tt.wantErr) {
				t.Errorf("Expected %v, got %v", tt.wantErr, err)
			}
			if calls := backend.Calls(); len(calls) != 0 {
				t.Errorf("Expected no backend calls, got %v", calls)
			}
		})
	}
}

// TestSubmitInFlight 测试下单进行中时拒绝重复提交
func TestSubmitInFlight(t *testing.T) {
	backend := &fakeBackend{
		product:    testProduct(),
		payment:    testPayment(),
		buyStarted: make(chan struct{}),
		buyRelease: make(chan struct{}),
	}
	c := NewController(Params{Owner: "acme", ProductName: "widget"}, Options{Backend: backend})
	_ = c.Resolve(context.Background())

	done := make(chan error, 1)
	go func() {
		_, err := c.Submit(context.Background(), "stripe")
		done <- err
	}()
	<-backend.buyStarted

	if _, err := c.Submit(context.Background(), "wx"); !errors.Is(err, ErrOrderInFlight) {
		t.Errorf("Expected ErrOrderInFlight, got %v", err)
	}
	close(backend.buyRelease)
	if err := <-done; err != nil {
		t.Errorf("First submit error = %v", err)
	}
	if got := len(backend.Calls()); got != 2 {
		t.Errorf("Expected getProduct and one buyProduct, got %v", backend.Calls())
	}
}

// TestProductOverride 测试宿主提供的商品优先
func TestProductOverride(t *testing.T) {
	override := testProduct()
	backend := &fakeBackend{product: &models.Product{Name: "fetched"}}
	c := NewController(Params{Owner: "acme", ProductName: "widget"}, Options{Backend: backend, Product: override})
	_ = c.Resolve(context.Background())

	if c.Product() != override {
		t.Error("Expected host product to take precedence")
	}
}
