package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"console-checkout/biz/models"
)

// casdoorStub 模拟 Casdoor API
type casdoorStub struct {
	mu       sync.Mutex
	requests []*http.Request
}

func (s *casdoorStub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.requests = append(s.requests, r.Clone(context.Background()))
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	id := r.URL.Query().Get("id")
	switch {
	case r.URL.Path == "/api/get-product" && id == "acme/widget":
		fmt.Fprint(w, `{"status":"ok","msg":"","data":{"owner":"acme","name":"widget","price":9.99,"currency":"USD","state":"Published","providers":["wechat"],"providerObjs":[{"owner":"acme","name":"wechat","type":"WeChat Pay"}]}}`)
	case r.URL.Path == "/api/get-product":
		fmt.Fprint(w, `{"status":"ok","msg":"","data":null}`)
	case r.URL.Path == "/api/get-pricing":
		fmt.Fprint(w, `{"status":"ok","msg":"","data":{"owner":"acme","name":"p1","plans":["pro"],"isEnabled":true}}`)
	case r.URL.Path == "/api/get-plan":
		fmt.Fprint(w, `{"status":"error","msg":"The plan: acme/pro is disabled","data":null}`)
	case r.URL.Path == "/api/buy-product" && r.Method == http.MethodPost:
		fmt.Fprint(w, `{"status":"ok","msg":"","data":{"owner":"acme","name":"payment_1","payUrl":"weixin://wxpay/bizpayurl?pr=abc","successUrl":"https://door.example.com/payments/acme/payment_1/result"}}`)
	case r.URL.Path == "/api/get-payment" && id == "acme/payment_1":
		fmt.Fprint(w, `{"status":"ok","msg":"","data":{"owner":"acme","name":"payment_1","state":"Paid","outOrderId":"cs_1"}}`)
	case r.URL.Path == "/api/get-payment":
		fmt.Fprint(w, `{"status":"ok","msg":"","data":null}`)
	case r.URL.Path == "/api/broken":
		w.WriteHeader(http.StatusBadGateway)
	default:
		http.NotFound(w, r)
	}
}

func (s *casdoorStub) last() *http.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[len(s.requests)-1]
}

func newTestRemote(t *testing.T) (*RemoteBackend, *casdoorStub) {
	stub := &casdoorStub{}
	srv := httptest.NewServer(stub)
	t.Cleanup(srv.Close)

	b, err := NewRemoteBackend(srv.URL+"/", "client-id", "client-secret", 5*time.Second)
	if err != nil {
		t.Fatalf("NewRemoteBackend() error = %v", err)
	}
	return b, stub
}

// TestRemoteGetProduct 测试远程获取商品
func TestRemoteGetProduct(t *testing.T) {
	b, stub := newTestRemote(t)

	p, err := b.GetProduct(context.Background(), "acme", "widget")
	if err != nil {
		t.Fatalf("GetProduct() error = %v", err)
	}
	if p.Name != "widget" || p.Price.String() != "9.99" || p.FindProvider("wechat") == nil {
		t.Errorf("Unexpected product %+v", p)
	}

	req := stub.last()
	if user, pass, ok := req.BasicAuth(); !ok || user != "client-id" || pass != "client-secret" {
		t.Errorf("BasicAuth = %q, %q, %v", user, pass, ok)
	}
}

// TestRemoteEnvelopeErrors 测试信封错误与传输错误的区分
func TestRemoteEnvelopeErrors(t *testing.T) {
	b, _ := newTestRemote(t)
	ctx := context.Background()

	_, err := b.GetPlan(ctx, "acme", "pro")
	var statusErr *models.StatusError
	if !errors.As(err, &statusErr) || statusErr.Msg != "The plan: acme/pro is disabled" {
		t.Errorf("GetPlan() error = %v, want status error", err)
	}

	_, err = b.GetProduct(ctx, "acme", "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("GetProduct(missing) error = %v, want ErrNotFound", err)
	}

	err = b.call(ctx, http.MethodGet, "/api/broken", idQuery("acme", "x"), &struct{}{})
	if err == nil || errors.As(err, &statusErr) {
		t.Errorf("HTTP failure should be a transport error, got %v", err)
	}
}

// TestRemoteBuyProduct 测试远程下单参数
func TestRemoteBuyProduct(t *testing.T) {
	b, stub := newTestRemote(t)

	payment, err := b.BuyProduct(context.Background(), &models.BuyProductRequest{
		Owner: "acme", ProductName: "widget", ProviderName: "wechat",
		PricingName: "p1", PlanName: "pro", UserName: "alice",
	})
	if err != nil {
		t.Fatalf("BuyProduct() error = %v", err)
	}
	if payment.PayUrl != "weixin://wxpay/bizpayurl?pr=abc" {
		t.Errorf("PayUrl = %q", payment.PayUrl)
	}

	q := stub.last().URL.Query()
	want := map[string]string{
		"id":           "acme/widget",
		"providerName": "wechat",
		"pricingName":  "p1",
		"planName":     "pro",
		"userName":     "alice",
	}
	for k, v := range want {
		if q.Get(k) != v {
			t.Errorf("query %s = %q, want %q", k, q.Get(k), v)
		}
	}
}

// TestRemoteGetPayment 测试远程查询支付记录
func TestRemoteGetPayment(t *testing.T) {
	b, stub := newTestRemote(t)

	p, err := b.GetPayment(context.Background(), "acme", "payment_1")
	if err != nil {
		t.Fatalf("GetPayment() error = %v", err)
	}
	if p.State != models.PaymentStatePaid || p.OutOrderId != "cs_1" {
		t.Errorf("Unexpected payment %+v", p)
	}
	if got := stub.last().URL.Query().Get("id"); got != "acme/payment_1" {
		t.Errorf("id = %q", got)
	}

	if _, err := b.GetPayment(context.Background(), "acme", "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetPayment(missing) error = %v, want ErrNotFound", err)
	}
}

// TestRemoteUnreachable 测试连接失败
func TestRemoteUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	endpoint := srv.URL
	srv.Close()

	b, err := NewRemoteBackend(endpoint, "", "", time.Second)
	if err != nil {
		t.Fatalf("NewRemoteBackend() error = %v", err)
	}

	_, err = b.GetPricing(context.Background(), "acme", "p1")
	var statusErr *models.StatusError
	if err == nil || errors.As(err, &statusErr) {
		t.Errorf("GetPricing() error = %v, want transport error", err)
	}
}
