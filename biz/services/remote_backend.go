package services

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"console-checkout/biz/models"

	"github.com/cloudwego/hertz/pkg/app/client"
	"github.com/cloudwego/hertz/pkg/protocol"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"go.uber.org/zap"
)

// RemoteBackend 通过 Casdoor HTTP API 获取商品并下单
type RemoteBackend struct {
	endpoint     string
	clientID     string
	clientSecret string
	client       *client.Client
}

// NewRemoteBackend 创建远程后端
func NewRemoteBackend(endpoint, clientID, clientSecret string, timeout time.Duration) (*RemoteBackend, error) {
	c, err := client.NewClient(
		client.WithDialTimeout(timeout),
		client.WithClientReadTimeout(timeout),
		client.WithWriteTimeout(timeout),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http client: %w", err)
	}
	return &RemoteBackend{
		endpoint:     strings.TrimRight(endpoint, "/"),
		clientID:     clientID,
		clientSecret: clientSecret,
		client:       c,
	}, nil
}

// call 发送请求并解码信封，status 不为 ok 时返回 *models.StatusError
func (b *RemoteBackend) call(ctx context.Context, method, path string, query url.Values, out interface{}) error {
	req := protocol.AcquireRequest()
	resp := protocol.AcquireResponse()
	defer protocol.ReleaseRequest(req)
	defer protocol.ReleaseResponse(resp)

	req.SetRequestURI(b.endpoint + path + "?" + query.Encode())
	req.SetMethod(method)
	req.Header.Set("Accept", "application/json")
	if b.clientID != "" {
		token := base64.StdEncoding.EncodeToString([]byte(b.clientID + ":" + b.clientSecret))
		req.Header.Set("Authorization", "Basic "+token)
	}

	start := time.Now()
	if err := b.client.Do(ctx, req, resp); err != nil {
		zap.L().Warn("Remote backend request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err))
		return fmt.Errorf("%s %s: %w", method, path, err)
	}

	zap.L().Debug("Remote backend responded",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode()),
		zap.Duration("latency", time.Since(start)))

	if resp.StatusCode() != consts.StatusOK {
		return fmt.Errorf("%s %s: unexpected http status %d", method, path, resp.StatusCode())
	}

	var envelope models.Response
	if err := json.Unmarshal(resp.Body(), &envelope); err != nil {
		return fmt.Errorf("%s %s: invalid response: %w", method, path, err)
	}
	if envelope.Status != models.StatusOK {
		return &models.StatusError{Msg: envelope.Msg}
	}

	data := strings.TrimSpace(string(envelope.Data))
	if data == "" || data == "null" {
		return reject(ErrNotFound, "%s: %s does not exist", strings.TrimPrefix(path, "/api/get-"), query.Get("id"))
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return fmt.Errorf("%s %s: invalid data: %w", method, path, err)
	}
	return nil
}

func idQuery(owner, name string) url.Values {
	return url.Values{"id": []string{owner + "/" + name}}
}

func (b *RemoteBackend) GetPricing(ctx context.Context, owner, name string) (*models.Pricing, error) {
	var pricing models.Pricing
	if err := b.call(ctx, consts.MethodGet, "/api/get-pricing", idQuery(owner, name), &pricing); err != nil {
		return nil, err
	}
	return &pricing, nil
}

func (b *RemoteBackend) GetPlan(ctx context.Context, owner, name string) (*models.Plan, error) {
	var plan models.Plan
	if err := b.call(ctx, consts.MethodGet, "/api/get-plan", idQuery(owner, name), &plan); err != nil {
		return nil, err
	}
	return &plan, nil
}

func (b *RemoteBackend) GetProduct(ctx context.Context, owner, name string) (*models.Product, error) {
	var product models.Product
	if err := b.call(ctx, consts.MethodGet, "/api/get-product", idQuery(owner, name), &product); err != nil {
		return nil, err
	}
	return &product, nil
}

func (b *RemoteBackend) BuyProduct(ctx context.Context, req *models.BuyProductRequest) (*models.Payment, error) {
	query := idQuery(req.Owner, req.ProductName)
	query.Set("providerName", req.ProviderName)
	query.Set("pricingName", req.PricingName)
	query.Set("planName", req.PlanName)
	query.Set("userName", req.UserName)

	var payment models.Payment
	if err := b.call(ctx, consts.MethodPost, "/api/buy-product", query, &payment); err != nil {
		return nil, err
	}
	return &payment, nil
}

func (b *RemoteBackend) GetPayment(ctx context.Context, owner, name string) (*models.Payment, error) {
	var payment models.Payment
	if err := b.call(ctx, consts.MethodGet, "/api/get-payment", idQuery(owner, name), &payment); err != nil {
		return nil, err
	}
	return &payment, nil
}

// Ping 检查远程后端是否可达
func (b *RemoteBackend) Ping(ctx context.Context) error {
	req := protocol.AcquireRequest()
	resp := protocol.AcquireResponse()
	defer protocol.ReleaseRequest(req)
	defer protocol.ReleaseResponse(resp)

	req.SetRequestURI(b.endpoint + "/api/health")
	req.SetMethod(consts.MethodGet)
	if err := b.client.Do(ctx, req, resp); err != nil {
		return err
	}
	if resp.StatusCode() >= consts.StatusInternalServerError {
		return fmt.Errorf("remote backend unhealthy: http status %d", resp.StatusCode())
	}
	return nil
}
