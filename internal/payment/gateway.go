package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// CheckoutRequest 是发起收银台支付所需的参数。
type CheckoutRequest struct {
	Reference    string
	OrderID      uint
	Amount       int64 // IDR，已取整
	Units        int64 // 购买的虚拟币数量
	Method       string
	CustomerName string
	CallbackURL  string
	RedirectURL  string
}

// Checkout 是网关返回的支付句柄。
type Checkout struct {
	PaymentID   string
	CheckoutURL string
}

// Gateway 出站支付网关。
type Gateway interface {
	Vendor() Vendor
	CreateCheckout(ctx context.Context, req CheckoutRequest) (Checkout, error)
}

// VendorStatus 是网关主动查询返回的原始状态。
type VendorStatus struct {
	Status      string
	FraudStatus string
}

// StatusQuerier 由支持主动查单的网关实现。
type StatusQuerier interface {
	QueryStatus(ctx context.Context, reference string) (VendorStatus, error)
}

// StatusError 表示网关返回了非 2xx。
type StatusError struct {
	Vendor Vendor
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned http %d: %s", e.Vendor, e.Code, e.Body)
}

const defaultGatewayTimeout = 10 * time.Second

func newHTTPClient(c *http.Client) *http.Client {
	if c != nil {
		return c
	}
	return &http.Client{Timeout: defaultGatewayTimeout}
}

// doJSON 发送 JSON 请求并把 2xx 响应解到 out。
func doJSON(ctx context.Context, client *http.Client, vendor Vendor, method, url string, headers map[string]string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%s request: %w", vendor, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%s read body: %w", vendor, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{Vendor: vendor, Code: resp.StatusCode, Body: string(raw)}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%s decode response: %w", vendor, err)
	}
	return nil
}
