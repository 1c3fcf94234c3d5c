package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// ErrStatus 表示服务端返回了非 2xx。
var ErrStatus = errors.New("unexpected http status")

// Client 是充值服务 HTTP API 的轻量客户端。
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// New 创建客户端。token 为空时以游客身份访问。
func New(baseURL, token string, hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: 5 * time.Second}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), token: token, http: hc}
}

// OrderStatus 轮询接口返回的订单快照。
type OrderStatus struct {
	ID            uint      `json:"id"`
	PaymentStatus string    `json:"paymentStatus"`
	OrderStatus   string    `json:"orderStatus"`
	PaymentID     *string   `json:"paymentId"`
	Amount        string    `json:"amount"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// Terminal COMPLETED / FAILED
func (s OrderStatus) Terminal() bool {
	return s.OrderStatus == "COMPLETED" || s.OrderStatus == "FAILED"
}

// CreateOrder 下单并返回订单 ID；guest 为 true 时走游客入口。
func (c *Client) CreateOrder(ctx context.Context, body any, guest bool) (uint, error) {
	path := "/api/orders"
	if guest {
		path = "/api/orders/guest"
	}
	var out struct {
		Order struct {
			ID uint `json:"id"`
		} `json:"order"`
	}
	if err := c.do(ctx, http.MethodPost, path, body, &out); err != nil {
		return 0, err
	}
	return out.Order.ID, nil
}

// PaymentStatus 查询一次订单状态。
func (c *Client) PaymentStatus(ctx context.Context, orderID uint, refresh bool) (OrderStatus, error) {
	path := "/api/payment/status?orderId=" + strconv.FormatUint(uint64(orderID), 10)
	if refresh {
		path += "&refresh=true"
	}
	var out struct {
		Order OrderStatus `json:"order"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return OrderStatus{}, err
	}
	return out.Order, nil
}

// PostRaw 发送原始 JSON，返回状态码与响应体，不把非 2xx 视为错误。
func (c *Client) PostRaw(ctx context.Context, path string, payload []byte) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	return resp.StatusCode, b, err
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode >= 300 {
		return fmt.Errorf("%w: %s %s -> %d %s", ErrStatus, method, path, resp.StatusCode, strings.TrimSpace(string(b)))
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(b, out)
}
