package payment

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// MidtransConfig：Snap 与 Core API 分属两个域名。
type MidtransConfig struct {
	ServerKey  string
	SnapURL    string // 如 https://app.sandbox.midtrans.com
	APIURL     string // 如 https://api.sandbox.midtrans.com
	HTTPClient *http.Client
}

// MidtransGateway 通过 Snap 发起支付，并支持按单号查询状态。
type MidtransGateway struct {
	cfg    MidtransConfig
	client *http.Client
}

func NewMidtransGateway(cfg MidtransConfig) *MidtransGateway {
	cfg.SnapURL = strings.TrimRight(cfg.SnapURL, "/")
	cfg.APIURL = strings.TrimRight(cfg.APIURL, "/")
	return &MidtransGateway{cfg: cfg, client: newHTTPClient(cfg.HTTPClient)}
}

func (g *MidtransGateway) Vendor() Vendor { return VendorMidtrans }

func (g *MidtransGateway) authHeaders() map[string]string {
	token := base64.StdEncoding.EncodeToString([]byte(g.cfg.ServerKey + ":"))
	return map[string]string{"Authorization": "Basic " + token}
}

type snapItem struct {
	ID       string `json:"id"`
	Price    int64  `json:"price"`
	Quantity int    `json:"quantity"`
	Name     string `json:"name"`
}

type snapRequest struct {
	TransactionDetails struct {
		OrderID     string `json:"order_id"`
		GrossAmount int64  `json:"gross_amount"`
	} `json:"transaction_details"`
	ItemDetails     []snapItem `json:"item_details"`
	CustomerDetails struct {
		FirstName string `json:"first_name"`
	} `json:"customer_details"`
	EnabledPayments []string `json:"enabled_payments,omitempty"`
	Callbacks       struct {
		Finish string `json:"finish,omitempty"`
	} `json:"callbacks"`
}

type snapResponse struct {
	Token       string `json:"token"`
	RedirectURL string `json:"redirect_url"`
}

// CreateCheckout 创建 Snap 交易，token 作为支付句柄。
func (g *MidtransGateway) CreateCheckout(ctx context.Context, req CheckoutRequest) (Checkout, error) {
	var body snapRequest
	body.TransactionDetails.OrderID = req.Reference
	body.TransactionDetails.GrossAmount = req.Amount
	body.ItemDetails = []snapItem{{
		ID:       fmt.Sprintf("robux-%d", req.Units),
		Price:    req.Amount,
		Quantity: 1,
		Name:     fmt.Sprintf("%d Robux Top-up", req.Units),
	}}
	body.CustomerDetails.FirstName = req.CustomerName
	if req.Method != "" {
		body.EnabledPayments = []string{req.Method}
	}
	body.Callbacks.Finish = req.RedirectURL

	var out snapResponse
	if err := doJSON(ctx, g.client, VendorMidtrans, http.MethodPost, g.cfg.SnapURL+"/snap/v1/transactions", g.authHeaders(), body, &out); err != nil {
		return Checkout{}, err
	}
	return Checkout{PaymentID: out.Token, CheckoutURL: out.RedirectURL}, nil
}

type midtransStatusResponse struct {
	StatusCode        string `json:"status_code"`
	TransactionStatus string `json:"transaction_status"`
	FraudStatus       string `json:"fraud_status"`
}

// QueryStatus 调用 GET /v2/{order_id}/status。
func (g *MidtransGateway) QueryStatus(ctx context.Context, reference string) (VendorStatus, error) {
	var out midtransStatusResponse
	u := g.cfg.APIURL + "/v2/" + url.PathEscape(reference) + "/status"
	if err := doJSON(ctx, g.client, VendorMidtrans, http.MethodGet, u, g.authHeaders(), nil, &out); err != nil {
		return VendorStatus{}, err
	}
	// 查无此单时 HTTP 仍是 200，错误码在 body 的 status_code 里
	if out.TransactionStatus == "" {
		return VendorStatus{}, fmt.Errorf("midtrans status for %s: status_code %s", reference, out.StatusCode)
	}
	return VendorStatus{Status: out.TransactionStatus, FraudStatus: out.FraudStatus}, nil
}
