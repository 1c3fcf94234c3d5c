package payment

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// DanaConfig 是 DANA 收银台所需的商户配置。
type DanaConfig struct {
	MerchantID string
	SecretKey  string
	BaseURL    string
	HTTPClient *http.Client
}

// DanaGateway 通过 DANA Hosted Checkout 发起支付。
type DanaGateway struct {
	cfg    DanaConfig
	client *http.Client
	now    func() time.Time
}

func NewDanaGateway(cfg DanaConfig) *DanaGateway {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &DanaGateway{cfg: cfg, client: newHTTPClient(cfg.HTTPClient), now: time.Now}
}

func (g *DanaGateway) Vendor() Vendor { return VendorDana }

type danaCheckoutItem struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Price    int64  `json:"price"`
	Quantity int    `json:"quantity"`
}

type danaCheckoutRequest struct {
	MerchantID    string `json:"merchantId"`
	OrderID       string `json:"orderId"`
	Amount        int64  `json:"amount"`
	Currency      string `json:"currency"`
	Description   string `json:"description"`
	CallbackURL   string `json:"callbackUrl"`
	RedirectURL   string `json:"redirectUrl"`
	PaymentMethod string `json:"paymentMethod"`
	CustomerInfo  struct {
		CustomerName  string `json:"customerName"`
		CustomerEmail string `json:"customerEmail"`
	} `json:"customerInfo"`
	Items []danaCheckoutItem `json:"items"`
}

type danaCheckoutResponse struct {
	PaymentID   string `json:"paymentId"`
	CheckoutURL string `json:"checkoutUrl"`
	PaymentURL  string `json:"paymentUrl"`
}

// CreateCheckout 创建收银台订单，请求头带 HMAC 签名。
func (g *DanaGateway) CreateCheckout(ctx context.Context, req CheckoutRequest) (Checkout, error) {
	customer := req.CustomerName
	if customer == "" {
		customer = "Guest"
	}
	body := danaCheckoutRequest{
		MerchantID:    g.cfg.MerchantID,
		OrderID:       req.Reference,
		Amount:        req.Amount,
		Currency:      "IDR",
		Description:   fmt.Sprintf("%d Robux Top-up", req.Units),
		CallbackURL:   req.CallbackURL,
		RedirectURL:   req.RedirectURL,
		PaymentMethod: req.Method,
		Items: []danaCheckoutItem{{
			ID:       fmt.Sprintf("robux-%d", req.Units),
			Name:     fmt.Sprintf("%d Robux Top-up", req.Units),
			Price:    req.Amount,
			Quantity: 1,
		}},
	}
	body.CustomerInfo.CustomerName = customer
	body.CustomerInfo.CustomerEmail = strings.ToLower(customer) + "@mdzbux.com"

	headers := map[string]string{
		"Authorization": "Bearer " + g.cfg.SecretKey,
		"X-Signature":   DanaRequestSignature(g.cfg.MerchantID, req.Reference, req.Amount, g.cfg.SecretKey),
		"X-Timestamp":   g.now().UTC().Format(time.RFC3339),
	}
	var out danaCheckoutResponse
	if err := doJSON(ctx, g.client, VendorDana, http.MethodPost, g.cfg.BaseURL+"/api/v2/payment/hosted-checkout", headers, body, &out); err != nil {
		return Checkout{}, err
	}
	checkoutURL := out.CheckoutURL
	if checkoutURL == "" {
		checkoutURL = out.PaymentURL
	}
	return Checkout{PaymentID: out.PaymentID, CheckoutURL: checkoutURL}, nil
}
