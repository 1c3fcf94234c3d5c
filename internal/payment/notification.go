package payment

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrUnreadablePayload 回调报文无法解析或缺少外部单号。
	ErrUnreadablePayload = errors.New("unreadable notification payload")
	// ErrBadSignature 签名缺失或不匹配。
	ErrBadSignature = errors.New("signature mismatch")
)

// Notification 是归一化后的网关回调。
type Notification struct {
	Vendor      Vendor
	Reference   string
	Status      string
	FraudStatus string
	Signature   string
	// signed 为参与签名的字段拼接（不含密钥）
	signed string
	Raw    json.RawMessage
}

// Integration 描述一家网关的回调能力。RequiresSignature 为 false 时跳过验签。
type Integration struct {
	Vendor            Vendor
	Secret            string
	RequiresSignature bool
}

type midtransPayload struct {
	OrderID           string `json:"order_id"`
	TransactionStatus string `json:"transaction_status"`
	FraudStatus       string `json:"fraud_status"`
	StatusCode        string `json:"status_code"`
	GrossAmount       string `json:"gross_amount"`
	SignatureKey      string `json:"signature_key"`
}

type danaPayload struct {
	OrderID   string      `json:"orderId"`
	PaymentID string      `json:"paymentId"`
	Status    string      `json:"status"`
	Amount    json.Number `json:"amount"`
	Signature string      `json:"signature"`
}

// Decode 按网关格式解析回调报文。
func (i Integration) Decode(body []byte) (Notification, error) {
	n := Notification{Vendor: i.Vendor, Raw: json.RawMessage(body)}
	switch i.Vendor {
	case VendorMidtrans:
		var p midtransPayload
		if err := json.Unmarshal(body, &p); err != nil {
			return Notification{}, fmt.Errorf("%w: %v", ErrUnreadablePayload, err)
		}
		n.Reference = p.OrderID
		n.Status = p.TransactionStatus
		n.FraudStatus = p.FraudStatus
		n.Signature = p.SignatureKey
		n.signed = p.OrderID + p.StatusCode + p.GrossAmount
	case VendorDana:
		var p danaPayload
		if err := json.Unmarshal(body, &p); err != nil {
			return Notification{}, fmt.Errorf("%w: %v", ErrUnreadablePayload, err)
		}
		n.Reference = p.OrderID
		n.Status = p.Status
		n.Signature = p.Signature
		n.signed = p.OrderID + p.PaymentID + p.Status + p.Amount.String()
	default:
		return Notification{}, fmt.Errorf("%w: unsupported vendor %q", ErrUnreadablePayload, i.Vendor)
	}
	if n.Reference == "" {
		return Notification{}, fmt.Errorf("%w: missing order reference", ErrUnreadablePayload)
	}
	return n, nil
}

// Verify 校验回调签名。未开启验签能力的网关直接通过。
func (i Integration) Verify(n Notification) error {
	if !i.RequiresSignature {
		return nil
	}
	if i.Secret == "" {
		return fmt.Errorf("%w: no secret configured for %s", ErrBadSignature, i.Vendor)
	}
	var want string
	switch i.Vendor {
	case VendorMidtrans:
		want = sha512Hex(n.signed + i.Secret)
	case VendorDana:
		want = hmacHex(i.Secret, n.signed+i.Secret)
	default:
		return fmt.Errorf("%w: unsupported vendor %q", ErrBadSignature, i.Vendor)
	}
	if !signatureEqual(n.Signature, want) {
		return ErrBadSignature
	}
	return nil
}
