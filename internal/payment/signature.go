package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"strconv"
	"strings"
)

// DanaRequestSignature 出站签名：HMAC-SHA256(secret, merchantID + reference + amount + secret)。
func DanaRequestSignature(merchantID, reference string, amount int64, secret string) string {
	return hmacHex(secret, merchantID+reference+strconv.FormatInt(amount, 10)+secret)
}

// DanaCallbackSignature 回调签名：HMAC-SHA256(secret, orderId + paymentId + status + amount + secret)。
func DanaCallbackSignature(reference, paymentID, status, amount, secret string) string {
	return hmacHex(secret, reference+paymentID+status+amount+secret)
}

// MidtransSignature 即 Midtrans 通知里的 signature_key：SHA512(order_id + status_code + gross_amount + server_key)。
func MidtransSignature(reference, statusCode, grossAmount, serverKey string) string {
	return sha512Hex(reference + statusCode + grossAmount + serverKey)
}

func sha512Hex(msg string) string {
	sum := sha512.Sum512([]byte(msg))
	return hex.EncodeToString(sum[:])
}

func hmacHex(secret, msg string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(msg))
	return hex.EncodeToString(mac.Sum(nil))
}

// signatureEqual 常量时间比较十六进制签名，忽略大小写。
func signatureEqual(got, want string) bool {
	if got == "" || want == "" {
		return false
	}
	return hmac.Equal([]byte(strings.ToLower(got)), []byte(strings.ToLower(want)))
}
