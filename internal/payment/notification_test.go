package payment

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func midtransBody(ref, status, fraud, sig string) []byte {
	return []byte(fmt.Sprintf(`{"order_id":%q,"transaction_status":%q,"fraud_status":%q,"status_code":"200","gross_amount":"73500.00","signature_key":%q}`,
		ref, status, fraud, sig))
}

func TestIntegration_MidtransDecodeAndVerify(t *testing.T) {
	integ := Integration{Vendor: VendorMidtrans, Secret: "server-key", RequiresSignature: true}
	ref := "MDZ-5-1700000000000"
	sig := MidtransSignature(ref, "200", "73500.00", "server-key")

	n, err := integ.Decode(midtransBody(ref, "settlement", "accept", sig))
	require.NoError(t, err)
	assert.Equal(t, ref, n.Reference)
	assert.Equal(t, "settlement", n.Status)
	assert.Equal(t, "accept", n.FraudStatus)
	assert.NoError(t, integ.Verify(n))

	tampered, err := integ.Decode(midtransBody(ref, "settlement", "accept", sig[:len(sig)-1]+"0"))
	require.NoError(t, err)
	assert.ErrorIs(t, integ.Verify(tampered), ErrBadSignature)
}

func TestIntegration_DanaDecodeAndVerify(t *testing.T) {
	integ := Integration{Vendor: VendorDana, Secret: "dana-secret", RequiresSignature: true}
	ref := "MDZ-9-1700000000000"
	sig := DanaCallbackSignature(ref, "pay-1", "SUCCESS", "73500", "dana-secret")

	// amount 既可能是数字也可能是字符串
	for _, amount := range []string{`73500`, `"73500"`} {
		body := []byte(fmt.Sprintf(`{"orderId":%q,"paymentId":"pay-1","status":"SUCCESS","amount":%s,"signature":%q}`, ref, amount, sig))
		n, err := integ.Decode(body)
		require.NoError(t, err)
		assert.Equal(t, "SUCCESS", n.Status)
		assert.NoError(t, integ.Verify(n))
	}

	body := []byte(fmt.Sprintf(`{"orderId":%q,"paymentId":"pay-1","status":"FAILED","amount":73500,"signature":%q}`, ref, sig))
	n, err := integ.Decode(body)
	require.NoError(t, err)
	assert.ErrorIs(t, integ.Verify(n), ErrBadSignature)
}

func TestIntegration_VerifyDisabled(t *testing.T) {
	integ := Integration{Vendor: VendorDana, RequiresSignature: false}
	n, err := integ.Decode([]byte(`{"orderId":"MDZ-1-1","status":"SUCCESS"}`))
	require.NoError(t, err)
	assert.NoError(t, integ.Verify(n))
}

func TestIntegration_VerifyWithoutSecret(t *testing.T) {
	integ := Integration{Vendor: VendorMidtrans, RequiresSignature: true}
	n, err := integ.Decode(midtransBody("MDZ-1-1", "settlement", "", "abc"))
	require.NoError(t, err)
	assert.ErrorIs(t, integ.Verify(n), ErrBadSignature)
}

func TestIntegration_DecodeErrors(t *testing.T) {
	integ := Integration{Vendor: VendorMidtrans}
	_, err := integ.Decode([]byte(`not json`))
	assert.ErrorIs(t, err, ErrUnreadablePayload)

	_, err = integ.Decode([]byte(`{"transaction_status":"settlement"}`))
	assert.ErrorIs(t, err, ErrUnreadablePayload)

	_, err = Integration{Vendor: "paypal"}.Decode([]byte(`{}`))
	assert.ErrorIs(t, err, ErrUnreadablePayload)
}

func TestDanaRequestSignature_Stable(t *testing.T) {
	a := DanaRequestSignature("merchant", "MDZ-1-1", 73500, "secret")
	b := DanaRequestSignature("merchant", "MDZ-1-1", 73500, "secret")
	c := DanaRequestSignature("merchant", "MDZ-1-1", 73501, "secret")
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 64)
}
