package redis

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeys(t *testing.T) {
	assert.Equal(t, "topup:payment:state:12", PaymentStateKey(12))
	assert.Equal(t, "topup:payment:init_lock:12", InitiationLockKey(12))
	assert.Equal(t, "rate_limit:webhook:ip:10.0.0.1", RateLimitKey("webhook", "ip:10.0.0.1"))
	assert.NotEqual(t, PaymentStateKey(1), PaymentStateKey(11))
}
