package liqpay_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wh1teend/paygate-liqpay/internal/provider/liqpay"
)

func TestSignRoundTrip(t *testing.T) {
	payloads := []string{"", "a", "eyJ2ZXJzaW9uIjozfQ==", "some longer opaque payload with spaces"}
	keys := []string{"k", "private-key-1", "пароль"}
	for _, payload := range payloads {
		for _, key := range keys {
			sig := liqpay.Sign(payload, key)
			require.True(t, liqpay.VerifySignature(payload, sig, key),
				"round trip failed for payload %q key %q", payload, key)
		}
	}
}

func TestSignDeterministic(t *testing.T) {
	require.Equal(t, liqpay.Sign("data", "key"), liqpay.Sign("data", "key"))
}

func TestVerifySignatureSensitivity(t *testing.T) {
	payload := "eyJ2ZXJzaW9uIjozLCJhY3Rpb24iOiJwYXkifQ=="
	key := "sandbox-private"
	sig := liqpay.Sign(payload, key)

	t.Run("tampered payload", func(t *testing.T) {
		require.False(t, liqpay.VerifySignature(payload+"x", sig, key))
		require.False(t, liqpay.VerifySignature("X"+payload[1:], sig, key))
	})
	t.Run("tampered signature", func(t *testing.T) {
		flipped := []byte(sig)
		flipped[0] ^= 0x01
		require.False(t, liqpay.VerifySignature(payload, string(flipped), key))
		require.False(t, liqpay.VerifySignature(payload, "", key))
	})
	t.Run("wrong key", func(t *testing.T) {
		require.False(t, liqpay.VerifySignature(payload, sig, "other-key"))
	})
}
