package liqpay

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
)

// Sign computes the gateway signature over the encoded payload:
// base64(sha1(privateKey + data + privateKey)).
//
// The secret-on-both-sides single-pass construction is the wire
// protocol of the gateway, not a choice of this integration. It must
// stay bit-for-bit compatible; do not swap in HMAC or a longer hash.
func Sign(data, privateKey string) string {
	sum := sha1.Sum([]byte(privateKey + data + privateKey))
	return base64.StdEncoding.EncodeToString(sum[:])
}

// VerifySignature recomputes the signature for data and compares it to
// the supplied one in constant time. Malformed input only yields false,
// never an error.
func VerifySignature(data, signature, privateKey string) bool {
	return hmac.Equal([]byte(Sign(data, privateKey)), []byte(signature))
}
