package liqpay

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMalformedPayload is returned when a callback payload is not valid
// base64 or does not decode to a JSON object.
var ErrMalformedPayload = errors.New("liqpay: malformed payload")

// EncodePayload serialises the payment fields to JSON and wraps them in
// base64, the gateway's transport encoding. Marshalling a struct keeps
// the field order fixed, so the output is byte-identical across calls.
func EncodePayload(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("liqpay: encode payload: %w", err)
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// DecodePayload reverses EncodePayload into a field map. Keys this
// integration does not consume are passed through untouched so newer
// gateway fields survive into the audit log.
func DecodePayload(payload string) (map[string]any, error) {
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return fields, nil
}
