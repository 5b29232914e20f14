package liqpay

import (
	"context"
	"errors"
	"math"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/wh1teend/paygate-liqpay/internal/provider"
)

// ProviderID is the registry key for this gateway.
const ProviderID = "liqpay"

const (
	apiEndpoint     = "https://www.liqpay.ua/api/3/checkout"
	protocolVersion = 3
	actionPay       = "pay"
)

// errNoRecurring is the fixed refusal reason for subscription charges;
// the protocol has no state machine for them.
const errNoRecurring = "recurring payments are not supported"

var supportedCurrencies = map[string]struct{}{
	"RUB": {}, "USD": {}, "EUR": {}, "UAH": {}, "BYN": {}, "KZT": {},
}

// Provider implements the LiqPay checkout and server-to-server callback
// protocol. Stateless; safe to share across requests.
type Provider struct{}

func (Provider) ID() string          { return ProviderID }
func (Provider) Title() string       { return "LiqPay" }
func (Provider) APIEndpoint() string { return apiEndpoint }

// VerifyConfig is the only admission check before a profile may be
// used: both keys must be present.
func (Provider) VerifyConfig(options map[string]string) []string {
	var errs []string
	if strings.TrimSpace(options["public_key"]) == "" || strings.TrimSpace(options["private_key"]) == "" {
		errs = append(errs, "you must provide both the public and the private key")
	}
	return errs
}

// paymentRequest is the outbound field set for a checkout redirect. The
// JSON key names and the version/action constants are fixed by the
// gateway API.
type paymentRequest struct {
	Version     int     `json:"version"`
	PublicKey   string  `json:"public_key"`
	Action      string  `json:"action"`
	Amount      float64 `json:"amount"`
	Currency    string  `json:"currency"`
	Description string  `json:"description"`
	OrderID     string  `json:"order_id"`
	ResultURL   string  `json:"result_url"`
	ServerURL   string  `json:"server_url"`
}

// BuildRedirect encodes and signs the payment request and returns the
// checkout URL. It constructs the URL only; issuing the redirect is the
// caller's job.
func (p Provider) BuildRedirect(profile provider.Profile, req provider.PurchaseRequest, purchase provider.Purchase) (string, error) {
	if profile.PublicKey == "" || profile.PrivateKey == "" {
		return "", errors.New("liqpay: profile is missing public_key or private_key")
	}
	if req.RequestKey == "" {
		return "", errors.New("liqpay: purchase request has no request key")
	}
	data, err := EncodePayload(paymentRequest{
		Version:     protocolVersion,
		PublicKey:   profile.PublicKey,
		Action:      actionPay,
		Amount:      purchase.Cost,
		Currency:    purchase.Currency,
		Description: purchase.Description,
		OrderID:     req.RequestKey,
		ResultURL:   purchase.ResultURL,
		ServerURL:   purchase.ServerURL,
	})
	if err != nil {
		return "", err
	}
	query := url.Values{}
	query.Set("data", data)
	query.Set("signature", Sign(data, profile.PrivateKey))
	return apiEndpoint + "?" + query.Encode(), nil
}

// SetupCallback extracts the data and signature transport fields and
// decodes the payload into a fresh state. A payload that fails to
// decode leaves the field map empty; the pipeline rejects it for
// missing fields instead of the parser erroring out.
func (p Provider) SetupCallback(r *http.Request) *provider.CallbackState {
	rawData := r.FormValue("data")
	fields, err := DecodePayload(rawData)
	if err != nil {
		fields = map[string]any{}
	}
	subscriber := stringField(fields, "customer")
	if subscriber == "" {
		subscriber = "0"
	}
	return &provider.CallbackState{
		ProviderID:    ProviderID,
		RawData:       rawData,
		DecodedFields: fields,
		Signature:     r.FormValue("signature"),
		SourceIP:      remoteIP(r),
		HTTPCode:      http.StatusOK,
		Amount:        numberField(fields, "amount"),
		Currency:      stringField(fields, "currency"),
		Status:        stringField(fields, "status"),
		SubscriberID:  subscriber,
	}
}

// Stages returns the ordered callback validation pipeline. The order is
// load-bearing: identity has to resolve before the signature and cost
// checks run against the right profile and purchase request, and a
// gateway-reported error must pre-empt cost mismatch noise.
func (p Provider) Stages(deps provider.Deps) []provider.Stage {
	return []provider.Stage{
		p.validateCallback,
		p.validateTransaction(deps),
		p.validatePurchasableData(deps),
		p.validateCost(deps),
	}
}

// validateCallback is the authenticity check. Failures are logged as
// info only: unsigned or wrong-protocol traffic is treated as probing
// noise, not an incident.
func (p Provider) validateCallback(_ context.Context, state *provider.CallbackState) *provider.Rejection {
	state.RequestKey = stringField(state.DecodedFields, "order_id")
	state.TransactionID = stringField(state.DecodedFields, "payment_id")

	if state.Signature != "" &&
		intField(state.DecodedFields, "version") == protocolVersion &&
		stringField(state.DecodedFields, "action") == actionPay {
		return nil
	}
	return &provider.Rejection{Severity: provider.SeverityInfo, Message: "Auth failed"}
}

// validateTransaction requires a correlation key, surfaces the
// gateway's own failure report ahead of everything else, then hands the
// identity lookup to the host resolver.
func (p Provider) validateTransaction(deps provider.Deps) provider.Stage {
	return func(ctx context.Context, state *provider.CallbackState) *provider.Rejection {
		if state.RequestKey == "" {
			return &provider.Rejection{Severity: provider.SeverityInfo, Message: "Metadata is empty!"}
		}
		if errCode := stringField(state.DecodedFields, "err_code"); errCode != "" {
			message := stringField(state.DecodedFields, "err_description")
			if message == "" {
				message = errCode
			}
			return &provider.Rejection{Severity: provider.SeverityError, Message: message}
		}
		if deps.Transactions == nil {
			return nil
		}
		return deps.Transactions.ValidateTransaction(ctx, state)
	}
}

// validatePurchasableData verifies the signature over the raw payload
// with the profile's private key.
func (p Provider) validatePurchasableData(deps provider.Deps) provider.Stage {
	return func(ctx context.Context, state *provider.CallbackState) *provider.Rejection {
		profile, err := deps.Profiles.PaymentProfile(ctx, state)
		if err != nil || profile.PublicKey == "" || profile.PrivateKey == "" || state.Signature == "" {
			return &provider.Rejection{Severity: provider.SeverityError, Message: "Invalid public_key or secret_key."}
		}
		if !VerifySignature(state.RawData, state.Signature, profile.PrivateKey) {
			return &provider.Rejection{Severity: provider.SeverityError, Message: "Invalid signature"}
		}
		return nil
	}
}

// validateCost cross-checks currency and amount against the purchase
// request. Amounts are rounded to cents before comparing to absorb
// float representation noise.
func (p Provider) validateCost(deps provider.Deps) provider.Stage {
	return func(ctx context.Context, state *provider.CallbackState) *provider.Rejection {
		req, err := deps.PurchaseRequests.PurchaseRequest(ctx, state)
		if err == nil &&
			state.Currency == req.CostCurrency &&
			roundCents(state.Amount) == roundCents(req.CostAmount) {
			return nil
		}
		return &provider.Rejection{Severity: provider.SeverityError, Message: "Invalid cost amount."}
	}
}

// PaymentResult resolves the gateway status vocabulary. Only "success"
// asserts a definitive outcome; anything else stays unresolved rather
// than being treated as a failure on status text alone.
func (p Provider) PaymentResult(state *provider.CallbackState) {
	if strings.ToLower(state.Status) == "success" {
		state.Outcome = provider.OutcomeReceived
	}
}

// PrepareLogData merges every decoded field with the transport metadata
// for the audit trail, regardless of pass or fail.
func (p Provider) PrepareLogData(state *provider.CallbackState) {
	details := make(map[string]any, len(state.DecodedFields)+2)
	for k, v := range state.DecodedFields {
		details[k] = v
	}
	details["ip"] = state.SourceIP
	details["signature"] = state.Signature
	state.LogDetails = details
}

// SupportsCurrency reports membership in the gateway's fixed currency
// allow-list. Checked by the host before a payment is attempted, not
// during callback validation.
func (Provider) SupportsCurrency(code string) bool {
	_, ok := supportedCurrencies[strings.ToUpper(strings.TrimSpace(code))]
	return ok
}

func (Provider) SupportsRecurring() (bool, string) {
	return false, errNoRecurring
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}

func remoteIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

func stringField(fields map[string]any, key string) string {
	switch v := fields[key].(type) {
	case string:
		return v
	case float64:
		// Numeric ids arrive as JSON numbers; keep them readable.
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return ""
	}
}

func numberField(fields map[string]any, key string) float64 {
	switch v := fields[key].(type) {
	case float64:
		return v
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0
		}
		return parsed
	default:
		return 0
	}
}

func intField(fields map[string]any, key string) int {
	return int(numberField(fields, key))
}
