package provider

import (
	"context"
	"net/http"
)

// Profile is the host-owned provider configuration handed to a payment
// provider. Read-only from the provider's point of view.
type Profile struct {
	ID         string
	ProviderID string
	Title      string
	PublicKey  string
	PrivateKey string
}

// PurchaseRequest is the host's record of an outstanding purchase
// attempt, keyed by the correlation key echoed back by the gateway.
type PurchaseRequest struct {
	RequestKey   string
	ProfileID    string
	CostAmount   float64
	CostCurrency string
	Description  string
}

// Purchase carries the caller-facing details of what is being bought,
// including the URLs the gateway should send the buyer and the
// server-to-server callback to.
type Purchase struct {
	Cost        float64
	Currency    string
	Description string
	ResultURL   string
	ServerURL   string
}

// ProfileSource resolves the payment profile a callback belongs to.
type ProfileSource interface {
	PaymentProfile(ctx context.Context, state *CallbackState) (Profile, error)
}

// PurchaseRequestSource resolves the purchase request a callback refers to.
type PurchaseRequestSource interface {
	PurchaseRequest(ctx context.Context, state *CallbackState) (PurchaseRequest, error)
}

// TransactionResolver is the host's base transaction-identity check: it
// confirms the correlation key maps to a known, still-open purchase
// request. A nil result means the identity resolved.
type TransactionResolver interface {
	ValidateTransaction(ctx context.Context, state *CallbackState) *Rejection
}

// Deps bundles the host collaborators a provider's validation stages
// may consult. Providers own the protocol; the host owns the records.
type Deps struct {
	Profiles         ProfileSource
	PurchaseRequests PurchaseRequestSource
	Transactions     TransactionResolver
}

// Stage is one ordered validation step. Returning nil continues the
// pipeline; a Rejection aborts it with a classified audit entry.
type Stage func(ctx context.Context, state *CallbackState) *Rejection

// Provider is the capability set a payment gateway integration exposes
// to the host. One implementation per gateway, selected by ID through
// the Registry.
type Provider interface {
	ID() string
	Title() string
	APIEndpoint() string

	// VerifyConfig checks profile options before a profile may be
	// saved. Returns human-readable problems; empty means admissible.
	VerifyConfig(options map[string]string) []string

	// BuildRedirect assembles, encodes and signs the outbound payment
	// request, returning the checkout URL to send the buyer to.
	BuildRedirect(profile Profile, req PurchaseRequest, purchase Purchase) (string, error)

	// SetupCallback extracts transport fields from an inbound callback
	// into a fresh CallbackState. It never fails: undecodable payloads
	// produce a state the pipeline will reject.
	SetupCallback(r *http.Request) *CallbackState

	// Stages returns the ordered validation pipeline for a callback.
	Stages(deps Deps) []Stage

	// PaymentResult maps the gateway status vocabulary onto the
	// normalised outcome. Only called when the pipeline passed.
	PaymentResult(state *CallbackState)

	// PrepareLogData assembles the audit-trail details for the
	// callback, pass or fail.
	PrepareLogData(state *CallbackState)

	SupportsCurrency(code string) bool

	// SupportsRecurring reports whether the gateway can run
	// subscription charges; reason explains a refusal.
	SupportsRecurring() (ok bool, reason string)
}

// Run executes stages in order against the state, stopping at the first
// rejection. A state that is already rejected runs nothing.
func Run(ctx context.Context, state *CallbackState, stages ...Stage) {
	if state == nil || state.Rejected() {
		return
	}
	for _, stage := range stages {
		if rej := stage(ctx, state); rej != nil {
			state.Reject(rej)
			return
		}
	}
}
