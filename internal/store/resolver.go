package store

import (
	"context"
	"errors"

	"github.com/wh1teend/paygate-liqpay/internal/provider"
)

// Resolver adapts the Store to the collaborator interfaces a provider's
// validation pipeline consults. The purchase request row is the single
// source of truth: the profile is resolved through it, so the signature
// and cost checks always run against the right records.
type Resolver struct {
	Store *Store
}

var _ provider.ProfileSource = Resolver{}
var _ provider.PurchaseRequestSource = Resolver{}
var _ provider.TransactionResolver = Resolver{}

// PaymentProfile resolves the profile behind the callback's purchase request.
func (r Resolver) PaymentProfile(ctx context.Context, state *provider.CallbackState) (provider.Profile, error) {
	req, err := r.Store.GetPurchaseRequest(ctx, state.RequestKey)
	if err != nil {
		return provider.Profile{}, err
	}
	p, err := r.Store.GetProfile(ctx, req.ProfileID)
	if err != nil {
		return provider.Profile{}, err
	}
	return provider.Profile{
		ID:         p.ID,
		ProviderID: p.ProviderID,
		Title:      p.Title,
		PublicKey:  p.PublicKey,
		PrivateKey: p.PrivateKey,
	}, nil
}

// PurchaseRequest resolves the expected cost for the callback's
// correlation key.
func (r Resolver) PurchaseRequest(ctx context.Context, state *provider.CallbackState) (provider.PurchaseRequest, error) {
	req, err := r.Store.GetPurchaseRequest(ctx, state.RequestKey)
	if err != nil {
		return provider.PurchaseRequest{}, err
	}
	return provider.PurchaseRequest{
		RequestKey:   req.RequestKey,
		ProfileID:    req.ProfileID,
		CostAmount:   req.CostAmount,
		CostCurrency: req.CostCurrency,
		Description:  req.Description,
	}, nil
}

// ValidateTransaction is the base transaction-identity check: the
// correlation key must resolve to a known, still-pending purchase
// request. Both failure modes are info-level; retried deliveries for
// settled requests are routine, not incidents.
func (r Resolver) ValidateTransaction(ctx context.Context, state *provider.CallbackState) *provider.Rejection {
	req, err := r.Store.GetPurchaseRequest(ctx, state.RequestKey)
	if errors.Is(err, ErrNotFound) {
		return &provider.Rejection{Severity: provider.SeverityInfo, Message: "Request not found"}
	}
	if err != nil {
		return &provider.Rejection{Severity: provider.SeverityError, Message: "Request lookup failed"}
	}
	if req.Status != RequestPending {
		return &provider.Rejection{Severity: provider.SeverityInfo, Message: "Purchase request already processed"}
	}
	return nil
}
