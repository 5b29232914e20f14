package callback

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/wh1teend/paygate-liqpay/internal/common"
	"github.com/wh1teend/paygate-liqpay/internal/obs"
	"github.com/wh1teend/paygate-liqpay/internal/provider"
	"github.com/wh1teend/paygate-liqpay/internal/store"
)

// ProfileLoader fetches a stored payment profile for redirect building.
type ProfileLoader interface {
	GetProfile(ctx context.Context, id string) (store.Profile, error)
}

// RequestCreator records a new pending purchase attempt.
type RequestCreator interface {
	CreatePurchaseRequest(ctx context.Context, r store.PurchaseRequest) error
}

// RedirectHandler initiates a payment: it records a purchase request
// and returns the signed checkout URL the buyer should be sent to.
type RedirectHandler struct {
	Providers *provider.Registry
	Profiles  ProfileLoader
	Requests  RequestCreator
	Logger    zerolog.Logger
	Metrics   *obs.Metrics

	// CallbackBaseURL receives the gateway's server-to-server
	// callback; ResultBaseURL receives the returning buyer.
	CallbackBaseURL string
	ResultBaseURL   string
}

type payRequest struct {
	ProfileID   string  `json:"profileId"`
	Amount      float64 `json:"amount"`
	Currency    string  `json:"currency"`
	Description string  `json:"description"`
}

type payResponse struct {
	RequestKey  string `json:"requestKey"`
	RedirectURL string `json:"redirectUrl"`
}

// Pay handles POST /pay.
func (h *RedirectHandler) Pay(w http.ResponseWriter, r *http.Request) {
	var req payRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid body", nil)
		return
	}
	req.ProfileID = strings.TrimSpace(req.ProfileID)
	req.Currency = strings.ToUpper(strings.TrimSpace(req.Currency))
	if req.ProfileID == "" || req.Currency == "" || req.Amount <= 0 {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "profileId, amount and currency are required", nil)
		return
	}

	ctx := r.Context()
	profile, err := h.Profiles.GetProfile(ctx, req.ProfileID)
	if err != nil {
		common.JSONError(w, http.StatusNotFound, "PROFILE_NOT_FOUND", "payment profile not found", nil)
		return
	}
	prov, ok := h.Providers.Get(profile.ProviderID)
	if !ok {
		common.JSONError(w, http.StatusConflict, "PROVIDER_NOT_SUPPORTED", "profile references an unknown provider", nil)
		return
	}
	// Currency admission happens before a payment is ever attempted,
	// not during callback validation.
	if !prov.SupportsCurrency(req.Currency) {
		h.count(profile.ProviderID, "error")
		common.JSONError(w, http.StatusUnprocessableEntity, "UNSUPPORTED_CURRENCY", "currency not supported by "+prov.Title(), nil)
		return
	}

	requestKey := uuid.NewString()
	if err := h.Requests.CreatePurchaseRequest(ctx, store.PurchaseRequest{
		RequestKey:   requestKey,
		ProfileID:    profile.ID,
		CostAmount:   req.Amount,
		CostCurrency: req.Currency,
		Description:  req.Description,
	}); err != nil {
		h.Logger.Error().Err(err).Msg("create purchase request")
		common.JSONError(w, http.StatusInternalServerError, "REQUEST_CREATE_FAILED", "unable to record purchase request", nil)
		return
	}

	redirectURL, err := prov.BuildRedirect(
		provider.Profile{
			ID:         profile.ID,
			ProviderID: profile.ProviderID,
			Title:      profile.Title,
			PublicKey:  profile.PublicKey,
			PrivateKey: profile.PrivateKey,
		},
		provider.PurchaseRequest{
			RequestKey:   requestKey,
			ProfileID:    profile.ID,
			CostAmount:   req.Amount,
			CostCurrency: req.Currency,
			Description:  req.Description,
		},
		provider.Purchase{
			Cost:        req.Amount,
			Currency:    req.Currency,
			Description: req.Description,
			ResultURL:   h.ResultBaseURL + "/result/" + requestKey,
			ServerURL:   h.CallbackBaseURL + "/callback/" + prov.ID(),
		},
	)
	if err != nil {
		h.count(profile.ProviderID, "error")
		h.Logger.Error().Err(err).Str("request_key", requestKey).Msg("build redirect")
		common.JSONError(w, http.StatusBadGateway, "REDIRECT_FAILED", err.Error(), nil)
		return
	}

	h.count(profile.ProviderID, "success")
	common.JSON(w, http.StatusOK, payResponse{RequestKey: requestKey, RedirectURL: redirectURL})
}

func (h *RedirectHandler) count(providerID, result string) {
	if h.Metrics != nil {
		h.Metrics.RedirectTotal.WithLabelValues(providerID, result).Inc()
	}
}
