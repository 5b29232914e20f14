package admin

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/wh1teend/paygate-liqpay/internal/common"
	"github.com/wh1teend/paygate-liqpay/internal/provider"
	"github.com/wh1teend/paygate-liqpay/internal/store"
)

// ProfileStore is the persistence surface for provider registration.
type ProfileStore interface {
	CreateProfile(ctx context.Context, p store.Profile) (store.Profile, error)
	DisableProfile(ctx context.Context, id string) error
}

// Handler exposes the profile registration API. This is the
// install/uninstall bookkeeping surface: VerifyConfig runs here, at
// profile-setup time, before any callback can ever reference the
// profile.
type Handler struct {
	Providers *provider.Registry
	Profiles  ProfileStore
	Validate  *validator.Validate
	Logger    zerolog.Logger
}

type createProfileRequest struct {
	ProviderID string `json:"providerId" validate:"required"`
	Title      string `json:"title"`
	PublicKey  string `json:"publicKey"`
	PrivateKey string `json:"privateKey"`
}

type profileResponse struct {
	ID         string `json:"id"`
	ProviderID string `json:"providerId"`
	Title      string `json:"title"`
}

// CreateProfile handles POST /admin/profiles.
func (h *Handler) CreateProfile(w http.ResponseWriter, r *http.Request) {
	var req createProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid body", nil)
		return
	}
	if h.Validate != nil {
		if err := h.Validate.Struct(req); err != nil {
			common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
			return
		}
	}
	prov, ok := h.Providers.Get(req.ProviderID)
	if !ok {
		common.JSONError(w, http.StatusNotFound, "PROVIDER_NOT_SUPPORTED", "unknown provider", nil)
		return
	}
	options := map[string]string{
		"public_key":  strings.TrimSpace(req.PublicKey),
		"private_key": strings.TrimSpace(req.PrivateKey),
	}
	if problems := prov.VerifyConfig(options); len(problems) > 0 {
		common.JSONError(w, http.StatusUnprocessableEntity, "CONFIG_INVALID", "profile options rejected", problems)
		return
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = prov.Title()
	}
	p, err := h.Profiles.CreateProfile(r.Context(), store.Profile{
		ProviderID: prov.ID(),
		Title:      title,
		PublicKey:  options["public_key"],
		PrivateKey: options["private_key"],
	})
	if err != nil {
		h.Logger.Error().Err(err).Msg("create payment profile")
		common.JSONError(w, http.StatusInternalServerError, "PROFILE_CREATE_FAILED", "unable to store profile", nil)
		return
	}
	common.JSON(w, http.StatusCreated, profileResponse{ID: p.ID, ProviderID: p.ProviderID, Title: p.Title})
}

// DisableProfile handles DELETE /admin/profiles/{id}.
func (h *Handler) DisableProfile(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "profile id is required", nil)
		return
	}
	if err := h.Profiles.DisableProfile(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			common.JSONError(w, http.StatusNotFound, "PROFILE_NOT_FOUND", "payment profile not found", nil)
			return
		}
		h.Logger.Error().Err(err).Msg("disable payment profile")
		common.JSONError(w, http.StatusInternalServerError, "PROFILE_DISABLE_FAILED", "unable to disable profile", nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
