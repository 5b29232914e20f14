package admin_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/wh1teend/paygate-liqpay/internal/admin"
	"github.com/wh1teend/paygate-liqpay/internal/provider"
	"github.com/wh1teend/paygate-liqpay/internal/provider/liqpay"
	"github.com/wh1teend/paygate-liqpay/internal/store"
)

type fakeProfileStore struct {
	created  []store.Profile
	disabled []string
	missing  bool
}

func (f *fakeProfileStore) CreateProfile(_ context.Context, p store.Profile) (store.Profile, error) {
	p.ID = "profile-1"
	f.created = append(f.created, p)
	return p, nil
}

func (f *fakeProfileStore) DisableProfile(_ context.Context, id string) error {
	if f.missing {
		return store.ErrNotFound
	}
	f.disabled = append(f.disabled, id)
	return nil
}

func newAdminEnv() (*chi.Mux, *fakeProfileStore) {
	profiles := &fakeProfileStore{}
	h := &admin.Handler{
		Providers: provider.NewRegistry(liqpay.Provider{}),
		Profiles:  profiles,
		Validate:  validator.New(),
		Logger:    zerolog.Nop(),
	}
	r := chi.NewRouter()
	r.Post("/admin/profiles", h.CreateProfile)
	r.Delete("/admin/profiles/{id}", h.DisableProfile)
	return r, profiles
}

func TestCreateProfile(t *testing.T) {
	router, profiles := newAdminEnv()

	body := `{"providerId":"liqpay","publicKey":"pub","privateKey":"priv"}`
	req := httptest.NewRequest(http.MethodPost, "/admin/profiles", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	var resp struct {
		ID         string `json:"id"`
		ProviderID string `json:"providerId"`
		Title      string `json:"title"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "profile-1", resp.ID)
	require.Equal(t, "liqpay", resp.ProviderID)
	require.Equal(t, "LiqPay", resp.Title, "empty title falls back to the provider name")

	require.Len(t, profiles.created, 1)
	require.Equal(t, "pub", profiles.created[0].PublicKey)
	require.Equal(t, "priv", profiles.created[0].PrivateKey)
}

func TestCreateProfileRejectsIncompleteConfig(t *testing.T) {
	router, profiles := newAdminEnv()

	body := `{"providerId":"liqpay","publicKey":"pub"}`
	req := httptest.NewRequest(http.MethodPost, "/admin/profiles", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.Contains(t, rec.Body.String(), "CONFIG_INVALID")
	require.Contains(t, rec.Body.String(), "you must provide both the public and the private key")
	require.Empty(t, profiles.created)
}

func TestCreateProfileUnknownProvider(t *testing.T) {
	router, _ := newAdminEnv()
	req := httptest.NewRequest(http.MethodPost, "/admin/profiles",
		strings.NewReader(`{"providerId":"stripe","publicKey":"a","privateKey":"b"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateProfileMissingProviderID(t *testing.T) {
	router, _ := newAdminEnv()
	req := httptest.NewRequest(http.MethodPost, "/admin/profiles",
		strings.NewReader(`{"publicKey":"a","privateKey":"b"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDisableProfile(t *testing.T) {
	router, profiles := newAdminEnv()
	req := httptest.NewRequest(http.MethodDelete, "/admin/profiles/profile-1", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, []string{"profile-1"}, profiles.disabled)
}

func TestDisableProfileNotFound(t *testing.T) {
	router, profiles := newAdminEnv()
	profiles.missing = true
	req := httptest.NewRequest(http.MethodDelete, "/admin/profiles/nope", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNotFound, rec.Code)
}
