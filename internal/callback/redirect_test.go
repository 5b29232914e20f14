package callback_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/wh1teend/paygate-liqpay/internal/callback"
	"github.com/wh1teend/paygate-liqpay/internal/provider"
	"github.com/wh1teend/paygate-liqpay/internal/provider/liqpay"
	"github.com/wh1teend/paygate-liqpay/internal/store"
)

type fakeProfileLoader struct {
	profiles map[string]store.Profile
}

func (f *fakeProfileLoader) GetProfile(_ context.Context, id string) (store.Profile, error) {
	p, ok := f.profiles[id]
	if !ok {
		return store.Profile{}, store.ErrNotFound
	}
	return p, nil
}

type fakeRequestCreator struct {
	created []store.PurchaseRequest
}

func (f *fakeRequestCreator) CreatePurchaseRequest(_ context.Context, r store.PurchaseRequest) error {
	f.created = append(f.created, r)
	return nil
}

func newRedirectHandler() (*callback.RedirectHandler, *fakeRequestCreator) {
	creator := &fakeRequestCreator{}
	h := &callback.RedirectHandler{
		Providers: provider.NewRegistry(liqpay.Provider{}),
		Profiles: &fakeProfileLoader{profiles: map[string]store.Profile{
			"p1": {
				ID:         "p1",
				ProviderID: liqpay.ProviderID,
				Title:      "LiqPay",
				PublicKey:  testPublicKey,
				PrivateKey: testPrivateKey,
			},
		}},
		Requests:        creator,
		Logger:          zerolog.Nop(),
		CallbackBaseURL: "https://pay.example",
		ResultBaseURL:   "https://shop.example",
	}
	return h, creator
}

func postPay(t *testing.T, h *callback.RedirectHandler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/pay", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.Pay(rec, req)
	return rec
}

func TestPayReturnsRedirect(t *testing.T) {
	h, creator := newRedirectHandler()

	rec := postPay(t, h, `{"profileId":"p1","amount":100.0,"currency":"UAH","description":"Premium upgrade"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		RequestKey  string `json:"requestKey"`
		RedirectURL string `json:"redirectUrl"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.RequestKey)
	require.True(t, strings.HasPrefix(resp.RedirectURL, "https://www.liqpay.ua/api/3/checkout?"))

	require.Len(t, creator.created, 1)
	created := creator.created[0]
	require.Equal(t, resp.RequestKey, created.RequestKey)
	require.Equal(t, "p1", created.ProfileID)
	require.Equal(t, 100.0, created.CostAmount)
	require.Equal(t, "UAH", created.CostCurrency)
}

func TestPayRejectsUnsupportedCurrency(t *testing.T) {
	h, creator := newRedirectHandler()

	rec := postPay(t, h, `{"profileId":"p1","amount":10,"currency":"GBP"}`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.Contains(t, rec.Body.String(), "UNSUPPORTED_CURRENCY")
	require.Empty(t, creator.created, "no purchase request is recorded for an inadmissible currency")
}

func TestPayUnknownProfile(t *testing.T) {
	h, _ := newRedirectHandler()
	rec := postPay(t, h, `{"profileId":"missing","amount":10,"currency":"UAH"}`)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPayBadBody(t *testing.T) {
	h, _ := newRedirectHandler()
	require.Equal(t, http.StatusBadRequest, postPay(t, h, `not json`).Code)
	require.Equal(t, http.StatusBadRequest, postPay(t, h, `{"profileId":"p1","amount":-5,"currency":"UAH"}`).Code)
	require.Equal(t, http.StatusBadRequest, postPay(t, h, `{"amount":5,"currency":"UAH"}`).Code)
}
