package health_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wh1teend/paygate-liqpay/internal/health"
)

type fakeChecker struct {
	dbErr    error
	redisErr error
}

func (f fakeChecker) PingDB(context.Context) error    { return f.dbErr }
func (f fakeChecker) PingRedis(context.Context) error { return f.redisErr }

func TestLive(t *testing.T) {
	rec := httptest.NewRecorder()
	health.Handler{}.Live(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestReady(t *testing.T) {
	t.Run("all healthy", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h := health.Handler{Checker: fakeChecker{}}
		h.Ready(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
		require.Equal(t, http.StatusOK, rec.Code)
	})
	t.Run("redis down", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h := health.Handler{Checker: fakeChecker{redisErr: errors.New("connection refused")}}
		h.Ready(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
		require.Equal(t, http.StatusServiceUnavailable, rec.Code)
		require.Contains(t, rec.Body.String(), "connection refused")
	})
	t.Run("no checker", func(t *testing.T) {
		rec := httptest.NewRecorder()
		health.Handler{}.Ready(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
		require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})
}
