package callback

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wh1teend/paygate-liqpay/internal/common"
	"github.com/wh1teend/paygate-liqpay/internal/obs"
	"github.com/wh1teend/paygate-liqpay/internal/provider"
)

// Settler applies a received payment to the host's purchase bookkeeping.
// The bool result reports whether this delivery actually settled the
// request; retries of an already-settled request return false.
type Settler interface {
	MarkReceived(ctx context.Context, requestKey, transactionID string) (bool, error)
}

// Audit persists the callback's log entry for manual review.
type Audit interface {
	RecordCallback(ctx context.Context, state *provider.CallbackState) error
}

// Notifier announces settled payments to downstream consumers.
type Notifier interface {
	PaymentReceived(ctx context.Context, requestKey, transactionID string, amount float64, currency string) error
}

// Handler processes asynchronous payment-result callbacks from the
// gateway: parse, replay guard, validation pipeline, outcome mapping,
// audit. Whatever happens after parsing, the gateway gets a 200 so it
// stops retrying; business failures travel through the audit log only.
type Handler struct {
	Providers *provider.Registry
	Deps      provider.Deps
	Settler   Settler
	Audit     Audit
	Notifier  Notifier
	Replay    *redis.Client
	ReplayTTL time.Duration
	Logger    zerolog.Logger
	Metrics   *obs.Metrics
}

// Handle is the HTTP endpoint for gateway callbacks.
func (h *Handler) Handle(w http.ResponseWriter, r *http.Request) {
	providerKey := strings.ToLower(strings.TrimSpace(chi.URLParam(r, "provider")))
	prov, ok := h.Providers.Get(providerKey)
	if !ok {
		common.JSONError(w, http.StatusNotFound, "PROVIDER_NOT_SUPPORTED", "unknown provider", nil)
		return
	}

	ctx, span := otel.Tracer("callback.Handler").Start(r.Context(), "Callback.Handle")
	defer span.End()
	start := time.Now()

	state := prov.SetupCallback(r)
	result := "unresolved"
	defer func() {
		span.SetAttributes(
			attribute.String("payment.provider", providerKey),
			attribute.String("payment.callback.result", result),
		)
		if h.Metrics != nil {
			h.Metrics.CallbackTotal.WithLabelValues(providerKey, result).Inc()
			h.Metrics.CallbackDuration.WithLabelValues(providerKey).Observe(obs.DurationMillis(time.Since(start)))
		}
	}()

	if h.isReplay(ctx, providerKey, state) {
		result = "duplicate"
		h.Logger.Info().
			Str("provider", providerKey).
			Str("request_key", state.RequestKey).
			Msg("duplicate callback dropped")
		h.acknowledge(w, state)
		return
	}

	provider.Run(ctx, state, prov.Stages(h.Deps)...)
	if !state.Rejected() {
		prov.PaymentResult(state)
	}
	prov.PrepareLogData(state)

	if state.Outcome == provider.OutcomeReceived && !state.Rejected() {
		result = "received"
		h.settle(ctx, state)
	} else if state.Rejected() {
		result = "rejected_" + string(state.LogSeverity)
	}

	h.audit(ctx, state)
	h.acknowledge(w, state)
}

// isReplay registers the raw payload in redis and reports whether the
// identical callback was already seen within the TTL. Guard failures
// fall open: a redis outage must not block payment processing.
func (h *Handler) isReplay(ctx context.Context, providerKey string, state *provider.CallbackState) bool {
	if h.Replay == nil || h.ReplayTTL <= 0 || state.RawData == "" {
		return false
	}
	key := "cb:" + providerKey + ":" + common.Sha256Hex(state.RawData+state.Signature)
	fresh, err := h.Replay.SetNX(ctx, key, "1", h.ReplayTTL).Result()
	if err != nil {
		h.Logger.Warn().Err(err).Msg("replay guard unavailable")
		return false
	}
	return !fresh
}

func (h *Handler) settle(ctx context.Context, state *provider.CallbackState) {
	if h.Settler == nil {
		return
	}
	settled, err := h.Settler.MarkReceived(ctx, state.RequestKey, state.TransactionID)
	if err != nil {
		h.Logger.Error().Err(err).
			Str("request_key", state.RequestKey).
			Msg("settle payment")
		return
	}
	if settled && h.Notifier != nil {
		if err := h.Notifier.PaymentReceived(ctx, state.RequestKey, state.TransactionID, state.Amount, state.Currency); err != nil {
			h.Logger.Error().Err(err).
				Str("request_key", state.RequestKey).
				Msg("enqueue payment notification")
		}
	}
}

func (h *Handler) audit(ctx context.Context, state *provider.CallbackState) {
	if h.Audit != nil {
		if err := h.Audit.RecordCallback(ctx, state); err != nil {
			h.Logger.Error().Err(err).Msg("record callback audit entry")
		}
	}
	evt := h.Logger.Info()
	if state.LogSeverity == provider.SeverityError {
		evt = h.Logger.Error()
	}
	evt.Str("provider", state.ProviderID).
		Str("request_key", state.RequestKey).
		Str("transaction_id", state.TransactionID).
		Str("outcome", string(outcome(state))).
		Str("message", state.LogMessage).
		Str("ip", state.SourceIP).
		Msg("callback processed")
}

// acknowledge answers the gateway. The status comes from the state and
// is 200 in every parsed case; anything else triggers redelivery.
func (h *Handler) acknowledge(w http.ResponseWriter, state *provider.CallbackState) {
	code := state.HTTPCode
	if code == 0 {
		code = http.StatusOK
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(code)
	_, _ = w.Write([]byte("ok"))
}

func outcome(state *provider.CallbackState) provider.Outcome {
	if state.Outcome == "" {
		return provider.OutcomeUnresolved
	}
	return state.Outcome
}
