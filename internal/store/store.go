package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wh1teend/paygate-liqpay/internal/provider"
)

// ErrNotFound is returned when a profile or purchase request does not exist.
var ErrNotFound = errors.New("store: not found")

// Purchase request lifecycle states. Only a pending request may accept
// a payment; the transition to received happens at most once.
const (
	RequestPending  = "pending"
	RequestReceived = "received"
	RequestExpired  = "expired"
)

// Profile is a stored payment profile row.
type Profile struct {
	ID         string
	ProviderID string
	Title      string
	PublicKey  string
	PrivateKey string
	Active     bool
	CreatedAt  time.Time
}

// PurchaseRequest is a stored purchase attempt keyed by its correlation key.
type PurchaseRequest struct {
	RequestKey    string
	ProfileID     string
	CostAmount    float64
	CostCurrency  string
	Description   string
	Status        string
	TransactionID string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Store provides Postgres-backed persistence for profiles, purchase
// requests and the callback audit log.
type Store struct {
	Pool *pgxpool.Pool
}

// New constructs a Store over the given pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{Pool: pool}
}

// CreateProfile inserts a new payment profile and returns it with its
// generated id.
func (s *Store) CreateProfile(ctx context.Context, p Profile) (Profile, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	row := s.Pool.QueryRow(ctx, `
		INSERT INTO payment_profiles (id, provider_id, title, public_key, private_key, active)
		VALUES ($1, $2, $3, $4, $5, TRUE)
		RETURNING created_at`,
		p.ID, p.ProviderID, p.Title, p.PublicKey, p.PrivateKey)
	if err := row.Scan(&p.CreatedAt); err != nil {
		return Profile{}, fmt.Errorf("create profile: %w", err)
	}
	p.Active = true
	return p, nil
}

// GetProfile fetches an active profile by id.
func (s *Store) GetProfile(ctx context.Context, id string) (Profile, error) {
	var p Profile
	row := s.Pool.QueryRow(ctx, `
		SELECT id, provider_id, title, public_key, private_key, active, created_at
		FROM payment_profiles
		WHERE id = $1 AND active`, id)
	err := row.Scan(&p.ID, &p.ProviderID, &p.Title, &p.PublicKey, &p.PrivateKey, &p.Active, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Profile{}, ErrNotFound
	}
	if err != nil {
		return Profile{}, fmt.Errorf("get profile: %w", err)
	}
	return p, nil
}

// DisableProfile deactivates a profile so no further payments may use it.
func (s *Store) DisableProfile(ctx context.Context, id string) error {
	tag, err := s.Pool.Exec(ctx, `UPDATE payment_profiles SET active = FALSE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("disable profile: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// CreatePurchaseRequest records a new pending purchase attempt.
func (s *Store) CreatePurchaseRequest(ctx context.Context, r PurchaseRequest) error {
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO purchase_requests (request_key, profile_id, cost_amount, cost_currency, description, status)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		r.RequestKey, r.ProfileID, r.CostAmount, r.CostCurrency, r.Description, RequestPending)
	if err != nil {
		return fmt.Errorf("create purchase request: %w", err)
	}
	return nil
}

// GetPurchaseRequest fetches a purchase request by its correlation key.
func (s *Store) GetPurchaseRequest(ctx context.Context, requestKey string) (PurchaseRequest, error) {
	var r PurchaseRequest
	row := s.Pool.QueryRow(ctx, `
		SELECT request_key, profile_id, cost_amount, cost_currency, description,
		       status, COALESCE(provider_tx_id, ''), created_at, updated_at
		FROM purchase_requests
		WHERE request_key = $1`, requestKey)
	err := row.Scan(&r.RequestKey, &r.ProfileID, &r.CostAmount, &r.CostCurrency,
		&r.Description, &r.Status, &r.TransactionID, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return PurchaseRequest{}, ErrNotFound
	}
	if err != nil {
		return PurchaseRequest{}, fmt.Errorf("get purchase request: %w", err)
	}
	return r, nil
}

// MarkReceived transitions a pending purchase request to received,
// storing the gateway transaction id. Returns false when the request
// was not pending, which makes retried deliveries a no-op.
func (s *Store) MarkReceived(ctx context.Context, requestKey, transactionID string) (bool, error) {
	tag, err := s.Pool.Exec(ctx, `
		UPDATE purchase_requests
		SET status = $2, provider_tx_id = $3, updated_at = now()
		WHERE request_key = $1 AND status = $4`,
		requestKey, RequestReceived, transactionID, RequestPending)
	if err != nil {
		return false, fmt.Errorf("mark received: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// RecordCallback appends the callback's audit entry, pass or fail.
func (s *Store) RecordCallback(ctx context.Context, state *provider.CallbackState) error {
	details, err := json.Marshal(state.LogDetails)
	if err != nil {
		details = []byte("{}")
	}
	severity := string(state.LogSeverity)
	if severity == "" {
		severity = string(provider.SeverityInfo)
	}
	_, err = s.Pool.Exec(ctx, `
		INSERT INTO callback_log (id, provider_id, request_key, severity, message, outcome, details)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		uuid.NewString(), state.ProviderID, state.RequestKey, severity,
		state.LogMessage, string(outcomeOf(state)), details)
	if err != nil {
		return fmt.Errorf("record callback: %w", err)
	}
	return nil
}

func outcomeOf(state *provider.CallbackState) provider.Outcome {
	if state.Outcome == "" {
		return provider.OutcomeUnresolved
	}
	return state.Outcome
}
