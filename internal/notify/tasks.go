package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
)

// TaskPaymentReceived is enqueued once per settled payment. The worker
// is the host's hook point for whatever should happen next (granting
// the purchase, sending a receipt).
const TaskPaymentReceived = "payment:received"

// QueueName is the asynq queue payment notifications go to.
const QueueName = "payments"

// PaymentReceivedPayload is the task body for TaskPaymentReceived.
type PaymentReceivedPayload struct {
	RequestKey    string  `json:"requestKey"`
	TransactionID string  `json:"transactionId"`
	Amount        float64 `json:"amount"`
	Currency      string  `json:"currency"`
}

// Enqueuer publishes payment notifications onto the task queue.
type Enqueuer struct {
	Client *asynq.Client
}

// PaymentReceived enqueues a settled-payment notification.
func (e *Enqueuer) PaymentReceived(ctx context.Context, requestKey, transactionID string, amount float64, currency string) error {
	if e == nil || e.Client == nil {
		return nil
	}
	body, err := json.Marshal(PaymentReceivedPayload{
		RequestKey:    requestKey,
		TransactionID: transactionID,
		Amount:        amount,
		Currency:      currency,
	})
	if err != nil {
		return fmt.Errorf("notify: marshal payload: %w", err)
	}
	task := asynq.NewTask(TaskPaymentReceived, body)
	_, err = e.Client.EnqueueContext(ctx, task, asynq.Queue(QueueName), asynq.MaxRetry(5))
	if err != nil {
		return fmt.Errorf("notify: enqueue %s: %w", TaskPaymentReceived, err)
	}
	return nil
}

// HandlePaymentReceived returns the worker-side handler for settled
// payments. It acknowledges and logs; host-specific fulfilment hangs
// off this handler.
func HandlePaymentReceived(logger zerolog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload PaymentReceivedPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return fmt.Errorf("notify: decode payload: %w", err)
		}
		logger.Info().
			Str("request_key", payload.RequestKey).
			Str("transaction_id", payload.TransactionID).
			Float64("amount", payload.Amount).
			Str("currency", payload.Currency).
			Msg("payment received")
		return nil
	}
}
