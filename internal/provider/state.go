package provider

// Severity classifies a rejected callback for the audit log.
type Severity string

const (
	// SeverityInfo marks noise such as probing traffic or retries for
	// requests that no longer exist. Not actionable.
	SeverityInfo Severity = "info"
	// SeverityError marks callbacks that looked genuine but failed a
	// hard check and need manual review.
	SeverityError Severity = "error"
)

// Outcome is the normalised payment result derived from a callback.
type Outcome string

const (
	// OutcomeUnresolved means no definitive result was asserted. Either
	// the pipeline rejected the callback or the gateway status did not
	// report a completed payment.
	OutcomeUnresolved Outcome = "unresolved"
	// OutcomeReceived means the payment completed successfully.
	OutcomeReceived Outcome = "received"
)

// Rejection aborts the validation pipeline. The first stage returning a
// non-nil Rejection wins; later stages never run.
type Rejection struct {
	Severity Severity
	Message  string
}

// CallbackState accumulates everything extracted from one inbound
// gateway callback while it moves through the validation pipeline. One
// instance is created per callback and discarded once the outcome is
// recorded; nothing in it is shared between requests.
type CallbackState struct {
	ProviderID string

	// RawData is the transport-level payload exactly as received. The
	// signature is computed over this string, so it must not be
	// re-encoded before verification.
	RawData       string
	DecodedFields map[string]any
	Signature     string
	SourceIP      string

	// HTTPCode is the acknowledgment status returned to the gateway.
	// Always 200 once parsing completes: anything else makes the
	// gateway retry delivery.
	HTTPCode int

	RequestKey    string
	TransactionID string
	Amount        float64
	Currency      string
	Status        string
	SubscriberID  string

	Outcome     Outcome
	LogSeverity Severity
	LogMessage  string
	LogDetails  map[string]any
}

// Reject records the rejection on the state. Once set, the pipeline is
// over; Run will not execute further stages.
func (s *CallbackState) Reject(r *Rejection) {
	if s == nil || r == nil {
		return
	}
	s.LogSeverity = r.Severity
	s.LogMessage = r.Message
}

// Rejected reports whether any stage has aborted the pipeline.
func (s *CallbackState) Rejected() bool {
	return s != nil && s.LogSeverity != ""
}
