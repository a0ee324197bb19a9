package service

import (
	"time"

	"github.com/popeskul/inbound-messages/internal/api"
)

// Webhook outcome tags, used verbatim in logs and metrics.
const (
	OutcomeCreated          = "created"
	OutcomeDuplicate        = "duplicate"
	OutcomeInvalidSignature = "invalid_signature"
	OutcomeValidationError  = "validation_error"
	OutcomeServerError      = "server_error"
)

const (
	DefaultLimit  = 50
	DefaultOffset = 0
)

// IngestResult describes how one webhook delivery was handled.
type IngestResult struct {
	Outcome    string
	StatusCode int
	Latency    time.Duration
	// MessageID is extracted best-effort, for logging only.
	MessageID        string
	ValidationErrors []api.FieldError
	Err              error
}

// Duplicate reports whether the delivery repeated an already stored message.
func (r *IngestResult) Duplicate() bool {
	return r.Outcome == OutcomeDuplicate
}

type ReadinessStatus struct {
	Ready  bool
	Detail string
}
