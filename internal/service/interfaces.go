package service

//go:generate mockgen -source=interfaces.go -destination=mocks/mock_interfaces.go -package=mocks

import (
	"context"
	"io"

	"github.com/popeskul/inbound-messages/internal/api"
)

type IngestService interface {
	// Ingest verifies, validates and stores one webhook body. It never returns nil.
	Ingest(ctx context.Context, body io.Reader, token string) *IngestResult
}

type QueryService interface {
	ListMessages(ctx context.Context, params api.ListMessagesParams) (*api.MessageListResponse, error)
	GetStats(ctx context.Context) (*api.StatsResponse, error)
}

type HealthService interface {
	Readiness(ctx context.Context) ReadinessStatus
}

// StatsCache holds the last computed stats snapshot. Implementations swallow their own errors;
// a failing cache behaves like an empty one.
type StatsCache interface {
	Get(ctx context.Context) (*api.StatsResponse, bool)
	Set(ctx context.Context, stats *api.StatsResponse)
	Invalidate(ctx context.Context)
}
