package service

import (
	"go.uber.org/zap"

	"github.com/popeskul/inbound-messages/internal/config"
	"github.com/popeskul/inbound-messages/internal/repository"
	"github.com/popeskul/inbound-messages/internal/signature"
)

type Service struct {
	Ingest IngestService
	Query  QueryService
	Health HealthService
}

func NewService(
	cfg *config.Config,
	repo repository.Repository,
	verifier *signature.Verifier,
	cache StatsCache,
	logger *zap.Logger,
) *Service {
	if cache == nil {
		cache = NewNoopStatsCache()
	}

	breaker := NewCircuitBreaker(&cfg.Database.CircuitBreaker, logger)
	messages := newGuardedMessages(repo.Message(), breaker)

	return &Service{
		Ingest: NewIngestService(verifier, messages, cache, cfg.Webhook.MaxBodyBytes, logger),
		Query:  NewQueryService(messages, cache, logger),
		Health: NewHealthService(repo, cfg.Webhook.Secret != ""),
	}
}
