package service

import (
	"context"

	"github.com/popeskul/inbound-messages/internal/repository"
)

const (
	readinessDetailMissingSecret = "WEBHOOK_SECRET missing"
	readinessDetailDatabase      = "database connection failed"
)

type healthService struct {
	repo             repository.Repository
	secretConfigured bool
}

func NewHealthService(repo repository.Repository, secretConfigured bool) HealthService {
	return &healthService{
		repo:             repo,
		secretConfigured: secretConfigured,
	}
}

// Readiness requires a configured webhook secret and a store that answers a trivial query.
func (s *healthService) Readiness(ctx context.Context) ReadinessStatus {
	if !s.secretConfigured {
		return ReadinessStatus{Detail: readinessDetailMissingSecret}
	}

	if !s.repo.HealthCheck(ctx) {
		return ReadinessStatus{Detail: readinessDetailDatabase}
	}

	return ReadinessStatus{Ready: true}
}
