package service

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/popeskul/inbound-messages/internal/repository"
)

// StoreGauge receives the outcome of every store probe.
type StoreGauge interface {
	SetStoreUp(up bool)
}

// StoreProbe checks the store and reports the result to a gauge. Transitions are logged.
type StoreProbe struct {
	repo   repository.Repository
	gauge  StoreGauge
	logger *zap.Logger

	mu   sync.Mutex
	last *bool
}

func NewStoreProbe(repo repository.Repository, gauge StoreGauge, logger *zap.Logger) *StoreProbe {
	return &StoreProbe{
		repo:   repo,
		gauge:  gauge,
		logger: logger,
	}
}

// Run performs one probe. It returns ErrStoreUnavailable when the store does not answer.
func (p *StoreProbe) Run(ctx context.Context) error {
	up := p.repo.HealthCheck(ctx)
	p.gauge.SetStoreUp(up)

	p.mu.Lock()
	changed := p.last == nil || *p.last != up
	p.last = &up
	p.mu.Unlock()

	if changed {
		if up {
			p.logger.Info("Store reachable")
		} else {
			p.logger.Warn("Store unreachable")
		}
	}

	if !up {
		return ErrStoreUnavailable
	}
	return nil
}
