// Package service provides business logic implementation for the application.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/popeskul/inbound-messages/internal/config"
	"github.com/popeskul/inbound-messages/internal/models"
	"github.com/popeskul/inbound-messages/internal/repository"
)

// ErrStoreUnavailable is returned without touching the store while the breaker is open.
var ErrStoreUnavailable = errors.New("message store unavailable")

type CircuitBreaker struct {
	cb     *gobreaker.CircuitBreaker
	logger *zap.Logger
}

func NewCircuitBreaker(cfg *config.CircuitBreakerConfig, logger *zap.Logger) *CircuitBreaker {
	settings := gobreaker.Settings{
		Name:        "message-store",
		MaxRequests: cfg.MaxRequests,
		Interval:    time.Duration(cfg.Interval) * time.Second,
		Timeout:     time.Duration(cfg.Timeout) * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= cfg.ConsecutiveFails && failureRatio >= cfg.FailureRatio
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Info("Circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
		IsSuccessful: func(err error) bool {
			// Caller mistakes and abandoned requests say nothing about store health.
			return err == nil ||
				errors.Is(err, repository.ErrInvalidPagination) ||
				errors.Is(err, context.Canceled)
		},
	}

	return &CircuitBreaker{
		cb:     gobreaker.NewCircuitBreaker(settings),
		logger: logger,
	}
}

// Execute runs the given function through the circuit breaker.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func() error) error {
	_, err := cb.cb.Execute(func() (interface{}, error) {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
			return nil, fn()
		}
	})

	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) {
			cb.logger.Warn("Circuit breaker is open, request blocked")
			return fmt.Errorf("%w: circuit breaker is open", ErrStoreUnavailable)
		}
		if errors.Is(err, gobreaker.ErrTooManyRequests) {
			cb.logger.Warn("Circuit breaker: too many requests")
			return fmt.Errorf("%w: too many requests", ErrStoreUnavailable)
		}
		return err
	}

	return nil
}

// State returns "closed", "half-open" or "open".
func (cb *CircuitBreaker) State() string {
	return cb.cb.State().String()
}

// Counts returns the requests and failures seen in the current interval.
func (cb *CircuitBreaker) Counts() (requests, failures uint32) {
	counts := cb.cb.Counts()
	return counts.Requests, counts.TotalFailures
}

// guardedMessages routes every store call through the breaker.
type guardedMessages struct {
	next    repository.MessageRepository
	breaker *CircuitBreaker
}

func newGuardedMessages(next repository.MessageRepository, breaker *CircuitBreaker) repository.MessageRepository {
	return &guardedMessages{next: next, breaker: breaker}
}

func (g *guardedMessages) InsertIfAbsent(ctx context.Context, msg *models.Message) (models.InsertResult, error) {
	var result models.InsertResult
	err := g.breaker.Execute(ctx, func() error {
		var err error
		result, err = g.next.InsertIfAbsent(ctx, msg)
		return err
	})
	return result, err
}

func (g *guardedMessages) Query(ctx context.Context, filter models.MessageFilter) ([]*models.Message, int64, error) {
	var (
		messages []*models.Message
		total    int64
	)
	err := g.breaker.Execute(ctx, func() error {
		var err error
		messages, total, err = g.next.Query(ctx, filter)
		return err
	})
	return messages, total, err
}

func (g *guardedMessages) Stats(ctx context.Context) (*models.Stats, error) {
	var stats *models.Stats
	err := g.breaker.Execute(ctx, func() error {
		var err error
		stats, err = g.next.Stats(ctx)
		return err
	})
	return stats, err
}
