package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/popeskul/inbound-messages/internal/config"
	"github.com/popeskul/inbound-messages/internal/repository"
	"github.com/popeskul/inbound-messages/internal/service"
)

func testBreakerConfig() *config.CircuitBreakerConfig {
	return &config.CircuitBreakerConfig{
		MaxRequests:      3,
		Interval:         10,
		Timeout:          60,
		FailureRatio:     0.5,
		ConsecutiveFails: 3,
	}
}

func TestCircuitBreaker_Execute_Success(t *testing.T) {
	tests := []struct {
		name     string
		function func() error
	}{
		{
			name: "successful execution",
			function: func() error {
				return nil
			},
		},
		{
			name: "successful execution with delay",
			function: func() error {
				time.Sleep(10 * time.Millisecond)
				return nil
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cb := service.NewCircuitBreaker(testBreakerConfig(), zap.NewNop())

			err := cb.Execute(context.Background(), tt.function)
			assert.NoError(t, err)
		})
	}
}

func TestCircuitBreaker_Execute_Failure(t *testing.T) {
	tests := []struct {
		name           string
		setupFunc      func(*service.CircuitBreaker)
		cancelContext  bool
		function       func() error
		expectedErrMsg string
		unavailable    bool
	}{
		{
			name: "function returns error",
			function: func() error {
				return errors.New("test error")
			},
			expectedErrMsg: "test error",
		},
		{
			name:          "context cancelled",
			cancelContext: true,
			function: func() error {
				return nil
			},
			expectedErrMsg: "context canceled",
		},
		{
			name: "circuit breaker open",
			setupFunc: func(cb *service.CircuitBreaker) {
				for i := 0; i < 10; i++ {
					_ = cb.Execute(context.Background(), func() error {
						return errors.New("failure")
					})
				}
			},
			function: func() error {
				return nil
			},
			expectedErrMsg: "circuit breaker is open",
			unavailable:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cb := service.NewCircuitBreaker(testBreakerConfig(), zap.NewNop())

			if tt.setupFunc != nil {
				tt.setupFunc(cb)
			}

			ctx := context.Background()
			if tt.cancelContext {
				var cancel context.CancelFunc
				ctx, cancel = context.WithCancel(ctx)
				cancel()
			}

			err := cb.Execute(ctx, tt.function)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.expectedErrMsg)
			assert.Equal(t, tt.unavailable, errors.Is(err, service.ErrStoreUnavailable))
		})
	}
}

func TestCircuitBreaker_State(t *testing.T) {
	cfg := testBreakerConfig()
	cfg.Timeout = 1
	cb := service.NewCircuitBreaker(cfg, zap.NewNop())

	assert.Equal(t, "closed", cb.State())

	for i := 0; i < 5; i++ {
		_ = cb.Execute(context.Background(), func() error {
			return errors.New("failure")
		})
	}
	assert.Equal(t, "open", cb.State())

	time.Sleep(1100 * time.Millisecond)
	assert.Equal(t, "half-open", cb.State())

	require.NoError(t, cb.Execute(context.Background(), func() error { return nil }))
}

func TestCircuitBreaker_IgnoresCallerErrors(t *testing.T) {
	cb := service.NewCircuitBreaker(testBreakerConfig(), zap.NewNop())

	for i := 0; i < 10; i++ {
		err := cb.Execute(context.Background(), func() error {
			return repository.ErrInvalidPagination
		})
		assert.ErrorIs(t, err, repository.ErrInvalidPagination)
	}

	assert.Equal(t, "closed", cb.State())

	requests, failures := cb.Counts()
	assert.Equal(t, uint32(10), requests)
	assert.Zero(t, failures)
}
