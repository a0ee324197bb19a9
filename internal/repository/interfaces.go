package repository

import (
	"context"

	"github.com/popeskul/inbound-messages/internal/models"
)

//go:generate mockgen -source=interfaces.go -destination=mocks/mock_interfaces.go -package=mocks

// Repository interface defines all repository operations.
type Repository interface {
	// HealthCheck reports whether the database answers a trivial query.
	HealthCheck(ctx context.Context) bool

	// Message returns message repository
	Message() MessageRepository
}

// MessageRepository interface defines message operations.
type MessageRepository interface {
	InsertIfAbsent(ctx context.Context, msg *models.Message) (models.InsertResult, error)
	Query(ctx context.Context, filter models.MessageFilter) ([]*models.Message, int64, error)
	Stats(ctx context.Context) (*models.Stats, error)
}
