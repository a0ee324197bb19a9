package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
)

// repositoryImpl is the concrete implementation of Repository interface.
type repositoryImpl struct {
	db      *sqlx.DB
	message MessageRepository
}

// NewRepository creates a new repository instance.
func NewRepository(db *sqlx.DB) Repository {
	return &repositoryImpl{
		db:      db,
		message: NewMessageRepository(db),
	}
}

// Message returns the message repository.
func (r *repositoryImpl) Message() MessageRepository {
	return r.message
}

// HealthCheck runs a trivial query with a short deadline. It never returns an error.
func (r *repositoryImpl) HealthCheck(ctx context.Context) bool {
	if r.db == nil {
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	var one int
	if err := r.db.GetContext(ctx, &one, "SELECT 1"); err != nil {
		return false
	}

	return one == 1
}
