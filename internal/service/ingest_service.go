package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/popeskul/inbound-messages/internal/models"
	"github.com/popeskul/inbound-messages/internal/repository"
	"github.com/popeskul/inbound-messages/internal/signature"
)

var errBodyTooLarge = errors.New("request body too large")

type ingestService struct {
	verifier     *signature.Verifier
	messages     repository.MessageRepository
	cache        StatsCache
	validate     *validator.Validate
	maxBodyBytes int64
	logger       *zap.Logger
}

func NewIngestService(
	verifier *signature.Verifier,
	messages repository.MessageRepository,
	cache StatsCache,
	maxBodyBytes int64,
	logger *zap.Logger,
) IngestService {
	return &ingestService{
		verifier:     verifier,
		messages:     messages,
		cache:        cache,
		validate:     newValidator(),
		maxBodyBytes: maxBodyBytes,
		logger:       logger,
	}
}

func (s *ingestService) Ingest(ctx context.Context, body io.Reader, token string) *IngestResult {
	start := time.Now()
	result := s.ingest(ctx, body, token)
	result.Latency = time.Since(start)
	return result
}

func (s *ingestService) ingest(ctx context.Context, body io.Reader, token string) *IngestResult {
	raw, err := s.readBody(body)
	if err != nil {
		// An unreadable body cannot be authenticated.
		return &IngestResult{
			Outcome:    OutcomeInvalidSignature,
			StatusCode: http.StatusUnauthorized,
			Err:        err,
		}
	}

	if !s.verifier.Verify(raw, token) {
		return &IngestResult{
			Outcome:    OutcomeInvalidSignature,
			StatusCode: http.StatusUnauthorized,
		}
	}

	payload, fieldErrs := decodePayload(s.validate, raw)
	if fieldErrs != nil {
		return &IngestResult{
			Outcome:          OutcomeValidationError,
			StatusCode:       http.StatusUnprocessableEntity,
			MessageID:        peekMessageID(raw),
			ValidationErrors: fieldErrs,
		}
	}

	msg := &models.Message{
		MessageID:   payload.MessageId,
		FromAddress: payload.From,
		ToAddress:   payload.To,
		Timestamp:   payload.Ts,
	}
	if payload.Text != nil {
		msg.Text = sql.NullString{String: *payload.Text, Valid: true}
	}

	inserted, err := s.messages.InsertIfAbsent(ctx, msg)
	if err != nil {
		s.logger.Error("Failed to store message",
			zap.String("message_id", msg.MessageID),
			zap.Error(err))
		return &IngestResult{
			Outcome:    OutcomeServerError,
			StatusCode: http.StatusInternalServerError,
			MessageID:  msg.MessageID,
			Err:        fmt.Errorf("failed to store message: %w", err),
		}
	}

	if inserted == models.InsertCreated {
		s.cache.Invalidate(ctx)
	}

	return &IngestResult{
		Outcome:    string(inserted),
		StatusCode: http.StatusOK,
		MessageID:  msg.MessageID,
	}
}

func (s *ingestService) readBody(body io.Reader) ([]byte, error) {
	if body == nil {
		return []byte{}, nil
	}

	raw, err := io.ReadAll(io.LimitReader(body, s.maxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read request body: %w", err)
	}

	if int64(len(raw)) > s.maxBodyBytes {
		return nil, errBodyTooLarge
	}

	return raw, nil
}
