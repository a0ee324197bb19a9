package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/popeskul/inbound-messages/internal/api"
	"github.com/popeskul/inbound-messages/internal/models"
	"github.com/popeskul/inbound-messages/internal/repository"
)

type queryService struct {
	messages repository.MessageRepository
	cache    StatsCache
	logger   *zap.Logger
}

func NewQueryService(messages repository.MessageRepository, cache StatsCache, logger *zap.Logger) QueryService {
	return &queryService{
		messages: messages,
		cache:    cache,
		logger:   logger,
	}
}

// ListMessages clamps limit and offset into range.
func (s *queryService) ListMessages(ctx context.Context, params api.ListMessagesParams) (*api.MessageListResponse, error) {
	filter := models.MessageFilter{
		Limit:        clampLimit(params.Limit),
		Offset:       clampOffset(params.Offset),
		From:         deref(params.From),
		Since:        deref(params.Since),
		TextContains: deref(params.Q),
	}

	messages, total, err := s.messages.Query(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}

	data := make([]api.Message, 0, len(messages))
	for _, msg := range messages {
		item := api.Message{
			MessageId: msg.MessageID,
			From:      msg.FromAddress,
			To:        msg.ToAddress,
			Ts:        msg.Timestamp,
		}
		if msg.Text.Valid {
			text := msg.Text.String
			item.Text = &text
		}
		data = append(data, item)
	}

	return &api.MessageListResponse{
		Data:   data,
		Total:  total,
		Limit:  filter.Limit,
		Offset: filter.Offset,
	}, nil
}

func (s *queryService) GetStats(ctx context.Context) (*api.StatsResponse, error) {
	if cached, ok := s.cache.Get(ctx); ok {
		s.logger.Debug("Serving stats from cache")
		return cached, nil
	}

	stats, err := s.messages.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get stats: %w", err)
	}

	senders := make([]api.SenderCount, 0, len(stats.TopSenders))
	for _, sc := range stats.TopSenders {
		senders = append(senders, api.SenderCount{From: sc.From, Count: sc.Count})
	}

	response := &api.StatsResponse{
		TotalMessages:     stats.TotalMessages,
		SendersCount:      stats.DistinctSenders,
		MessagesPerSender: senders,
	}
	if stats.EarliestTimestamp.Valid {
		first := stats.EarliestTimestamp.String
		response.FirstMessageTs = &first
	}
	if stats.LatestTimestamp.Valid {
		last := stats.LatestTimestamp.String
		response.LastMessageTs = &last
	}

	s.cache.Set(ctx, response)

	return response, nil
}

func clampLimit(limit *int) int {
	if limit == nil {
		return DefaultLimit
	}
	if *limit < repository.MinLimit {
		return repository.MinLimit
	}
	if *limit > repository.MaxLimit {
		return repository.MaxLimit
	}
	return *limit
}

func clampOffset(offset *int) int {
	if offset == nil || *offset < 0 {
		return DefaultOffset
	}
	return *offset
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
