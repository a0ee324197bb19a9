package repository_test

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/require"

	"github.com/popeskul/inbound-messages/internal/models"
	"github.com/popeskul/inbound-messages/internal/repository"
)

const tsLayout = "2006-01-02T15:04:05Z"

func newMessage(id, from, to, ts string, text *string) *models.Message {
	msg := &models.Message{
		MessageID:   id,
		FromAddress: from,
		ToAddress:   to,
		Timestamp:   ts,
	}
	if text != nil {
		msg.Text = sql.NullString{String: *text, Valid: true}
	}
	return msg
}

func insertTestMessage(t *testing.T, repo repository.MessageRepository, id, from, ts string, text *string) {
	t.Helper()

	result, err := repo.InsertIfAbsent(context.Background(), newMessage(id, from, "+100", ts, text))
	require.NoError(t, err)
	require.Equal(t, models.InsertCreated, result)
}

// insertBulkTestMessages inserts count messages from a few senders, many sharing a timestamp.
func insertBulkTestMessages(t *testing.T, repo repository.MessageRepository, count int, seed int64) {
	t.Helper()

	faker := gofakeit.New(seed)
	base := time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)
	senders := []string{"+911", "+912", "+913", "+914"}

	for i := 0; i < count; i++ {
		text := faker.Sentence(4)
		ts := base.Add(time.Duration(faker.Number(0, 5)) * time.Hour).Format(tsLayout)
		from := senders[faker.Number(0, len(senders)-1)]
		insertTestMessage(t, repo, fmt.Sprintf("bulk-%s", faker.UUID()), from, ts, &text)
	}
}

func messageIDs(messages []*models.Message) []string {
	ids := make([]string, 0, len(messages))
	for _, msg := range messages {
		ids = append(ids, msg.MessageID)
	}
	return ids
}

func ptr(s string) *string {
	return &s
}
