// Package models defines data structures used throughout the application.
package models

import (
	"database/sql"
	"time"
)

// Message represents an inbound message row in the database.
type Message struct {
	MessageID   string         `db:"message_id" json:"message_id"`
	FromAddress string         `db:"from_address" json:"from"`
	ToAddress   string         `db:"to_address" json:"to"`
	Timestamp   string         `db:"ts" json:"ts"`
	Text        sql.NullString `db:"text" json:"text,omitempty"`
	ReceivedAt  time.Time      `db:"received_at" json:"received_at"`
}

// InsertResult reports what an idempotent insert did.
type InsertResult string

const (
	InsertCreated   InsertResult = "created"
	InsertDuplicate InsertResult = "duplicate"
)

// MessageFilter selects a page of messages. Empty string filters mean no constraint.
type MessageFilter struct {
	Limit        int
	Offset       int
	From         string
	Since        string
	TextContains string
}

// SenderCount is the number of messages received from one sender.
type SenderCount struct {
	From  string `db:"from_address" json:"from"`
	Count int64  `db:"count" json:"count"`
}

// Stats is a consistent snapshot of aggregate figures over all messages.
type Stats struct {
	TotalMessages     int64          `db:"total_messages"`
	DistinctSenders   int64          `db:"senders_count"`
	EarliestTimestamp sql.NullString `db:"first_ts"`
	LatestTimestamp   sql.NullString `db:"last_ts"`
	TopSenders        []SenderCount  `db:"-"`
}
