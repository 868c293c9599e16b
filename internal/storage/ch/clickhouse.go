package ch

import (
	"context"
	"crypto/tls"
	"fmt"

	"library/internal/models"
	"library/internal/storage"

	"github.com/ClickHouse/clickhouse-go/v2"
)

// ClickHouseEventLog stores ledger events in a ClickHouse MergeTree table
type ClickHouseEventLog struct {
	conn clickhouse.Conn
}

// NewClickHouseEventLog creates a new ClickHouse connection for the event log
func NewClickHouseEventLog(host string, port int, database, user, password string, useTLS bool) (*ClickHouseEventLog, error) {
	addr := fmt.Sprintf("%s:%d", host, port)

	options := &clickhouse.Options{
		Addr:     []string{addr},
		Protocol: clickhouse.Native,
		Auth: clickhouse.Auth{
			Database: database,
			Username: user,
			Password: password,
		},
	}

	if useTLS {
		options.TLS = &tls.Config{}
	}

	conn, err := clickhouse.Open(options)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}

	if err := conn.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}

	return &ClickHouseEventLog{conn: conn}, nil
}

// Initialize creates the events table if it does not exist
func (l *ClickHouseEventLog) Initialize(ctx context.Context) error {
	err := l.conn.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS ledger_events (
			occurred_at DateTime64(3, 'UTC'),
			entity      LowCardinality(String),
			entity_id   Int64,
			action      LowCardinality(String),
			detail      String
		) ENGINE = MergeTree()
		ORDER BY occurred_at
	`)
	if err != nil {
		return fmt.Errorf("failed to create ledger_events table: %w", err)
	}
	return nil
}

// RecordEvent appends one event
func (l *ClickHouseEventLog) RecordEvent(ctx context.Context, event models.LedgerEvent) error {
	err := l.conn.Exec(ctx,
		`INSERT INTO ledger_events (occurred_at, entity, entity_id, action, detail) VALUES (?, ?, ?, ?, ?)`,
		event.OccurredAt, event.Entity, event.EntityID, event.Action, event.Detail)
	if err != nil {
		return fmt.Errorf("failed to record event: %w", err)
	}
	return nil
}

// LastEvents returns the last N events, newest first
func (l *ClickHouseEventLog) LastEvents(ctx context.Context, limit int) ([]models.LedgerEvent, error) {
	rows, err := l.conn.Query(ctx,
		`SELECT occurred_at, entity, entity_id, action, detail
		FROM ledger_events ORDER BY occurred_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get last events: %w", err)
	}
	defer rows.Close()

	events := []models.LedgerEvent{}
	for rows.Next() {
		var event models.LedgerEvent
		if err := rows.Scan(&event.OccurredAt, &event.Entity, &event.EntityID, &event.Action, &event.Detail); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

// Close closes the database connection
func (l *ClickHouseEventLog) Close() error {
	if l.conn != nil {
		return l.conn.Close()
	}
	return nil
}

var _ storage.EventLog = (*ClickHouseEventLog)(nil)
