package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"
)

const defaultSaveTimeout = 3 * time.Second

const schema = `
	CREATE TABLE IF NOT EXISTS ocpp_messages (
		id BIGSERIAL PRIMARY KEY,
		charge_point_id TEXT NOT NULL,
		direction TEXT NOT NULL,
		action TEXT NOT NULL,
		payload JSONB,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)
`

type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// MessageJournal stores raw OCPP CALL frames.
type MessageJournal struct {
	db      execer
	timeout time.Duration
}

// NewMessageJournal accepts *sql.DB or anything exposing ExecContext.
func NewMessageJournal(db execer) *MessageJournal {
	return &MessageJournal{db: db, timeout: defaultSaveTimeout}
}

// EnsureSchema creates the journal table if it is missing.
func (j *MessageJournal) EnsureSchema(ctx context.Context) error {
	_, err := j.db.ExecContext(ctx, schema)
	return err
}

// Save stores one frame. Payloads that are not valid JSON are stored as NULL.
func (j *MessageJournal) Save(ctx context.Context, chargePointID, direction, action string, payload []byte) error {
	const query = `
		INSERT INTO ocpp_messages (charge_point_id, direction, action, payload)
		VALUES ($1, $2, $3, $4)
	`
	ctx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()

	var body interface{}
	if len(payload) > 0 && json.Valid(payload) {
		body = string(payload)
	}
	_, err := j.db.ExecContext(ctx, query, chargePointID, direction, action, body)
	return err
}
