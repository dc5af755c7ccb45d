package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// AppendStreamEvent writes one row to the raw event log. This runs outside
// the upsert transaction on purpose: the log records what arrived, not what
// was successfully processed.
func (s *Store) AppendStreamEvent(ctx context.Context, kind string, payload json.RawMessage, receivedAt time.Time) (int64, error) {
	const query = `
		INSERT INTO stream_events (instance_id, kind, payload, received_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id`

	var id int64
	if err := s.DB.QueryRowContext(ctx, query, s.InstanceID, kind, []byte(payload), receivedAt).Scan(&id); err != nil {
		return 0, fmt.Errorf("append stream event: %w", err)
	}
	return id, nil
}

// SetStreamEventError records a processing failure against a logged event.
// The only mutation the raw log ever sees.
func (s *Store) SetStreamEventError(ctx context.Context, eventID int64, message string) error {
	const query = `UPDATE stream_events SET process_error = $2 WHERE id = $1`

	if _, err := s.DB.ExecContext(ctx, query, eventID, message); err != nil {
		return fmt.Errorf("set stream event error: %w", err)
	}
	return nil
}
