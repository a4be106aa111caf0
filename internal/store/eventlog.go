package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"tareas-cli/internal/model"

	"github.com/google/uuid"
)

// AppendEvent records one applied command. The log is informational: state is always read
// from the state tables, never replayed from events.
func (s Store) AppendEvent(ctx context.Context, typ, entityID string, payload any) (model.Event, error) {
	typ = strings.TrimSpace(typ)
	if typ == "" {
		return model.Event{}, errors.New("event: missing type")
	}
	pb, err := json.Marshal(payload)
	if err != nil {
		return model.Event{}, err
	}

	db, err := s.openSQLite(ctx)
	if err != nil {
		return model.Event{}, err
	}
	defer db.Close()

	ev := model.Event{
		ID:       uuid.NewString(),
		TS:       time.Now().UTC(),
		Type:     typ,
		EntityID: strings.TrimSpace(entityID),
		Payload:  payload,
	}
	if _, err := db.ExecContext(ctx, `INSERT INTO events(event_id, type, entity_id, payload_json, created_at_unixms) VALUES(?, ?, ?, ?, ?)`,
		ev.ID, ev.Type, ev.EntityID, string(pb), ev.TS.UnixMilli()); err != nil {
		return model.Event{}, err
	}
	return ev, nil
}

// ReadEvents returns the most recent events, oldest first. limit <= 0 returns all of them.
// A non-empty entityID restricts the result to that entity.
func (s Store) ReadEvents(ctx context.Context, entityID string, limit int) ([]model.Event, error) {
	db, err := s.openSQLite(ctx)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	q := `SELECT event_id, created_at_unixms, type, entity_id, payload_json FROM events`
	args := []any{}
	if entityID = strings.TrimSpace(entityID); entityID != "" {
		q += ` WHERE entity_id = ?`
		args = append(args, entityID)
	}
	q += ` ORDER BY created_at_unixms DESC, rowid DESC`
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	var rows *sql.Rows
	rows, err = db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Event{}
	for rows.Next() {
		var id, typ, eid, payloadJSON string
		var tsMs int64
		if err := rows.Scan(&id, &tsMs, &typ, &eid, &payloadJSON); err != nil {
			return nil, err
		}
		var payload any
		_ = json.Unmarshal([]byte(payloadJSON), &payload)
		out = append(out, model.Event{
			ID:       id,
			TS:       time.UnixMilli(tsMs).UTC(),
			Type:     typ,
			EntityID: eid,
			Payload:  payload,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// Newest-first from SQL; reverse into chronological order.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}
