package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"backoffice/internal/audit"
)

// Schema creates the append-only audit table. seq preserves recording order.
const Schema = `
CREATE TABLE IF NOT EXISTS audit_entries (
	seq            BIGSERIAL PRIMARY KEY,
	id             UUID NOT NULL UNIQUE,
	timestamp      TIMESTAMPTZ NOT NULL,
	tenant_key     TEXT NOT NULL,
	tenant_id      TEXT NOT NULL DEFAULT '',
	actor_id       TEXT NOT NULL DEFAULT '',
	actor          JSONB NOT NULL,
	action         TEXT NOT NULL,
	resource_type  TEXT NOT NULL DEFAULT '',
	resource_id    TEXT NOT NULL DEFAULT '',
	before         JSONB,
	after          JSONB,
	diff           JSONB,
	reason         TEXT NOT NULL DEFAULT '',
	status         TEXT NOT NULL,
	correlation_id TEXT NOT NULL DEFAULT '',
	metadata       JSONB
);
CREATE INDEX IF NOT EXISTS audit_entries_tenant_key_idx ON audit_entries (tenant_key, seq);
CREATE INDEX IF NOT EXISTS audit_entries_resource_idx ON audit_entries (resource_type, resource_id);
`

// Store implements audit.Store on PostgreSQL.
type Store struct {
	db *sql.DB
}

// New creates a PostgreSQL audit store.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// EnsureSchema creates the audit table when missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("create audit schema: %w", err)
	}
	return nil
}

// Append inserts an entry.
func (s *Store) Append(ctx context.Context, entry audit.Entry) error {
	actor, err := json.Marshal(entry.Actor)
	if err != nil {
		return fmt.Errorf("marshal actor: %w", err)
	}
	before, err := nullableJSON(entry.Before)
	if err != nil {
		return fmt.Errorf("marshal before: %w", err)
	}
	after, err := nullableJSON(entry.After)
	if err != nil {
		return fmt.Errorf("marshal after: %w", err)
	}
	var diff []byte
	if entry.Diff != nil {
		if diff, err = json.Marshal(entry.Diff); err != nil {
			return fmt.Errorf("marshal diff: %w", err)
		}
	}
	metadata, err := nullableJSON(entry.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	query := `
		INSERT INTO audit_entries (
			id, timestamp, tenant_key, tenant_id, actor_id, actor, action,
			resource_type, resource_id, before, after, diff,
			reason, status, correlation_id, metadata
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`
	_, err = s.db.ExecContext(ctx, query,
		entry.ID,
		entry.Timestamp,
		audit.IndexKey(entry.TenantID),
		entry.TenantID,
		entry.Actor.UserID,
		actor,
		entry.Action,
		entry.ResourceType,
		entry.ResourceID,
		before,
		after,
		diff,
		entry.Reason,
		entry.Status,
		entry.CorrelationID,
		metadata,
	)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

// Search returns matching entries in recording order.
func (s *Store) Search(ctx context.Context, criteria audit.Criteria) ([]audit.Entry, error) {
	var (
		where []string
		args  []any
	)
	add := func(clause string, value any) {
		args = append(args, value)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}
	if criteria.TenantID != "" {
		add("tenant_key = $%d", criteria.TenantID)
	}
	if criteria.ActorID != "" {
		add("actor_id = $%d", criteria.ActorID)
	}
	if criteria.Action != "" {
		add("action = $%d", criteria.Action)
	}
	if criteria.ResourceType != "" {
		add("resource_type = $%d", criteria.ResourceType)
	}
	if criteria.ResourceID != "" {
		add("resource_id = $%d", criteria.ResourceID)
	}
	if criteria.Status != "" {
		add("status = $%d", criteria.Status)
	}
	if !criteria.From.IsZero() {
		add("timestamp >= $%d", criteria.From)
	}
	if !criteria.To.IsZero() {
		add("timestamp <= $%d", criteria.To)
	}

	var b strings.Builder
	b.WriteString(`
		SELECT id, timestamp, tenant_id, actor, action, resource_type, resource_id,
			   before, after, diff, reason, status, correlation_id, metadata
		FROM audit_entries`)
	if len(where) > 0 {
		b.WriteString(" WHERE " + strings.Join(where, " AND "))
	}
	b.WriteString(" ORDER BY seq")
	if criteria.Limit > 0 {
		args = append(args, criteria.Limit)
		fmt.Fprintf(&b, " LIMIT $%d", len(args))
	}
	if criteria.Offset > 0 {
		args = append(args, criteria.Offset)
		fmt.Fprintf(&b, " OFFSET $%d", len(args))
	}

	rows, err := s.db.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("query audit entries: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

func scanEntries(rows *sql.Rows) ([]audit.Entry, error) {
	entries := []audit.Entry{}
	for rows.Next() {
		var (
			e                             audit.Entry
			actor                         []byte
			before, after, diff, metadata []byte
		)
		err := rows.Scan(
			&e.ID,
			&e.Timestamp,
			&e.TenantID,
			&actor,
			&e.Action,
			&e.ResourceType,
			&e.ResourceID,
			&before,
			&after,
			&diff,
			&e.Reason,
			&e.Status,
			&e.CorrelationID,
			&metadata,
		)
		if err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		if err := json.Unmarshal(actor, &e.Actor); err != nil {
			return nil, fmt.Errorf("decode actor: %w", err)
		}
		if e.Before, err = decodeMap(before); err != nil {
			return nil, fmt.Errorf("decode before: %w", err)
		}
		if e.After, err = decodeMap(after); err != nil {
			return nil, fmt.Errorf("decode after: %w", err)
		}
		if e.Metadata, err = decodeMap(metadata); err != nil {
			return nil, fmt.Errorf("decode metadata: %w", err)
		}
		if len(diff) > 0 {
			var d audit.Diff
			if err := json.Unmarshal(diff, &d); err != nil {
				return nil, fmt.Errorf("decode diff: %w", err)
			}
			e.Diff = &d
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit entries: %w", err)
	}
	return entries, nil
}

func nullableJSON(m map[string]any) ([]byte, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

func decodeMap(raw []byte) (map[string]any, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return m, nil
}
