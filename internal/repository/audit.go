package repository

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/quantfold/papertrade/internal/types"
	"go.uber.org/zap"
)

// AppendAudit persists an audit entry. Audit failures are logged but must
// never fail the operation that produced them.
func (s *Store) AppendAudit(entry types.AuditEntry) {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}

	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}

	var details string

	if len(entry.Details) > 0 {
		raw, err := json.Marshal(entry.Details)
		if err == nil {
			details = string(raw)
		}
	}

	insert := s.sq.
		Insert("audit_log").
		Columns("id", "timestamp", "source", "message", "severity", "details").
		Values(entry.ID, entry.Timestamp, entry.Source, entry.Message,
			entry.Severity, details).
		RunWith(s.db)

	if _, err := insert.Exec(); err != nil {
		s.logger.Error("Failed to append audit entry",
			zap.String("source", entry.Source),
			zap.String("message", entry.Message),
			zap.Error(err),
		)
	}
}

// ListAudit returns audit entries since the given time, newest first.
func (s *Store) ListAudit(since time.Time, limit uint64) ([]types.AuditEntry, error) {
	query := s.sq.
		Select("id", "timestamp", "source", "message", "severity", "details").
		From("audit_log").
		Where(squirrel.GtOrEq{"timestamp": since}).
		OrderBy("timestamp DESC").
		Limit(limit).
		RunWith(s.db)

	rows, err := query.Query()
	if err != nil {
		return nil, fmt.Errorf("failed to query audit log: %w", err)
	}
	defer rows.Close()

	var entries []types.AuditEntry

	for rows.Next() {
		var (
			entry   types.AuditEntry
			details string
		)

		err := rows.Scan(&entry.ID, &entry.Timestamp, &entry.Source,
			&entry.Message, &entry.Severity, &details)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}

		if details != "" {
			_ = json.Unmarshal([]byte(details), &entry.Details)
		}

		entries = append(entries, entry)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit log: %w", err)
	}

	return entries, nil
}
