package audit

import (
	"context"
	"fmt"

	"github.com/hubdesk-platform/api/internal/model"
	"github.com/hubdesk-platform/api/internal/store"
)

// Logger appends entries to the audit trail. Import runs, exports and
// customer mutations all leave a trace; failures to audit are reported
// but callers typically ignore them.
type Logger struct {
	store store.Store
}

func NewLogger(s store.Store) *Logger {
	return &Logger{store: s}
}

type Entry struct {
	Action     string
	EntityType string
	EntityID   string
	RequestID  string
	Metadata   map[string]any
}

func (l *Logger) Log(ctx context.Context, entry Entry) error {
	record := model.AuditEntry{
		Action:     entry.Action,
		EntityType: entry.EntityType,
		RequestID:  entry.RequestID,
		Metadata:   entry.Metadata,
	}
	if entry.EntityID != "" {
		id := entry.EntityID
		record.EntityID = &id
	}

	if err := l.store.InsertAuditLog(ctx, record); err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}
