package shared

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Execer runs a single statement. *db.Store satisfies it.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (int64, error)
}

// AuditEntityShelfTransfer is the entity name used for every shelf movement.
const AuditEntityShelfTransfer = "shelf_transfer"

// AuditLog represents a record stored in audit_logs.
type AuditLog struct {
	Actor    string
	Action   string
	Entity   string
	EntityID string
	Meta     map[string]any
	At       time.Time
}

func (l AuditLog) validate() error {
	switch {
	case l.Actor == "":
		return fmt.Errorf("%w: audit actor required", ErrValidation)
	case l.Action == "", l.Entity == "", l.EntityID == "":
		return fmt.Errorf("%w: audit log requires action, entity and entity id", ErrValidation)
	}
	return nil
}

// AuditLogger writes records into audit_logs.
type AuditLogger struct {
	exec Execer
}

// NewAuditLogger returns a new AuditLogger.
func NewAuditLogger(exec Execer) *AuditLogger {
	return &AuditLogger{exec: exec}
}

// Record persists the log entry. A zero At lets the database stamp the row.
func (l *AuditLogger) Record(ctx context.Context, log AuditLog) error {
	if l == nil || l.exec == nil {
		return errors.New("audit logger not initialised")
	}
	if err := log.validate(); err != nil {
		return err
	}
	meta := log.Meta
	if meta == nil {
		meta = map[string]any{}
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("audit meta: %w", err)
	}
	var at *time.Time
	if !log.At.IsZero() {
		utc := log.At.UTC()
		at = &utc
	}
	_, err = l.exec.Exec(ctx, `INSERT INTO audit_logs (actor, action, entity, entity_id, meta, occurred_at)
VALUES ($1, $2, $3, $4, $5, COALESCE($6, NOW()))`, log.Actor, log.Action, log.Entity, log.EntityID, metaJSON, at)
	return err
}
