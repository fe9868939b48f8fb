// Package history keeps a ledger of proxyup runs in a SQLite file.
package history

import (
	"context"
	"time"
)

// Action names the step a record describes.
type Action string

const (
	ActionRules   Action = "rules"
	ActionUpgrade Action = "upgrade"
	ActionRestart Action = "restart"
)

// Status is the outcome of a step.
type Status string

const (
	StatusOK      Status = "ok"
	StatusSkipped Status = "skipped"
	StatusFailed  Status = "failed"
)

// Record is one ledger row.
type Record struct {
	ID      int64
	RunID   string
	Action  Action
	Status  Status
	Detail  string
	Version string
	SHA256  string
	At      time.Time
}

// Repository describes the persistence contract for run history.
type Repository interface {
	// Bootstrap prepares the backing store.
	Bootstrap(ctx context.Context) error
	Record(ctx context.Context, rec Record) error
	Recent(ctx context.Context, limit int) ([]Record, error)
	Close() error
}

// Discard is a Repository that stores nothing.
type Discard struct{}

func (Discard) Bootstrap(context.Context) error               { return nil }
func (Discard) Record(context.Context, Record) error          { return nil }
func (Discard) Recent(context.Context, int) ([]Record, error) { return nil, nil }
func (Discard) Close() error                                  { return nil }

var _ Repository = Discard{}
