// Monitor and API key storage. Every mutation is a single conditional write keyed by
// slug, so the ping API and the scheduled scanner can both mutate monitors without locks.
package hbstore

import (
	"context"
	"errors"
	"fmt"
	"github.com/function61/lambda-heartbeat/pkg/hbdomain"
	"time"
)

// a conditional write was rejected because the stored monitor changed under us
var ErrPreconditionFailed = errors.New("precondition failed")

type PingResult struct {
	Monitor   hbdomain.Monitor
	Previous  *hbdomain.Monitor // nil when the ping created the monitor
	Recovered bool              // Overdue -> Ok
}

func (p *PingResult) Created() bool {
	return p.Previous == nil
}

type Store interface {
	Get(ctx context.Context, slug string) (*hbdomain.Monitor, error)
	// intervalOverride == 0 keeps the stored interval
	UpsertOnPing(ctx context.Context, slug string, intervalOverride time.Duration, now time.Time) (*PingResult, error)
	MarkFailed(ctx context.Context, slug string, now time.Time) (*hbdomain.Monitor, error)
	SetPaused(ctx context.Context, slug string, paused bool) (*hbdomain.Monitor, error)
	Delete(ctx context.Context, slug string) error
	ListAll(ctx context.Context) ([]hbdomain.Monitor, error)
	// unpaused monitors with next_due_at <= now, across all check partitions
	ScanOverdue(ctx context.Context, now time.Time) ([]hbdomain.Monitor, error)
	// commits only if next_due_at <= at still holds, else ErrPreconditionFailed
	RecordAlert(ctx context.Context, slug string, at time.Time) (*hbdomain.Monitor, error)
}

type KeyStore interface {
	LookupKey(ctx context.Context, key string) (*hbdomain.APIKey, error)
	PutKey(ctx context.Context, key hbdomain.APIKey) error
	ListKeys(ctx context.Context) ([]hbdomain.APIKey, error)
	DeleteKey(ctx context.Context, key string) error
}

func notFound(what string) error {
	return fmt.Errorf("%w: %s", hbdomain.ErrNotFound, what)
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %w", hbdomain.ErrStoreUnavailable, err)
}
