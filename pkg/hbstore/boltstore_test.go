package hbstore

import (
	"context"
	"errors"
	"github.com/function61/gokit/assert"
	"github.com/function61/lambda-heartbeat/pkg/hbdomain"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"
)

var t0 = time.Date(2020, 2, 20, 14, 2, 0, 0, time.UTC)

func TestBoltPingCreatesThenUpdates(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestBoltStores(t, t0)

	created, err := store.UpsertOnPing(ctx, "nightly-backup", 0, t0)
	assert.Ok(t, err)
	assert.Assert(t, created.Created())
	assert.Assert(t, !created.Recovered)
	assert.Assert(t, created.Monitor.NextDueAt.Equal(t0.Add(5*time.Minute)))

	updated, err := store.UpsertOnPing(ctx, "nightly-backup", time.Hour, t0.Add(time.Minute))
	assert.Ok(t, err)
	assert.Assert(t, !updated.Created())
	assert.Assert(t, updated.Previous.NextDueAt.Equal(t0.Add(5*time.Minute)))
	assert.Assert(t, updated.Monitor.NextDueAt.Equal(t0.Add(61*time.Minute)))

	stored, err := store.Get(ctx, "nightly-backup")
	assert.Ok(t, err)
	assert.EqualJson(t, stored, `{
  "slug": "nightly-backup",
  "interval": 3600000000000,
  "last_ping_at": "2020-02-20T14:03:00Z",
  "next_due_at": "2020-02-20T15:03:00Z",
  "state": "ok",
  "alert_count": 0,
  "paused": false,
  "check_partition": "`+hbdomain.PartitionFor("nightly-backup")+`",
  "created_at": "2020-02-20T14:02:00Z",
  "expires_at": "2020-05-20T14:03:00Z"
}`)
}

func TestBoltScanOverdue(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestBoltStores(t, t0)

	for _, slug := range []string{"db-dump", "cron-1", "cron-2", "paused-one", "failed-one"} {
		_, err := store.UpsertOnPing(ctx, slug, 0, t0)
		assert.Ok(t, err)
	}

	_, err := store.UpsertOnPing(ctx, "hourly", time.Hour, t0)
	assert.Ok(t, err)

	_, err = store.SetPaused(ctx, "paused-one", true)
	assert.Ok(t, err)

	// pinged recently, so not due
	_, err = store.UpsertOnPing(ctx, "cron-2", 0, t0.Add(3*time.Minute))
	assert.Ok(t, err)

	assert.EqualString(t, overdueSlugs(t, store, t0.Add(4*time.Minute)), "")

	_, err = store.MarkFailed(ctx, "failed-one", t0.Add(4*time.Minute))
	assert.Ok(t, err)

	assert.EqualString(t, overdueSlugs(t, store, t0.Add(4*time.Minute)), "failed-one")
	assert.EqualString(t, overdueSlugs(t, store, t0.Add(5*time.Minute)), "cron-1 db-dump failed-one")
	assert.EqualString(t, overdueSlugs(t, store, t0.Add(8*time.Minute)), "cron-1 cron-2 db-dump failed-one")

	_, err = store.SetPaused(ctx, "paused-one", false)
	assert.Ok(t, err)

	assert.EqualString(t, overdueSlugs(t, store, t0.Add(8*time.Minute)), "cron-1 cron-2 db-dump failed-one paused-one")
	assert.EqualString(t, overdueSlugs(t, store, t0.Add(time.Hour)), "cron-1 cron-2 db-dump failed-one hourly paused-one")
}

func TestBoltRecordAlert(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestBoltStores(t, t0)

	_, err := store.UpsertOnPing(ctx, "job", 0, t0)
	assert.Ok(t, err)

	// not yet due
	_, err = store.RecordAlert(ctx, "job", t0.Add(time.Minute))
	assert.Assert(t, errors.Is(err, ErrPreconditionFailed))

	alerted, err := store.RecordAlert(ctx, "job", t0.Add(6*time.Minute))
	assert.Ok(t, err)
	assert.Assert(t, alerted.State == hbdomain.StateOverdue)
	assert.Assert(t, alerted.AlertCount == 1)
	assert.Assert(t, alerted.LastAlertAt.Equal(t0.Add(6*time.Minute)))

	recovered, err := store.UpsertOnPing(ctx, "job", 0, t0.Add(7*time.Minute))
	assert.Ok(t, err)
	assert.Assert(t, recovered.Recovered)
	assert.Assert(t, recovered.Monitor.State == hbdomain.StateOk)
	assert.Assert(t, recovered.Monitor.AlertCount == 1)

	_, err = store.RecordAlert(ctx, "nonexistent", t0)
	assert.Assert(t, errors.Is(err, hbdomain.ErrNotFound))
}

func TestBoltPingWinsRaceAgainstAlert(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestBoltStores(t, t0)

	_, err := store.UpsertOnPing(ctx, "job", 0, t0)
	assert.Ok(t, err)

	scanAt := t0.Add(6 * time.Minute)

	assert.EqualString(t, overdueSlugs(t, store, scanAt), "job")

	// ping lands between the scan's read and its alert write
	_, err = store.UpsertOnPing(ctx, "job", 0, scanAt)
	assert.Ok(t, err)

	_, err = store.RecordAlert(ctx, "job", scanAt)
	assert.Assert(t, errors.Is(err, ErrPreconditionFailed))

	mon, err := store.Get(ctx, "job")
	assert.Ok(t, err)
	assert.Assert(t, mon.State == hbdomain.StateOk)
	assert.Assert(t, mon.AlertCount == 0)
}

func TestBoltNotFound(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestBoltStores(t, t0)

	_, err := store.Get(ctx, "ghost")
	assert.EqualString(t, err.Error(), "not found: ghost")

	_, err = store.MarkFailed(ctx, "ghost", t0)
	assert.Assert(t, errors.Is(err, hbdomain.ErrNotFound))

	_, err = store.SetPaused(ctx, "ghost", true)
	assert.Assert(t, errors.Is(err, hbdomain.ErrNotFound))

	assert.Assert(t, errors.Is(store.Delete(ctx, "ghost"), hbdomain.ErrNotFound))
}

func TestBoltDelete(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestBoltStores(t, t0)

	_, err := store.UpsertOnPing(ctx, "job", 0, t0)
	assert.Ok(t, err)

	assert.Ok(t, store.Delete(ctx, "job"))

	_, err = store.Get(ctx, "job")
	assert.Assert(t, errors.Is(err, hbdomain.ErrNotFound))
	assert.EqualString(t, overdueSlugs(t, store, t0.Add(time.Hour)), "")

	// ping re-creates
	result, err := store.UpsertOnPing(ctx, "job", 0, t0.Add(time.Hour))
	assert.Ok(t, err)
	assert.Assert(t, result.Created())
}

func TestBoltExpiry(t *testing.T) {
	ctx := context.Background()
	now := t0
	db, err := OpenBolt(filepath.Join(t.TempDir(), "heartbeat.db"))
	assert.Ok(t, err)
	defer db.Close()

	store := NewBoltStore(db, func() time.Time { return now })

	_, err = store.UpsertOnPing(ctx, "abandoned", 0, t0)
	assert.Ok(t, err)

	now = t0.Add(hbdomain.Retention)

	_, err = store.Get(ctx, "abandoned")
	assert.Assert(t, errors.Is(err, hbdomain.ErrNotFound))

	all, err := store.ListAll(ctx)
	assert.Ok(t, err)
	assert.Assert(t, len(all) == 0)

	// the scan reaps it instead of reporting it
	assert.EqualString(t, overdueSlugs(t, store, now), "")

	// a ping after expiry starts from scratch
	result, err := store.UpsertOnPing(ctx, "abandoned", 0, now)
	assert.Ok(t, err)
	assert.Assert(t, result.Created())
	assert.Assert(t, result.Monitor.CreatedAt.Equal(now))
}

func TestBoltListAll(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestBoltStores(t, t0)

	for _, slug := range []string{"b", "a", "c"} {
		_, err := store.UpsertOnPing(ctx, slug, 0, t0)
		assert.Ok(t, err)
	}

	all, err := store.ListAll(ctx)
	assert.Ok(t, err)

	slugs := []string{}
	for _, mon := range all {
		slugs = append(slugs, mon.Slug)
	}

	assert.EqualString(t, strings.Join(slugs, " "), "a b c")
}

func TestBoltKeyStore(t *testing.T) {
	ctx := context.Background()
	_, keys := newTestBoltStores(t, t0)

	key := hbdomain.APIKey{Key: "secret", Description: "backup server", CreatedAt: t0}

	assert.Ok(t, keys.PutKey(ctx, key))
	assert.Assert(t, errors.Is(keys.PutKey(ctx, key), ErrPreconditionFailed))

	found, err := keys.LookupKey(ctx, "secret")
	assert.Ok(t, err)
	assert.EqualString(t, found.Description, "backup server")

	_, err = keys.LookupKey(ctx, "wrong")
	assert.Assert(t, errors.Is(err, hbdomain.ErrNotFound))

	all, err := keys.ListKeys(ctx)
	assert.Ok(t, err)
	assert.EqualJson(t, all, `[
  {
    "api_key": "secret",
    "description": "backup server",
    "created_at": "2020-02-20T14:02:00Z"
  }
]`)

	assert.Ok(t, keys.DeleteKey(ctx, "secret"))
	assert.Assert(t, errors.Is(keys.DeleteKey(ctx, "secret"), hbdomain.ErrNotFound))
}

func newTestBoltStores(t *testing.T, now time.Time) (*BoltStore, *BoltKeyStore) {
	db, err := OpenBolt(filepath.Join(t.TempDir(), "heartbeat.db"))
	assert.Ok(t, err)
	t.Cleanup(func() { db.Close() })

	return NewBoltStore(db, func() time.Time { return now }), NewBoltKeyStore(db)
}

func overdueSlugs(t *testing.T, store Store, now time.Time) string {
	overdue, err := store.ScanOverdue(context.Background(), now)
	assert.Ok(t, err)

	slugs := []string{}
	for _, mon := range overdue {
		slugs = append(slugs, mon.Slug)
	}

	sort.Strings(slugs)

	return strings.Join(slugs, " ")
}
