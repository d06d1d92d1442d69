package hbstore

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"github.com/function61/gokit/jsonfile"
	"github.com/function61/lambda-heartbeat/pkg/hbdomain"
	"go.etcd.io/bbolt"
	"time"
)

// due_index keys are <check_partition> 0x00 <next_due_at, 8 bytes big endian> <slug>, so a
// cursor seek to a partition prefix walks its monitors in due order
var (
	monitorsBucket = []byte("monitors")
	dueIndexBucket = []byte("due_index")
	apiKeysBucket  = []byte("api_keys")
)

// OpenBolt opens (or creates) a single-file database usable by both BoltStore and BoltKeyStore
func OpenBolt(path string) (*bbolt.DB, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 3 * time.Second})
	if err != nil {
		return nil, unavailable(err)
	}

	if err := db.Update(func(tx *bbolt.Tx) error {
		for _, bucket := range [][]byte{monitorsBucket, dueIndexBucket, apiKeysBucket} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return err
			}
		}

		return nil
	}); err != nil {
		db.Close()
		return nil, unavailable(err)
	}

	return db, nil
}

// Store for running outside of AWS. expired records are treated as absent and reaped by
// ScanOverdue(), mimicking DynamoDB TTL.
type BoltStore struct {
	db    *bbolt.DB
	clock func() time.Time
}

var _ Store = (*BoltStore)(nil)

// clock == nil uses time.Now
func NewBoltStore(db *bbolt.DB, clock func() time.Time) *BoltStore {
	if clock == nil {
		clock = time.Now
	}

	return &BoltStore{db, clock}
}

func (b *BoltStore) Get(ctx context.Context, slug string) (*hbdomain.Monitor, error) {
	var mon *hbdomain.Monitor

	err := b.view(func(tx *bbolt.Tx) error {
		var err error
		mon, err = getLiveMonitor(tx, slug, b.clock())
		return err
	})

	return mon, err
}

func (b *BoltStore) UpsertOnPing(
	ctx context.Context,
	slug string,
	intervalOverride time.Duration,
	now time.Time,
) (*PingResult, error) {
	now = hbdomain.Timestamp(now)

	var result *PingResult

	err := b.update(func(tx *bbolt.Tx) error {
		previous, err := getMonitor(tx, slug)
		if err != nil {
			return err
		}

		if previous != nil && previous.IsExpired(now) {
			if err := deleteMonitor(tx, *previous); err != nil {
				return err
			}

			previous = nil
		}

		mon, recovered := hbdomain.Ping(previous, slug, intervalOverride, now)

		if err := putMonitor(tx, previous, mon); err != nil {
			return err
		}

		result = &PingResult{
			Monitor:   mon,
			Previous:  previous,
			Recovered: recovered,
		}

		return nil
	})

	return result, err
}

func (b *BoltStore) MarkFailed(ctx context.Context, slug string, now time.Time) (*hbdomain.Monitor, error) {
	return b.modify(slug, now, func(mon hbdomain.Monitor) (hbdomain.Monitor, error) {
		return hbdomain.Fail(mon, now), nil
	})
}

func (b *BoltStore) SetPaused(ctx context.Context, slug string, paused bool) (*hbdomain.Monitor, error) {
	return b.modify(slug, b.clock(), func(mon hbdomain.Monitor) (hbdomain.Monitor, error) {
		return hbdomain.SetPaused(mon, paused), nil
	})
}

func (b *BoltStore) RecordAlert(ctx context.Context, slug string, at time.Time) (*hbdomain.Monitor, error) {
	return b.modify(slug, at, func(mon hbdomain.Monitor) (hbdomain.Monitor, error) {
		if !hbdomain.CanRecordAlert(mon, at) {
			return mon, fmt.Errorf("%w: RecordAlert %s", ErrPreconditionFailed, slug)
		}

		return hbdomain.RecordAlert(mon, at), nil
	})
}

func (b *BoltStore) Delete(ctx context.Context, slug string) error {
	return b.update(func(tx *bbolt.Tx) error {
		mon, err := getLiveMonitor(tx, slug, b.clock())
		if err != nil {
			return err
		}

		return deleteMonitor(tx, *mon)
	})
}

func (b *BoltStore) ListAll(ctx context.Context) ([]hbdomain.Monitor, error) {
	now := b.clock()
	monitors := []hbdomain.Monitor{}

	err := b.view(func(tx *bbolt.Tx) error {
		return tx.Bucket(monitorsBucket).ForEach(func(_, data []byte) error {
			mon := hbdomain.Monitor{}
			if err := jsonfile.Unmarshal(bytes.NewReader(data), &mon, true); err != nil {
				return err
			}

			if !mon.IsExpired(now) {
				monitors = append(monitors, mon)
			}

			return nil
		})
	})

	if err != nil {
		return nil, err
	}

	return monitors, nil
}

func (b *BoltStore) ScanOverdue(ctx context.Context, now time.Time) ([]hbdomain.Monitor, error) {
	now = hbdomain.Timestamp(now)

	overdue := []hbdomain.Monitor{}

	err := b.update(func(tx *bbolt.Tx) error {
		expired := []hbdomain.Monitor{}

		for _, partition := range hbdomain.Partitions() {
			prefix := dueIndexPrefix(partition)

			cursor := tx.Bucket(dueIndexBucket).Cursor()

			for key, _ := cursor.Seek(prefix); key != nil && bytes.HasPrefix(key, prefix); key, _ = cursor.Next() {
				due, slug := parseDueIndexKey(key[len(prefix):])
				if due.After(now) { // rest of the partition is due even later
					break
				}

				mon, err := getMonitor(tx, slug)
				if err != nil {
					return err
				}

				switch {
				case mon == nil: // dangling index entry
					continue
				case mon.IsExpired(now):
					expired = append(expired, *mon)
				case mon.Paused:
					continue
				default:
					overdue = append(overdue, *mon)
				}
			}
		}

		// not while iterating, since mutating a bucket invalidates its cursors
		for _, mon := range expired {
			if err := deleteMonitor(tx, mon); err != nil {
				return err
			}
		}

		return nil
	})

	if err != nil {
		return nil, err
	}

	return overdue, nil
}

// read-modify-write of an existing, unexpired monitor inside a single transaction
func (b *BoltStore) modify(
	slug string,
	now time.Time,
	fn func(hbdomain.Monitor) (hbdomain.Monitor, error),
) (*hbdomain.Monitor, error) {
	var updated hbdomain.Monitor

	if err := b.update(func(tx *bbolt.Tx) error {
		previous, err := getLiveMonitor(tx, slug, now)
		if err != nil {
			return err
		}

		updated, err = fn(*previous)
		if err != nil {
			return err
		}

		return putMonitor(tx, previous, updated)
	}); err != nil {
		return nil, err
	}

	return &updated, nil
}

func (b *BoltStore) view(fn func(tx *bbolt.Tx) error) error {
	return translateBoltError(b.db.View(fn))
}

func (b *BoltStore) update(fn func(tx *bbolt.Tx) error) error {
	return translateBoltError(b.db.Update(fn))
}

type BoltKeyStore struct {
	db *bbolt.DB
}

var _ KeyStore = (*BoltKeyStore)(nil)

func NewBoltKeyStore(db *bbolt.DB) *BoltKeyStore {
	return &BoltKeyStore{db}
}

func (b *BoltKeyStore) LookupKey(ctx context.Context, key string) (*hbdomain.APIKey, error) {
	var apiKey *hbdomain.APIKey

	err := translateBoltError(b.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(apiKeysBucket).Get([]byte(key))
		if data == nil {
			return notFound("API key")
		}

		apiKey = &hbdomain.APIKey{}
		return jsonfile.Unmarshal(bytes.NewReader(data), apiKey, true)
	}))

	return apiKey, err
}

func (b *BoltKeyStore) PutKey(ctx context.Context, key hbdomain.APIKey) error {
	return translateBoltError(b.db.Update(func(tx *bbolt.Tx) error {
		keys := tx.Bucket(apiKeysBucket)

		if keys.Get([]byte(key.Key)) != nil {
			return fmt.Errorf("%w: API key already exists", ErrPreconditionFailed)
		}

		data, err := json.Marshal(key)
		if err != nil {
			return err
		}

		return keys.Put([]byte(key.Key), data)
	}))
}

func (b *BoltKeyStore) ListKeys(ctx context.Context) ([]hbdomain.APIKey, error) {
	keys := []hbdomain.APIKey{}

	err := translateBoltError(b.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(apiKeysBucket).ForEach(func(_, data []byte) error {
			key := hbdomain.APIKey{}
			if err := jsonfile.Unmarshal(bytes.NewReader(data), &key, true); err != nil {
				return err
			}

			keys = append(keys, key)
			return nil
		})
	}))

	if err != nil {
		return nil, err
	}

	return keys, nil
}

func (b *BoltKeyStore) DeleteKey(ctx context.Context, key string) error {
	return translateBoltError(b.db.Update(func(tx *bbolt.Tx) error {
		keys := tx.Bucket(apiKeysBucket)

		if keys.Get([]byte(key)) == nil {
			return notFound("API key")
		}

		return keys.Delete([]byte(key))
	}))
}

func getMonitor(tx *bbolt.Tx, slug string) (*hbdomain.Monitor, error) {
	data := tx.Bucket(monitorsBucket).Get([]byte(slug))
	if data == nil {
		return nil, nil
	}

	mon := &hbdomain.Monitor{}
	if err := jsonfile.Unmarshal(bytes.NewReader(data), mon, true); err != nil {
		return nil, fmt.Errorf("getMonitor %s: %w", slug, err)
	}

	return mon, nil
}

func getLiveMonitor(tx *bbolt.Tx, slug string, now time.Time) (*hbdomain.Monitor, error) {
	mon, err := getMonitor(tx, slug)
	if err != nil {
		return nil, err
	}

	if mon == nil || mon.IsExpired(now) {
		return nil, notFound(slug)
	}

	return mon, nil
}

// previous == nil when inserting
func putMonitor(tx *bbolt.Tx, previous *hbdomain.Monitor, mon hbdomain.Monitor) error {
	if previous != nil {
		if err := tx.Bucket(dueIndexBucket).Delete(dueIndexKey(*previous)); err != nil {
			return err
		}
	}

	data, err := json.Marshal(mon)
	if err != nil {
		return err
	}

	if err := tx.Bucket(monitorsBucket).Put([]byte(mon.Slug), data); err != nil {
		return err
	}

	return tx.Bucket(dueIndexBucket).Put(dueIndexKey(mon), nil)
}

func deleteMonitor(tx *bbolt.Tx, mon hbdomain.Monitor) error {
	if err := tx.Bucket(dueIndexBucket).Delete(dueIndexKey(mon)); err != nil {
		return err
	}

	return tx.Bucket(monitorsBucket).Delete([]byte(mon.Slug))
}

func dueIndexPrefix(partition string) []byte {
	return append([]byte(partition), 0x00)
}

func dueIndexKey(mon hbdomain.Monitor) []byte {
	due := make([]byte, 8)
	binary.BigEndian.PutUint64(due, uint64(mon.NextDueAt.Unix()))

	key := dueIndexPrefix(mon.CheckPartition)
	key = append(key, due...)
	return append(key, []byte(mon.Slug)...)
}

// input is the key without the partition prefix
func parseDueIndexKey(key []byte) (time.Time, string) {
	return epoch(int64(binary.BigEndian.Uint64(key[:8]))), string(key[8:])
}

// domain errors pass through, everything else means the database is in trouble
func translateBoltError(err error) error {
	if err == nil ||
		errors.Is(err, hbdomain.ErrNotFound) ||
		errors.Is(err, hbdomain.ErrStoreUnavailable) ||
		errors.Is(err, ErrPreconditionFailed) {
		return err
	}

	return unavailable(err)
}
