package store

import (
	"bytes"
	"fmt"
	"time"

	"github.com/btcsuite/btcwallet/walletdb"
	"github.com/lightningnetwork/lnd/kvdb"
)

var (
	// mapping x-only pubkey -> roster record
	watchdogBucketName = []byte("watchdogs")
)

// WatchdogStore is the persistent registry of active watchdog identities,
// keyed by x-only serialized public key.
type WatchdogStore struct {
	db kvdb.Backend
}

// NewWatchdogStore returns a new store backed by db
func NewWatchdogStore(db kvdb.Backend) (*WatchdogStore, error) {
	s := &WatchdogStore{db}
	if err := s.initBuckets(); err != nil {
		return nil, err
	}

	return s, nil
}

func (s *WatchdogStore) initBuckets() error {
	if err := kvdb.Batch(s.db, func(tx kvdb.RwTx) error {
		_, err := tx.CreateTopLevelBucket(watchdogBucketName)

		return err
	}); err != nil {
		return fmt.Errorf("failed to initialize watchdog bucket: %w", err)
	}

	return nil
}

// Add inserts a watchdog identity into the active roster.
func (s *WatchdogStore) Add(pk []byte, addedAt time.Time) error {
	if err := kvdb.Batch(s.db, func(tx kvdb.RwTx) error {
		bucket := tx.ReadWriteBucket(watchdogBucketName)
		if bucket == nil {
			return ErrCorruptedLedgerDB
		}

		if bucket.Get(pk) != nil {
			return ErrWatchdogAlreadyActive
		}

		return saveWatchdog(bucket, pk, addedAt)
	}); err != nil {
		return fmt.Errorf("failed to add watchdog: %w", err)
	}

	return nil
}

func saveWatchdog(bucket walletdb.ReadWriteBucket, pk []byte, addedAt time.Time) error {
	var buf bytes.Buffer
	writeTime(&buf, addedAt)

	return bucket.Put(pk, buf.Bytes())
}

// Remove deletes a watchdog identity from the active roster.
func (s *WatchdogStore) Remove(pk []byte) error {
	if err := kvdb.Batch(s.db, func(tx kvdb.RwTx) error {
		bucket := tx.ReadWriteBucket(watchdogBucketName)
		if bucket == nil {
			return ErrCorruptedLedgerDB
		}

		if bucket.Get(pk) == nil {
			return ErrWatchdogNotActive
		}

		return bucket.Delete(pk)
	}); err != nil {
		return fmt.Errorf("failed to remove watchdog: %w", err)
	}

	return nil
}

// IsActive reports whether the identity is in the active roster.
func (s *WatchdogStore) IsActive(pk []byte) (bool, error) {
	var active bool

	if err := s.db.View(func(tx kvdb.RTx) error {
		bucket := tx.ReadBucket(watchdogBucketName)
		if bucket == nil {
			return ErrCorruptedLedgerDB
		}
		active = bucket.Get(pk) != nil

		return nil
	}, func() {}); err != nil {
		return false, fmt.Errorf("failed to query watchdog: %w", err)
	}

	return active, nil
}

// List returns the active identities in key order. Proposer selection
// indexes into this ordering, so it must be deterministic across calls
// with an unchanged roster.
func (s *WatchdogStore) List() ([][]byte, error) {
	var pks [][]byte

	if err := s.db.View(func(tx kvdb.RTx) error {
		bucket := tx.ReadBucket(watchdogBucketName)
		if bucket == nil {
			return ErrCorruptedLedgerDB
		}

		return bucket.ForEach(func(k, _ []byte) error {
			pk := make([]byte, len(k))
			copy(pk, k)
			pks = append(pks, pk)

			return nil
		})
	}, func() {}); err != nil {
		return nil, fmt.Errorf("failed to list watchdogs: %w", err)
	}

	return pks, nil
}

// Count returns the active roster size.
func (s *WatchdogStore) Count() (uint32, error) {
	pks, err := s.List()
	if err != nil {
		return 0, err
	}

	return uint32(len(pks)), nil
}
