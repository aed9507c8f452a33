package store

import (
	"fmt"

	"github.com/lightningnetwork/lnd/kvdb"

	"github.com/reservelabs/reserve-watchdog/types"
)

var (
	paramsBucketName = []byte("consensus_params")
	paramsKey        = []byte("current")
)

// ParamsStore persists the current consensus parameters so a restarted
// engine resumes with the thresholds it was last configured with.
type ParamsStore struct {
	db kvdb.Backend
}

// NewParamsStore returns a new store backed by db
func NewParamsStore(db kvdb.Backend) (*ParamsStore, error) {
	s := &ParamsStore{db}
	if err := s.initBuckets(); err != nil {
		return nil, err
	}

	return s, nil
}

func (s *ParamsStore) initBuckets() error {
	if err := kvdb.Batch(s.db, func(tx kvdb.RwTx) error {
		_, err := tx.CreateTopLevelBucket(paramsBucketName)

		return err
	}); err != nil {
		return fmt.Errorf("failed to initialize params bucket: %w", err)
	}

	return nil
}

// Get fetches the stored consensus parameters.
func (s *ParamsStore) Get() (*types.ConsensusParams, error) {
	var params *types.ConsensusParams

	if err := s.db.View(func(tx kvdb.RTx) error {
		bucket := tx.ReadBucket(paramsBucketName)
		if bucket == nil {
			return ErrCorruptedLedgerDB
		}

		raw := bucket.Get(paramsKey)
		if raw == nil {
			return ErrParamsNotFound
		}

		decoded, err := unmarshalParams(raw)
		if err != nil {
			return ErrCorruptedLedgerDB
		}
		params = decoded

		return nil
	}, func() {}); err != nil {
		return nil, fmt.Errorf("failed to get consensus parameters: %w", err)
	}

	return params, nil
}

// Put stores the consensus parameters, replacing any previous value.
func (s *ParamsStore) Put(params *types.ConsensusParams) error {
	if err := kvdb.Batch(s.db, func(tx kvdb.RwTx) error {
		bucket := tx.ReadWriteBucket(paramsBucketName)
		if bucket == nil {
			return ErrCorruptedLedgerDB
		}

		return bucket.Put(paramsKey, marshalParams(params))
	}); err != nil {
		return fmt.Errorf("failed to store consensus parameters: %w", err)
	}

	return nil
}
