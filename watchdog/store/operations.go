package store

import (
	"fmt"
	"time"

	"github.com/lightningnetwork/lnd/kvdb"

	"github.com/reservelabs/reserve-watchdog/types"
)

var (
	// mapping operation id -> operation record
	operationBucketName = []byte("operations")
	// nested bucket per operation id, mapping challenger -> challenge
	challengeBucketName = []byte("challenges")
)

// OperationStore is the persistent optimistic-operation ledger. Completed
// operations are never deleted; the ledger doubles as the audit trail.
type OperationStore struct {
	db kvdb.Backend
}

// NewOperationStore returns a new store backed by db
func NewOperationStore(db kvdb.Backend) (*OperationStore, error) {
	s := &OperationStore{db}
	if err := s.initBuckets(); err != nil {
		return nil, err
	}

	return s, nil
}

func (s *OperationStore) initBuckets() error {
	if err := kvdb.Batch(s.db, func(tx kvdb.RwTx) error {
		if _, err := tx.CreateTopLevelBucket(operationBucketName); err != nil {
			return err
		}
		if _, err := tx.CreateTopLevelBucket(challengeBucketName); err != nil {
			return err
		}

		return nil
	}); err != nil {
		return fmt.Errorf("failed to initialize operation buckets: %w", err)
	}

	return nil
}

// CreateOperation inserts a freshly submitted operation into the ledger.
func (s *OperationStore) CreateOperation(op *types.Operation) error {
	if err := kvdb.Batch(s.db, func(tx kvdb.RwTx) error {
		bucket := tx.ReadWriteBucket(operationBucketName)
		if bucket == nil {
			return ErrCorruptedLedgerDB
		}

		if bucket.Get(op.ID[:]) != nil {
			return ErrDuplicateOperation
		}

		return bucket.Put(op.ID[:], marshalOperation(op))
	}); err != nil {
		return fmt.Errorf("failed to create operation: %w", err)
	}

	return nil
}

// GetOperation fetches a single operation record.
func (s *OperationStore) GetOperation(id types.OperationID) (*types.Operation, error) {
	var op *types.Operation

	if err := s.db.View(func(tx kvdb.RTx) error {
		bucket := tx.ReadBucket(operationBucketName)
		if bucket == nil {
			return ErrCorruptedLedgerDB
		}

		raw := bucket.Get(id[:])
		if raw == nil {
			return ErrOperationNotFound
		}

		decoded, err := unmarshalOperation(id, raw)
		if err != nil {
			return ErrCorruptedLedgerDB
		}
		op = decoded

		return nil
	}, func() {}); err != nil {
		return nil, fmt.Errorf("failed to get operation: %w", err)
	}

	return op, nil
}

// ListOperations fetches every operation in the ledger. The expected
// ledger size is small; pagination is not needed.
func (s *OperationStore) ListOperations() ([]*types.Operation, error) {
	var ops []*types.Operation

	if err := s.db.View(func(tx kvdb.RTx) error {
		bucket := tx.ReadBucket(operationBucketName)
		if bucket == nil {
			return ErrCorruptedLedgerDB
		}

		return bucket.ForEach(func(k, v []byte) error {
			id, err := types.OperationIDFromBytes(k)
			if err != nil {
				return ErrCorruptedLedgerDB
			}
			op, err := unmarshalOperation(id, v)
			if err != nil {
				return ErrCorruptedLedgerDB
			}
			ops = append(ops, op)

			return nil
		})
	}, func() {}); err != nil {
		return nil, fmt.Errorf("failed to list operations: %w", err)
	}

	return ops, nil
}

// setOperationState applies a state transition closure to a stored
// operation inside one transaction.
func (s *OperationStore) setOperationState(
	id types.OperationID,
	stateTransitionFn func(op *types.Operation) error,
) error {
	return kvdb.Batch(s.db, func(tx kvdb.RwTx) error {
		bucket := tx.ReadWriteBucket(operationBucketName)
		if bucket == nil {
			return ErrCorruptedLedgerDB
		}

		raw := bucket.Get(id[:])
		if raw == nil {
			return ErrOperationNotFound
		}

		op, err := unmarshalOperation(id, raw)
		if err != nil {
			return ErrCorruptedLedgerDB
		}

		if err := stateTransitionFn(op); err != nil {
			return err
		}

		return bucket.Put(id[:], marshalOperation(op))
	})
}

// ApplyChallenge records a challenge and applies the matching operation
// state transition atomically. A second challenge by the same watchdog
// fails with ErrDuplicateChallenge and leaves both records untouched.
func (s *OperationStore) ApplyChallenge(
	id types.OperationID,
	challenge *types.Challenge,
	stateTransitionFn func(op *types.Operation) error,
) error {
	return kvdb.Batch(s.db, func(tx kvdb.RwTx) error {
		opBucket := tx.ReadWriteBucket(operationBucketName)
		challengeRoot := tx.ReadWriteBucket(challengeBucketName)
		if opBucket == nil || challengeRoot == nil {
			return ErrCorruptedLedgerDB
		}

		raw := opBucket.Get(id[:])
		if raw == nil {
			return ErrOperationNotFound
		}

		opChallenges, err := challengeRoot.CreateBucketIfNotExists(id[:])
		if err != nil {
			return err
		}
		if opChallenges.Get(challenge.Challenger) != nil {
			return ErrDuplicateChallenge
		}
		if err := opChallenges.Put(challenge.Challenger, marshalChallenge(challenge)); err != nil {
			return err
		}

		op, err := unmarshalOperation(id, raw)
		if err != nil {
			return ErrCorruptedLedgerDB
		}
		if err := stateTransitionFn(op); err != nil {
			return err
		}

		return opBucket.Put(id[:], marshalOperation(op))
	})
}

// ListChallenges fetches the recorded objections against an operation,
// in challenger key order.
func (s *OperationStore) ListChallenges(id types.OperationID) ([]*types.Challenge, error) {
	var challenges []*types.Challenge

	if err := s.db.View(func(tx kvdb.RTx) error {
		root := tx.ReadBucket(challengeBucketName)
		if root == nil {
			return ErrCorruptedLedgerDB
		}

		opChallenges := root.NestedReadBucket(id[:])
		if opChallenges == nil {
			return nil
		}

		return opChallenges.ForEach(func(_, v []byte) error {
			c, err := unmarshalChallenge(v)
			if err != nil {
				return ErrCorruptedLedgerDB
			}
			challenges = append(challenges, c)

			return nil
		})
	}, func() {}); err != nil {
		return nil, fmt.Errorf("failed to list challenges: %w", err)
	}

	return challenges, nil
}

// MarkExecuted flips an operation into its terminal executed state.
func (s *OperationStore) MarkExecuted(id types.OperationID, at time.Time, ok bool) error {
	if err := s.setOperationState(id, func(op *types.Operation) error {
		op.Executed = true
		op.ExecutedAt = at
		op.ExecutionOK = ok

		return nil
	}); err != nil {
		return fmt.Errorf("failed to mark operation executed: %w", err)
	}

	return nil
}

// HasChallenged reports whether the watchdog already objected to the
// operation.
func (s *OperationStore) HasChallenged(id types.OperationID, challenger []byte) (bool, error) {
	var found bool

	if err := s.db.View(func(tx kvdb.RTx) error {
		root := tx.ReadBucket(challengeBucketName)
		if root == nil {
			return ErrCorruptedLedgerDB
		}
		opChallenges := root.NestedReadBucket(id[:])
		if opChallenges == nil {
			return nil
		}
		found = opChallenges.Get(challenger) != nil

		return nil
	}, func() {}); err != nil {
		return false, fmt.Errorf("failed to query challenge: %w", err)
	}

	return found, nil
}
