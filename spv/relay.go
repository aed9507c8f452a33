package spv

import (
	"fmt"
	"math/big"
	"sync"

	"github.com/avast/retry-go/v4"
	"github.com/btcsuite/btcd/blockchain"
	"github.com/btcsuite/btcd/rpcclient"
)

// epochLength is the number of blocks in a Bitcoin difficulty epoch.
const epochLength = 2016

// Relay is the trusted source of proof-of-work difficulty the verifier
// checks header chains against. Difficulties are reported as expected
// work per header (hash count), the same measure validateHeaderChain
// accumulates.
type Relay interface {
	// CurrentEpochDifficulty returns the difficulty of the current
	// Bitcoin difficulty epoch.
	CurrentEpochDifficulty() (*big.Int, error)
	// PrevEpochDifficulty returns the difficulty of the immediately
	// preceding epoch.
	PrevEpochDifficulty() (*big.Int, error)
	// ValidateHeaderChain evaluates a raw header chain for length,
	// continuity and per-header work, returning the accumulated work.
	ValidateHeaderChain(headers []byte) (*big.Int, error)
}

// StaticRelay is a Relay with operator-maintained epoch difficulties. It
// backs deployments where the difficulty feed is updated out of band, and
// all of the tests.
type StaticRelay struct {
	mu      sync.RWMutex
	current *big.Int
	prev    *big.Int
	height  uint64
}

func NewStaticRelay(current, prev *big.Int) *StaticRelay {
	return &StaticRelay{
		current: new(big.Int).Set(current),
		prev:    new(big.Int).Set(prev),
	}
}

// SetEpochs rolls the relay forward to a new difficulty epoch.
func (r *StaticRelay) SetEpochs(current, prev *big.Int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.current = new(big.Int).Set(current)
	r.prev = new(big.Int).Set(prev)
}

func (r *StaticRelay) CurrentEpochDifficulty() (*big.Int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return new(big.Int).Set(r.current), nil
}

func (r *StaticRelay) PrevEpochDifficulty() (*big.Int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return new(big.Int).Set(r.prev), nil
}

func (r *StaticRelay) ValidateHeaderChain(headers []byte) (*big.Int, error) {
	return validateHeaderChain(headers)
}

// SetHeight updates the chain-tip height reported to proposer rotation.
// Like the epoch difficulties, it is maintained out of band.
func (r *StaticRelay) SetHeight(height uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.height = height
}

func (r *StaticRelay) BestHeight() (uint64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.height, nil
}

// BitcoindRelay reads epoch difficulties from a Bitcoin full node over
// RPC. It also serves as the coarse chain-time source for proposer
// rotation.
type BitcoindRelay struct {
	client        *rpcclient.Client
	retryAttempts uint
}

func NewBitcoindRelay(client *rpcclient.Client, retryAttempts uint) *BitcoindRelay {
	return &BitcoindRelay{
		client:        client,
		retryAttempts: retryAttempts,
	}
}

func (r *BitcoindRelay) CurrentEpochDifficulty() (*big.Int, error) {
	height, err := r.bestHeight()
	if err != nil {
		return nil, err
	}

	return r.epochWork(height - height%epochLength)
}

func (r *BitcoindRelay) PrevEpochDifficulty() (*big.Int, error) {
	height, err := r.bestHeight()
	if err != nil {
		return nil, err
	}

	epochStart := height - height%epochLength
	if epochStart < epochLength {
		// Still in the genesis epoch; there is no previous one.
		return r.epochWork(0)
	}

	return r.epochWork(epochStart - epochLength)
}

func (r *BitcoindRelay) ValidateHeaderChain(headers []byte) (*big.Int, error) {
	return validateHeaderChain(headers)
}

// BestHeight returns the current chain tip height. The consensus engine
// uses it as the selection seed for proposer rotation.
func (r *BitcoindRelay) BestHeight() (uint64, error) {
	height, err := r.bestHeight()
	if err != nil {
		return 0, err
	}

	return uint64(height), nil
}

func (r *BitcoindRelay) bestHeight() (int64, error) {
	var height int64
	err := retry.Do(func() error {
		var err error
		height, err = r.client.GetBlockCount()

		return err
	}, retry.Attempts(r.retryAttempts), retry.LastErrorOnly(true))
	if err != nil {
		return 0, fmt.Errorf("failed to query chain tip: %w", err)
	}

	return height, nil
}

func (r *BitcoindRelay) epochWork(height int64) (*big.Int, error) {
	var bits uint32
	err := retry.Do(func() error {
		hash, err := r.client.GetBlockHash(height)
		if err != nil {
			return err
		}
		header, err := r.client.GetBlockHeader(hash)
		if err != nil {
			return err
		}
		bits = header.Bits

		return nil
	}, retry.Attempts(r.retryAttempts), retry.LastErrorOnly(true))
	if err != nil {
		return nil, fmt.Errorf("failed to query epoch header at height %d: %w", height, err)
	}

	return blockchain.CalcWork(bits), nil
}
