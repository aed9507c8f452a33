package testutil

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"math/rand"
	"testing"
	"time"

	"github.com/btcsuite/btcd/blockchain"
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"

	"github.com/reservelabs/reserve-watchdog/spv"
	"github.com/reservelabs/reserve-watchdog/types"
)

// TestHeaderBits is the trivial compact target test headers are ground
// against; virtually every nonce satisfies it.
const TestHeaderBits = 0x207fffff

func GenRandomByteArray(r *rand.Rand, length uint64) []byte {
	newHeaderBytes := make([]byte, length)
	r.Read(newHeaderBytes)

	return newHeaderBytes
}

func GenRandomHexStr(r *rand.Rand, length uint64) string {
	randBytes := GenRandomByteArray(r, length)

	return hex.EncodeToString(randBytes)
}

func AddRandomSeedsToFuzzer(f *testing.F, num uint) {
	// Seed based on the current time
	r := rand.New(rand.NewSource(time.Now().Unix()))
	var idx uint
	for idx = 0; idx < num; idx++ {
		f.Add(r.Int63())
	}
}

// GenBTCKeyPair generates a secp256k1 key pair from the seeded source.
func GenBTCKeyPair(r *rand.Rand) (*btcec.PrivateKey, *btcec.PublicKey) {
	sk, pk := btcec.PrivKeyFromBytes(GenRandomByteArray(r, 32))

	return sk, pk
}

// GenRandomWatchdogPk generates an x-only serialized watchdog identity.
func GenRandomWatchdogPk(r *rand.Rand) []byte {
	_, pk := GenBTCKeyPair(r)

	return schnorr.SerializePubKey(pk)
}

// GenRandomOperation generates a pending operation with a consistent
// content-derived ID.
func GenRandomOperation(r *rand.Rand) *types.Operation {
	opType := types.OperationType(r.Intn(4))
	data := GenRandomByteArray(r, 32+uint64(r.Intn(64)))
	proposer := GenRandomWatchdogPk(r)
	nonce := r.Uint64()
	now := time.Unix(r.Int63n(2_000_000_000), 0)

	return &types.Operation{
		ID:          types.NewOperationID(opType, proposer, nonce, data),
		Type:        opType,
		Data:        data,
		Proposer:    proposer,
		Nonce:       nonce,
		SubmittedAt: now,
		FinalizeAt:  now.Add(time.Hour),
	}
}

// GenRandomChallenge generates an objection record.
func GenRandomChallenge(r *rand.Rand) *types.Challenge {
	return &types.Challenge{
		Challenger:  GenRandomWatchdogPk(r),
		Evidence:    GenRandomByteArray(r, uint64(r.Intn(64))),
		SubmittedAt: time.Unix(r.Int63n(2_000_000_000), 0),
	}
}

// GenP2PKHAddress generates a pay-to-pubkey-hash address for the network.
func GenP2PKHAddress(r *rand.Rand, t *testing.T, params *chaincfg.Params) string {
	_, pk := GenBTCKeyPair(r)
	addr, err := btcutil.NewAddressPubKeyHash(btcutil.Hash160(pk.SerializeCompressed()), params)
	require.NoError(t, err)

	return addr.EncodeAddress()
}

// GenInputVector builds a well-formed varint-prefixed input vector with
// the given number of inputs.
func GenInputVector(r *rand.Rand, t *testing.T, numInputs int) []byte {
	var buf bytes.Buffer
	require.NoError(t, wire.WriteVarInt(&buf, 0, uint64(numInputs)))
	for i := 0; i < numInputs; i++ {
		// outpoint
		buf.Write(GenRandomByteArray(r, chainhash.HashSize))
		var index [4]byte
		binary.LittleEndian.PutUint32(index[:], uint32(r.Intn(10)))
		buf.Write(index[:])
		// empty signature script, final sequence
		require.NoError(t, wire.WriteVarInt(&buf, 0, 0))
		buf.Write([]byte{0xff, 0xff, 0xff, 0xff})
	}

	return buf.Bytes()
}

// GenOutputVector builds a varint-prefixed output vector from the given
// wire outputs.
func GenOutputVector(t *testing.T, outs []*wire.TxOut) []byte {
	var buf bytes.Buffer
	require.NoError(t, wire.WriteVarInt(&buf, 0, uint64(len(outs))))
	for _, out := range outs {
		var value [8]byte
		binary.LittleEndian.PutUint64(value[:], uint64(out.Value))
		buf.Write(value[:])
		require.NoError(t, wire.WriteVarInt(&buf, 0, uint64(len(out.PkScript))))
		buf.Write(out.PkScript)
	}

	return buf.Bytes()
}

// GenPaymentTxInfo builds a transaction paying the given amount to the
// given address, plus a change-like second output.
func GenPaymentTxInfo(
	r *rand.Rand,
	t *testing.T,
	params *chaincfg.Params,
	address string,
	amount btcutil.Amount,
) *spv.TxInfo {
	addr, err := btcutil.DecodeAddress(address, params)
	require.NoError(t, err)
	script, err := txscript.PayToAddrScript(addr)
	require.NoError(t, err)

	changeScript, err := txscript.PayToAddrScript(mustDecodeAddr(r, t, params))
	require.NoError(t, err)

	outs := []*wire.TxOut{
		{Value: int64(amount), PkScript: script},
		{Value: int64(amount / 10), PkScript: changeScript},
	}

	return &spv.TxInfo{
		Version:      2,
		InputVector:  GenInputVector(r, t, 1),
		OutputVector: GenOutputVector(t, outs),
		Locktime:     0,
	}
}

func mustDecodeAddr(r *rand.Rand, t *testing.T, params *chaincfg.Params) btcutil.Address {
	addr, err := btcutil.DecodeAddress(GenP2PKHAddress(r, t, params), params)
	require.NoError(t, err)

	return addr
}

// MerkleRootAndProofs builds a Bitcoin-style merkle tree (odd levels
// duplicate the last node) and returns the root with one concatenated
// sibling-hash proof per leaf.
func MerkleRootAndProofs(leaves []chainhash.Hash) (chainhash.Hash, [][]byte) {
	proofs := make([][]byte, len(leaves))
	positions := make([]int, len(leaves))
	for i := range leaves {
		positions[i] = i
	}

	level := make([]chainhash.Hash, len(leaves))
	copy(level, leaves)

	for len(level) > 1 {
		if len(level)%2 == 1 {
			level = append(level, level[len(level)-1])
		}

		for i, pos := range positions {
			sibling := pos ^ 1
			proofs[i] = append(proofs[i], level[sibling][:]...)
			positions[i] = pos / 2
		}

		next := make([]chainhash.Hash, len(level)/2)
		for i := range next {
			var pair [2 * chainhash.HashSize]byte
			copy(pair[:chainhash.HashSize], level[2*i][:])
			copy(pair[chainhash.HashSize:], level[2*i+1][:])
			next[i] = chainhash.DoubleHashH(pair[:])
		}
		level = next
	}

	return level[0], proofs
}

// GrindHeader searches nonces until the header satisfies its own compact
// target. At TestHeaderBits the first few nonces succeed.
func GrindHeader(t *testing.T, header *wire.BlockHeader) {
	target := blockchain.CompactToBig(header.Bits)
	for nonce := uint32(0); nonce < 1<<20; nonce++ {
		header.Nonce = nonce
		hash := header.BlockHash()
		if blockchain.HashToBig(&hash).Cmp(target) <= 0 {
			return
		}
	}
	t.Fatal("failed to grind header nonce")
}

// GenHeaderChain builds a linked chain of ground headers whose first
// header commits to the given merkle root.
func GenHeaderChain(r *rand.Rand, t *testing.T, merkleRoot chainhash.Hash, numHeaders int) []byte {
	require.Greater(t, numHeaders, 0)

	var (
		buf      bytes.Buffer
		prevHash chainhash.Hash
	)
	copy(prevHash[:], GenRandomByteArray(r, chainhash.HashSize))

	for i := 0; i < numHeaders; i++ {
		root := merkleRoot
		if i > 0 {
			copy(root[:], GenRandomByteArray(r, chainhash.HashSize))
		}
		header := wire.BlockHeader{
			Version:    2,
			PrevBlock:  prevHash,
			MerkleRoot: root,
			Timestamp:  time.Unix(r.Int63n(2_000_000_000), 0),
			Bits:       TestHeaderBits,
		}
		GrindHeader(t, &header)
		require.NoError(t, header.Serialize(&buf))
		prevHash = header.BlockHash()
	}

	return buf.Bytes()
}

// GenValidPaymentProof builds a complete inclusion proof for txInfo: a
// block of numTxs transactions with a coinbase at index zero, headed by a
// chain of numHeaders ground headers, plus the static relay whose epoch
// difficulties match the headers. The proof verifies under a difficulty
// factor of at most numHeaders.
func GenValidPaymentProof(
	r *rand.Rand,
	t *testing.T,
	txInfo *spv.TxInfo,
	numTxs, numHeaders int,
) (*spv.Proof, *spv.StaticRelay) {
	require.GreaterOrEqual(t, numTxs, 2)

	coinbaseRaw := GenRandomByteArray(r, 120)
	preimage := sha256.Sum256(coinbaseRaw)
	coinbaseLeaf := chainhash.Hash(sha256.Sum256(preimage[:]))

	txIndex := 1 + r.Intn(numTxs-1)
	leaves := make([]chainhash.Hash, numTxs)
	leaves[0] = coinbaseLeaf
	for i := 1; i < numTxs; i++ {
		if i == txIndex {
			leaves[i] = txInfo.TxID()
		} else {
			copy(leaves[i][:], GenRandomByteArray(r, chainhash.HashSize))
		}
	}

	root, proofs := MerkleRootAndProofs(leaves)
	headers := GenHeaderChain(r, t, root, numHeaders)

	work := blockchain.CalcWork(TestHeaderBits)
	relay := spv.NewStaticRelay(work, work)

	return &spv.Proof{
		MerkleProof:      proofs[txIndex],
		TxIndexInBlock:   uint32(txIndex),
		BitcoinHeaders:   headers,
		CoinbasePreimage: preimage,
		CoinbaseProof:    proofs[0],
	}, relay
}
