package mixer

import (
	"crypto/ecdsa"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"github.com/veilcash/go-veil/entropy"
	"github.com/veilcash/go-veil/ledger"
)

// testSource is a deterministic entropy source. Bump round to change every
// subsequent sample.
type testSource struct {
	round uint64
}

func (s *testSource) Sample(back int) common.Hash {
	return crypto.Keccak256Hash(
		common.BigToHash(new(big.Int).SetUint64(s.round)).Bytes(),
		[]byte{byte(back)},
	)
}

var _ entropy.Source = (*testSource)(nil)

type committer struct {
	key       *ecdsa.PrivateKey
	addr      common.Address
	recipient common.Address
	entropy   common.Hash
}

type fixture struct {
	t     *testing.T
	m     *Mixer
	ledg  *ledger.InMemory
	vault *MemVault
	src   *testSource
	clock time.Time
	cfg   Rules
}

func newFixture(t *testing.T, anonymitySet int) *fixture {
	cfg := DefaultRules()
	cfg.MinAnonymitySet = anonymitySet
	cfg.ShareValue = big.NewInt(1_000_000)
	cfg.Contract = common.HexToAddress("0x000000000000000000000000000000000000feed")
	cfg.FeeRecipient = common.HexToAddress("0xfee")
	cfg.Fallback = common.HexToAddress("0xfa11")

	f := &fixture{
		t:     t,
		ledg:  ledger.NewInMemory(),
		vault: NewMemVault(),
		src:   &testSource{},
		clock: time.Unix(1_700_000_000, 0),
		cfg:   cfg,
	}
	f.m = New(cfg, f.ledg, f.vault, f.src, big.NewInt(1)).
		WithClock(func() time.Time { return f.clock })
	return f
}

func (f *fixture) advance(d time.Duration) {
	f.clock = f.clock.Add(d)
	f.src.round++
}

// newCommitters funds n depositors and registers their commitments.
func (f *fixture) newCommitters(n int, salt byte) []committer {
	out := make([]committer, n)
	for i := range out {
		key, err := crypto.GenerateKey()
		require.NoError(f.t, err)
		c := committer{
			key:       key,
			addr:      crypto.PubkeyToAddress(key.PublicKey),
			recipient: common.BytesToAddress(crypto.Keccak256([]byte{salt, byte(i), 'r'})[:20]),
			entropy:   crypto.Keccak256Hash([]byte{salt, byte(i), 'e'}),
		}
		require.NoError(f.t, f.m.Deposit(DefaultCall(c.addr, big.NewInt(1)), f.cfg.ShareValue))
		body := f.m.CommitmentBody(c.recipient, c.entropy)
		require.NoError(f.t, f.m.Commit(DefaultCall(c.addr, big.NewInt(1)), body))
		out[i] = c
	}
	return out
}

func (f *fixture) entries(committers []committer) []RevealEntry {
	entries := make([]RevealEntry, len(committers))
	for i, c := range committers {
		body := f.m.CommitmentBody(c.recipient, c.entropy)
		sig, err := crypto.Sign(CommitmentEnvelope(body).Bytes(), c.key)
		require.NoError(f.t, err)
		entries[i] = RevealEntry{Recipient: c.recipient, Entropy: c.entropy, Sig: sig}
	}
	return entries
}

// admitBatch runs a full commit+reveal round for a fresh set of
// committers.
func (f *fixture) admitBatch(salt byte) []committer {
	committers := f.newCommitters(f.cfg.MinAnonymitySet, salt)
	require.NoError(f.t, f.m.RevealBatch(DefaultCall(committers[0].addr, big.NewInt(1)), f.entries(committers)))
	return committers
}
