package entropy

import (
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"github.com/veilcash/go-veil/params"
)

type fakeSource struct {
	base common.Hash
}

func (f fakeSource) Sample(back int) common.Hash {
	return crypto.Keccak256Hash(f.base.Bytes(), []byte{byte(back)})
}

func TestMixer_RejectsZeroEntropy(t *testing.T) {
	m := NewMixer(fakeSource{})
	_, err := m.Delay(common.Address{}, common.Hash{}, common.Hash{}, time.Now(), nil, 0)
	require.ErrorIs(t, err, ErrZeroEntropy)
}

func TestMixer_DelayWithinBounds(t *testing.T) {
	m := NewMixer(fakeSource{base: common.HexToHash("0x01")})
	now := time.Unix(1700000000, 0)

	for i := 0; i < 200; i++ {
		user := crypto.Keccak256Hash([]byte{byte(i)})
		d, err := m.Delay(common.HexToAddress("0xaa"), common.Hash{}, user, now, big.NewInt(30), 1000)
		require.NoError(t, err)
		require.GreaterOrEqual(t, d, params.MinDelay)
		require.Less(t, d, params.MaxDelay)
	}
}

func TestMixer_DelayIsDeterministicForFixedInputs(t *testing.T) {
	m := NewMixer(fakeSource{base: common.HexToHash("0x02")})
	now := time.Unix(1700000000, 0)
	user := crypto.Keccak256Hash([]byte("user"))

	d1, err := m.Delay(common.HexToAddress("0xaa"), common.Hash{}, user, now, big.NewInt(5), 77)
	require.NoError(t, err)
	d2, err := m.Delay(common.HexToAddress("0xaa"), common.Hash{}, user, now, big.NewInt(5), 77)
	require.NoError(t, err)
	require.Equal(t, d1, d2)
}

func TestMixer_DelayDependsOnEveryInput(t *testing.T) {
	m := NewMixer(fakeSource{base: common.HexToHash("0x03")})
	now := time.Unix(1700000000, 0)
	user := crypto.Keccak256Hash([]byte("user"))

	base, err := m.Delay(common.HexToAddress("0xaa"), common.Hash{}, user, now, big.NewInt(5), 77)
	require.NoError(t, err)

	variants := []func() (time.Duration, error){
		func() (time.Duration, error) {
			return m.Delay(common.HexToAddress("0xbb"), common.Hash{}, user, now, big.NewInt(5), 77)
		},
		func() (time.Duration, error) {
			return m.Delay(common.HexToAddress("0xaa"), common.HexToHash("0x01"), user, now, big.NewInt(5), 77)
		},
		func() (time.Duration, error) {
			return m.Delay(common.HexToAddress("0xaa"), common.Hash{}, crypto.Keccak256Hash([]byte("other")), now, big.NewInt(5), 77)
		},
		func() (time.Duration, error) {
			return m.Delay(common.HexToAddress("0xaa"), common.Hash{}, user, now.Add(time.Second), big.NewInt(5), 77)
		},
	}
	differs := 0
	for _, v := range variants {
		d, err := v()
		require.NoError(t, err)
		if d != base {
			differs++
		}
	}
	// Collisions in a 35h range are possible but all four at once are not
	// plausible for a working digest.
	require.NotZero(t, differs)
}
