// Package entropy derives unlock delays and shuffle seeds for admitted
// payouts.
//
// The mixer folds several independent observations into one digest so that
// no single weak source fully determines the outcome. The chain-side samples
// come from a Source collaborator; if a deployment can only provide
// validator-influenceable values there, the drawn delay is manipulable
// within the latency of the mixing rounds. A production deployment should
// back Source with a VRF or a commit-reveal randomness beacon.
package entropy

import (
	"encoding/binary"
	"errors"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"golang.org/x/crypto/sha3"

	"github.com/veilcash/go-veil/params"
)

// ErrZeroEntropy is returned when the caller-supplied entropy is missing or
// all-zero. Accepting it would make the drawn delay fully predictable to the
// caller's adversary.
var ErrZeroEntropy = errors.New("entropy: zero user entropy")

// Source supplies recent chain-observable unpredictability samples.
// Sample(0) is the most recent value; higher arguments reach further back.
type Source interface {
	Sample(back int) common.Hash
}

// mixRounds is the number of extra folding rounds, each consuming one
// additional Source sample.
const mixRounds = 3

// Mixer draws payout delays and shuffle seeds.
type Mixer struct {
	src Source
}

func NewMixer(src Source) *Mixer {
	return &Mixer{src: src}
}

// Delay maps the mixed digest into [params.MinDelay, params.MaxDelay).
// The caller identity, the current accumulator root, the wall clock, the
// user entropy and the call's price/budget signals all feed the digest.
func (m *Mixer) Delay(caller common.Address, root common.Hash, userEntropy common.Hash, now time.Time, gasPrice *big.Int, budget uint64) (time.Duration, error) {
	if userEntropy == (common.Hash{}) {
		return 0, ErrZeroEntropy
	}

	h := sha3.NewLegacyKeccak256()
	h.Write(caller.Bytes())
	h.Write(root.Bytes())
	h.Write(m.src.Sample(0).Bytes())
	h.Write(userEntropy.Bytes())

	var ts [8]byte
	binary.BigEndian.PutUint64(ts[:], uint64(now.UnixNano()))
	h.Write(ts[:])

	var bgt [8]byte
	binary.BigEndian.PutUint64(bgt[:], budget)
	h.Write(bgt[:])
	if gasPrice != nil {
		h.Write(common.LeftPadBytes(gasPrice.Bytes(), 32))
	}

	digest := h.Sum(nil)
	for i := 1; i <= mixRounds; i++ {
		r := sha3.NewLegacyKeccak256()
		r.Write(digest)
		r.Write(m.src.Sample(i).Bytes())
		digest = r.Sum(nil)
	}

	span := uint64(params.MaxDelay - params.MinDelay)
	offset := new(uint256.Int).Mod(
		new(uint256.Int).SetBytes(digest),
		new(uint256.Int).SetUint64(span),
	)
	return params.MinDelay + time.Duration(offset.Uint64()), nil
}

// Fresh returns the most recent chain unpredictability sample, used to seed
// the batch shuffle.
func (m *Mixer) Fresh() common.Hash {
	return m.src.Sample(0)
}
