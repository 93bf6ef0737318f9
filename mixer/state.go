package mixer

import (
	"math/big"
	"time"

	mapset "github.com/deckarep/golang-set"
	"github.com/ethereum/go-ethereum/common"
)

// PendingPayout is a verified payout awaiting disbursement. It is created
// on successful reveal, mutated only by the batch processor's retry
// bookkeeping, and destroyed on disbursement or terminal escalation.
type PendingPayout struct {
	Amount      *big.Int
	UnlockTime  time.Time
	Recipient   common.Address
	RetryCount  uint8
	LastAttempt time.Time
}

func (p *PendingPayout) Copy() *PendingPayout {
	cp := *p
	cp.Amount = new(big.Int).Set(p.Amount)
	return &cp
}

// eligible reports whether the payout may be disbursed at the given time:
// its randomized unlock has passed and, if it failed before, the retry
// cooldown has elapsed.
func (p *PendingPayout) eligible(now time.Time, retryInterval time.Duration) bool {
	if now.Before(p.UnlockTime) {
		return false
	}
	if p.RetryCount > 0 && now.Before(p.LastAttempt.Add(retryInterval)) {
		return false
	}
	return true
}

// State is the full owned mutable state of the engine. Every operation
// receives it through the Mixer; there are no ambient globals.
type State struct {
	queue   *queue
	payouts map[common.Hash]*PendingPayout
	active  *keySet

	// registry holds at most one outstanding commitment per depositor.
	registry map[common.Address]common.Hash
	// usedSigs permanently marks consumed signature digests.
	usedSigs mapset.Set
	// processed permanently marks commitment keys that reached a terminal
	// state; they can never re-enter the live set.
	processed map[common.Hash]struct{}

	// boundary holds the committers admitted since the last processed
	// batch boundary; only they may trigger processing.
	boundary map[common.Address]struct{}

	pendingCommits         uint64
	admittedInBoundary     int
	admissionsSinceRebuild uint64
	lastRebuildProcessed   uint64
	totalProcessed         uint64
	rebuildSeq             uint64

	// reserve is the value backing all live pending payouts.
	reserve *big.Int
}

func newState() *State {
	return &State{
		queue:     newQueue(),
		payouts:   make(map[common.Hash]*PendingPayout),
		active:    newKeySet(),
		registry:  make(map[common.Address]common.Hash),
		usedSigs:  mapset.NewThreadUnsafeSet(),
		processed: make(map[common.Hash]struct{}),
		boundary:  make(map[common.Address]struct{}),
		reserve:   new(big.Int),
	}
}

// Copy returns a deep copy used as the rollback snapshot of an
// all-or-nothing call.
func (s *State) Copy() *State {
	cp := &State{
		queue:                  s.queue.Copy(),
		payouts:                make(map[common.Hash]*PendingPayout, len(s.payouts)),
		active:                 s.active.Copy(),
		registry:               make(map[common.Address]common.Hash, len(s.registry)),
		usedSigs:               s.usedSigs.Clone(),
		processed:              make(map[common.Hash]struct{}, len(s.processed)),
		boundary:               make(map[common.Address]struct{}, len(s.boundary)),
		pendingCommits:         s.pendingCommits,
		admittedInBoundary:     s.admittedInBoundary,
		admissionsSinceRebuild: s.admissionsSinceRebuild,
		lastRebuildProcessed:   s.lastRebuildProcessed,
		totalProcessed:         s.totalProcessed,
		rebuildSeq:             s.rebuildSeq,
		reserve:                new(big.Int).Set(s.reserve),
	}
	for k, p := range s.payouts {
		cp.payouts[k] = p.Copy()
	}
	for a, c := range s.registry {
		cp.registry[a] = c
	}
	for k := range s.processed {
		cp.processed[k] = struct{}{}
	}
	for a := range s.boundary {
		cp.boundary[a] = struct{}{}
	}
	return cp
}
