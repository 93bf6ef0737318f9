// Package mixer implements the anonymity-set batch mixing engine:
// commit-reveal admission, the randomized-delay withdrawal queue, shuffled
// batch disbursement with retry and escalation, and the accumulator over
// still-pending payouts.
package mixer

import (
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/event"
	lru "github.com/hashicorp/golang-lru"

	"github.com/veilcash/go-veil/entropy"
	"github.com/veilcash/go-veil/gasprice"
	"github.com/veilcash/go-veil/ledger"
	"github.com/veilcash/go-veil/logger"
	"github.com/veilcash/go-veil/merkle"
	"github.com/veilcash/go-veil/params"
)

// Mixer is the engine. All entry points run to completion atomically; a
// call made while another call is executing against the same state is
// rejected with ErrReentrantCall.
type Mixer struct {
	cfg   Rules
	state *State

	ledger ledger.Ledger
	vault  Vault
	est    *gasprice.Estimator
	rnd    *entropy.Mixer
	acc    *merkle.Accumulator
	roots  *lru.Cache

	mu  sync.Mutex
	now func() time.Time

	mintFeed     event.Feed
	commitFeed   event.Feed
	rootFeed     event.Feed
	failFeed     event.Feed
	escalateFeed event.Feed
	scope        event.SubscriptionScope

	logger.Instance
}

// New creates a mixer over the given collaborators. The gas estimator is
// seeded with seedPrice so the very first batch is never under-provisioned.
func New(cfg Rules, lgr ledger.Ledger, vault Vault, src entropy.Source, seedPrice *big.Int) *Mixer {
	roots, _ := lru.New(params.RootHistory)
	return &Mixer{
		cfg:      cfg.Copy(),
		state:    newState(),
		ledger:   lgr,
		vault:    vault,
		est:      gasprice.NewEstimator(seedPrice),
		rnd:      entropy.NewMixer(src),
		acc:      merkle.NewAccumulator(),
		roots:    roots,
		now:      time.Now,
		Instance: logger.New(cfg.Name),
	}
}

// WithClock overrides the engine time source and returns the mixer. The
// simulation command uses it to fast-forward through unlock delays.
func (m *Mixer) WithClock(now func() time.Time) *Mixer {
	m.now = now
	return m
}

// enter acquires the structural mutual exclusion of the call boundary.
func (m *Mixer) enter() error {
	if !m.mu.TryLock() {
		return ErrReentrantCall
	}
	return nil
}

func (m *Mixer) exit() {
	m.mu.Unlock()
}

// Rules returns a copy of the instance configuration.
func (m *Mixer) Rules() Rules {
	return m.cfg.Copy()
}

// EstimateCost returns the projected cost of one disbursement at the given
// current price.
func (m *Mixer) EstimateCost(current *big.Int) *big.Int {
	return m.est.PerPayout(current)
}

// CurrentRoot returns the accumulator root as of the last rebuild.
func (m *Mixer) CurrentRoot() common.Hash {
	return m.acc.Root()
}

// RootAt returns the root published with the given rebuild sequence number,
// if it is still within the retained history.
func (m *Mixer) RootAt(seq uint64) (common.Hash, bool) {
	if v, ok := m.roots.Get(seq); ok {
		return v.(common.Hash), true
	}
	return common.Hash{}, false
}

// QueueBounds returns the live window cursors [start, end).
func (m *Mixer) QueueBounds() (start, end uint64) {
	return m.state.queue.start, m.state.queue.end
}

// PendingCommits returns the number of open commitments.
func (m *Mixer) PendingCommits() uint64 {
	return m.state.pendingCommits
}

// Reserve returns the value backing all live pending payouts.
func (m *Mixer) Reserve() *big.Int {
	return new(big.Int).Set(m.state.reserve)
}

// Stop unsubscribes all event subscriptions.
func (m *Mixer) Stop() {
	m.scope.Close()
}

// rebuild recomputes the accumulator over all live (not yet processed)
// keys, publishes the root and records it in the history. The lenient
// filter is deliberate; see package merkle.
func (m *Mixer) rebuild() {
	root := m.acc.Rebuild(m.state.active.Keys())
	m.state.rebuildSeq++
	m.state.admissionsSinceRebuild = 0
	m.state.lastRebuildProcessed = m.state.totalProcessed
	m.roots.Add(m.state.rebuildSeq, root)
	rebuildCounter.Inc(1)
	m.rootFeed.Send(RootUpdateEvent{Seq: m.state.rebuildSeq, Root: root})
	m.Log.Debug("Accumulator rebuilt", "seq", m.state.rebuildSeq, "root", root, "leaves", m.state.active.Len())
}
