package mixer

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/event"
)

// MintEvent is posted when a deposit mints fungible credit.
type MintEvent struct {
	Account common.Address
	Amount  *big.Int
}

// CommitEvent is posted when a commitment is received.
type CommitEvent struct {
	Depositor  common.Address
	Commitment common.Hash
}

// RootUpdateEvent is posted after every accumulator rebuild.
type RootUpdateEvent struct {
	Seq  uint64
	Root common.Hash
}

// PayoutFailedEvent is posted when a disbursement attempt fails and the
// payout is re-queued for a later batch.
type PayoutFailedEvent struct {
	Key         common.Hash
	RetryCount  uint8
	NextAttempt time.Time
}

// PayoutEscalatedEvent is posted when a payout exhausts its retries and its
// full original amount is swept to the fallback sink.
type PayoutEscalatedEvent struct {
	Key      common.Hash
	Fallback common.Address
	Amount   *big.Int
}

// SubscribeMintEvent registers a subscription of MintEvent.
func (m *Mixer) SubscribeMintEvent(ch chan<- MintEvent) event.Subscription {
	return m.scope.Track(m.mintFeed.Subscribe(ch))
}

// SubscribeCommitEvent registers a subscription of CommitEvent.
func (m *Mixer) SubscribeCommitEvent(ch chan<- CommitEvent) event.Subscription {
	return m.scope.Track(m.commitFeed.Subscribe(ch))
}

// SubscribeRootUpdateEvent registers a subscription of RootUpdateEvent.
func (m *Mixer) SubscribeRootUpdateEvent(ch chan<- RootUpdateEvent) event.Subscription {
	return m.scope.Track(m.rootFeed.Subscribe(ch))
}

// SubscribePayoutFailedEvent registers a subscription of PayoutFailedEvent.
func (m *Mixer) SubscribePayoutFailedEvent(ch chan<- PayoutFailedEvent) event.Subscription {
	return m.scope.Track(m.failFeed.Subscribe(ch))
}

// SubscribePayoutEscalatedEvent registers a subscription of
// PayoutEscalatedEvent.
func (m *Mixer) SubscribePayoutEscalatedEvent(ch chan<- PayoutEscalatedEvent) event.Subscription {
	return m.scope.Track(m.escalateFeed.Subscribe(ch))
}
