package mixer

import (
	"bytes"
	"math/big"
	"sort"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// SlotRecord is one queue slot in a serialized state snapshot.
type SlotRecord struct {
	Index uint64
	Key   common.Hash
}

// PayoutRecord is one pending payout in a serialized state snapshot.
// Timestamps are unix seconds; zero means unset.
type PayoutRecord struct {
	Key         common.Hash
	Amount      *big.Int
	UnlockTime  uint64
	Recipient   common.Address
	RetryCount  uint8
	LastAttempt uint64
}

// CommitRecord is one open commitment in a serialized state snapshot.
type CommitRecord struct {
	Owner      common.Address
	Commitment common.Hash
}

// StateSnapshot is the engine state in a flat, RLP-encodable shape. Maps
// are flattened to slices sorted by key so equal states always serialize
// identically; Active keeps the live-set order because the accumulator
// root depends on it.
type StateSnapshot struct {
	QueueStart uint64
	QueueEnd   uint64
	QueueFloor uint64
	Slots      []SlotRecord

	Payouts   []PayoutRecord
	Active    []common.Hash
	Registry  []CommitRecord
	UsedSigs  []common.Hash
	Processed []common.Hash
	Boundary  []common.Address

	PendingCommits         uint64
	AdmittedInBoundary     uint64
	AdmissionsSinceRebuild uint64
	LastRebuildProcessed   uint64
	TotalProcessed         uint64
	RebuildSeq             uint64
	Reserve                *big.Int

	// Root is the accumulator root as published at export time; it is
	// restored verbatim because recomputing could publish a root the
	// rebuild cadence never produced.
	Root common.Hash
}

func encodeTime(t time.Time) uint64 {
	if t.IsZero() {
		return 0
	}
	return uint64(t.Unix())
}

func decodeTime(sec uint64) time.Time {
	if sec == 0 {
		return time.Time{}
	}
	return time.Unix(int64(sec), 0)
}

// ExportState captures the full engine state for persistence.
func (m *Mixer) ExportState() (*StateSnapshot, error) {
	if err := m.enter(); err != nil {
		return nil, err
	}
	defer m.exit()

	s := m.state
	snap := &StateSnapshot{
		QueueStart:             s.queue.start,
		QueueEnd:               s.queue.end,
		QueueFloor:             s.queue.floor,
		Slots:                  make([]SlotRecord, 0, len(s.queue.slots)),
		Payouts:                make([]PayoutRecord, 0, len(s.payouts)),
		Active:                 s.active.Keys(),
		Registry:               make([]CommitRecord, 0, len(s.registry)),
		Processed:              make([]common.Hash, 0, len(s.processed)),
		Boundary:               make([]common.Address, 0, len(s.boundary)),
		PendingCommits:         s.pendingCommits,
		AdmittedInBoundary:     uint64(s.admittedInBoundary),
		AdmissionsSinceRebuild: s.admissionsSinceRebuild,
		LastRebuildProcessed:   s.lastRebuildProcessed,
		TotalProcessed:         s.totalProcessed,
		RebuildSeq:             s.rebuildSeq,
		Reserve:                new(big.Int).Set(s.reserve),
		Root:                   m.acc.Root(),
	}

	for i, k := range s.queue.slots {
		snap.Slots = append(snap.Slots, SlotRecord{Index: i, Key: k})
	}
	sort.Slice(snap.Slots, func(i, j int) bool {
		return snap.Slots[i].Index < snap.Slots[j].Index
	})

	for k, p := range s.payouts {
		snap.Payouts = append(snap.Payouts, PayoutRecord{
			Key:         k,
			Amount:      new(big.Int).Set(p.Amount),
			UnlockTime:  encodeTime(p.UnlockTime),
			Recipient:   p.Recipient,
			RetryCount:  p.RetryCount,
			LastAttempt: encodeTime(p.LastAttempt),
		})
	}
	sort.Slice(snap.Payouts, func(i, j int) bool {
		return bytes.Compare(snap.Payouts[i].Key[:], snap.Payouts[j].Key[:]) < 0
	})

	for a, c := range s.registry {
		snap.Registry = append(snap.Registry, CommitRecord{Owner: a, Commitment: c})
	}
	sort.Slice(snap.Registry, func(i, j int) bool {
		return bytes.Compare(snap.Registry[i].Owner[:], snap.Registry[j].Owner[:]) < 0
	})

	for _, v := range s.usedSigs.ToSlice() {
		snap.UsedSigs = append(snap.UsedSigs, v.(common.Hash))
	}
	sort.Slice(snap.UsedSigs, func(i, j int) bool {
		return bytes.Compare(snap.UsedSigs[i][:], snap.UsedSigs[j][:]) < 0
	})

	for k := range s.processed {
		snap.Processed = append(snap.Processed, k)
	}
	sort.Slice(snap.Processed, func(i, j int) bool {
		return bytes.Compare(snap.Processed[i][:], snap.Processed[j][:]) < 0
	})

	for a := range s.boundary {
		snap.Boundary = append(snap.Boundary, a)
	}
	sort.Slice(snap.Boundary, func(i, j int) bool {
		return bytes.Compare(snap.Boundary[i][:], snap.Boundary[j][:]) < 0
	})

	return snap, nil
}

// RestoreState replaces the engine state with the snapshot's content. The
// accumulator root is restored verbatim from the snapshot rather than
// recomputed, so the published root survives the round trip. The root
// history before the snapshot's sequence number is not recoverable.
func (m *Mixer) RestoreState(snap *StateSnapshot) error {
	if err := m.enter(); err != nil {
		return err
	}
	defer m.exit()

	st := newState()
	st.queue.start = snap.QueueStart
	st.queue.end = snap.QueueEnd
	st.queue.floor = snap.QueueFloor
	for _, rec := range snap.Slots {
		st.queue.slots[rec.Index] = rec.Key
	}
	for _, rec := range snap.Payouts {
		st.payouts[rec.Key] = &PendingPayout{
			Amount:      new(big.Int).Set(rec.Amount),
			UnlockTime:  decodeTime(rec.UnlockTime),
			Recipient:   rec.Recipient,
			RetryCount:  rec.RetryCount,
			LastAttempt: decodeTime(rec.LastAttempt),
		}
	}
	for _, k := range snap.Active {
		st.active.Add(k)
	}
	for _, rec := range snap.Registry {
		st.registry[rec.Owner] = rec.Commitment
	}
	for _, sig := range snap.UsedSigs {
		st.usedSigs.Add(sig)
	}
	for _, k := range snap.Processed {
		st.processed[k] = struct{}{}
	}
	for _, a := range snap.Boundary {
		st.boundary[a] = struct{}{}
	}
	st.pendingCommits = snap.PendingCommits
	st.admittedInBoundary = int(snap.AdmittedInBoundary)
	st.admissionsSinceRebuild = snap.AdmissionsSinceRebuild
	st.lastRebuildProcessed = snap.LastRebuildProcessed
	st.totalProcessed = snap.TotalProcessed
	st.rebuildSeq = snap.RebuildSeq
	if snap.Reserve != nil {
		st.reserve.Set(snap.Reserve)
	}

	m.state = st
	m.acc.Reset(snap.Root)
	if st.rebuildSeq > 0 {
		m.roots.Add(st.rebuildSeq, snap.Root)
	}
	m.Log.Info("State restored", "payouts", len(st.payouts), "processed", st.totalProcessed, "root", snap.Root)
	return nil
}
