package mixer

import (
	"encoding/binary"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"

	"github.com/veilcash/go-veil/params"
	"github.com/veilcash/go-veil/utils"
)

// BatchReceipt reports the accounting outcome of one processed batch. For a
// batch whose window contains only this boundary's admissions,
// Disbursed + Escalated + Reimbursed + Swept + Deferred == Pool exactly.
type BatchReceipt struct {
	Pool       *big.Int
	Disbursed  *big.Int
	Fees       *big.Int
	Escalated  *big.Int
	Reimbursed *big.Int
	Swept      *big.Int
	// Deferred is the value of slots that were not yet eligible (or hit a
	// transfer failure below the retry ceiling) and were re-queued; it
	// stays in the reserve.
	Deferred *big.Int

	PaidCount      int
	RetriedCount   int
	EscalatedCount int
	DeferredCount  int

	// BudgetExhausted reports an early, state-consistent loop break;
	// unvisited slots were re-queued.
	BudgetExhausted bool
}

// ProcessBatch disburses the current batch boundary. It may only be
// triggered by a committer admitted in this boundary, and only once exactly
// MinAnonymitySet payouts have been admitted since the previous boundary:
// processing a smaller batch would shrink the anonymity set below the
// design minimum, and an outside trigger could steer processing timing for
// traffic analysis.
func (m *Mixer) ProcessBatch(call Call) (*BatchReceipt, error) {
	if err := m.enter(); err != nil {
		return nil, err
	}
	defer m.exit()

	if m.state.admittedInBoundary != m.cfg.MinAnonymitySet {
		return nil, ErrBatchNotReady
	}
	if _, ok := m.state.boundary[call.Caller]; !ok {
		return nil, ErrNotCommitter
	}

	// Rollback points for the all-or-nothing call boundary.
	stateSnap := m.state.Copy()
	vaultSnap := m.vault.Snapshot()

	m.est.Record(call.GasPrice)

	n := int64(m.cfg.MinAnonymitySet)
	share := m.cfg.ShareValue
	pool := new(big.Int).Mul(share, big.NewInt(n))

	// Cost, fee and refund are fixed before the loop so every payout in
	// the batch is sized identically.
	costShare := m.est.PerPayout(call.GasPrice)
	totalCost := new(big.Int).Mul(costShare, big.NewInt(n))
	feeShare := new(big.Int).Div(new(big.Int).Mul(share, new(big.Int).SetUint64(m.cfg.FeeBp)), big.NewInt(10_000))

	// The caller's reimbursement is capped per share; the clawed-back
	// overestimate is returned to the batch pro rata.
	reimburseCap := new(big.Int).Mul(new(big.Int).Div(share, big.NewInt(m.cfg.ReimburseDivisor)), big.NewInt(n))
	plannedReimburse := new(big.Int).Set(utils.BigMin(totalCost, reimburseCap))
	refundShare := new(big.Int).Div(utils.BigSub0(totalCost, plannedReimburse), big.NewInt(n))

	payoutShare := utils.BigSub0(share, new(big.Int).Add(feeShare, costShare))
	payoutShare.Add(payoutShare, refundShare)

	receipt := &BatchReceipt{
		Pool:       pool,
		Disbursed:  new(big.Int),
		Fees:       new(big.Int),
		Escalated:  new(big.Int),
		Reimbursed: new(big.Int),
		Swept:      new(big.Int),
		Deferred:   new(big.Int),
	}

	now := m.now()
	frame := newFrame(call)
	window := m.state.queue.window()
	boundaryEnd := m.state.queue.end
	shuffleSlots(window, m.rnd.Fresh())

	for i, key := range window {
		if !frame.consume(params.BudgetPerDisburse) {
			// Early break must not strand the unvisited tail: re-queue it
			// and advance the cursor past the batch as usual.
			receipt.BudgetExhausted = true
			m.Log.Warn("Budget exhausted, deferring tail", "visited", i, "window", len(window))
			for _, rest := range window[i:] {
				m.requeueLive(rest, receipt)
			}
			break
		}

		payout, live := m.state.payouts[key]
		if !live {
			// Processed under a duplicate slot earlier, or already
			// terminal. Nothing to do.
			continue
		}
		if !payout.eligible(now, m.cfg.RetryInterval) {
			m.requeueLive(key, receipt)
			continue
		}

		if err := m.vault.Transfer(payout.Recipient, payoutShare); err != nil {
			m.disburseFailed(key, payout, now, receipt)
			continue
		}
		m.markProcessed(key)
		receipt.Disbursed.Add(receipt.Disbursed, payoutShare)
		receipt.Fees.Add(receipt.Fees, feeShare)
		receipt.PaidCount++
		disburseCounter.Inc(1)
	}

	m.state.queue.advance(boundaryEnd)
	m.state.admittedInBoundary = 0
	for a := range m.state.boundary {
		delete(m.state.boundary, a)
	}

	// Reconcile the pool: reimburse the triggering caller, then sweep the
	// residue (accrued fees plus rounding dust) to the fee recipient.
	outflow := new(big.Int).Add(receipt.Disbursed, receipt.Escalated)
	remaining := utils.BigSub0(pool, new(big.Int).Add(outflow, receipt.Deferred))
	reimburse := utils.BigMin(plannedReimburse, remaining)
	if reimburse.Sign() > 0 {
		if err := m.vault.Transfer(call.Caller, reimburse); err != nil {
			// Unpaid triggering work is not sustainable: the whole batch
			// call rolls back.
			m.state = stateSnap
			m.vault.RevertToSnapshot(vaultSnap)
			m.Log.Error("Batch rolled back", "err", err)
			return nil, ErrReimbursementFailed
		}
		receipt.Reimbursed.Set(reimburse)
	}
	leftover := utils.BigSub0(remaining, reimburse)
	if leftover.Sign() > 0 {
		if err := m.vault.Transfer(m.cfg.FeeRecipient, leftover); err != nil {
			// The sweep is not critical; the residue stays in custody and
			// the reserve until a later batch.
			m.Log.Warn("Leftover sweep failed", "amount", leftover, "err", err)
		} else {
			receipt.Swept.Set(leftover)
		}
	}
	spent := new(big.Int).Add(outflow, new(big.Int).Add(receipt.Reimbursed, receipt.Swept))
	m.state.reserve = utils.BigSub0(m.state.reserve, spent)

	// Slots carried over from earlier boundaries pay out at the current
	// batch's share sizing; the residual backing they leave in the reserve
	// is swept so it cannot accumulate.
	backing := new(big.Int)
	for _, p := range m.state.payouts {
		backing.Add(backing, p.Amount)
	}
	if dust := utils.BigSub0(m.state.reserve, backing); dust.Sign() > 0 {
		if err := m.vault.Transfer(m.cfg.FeeRecipient, dust); err != nil {
			m.Log.Warn("Reserve dust sweep failed", "amount", dust, "err", err)
		} else {
			receipt.Swept.Add(receipt.Swept, dust)
			m.state.reserve.Sub(m.state.reserve, dust)
		}
	}
	queueLiveGauge.Update(int64(m.state.queue.live()))

	// Periodic maintenance on the total-processed cadence.
	if m.state.totalProcessed-m.state.lastRebuildProcessed >= m.cfg.RebuildEveryProcessed {
		if frame.consume(uint64(m.state.active.Len()) * params.BudgetPerRebuildLeaf) {
			m.rebuild()
		} else {
			receipt.BudgetExhausted = true
		}
		if frame.consume(uint64(m.cfg.CompactionStep) * params.BudgetPerCompactSlot) {
			m.state.queue.compact(m.cfg.CompactionStep)
		} else {
			receipt.BudgetExhausted = true
		}
	}

	m.Log.Info("Batch processed",
		"paid", receipt.PaidCount, "retried", receipt.RetriedCount,
		"escalated", receipt.EscalatedCount, "deferred", receipt.DeferredCount,
		"reimbursed", receipt.Reimbursed, "swept", receipt.Swept)
	return receipt, nil
}

// requeueLive pushes a still-live slot back onto the queue end so it
// re-enters the shuffle pool of a future batch. Reports whether the slot
// was live.
func (m *Mixer) requeueLive(key common.Hash, receipt *BatchReceipt) bool {
	payout, live := m.state.payouts[key]
	if !live {
		return false
	}
	m.state.queue.push(key)
	receipt.Deferred.Add(receipt.Deferred, payout.Amount)
	receipt.DeferredCount++
	return true
}

// disburseFailed applies the retry/escalation policy after a rejected
// transfer.
func (m *Mixer) disburseFailed(key common.Hash, payout *PendingPayout, now time.Time, receipt *BatchReceipt) {
	payout.RetryCount++
	payout.LastAttempt = now

	if payout.RetryCount < m.cfg.MaxRetries {
		m.state.queue.push(key)
		receipt.Deferred.Add(receipt.Deferred, payout.Amount)
		receipt.RetriedCount++
		retryCounter.Inc(1)
		m.failFeed.Send(PayoutFailedEvent{
			Key:         key,
			RetryCount:  payout.RetryCount,
			NextAttempt: now.Add(m.cfg.RetryInterval),
		})
		m.Log.Debug("Disbursement failed, retry scheduled", "key", key, "attempt", payout.RetryCount)
		return
	}

	// Retries exhausted: sweep the full original amount to the fallback
	// sink so the value is never stranded.
	if err := m.vault.Transfer(m.cfg.Fallback, payout.Amount); err != nil {
		// The fallback is supposed to always accept. Keep the payout live
		// so a later batch re-attempts the escalation.
		m.state.queue.push(key)
		receipt.Deferred.Add(receipt.Deferred, payout.Amount)
		receipt.RetriedCount++
		m.Log.Error("Fallback sink rejected escalation", "key", key, "err", err)
		return
	}
	receipt.Escalated.Add(receipt.Escalated, payout.Amount)
	receipt.EscalatedCount++
	escalateCounter.Inc(1)
	m.markProcessed(key)
	m.escalateFeed.Send(PayoutEscalatedEvent{
		Key:      key,
		Fallback: m.cfg.Fallback,
		Amount:   new(big.Int).Set(payout.Amount),
	})
	m.Log.Warn("Payout escalated to fallback", "key", key, "amount", payout.Amount)
}

// markProcessed retires a payout terminally: it leaves the live set and can
// never re-enter it.
func (m *Mixer) markProcessed(key common.Hash) {
	delete(m.state.payouts, key)
	m.state.active.Remove(key)
	m.state.processed[key] = struct{}{}
	m.state.totalProcessed++
}

// shuffleSlots applies a Fisher-Yates permutation seeded by the freshest
// chain unpredictability sample mixed with the loop index. Payout order is
// the only externally observable sequencing, so it must not correlate with
// admission order.
func shuffleSlots(slots []common.Hash, seed common.Hash) {
	var idx [8]byte
	for i := len(slots) - 1; i > 0; i-- {
		binary.BigEndian.PutUint64(idx[:], uint64(i))
		draw := new(uint256.Int).SetBytes(crypto.Keccak256(seed.Bytes(), idx[:]))
		j := new(uint256.Int).Mod(draw, uint256.NewInt(uint64(i+1))).Uint64()
		slots[i], slots[j] = slots[j], slots[i]
	}
}
