package mixer

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"github.com/veilcash/go-veil/params"
)

func TestProcessBatch_RequiresFullAnonymitySet(t *testing.T) {
	f := newFixture(t, 4)
	committers := f.newCommitters(4, 1)

	_, err := f.m.ProcessBatch(DefaultCall(committers[0].addr, big.NewInt(1)))
	require.ErrorIs(t, err, ErrBatchNotReady)
}

func TestProcessBatch_OnlyBoundaryCommitterMayTrigger(t *testing.T) {
	f := newFixture(t, 4)
	f.admitBatch(1)

	stranger := common.HexToAddress("0x5471")
	_, err := f.m.ProcessBatch(DefaultCall(stranger, big.NewInt(1)))
	require.ErrorIs(t, err, ErrNotCommitter)
}

// Full-scenario test over a production-sized batch: 50 verified reveals
// trigger processing and every slot ends disbursed or deferred, with the
// start cursor landing on the old end cursor.
func TestProcessBatch_FullBatchScenario(t *testing.T) {
	f := newFixture(t, 50)
	committers := f.admitBatch(1)
	_, oldEnd := f.m.QueueBounds()
	f.advance(params.MaxDelay)

	receipt, err := f.m.ProcessBatch(DefaultCall(committers[7].addr, big.NewInt(1)))
	require.NoError(t, err)

	require.Equal(t, 50, receipt.PaidCount+receipt.DeferredCount+receipt.RetriedCount)
	require.Equal(t, 50, receipt.PaidCount)

	start, _ := f.m.QueueBounds()
	require.Equal(t, oldEnd, start)

	// Conservation: everything that left the pool is accounted for.
	total := new(big.Int).Add(receipt.Disbursed, receipt.Escalated)
	total.Add(total, receipt.Reimbursed)
	total.Add(total, receipt.Swept)
	total.Add(total, receipt.Deferred)
	require.Equal(t, receipt.Pool, total)

	// The triggering committer was reimbursed, fees were swept.
	require.True(t, f.vault.BalanceOf(committers[7].addr).Cmp(receipt.Reimbursed) >= 0)
	require.Equal(t, receipt.Swept, f.vault.BalanceOf(f.cfg.FeeRecipient))

	// Exactly-once: the boundary is consumed.
	_, err = f.m.ProcessBatch(DefaultCall(committers[7].addr, big.NewInt(1)))
	require.ErrorIs(t, err, ErrBatchNotReady)
}

func TestProcessBatch_EveryRecipientPaidEqually(t *testing.T) {
	f := newFixture(t, 4)
	committers := f.admitBatch(1)
	f.advance(params.MaxDelay)

	receipt, err := f.m.ProcessBatch(DefaultCall(committers[0].addr, big.NewInt(1)))
	require.NoError(t, err)
	require.Equal(t, 4, receipt.PaidCount)

	each := new(big.Int).Div(receipt.Disbursed, big.NewInt(4))
	for _, c := range committers {
		require.Equal(t, each, f.vault.BalanceOf(c.recipient))
	}
	// Payout order decorrelation means recipients are paid the same
	// amount; nothing distinguishes first from last committer.
	require.True(t, each.Cmp(f.cfg.ShareValue) < 0)
}

func TestProcessBatch_NotYetEligibleSlotsAreDeferred(t *testing.T) {
	f := newFixture(t, 4)
	committers := f.admitBatch(1)
	_, oldEnd := f.m.QueueBounds()

	// No clock advance: every unlock offset is at least MinDelay away.
	receipt, err := f.m.ProcessBatch(DefaultCall(committers[0].addr, big.NewInt(1)))
	require.NoError(t, err)

	require.Zero(t, receipt.PaidCount)
	require.Equal(t, 4, receipt.DeferredCount)
	start, end := f.m.QueueBounds()
	require.Equal(t, oldEnd, start)
	require.Equal(t, oldEnd+4, end)

	// Payouts stay live and keep their value in reserve.
	require.Equal(t, 4, f.m.state.active.Len())
	require.Equal(t, new(big.Int).Mul(f.cfg.ShareValue, big.NewInt(4)), f.m.Reserve())
}

// A recipient that always rejects value is retried across consecutive
// processing cycles and escalated to the fallback sink on the seventh
// failed attempt, with the full original amount.
func TestProcessBatch_RetryUntilEscalation(t *testing.T) {
	f := newFixture(t, 4)
	committers := f.admitBatch(0)
	rejecting := committers[2].recipient
	f.vault.Reject(rejecting, true)
	body := f.m.CommitmentBody(committers[2].recipient, committers[2].entropy)

	for cycle := 1; cycle <= int(f.cfg.MaxRetries); cycle++ {
		f.advance(params.MaxDelay + params.RetryInterval)
		caller := committers[0].addr
		receipt, err := f.m.ProcessBatch(DefaultCall(caller, big.NewInt(1)))
		require.NoError(t, err)

		if cycle < int(f.cfg.MaxRetries) {
			require.Equal(t, 1, receipt.RetriedCount, "cycle %d", cycle)
			payout := f.m.state.payouts[body]
			require.NotNil(t, payout)
			require.Equal(t, uint8(cycle), payout.RetryCount)
			require.LessOrEqual(t, payout.RetryCount, f.cfg.MaxRetries)
			// Refill the boundary for the next cycle.
			committers = f.admitBatch(byte(cycle))
		} else {
			require.Equal(t, 1, receipt.EscalatedCount)
			require.Equal(t, f.cfg.ShareValue, receipt.Escalated)
		}
	}

	// Terminal: full original amount at the fallback sink, slot processed.
	require.Equal(t, f.cfg.ShareValue, f.vault.BalanceOf(f.cfg.Fallback))
	require.Nil(t, f.m.state.payouts[body])
	_, done := f.m.state.processed[body]
	require.True(t, done)
	require.Zero(t, f.vault.BalanceOf(rejecting).Sign())
}

// A slot deferred out of its own boundary is disbursed in a later batch at
// that batch's share sizing; the backing it leaves behind in the reserve
// must be swept rather than accumulate forever.
func TestProcessBatch_CarriedSlotResidueIsSwept(t *testing.T) {
	f := newFixture(t, 2)
	committers := f.admitBatch(1)
	rejecting := committers[0].recipient
	f.vault.Reject(rejecting, true)

	f.advance(params.MaxDelay)
	receipt, err := f.m.ProcessBatch(DefaultCall(committers[1].addr, big.NewInt(1)))
	require.NoError(t, err)
	require.Equal(t, 1, receipt.PaidCount)
	require.Equal(t, 1, receipt.RetriedCount)

	// The deferred slot's full share stays in reserve, nothing more.
	require.Equal(t, f.cfg.ShareValue, f.m.Reserve())
	require.Zero(t, f.vault.BalanceOf(f.cfg.FeeRecipient).Sign())

	// Next boundary carries the slot along and pays it out.
	f.vault.Reject(rejecting, false)
	second := f.admitBatch(2)
	f.advance(params.MaxDelay + params.RetryInterval)
	receipt, err = f.m.ProcessBatch(DefaultCall(second[0].addr, big.NewInt(1)))
	require.NoError(t, err)
	require.Equal(t, 3, receipt.PaidCount)

	// The carried slot paid out less than the share backing it; the
	// difference is swept to the fee recipient instead of lingering in
	// reserve with no live payout behind it.
	require.Positive(t, receipt.Swept.Sign())
	require.Equal(t, receipt.Swept, f.vault.BalanceOf(f.cfg.FeeRecipient))
	require.Zero(t, f.m.Reserve().Sign())
}

func TestProcessBatch_FailedPayoutEmitsRetryEvent(t *testing.T) {
	f := newFixture(t, 2)
	committers := f.admitBatch(1)
	f.vault.Reject(committers[0].recipient, true)

	ch := make(chan PayoutFailedEvent, 4)
	sub := f.m.SubscribePayoutFailedEvent(ch)
	defer sub.Unsubscribe()

	f.advance(params.MaxDelay)
	_, err := f.m.ProcessBatch(DefaultCall(committers[1].addr, big.NewInt(1)))
	require.NoError(t, err)

	ev := <-ch
	require.Equal(t, f.m.CommitmentBody(committers[0].recipient, committers[0].entropy), ev.Key)
	require.Equal(t, uint8(1), ev.RetryCount)
}

func TestProcessBatch_ReimbursementFailureRollsBackWholeCall(t *testing.T) {
	f := newFixture(t, 4)
	committers := f.admitBatch(1)
	f.advance(params.MaxDelay)

	caller := committers[1]
	f.vault.Reject(caller.addr, true)

	_, oldEnd := f.m.QueueBounds()
	_, err := f.m.ProcessBatch(DefaultCall(caller.addr, big.NewInt(1)))
	require.ErrorIs(t, err, ErrReimbursementFailed)

	// Nothing moved: queue, payouts and vault are all back to the
	// pre-call state.
	start, end := f.m.QueueBounds()
	require.Equal(t, uint64(0), start)
	require.Equal(t, oldEnd, end)
	require.Equal(t, 4, f.m.state.active.Len())
	for _, c := range committers {
		require.Zero(t, f.vault.BalanceOf(c.recipient).Sign())
	}
	require.Zero(t, f.vault.BalanceOf(f.cfg.FeeRecipient).Sign())

	// A committer that can be paid triggers the same boundary fine.
	receipt, err := f.m.ProcessBatch(DefaultCall(committers[0].addr, big.NewInt(1)))
	require.NoError(t, err)
	require.Equal(t, 4, receipt.PaidCount)
}

func TestProcessBatch_BudgetExhaustionBreaksConsistently(t *testing.T) {
	f := newFixture(t, 4)
	committers := f.admitBatch(1)
	f.advance(params.MaxDelay)

	call := Call{Caller: committers[0].addr, GasPrice: big.NewInt(1), Budget: params.BudgetPerDisburse * 2}
	receipt, err := f.m.ProcessBatch(call)
	require.NoError(t, err)
	require.True(t, receipt.BudgetExhausted)
	require.Equal(t, 2, receipt.PaidCount)
	require.Equal(t, 2, receipt.DeferredCount)

	// Deferred slots stay live at the end of the queue; nothing is lost.
	start, end := f.m.QueueBounds()
	require.Equal(t, uint64(4), start)
	require.Equal(t, uint64(6), end)
	require.Equal(t, 2, f.m.state.active.Len())
}

func TestProcessBatch_ReentrantCallRejected(t *testing.T) {
	f := newFixture(t, 2)
	f.admitBatch(1)

	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	_, err := f.m.ProcessBatch(DefaultCall(common.HexToAddress("0x01"), big.NewInt(1)))
	require.ErrorIs(t, err, ErrReentrantCall)
}

func TestShuffle_PositionsAreUniform(t *testing.T) {
	const n = 4
	const trials = 8000

	base := make([]common.Hash, n)
	for i := range base {
		base[i] = crypto.Keccak256Hash([]byte{byte(i)})
	}
	counts := make([][]int, n)
	for i := range counts {
		counts[i] = make([]int, n)
	}

	slots := make([]common.Hash, n)
	for trial := 0; trial < trials; trial++ {
		copy(slots, base)
		shuffleSlots(slots, crypto.Keccak256Hash(common.BigToHash(big.NewInt(int64(trial))).Bytes()))
		for pos, h := range slots {
			for orig := range base {
				if base[orig] == h {
					counts[orig][pos]++
				}
			}
		}
	}

	// Each slot should land in each position about trials/n times. The
	// tolerance is ~5 standard deviations of the binomial count.
	expected := trials / n
	tolerance := expected / 10
	for orig := range counts {
		for pos, c := range counts[orig] {
			require.InDelta(t, expected, c, float64(tolerance),
				"slot %d landed in position %d %d times", orig, pos, c)
		}
	}
}

func TestShuffle_PermutationKeepsAllSlots(t *testing.T) {
	slots := make([]common.Hash, 16)
	for i := range slots {
		slots[i] = crypto.Keccak256Hash([]byte{byte(i)})
	}
	seen := make(map[common.Hash]bool, len(slots))
	shuffleSlots(slots, crypto.Keccak256Hash([]byte("seed")))
	for _, h := range slots {
		seen[h] = true
	}
	require.Len(t, seen, 16)
}
