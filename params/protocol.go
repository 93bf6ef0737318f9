package params

import "time"

// Protocol constants of the veil mixing engine.
//
// MinAnonymitySet is a hard batch-size precondition, not a tuning knob:
// processing fewer payouts at once would shrink the crowd every participant
// hides in.
const (
	// MinAnonymitySet is the exact number of admitted payouts per batch.
	MinAnonymitySet = 50

	// MaxRetries is the number of failed disbursement attempts before the
	// payout is escalated to the fallback sink.
	MaxRetries = 7

	// QueueCap bounds the live queue window [start, end). Admission past
	// the cap is rejected.
	QueueCap = 10_000

	// CompactionStep is the number of leading processed slots deleted per
	// post-batch compaction pass.
	CompactionStep = 5

	// RebuildEveryAdmissions triggers an accumulator rebuild each time this
	// many payouts have been admitted since the last rebuild.
	RebuildEveryAdmissions = 10

	// RebuildEveryProcessed triggers an accumulator rebuild whenever the
	// total-processed counter crosses a multiple of this value.
	RebuildEveryProcessed = 100

	// MerkleLeafCap bounds the number of active keys considered by a single
	// accumulator rebuild.
	MerkleLeafCap = 512

	// GasWindow is the length of the ring buffer of observed per-unit
	// execution prices.
	GasWindow = 10

	// DisburseGasUnits is the expected execution cost, in gas units, of one
	// disbursement transfer.
	DisburseGasUnits = 50_000

	// RootHistory is the number of recent accumulator roots kept for
	// queries.
	RootHistory = 128
)

const (
	// RetryInterval is the cooldown between disbursement attempts for the
	// same payout.
	RetryInterval = time.Hour

	// MinDelay and MaxDelay bound the randomized unlock offset applied to
	// every admitted payout. The drawn delay lies in [MinDelay, MaxDelay).
	MinDelay = time.Hour
	MaxDelay = 36 * time.Hour
)

// Fee and reimbursement policy.
const (
	// FeeBp is the protocol fee per payout, in basis points of the share
	// value.
	FeeBp = 50

	// ReimburseDivisor caps the batch caller's reimbursement at
	// share/ReimburseDivisor per processed slot, so a single caller cannot
	// drain the pool.
	ReimburseDivisor = 10
)

// Budget costs, in abstract budget units, charged against a call's budget by
// the bounded loops of the engine.
const (
	BudgetPerDisburse    = 10
	BudgetPerRebuildLeaf = 1
	BudgetPerCompactSlot = 2
	DefaultCallBudget    = 100_000
)
