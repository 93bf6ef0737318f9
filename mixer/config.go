package mixer

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/veilcash/go-veil/params"
	"github.com/veilcash/go-veil/utils"
)

// Rules is the protocol configuration of a mixer instance.
type Rules struct {
	// Name is a human-readable instance name used for logging.
	Name string

	// ChainID and Contract pin the deployment identity bound into every
	// commitment, so commitments cannot be replayed across deployments.
	ChainID  *big.Int
	Contract common.Address

	// ShareValue is the batch-normalized deposit denomination. Every
	// payout in a batch carries the same value.
	ShareValue *big.Int

	// FeeRecipient receives protocol fees and the post-batch leftover
	// sweep. Fallback receives escalated payouts whose recipient transfer
	// permanently fails.
	FeeRecipient common.Address
	Fallback     common.Address

	MinAnonymitySet int
	MaxRetries      uint8
	QueueCap        uint64
	RetryInterval   time.Duration
	FeeBp           uint64
	// ReimburseDivisor caps the batch caller's reimbursement at
	// ShareValue/ReimburseDivisor per batch slot.
	ReimburseDivisor int64

	RebuildEveryAdmissions uint64
	RebuildEveryProcessed  uint64
	CompactionStep         int
}

// DefaultRules returns the production protocol parameters.
func DefaultRules() Rules {
	return Rules{
		Name:                   "veil",
		ChainID:                big.NewInt(1),
		ShareValue:             utils.ToVeil(1),
		MinAnonymitySet:        params.MinAnonymitySet,
		MaxRetries:             params.MaxRetries,
		QueueCap:               params.QueueCap,
		RetryInterval:          params.RetryInterval,
		FeeBp:                  params.FeeBp,
		ReimburseDivisor:       params.ReimburseDivisor,
		RebuildEveryAdmissions: params.RebuildEveryAdmissions,
		RebuildEveryProcessed:  params.RebuildEveryProcessed,
		CompactionStep:         params.CompactionStep,
	}
}

// Copy returns a deep copy of the rules.
func (r Rules) Copy() Rules {
	cp := r
	if r.ChainID != nil {
		cp.ChainID = new(big.Int).Set(r.ChainID)
	}
	if r.ShareValue != nil {
		cp.ShareValue = new(big.Int).Set(r.ShareValue)
	}
	return cp
}
