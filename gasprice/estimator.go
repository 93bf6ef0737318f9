// Package gasprice sizes per-payout reimbursement and protocol cost
// projections from recent observed execution prices.
//
// Disbursement cost is volatile and partly recipient-controlled, so the
// estimate carries a safety buffer: under-provisioning a batch would force
// the shortfall onto other users' refunds.
package gasprice

import (
	"math/big"
	"sync"

	"github.com/veilcash/go-veil/params"
	"github.com/veilcash/go-veil/utils"
)

// Estimator keeps a fixed-length ring buffer of observed per-unit execution
// prices, overwritten round-robin. The buffer is seeded at construction so
// the very first estimate is never zero.
type Estimator struct {
	mu     sync.Mutex
	window []*big.Int
	cursor int

	units uint64 // expected gas units of one disbursement
}

// NewEstimator creates an estimator seeded with the given price. A nil or
// zero seed falls back to 1 wei so the padded average stays positive.
func NewEstimator(seed *big.Int) *Estimator {
	if seed == nil || seed.Sign() <= 0 {
		seed = big.NewInt(1)
	}
	window := make([]*big.Int, params.GasWindow)
	for i := range window {
		window[i] = new(big.Int).Set(seed)
	}
	return &Estimator{
		window: window,
		units:  params.DisburseGasUnits,
	}
}

// Record overwrites the current ring slot with the observed price and
// advances the cursor.
func (e *Estimator) Record(price *big.Int) {
	if price == nil || price.Sign() < 0 {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.window[e.cursor].Set(price)
	e.cursor = (e.cursor + 1) % len(e.window)
}

// PerUnit returns the padded per-unit price estimate: an exponentially
// weighted average over the window (weight 2^rank, most recent sample
// heaviest), plus a 12.5% safety buffer, floored at the current price.
func (e *Estimator) PerUnit(current *big.Int) *big.Int {
	e.mu.Lock()
	defer e.mu.Unlock()

	weighted := new(big.Int)
	total := new(big.Int)
	weight := new(big.Int).SetUint64(1)
	// Walk the ring from oldest to newest; the slot under the cursor is
	// the oldest sample.
	for i := 0; i < len(e.window); i++ {
		sample := e.window[(e.cursor+i)%len(e.window)]
		weighted.Add(weighted, new(big.Int).Mul(sample, weight))
		total.Add(total, weight)
		weight = new(big.Int).Lsh(weight, 1)
	}
	avg := weighted.Div(weighted, total)

	// 12.5% buffer: avg + avg/8.
	padded := new(big.Int).Add(avg, new(big.Int).Rsh(avg, 3))
	if current == nil {
		return padded
	}
	return new(big.Int).Set(utils.BigMax(padded, current))
}

// PerPayout returns the projected cost of one disbursement at the given
// current price.
func (e *Estimator) PerPayout(current *big.Int) *big.Int {
	return new(big.Int).Mul(e.PerUnit(current), new(big.Int).SetUint64(e.units))
}
