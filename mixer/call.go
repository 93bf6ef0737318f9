package mixer

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/veilcash/go-veil/params"
)

// Call carries the metered-execution context of one engine invocation:
// who is calling, the execution price they observe, and how much work
// budget the invocation may consume before its loops must break out.
type Call struct {
	Caller   common.Address
	GasPrice *big.Int
	Budget   uint64
}

// DefaultCall returns a call context with the default work budget.
func DefaultCall(caller common.Address, gasPrice *big.Int) Call {
	return Call{
		Caller:   caller,
		GasPrice: gasPrice,
		Budget:   params.DefaultCallBudget,
	}
}

// frame tracks the remaining budget while a call executes.
type frame struct {
	call      Call
	remaining uint64
}

func newFrame(call Call) *frame {
	return &frame{call: call, remaining: call.Budget}
}

// consume deducts n units and reports whether the budget sufficed. A failed
// consume leaves the remaining budget untouched so the caller can break out
// at a consistent point.
func (f *frame) consume(n uint64) bool {
	if f.remaining < n {
		return false
	}
	f.remaining -= n
	return true
}
