package mixer

import (
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Vault is the value custodian the engine disburses through. Transfers can
// fail for reasons outside the engine's control (a recipient may reject
// incoming value). Snapshot and RevertToSnapshot give the engine the
// all-or-nothing call boundary the reimbursement path needs.
type Vault interface {
	Transfer(to common.Address, amount *big.Int) error
	Snapshot() int
	RevertToSnapshot(id int)
}

// ErrTransferRejected is returned by MemVault for recipients registered as
// rejecting.
var ErrTransferRejected = errors.New("recipient rejected transfer")

// MemVault is the in-memory Vault used by tests and the simulation command.
type MemVault struct {
	balances  map[common.Address]*big.Int
	rejecting map[common.Address]bool
	journal   []memVaultChange
}

type memVaultChange struct {
	account common.Address
	prev    *big.Int
	had     bool
}

func NewMemVault() *MemVault {
	return &MemVault{
		balances:  make(map[common.Address]*big.Int),
		rejecting: make(map[common.Address]bool),
	}
}

// Reject marks an account as rejecting incoming value, modelling a
// recipient contract that reverts on receipt.
func (v *MemVault) Reject(account common.Address, reject bool) {
	v.rejecting[account] = reject
}

func (v *MemVault) Transfer(to common.Address, amount *big.Int) error {
	if v.rejecting[to] {
		return ErrTransferRejected
	}
	prev, had := v.balances[to]
	v.journal = append(v.journal, memVaultChange{account: to, prev: prev, had: had})
	v.balances[to] = new(big.Int).Add(v.BalanceOf(to), amount)
	return nil
}

func (v *MemVault) BalanceOf(account common.Address) *big.Int {
	if b, ok := v.balances[account]; ok {
		return new(big.Int).Set(b)
	}
	return new(big.Int)
}

// Snapshot returns an identifier for the current journal position.
func (v *MemVault) Snapshot() int {
	return len(v.journal)
}

// RevertToSnapshot undoes every transfer made since the snapshot was taken.
func (v *MemVault) RevertToSnapshot(id int) {
	for i := len(v.journal) - 1; i >= id; i-- {
		ch := v.journal[i]
		if ch.had {
			v.balances[ch.account] = ch.prev
		} else {
			delete(v.balances, ch.account)
		}
	}
	v.journal = v.journal[:id]
}
