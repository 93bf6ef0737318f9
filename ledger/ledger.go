// Package ledger defines the fungible-credit collaborator of the mixing
// engine. The engine never mutates balances directly; total supply changes
// only through Mint and Burn.
package ledger

import (
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrInsufficientCredit = errors.New("insufficient credit")
	ErrNegativeAmount     = errors.New("negative amount")
)

// Ledger is the credit accounting surface consumed by the engine.
type Ledger interface {
	// Mint credits the account with the given amount.
	Mint(account common.Address, amount *big.Int) error
	// Burn removes the given amount from the account. Returns
	// ErrInsufficientCredit if the balance is too low.
	Burn(account common.Address, amount *big.Int) error
	// BalanceOf returns the current balance of the account.
	BalanceOf(account common.Address) *big.Int
}

// InMemory is a plain balance table satisfying Ledger. It is the reference
// implementation used by tests and the simulation command.
type InMemory struct {
	balances map[common.Address]*big.Int
	supply   *big.Int
}

func NewInMemory() *InMemory {
	return &InMemory{
		balances: make(map[common.Address]*big.Int),
		supply:   new(big.Int),
	}
}

func (l *InMemory) Mint(account common.Address, amount *big.Int) error {
	if amount.Sign() < 0 {
		return ErrNegativeAmount
	}
	l.balances[account] = new(big.Int).Add(l.BalanceOf(account), amount)
	l.supply.Add(l.supply, amount)
	return nil
}

func (l *InMemory) Burn(account common.Address, amount *big.Int) error {
	if amount.Sign() < 0 {
		return ErrNegativeAmount
	}
	balance := l.BalanceOf(account)
	if balance.Cmp(amount) < 0 {
		return ErrInsufficientCredit
	}
	l.balances[account] = new(big.Int).Sub(balance, amount)
	l.supply.Sub(l.supply, amount)
	return nil
}

func (l *InMemory) BalanceOf(account common.Address) *big.Int {
	if b, ok := l.balances[account]; ok {
		return new(big.Int).Set(b)
	}
	return new(big.Int)
}

// TotalSupply returns the sum of all balances. It equals the cumulative
// minted minus the cumulative burned amounts.
func (l *InMemory) TotalSupply() *big.Int {
	return new(big.Int).Set(l.supply)
}
