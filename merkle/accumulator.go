// Package merkle maintains the public commitment over still-pending
// payouts.
//
// The tree is not an append-only proof structure: it is rebuilt wholesale
// from the current active key set, so the published root reflects a snapshot
// at the last rebuild. The leaf filter is the lenient "not yet processed"
// variant; filtering down to eligible-only entries would let an observer
// read payout timing off consecutive roots.
package merkle

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/veilcash/go-veil/params"
)

// EmptyRoot is the sentinel published when the active set is empty. A
// defined sentinel keeps "no pending payouts" distinguishable from "never
// rebuilt".
var EmptyRoot = crypto.Keccak256Hash([]byte("veil: empty accumulator"))

// Accumulator carries the current root between rebuilds.
type Accumulator struct {
	root    common.Hash
	leafCap int
}

func NewAccumulator() *Accumulator {
	return &Accumulator{
		root:    EmptyRoot,
		leafCap: params.MerkleLeafCap,
	}
}

// Root returns the root computed by the last rebuild.
func (a *Accumulator) Root() common.Hash {
	return a.root
}

// Reset overwrites the current root without recomputing it, used when
// restoring a persisted state whose root predates the restore.
func (a *Accumulator) Reset(root common.Hash) {
	a.root = root
}

// Rebuild recomputes the root over the given commitment keys and returns
// it. The leaf count considered is capped so a single rebuild stays O(cap)
// regardless of active-set growth.
func (a *Accumulator) Rebuild(keys []common.Hash) common.Hash {
	if len(keys) == 0 {
		a.root = EmptyRoot
		return a.root
	}
	if len(keys) > a.leafCap {
		keys = keys[:a.leafCap]
	}

	level := make([]common.Hash, len(keys))
	for i, key := range keys {
		level[i] = crypto.Keccak256Hash(key.Bytes())
	}

	for len(level) > 1 {
		next := make([]common.Hash, 0, (len(level)+1)/2)
		for i := 0; i+1 < len(level); i += 2 {
			next = append(next, crypto.Keccak256Hash(level[i].Bytes(), level[i+1].Bytes()))
		}
		if len(level)%2 == 1 {
			// Odd trailing leaf is carried up unchanged.
			next = append(next, level[len(level)-1])
		}
		level = next
	}

	a.root = level[0]
	return a.root
}
