package mixer

import "github.com/ethereum/go-ethereum/common"

// keySet is an unordered collection of live commitment keys with O(1)
// membership removal. Removal swaps the victim with the last element and
// pops, updating the displaced element's recorded index.
type keySet struct {
	keys  []common.Hash
	index map[common.Hash]int
}

func newKeySet() *keySet {
	return &keySet{index: make(map[common.Hash]int)}
}

func (s *keySet) Add(key common.Hash) {
	if _, ok := s.index[key]; ok {
		return
	}
	s.index[key] = len(s.keys)
	s.keys = append(s.keys, key)
}

func (s *keySet) Remove(key common.Hash) {
	i, ok := s.index[key]
	if !ok {
		return
	}
	last := len(s.keys) - 1
	moved := s.keys[last]
	s.keys[i] = moved
	s.index[moved] = i
	s.keys = s.keys[:last]
	delete(s.index, key)
}

func (s *keySet) Has(key common.Hash) bool {
	_, ok := s.index[key]
	return ok
}

func (s *keySet) Len() int {
	return len(s.keys)
}

// Keys returns a copy of the backing sequence.
func (s *keySet) Keys() []common.Hash {
	out := make([]common.Hash, len(s.keys))
	copy(out, s.keys)
	return out
}

func (s *keySet) Copy() *keySet {
	cp := &keySet{
		keys:  make([]common.Hash, len(s.keys)),
		index: make(map[common.Hash]int, len(s.index)),
	}
	copy(cp.keys, s.keys)
	for k, v := range s.index {
		cp.index[k] = v
	}
	return cp
}
