package mixer

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
)

func queueKeys(n int) []common.Hash {
	out := make([]common.Hash, n)
	for i := range out {
		out[i] = crypto.Keccak256Hash([]byte{byte(i)})
	}
	return out
}

func TestQueue_PushGrowsWindow(t *testing.T) {
	q := newQueue()
	keys := queueKeys(3)
	for _, k := range keys {
		q.push(k)
	}

	assert.Equal(t, uint64(3), q.live())
	assert.Equal(t, keys, q.window())
}

func TestQueue_AdvanceNeverMovesBackwards(t *testing.T) {
	q := newQueue()
	for _, k := range queueKeys(5) {
		q.push(k)
	}

	q.advance(3)
	assert.Equal(t, uint64(3), q.start)

	q.advance(1)
	assert.Equal(t, uint64(3), q.start)
}

func TestQueue_AdvanceClampsToEnd(t *testing.T) {
	q := newQueue()
	for _, k := range queueKeys(2) {
		q.push(k)
	}

	q.advance(10)
	assert.Equal(t, uint64(2), q.start)
	assert.Zero(t, q.live())
}

func TestQueue_CompactDeletesLowestFirst(t *testing.T) {
	q := newQueue()
	keys := queueKeys(6)
	for _, k := range keys {
		q.push(k)
	}
	q.advance(4)

	assert.Equal(t, 2, q.compact(2))
	assert.Equal(t, uint64(2), q.floor)
	_, has0 := q.slots[0]
	_, has2 := q.slots[2]
	assert.False(t, has0)
	assert.True(t, has2)

	// Compaction never crosses the start cursor.
	assert.Equal(t, 2, q.compact(10))
	assert.Equal(t, q.start, q.floor)
	assert.Equal(t, 0, q.compact(10))

	// The live window is untouched.
	assert.Equal(t, keys[4:], q.window())
}

func TestQueue_CopyIsIndependent(t *testing.T) {
	q := newQueue()
	for _, k := range queueKeys(3) {
		q.push(k)
	}
	cp := q.Copy()

	q.push(crypto.Keccak256Hash([]byte("extra")))
	q.advance(2)

	assert.Equal(t, uint64(3), cp.live())
	assert.Equal(t, uint64(0), cp.start)
}

func TestKeySet_AddIsIdempotent(t *testing.T) {
	s := newKeySet()
	k := crypto.Keccak256Hash([]byte("k"))
	s.Add(k)
	s.Add(k)

	assert.Equal(t, 1, s.Len())
	assert.True(t, s.Has(k))
}

func TestKeySet_RemoveKeepsRemainderIntact(t *testing.T) {
	s := newKeySet()
	keys := queueKeys(5)
	for _, k := range keys {
		s.Add(k)
	}

	s.Remove(keys[1])
	s.Remove(keys[1]) // absent removal is a no-op

	assert.Equal(t, 4, s.Len())
	assert.False(t, s.Has(keys[1]))
	for _, k := range []common.Hash{keys[0], keys[2], keys[3], keys[4]} {
		assert.True(t, s.Has(k))
	}

	// The swap-pop must leave every survivor reachable by index.
	for _, k := range s.Keys() {
		assert.True(t, s.Has(k))
	}
}

func TestKeySet_KeysReturnsCopy(t *testing.T) {
	s := newKeySet()
	keys := queueKeys(2)
	for _, k := range keys {
		s.Add(k)
	}

	out := s.Keys()
	out[0] = common.Hash{}
	assert.True(t, s.Has(keys[0]))
}

func TestKeySet_CopyIsIndependent(t *testing.T) {
	s := newKeySet()
	keys := queueKeys(3)
	for _, k := range keys {
		s.Add(k)
	}
	cp := s.Copy()

	s.Remove(keys[0])
	assert.True(t, cp.Has(keys[0]))
	assert.Equal(t, 3, cp.Len())
}
