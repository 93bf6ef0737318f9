package mixer

import "github.com/ethereum/go-ethereum/common"

// queue is an append-only sequence of commitment-key slots indexed by
// monotonically increasing cursors. Slots are consumed from the start and
// pushed at the end; consumed slots below the start cursor are deleted by
// bounded compaction passes, lowest index first.
type queue struct {
	slots map[uint64]common.Hash
	start uint64
	end   uint64
	// floor is the lowest not-yet-compacted index; floor <= start always.
	floor uint64
}

func newQueue() *queue {
	return &queue{slots: make(map[uint64]common.Hash)}
}

func (q *queue) push(key common.Hash) {
	q.slots[q.end] = key
	q.end++
}

// live returns the size of the window [start, end).
func (q *queue) live() uint64 {
	return q.end - q.start
}

// window returns the keys of the live window in queue order.
func (q *queue) window() []common.Hash {
	out := make([]common.Hash, 0, q.live())
	for i := q.start; i < q.end; i++ {
		out = append(out, q.slots[i])
	}
	return out
}

// advance moves the start cursor to the given position. The cursor never
// moves backwards and never past the end.
func (q *queue) advance(to uint64) {
	if to < q.start {
		return
	}
	if to > q.end {
		to = q.end
	}
	q.start = to
}

// compact deletes up to n consumed leading slots and returns the number
// deleted.
func (q *queue) compact(n int) int {
	deleted := 0
	for q.floor < q.start && deleted < n {
		delete(q.slots, q.floor)
		q.floor++
		deleted++
	}
	return deleted
}

func (q *queue) Copy() *queue {
	cp := &queue{
		slots: make(map[uint64]common.Hash, len(q.slots)),
		start: q.start,
		end:   q.end,
		floor: q.floor,
	}
	for i, k := range q.slots {
		cp.slots[i] = k
	}
	return cp
}
