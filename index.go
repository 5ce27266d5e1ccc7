// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package scq

import (
	"code.hybscloud.com/atomix"
	"code.hybscloud.com/spin"
)

// finalizeBit is the top bit of tail: once set, no further TryEnqueue
// succeeds. It is stolen from the ticket space rather than kept in a
// separate word so that claiming a ticket and observing finalization
// happen as a single fetch-add.
const finalizeBit = uint64(1) << 63

// Index is the SCQ-index queue: a fixed-capacity, lock-free MPMC queue of
// small unsigned integers in [0, Capacity). It is the algorithmic core of
// the SCQ family — every other queue in this package is built on top of
// it, directly (SCQd) or by re-deriving the same cycle discipline over a
// wider slot (SCQ2).
//
// Based on Nikolaev, "A Scalable, Portable, and Memory-Efficient
// Lock-Free FIFO Queue" (DISC 2019).
type Index struct {
	_         pad
	tail      atomix.Uint64 // producer ticket (FAA), top bit is the finalize flag
	_         pad
	head      atomix.Uint64 // consumer ticket (FAA)
	_         pad
	threshold atomix.Int64 // empty-detection credit
	_         pad
	slots    []atomix.Uint64 // N = 2*capacity cyclically-tagged slots
	order    int
	capacity uint64 // 2^order
	n        uint64 // 2*capacity, also the slot array length and the "N" flag bit
	qSmall   uint64 // N-1, the payload-index mask, also ORed in to mark a slot consumed
	qBig     uint64 // 2*N-1, the wider mask used for cycle comparisons
	finalize bool
}

// pad is cache-line padding (128 bytes per spec.md §3) to keep the control
// words and the slot array from sharing a line.
type pad [128]byte

const emptySlot = ^uint64(0)

// NewIndex creates an empty Index queue of the given order (Capacity =
// 2^order, order >= 2). If finalize is true, FinalizeQueue closes the
// queue to further enqueues; otherwise FinalizeQueue is a no-op.
func NewIndex(order int, finalize bool) *Index {
	q, err := NewIndexPartial(order, finalize, 0, 0)
	if err != nil {
		panic(err)
	}
	return q
}

// NewIndexFilled creates an Index queue whose Capacity slots 0..Capacity-1
// are already enqueued (in order), ready for Capacity consecutive
// TryDequeue calls before the queue reports empty.
func NewIndexFilled(order int, finalize bool) *Index {
	capacity := uint64(1) << uint(order)
	q, err := NewIndexPartial(order, finalize, 0, capacity)
	if err != nil {
		panic(err)
	}
	return q
}

// NewIndexPartial creates an Index queue seeded as if deqCount elements had
// already been dequeued out of enqCount enqueued ones: slots
// [0, deqCount) are pre-marked consumed, [deqCount, enqCount) pre-hold
// their indices, and the remainder are empty. Requires
// 0 <= deqCount <= enqCount <= Capacity.
func NewIndexPartial(order int, finalize bool, deqCount, enqCount uint64) (*Index, error) {
	if order < 2 {
		panic("scq: order must be >= 2")
	}
	capacity := uint64(1) << uint(order)
	if deqCount > enqCount || enqCount > capacity {
		return nil, invalidArgf("deqCount (%d) must be <= enqCount (%d) <= capacity (%d)", deqCount, enqCount, capacity)
	}

	n := 2 * capacity
	q := &Index{
		slots:    make([]atomix.Uint64, n),
		order:    order,
		capacity: capacity,
		n:        n,
		qSmall:   n - 1,
		qBig:     2*n - 1,
		finalize: finalize,
	}
	q.tail.StoreRelaxed(enqCount)
	q.head.StoreRelaxed(deqCount)
	if deqCount == 0 && enqCount == 0 {
		q.threshold.StoreRelaxed(-1)
	} else {
		q.threshold.StoreRelaxed(3*int64(n) - 1)
	}

	for i := uint64(0); i < deqCount; i++ {
		q.slots[q.remap(i)].StoreRelaxed(q.qBig)
	}
	for i := deqCount; i < enqCount; i++ {
		q.slots[q.remap(i)].StoreRelaxed(n + i)
	}
	for i := enqCount; i < n; i++ {
		q.slots[q.remap(i)].StoreRelaxed(emptySlot)
	}

	return q, nil
}

// Capacity returns the queue's usable capacity (2^order).
func (q *Index) Capacity() uint64 {
	return q.capacity
}

// remap spreads consecutive tickets across non-adjacent slots to avoid
// false sharing on the enqueue/dequeue frontiers (spec.md §4.1, §9).
func (q *Index) remap(t uint64) uint64 {
	return cacheRemap(t, uint(q.order)+1, 4)
}

// TryEnqueue attempts to enqueue idx, which must be < Capacity. ignoreEmpty
// elides the threshold reset on success and should only be set when the
// caller knows the queue can never be observed empty.
//
// Returns (false, ErrInvalidArgument-wrapping error) if idx is out of
// range — no shared state is touched in that case. Returns (false, nil)
// if (when finalize is enabled) the queue has been finalized.
//
// Index has no full check: TryEnqueue never returns false because the
// queue is full, so the queue holds at most Capacity entries only while
// each value in [0, Capacity) is enqueued at most once at a time.
func (q *Index) TryEnqueue(idx uint64, ignoreEmpty bool) (bool, error) {
	if idx >= q.capacity {
		return false, invalidArgf("index %d out of range [0, %d)", idx, q.capacity)
	}
	enqPayload := idx ^ q.qSmall

	sw := spin.Wait{}
	for {
		rawTail := q.tail.AddAcqRel(1) - 1
		if q.finalize && rawTail&finalizeBit != 0 {
			return false, nil
		}

		tailCycle := cycle((rawTail << 1) | q.qBig)
		slotIdx := q.remap(rawTail)
		tag := q.slots[slotIdx].LoadAcquire()

		for {
			slotCycle := cycle(tag | q.qBig)
			admitted := slotCycle.less(tailCycle) &&
				(tag == uint64(slotCycle) ||
					(tag == (uint64(slotCycle)^q.n) && cycle(q.head.LoadAcquire()).leq(cycle(rawTail))))
			if !admitted {
				break
			}

			desired := uint64(tailCycle) ^ enqPayload
			if !q.slots[slotIdx].CompareAndSwapAcqRel(tag, desired) {
				tag = q.slots[slotIdx].LoadAcquire()
				continue
			}

			if !ignoreEmpty && q.threshold.LoadAcquire() != 3*int64(q.n)-1 {
				q.threshold.StoreRelease(3*int64(q.n) - 1)
			}
			return true, nil
		}

		sw.Once()
	}
}

// TryDequeue attempts to dequeue the index at the queue's front.
// ignoreEmpty elides the threshold fast-path check and should only be set
// when the caller knows the queue can never be observed empty.
//
// Returns (0, false) if the queue is empty. Never fails for any other
// reason.
func (q *Index) TryDequeue(ignoreEmpty bool) (uint64, bool) {
	if !ignoreEmpty && q.threshold.LoadAcquire() < 0 {
		return 0, false
	}

	sw := spin.Wait{}
	for {
		head := q.head.AddAcqRel(1) - 1
		headCycle := cycle((head << 1) | q.qBig)
		slotIdx := q.remap(head)
		entry := q.slots[slotIdx].LoadAcquire()

		attempt := 0
		consumed := false
		var outIdx uint64
		staked := false

	inner:
		for {
			entryCycle := cycle(entry | q.qBig)
			if entryCycle == headCycle {
				q.consumeSlot(slotIdx, entry)
				outIdx = entry & q.qSmall
				consumed = true
				break inner
			}

			var entryNew uint64
			if (entry|q.n) != uint64(entryCycle) {
				entryNew = entry &^ q.n
				if entry == entryNew {
					break inner
				}
			} else {
				attempt++
				if attempt <= 10000 {
					entry = q.slots[slotIdx].LoadAcquire()
					continue inner
				}
				entryNew = uint64(headCycle) ^ ((^entry) & q.n)
			}

			if !entryCycle.less(headCycle) {
				break inner
			}
			if q.slots[slotIdx].CompareAndSwapAcqRel(entry, entryNew) {
				staked = true
				break inner
			}
			entry = q.slots[slotIdx].LoadAcquire()
		}

		if consumed {
			return outIdx, true
		}
		_ = staked

		if ignoreEmpty {
			sw.Once()
			continue
		}

		rawTail := q.tail.LoadAcquire()
		tail := rawTail &^ finalizeBit
		if cycle(tail).leq(cycle(head + 1)) {
			q.catchup(tail, head+1)
			q.threshold.AddAcqRel(-1)
			return 0, false
		}

		newThreshold := q.threshold.AddAcqRel(-1)
		if newThreshold+1 <= 0 {
			return 0, false
		}
		sw.Once()
	}
}

// consumeSlot atomically ORs qSmall into the slot, marking it consumed.
// entry is the value read just before the cycle matched; it is never
// written concurrently by another dequeuer (remap is injective per
// ticket), so the loop below is expected to succeed on its first pass.
func (q *Index) consumeSlot(slotIdx uint64, entry uint64) {
	for {
		if q.slots[slotIdx].CompareAndSwapAcqRel(entry, entry|q.qSmall) {
			return
		}
		entry = q.slots[slotIdx].LoadAcquire()
	}
}

// catchup advances tail up to head, preserving the finalize bit, rescuing
// tickets abandoned by enqueuers that lost the admit race (spec.md §4.3).
func (q *Index) catchup(tail, head uint64) {
	catchupTail(&q.tail, &q.head, tail, head)
}

// FinalizeQueue closes the queue to further TryEnqueue calls. One-shot and
// permanent. In-flight dequeues continue to drain normally. A no-op unless
// the queue was constructed with finalize enabled.
func (q *Index) FinalizeQueue() {
	if !q.finalize {
		return
	}
	finalizeTail(&q.tail)
}

// ResetThreshold restores the empty-detection credit to its initial value.
func (q *Index) ResetThreshold() {
	q.threshold.StoreRelease(3*int64(q.n) - 1)
}
