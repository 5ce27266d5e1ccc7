// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package scq

import (
	"unsafe"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/spin"
)

const (
	enqueueBit = uint64(0b01)
	dequeueBit = uint64(0b10)
)

// scq2Slot is a double-word (tag, pointer) pair updated with a single
// 128-bit CAS, the way the teacher's mpmc128Slot packs cycle and payload
// into one atomic entry to cut the atomics-per-operation count.
type scq2Slot struct {
	entry atomix.Uint128 // lo=tag (cycle | status bits), hi=pointer bits
	_     [128 - 16]byte
}

// SCQ2 is the pointer-queue member of the SCQ family: a fixed-capacity
// lock-free MPMC queue of *T, built directly on a double-word CAS rather
// than on Index. Unlike Index, its physical slot count equals Capacity —
// the full lap count lives in the tag's upper bits instead of requiring a
// doubled array.
type SCQ2[T any] struct {
	_         pad
	tail      atomix.Uint64
	_         pad
	head      atomix.Uint64
	_         pad
	threshold atomix.Int64
	_         pad
	slots     []scq2Slot
	order     int
	n         uint64 // capacity, also the slot array length
	nMask     uint64 // n-1
	finalize  bool
}

// NewSCQ2 creates an empty SCQ2 queue of the given order (Capacity =
// 2^order, order >= 2).
func NewSCQ2[T any](order int, finalize bool) *SCQ2[T] {
	if order < 2 {
		panic("scq: order must be >= 2")
	}
	n := uint64(1) << uint(order)
	q := &SCQ2[T]{
		slots:    make([]scq2Slot, n),
		order:    order,
		n:        n,
		nMask:    n - 1,
		finalize: finalize,
	}
	q.head.StoreRelaxed(n)
	q.tail.StoreRelaxed(n)
	q.threshold.StoreRelaxed(-1)
	return q
}

// NewSCQ2Filled creates an SCQ2 queue with one element, first, already
// enqueued. first must be non-nil.
func NewSCQ2Filled[T any](order int, finalize bool, first *T) (*SCQ2[T], error) {
	if order < 2 {
		panic("scq: order must be >= 2")
	}
	if first == nil {
		return nil, invalidArgf("first must not be nil")
	}
	n := uint64(1) << uint(order)
	q := &SCQ2[T]{
		slots:    make([]scq2Slot, n),
		order:    order,
		n:        n,
		nMask:    n - 1,
		finalize: finalize,
	}
	q.head.StoreRelaxed(n)
	q.tail.StoreRelaxed(n + 1)
	idx := q.remap(n)
	q.slots[idx].entry.StoreRelaxed(n|enqueueBit, uint64(uintptr(unsafe.Pointer(first))))
	q.threshold.StoreRelaxed(2*int64(n) - 1)
	return q, nil
}

// Capacity returns the queue's usable capacity (2^order).
func (q *SCQ2[T]) Capacity() uint64 {
	return q.n
}

func (q *SCQ2[T]) remap(t uint64) uint64 {
	return cacheRemap(t, uint(q.order), 3)
}

// TryEnqueue attempts to enqueue elem, which must be non-nil.
//
// ignoreEmpty elides the threshold reset on success; ignoreFull elides the
// advisory pre-check and the post-attempt full/finalize check (the queue
// can still reject the ticket it claims either way). Both are the spec's
// optimization hints for callers that already know the answer.
func (q *SCQ2[T]) TryEnqueue(elem *T, ignoreEmpty, ignoreFull bool) (bool, error) {
	if elem == nil {
		return false, invalidArgf("elem must not be nil")
	}

	if !ignoreFull {
		tail := q.tail.LoadAcquire()
		if tail >= q.n+q.head.LoadAcquire() {
			if q.finalize {
				finalizeTail(&q.tail)
			}
			return false, nil
		}
	}

	ptrBits := uint64(uintptr(unsafe.Pointer(elem)))
	sw := spin.Wait{}
	for {
		tail := q.tail.AddAcqRel(1) - 1
		if q.finalize && tail&finalizeBit != 0 {
			return false, nil
		}

		tailCycle := cycle(tail &^ q.nMask)
		slotIdx := q.remap(tail)
		lo, hi := q.slots[slotIdx].entry.LoadRelaxed()

		for {
			slotCycle := cycle(lo &^ q.nMask)
			admitted := slotCycle.less(tailCycle) &&
				(lo == uint64(slotCycle) ||
					(lo == (uint64(slotCycle)|dequeueBit) && q.head.LoadAcquire() <= tail))
			if admitted {
				if !q.slots[slotIdx].entry.CompareAndSwapAcqRel(lo, hi, uint64(tailCycle)|enqueueBit, ptrBits) {
					lo, hi = q.slots[slotIdx].entry.LoadRelaxed()
					continue
				}
				if !ignoreEmpty && q.threshold.LoadAcquire() != 2*int64(q.n)-1 {
					q.threshold.StoreRelease(2*int64(q.n) - 1)
				}
				return true, nil
			}

			q.threshold.StoreRelease(2*int64(q.n) - 1)

			if !ignoreFull {
				if tail+1 >= q.n+q.head.LoadRelaxed() {
					if q.finalize {
						finalizeTail(&q.tail)
					}
					return false, nil
				}
			}
			break
		}

		sw.Once()
	}
}

// TryDequeue attempts to dequeue the element at the queue's front.
// ignoreEmpty elides the threshold fast-path check.
func (q *SCQ2[T]) TryDequeue(ignoreEmpty bool) (*T, bool) {
	if !ignoreEmpty && q.threshold.LoadAcquire() < 0 {
		return nil, false
	}

	sw := spin.Wait{}
	for {
		head := q.head.AddAcqRel(1) - 1
		headCycle := cycle(head &^ q.nMask)
		slotIdx := q.remap(head)
		tag, ptrBits := q.slots[slotIdx].entry.LoadAcquire()

		var result *T
		consumed := false

	inner:
		for {
			enqCycle := cycle(tag &^ q.nMask)
			if enqCycle == headCycle {
				priorTag, priorPtr := q.consume(slotIdx, tag, ptrBits)
				_ = priorTag
				result = (*T)(unsafe.Pointer(uintptr(priorPtr)))
				consumed = true
				break inner
			}

			var tagNew uint64
			if (tag &^ dequeueBit) != uint64(enqCycle) {
				tagNew = tag | dequeueBit
				if tag == tagNew {
					break inner
				}
			} else {
				tagNew = uint64(headCycle) | (tag & dequeueBit)
			}

			if !enqCycle.less(headCycle) {
				break inner
			}
			if q.slots[slotIdx].entry.CompareAndSwapAcqRel(tag, ptrBits, tagNew, ptrBits) {
				break inner
			}
			tag, ptrBits = q.slots[slotIdx].entry.LoadAcquire()
		}

		if consumed {
			return result, true
		}

		if ignoreEmpty {
			sw.Once()
			continue
		}

		rawTail := q.tail.LoadAcquire()
		tail := rawTail &^ finalizeBit
		if cycle(tail).leq(cycle(head + 1)) {
			q.catchup(tail, head+1)
			q.threshold.AddAcqRel(-1)
			return nil, false
		}

		newThreshold := q.threshold.AddAcqRel(-1)
		if newThreshold+1 <= 0 {
			return nil, false
		}
		sw.Once()
	}
}

// consume clears the enqueue bit and the pointer, claiming the slot's
// payload. tag/ptrBits are the values observed at the moment the cycle
// matched; like Index.consumeSlot, no concurrent writer can touch this
// (slot, cycle) pair, so the CAS is expected to succeed on its first try.
func (q *SCQ2[T]) consume(slotIdx uint64, tag, ptrBits uint64) (uint64, uint64) {
	for {
		if q.slots[slotIdx].entry.CompareAndSwapAcqRel(tag, ptrBits, tag&^enqueueBit, 0) {
			return tag, ptrBits
		}
		tag, ptrBits = q.slots[slotIdx].entry.LoadAcquire()
	}
}

func (q *SCQ2[T]) catchup(tail, head uint64) {
	catchupTail(&q.tail, &q.head, tail, head)
}

// FinalizeQueue closes the queue to further TryEnqueue calls. One-shot and
// permanent. A no-op unless the queue was constructed with finalize
// enabled.
func (q *SCQ2[T]) FinalizeQueue() {
	if !q.finalize {
		return
	}
	finalizeTail(&q.tail)
}

// ResetThreshold restores the empty-detection credit to its initial value.
func (q *SCQ2[T]) ResetThreshold() {
	q.threshold.StoreRelease(2*int64(q.n) - 1)
}
