// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package scq

import "unsafe"

// SCQd is the decoupled pointer-queue member of the SCQ family: an
// allocated-index queue (aq), a free-index queue (fq) — both Index
// instances — and a plain array of *T indexed by slot. Producers borrow a
// free slot from fq, write the pointer, then publish the slot via aq;
// consumers invert the same two steps. All the cycle/CAS machinery lives
// in the two Index queues; SCQd itself only shuffles slot ownership.
type SCQd[T any] struct {
	aq       *Index
	fq       *Index
	pointers []unsafe.Pointer
	capacity uint64
}

// NewSCQd creates an empty SCQd queue of the given order (Capacity =
// 2^order, order >= 2). If finalize is true, FinalizeQueue closes the
// queue to further enqueues.
//
// fq starts FILLED with all Capacity indices available to producers. The
// upstream snapshot this algorithm is drawn from default-constructs fq
// from an empty initializer, which would leave every producer without a
// slot to claim; this is corrected here to match the free-index queue's
// own purpose (see DESIGN.md).
func NewSCQd[T any](order int, finalize bool) *SCQd[T] {
	capacity := uint64(1) << uint(order)
	return &SCQd[T]{
		aq:       NewIndex(order, finalize),
		fq:       NewIndexFilled(order, false),
		pointers: make([]unsafe.Pointer, capacity),
		capacity: capacity,
	}
}

// Capacity returns the queue's usable capacity (2^order).
func (q *SCQd[T]) Capacity() uint64 {
	return q.capacity
}

// TryEnqueue attempts to enqueue elem, which must be non-nil. Borrows a
// free slot from fq, writes elem into it, then publishes the slot index
// through aq. If aq has itself been finalized and rejects the publish,
// the slot is returned to fq before reporting failure.
func (q *SCQd[T]) TryEnqueue(elem *T, ignoreEmpty bool) (bool, error) {
	if elem == nil {
		return false, invalidArgf("elem must not be nil")
	}

	idx, ok := q.fq.TryDequeue(ignoreEmpty)
	if !ok {
		q.aq.FinalizeQueue()
		return false, nil
	}

	q.pointers[idx] = unsafe.Pointer(elem)

	ok, err := q.aq.TryEnqueue(idx, ignoreEmpty)
	if err != nil {
		// idx is guaranteed < capacity by fq's own invariant; this path
		// is unreachable, but surface it rather than leak the slot.
		q.pointers[idx] = nil
		if _, pErr := q.fq.TryEnqueue(idx, true); pErr != nil {
			panic(pErr)
		}
		return false, err
	}
	if !ok {
		q.pointers[idx] = nil
		if _, pErr := q.fq.TryEnqueue(idx, true); pErr != nil {
			panic(pErr)
		}
		return false, nil
	}
	return true, nil
}

// TryDequeue attempts to dequeue the element at the queue's front. Pops a
// slot index from aq, reads the pointer stored there, and returns the
// slot to fq for reuse.
func (q *SCQd[T]) TryDequeue(ignoreEmpty bool) (*T, bool) {
	idx, ok := q.aq.TryDequeue(ignoreEmpty)
	if !ok {
		return nil, false
	}

	elem := (*T)(q.pointers[idx])
	q.pointers[idx] = nil

	if _, err := q.fq.TryEnqueue(idx, ignoreEmpty); err != nil {
		panic(err)
	}
	return elem, true
}

// FinalizeQueue closes the queue to further TryEnqueue calls. One-shot and
// permanent.
func (q *SCQd[T]) FinalizeQueue() {
	q.aq.FinalizeQueue()
}

// ResetThreshold restores both component queues' empty-detection credit to
// their initial values.
func (q *SCQd[T]) ResetThreshold() {
	q.aq.ResetThreshold()
	q.fq.ResetThreshold()
}
