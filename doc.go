// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package scq provides bounded, lock-free, multi-producer multi-consumer
// FIFO queues implementing the SCQ family (Nikolaev, "A Scalable,
// Portable, and Memory-Efficient Lock-Free FIFO Queue", DISC 2019).
//
// Three variants are provided:
//
//   - [Index]: queue of small unsigned integers in [0, Capacity). This is
//     the algorithmic core; every invariant proof in the paper is about
//     this queue.
//   - [SCQ2]: queue of *T built directly on a double-word (128-bit) CAS,
//     packing a cycle tag and a pointer into one atomic slot.
//   - [SCQd]: queue of *T composed from two [Index] queues (an
//     allocated-index queue and a free-index queue) plus a plain pointer
//     array, for platforms or payload sizes where a 128-bit CAS is
//     unattractive.
//
// # Quick Start
//
//	q := scq.NewSCQ2[Job](10, false) // capacity 1024, no finalize
//
//	job := &Job{ID: 42}
//	ok, err := q.TryEnqueue(job, false, false)
//	if !ok {
//	    // queue full, apply backpressure
//	}
//
//	got, ok := q.TryDequeue(false)
//	if !ok {
//	    // queue empty
//	}
//
// # Choosing a Variant
//
// Use [Index] directly when the payload is, or fits in, a small unsigned
// integer — a buffer-pool slot number, a handle, a pre-allocated array
// index. It is the cheapest of the three: one word per slot, one
// single-word CAS per operation.
//
// Use [SCQ2] when the payload is a pointer and the platform has an
// efficient double-word CAS (amd64, arm64). It is the cheapest pointer
// queue: one CAS per operation, at the cost of double-word-sized slots.
//
// Use [SCQd] when a double-word CAS is unavailable or undesirable, or
// when the free-index pool it builds on is independently useful (e.g.
// shared with a buffer pool). It costs two single-word CAS operations per
// TryEnqueue/TryDequeue (one against each component queue) instead of
// one, in exchange for needing only single-word atomics.
//
// # Capacity
//
// All three variants take an order, not a capacity: Capacity = 2^order.
// order must be >= 2. There is no rounding — callers pick the order
// directly, mirroring the algorithm's own parameterization rather than
// hiding it behind a rounding function.
//
// # Graceful Shutdown
//
// Each variant can be constructed with finalize enabled. FinalizeQueue
// then permanently closes the queue to further TryEnqueue calls (a
// one-shot transition, never reversed) while letting consumers drain
// whatever was already enqueued. Without finalize enabled, FinalizeQueue
// is a no-op — this is a construction-time choice, not a runtime one,
// because the finalize bit is carried inside the tail counter itself and
// checking for it unconditionally would cost every enqueue a branch it
// doesn't need.
//
// # Error Handling
//
// TryEnqueue and TryDequeue never return an error for ordinary
// operational failure (full, empty, finalized) — they return (zero,
// false)/(false, nil), matching the algorithm's own distinction between
// "the queue said no" and "the caller misused the API". Only
// precondition violations (an out-of-range [Index] value, a nil pointer
// to [SCQ2] or [SCQd]) return a non-nil error, wrapping
// [ErrInvalidArgument], and they do so before any ticket is claimed or
// shared state touched.
//
// [ErrWouldBlock] and its classifier helpers ([IsWouldBlock],
// [IsSemantic], [IsNonFailure]) are re-exported from
// [code.hybscloud.com/iox] for ecosystem consistency, for callers that
// prefer an error-returning wrapper around TryEnqueue/TryDequeue.
//
// # Empty Detection and the Threshold
//
// Exact emptiness in a lock-free MPMC queue would require a
// cross-thread consensus check on every dequeue, which defeats the
// purpose of being lock-free. Instead, each queue keeps a threshold
// counter: it is reset whenever an enqueue succeeds and decremented
// whenever a dequeue finds nothing, and TryDequeue short-circuits once
// the counter goes negative. This bounds the number of "wasted" dequeue
// attempts under contention without ever blocking — at the cost of
// TryDequeue occasionally reporting empty for a handful of calls after
// the last real item drains, even though the queue will report data
// again the moment the threshold is reset by the next enqueue.
//
// # Concurrency
//
// All three variants are safe for any number of concurrent producer and
// consumer goroutines. No external locking is required or beneficial —
// introducing one would only serialize what the algorithm is designed to
// parallelize.
//
// # Race Detection
//
// Go's race detector tracks explicit synchronization primitives (mutex,
// channel, WaitGroup) but not the happens-before relationships
// established by acquire/release atomics on separate memory locations,
// which is exactly what this package relies on throughout. Expect false
// positives under -race on the concurrent tests; see [RaceEnabled].
//
// # Dependencies
//
// This package uses [code.hybscloud.com/atomix] for atomic primitives
// with explicit memory ordering (including the double-word primitive
// backing [SCQ2]), [code.hybscloud.com/iox] for semantic error
// classification, and [code.hybscloud.com/spin] for contention backoff.
package scq
