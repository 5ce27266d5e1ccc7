// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package scq

// cycle is a ticket's epoch, compared modulo 2^64 via the signed-difference
// comparator: a wraps are handled the same way TCP sequence numbers are.
type cycle uint64

// less reports whether a precedes b in cyclic order: a < b iff
// int64(a-b) < 0. This is the comparator the whole SCQ family relies on to
// survive counter wraparound without ever observing it.
func (a cycle) less(b cycle) bool {
	return int64(a-b) < 0
}

// leq reports whether a does not follow b in cyclic order.
func (a cycle) leq(b cycle) bool {
	return int64(a-b) <= 0
}

// geq reports whether a does not precede b in cyclic order.
func (a cycle) geq(b cycle) bool {
	return int64(a-b) >= 0
}

// cacheRemap spreads consecutive tickets at least 8 slots apart across an
// array of 2^logN entries, to keep the enqueue and dequeue frontiers from
// landing on the same cache line. It rotates the low logN bits of t by k
// positions.
//
// The upstream formula shifts by (logN - k); for logN < k that shift would
// be negative, which the reference implementation leaves undefined for
// sub-minimum orders, and for logN == k the rotation is already the
// identity. We fall back to the identity mapping for logN <= k,
// which is still a bijection over [0, 2^logN) and simply forgoes the
// false-sharing guarantee for queues too small to need it.
func cacheRemap(t uint64, logN uint, k uint) uint64 {
	n := uint64(1) << logN
	mask := n - 1
	if logN <= k {
		return t & mask
	}
	return ((t & mask) >> (logN - k)) | ((t << k) & mask)
}
