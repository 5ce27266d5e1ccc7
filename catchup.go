// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package scq

import "code.hybscloud.com/atomix"

// catchupTail advances tail up to head via CAS, preserving whatever
// finalize bit is currently set, retrying against head's latest value on
// contention. Shared by Index and SCQ2 — both run the identical protocol
// over a plain FAA tail/head pair (spec.md §4.3).
func catchupTail(tail64 *atomix.Uint64, head64 *atomix.Uint64, tail, head uint64) {
	for cycle(tail).less(cycle(head)) {
		full := tail64.LoadAcquire()
		fbit := full & finalizeBit
		cur := full &^ finalizeBit
		if !cycle(cur).less(cycle(head)) {
			return
		}
		if tail64.CompareAndSwapAcqRel(full, head|fbit) {
			return
		}
		head = head64.LoadAcquire()
		tail = cur
	}
}

// finalizeTail sets the finalize bit on tail64, one-shot, via CAS retry.
func finalizeTail(tail64 *atomix.Uint64) {
	for {
		old := tail64.LoadAcquire()
		if old&finalizeBit != 0 {
			return
		}
		if tail64.CompareAndSwapAcqRel(old, old|finalizeBit) {
			return
		}
	}
}
