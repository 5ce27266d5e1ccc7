// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package scq_test

import (
	"sync"
	"testing"
	"time"

	"code.hybscloud.com/iox"
	"code.hybscloud.com/scq"
)

func TestIndexCapacity(t *testing.T) {
	q := scq.NewIndex(3, false)
	if got := q.Capacity(); got != 8 {
		t.Fatalf("Capacity() = %d, want 8", got)
	}
}

func TestIndexFullThenEmpty(t *testing.T) {
	q := scq.NewIndex(3, false)
	for i := uint64(0); i < 8; i++ {
		ok, err := q.TryEnqueue(i, false)
		if err != nil || !ok {
			t.Fatalf("TryEnqueue(%d) = (%v, %v), want (true, nil)", i, ok, err)
		}
	}

	if ok, err := q.TryEnqueue(0, false); err != nil || ok {
		t.Fatalf("9th TryEnqueue = (%v, %v), want (false, nil)", ok, err)
	}

	for i := uint64(0); i < 8; i++ {
		got, ok := q.TryDequeue(false)
		if !ok || got != i {
			t.Fatalf("TryDequeue() = (%d, %v), want (%d, true)", got, ok, i)
		}
	}

	if _, ok := q.TryDequeue(false); ok {
		t.Fatalf("TryDequeue on drained queue returned true")
	}
}

// TestIndexPartialInitOneOut mirrors original_source/test/test_simple.cpp's
// test_one_out: construct a capacity-8 queue as if index 0 had already been
// dequeued out of a full queue, enqueue 0 back in, and expect the remaining
// drain order to be 1,2,3,4,5,6,7,0.
func TestIndexPartialInitOneOut(t *testing.T) {
	q, err := scq.NewIndexPartial(3, false, 1, 8)
	if err != nil {
		t.Fatalf("NewIndexPartial: %v", err)
	}

	if ok, err := q.TryEnqueue(0, false); err != nil || !ok {
		t.Fatalf("TryEnqueue(0) = (%v, %v), want (true, nil)", ok, err)
	}

	want := []uint64{1, 2, 3, 4, 5, 6, 7, 0}
	for _, w := range want {
		got, ok := q.TryDequeue(false)
		if !ok || got != w {
			t.Fatalf("TryDequeue() = (%d, %v), want (%d, true)", got, ok, w)
		}
	}
	if _, ok := q.TryDequeue(false); ok {
		t.Fatalf("TryDequeue on drained queue returned true")
	}
}

func TestIndexInvalidArgument(t *testing.T) {
	q := scq.NewIndex(3, false)
	if ok, err := q.TryEnqueue(8, false); ok || err == nil {
		t.Fatalf("TryEnqueue(8) on capacity-8 queue = (%v, %v), want (false, non-nil error)", ok, err)
	}
	if _, err := scq.NewIndexPartial(3, false, 5, 2); err == nil {
		t.Fatalf("NewIndexPartial(deqCount > enqCount) succeeded, want error")
	}
}

func TestIndexFinalize(t *testing.T) {
	q := scq.NewIndex(3, true)
	for i := uint64(0); i < 8; i++ {
		if ok, err := q.TryEnqueue(i, false); err != nil || !ok {
			t.Fatalf("TryEnqueue(%d) = (%v, %v), want (true, nil)", i, ok, err)
		}
	}

	q.FinalizeQueue()

	if ok, err := q.TryEnqueue(0, false); err != nil || ok {
		t.Fatalf("TryEnqueue after finalize = (%v, %v), want (false, nil)", ok, err)
	}

	for i := uint64(0); i < 8; i++ {
		if _, ok := q.TryDequeue(false); !ok {
			t.Fatalf("TryDequeue %d after finalize drained too early", i)
		}
	}
	if _, ok := q.TryDequeue(false); ok {
		t.Fatalf("TryDequeue on drained finalized queue returned true")
	}
}

// TestIndexFreeListStress exercises Index the way SCQd uses it internally:
// as a free-index pool. Workers repeatedly pop an index and push it
// straight back, so the pool's total token count never changes. After all
// workers finish, draining the queue must yield every index in
// [0, Capacity) exactly once — proof that concurrent pop/push under
// contention neither loses nor duplicates a token.
func TestIndexFreeListStress(t *testing.T) {
	if scq.RaceEnabled {
		t.Skip("skip: linearizability test requires concurrent access")
	}

	const (
		order       = 8 // capacity 256
		numWorkers  = 16
		itersPerRun = 2000
	)

	q := scq.NewIndexFilled(order, false)
	capacity := q.Capacity()

	var wg sync.WaitGroup
	for w := 0; w < numWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			backoff := iox.Backoff{}
			for i := 0; i < itersPerRun; i++ {
				var idx uint64
				for {
					v, ok := q.TryDequeue(false)
					if ok {
						idx = v
						backoff.Reset()
						break
					}
					backoff.Wait()
				}
				for {
					ok, err := q.TryEnqueue(idx, false)
					if err != nil {
						t.Errorf("TryEnqueue: %v", err)
						return
					}
					if ok {
						backoff.Reset()
						break
					}
					backoff.Wait()
				}
			}
		}()
	}
	wg.Wait()

	seen := make([]int, capacity)
	backoff := iox.Backoff{}
	for i := uint64(0); i < capacity; i++ {
		deadline := time.Now().Add(5 * time.Second)
		for {
			v, ok := q.TryDequeue(false)
			if ok {
				seen[v]++
				backoff.Reset()
				break
			}
			if time.Now().After(deadline) {
				t.Fatalf("timed out draining index %d/%d", i, capacity)
			}
			backoff.Wait()
		}
	}

	for idx, count := range seen {
		if count != 1 {
			t.Fatalf("index %d seen %d times on final drain, want exactly 1", idx, count)
		}
	}
	if _, ok := q.TryDequeue(false); ok {
		t.Fatalf("queue still non-empty after draining all %d indices", capacity)
	}
}
