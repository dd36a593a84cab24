package coalesce

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aaweaver-actuary/repgrow/internal/engineerr"
)

func TestRunCoalescesConcurrentCallers(t *testing.T) {
	var g Group
	var calls int64
	start := make(chan struct{})

	const n = 10
	results := make([]any, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			<-start
			v, err := g.Run("k", func() (any, error) {
				atomic.AddInt64(&calls, 1)
				time.Sleep(20 * time.Millisecond)
				return "value", nil
			})
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			results[idx] = v
		}(i)
	}
	close(start)
	wg.Wait()

	if atomic.LoadInt64(&calls) != 1 {
		t.Fatalf("produce invoked %d times, want exactly 1", calls)
	}
	for _, r := range results {
		if r != "value" {
			t.Fatalf("waiter got %v, want \"value\"", r)
		}
	}
}

func TestRunReturnsDistinguishedFailureToWaiters(t *testing.T) {
	var g Group
	cause := errors.New("boom")
	release := make(chan struct{})
	entered := make(chan struct{})

	var initiatorErr error
	var waiterErr error
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := g.Run("k", func() (any, error) {
			close(entered)
			<-release
			return nil, cause
		})
		initiatorErr = err
	}()

	<-entered
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := g.Run("k", func() (any, error) {
			t.Fatalf("waiter should not invoke produce")
			return nil, nil
		})
		waiterErr = err
	}()

	time.Sleep(10 * time.Millisecond) // let the waiter join before releasing
	close(release)
	wg.Wait()

	if !errors.Is(initiatorErr, cause) && initiatorErr != cause {
		t.Fatalf("initiator error = %v, want the original cause", initiatorErr)
	}
	if !engineerr.Is(waiterErr, engineerr.CoalescedFailure) {
		t.Fatalf("waiter error = %v, want a CoalescedFailure", waiterErr)
	}
}

func TestRunStartsFreshAttemptAfterPriorCallCompletes(t *testing.T) {
	var g Group
	var calls int64
	for i := 0; i < 3; i++ {
		_, err := g.Run("k", func() (any, error) {
			atomic.AddInt64(&calls, 1)
			return i, nil
		})
		if err != nil {
			t.Fatal(err)
		}
	}
	if calls != 3 {
		t.Fatalf("expected 3 fresh attempts once each prior call completed, got %d", calls)
	}
}
