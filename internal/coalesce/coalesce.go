// Package coalesce deduplicates concurrent requests that share a key, built
// on golang.org/x/sync/singleflight for the actual call-sharing. A small
// mutex-guarded set on top of singleflight.Group tracks which caller for a
// given key is the initiator versus a waiter, so failures can be reported
// per the contract: the initiator sees the real error, waiters see a
// distinguished CoalescedFailure wrapping it.
package coalesce

import (
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/aaweaver-actuary/repgrow/internal/engineerr"
)

// Group coalesces calls to Run by key.
type Group struct {
	g singleflight.Group

	mu       sync.Mutex
	inFlight map[string]bool
}

// Run invokes produce for key k if no call for k is already in flight, or
// waits on the in-flight call's result otherwise. On success every waiter
// receives the same value. On failure, the caller that actually invoked
// produce receives the underlying error unwrapped; every other waiter
// receives a *engineerr.Error of kind CoalescedFailure wrapping it. A
// subsequent call with the same key starts a fresh attempt: singleflight.Group
// forgets the key as soon as Do returns, so there is no negative caching at
// this layer.
func (g *Group) Run(k string, produce func() (any, error)) (any, error) {
	isInitiator := g.claim(k)
	defer func() {
		if isInitiator {
			g.release(k)
		}
	}()

	v, err, _ := g.g.Do(k, produce)
	if err != nil && !isInitiator {
		return nil, engineerr.New(engineerr.CoalescedFailure, fmt.Sprintf("coalesced call for key %q failed", k), err)
	}
	return v, err
}

func (g *Group) claim(k string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.inFlight == nil {
		g.inFlight = make(map[string]bool)
	}
	if g.inFlight[k] {
		return false
	}
	g.inFlight[k] = true
	return true
}

func (g *Group) release(k string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.inFlight, k)
}
