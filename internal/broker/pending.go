package broker

import (
	"sync"

	"smc-trader/internal/wire"
)

// pendingResult is the terminal outcome of one request: either the matched
// response envelope or an error. Exactly one is delivered per request.
type pendingResult struct {
	env *wire.Envelope
	err error
}

// pendingTable correlates clientMsgIds to waiting callers. Entries are
// created on send and destroyed on matching response, timeout, or disconnect
// (which fails all pending).
type pendingTable struct {
	mu sync.Mutex
	m  map[string]chan pendingResult
}

func newPendingTable() *pendingTable {
	return &pendingTable{m: make(map[string]chan pendingResult)}
}

// add registers a slot for the clientMsgId. The channel has capacity 1 so
// the resolver never blocks on a caller that already gave up.
func (t *pendingTable) add(msgID string) chan pendingResult {
	ch := make(chan pendingResult, 1)
	t.mu.Lock()
	t.m[msgID] = ch
	t.mu.Unlock()
	return ch
}

// resolve delivers a response to its waiter. Returns false if no slot is
// registered (late response after timeout, or unsolicited).
func (t *pendingTable) resolve(msgID string, env *wire.Envelope) bool {
	t.mu.Lock()
	ch, ok := t.m[msgID]
	if ok {
		delete(t.m, msgID)
	}
	t.mu.Unlock()
	if !ok {
		return false
	}
	ch <- pendingResult{env: env}
	return true
}

// remove drops a slot without delivering (caller timed out or was cancelled).
func (t *pendingTable) remove(msgID string) {
	t.mu.Lock()
	delete(t.m, msgID)
	t.mu.Unlock()
}

// failAll terminates every pending request with err. Used on disconnect so
// no request ever leaks.
func (t *pendingTable) failAll(err error) {
	t.mu.Lock()
	slots := t.m
	t.m = make(map[string]chan pendingResult)
	t.mu.Unlock()

	for _, ch := range slots {
		ch <- pendingResult{err: err}
	}
}

// size returns the number of in-flight requests (for status reporting).
func (t *pendingTable) size() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.m)
}
