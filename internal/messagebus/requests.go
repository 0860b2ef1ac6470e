package messagebus

import (
	acrerrors "acr/internal/errors"
	"acr/internal/shared/clock"
)

var errTimeout = acrerrors.New(acrerrors.KindExpired, "request timed out waiting for response")

type requestResult struct {
	body any
	err  error
}

type pendingRequest struct {
	resultCh chan requestResult
	timer    clock.Timer
	done     bool
}

func (b *Bus) resolvePending(requestID string, result requestResult) {
	b.mu.Lock()
	pending, ok := b.pendingRequests[requestID]
	if !ok || pending.done {
		b.mu.Unlock()
		return
	}
	pending.done = true
	pending.timer.Stop()
	delete(b.pendingRequests, requestID)
	b.mu.Unlock()

	pending.resultCh <- result
}

func (b *Bus) timeoutPending(requestID string) {
	b.mu.Lock()
	pending, ok := b.pendingRequests[requestID]
	if !ok || pending.done {
		b.mu.Unlock()
		return
	}
	pending.done = true
	delete(b.pendingRequests, requestID)
	b.mu.Unlock()

	pending.resultCh <- requestResult{err: errTimeout}
}
