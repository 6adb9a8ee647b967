package bridge

import (
	"sync"

	"github.com/adcondev/brother-daemon/internal/brother"
)

type pendingCall struct {
	link      *link
	action    string
	onSuccess brother.SuccessFunc
	onFailure brother.FailureFunc
}

// pendingCalls tracks invocations that are waiting for a result frame.
type pendingCalls struct {
	calls map[string]pendingCall
	mu    sync.Mutex
}

func newPendingCalls() *pendingCalls {
	return &pendingCalls{
		calls: make(map[string]pendingCall),
	}
}

// Add registers a call under id
func (p *pendingCalls) Add(id string, call pendingCall) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls[id] = call
}

// Take removes and returns the call registered under id
func (p *pendingCalls) Take(id string) (pendingCall, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	call, ok := p.calls[id]
	if ok {
		delete(p.calls, id)
	}
	return call, ok
}

// Count returns the number of calls in flight
func (p *pendingCalls) Count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

// DrainLink removes every call that was sent over l
func (p *pendingCalls) DrainLink(l *link) []pendingCall {
	p.mu.Lock()
	defer p.mu.Unlock()

	var out []pendingCall
	for id, call := range p.calls {
		if call.link == l {
			out = append(out, call)
			delete(p.calls, id)
		}
	}
	return out
}
