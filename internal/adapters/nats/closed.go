package natsadapter

import (
	"fmt"
	"sync"

	"github.com/nats-io/nats.go"
)

// ClosedSessions tracks sessions announced as closed on the broker. Processes
// that act on sessions they do not own use it to stop early.
type ClosedSessions struct {
	mu     sync.RWMutex
	closed map[string]struct{}
	sub    *nats.Subscription
}

// WatchClosedSessions subscribes to session close announcements on nc.
func WatchClosedSessions(nc *nats.Conn) (*ClosedSessions, error) {
	cs := &ClosedSessions{closed: make(map[string]struct{})}
	sub, err := nc.Subscribe(SubjectClosedPrefix+">", func(msg *nats.Msg) {
		cs.mark(string(msg.Data))
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe closed sessions: %w", err)
	}
	cs.sub = sub
	return cs, nil
}

func (cs *ClosedSessions) mark(id string) {
	cs.mu.Lock()
	cs.closed[id] = struct{}{}
	cs.mu.Unlock()
}

// Closed reports whether id has been announced as closed.
func (cs *ClosedSessions) Closed(id string) bool {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	_, ok := cs.closed[id]
	return ok
}

// Stop ends the subscription.
func (cs *ClosedSessions) Stop() {
	if cs.sub != nil {
		_ = cs.sub.Unsubscribe()
	}
}
