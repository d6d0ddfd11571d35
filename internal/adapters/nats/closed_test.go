package natsadapter

import "testing"

func TestClosedSessions(t *testing.T) {
	cs := &ClosedSessions{closed: make(map[string]struct{})}
	if cs.Closed("s1") {
		t.Fatal("unexpected closed session")
	}
	cs.mark("s1")
	if !cs.Closed("s1") {
		t.Fatal("expected s1 closed")
	}
	if cs.Closed("s2") {
		t.Fatal("s2 should still be open")
	}
	cs.Stop()
}
