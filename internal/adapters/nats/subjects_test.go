package natsadapter_test

import (
	"testing"

	natsadapter "github.com/samirrijal/safespot/internal/adapters/nats"
)

func TestSubjects(t *testing.T) {
	tests := []struct {
		id   string
		want string
	}{
		{"abc-123", "safespot.route.abc-123"},
		{"a.b", "safespot.route.a_b"},
		{"x>*", "safespot.route.x__"},
		{"has space", "safespot.route.has_space"},
		{"", "safespot.route._"},
	}
	for _, tc := range tests {
		if got := natsadapter.RouteSubject(tc.id); got != tc.want {
			t.Errorf("RouteSubject(%q) = %q, want %q", tc.id, got, tc.want)
		}
	}
	if got := natsadapter.HazardSubject("s1"); got != "safespot.hazard.s1" {
		t.Errorf("unexpected hazard subject %q", got)
	}
	if got := natsadapter.ClosedSubject("s1"); got != "safespot.session.closed.s1" {
		t.Errorf("unexpected closed subject %q", got)
	}
}
