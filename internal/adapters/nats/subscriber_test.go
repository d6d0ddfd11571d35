package natsadapter

import (
	"context"
	"testing"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/safespot/internal/core/domain"
)

type fakeAck struct {
	acked, termed int
	naks          []time.Duration
}

func (f *fakeAck) Ack(...nats.AckOpt) error { f.acked++; return nil }

func (f *fakeAck) NakWithDelay(d time.Duration, _ ...nats.AckOpt) error {
	f.naks = append(f.naks, d)
	return nil
}

func (f *fakeAck) Term(...nats.AckOpt) error { f.termed++; return nil }

func TestHandleHazardMsg(t *testing.T) {
	report := []byte(`{"session_id":"s1","location":{"latitude":43.26,"longitude":-2.93}}`)

	tests := []struct {
		name   string
		data   []byte
		err    error
		calls  int
		acked  int
		termed int
		nakked int
	}{
		{name: "accepted", data: report, calls: 1, acked: 1},
		{name: "not applied", data: report, err: context.Canceled, calls: 1, nakked: 1},
		{name: "malformed", data: []byte(`{`), termed: 1},
		{name: "no session", data: []byte(`{"location":{"latitude":1,"longitude":1}}`), termed: 1},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			msg := &fakeAck{}
			calls := 0
			var got *domain.HazardReport
			handler := func(ctx context.Context, r *domain.HazardReport) error {
				calls++
				got = r
				return tc.err
			}

			handleHazardMsg(context.Background(), "safespot.hazard.s1", tc.data, msg, handler)

			if calls != tc.calls {
				t.Errorf("expected %d handler calls, got %d", tc.calls, calls)
			}
			if msg.acked != tc.acked || msg.termed != tc.termed || len(msg.naks) != tc.nakked {
				t.Errorf("expected ack=%d term=%d nak=%d, got ack=%d term=%d nak=%d",
					tc.acked, tc.termed, tc.nakked, msg.acked, msg.termed, len(msg.naks))
			}
			if tc.nakked > 0 && msg.naks[0] != redeliveryDelay {
				t.Errorf("expected redelivery after %v, got %v", redeliveryDelay, msg.naks[0])
			}
			if tc.calls > 0 && (got == nil || got.SessionID != "s1") {
				t.Errorf("expected decoded report for s1, got %+v", got)
			}
		})
	}
}

// A handler that drops a report it cannot apply returns nil; the report must
// be acked so it is never replayed over a newer one.
func TestHandleHazardMsg_DroppedReportIsAcked(t *testing.T) {
	msg := &fakeAck{}
	handleHazardMsg(context.Background(), "safespot.hazard.s1",
		[]byte(`{"session_id":"gone","location":{"latitude":1,"longitude":1}}`), msg,
		func(context.Context, *domain.HazardReport) error { return nil })
	if msg.acked != 1 || len(msg.naks) != 0 {
		t.Errorf("expected a single ack, got ack=%d nak=%d", msg.acked, len(msg.naks))
	}
}
