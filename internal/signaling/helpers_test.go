package signaling

import (
	"io"
	"log/slog"
	"time"
)

var fixedNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestLifecycle() *Lifecycle {
	return NewLifecycle(testLogger(), DefaultLimits(), func() time.Time { return fixedNow })
}

func connectAll(l *Lifecycle, ids ...ParticipantID) {
	for _, id := range ids {
		l.Connect(id)
	}
}

// ofType returns the deliveries of the given message type, in order.
func ofType(out Outcome, msgType string) []Delivery {
	var ds []Delivery
	for _, d := range out.Deliveries {
		if d.Msg.Type == msgType {
			ds = append(ds, d)
		}
	}
	return ds
}

// targets returns who received a message of the given type, in order.
func targets(out Outcome, msgType string) []ParticipantID {
	var ids []ParticipantID
	for _, d := range ofType(out, msgType) {
		ids = append(ids, d.To)
	}
	return ids
}
