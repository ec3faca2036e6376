package dispatch

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridpulse/gridpulse/internal/clock"
	"github.com/gridpulse/gridpulse/internal/timing/model"
	"github.com/gridpulse/gridpulse/internal/timing/patch"
	"github.com/gridpulse/gridpulse/internal/timing/pipeline"
)

type nopPublisher struct{}

func (nopPublisher) PublishUpdate(context.Context, int, int, *patch.Update) error { return nil }

type nopSink struct{}

func (nopSink) AppendLaps(context.Context, []model.CarLapData) error { return nil }

func testFactory(clk clock.Clock) WorkerFactory {
	return func(eventID, sessionID int, onRefChange func(int, string)) *pipeline.Worker {
		return pipeline.NewWorker(pipeline.Config{
			EventID:   eventID,
			SessionID: sessionID,
		}, clk, pipeline.Sinks{
			Publisher:          nopPublisher{},
			Laps:               nopSink{},
			OnSessionRefChange: onRefChange,
		})
	}
}

func TestEnvelopeDecode(t *testing.T) {
	env := Envelope{
		Feed:        pipeline.FeedRMonitor,
		EventID:     7,
		SessionID:   42,
		Data:        []byte(`$B,42,"Main Race"`),
		ReceivedAt:  time.Date(2026, 8, 22, 14, 0, 0, 0, time.UTC),
		AssignedPod: "timing-0",
	}
	raw, err := env.Encode()
	require.NoError(t, err)

	got, err := DecodeEnvelope(raw)
	require.NoError(t, err)
	assert.Equal(t, env, got)
}

// The feed names on the wire are fixed by the ingestion contract; an envelope
// sent with any of them must map onto the matching feed constant.
func TestEnvelopeDecodeWireFeedNames(t *testing.T) {
	wire := map[string]pipeline.FeedType{
		"rmonitor":       pipeline.FeedRMonitor,
		"multiloop":      pipeline.FeedMultiloop,
		"x2pass":         pipeline.FeedPassings,
		"x2loop":         pipeline.FeedLoops,
		"video":          pipeline.FeedVideo,
		"session-change": pipeline.FeedSessionChange,
		"reset-request":  pipeline.FeedReset,
	}
	for name, want := range wire {
		raw := []byte(`{"feed":"` + name + `","eventId":7,"sessionId":42}`)
		got, err := DecodeEnvelope(raw)
		require.NoError(t, err, name)
		assert.Equal(t, want, got.Feed)
	}
}

func TestEnvelopeDecodeRejectsBadInput(t *testing.T) {
	_, err := DecodeEnvelope([]byte("not json"))
	assert.Error(t, err)

	_, err = DecodeEnvelope([]byte(`{"eventId":7}`))
	assert.Error(t, err, "feed type is required")
}

func TestDispatchCreatesWorkerPerSession(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	clk := clock.NewFake(time.Date(2026, 8, 22, 14, 0, 0, 0, time.UTC))
	d := New(ctx, testFactory(clk), "timing-0")

	d.Dispatch(Envelope{Feed: pipeline.FeedRMonitor, EventID: 7, SessionID: 42,
		Data: []byte(`$B,42,"Main Race"`)})
	d.Dispatch(Envelope{Feed: pipeline.FeedRMonitor, EventID: 7, SessionID: 43,
		Data: []byte(`$B,43,"Next Race"`)})

	require.Eventually(t, func() bool {
		for _, s := range d.States() {
			if s.SessionName == "Main Race" {
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)
	assert.Len(t, d.States(), 2)

	cancel()
	require.NoError(t, d.Wait())
}

func TestRotationSeedsSuccessorSessionName(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	clk := clock.NewFake(time.Date(2026, 8, 22, 14, 0, 0, 0, time.UTC))
	d := New(ctx, testFactory(clk), "timing-0")

	// A $B carrying a new session reference finalizes the old worker and
	// rotates; the successor starts out with the notified name.
	d.Dispatch(Envelope{Feed: pipeline.FeedRMonitor, EventID: 7, SessionID: 42,
		Data: []byte(`$B,43,"Heat 2"`)})

	require.Eventually(t, func() bool {
		for _, s := range d.States() {
			if s.SessionID == 43 && s.SessionName == "Heat 2" {
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, d.Wait())
}

func TestDispatchIgnoresOtherPods(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	clk := clock.NewFake(time.Now())
	d := New(ctx, testFactory(clk), "timing-0")

	d.Dispatch(Envelope{Feed: pipeline.FeedRMonitor, EventID: 7, SessionID: 42,
		AssignedPod: "timing-1"})
	assert.Empty(t, d.States())

	// Unpinned envelopes are accepted by any pod.
	d.Dispatch(Envelope{Feed: pipeline.FeedRMonitor, EventID: 7, SessionID: 42})
	assert.Len(t, d.States(), 1)
}

func TestDispatchAfterShutdownIsNoop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	clk := clock.NewFake(time.Now())
	d := New(ctx, testFactory(clk), "")
	cancel()

	d.Dispatch(Envelope{Feed: pipeline.FeedRMonitor, EventID: 7, SessionID: 42})
	assert.Empty(t, d.States())
	require.NoError(t, d.Wait())
}
