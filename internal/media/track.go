package media

import (
	"sync"
	"sync/atomic"
	"time"

	pion "github.com/pion/webrtc/v4"
	pionmedia "github.com/pion/webrtc/v4/pkg/media"

	"github.com/tincan-labs/tincan/internal/call"
)

// Track is a synthetic outbound track. A write loop pushes one sample
// per tick; disabling the track keeps the clock running but skips the
// payload, which is how mute behaves without renegotiating.
type Track struct {
	sample   *pion.TrackLocalStaticSample
	kind     string
	interval time.Duration
	payload  func(seq int) []byte

	enabled  atomic.Bool
	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

var _ call.LocalTrack = (*Track)(nil)

func (s *Source) newTrack(params trackParams) (*Track, error) {
	sample, err := pion.NewTrackLocalStaticSample(params.codec, params.id, s.streamID)
	if err != nil {
		return nil, err
	}
	t := &Track{
		sample:   sample,
		kind:     params.kind,
		interval: params.interval,
		payload:  params.payload,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	t.enabled.Store(true)
	go t.writeLoop()
	return t, nil
}

func (t *Track) ID() string       { return t.sample.ID() }
func (t *Track) Kind() string     { return t.kind }
func (t *Track) StreamID() string { return t.sample.StreamID() }

func (t *Track) SetEnabled(enabled bool) { t.enabled.Store(enabled) }
func (t *Track) Enabled() bool           { return t.enabled.Load() }

// RTPTrack exposes the underlying pion track for AddTrack.
func (t *Track) RTPTrack() pion.TrackLocal { return t.sample }

// Stop ends the write loop. Safe to call more than once.
func (t *Track) Stop() error {
	t.stopOnce.Do(func() { close(t.stop) })
	return nil
}

func (t *Track) writeLoop() {
	defer close(t.done)
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	seq := 0
	for {
		select {
		case <-t.stop:
			return
		case <-ticker.C:
			if !t.enabled.Load() {
				continue
			}
			sample := pionmedia.Sample{
				Data:     t.payload(seq),
				Duration: t.interval,
			}
			// WriteSample is a no-op until the track is bound to a
			// sender, so writing before negotiation is harmless.
			_ = t.sample.WriteSample(sample)
			seq++
		}
	}
}
