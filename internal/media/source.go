// Package media provides the built-in capture source. There is no real
// device capture here: tracks carry a synthetic payload on a steady
// clock, which is enough to drive negotiation, keep RTP flowing, and
// exercise mute end to end.
package media

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	pion "github.com/pion/webrtc/v4"

	"github.com/tincan-labs/tincan/internal/call"
)

const (
	audioFrameInterval = 20 * time.Millisecond
	videoFrameInterval = 66 * time.Millisecond
)

// Source hands out synthetic audio and video tracks. All tracks from
// one source share a stream id, so the far side groups them as a
// single stream.
type Source struct {
	streamID string
	log      *slog.Logger
}

var _ call.MediaSource = (*Source)(nil)

// NewSource returns a source with a fresh stream id. A nil logger
// means slog.Default().
func NewSource(log *slog.Logger) *Source {
	if log == nil {
		log = slog.Default()
	}
	return &Source{
		streamID: "tincan-" + uuid.NewString(),
		log:      log,
	}
}

// Acquire builds one track per requested kind and starts their write
// loops. Requesting nothing yields no tracks and no error; the call
// then negotiates with the control channel alone.
func (s *Source) Acquire(constraints call.MediaConstraints) ([]call.LocalTrack, error) {
	var tracks []call.LocalTrack
	if constraints.Audio {
		track, err := s.newTrack(audioParams())
		if err != nil {
			return nil, fmt.Errorf("acquire audio: %w", err)
		}
		tracks = append(tracks, track)
	}
	if constraints.Video {
		track, err := s.newTrack(videoParams())
		if err != nil {
			for _, t := range tracks {
				t.Stop()
			}
			return nil, fmt.Errorf("acquire video: %w", err)
		}
		tracks = append(tracks, track)
	}
	s.log.Debug("acquired media", "tracks", len(tracks), "stream", s.streamID)
	return tracks, nil
}

type trackParams struct {
	id       string
	kind     string
	codec    pion.RTPCodecCapability
	interval time.Duration
	payload  func(seq int) []byte
}

func audioParams() trackParams {
	return trackParams{
		id:   "audio",
		kind: "audio",
		codec: pion.RTPCodecCapability{
			MimeType:  pion.MimeTypeOpus,
			ClockRate: 48000,
			Channels:  2,
		},
		interval: audioFrameInterval,
		payload:  audioFrame,
	}
}

func videoParams() trackParams {
	return trackParams{
		id:   "video",
		kind: "video",
		codec: pion.RTPCodecCapability{
			MimeType:  pion.MimeTypeVP8,
			ClockRate: 90000,
		},
		interval: videoFrameInterval,
		payload:  videoFrame,
	}
}

// audioFrame returns a small deterministic frame. The bytes are not a
// decodable opus stream, only a stand-in payload with some variation
// so packets are distinguishable on the wire.
func audioFrame(seq int) []byte {
	frame := make([]byte, 24)
	for i := range frame {
		frame[i] = byte(seq + i)
	}
	return frame
}

func videoFrame(seq int) []byte {
	frame := make([]byte, 256)
	for i := range frame {
		frame[i] = byte(seq*7 + i)
	}
	return frame
}
