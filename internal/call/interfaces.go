package call

import (
	"github.com/tincan-labs/tincan/internal/config"
	"github.com/tincan-labs/tincan/internal/signaling"
)

// Channel is the signaling transport owned by a session. Incoming is
// closed when the transport dies, which the session treats as session
// loss. A session closes its channel exactly once, on hangup.
type Channel interface {
	Send(env *signaling.Envelope) error
	Incoming() <-chan *signaling.Envelope
	Close() error
}

// LocalTrack is an outbound media track. Local tracks are exclusively
// owned by the session and stopped on teardown.
type LocalTrack interface {
	ID() string
	Kind() string // "audio" or "video"
	StreamID() string
	SetEnabled(enabled bool)
	Enabled() bool
	Stop() error
}

// RemoteTrack is an inbound track observed from the remote peer. Remote
// tracks are borrowed references: cleared on teardown, never stopped.
type RemoteTrack interface {
	ID() string
	Kind() string
	StreamID() string
}

// MediaConstraints selects which local tracks to acquire.
type MediaConstraints struct {
	Audio bool
	Video bool
}

// MediaSource provides the session's outbound tracks.
type MediaSource interface {
	Acquire(c MediaConstraints) ([]LocalTrack, error)
}

// Handle is the capability surface of one peer connection, satisfied by
// any WebRTC engine binding. The negotiation algorithm only ever touches
// this interface.
//
// CreateOffer and CreateAnswer produce and install the local description,
// returning it for sending. SetRemoteDescription must accept a colliding
// remote offer while a local offer is pending (rolling back the local one
// if the underlying engine needs that to be explicit).
type Handle interface {
	AddTrack(t LocalTrack) error
	CreateOffer() (signaling.Description, error)
	CreateAnswer() (signaling.Description, error)
	SetRemoteDescription(d signaling.Description) error
	AddCandidate(c signaling.Candidate) error
	SignalingStable() bool
	SendControl(data []byte) error
	Close() error
}

// HandleEventKind discriminates handle events.
type HandleEventKind int

const (
	EventNegotiationNeeded HandleEventKind = iota
	EventLocalCandidate
	EventTrack
	EventTrackEnded
	EventConnectionState
	EventICEState
	EventControlMessage
)

// HandleEvent is an asynchronous event emitted by a Handle onto the
// session's event channel. Source identifies the emitting handle so events
// from an already-destroyed handle can be discarded.
type HandleEvent struct {
	Kind      HandleEventKind
	Source    Handle
	Candidate *signaling.Candidate
	Track     RemoteTrack
	State     string
	Control   []byte
}

// HandleConfig configures a new handle.
type HandleConfig struct {
	ICEServers []config.ICEServer
	ForceRelay bool

	// Events receives the handle's events. The handle must never drop an
	// event; sends may block briefly if the session loop is busy.
	Events chan<- HandleEvent
}

// Engine creates peer connection handles.
type Engine interface {
	Open(cfg HandleConfig) (Handle, error)
}
