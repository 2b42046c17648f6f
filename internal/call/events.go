package call

import "github.com/tincan-labs/tincan/internal/signaling"

// State is the session lifecycle state.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateSignaling
	StateNegotiating
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateSignaling:
		return "signaling"
	case StateNegotiating:
		return "negotiating"
	case StateConnected:
		return "connected"
	default:
		return "unknown"
	}
}

// DisconnectReason says why an active session ended or dropped.
type DisconnectReason string

const (
	ReasonHangup   DisconnectReason = "hangup"
	ReasonPeerLeft DisconnectReason = "peer-left"
	ReasonTimeout  DisconnectReason = "timeout"
	ReasonError    DisconnectReason = "error"
)

// Callbacks is the consumer notification surface. Every field is optional.
// Callbacks run synchronously on the session's event loop at the point the
// underlying event is observed; they must not call back into the session
// and must return promptly.
type Callbacks struct {
	OnStateChange         func(from, to State, reason string)
	OnConnect             func()
	OnDisconnect          func(reason DisconnectReason)
	OnLocalStream         func(tracks []LocalTrack)
	OnRemoteStream        func(tracks []RemoteTrack)
	OnTrackAdded          func(track RemoteTrack, streamID string)
	OnTrackRemoved        func(track RemoteTrack)
	OnPeerJoined          func(peerID string)
	OnPeerLeft            func(peerID string)
	OnNegotiationStart    func()
	OnNegotiationComplete func()
	OnICECandidate        func(c signaling.Candidate)
	OnICEStateChange      func(state string)
	OnPeerMuted           func(kind string, muted bool)
	OnError               func(err error, state State)
}

// setState transitions the session and notifies. No-op when from == to.
func (s *Session) setState(to State, reason string) {
	if s.state == to {
		return
	}
	from := s.state
	s.state = to
	s.log.Debug("state change", "from", from, "to", to, "reason", reason)
	if s.callbacks.OnStateChange != nil {
		s.callbacks.OnStateChange(from, to, reason)
	}
}

func (s *Session) notifyConnect() {
	if s.callbacks.OnConnect != nil {
		s.callbacks.OnConnect()
	}
}

func (s *Session) notifyDisconnect(reason DisconnectReason) {
	if s.callbacks.OnDisconnect != nil {
		s.callbacks.OnDisconnect(reason)
	}
}

func (s *Session) notifyLocalStream(tracks []LocalTrack) {
	if s.callbacks.OnLocalStream != nil {
		s.callbacks.OnLocalStream(tracks)
	}
}

func (s *Session) notifyRemoteStream(tracks []RemoteTrack) {
	if s.callbacks.OnRemoteStream != nil {
		s.callbacks.OnRemoteStream(tracks)
	}
}

func (s *Session) notifyTrackAdded(track RemoteTrack) {
	if s.callbacks.OnTrackAdded != nil {
		s.callbacks.OnTrackAdded(track, track.StreamID())
	}
}

func (s *Session) notifyTrackRemoved(track RemoteTrack) {
	if s.callbacks.OnTrackRemoved != nil {
		s.callbacks.OnTrackRemoved(track)
	}
}

func (s *Session) notifyPeerJoined(peerID string) {
	if s.callbacks.OnPeerJoined != nil {
		s.callbacks.OnPeerJoined(peerID)
	}
}

func (s *Session) notifyPeerLeft(peerID string) {
	if s.callbacks.OnPeerLeft != nil {
		s.callbacks.OnPeerLeft(peerID)
	}
}

func (s *Session) notifyNegotiationStart() {
	if s.callbacks.OnNegotiationStart != nil {
		s.callbacks.OnNegotiationStart()
	}
}

func (s *Session) notifyNegotiationComplete() {
	if s.callbacks.OnNegotiationComplete != nil {
		s.callbacks.OnNegotiationComplete()
	}
}

func (s *Session) notifyICECandidate(c signaling.Candidate) {
	if s.callbacks.OnICECandidate != nil {
		s.callbacks.OnICECandidate(c)
	}
}

func (s *Session) notifyICEState(state string) {
	if s.callbacks.OnICEStateChange != nil {
		s.callbacks.OnICEStateChange(state)
	}
}

func (s *Session) notifyPeerMuted(kind string, muted bool) {
	if s.callbacks.OnPeerMuted != nil {
		s.callbacks.OnPeerMuted(kind, muted)
	}
}

// notifyError surfaces err through OnError tagged with the current state.
func (s *Session) notifyError(err error) {
	s.log.Debug("session error", "error", err, "state", s.state)
	if s.callbacks.OnError != nil {
		s.callbacks.OnError(err, s.state)
	}
}
