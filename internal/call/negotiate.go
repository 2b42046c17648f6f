package call

import "github.com/tincan-labs/tincan/internal/signaling"

// handleEnvelope dispatches one signaling message. Every path here ends in
// a state transition, a notification, or a deliberately ignored collision
// artifact; nothing escapes.
func (s *Session) handleEnvelope(env *signaling.Envelope) {
	switch env.T {
	case signaling.TypeJoined:
		s.handleJoined(env)
	case signaling.TypePeerJoined:
		s.handlePeerJoined(env)
	case signaling.TypePeerLeft:
		s.handlePeerLeft(env)
	case signaling.TypeSDP:
		s.handleRemoteDescription(env)
	case signaling.TypeICE:
		s.handleRemoteCandidate(env)
	case signaling.TypeError:
		s.notifyError(WrapError("signaling", s.state, ErrSignalingError, env.Message))
	default:
		s.log.Debug("unknown signaling envelope", "t", env.T)
	}
}

// handleJoined seeds the session's identity and role. The politeness rule:
// first into the room is polite, whoever joins a non-empty room is
// impolite and sends the first offer. The role never changes afterward.
func (s *Session) handleJoined(env *signaling.Envelope) {
	s.localPeerID = env.PeerID

	s.polite = len(env.Peers) == 0
	if s.cfg.Polite != nil {
		s.polite = *s.cfg.Polite
	}
	s.log.Info("joined room", "room", env.RoomID, "peer", s.localPeerID, "polite", s.polite, "occupants", len(env.Peers))

	if len(env.Peers) == 0 {
		return // alone; stay in signaling until someone arrives
	}

	s.remotePeerID = env.Peers[0]
	s.notifyPeerJoined(s.remotePeerID)

	if err := s.ensureHandle(); err != nil {
		s.notifyError(NewError("create peer connection", s.state, err))
		return
	}
	s.setState(StateNegotiating, "peer-present")
	s.sendOfferNow()
}

// handlePeerJoined records the newcomer and prepares the handle, but does
// not offer: the newcomer saw us in its joined message and initiates. A
// duplicate peer-joined is an idempotent refresh.
func (s *Session) handlePeerJoined(env *signaling.Envelope) {
	s.remotePeerID = env.PeerID
	s.notifyPeerJoined(env.PeerID)

	if err := s.ensureHandle(); err != nil {
		s.notifyError(NewError("create peer connection", s.state, err))
	}
}

func (s *Session) handlePeerLeft(env *signaling.Envelope) {
	if env.PeerID != "" && s.remotePeerID != "" && env.PeerID != s.remotePeerID {
		s.log.Debug("peer-left for unknown peer", "peer", env.PeerID)
		return
	}
	if s.remotePeerID == "" && s.handle == nil {
		return
	}

	s.notifyPeerLeft(env.PeerID)

	hadHandle := s.handle != nil
	s.destroyHandle()
	s.remotePeerID = ""
	s.setState(StateSignaling, "peer-left")
	if hadHandle {
		s.notifyDisconnect(ReasonPeerLeft)
	}
}

// handleRemoteDescription is the collision-sensitive half of perfect
// negotiation. An offer colliding with our own in-flight offer is dropped
// by the impolite peer and absorbed by the polite one; answers always
// apply.
func (s *Session) handleRemoteDescription(env *signaling.Envelope) {
	if env.Description == nil {
		s.log.Warn("sdp envelope without description")
		return
	}
	desc := *env.Description

	// A description can precede peer-joined; the sender is our peer.
	if s.remotePeerID == "" && env.From != "" {
		s.remotePeerID = env.From
	}
	if err := s.ensureHandle(); err != nil {
		s.notifyError(NewError("create peer connection", s.state, err))
		return
	}

	offerCollision := desc.Type == signaling.SDPOffer &&
		(s.makingOffer || !s.handle.SignalingStable())

	s.ignoreOffer = !s.polite && offerCollision
	if s.ignoreOffer {
		s.log.Debug("glare: dropping colliding offer", "from", env.From)
		return
	}

	if desc.Type == signaling.SDPOffer {
		if s.state == StateSignaling {
			s.setState(StateNegotiating, "remote-offer")
		}
		s.notifyNegotiationStart()
	}

	if err := s.handle.SetRemoteDescription(desc); err != nil {
		// Apply failures are non-fatal: ICE retries cover the gap.
		s.log.Warn("set remote description failed", "type", desc.Type, "error", err)
		return
	}
	s.hasRemoteDesc = true
	s.flushPendingCandidates(offerCollision && s.polite)

	if desc.Type == signaling.SDPOffer {
		answer, err := s.handle.CreateAnswer()
		if err != nil {
			s.log.Warn("create answer failed", "error", err)
			return
		}
		s.sendDescription(answer)
	}
	s.notifyNegotiationComplete()
}

// handleRemoteCandidate applies a candidate, or queues it while the handle
// has no remote description yet. The queue drains exactly once per handle.
func (s *Session) handleRemoteCandidate(env *signaling.Envelope) {
	if env.Candidate == nil {
		return
	}
	cand := *env.Candidate

	if s.handle == nil || !s.hasRemoteDesc {
		s.pendingCandidates = append(s.pendingCandidates, cand)
		return
	}

	if err := s.handle.AddCandidate(cand); err != nil {
		if s.ignoreOffer {
			return // expected noise from the offer we just dropped
		}
		s.log.Warn("add ice candidate failed", "error", err)
	}
}

// flushPendingCandidates drains the queue in arrival order the moment a
// remote description lands. collisionResolved marks a flush right after a
// polite rollback, where stale candidates failing is expected.
func (s *Session) flushPendingCandidates(collisionResolved bool) {
	if len(s.pendingCandidates) == 0 {
		return
	}
	queued := s.pendingCandidates
	s.pendingCandidates = nil

	for _, c := range queued {
		if err := s.handle.AddCandidate(c); err != nil {
			if collisionResolved {
				continue
			}
			s.log.Warn("add queued ice candidate failed", "error", err)
		}
	}
}

// sendOfferNow produces and sends a local offer. makingOffer guards the
// window so a colliding remote offer is recognized; it resets
// unconditionally so a failed offer can never wedge collision detection.
func (s *Session) sendOfferNow() {
	if s.state == StateSignaling {
		s.setState(StateNegotiating, "local-offer")
	}
	s.makingOffer = true
	s.notifyNegotiationStart()

	offer, err := s.handle.CreateOffer()
	if err != nil {
		s.makingOffer = false
		s.log.Warn("create offer failed", "error", err)
		return
	}
	s.sendDescription(offer)
	s.makingOffer = false
}

// handleHandleEvent dispatches one peer-connection event. Events from a
// handle that is no longer current are dropped: their effects are moot.
func (s *Session) handleHandleEvent(ev HandleEvent) {
	if s.handle == nil || ev.Source != s.handle {
		s.log.Debug("dropping event from stale handle", "kind", ev.Kind)
		return
	}

	switch ev.Kind {
	case EventNegotiationNeeded:
		s.sendOfferNow()

	case EventLocalCandidate:
		if ev.Candidate == nil {
			return
		}
		s.notifyICECandidate(*ev.Candidate)
		s.sendCandidate(*ev.Candidate)

	case EventTrack:
		s.addRemoteTrack(ev.Track)

	case EventTrackEnded:
		s.removeRemoteTrack(ev.Track)

	case EventConnectionState:
		s.handleConnectionState(ev.State)

	case EventICEState:
		s.notifyICEState(ev.State)

	case EventControlMessage:
		s.handleControl(ev.Control)
	}
}

// handleConnectionState reacts to the handle's aggregate connection state.
// "disconnected" keeps the handle alive — ICE may self-heal; "failed" is
// surfaced but resolves nothing by itself.
func (s *Session) handleConnectionState(state string) {
	s.log.Debug("peer connection state", "state", state)

	switch state {
	case "connected":
		if s.state != StateConnected {
			s.setState(StateConnected, "connected")
			s.notifyConnect()
			s.releaseHeldTracks()
		}

	case "disconnected":
		if s.state == StateConnected {
			s.holdRemoteTracks()
			s.setState(StateSignaling, "ice-disconnected")
		}

	case "failed":
		s.notifyError(WrapError("peer connection", s.state, ErrICEFailed, "connectivity lost"))
	}
}
