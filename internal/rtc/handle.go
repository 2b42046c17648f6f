package rtc

import (
	"fmt"
	"log/slog"

	pion "github.com/pion/webrtc/v4"

	"github.com/tincan-labs/tincan/internal/call"
	"github.com/tincan-labs/tincan/internal/signaling"
)

// controlLabel names the out-of-band control channel. Both ends open it
// pre-negotiated on the same id, so it needs no offer/answer of its own
// and is usable as soon as transport comes up.
const controlLabel = "tincan-control"

type handle struct {
	pc      *pion.PeerConnection
	events  chan<- call.HandleEvent
	log     *slog.Logger
	control *pion.DataChannel
}

var _ call.Handle = (*handle)(nil)

// setup registers the pion callbacks and opens the control channel.
// Every callback is converted to a HandleEvent and queued for the
// session loop; nothing here touches session state directly.
func (h *handle) setup() error {
	negotiated := true
	var channelID uint16
	control, err := h.pc.CreateDataChannel(controlLabel, &pion.DataChannelInit{
		Negotiated: &negotiated,
		ID:         &channelID,
	})
	if err != nil {
		return fmt.Errorf("create control channel: %w", err)
	}
	h.control = control
	control.OnMessage(func(msg pion.DataChannelMessage) {
		h.emit(call.HandleEvent{Kind: call.EventControlMessage, Control: msg.Data})
	})

	h.pc.OnNegotiationNeeded(func() {
		h.emit(call.HandleEvent{Kind: call.EventNegotiationNeeded})
	})

	h.pc.OnICECandidate(func(c *pion.ICECandidate) {
		if c == nil {
			// Gathering finished.
			return
		}
		cand := candidateToWire(c.ToJSON())
		h.emit(call.HandleEvent{Kind: call.EventLocalCandidate, Candidate: &cand})
	})

	h.pc.OnTrack(func(remote *pion.TrackRemote, _ *pion.RTPReceiver) {
		track := newRemoteTrack(remote)
		h.log.Debug("remote track", "kind", track.Kind(), "id", track.ID())
		h.emit(call.HandleEvent{Kind: call.EventTrack, Track: track})
		go h.drainTrack(track, remote)
	})

	h.pc.OnConnectionStateChange(func(state pion.PeerConnectionState) {
		h.log.Debug("peer connection state", "state", state.String())
		h.emit(call.HandleEvent{Kind: call.EventConnectionState, State: state.String()})
	})

	h.pc.OnICEConnectionStateChange(func(state pion.ICEConnectionState) {
		h.emit(call.HandleEvent{Kind: call.EventICEState, State: state.String()})
	})

	return nil
}

func (h *handle) emit(ev call.HandleEvent) {
	ev.Source = h
	h.events <- ev
}

// drainTrack reads RTP until the track dies. The payload is not decoded
// here; consumers that want media attach their own readers.
func (h *handle) drainTrack(track call.RemoteTrack, remote *pion.TrackRemote) {
	for {
		if _, _, err := remote.ReadRTP(); err != nil {
			h.emit(call.HandleEvent{Kind: call.EventTrackEnded, Track: track})
			return
		}
	}
}

// drainSender consumes RTCP so the interceptor chain keeps running.
func (h *handle) drainSender(sender *pion.RTPSender) {
	buf := make([]byte, 1500)
	for {
		if _, _, err := sender.Read(buf); err != nil {
			return
		}
	}
}

func (h *handle) AddTrack(t call.LocalTrack) error {
	backed, ok := t.(interface{ RTPTrack() pion.TrackLocal })
	if !ok {
		return fmt.Errorf("track %q has no rtp backing", t.ID())
	}
	sender, err := h.pc.AddTrack(backed.RTPTrack())
	if err != nil {
		return fmt.Errorf("add track %q: %w", t.ID(), err)
	}
	go h.drainSender(sender)
	return nil
}

func (h *handle) CreateOffer() (signaling.Description, error) {
	offer, err := h.pc.CreateOffer(nil)
	if err != nil {
		return signaling.Description{}, fmt.Errorf("create offer: %w", err)
	}
	if err := h.pc.SetLocalDescription(offer); err != nil {
		return signaling.Description{}, fmt.Errorf("set local offer: %w", err)
	}
	return descriptionToWire(h.pc.LocalDescription()), nil
}

func (h *handle) CreateAnswer() (signaling.Description, error) {
	answer, err := h.pc.CreateAnswer(nil)
	if err != nil {
		return signaling.Description{}, fmt.Errorf("create answer: %w", err)
	}
	if err := h.pc.SetLocalDescription(answer); err != nil {
		return signaling.Description{}, fmt.Errorf("set local answer: %w", err)
	}
	return descriptionToWire(h.pc.LocalDescription()), nil
}

// SetRemoteDescription applies a remote description. When an offer
// arrives while a local offer is outstanding the local one is rolled
// back first, so a yielding peer can accept the remote offer in one
// call.
func (h *handle) SetRemoteDescription(d signaling.Description) error {
	desc, err := descriptionFromWire(d)
	if err != nil {
		return err
	}
	if desc.Type == pion.SDPTypeOffer && h.pc.SignalingState() != pion.SignalingStateStable {
		rollback := pion.SessionDescription{Type: pion.SDPTypeRollback}
		if err := h.pc.SetLocalDescription(rollback); err != nil {
			return fmt.Errorf("rollback local offer: %w", err)
		}
	}
	if err := h.pc.SetRemoteDescription(desc); err != nil {
		return fmt.Errorf("set remote %s: %w", d.Type, err)
	}
	return nil
}

func (h *handle) AddCandidate(c signaling.Candidate) error {
	return h.pc.AddICECandidate(candidateFromWire(c))
}

func (h *handle) SignalingStable() bool {
	return h.pc.SignalingState() == pion.SignalingStateStable
}

func (h *handle) SendControl(data []byte) error {
	if h.control == nil || h.control.ReadyState() != pion.DataChannelStateOpen {
		return call.ErrNoControlChannel
	}
	return h.control.Send(data)
}

func (h *handle) Close() error {
	return h.pc.Close()
}

type remoteTrack struct {
	id       string
	kind     string
	streamID string
}

func newRemoteTrack(remote *pion.TrackRemote) *remoteTrack {
	return &remoteTrack{
		id:       remote.ID(),
		kind:     remote.Kind().String(),
		streamID: remote.StreamID(),
	}
}

func (t *remoteTrack) ID() string       { return t.id }
func (t *remoteTrack) Kind() string     { return t.kind }
func (t *remoteTrack) StreamID() string { return t.streamID }
