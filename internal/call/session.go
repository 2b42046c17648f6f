// Package call establishes a bidirectional real-time media session between
// exactly two participants over a signaling channel, using the WebRTC
// offer/answer/ICE exchange with the perfect negotiation pattern: fixed
// polite/impolite roles decide which peer yields when both sides try to
// (re)negotiate at once.
//
// A Session owns at most one peer connection handle and one signaling
// channel at a time. All state lives on a single event loop fed by channel
// messages, handle events, and consumer commands, so no transition ever
// races another.
package call

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/tincan-labs/tincan/internal/config"
	"github.com/tincan-labs/tincan/internal/signaling"
)

// Config is everything a Session needs at construction.
type Config struct {
	// Endpoint is the signaling server ws(s) URL. Ignored when Dial is set.
	Endpoint string

	// Room is the room identifier sent in the join envelope.
	Room string

	// Polite optionally overrides the politeness role computed at join
	// time. The first participant in a room is normally polite; a
	// participant joining a non-empty room is impolite. The override only
	// affects collision resolution; who sends the first offer still
	// follows room occupancy.
	Polite *bool

	// ICEServers for the engine. Defaults come from the config package.
	ICEServers []config.ICEServer

	// ForceRelay restricts ICE to TURN relay candidates.
	ForceRelay bool

	// Media selects which local tracks to acquire. Nil means audio+video.
	Media *MediaConstraints

	// Source provides local tracks. Required.
	Source MediaSource

	// Engine creates peer connection handles. Required.
	Engine Engine

	// Callbacks is the consumer notification surface.
	Callbacks Callbacks

	// Logger for session internals. Nil means slog.Default().
	Logger *slog.Logger

	// Dial opens the signaling channel. Nil means dialing Endpoint with
	// the signaling client.
	Dial func(endpoint string) (Channel, error)
}

type cmdKind int

const (
	cmdConnect cmdKind = iota
	cmdHangup
	cmdMuteAudio
	cmdMuteVideo
	cmdClose
)

type command struct {
	kind  cmdKind
	muted bool
	reply chan error
}

// Session is the peer connection signaling and negotiation manager. One
// Session handles one call at a time; after Hangup it returns to idle and
// can Connect again. Close ends the manager for good.
type Session struct {
	cfg   Config
	log   *slog.Logger
	media MediaConstraints

	cmds      chan command
	events    chan HandleEvent
	done      chan struct{}
	closeOnce sync.Once

	// Everything below is owned by the run loop.
	state        State
	callbacks    Callbacks
	channel      Channel
	incoming     <-chan *signaling.Envelope
	handle       Handle
	localPeerID  string
	remotePeerID string
	polite       bool

	makingOffer   bool
	ignoreOffer   bool
	hasRemoteDesc bool

	pendingCandidates []signaling.Candidate

	localTracks  []LocalTrack
	remoteTracks []RemoteTrack

	// Remote tracks observed before the connection is up are held back so
	// a non-empty remote set always implies a connected session.
	heldRemoteTracks []RemoteTrack
	surfaced         map[RemoteTrack]bool

	audioMuted bool
	videoMuted bool
}

// New validates cfg and starts the session's event loop. The session is
// idle until Connect.
func New(cfg Config) (*Session, error) {
	if cfg.Room == "" {
		return nil, errors.New("call: config needs a room")
	}
	if cfg.Engine == nil {
		return nil, errors.New("call: config needs an engine")
	}
	if cfg.Source == nil {
		return nil, errors.New("call: config needs a media source")
	}
	if cfg.Dial == nil && cfg.Endpoint == "" {
		return nil, errors.New("call: config needs a signaling endpoint")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	media := MediaConstraints{Audio: true, Video: true}
	if cfg.Media != nil {
		media = *cfg.Media
	}
	if len(cfg.ICEServers) == 0 {
		cfg.ICEServers = config.DefaultICEServers()
	}

	s := &Session{
		cfg:       cfg,
		log:       logger,
		media:     media,
		cmds:      make(chan command),
		events:    make(chan HandleEvent, 64),
		done:      make(chan struct{}),
		state:     StateIdle,
		callbacks: cfg.Callbacks,
		surfaced:  make(map[RemoteTrack]bool),
	}

	go s.run()
	return s, nil
}

// Connect acquires local media, opens the signaling channel, and joins the
// room. No-op when the session is not idle. Media or dial failure is
// terminal for the attempt: the session returns to idle and the error is
// both returned and surfaced through OnError. Never retried automatically.
func (s *Session) Connect() error {
	return s.do(command{kind: cmdConnect})
}

// Hangup tears the call down: destroys the handle, stops local tracks,
// closes the channel, and returns to idle. Idempotent from any state;
// only the first call from an active state emits a disconnect.
func (s *Session) Hangup() error {
	return s.do(command{kind: cmdHangup})
}

// SetAudioMuted toggles the local audio tracks without renegotiation. The
// flag also applies to tracks acquired later.
func (s *Session) SetAudioMuted(muted bool) error {
	return s.do(command{kind: cmdMuteAudio, muted: muted})
}

// SetVideoMuted toggles the local video tracks without renegotiation.
func (s *Session) SetVideoMuted(muted bool) error {
	return s.do(command{kind: cmdMuteVideo, muted: muted})
}

// Close hangs up and stops the event loop. The session is unusable after.
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.do(command{kind: cmdClose})
	})
	return err
}

// do submits a command to the run loop and waits for it to be processed.
func (s *Session) do(cmd command) error {
	cmd.reply = make(chan error, 1)
	select {
	case s.cmds <- cmd:
	case <-s.done:
		return ErrSessionClosed
	}
	select {
	case err := <-cmd.reply:
		return err
	case <-s.done:
		return ErrSessionClosed
	}
}

// run is the session's single execution context. Every state transition
// happens here, in delivery order.
func (s *Session) run() {
	for {
		select {
		case cmd := <-s.cmds:
			stop := s.handleCommand(cmd)
			if stop {
				close(s.done)
				return
			}

		case env, ok := <-s.incoming:
			if !ok {
				s.handleTransportClosed()
				continue
			}
			s.handleEnvelope(env)

		case ev := <-s.events:
			s.handleHandleEvent(ev)
		}
	}
}

func (s *Session) handleCommand(cmd command) (stop bool) {
	switch cmd.kind {
	case cmdConnect:
		cmd.reply <- s.connect()
	case cmdHangup:
		s.hangup(ReasonHangup, "hangup")
		cmd.reply <- nil
	case cmdMuteAudio:
		s.setMuted("audio", cmd.muted)
		cmd.reply <- nil
	case cmdMuteVideo:
		s.setMuted("video", cmd.muted)
		cmd.reply <- nil
	case cmdClose:
		s.hangup(ReasonHangup, "hangup")
		cmd.reply <- nil
		return true
	}
	return false
}

func (s *Session) connect() error {
	if s.state != StateIdle {
		s.log.Debug("connect ignored", "state", s.state)
		return nil
	}

	s.setState(StateConnecting, "connect")

	tracks, err := s.cfg.Source.Acquire(s.media)
	if err != nil {
		cerr := WrapError("acquire local media", s.state, ErrMediaUnavailable, err.Error())
		s.notifyError(cerr)
		s.setState(StateIdle, "media-failed")
		return cerr
	}
	s.localTracks = tracks
	s.applyMuteFlags()
	s.notifyLocalStream(tracks)

	ch, err := s.openChannel()
	if err != nil {
		cerr := NewError("open signaling channel", s.state, err)
		s.notifyError(cerr)
		s.stopLocalTracks()
		s.setState(StateIdle, "channel-failed")
		return cerr
	}
	s.channel = ch
	s.incoming = ch.Incoming()

	s.setState(StateSignaling, "channel-open")
	s.sendEnvelope(&signaling.Envelope{T: signaling.TypeJoin, RoomID: s.cfg.Room})
	return nil
}

func (s *Session) openChannel() (Channel, error) {
	if s.cfg.Dial != nil {
		return s.cfg.Dial(s.cfg.Endpoint)
	}
	client := signaling.NewClient(s.cfg.Endpoint)
	if err := client.Connect(); err != nil {
		return nil, err
	}
	return client, nil
}

// hangup tears everything down and returns to idle. reason is what the
// disconnect notification carries; trigger labels the state change.
func (s *Session) hangup(reason DisconnectReason, trigger string) {
	wasActive := s.state != StateIdle

	s.destroyHandle()
	s.stopLocalTracks()

	if s.channel != nil {
		s.channel.Close()
		s.channel = nil
	}
	s.incoming = nil
	s.localPeerID = ""
	s.remotePeerID = ""

	s.setState(StateIdle, trigger)
	if wasActive {
		s.notifyDisconnect(reason)
	}
}

// handleTransportClosed runs when the signaling connection dies out from
// under us. Transport loss is session loss; reconnection is the caller's
// concern.
func (s *Session) handleTransportClosed() {
	s.incoming = nil
	if s.state == StateIdle {
		return
	}
	s.notifyError(NewError("signaling transport", s.state, ErrTransportClosed))
	s.channel = nil
	s.hangup(ReasonError, "transport-closed")
}

func (s *Session) setMuted(kind string, muted bool) {
	if kind == "audio" {
		s.audioMuted = muted
	} else {
		s.videoMuted = muted
	}
	for _, t := range s.localTracks {
		if t.Kind() == kind {
			t.SetEnabled(!muted)
		}
	}
	s.sendMuteUpdate(kind, muted)
}

// applyMuteFlags initializes freshly acquired tracks from the session's
// mute flags so a mute set before connect (or between calls) sticks.
func (s *Session) applyMuteFlags() {
	for _, t := range s.localTracks {
		switch t.Kind() {
		case "audio":
			t.SetEnabled(!s.audioMuted)
		case "video":
			t.SetEnabled(!s.videoMuted)
		}
	}
}

// sendMuteUpdate tells the far side about a mute toggle over the control
// channel. Best-effort: the call works without it.
func (s *Session) sendMuteUpdate(kind string, muted bool) {
	if s.handle == nil {
		return
	}
	msg, err := NewControlMessage(ControlTypeMute, MutePayload{Kind: kind, Muted: muted})
	if err != nil {
		return
	}
	data, err := EncodeControl(msg)
	if err != nil {
		return
	}
	if err := s.handle.SendControl(data); err != nil {
		s.log.Debug("mute update not sent", "error", err)
	}
}

func (s *Session) handleControl(data []byte) {
	msg, err := DecodeControl(data)
	if err != nil {
		s.log.Warn("bad control message", "error", err)
		return
	}
	switch msg.Type {
	case ControlTypeMute:
		var mute MutePayload
		if err := msg.DecodePayload(&mute); err != nil {
			s.log.Warn("bad mute payload", "error", err)
			return
		}
		s.notifyPeerMuted(mute.Kind, mute.Muted)
	default:
		s.log.Debug("unknown control message", "type", msg.Type)
	}
}

func (s *Session) stopLocalTracks() {
	for _, t := range s.localTracks {
		if err := t.Stop(); err != nil {
			s.log.Debug("stop local track", "track", t.ID(), "error", err)
		}
	}
	s.localTracks = nil
}

// ensureHandle lazily creates the peer connection handle and attaches the
// local tracks. No-op when a handle already exists.
func (s *Session) ensureHandle() error {
	if s.handle != nil {
		return nil
	}

	h, err := s.cfg.Engine.Open(HandleConfig{
		ICEServers: s.cfg.ICEServers,
		ForceRelay: s.cfg.ForceRelay,
		Events:     s.events,
	})
	if err != nil {
		return err
	}
	s.handle = h
	s.hasRemoteDesc = false
	s.makingOffer = false
	s.ignoreOffer = false

	for _, t := range s.localTracks {
		if err := h.AddTrack(t); err != nil {
			s.log.Warn("add local track failed", "track", t.ID(), "error", err)
		}
	}
	return nil
}

// destroyHandle closes the handle and clears all per-handle negotiation
// state. Remote tracks are dropped, never stopped: they were never ours.
func (s *Session) destroyHandle() {
	if s.handle != nil {
		if err := s.handle.Close(); err != nil {
			s.log.Debug("close handle", "error", err)
		}
		s.handle = nil
	}

	s.makingOffer = false
	s.ignoreOffer = false
	s.hasRemoteDesc = false
	s.pendingCandidates = nil

	for _, t := range s.remoteTracks {
		s.notifyTrackRemoved(t)
	}
	s.remoteTracks = nil
	s.heldRemoteTracks = nil
	s.surfaced = make(map[RemoteTrack]bool)
}

func (s *Session) sendDescription(d signaling.Description) {
	env := &signaling.Envelope{
		T:           signaling.TypeSDP,
		From:        s.localPeerID,
		Description: &d,
	}
	if s.remotePeerID != "" {
		env.To = s.remotePeerID
	}
	s.sendEnvelope(env)
}

func (s *Session) sendCandidate(c signaling.Candidate) {
	env := &signaling.Envelope{
		T:         signaling.TypeICE,
		From:      s.localPeerID,
		Candidate: &c,
	}
	if s.remotePeerID != "" {
		env.To = s.remotePeerID
	}
	s.sendEnvelope(env)
}

// sendEnvelope writes to the channel. A send failure is a transport-level
// error: surfaced, but no state change — the channel's own close decides
// the session's fate.
func (s *Session) sendEnvelope(env *signaling.Envelope) {
	if s.channel == nil {
		return
	}
	if err := s.channel.Send(env); err != nil {
		s.notifyError(NewError(fmt.Sprintf("send %s", env.T), s.state, err))
	}
}

func (s *Session) addRemoteTrack(t RemoteTrack) {
	if t == nil {
		return
	}
	if s.state != StateConnected {
		s.heldRemoteTracks = append(s.heldRemoteTracks, t)
		return
	}
	s.remoteTracks = append(s.remoteTracks, t)
	if !s.surfaced[t] {
		s.surfaced[t] = true
		s.notifyTrackAdded(t)
	}
	if len(s.remoteTracks) == 1 {
		s.notifyRemoteStream(s.remoteTracks)
	}
}

// releaseHeldTracks surfaces tracks that arrived before the connection
// was up. Called on entering connected.
func (s *Session) releaseHeldTracks() {
	if len(s.heldRemoteTracks) == 0 {
		return
	}
	held := s.heldRemoteTracks
	s.heldRemoteTracks = nil

	hadTracks := len(s.remoteTracks) > 0
	for _, t := range held {
		s.remoteTracks = append(s.remoteTracks, t)
		if !s.surfaced[t] {
			s.surfaced[t] = true
			s.notifyTrackAdded(t)
		}
	}
	if !hadTracks && len(s.remoteTracks) > 0 {
		s.notifyRemoteStream(s.remoteTracks)
	}
}

// holdRemoteTracks pulls the remote set back out of sight while the
// connection is down, without end-of-track notifications: the tracks may
// come back if ICE self-heals.
func (s *Session) holdRemoteTracks() {
	if len(s.remoteTracks) == 0 {
		return
	}
	s.heldRemoteTracks = append(s.remoteTracks, s.heldRemoteTracks...)
	s.remoteTracks = nil
}

func (s *Session) removeRemoteTrack(t RemoteTrack) {
	for i, cur := range s.remoteTracks {
		if cur == t {
			s.remoteTracks = append(s.remoteTracks[:i], s.remoteTracks[i+1:]...)
			delete(s.surfaced, t)
			s.notifyTrackRemoved(t)
			return
		}
	}
	for i, cur := range s.heldRemoteTracks {
		if cur == t {
			s.heldRemoteTracks = append(s.heldRemoteTracks[:i], s.heldRemoteTracks[i+1:]...)
			delete(s.surfaced, t)
			return
		}
	}
}
