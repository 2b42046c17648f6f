package call

import (
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/tincan-labs/tincan/internal/signaling"
)

// fakeChannel is an in-memory signaling channel the test feeds directly.
type fakeChannel struct {
	incoming chan *signaling.Envelope

	mu      sync.Mutex
	sent    []*signaling.Envelope
	closes  int
	sendErr error
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{incoming: make(chan *signaling.Envelope)}
}

func (c *fakeChannel) Send(env *signaling.Envelope) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sendErr != nil {
		return c.sendErr
	}
	c.sent = append(c.sent, env)
	return nil
}

func (c *fakeChannel) Incoming() <-chan *signaling.Envelope { return c.incoming }

func (c *fakeChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closes++
	return nil
}

func (c *fakeChannel) setSendErr(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sendErr = err
}

func (c *fakeChannel) closeCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closes
}

func (c *fakeChannel) sentOfType(t string) []*signaling.Envelope {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []*signaling.Envelope
	for _, env := range c.sent {
		if env.T == t {
			out = append(out, env)
		}
	}
	return out
}

// fakeHandle models the signaling-state side of a peer connection: local
// offers leave stable, remote answers restore it, and every mutation is
// recorded for assertions.
type fakeHandle struct {
	events chan<- HandleEvent

	mu                sync.Mutex
	stable            bool
	offers            int
	answers           int
	remoteDescs       []signaling.Description
	candidates        []signaling.Candidate
	candidateAttempts int
	controlMsgs       [][]byte
	addedTracks       []string
	closed            bool

	offerErr     error
	answerErr    error
	remoteErr    error
	candidateErr error
}

func newFakeHandle() *fakeHandle {
	return &fakeHandle{stable: true}
}

func (h *fakeHandle) AddTrack(t LocalTrack) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.addedTracks = append(h.addedTracks, t.ID())
	return nil
}

func (h *fakeHandle) CreateOffer() (signaling.Description, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.offerErr != nil {
		return signaling.Description{}, h.offerErr
	}
	h.offers++
	h.stable = false
	return signaling.Description{Type: signaling.SDPOffer, SDP: fmt.Sprintf("fake-offer-%d", h.offers)}, nil
}

func (h *fakeHandle) CreateAnswer() (signaling.Description, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.answerErr != nil {
		return signaling.Description{}, h.answerErr
	}
	h.answers++
	h.stable = true
	return signaling.Description{Type: signaling.SDPAnswer, SDP: fmt.Sprintf("fake-answer-%d", h.answers)}, nil
}

func (h *fakeHandle) SetRemoteDescription(d signaling.Description) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.remoteErr != nil {
		return h.remoteErr
	}
	h.remoteDescs = append(h.remoteDescs, d)
	h.stable = d.Type == signaling.SDPAnswer
	return nil
}

func (h *fakeHandle) AddCandidate(c signaling.Candidate) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.candidateAttempts++
	if h.candidateErr != nil {
		return h.candidateErr
	}
	h.candidates = append(h.candidates, c)
	return nil
}

func (h *fakeHandle) SignalingStable() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stable
}

func (h *fakeHandle) SendControl(data []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.controlMsgs = append(h.controlMsgs, data)
	return nil
}

func (h *fakeHandle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	return nil
}

// emit queues an event on the owning session's loop, tagged with this
// handle as source.
func (h *fakeHandle) emit(ev HandleEvent) {
	ev.Source = h
	h.events <- ev
}

func (h *fakeHandle) setCandidateErr(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.candidateErr = err
}

func (h *fakeHandle) offerCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.offers
}

func (h *fakeHandle) answerCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.answers
}

func (h *fakeHandle) remoteCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.remoteDescs)
}

func (h *fakeHandle) lastRemoteType() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.remoteDescs) == 0 {
		return ""
	}
	return h.remoteDescs[len(h.remoteDescs)-1].Type
}

func (h *fakeHandle) candidateList() []signaling.Candidate {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]signaling.Candidate(nil), h.candidates...)
}

func (h *fakeHandle) attemptCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.candidateAttempts
}

func (h *fakeHandle) controlCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.controlMsgs)
}

func (h *fakeHandle) lastControl() []byte {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.controlMsgs) == 0 {
		return nil
	}
	return h.controlMsgs[len(h.controlMsgs)-1]
}

func (h *fakeHandle) isClosed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closed
}

type fakeEngine struct {
	mu      sync.Mutex
	handles []*fakeHandle
	openErr error
}

func (e *fakeEngine) Open(cfg HandleConfig) (Handle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.openErr != nil {
		return nil, e.openErr
	}
	h := newFakeHandle()
	h.events = cfg.Events
	e.handles = append(e.handles, h)
	return h, nil
}

func (e *fakeEngine) handleCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.handles)
}

func (e *fakeEngine) handleAt(i int) *fakeHandle {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.handles[i]
}

type fakeTrack struct {
	id       string
	kind     string
	streamID string

	mu      sync.Mutex
	enabled bool
	stopped bool
}

func (t *fakeTrack) ID() string       { return t.id }
func (t *fakeTrack) Kind() string     { return t.kind }
func (t *fakeTrack) StreamID() string { return t.streamID }

func (t *fakeTrack) SetEnabled(enabled bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.enabled = enabled
}

func (t *fakeTrack) Enabled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.enabled
}

func (t *fakeTrack) Stop() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped = true
	return nil
}

func (t *fakeTrack) isStopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}

type fakeSource struct {
	mu       sync.Mutex
	err      error
	acquires int
	tracks   []*fakeTrack
}

func (s *fakeSource) Acquire(c MediaConstraints) ([]LocalTrack, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	s.acquires++
	s.tracks = nil
	var out []LocalTrack
	if c.Audio {
		t := &fakeTrack{id: "local-audio", kind: "audio", streamID: "local", enabled: true}
		s.tracks = append(s.tracks, t)
		out = append(out, t)
	}
	if c.Video {
		t := &fakeTrack{id: "local-video", kind: "video", streamID: "local", enabled: true}
		s.tracks = append(s.tracks, t)
		out = append(out, t)
	}
	return out, nil
}

func (s *fakeSource) acquireCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.acquires
}

func (s *fakeSource) trackByKind(kind string) *fakeTrack {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.tracks {
		if t.kind == kind {
			return t
		}
	}
	return nil
}

func (s *fakeSource) currentTracks() []*fakeTrack {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*fakeTrack(nil), s.tracks...)
}

type fakeRemoteTrack struct {
	id       string
	kind     string
	streamID string
}

func (t *fakeRemoteTrack) ID() string       { return t.id }
func (t *fakeRemoteTrack) Kind() string     { return t.kind }
func (t *fakeRemoteTrack) StreamID() string { return t.streamID }

// recorder captures every notification for later assertions. Callbacks
// run on the session loop, tests read from their own goroutine.
type recorder struct {
	mu            sync.Mutex
	states        []string
	connects      int
	disconnects   []DisconnectReason
	errs          []error
	errStates     []State
	peersJoined   []string
	peersLeft     []string
	negStarts     int
	negCompletes  int
	tracksAdded   []string
	tracksRemoved []string
	localStreams  int
	remoteStreams int
	iceStates     []string
	peerMutes     []string
	candidates    []signaling.Candidate
}

func (r *recorder) callbacks() Callbacks {
	return Callbacks{
		OnStateChange: func(from, to State, reason string) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.states = append(r.states, fmt.Sprintf("%s>%s:%s", from, to, reason))
		},
		OnConnect: func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.connects++
		},
		OnDisconnect: func(reason DisconnectReason) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.disconnects = append(r.disconnects, reason)
		},
		OnLocalStream: func(tracks []LocalTrack) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.localStreams++
		},
		OnRemoteStream: func(tracks []RemoteTrack) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.remoteStreams++
		},
		OnTrackAdded: func(track RemoteTrack, streamID string) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.tracksAdded = append(r.tracksAdded, track.ID())
		},
		OnTrackRemoved: func(track RemoteTrack) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.tracksRemoved = append(r.tracksRemoved, track.ID())
		},
		OnPeerJoined: func(peerID string) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.peersJoined = append(r.peersJoined, peerID)
		},
		OnPeerLeft: func(peerID string) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.peersLeft = append(r.peersLeft, peerID)
		},
		OnNegotiationStart: func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.negStarts++
		},
		OnNegotiationComplete: func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.negCompletes++
		},
		OnICECandidate: func(c signaling.Candidate) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.candidates = append(r.candidates, c)
		},
		OnICEStateChange: func(state string) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.iceStates = append(r.iceStates, state)
		},
		OnPeerMuted: func(kind string, muted bool) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.peerMutes = append(r.peerMutes, fmt.Sprintf("%s:%v", kind, muted))
		},
		OnError: func(err error, state State) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.errs = append(r.errs, err)
			r.errStates = append(r.errStates, state)
		},
	}
}

func (r *recorder) stateSeq() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.states...)
}

func (r *recorder) hasTransition(want string) bool {
	for _, s := range r.stateSeq() {
		if s == want {
			return true
		}
	}
	return false
}

func (r *recorder) connectCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.connects
}

func (r *recorder) disconnectList() []DisconnectReason {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]DisconnectReason(nil), r.disconnects...)
}

func (r *recorder) errorList() []error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]error(nil), r.errs...)
}

func (r *recorder) errStateList() []State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]State(nil), r.errStates...)
}

func (r *recorder) joinedList() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.peersJoined...)
}

func (r *recorder) leftList() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.peersLeft...)
}

func (r *recorder) negStartCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.negStarts
}

func (r *recorder) negCompleteCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.negCompletes
}

func (r *recorder) addedList() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.tracksAdded...)
}

func (r *recorder) removedList() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.tracksRemoved...)
}

func (r *recorder) remoteStreamCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.remoteStreams
}

func (r *recorder) iceList() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.iceStates...)
}

func (r *recorder) muteList() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.peerMutes...)
}

func (r *recorder) candidateCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.candidates)
}

// fixture wires a session to fakes for everything it touches.
type fixture struct {
	session *Session
	channel *fakeChannel
	engine  *fakeEngine
	source  *fakeSource
	rec     *recorder
}

func newFixture(t *testing.T, mutate ...func(*Config)) *fixture {
	t.Helper()
	f := &fixture{
		channel: newFakeChannel(),
		engine:  &fakeEngine{},
		source:  &fakeSource{},
		rec:     &recorder{},
	}
	cfg := Config{
		Room:      "test-room",
		Engine:    f.engine,
		Source:    f.source,
		Callbacks: f.rec.callbacks(),
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		Dial: func(string) (Channel, error) {
			return f.channel, nil
		},
	}
	for _, m := range mutate {
		m(&cfg)
	}
	s, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	f.session = s
	t.Cleanup(func() { s.Close() })
	return f
}

func (f *fixture) connect(t *testing.T) {
	t.Helper()
	if err := f.session.Connect(); err != nil {
		t.Fatalf("Connect: %v", err)
	}
}

// deliver feeds an envelope to the session as if the server sent it.
// Returns once the run loop has picked the envelope up.
func (f *fixture) deliver(t *testing.T, env *signaling.Envelope) {
	t.Helper()
	select {
	case f.channel.incoming <- env:
	case <-time.After(2 * time.Second):
		t.Fatal("session did not accept envelope")
	}
}

// settle guarantees all previously delivered envelopes are fully
// processed: the loop only picks up this no-op after finishing them.
func (f *fixture) settle(t *testing.T) {
	t.Helper()
	f.deliver(t, &signaling.Envelope{T: "noop"})
}

func (f *fixture) joined(t *testing.T, peers ...string) {
	t.Helper()
	f.deliver(t, &signaling.Envelope{
		T:      signaling.TypeJoined,
		RoomID: "test-room",
		PeerID: "self",
		Peers:  peers,
	})
}

func (f *fixture) handle(t *testing.T) *fakeHandle {
	t.Helper()
	waitFor(t, "handle creation", func() bool { return f.engine.handleCount() > 0 })
	return f.engine.handleAt(f.engine.handleCount() - 1)
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func boolPtr(b bool) *bool { return &b }
