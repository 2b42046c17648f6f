package ui

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// TestTruncateString verifies long identifiers are shortened with an
// ellipsis and short ones pass through untouched.
func TestTruncateString(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"short", 10, "short"},
		{"exactly-ten", 11, "exactly-ten"},
		{"a-very-long-peer-identifier", 10, "a-very-..."},
		{"abcdef", 3, "abc"},
	}
	for _, tt := range tests {
		if got := truncateString(tt.in, tt.max); got != tt.want {
			t.Errorf("truncateString(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
		}
	}
}

// TestFormatCallDuration verifies the elapsed-time display drops the hour
// field for short calls and includes it once a call passes the hour mark.
func TestFormatCallDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{45 * time.Second, "00:45"},
		{5*time.Minute + 3*time.Second, "05:03"},
		{time.Hour + 2*time.Minute + 3*time.Second, "1:02:03"},
	}
	for _, tt := range tests {
		if got := formatCallDuration(tt.d); got != tt.want {
			t.Errorf("formatCallDuration(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}

// TestCallModelFollowsSessionPhases verifies state-change updates move the
// screen through waiting, negotiating, and live.
func TestCallModelFollowsSessionPhases(t *testing.T) {
	m := NewCallModel("testroom", "call.example.org", CallActions{})
	if m.phase != PhaseConnecting {
		t.Fatalf("initial phase = %v, want PhaseConnecting", m.phase)
	}

	m.Update(CallUpdate{Type: UpdatePhase, Message: "signaling"})
	if m.phase != PhaseWaiting {
		t.Errorf("after signaling: phase = %v, want PhaseWaiting", m.phase)
	}

	m.Update(CallUpdate{Type: UpdatePhase, Message: "negotiating"})
	if m.phase != PhaseNegotiating {
		t.Errorf("after negotiating: phase = %v, want PhaseNegotiating", m.phase)
	}

	m.Update(CallUpdate{Type: UpdatePhase, Message: "connected"})
	if m.phase != PhaseLive {
		t.Errorf("after connected: phase = %v, want PhaseLive", m.phase)
	}
	if m.connectedAt.IsZero() {
		t.Error("connectedAt not stamped on going live")
	}
}

// TestCallModelPeerLeftResetsToWaiting verifies a departed peer clears all
// peer-scoped screen state and returns the screen to waiting, since the
// session stays in the room for a successor.
func TestCallModelPeerLeftResetsToWaiting(t *testing.T) {
	m := NewCallModel("testroom", "call.example.org", CallActions{})
	m.Update(CallUpdate{Type: UpdatePhase, Message: "connected"})
	m.Update(CallUpdate{Type: UpdatePeerJoined, Message: "peer-1"})
	m.Update(CallUpdate{Type: UpdateRemoteTrack, Kind: "audio"})
	m.Update(CallUpdate{Type: UpdatePeerMuted, Kind: "audio", Muted: true})

	m.Update(CallUpdate{Type: UpdatePeerLeft, Message: "peer-1"})

	if m.phase != PhaseWaiting {
		t.Errorf("phase = %v, want PhaseWaiting", m.phase)
	}
	if m.peerID != "" {
		t.Errorf("peerID = %q, want empty", m.peerID)
	}
	if len(m.remoteKinds) != 0 {
		t.Errorf("remoteKinds = %v, want empty", m.remoteKinds)
	}
	if m.peerAudioMuted {
		t.Error("peerAudioMuted still set after peer left")
	}
}

// TestCallModelEndedUpdateQuits verifies the ended update flips the screen
// into its terminal phase and requests shutdown, choosing the failed phase
// when an error was surfaced first.
func TestCallModelEndedUpdateQuits(t *testing.T) {
	m := NewCallModel("testroom", "call.example.org", CallActions{})
	if quit := m.handleUpdate(CallUpdate{Type: UpdateEnded, Message: "hangup"}); !quit {
		t.Error("clean ended update did not request quit")
	}
	if m.phase != PhaseEnded {
		t.Errorf("phase = %v, want PhaseEnded", m.phase)
	}

	m = NewCallModel("testroom", "call.example.org", CallActions{})
	m.handleUpdate(CallUpdate{Type: UpdateCallError, Message: "ice failed"})
	if quit := m.handleUpdate(CallUpdate{Type: UpdateEnded, Message: "error"}); !quit {
		t.Error("error ended update did not request quit")
	}
	if m.phase != PhaseFailed {
		t.Errorf("phase = %v, want PhaseFailed", m.phase)
	}
}

// TestCallModelMuteKeyFlipsLocalFlag verifies the mute keys flip the local
// indicator immediately, without waiting on the session round trip.
func TestCallModelMuteKeyFlipsLocalFlag(t *testing.T) {
	m := NewCallModel("testroom", "call.example.org", CallActions{})

	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'m'}})
	if !m.audioMuted {
		t.Error("m key did not set audioMuted")
	}
	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'m'}})
	if m.audioMuted {
		t.Error("second m key did not clear audioMuted")
	}

	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'v'}})
	if !m.videoMuted {
		t.Error("v key did not set videoMuted")
	}
}

// TestCallModelPostNeverBlocks verifies Post drops updates instead of
// blocking once the queue is full, since it runs on the session loop.
func TestCallModelPostNeverBlocks(t *testing.T) {
	m := NewCallModel("testroom", "call.example.org", CallActions{})
	for i := 0; i < cap(m.updateChan)+10; i++ {
		m.Post(CallUpdate{Type: UpdateICEState, Message: "checking"})
	}
	if got := len(m.updateChan); got != cap(m.updateChan) {
		t.Errorf("queue length = %d, want %d", got, cap(m.updateChan))
	}
}

// TestCallSummaryView verifies the summary table carries the call facts and
// falls back sensibly when nothing connected.
func TestCallSummaryView(t *testing.T) {
	out := CallSummaryView(CallSummary{
		Room:        "silver-otter-comet",
		Peer:        "peer-42",
		Duration:    "1m30s",
		Reason:      "hangup",
		LocalAudio:  "on",
		LocalVideo:  "muted",
		RemoteMedia: []string{"audio", "video"},
	})
	for _, want := range []string{"silver-otter-comet", "peer-42", "1m30s", "hangup", "audio + video"} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}

	empty := CallSummaryView(CallSummary{Room: "lonelyroom"})
	if !strings.Contains(empty, "none") {
		t.Errorf("empty summary should report no received media:\n%s", empty)
	}
	if !strings.Contains(empty, "-") {
		t.Errorf("empty summary should dash out the peer:\n%s", empty)
	}
}

// TestRoomBanner verifies the banner shows what the far side needs to join.
func TestRoomBanner(t *testing.T) {
	banner := RoomBanner("silver-otter-comet", "call.example.org")
	if !strings.Contains(banner, "silver-otter-comet") {
		t.Errorf("banner missing room id:\n%s", banner)
	}
	if !strings.Contains(banner, "call.example.org") {
		t.Errorf("banner missing server:\n%s", banner)
	}
}

// TestStatusSpinnerStopSafety verifies Stop is safe to call repeatedly,
// from any point in the lifecycle. The headless call path stops the same
// spinner from both the main flow and a session callback.
func TestStatusSpinnerStopSafety(t *testing.T) {
	sp := NewConnectionSpinner("connecting")
	sp.Start()
	sp.Stop()
	sp.Stop()

	sp = NewWaitingSpinner("waiting")
	sp.Stop()
	sp.Start() // must not draw after Stop
	sp.Stop()
}
