package ui

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

// CallPhase is the screen's view of the call lifecycle.
type CallPhase int

const (
	PhaseConnecting CallPhase = iota
	PhaseWaiting
	PhaseNegotiating
	PhaseLive
	PhaseEnded
	PhaseFailed
)

// CallUpdate is a message sent from session callbacks to update the UI.
type CallUpdate struct {
	Type    CallUpdateType
	Message string
	Kind    string
	Muted   bool
}

type CallUpdateType int

const (
	UpdatePhase CallUpdateType = iota
	UpdatePeerJoined
	UpdatePeerLeft
	UpdateICEState
	UpdateRemoteTrack
	UpdatePeerMuted
	UpdateCallError
	UpdateEnded
)

// CallActions are the session operations the screen can trigger. The
// calls run off the UI loop so a busy session never freezes rendering.
type CallActions struct {
	SetAudioMuted func(muted bool) error
	SetVideoMuted func(muted bool) error
}

// CallModel is the Bubble Tea model for a live call screen.
type CallModel struct {
	room   string
	server string

	phase    CallPhase
	phaseMsg string
	peerID   string
	iceState string
	errMsg   string
	endedMsg string

	audioMuted     bool
	videoMuted     bool
	peerAudioMuted bool
	peerVideoMuted bool
	remoteKinds    map[string]bool

	connectedAt time.Time

	spinner    spinner.Model
	updateChan chan CallUpdate
	done       chan struct{}
	actions    CallActions

	width    int
	quitting bool
}

// NewCallModel creates the call screen.
func NewCallModel(room, server string, actions CallActions) *CallModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle

	return &CallModel{
		room:        room,
		server:      server,
		phase:       PhaseConnecting,
		phaseMsg:    "Connecting to signaling server...",
		spinner:     s,
		updateChan:  make(chan CallUpdate, 100),
		done:        make(chan struct{}),
		actions:     actions,
		remoteKinds: make(map[string]bool),
		width:       80,
	}
}

// Post queues an update without ever blocking the caller.
func (m *CallModel) Post(u CallUpdate) {
	select {
	case m.updateChan <- u:
	default:
	}
}

type callTickMsg time.Time

func callTick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return callTickMsg(t)
	})
}

func (m *CallModel) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		m.waitForUpdates(),
		callTick(),
	)
}

func (m *CallModel) waitForUpdates() tea.Cmd {
	return func() tea.Msg {
		select {
		case u := <-m.updateChan:
			return u
		case <-m.done:
			return nil
		}
	}
}

// Close releases the update listener once the program is done.
func (m *CallModel) Close() {
	close(m.done)
}

func (m *CallModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit

		case "m":
			m.audioMuted = !m.audioMuted
			if toggle := m.actions.SetAudioMuted; toggle != nil {
				muted := m.audioMuted
				cmds = append(cmds, func() tea.Msg {
					toggle(muted)
					return nil
				})
			}

		case "v":
			m.videoMuted = !m.videoMuted
			if toggle := m.actions.SetVideoMuted; toggle != nil {
				muted := m.videoMuted
				cmds = append(cmds, func() tea.Msg {
					toggle(muted)
					return nil
				})
			}
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)

	case callTickMsg:
		if !m.quitting && m.phase != PhaseEnded && m.phase != PhaseFailed {
			cmds = append(cmds, callTick())
		}

	case CallUpdate:
		if done := m.handleUpdate(msg); done {
			return m, tea.Quit
		}
		cmds = append(cmds, m.waitForUpdates())
	}

	return m, tea.Batch(cmds...)
}

func (m *CallModel) handleUpdate(u CallUpdate) (quit bool) {
	switch u.Type {
	case UpdatePhase:
		switch u.Message {
		case "signaling":
			m.phase = PhaseWaiting
			m.phaseMsg = "Waiting for someone to join..."
		case "negotiating":
			m.phase = PhaseNegotiating
			m.phaseMsg = "Negotiating media..."
		case "connected":
			m.phase = PhaseLive
			if m.connectedAt.IsZero() {
				m.connectedAt = time.Now()
			}
		}

	case UpdatePeerJoined:
		m.peerID = u.Message

	case UpdatePeerLeft:
		m.peerID = ""
		m.peerAudioMuted = false
		m.peerVideoMuted = false
		m.remoteKinds = make(map[string]bool)
		m.phase = PhaseWaiting
		m.phaseMsg = "Peer left. Waiting for someone to join..."

	case UpdateICEState:
		m.iceState = u.Message

	case UpdateRemoteTrack:
		m.remoteKinds[u.Kind] = true

	case UpdatePeerMuted:
		if u.Kind == "audio" {
			m.peerAudioMuted = u.Muted
		} else {
			m.peerVideoMuted = u.Muted
		}

	case UpdateCallError:
		m.errMsg = u.Message

	case UpdateEnded:
		if m.errMsg != "" || u.Message == "error" {
			m.phase = PhaseFailed
		} else {
			m.phase = PhaseEnded
		}
		m.endedMsg = u.Message
		return true
	}
	return false
}

func (m *CallModel) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder

	header := HeaderStyle.Render(fmt.Sprintf("%s tincan — %s", IconCall, m.room))
	b.WriteString(header + "\n\n")

	switch m.phase {
	case PhaseConnecting:
		b.WriteString(fmt.Sprintf("%s %s", m.spinner.View(), m.phaseMsg))

	case PhaseWaiting:
		b.WriteString(m.viewWaiting())

	case PhaseNegotiating:
		b.WriteString(m.viewNegotiating())

	case PhaseLive:
		b.WriteString(m.viewLive())

	case PhaseEnded:
		b.WriteString(SuccessStyle.Render(fmt.Sprintf("%s Call ended", IconCall)))

	case PhaseFailed:
		b.WriteString(ErrorStyle.Render(fmt.Sprintf("%s Call failed", IconError)))
		if m.errMsg != "" {
			b.WriteString("\n\n" + ErrorBoxStyle.Render(m.errMsg))
		}
	}

	if m.errMsg != "" && m.phase != PhaseFailed {
		b.WriteString("\n\n" + WarningStyle.Render(fmt.Sprintf("%s %s", IconWarning, truncateString(m.errMsg, 70))))
	}

	b.WriteString("\n" + m.viewFooter())
	return ContainerStyle.Render(b.String())
}

func (m *CallModel) viewWaiting() string {
	var b strings.Builder
	b.WriteString(RoomBanner(m.room, m.server))
	b.WriteString("\n\n")
	b.WriteString(fmt.Sprintf("%s %s", m.spinner.View(), m.phaseMsg))
	return b.String()
}

func (m *CallModel) viewNegotiating() string {
	peer := m.peerID
	if peer == "" {
		peer = "peer"
	}
	return fmt.Sprintf("%s %s Negotiating with %s...",
		m.spinner.View(), IconConnect, AccentStyle.Render(truncateString(peer, 12)))
}

func (m *CallModel) viewLive() string {
	var b strings.Builder

	b.WriteString(SuccessStyle.Render(fmt.Sprintf("%s Connected", IconSuccess)))
	b.WriteString("\n\n")

	rows := []string{
		fmt.Sprintf("  %s Peer      %s", IconPeer, AccentStyle.Render(truncateString(m.peerID, 16))),
		fmt.Sprintf("  %s Duration  %s", IconTime, BoldStyle.Render(formatCallDuration(time.Since(m.connectedAt)))),
	}
	if m.iceState != "" {
		rows = append(rows, fmt.Sprintf("  %s ICE       %s", IconConnect, MutedStyle.Render(m.iceState)))
	}
	rows = append(rows,
		fmt.Sprintf("  %s Mic       %s", IconMic, muteLabel(m.audioMuted)),
		fmt.Sprintf("  %s Camera    %s", IconCamera, muteLabel(m.videoMuted)),
	)

	var remote []string
	for kind := range m.remoteKinds {
		remote = append(remote, kind)
	}
	sort.Strings(remote)
	if len(remote) > 0 {
		rows = append(rows, fmt.Sprintf("  %s Incoming  %s", IconCall, MutedStyle.Render(strings.Join(remote, " + "))))
	}
	if m.peerAudioMuted {
		rows = append(rows, MutedStyle.Render(fmt.Sprintf("  %s Peer muted their mic", IconMutedOn)))
	}
	if m.peerVideoMuted {
		rows = append(rows, MutedStyle.Render(fmt.Sprintf("  %s Peer turned their camera off", IconMutedOn)))
	}

	b.WriteString(strings.Join(rows, "\n"))
	return b.String()
}

func (m *CallModel) viewFooter() string {
	return FooterStyle.Render("m toggle mic • v toggle camera • q hang up")
}

func muteLabel(muted bool) string {
	if muted {
		return WarningStyle.Render("muted")
	}
	return SuccessStyle.Render("live")
}

func formatCallDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	min := d / time.Minute
	sec := (d - min*time.Minute) / time.Second
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, min, sec)
	}
	return fmt.Sprintf("%02d:%02d", min, sec)
}
