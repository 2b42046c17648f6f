package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"sync"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/tincan-labs/tincan/internal/call"
	"github.com/tincan-labs/tincan/internal/config"
	"github.com/tincan-labs/tincan/internal/media"
	"github.com/tincan-labs/tincan/internal/roomid"
	"github.com/tincan-labs/tincan/internal/rtc"
	"github.com/tincan-labs/tincan/internal/ui"
)

var (
	flagCallServer   string
	flagCallSTUN     string
	flagCallTURN     string
	flagCallTURNUser string
	flagCallTURNPass string
	flagCallICEFile  string
	flagCallRelay    bool
	flagCallNoUI     bool
	flagCallNoAudio  bool
	flagCallNoVideo  bool
	flagCallPolite   bool
	flagCallImpolite bool
)

var callCmd = &cobra.Command{
	Use:     "call [room]",
	Aliases: []string{"c"},
	Short:   "Start or join a call",
	Long: `Start a call in a room, or join one that is already waiting.

The first participant in a room waits; whoever joins second triggers the
connection. Without a room argument a fresh room name is generated.

Examples:
  tincan call
  tincan call silver-otter-comet
  tincan call standup --no-video
  tincan call myroom --server call.example.com --relay`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		room := ""
		if len(args) > 0 {
			room = args[0]
		}
		return runCall(room)
	},
}

func runCall(room string) error {
	if room == "" {
		room = roomid.Generate()
	}

	polite, err := politenessOverride()
	if err != nil {
		return err
	}

	cfg, err := config.Load(config.Options{
		Server:     flagCallServer,
		STUNServer: flagCallSTUN,
		TURNServer: flagCallTURN,
		TURNUser:   flagCallTURNUser,
		TURNPass:   flagCallTURNPass,
		ICEFile:    flagCallICEFile,
		ForceRelay: flagCallRelay,
	})
	if err != nil {
		return err
	}

	constraints := &call.MediaConstraints{Audio: !flagCallNoAudio, Video: !flagCallNoVideo}

	if flagCallNoUI || !isatty.IsTerminal(os.Stdout.Fd()) {
		return runHeadlessCall(room, cfg, polite, constraints)
	}
	return runScreenCall(room, cfg, polite, constraints)
}

func runScreenCall(room string, cfg *config.Config, polite *bool, constraints *call.MediaConstraints) error {
	stats := newCallStats()

	// The action closures run after New, from the UI loop.
	var session *call.Session
	screen := ui.NewCallModel(room, cfg.Server, ui.CallActions{
		SetAudioMuted: func(muted bool) error {
			stats.setMuted("audio", muted)
			return session.SetAudioMuted(muted)
		},
		SetVideoMuted: func(muted bool) error {
			stats.setMuted("video", muted)
			return session.SetVideoMuted(muted)
		},
	})

	session, err := call.New(call.Config{
		Endpoint:   cfg.WebSocketURL,
		Room:       room,
		Polite:     polite,
		ICEServers: cfg.ICEServers,
		ForceRelay: cfg.ForceRelay,
		Media:      constraints,
		Source:     media.NewSource(slog.Default()),
		Engine:     rtc.NewEngine(slog.Default()),
		Callbacks:  screenCallbacks(screen, stats),
	})
	if err != nil {
		return err
	}
	defer session.Close()

	if err := session.Connect(); err != nil {
		return err
	}

	prog := tea.NewProgram(screen)
	if _, err := prog.Run(); err != nil {
		return fmt.Errorf("render call screen: %w", err)
	}

	session.Hangup()
	screen.Close()
	ui.RenderCallSummary(stats.summary(room, constraints))
	return nil
}

// screenCallbacks bridges session callbacks onto the call screen's update
// channel. A departed peer does not end the program: the session goes back
// to waiting and so does the screen.
func screenCallbacks(screen *ui.CallModel, stats *callStats) call.Callbacks {
	return call.Callbacks{
		OnStateChange: func(from, to call.State, reason string) {
			screen.Post(ui.CallUpdate{Type: ui.UpdatePhase, Message: to.String()})
		},
		OnConnect: func() {
			stats.connected()
		},
		OnDisconnect: func(reason call.DisconnectReason) {
			stats.disconnected(reason)
			if reason != call.ReasonPeerLeft {
				screen.Post(ui.CallUpdate{Type: ui.UpdateEnded, Message: string(reason)})
			}
		},
		OnPeerJoined: func(peerID string) {
			stats.peerJoined(peerID)
			screen.Post(ui.CallUpdate{Type: ui.UpdatePeerJoined, Message: peerID})
		},
		OnPeerLeft: func(peerID string) {
			screen.Post(ui.CallUpdate{Type: ui.UpdatePeerLeft, Message: peerID})
		},
		OnTrackAdded: func(track call.RemoteTrack, streamID string) {
			stats.trackAdded(track.Kind())
			screen.Post(ui.CallUpdate{Type: ui.UpdateRemoteTrack, Kind: track.Kind()})
		},
		OnICEStateChange: func(state string) {
			screen.Post(ui.CallUpdate{Type: ui.UpdateICEState, Message: state})
		},
		OnPeerMuted: func(kind string, muted bool) {
			screen.Post(ui.CallUpdate{Type: ui.UpdatePeerMuted, Kind: kind, Muted: muted})
		},
		OnError: func(err error, state call.State) {
			screen.Post(ui.CallUpdate{Type: ui.UpdateCallError, Message: err.Error()})
		},
	}
}

func runHeadlessCall(room string, cfg *config.Config, polite *bool, constraints *call.MediaConstraints) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stats := newCallStats()
	ended := make(chan call.DisconnectReason, 1)
	waiting := ui.NewWaitingSpinner("Waiting for a peer to join...")

	session, err := call.New(call.Config{
		Endpoint:   cfg.WebSocketURL,
		Room:       room,
		Polite:     polite,
		ICEServers: cfg.ICEServers,
		ForceRelay: cfg.ForceRelay,
		Media:      constraints,
		Source:     media.NewSource(slog.Default()),
		Engine:     rtc.NewEngine(slog.Default()),
		Callbacks:  headlessCallbacks(stats, ended, waiting.Stop),
	})
	if err != nil {
		return err
	}
	defer session.Close()

	stopSpinner := ui.RunConnectionSpinner("Connecting to signaling server...")
	if err := session.Connect(); err != nil {
		stopSpinner()
		return err
	}
	stopSpinner()

	fmt.Println(ui.RoomBanner(room, cfg.Server))
	fmt.Println()
	ui.PrintInfo("Press Ctrl+C to hang up")
	waiting.Start()

	select {
	case <-ctx.Done():
		waiting.Stop()
		fmt.Println()
		session.Hangup()
	case reason := <-ended:
		waiting.Stop()
		ui.PrintInfof("Call ended: %s", reason)
	}

	ui.RenderCallSummary(stats.summary(room, constraints))
	return nil
}

func headlessCallbacks(stats *callStats, ended chan<- call.DisconnectReason, peerArrived func()) call.Callbacks {
	return call.Callbacks{
		OnConnect: func() {
			stats.connected()
			ui.PrintSuccess("Connected")
		},
		OnDisconnect: func(reason call.DisconnectReason) {
			stats.disconnected(reason)
			if reason == call.ReasonPeerLeft {
				return
			}
			select {
			case ended <- reason:
			default:
			}
		},
		OnPeerJoined: func(peerID string) {
			peerArrived()
			stats.peerJoined(peerID)
			ui.PrintInfof("Peer joined: %s", peerID)
		},
		OnPeerLeft: func(peerID string) {
			ui.PrintWarning("Peer left, waiting for someone new")
		},
		OnTrackAdded: func(track call.RemoteTrack, streamID string) {
			stats.trackAdded(track.Kind())
			ui.PrintInfof("Receiving %s", track.Kind())
		},
		OnPeerMuted: func(kind string, muted bool) {
			if muted {
				ui.PrintInfof("Peer muted their %s", kind)
			} else {
				ui.PrintInfof("Peer unmuted their %s", kind)
			}
		},
		OnError: func(err error, state call.State) {
			ui.PrintWarning(err.Error())
		},
	}
}

func politenessOverride() (*bool, error) {
	if flagCallPolite && flagCallImpolite {
		return nil, fmt.Errorf("cannot set both --polite and --impolite")
	}
	if flagCallPolite {
		v := true
		return &v, nil
	}
	if flagCallImpolite {
		v := false
		return &v, nil
	}
	return nil, nil
}

// callStats collects what the end-of-call summary reports. Callbacks run
// on the session loop, reads happen after it, hence the mutex.
type callStats struct {
	mu          sync.Mutex
	peerID      string
	connectedAt time.Time
	total       time.Duration
	reason      call.DisconnectReason
	audioMuted  bool
	videoMuted  bool
	remoteKinds map[string]bool
}

func newCallStats() *callStats {
	return &callStats{remoteKinds: make(map[string]bool)}
}

func (cs *callStats) peerJoined(id string) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.peerID = id
}

func (cs *callStats) connected() {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.connectedAt = time.Now()
}

func (cs *callStats) disconnected(reason call.DisconnectReason) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.reason = reason
	if !cs.connectedAt.IsZero() {
		cs.total += time.Since(cs.connectedAt)
		cs.connectedAt = time.Time{}
	}
}

func (cs *callStats) trackAdded(kind string) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.remoteKinds[kind] = true
}

func (cs *callStats) setMuted(kind string, muted bool) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	if kind == "audio" {
		cs.audioMuted = muted
	} else {
		cs.videoMuted = muted
	}
}

func (cs *callStats) summary(room string, constraints *call.MediaConstraints) ui.CallSummary {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	total := cs.total
	if !cs.connectedAt.IsZero() {
		total += time.Since(cs.connectedAt)
	}
	duration := "-"
	if total > 0 {
		duration = total.Round(time.Second).String()
	}

	reason := string(cs.reason)
	if reason == "" {
		reason = string(call.ReasonHangup)
	}

	var remote []string
	for kind := range cs.remoteKinds {
		remote = append(remote, kind)
	}
	sort.Strings(remote)

	return ui.CallSummary{
		Room:        room,
		Peer:        cs.peerID,
		Duration:    duration,
		Reason:      reason,
		LocalAudio:  mediaLabel(constraints.Audio, cs.audioMuted),
		LocalVideo:  mediaLabel(constraints.Video, cs.videoMuted),
		RemoteMedia: remote,
	}
}

func mediaLabel(enabled, muted bool) string {
	switch {
	case !enabled:
		return "off"
	case muted:
		return "muted"
	default:
		return "on"
	}
}

func init() {
	rootCmd.AddCommand(callCmd)

	callCmd.Flags().StringVar(&flagCallServer, "server", "", "Signaling server host or ws(s) URL")
	callCmd.Flags().StringVarP(&flagCallSTUN, "stun", "s", "", "Custom STUN server")
	callCmd.Flags().StringVarP(&flagCallTURN, "turn", "t", "", "Custom TURN server")
	callCmd.Flags().StringVar(&flagCallTURNUser, "turn-user", "", "TURN username")
	callCmd.Flags().StringVar(&flagCallTURNPass, "turn-pass", "", "TURN password")
	callCmd.Flags().StringVar(&flagCallICEFile, "ice-config", "", "YAML file listing ICE servers")
	callCmd.Flags().BoolVarP(&flagCallRelay, "relay", "r", false, "Force relay mode")
	callCmd.Flags().BoolVar(&flagCallNoUI, "no-ui", false, "Plain output instead of the call screen")
	callCmd.Flags().BoolVar(&flagCallNoAudio, "no-audio", false, "Join without sending audio")
	callCmd.Flags().BoolVar(&flagCallNoVideo, "no-video", false, "Join without sending video")
	callCmd.Flags().BoolVar(&flagCallPolite, "polite", false, "Yield on offer collisions regardless of join order")
	callCmd.Flags().BoolVar(&flagCallImpolite, "impolite", false, "Win offer collisions regardless of join order")
}
