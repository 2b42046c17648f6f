// Package rtc is the pion-backed implementation of the call package's
// engine and handle interfaces. Everything pion-specific lives here: the
// negotiation logic upstream never sees a pion type.
package rtc

import (
	"log/slog"
	"strings"

	pion "github.com/pion/webrtc/v4"

	"github.com/tincan-labs/tincan/internal/call"
	"github.com/tincan-labs/tincan/internal/config"
)

// Engine creates pion peer connections.
type Engine struct {
	log *slog.Logger
}

var _ call.Engine = (*Engine)(nil)

// NewEngine returns a pion engine. A nil logger means slog.Default().
func NewEngine(log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{log: log}
}

// Open creates a peer connection handle wired to cfg.Events. Relay-only
// ICE is used when requested, or when a restrictive network is detected
// and a TURN server is available to fall back on.
func (e *Engine) Open(cfg call.HandleConfig) (call.Handle, error) {
	iceServers := toICEServers(cfg.ICEServers)

	policy := pion.ICETransportPolicyAll
	if hasTURN(cfg.ICEServers) && (cfg.ForceRelay || config.ShouldForceRelay()) {
		policy = pion.ICETransportPolicyRelay
	}

	pc, err := pion.NewPeerConnection(pion.Configuration{
		ICEServers:         iceServers,
		ICETransportPolicy: policy,
	})
	if err != nil {
		return nil, err
	}

	h := &handle{
		pc:     pc,
		events: cfg.Events,
		log:    e.log,
	}
	if err := h.setup(); err != nil {
		pc.Close()
		return nil, err
	}
	return h, nil
}

func toICEServers(servers []config.ICEServer) []pion.ICEServer {
	out := make([]pion.ICEServer, 0, len(servers))
	for _, s := range servers {
		entry := pion.ICEServer{URLs: s.URLs}
		if s.Username != "" {
			entry.Username = s.Username
			entry.Credential = s.Credential
		}
		out = append(out, entry)
	}
	return out
}

func hasTURN(servers []config.ICEServer) bool {
	for _, s := range servers {
		for _, u := range s.URLs {
			if strings.HasPrefix(u, "turn:") || strings.HasPrefix(u, "turns:") {
				return true
			}
		}
	}
	return false
}
