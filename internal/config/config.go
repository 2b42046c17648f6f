package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Default configuration values.
const (
	DefaultServer = "call.tincan.dev"

	DefaultSTUN  = "stun:stun.l.google.com:19302"
	DefaultSTUN2 = "stun:stun1.l.google.com:19302"
)

// ICEServer is one STUN or TURN entry handed to the WebRTC engine.
type ICEServer struct {
	URLs       []string `yaml:"urls"`
	Username   string   `yaml:"username,omitempty"`
	Credential string   `yaml:"credential,omitempty"`
}

// DefaultICEServers returns the public STUN fallback used when nothing
// else is configured.
func DefaultICEServers() []ICEServer {
	return []ICEServer{{URLs: []string{DefaultSTUN, DefaultSTUN2}}}
}

// Config holds application configuration.
type Config struct {
	// Server is the signaling server host, optionally with scheme and port.
	Server string

	// WebSocketURL is constructed from Server.
	WebSocketURL string

	// ICEServers is the resolved STUN/TURN list for the engine.
	ICEServers []ICEServer

	// ForceRelay restricts ICE to TURN relay candidates.
	ForceRelay bool
}

// Options for loading config with CLI flag overrides.
type Options struct {
	Server     string
	STUNServer string
	TURNServer string
	TURNUser   string
	TURNPass   string
	ICEFile    string
	ForceRelay bool
}

// Load reads configuration with the following priority:
// 1. CLI flags (passed via Options) - highest priority
// 2. Environment variables
// 3. Defaults - lowest priority
func Load(opts Options) (*Config, error) {
	server := firstNonEmpty(opts.Server, os.Getenv("TINCAN_SERVER"), DefaultServer)

	var iceServers []ICEServer
	if opts.ICEFile != "" {
		loaded, err := LoadICEFile(opts.ICEFile)
		if err != nil {
			return nil, err
		}
		iceServers = loaded
	} else {
		stun := firstNonEmpty(opts.STUNServer, os.Getenv("TINCAN_STUN"))
		if stun != "" {
			iceServers = append(iceServers, ICEServer{URLs: []string{stun}})
		} else {
			iceServers = DefaultICEServers()
		}

		turn := firstNonEmpty(opts.TURNServer, os.Getenv("TINCAN_TURN"))
		if turn != "" {
			iceServers = append(iceServers, ICEServer{
				URLs:       turnURLs(turn),
				Username:   firstNonEmpty(opts.TURNUser, os.Getenv("TINCAN_TURN_USER")),
				Credential: firstNonEmpty(opts.TURNPass, os.Getenv("TINCAN_TURN_PASS")),
			})
		}
	}

	cfg := &Config{
		Server:       server,
		WebSocketURL: websocketURL(server),
		ICEServers:   iceServers,
		ForceRelay:   opts.ForceRelay,
	}

	if cfg.ForceRelay && !cfg.HasTURN() {
		return nil, fmt.Errorf("cannot force relay mode without a TURN server configured")
	}

	return cfg, nil
}

// LoadICEFile reads a YAML file listing ICE servers:
//
//	ice_servers:
//	  - urls: ["stun:stun.example.org:3478"]
//	  - urls: ["turn:turn.example.org:3478"]
//	    username: alice
//	    credential: secret
func LoadICEFile(path string) ([]ICEServer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read ICE config: %w", err)
	}

	var file struct {
		ICEServers []ICEServer `yaml:"ice_servers"`
	}
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse ICE config: %w", err)
	}
	if len(file.ICEServers) == 0 {
		return nil, fmt.Errorf("ICE config %s lists no servers", path)
	}
	for i, s := range file.ICEServers {
		if len(s.URLs) == 0 {
			return nil, fmt.Errorf("ICE config %s: server %d has no urls", path, i)
		}
	}
	return file.ICEServers, nil
}

// HasTURN reports whether any resolved server is a TURN entry.
func (c *Config) HasTURN() bool {
	for _, s := range c.ICEServers {
		for _, u := range s.URLs {
			if strings.HasPrefix(u, "turn:") || strings.HasPrefix(u, "turns:") {
				return true
			}
		}
	}
	return false
}

// websocketURL derives the signaling URL. A server value carrying an
// explicit ws:// or wss:// scheme is respected; a bare host gets wss.
func websocketURL(server string) string {
	if strings.HasPrefix(server, "ws://") || strings.HasPrefix(server, "wss://") {
		return strings.TrimSuffix(server, "/") + "/ws"
	}
	return fmt.Sprintf("wss://%s/ws", server)
}

// turnURLs expands a bare TURN host into the standard url variants. A value
// that already looks like a turn: url is used as-is.
func turnURLs(turn string) []string {
	if strings.HasPrefix(turn, "turn:") || strings.HasPrefix(turn, "turns:") {
		return []string{turn}
	}
	return []string{
		fmt.Sprintf("turn:%s:3478?transport=udp", turn),
		fmt.Sprintf("turn:%s:3478?transport=tcp", turn),
		fmt.Sprintf("turns:%s:5349?transport=tcp", turn),
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
