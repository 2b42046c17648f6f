package signaling

// Envelope is the frame for every message exchanged with the signaling
// server. The "t" field discriminates; all other fields are optional and
// populated per type.
type Envelope struct {
	T           string       `json:"t"`
	RoomID      string       `json:"roomId,omitempty"`
	PeerID      string       `json:"peerId,omitempty"`
	Peers       []string     `json:"peers,omitempty"`
	From        string       `json:"from,omitempty"`
	To          string       `json:"to,omitempty"`
	Description *Description `json:"description,omitempty"`
	Candidate   *Candidate   `json:"candidate,omitempty"`
	Message     string       `json:"message,omitempty"`
}

// Envelope type constants.
const (
	TypeJoin = "join"

	TypeJoined     = "joined"
	TypePeerJoined = "peer-joined"
	TypePeerLeft   = "peer-left"
	TypeError      = "error"

	TypeSDP = "sdp"
	TypeICE = "ice"
)

// Session description types carried in Description.Type.
const (
	SDPOffer  = "offer"
	SDPAnswer = "answer"
)

// Description is a session description (offer or answer) in the standard
// WebRTC JSON shape.
type Description struct {
	Type string `json:"type"`
	SDP  string `json:"sdp"`
}

// Candidate is an ICE candidate in the standard WebRTC JSON shape.
type Candidate struct {
	Candidate        string  `json:"candidate"`
	SDPMid           *string `json:"sdpMid,omitempty"`
	SDPMLineIndex    *uint16 `json:"sdpMLineIndex,omitempty"`
	UsernameFragment *string `json:"usernameFragment,omitempty"`
}
