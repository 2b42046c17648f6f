package call

import "github.com/vmihailenco/msgpack/v5"

// Control-channel message types.
const (
	ControlTypeMute = "mute"
)

// ControlMessage is the envelope for everything sent over the control data
// channel. The channel is best-effort state sync between the two peers;
// nothing on it affects negotiation.
type ControlMessage struct {
	Type    string             `msgpack:"type"`
	Payload msgpack.RawMessage `msgpack:"payload"`
}

// MutePayload announces a local mute toggle to the far side.
type MutePayload struct {
	Kind  string `msgpack:"kind"` // "audio" or "video"
	Muted bool   `msgpack:"muted"`
}

// NewControlMessage creates a ControlMessage with the given type and payload.
func NewControlMessage(t string, payload any) (ControlMessage, error) {
	b, err := msgpack.Marshal(payload)
	if err != nil {
		return ControlMessage{}, err
	}
	return ControlMessage{Type: t, Payload: b}, nil
}

// DecodePayload decodes the message payload into the provided struct.
func (m ControlMessage) DecodePayload(v any) error {
	return msgpack.Unmarshal(m.Payload, v)
}

// EncodeControl serializes a control message for the wire.
func EncodeControl(m ControlMessage) ([]byte, error) {
	return msgpack.Marshal(m)
}

// DecodeControl parses a control message off the wire.
func DecodeControl(data []byte) (ControlMessage, error) {
	var m ControlMessage
	err := msgpack.Unmarshal(data, &m)
	return m, err
}
