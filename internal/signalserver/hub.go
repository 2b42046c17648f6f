// Package signalserver implements the rendezvous server peers use to
// find each other and exchange session descriptions and ICE
// candidates. The server never inspects SDP: it assigns identities,
// pairs peers into rooms, and relays envelopes between them.
package signalserver

import (
	"context"
	"log/slog"

	"github.com/tincan-labs/tincan/internal/signaling"
)

// Hub owns every room and client. All state is confined to the Run
// goroutine; pumps and handlers talk to it over channels only.
type Hub struct {
	rooms      map[string]*Room
	register   chan *Client
	unregister chan *Client
	inbound    chan inbound
	log        *slog.Logger
}

type inbound struct {
	client *Client
	env    *signaling.Envelope
}

// NewHub creates an empty hub. A nil logger means slog.Default().
func NewHub(log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{
		rooms:      make(map[string]*Room),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		inbound:    make(chan inbound),
		log:        log,
	}
}

// Run processes hub traffic until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case client := <-h.register:
			h.log.Debug("client connected", "peer", client.id, "addr", client.addr)
		case client := <-h.unregister:
			h.dropClient(client)
		case msg := <-h.inbound:
			h.dispatch(msg.client, msg.env)
		}
	}
}

func (h *Hub) dispatch(c *Client, env *signaling.Envelope) {
	switch env.T {
	case signaling.TypeJoin:
		h.handleJoin(c, env)
	case signaling.TypeSDP, signaling.TypeICE:
		h.relay(c, env)
	default:
		h.log.Warn("unknown message type", "type", env.T, "peer", c.id)
		c.sendError("unknown message type: " + env.T)
	}
}

func (h *Hub) handleJoin(c *Client, env *signaling.Envelope) {
	if env.RoomID == "" {
		c.sendError("room id required")
		return
	}
	if c.roomID != "" {
		c.sendError("already in a room")
		return
	}

	room, ok := h.rooms[env.RoomID]
	if !ok {
		room = newRoom(env.RoomID)
		h.rooms[env.RoomID] = room
		h.log.Info("room created", "room", room.ID)
	}
	if room.full() {
		h.log.Warn("join rejected, room full", "room", room.ID, "peer", c.id)
		c.sendError("room is full")
		return
	}

	peers := room.occupantIDs(c)
	room.add(c)
	c.roomID = room.ID
	h.log.Info("peer joined", "room", room.ID, "peer", c.id, "occupants", len(room.peers))

	c.enqueue(&signaling.Envelope{
		T:      signaling.TypeJoined,
		RoomID: room.ID,
		PeerID: c.id,
		Peers:  peers,
	})
	for _, other := range room.others(c) {
		other.enqueue(&signaling.Envelope{
			T:      signaling.TypePeerJoined,
			PeerID: c.id,
		})
	}
}

// relay stamps the sender and forwards. An explicit To wins; otherwise
// the envelope goes to the only other peer in the room.
func (h *Hub) relay(c *Client, env *signaling.Envelope) {
	if c.roomID == "" {
		c.sendError("join a room first")
		return
	}
	room, ok := h.rooms[c.roomID]
	if !ok {
		c.sendError("room no longer exists")
		return
	}

	env.From = c.id
	var target *Client
	if env.To != "" {
		target = room.byID(env.To)
	} else {
		others := room.others(c)
		if len(others) > 0 {
			target = others[0]
		}
	}
	if target == nil {
		h.log.Debug("dropping relay, no target", "room", room.ID, "type", env.T, "from", c.id)
		return
	}
	target.enqueue(env)
}

func (h *Hub) dropClient(c *Client) {
	if c.roomID != "" {
		if room, ok := h.rooms[c.roomID]; ok {
			room.remove(c)
			for _, other := range room.others(c) {
				other.enqueue(&signaling.Envelope{
					T:      signaling.TypePeerLeft,
					PeerID: c.id,
				})
			}
			if room.empty() {
				delete(h.rooms, room.ID)
				h.log.Info("room deleted", "room", room.ID)
			}
		}
		c.roomID = ""
	}
	c.closeSend()
	h.log.Debug("client disconnected", "peer", c.id, "addr", c.addr)
}
