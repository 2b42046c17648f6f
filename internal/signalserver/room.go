package signalserver

// Room pairs up to two peers. Join order is preserved so the first
// peer in an exchange is deterministic.
type Room struct {
	ID    string
	peers []*Client
}

func newRoom(id string) *Room {
	return &Room{ID: id}
}

func (r *Room) full() bool  { return len(r.peers) >= 2 }
func (r *Room) empty() bool { return len(r.peers) == 0 }

func (r *Room) add(c *Client) {
	r.peers = append(r.peers, c)
}

func (r *Room) remove(c *Client) {
	for i, peer := range r.peers {
		if peer == c {
			r.peers = append(r.peers[:i], r.peers[i+1:]...)
			return
		}
	}
}

// byID returns the peer with the given id, or nil.
func (r *Room) byID(id string) *Client {
	for _, peer := range r.peers {
		if peer.id == id {
			return peer
		}
	}
	return nil
}

// others returns every peer except c.
func (r *Room) others(c *Client) []*Client {
	var out []*Client
	for _, peer := range r.peers {
		if peer != c {
			out = append(out, peer)
		}
	}
	return out
}

// occupantIDs lists peer ids excluding c, in join order.
func (r *Room) occupantIDs(c *Client) []string {
	ids := make([]string, 0, len(r.peers))
	for _, peer := range r.peers {
		if peer != c {
			ids = append(ids, peer.id)
		}
	}
	return ids
}
