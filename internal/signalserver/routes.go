package signalserver

import (
	"net/http"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  maxMessageSize,
	WriteBufferSize: maxMessageSize,
	// Peers connect from anywhere; the room id is the only credential.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ServeWS upgrades the request and hands the connection to the hub.
func ServeWS(hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			hub.log.Error("websocket upgrade failed", "error", err, "remote", r.RemoteAddr)
			return
		}

		client := newClient(hub, conn)
		hub.register <- client

		go client.writePump()
		go client.readPump()
	}
}

// HealthHandler reports liveness for load balancers.
func HealthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("signaling server is healthy"))
}

// Routes returns a mux with every endpoint the server exposes.
func Routes(hub *Hub) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", HealthHandler)
	mux.HandleFunc("/ws", ServeWS(hub))
	return mux
}
