package api

import (
	"net/http"

	"github.com/coder/websocket"

	"github.com/flitsinc/go-bridge/internal/schema"
)

// handleSurfaceWS upgrades a presentation-surface connection and hands it to
// the hub. The surface learns the bridge port first thing so it can relay it
// to anything it spawns.
func (s *Server) handleSurfaceWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		return
	}
	defer conn.Close(websocket.StatusInternalError, "closed")

	var hello []schema.SurfaceMessage
	if s.Port != 0 {
		hello = append(hello, schema.SurfaceMessage{Type: schema.MsgSetPort, Port: s.Port})
	}
	if err := s.Hub.Attach(r.Context(), conn, hello...); err != nil {
		_ = conn.Close(websocket.StatusInternalError, "surface error")
		return
	}
	_ = conn.Close(websocket.StatusNormalClosure, "done")
}
