package web

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"tareas-cli/internal/command"

	"github.com/gorilla/websocket"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = wsPongWait * 9 / 10
	wsMaxMessage = 1 << 20
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  16 * 1024,
	WriteBufferSize: 16 * 1024,
	CheckOrigin: func(r *http.Request) bool {
		origin := strings.TrimSpace(r.Header.Get("Origin"))
		if origin == "" {
			return true
		}
		return strings.HasSuffix(origin, "://"+strings.TrimSpace(r.Host))
	},
}

// wsReply answers one command frame. Updates are pushed with Type "update" when any client
// (or another process) changes the state.
type wsReply struct {
	Type     string           `json:"type"`
	Outcome  *command.Outcome `json:"outcome,omitempty"`
	Error    string           `json:"error,omitempty"`
	Revision string           `json:"revision,omitempty"`
}

type wsConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *wsConn) send(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return c.conn.WriteJSON(v)
}

func (c *wsConn) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait))
}

// handleWS accepts command envelopes ({"type": ..., "payload": ...}) one per text frame and
// replies with the outcome.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("websocket upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	c := &wsConn{conn: conn}
	updates, unsubscribe := s.d.Subscribe()
	defer unsubscribe()

	go func() {
		ticker := time.NewTicker(wsPingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := c.ping(); err != nil {
					cancel()
					return
				}
			case u, ok := <-updates:
				if !ok {
					return
				}
				if err := c.send(wsReply{Type: "update", Revision: u.Revision}); err != nil {
					cancel()
					return
				}
			}
		}
	}()

	conn.SetReadLimit(wsMaxMessage)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		typ, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Debug("websocket closed", "err", err)
			}
			return
		}
		if typ != websocket.TextMessage {
			continue
		}
		reply := s.dispatchFrame(ctx, msg)
		if err := c.send(reply); err != nil {
			return
		}
	}
}

func (s *Server) dispatchFrame(ctx context.Context, msg []byte) wsReply {
	cmd, err := command.Decode(msg)
	if err != nil {
		return wsReply{Type: "error", Error: err.Error()}
	}
	out, err := s.d.Dispatch(ctx, cmd)
	if err != nil {
		return wsReply{Type: "error", Error: err.Error()}
	}
	return wsReply{Type: "outcome", Outcome: &out}
}
