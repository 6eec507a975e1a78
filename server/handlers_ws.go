package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Ashenafi-pixel/jackpot-royale/reel"
	"github.com/Ashenafi-pixel/jackpot-royale/session"
)

const wsWriteWait = 2 * time.Second

// wsMessage is one message of the spin stream: frames while the reels move,
// then exactly one outcome or error.
type wsMessage struct {
	Type    string           `json:"type"`
	Frame   *reel.Frame      `json:"frame,omitempty"`
	Outcome *session.Outcome `json:"outcome,omitempty"`
	Error   *APIError        `json:"error,omitempty"`
}

// wsView renders frames onto a socket. After the first failed write it
// cancels the spin context so the scheduler finishes headless.
type wsView struct {
	conn   *websocket.Conn
	cancel context.CancelFunc
	failed bool
}

func (v *wsView) send(m wsMessage) error {
	_ = v.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return v.conn.WriteJSON(m)
}

func (v *wsView) Render(f reel.Frame) {
	if v.failed {
		return
	}
	if err := v.send(wsMessage{Type: "frame", Frame: &f}); err != nil {
		v.failed = true
		v.cancel()
	}
}

func (s *Server) spinStream(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, ok := sessionOrError(w, s.engine, id); !ok {
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied.
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	view := &wsView{conn: conn, cancel: cancel}

	out, err := s.engine.Spin(ctx, id, view)
	msg := wsMessage{Type: "outcome", Outcome: &out}
	if err != nil {
		code, codeStr := statusOf(err)
		msg = wsMessage{Type: "error", Error: &APIError{Error: err.Error(), Code: codeStr, Message: http.StatusText(code)}}
	}
	if view.failed {
		s.log.Info("spin stream client gone", zap.String("session_id", id))
		return
	}
	if err := view.send(msg); err != nil {
		s.log.Debug("spin stream write failed", zap.Error(err))
		return
	}
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(wsWriteWait))
}
