package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/dgallion1/pageflow/internal/config"
	"github.com/dgallion1/pageflow/internal/doctree"
	"github.com/dgallion1/pageflow/internal/form"
	"github.com/dgallion1/pageflow/internal/session"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
)

const (
	editorWriteWait  = 10 * time.Second
	editorMaxMessage = 8 << 20
)

// editorIncoming is a message from the editing client.
type editorIncoming struct {
	Type    string `json:"type"` // load, input, add_row, ping
	HTML    string `json:"html,omitempty"`
	Content string `json:"content,omitempty"`
	Row     string `json:"row,omitempty"`
}

// editorOutgoing is a message to the editing client.
type editorOutgoing struct {
	Type       string          `json:"type"` // pages, rows, error, pong
	Trigger    string          `json:"trigger,omitempty"`
	Pages      int             `json:"pages,omitempty"`
	Degenerate int             `json:"degenerate,omitempty"`
	HTML       string          `json:"html,omitempty"`
	Layout     *doctree.Layout `json:"layout,omitempty"`
	Row        string          `json:"row,omitempty"`
	Fields     []string        `json:"fields,omitempty"`
	Error      string          `json:"error,omitempty"`
}

type editorConn struct {
	conn *websocket.Conn
	log  *slog.Logger
	send chan editorOutgoing
	done chan struct{}
	once sync.Once

	// The client must answer pings or send something within pongWait.
	pongWait   time.Duration
	pingPeriod time.Duration
}

// handleEditor upgrades to a websocket and runs one editing session until
// the client goes away.
func (s *Server) handleEditor(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already answered the client.
		s.log.Warn("websocket upgrade failed", "error", err)
		return
	}

	ec := &editorConn{
		conn: conn,
		log:  s.log.With("request_id", middleware.GetReqID(r.Context())),
		send: make(chan editorOutgoing, 16),
		done: make(chan struct{}),

		pongWait: s.cfg.EditorPongWait.Duration,
	}
	if ec.pongWait <= 0 {
		ec.pongWait = config.Defaults().EditorPongWait.Duration
	}
	ec.pingPeriod = ec.pongWait * 9 / 10
	sess := session.New(session.Config{
		Selectors: s.cfg.Selectors,
		Options:   s.cfg.PageOptions(),
		Delays: session.Delays{
			Load:       s.cfg.LoadDelay.Duration,
			Structural: s.cfg.StructuralDelay.Duration,
		},
	}, s.measure, ec.publish, s.stats, ec.log)

	ec.log.Info("editor connected")
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ec.writeLoop()
	}()

	ec.readLoop(sess)
	ec.close()
	sess.Close()
	wg.Wait()
	conn.Close()
	ec.log.Info("editor disconnected")
}

func (ec *editorConn) close() {
	ec.once.Do(func() { close(ec.done) })
}

// publish forwards a run's outcome. It gives up once the connection is
// closing.
func (ec *editorConn) publish(res *session.Result, err error) {
	if err != nil {
		ec.push(editorOutgoing{Type: "error", Error: err.Error()})
		return
	}
	ec.push(editorOutgoing{
		Type:       "pages",
		Trigger:    res.Trigger.String(),
		Pages:      len(res.Layout.Pages),
		Degenerate: res.Layout.DegenerateCount(),
		HTML:       res.HTML,
		Layout:     res.Layout,
	})
}

func (ec *editorConn) push(msg editorOutgoing) {
	select {
	case ec.send <- msg:
	case <-ec.done:
	}
}

func (ec *editorConn) readLoop(sess *session.Session) {
	ec.conn.SetReadLimit(editorMaxMessage)
	ec.extendDeadline()
	ec.conn.SetPongHandler(func(string) error {
		ec.extendDeadline()
		return nil
	})
	for {
		_, data, err := ec.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				ec.log.Warn("websocket read error", "error", err)
			}
			return
		}
		ec.extendDeadline()

		var msg editorIncoming
		if err := json.Unmarshal(data, &msg); err != nil {
			ec.push(editorOutgoing{Type: "error", Error: "invalid message: " + err.Error()})
			continue
		}
		ec.handle(sess, msg)
	}
}

func (ec *editorConn) extendDeadline() {
	ec.conn.SetReadDeadline(time.Now().Add(ec.pongWait))
}

func (ec *editorConn) handle(sess *session.Session, msg editorIncoming) {
	switch msg.Type {
	case "load":
		if err := sess.Load(msg.HTML); err != nil {
			ec.push(editorOutgoing{Type: "error", Error: err.Error()})
		}
	case "input":
		if err := sess.Input(msg.Content); err != nil {
			ec.push(editorOutgoing{Type: "error", Error: err.Error()})
		}
	case "add_row":
		kind, err := form.ParseKind(msg.Row)
		if err != nil {
			ec.push(editorOutgoing{Type: "error", Error: err.Error()})
			return
		}
		fields, err := sess.AddRow(kind)
		if err != nil {
			ec.push(editorOutgoing{Type: "error", Error: err.Error()})
			return
		}
		ec.push(editorOutgoing{Type: "rows", Row: string(kind), Fields: fields})
	case "ping":
		ec.push(editorOutgoing{Type: "pong"})
	case "pong":
		// Heartbeat response, nothing to do
	default:
		ec.push(editorOutgoing{Type: "error", Error: "unknown message type: " + msg.Type})
	}
}

// writeLoop is the only writer on the connection.
func (ec *editorConn) writeLoop() {
	ticker := time.NewTicker(ec.pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ec.done:
			ec.conn.SetWriteDeadline(time.Now().Add(editorWriteWait))
			ec.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case msg := <-ec.send:
			data, err := json.Marshal(msg)
			if err != nil {
				ec.log.Error("marshal editor message", "error", err)
				continue
			}
			if !ec.write(websocket.TextMessage, data) {
				return
			}
		case <-ticker.C:
			if !ec.write(websocket.PingMessage, nil) {
				return
			}
		}
	}
}

// write sends one frame. On failure it closes the connection, which
// unblocks readLoop.
func (ec *editorConn) write(kind int, data []byte) bool {
	ec.conn.SetWriteDeadline(time.Now().Add(editorWriteWait))
	if err := ec.conn.WriteMessage(kind, data); err != nil {
		ec.log.Warn("websocket write error", "error", err)
		ec.close()
		ec.conn.Close()
		return false
	}
	return true
}
