// Package stream exposes a playback controller over websockets. Every
// connected client receives the controller's notifications as JSON messages
// and may send transport commands back.
package stream

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ivlev/lessonplay/internal/playback"
	"github.com/ivlev/lessonplay/internal/timeline"
)

const (
	writeWait  = 5 * time.Second
	sendBuffer = 64
)

// Message types sent to clients.
const (
	TypeHello    = "hello"
	TypeFrame    = "frame"
	TypeState    = "state"
	TypeSeek     = "seek"
	TypeComplete = "complete"
	TypeError    = "error"
)

// Message is the envelope of every outgoing websocket message.
type Message struct {
	Type     string                `json:"type"`
	Snapshot *playback.Snapshot    `json:"snapshot,omitempty"`
	State    *timeline.EngineState `json:"state,omitempty"`
	Previous *timeline.EngineState `json:"previous,omitempty"`
	Seek     *playback.SeekEvent   `json:"seek,omitempty"`
	Error    string                `json:"error,omitempty"`
}

// Command is a transport request from a client.
type Command struct {
	Action string  `json:"action"`
	Value  float64 `json:"value,omitempty"`
}

var ErrUnknownAction = errors.New("unknown action")

// Options tune a Hub.
type Options struct {
	// FrameStride forwards every Nth frame. Seek frames are always sent.
	FrameStride int
	Logger      *slog.Logger
}

// Hub fans controller notifications out to websocket clients.
type Hub struct {
	ctrl     *playback.Controller
	logger   *slog.Logger
	upgrader websocket.Upgrader
	stride   int

	mu      sync.Mutex
	clients map[*client]struct{}
	frames  int
	closed  bool

	unsubscribe []func()
}

type client struct {
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

// NewHub subscribes to ctrl. Close releases the subscriptions.
func NewHub(ctrl *playback.Controller, opts Options) *Hub {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.FrameStride < 1 {
		opts.FrameStride = 1
	}
	h := &Hub{
		ctrl:   ctrl,
		logger: opts.Logger.With("component", "stream"),
		stride: opts.FrameStride,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		clients: make(map[*client]struct{}),
	}

	seeking := false
	h.unsubscribe = []func(){
		ctrl.OnFrame(func(s playback.Snapshot) {
			h.mu.Lock()
			h.frames++
			skip := !seeking && h.frames%h.stride != 0
			seeking = false
			h.mu.Unlock()
			if !skip {
				h.broadcast(Message{Type: TypeFrame, Snapshot: &s}, true)
			}
		}),
		ctrl.OnStateChange(func(c playback.StateChange) {
			h.broadcast(Message{Type: TypeState, State: &c.Current, Previous: &c.Previous}, false)
		}),
		ctrl.OnSeek(func(e playback.SeekEvent) {
			h.mu.Lock()
			seeking = true
			h.mu.Unlock()
			h.broadcast(Message{Type: TypeSeek, Seek: &e}, false)
		}),
		ctrl.OnComplete(func(s timeline.EngineState) {
			h.broadcast(Message{Type: TypeComplete, State: &s}, false)
		}),
	}
	return h
}

// Apply runs a transport command against the controller.
func (h *Hub) Apply(cmd Command) error {
	switch cmd.Action {
	case "play":
		h.ctrl.Play()
		h.ctrl.StartLoop()
	case "pause":
		h.ctrl.Pause()
	case "resume":
		h.ctrl.Resume()
		h.ctrl.StartLoop()
	case "seek":
		h.ctrl.Seek(cmd.Value)
	case "speed":
		h.ctrl.SetSpeed(cmd.Value)
	case "stop":
		h.ctrl.Pause()
		h.ctrl.Seek(0)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownAction, cmd.Action)
	}
	return nil
}

// ClientCount is the number of connected websocket clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// ServeWS upgrades the request and serves the client until it disconnects.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return
	}
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	h.logger.Info("client connected", "remote", r.RemoteAddr, "clients", h.ClientCount())

	go h.writeLoop(c)

	snap := h.ctrl.Snapshot()
	h.deliver(c, Message{Type: TypeHello, Snapshot: &snap}, false)
	h.readLoop(c)
}

func (h *Hub) readLoop(c *client) {
	defer h.drop(c)
	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Debug("read failed", "error", err)
			}
			return
		}

		var cmd Command
		if err := json.Unmarshal(payload, &cmd); err != nil {
			h.deliver(c, Message{Type: TypeError, Error: "malformed command"}, false)
			continue
		}
		if err := h.Apply(cmd); err != nil {
			h.deliver(c, Message{Type: TypeError, Error: err.Error()}, false)
		}
	}
}

func (h *Hub) writeLoop(c *client) {
	defer c.conn.Close()
	for data := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			h.logger.Debug("write failed", "error", err)
			h.drop(c)
			return
		}
	}
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

func (h *Hub) broadcast(msg Message, droppable bool) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("marshal failed", "type", msg.Type, "error", err)
		return
	}
	h.mu.Lock()
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		h.enqueue(c, data, droppable)
	}
}

func (h *Hub) deliver(c *client, msg Message, droppable bool) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("marshal failed", "type", msg.Type, "error", err)
		return
	}
	h.enqueue(c, data, droppable)
}

// enqueue never blocks. A full buffer drops frames; a client too slow to
// take anything else is disconnected.
func (h *Hub) enqueue(c *client, data []byte, droppable bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	select {
	case c.send <- data:
	default:
		if droppable {
			return
		}
		h.logger.Warn("client too slow, disconnecting")
		h.removeLocked(c)
	}
}

func (h *Hub) drop(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(c)
}

func (h *Hub) removeLocked(c *client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	c.once.Do(func() { close(c.send) })
}

// Close unsubscribes from the controller and disconnects every client.
func (h *Hub) Close() {
	for _, off := range h.unsubscribe {
		off()
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		h.removeLocked(c)
	}
}
