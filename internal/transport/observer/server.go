package observer

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"voxelforge.dev/internal/observerproto"
	"voxelforge.dev/internal/protocol"
	"voxelforge.dev/internal/sim/block"
	"voxelforge.dev/internal/sim/encoding"
	"voxelforge.dev/internal/sim/level"
)

// LevelSource resolves a level name; "" means the default level.
type LevelSource interface {
	Get(name string) (*level.Level, error)
}

type session struct {
	id    string
	level atomic.Value // string
	out   chan []byte
}

func (s *session) watching() string {
	v, _ := s.level.Load().(string)
	return v
}

// Hub fans committed block batches and overload notices out to observer
// websocket sessions. It is the Broadcaster and Notifier of every level.
type Hub struct {
	log *log.Logger

	upgrader websocket.Upgrader

	srcMu sync.RWMutex
	src   LevelSource

	mu       sync.RWMutex
	sessions map[string]*session

	sent    atomic.Uint64
	dropped atomic.Uint64
}

func NewHub(logger *log.Logger) *Hub {
	return &Hub{
		log:      logger,
		sessions: make(map[string]*session),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

// SetLevels attaches the level lookup used by bootstrap and subscribe.
func (h *Hub) SetLevels(src LevelSource) {
	h.srcMu.Lock()
	h.src = src
	h.srcMu.Unlock()
}

func (h *Hub) lookup(name string) (*level.Level, error) {
	h.srcMu.RLock()
	src := h.src
	h.srcMu.RUnlock()
	if src == nil {
		return nil, fmt.Errorf("no levels attached")
	}
	return src.Get(name)
}

// Flush implements level.Broadcaster.
func (h *Hub) Flush(l *level.Level, batch []level.BlockChange) {
	if len(batch) == 0 {
		return
	}
	msg := observerproto.BlocksMsg{
		Type:            observerproto.TypeBlocks,
		ProtocolVersion: observerproto.Version,
		Level:           l.Name(),
		Cells:           make([]observerproto.BlockCell, len(batch)),
	}
	for i, c := range batch {
		msg.Cells[i] = observerproto.BlockCell{X: c.Pos.X, Y: c.Pos.Y, Z: c.Pos.Z, Block: uint8(c.Type)}
	}
	h.publish(l.Name(), msg)
}

// Warn implements level.Notifier. The notice carries the level's overload
// state, so observers get one message per transition.
func (h *Hub) Warn(l *level.Level, msg string) {
	n := observerproto.NoticeMsg{
		Type:            observerproto.TypeNotice,
		ProtocolVersion: observerproto.Version,
		Level:           l.Name(),
		Message:         msg,
	}
	if st := l.Monitor().State(); st != level.StateNormal {
		n.State = st.String()
	}
	h.publish(l.Name(), n)
}

// Log implements level.Notifier.
func (h *Hub) Log(msg string) {
	if h.log != nil {
		h.log.Print(msg)
	}
}

func (h *Hub) publish(levelName string, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		h.Log(fmt.Sprintf("[observer] marshal: %v", err))
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, s := range h.sessions {
		if s.watching() != levelName {
			continue
		}
		select {
		case s.out <- b:
			h.sent.Add(1)
		default:
			// Slow observer; it resyncs through bootstrap.
			h.dropped.Add(1)
		}
	}
}

func (h *Hub) Sessions() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

func (h *Hub) Counts() (sent, dropped uint64) { return h.sent.Load(), h.dropped.Load() }

func (h *Hub) join(levelName string) *session {
	s := &session{id: uuid.NewString(), out: make(chan []byte, 1024)}
	s.level.Store(levelName)
	h.mu.Lock()
	h.sessions[s.id] = s
	h.mu.Unlock()
	return s
}

func (h *Hub) leave(id string) {
	h.mu.Lock()
	delete(h.sessions, id)
	h.mu.Unlock()
}

func (h *Hub) BootstrapHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		l, err := h.lookup(r.URL.Query().Get("level"))
		if err != nil {
			rw.Header().Set("Content-Type", "application/json")
			rw.WriteHeader(http.StatusNotFound)
			_ = json.NewEncoder(rw).Encode(protocol.ErrorBody{Code: protocol.ErrLevelNotFound, Message: err.Error()})
			return
		}

		cfg := l.Config()
		v := l.View()
		resp := observerproto.BootstrapResponse{
			ProtocolVersion: observerproto.Version,
			Level:           l.Name(),
			Tick:            v.Tick,
			Params: observerproto.LevelParams{
				Size:       [3]int{cfg.Width, cfg.Height, cfg.Length},
				Mode:       l.Mode().String(),
				IntervalMs: cfg.Interval.Milliseconds(),
				OverloadMs: cfg.Overload.Milliseconds(),
				Seed:       cfg.Seed,
			},
			BlockPalette: block.Palette(),
			Digest:       fmt.Sprintf("%016x", v.Digest),
			Encoding:     observerproto.EncodingRLE,
			Data:         encoding.EncodeGrid(v.Blocks),
		}

		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(resp)
	}
}

func (h *Hub) WSHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}

		conn, err := h.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		// Handshake: must send SUBSCRIBE first.
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		l, reason := h.subscribe(msg)
		if l == nil {
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason), time.Now().Add(time.Second))
			return
		}

		s := h.join(l.Name())
		defer h.leave(s.id)
		if h.log != nil {
			h.log.Printf("[observer] session %s watching %s", s.id, l.Name())
		}

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		// Writer goroutine.
		writeErr := make(chan error, 1)
		go func() {
			for {
				select {
				case <-ctx.Done():
					writeErr <- ctx.Err()
					return
				case b := <-s.out:
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						writeErr <- err
						return
					}
				}
			}
		}()

		// Reader loop: a new SUBSCRIBE switches levels.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}
			if next, _ := h.subscribe(msg); next != nil {
				s.level.Store(next.Name())
			}
		}

		cancel()
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(time.Second))

		// Best-effort wait for the writer to stop so it doesn't outlive conn.
		select {
		case <-writeErr:
		case <-time.After(500 * time.Millisecond):
		}
	}
}

func (h *Hub) subscribe(msg []byte) (*level.Level, string) {
	base, err := protocol.DecodeBase(msg)
	if err != nil {
		return nil, "bad subscribe"
	}
	if base.Type != observerproto.TypeSubscribe || base.ProtocolVersion != observerproto.Version {
		return nil, "expected SUBSCRIBE"
	}
	var sub observerproto.SubscribeMsg
	if err := json.Unmarshal(msg, &sub); err != nil {
		return nil, "bad subscribe"
	}
	l, err := h.lookup(strings.TrimSpace(sub.Level))
	if err != nil {
		return nil, "unknown level"
	}
	return l, ""
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
