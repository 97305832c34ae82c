package admin

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"

	"voxelforge.dev/internal/protocol"
	"voxelforge.dev/internal/sim/block"
	"voxelforge.dev/internal/sim/level"
)

// Levels is the view of the level manager the admin API needs.
type Levels interface {
	Get(name string) (*level.Level, error)
	Names() []string
}

// LevelState is the body of GET /admin/v1/levels/{name}/state.
type LevelState struct {
	Level   string        `json:"level"`
	Size    [3]int        `json:"size"`
	Digest  string        `json:"digest"`
	Metrics level.Metrics `json:"metrics"`
}

// CellRequest addresses one cell for check and update requests.
type CellRequest struct {
	X        int    `json:"x"`
	Y        int    `json:"y"`
	Z        int    `json:"z"`
	Block    string `json:"block,omitempty"`
	Override bool   `json:"override,omitempty"`
	Payload  string `json:"payload,omitempty"`
}

type ModeRequest struct {
	Mode string `json:"mode"`
}

// MetaRequest sets or clears the message and portal data of one cell.
type MetaRequest struct {
	X       int        `json:"x"`
	Y       int        `json:"y"`
	Z       int        `json:"z"`
	Message string     `json:"message,omitempty"`
	Portal  *level.Pos `json:"portal,omitempty"`
}

// ActionResult is the reply to place, delete and walk. Messages and Teleport
// are what the handlers sent to the acting operator.
type ActionResult struct {
	OK       bool       `json:"ok"`
	Block    string     `json:"block"`
	Messages []string   `json:"messages,omitempty"`
	Teleport *level.Pos `json:"teleport,omitempty"`
}

// CellInfo is the body of GET /admin/v1/levels/{name}/info.
type CellInfo struct {
	Pos      level.Pos  `json:"pos"`
	Block    string     `json:"block"`
	HasCheck bool       `json:"has_check"`
	Payload  string     `json:"payload,omitempty"`
	Message  string     `json:"message,omitempty"`
	Portal   *level.Pos `json:"portal,omitempty"`
}

// operator is the Actor behind admin place, delete and walk requests.
type operator struct {
	messages []string
	teleport *level.Pos
}

func (o *operator) Name() string { return "admin" }

func (o *operator) SendMessage(msg string) { o.messages = append(o.messages, msg) }

func (o *operator) Teleport(p level.Pos) { o.teleport = &p }

// Handler serves the loopback-only admin API:
//
//	GET  /admin/v1/levels
//	GET  /admin/v1/levels/{name}/state
//	POST /admin/v1/levels/{name}/mode    {"mode":"advanced"}
//	POST /admin/v1/levels/{name}/stop
//	POST /admin/v1/levels/{name}/check   CellRequest
//	POST /admin/v1/levels/{name}/update  CellRequest
//	POST /admin/v1/levels/{name}/place   CellRequest (block)
//	POST /admin/v1/levels/{name}/delete  CellRequest
//	POST /admin/v1/levels/{name}/walk    CellRequest
//	POST /admin/v1/levels/{name}/meta    MetaRequest
//	GET  /admin/v1/levels/{name}/info?x=&y=&z=
func Handler(levels Levels) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/admin/v1/levels", func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			writeError(rw, http.StatusForbidden, protocol.ErrNoPermission, "forbidden")
			return
		}
		if r.Method != http.MethodGet {
			writeError(rw, http.StatusMethodNotAllowed, protocol.ErrMethodNotAllow, r.Method)
			return
		}
		out := make([]level.Metrics, 0)
		for _, name := range levels.Names() {
			if l, err := levels.Get(name); err == nil {
				out = append(out, l.Metrics())
			}
		}
		writeJSON(rw, out)
	})
	mux.HandleFunc("/admin/v1/levels/", func(rw http.ResponseWriter, r *http.Request) {
		// Pattern: /admin/v1/levels/{name}/{action}
		if !isLoopbackRemote(r.RemoteAddr) {
			writeError(rw, http.StatusForbidden, protocol.ErrNoPermission, "forbidden")
			return
		}
		path := strings.TrimPrefix(r.URL.Path, "/admin/v1/levels/")
		parts := strings.Split(strings.Trim(path, "/"), "/")
		if len(parts) != 2 {
			http.NotFound(rw, r)
			return
		}
		l, err := levels.Get(parts[0])
		if err != nil {
			writeError(rw, http.StatusNotFound, protocol.ErrLevelNotFound, err.Error())
			return
		}
		action := parts[1]
		if action == "state" || action == "info" {
			if r.Method != http.MethodGet {
				writeError(rw, http.StatusMethodNotAllowed, protocol.ErrMethodNotAllow, r.Method)
				return
			}
			if action == "info" {
				handleInfo(rw, r, l)
				return
			}
			writeJSON(rw, stateOf(l))
			return
		}
		if r.Method != http.MethodPost {
			writeError(rw, http.StatusMethodNotAllowed, protocol.ErrMethodNotAllow, r.Method)
			return
		}
		switch action {
		case "mode":
			handleMode(rw, r, l)
		case "stop":
			l.ForceStop()
			writeJSON(rw, stateOf(l))
		case "check":
			handleCell(rw, r, l, false)
		case "update":
			handleCell(rw, r, l, true)
		case "place", "delete", "walk":
			handleAction(rw, r, l, action)
		case "meta":
			handleMeta(rw, r, l)
		default:
			http.NotFound(rw, r)
		}
	})
	return mux
}

func stateOf(l *level.Level) LevelState {
	w, h, length := l.Size()
	return LevelState{
		Level:   l.Name(),
		Size:    [3]int{w, h, length},
		Digest:  fmt.Sprintf("%016x", l.Digest()),
		Metrics: l.Metrics(),
	}
}

func handleMode(rw http.ResponseWriter, r *http.Request, l *level.Level) {
	var req ModeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(rw, http.StatusBadRequest, protocol.ErrProtoBadRequest, err.Error())
		return
	}
	m, err := level.ParseMode(req.Mode)
	if err != nil {
		writeError(rw, http.StatusBadRequest, protocol.ErrUnknownMode, err.Error())
		return
	}
	if err := l.SetMode(m); err != nil {
		status, code := statusFor(err)
		writeError(rw, status, code, err.Error())
		return
	}
	writeJSON(rw, stateOf(l))
}

func handleCell(rw http.ResponseWriter, r *http.Request, l *level.Level, update bool) {
	var req CellRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(rw, http.StatusBadRequest, protocol.ErrProtoBadRequest, err.Error())
		return
	}
	p := level.Pos{X: req.X, Y: req.Y, Z: req.Z}
	if _, ok := l.Index(p); !ok {
		writeError(rw, http.StatusBadRequest, protocol.ErrOutOfBounds, p.String())
		return
	}
	payload, err := level.ParsePayload(req.Payload)
	if err != nil {
		writeError(rw, http.StatusBadRequest, protocol.ErrBadRequest, err.Error())
		return
	}
	if !update {
		l.RequestCheck(p, req.Override, payload)
		writeJSON(rw, map[string]any{"ok": true, "pending_checks": l.PendingChecks()})
		return
	}
	t, err := block.Parse(req.Block)
	if err != nil {
		writeError(rw, http.StatusBadRequest, protocol.ErrUnknownBlock, err.Error())
		return
	}
	if !l.RequestUpdate(p, t, req.Override, payload) {
		writeError(rw, http.StatusConflict, protocol.ErrRejected, "update not queued")
		return
	}
	writeJSON(rw, map[string]any{"ok": true, "pending_updates": l.PendingUpdates()})
}

func handleAction(rw http.ResponseWriter, r *http.Request, l *level.Level, action string) {
	var req CellRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(rw, http.StatusBadRequest, protocol.ErrProtoBadRequest, err.Error())
		return
	}
	p := level.Pos{X: req.X, Y: req.Y, Z: req.Z}
	op := &operator{}
	var (
		ok  bool
		err error
	)
	switch action {
	case "place":
		t, perr := block.Parse(req.Block)
		if perr != nil {
			writeError(rw, http.StatusBadRequest, protocol.ErrUnknownBlock, perr.Error())
			return
		}
		ok, err = l.Place(op, t, p)
	case "delete":
		ok, err = l.Delete(op, p)
	case "walk":
		ok, err = l.Walkthrough(op, p)
	}
	if err != nil {
		status, code := statusFor(err)
		writeError(rw, status, code, err.Error())
		return
	}
	writeJSON(rw, ActionResult{OK: ok, Block: l.Block(p).String(), Messages: op.messages, Teleport: op.teleport})
}

func handleMeta(rw http.ResponseWriter, r *http.Request, l *level.Level) {
	var req MetaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(rw, http.StatusBadRequest, protocol.ErrProtoBadRequest, err.Error())
		return
	}
	p := level.Pos{X: req.X, Y: req.Y, Z: req.Z}
	if req.Portal != nil {
		if _, ok := l.Index(*req.Portal); !ok {
			writeError(rw, http.StatusBadRequest, protocol.ErrOutOfBounds, "portal "+req.Portal.String())
			return
		}
	}
	if err := l.SetMeta(p, level.Meta{Message: req.Message, Portal: req.Portal}); err != nil {
		status, code := statusFor(err)
		writeError(rw, status, code, err.Error())
		return
	}
	writeJSON(rw, infoOf(l, p))
}

func handleInfo(rw http.ResponseWriter, r *http.Request, l *level.Level) {
	q := r.URL.Query()
	var p level.Pos
	for _, c := range []struct {
		name string
		dst  *int
	}{{"x", &p.X}, {"y", &p.Y}, {"z", &p.Z}} {
		n, err := strconv.Atoi(q.Get(c.name))
		if err != nil {
			writeError(rw, http.StatusBadRequest, protocol.ErrBadRequest, "bad "+c.name)
			return
		}
		*c.dst = n
	}
	if _, ok := l.Index(p); !ok {
		writeError(rw, http.StatusBadRequest, protocol.ErrOutOfBounds, p.String())
		return
	}
	writeJSON(rw, infoOf(l, p))
}

func infoOf(l *level.Level, p level.Pos) CellInfo {
	info := CellInfo{Pos: p, Block: l.Block(p).String()}
	if payload, ok := l.CheckPayload(p); ok {
		info.HasCheck = true
		info.Payload = payload.String()
	}
	if m, ok := l.Meta(p); ok {
		info.Message = m.Message
		info.Portal = m.Portal
	}
	return info
}

func writeJSON(rw http.ResponseWriter, v any) {
	rw.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(rw).Encode(v)
}

func writeError(rw http.ResponseWriter, status int, code, msg string) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	_ = json.NewEncoder(rw).Encode(protocol.ErrorBody{Code: code, Message: msg})
}

// statusFor maps engine errors to admin error codes.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, level.ErrOutOfBounds):
		return http.StatusBadRequest, protocol.ErrOutOfBounds
	case errors.Is(err, level.ErrUnknownBlock):
		return http.StatusBadRequest, protocol.ErrUnknownBlock
	case errors.Is(err, level.ErrUnknownMode):
		return http.StatusBadRequest, protocol.ErrUnknownMode
	case errors.Is(err, level.ErrHandlerFailed):
		return http.StatusConflict, protocol.ErrRejected
	default:
		return http.StatusInternalServerError, protocol.ErrInternal
	}
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
