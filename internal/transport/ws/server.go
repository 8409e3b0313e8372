package ws

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"procoin.app/internal/protocol"
)

// Engine is the part of the world a session talks to.
type Engine interface {
	Hello(ctx context.Context, userID string) (protocol.WelcomeMsg, error)
	Exec(ctx context.Context, userID string, cmd protocol.CmdMsg) (protocol.ResultMsg, error)
}

type Options struct {
	// Token, when set, must match HELLO auth.token.
	Token string
	// MaxCmdsPerSec caps commands per session; excess gets E_RATE_LIMIT.
	MaxCmdsPerSec int
	ExecTimeout   time.Duration
}

type Server struct {
	engine Engine
	log    *log.Logger
	opts   Options

	upgrader websocket.Upgrader
}

func NewServer(e Engine, logger *log.Logger, opts Options) *Server {
	if logger == nil {
		logger = log.Default()
	}
	if opts.MaxCmdsPerSec <= 0 {
		opts.MaxCmdsPerSec = 10
	}
	if opts.ExecTimeout <= 0 {
		opts.ExecTimeout = 5 * time.Second
	}
	return &Server{
		engine: e,
		log:    logger,
		opts:   opts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		userID, sessionID := s.handshake(ctx, conn)
		if userID == "" {
			return
		}
		s.log.Printf("session %s: user %s connected", sessionID, userID)
		defer s.log.Printf("session %s: user %s disconnected", sessionID, userID)

		lim := newWindowLimiter(s.opts.MaxCmdsPerSec, time.Second)
		for {
			_ = conn.SetReadDeadline(time.Now().Add(5 * time.Minute))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			res := s.handle(ctx, userID, msg, lim)
			if err := writeJSON(conn, res); err != nil {
				return
			}
		}
	}
}

func (s *Server) handle(ctx context.Context, userID string, msg []byte, lim *windowLimiter) protocol.ResultMsg {
	res := protocol.ResultMsg{Type: protocol.TypeResult, ProtocolVersion: protocol.Version}
	reject := func(code, text string) protocol.ResultMsg {
		res.Code = code
		res.Message = text
		return res
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeCmd {
		return reject(protocol.ErrProtoBadRequest, "expected CMD")
	}
	var cmd protocol.CmdMsg
	if err := json.Unmarshal(msg, &cmd); err != nil {
		return reject(protocol.ErrProtoBadRequest, "malformed CMD")
	}
	res.ID, res.Cmd = cmd.ID, cmd.Cmd
	if cmd.ProtocolVersion != protocol.Version {
		return reject(protocol.ErrProtoBadRequest, "bad protocol_version")
	}
	if !protocol.IsKnownCmd(cmd.Cmd) {
		return reject(protocol.ErrBadRequest, "unknown command: "+cmd.Cmd)
	}
	if !lim.Allow(time.Now()) {
		return reject(protocol.ErrRateLimit, "slow down")
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.ExecTimeout)
	defer cancel()
	out, err := s.engine.Exec(ctx, userID, cmd)
	if err != nil {
		return reject(protocol.ErrBusy, err.Error())
	}
	return out
}

func (s *Server) handshake(ctx context.Context, conn *websocket.Conn) (userID, sessionID string) {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return "", ""
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		closeWith(conn, "expected HELLO")
		return "", ""
	}
	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		closeWith(conn, "malformed HELLO")
		return "", ""
	}
	if hello.ProtocolVersion != protocol.Version {
		closeWith(conn, "bad protocol_version")
		return "", ""
	}
	hello.UserID = strings.TrimSpace(hello.UserID)
	if hello.UserID == "" {
		closeWith(conn, "missing user_id")
		return "", ""
	}
	if s.opts.Token != "" && (hello.Auth == nil || hello.Auth.Token != s.opts.Token) {
		closeWith(conn, "bad token")
		return "", ""
	}

	welcome, err := s.engine.Hello(ctx, hello.UserID)
	if err != nil {
		s.log.Printf("hello %s: %v", hello.UserID, err)
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "busy"), time.Now().Add(time.Second))
		return "", ""
	}
	welcome.SessionID = uuid.NewString()
	if err := writeJSON(conn, welcome); err != nil {
		return "", ""
	}
	return hello.UserID, welcome.SessionID
}

func closeWith(conn *websocket.Conn, reason string) {
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason), time.Now().Add(time.Second))
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}

// windowLimiter allows n events per fixed window. Not safe for concurrent use;
// each session owns one.
type windowLimiter struct {
	n      int
	window time.Duration
	start  time.Time
	count  int
}

func newWindowLimiter(n int, window time.Duration) *windowLimiter {
	return &windowLimiter{n: n, window: window}
}

func (l *windowLimiter) Allow(now time.Time) bool {
	if now.Sub(l.start) >= l.window {
		l.start = now
		l.count = 0
	}
	if l.count >= l.n {
		return false
	}
	l.count++
	return true
}
