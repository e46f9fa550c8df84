package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/cwrk-planet/chat-service/internal/chat"
	"github.com/cwrk-planet/chat-service/internal/domain"

	"github.com/gorilla/websocket"
)

type Engine interface {
	Attach(s *chat.Session) error
	Join(ctx context.Context, s *chat.Session, roomID domain.RoomID) error
	Send(ctx context.Context, s *chat.Session, roomID domain.RoomID, text string) (domain.Message, error)
	Disconnect(s *chat.Session)
}

type Options struct {
	QueueSize     int
	PingEvery     time.Duration
	WriteTimeout  time.Duration
	MaxFrameBytes int64
	OpTimeout     time.Duration
	// AllowedOrigins пустой: принимаем любой Origin.
	AllowedOrigins []string
}

type Server struct {
	upgrader websocket.Upgrader
	engine   Engine
	verifier chat.IdentityVerifier
	opts     Options
	log      *slog.Logger
}

func NewServer(engine Engine, verifier chat.IdentityVerifier, opts Options, log *slog.Logger) *Server {
	if opts.QueueSize <= 0 {
		opts.QueueSize = 64
	}
	if opts.PingEvery <= 0 {
		opts.PingEvery = 15 * time.Second
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 5 * time.Second
	}
	if opts.MaxFrameBytes <= 0 {
		opts.MaxFrameBytes = 1 << 20
	}
	if opts.OpTimeout <= 0 {
		opts.OpTimeout = 10 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}

	s := &Server{
		engine:   engine,
		verifier: verifier,
		opts:     opts,
		log:      log.With(slog.String("module", "transport.ws")),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

func (s *Server) checkOrigin(r *http.Request) bool {
	if len(s.opts.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, o := range s.opts.AllowedOrigins {
		if o == "*" || strings.EqualFold(o, origin) {
			return true
		}
	}
	return false
}

// WS endpoint: GET /ws, токен в Authorization: Bearer, ?token= или ?access_token=.
// Токен проверяется до апгрейда: без него сокет не открывается.
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	sess := chat.NewSession(s.opts.QueueSize)
	if err := sess.Authenticate(tokenFromRequest(r), s.verifier); err != nil {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	// сессия учитывается до апгрейда, чтобы Shutdown закрыл и её
	if err := s.engine.Attach(sess); err != nil {
		sess.Close()
		writeError(w, http.StatusServiceUnavailable, "Service unavailable")
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade сам ответил клиенту
		s.log.Warn("ws upgrade failed", slog.Any("err", err))
		s.engine.Disconnect(sess)
		return
	}

	id := sess.Identity()
	log := s.log.With(
		slog.String("session", sess.ID()),
		slog.Int64("user", int64(id.ID)),
		slog.String("username", id.Username),
	)
	log.Info("ws connected")

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.writeLoop(conn, sess, log)
	}()

	s.readLoop(r.Context(), conn, sess, log)

	s.engine.Disconnect(sess)
	<-done
	log.Info("ws disconnected")
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func tokenFromRequest(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); len(auth) > 7 && strings.EqualFold(auth[:7], "bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	q := r.URL.Query()
	if t := strings.TrimSpace(q.Get("token")); t != "" {
		return t
	}
	return strings.TrimSpace(q.Get("access_token"))
}

// readLoop обрабатывает кадры строго по порядку поступления.
func (s *Server) readLoop(ctx context.Context, conn *websocket.Conn, sess *chat.Session, log *slog.Logger) {
	conn.SetReadLimit(s.opts.MaxFrameBytes)
	_ = conn.SetReadDeadline(time.Now().Add(2 * s.opts.PingEvery))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(2 * s.opts.PingEvery))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) && !sess.Closed() {
				log.Debug("ws read failed", slog.Any("err", err))
			}
			return
		}
		if !sess.Active() {
			return
		}
		s.dispatch(ctx, sess, data, log)
	}
}

func (s *Server) dispatch(ctx context.Context, sess *chat.Session, data []byte, log *slog.Logger) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		s.fail(sess, "", chat.ErrInvalidInput, log)
		return
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.OpTimeout)
	defer cancel()

	switch chat.EventType(msg.Type) {
	case chat.TypeJoinRoom:
		var p JoinPayload
		if err := decodePayload(msg.Payload, &p); err != nil {
			s.fail(sess, chat.OpJoin, err, log)
			return
		}
		if err := s.engine.Join(ctx, sess, p.RoomID.ID()); err != nil {
			s.fail(sess, chat.OpJoin, err, log)
		}

	case chat.TypeSendMessage:
		var p SendPayload
		if err := decodePayload(msg.Payload, &p); err != nil {
			s.fail(sess, chat.OpSend, err, log)
			return
		}
		if _, err := s.engine.Send(ctx, sess, p.RoomID.ID(), p.Message); err != nil {
			s.fail(sess, chat.OpSend, err, log)
		}

	default:
		s.fail(sess, "", chat.ErrUnknownOp, log)
	}
}

// fail сообщает ошибку только отправителю; соединение остаётся открытым.
func (s *Server) fail(sess *chat.Session, op chat.Op, err error, log *slog.Logger) {
	if chat.Expected(err) {
		log.Debug("ws op rejected", slog.String("op", string(op)), slog.Any("err", err))
	} else {
		log.Error("ws op failed", slog.String("op", string(op)), slog.Any("err", err))
	}

	if derr := sess.Deliver(chat.NewFailure(op, err)); derr != nil && !errors.Is(derr, chat.ErrSessionClosed) {
		log.Warn("ws failure not delivered, closing", slog.Any("err", derr))
		sess.Close()
	}
}

// writeLoop: единственный писатель в conn: события из очереди сессии и пинги.
func (s *Server) writeLoop(conn *websocket.Conn, sess *chat.Session, log *slog.Logger) {
	ticker := time.NewTicker(s.opts.PingEvery)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()

	for {
		select {
		case ev, ok := <-sess.Outbound():
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
					time.Now().Add(s.opts.WriteTimeout))
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(s.opts.WriteTimeout))
			if err := conn.WriteJSON(encode(ev)); err != nil {
				log.Debug("ws write failed", slog.Any("err", err))
				sess.Close()
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(s.opts.WriteTimeout)); err != nil {
				log.Debug("ws ping failed", slog.Any("err", err))
				sess.Close()
				return
			}
		}
	}
}
