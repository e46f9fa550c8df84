package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/cwrk-planet/chat-service/internal/domain"
	"github.com/cwrk-planet/chat-service/internal/security"
	"github.com/cwrk-planet/chat-service/internal/service"
	httpmw "github.com/cwrk-planet/chat-service/internal/transport/http/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

const headerNextCursor = "X-Next-Cursor"

type AuthService interface {
	Register(ctx context.Context, username, password string) (*service.AuthResult, error)
	Login(ctx context.Context, username, password string) (*service.AuthResult, error)
}

type RoomService interface {
	CreateRoom(ctx context.Context, name, kind string, creator domain.UserID) (*domain.Room, error)
	ListRooms(ctx context.Context, limit int, cursor string) ([]domain.Room, string, error)
	MyRooms(ctx context.Context, userID domain.UserID) ([]domain.Room, error)
	JoinRoom(ctx context.Context, roomID domain.RoomID, userID domain.UserID) (bool, error)
	Members(ctx context.Context, roomID domain.RoomID, requester domain.UserID) ([]domain.Membership, error)
	History(ctx context.Context, roomID domain.RoomID, after string, limit int) ([]domain.Message, string, error)
}

type Handler struct {
	authSvc  AuthService
	roomSvc  RoomService
	validate *validator.Validate
}

func NewHandler(auth AuthService, rooms RoomService) *Handler {
	return &Handler{
		authSvc:  auth,
		roomSvc:  rooms,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("write json response failed", slog.Any("err", err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

func serverError(w http.ResponseWriter, r *http.Request, where string, err error) {
	reqID, _ := httpmw.RequestIDFromCtx(r.Context())
	slog.Error(where, slog.String("req_id", reqID), slog.Any("err", err))
	writeError(w, http.StatusInternalServerError, "Server error")
}

func (h *Handler) decode(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return err
	}
	return h.validate.Struct(dst)
}

// POST /api/auth/register
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req CredentialsRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "username and password required")
		return
	}

	res, err := h.authSvc.Register(r.Context(), req.Username, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrCredentialsRequired):
			writeError(w, http.StatusBadRequest, "username and password required")
		case errors.Is(err, service.ErrUsernameTaken):
			writeError(w, http.StatusBadRequest, "Username already exists")
		case errors.Is(err, security.ErrPasswordTooShort):
			writeError(w, http.StatusBadRequest, "Password too short")
		default:
			serverError(w, r, "handler.Register", err)
		}
		return
	}

	writeJSON(w, http.StatusOK, authResponse("Registered", res))
}

// POST /api/auth/login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req CredentialsRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "username and password required")
		return
	}

	res, err := h.authSvc.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrCredentialsRequired):
			writeError(w, http.StatusBadRequest, "username and password required")
		case errors.Is(err, service.ErrInvalidCredentials):
			writeError(w, http.StatusBadRequest, "Invalid credentials")
		default:
			serverError(w, r, "handler.Login", err)
		}
		return
	}

	writeJSON(w, http.StatusOK, authResponse("Logged in", res))
}

func authResponse(msg string, res *service.AuthResult) AuthResponse {
	return AuthResponse{
		Message: msg,
		Token:   res.Token,
		User:    UserItem{ID: res.User.ID, Username: res.User.Username},
	}
}

// POST /api/rooms
func (h *Handler) CreateRoom(w http.ResponseWriter, r *http.Request) {
	id, _ := httpmw.IdentityFromCtx(r.Context())

	var req CreateRoomRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid room")
		return
	}

	room, err := h.roomSvc.CreateRoom(r.Context(), req.Name, req.Type, id.ID)
	if err != nil {
		if errors.Is(err, service.ErrNameTooLong) {
			writeError(w, http.StatusBadRequest, "invalid room")
			return
		}
		serverError(w, r, "handler.CreateRoom", err)
		return
	}

	writeJSON(w, http.StatusOK, CreateRoomResponse{Message: "Room created", RoomID: room.ID})
}

// GET /api/rooms?limit=&cursor=
func (h *Handler) ListRooms(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	rooms, next, err := h.roomSvc.ListRooms(r.Context(), queryInt(q.Get("limit"), 20), q.Get("cursor"))
	if err != nil {
		if errors.Is(err, domain.ErrInvalidArg) {
			writeError(w, http.StatusBadRequest, "invalid cursor")
			return
		}
		serverError(w, r, "handler.ListRooms", err)
		return
	}
	if next != "" {
		w.Header().Set(headerNextCursor, next)
	}
	writeJSON(w, http.StatusOK, toRoomItems(rooms))
}

// GET /api/rooms/my
func (h *Handler) MyRooms(w http.ResponseWriter, r *http.Request) {
	id, _ := httpmw.IdentityFromCtx(r.Context())

	rooms, err := h.roomSvc.MyRooms(r.Context(), id.ID)
	if err != nil {
		serverError(w, r, "handler.MyRooms", err)
		return
	}
	writeJSON(w, http.StatusOK, toRoomItems(rooms))
}

// POST /api/rooms/{id}/join
func (h *Handler) JoinRoom(w http.ResponseWriter, r *http.Request) {
	id, _ := httpmw.IdentityFromCtx(r.Context())
	roomID, ok := roomParam(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "roomId required")
		return
	}

	already, err := h.roomSvc.JoinRoom(r.Context(), roomID, id.ID)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrRoomNotFound):
			writeError(w, http.StatusNotFound, "Room not found")
		case errors.Is(err, domain.ErrNotAMember):
			writeError(w, http.StatusForbidden, "You are not a member of this private room")
		default:
			serverError(w, r, "handler.JoinRoom", err)
		}
		return
	}

	msg := "Joined room"
	if already {
		msg = "Already a member"
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: msg})
}

// GET /api/rooms/{id}/members
func (h *Handler) Members(w http.ResponseWriter, r *http.Request) {
	id, _ := httpmw.IdentityFromCtx(r.Context())
	roomID, ok := roomParam(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "roomId required")
		return
	}

	members, err := h.roomSvc.Members(r.Context(), roomID, id.ID)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrRoomNotFound):
			writeError(w, http.StatusNotFound, "Room not found")
		case errors.Is(err, domain.ErrNotAMember):
			writeError(w, http.StatusForbidden, "You are not a member of this room")
		default:
			serverError(w, r, "handler.Members", err)
		}
		return
	}

	out := make([]MemberItem, 0, len(members))
	for _, m := range members {
		out = append(out, MemberItem{RoomID: m.RoomID, UserID: m.UserID, JoinedAt: m.JoinedAt})
	}
	writeJSON(w, http.StatusOK, out)
}

// GET /api/messages/{roomId}?after=&limit=
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	roomID, ok := roomParam(r, "roomId")
	if !ok {
		writeError(w, http.StatusBadRequest, "roomId required")
		return
	}
	q := r.URL.Query()

	msgs, next, err := h.roomSvc.History(r.Context(), roomID, q.Get("after"), queryInt(q.Get("limit"), 50))
	if err != nil {
		if errors.Is(err, domain.ErrInvalidArg) {
			writeError(w, http.StatusBadRequest, "invalid cursor")
			return
		}
		serverError(w, r, "handler.History", err)
		return
	}
	if next != "" {
		w.Header().Set(headerNextCursor, next)
	}

	out := make([]MessageItem, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, MessageItem{
			ID:        m.ID,
			RoomID:    m.RoomID,
			UserID:    m.Author.ID,
			Username:  m.Author.Username,
			Message:   m.Text,
			CreatedAt: m.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func roomParam(r *http.Request, name string) (domain.RoomID, bool) {
	n, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || n <= 0 {
		return 0, false
	}
	return domain.RoomID(n), true
}

func queryInt(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}
