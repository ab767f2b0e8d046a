package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	gmux "github.com/gorilla/mux"

	"github.com/lox/pokerrooms/internal/auth"
	"github.com/lox/pokerrooms/internal/room"
)

type ctxKey int

const ctxIdentityKey ctxKey = iota

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type authResponse struct {
	Token string    `json:"token"`
	User  auth.User `json:"user"`
}

type roomListResponse struct {
	Rooms []room.Summary `json:"rooms"`
	Total int            `json:"total"`
	Page  int            `json:"page"`
	Limit int            `json:"limit"`
}

func (s *Server) routes() *gmux.Router {
	r := gmux.NewRouter()
	r.Methods(http.MethodGet).Path("/health").HandlerFunc(s.handleHealth)
	r.Methods(http.MethodPost).Path("/auth/register").HandlerFunc(s.handleRegister)
	r.Methods(http.MethodPost).Path("/auth/login").HandlerFunc(s.handleLogin)
	r.Methods(http.MethodGet).Path("/rooms").HandlerFunc(s.handleListRooms)
	r.Methods(http.MethodGet).Path("/rooms/{id}").HandlerFunc(s.handleGetRoom)

	authed := r.NewRoute().Subrouter()
	authed.Use(s.authMiddleware)
	authed.Methods(http.MethodPost).Path("/rooms").HandlerFunc(s.handleCreateRoom)
	authed.Methods(http.MethodGet).Path("/rooms/{id}/ws").HandlerFunc(s.handleWebSocket)
	return r
}

// authMiddleware accepts a token from the access_token or token query
// parameter, or a bearer Authorization header.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := r.FormValue("access_token")
		if token == "" {
			token = r.FormValue("token")
		}
		if token == "" {
			parts := strings.Split(r.Header.Get("Authorization"), " ")
			if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
				token = parts[1]
			}
		}

		if s.opts.Validator == nil {
			writeJSONError(w, http.StatusServiceUnavailable, errors.New("authentication is not configured"))
			return
		}
		identity, err := s.opts.Validator.Validate(r.Context(), token)
		switch {
		case errors.Is(err, auth.ErrUnavailable):
			s.logger.Warn("Identity service unavailable", "error", err)
			writeJSONError(w, http.StatusServiceUnavailable, err)
			return
		case err != nil:
			writeJSONError(w, http.StatusUnauthorized, auth.ErrInvalidToken)
			return
		}

		ctx := context.WithValue(r.Context(), ctxIdentityKey, *identity)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func identityFrom(r *http.Request) auth.Identity {
	identity, _ := r.Context().Value(ctxIdentityKey).(auth.Identity)
	return identity
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, "OK")
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if s.opts.Users == nil || s.opts.Tokens == nil {
		writeJSONError(w, http.StatusNotFound, errors.New("registration is disabled"))
		return
	}

	var req credentials
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, err)
		return
	}

	user, err := s.opts.Users.CreateUser(r.Context(), req.Username, req.Password)
	switch {
	case errors.Is(err, auth.ErrUserExists):
		writeJSONError(w, http.StatusConflict, err)
		return
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeJSONError(w, http.StatusBadRequest, err)
		return
	case err != nil:
		writeJSONError(w, http.StatusInternalServerError, err)
		return
	}

	s.logger.Info("Registered user", "user", user.ID, "username", user.Username)
	s.writeToken(w, http.StatusCreated, user)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if s.opts.Users == nil || s.opts.Tokens == nil {
		writeJSONError(w, http.StatusNotFound, errors.New("login is disabled"))
		return
	}

	var req credentials
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, err)
		return
	}

	user, err := s.opts.Users.VerifyCredentials(r.Context(), req.Username, req.Password)
	if err != nil {
		writeJSONError(w, http.StatusUnauthorized, err)
		return
	}
	s.writeToken(w, http.StatusOK, user)
}

func (s *Server) writeToken(w http.ResponseWriter, status int, user auth.User) {
	token, err := s.opts.Tokens.Issue(user)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, status, authResponse{Token: token, User: user})
}

func (s *Server) handleListRooms(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.FormValue("page"))
	limit, _ := strconv.Atoi(r.FormValue("limit"))
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultPageSize
	}
	limit = min(limit, maxPageSize)

	rooms, total := s.directory.ListRooms(page, limit)
	writeJSON(w, http.StatusOK, roomListResponse{Rooms: rooms, Total: total, Page: page, Limit: limit})
}

func (s *Server) handleGetRoom(w http.ResponseWriter, r *http.Request) {
	engine, err := s.directory.GetRoom(gmux.Vars(r)["id"])
	if err != nil {
		writeJSONError(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, engine.Summary())
}

func (s *Server) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	var req RoomSettings
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, err)
		return
	}

	cfg, err := req.Apply(s.opts.RoomDefaults)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err)
		return
	}
	engine, err := s.directory.CreateRoom(cfg)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err)
		return
	}

	s.logger.Info("Room created over HTTP", "room", engine.ID(), "by", identityFrom(r).UserID)
	s.broadcastLobby()
	writeJSON(w, http.StatusCreated, engine.Summary())
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	identity := identityFrom(r)
	engine, err := s.directory.GetRoom(gmux.Vars(r)["id"])
	if err != nil {
		writeJSONError(w, http.StatusNotFound, err)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("Failed to upgrade connection", "error", err)
		return
	}

	c := newConnection(conn, identity, engine, s)
	s.register(c)
	c.Start()

	if _, err := s.directory.JoinRoom(engine.ID(), identity); err != nil {
		c.sendError(room.ErrorCode(err), err.Error())
		s.unregister(c)
		_ = c.Close()
		return
	}
	go s.watch(c)
	s.broadcastLobby()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, ErrorData{Code: strings.ReplaceAll(strings.ToLower(http.StatusText(status)), " ", "_"), Message: msg})
}
