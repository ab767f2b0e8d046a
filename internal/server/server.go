// Package server exposes rooms over HTTP and websockets: the lobby API,
// the room directory and the per-connection fan-out transport.
package server

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/gorilla/handlers"
	gmux "github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/cors"

	"github.com/lox/pokerrooms/internal/auth"
	"github.com/lox/pokerrooms/internal/room"
)

const (
	readTimeout     = 5 * time.Second
	shutdownTimeout = 5 * time.Second
)

// Options configures a Server.
type Options struct {
	Addr           string
	AllowedOrigins []string
	// Validator authenticates websocket and room-creation requests.
	Validator auth.Validator
	// Users and Tokens enable /auth/register and /auth/login. Both are
	// optional.
	Users  *auth.Store
	Tokens *auth.TokenIssuer
	// RoomDefaults is the base for rooms created over HTTP.
	RoomDefaults room.Config
	Clock        quartz.Clock
}

// Server routes HTTP requests and delivers room events to websocket
// connections. It implements room.Transport.
type Server struct {
	opts      Options
	clock     quartz.Clock
	logger    *log.Logger
	upgrader  websocket.Upgrader
	router    *gmux.Router
	directory *Directory

	mu    sync.RWMutex
	rooms map[string]map[string]*Connection // room id -> user id

	httpServer *http.Server
}

// NewServer creates a server. SetDirectory must be called before it serves
// room routes.
func NewServer(opts Options, logger *log.Logger) *Server {
	if opts.Clock == nil {
		opts.Clock = quartz.NewReal()
	}
	if opts.RoomDefaults.MaxPlayers == 0 {
		opts.RoomDefaults = room.DefaultConfig()
	}

	s := &Server{
		opts:   opts,
		clock:  opts.Clock,
		logger: logger.WithPrefix("server"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(opts.AllowedOrigins),
		},
		rooms: make(map[string]map[string]*Connection),
	}
	s.router = s.routes()
	return s
}

// SetDirectory sets the room directory served by the server.
func (s *Server) SetDirectory(d *Directory) {
	s.directory = d
}

// Directory returns the room directory.
func (s *Server) Directory() *Directory {
	return s.directory
}

// Handler returns the HTTP handler with CORS and panic recovery applied.
func (s *Server) Handler() http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins: s.opts.AllowedOrigins,
		AllowedHeaders: []string{"Origin", "Accept", "Content-Type", "X-Requested-With", "Authorization"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
	})
	return handlers.RecoveryHandler(handlers.RecoveryLogger(recoveryLogger{s.logger}))(c.Handler(s.router))
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:        s.opts.Addr,
		Handler:     s.Handler(),
		ReadTimeout: readTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting server", "addr", s.opts.Addr)
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := s.httpServer.Shutdown(shutdownCtx)
	s.Stop()
	return err
}

// Stop closes every connection and room.
func (s *Server) Stop() {
	s.mu.Lock()
	var conns []*Connection
	for _, members := range s.rooms {
		for _, c := range members {
			conns = append(conns, c)
		}
	}
	s.rooms = make(map[string]map[string]*Connection)
	s.mu.Unlock()

	for _, c := range conns {
		_ = c.Close()
	}
	if s.directory != nil {
		s.directory.Close()
	}
}

// Send implements room.Transport.
func (s *Server) Send(roomID, userID string, ev room.Event) {
	s.mu.RLock()
	c := s.rooms[roomID][userID]
	s.mu.RUnlock()
	if c == nil {
		return
	}

	msg, err := EventMessage(ev, s.clock.Now())
	if err != nil {
		s.logger.Error("Failed to encode event", "type", ev.Type(), "error", err)
		return
	}
	_ = c.SendMessage(msg)
}

// Broadcast implements room.Transport.
func (s *Server) Broadcast(roomID string, ev room.Event) {
	msg, err := EventMessage(ev, s.clock.Now())
	if err != nil {
		s.logger.Error("Failed to encode event", "type", ev.Type(), "error", err)
		return
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, c := range s.rooms[roomID] {
		if c.SendMessage(msg) == nil {
			count++
		}
	}
	s.logger.Debug("Broadcast to room", "room", roomID, "type", ev.Type(), "recipients", count)
}

// broadcastLobby pushes the first page of the room list to every
// connection.
func (s *Server) broadcastLobby() {
	if s.directory == nil {
		return
	}
	rooms, total := s.directory.ListRooms(1, defaultPageSize)
	msg, err := NewMessage(MessageTypeLobbyUpdate, LobbyUpdateData{Rooms: rooms, Total: total}, s.clock.Now())
	if err != nil {
		s.logger.Error("Failed to encode lobby update", "error", err)
		return
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, members := range s.rooms {
		for _, c := range members {
			_ = c.SendMessage(msg)
		}
	}
}

// register binds c to its room, replacing any previous connection of the
// same player.
func (s *Server) register(c *Connection) {
	roomID := c.engine.ID()

	s.mu.Lock()
	members, ok := s.rooms[roomID]
	if !ok {
		members = make(map[string]*Connection)
		s.rooms[roomID] = members
	}
	previous := members[c.identity.UserID]
	members[c.identity.UserID] = c
	s.mu.Unlock()

	if previous != nil {
		s.logger.Info("Replacing connection", "player", c.identity.UserID, "room", roomID)
		_ = previous.Close()
	}
}

// unregister drops c if it is still the player's current connection and
// reports whether it was.
func (s *Server) unregister(c *Connection) bool {
	roomID := c.engine.ID()

	s.mu.Lock()
	defer s.mu.Unlock()

	members := s.rooms[roomID]
	if members[c.identity.UserID] != c {
		return false
	}
	delete(members, c.identity.UserID)
	if len(members) == 0 {
		delete(s.rooms, roomID)
	}
	return true
}

func (s *Server) leave(c *Connection) {
	if err := c.engine.Leave(c.identity.UserID); err != nil {
		s.logger.Debug("Leave failed", "player", c.identity.UserID, "error", err)
	}
	s.unregister(c)
	_ = c.Close()
	s.broadcastLobby()
}

// watch waits for c to end and reports the disconnect to its room unless
// the player has already left or reconnected.
func (s *Server) watch(c *Connection) {
	<-c.Done()
	if s.unregister(c) {
		c.engine.Disconnect(c.identity.UserID)
		s.broadcastLobby()
	}
	_ = c.Close()
}

type recoveryLogger struct {
	logger *log.Logger
}

func (l recoveryLogger) Println(v ...interface{}) {
	l.logger.Error("Recovered from panic", "panic", v)
}

func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		set[o] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || set["*"] || set[origin]
	}
}
