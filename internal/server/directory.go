package server

import (
	"errors"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/google/uuid"

	"github.com/lox/pokerrooms/internal/auth"
	"github.com/lox/pokerrooms/internal/room"
)

var ErrRoomNotFound = errors.New("room not found")

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Directory is the registry of live rooms.
type Directory struct {
	transport room.Transport
	clock     quartz.Clock
	logger    *log.Logger
	opts      []room.Option

	mu    sync.RWMutex
	rooms map[string]*room.Engine
	order []string
}

// NewDirectory creates an empty directory whose rooms publish through
// transport.
func NewDirectory(transport room.Transport, logger *log.Logger, clock quartz.Clock, opts ...room.Option) *Directory {
	return &Directory{
		transport: transport,
		clock:     clock,
		logger:    logger.WithPrefix("directory"),
		opts:      opts,
		rooms:     make(map[string]*room.Engine),
	}
}

// CreateRoom starts an idle room with a fresh id.
func (d *Directory) CreateRoom(cfg room.Config) (*room.Engine, error) {
	id := uuid.NewString()
	engine, err := room.New(id, cfg, d.transport, d.logger, d.clock, d.opts...)
	if err != nil {
		return nil, err
	}

	d.mu.Lock()
	d.rooms[id] = engine
	d.order = append(d.order, id)
	d.mu.Unlock()

	d.logger.Info("Created room", "id", id, "name", cfg.Name, "mode", cfg.Mode, "maxPlayers", cfg.MaxPlayers)
	return engine, nil
}

// GetRoom returns the room with id.
func (d *Directory) GetRoom(id string) (*room.Engine, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	engine, ok := d.rooms[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRoomNotFound, id)
	}
	return engine, nil
}

// ListRooms returns one page of room summaries in creation order along
// with the total number of rooms. Pages start at 1.
func (d *Directory) ListRooms(page, limit int) ([]room.Summary, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultPageSize
	}
	limit = min(limit, maxPageSize)

	d.mu.RLock()
	total := len(d.order)
	start := min((page-1)*limit, total)
	end := min(start+limit, total)
	engines := make([]*room.Engine, 0, end-start)
	for _, id := range d.order[start:end] {
		engines = append(engines, d.rooms[id])
	}
	d.mu.RUnlock()

	summaries := make([]room.Summary, 0, len(engines))
	for _, engine := range engines {
		summaries = append(summaries, engine.Summary())
	}
	return summaries, total
}

// JoinRoom adds the player to the room as a spectator, or reconnects them.
func (d *Directory) JoinRoom(id string, player auth.Identity) (*room.Engine, error) {
	engine, err := d.GetRoom(id)
	if err != nil {
		return nil, err
	}
	if err := engine.Join(player.UserID, player.Username); err != nil {
		return nil, fmt.Errorf("join room %s: %w", id, err)
	}
	return engine, nil
}

// Close stops every room's timers.
func (d *Directory) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, engine := range d.rooms {
		engine.Close()
	}
}
