package inmemory

import (
	"context"
	"log/slog"
	"sync"

	"github.com/sharetube/theatre/internal/metrics"
	"github.com/sharetube/theatre/internal/repository/connection"
)

type group struct {
	mu    sync.Mutex
	conns map[string]connection.Conn
	// set once the group is unlinked from the registry; joiners must fetch a fresh one
	dead bool
}

type repo struct {
	groups  map[string]*group
	mu      sync.RWMutex
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func NewRepo(logger *slog.Logger, m *metrics.Metrics) *repo {
	return &repo{
		groups:  make(map[string]*group),
		logger:  logger,
		metrics: m,
	}
}

func (r *repo) getGroup(roomID string) (*group, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	g, ok := r.groups[roomID]
	return g, ok
}

func (r *repo) getOrCreateGroup(roomID string) *group {
	if g, ok := r.getGroup(roomID); ok {
		return g
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	g, ok := r.groups[roomID]
	if !ok {
		g = &group{conns: make(map[string]connection.Conn)}
		r.groups[roomID] = g
	}

	return g
}

func (r *repo) Join(roomID string, conn connection.Conn) {
	for {
		g := r.getOrCreateGroup(roomID)
		g.mu.Lock()
		if g.dead {
			g.mu.Unlock()
			continue
		}

		g.conns[conn.ID()] = conn
		g.mu.Unlock()

		r.logger.Debug("connection joined room group", "room_id", roomID, "conn_id", conn.ID())
		return
	}
}

// Leave reports whether conn was registered in the room.
func (r *repo) Leave(roomID string, conn connection.Conn) bool {
	g, ok := r.getGroup(roomID)
	if !ok {
		return false
	}

	g.mu.Lock()
	if _, ok := g.conns[conn.ID()]; !ok {
		g.mu.Unlock()
		return false
	}

	delete(g.conns, conn.ID())
	empty := len(g.conns) == 0
	g.mu.Unlock()

	r.logger.Debug("connection left room group", "room_id", roomID, "conn_id", conn.ID())
	if empty {
		r.dropIfEmpty(roomID, g)
	}

	return true
}

func (r *repo) dropIfEmpty(roomID string, g *group) {
	r.mu.Lock()
	defer r.mu.Unlock()

	g.mu.Lock()
	defer g.mu.Unlock()

	if len(g.conns) > 0 || r.groups[roomID] != g {
		return
	}

	g.dead = true
	delete(r.groups, roomID)
}

// Broadcast enqueues msg to every connection of the room except exclude and returns the
// number of successful enqueues. Failed deliveries are logged and skipped.
func (r *repo) Broadcast(ctx context.Context, roomID string, msg []byte, exclude connection.Conn) int {
	g, ok := r.getGroup(roomID)
	if !ok {
		return 0
	}

	g.mu.Lock()
	recipients := make([]connection.Conn, 0, len(g.conns))
	for id, conn := range g.conns {
		if exclude != nil && id == exclude.ID() {
			continue
		}
		recipients = append(recipients, conn)
	}
	g.mu.Unlock()

	delivered := 0
	for _, conn := range recipients {
		if err := conn.Send(msg); err != nil {
			r.logger.WarnContext(ctx, "failed to deliver message", "room_id", roomID, "conn_id", conn.ID(), "error", err)
			r.metrics.DroppedDeliveries.Inc()
			continue
		}
		delivered++
	}

	return delivered
}

func (r *repo) Count(roomID string) int {
	g, ok := r.getGroup(roomID)
	if !ok {
		return 0
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	return len(g.conns)
}
