// Package session binds player identities to their live connection.
package session

import (
	"errors"
	"sync"

	"mathduel-service/internal/protocol"

	"go.uber.org/zap"
)

var (
	// ErrTransportClosed is returned when enqueueing on a connection that has shut down.
	ErrTransportClosed = errors.New("transport closed")
	// ErrBufferFull is returned when a connection is not draining its outbound queue.
	ErrBufferFull = errors.New("transport send buffer full")
)

// Transport is one live connection. Enqueue must never block; messages enqueued
// on the same transport are written in call order.
type Transport interface {
	Enqueue(msg protocol.Outbound) error
	Close() error
}

// Router keeps at most one transport per player. A newer registration
// supersedes and closes the older one.
type Router struct {
	mu          sync.RWMutex
	byPlayer    map[string]Transport
	byTransport map[Transport]string
	logger      *zap.Logger
}

func NewRouter(logger *zap.Logger) *Router {
	return &Router{
		byPlayer:    make(map[string]Transport),
		byTransport: make(map[Transport]string),
		logger:      logger.Named("router"),
	}
}

// Register binds playerID to t, closing any previous transport for that player.
func (r *Router) Register(playerID string, t Transport) {
	r.mu.Lock()
	old, had := r.byPlayer[playerID]
	if had && old != t {
		delete(r.byTransport, old)
	}
	r.byPlayer[playerID] = t
	r.byTransport[t] = playerID
	r.mu.Unlock()

	if had && old != t {
		r.logger.Warn("duplicate session superseded", zap.String("player_id", playerID))
		_ = old.Close()
	}
}

// Send delivers msg to the player's live transport, if any. It never blocks
// and never reports failure to the caller.
func (r *Router) Send(playerID string, msg protocol.Outbound) {
	r.mu.RLock()
	t, ok := r.byPlayer[playerID]
	r.mu.RUnlock()
	if !ok {
		r.logger.Debug("no live session, dropping message",
			zap.String("player_id", playerID),
			zap.String("type", string(msg.MessageType())))
		return
	}

	err := t.Enqueue(msg)
	switch {
	case err == nil:
	case errors.Is(err, ErrBufferFull):
		r.logger.Warn("slow consumer, closing transport", zap.String("player_id", playerID))
		_ = t.Close()
	default:
		r.logger.Debug("send failed",
			zap.String("player_id", playerID),
			zap.String("type", string(msg.MessageType())),
			zap.Error(err))
	}
}

// Unregister drops t and returns the player it belonged to. ok is false when t
// was never registered or has already been superseded, so disconnect cleanup
// runs at most once per live session.
func (r *Router) Unregister(t Transport) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	playerID, ok := r.byTransport[t]
	if !ok {
		return "", false
	}
	delete(r.byTransport, t)
	if r.byPlayer[playerID] == t {
		delete(r.byPlayer, playerID)
	}
	return playerID, true
}

// Connected reports whether playerID currently has a live transport.
func (r *Router) Connected(playerID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.byPlayer[playerID]
	return ok
}

// Count returns the number of live sessions.
func (r *Router) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byPlayer)
}
