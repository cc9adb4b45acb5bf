package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	lru "github.com/hashicorp/golang-lru"
)

const DefaultCacheSize = 16

// Manager keeps one running Engine per player. The least recently used
// engine is disposed when the cache is full.
type Manager struct {
	template Config
	mu       sync.Mutex
	engines  *lru.Cache
}

// NewManager builds engines from template, overriding only the player.
func NewManager(template Config, size int) (*Manager, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.NewWithEvict(size, func(key, value interface{}) {
		if e, ok := value.(*Engine); ok {
			e.Dispose()
		}
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create engine cache: %w", err)
	}
	return &Manager{template: template, engines: cache}, nil
}

// Engine returns the started engine for player, creating it on first use.
func (m *Manager) Engine(ctx context.Context, player common.Address) (*Engine, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if v, ok := m.engines.Get(player); ok {
		return v.(*Engine), nil
	}

	cfg := m.template
	cfg.Player = player
	e, err := NewEngine(cfg)
	if err != nil {
		return nil, err
	}
	if err := e.Start(ctx); err != nil {
		e.Dispose()
		return nil, fmt.Errorf("failed to start engine for %s: %w", player.Hex(), err)
	}
	m.engines.Add(player, e)

	slog.Debug("Engine cached",
		slog.String("type", "sync"),
		slog.String("player", player.Hex()),
		slog.Int("cached", m.engines.Len()))
	return e, nil
}

// Remove disposes the engine for player, if any.
func (m *Manager) Remove(player common.Address) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.engines.Remove(player)
}

// Players lists the players with a live engine, oldest first.
func (m *Manager) Players() []common.Address {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := m.engines.Keys()
	out := make([]common.Address, 0, len(keys))
	for _, k := range keys {
		out = append(out, k.(common.Address))
	}
	return out
}

// Close disposes every engine.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.engines.Purge()
}
