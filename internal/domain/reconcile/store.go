package reconcile

import (
	"context"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/irysflip/questsync/internal/domain/schedule"
)

// SyncRecord is the persisted per-player engine state.
type SyncRecord struct {
	Player     common.Address
	Markers    schedule.Markers
	LastSyncAt time.Time
}

// Store persists SyncRecords across restarts. Only the engine writes them.
type Store interface {
	// LoadSyncRecord returns a zero record (with Player set) when none exists.
	LoadSyncRecord(ctx context.Context, player common.Address) (SyncRecord, error)
	SaveSyncRecord(ctx context.Context, rec SyncRecord) error
}

// MemoryStore keeps records in process memory.
type MemoryStore struct {
	mu      sync.Mutex
	records map[common.Address]SyncRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[common.Address]SyncRecord)}
}

func (s *MemoryStore) LoadSyncRecord(_ context.Context, player common.Address) (SyncRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.records[player]; ok {
		return rec, nil
	}
	return SyncRecord{Player: player}, nil
}

func (s *MemoryStore) SaveSyncRecord(_ context.Context, rec SyncRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.Player] = rec
	return nil
}
