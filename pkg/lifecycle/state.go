package lifecycle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/marmos91/tiercache/internal/logger"
	"github.com/marmos91/tiercache/pkg/asset"
	"github.com/marmos91/tiercache/pkg/repository"
)

// ErrNoState is returned by Load when nothing has been persisted.
var ErrNoState = errors.New("no navigation state saved")

// NavState is the minimal state persisted on background for restart recovery.
type NavState struct {
	Folder       repository.FolderID `json:"folder"`
	HasFolder    bool                `json:"has_folder"`
	ScrollOffset float64             `json:"scroll_offset"`
	Visible      []asset.Key         `json:"visible,omitempty"`
	SavedAt      time.Time           `json:"saved_at"`
}

// StateStore persists NavState.
type StateStore interface {
	Save(ctx context.Context, state NavState) error
	Load(ctx context.Context) (NavState, error)
	Close() error
}

// ============================================================================
// Badger
// ============================================================================

// keyNavState is the single key holding the JSON-encoded NavState.
var keyNavState = []byte("nav:state")

// BadgerStore keeps NavState in a BadgerDB directory.
type BadgerStore struct {
	db *badger.DB
}

// OpenBadgerStore opens (or creates) the store at dir. An empty dir opens an
// in-memory database.
func OpenBadgerStore(dir string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open state store: %w", err)
	}
	logger.Debug("State store opened", logger.KeyStore, "badger", logger.KeyPath, dir)
	return &BadgerStore{db: db}, nil
}

// Save implements StateStore.
func (s *BadgerStore) Save(ctx context.Context, state NavState) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode navigation state: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(keyNavState, data)
	})
}

// Load implements StateStore.
func (s *BadgerStore) Load(ctx context.Context) (NavState, error) {
	var state NavState
	if err := ctx.Err(); err != nil {
		return state, err
	}

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(keyNavState)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNoState
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &state)
		})
	})
	return state, err
}

// Close implements StateStore.
func (s *BadgerStore) Close() error { return s.db.Close() }

// ============================================================================
// Memory
// ============================================================================

// MemoryStore keeps NavState in process memory.
type MemoryStore struct {
	mu    sync.Mutex
	state *NavState
	saves int
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

// Save implements StateStore.
func (m *MemoryStore) Save(_ context.Context, state NavState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	state.Visible = append([]asset.Key(nil), state.Visible...)
	m.state = &state
	m.saves++
	return nil
}

// Load implements StateStore.
func (m *MemoryStore) Load(context.Context) (NavState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == nil {
		return NavState{}, ErrNoState
	}
	return *m.state, nil
}

// Saves returns how many times Save was called.
func (m *MemoryStore) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

// Close implements StateStore.
func (m *MemoryStore) Close() error { return nil }
