package verification

import (
	"sync"

	"github.com/disgoorg/snowflake/v2"
)

// SnapshotStore holds the pre-mute role set of each member currently gated by
// the bot. A snapshot exists for a member exactly while that member is muted
// by this system: it is written on join and consumed once on confirmation.
type SnapshotStore interface {
	// Get returns the stored role set for a member.
	Get(userID snowflake.ID) ([]snowflake.ID, bool)
	// Set records the role set for a member, replacing any previous entry.
	Set(userID snowflake.ID, roleIDs []snowflake.ID)
	// Delete removes a member's entry.
	Delete(userID snowflake.ID)
	// Len reports the number of stored entries.
	Len() int
}

// MemorySnapshotStore is the process-lifetime SnapshotStore implementation.
// Entries do not survive restarts.
type MemorySnapshotStore struct {
	mu    sync.RWMutex
	roles map[snowflake.ID][]snowflake.ID
}

// NewMemorySnapshotStore creates an empty in-memory snapshot store.
func NewMemorySnapshotStore() *MemorySnapshotStore {
	return &MemorySnapshotStore{
		roles: make(map[snowflake.ID][]snowflake.ID),
	}
}

func (s *MemorySnapshotStore) Get(userID snowflake.ID) ([]snowflake.ID, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	roleIDs, ok := s.roles[userID]
	if !ok {
		return nil, false
	}

	// Copy so callers cannot mutate the stored slice.
	out := make([]snowflake.ID, len(roleIDs))
	copy(out, roleIDs)

	return out, true
}

func (s *MemorySnapshotStore) Set(userID snowflake.ID, roleIDs []snowflake.ID) {
	stored := make([]snowflake.ID, len(roleIDs))
	copy(stored, roleIDs)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.roles[userID] = stored
}

func (s *MemorySnapshotStore) Delete(userID snowflake.ID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.roles, userID)
}

func (s *MemorySnapshotStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.roles)
}
