package translate

import "sync"

// MemoryStore is an in-memory Store for tests and single-run deployments.
type MemoryStore struct {
	mu     sync.RWMutex
	states map[ConversationID]State
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{states: make(map[ConversationID]State)}
}

func (s *MemoryStore) Get(id ConversationID) (State, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.states[id]
	if !ok {
		return State{}, false
	}
	return state.clone(), true
}

func (s *MemoryStore) Put(id ConversationID, state State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[id] = state.clone()
	return nil
}

func (s *MemoryStore) Flush() error { return nil }

func (s *MemoryStore) Close() error { return nil }
