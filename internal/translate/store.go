package translate

// Store keeps ConversationState keyed by ConversationID. Implementations
// must be safe for concurrent use and must return/accept detached copies so
// callers cannot race on shared maps.
type Store interface {
	// Get returns the state for a conversation, if it exists.
	Get(id ConversationID) (State, bool)
	// Put saves the state for a conversation. Durable implementations may
	// defer the actual disk write within a bounded debounce window.
	Put(id ConversationID, state State) error
	// Flush forces any deferred writes to disk.
	Flush() error
	// Close flushes and releases resources.
	Close() error
}
