package translate

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// FileStore keeps conversation state in memory and syncs it to a JSON file.
// Writes go through a temp file and an atomic rename. Put only marks the
// store dirty and arms a debounce timer, so bursty rooms do not rewrite the
// file on every message; a crash loses at most one debounce window.
type FileStore struct {
	mu       sync.Mutex
	states   map[ConversationID]State
	path     string
	debounce time.Duration
	timer    *time.Timer
	dirty    bool
	closed   bool
	logger   *slog.Logger
}

// NewFileStore loads existing state from path. A missing file starts empty;
// an unreadable or corrupt file is logged and ignored rather than refusing
// to boot.
func NewFileStore(path string, debounce time.Duration, logger *slog.Logger) (*FileStore, error) {
	if path == "" {
		return nil, fmt.Errorf("filestore path is empty")
	}

	s := &FileStore{
		states:   make(map[ConversationID]State),
		path:     path,
		debounce: debounce,
		logger:   logger,
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *FileStore) Get(id ConversationID) (State, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.states[id]
	if !ok {
		return State{}, false
	}
	return state.clone(), true
}

func (s *FileStore) Put(id ConversationID, state State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.states[id] = state.clone()
	s.dirty = true

	if s.debounce <= 0 {
		return s.persistLocked()
	}
	if s.timer == nil {
		s.timer = time.AfterFunc(s.debounce, s.flushTimer)
	} else {
		s.timer.Reset(s.debounce)
	}
	return nil
}

// Flush writes pending state to disk immediately.
func (s *FileStore) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.dirty {
		return nil
	}
	return s.persistLocked()
}

// Close flushes and stops the debounce timer.
func (s *FileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	if s.timer != nil {
		s.timer.Stop()
	}
	if !s.dirty {
		return nil
	}
	return s.persistLocked()
}

func (s *FileStore) flushTimer() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || !s.dirty {
		return
	}
	if err := s.persistLocked(); err != nil && s.logger != nil {
		s.logger.Warn("filestore: deferred flush failed", slog.String("error", err.Error()))
	}
}

func (s *FileStore) load() error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create store dir: %w", err)
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		s.warn("read file", err)
		return nil
	}
	if len(data) == 0 {
		return nil
	}

	var raw map[ConversationID]State
	if err := json.Unmarshal(data, &raw); err != nil {
		s.warn("unmarshal", err)
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for id, state := range raw {
		state.normalize()
		s.states[id] = state
	}
	return nil
}

func (s *FileStore) persistLocked() error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create store dir: %w", err)
	}

	data, err := json.MarshalIndent(s.states, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal states: %w", err)
	}

	tmpFile, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}

	tmpName := tmpFile.Name()
	if err := os.Chmod(tmpName, 0o600); err != nil && !errors.Is(err, os.ErrPermission) {
		tmpFile.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("chmod temp file: %w", err)
	}

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		tmpFile.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("rename temp file: %w", err)
	}

	s.dirty = false
	return nil
}

func (s *FileStore) warn(op string, err error) {
	if s.logger != nil {
		s.logger.Warn("filestore: "+op+" failed, starting empty",
			slog.String("path", s.path),
			slog.String("error", err.Error()))
	}
}
