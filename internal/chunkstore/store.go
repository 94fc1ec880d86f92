package chunkstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sync"

	"github.com/gofrs/flock"

	"cinecast/internal/logging"
	"cinecast/internal/retry"
)

var (
	// ErrOutOfRange reports a chunk id outside the current list.
	ErrOutOfRange = errors.New("chunk index out of range")
	// ErrLastChunk reports a refused deletion that would empty the list.
	ErrLastChunk = errors.New("cannot delete the last remaining chunk")
	// ErrNoChunks reports that no chunk list exists and no rebuild source is available.
	ErrNoChunks = errors.New("no chunk list available")
)

// RebuildFunc produces a fresh chunk list from the annotated script. It is
// invoked when the persisted file is absent or unreadable.
type RebuildFunc func() ([]Chunk, error)

// Store manages the persisted chunk list.
type Store struct {
	path     string
	lockPath string

	mu       sync.Mutex
	fileLock *flock.Flock
	rebuild  RebuildFunc
	policy   retry.Policy
	logger   *slog.Logger
}

// Option customizes the store.
type Option func(*Store)

// WithRebuild supplies the chunker used to regenerate a missing or corrupted
// chunk list from the annotated script.
func WithRebuild(fn RebuildFunc) Option {
	return func(s *Store) { s.rebuild = fn }
}

// WithRetryPolicy overrides the rename retry policy (useful for tests).
func WithRetryPolicy(policy retry.Policy) Option {
	return func(s *Store) { s.policy = policy }
}

// WithLogger attaches a logger for diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Open creates a store for the chunk list at path.
func Open(path string, opts ...Option) *Store {
	s := &Store{
		path:     path,
		lockPath: path + ".lock",
		policy:   retry.Default,
		logger:   logging.NewNop(),
	}
	s.fileLock = flock.New(s.lockPath)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Path returns the on-disk location of the chunk list.
func (s *Store) Path() string { return s.path }

// Load returns the persisted list. If the file is absent or fails to parse,
// the list is rebuilt from the annotated script, assigned dense ids and
// pending status, persisted, and returned.
func (s *Store) Load() ([]Chunk, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.lockFile(); err != nil {
		return nil, err
	}
	defer s.unlockFile()
	return s.loadLocked()
}

// SaveAll atomically replaces the whole list. Ids are renumbered so the dense
// zero-based invariant holds regardless of caller bookkeeping.
func (s *Store) SaveAll(chunks []Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.lockFile(); err != nil {
		return err
	}
	defer s.unlockFile()

	renumber(chunks)
	return s.persistLocked(chunks)
}

// UpdateFields applies a partial update to one chunk under the store's
// critical section and returns the updated chunk. No concurrent update can
// interleave with the read-modify-write-persist sequence.
func (s *Store) UpdateFields(id int, patch FieldPatch) (Chunk, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.lockFile(); err != nil {
		return Chunk{}, err
	}
	defer s.unlockFile()

	chunks, err := s.loadLocked()
	if err != nil {
		return Chunk{}, err
	}
	if id < 0 || id >= len(chunks) {
		return Chunk{}, fmt.Errorf("update chunk %d: %w", id, ErrOutOfRange)
	}
	patch.apply(&chunks[id])
	if err := s.persistLocked(chunks); err != nil {
		return Chunk{}, err
	}
	return chunks[id], nil
}

// EditContent updates a chunk's speaker/text/instruct and resets its status
// to pending. The stale audio path is kept until a regeneration succeeds so
// the previous take remains playable.
func (s *Store) EditContent(id int, patch FieldPatch) (Chunk, error) {
	if patch.touchesContent() {
		patch.Status = StatusPtr(StatusPending)
	}
	patch.AudioPath = nil
	return s.UpdateFields(id, patch)
}

// InsertAfter inserts an empty pending chunk immediately after id, copying
// the neighboring chunk's speaker, and renumbers all ids.
func (s *Store) InsertAfter(id int) ([]Chunk, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.lockFile(); err != nil {
		return nil, err
	}
	defer s.unlockFile()

	chunks, err := s.loadLocked()
	if err != nil {
		return nil, err
	}
	if id < 0 || id >= len(chunks) {
		return nil, fmt.Errorf("insert after chunk %d: %w", id, ErrOutOfRange)
	}

	fresh := Chunk{
		Speaker: chunks[id].Speaker,
		Status:  StatusPending,
	}
	chunks = append(chunks, Chunk{})
	copy(chunks[id+2:], chunks[id+1:])
	chunks[id+1] = fresh
	renumber(chunks)

	if err := s.persistLocked(chunks); err != nil {
		return nil, err
	}
	return chunks, nil
}

// Delete removes the chunk at id and renumbers. Deleting the last remaining
// chunk is refused so the list stays non-empty.
func (s *Store) Delete(id int) (Chunk, []Chunk, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.lockFile(); err != nil {
		return Chunk{}, nil, err
	}
	defer s.unlockFile()

	chunks, err := s.loadLocked()
	if err != nil {
		return Chunk{}, nil, err
	}
	if id < 0 || id >= len(chunks) {
		return Chunk{}, nil, fmt.Errorf("delete chunk %d: %w", id, ErrOutOfRange)
	}
	if len(chunks) <= 1 {
		return Chunk{}, nil, ErrLastChunk
	}

	deleted := chunks[id]
	chunks = append(chunks[:id], chunks[id+1:]...)
	renumber(chunks)

	if err := s.persistLocked(chunks); err != nil {
		return Chunk{}, nil, err
	}
	return deleted, chunks, nil
}

// Restore re-inserts a previously deleted chunk at the given index (clamped
// into range) and renumbers. Used for undo.
func (s *Store) Restore(atIndex int, chunk Chunk) ([]Chunk, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.lockFile(); err != nil {
		return nil, err
	}
	defer s.unlockFile()

	chunks, err := s.loadLocked()
	if err != nil {
		return nil, err
	}
	if atIndex < 0 {
		atIndex = 0
	}
	if atIndex > len(chunks) {
		atIndex = len(chunks)
	}

	chunks = append(chunks, Chunk{})
	copy(chunks[atIndex+1:], chunks[atIndex:])
	chunks[atIndex] = chunk
	renumber(chunks)

	if err := s.persistLocked(chunks); err != nil {
		return nil, err
	}
	return chunks, nil
}

func (s *Store) lockFile() error {
	if err := s.fileLock.Lock(); err != nil {
		return fmt.Errorf("acquire chunk store lock: %w", err)
	}
	return nil
}

func (s *Store) unlockFile() {
	if err := s.fileLock.Unlock(); err != nil {
		s.logger.Warn("release chunk store lock", logging.Error(err))
	}
}

func (s *Store) loadLocked() ([]Chunk, error) {
	data, err := os.ReadFile(s.path)
	if err == nil {
		var chunks []Chunk
		if jsonErr := json.Unmarshal(data, &chunks); jsonErr == nil {
			return chunks, nil
		}
		s.logger.Warn("chunk list is corrupted, rebuilding from script",
			logging.String("path", s.path))
		_ = os.Remove(s.path)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("read chunk list: %w", err)
	}

	if s.rebuild == nil {
		return nil, ErrNoChunks
	}
	chunks, err := s.rebuild()
	if err != nil {
		return nil, fmt.Errorf("rebuild chunk list: %w", err)
	}
	for i := range chunks {
		chunks[i].ID = i
		chunks[i].Status = StatusPending
		chunks[i].AudioPath = ""
	}
	if err := s.persistLocked(chunks); err != nil {
		return nil, err
	}
	return chunks, nil
}

// persistLocked writes the list to a temp file and renames it into place.
// The rename is retried with bounded backoff: on some platforms it fails
// transiently while another process holds the target open.
func (s *Store) persistLocked(chunks []Chunk) error {
	data, err := json.MarshalIndent(chunks, "", "  ")
	if err != nil {
		return fmt.Errorf("encode chunk list: %w", err)
	}
	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write chunk list temp file: %w", err)
	}

	renameErr := s.policy.Do(func() error {
		return os.Rename(tmpPath, s.path)
	}, nil)
	if renameErr != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("replace chunk list: %w", renameErr)
	}
	return nil
}
