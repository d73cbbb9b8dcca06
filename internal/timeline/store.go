package timeline

import (
	"sort"
	"sync"

	"github.com/driftline/driftline/internal/logging"
)

// Persistence is the durable storage collaborator for timelines.
// Writes are synchronous and best-effort: a failed save is logged by the
// store and never propagated to the hook caller.
type Persistence interface {
	// SaveTimeline durably records the timeline for a file path.
	SaveTimeline(filePath string, t *FileTimeline) error
	// LoadAllTimelines returns every persisted timeline, keyed by file
	// path. Invoked once at startup.
	LoadAllTimelines() (map[string]*FileTimeline, error)
	// UpdateIndex refreshes the index of tracked paths.
	UpdateIndex(paths []string) error
}

// Store is the in-memory registry of timelines keyed by file path.
//
// Mutations are serialized per path: Mutate acquires a per-path lock, so
// exactly one writer may touch a FileTimeline at a time while writes to
// other paths proceed concurrently. Reads take the same lock and hand a
// deep copy to the caller, so readers never observe a half-applied hook.
type Store struct {
	mu        sync.Mutex // guards timelines and locks maps
	timelines map[string]*FileTimeline
	locks     map[string]*sync.Mutex

	persist Persistence
	logger  *logging.Logger
}

// NewStore creates a Store backed by the given persistence collaborator.
// A nil logger defaults to a no-op logger.
func NewStore(persist Persistence, logger *logging.Logger) *Store {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Store{
		timelines: make(map[string]*FileTimeline),
		locks:     make(map[string]*sync.Mutex),
		persist:   persist,
		logger:    logger,
	}
}

// LoadAll populates the registry from persistence. Called once at startup;
// an error leaves the store empty and usable.
func (s *Store) LoadAll() error {
	loaded, err := s.persist.LoadAllTimelines()
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for path, t := range loaded {
		s.timelines[path] = t
	}
	return nil
}

// pathLock returns the mutex serializing writers for one path.
func (s *Store) pathLock(filePath string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.locks[filePath]
	if !ok {
		l = &sync.Mutex{}
		s.locks[filePath] = l
	}
	return l
}

// Mutate runs fn against the timeline for filePath while holding its path
// lock. When create is true the timeline is created lazily; otherwise a
// missing timeline makes Mutate a no-op and fn is never called.
//
// fn returns true to request persistence. Persistence failures are logged
// and swallowed: in-memory state remains authoritative.
func (s *Store) Mutate(filePath string, create bool, fn func(t *FileTimeline) bool) {
	lock := s.pathLock(filePath)
	lock.Lock()
	defer lock.Unlock()

	s.mu.Lock()
	t, ok := s.timelines[filePath]
	if !ok {
		if !create {
			s.mu.Unlock()
			return
		}
		t = NewFileTimeline(filePath)
		s.timelines[filePath] = t
	}
	s.mu.Unlock()

	if !fn(t) {
		return
	}

	if err := s.persist.SaveTimeline(filePath, t); err != nil {
		s.logger.WithFile(filePath).Warn("failed to persist timeline", "error", err)
	}
}

// Read runs fn against a deep copy of the timeline for filePath, taken
// under the path lock. Returns false without calling fn if no timeline
// exists.
func (s *Store) Read(filePath string, fn func(t *FileTimeline)) bool {
	lock := s.pathLock(filePath)
	lock.Lock()
	defer lock.Unlock()

	s.mu.Lock()
	t, ok := s.timelines[filePath]
	s.mu.Unlock()
	if !ok {
		return false
	}

	fn(t.Clone())
	return true
}

// Snapshot returns a deep copy of the timeline for filePath.
func (s *Store) Snapshot(filePath string) (*FileTimeline, bool) {
	var clone *FileTimeline
	ok := s.Read(filePath, func(t *FileTimeline) { clone = t })
	return clone, ok
}

// Has reports whether a timeline exists for the file path.
func (s *Store) Has(filePath string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.timelines[filePath]
	return ok
}

// Paths returns every tracked file path, sorted.
func (s *Store) Paths() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	paths := make([]string, 0, len(s.timelines))
	for p := range s.timelines {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// UpdateIndex pushes the current path set to the persistence index.
// Best-effort, like per-timeline saves.
func (s *Store) UpdateIndex() {
	if err := s.persist.UpdateIndex(s.Paths()); err != nil {
		s.logger.Warn("failed to update timeline index", "error", err)
	}
}
