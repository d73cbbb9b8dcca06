// Package watch feeds live workspace edits into the timeline tracker.
// It watches each task's workspace with fsnotify and routes debounced
// write/create events through the tracker's worktree-change hook.
package watch

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"

	"github.com/driftline/driftline/internal/logging"
)

// ChangeSink receives observed workspace content changes.
// *timeline.Tracker satisfies it.
type ChangeSink interface {
	OnTaskWorktreeChange(taskID, file, content string)
}

// Watcher watches task workspaces for file modifications and forwards
// them to a ChangeSink.
type Watcher struct {
	watcher *fsnotify.Watcher
	sink    ChangeSink
	logger  *logging.Logger

	// Map of task ID -> workspace root
	workspaces map[string]string

	// Paths to ignore (e.g., .git, .driftline)
	ignorePaths []string

	debounce time.Duration

	mu     sync.RWMutex
	stopCh chan struct{}
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithIgnorePaths overrides the directory names excluded from watching.
func WithIgnorePaths(paths []string) Option {
	return func(w *Watcher) { w.ignorePaths = paths }
}

// WithDebounce overrides the event debounce window.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) { w.debounce = d }
}

// New creates a Watcher forwarding changes to the given sink.
func New(sink ChangeSink, logger *logging.Logger, opts ...Option) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.NopLogger()
	}

	w := &Watcher{
		watcher:     fsw,
		sink:        sink,
		logger:      logger.With("watcher_id", uuid.NewString()),
		workspaces:  make(map[string]string),
		ignorePaths: []string{".git", ".driftline", "node_modules", ".DS_Store"},
		debounce:    50 * time.Millisecond,
		stopCh:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// AddTask starts watching files under a task's workspace root.
func (w *Watcher) AddTask(taskID, workspaceRoot string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.workspaces[taskID] = workspaceRoot

	if err := w.watcher.Add(workspaceRoot); err != nil {
		return err
	}

	// fsnotify only watches single directories; cover the tree.
	return w.watchDirRecursive(workspaceRoot)
}

// watchDirRecursive adds all subdirectories to the watcher.
func (w *Watcher) watchDirRecursive(root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // Skip errors, continue walking
		}

		base := filepath.Base(path)
		for _, ignore := range w.ignorePaths {
			if base == ignore {
				// SkipDir from a non-directory entry would skip the rest
				// of the containing directory, not just this file.
				if info.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
		}

		if info.IsDir() {
			_ = w.watcher.Add(path)
		}
		return nil
	})
}

// RemoveTask stops watching a task's workspace.
func (w *Watcher) RemoveTask(taskID string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	root, ok := w.workspaces[taskID]
	if !ok {
		return
	}
	_ = w.watcher.Remove(root)
	delete(w.workspaces, taskID)
}

// Start begins watching for file changes.
func (w *Watcher) Start() {
	go w.watchLoop()
}

// Stop stops the watcher and cleans up resources.
func (w *Watcher) Stop() {
	close(w.stopCh)
	_ = w.watcher.Close()
}

// watchLoop processes filesystem events.
func (w *Watcher) watchLoop() {
	// Debounce events - many editors create multiple events for a single save
	debounceTimer := time.NewTimer(0)
	<-debounceTimer.C // drain initial timer

	pending := make(map[string]fsnotify.Event)
	var pendingMu sync.Mutex

	for {
		select {
		case <-w.stopCh:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}

			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}

			pendingMu.Lock()
			pending[event.Name] = event
			pendingMu.Unlock()

			debounceTimer.Reset(w.debounce)

		case <-debounceTimer.C:
			pendingMu.Lock()
			events := pending
			pending = make(map[string]fsnotify.Event)
			pendingMu.Unlock()

			for _, event := range events {
				w.handleFileEvent(event)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Debug("watcher error", "error", err)
		}
	}
}

// handleFileEvent routes a single file modification into the sink.
func (w *Watcher) handleFileEvent(event fsnotify.Event) {
	path := event.Name

	for _, ignore := range w.ignorePaths {
		if strings.Contains(path, string(filepath.Separator)+ignore+string(filepath.Separator)) ||
			strings.HasSuffix(path, string(filepath.Separator)+ignore) ||
			filepath.Base(path) == ignore {
			return
		}
	}

	w.mu.RLock()
	var taskID, relPath string
	for id, root := range w.workspaces {
		if strings.HasPrefix(path, root) {
			taskID = id
			relPath, _ = filepath.Rel(root, path)
			break
		}
	}
	w.mu.RUnlock()

	if taskID == "" {
		return // Not in any watched workspace
	}

	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		w.logger.WithTask(taskID).Debug("failed to read changed file", "path", path, "error", err)
		return
	}

	w.sink.OnTaskWorktreeChange(taskID, filepath.ToSlash(relPath), string(data))
}
