package prompts

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"stpasec/internal/logging"
)

// Loader serves prompt templates. Defaults come from templates.go; an
// optional override directory supplies <agent_type>.md files that replace
// them wholesale and are reloaded live when edited.
type Loader struct {
	mu        sync.RWMutex
	overrides map[string]string
	dir       string

	watcher  *fsnotify.Watcher
	lastLoad map[string]time.Time
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewLoader creates a loader. overrideDir may be empty; then only the
// built-in defaults are served and no watcher is started.
func NewLoader(overrideDir string) (*Loader, error) {
	l := &Loader{
		overrides: make(map[string]string),
		dir:       overrideDir,
		lastLoad:  make(map[string]time.Time),
	}
	if overrideDir == "" {
		return l, nil
	}

	if err := l.loadAll(); err != nil {
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create prompt watcher: %w", err)
	}
	if err := watcher.Add(overrideDir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch prompt directory: %w", err)
	}
	l.watcher = watcher
	l.stopCh = make(chan struct{})
	l.doneCh = make(chan struct{})
	go l.run()
	logging.L(logging.CategoryPrompts).Debugw("prompt overrides active", "dir", overrideDir)
	return l, nil
}

// Template returns the current template for an agent type: the override if
// one is loaded, else the built-in default.
func (l *Loader) Template(agentType string) string {
	l.mu.RLock()
	t, ok := l.overrides[agentType]
	l.mu.RUnlock()
	if ok {
		return t
	}
	return Default(agentType)
}

// Close stops the watcher, if any.
func (l *Loader) Close() error {
	if l.watcher == nil {
		return nil
	}
	close(l.stopCh)
	<-l.doneCh
	return l.watcher.Close()
}

func (l *Loader) loadAll() error {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return fmt.Errorf("failed to read prompt directory: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".md") {
			continue
		}
		l.loadFile(filepath.Join(l.dir, e.Name()))
	}
	return nil
}

func (l *Loader) loadFile(path string) {
	agentType := strings.TrimSuffix(filepath.Base(path), ".md")
	if Default(agentType) == "" {
		logging.L(logging.CategoryPrompts).Warnw("override does not match any agent type", "file", path)
		return
	}
	data, err := os.ReadFile(path)
	if err != nil {
		logging.L(logging.CategoryPrompts).Warnw("failed to read prompt override", "file", path, "error", err)
		return
	}
	l.mu.Lock()
	l.overrides[agentType] = string(data)
	l.mu.Unlock()
	logging.L(logging.CategoryPrompts).Infow("prompt override loaded", "agent", agentType)
}

func (l *Loader) removeFile(path string) {
	agentType := strings.TrimSuffix(filepath.Base(path), ".md")
	l.mu.Lock()
	delete(l.overrides, agentType)
	l.mu.Unlock()
	logging.L(logging.CategoryPrompts).Infow("prompt override removed", "agent", agentType)
}

func (l *Loader) run() {
	defer close(l.doneCh)
	for {
		select {
		case <-l.stopCh:
			return
		case event, ok := <-l.watcher.Events:
			if !ok {
				return
			}
			if !strings.HasSuffix(event.Name, ".md") {
				continue
			}
			// Editors fire bursts of events per save; debounce per file.
			if last, seen := l.lastLoad[event.Name]; seen && time.Since(last) < 200*time.Millisecond {
				continue
			}
			l.lastLoad[event.Name] = time.Now()

			switch {
			case event.Op&(fsnotify.Create|fsnotify.Write) != 0:
				l.loadFile(event.Name)
			case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				l.removeFile(event.Name)
			}
		case err, ok := <-l.watcher.Errors:
			if !ok {
				return
			}
			logging.L(logging.CategoryPrompts).Warnw("prompt watcher error", "error", err)
		}
	}
}
