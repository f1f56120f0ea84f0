package policy

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// Loader loads policies from .rego and .json files on disk and can watch the
// source directories for changes.
type Loader struct {
	mu              sync.RWMutex
	logger          zerolog.Logger
	cache           map[string]Policy
	watcher         *fsnotify.Watcher
	watchPaths      []string
	reloadCallbacks []func([]Policy)
	stopCh          chan struct{}
}

// NewLoader creates a new policy loader.
func NewLoader(logger zerolog.Logger) *Loader {
	return &Loader{
		logger: logger.With().Str("component", "policy-loader").Logger(),
		cache:  make(map[string]Policy),
	}
}

// LoadFromPaths loads policies from the given file or directory paths.
func (l *Loader) LoadFromPaths(ctx context.Context, paths []string) ([]Policy, error) {
	var policies []Policy

	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("failed to stat path %s: %w", path, err)
		}

		if info.IsDir() {
			loaded, err := l.loadFromDirectory(path)
			if err != nil {
				return nil, err
			}
			policies = append(policies, loaded...)
			continue
		}

		policy, err := l.loadFromFile(path)
		if err != nil {
			return nil, err
		}
		policies = append(policies, *policy)
	}

	l.mu.Lock()
	for i := range policies {
		l.cache[policies[i].Name] = policies[i]
	}
	l.mu.Unlock()

	return policies, nil
}

// loadFromDirectory recursively loads all policy files under dir.
func (l *Loader) loadFromDirectory(dir string) ([]Policy, error) {
	var policies []Policy

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		ext := filepath.Ext(path)
		if ext != ".rego" && ext != ".json" {
			return nil
		}

		policy, err := l.loadFromFile(path)
		if err != nil {
			l.logger.Warn().Err(err).
				Str("file", path).
				Msg("Skipping unparseable policy file")
			return nil
		}
		policies = append(policies, *policy)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk directory %s: %w", dir, err)
	}

	return policies, nil
}

// loadFromFile loads a single policy file.
func (l *Loader) loadFromFile(path string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", path, err)
	}

	switch filepath.Ext(path) {
	case ".rego":
		return l.parseRegoFile(path, data)
	case ".json":
		return l.parseJSONFile(path, data)
	default:
		return nil, fmt.Errorf("unsupported policy file type: %s", path)
	}
}

// parseRegoFile builds a Policy from a raw .rego file. The policy name comes
// from the file basename and the description from leading # comments.
func (l *Loader) parseRegoFile(path string, data []byte) (*Policy, error) {
	code := string(data)
	name := strings.TrimSuffix(filepath.Base(path), ".rego")

	now := time.Now()
	return &Policy{
		Name:        name,
		Description: extractDescription(code),
		Rego:        code,
		Severity:    SeverityError,
		Enabled:     true,
		Metadata:    map[string]interface{}{"source": path},
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// parseJSONFile parses a JSON policy document.
func (l *Loader) parseJSONFile(path string, data []byte) (*Policy, error) {
	var policy Policy
	if err := json.Unmarshal(data, &policy); err != nil {
		return nil, fmt.Errorf("failed to parse JSON policy %s: %w", path, err)
	}

	if policy.Name == "" {
		policy.Name = strings.TrimSuffix(filepath.Base(path), ".json")
	}
	if policy.Severity == "" {
		policy.Severity = SeverityError
	}
	if policy.Rego == "" {
		return nil, fmt.Errorf("JSON policy %s has no rego code", path)
	}
	if policy.Metadata == nil {
		policy.Metadata = make(map[string]interface{})
	}
	policy.Metadata["source"] = path

	now := time.Now()
	if policy.CreatedAt.IsZero() {
		policy.CreatedAt = now
	}
	policy.UpdatedAt = now
	policy.Enabled = true

	return &policy, nil
}

// extractDescription pulls the description from leading # comment lines.
func extractDescription(code string) string {
	var lines []string
	for _, line := range strings.Split(code, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if !strings.HasPrefix(trimmed, "#") {
			break
		}
		lines = append(lines, strings.TrimSpace(strings.TrimPrefix(trimmed, "#")))
	}
	return strings.Join(lines, " ")
}

// Watch starts watching the given paths for policy file changes. The callback
// receives the full reloaded policy set after each change, debounced to absorb
// editor write bursts.
func (l *Loader) Watch(ctx context.Context, paths []string, callback func([]Policy)) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.watcher != nil {
		return fmt.Errorf("loader is already watching")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}

	for _, path := range paths {
		if err := watcher.Add(path); err != nil {
			watcher.Close()
			return fmt.Errorf("failed to watch path %s: %w", path, err)
		}
	}

	l.watcher = watcher
	l.watchPaths = paths
	l.reloadCallbacks = append(l.reloadCallbacks, callback)
	l.stopCh = make(chan struct{})

	go l.processEvents(ctx)

	l.logger.Info().
		Strs("paths", paths).
		Msg("Watching policy paths for changes")
	return nil
}

// processEvents handles filesystem events with debouncing.
func (l *Loader) processEvents(ctx context.Context) {
	const debounce = 500 * time.Millisecond

	var timer *time.Timer
	var timerCh <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return
		case <-l.stopCh:
			return
		case event, ok := <-l.watcher.Events:
			if !ok {
				return
			}
			ext := filepath.Ext(event.Name)
			if ext != ".rego" && ext != ".json" {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(debounce)
			} else {
				timer.Reset(debounce)
			}
			timerCh = timer.C
		case err, ok := <-l.watcher.Errors:
			if !ok {
				return
			}
			l.logger.Error().Err(err).Msg("Watcher error")
		case <-timerCh:
			timerCh = nil
			l.triggerReload(ctx)
		}
	}
}

// triggerReload reloads all watched paths and notifies callbacks.
func (l *Loader) triggerReload(ctx context.Context) {
	l.mu.RLock()
	paths := append([]string(nil), l.watchPaths...)
	callbacks := append(([]func([]Policy))(nil), l.reloadCallbacks...)
	l.mu.RUnlock()

	policies, err := l.LoadFromPaths(ctx, paths)
	if err != nil {
		l.logger.Error().Err(err).Msg("Policy reload failed")
		return
	}

	l.logger.Info().
		Int("count", len(policies)).
		Msg("Policies reloaded after file change")

	for _, callback := range callbacks {
		callback(policies)
	}
}

// StopWatching stops the filesystem watcher.
func (l *Loader) StopWatching() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.watcher == nil {
		return nil
	}

	close(l.stopCh)
	err := l.watcher.Close()
	l.watcher = nil
	l.watchPaths = nil
	l.reloadCallbacks = nil
	return err
}

// ClearCache clears the cached policies.
func (l *Loader) ClearCache() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cache = make(map[string]Policy)
}

// CachedPolicies returns the currently cached policies.
func (l *Loader) CachedPolicies() []Policy {
	l.mu.RLock()
	defer l.mu.RUnlock()

	policies := make([]Policy, 0, len(l.cache))
	for _, p := range l.cache {
		policies = append(policies, p)
	}
	return policies
}
