package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// itemExt is appended to escaped keys to form file names.
const itemExt = ".item"

// File stores each entry as a file in a directory. Several handles, in the
// same or different processes, may share a directory; each one receives
// events for changes made by the others through fsnotify.
type File struct {
	id     string
	dir    string
	logger *slog.Logger
	subs   hub

	// known is the last value this handle wrote or observed per key.
	// Watcher events matching it are echoes and are not delivered.
	mu     sync.Mutex
	known  map[string]string
	closed bool

	watchMu sync.Mutex
	watcher *fsnotify.Watcher
}

// FileOption configures a File store.
type FileOption func(*File)

// WithFileLogger sets the logger used for watcher errors.
func WithFileLogger(logger *slog.Logger) FileOption {
	return func(f *File) {
		f.logger = logger
	}
}

// OpenFile opens (creating if needed) a directory-backed store.
func OpenFile(dir string, opts ...FileOption) (*File, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("storage: file mkdir: %w", err)
	}
	f := &File{
		id:     newID(),
		dir:    dir,
		logger: slog.Default(),
		known:  make(map[string]string),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// ID returns the handle identifier.
func (f *File) ID() string { return f.id }

// Available always reports true.
func (f *File) Available() bool { return true }

// Dir returns the backing directory.
func (f *File) Dir() string { return f.dir }

func (f *File) path(key string) (string, error) {
	if key == "" {
		return "", fmt.Errorf("%w: empty key", ErrInvalidKey)
	}
	return filepath.Join(f.dir, fileName(key)), nil
}

// fileName escapes key into a file name. A leading dot is escaped as well so
// that keys never collide with hidden or temporary files.
func fileName(key string) string {
	name := url.PathEscape(key)
	if strings.HasPrefix(name, ".") {
		name = "%2E" + name[1:]
	}
	return name + itemExt
}

// keyOf maps a file name back to its key; ok is false for foreign files.
func keyOf(name string) (string, bool) {
	base := filepath.Base(name)
	if !strings.HasSuffix(base, itemExt) || strings.HasPrefix(base, ".") {
		return "", false
	}
	key, err := url.PathUnescape(strings.TrimSuffix(base, itemExt))
	if err != nil || key == "" {
		return "", false
	}
	return key, true
}

func (f *File) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// GetItem reads the file for key.
func (f *File) GetItem(key string) (string, bool, error) {
	if f.isClosed() {
		return "", false, ErrClosed
	}
	p, err := f.path(key)
	if err != nil {
		return "", false, err
	}
	data, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("storage: file read %q: %w", key, err)
	}
	return string(data), true, nil
}

// SetItem writes the file for key atomically.
func (f *File) SetItem(key, value string) error {
	if f.isClosed() {
		return ErrClosed
	}
	p, err := f.path(key)
	if err != nil {
		return err
	}

	f.mu.Lock()
	f.known[key] = value
	f.mu.Unlock()

	tmp, err := os.CreateTemp(f.dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("storage: file write %q: %w", key, err)
	}
	if _, err := tmp.WriteString(value); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("storage: file write %q: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("storage: file write %q: %w", key, err)
	}
	if err := os.Rename(tmp.Name(), p); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("storage: file write %q: %w", key, err)
	}
	return nil
}

// RemoveItem deletes the file for key.
func (f *File) RemoveItem(key string) error {
	if f.isClosed() {
		return ErrClosed
	}
	p, err := f.path(key)
	if err != nil {
		return err
	}

	f.mu.Lock()
	delete(f.known, key)
	f.mu.Unlock()

	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("storage: file remove %q: %w", key, err)
	}
	return nil
}

// Clear deletes every entry file in the directory.
func (f *File) Clear() error {
	keys, err := f.Keys()
	if err != nil {
		return err
	}
	for _, key := range keys {
		if err := f.RemoveItem(key); err != nil {
			return err
		}
	}
	return nil
}

// Keys lists the stored keys in sorted order.
func (f *File) Keys() ([]string, error) {
	if f.isClosed() {
		return nil, ErrClosed
	}
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return nil, fmt.Errorf("storage: file list: %w", err)
	}
	set := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if key, ok := keyOf(e.Name()); ok {
			set[key] = struct{}{}
		}
	}
	return sortedKeys(set), nil
}

// Subscribe registers fn for changes made through other handles. The
// directory watcher runs while at least one subscriber exists.
func (f *File) Subscribe(fn func(Event)) func() {
	f.watchMu.Lock()
	cancel, count := f.subs.add(fn)
	if count == 1 {
		if err := f.startWatchLocked(); err != nil {
			f.logger.Warn("storage: file watch unavailable", "dir", f.dir, "error", err)
		}
	}
	f.watchMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			f.watchMu.Lock()
			defer f.watchMu.Unlock()
			cancel()
			if f.subs.len() == 0 {
				f.stopWatchLocked()
			}
		})
	}
}

// startWatchLocked requires watchMu.
func (f *File) startWatchLocked() error {
	if f.watcher != nil {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(f.dir); err != nil {
		watcher.Close()
		return err
	}

	// Snapshot the directory so the first change carries its old value.
	f.mu.Lock()
	if keys, err := f.keysLocked(); err == nil {
		for _, key := range keys {
			if v, ok := f.readLocked(key); ok {
				f.known[key] = v
			}
		}
	}
	f.mu.Unlock()

	f.watcher = watcher
	go f.watchLoop(watcher)
	return nil
}

// stopWatchLocked requires watchMu.
func (f *File) stopWatchLocked() {
	if f.watcher == nil {
		return
	}
	// The loop exits once the watcher channels close; it is not awaited so
	// that a subscriber may cancel from inside its own callback.
	f.watcher.Close()
	f.watcher = nil
}

func (f *File) watchLoop(w *fsnotify.Watcher) {
	for {
		select {
		case event, ok := <-w.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			key, ok := keyOf(event.Name)
			if !ok {
				continue
			}
			f.observe(key)
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			f.logger.Warn("storage: file watch error", "dir", f.dir, "error", err)
		}
	}
}

// observe compares the file for key with the last known value and emits
// an event if another handle changed it.
func (f *File) observe(key string) {
	f.mu.Lock()
	current, exists := f.readLocked(key)
	previous, known := f.known[key]
	if exists == known && current == previous {
		f.mu.Unlock()
		return
	}
	if exists {
		f.known[key] = current
	} else {
		delete(f.known, key)
	}
	f.mu.Unlock()

	ev := Event{Key: key, Area: f}
	if known {
		ev.OldValue = String(previous)
	}
	if exists {
		ev.NewValue = String(current)
	}
	f.subs.emit(ev)
}

// readLocked reads key ignoring errors. Caller must hold f.mu.
func (f *File) readLocked(key string) (string, bool) {
	p, err := f.path(key)
	if err != nil {
		return "", false
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return "", false
	}
	return string(data), true
}

func (f *File) keysLocked() ([]string, error) {
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return nil, err
	}
	var keys []string
	for _, e := range entries {
		if key, ok := keyOf(e.Name()); ok && !e.IsDir() {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

// Close stops the watcher. Later operations fail with ErrClosed.
func (f *File) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	f.watchMu.Lock()
	f.stopWatchLocked()
	f.watchMu.Unlock()
	return nil
}
