package storage

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func waitEvent(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func TestFileGetSetRemove(t *testing.T) {
	f, err := OpenFile(t.TempDir())
	if err != nil {
		t.Fatalf("OpenFile error: %v", err)
	}
	defer f.Close()

	if _, ok, err := f.GetItem("prefs/theme"); ok || err != nil {
		t.Fatalf("GetItem(missing) = %v, %v", ok, err)
	}
	if err := f.SetItem("prefs/theme", `"dark"`); err != nil {
		t.Fatalf("SetItem error: %v", err)
	}
	v, ok, err := f.GetItem("prefs/theme")
	if err != nil || !ok || v != `"dark"` {
		t.Fatalf("GetItem = %q, %v, %v", v, ok, err)
	}

	if _, err := os.Stat(filepath.Join(f.Dir(), "prefs%2Ftheme.item")); err != nil {
		t.Errorf("expected escaped file name: %v", err)
	}

	if err := f.RemoveItem("prefs/theme"); err != nil {
		t.Fatalf("RemoveItem error: %v", err)
	}
	if err := f.RemoveItem("prefs/theme"); err != nil {
		t.Errorf("RemoveItem(missing) error: %v", err)
	}
}

func TestFileRejectsEmptyKey(t *testing.T) {
	f, _ := OpenFile(t.TempDir())
	defer f.Close()

	if err := f.SetItem("", "v"); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("SetItem(\"\") error = %v, want ErrInvalidKey", err)
	}
}

func TestFileKeysAndClear(t *testing.T) {
	dir := t.TempDir()
	f, _ := OpenFile(dir)
	defer f.Close()

	f.SetItem("b", "2")
	f.SetItem("a", "1")
	os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644)

	keys, err := f.Keys()
	if err != nil {
		t.Fatalf("Keys error: %v", err)
	}
	if len(keys) != 2 || keys[0] != "a" || keys[1] != "b" {
		t.Errorf("Keys() = %v, want [a b]", keys)
	}

	if err := f.Clear(); err != nil {
		t.Fatalf("Clear error: %v", err)
	}
	keys, _ = f.Keys()
	if len(keys) != 0 {
		t.Errorf("Keys() after Clear = %v", keys)
	}
	if _, err := os.Stat(filepath.Join(dir, "notes.txt")); err != nil {
		t.Error("Clear should leave foreign files alone")
	}
}

func TestFileNotifiesOtherHandles(t *testing.T) {
	dir := t.TempDir()
	writer, _ := OpenFile(dir)
	defer writer.Close()
	reader, _ := OpenFile(dir)
	defer reader.Close()

	writer.SetItem("todos", `["a"]`)

	events := make(chan Event, 16)
	cancel := reader.Subscribe(func(ev Event) { events <- ev })
	defer cancel()

	if err := writer.SetItem("todos", `["a","b"]`); err != nil {
		t.Fatalf("SetItem error: %v", err)
	}
	ev := waitEvent(t, events)
	if ev.Key != "todos" || ev.NewValue == nil || *ev.NewValue != `["a","b"]` {
		t.Fatalf("event = %+v", ev)
	}
	if ev.OldValue == nil || *ev.OldValue != `["a"]` {
		t.Errorf("OldValue = %v, want [\"a\"]", ev.OldValue)
	}
	if ev.Area != reader {
		t.Error("Area should be the receiving handle")
	}

	if err := writer.RemoveItem("todos"); err != nil {
		t.Fatalf("RemoveItem error: %v", err)
	}
	ev = waitEvent(t, events)
	if ev.Key != "todos" || ev.NewValue != nil {
		t.Errorf("removal event = %+v", ev)
	}
}

func TestFileDoesNotEchoOwnWrites(t *testing.T) {
	dir := t.TempDir()
	f, _ := OpenFile(dir)
	defer f.Close()
	other, _ := OpenFile(dir)
	defer other.Close()

	events := make(chan Event, 16)
	cancel := f.Subscribe(func(ev Event) { events <- ev })
	defer cancel()

	f.SetItem("own", "1")
	other.SetItem("marker", "x")

	// The marker write arrives after our own write; nothing else should.
	ev := waitEvent(t, events)
	if ev.Key != "marker" {
		t.Errorf("first event key = %q, want marker (own write echoed)", ev.Key)
	}
}

func TestFileClosed(t *testing.T) {
	f, _ := OpenFile(t.TempDir())
	f.Close()

	if err := f.SetItem("k", "v"); !errors.Is(err, ErrClosed) {
		t.Errorf("SetItem after Close error = %v, want ErrClosed", err)
	}
}

func TestKeyOf(t *testing.T) {
	tests := []struct {
		name   string
		key    string
		wantOK bool
	}{
		{"theme.item", "theme", true},
		{"a%2Fb.item", "a/b", true},
		{".tmp-123", "", false},
		{"notes.txt", "", false},
		{".item", "", false},
		{"%2Econfig.item", ".config", true},
	}
	for _, tt := range tests {
		key, ok := keyOf(tt.name)
		if ok != tt.wantOK || key != tt.key {
			t.Errorf("keyOf(%q) = %q, %v; want %q, %v", tt.name, key, ok, tt.key, tt.wantOK)
		}
	}
}

func TestFileNameRoundTrip(t *testing.T) {
	for _, key := range []string{"theme", ".config", "..", ".tmp-1", "a/b", "with space"} {
		name := fileName(key)
		if name[0] == '.' {
			t.Errorf("fileName(%q) = %q, want no leading dot", key, name)
		}
		got, ok := keyOf(name)
		if !ok || got != key {
			t.Errorf("keyOf(fileName(%q)) = %q, %v; want %q, true", key, got, ok, key)
		}
	}
}

func TestFileDottedKeys(t *testing.T) {
	dir := t.TempDir()
	f, _ := OpenFile(dir)
	defer f.Close()
	other, _ := OpenFile(dir)
	defer other.Close()

	events := make(chan Event, 16)
	cancel := f.Subscribe(func(ev Event) { events <- ev })
	defer cancel()

	if err := other.SetItem(".config", "on"); err != nil {
		t.Fatalf("SetItem error: %v", err)
	}
	ev := waitEvent(t, events)
	if ev.Key != ".config" || ev.NewValue == nil || *ev.NewValue != "on" {
		t.Fatalf("event = %+v, want .config=on", ev)
	}

	keys, err := f.Keys()
	if err != nil {
		t.Fatalf("Keys error: %v", err)
	}
	if len(keys) != 1 || keys[0] != ".config" {
		t.Errorf("Keys() = %v, want [.config]", keys)
	}

	if err := f.Clear(); err != nil {
		t.Fatalf("Clear error: %v", err)
	}
	if _, ok, _ := other.GetItem(".config"); ok {
		t.Error("Clear should remove dotted keys")
	}
}

func TestFileSubscribeChurn(t *testing.T) {
	dir := t.TempDir()
	f, _ := OpenFile(dir)
	defer f.Close()
	other, _ := OpenFile(dir)
	defer other.Close()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cancel := f.Subscribe(func(Event) {})
			cancel()
			cancel()
		}()
	}
	wg.Wait()

	f.watchMu.Lock()
	running := f.watcher != nil
	f.watchMu.Unlock()
	if running {
		t.Errorf("watcher running = %v, want false with no subscribers", running)
	}

	events := make(chan Event, 16)
	cancel := f.Subscribe(func(ev Event) { events <- ev })
	defer cancel()

	f.watchMu.Lock()
	running = f.watcher != nil
	f.watchMu.Unlock()
	if !running {
		t.Fatalf("watcher running = %v, want true with a subscriber", running)
	}

	other.SetItem("after", "1")
	if ev := waitEvent(t, events); ev.Key != "after" {
		t.Errorf("event key = %q, want after", ev.Key)
	}
}
