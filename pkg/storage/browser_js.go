//go:build js && wasm

package storage

import (
	"fmt"
	"sync"
	"syscall/js"
)

var (
	localOnce, sessionOnce sync.Once
	localArea, sessionArea *webStorage
)

// Browser returns window.localStorage.
func Browser() Store {
	localOnce.Do(func() { localArea = newWebStorage("localStorage") })
	return localArea
}

// Session returns window.sessionStorage.
func Session() Store {
	sessionOnce.Do(func() { sessionArea = newWebStorage("sessionStorage") })
	return sessionArea
}

// webStorage wraps one of the window's Storage objects.
type webStorage struct {
	id        string
	name      string
	available bool
	subs      hub

	mu       sync.Mutex
	listener js.Func
	active   bool
}

func newWebStorage(name string) *webStorage {
	w := &webStorage{id: name + ":" + newID(), name: name}
	// Accessing storage throws a SecurityError when the user has disabled it.
	_, err := w.area()
	w.available = err == nil
	return w
}

// area returns the underlying Storage object.
func (w *webStorage) area() (v js.Value, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("storage: %s: %v", w.name, r)
		}
	}()
	v = js.Global().Get(w.name)
	if !v.Truthy() {
		return js.Undefined(), fmt.Errorf("storage: %s: %w", w.name, ErrUnavailable)
	}
	return v, nil
}

// call invokes a Storage method, turning thrown exceptions into errors.
func (w *webStorage) call(method string, args ...any) (result js.Value, err error) {
	a, err := w.area()
	if err != nil {
		return js.Undefined(), err
	}
	defer func() {
		if r := recover(); r != nil {
			if jsErr, ok := r.(js.Error); ok && jsErr.Get("name").String() == "QuotaExceededError" {
				err = fmt.Errorf("storage: %s.%s: %w", w.name, method, ErrQuotaExceeded)
				return
			}
			err = fmt.Errorf("storage: %s.%s: %v", w.name, method, r)
		}
	}()
	return a.Call(method, args...), nil
}

func (w *webStorage) ID() string      { return w.id }
func (w *webStorage) Available() bool { return w.available }

func (w *webStorage) GetItem(key string) (string, bool, error) {
	v, err := w.call("getItem", key)
	if err != nil {
		return "", false, err
	}
	if v.IsNull() || v.IsUndefined() {
		return "", false, nil
	}
	return v.String(), true, nil
}

func (w *webStorage) SetItem(key, value string) error {
	_, err := w.call("setItem", key, value)
	return err
}

func (w *webStorage) RemoveItem(key string) error {
	_, err := w.call("removeItem", key)
	return err
}

func (w *webStorage) Clear() error {
	_, err := w.call("clear")
	return err
}

func (w *webStorage) Keys() ([]string, error) {
	a, err := w.area()
	if err != nil {
		return nil, err
	}
	n := a.Get("length").Int()
	keys := make([]string, 0, n)
	for i := 0; i < n; i++ {
		k, err := w.call("key", i)
		if err != nil {
			return nil, err
		}
		if !k.IsNull() {
			keys = append(keys, k.String())
		}
	}
	return keys, nil
}

// Subscribe registers fn for the window's "storage" events. The DOM
// listener is attached with the first subscriber and removed with the last.
func (w *webStorage) Subscribe(fn func(Event)) func() {
	cancel, count := w.subs.add(fn)
	if count == 1 {
		w.attach()
	}
	return func() {
		cancel()
		if w.subs.len() == 0 {
			w.detach()
		}
	}
}

func (w *webStorage) attach() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.active {
		return
	}
	w.listener = js.FuncOf(func(this js.Value, args []js.Value) any {
		if len(args) == 0 {
			return nil
		}
		w.subs.emit(toEvent(args[0]))
		return nil
	})
	js.Global().Call("addEventListener", "storage", w.listener)
	w.active = true
}

func (w *webStorage) detach() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.active {
		return
	}
	js.Global().Call("removeEventListener", "storage", w.listener)
	w.listener.Release()
	w.active = false
}

// toEvent converts a DOM StorageEvent. Area is resolved to the matching
// package store so receivers can compare it by identity.
func toEvent(ev js.Value) Event {
	out := Event{
		Key:      stringOrEmpty(ev.Get("key")),
		OldValue: optString(ev.Get("oldValue")),
		NewValue: optString(ev.Get("newValue")),
		URL:      ev.Get("url").String(),
	}

	area := ev.Get("storageArea")
	switch {
	case area.IsNull() || area.IsUndefined():
	case area.Equal(js.Global().Get("localStorage")):
		out.Area = Browser()
	case area.Equal(js.Global().Get("sessionStorage")):
		out.Area = Session()
	}
	return out
}

func optString(v js.Value) *string {
	if v.IsNull() || v.IsUndefined() {
		return nil
	}
	return String(v.String())
}

func stringOrEmpty(v js.Value) string {
	if v.IsNull() || v.IsUndefined() {
		return ""
	}
	return v.String()
}
