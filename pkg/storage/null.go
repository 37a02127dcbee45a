package storage

// nullStore stands in for a store that does not exist, such as
// localStorage during server-side rendering.
type nullStore struct{}

var null Store = nullStore{}

// Null returns the store used when no persistent store is available.
func Null() Store {
	return null
}

func (nullStore) ID() string      { return "null" }
func (nullStore) Available() bool { return false }

func (nullStore) GetItem(string) (string, bool, error) { return "", false, nil }
func (nullStore) SetItem(string, string) error         { return ErrUnavailable }
func (nullStore) RemoveItem(string) error              { return ErrUnavailable }
func (nullStore) Clear() error                         { return ErrUnavailable }

func (nullStore) Subscribe(func(Event)) func() { return func() {} }
