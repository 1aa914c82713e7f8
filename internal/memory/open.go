package memory

import "fmt"

const (
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// Open returns the store named by backend. An empty backend means SQLite.
func Open(backend, path, collection string) (Store, error) {
	switch backend {
	case BackendMemory:
		return NewInMemoryStore(), nil
	case BackendSQLite, "":
		s, err := NewSQLiteStore(path, collection)
		if err != nil {
			return nil, fmt.Errorf("open memory store: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unsupported memory backend: %s", backend)
	}
}
