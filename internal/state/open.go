package state

import "fmt"

// Open builds the store selected by backend ("file" or "badger").
func Open(backend, path, badgerDir string) (Store, error) {
	switch backend {
	case "", "file":
		return NewFileStore(path), nil
	case "badger":
		return OpenBadgerStore(badgerDir)
	default:
		return nil, fmt.Errorf("unknown state backend %q", backend)
	}
}
