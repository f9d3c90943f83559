package library

import (
	"fmt"
	"os"
	"path/filepath"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ensureDataDir creates the parent directory of path so first-run succeeds.
func ensureDataDir(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("%w: create data dir: %v", ErrPersistence, err)
		}
	}
	return nil
}

// readRecordFile loads the JSON array at path into a fresh slice.
func readRecordFile[T any](path string) ([]T, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrPersistence, path, err)
	}
	var recs []T
	if err := json.Unmarshal(data, &recs); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", ErrPersistence, path, err)
	}
	return recs, nil
}

// readCounterFile loads a JSON object of per-title counters.
func readCounterFile(path string) (map[string]int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrPersistence, path, err)
	}
	counters := make(map[string]int)
	if err := json.Unmarshal(data, &counters); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", ErrPersistence, path, err)
	}
	return counters, nil
}

// writeCounterFile rewrites the counter map at path.
func writeCounterFile(path string, counters map[string]int) error {
	data, err := json.MarshalIndent(counters, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encode %s: %v", ErrPersistence, path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("%w: write %s: %v", ErrPersistence, path, err)
	}
	return nil
}

// writeRecordFile rewrites the whole collection at path in a single
// open-serialize-write-close step. The file always holds a JSON array, even
// when the collection is empty.
func writeRecordFile[T any](path string, recs []T) error {
	if recs == nil {
		recs = []T{}
	}
	data, err := json.MarshalIndent(recs, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encode %s: %v", ErrPersistence, path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("%w: write %s: %v", ErrPersistence, path, err)
	}
	return nil
}
