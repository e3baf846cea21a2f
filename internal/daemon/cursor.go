package daemon

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	json "github.com/goccy/go-json"
)

type cursorFile struct {
	Cursor int   `json:"cursor"`
	TS     int64 `json:"ts"`
}

// LoadCursor reads the persisted batch cursor. Any failure reads as zero so
// a fresh or corrupted state file just restarts the sweep.
func LoadCursor(path string) int {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0
	}

	var cf cursorFile
	if err := json.Unmarshal(data, &cf); err != nil {
		return 0
	}
	if cf.Cursor < 0 {
		return 0
	}

	return cf.Cursor
}

// SaveCursor persists the cursor atomically via a temp file rename. The
// parent directory is created on first use.
func SaveCursor(path string, cursor int) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create state dir %s: %w", dir, err)
		}
	}

	data, err := json.MarshalIndent(cursorFile{Cursor: cursor, TS: time.Now().Unix()}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode cursor: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write cursor %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename cursor %s: %w", path, err)
	}

	return nil
}

// NextBatch selects items[start : start+size] wrapping modulo len(items) and
// returns the batch with the advanced cursor.
func NextBatch(items []string, start, size int) ([]string, int) {
	n := len(items)
	if n == 0 {
		return nil, 0
	}

	start %= n
	end := start + size

	var batch []string
	if end <= n {
		batch = append(batch, items[start:end]...)
	} else {
		batch = append(batch, items[start:]...)
		batch = append(batch, items[:end%n]...)
	}

	return batch, (start + size) % n
}
