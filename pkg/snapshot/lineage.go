package snapshot

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"sync"
)

// lineageLedger records every checksum a target has been observed with while
// under orchestrator control: at capture time (pre-state), after a destructive
// apply, and after a restore. A target whose live checksum is absent from its
// lineage was modified by something else.
type lineageLedger struct {
	mu   sync.Mutex
	path string

	// target path -> observed checksums, oldest first
	checksums map[string][]string
}

func openLineageLedger(path string) (*lineageLedger, error) {
	ledger := &lineageLedger{
		path:      path,
		checksums: make(map[string][]string),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ledger, nil
		}

		return nil, fmt.Errorf("failed to read lineage ledger: %w", err)
	}

	if err := json.Unmarshal(data, &ledger.checksums); err != nil {
		return nil, fmt.Errorf("failed to unmarshal lineage ledger: %w", err)
	}

	return ledger, nil
}

func (l *lineageLedger) record(target, checksum string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if slices.Contains(l.checksums[target], checksum) {
		return nil
	}

	l.checksums[target] = append(l.checksums[target], checksum)

	data, err := json.MarshalIndent(l.checksums, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal lineage ledger: %w", err)
	}

	if err := os.WriteFile(l.path, data, 0600); err != nil {
		return fmt.Errorf("failed to write lineage ledger: %w", err)
	}

	return nil
}

func (l *lineageLedger) contains(target, checksum string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	return slices.Contains(l.checksums[target], checksum)
}
