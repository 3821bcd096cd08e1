// Package ingest implements crash-safe log ingestion: catch-up replay from
// a persisted cursor, then a live subscription, deduplicated by
// (block, logIndex).
package ingest

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
)

// InfiniteLogIndex is the +∞ sentinel meaning "no more events expected for
// this block", per spec.md §3/§4.E.
const InfiniteLogIndex = math.MaxInt64

// Cursor is the (block, logIndex) watermark past which no event has been
// delivered twice.
type Cursor struct {
	Block    uint64 `json:"block"`
	LogIndex int64  `json:"logIndex"`
}

// Less reports whether c is strictly less than other in lexicographic
// (block, logIndex) order.
func (c Cursor) Less(other Cursor) bool {
	if c.Block != other.Block {
		return c.Block < other.Block
	}
	return c.LogIndex < other.LogIndex
}

// LessOrEqual reports c ≤ other lexicographically.
func (c Cursor) LessOrEqual(other Cursor) bool {
	return c == other || c.Less(other)
}

// LoadCursor reads the persisted cursor at path. A missing file returns
// Cursor{Block: 0, LogIndex: -1} with no error — catch-up then starts
// from block 1, per spec.md §4.E. A legacy file containing only a decimal
// block number is accepted, with logIndex treated as -1 ("re-deliver any
// event in that block").
func LoadCursor(path string) (Cursor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Cursor{Block: 0, LogIndex: -1}, nil
		}
		return Cursor{}, fmt.Errorf("ingest: read cursor: %w", err)
	}

	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" {
		return Cursor{Block: 0, LogIndex: -1}, nil
	}

	if block, err := strconv.ParseUint(trimmed, 10, 64); err == nil {
		return Cursor{Block: block, LogIndex: -1}, nil
	}

	var c Cursor
	if err := json.Unmarshal([]byte(trimmed), &c); err != nil {
		return Cursor{}, fmt.Errorf("ingest: parse cursor: %w", err)
	}
	return c, nil
}

// SaveCursor persists c synchronously: a crash loses at most the event
// currently being processed, per spec.md §4.E.
func SaveCursor(path string, c Cursor) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("ingest: encode cursor: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("ingest: write cursor: %w", err)
	}
	return nil
}

// CursorPath builds the persisted-cursor path for a contract address under
// configDir, per spec.md §3 ("<config-dir>/<lower-case-contract-address>.last-processed-block").
func CursorPath(configDir, lowerHexContractAddress string) string {
	return configDir + "/" + lowerHexContractAddress + ".last-processed-block"
}
