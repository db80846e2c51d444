// Package store provides crash-safe engine persistence using JSON files.
//
// Three kinds of state live in the data directory:
//
//   - pos_<symbol>.json: open positions per symbol, written after every
//     fill and reconciliation, read back on startup and by the execution
//     guard before dispatching a new order.
//   - risk_state.json: daily equity baseline and circuit-breaker flag, so
//     a restart mid-day cannot forget an already-tripped breaker.
//   - decisions.log: append-only JSONL of strategy decisions, FSM
//     transitions, and lock events.
//
// Snapshot writes use atomic file replacement (write to .tmp, then
// rename) to prevent corruption from partial writes or crashes mid-save.
package store

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"smc-trader/internal/risk"
	"smc-trader/pkg/types"
)

// Store persists engine state to JSON files in a designated directory.
// All operations are mutex-protected to prevent concurrent file corruption.
type Store struct {
	dir string
	mu  sync.Mutex

	decisions *os.File
	decWriter *bufio.Writer
}

// Open creates a store backed by the given directory and opens the
// decision log for appending.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}

	f, err := os.OpenFile(filepath.Join(dir, "decisions.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open decision log: %w", err)
	}

	return &Store{
		dir:       dir,
		decisions: f,
		decWriter: bufio.NewWriter(f),
	}, nil
}

// Close flushes and closes the decision log.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.decWriter.Flush(); err != nil {
		s.decisions.Close()
		return fmt.Errorf("flush decision log: %w", err)
	}
	return s.decisions.Close()
}

// SavePositions atomically persists the open positions for a symbol.
func (s *Store) SavePositions(symbol string, positions []types.Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(positions)
	if err != nil {
		return fmt.Errorf("marshal positions: %w", err)
	}
	return s.writeFileLocked("pos_"+symbol+".json", data)
}

// LoadPositions restores the persisted positions for a symbol.
// Returns nil, nil if nothing was saved yet.
func (s *Store) LoadPositions(symbol string) ([]types.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(filepath.Join(s.dir, "pos_"+symbol+".json"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read positions: %w", err)
	}

	var positions []types.Position
	if err := json.Unmarshal(data, &positions); err != nil {
		return nil, fmt.Errorf("unmarshal positions: %w", err)
	}
	return positions, nil
}

// CountOpenPositions returns how many persisted positions for the symbol
// are still marked open.
func (s *Store) CountOpenPositions(symbol string) (int, error) {
	positions, err := s.LoadPositions(symbol)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, p := range positions {
		if p.Status == types.PositionOpen {
			n++
		}
	}
	return n, nil
}

// SaveRiskState atomically persists the risk manager snapshot.
func (s *Store) SaveRiskState(st risk.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("marshal risk state: %w", err)
	}
	return s.writeFileLocked("risk_state.json", data)
}

// LoadRiskState restores the risk snapshot from disk.
// Returns nil, nil on a fresh data directory.
func (s *Store) LoadRiskState() (*risk.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(filepath.Join(s.dir, "risk_state.json"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read risk state: %w", err)
	}

	var st risk.State
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("unmarshal risk state: %w", err)
	}
	return &st, nil
}

// Record appends one decision event as a JSON line. Satisfies the
// strategy layer's recorder; failures are swallowed so a full disk never
// stops trading decisions.
func (s *Store) Record(event string, fields map[string]any) {
	entry := make(map[string]any, len(fields)+2)
	for k, v := range fields {
		entry[k] = v
	}
	entry["event"] = event
	entry["ts"] = time.Now().UTC().Format(time.RFC3339Nano)

	data, err := json.Marshal(entry)
	if err != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.decWriter.Write(data)
	s.decWriter.WriteByte('\n')
	s.decWriter.Flush()
}

func (s *Store) writeFileLocked(name string, data []byte) error {
	path := filepath.Join(s.dir, name)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return os.Rename(tmp, path)
}
