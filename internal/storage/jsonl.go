package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"callIndexer/internal/model"
)

// JsonlStore keeps the event log in a JSONL file and serves queries from an
// in-memory index rebuilt on open. An empty path keeps everything in memory.
type JsonlStore struct {
	path        string
	checkpoints *FileCheckpoints

	mu      sync.RWMutex
	records []model.EventLogRecord
	ids     map[string]struct{}
	closed  bool
}

// NewJsonlStore opens (or creates) the log at path and loads existing records.
func NewJsonlStore(path string) (*JsonlStore, error) {
	s := &JsonlStore{
		path: path,
		ids:  make(map[string]struct{}),
	}
	if path == "" {
		s.checkpoints = NewFileCheckpoints("")
		return s, nil
	}
	s.checkpoints = NewFileCheckpoints(path + ".checkpoint.json")

	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *JsonlStore) load() error {
	file, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("open event log: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var rec model.EventLogRecord
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			return fmt.Errorf("parse event log line %d: %w", line, err)
		}
		if _, dup := s.ids[rec.EventID]; dup {
			continue
		}
		s.ids[rec.EventID] = struct{}{}
		s.records = append(s.records, rec)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read event log: %w", err)
	}
	sortRecords(s.records)
	return nil
}

// InsertEvent appends rec as a JSON line unless its event id is already stored.
func (s *JsonlStore) InsertEvent(_ context.Context, rec model.EventLogRecord) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false, ErrClosed
	}
	if _, ok := s.ids[rec.EventID]; ok {
		return false, nil
	}
	if s.path != "" {
		if err := s.appendLine(rec); err != nil {
			return false, err
		}
	}

	s.ids[rec.EventID] = struct{}{}
	idx := sort.Search(len(s.records), func(i int) bool {
		return rec.Before(s.records[i])
	})
	s.records = append(s.records, model.EventLogRecord{})
	copy(s.records[idx+1:], s.records[idx:])
	s.records[idx] = rec
	return true, nil
}

func (s *JsonlStore) appendLine(rec model.EventLogRecord) error {
	dir := filepath.Dir(s.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}

	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal event record: %w", err)
	}
	line = append(line, '\n')

	file, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open output file: %w", err)
	}
	if _, err := file.Write(line); err != nil {
		file.Close()
		return fmt.Errorf("write event record: %w", err)
	}
	// The record must be on disk before the checkpoint can pass it.
	if err := file.Sync(); err != nil {
		file.Close()
		return fmt.Errorf("sync event log: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("close event log: %w", err)
	}
	return nil
}

func (s *JsonlStore) QueryEvents(_ context.Context, q EventQuery) ([]model.EventLogRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrClosed
	}
	out := make([]model.EventLogRecord, 0)
	for i := len(s.records) - 1; i >= 0; i-- {
		rec := s.records[i]
		if !q.Matches(rec) {
			continue
		}
		out = append(out, rec)
		if q.Limit > 0 && len(out) >= q.Limit {
			break
		}
	}
	return out, nil
}

func (s *JsonlStore) MaxLedger(_ context.Context, contractIDs []string) (uint32, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0, false, ErrClosed
	}
	want := make(map[string]struct{}, len(contractIDs))
	for _, id := range contractIDs {
		want[id] = struct{}{}
	}
	var (
		highest uint32
		found bool
	)
	for _, rec := range s.records {
		if _, ok := want[rec.ContractID]; !ok {
			continue
		}
		if !found || rec.Ledger > highest {
			highest = rec.Ledger
			found = true
		}
	}
	return highest, found, nil
}

func (s *JsonlStore) LatestEvent(_ context.Context) (model.EventLogRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return model.EventLogRecord{}, false, ErrClosed
	}
	if len(s.records) == 0 {
		return model.EventLogRecord{}, false, nil
	}
	return s.records[len(s.records)-1], true, nil
}

func (s *JsonlStore) CountEvents(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0, ErrClosed
	}
	return int64(len(s.records)), nil
}

func (s *JsonlStore) LoadCheckpoints(ctx context.Context, contractIDs []string) (map[string]uint32, error) {
	return s.checkpoints.LoadCheckpoints(ctx, contractIDs)
}

func (s *JsonlStore) SaveCheckpoint(ctx context.Context, contractIDs []string, ledger uint32) error {
	return s.checkpoints.SaveCheckpoint(ctx, contractIDs, ledger)
}

func (s *JsonlStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func sortRecords(records []model.EventLogRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Before(records[j])
	})
}
