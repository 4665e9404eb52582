package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// ContractCheckpoint is the last fully processed ledger for one contract.
type ContractCheckpoint struct {
	LastLedger uint32 `json:"last_ledger"`
	UpdatedAt  string `json:"updated_at"`
}

// FileCheckpoints persists per-contract checkpoints as one JSON document,
// replaced atomically via rename. An empty path keeps them in memory.
type FileCheckpoints struct {
	path string

	mu    sync.Mutex
	state map[string]ContractCheckpoint
	ready bool
}

func NewFileCheckpoints(path string) *FileCheckpoints {
	return &FileCheckpoints{path: path}
}

func (c *FileCheckpoints) LoadCheckpoints(_ context.Context, contractIDs []string) (map[string]uint32, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ensureLoaded(); err != nil {
		return nil, err
	}
	out := make(map[string]uint32, len(contractIDs))
	for _, id := range contractIDs {
		if cp, ok := c.state[id]; ok {
			out[id] = cp.LastLedger
		}
	}
	return out, nil
}

func (c *FileCheckpoints) SaveCheckpoint(_ context.Context, contractIDs []string, ledger uint32) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ensureLoaded(); err != nil {
		return err
	}

	next := make(map[string]ContractCheckpoint, len(c.state)+len(contractIDs))
	for id, cp := range c.state {
		next[id] = cp
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	for _, id := range contractIDs {
		next[id] = ContractCheckpoint{LastLedger: ledger, UpdatedAt: now}
	}

	if err := c.write(next); err != nil {
		return err
	}
	c.state = next
	return nil
}

func (c *FileCheckpoints) ensureLoaded() error {
	if c.ready {
		return nil
	}
	c.state = make(map[string]ContractCheckpoint)
	if c.path == "" {
		c.ready = true
		return nil
	}

	stat, err := os.Stat(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			c.ready = true
			return nil
		}
		return fmt.Errorf("stat checkpoint: %w", err)
	}
	if stat.IsDir() {
		return fmt.Errorf("checkpoint path is a directory")
	}

	data, err := os.ReadFile(c.path)
	if err != nil {
		return fmt.Errorf("read checkpoint: %w", err)
	}
	if err := json.Unmarshal(data, &c.state); err != nil {
		return fmt.Errorf("parse checkpoint: %w", err)
	}
	c.ready = true
	return nil
}

func (c *FileCheckpoints) write(state map[string]ContractCheckpoint) error {
	if c.path == "" {
		return nil
	}

	dir := filepath.Dir(c.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create checkpoint dir: %w", err)
		}
	}

	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}

	tmpPath := c.path + ".tmp"
	if err := writeSynced(tmpPath, data); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("write checkpoint tmp: %w", err)
	}
	if err := os.Rename(tmpPath, c.path); err != nil {
		return fmt.Errorf("rename checkpoint: %w", err)
	}
	return nil
}

// writeSynced writes data to path and fsyncs it before closing.
func writeSynced(path string, data []byte) error {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := file.Write(data); err != nil {
		file.Close()
		return err
	}
	if err := file.Sync(); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}
