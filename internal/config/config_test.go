package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, cfg.PollInterval)
	assert.Equal(t, uint(100), cfg.PageSize)
	assert.Equal(t, 10, cfg.MaxPages)
	assert.Equal(t, 2, cfg.MaxRetries)
	assert.Equal(t, 250*time.Millisecond, cfg.RetryBackoff)
	assert.Equal(t, "./data/events.jsonl", cfg.StorePath)
	assert.Equal(t, "call-notifications", cfg.RedisChannel)
	assert.Equal(t, ":8090", cfg.HTTPAddr)
	assert.Zero(t, cfg.StartLedger)
	assert.Nil(t, cfg.ContractIDs)
}

func TestLoadFlagsAndEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("INDEXER_REDIS_ADDR", "localhost:6379")
	t.Setenv("INDEXER_PAGE_SIZE", "50")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.StringSlice("contract", nil, "")
	flags.Duration("poll-interval", 5*time.Second, "")
	require.NoError(t, flags.Parse([]string{"--contract", "CA, CB,", "--poll-interval", "2s"}))

	cfg, err := Load("", flags)
	require.NoError(t, err)
	assert.Equal(t, []string{"CA", "CB"}, cfg.ContractIDs)
	assert.Equal(t, 2*time.Second, cfg.PollInterval)
	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
	assert.Equal(t, uint(50), cfg.PageSize)
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "indexer.yaml")
	body := "rpc: https://soroban.example\ncontract:\n  - CA\n  - CB\nmax-pages: 3\nstart-ledger: 1200\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "https://soroban.example", cfg.RPCURL)
	assert.Equal(t, []string{"CA", "CB"}, cfg.ContractIDs)
	assert.Equal(t, 3, cfg.MaxPages)
	assert.Equal(t, uint32(1200), cfg.StartLedger)
}

func TestLoadRejectsInvalid(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("INDEXER_MAX_PAGES", "0")

	_, err := Load("", nil)
	assert.Error(t, err)
}

func TestLoadDecodeDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := LoadDecode("", nil)
	require.NoError(t, err)
	assert.Equal(t, "./data/parsed_events.jsonl", cfg.Out)
	assert.Equal(t, "./data/decode_errors.jsonl", cfg.Errors)
	assert.Equal(t, "info", cfg.LogLevel)
}
