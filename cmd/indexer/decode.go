package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"callIndexer/internal/config"
	"callIndexer/internal/decoder"
	"callIndexer/internal/model"
)

// decodedEvent is one line of the decode command's output.
type decodedEvent struct {
	EventID    string          `json:"event_id"`
	ContractID string          `json:"contract_id"`
	Ledger     uint32          `json:"ledger"`
	TxHash     string          `json:"tx_hash"`
	Kind       model.EventKind `json:"kind"`
	Payload    model.Payload   `json:"payload"`
}

type decodeStats struct {
	total   int
	decoded int
	skipped int
	failed  int
}

func runDecode(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadDecode(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.In == "" {
		return fmt.Errorf("input path is required")
	}
	if cfg.Out == "" {
		return fmt.Errorf("output path is required")
	}
	if cfg.Errors == "" {
		return fmt.Errorf("errors path is required")
	}

	inputFile, err := os.Open(cfg.In)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	defer inputFile.Close()

	outWriter, err := newJSONLWriter(cfg.Out)
	if err != nil {
		return err
	}
	defer outWriter.Close()

	errWriter, err := newJSONLWriter(cfg.Errors)
	if err != nil {
		return err
	}
	defer errWriter.Close()

	logger.Info("decode start",
		zap.String("in", cfg.In),
		zap.String("out", cfg.Out),
		zap.String("errors", cfg.Errors),
	)

	stats, err := decodeStream(inputFile, decoder.New(logger), outWriter, errWriter)
	if err != nil {
		return err
	}

	logger.Info("decode complete",
		zap.Int("total", stats.total),
		zap.Int("decoded", stats.decoded),
		zap.Int("skipped", stats.skipped),
		zap.Int("failed", stats.failed),
	)

	return nil
}

// decodeStream reads raw events as JSONL and writes decoded events to out.
// Events of unknown kind are skipped; anything else that fails goes to errs.
func decodeStream(in io.Reader, dec *decoder.Decoder, out, errs recordWriter) (decodeStats, error) {
	var stats decodeStats

	scanner := bufio.NewScanner(in)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 10*1024*1024)

	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		stats.total++

		var raw model.RawEvent
		if err := json.Unmarshal(line, &raw); err != nil {
			stats.failed++
			writeDecodeError(errs, model.DecodeError{Error: err.Error()})
			continue
		}

		event, err := dec.DecodeStrict(raw)
		if errors.Is(err, decoder.ErrUnknownKind) {
			stats.skipped++
			continue
		}
		if err != nil {
			stats.failed++
			writeDecodeError(errs, decodeErrorFromRaw(raw, err))
			continue
		}

		if err := out.Write(decodedEvent{
			EventID:    raw.ID,
			ContractID: raw.ContractID,
			Ledger:     raw.Ledger,
			TxHash:     raw.TxHash,
			Kind:       event.Kind,
			Payload:    event.Payload,
		}); err != nil {
			return stats, err
		}
		stats.decoded++
	}

	if err := scanner.Err(); err != nil {
		return stats, fmt.Errorf("scan input: %w", err)
	}
	return stats, nil
}

type recordWriter interface {
	Write(value interface{}) error
}

type jsonlWriter struct {
	file   *os.File
	writer *bufio.Writer
}

// newJSONLWriter truncates path, creating parent directories as needed.
func newJSONLWriter(path string) (*jsonlWriter, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create dir: %w", err)
		}
	}

	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}

	return &jsonlWriter{
		file:   file,
		writer: bufio.NewWriter(file),
	}, nil
}

func (w *jsonlWriter) Write(value interface{}) error {
	line, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	if _, err := w.writer.Write(line); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	if err := w.writer.WriteByte('\n'); err != nil {
		return fmt.Errorf("write newline: %w", err)
	}
	return nil
}

func (w *jsonlWriter) Close() error {
	if w == nil {
		return nil
	}
	if err := w.writer.Flush(); err != nil {
		w.file.Close()
		return err
	}
	return w.file.Close()
}

func decodeErrorFromRaw(raw model.RawEvent, err error) model.DecodeError {
	topic0 := ""
	if len(raw.Topics) > 0 {
		topic0 = raw.Topics[0]
	}

	return model.DecodeError{
		EventID:    raw.ID,
		ContractID: raw.ContractID,
		Ledger:     raw.Ledger,
		TxHash:     raw.TxHash,
		Topic0:     topic0,
		Error:      err.Error(),
	}
}

func writeDecodeError(writer recordWriter, errRecord model.DecodeError) {
	if writer == nil {
		return
	}
	_ = writer.Write(errRecord)
}
