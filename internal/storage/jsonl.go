package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"tradeScope/internal/model"
)

// JsonlStorage writes trade events, one per line, to a JSONL file.
type JsonlStorage struct {
	path string
	mu   sync.Mutex
}

func NewJsonlStorage(path string) *JsonlStorage {
	return &JsonlStorage{path: path}
}

// PutTradeEvents appends the batch as JSON lines.
func (s *JsonlStorage) PutTradeEvents(_ context.Context, events model.TradeEvents) error {
	values := make([]interface{}, 0, events.Len())
	for _, event := range events.Events {
		values = append(values, event)
	}
	return s.appendLines(values)
}

// PutDecodeErrors appends decode error records.
func (s *JsonlStorage) PutDecodeErrors(_ context.Context, records []model.DecodeError) error {
	values := make([]interface{}, 0, len(records))
	for _, record := range records {
		values = append(values, record)
	}
	return s.appendLines(values)
}

// PutDecodeWarnings appends warning records.
func (s *JsonlStorage) PutDecodeWarnings(_ context.Context, warnings []model.DecodeWarning) error {
	values := make([]interface{}, 0, len(warnings))
	for _, warning := range warnings {
		values = append(values, warning)
	}
	return s.appendLines(values)
}

func (s *JsonlStorage) appendLines(values []interface{}) (err error) {
	if len(values) == 0 {
		return nil
	}

	if err := ensureDir(s.path); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open output file: %w", err)
	}
	defer closeFile(file, &err)

	writer := bufio.NewWriter(file)
	for _, value := range values {
		line, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("marshal record: %w", err)
		}
		if _, err := writer.Write(line); err != nil {
			return fmt.Errorf("write record: %w", err)
		}
		if err := writer.WriteByte('\n'); err != nil {
			return fmt.Errorf("write newline: %w", err)
		}
	}

	if err := writer.Flush(); err != nil {
		return fmt.Errorf("flush output: %w", err)
	}

	return nil
}

// closeFile closes c and reports its error through err unless an earlier one is set.
func closeFile(c io.Closer, err *error) {
	if cerr := c.Close(); cerr != nil && *err == nil {
		*err = fmt.Errorf("close output file: %w", cerr)
	}
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}
	return nil
}
