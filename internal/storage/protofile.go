package storage

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"google.golang.org/protobuf/encoding/protowire"

	"tradeScope/internal/model"
	"tradeScope/internal/wire"
)

const maxFrameSize = 64 << 20

// ProtoFileStorage appends each batch as a varint length-prefixed TradeEvents
// message, one frame per block.
type ProtoFileStorage struct {
	path string
	mu   sync.Mutex
}

func NewProtoFileStorage(path string) *ProtoFileStorage {
	return &ProtoFileStorage{path: path}
}

// PutTradeEvents appends one frame. Empty batches are not written.
func (s *ProtoFileStorage) PutTradeEvents(_ context.Context, events model.TradeEvents) (err error) {
	if events.Len() == 0 {
		return nil
	}
	if err := ensureDir(s.path); err != nil {
		return err
	}

	payload := wire.MarshalTradeEvents(events)
	frame := protowire.AppendBytes(nil, payload)

	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open output file: %w", err)
	}
	defer closeFile(file, &err)

	if _, err := file.Write(frame); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

// ReadProtoFile reads back every frame written by ProtoFileStorage.
func ReadProtoFile(path string) ([]model.TradeEvents, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	defer closeFile(file, &err)

	reader := bufio.NewReader(file)
	var out []model.TradeEvents
	for {
		size, err := readUvarint(reader)
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("frame %d: %w", len(out), err)
		}
		if size > maxFrameSize {
			return nil, fmt.Errorf("frame %d: size %d exceeds limit", len(out), size)
		}
		payload := make([]byte, size)
		if _, err := io.ReadFull(reader, payload); err != nil {
			return nil, fmt.Errorf("frame %d: %w", len(out), err)
		}
		events, err := wire.UnmarshalTradeEvents(payload)
		if err != nil {
			return nil, fmt.Errorf("frame %d: %w", len(out), err)
		}
		out = append(out, events)
	}
}

// readUvarint reads a frame length. EOF before the first byte is a clean end.
func readUvarint(r io.ByteReader) (uint64, error) {
	var buf []byte
	for i := 0; i < protowire.SizeVarint(1<<63); i++ {
		c, err := r.ReadByte()
		if err != nil {
			if errors.Is(err, io.EOF) && i > 0 {
				return 0, io.ErrUnexpectedEOF
			}
			return 0, err
		}
		buf = append(buf, c)
		if c < 0x80 {
			v, n := protowire.ConsumeVarint(buf)
			if n < 0 {
				return 0, protowire.ParseError(n)
			}
			return v, nil
		}
	}
	return 0, fmt.Errorf("frame length overflows")
}
