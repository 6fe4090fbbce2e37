package storage

import (
	"context"

	"tradeScope/internal/model"
)

// Storage defines a sink for decoded trade events.
type Storage interface {
	PutTradeEvents(ctx context.Context, events model.TradeEvents) error
}

// ErrorSink receives decode failures and degraded-decode warnings.
type ErrorSink interface {
	PutDecodeErrors(ctx context.Context, records []model.DecodeError) error
	PutDecodeWarnings(ctx context.Context, warnings []model.DecodeWarning) error
}

// Multi fans a batch out to every sink in order, stopping at the first error.
type Multi []Storage

func (m Multi) PutTradeEvents(ctx context.Context, events model.TradeEvents) error {
	for _, sink := range m {
		if err := sink.PutTradeEvents(ctx, events); err != nil {
			return err
		}
	}
	return nil
}
