package wire

import (
	"errors"
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"

	"tradeScope/internal/model"
)

// ErrUnsupportedVersion is returned for payloads written by a newer schema.
var ErrUnsupportedVersion = errors.New("unsupported schema version")

// UnmarshalTradeEvents decodes a batch written by MarshalTradeEvents. Unknown
// fields are skipped.
func UnmarshalTradeEvents(b []byte) (model.TradeEvents, error) {
	var out model.TradeEvents
	err := walk(b, func(num protowire.Number, typ protowire.Type, v []byte) (int, error) {
		switch {
		case num == fieldEvents && typ == protowire.BytesType:
			msg, n := protowire.ConsumeBytes(v)
			if n < 0 {
				return n, nil
			}
			event, err := unmarshalTradeEvent(msg)
			if err != nil {
				return 0, fmt.Errorf("event %d: %w", out.Len(), err)
			}
			out.Append(event)
			return n, nil
		case num == fieldSchemaVersion && typ == protowire.VarintType:
			version, n := protowire.ConsumeVarint(v)
			if n < 0 {
				return n, nil
			}
			if version > SchemaVersion {
				return 0, fmt.Errorf("%w: %d", ErrUnsupportedVersion, version)
			}
			return n, nil
		}
		return protowire.ConsumeFieldValue(num, typ, v), nil
	})
	if err != nil {
		return model.TradeEvents{}, err
	}
	return out, nil
}

func unmarshalTradeEvent(b []byte) (model.TradeEvent, error) {
	var e model.TradeEvent
	err := walk(b, func(num protowire.Number, typ protowire.Type, v []byte) (int, error) {
		if typ != protowire.BytesType || num < fieldInstruction || num > fieldBondingCurve {
			return protowire.ConsumeFieldValue(num, typ, v), nil
		}
		msg, n := protowire.ConsumeBytes(v)
		if n < 0 {
			return n, nil
		}
		var err error
		switch num {
		case fieldInstruction:
			e.Instruction = &model.Instruction{}
			err = unmarshalInstruction(msg, e.Instruction)
		case fieldBlock:
			e.Block = &model.Block{}
			err = unmarshalBlock(msg, e.Block)
		case fieldTransaction:
			e.Transaction = &model.Transaction{}
			err = unmarshalTransaction(msg, e.Transaction)
		case fieldDApp:
			e.DApp = &model.DApp{}
			err = unmarshalDApp(msg, e.DApp)
		case fieldTrade:
			e.Trade = &model.Trade{}
			err = unmarshalTrade(msg, e.Trade)
		case fieldBondingCurve:
			e.BondingCurve = &model.BondingCurve{}
			err = unmarshalBondingCurve(msg, e.BondingCurve)
		}
		return n, err
	})
	return e, err
}

func unmarshalInstruction(b []byte, in *model.Instruction) error {
	return walkScalars(b, func(num protowire.Number, u uint64, s string) {
		switch num {
		case 1:
			in.Index = uint32(u)
		case 2:
			in.IsInnerInstruction = protowire.DecodeBool(u)
		case 3:
			in.InnerInstructionIndex = uint32(u)
		case 4:
			in.Type = s
		}
	})
}

func unmarshalBlock(b []byte, block *model.Block) error {
	return walkScalars(b, func(num protowire.Number, u uint64, s string) {
		switch num {
		case 1:
			block.Timestamp = int64(u)
		case 2:
			block.Hash = s
		case 3:
			block.Height = u
		case 4:
			block.Slot = u
		}
	})
}

func unmarshalTransaction(b []byte, tx *model.Transaction) error {
	return walkScalars(b, func(num protowire.Number, u uint64, s string) {
		switch num {
		case 1:
			tx.Fee = u
		case 2:
			tx.FeePayer = s
		case 3:
			tx.Index = uint32(u)
		case 4:
			tx.Signature = s
		case 5:
			tx.Signer = s
		case 6:
			tx.Status = int32(u)
		}
	})
}

func unmarshalDApp(b []byte, d *model.DApp) error {
	return walkScalars(b, func(num protowire.Number, u uint64, s string) {
		switch num {
		case 1:
			d.ProgramAddress = s
		case 2:
			d.InnerProgramAddress = s
		case 3:
			d.Chain = model.Chain(int32(u))
		}
	})
}

func unmarshalTrade(b []byte, t *model.Trade) error {
	fields := tradeFields(t)
	byNum := make(map[protowire.Number]tradeField, len(fields))
	for _, f := range fields {
		byNum[f.num] = f
	}
	return walkScalars(b, func(num protowire.Number, u uint64, s string) {
		f, ok := byNum[num]
		if !ok {
			return
		}
		if f.flag != nil {
			*f.flag = protowire.DecodeBool(u)
			return
		}
		*f.str = s
	})
}

func unmarshalBondingCurve(b []byte, c *model.BondingCurve) error {
	return walkScalars(b, func(num protowire.Number, u uint64, s string) {
		switch num {
		case 1:
			c.TokenAddress = s
		case 2:
			c.BondingCurveAddress = s
		case 3:
			c.UserAddress = s
		case 4:
			c.TokenAmount = s
		case 5:
			c.QuoteAmount = s
		case 6:
			c.IsBuy = protowire.DecodeBool(u)
		}
	})
}

// walk visits each field of a message. visit returns the number of value bytes
// it consumed, or a negative protowire error code.
func walk(b []byte, visit func(num protowire.Number, typ protowire.Type, v []byte) (int, error)) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]
		m, err := visit(num, typ, b)
		if err != nil {
			return err
		}
		if m < 0 {
			return protowire.ParseError(m)
		}
		b = b[m:]
	}
	return nil
}

// walkScalars visits varint and length-delimited fields of a flat message.
// Other wire types are skipped.
func walkScalars(b []byte, visit func(num protowire.Number, u uint64, s string)) error {
	return walk(b, func(num protowire.Number, typ protowire.Type, v []byte) (int, error) {
		switch typ {
		case protowire.VarintType:
			u, n := protowire.ConsumeVarint(v)
			if n >= 0 {
				visit(num, u, "")
			}
			return n, nil
		case protowire.BytesType:
			s, n := protowire.ConsumeString(v)
			if n >= 0 {
				visit(num, 0, s)
			}
			return n, nil
		}
		return protowire.ConsumeFieldValue(num, typ, v), nil
	})
}
