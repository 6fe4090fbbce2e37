// Package wire encodes TradeEvents in the protobuf wire format. Field numbers
// follow the dex_trade_event and common messages, so any protobuf runtime with
// those definitions can read the output.
package wire

import (
	"google.golang.org/protobuf/encoding/protowire"

	"tradeScope/internal/model"
)

// SchemaVersion is written into every TradeEvents message. Readers reject
// versions newer than their own.
const SchemaVersion = 1

// TradeEvents fields.
const (
	fieldEvents        protowire.Number = 1
	fieldSchemaVersion protowire.Number = 15
)

// TradeEvent fields.
const (
	fieldInstruction  protowire.Number = 1
	fieldBlock        protowire.Number = 2
	fieldTransaction  protowire.Number = 3
	fieldDApp         protowire.Number = 4
	fieldTrade        protowire.Number = 5
	fieldBondingCurve protowire.Number = 6
)

// MarshalTradeEvents encodes the batch, events in order.
func MarshalTradeEvents(events model.TradeEvents) []byte {
	var b []byte
	for _, event := range events.Events {
		b = appendMessage(b, fieldEvents, marshalTradeEvent(event))
	}
	b = protowire.AppendTag(b, fieldSchemaVersion, protowire.VarintType)
	b = protowire.AppendVarint(b, SchemaVersion)
	return b
}

func marshalTradeEvent(e model.TradeEvent) []byte {
	var b []byte
	if e.Instruction != nil {
		b = appendMessage(b, fieldInstruction, marshalInstruction(*e.Instruction))
	}
	if e.Block != nil {
		b = appendMessage(b, fieldBlock, marshalBlock(*e.Block))
	}
	if e.Transaction != nil {
		b = appendMessage(b, fieldTransaction, marshalTransaction(*e.Transaction))
	}
	if e.DApp != nil {
		b = appendMessage(b, fieldDApp, marshalDApp(*e.DApp))
	}
	if e.Trade != nil {
		b = appendMessage(b, fieldTrade, marshalTrade(*e.Trade))
	}
	if e.BondingCurve != nil {
		b = appendMessage(b, fieldBondingCurve, marshalBondingCurve(*e.BondingCurve))
	}
	return b
}

func marshalInstruction(in model.Instruction) []byte {
	var b []byte
	b = appendUint(b, 1, uint64(in.Index))
	b = appendBool(b, 2, in.IsInnerInstruction)
	b = appendUint(b, 3, uint64(in.InnerInstructionIndex))
	b = appendString(b, 4, in.Type)
	return b
}

func marshalBlock(block model.Block) []byte {
	var b []byte
	b = appendUint(b, 1, uint64(block.Timestamp))
	b = appendString(b, 2, block.Hash)
	b = appendUint(b, 3, block.Height)
	b = appendUint(b, 4, block.Slot)
	return b
}

func marshalTransaction(tx model.Transaction) []byte {
	var b []byte
	b = appendUint(b, 1, tx.Fee)
	b = appendString(b, 2, tx.FeePayer)
	b = appendUint(b, 3, uint64(tx.Index))
	b = appendString(b, 4, tx.Signature)
	b = appendString(b, 5, tx.Signer)
	b = appendUint(b, 6, uint64(int64(tx.Status)))
	return b
}

func marshalDApp(d model.DApp) []byte {
	var b []byte
	b = appendString(b, 1, d.ProgramAddress)
	b = appendString(b, 2, d.InnerProgramAddress)
	b = appendUint(b, 3, uint64(int64(d.Chain)))
	return b
}

func marshalTrade(t model.Trade) []byte {
	var b []byte
	for _, f := range tradeFields(&t) {
		if f.flag != nil {
			b = appendBool(b, f.num, *f.flag)
			continue
		}
		b = appendString(b, f.num, *f.str)
	}
	return b
}

func marshalBondingCurve(c model.BondingCurve) []byte {
	var b []byte
	b = appendString(b, 1, c.TokenAddress)
	b = appendString(b, 2, c.BondingCurveAddress)
	b = appendString(b, 3, c.UserAddress)
	b = appendString(b, 4, c.TokenAmount)
	b = appendString(b, 5, c.QuoteAmount)
	b = appendBool(b, 6, c.IsBuy)
	return b
}

// tradeField binds a Trade field number to its storage. Exactly one of str and
// flag is set.
type tradeField struct {
	num  protowire.Number
	str  *string
	flag *bool
}

func tradeFields(t *model.Trade) []tradeField {
	return []tradeField{
		{num: 1, str: &t.TokenAAddress},
		{num: 2, str: &t.TokenBAddress},
		{num: 3, str: &t.UserATokenAccountAddress},
		{num: 4, str: &t.UserAAccountOwnerAddress},
		{num: 5, str: &t.UserBTokenAccountAddress},
		{num: 6, str: &t.UserBAccountOwnerAddress},
		{num: 7, str: &t.UserAAmount},
		{num: 8, str: &t.UserBAmount},
		{num: 9, str: &t.UserAPreAmount},
		{num: 10, str: &t.UserAPostAmount},
		{num: 11, str: &t.UserBPreAmount},
		{num: 12, str: &t.UserBPostAmount},
		{num: 13, flag: &t.WasOriginalDirection},
		{num: 14, str: &t.PoolAddress},
		{num: 15, str: &t.VaultA},
		{num: 16, str: &t.VaultB},
		{num: 17, str: &t.VaultAOwnerAddress},
		{num: 18, str: &t.VaultBOwnerAddress},
		{num: 19, str: &t.VaultAAmount},
		{num: 20, str: &t.VaultBAmount},
		{num: 21, str: &t.VaultAPreAmount},
		{num: 22, str: &t.VaultBPreAmount},
		{num: 23, str: &t.VaultAPostAmount},
		{num: 24, str: &t.VaultBPostAmount},
		{num: 25, str: &t.PoolConfigAddress},
	}
}

// proto3 scalars are omitted when zero.

func appendString(b []byte, num protowire.Number, v string) []byte {
	if v == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, v)
}

func appendUint(b []byte, num protowire.Number, v uint64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendBool(b []byte, num protowire.Number, v bool) []byte {
	if !v {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, protowire.EncodeBool(v))
}

func appendMessage(b []byte, num protowire.Number, msg []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, msg)
}
