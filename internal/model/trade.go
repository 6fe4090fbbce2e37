package model

import (
	"fmt"
	"math/big"
	"sort"
)

// Trade is one normalized swap leg pair. Amount fields are base-10 signed integers
// encoded as strings.
type Trade struct {
	TokenAAddress            string `json:"token_a_address"`
	TokenBAddress            string `json:"token_b_address"`
	UserATokenAccountAddress string `json:"user_a_token_account_address"`
	UserAAccountOwnerAddress string `json:"user_a_account_owner_address"`
	UserBTokenAccountAddress string `json:"user_b_token_account_address"`
	UserBAccountOwnerAddress string `json:"user_b_account_owner_address"`
	UserAAmount              string `json:"user_a_amount"`
	UserBAmount              string `json:"user_b_amount"`
	UserAPreAmount           string `json:"user_a_pre_amount"`
	UserAPostAmount          string `json:"user_a_post_amount"`
	UserBPreAmount           string `json:"user_b_pre_amount"`
	UserBPostAmount          string `json:"user_b_post_amount"`
	WasOriginalDirection     bool   `json:"was_original_direction"`
	PoolAddress              string `json:"pool_address"`
	VaultA                   string `json:"vault_a"`
	VaultB                   string `json:"vault_b"`
	VaultAOwnerAddress       string `json:"vault_a_owner_address"`
	VaultBOwnerAddress       string `json:"vault_b_owner_address"`
	VaultAAmount             string `json:"vault_a_amount"`
	VaultBAmount             string `json:"vault_b_amount"`
	VaultAPreAmount          string `json:"vault_a_pre_amount"`
	VaultBPreAmount          string `json:"vault_b_pre_amount"`
	VaultAPostAmount         string `json:"vault_a_post_amount"`
	VaultBPostAmount         string `json:"vault_b_post_amount"`
	PoolConfigAddress        string `json:"pool_config_address"`
}

// BondingCurve is the trade variant for curve-priced venues. No decoder fills it yet.
type BondingCurve struct {
	TokenAddress        string `json:"token_address"`
	BondingCurveAddress string `json:"bonding_curve_address"`
	UserAddress         string `json:"user_address"`
	TokenAmount         string `json:"token_amount"`
	QuoteAmount         string `json:"quote_amount"`
	IsBuy               bool   `json:"is_buy"`
}

// TradeEvent is one Trade plus its execution context.
type TradeEvent struct {
	Instruction  *Instruction  `json:"instruction,omitempty"`
	Block        *Block        `json:"block,omitempty"`
	Transaction  *Transaction  `json:"transaction,omitempty"`
	DApp         *DApp         `json:"d_app,omitempty"`
	Trade        *Trade        `json:"trade,omitempty"`
	BondingCurve *BondingCurve `json:"bonding_curve,omitempty"`
}

// TradeEvents is the ordered batch produced for one block.
type TradeEvents struct {
	Events []TradeEvent `json:"events"`
}

// Append adds an event, keeping insertion order.
func (te *TradeEvents) Append(event TradeEvent) {
	te.Events = append(te.Events, event)
}

// Len returns the number of events in the batch.
func (te TradeEvents) Len() int {
	return len(te.Events)
}

// AmountFields returns the amount fields of the trade keyed by schema name.
func (t Trade) AmountFields() map[string]string {
	return map[string]string{
		"user_a_amount":       t.UserAAmount,
		"user_b_amount":       t.UserBAmount,
		"user_a_pre_amount":   t.UserAPreAmount,
		"user_a_post_amount":  t.UserAPostAmount,
		"user_b_pre_amount":   t.UserBPreAmount,
		"user_b_post_amount":  t.UserBPostAmount,
		"vault_a_amount":      t.VaultAAmount,
		"vault_b_amount":      t.VaultBAmount,
		"vault_a_pre_amount":  t.VaultAPreAmount,
		"vault_b_pre_amount":  t.VaultBPreAmount,
		"vault_a_post_amount": t.VaultAPostAmount,
		"vault_b_post_amount": t.VaultBPostAmount,
	}
}

// Validate checks that every amount field holds a base-10 integer.
func (t Trade) Validate() error {
	fields := t.AmountFields()
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		value := fields[name]
		if value == "" {
			return fmt.Errorf("%s is empty", name)
		}
		if _, ok := new(big.Int).SetString(value, 10); !ok {
			return fmt.Errorf("%s is not a base-10 integer: %q", name, value)
		}
	}
	return nil
}

// Validate checks the trade/bonding curve exclusivity and the trade amounts.
func (e TradeEvent) Validate() error {
	switch {
	case e.Trade != nil && e.BondingCurve != nil:
		return fmt.Errorf("both trade and bonding_curve set")
	case e.Trade == nil && e.BondingCurve == nil:
		return fmt.Errorf("neither trade nor bonding_curve set")
	case e.Trade != nil:
		return e.Trade.Validate()
	}
	return nil
}
