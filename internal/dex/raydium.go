package dex

import (
	"fmt"
	"math/big"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"tradeScope/internal/amount"
	"tradeScope/internal/model"
)

// RaydiumV4ProgramID is the Raydium AMM v4 program.
const RaydiumV4ProgramID = "675kPX9MHTjS2zt1qfr1NYHuzeLXfQM9H24wFSUt1Mp8"

const RaydiumSwapType = "raydium_swap"

// Account positions: user token account A, user token account B, vault A, vault B.
const raydiumMinAccounts = 4

// RaydiumDecoder decodes Raydium swaps from token balance snapshots.
type RaydiumDecoder struct {
	programID string
}

// NewRaydiumDecoder builds a decoder bound to programID (the v4 program when empty).
func NewRaydiumDecoder(programID string) (*RaydiumDecoder, error) {
	if programID == "" {
		programID = RaydiumV4ProgramID
	}
	key, err := solana.PublicKeyFromBase58(programID)
	if err != nil {
		return nil, fmt.Errorf("invalid raydium program id %q: %w", programID, err)
	}
	return &RaydiumDecoder{programID: key.String()}, nil
}

func (d *RaydiumDecoder) Name() string {
	return "raydium"
}

func (d *RaydiumDecoder) ProgramID() string {
	return d.programID
}

// balanceLeg accumulates what the snapshots say about one account.
type balanceLeg struct {
	address string
	mint    string
	owner   string
	delta   *big.Int
	pre     *big.Int
	post    *big.Int
}

func newBalanceLeg(address string) *balanceLeg {
	return &balanceLeg{address: address, delta: new(big.Int), pre: new(big.Int), post: new(big.Int)}
}

func (l *balanceLeg) note(b model.TokenBalance) {
	if b.Mint != "" {
		l.mint = b.Mint
	}
	if b.Owner != "" {
		l.owner = b.Owner
	}
}

// token returns the leg's mint, or the account itself when no mint was reported.
func (l *balanceLeg) token() string {
	if l.mint != "" {
		return l.mint
	}
	return l.address
}

// DecodeInstruction implements InstructionDecoder.
func (d *RaydiumDecoder) DecodeInstruction(in InstructionInput, ctx DecodeContext) *model.TradeEvent {
	if in.ProgramID != d.programID || len(in.Accounts) < raydiumMinAccounts {
		return nil
	}

	userA := newBalanceLeg(in.Accounts[0])
	userB := newBalanceLeg(in.Accounts[1])
	vaultA := newBalanceLeg(in.Accounts[2])
	vaultB := newBalanceLeg(in.Accounts[3])

	for _, b := range in.PreBalances {
		if b.Account == userA.address {
			userA.delta.Sub(userA.delta, balanceValue(ctx, "user_a_pre_amount", b))
			userA.note(b)
		}
		if b.Account == userB.address {
			userB.delta.Sub(userB.delta, balanceValue(ctx, "user_b_pre_amount", b))
			userB.note(b)
		}
		if b.Account == vaultA.address {
			vaultA.pre = balanceValue(ctx, "vault_a_pre_amount", b)
			vaultA.note(b)
		}
		if b.Account == vaultB.address {
			vaultB.pre = balanceValue(ctx, "vault_b_pre_amount", b)
			vaultB.note(b)
		}
	}

	for _, b := range in.PostBalances {
		if b.Account == userA.address {
			userA.delta.Add(userA.delta, balanceValue(ctx, "user_a_post_amount", b))
			userA.note(b)
		}
		if b.Account == userB.address {
			userB.delta.Add(userB.delta, balanceValue(ctx, "user_b_post_amount", b))
			userB.note(b)
		}
		if b.Account == vaultA.address {
			vaultA.post = balanceValue(ctx, "vault_a_post_amount", b)
			vaultA.note(b)
		}
		if b.Account == vaultB.address {
			vaultB.post = balanceValue(ctx, "vault_b_post_amount", b)
			vaultB.note(b)
		}
	}

	// User pre/post mirror the vault balances; only user deltas are tracked.
	trade := &model.Trade{
		TokenAAddress:            vaultA.token(),
		TokenBAddress:            vaultB.token(),
		UserATokenAccountAddress: userA.address,
		UserAAccountOwnerAddress: userA.owner,
		UserBTokenAccountAddress: userB.address,
		UserBAccountOwnerAddress: userB.owner,
		UserAAmount:              amount.String(userA.delta),
		UserBAmount:              amount.String(userB.delta),
		UserAPreAmount:           amount.String(vaultA.pre),
		UserAPostAmount:          amount.String(vaultA.post),
		UserBPreAmount:           amount.String(vaultB.pre),
		UserBPostAmount:          amount.String(vaultB.post),
		WasOriginalDirection:     true,
		PoolAddress:              d.programID,
		VaultA:                   vaultA.address,
		VaultB:                   vaultB.address,
		VaultAOwnerAddress:       vaultA.owner,
		VaultBOwnerAddress:       vaultB.owner,
		VaultAAmount:             amount.String(amount.Delta(vaultA.pre, vaultA.post)),
		VaultBAmount:             amount.String(amount.Delta(vaultB.pre, vaultB.post)),
		VaultAPreAmount:          amount.String(vaultA.pre),
		VaultBPreAmount:          amount.String(vaultB.pre),
		VaultAPostAmount:         amount.String(vaultA.post),
		VaultBPostAmount:         amount.String(vaultB.post),
	}

	instruction := in.Instruction
	instruction.Type = RaydiumSwapType
	block := in.Block
	tx := in.Transaction

	dapp := &model.DApp{ProgramAddress: d.programID, Chain: model.ChainSolana}
	if in.OuterProgramID != "" && in.OuterProgramID != d.programID {
		dapp.ProgramAddress = in.OuterProgramID
		dapp.InnerProgramAddress = d.programID
	}

	return &model.TradeEvent{
		Instruction: &instruction,
		Block:       &block,
		Transaction: &tx,
		DApp:        dapp,
		Trade:       trade,
	}
}

// balanceValue parses a snapshot amount, reading unparseable values as zero and
// recording the fallback.
func balanceValue(ctx DecodeContext, field string, b model.TokenBalance) *big.Int {
	value, ok := amount.ParseOrZero(b.Amount)
	if !ok {
		_, err := amount.Parse(b.Amount)
		ctx.Warnings.Add(model.DecodeWarning{
			Kind:    model.WarningAmountFallback,
			Field:   field,
			Address: b.Account,
			Value:   b.Amount,
			Reason:  err.Error(),
		})
		ctx.logger().Debug("balance read as zero",
			zap.String("field", field),
			zap.String("account", b.Account),
			zap.String("value", b.Amount),
			zap.Error(err),
		)
	}
	return value
}
