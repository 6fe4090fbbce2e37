package chain

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
)

// BlockHeader is the block context attached to decoded trades.
type BlockHeader struct {
	Number    uint64
	Hash      common.Hash
	Timestamp uint64
}

// TxContext is the sender and receipt data for one transaction.
type TxContext struct {
	Hash    common.Hash
	From    common.Address
	Index   uint
	GasUsed uint64
}

// Client wraps go-ethereum RPC and provides helper methods.
type Client struct {
	rpcClient *rpc.Client
	ethClient *ethclient.Client

	mu          sync.RWMutex
	headerCache map[uint64]BlockHeader
}

// NewClient creates a new chain client from the RPC URL.
func NewClient(ctx context.Context, rpcURL string) (*Client, error) {
	rpcClient, err := rpc.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, err
	}

	return &Client{
		rpcClient:   rpcClient,
		ethClient:   ethclient.NewClient(rpcClient),
		headerCache: make(map[uint64]BlockHeader),
	}, nil
}

// Close closes the underlying RPC client.
func (c *Client) Close() {
	if c.rpcClient != nil {
		c.rpcClient.Close()
	}
}

// GetChainID returns the chain ID.
func (c *Client) GetChainID(ctx context.Context) (*big.Int, error) {
	return c.ethClient.ChainID(ctx)
}

// LatestBlockNumber returns the latest block number.
func (c *Client) LatestBlockNumber(ctx context.Context) (uint64, error) {
	return c.ethClient.BlockNumber(ctx)
}

// BlockHeader returns hash and timestamp for a block, using an in-memory cache.
func (c *Client) BlockHeader(ctx context.Context, number uint64) (BlockHeader, error) {
	c.mu.RLock()
	header, ok := c.headerCache[number]
	c.mu.RUnlock()
	if ok {
		return header, nil
	}

	h, err := c.ethClient.HeaderByNumber(ctx, new(big.Int).SetUint64(number))
	if err != nil {
		return BlockHeader{}, err
	}

	header = BlockHeader{Number: number, Hash: h.Hash(), Timestamp: h.Time}
	c.mu.Lock()
	c.headerCache[number] = header
	c.mu.Unlock()

	return header, nil
}

// ForgetBlock drops a cached header once its block has been processed.
func (c *Client) ForgetBlock(number uint64) {
	c.mu.Lock()
	delete(c.headerCache, number)
	c.mu.Unlock()
}

// TransactionContext loads the sender and gas used for a transaction mined in blockHash.
func (c *Client) TransactionContext(ctx context.Context, txHash, blockHash common.Hash, index uint) (TxContext, error) {
	tx, _, err := c.ethClient.TransactionByHash(ctx, txHash)
	if err != nil {
		return TxContext{}, fmt.Errorf("transaction %s: %w", txHash.Hex(), err)
	}
	from, err := c.ethClient.TransactionSender(ctx, tx, blockHash, index)
	if err != nil {
		return TxContext{}, fmt.Errorf("sender %s: %w", txHash.Hex(), err)
	}
	receipt, err := c.ethClient.TransactionReceipt(ctx, txHash)
	if err != nil {
		return TxContext{}, fmt.Errorf("receipt %s: %w", txHash.Hex(), err)
	}
	return TxContext{
		Hash:    txHash,
		From:    from,
		Index:   receipt.TransactionIndex,
		GasUsed: receipt.GasUsed,
	}, nil
}

// FilterLogs returns logs in the given range for addresses and topic0 filters.
func (c *Client) FilterLogs(
	ctx context.Context,
	fromBlock uint64,
	toBlock uint64,
	addresses []common.Address,
	topic0 []common.Hash,
) ([]types.Log, error) {
	query := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(fromBlock),
		ToBlock:   new(big.Int).SetUint64(toBlock),
		Addresses: addresses,
	}
	if len(topic0) > 0 {
		query.Topics = [][]common.Hash{topic0}
	}
	return c.ethClient.FilterLogs(ctx, query)
}

// CallContract performs an eth_call for a contract method.
func (c *Client) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	return c.ethClient.CallContract(ctx, msg, blockNumber)
}
