// Package rpcledger implements the ledger capabilities over a JSON-RPC
// endpoint, signing state-changing transactions locally and waiting for
// their receipts before returning.
package rpcledger

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/lendstate/lendstate-deployer-go/ledger"
)

const receiptPollInterval = 2 * time.Second

// Logger defines a standard interface for structured, leveled logging.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Config holds the connection and signing parameters.
type Config struct {
	URL        string
	PrivateKey string // hex-encoded, no 0x prefix
	ChainID    *big.Int
	GasLimit   uint64
	Logger     Logger

	// Artifacts maps artifact ids to their creation bytecode.
	Artifacts map[ledger.ArtifactID][]byte
}

// validate checks if the configuration is valid.
func (c *Config) validate() error {
	if c.URL == "" {
		return errors.New("config: URL is required")
	}
	if c.PrivateKey == "" {
		return errors.New("config: PrivateKey is required")
	}
	if c.ChainID == nil {
		return errors.New("config: ChainID is required")
	}
	if c.Logger == nil {
		return errors.New("config: Logger is required")
	}
	return nil
}

// Client talks to one JSON-RPC endpoint and signs with one key. It
// implements ledger.Ledger and ledger.Factory.
type Client struct {
	rpc       *rpc.Client
	key       *ecdsa.PrivateKey
	sender    common.Address
	chainID   *big.Int
	gasLimit  uint64
	logger    Logger
	artifacts map[ledger.ArtifactID][]byte
}

// Dial connects and prepares the signer.
func Dial(ctx context.Context, cfg Config) (*Client, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	key, err := crypto.HexToECDSA(cfg.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	rpcClient, err := rpc.DialContext(ctx, cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", cfg.URL, err)
	}
	gasLimit := cfg.GasLimit
	if gasLimit == 0 {
		gasLimit = 8_000_000
	}
	return &Client{
		rpc:       rpcClient,
		key:       key,
		sender:    crypto.PubkeyToAddress(key.PublicKey),
		chainID:   cfg.ChainID,
		gasLimit:  gasLimit,
		logger:    cfg.Logger,
		artifacts: cfg.Artifacts,
	}, nil
}

// Close releases the underlying RPC connection.
func (c *Client) Close() { c.rpc.Close() }

// Sender implements ledger.Factory.
func (c *Client) Sender() common.Address { return c.sender }

// GetCode implements ledger.Ledger.
func (c *Client) GetCode(ctx context.Context, addr common.Address) ([]byte, error) {
	var code hexutil.Bytes
	if err := c.rpc.CallContext(ctx, &code, "eth_getCode", addr, "latest"); err != nil {
		return nil, fmt.Errorf("eth_getCode %s: %w", addr.Hex(), err)
	}
	return code, nil
}

// StaticCall implements the read-only path of ledger.Ledger.
func (c *Client) StaticCall(ctx context.Context, addr common.Address, payload []byte) ([]byte, error) {
	var out hexutil.Bytes
	msg := map[string]any{
		"from": c.sender,
		"to":   addr,
		"data": hexutil.Bytes(payload),
	}
	if err := c.rpc.CallContext(ctx, &out, "eth_call", msg, "latest"); err != nil {
		return nil, fmt.Errorf("eth_call %s: %w", addr.Hex(), err)
	}
	return out, nil
}

// Call signs, submits and confirms a state-changing transaction.
func (c *Client) Call(ctx context.Context, addr common.Address, payload []byte) ([]byte, error) {
	receipt, err := c.send(ctx, &addr, payload)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("call confirmed", "to", addr.Hex(), "tx", receipt.TxHash.Hex())
	return nil, nil
}

// Deploy implements ledger.Factory by submitting a creation transaction.
func (c *Client) Deploy(ctx context.Context, artifact ledger.ArtifactID, args []byte) (common.Address, error) {
	bytecode, ok := c.artifacts[artifact]
	if !ok {
		return common.Address{}, fmt.Errorf("deploy %s: no bytecode for artifact", artifact)
	}
	receipt, err := c.send(ctx, nil, append(append([]byte(nil), bytecode...), args...))
	if err != nil {
		return common.Address{}, fmt.Errorf("deploy %s: %w", artifact, err)
	}
	if receipt.ContractAddress == (common.Address{}) {
		return common.Address{}, fmt.Errorf("deploy %s: receipt carries no contract address", artifact)
	}
	c.logger.Info("artifact deployed", "artifact", string(artifact), "address", receipt.ContractAddress.Hex())
	return receipt.ContractAddress, nil
}

// ComputeAddress implements ledger.Factory with CREATE2 semantics.
func (c *Client) ComputeAddress(artifact ledger.ArtifactID, args []byte, salt [32]byte) (common.Address, error) {
	bytecode, ok := c.artifacts[artifact]
	if !ok {
		return common.Address{}, fmt.Errorf("compute address %s: no bytecode for artifact", artifact)
	}
	initHash := crypto.Keccak256(append(append([]byte(nil), bytecode...), args...))
	return crypto.CreateAddress2(c.sender, salt, initHash), nil
}

func (c *Client) send(ctx context.Context, to *common.Address, data []byte) (*types.Receipt, error) {
	var nonce hexutil.Uint64
	if err := c.rpc.CallContext(ctx, &nonce, "eth_getTransactionCount", c.sender, "pending"); err != nil {
		return nil, fmt.Errorf("eth_getTransactionCount: %w", err)
	}
	var gasPrice hexutil.Big
	if err := c.rpc.CallContext(ctx, &gasPrice, "eth_gasPrice"); err != nil {
		return nil, fmt.Errorf("eth_gasPrice: %w", err)
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    uint64(nonce),
		To:       to,
		Gas:      c.gasLimit,
		GasPrice: gasPrice.ToInt(),
		Value:    new(big.Int),
		Data:     data,
	})
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(c.chainID), c.key)
	if err != nil {
		return nil, fmt.Errorf("sign transaction: %w", err)
	}
	raw, err := signed.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("encode transaction: %w", err)
	}

	var txHash common.Hash
	if err := c.rpc.CallContext(ctx, &txHash, "eth_sendRawTransaction", hexutil.Bytes(raw)); err != nil {
		return nil, fmt.Errorf("eth_sendRawTransaction: %w", err)
	}
	return c.waitReceipt(ctx, txHash)
}

func (c *Client) waitReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	ticker := time.NewTicker(receiptPollInterval)
	defer ticker.Stop()
	for {
		var receipt *types.Receipt
		err := c.rpc.CallContext(ctx, &receipt, "eth_getTransactionReceipt", txHash)
		if err == nil && receipt != nil {
			if receipt.Status != types.ReceiptStatusSuccessful {
				return nil, fmt.Errorf("transaction %s reverted", txHash.Hex())
			}
			return receipt, nil
		}
		if err != nil {
			c.logger.Warn("receipt poll failed", "tx", txHash.Hex(), "error", err)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
