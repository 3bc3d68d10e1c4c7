// Package chain wraps the Ethereum RPC surface used by settlement: gas
// pricing, gas estimation, operator-signed transaction submission, and
// receipt polling. The operator key and RPC endpoint are injected at
// construction so multiple isolated instances can serve different markets.
package chain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/outcomefi/clob/internal/domain"
	"github.com/outcomefi/clob/internal/settle"
)

// Config holds chain client construction parameters.
type Config struct {
	RPCURL  string
	ChainID int64
	// OperatorKeyHex is the hex-encoded operator private key, already
	// resolved by the key manager.
	OperatorKeyHex string
}

// Client implements settle.ChainClient against a real RPC node.
type Client struct {
	eth      *ethclient.Client
	chainID  *big.Int
	key      *ecdsa.PrivateKey
	operator common.Address
	abi      abi.ABI
}

// Dial connects to the RPC endpoint and prepares the operator signer.
func Dial(ctx context.Context, cfg Config) (*Client, error) {
	eth, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("chain: dial %s: %w", cfg.RPCURL, err)
	}

	key, err := ethcrypto.HexToECDSA(trim0x(cfg.OperatorKeyHex))
	if err != nil {
		eth.Close()
		return nil, fmt.Errorf("chain: invalid operator key: %w", err)
	}

	parsed, err := parseExchangeABI()
	if err != nil {
		eth.Close()
		return nil, err
	}

	return &Client{
		eth:      eth,
		chainID:  big.NewInt(cfg.ChainID),
		key:      key,
		operator: ethcrypto.PubkeyToAddress(key.PublicKey),
		abi:      parsed,
	}, nil
}

// Close releases the underlying RPC connection.
func (c *Client) Close() { c.eth.Close() }

// Operator returns the address derived from the operator key.
func (c *Client) Operator() common.Address { return c.operator }

// SuggestGasPrice returns the node's current gas price suggestion.
func (c *Client) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	price, err := c.eth.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("chain: suggest gas price: %w", err)
	}
	return price, nil
}

// BlockNumber returns the latest block number.
func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	n, err := c.eth.BlockNumber(ctx)
	if err != nil {
		return 0, fmt.Errorf("chain: block number: %w", err)
	}
	return n, nil
}

// EstimateBatchFill estimates gas for the settlement call. An estimation
// revert surfaces as an error, which the settler treats as a hard batch
// failure.
func (c *Client) EstimateBatchFill(ctx context.Context, market string, fills []domain.SettlementFill) (uint64, error) {
	data, err := c.packBatchFill(fills)
	if err != nil {
		return 0, err
	}
	to := common.HexToAddress(market)
	gas, err := c.eth.EstimateGas(ctx, ethereum.CallMsg{
		From: c.operator,
		To:   &to,
		Data: data,
	})
	if err != nil {
		return 0, fmt.Errorf("chain: estimate batchFill: %w", err)
	}
	return gas, nil
}

// SubmitBatchFill signs and sends the settlement transaction with the
// operator key and returns the transaction hash. The caller serializes
// submissions, so fetching the pending nonce here is race-free.
func (c *Client) SubmitBatchFill(ctx context.Context, market string, fills []domain.SettlementFill, gasLimit uint64, gasPrice *big.Int) (string, error) {
	data, err := c.packBatchFill(fills)
	if err != nil {
		return "", err
	}

	nonce, err := c.eth.PendingNonceAt(ctx, c.operator)
	if err != nil {
		return "", fmt.Errorf("chain: pending nonce: %w", err)
	}

	to := common.HexToAddress(market)
	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &to,
		Gas:      gasLimit,
		GasPrice: gasPrice,
		Data:     data,
	})

	signed, err := types.SignTx(tx, types.LatestSignerForChainID(c.chainID), c.key)
	if err != nil {
		return "", fmt.Errorf("chain: sign tx: %w", err)
	}
	if err := c.eth.SendTransaction(ctx, signed); err != nil {
		return "", fmt.Errorf("chain: send tx: %w", err)
	}
	return signed.Hash().Hex(), nil
}

// TransactionReceipt fetches the receipt for txHash, returning (nil, nil)
// while the transaction is not yet mined.
func (c *Client) TransactionReceipt(ctx context.Context, txHash string) (*settle.Receipt, error) {
	receipt, err := c.eth.TransactionReceipt(ctx, common.HexToHash(txHash))
	if err != nil {
		if errors.Is(err, ethereum.NotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("chain: receipt %s: %w", txHash, err)
	}
	return &settle.Receipt{
		TxHash:      txHash,
		BlockNumber: receipt.BlockNumber.Uint64(),
		GasUsed:     receipt.GasUsed,
		Reverted:    receipt.Status == types.ReceiptStatusFailed,
	}, nil
}

func trim0x(s string) string {
	if len(s) >= 2 && (s[:2] == "0x" || s[:2] == "0X") {
		return s[2:]
	}
	return s
}
