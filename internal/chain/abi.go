package chain

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/outcomefi/clob/internal/domain"
)

// exchangeABI describes the two settlement entry points of the market
// exchange contract. batchFill settles many maker fills in one transaction;
// fillOrderSigned is the single-fill equivalent with identical validation
// semantics on-chain.
const exchangeABI = `[
  {
    "name": "batchFill",
    "type": "function",
    "stateMutability": "nonpayable",
    "inputs": [
      {
        "name": "orders",
        "type": "tuple[]",
        "components": [
          {"name": "maker", "type": "address"},
          {"name": "outcomeIndex", "type": "uint8"},
          {"name": "isBuy", "type": "bool"},
          {"name": "price", "type": "uint256"},
          {"name": "amount", "type": "uint256"},
          {"name": "salt", "type": "uint256"},
          {"name": "expiry", "type": "uint256"}
        ]
      },
      {"name": "signatures", "type": "bytes[]"},
      {"name": "fillAmounts", "type": "uint256[]"}
    ],
    "outputs": []
  },
  {
    "name": "fillOrderSigned",
    "type": "function",
    "stateMutability": "nonpayable",
    "inputs": [
      {
        "name": "order",
        "type": "tuple",
        "components": [
          {"name": "maker", "type": "address"},
          {"name": "outcomeIndex", "type": "uint8"},
          {"name": "isBuy", "type": "bool"},
          {"name": "price", "type": "uint256"},
          {"name": "amount", "type": "uint256"},
          {"name": "salt", "type": "uint256"},
          {"name": "expiry", "type": "uint256"}
        ]
      },
      {"name": "signature", "type": "bytes"},
      {"name": "fillAmount", "type": "uint256"}
    ],
    "outputs": []
  }
]`

// exchangeOrder mirrors the on-chain order tuple. Field names must match the
// ABI component names for tuple packing.
type exchangeOrder struct {
	Maker        common.Address
	OutcomeIndex uint8
	IsBuy        bool
	Price        *big.Int
	Amount       *big.Int
	Salt         *big.Int
	Expiry       *big.Int
}

func parseExchangeABI() (abi.ABI, error) {
	parsed, err := abi.JSON(strings.NewReader(exchangeABI))
	if err != nil {
		return abi.ABI{}, fmt.Errorf("chain: parse exchange abi: %w", err)
	}
	return parsed, nil
}

func toExchangeOrder(o domain.Order) exchangeOrder {
	return exchangeOrder{
		Maker:        common.HexToAddress(o.Maker),
		OutcomeIndex: uint8(o.OutcomeIndex),
		IsBuy:        o.IsBuy,
		Price:        big.NewInt(o.PriceTicks),
		Amount:       new(big.Int).Set(o.Amount),
		Salt:         new(big.Int).Set(o.Salt),
		Expiry:       big.NewInt(o.Expiry),
	}
}

// packBatchFill encodes the calldata for a batch of settlement fills. A
// single-fill batch uses the fillOrderSigned path.
func (c *Client) packBatchFill(fills []domain.SettlementFill) ([]byte, error) {
	if len(fills) == 1 {
		f := fills[0]
		data, err := c.abi.Pack("fillOrderSigned",
			toExchangeOrder(f.Order),
			common.FromHex(f.Signature),
			new(big.Int).Set(f.FillAmount),
		)
		if err != nil {
			return nil, fmt.Errorf("chain: pack fillOrderSigned: %w", err)
		}
		return data, nil
	}

	orders := make([]exchangeOrder, 0, len(fills))
	sigs := make([][]byte, 0, len(fills))
	amounts := make([]*big.Int, 0, len(fills))
	for _, f := range fills {
		orders = append(orders, toExchangeOrder(f.Order))
		sigs = append(sigs, common.FromHex(f.Signature))
		amounts = append(amounts, new(big.Int).Set(f.FillAmount))
	}

	data, err := c.abi.Pack("batchFill", orders, sigs, amounts)
	if err != nil {
		return nil, fmt.Errorf("chain: pack batchFill: %w", err)
	}
	return data, nil
}
