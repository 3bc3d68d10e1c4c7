package crypto

import (
	"crypto/ecdsa"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/outcomefi/clob/internal/domain"
)

// EIP-712 type hashes (pre-computed keccak256 of the canonical type strings).
var (
	// EIP712Domain(string name,string version,uint256 chainId,address verifyingContract)
	eip712DomainTypeHash = ethcrypto.Keccak256(
		[]byte("EIP712Domain(string name,string version,uint256 chainId,address verifyingContract)"),
	)

	// Order(address maker,uint8 outcomeIndex,bool isBuy,uint256 price,uint256 amount,uint256 salt,uint256 expiry)
	orderTypeHash = ethcrypto.Keccak256(
		[]byte("Order(address maker,uint8 outcomeIndex,bool isBuy,uint256 price,uint256 amount,uint256 salt,uint256 expiry)"),
	)
)

const (
	domainName    = "OutcomeExchange"
	domainVersion = "1"
)

// OrderDigest computes the EIP-712 digest a maker signs for the given order
// against the exchange contract identified by (ChainID, VerifyingContract).
func OrderDigest(o domain.Order) []byte {
	domainSep := buildDomainSeparator(domainName, domainVersion, o.ChainID, o.VerifyingContract)

	isBuy := big.NewInt(0)
	if o.IsBuy {
		isBuy = big.NewInt(1)
	}
	structHash := ethcrypto.Keccak256(
		concatBytes(
			orderTypeHash,
			common.LeftPadBytes(common.HexToAddress(o.Maker).Bytes(), 32),
			bigIntTo32Bytes(big.NewInt(int64(o.OutcomeIndex))),
			bigIntTo32Bytes(isBuy),
			bigIntTo32Bytes(big.NewInt(o.PriceTicks)),
			bigIntTo32Bytes(o.Amount),
			bigIntTo32Bytes(o.Salt),
			bigIntTo32Bytes(big.NewInt(o.Expiry)),
		),
	)

	return eip712Hash(domainSep, structHash)
}

// SignOrder signs an order with the given private key, returning the
// hex-encoded 65-byte signature. Used by tooling and tests; makers normally
// sign client-side.
func SignOrder(o domain.Order, key *ecdsa.PrivateKey) (string, error) {
	sig, err := ethcrypto.Sign(OrderDigest(o), key)
	if err != nil {
		return "", fmt.Errorf("crypto: signing order: %w", err)
	}
	// go-ethereum returns v in {0,1}; EIP-712 expects v in {27,28}.
	if sig[64] < 27 {
		sig[64] += 27
	}
	return "0x" + hex.EncodeToString(sig), nil
}

// RecoverMaker recovers the signer address from the order's signature.
func RecoverMaker(o domain.Order) (common.Address, error) {
	sigHex := strings.TrimPrefix(o.Signature, "0x")
	sig, err := hex.DecodeString(sigHex)
	if err != nil {
		return common.Address{}, fmt.Errorf("crypto: decoding signature: %w", err)
	}
	if len(sig) != 65 {
		return common.Address{}, fmt.Errorf("crypto: expected 65-byte signature, got %d", len(sig))
	}

	// Normalize v back to {0,1} for recovery.
	recovery := make([]byte, 65)
	copy(recovery, sig)
	if recovery[64] >= 27 {
		recovery[64] -= 27
	}

	pub, err := ethcrypto.SigToPub(OrderDigest(o), recovery)
	if err != nil {
		return common.Address{}, fmt.Errorf("crypto: recovering signer: %w", err)
	}
	return ethcrypto.PubkeyToAddress(*pub), nil
}

// VerifyOrderSignature reports whether the order's signature recovers the
// order's maker address.
func VerifyOrderSignature(o domain.Order) error {
	recovered, err := RecoverMaker(o)
	if err != nil {
		return err
	}
	if recovered != common.HexToAddress(o.Maker) {
		return fmt.Errorf("crypto: signature recovers %s, want maker %s", recovered.Hex(), o.Maker)
	}
	return nil
}

// buildDomainSeparator returns
// keccak256(abi.encode(typeHash, nameHash, versionHash, chainId, verifyingContract)).
func buildDomainSeparator(name, version string, chainID int64, verifyingContract string) []byte {
	return ethcrypto.Keccak256(
		concatBytes(
			eip712DomainTypeHash,
			ethcrypto.Keccak256([]byte(name)),
			ethcrypto.Keccak256([]byte(version)),
			bigIntTo32Bytes(big.NewInt(chainID)),
			common.LeftPadBytes(common.HexToAddress(verifyingContract).Bytes(), 32),
		),
	)
}

// eip712Hash computes the final EIP-712 digest:
//
//	keccak256("\x19\x01" || domainSeparator || structHash)
func eip712Hash(domainSep, structHash []byte) []byte {
	return ethcrypto.Keccak256(
		concatBytes(
			[]byte{0x19, 0x01},
			domainSep,
			structHash,
		),
	)
}

func concatBytes(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func bigIntTo32Bytes(v *big.Int) []byte {
	return common.LeftPadBytes(v.Bytes(), 32)
}
