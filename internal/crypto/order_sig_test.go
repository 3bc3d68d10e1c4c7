package crypto

import (
	"math/big"
	"testing"
	"time"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"github.com/outcomefi/clob/internal/domain"
)

func signedTestOrder(t *testing.T) (domain.Order, string) {
	t.Helper()

	key, err := ethcrypto.GenerateKey()
	require.NoError(t, err)
	maker := ethcrypto.PubkeyToAddress(key.PublicKey).Hex()

	o := domain.Order{
		MarketKey:         domain.MarketKey("137:0xevent"),
		OutcomeIndex:      1,
		Maker:             maker,
		IsBuy:             true,
		PriceTicks:        520_000,
		Amount:            new(big.Int).Mul(big.NewInt(10), domain.AmountScale),
		Salt:              big.NewInt(987_654_321),
		Expiry:            time.Now().Add(time.Hour).Unix(),
		ChainID:           137,
		VerifyingContract: "0x5555555555555555555555555555555555555555",
	}

	sig, err := SignOrder(o, key)
	require.NoError(t, err)
	o.Signature = sig
	return o, maker
}

func TestOrderDigestIsDeterministic(t *testing.T) {
	o, _ := signedTestOrder(t)

	d1 := OrderDigest(o)
	d2 := OrderDigest(o)
	require.Len(t, d1, 32)
	require.Equal(t, d1, d2)

	// Any field change moves the digest.
	o.PriceTicks++
	require.NotEqual(t, d1, OrderDigest(o))
}

func TestSignAndRecover(t *testing.T) {
	o, maker := signedTestOrder(t)

	recovered, err := RecoverMaker(o)
	require.NoError(t, err)
	require.Equal(t, maker, recovered.Hex())
}

func TestVerifyOrderSignature(t *testing.T) {
	o, _ := signedTestOrder(t)
	require.NoError(t, VerifyOrderSignature(o))

	// A tampered price no longer recovers the maker.
	tampered := o
	tampered.PriceTicks = 400_000
	require.Error(t, VerifyOrderSignature(tampered))

	// A signature from another key fails too.
	otherKey, err := ethcrypto.GenerateKey()
	require.NoError(t, err)
	forged := o
	forged.Signature, err = SignOrder(forged, otherKey)
	require.NoError(t, err)
	require.Error(t, VerifyOrderSignature(forged))
}

func TestRecoverMakerRejectsMalformedSignature(t *testing.T) {
	o, _ := signedTestOrder(t)

	o.Signature = "0x1234"
	_, err := RecoverMaker(o)
	require.Error(t, err)

	o.Signature = "not-hex"
	_, err = RecoverMaker(o)
	require.Error(t, err)
}
