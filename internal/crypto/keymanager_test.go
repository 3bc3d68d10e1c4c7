package crypto

import (
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"
)

func freshKeyHex(t *testing.T) string {
	t.Helper()
	key, err := ethcrypto.GenerateKey()
	require.NoError(t, err)
	return hex.EncodeToString(ethcrypto.FromECDSA(key))
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	keyHex := freshKeyHex(t)

	blob, err := EncryptKey(keyHex, "correct horse battery staple")
	require.NoError(t, err)

	got, err := DecryptKey(blob, "correct horse battery staple")
	require.NoError(t, err)
	require.Equal(t, keyHex, got)

	// The 0x prefix is accepted and stripped.
	blob, err = EncryptKey("0x"+keyHex, "pw")
	require.NoError(t, err)
	got, err = DecryptKey(blob, "pw")
	require.NoError(t, err)
	require.Equal(t, keyHex, got)
}

func TestDecryptWrongPassword(t *testing.T) {
	blob, err := EncryptKey(freshKeyHex(t), "right")
	require.NoError(t, err)

	_, err = DecryptKey(blob, "wrong")
	require.Error(t, err)
}

func TestEncryptKeyRejectsBadInput(t *testing.T) {
	_, err := EncryptKey(freshKeyHex(t), "")
	require.Error(t, err)

	_, err = EncryptKey("zzzz", "pw")
	require.Error(t, err)

	// Wrong key length.
	_, err = EncryptKey("deadbeef", "pw")
	require.Error(t, err)
}

func TestLoadKeyRawTakesPrecedence(t *testing.T) {
	keyHex := freshKeyHex(t)

	got, err := LoadKey(KeyConfig{RawPrivateKey: "0x" + keyHex})
	require.NoError(t, err)
	require.Equal(t, keyHex, got)

	_, err = LoadKey(KeyConfig{RawPrivateKey: "not hex"})
	require.Error(t, err)
}

func TestLoadKeyFromEncryptedFile(t *testing.T) {
	keyHex := freshKeyHex(t)
	blob, err := EncryptKey(keyHex, "pw")
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "operator.json")
	require.NoError(t, os.WriteFile(path, blob, 0o600))

	got, err := LoadKey(KeyConfig{EncryptedKeyPath: path, KeyPassword: "pw"})
	require.NoError(t, err)
	require.Equal(t, keyHex, got)

	_, err = LoadKey(KeyConfig{EncryptedKeyPath: path, KeyPassword: "wrong"})
	require.Error(t, err)
}

func TestLoadKeyNoSource(t *testing.T) {
	_, err := LoadKey(KeyConfig{})
	require.Error(t, err)
}
