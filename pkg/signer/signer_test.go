package signer

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTestKey(t *testing.T, bits int) (string, *rsa.PrivateKey) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, bits)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "key.pem")
	block := &pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)}
	require.NoError(t, os.WriteFile(path, pem.EncodeToMemory(block), 0600))
	return path, key
}

func TestLoad_EmptyPathIsUnsigned(t *testing.T) {
	s, err := Load("")
	require.NoError(t, err)
	assert.False(t, s.Enabled())

	_, err = s.Sign([]byte{0x01})
	assert.ErrorIs(t, err, ErrKeyMissing)
}

func TestLoad_MissingFileIsError(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.pem"))
	require.ErrorIs(t, err, ErrKeyUnreadable)
}

func TestLoad_GarbageKeyIsError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.pem")
	require.NoError(t, os.WriteFile(path, []byte("not a key"), 0600))
	_, err := Load(path)
	require.ErrorIs(t, err, ErrKeyUnreadable)
}

func TestLoad_PKCS8(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	der, err := x509.MarshalPKCS8PrivateKey(key)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "key8.pem")
	block := &pem.Block{Type: "PRIVATE KEY", Bytes: der}
	require.NoError(t, os.WriteFile(path, pem.EncodeToMemory(block), 0600))

	s, err := Load(path)
	require.NoError(t, err)
	assert.True(t, s.Enabled())
}

func TestSign_ProducesVerifiable9F45(t *testing.T) {
	path, key := writeTestKey(t, 2048)
	s, err := Load(path)
	require.NoError(t, err)
	require.True(t, s.Enabled())

	payload := []byte{0x5A, 0x02, 0x11, 0x22}
	node, err := s.Sign(payload)
	require.NoError(t, err)

	assert.Equal(t, "9F45", node.TagHex())
	assert.Len(t, node.Value, 256) // 2048-bit modulus

	digest := sha256.Sum256(payload)
	require.NoError(t, rsa.VerifyPKCS1v15(&key.PublicKey, crypto.SHA256, digest[:], node.Value))
}

func TestSign_OverlengthRejected(t *testing.T) {
	// A 4096-bit key yields a 512-byte signature, over the 9F45 budget.
	path, _ := writeTestKey(t, 4096)
	s, err := Load(path)
	require.NoError(t, err)

	_, err = s.Sign([]byte{0x01})
	assert.ErrorIs(t, err, ErrSignatureOverlength)
}
