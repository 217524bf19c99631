// Package signer computes the proxy signature appended to modified payloads:
// RSA-SHA256 with PKCS#1 v1.5 padding, carried in tag 9F45.
package signer

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"

	"golang.org/x/crypto/ssh"

	"github.com/ghostfacexx/nfcmitm/pkg/tlv"
)

var (
	// ErrKeyMissing is the non-fatal sentinel returned when no key is
	// configured; the pipeline proceeds unsigned.
	ErrKeyMissing = errors.New("signer: no private key configured")

	// ErrKeyUnreadable marks a configured key that cannot be read or
	// parsed. Fatal at startup, and a rejected patch at runtime.
	ErrKeyUnreadable = errors.New("signer: key unreadable")

	// ErrSignatureOverlength is returned when the signature exceeds the
	// 256-byte budget of the 9F45 element. The request is dropped.
	ErrSignatureOverlength = errors.New("signer: signature exceeds 256 bytes")
)

// maxSignatureLen bounds the signature value carried in 9F45.
const maxSignatureLen = 256

// Signer holds the process-lifetime key handle. A nil key means unsigned
// operation; the handle is immutable after load and shared by reference.
type Signer struct {
	key *rsa.PrivateKey
}

// Load reads an RSA private key from path. An empty path yields an unsigned
// Signer (ErrKeyMissing at signing time); a configured path that cannot be
// read or parsed is an error the caller treats as fatal at startup.
//
// PKCS#1, PKCS#8 and OpenSSH PEM encodings are accepted.
func Load(path string) (*Signer, error) {
	if path == "" {
		return &Signer{}, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrKeyUnreadable, path, err)
	}

	key, err := parseKey(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrKeyUnreadable, path, err)
	}
	return &Signer{key: key}, nil
}

func parseKey(raw []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(raw)
	if block == nil {
		return nil, errors.New("no PEM block found")
	}

	switch block.Type {
	case "RSA PRIVATE KEY":
		return x509.ParsePKCS1PrivateKey(block.Bytes)
	case "PRIVATE KEY":
		key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, err
		}
		rsaKey, ok := key.(*rsa.PrivateKey)
		if !ok {
			return nil, errors.New("PKCS#8 key is not RSA")
		}
		return rsaKey, nil
	case "OPENSSH PRIVATE KEY":
		key, err := ssh.ParseRawPrivateKey(raw)
		if err != nil {
			return nil, err
		}
		rsaKey, ok := key.(*rsa.PrivateKey)
		if !ok {
			return nil, errors.New("OpenSSH key is not RSA")
		}
		return rsaKey, nil
	default:
		return nil, fmt.Errorf("unsupported PEM block %q", block.Type)
	}
}

// Enabled reports whether a key is loaded.
func (s *Signer) Enabled() bool {
	return s != nil && s.key != nil
}

// Sign computes the signature node over the modified payload bytes.
// Returns ErrKeyMissing when operating unsigned.
func (s *Signer) Sign(payload []byte) (tlv.Node, error) {
	if !s.Enabled() {
		return tlv.Node{}, ErrKeyMissing
	}

	digest := sha256.Sum256(payload)
	sig, err := rsa.SignPKCS1v15(rand.Reader, s.key, crypto.SHA256, digest[:])
	if err != nil {
		return tlv.Node{}, fmt.Errorf("signer: sign: %w", err)
	}
	if len(sig) > maxSignatureLen {
		return tlv.Node{}, fmt.Errorf("%w: %d", ErrSignatureOverlength, len(sig))
	}

	return tlv.NewPrimitive(tlv.TagProxySignature, sig), nil
}
