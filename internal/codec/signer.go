package codec

import (
	"crypto/ed25519"
	"fmt"
)

// Signer produces a detached signature over a message. Implementations
// accept the 32-byte private seed from KeyPair; the full 64-byte expanded
// form is also tolerated for callers that hold one.
type Signer interface {
	Sign(message, privateKey []byte) ([]byte, error)
}

// Verifier checks a detached signature against a 32-byte public key.
// A malformed key or signature verifies as false, never panics.
type Verifier interface {
	Verify(message, signature, publicKey []byte) bool
}

// Ed25519Signer signs with crypto/ed25519.
type Ed25519Signer struct{}

// Sign produces a 64-byte Ed25519 signature over message.
func (Ed25519Signer) Sign(message, privateKey []byte) ([]byte, error) {
	var key ed25519.PrivateKey
	switch len(privateKey) {
	case PrivateKeySize:
		key = ed25519.NewKeyFromSeed(privateKey)
	case ed25519.PrivateKeySize:
		key = ed25519.PrivateKey(privateKey)
	default:
		return nil, fmt.Errorf("private key must be %d or %d bytes, got %d", PrivateKeySize, ed25519.PrivateKeySize, len(privateKey))
	}
	return ed25519.Sign(key, message), nil
}

// Ed25519Verifier verifies with crypto/ed25519.
type Ed25519Verifier struct{}

// Verify reports whether signature is a valid Ed25519 signature of message
// under publicKey.
func (Ed25519Verifier) Verify(message, signature, publicKey []byte) bool {
	if len(publicKey) != ed25519.PublicKeySize || len(signature) != SignatureSize {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(publicKey), message, signature)
}
