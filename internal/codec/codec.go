// Package codec provides key generation and the textual encodings used by
// the identity pipeline: url-safe base64 for signatures and request body
// hashes, and multibase (z + base58btc) for public keys embedded in DID
// documents. The signing primitive itself is abstracted behind the Signer
// and Verifier interfaces so protocol logic never touches crypto/ed25519
// directly.
package codec

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"fmt"
	"strings"

	"github.com/mr-tron/base58"
)

// Sizes of the raw key and signature material.
const (
	PublicKeySize  = 32
	PrivateKeySize = 32 // Ed25519 seed
	SignatureSize  = 64
)

// Multicodec tag identifying an Ed25519 public key, prepended to the raw
// key bytes before base58 encoding.
var ed25519Multicodec = []byte{0xed, 0x01}

// multibasePrefixBase58BTC is the multibase prefix for base58btc.
const multibasePrefixBase58BTC = "z"

var (
	// ErrInvalidMultibasePrefix indicates the encoded key does not start
	// with the base58btc multibase prefix.
	ErrInvalidMultibasePrefix = errors.New("invalid multibase prefix")
	// ErrInvalidKeyCodec indicates the decoded key is too short or does not
	// carry the Ed25519 multicodec tag.
	ErrInvalidKeyCodec = errors.New("invalid key codec")
)

// KeyPair holds the raw 32-byte halves of an Ed25519 key pair. The private
// half is the seed; it must never leave the holder's control.
type KeyPair struct {
	PublicKey  []byte
	PrivateKey []byte
}

// GenerateKeyPair produces a fresh Ed25519 key pair from the system's
// cryptographically secure random source.
func GenerateKeyPair() (KeyPair, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return KeyPair{}, fmt.Errorf("generate key: %w", err)
	}
	return KeyPair{
		PublicKey:  append([]byte(nil), pub...),
		PrivateKey: append([]byte(nil), priv.Seed()...),
	}, nil
}

// PublicKeyToMultibase encodes a 32-byte public key as
// "z" + base58btc(0xed 0x01 || key). Deterministic for a given key.
func PublicKeyToMultibase(publicKey []byte) string {
	tagged := make([]byte, 0, len(ed25519Multicodec)+len(publicKey))
	tagged = append(tagged, ed25519Multicodec...)
	tagged = append(tagged, publicKey...)
	return multibasePrefixBase58BTC + base58.Encode(tagged)
}

// MultibaseToPublicKey reverses PublicKeyToMultibase, returning the raw
// 32-byte public key. Returns ErrInvalidMultibasePrefix when the string
// does not start with "z", and ErrInvalidKeyCodec when the decoded bytes
// are not exactly the tag plus a 32-byte key or carry a different tag.
func MultibaseToPublicKey(encoded string) ([]byte, error) {
	if !strings.HasPrefix(encoded, multibasePrefixBase58BTC) {
		return nil, ErrInvalidMultibasePrefix
	}
	decoded, err := base58.Decode(encoded[1:])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKeyCodec, err)
	}
	if len(decoded) != len(ed25519Multicodec)+PublicKeySize {
		return nil, ErrInvalidKeyCodec
	}
	if decoded[0] != ed25519Multicodec[0] || decoded[1] != ed25519Multicodec[1] {
		return nil, ErrInvalidKeyCodec
	}
	return decoded[len(ed25519Multicodec):], nil
}
