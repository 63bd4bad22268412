package codec

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/mr-tron/base58"
)

func TestBase64RoundTrip(t *testing.T) {
	cases := [][]byte{
		{},
		{0},
		{0xff, 0xfe, 0xfd},
		[]byte("the quick brown fox"),
		bytes.Repeat([]byte{0xab}, 64),
	}
	for _, in := range cases {
		out, err := Decode(Encode(in))
		if err != nil {
			t.Fatalf("Decode(Encode(%v)) error: %v", in, err)
		}
		if !bytes.Equal(out, in) {
			t.Errorf("round trip mismatch: got %v want %v", out, in)
		}
	}
}

func TestBase64UsesURLSafeAlphabet(t *testing.T) {
	// 0xfb 0xff encodes to characters that differ between the standard
	// and url-safe alphabets.
	encoded := Encode([]byte{0xfb, 0xef, 0xff})
	if strings.ContainsAny(encoded, "+/=") {
		t.Fatalf("encoded output %q contains non-url-safe characters", encoded)
	}
}

func TestDecodeToleratesPadding(t *testing.T) {
	in := []byte{1, 2, 3, 4, 5}
	padded := Encode(in) + "=="
	out, err := Decode(padded)
	if err != nil {
		t.Fatalf("Decode(%q) error: %v", padded, err)
	}
	if !bytes.Equal(out, in) {
		t.Fatalf("padded decode mismatch: got %v want %v", out, in)
	}
}

func TestGenerateKeyPairSizes(t *testing.T) {
	kp, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair error: %v", err)
	}
	if len(kp.PublicKey) != PublicKeySize {
		t.Errorf("public key length = %d want %d", len(kp.PublicKey), PublicKeySize)
	}
	if len(kp.PrivateKey) != PrivateKeySize {
		t.Errorf("private key length = %d want %d", len(kp.PrivateKey), PrivateKeySize)
	}
}

func TestMultibaseRoundTrip(t *testing.T) {
	for i := 0; i < 10; i++ {
		kp, err := GenerateKeyPair()
		if err != nil {
			t.Fatalf("GenerateKeyPair error: %v", err)
		}
		encoded := PublicKeyToMultibase(kp.PublicKey)
		if !strings.HasPrefix(encoded, "z") {
			t.Fatalf("multibase output %q missing z prefix", encoded)
		}
		decoded, err := MultibaseToPublicKey(encoded)
		if err != nil {
			t.Fatalf("MultibaseToPublicKey(%q) error: %v", encoded, err)
		}
		if !bytes.Equal(decoded, kp.PublicKey) {
			t.Fatalf("multibase round trip mismatch")
		}
	}
}

func TestMultibaseDeterministic(t *testing.T) {
	key := bytes.Repeat([]byte{0x42}, PublicKeySize)
	if PublicKeyToMultibase(key) != PublicKeyToMultibase(key) {
		t.Fatal("same key encoded differently on repeated calls")
	}
}

func TestMultibaseLeadingZeroBytes(t *testing.T) {
	// All-zero key exercises base58's leading-zero mapping: the decoder
	// must reconstruct exactly 32 zero bytes after the codec tag.
	key := make([]byte, PublicKeySize)
	decoded, err := MultibaseToPublicKey(PublicKeyToMultibase(key))
	if err != nil {
		t.Fatalf("round trip error: %v", err)
	}
	if !bytes.Equal(decoded, key) {
		t.Fatalf("leading zero bytes lost: got %v", decoded)
	}
}

func TestMultibaseToPublicKeyErrors(t *testing.T) {
	if _, err := MultibaseToPublicKey("mXYZ"); !errors.Is(err, ErrInvalidMultibasePrefix) {
		t.Errorf("wrong prefix: got %v want ErrInvalidMultibasePrefix", err)
	}
	if _, err := MultibaseToPublicKey(""); !errors.Is(err, ErrInvalidMultibasePrefix) {
		t.Errorf("empty input: got %v want ErrInvalidMultibasePrefix", err)
	}
	// Too short: only the tag, no key bytes.
	short := multibasePrefixBase58BTC + "2g" // base58 of {0xed, 0x01} is short
	if _, err := MultibaseToPublicKey(short); !errors.Is(err, ErrInvalidKeyCodec) {
		t.Errorf("short input: got %v want ErrInvalidKeyCodec", err)
	}
	// Correct length, wrong multicodec tag.
	tagged := append([]byte{0x12, 0x01}, make([]byte, PublicKeySize)...)
	wrongTag := multibasePrefixBase58BTC + base58.Encode(tagged)
	if _, err := MultibaseToPublicKey(wrongTag); !errors.Is(err, ErrInvalidKeyCodec) {
		t.Errorf("wrong tag: got %v want ErrInvalidKeyCodec", err)
	}
	// Correct tag but trailing bytes beyond a full key.
	oversized := append([]byte{0xed, 0x01}, make([]byte, PublicKeySize+8)...)
	long := multibasePrefixBase58BTC + base58.Encode(oversized)
	if _, err := MultibaseToPublicKey(long); !errors.Is(err, ErrInvalidKeyCodec) {
		t.Errorf("oversized input: got %v want ErrInvalidKeyCodec", err)
	}
}

func TestEd25519SignerDeterministic(t *testing.T) {
	kp, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair error: %v", err)
	}
	signer := Ed25519Signer{}
	message := []byte("POST\n/\n1700000000000\n")

	sig1, err := signer.Sign(message, kp.PrivateKey)
	if err != nil {
		t.Fatalf("Sign error: %v", err)
	}
	sig2, err := signer.Sign(message, kp.PrivateKey)
	if err != nil {
		t.Fatalf("Sign error: %v", err)
	}
	if !bytes.Equal(sig1, sig2) {
		t.Fatal("same message signed twice produced different signatures")
	}
	if len(sig1) != SignatureSize {
		t.Fatalf("signature length = %d want %d", len(sig1), SignatureSize)
	}

	other, err := signer.Sign([]byte("different message"), kp.PrivateKey)
	if err != nil {
		t.Fatalf("Sign error: %v", err)
	}
	if bytes.Equal(sig1, other) {
		t.Fatal("different messages produced identical signatures")
	}

	verifier := Ed25519Verifier{}
	if !verifier.Verify(message, sig1, kp.PublicKey) {
		t.Fatal("valid signature rejected")
	}
	if verifier.Verify([]byte("tampered"), sig1, kp.PublicKey) {
		t.Fatal("signature accepted for wrong message")
	}
}

func TestEd25519SignerRejectsBadKeyLength(t *testing.T) {
	if _, err := (Ed25519Signer{}).Sign([]byte("msg"), make([]byte, 16)); err == nil {
		t.Fatal("expected error for 16-byte private key")
	}
}

func TestEd25519VerifierMalformedInputs(t *testing.T) {
	verifier := Ed25519Verifier{}
	if verifier.Verify([]byte("msg"), make([]byte, SignatureSize), make([]byte, 5)) {
		t.Fatal("accepted malformed public key")
	}
	if verifier.Verify([]byte("msg"), make([]byte, 10), make([]byte, PublicKeySize)) {
		t.Fatal("accepted malformed signature")
	}
}
