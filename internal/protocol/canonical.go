package protocol

import (
	"crypto/sha256"
	"strconv"
	"strings"

	"github.com/AgentCommons/agentcommons-identity-go/internal/codec"
)

// CanonicalString builds the deterministic byte string both sides sign:
// METHOD\nURL\nTIMESTAMP\nBODYHASH. The method is upper-cased, the
// timestamp is the decimal millisecond epoch, and the body hash is the
// url-safe base64 SHA-256 of the UTF-8 body, or empty when there is no
// body. The canonicalization is fixed-order and minimal so signer and
// verifier always agree byte for byte.
func CanonicalString(method, url string, timestampMS int64, body string) string {
	bodyHash := ""
	if body != "" {
		sum := sha256.Sum256([]byte(body))
		bodyHash = codec.Encode(sum[:])
	}
	return strings.ToUpper(method) + "\n" + url + "\n" + strconv.FormatInt(timestampMS, 10) + "\n" + bodyHash
}
