package codec

import (
	"encoding/base64"
	"strings"
)

// Encode serializes bytes as url-safe base64 without padding.
func Encode(data []byte) string {
	return base64.RawURLEncoding.EncodeToString(data)
}

// Decode parses url-safe base64, tolerating both padded and unpadded
// input. Signatures arrive over HTTP headers from a variety of clients,
// some of which emit trailing '=' padding.
func Decode(encoded string) ([]byte, error) {
	return base64.RawURLEncoding.DecodeString(strings.TrimRight(encoded, "="))
}
