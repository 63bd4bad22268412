// Package protocol implements canonical-string request signing and
// verification for agent-authenticated HTTP requests. A signature covers
// METHOD, URL, a millisecond timestamp, and the SHA-256 hash of the body,
// joined by newlines; signer and verifier reconstruct the exact same bytes.
package protocol

// Signed-request header names. Lookup on the verification side is
// case-insensitive.
const (
	// HeaderSignature carries the url-safe base64 Ed25519 signature.
	HeaderSignature = "X-Agent-Signature"
	// HeaderDID carries the signer's DID.
	HeaderDID = "X-Agent-DID"
	// HeaderTimestamp carries the decimal millisecond epoch of the signature.
	HeaderTimestamp = "X-Agent-Timestamp"
	// HeaderMethod is the sidecar carrying the HTTP method the signature
	// was built over.
	HeaderMethod = "X-Agent-Method"
	// HeaderURL is the sidecar carrying the URL the signature was built over.
	HeaderURL = "X-Agent-URL"
)

// Defaults substituted when the method/URL sidecar headers are absent.
const (
	defaultMethod = "POST"
	defaultURL    = "/"
)

// DefaultToleranceMS is the symmetric timestamp tolerance applied when the
// caller does not supply one: five minutes in milliseconds.
const DefaultToleranceMS = 300000
