// Package model defines the shared data shapes for the agent identity
// service: DID documents, signed-request headers, verification results,
// agent records, and credit ledger entries. Storage backends and the
// verification pipeline both consume these types; DTO-facing fields carry
// JSON tags for wire serialization.
package model

import "time"

// AgentStatus describes the lifecycle state of a registered agent.
type AgentStatus string

const (
	AgentStatusActive    AgentStatus = "active"
	AgentStatusSuspended AgentStatus = "suspended"
	AgentStatusRevoked   AgentStatus = "revoked"
)

// CreditEventType classifies a balance-changing event on the ledger.
type CreditEventType string

const (
	CreditEventGrant      CreditEventType = "grant"
	CreditEventDeduction  CreditEventType = "deduction"
	CreditEventRefund     CreditEventType = "refund"
	CreditEventAdjustment CreditEventType = "adjustment"
)

// Agent is the internal record for a registered identity. Credits is a
// denormalized current balance; the credit_ledger rows are authoritative
// history. Credits is never negative.
type Agent struct {
	DID       string      `json:"did"`
	Credits   int64       `json:"credits"`
	Status    AgentStatus `json:"status"`
	CreatedAt time.Time   `json:"createdAt"`
}

// CreditLedgerEntry is one append-only row of the credit ledger. Amount is
// the raw signed delta as requested; BalanceAfter is the post-event balance
// after clamping at zero. Rows are never mutated or deleted once written.
type CreditLedgerEntry struct {
	ID           string          `json:"id"`
	AgentDID     string          `json:"agentDid"`
	Type         CreditEventType `json:"type"`
	Amount       int64           `json:"amount"`
	BalanceAfter int64           `json:"balanceAfter"`
	Reason       string          `json:"reason"`
	RelatedURL   string          `json:"relatedUrl,omitempty"`
	CreatedAt    time.Time       `json:"createdAt"`
}

// ReplayEntry records a previously accepted signature. SignatureHash is the
// primary key; uniqueness of that key at insert time is the replay defense.
// InsertedAt drives the periodic storage sweep only.
type ReplayEntry struct {
	SignatureHash string
	AgentDID      string
	Timestamp     int64
	InsertedAt    time.Time
}

// DIDDocument is the did:web document shape published at the well-known
// location, per https://www.w3.org/TR/did-core/.
type DIDDocument struct {
	Context            []string             `json:"@context"`
	ID                 string               `json:"id"`
	Controller         string               `json:"controller,omitempty"`
	VerificationMethod []VerificationMethod `json:"verificationMethod"`
	Authentication     []string             `json:"authentication"`
	AssertionMethod    []string             `json:"assertionMethod,omitempty"`
	Service            []Service            `json:"service,omitempty"`
}

// VerificationMethod is one key entry inside a DID document.
type VerificationMethod struct {
	ID                 string `json:"id"`
	Type               string `json:"type"`
	Controller         string `json:"controller"`
	PublicKeyMultibase string `json:"publicKeyMultibase"`
}

// Service is a service endpoint advertised by a DID document.
type Service struct {
	ID              string `json:"id"`
	Type            string `json:"type"`
	ServiceEndpoint string `json:"serviceEndpoint"`
}

// SignableRequest carries the request attributes that are folded into the
// canonical string. Timestamp is epoch milliseconds; zero means "not set"
// and the signer substitutes the current time.
type SignableRequest struct {
	Method    string
	URL       string
	Body      string
	Timestamp int64
}

// SignedHeaders is the output of signing a request and the input to
// verification. Signature is url-safe base64 of the 64-byte Ed25519
// signature; Timestamp is the decimal millisecond epoch as a string.
type SignedHeaders struct {
	Signature string `json:"signature"`
	DID       string `json:"did"`
	Timestamp string `json:"timestamp"`
}

// VerificationResult reports the outcome of verifying a signed request.
// Code identifies the failure class for metrics and tests; Error is the
// human-readable reason surfaced to callers. All verification failures are
// normal results, never panics.
type VerificationResult struct {
	Valid bool   `json:"valid"`
	Code  string `json:"-"`
	Error string `json:"error,omitempty"`
}

// Verification failure codes.
const (
	CodeMissingSignature       = "MissingSignature"
	CodeMissingTimestamp       = "MissingTimestamp"
	CodeInvalidTimestampFormat = "InvalidTimestampFormat"
	CodeExpiredTimestamp       = "ExpiredTimestamp"
	CodeInvalidSignature       = "InvalidSignature"
	CodeReplayDetected         = "ReplayDetected"
	CodeInvalidDID             = "InvalidDid"
	CodeMethodNotSupported     = "MethodNotSupported"
	CodeNotFound               = "NotFound"
	CodeInvalidDIDDocument     = "InvalidDidDocument"
	CodeInternalError          = "InternalError"
)
