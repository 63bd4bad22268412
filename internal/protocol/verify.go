package protocol

import (
	"strconv"
	"strings"
	"time"

	"github.com/AgentCommons/agentcommons-identity-go/internal/codec"
	"github.com/AgentCommons/agentcommons-identity-go/internal/model"
)

// VerifyOptions tunes verification. ToleranceMS bounds the symmetric
// timestamp window and defaults to DefaultToleranceMS; Verifier defaults
// to the Ed25519 implementation; Now is injectable for tests.
type VerifyOptions struct {
	ToleranceMS int64
	Verifier    codec.Verifier
	Now         func() time.Time
}

// VerifyRequest checks a signed request against the claimed public key.
// Headers are matched case-insensitively. Method and URL come from the
// sidecar headers, defaulting to POST and / when absent; the verifier does
// not trust values embedded in the payload. Every failure is a normal
// result carrying a reason string, never a panic.
func VerifyRequest(headers map[string]string, publicKey []byte, body string, opts VerifyOptions) model.VerificationResult {
	verifier := opts.Verifier
	if verifier == nil {
		verifier = codec.Ed25519Verifier{}
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	tolerance := opts.ToleranceMS
	if tolerance == 0 {
		tolerance = DefaultToleranceMS
	}

	signature, ok := headerValue(headers, HeaderSignature)
	if !ok || signature == "" {
		return failure(model.CodeMissingSignature, "Missing signature header")
	}
	rawTimestamp, ok := headerValue(headers, HeaderTimestamp)
	if !ok || rawTimestamp == "" {
		return failure(model.CodeMissingTimestamp, "Missing timestamp header")
	}

	ts, err := strconv.ParseInt(rawTimestamp, 10, 64)
	if err != nil {
		return failure(model.CodeInvalidTimestampFormat, "Invalid timestamp format")
	}

	drift := now().UnixMilli() - ts
	if drift < 0 {
		drift = -drift
	}
	if drift > tolerance {
		return failure(model.CodeExpiredTimestamp, "Timestamp outside allowed tolerance")
	}

	method, ok := headerValue(headers, HeaderMethod)
	if !ok || method == "" {
		method = defaultMethod
	}
	url, ok := headerValue(headers, HeaderURL)
	if !ok || url == "" {
		url = defaultURL
	}

	sigBytes, err := codec.Decode(signature)
	if err != nil {
		return failure(model.CodeInvalidSignature, "Invalid signature")
	}

	canonical := CanonicalString(method, url, ts, body)
	if !verifier.Verify([]byte(canonical), sigBytes, publicKey) {
		return failure(model.CodeInvalidSignature, "Invalid signature")
	}
	return model.VerificationResult{Valid: true}
}

func failure(code, reason string) model.VerificationResult {
	return model.VerificationResult{Valid: false, Code: code, Error: reason}
}

func headerValue(headers map[string]string, name string) (string, bool) {
	if v, ok := headers[name]; ok {
		return v, true
	}
	for k, v := range headers {
		if strings.EqualFold(k, name) {
			return v, true
		}
	}
	return "", false
}
