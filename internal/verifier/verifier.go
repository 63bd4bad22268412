// Package verifier composes the full verification pipeline for a signed
// agent request: resolve the claimed DID, extract its public key, verify
// the canonical-string signature within the timestamp tolerance, then
// record the signature hash so the same proof can never be accepted twice.
package verifier

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/AgentCommons/agentcommons-identity-go/internal/codec"
	"github.com/AgentCommons/agentcommons-identity-go/internal/didweb"
	"github.com/AgentCommons/agentcommons-identity-go/internal/model"
	"github.com/AgentCommons/agentcommons-identity-go/internal/protocol"
	"github.com/AgentCommons/agentcommons-identity-go/internal/storage"
)

// Service runs the verification pipeline. Stateless apart from the replay
// store; safe for concurrent use.
type Service struct {
	resolver    *didweb.Resolver
	replays     storage.ReplayStore
	toleranceMS int64
	verifier    codec.Verifier
	clock       func() time.Time
	logger      *slog.Logger
}

// Options configures a Service. Zero values fall back to defaults: the
// protocol's standard tolerance, the Ed25519 verifier, and time.Now.
type Options struct {
	ToleranceMS int64
	Verifier    codec.Verifier
	Clock       func() time.Time
	Logger      *slog.Logger
}

// New creates a verification Service.
func New(resolver *didweb.Resolver, replays storage.ReplayStore, opts Options) *Service {
	if opts.ToleranceMS == 0 {
		opts.ToleranceMS = protocol.DefaultToleranceMS
	}
	if opts.Verifier == nil {
		opts.Verifier = codec.Ed25519Verifier{}
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Service{
		resolver:    resolver,
		replays:     replays,
		toleranceMS: opts.ToleranceMS,
		verifier:    opts.Verifier,
		clock:       opts.Clock,
		logger:      opts.Logger,
	}
}

// VerifyAgentRequest verifies a signed request end to end. All
// user-triggerable failures come back as a normal result with a reason
// string; only storage faults while recording the signature return an
// error. A replayed signature is reported with the same outward reason as
// a cryptographic mismatch so probes cannot distinguish the two.
func (s *Service) VerifyAgentRequest(ctx context.Context, headers map[string]string, body string) (model.VerificationResult, error) {
	did, ok := headerValue(headers, protocol.HeaderDID)
	if !ok || did == "" {
		verificationCount.WithLabelValues("missing_did").Inc()
		return model.VerificationResult{Valid: false, Code: model.CodeInvalidDID, Error: "Missing DID header"}, nil
	}

	doc, _, err := s.resolver.Resolve(ctx, did)
	if err != nil {
		var resErr *didweb.ResolutionError
		if errors.As(err, &resErr) {
			verificationCount.WithLabelValues("resolution_failed").Inc()
			s.logger.Warn("DID resolution failed", "did", did, "kind", resErr.Kind)
			return model.VerificationResult{Valid: false, Code: resErr.Kind, Error: resErr.Message}, nil
		}
		return model.VerificationResult{}, err
	}

	publicKey, err := didweb.ExtractPublicKey(doc)
	if err != nil {
		verificationCount.WithLabelValues("no_verification_method").Inc()
		return model.VerificationResult{Valid: false, Code: model.CodeInvalidDIDDocument, Error: "No usable verification method"}, nil
	}

	result := protocol.VerifyRequest(headers, publicKey, body, protocol.VerifyOptions{
		ToleranceMS: s.toleranceMS,
		Verifier:    s.verifier,
		Now:         s.clock,
	})
	if !result.Valid {
		verificationCount.WithLabelValues("invalid_signature").Inc()
		return result, nil
	}

	// The signature checked out cryptographically; now claim it. A
	// duplicate hash means this exact proof was already spent.
	signature, _ := headerValue(headers, protocol.HeaderSignature)
	rawTimestamp, _ := headerValue(headers, protocol.HeaderTimestamp)
	ts, _ := strconv.ParseInt(rawTimestamp, 10, 64)

	entry := model.ReplayEntry{
		SignatureHash: HashSignature(signature),
		AgentDID:      did,
		Timestamp:     ts,
		InsertedAt:    s.clock().UTC(),
	}
	if err := s.replays.InsertSignature(ctx, entry); err != nil {
		if errors.Is(err, storage.ErrDuplicateSignature) {
			verificationCount.WithLabelValues("replay").Inc()
			replayDetectionCount.Inc()
			s.logger.Warn("signature replay detected", "did", did)
			return model.VerificationResult{Valid: false, Code: model.CodeReplayDetected, Error: "Invalid signature"}, nil
		}
		return model.VerificationResult{}, err
	}

	verificationCount.WithLabelValues("success").Inc()
	return model.VerificationResult{Valid: true}, nil
}

// HashSignature derives the content address for a raw signature string:
// lowercase hex SHA-256.
func HashSignature(signature string) string {
	sum := sha256.Sum256([]byte(signature))
	return hex.EncodeToString(sum[:])
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
