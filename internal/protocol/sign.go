package protocol

import (
	"fmt"
	"strconv"
	"time"

	"github.com/AgentCommons/agentcommons-identity-go/internal/codec"
	"github.com/AgentCommons/agentcommons-identity-go/internal/model"
)

// SignOptions carries the identity material for signing. Signer defaults
// to the Ed25519 implementation; Now is injectable for tests.
type SignOptions struct {
	PrivateKey []byte
	DID        string
	Signer     codec.Signer
	Now        func() time.Time
}

// SignRequest signs a request's canonical string and returns the headers
// to attach. When the request carries no timestamp the current time is
// substituted, and that same timestamp is returned in the headers so the
// signed bytes and the emitted header always agree.
func SignRequest(req model.SignableRequest, opts SignOptions) (model.SignedHeaders, error) {
	signer := opts.Signer
	if signer == nil {
		signer = codec.Ed25519Signer{}
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	ts := req.Timestamp
	if ts == 0 {
		ts = now().UnixMilli()
	}

	canonical := CanonicalString(req.Method, req.URL, ts, req.Body)
	signature, err := signer.Sign([]byte(canonical), opts.PrivateKey)
	if err != nil {
		return model.SignedHeaders{}, fmt.Errorf("sign canonical string: %w", err)
	}

	return model.SignedHeaders{
		Signature: codec.Encode(signature),
		DID:       opts.DID,
		Timestamp: strconv.FormatInt(ts, 10),
	}, nil
}
