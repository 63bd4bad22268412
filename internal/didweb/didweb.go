// Package didweb builds and resolves did:web identities. A did:web DID
// encodes a domain plus optional colon-delimited path segments and maps to
// a DID document hosted at a predictable HTTPS location.
package didweb

import (
	"errors"
	"fmt"
	"strings"

	"github.com/AgentCommons/agentcommons-identity-go/internal/codec"
	"github.com/AgentCommons/agentcommons-identity-go/internal/model"
)

const (
	// Method is the only DID method this package supports.
	Method = "web"

	didContextV1          = "https://www.w3.org/ns/did/v1"
	didContextEd25519     = "https://w3id.org/security/suites/ed25519-2020/v1"
	verificationMethodTyp = "Ed25519VerificationKey2020"
	wellKnownPath         = "/.well-known/did.json"
)

var (
	// ErrUnsupportedMethod indicates a DID whose method is not did:web.
	ErrUnsupportedMethod = errors.New("unsupported DID method")
	// ErrNoVerificationMethod indicates a document carrying no keys.
	ErrNoVerificationMethod = errors.New("no verification method in document")
)

// GenerateDID builds a did:web identifier from a domain and an optional
// slash-delimited path. A leading http:// or https:// scheme on the domain
// is stripped; empty path segments (leading, trailing, or doubled slashes)
// are dropped.
func GenerateDID(domain, path string) string {
	domain = strings.TrimPrefix(domain, "https://")
	domain = strings.TrimPrefix(domain, "http://")

	did := "did:web:" + domain
	for _, seg := range strings.Split(path, "/") {
		if seg == "" {
			continue
		}
		did += ":" + seg
	}
	return did
}

// DocumentParams carries the inputs for building a DID document.
// PublicKey is url-safe base64 of the raw 32-byte key. Controller defaults
// to the document's own DID when empty. Service is included only when at
// least one endpoint is supplied.
type DocumentParams struct {
	Domain           string
	Path             string
	PublicKey        string
	Controller       string
	ServiceEndpoints []model.Service
}

// CreateDIDDocument builds a did:web document with a single verification
// method referenced from both authentication and assertionMethod.
func CreateDIDDocument(params DocumentParams) (model.DIDDocument, error) {
	did := GenerateDID(params.Domain, params.Path)

	publicKey, err := codec.Decode(params.PublicKey)
	if err != nil {
		return model.DIDDocument{}, fmt.Errorf("decode public key: %w", err)
	}

	controller := params.Controller
	if controller == "" {
		controller = did
	}

	vmID := did + "#key-1"
	doc := model.DIDDocument{
		Context: []string{didContextV1, didContextEd25519},
		ID:      did,
		VerificationMethod: []model.VerificationMethod{{
			ID:                 vmID,
			Type:               verificationMethodTyp,
			Controller:         controller,
			PublicKeyMultibase: codec.PublicKeyToMultibase(publicKey),
		}},
		Authentication:  []string{vmID},
		AssertionMethod: []string{vmID},
	}
	if params.Controller != "" {
		doc.Controller = params.Controller
	}
	if len(params.ServiceEndpoints) > 0 {
		doc.Service = append([]model.Service(nil), params.ServiceEndpoints...)
	}
	return doc, nil
}

// WellKnownURL derives the HTTPS location of the DID document for a
// did:web identifier. A bare-domain DID resolves under /.well-known/;
// path segments map colons to slashes with did.json appended. Returns
// ErrUnsupportedMethod for any other DID method.
func WellKnownURL(did string) (string, error) {
	const prefix = "did:web:"
	if !strings.HasPrefix(did, prefix) {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedMethod, did)
	}
	parts := strings.Split(strings.TrimPrefix(did, prefix), ":")
	domain := parts[0]
	if len(parts) == 1 {
		return "https://" + domain + wellKnownPath, nil
	}
	return "https://" + domain + "/" + strings.Join(parts[1:], "/") + "/did.json", nil
}

// ExtractPublicKey returns the raw public key bytes of the document's
// first verification method. Callers that need a specific key by id must
// search VerificationMethod themselves.
func ExtractPublicKey(doc model.DIDDocument) ([]byte, error) {
	if len(doc.VerificationMethod) == 0 {
		return nil, ErrNoVerificationMethod
	}
	key, err := codec.MultibaseToPublicKey(doc.VerificationMethod[0].PublicKeyMultibase)
	if err != nil {
		return nil, fmt.Errorf("decode verification method key: %w", err)
	}
	return key, nil
}
