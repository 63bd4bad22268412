package didweb

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/AgentCommons/agentcommons-identity-go/internal/model"
)

// didPattern is the syntactic invariant every DID must satisfy before any
// network activity happens.
var didPattern = regexp.MustCompile(`^did:[a-z0-9]+:[a-zA-Z0-9._:%-]+$`)

// ResolutionError is the typed failure returned by Resolve. Kind maps to
// the service-wide error taxonomy; Err carries the underlying cause when
// one exists.
type ResolutionError struct {
	Kind    string
	Message string
	Err     error
}

func (e *ResolutionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *ResolutionError) Unwrap() error { return e.Err }

// ResolutionMetadata surfaces response metadata from a successful fetch
// for caller diagnostics. The resolver itself never caches documents.
type ResolutionMetadata struct {
	ContentType  string
	LastModified string
}

// Resolver fetches did:web documents over HTTPS. Safe for concurrent use;
// concurrent resolutions are fully independent.
type Resolver struct {
	client *http.Client
	logger *slog.Logger
}

// NewResolver builds a Resolver. A nil client gets a 10-second-timeout
// default; a nil logger falls back to slog.Default.
func NewResolver(client *http.Client, logger *slog.Logger) *Resolver {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{client: client, logger: logger}
}

// Resolve validates the DID, derives its well-known URL, and performs a
// single GET. The returned document's id must equal the requested DID.
// Transport failures (DNS, TLS, timeout) surface as InternalError.
func (r *Resolver) Resolve(ctx context.Context, did string) (model.DIDDocument, ResolutionMetadata, error) {
	if !didPattern.MatchString(did) {
		return model.DIDDocument{}, ResolutionMetadata{}, &ResolutionError{
			Kind:    model.CodeInvalidDID,
			Message: "malformed DID: " + did,
		}
	}
	if !strings.HasPrefix(did, "did:"+Method+":") {
		return model.DIDDocument{}, ResolutionMetadata{}, &ResolutionError{
			Kind:    model.CodeMethodNotSupported,
			Message: "only did:web is supported",
		}
	}

	url, err := WellKnownURL(did)
	if err != nil {
		return model.DIDDocument{}, ResolutionMetadata{}, &ResolutionError{
			Kind:    model.CodeMethodNotSupported,
			Message: "only did:web is supported",
			Err:     err,
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return model.DIDDocument{}, ResolutionMetadata{}, &ResolutionError{
			Kind:    model.CodeInternalError,
			Message: "build request",
			Err:     err,
		}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		r.logger.Warn("did document fetch failed", "did", did, "url", url, "error", err)
		return model.DIDDocument{}, ResolutionMetadata{}, &ResolutionError{
			Kind:    model.CodeInternalError,
			Message: "fetch DID document",
			Err:     err,
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		kind := model.CodeInternalError
		if resp.StatusCode == http.StatusNotFound {
			kind = model.CodeNotFound
		}
		return model.DIDDocument{}, ResolutionMetadata{}, &ResolutionError{
			Kind:    kind,
			Message: fmt.Sprintf("DID document fetch returned status %d", resp.StatusCode),
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return model.DIDDocument{}, ResolutionMetadata{}, &ResolutionError{
			Kind:    model.CodeInternalError,
			Message: "read DID document body",
			Err:     err,
		}
	}

	var doc model.DIDDocument
	if err := json.Unmarshal(body, &doc); err != nil {
		return model.DIDDocument{}, ResolutionMetadata{}, &ResolutionError{
			Kind:    model.CodeInvalidDIDDocument,
			Message: "DID document is not valid JSON",
			Err:     err,
		}
	}
	if doc.ID != did {
		return model.DIDDocument{}, ResolutionMetadata{}, &ResolutionError{
			Kind:    model.CodeInvalidDIDDocument,
			Message: fmt.Sprintf("document id %q does not match requested DID %q", doc.ID, did),
		}
	}

	meta := ResolutionMetadata{
		ContentType:  resp.Header.Get("Content-Type"),
		LastModified: resp.Header.Get("Last-Modified"),
	}
	return doc, meta, nil
}
