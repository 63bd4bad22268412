package protocol

import (
	"strconv"
	"testing"
	"time"

	"github.com/AgentCommons/agentcommons-identity-go/internal/codec"
	"github.com/AgentCommons/agentcommons-identity-go/internal/model"
)

const testDID = "did:web:example.com:agents:001"

func testKeyPair(t *testing.T) codec.KeyPair {
	t.Helper()
	kp, err := codec.GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair error: %v", err)
	}
	return kp
}

func fixedClock(ms int64) func() time.Time {
	return func() time.Time { return time.UnixMilli(ms) }
}

func headersFrom(signed model.SignedHeaders, method, url string) map[string]string {
	h := map[string]string{
		HeaderSignature: signed.Signature,
		HeaderDID:       signed.DID,
		HeaderTimestamp: signed.Timestamp,
	}
	if method != "" {
		h[HeaderMethod] = method
	}
	if url != "" {
		h[HeaderURL] = url
	}
	return h
}

func TestCanonicalString(t *testing.T) {
	got := CanonicalString("post", "/v1/submit", 1700000000000, "")
	want := "POST\n/v1/submit\n1700000000000\n"
	if got != want {
		t.Fatalf("canonical string = %q want %q", got, want)
	}

	withBody := CanonicalString("GET", "/", 1, "hello")
	if withBody == CanonicalString("GET", "/", 1, "world") {
		t.Fatal("different bodies produced the same canonical string")
	}
}

func TestSignAndVerify(t *testing.T) {
	kp := testKeyPair(t)
	now := int64(1700000000000)

	signed, err := SignRequest(model.SignableRequest{
		Method:    "POST",
		URL:       "/v1/submit",
		Body:      `{"contribution":"abc"}`,
		Timestamp: now,
	}, SignOptions{PrivateKey: kp.PrivateKey, DID: testDID})
	if err != nil {
		t.Fatalf("SignRequest error: %v", err)
	}
	if signed.DID != testDID {
		t.Errorf("signed.DID = %q", signed.DID)
	}
	if signed.Timestamp != strconv.FormatInt(now, 10) {
		t.Errorf("signed.Timestamp = %q", signed.Timestamp)
	}

	result := VerifyRequest(headersFrom(signed, "POST", "/v1/submit"), kp.PublicKey, `{"contribution":"abc"}`, VerifyOptions{Now: fixedClock(now)})
	if !result.Valid {
		t.Fatalf("verification failed: %s", result.Error)
	}
}

func TestSignRequest_SubstitutesCurrentTime(t *testing.T) {
	kp := testKeyPair(t)
	now := int64(1700000000000)

	signed, err := SignRequest(model.SignableRequest{Method: "POST", URL: "/"}, SignOptions{
		PrivateKey: kp.PrivateKey,
		DID:        testDID,
		Now:        fixedClock(now),
	})
	if err != nil {
		t.Fatalf("SignRequest error: %v", err)
	}
	// The emitted timestamp must be the one that was signed.
	if signed.Timestamp != strconv.FormatInt(now, 10) {
		t.Fatalf("timestamp = %q want %d", signed.Timestamp, now)
	}
	result := VerifyRequest(headersFrom(signed, "POST", "/"), kp.PublicKey, "", VerifyOptions{Now: fixedClock(now)})
	if !result.Valid {
		t.Fatalf("verification failed: %s", result.Error)
	}
}

func TestVerify_HeaderLookupCaseInsensitive(t *testing.T) {
	kp := testKeyPair(t)
	now := int64(1700000000000)
	signed, err := SignRequest(model.SignableRequest{Method: "POST", URL: "/", Timestamp: now}, SignOptions{PrivateKey: kp.PrivateKey, DID: testDID})
	if err != nil {
		t.Fatalf("SignRequest error: %v", err)
	}

	headers := map[string]string{
		"x-agent-signature": signed.Signature,
		"X-AGENT-TIMESTAMP": signed.Timestamp,
		"x-Agent-Method":    "POST",
		"x-agent-url":       "/",
	}
	result := VerifyRequest(headers, kp.PublicKey, "", VerifyOptions{Now: fixedClock(now)})
	if !result.Valid {
		t.Fatalf("verification failed: %s", result.Error)
	}
}

func TestVerify_DefaultsMethodAndURL(t *testing.T) {
	kp := testKeyPair(t)
	now := int64(1700000000000)
	// Signed over POST and / without sending the sidecar headers.
	signed, err := SignRequest(model.SignableRequest{Method: "POST", URL: "/", Timestamp: now}, SignOptions{PrivateKey: kp.PrivateKey, DID: testDID})
	if err != nil {
		t.Fatalf("SignRequest error: %v", err)
	}
	result := VerifyRequest(headersFrom(signed, "", ""), kp.PublicKey, "", VerifyOptions{Now: fixedClock(now)})
	if !result.Valid {
		t.Fatalf("defaults not applied: %s", result.Error)
	}
}

func TestVerify_MissingHeaders(t *testing.T) {
	kp := testKeyPair(t)
	now := int64(1700000000000)

	result := VerifyRequest(map[string]string{HeaderTimestamp: "123"}, kp.PublicKey, "", VerifyOptions{Now: fixedClock(now)})
	if result.Valid || result.Code != model.CodeMissingSignature {
		t.Errorf("missing signature: got %+v", result)
	}

	result = VerifyRequest(map[string]string{HeaderSignature: "abc"}, kp.PublicKey, "", VerifyOptions{Now: fixedClock(now)})
	if result.Valid || result.Code != model.CodeMissingTimestamp {
		t.Errorf("missing timestamp: got %+v", result)
	}
}

func TestVerify_InvalidTimestampFormat(t *testing.T) {
	kp := testKeyPair(t)
	headers := map[string]string{
		HeaderSignature: "abc",
		HeaderTimestamp: "not-a-number",
	}
	result := VerifyRequest(headers, kp.PublicKey, "", VerifyOptions{})
	if result.Valid || result.Code != model.CodeInvalidTimestampFormat {
		t.Fatalf("got %+v", result)
	}
}

func TestVerify_TimestampTolerance(t *testing.T) {
	kp := testKeyPair(t)
	signedAt := int64(1700000000000)

	signed, err := SignRequest(model.SignableRequest{Method: "POST", URL: "/", Timestamp: signedAt}, SignOptions{PrivateKey: kp.PrivateKey, DID: testDID})
	if err != nil {
		t.Fatalf("SignRequest error: %v", err)
	}
	headers := headersFrom(signed, "POST", "/")

	// Checked at signing time: valid with default tolerance.
	result := VerifyRequest(headers, kp.PublicKey, "", VerifyOptions{Now: fixedClock(signedAt)})
	if !result.Valid {
		t.Fatalf("at T: %s", result.Error)
	}

	// Ten minutes later: rejected with default tolerance.
	tenMin := int64(600000)
	result = VerifyRequest(headers, kp.PublicKey, "", VerifyOptions{Now: fixedClock(signedAt + tenMin)})
	if result.Valid || result.Code != model.CodeExpiredTimestamp {
		t.Fatalf("at T+10m: got %+v", result)
	}

	// Ten minutes later with an explicit ten-minute tolerance: valid.
	result = VerifyRequest(headers, kp.PublicKey, "", VerifyOptions{Now: fixedClock(signedAt + tenMin), ToleranceMS: tenMin})
	if !result.Valid {
		t.Fatalf("at T+10m with widened tolerance: %s", result.Error)
	}

	// Tolerance is symmetric: a timestamp from the future fails too.
	result = VerifyRequest(headers, kp.PublicKey, "", VerifyOptions{Now: fixedClock(signedAt - tenMin)})
	if result.Valid || result.Code != model.CodeExpiredTimestamp {
		t.Fatalf("future timestamp: got %+v", result)
	}
}

func TestVerify_TamperedSignature(t *testing.T) {
	kp := testKeyPair(t)
	now := int64(1700000000000)
	signed, err := SignRequest(model.SignableRequest{Method: "POST", URL: "/", Body: "payload", Timestamp: now}, SignOptions{PrivateKey: kp.PrivateKey, DID: testDID})
	if err != nil {
		t.Fatalf("SignRequest error: %v", err)
	}

	sigBytes, err := codec.Decode(signed.Signature)
	if err != nil {
		t.Fatalf("decode signature: %v", err)
	}
	sigBytes[0] ^= 0x01
	headers := headersFrom(signed, "POST", "/")
	headers[HeaderSignature] = codec.Encode(sigBytes)

	result := VerifyRequest(headers, kp.PublicKey, "payload", VerifyOptions{Now: fixedClock(now)})
	if result.Valid || result.Code != model.CodeInvalidSignature {
		t.Fatalf("tampered signature: got %+v", result)
	}
}

func TestVerify_SubstitutedBody(t *testing.T) {
	kp := testKeyPair(t)
	now := int64(1700000000000)
	signed, err := SignRequest(model.SignableRequest{Method: "POST", URL: "/", Body: "original", Timestamp: now}, SignOptions{PrivateKey: kp.PrivateKey, DID: testDID})
	if err != nil {
		t.Fatalf("SignRequest error: %v", err)
	}

	result := VerifyRequest(headersFrom(signed, "POST", "/"), kp.PublicKey, "substituted", VerifyOptions{Now: fixedClock(now)})
	if result.Valid || result.Code != model.CodeInvalidSignature {
		t.Fatalf("substituted body: got %+v", result)
	}
}

func TestVerify_WrongKey(t *testing.T) {
	kp := testKeyPair(t)
	other := testKeyPair(t)
	now := int64(1700000000000)
	signed, err := SignRequest(model.SignableRequest{Method: "POST", URL: "/", Timestamp: now}, SignOptions{PrivateKey: kp.PrivateKey, DID: testDID})
	if err != nil {
		t.Fatalf("SignRequest error: %v", err)
	}
	result := VerifyRequest(headersFrom(signed, "POST", "/"), other.PublicKey, "", VerifyOptions{Now: fixedClock(now)})
	if result.Valid || result.Code != model.CodeInvalidSignature {
		t.Fatalf("wrong key: got %+v", result)
	}
}
