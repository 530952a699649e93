package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"

	"github.com/fatflowers/subgate/pkg/logctx"
)

// verifyAPIToken checks the coarse-grained query-parameter secret. An
// unconfigured token disables the check entirely.
func verifyAPIToken(configured, provided string) bool {
	if configured == "" {
		return true
	}
	if provided == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(configured), []byte(provided)) == 1
}

// verifySignature checks the HMAC-SHA256 hex digest over the normalized
// body. Dev mode bypasses the check; so does an unconfigured signing key
// (the provider's opt-in model, documented risk). Logs never include the
// signing key.
func (s *Service) verifySignature(ctx context.Context, raw []byte, signature string) bool {
	log := logctx.FromCtx(ctx, s.Logger)

	if s.cfg.Webhook.DevMode {
		log.Warn("DEV MODE enabled: webhook signature verification DISABLED")
		return true
	}
	key := s.cfg.Webhook.SigningKey
	if key == "" {
		log.Warn("signing key not configured, skipping signature verification")
		return true
	}
	if signature == "" {
		return false
	}

	normalized := NormalizeJSON(raw)
	expected := computeSignature(normalized, key)
	if hmac.Equal([]byte(expected), []byte(signature)) {
		return true
	}

	log.Errorw("webhook signature mismatch",
		"expected", expected,
		"received", signature,
		"normalized_body", string(normalized),
	)
	return false
}

// NormalizeJSON re-serializes a JSON body into its byte-stable form:
// object keys sorted, no extraneous whitespace, no HTML escaping, numbers
// kept verbatim. Senders pretty-print and reorder keys, so the HMAC must be
// computed over this canonical form on both sides. Non-JSON bodies pass
// through untouched.
func NormalizeJSON(raw []byte) []byte {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return raw
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return raw
	}
	// Encode appends a newline
	return bytes.TrimRight(buf.Bytes(), "\n")
}

func computeSignature(body []byte, key string) string {
	mac := hmac.New(sha256.New, []byte(key))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
