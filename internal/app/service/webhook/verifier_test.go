package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fatflowers/subgate/pkg/config"
)

func signatureOf(body, key string) string {
	mac := hmac.New(sha256.New, []byte(key))
	mac.Write([]byte(body))
	return hex.EncodeToString(mac.Sum(nil))
}

func verifierService(cfg config.WebhookConfig) *Service {
	return &Service{cfg: &config.Config{Webhook: cfg}, Logger: zap.NewNop().Sugar()}
}

func TestNormalizeJSON(t *testing.T) {
	// key order and whitespace must not affect the canonical form
	pretty := []byte("{\n  \"b\": 2,\n  \"a\": \"x\"\n}")
	compact := []byte(`{"a":"x","b":2}`)
	require.Equal(t, string(NormalizeJSON(compact)), string(NormalizeJSON(pretty)))

	// already-canonical input is a fixed point
	once := NormalizeJSON(pretty)
	require.Equal(t, string(once), string(NormalizeJSON(once)))

	// no trailing newline
	require.NotContains(t, string(once), "\n")

	// HTML characters stay verbatim
	require.Equal(t, `{"url":"https://a.b/?x=1&y=2"}`, string(NormalizeJSON([]byte(`{"url":"https://a.b/?x=1&y=2"}`))))

	// large numbers survive without float rounding
	require.Equal(t, `{"id":9007199254740993}`, string(NormalizeJSON([]byte(`{"id":9007199254740993}`))))

	// non-JSON passes through untouched
	raw := []byte("not json at all")
	require.Equal(t, raw, NormalizeJSON(raw))
}

func TestComputeSignature(t *testing.T) {
	got := computeSignature([]byte(`{"a":1}`), "secret")
	require.Equal(t, signatureOf(`{"a":1}`, "secret"), got)
	require.Len(t, got, 64)
	require.Equal(t, got, computeSignature([]byte(`{"a":1}`), "secret"))
	require.NotEqual(t, got, computeSignature([]byte(`{"a":1}`), "other"))
}

func TestVerifyAPIToken(t *testing.T) {
	require.True(t, verifyAPIToken("", ""))
	require.True(t, verifyAPIToken("", "anything"))
	require.False(t, verifyAPIToken("secret", ""))
	require.False(t, verifyAPIToken("secret", "wrong"))
	require.True(t, verifyAPIToken("secret", "secret"))
}

func TestVerifySignature(t *testing.T) {
	ctx := context.Background()
	key := "signing-key"
	body := []byte("{\n  \"event\": \"subscription_created\",\n  \"customer_email\": \"a@b.com\"\n}")
	// the sender signs the canonical form, not the pretty-printed bytes
	sig := signatureOf(string(NormalizeJSON(body)), key)

	s := verifierService(config.WebhookConfig{SigningKey: key})
	require.True(t, s.verifySignature(ctx, body, sig))
	require.False(t, s.verifySignature(ctx, body, "deadbeef"))
	require.False(t, s.verifySignature(ctx, body, ""))

	// raw-body signature must still verify when the body is already compact
	compact := NormalizeJSON(body)
	require.True(t, s.verifySignature(ctx, compact, sig))

	// dev mode accepts anything
	dev := verifierService(config.WebhookConfig{SigningKey: key, DevMode: true})
	require.True(t, dev.verifySignature(ctx, body, "garbage"))
	require.True(t, dev.verifySignature(ctx, body, ""))

	// unconfigured key accepts anything
	open := verifierService(config.WebhookConfig{})
	require.True(t, open.verifySignature(ctx, body, ""))
	require.True(t, open.verifySignature(ctx, body, "garbage"))
}
