package httputil

import (
	"context"
	"testing"
)

func TestGenerateNonce(t *testing.T) {
	a := GenerateNonce()
	b := GenerateNonce()
	if a == "" || a == b {
		t.Errorf("nonces must be non-empty and unique, got %q and %q", a, b)
	}
	// 16 bytes base64url-encoded without padding.
	if len(a) != 22 {
		t.Errorf("nonce length = %d, want 22", len(a))
	}
}

func TestNonceRoundTripsThroughContext(t *testing.T) {
	ctx := ContextWithNonce(context.Background(), "test-nonce")
	if got := NonceFromContext(ctx); got != "test-nonce" {
		t.Errorf("got %q", got)
	}
	if got := NonceFromContext(context.Background()); got != "" {
		t.Errorf("missing nonce should read empty, got %q", got)
	}
}
