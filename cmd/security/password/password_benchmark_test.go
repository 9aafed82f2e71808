package password

import (
	"context"
	"testing"
)

func BenchmarkHash_DefaultConfig(b *testing.B) {
	h, err := NewHasher(DefaultConfig())
	if err != nil {
		b.Fatalf("NewHasher: %v", err)
	}
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := h.Hash(ctx, "this is a strong password 123!"); err != nil {
			b.Fatalf("Hash error: %v", err)
		}
	}
}

func BenchmarkVerify_DefaultConfig(b *testing.B) {
	h, err := NewHasher(DefaultConfig())
	if err != nil {
		b.Fatalf("NewHasher: %v", err)
	}
	ctx := context.Background()
	pw := "this is a strong password 123!"
	digest, err := h.Hash(ctx, pw)
	if err != nil {
		b.Fatalf("Hash error: %v", err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		ok, err := h.Verify(ctx, pw, digest)
		if err != nil || !ok {
			b.Fatalf("Verify failed: ok=%v err=%v", ok, err)
		}
	}
}
