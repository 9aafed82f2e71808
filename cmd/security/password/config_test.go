package password

import (
	"os"
	"testing"
)

func TestFromEnv_Defaults(t *testing.T) {
	for _, k := range []string{
		"SIDECAR_PASSWORD_MIN_LEN",
		"SIDECAR_PASSWORD_MAX_LEN",
		"SIDECAR_PASSWORD_REJECT_VERY_WEAK",
		"SIDECAR_PASSWORD_LEGACY_SALT",
		"SIDECAR_PASSWORD_HASH_CONCURRENCY",
		"PASSWORD_SALT",
		"SIDECAR_ARGON2_MEMORY_KIB",
		"SIDECAR_ARGON2_ITERATIONS",
		"SIDECAR_ARGON2_PARALLELISM",
		"SIDECAR_ARGON2_SALT_LEN",
		"SIDECAR_ARGON2_KEY_LEN",
	} {
		t.Setenv(k, "")
		_ = os.Unsetenv(k)
	}

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv error: %v", err)
	}

	def := DefaultConfig()
	if cfg.Policy.MinLength != 8 || cfg.Policy.MinLength != def.Policy.MinLength {
		t.Fatalf("min length = %d", cfg.Policy.MinLength)
	}
	if cfg.Params.MemoryKiB != def.Params.MemoryKiB {
		t.Fatalf("memory mismatch")
	}
	if cfg.LegacySalt != "" {
		t.Fatalf("legacy salt should be empty by default")
	}
}

func TestFromEnv_Override(t *testing.T) {
	t.Setenv("SIDECAR_PASSWORD_MIN_LEN", "10")
	t.Setenv("SIDECAR_PASSWORD_MAX_LEN", "200")
	t.Setenv("SIDECAR_PASSWORD_REJECT_VERY_WEAK", "true")
	t.Setenv("SIDECAR_PASSWORD_HASH_CONCURRENCY", "3")
	t.Setenv("SIDECAR_ARGON2_MEMORY_KIB", "32768")
	t.Setenv("SIDECAR_ARGON2_ITERATIONS", "4")
	t.Setenv("SIDECAR_ARGON2_PARALLELISM", "2")
	t.Setenv("SIDECAR_ARGON2_SALT_LEN", "24")
	t.Setenv("SIDECAR_ARGON2_KEY_LEN", "32")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv error: %v", err)
	}

	if cfg.Policy.MinLength != 10 || cfg.Policy.MaxLength != 200 || !cfg.Policy.RejectVeryWeak {
		t.Fatalf("policy override failed: %+v", cfg.Policy)
	}
	if cfg.Params.MemoryKiB != 32768 || cfg.Params.Iterations != 4 || cfg.Params.Parallelism != 2 {
		t.Fatalf("argon2 override failed: %+v", cfg.Params)
	}
	if cfg.Params.SaltLength != 24 || cfg.Params.KeyLength != 32 {
		t.Fatalf("len override failed: %+v", cfg.Params)
	}
	if cfg.MaxConcurrent != 3 {
		t.Fatalf("concurrency override failed: %d", cfg.MaxConcurrent)
	}
}

func TestFromEnv_LegacySaltFallback(t *testing.T) {
	_ = os.Unsetenv("SIDECAR_PASSWORD_LEGACY_SALT")
	t.Setenv("PASSWORD_SALT", "site-salt")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv error: %v", err)
	}
	if cfg.LegacySalt != "site-salt" {
		t.Fatalf("legacy salt = %q", cfg.LegacySalt)
	}
}

func TestFromEnv_InvalidMinMax(t *testing.T) {
	t.Setenv("SIDECAR_PASSWORD_MIN_LEN", "20")
	t.Setenv("SIDECAR_PASSWORD_MAX_LEN", "10")

	if _, err := FromEnv(); err == nil {
		t.Fatalf("expected error")
	}
}

func TestFromEnv_RejectsGarbage(t *testing.T) {
	t.Setenv("SIDECAR_ARGON2_ITERATIONS", "lots")

	if _, err := FromEnv(); err == nil {
		t.Fatalf("expected error")
	}
}
