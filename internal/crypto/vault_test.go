package crypto

import (
	"encoding/base64"
	"errors"
	"strings"
	"sync"
	"testing"
)

const testKey = "0123456789abcdef0123456789abcdef-operator"

func newTestVault(t *testing.T) *Vault {
	t.Helper()
	v, err := NewVault(testKey)
	if err != nil {
		t.Fatalf("NewVault() error = %v", err)
	}
	return v
}

func TestNewVault(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		wantErr error
	}{
		{"exactly 32 chars", strings.Repeat("k", 32), nil},
		{"long key", strings.Repeat("k", 200), nil},
		{"31 chars", strings.Repeat("k", 31), ErrConfiguration},
		{"empty", "", ErrConfiguration},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := NewVault(tt.key)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("NewVault() error = %v, want %v", err, tt.wantErr)
				}
				if v != nil {
					t.Error("NewVault() returned non-nil vault on error")
				}
				return
			}
			if err != nil {
				t.Errorf("NewVault() unexpected error = %v", err)
			}
		})
	}
}

func TestNilVault(t *testing.T) {
	var v *Vault
	if _, err := v.Encrypt("x"); !errors.Is(err, ErrConfiguration) {
		t.Errorf("Encrypt() on nil vault error = %v, want ErrConfiguration", err)
	}
	if _, err := v.Decrypt("x"); !errors.Is(err, ErrConfiguration) {
		t.Errorf("Decrypt() on nil vault error = %v, want ErrConfiguration", err)
	}
}

func TestEncryptDecryptRoundtrip(t *testing.T) {
	v := newTestVault(t)

	tests := []struct {
		name      string
		plaintext string
	}{
		{"empty", ""},
		{"simple", "whsec_abc123"},
		{"unicode", "秘密のトークン 🔑"},
		{"long", strings.Repeat("secret", 1000)},
		{"json", `{"token":"abc","nested":{"a":1}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			blob, err := v.Encrypt(tt.plaintext)
			if err != nil {
				t.Fatalf("Encrypt() error = %v", err)
			}
			got, err := v.Decrypt(blob)
			if err != nil {
				t.Fatalf("Decrypt() error = %v", err)
			}
			if got != tt.plaintext {
				t.Errorf("Decrypt() = %q, want %q", got, tt.plaintext)
			}
		})
	}
}

func TestEncryptLayout(t *testing.T) {
	v := newTestVault(t)

	blob, err := v.Encrypt("hello")
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}
	data, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		t.Fatalf("blob is not base64: %v", err)
	}
	if want := nonceSize + tagSize + len("hello"); len(data) != want {
		t.Errorf("blob length = %d, want %d", len(data), want)
	}
}

func TestEncryptProducesUniqueCiphertexts(t *testing.T) {
	v := newTestVault(t)

	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		blob, err := v.Encrypt("same plaintext")
		if err != nil {
			t.Fatalf("Encrypt() error = %v", err)
		}
		if seen[blob] {
			t.Fatal("Encrypt() produced a duplicate ciphertext")
		}
		seen[blob] = true
	}
}

func TestKeyUsesFirst64Characters(t *testing.T) {
	base := strings.Repeat("a", 64)
	v1, _ := NewVault(base + "suffix-one")
	v2, _ := NewVault(base + "suffix-two")

	blob, err := v1.Encrypt("shared")
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}
	got, err := v2.Decrypt(blob)
	if err != nil {
		t.Fatalf("Decrypt() with same 64-char prefix error = %v", err)
	}
	if got != "shared" {
		t.Errorf("Decrypt() = %q, want %q", got, "shared")
	}
}

func TestDecryptWithWrongKey(t *testing.T) {
	v1 := newTestVault(t)
	v2, err := NewVault(strings.Repeat("z", 40))
	if err != nil {
		t.Fatalf("NewVault() error = %v", err)
	}

	blob, _ := v1.Encrypt("secret data")
	if _, err := v2.Decrypt(blob); !errors.Is(err, ErrDecryption) {
		t.Errorf("Decrypt() with wrong key error = %v, want ErrDecryption", err)
	}
}

func TestDecryptTamperedBlob(t *testing.T) {
	v := newTestVault(t)

	blob, _ := v.Encrypt("sensitive credential")
	raw, _ := base64.StdEncoding.DecodeString(blob)

	// Every single-byte flip must fail authentication.
	for i := range raw {
		tampered := make([]byte, len(raw))
		copy(tampered, raw)
		tampered[i] ^= 0x01

		got, err := v.Decrypt(base64.StdEncoding.EncodeToString(tampered))
		if !errors.Is(err, ErrDecryption) {
			t.Fatalf("flip byte %d: error = %v, want ErrDecryption", i, err)
		}
		if got != "" {
			t.Fatalf("flip byte %d: returned plaintext %q", i, got)
		}
	}

	tests := []struct {
		name   string
		mangle func([]byte) []byte
	}{
		{"truncate tail", func(b []byte) []byte { return b[:len(b)-1] }},
		{"append byte", func(b []byte) []byte { return append(append([]byte{}, b...), 0x00) }},
		{"nonce and tag only", func(b []byte) []byte { return b[:nonceSize+tagSize-1] }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mangled := tt.mangle(raw)
			_, err := v.Decrypt(base64.StdEncoding.EncodeToString(mangled))
			if !errors.Is(err, ErrDecryption) {
				t.Errorf("Decrypt() error = %v, want ErrDecryption", err)
			}
		})
	}
}

func TestDecryptInvalidInput(t *testing.T) {
	v := newTestVault(t)

	tests := []struct {
		name string
		blob string
	}{
		{"empty", ""},
		{"not base64", "not!!base64"},
		{"too short", base64.StdEncoding.EncodeToString([]byte("short"))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := v.Decrypt(tt.blob); !errors.Is(err, ErrDecryption) {
				t.Errorf("Decrypt(%q) error = %v, want ErrDecryption", tt.blob, err)
			}
		})
	}
}

func TestGenerateSecret(t *testing.T) {
	a, err := GenerateSecret()
	if err != nil {
		t.Fatalf("GenerateSecret() error = %v", err)
	}
	b, _ := GenerateSecret()

	if len(a) != 64 {
		t.Errorf("len(secret) = %d, want 64", len(a))
	}
	if a == b {
		t.Error("GenerateSecret() returned the same value twice")
	}
}

func TestHashToken(t *testing.T) {
	got := HashToken("abc")
	want := "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"
	if got != want {
		t.Errorf("HashToken() = %s, want %s", got, want)
	}
}

func TestConcurrentEncryptDecrypt(t *testing.T) {
	v := newTestVault(t)

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			blob, err := v.Encrypt("concurrent")
			if err != nil {
				errs <- err
				return
			}
			if _, err := v.Decrypt(blob); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("concurrent operation failed: %v", err)
	}
}

func BenchmarkEncrypt(b *testing.B) {
	v, _ := NewVault(testKey)
	for i := 0; i < b.N; i++ {
		_, _ = v.Encrypt("benchmark credential")
	}
}
