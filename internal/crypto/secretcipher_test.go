package crypto

import (
	"bytes"
	"testing"
)

// testKey returns a valid 32-byte key for use in tests.
func testKey() []byte {
	return bytes.Repeat([]byte("k"), 32)
}

func TestNewSecretCipher(t *testing.T) {
	t.Run("valid 32-byte key", func(t *testing.T) {
		sc, err := NewSecretCipher(testKey())
		if err != nil {
			t.Fatalf("NewSecretCipher() unexpected error: %v", err)
		}
		if sc == nil {
			t.Fatal("NewSecretCipher() returned nil cipher")
		}
	})

	tests := []struct {
		name    string
		keyLen  int
		wantErr error
	}{
		{"too short (16 bytes)", 16, ErrKeyLengthInvalid},
		{"too long (64 bytes)", 64, ErrKeyLengthInvalid},
		{"empty key", 0, ErrKeyLengthInvalid},
		{"31 bytes", 31, ErrKeyLengthInvalid},
		{"33 bytes", 33, ErrKeyLengthInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSecretCipher(make([]byte, tt.keyLen))
			if err != tt.wantErr {
				t.Errorf("NewSecretCipher(len=%d) error = %v, want %v", tt.keyLen, err, tt.wantErr)
			}
		})
	}
}

func TestNewSecretCipherIsolatesKey(t *testing.T) {
	// Modifying the original key slice must not affect the cipher.
	key := testKey()
	sc, err := NewSecretCipher(key)
	if err != nil {
		t.Fatalf("NewSecretCipher() error: %v", err)
	}
	plaintext := "grafana-service-account-token"
	sealed, _ := sc.Seal(plaintext)

	// Corrupt the original key
	for i := range key {
		key[i] = 0
	}

	// The cipher should still work with its own copy
	got, err := sc.Open(sealed)
	if err != nil {
		t.Errorf("Open() after key corruption error: %v", err)
	}
	if got != plaintext {
		t.Errorf("Open() = %q, want %q", got, plaintext)
	}
}

func TestDeriveSecretCipher(t *testing.T) {
	t.Run("valid passphrase and salt", func(t *testing.T) {
		salt := bytes.Repeat([]byte("s"), 16)
		sc, err := DeriveSecretCipher("my-secret-passphrase", salt, 100000)
		if err != nil {
			t.Fatalf("DeriveSecretCipher() unexpected error: %v", err)
		}
		if sc == nil {
			t.Fatal("DeriveSecretCipher() returned nil")
		}
	})

	t.Run("salt too short", func(t *testing.T) {
		_, err := DeriveSecretCipher("passphrase", make([]byte, 8), 100000)
		if err != ErrSaltTooShort {
			t.Errorf("DeriveSecretCipher() error = %v, want %v", err, ErrSaltTooShort)
		}
	})

	t.Run("low iteration count uses secure default", func(t *testing.T) {
		salt := bytes.Repeat([]byte("s"), 16)
		// Should not error; low count is silently bumped to 100000
		sc, err := DeriveSecretCipher("pass", salt, 1)
		if err != nil {
			t.Fatalf("DeriveSecretCipher() error: %v", err)
		}
		if sc == nil {
			t.Fatal("DeriveSecretCipher() returned nil")
		}
	})

	t.Run("different passphrases produce different ciphers", func(t *testing.T) {
		salt := bytes.Repeat([]byte("s"), 16)
		sc1, _ := DeriveSecretCipher("passphrase-one", salt, 100000)
		sc2, _ := DeriveSecretCipher("passphrase-two", salt, 100000)

		sealed, _ := sc1.Seal("secret")
		// sc2 should NOT be able to decrypt what sc1 sealed
		_, err := sc2.Open(sealed)
		if err == nil {
			t.Error("different-key cipher decrypted ciphertext; expected failure")
		}
	})
}

func TestSealAndOpen(t *testing.T) {
	sc, err := NewSecretCipher(testKey())
	if err != nil {
		t.Fatalf("NewSecretCipher() error: %v", err)
	}

	plaintexts := []string{
		"hello",
		`{"authentication":{"api_key":"glsa_AbCdEf0123456789","host":"https://grafana.example.com"},"name":"prod-grafana"}`,
		"unicode: 日本語テスト",
		"special chars: !@#$%^&*()",
		"newline\nand\ttabs",
	}

	for _, pt := range plaintexts {
		t.Run("roundtrip/"+pt[:min(len(pt), 20)], func(t *testing.T) {
			sealed, err := sc.Seal(pt)
			if err != nil {
				t.Fatalf("Seal() error: %v", err)
			}
			if sealed == "" {
				t.Fatal("Seal() returned empty string for non-empty plaintext")
			}
			if sealed == pt {
				t.Error("Seal() returned plaintext unchanged")
			}

			opened, err := sc.Open(sealed)
			if err != nil {
				t.Fatalf("Open() error: %v", err)
			}
			if opened != pt {
				t.Errorf("Open() = %q, want %q", opened, pt)
			}
		})
	}
}

func TestSealEmptyString(t *testing.T) {
	sc, _ := NewSecretCipher(testKey())

	sealed, err := sc.Seal("")
	if err != nil {
		t.Fatalf("Seal(\"\") error: %v", err)
	}
	if sealed != "" {
		t.Errorf("Seal(\"\") = %q, want empty string", sealed)
	}

	opened, err := sc.Open("")
	if err != nil {
		t.Fatalf("Open(\"\") error: %v", err)
	}
	if opened != "" {
		t.Errorf("Open(\"\") = %q, want empty string", opened)
	}
}

func TestSealNonDeterministic(t *testing.T) {
	// Each call to Seal should produce a different ciphertext (random nonce).
	sc, _ := NewSecretCipher(testKey())
	pt := "same-plaintext"

	s1, _ := sc.Seal(pt)
	s2, _ := sc.Seal(pt)
	if s1 == s2 {
		t.Error("Seal() produced identical ciphertexts; nonce is not random")
	}
}

func TestOpenErrors(t *testing.T) {
	sc, _ := NewSecretCipher(testKey())

	tests := []struct {
		name       string
		ciphertext string
		wantErr    error
	}{
		{"not base64", "!!!not-base64!!!", ErrCiphertextCorrupted},
		{"too short after decode", "YQ==", ErrCiphertextCorrupted}, // decodes to 1 byte, shorter than nonce
		{"random base64 garbage", "dGhpcyBpcyBub3QgYSB2YWxpZCBjaXBoZXJ0ZXh0", ErrDecryptionFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := sc.Open(tt.ciphertext)
			if err != tt.wantErr {
				t.Errorf("Open(%q) error = %v, want %v", tt.ciphertext, err, tt.wantErr)
			}
		})
	}
}

func TestOpenWrongKey(t *testing.T) {
	key1 := bytes.Repeat([]byte("a"), 32)
	key2 := bytes.Repeat([]byte("b"), 32)

	sc1, _ := NewSecretCipher(key1)
	sc2, _ := NewSecretCipher(key2)

	sealed, err := sc1.Seal("secret-data")
	if err != nil {
		t.Fatalf("Seal() error: %v", err)
	}

	_, err = sc2.Open(sealed)
	if err != ErrDecryptionFailed {
		t.Errorf("Open() with wrong key error = %v, want %v", err, ErrDecryptionFailed)
	}
}

func TestGenerateKey(t *testing.T) {
	key, err := GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey() error: %v", err)
	}
	if len(key) != 32 {
		t.Errorf("GenerateKey() len = %d, want 32", len(key))
	}

	// Two calls should produce different keys
	key2, _ := GenerateKey()
	if bytes.Equal(key, key2) {
		t.Error("GenerateKey() produced identical keys on consecutive calls")
	}

	// Generated key must be usable with NewSecretCipher
	if _, err := NewSecretCipher(key); err != nil {
		t.Errorf("NewSecretCipher(GenerateKey()) error: %v", err)
	}
}

func TestGenerateSalt(t *testing.T) {
	tests := []struct {
		name    string
		length  int
		wantLen int
	}{
		{"default minimum", 0, 16},
		{"below minimum", 8, 16},
		{"exact minimum", 16, 16},
		{"custom length", 32, 32},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			salt, err := GenerateSalt(tt.length)
			if err != nil {
				t.Fatalf("GenerateSalt(%d) error: %v", tt.length, err)
			}
			if len(salt) != tt.wantLen {
				t.Errorf("GenerateSalt(%d) len = %d, want %d", tt.length, len(salt), tt.wantLen)
			}
		})
	}

	// Two salts must differ
	s1, _ := GenerateSalt(16)
	s2, _ := GenerateSalt(16)
	if bytes.Equal(s1, s2) {
		t.Error("GenerateSalt() produced identical salts on consecutive calls")
	}
}
