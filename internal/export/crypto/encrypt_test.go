package crypto

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

// =====================================================
// ValidatePassword Tests
// =====================================================

// TestValidatePassword_success verifies valid password acceptance.
func TestValidatePassword_success(t *testing.T) {
	if err := ValidatePassword("valid-password-123"); err != nil {
		t.Errorf("ValidatePassword() error = %v, want nil", err)
	}
}

// TestValidatePassword_tooShort verifies password length validation.
func TestValidatePassword_tooShort(t *testing.T) {
	for _, pw := range []string{"", "short", "1234567"} {
		t.Run(pw, func(t *testing.T) {
			err := ValidatePassword(pw)
			if err == nil {
				t.Fatalf("ValidatePassword(%q) should return error", pw)
			}
			if !strings.Contains(err.Error(), "must be at least") {
				t.Errorf("Error should mention minimum length, got: %v", err)
			}
		})
	}
}

// =====================================================
// Encrypt / Decrypt Tests
// =====================================================

// TestEncryptDecrypt_roundtrip verifies the payload survives encryption.
func TestEncryptDecrypt_roundtrip(t *testing.T) {
	data := []byte("leads.json and manifest.json packed as tar.gz")
	password := "correct horse battery"

	encrypted, err := EncryptArchive(data, password)
	if err != nil {
		t.Fatalf("EncryptArchive() error = %v", err)
	}
	if !IsEncrypted(encrypted) {
		t.Error("IsEncrypted() = false for encrypted data")
	}
	if bytes.Contains(encrypted, data) {
		t.Error("ciphertext contains the plaintext")
	}

	decrypted, err := DecryptArchive(encrypted, password)
	if err != nil {
		t.Fatalf("DecryptArchive() error = %v", err)
	}
	if !bytes.Equal(decrypted, data) {
		t.Errorf("DecryptArchive() = %q, want %q", decrypted, data)
	}
}

// TestEncrypt_randomized verifies two encryptions of the same data differ.
func TestEncrypt_randomized(t *testing.T) {
	a, err := EncryptArchive([]byte("same"), "password-1")
	if err != nil {
		t.Fatalf("EncryptArchive() error = %v", err)
	}
	b, err := EncryptArchive([]byte("same"), "password-1")
	if err != nil {
		t.Fatalf("EncryptArchive() error = %v", err)
	}
	if bytes.Equal(a, b) {
		t.Error("encryptions with fresh salt and nonce should differ")
	}
}

// TestEncrypt_shortPassword verifies weak passwords are refused.
func TestEncrypt_shortPassword(t *testing.T) {
	if _, err := EncryptArchive([]byte("x"), "short"); err == nil {
		t.Error("EncryptArchive() with short password should fail")
	}
}

// TestDecrypt_wrongPassword verifies a wrong password is reported as such.
func TestDecrypt_wrongPassword(t *testing.T) {
	encrypted, err := EncryptArchive([]byte("secret leads"), "right-password")
	if err != nil {
		t.Fatalf("EncryptArchive() error = %v", err)
	}

	_, err = DecryptArchive(encrypted, "wrong-password")
	if !errors.Is(err, ErrInvalidPassword) {
		t.Errorf("DecryptArchive() error = %v, want ErrInvalidPassword", err)
	}
}

// TestDecrypt_tampered verifies flipped payload or header bytes are detected.
func TestDecrypt_tampered(t *testing.T) {
	encrypted, err := EncryptArchive([]byte("secret leads"), "right-password")
	if err != nil {
		t.Fatalf("EncryptArchive() error = %v", err)
	}

	payload := bytes.Clone(encrypted)
	payload[len(payload)-1] ^= 0xff
	if _, err := DecryptArchive(payload, "right-password"); !errors.Is(err, ErrInvalidPassword) {
		t.Errorf("tampered payload error = %v, want ErrInvalidPassword", err)
	}

	salt := bytes.Clone(encrypted)
	// The salt is the last header field.
	_, _, headerLen, err := parseHeader(salt)
	if err != nil {
		t.Fatalf("parseHeader() error = %v", err)
	}
	salt[headerLen-1] ^= 0xff
	if _, err := DecryptArchive(salt, "right-password"); !errors.Is(err, ErrInvalidPassword) {
		t.Errorf("tampered header error = %v, want ErrInvalidPassword", err)
	}
}

// TestDecrypt_notEncrypted verifies plain data is rejected as an invalid archive.
func TestDecrypt_notEncrypted(t *testing.T) {
	for name, data := range map[string][]byte{
		"gzip":      {0x1f, 0x8b, 0x08, 0x00},
		"empty":     nil,
		"truncated": []byte(headerMagic + "\x01\x0bAES"),
	} {
		t.Run(name, func(t *testing.T) {
			_, err := DecryptArchive(data, "any-password")
			if !errors.Is(err, ErrInvalidArchive) {
				t.Errorf("DecryptArchive() error = %v, want ErrInvalidArchive", err)
			}
		})
	}
}

// TestHeader_roundtrip verifies header serialization.
func TestHeader_roundtrip(t *testing.T) {
	h := ArchiveHeader{
		Version:   version,
		Algorithm: algorithm,
		Nonce:     bytes.Repeat([]byte{1}, 12),
		Salt:      bytes.Repeat([]byte{2}, SaltLength),
	}
	data, err := serializeHeader(h)
	if err != nil {
		t.Fatalf("serializeHeader() error = %v", err)
	}
	data = append(data, "payload"...)

	got, rest, n, err := parseHeader(data)
	if err != nil {
		t.Fatalf("parseHeader() error = %v", err)
	}
	if got.Version != h.Version || got.Algorithm != h.Algorithm ||
		!bytes.Equal(got.Nonce, h.Nonce) || !bytes.Equal(got.Salt, h.Salt) {
		t.Errorf("parseHeader() = %+v, want %+v", got, h)
	}
	if string(rest) != "payload" || n != len(data)-len("payload") {
		t.Errorf("payload = %q (header %d bytes)", rest, n)
	}
}
