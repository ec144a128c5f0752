package distribute

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

const (
	nonceSizeGCM      = 12  // AES-GCM nonce recomendado (96 bits)
	requiredKeyLength = 32  // 32 bytes => AES-256
	sep               = "|" // nonce|ciphertext (ambos en base64)

	kdfIterations = 100_000
	kdfSalt       = "sigil-keywrap-v1"
)

// DeriveWrapKey normaliza una clave de cifrado de distribución a 32 bytes.
// Acepta base64 (std o raw), hex de 64 chars, o raw de 32 bytes; cualquier
// otra cosa se trata como passphrase y se deriva con PBKDF2-SHA256.
func DeriveWrapKey(key string) ([]byte, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, errors.New("clave de cifrado vacía")
	}

	if b, err := base64.StdEncoding.DecodeString(key); err == nil && len(b) == requiredKeyLength {
		return b, nil
	}
	if b, err := base64.RawStdEncoding.DecodeString(key); err == nil && len(b) == requiredKeyLength {
		return b, nil
	}
	if len(key) == 64 {
		if h, err := hex.DecodeString(key); err == nil {
			return h, nil
		}
	}
	if len(key) == requiredKeyLength {
		return []byte(key), nil
	}

	// Passphrase: derivar
	return pbkdf2.Key([]byte(key), []byte(kdfSalt), kdfIterations, requiredKeyLength, sha256.New), nil
}

// EncryptPrivateKey cifra plainText con AES-256-GCM y devuelve
// base64(nonce)|base64(ciphertext).
func EncryptPrivateKey(plainText string, wrapKey []byte) (string, error) {
	if len(wrapKey) != requiredKeyLength {
		return "", fmt.Errorf("clave inválida: %d bytes (requiere %d)", len(wrapKey), requiredKeyLength)
	}
	block, err := aes.NewCipher(wrapKey)
	if err != nil {
		return "", fmt.Errorf("aes.NewCipher: %w", err)
	}
	aesgcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("cipher.NewGCM: %w", err)
	}

	nonce := make([]byte, nonceSizeGCM)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("nonce random: %w", err)
	}

	ct := aesgcm.Seal(nil, nonce, []byte(plainText), nil)
	return base64.StdEncoding.EncodeToString(nonce) + sep + base64.StdEncoding.EncodeToString(ct), nil
}

// DecryptPrivateKey es el inverso exacto de EncryptPrivateKey: round-trip
// byte a byte. Un ciphertext adulterado o una clave equivocada fallan con
// error de autenticación GCM, nunca devuelven basura plausible.
func DecryptPrivateKey(cipherText string, wrapKey []byte) (string, error) {
	if len(wrapKey) != requiredKeyLength {
		return "", fmt.Errorf("clave inválida: %d bytes (requiere %d)", len(wrapKey), requiredKeyLength)
	}
	parts := strings.Split(cipherText, sep)
	if len(parts) != 2 {
		return "", errors.New("formato inválido: esperado base64(nonce)|base64(ciphertext)")
	}
	nonce, err := base64.StdEncoding.DecodeString(parts[0])
	if err != nil {
		return "", fmt.Errorf("decode nonce: %w", err)
	}
	ct, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return "", fmt.Errorf("decode ciphertext: %w", err)
	}
	if len(nonce) != nonceSizeGCM {
		return "", fmt.Errorf("nonce inválido: esperado %d bytes, obtuvo %d", nonceSizeGCM, len(nonce))
	}

	block, err := aes.NewCipher(wrapKey)
	if err != nil {
		return "", fmt.Errorf("aes.NewCipher: %w", err)
	}
	aesgcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("cipher.NewGCM: %w", err)
	}

	pt, err := aesgcm.Open(nil, nonce, ct, nil)
	if err != nil {
		return "", fmt.Errorf("gcm auth/decrypt: %w", err)
	}
	return string(pt), nil
}
