package keycache

import (
	"crypto"
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// KeyCacheKey arma la key compuesta del cache de claves parseadas.
func KeyCacheKey(entityID, algorithm string) string {
	return entityID + ":" + algorithm
}

// PEMCacheKey hashea el PEM crudo; evita re-limpiar headers/footers/whitespace
// del mismo material una y otra vez.
func PEMCacheKey(rawPEM string) string {
	sum := sha256.Sum256([]byte(rawPEM))
	return hex.EncodeToString(sum[:])
}

// NewKeyCache crea el cache de claves públicas parseadas.
func NewKeyCache(capacity int, defaultTTL time.Duration) *Cache[crypto.PublicKey] {
	return New[crypto.PublicKey](capacity, WithDefaultTTL[crypto.PublicKey](defaultTTL))
}

// NewPEMCache crea el cache de strings PEM limpios.
func NewPEMCache(capacity int, defaultTTL time.Duration) *Cache[string] {
	return New[string](capacity, WithDefaultTTL[string](defaultTTL))
}
