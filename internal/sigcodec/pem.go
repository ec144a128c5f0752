package sigcodec

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"strings"
)

// CleanPEM normaliza un PEM: recorta espacios y normaliza fin de línea.
// Sirve para que el mismo material produzca siempre la misma key de cache.
func CleanPEM(raw string) string {
	s := strings.ReplaceAll(raw, "\r\n", "\n")
	s = strings.TrimSpace(s)
	var b strings.Builder
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return b.String()
}

// ParsePublicKey decodifica una clave pública PEM (PKIX o PKCS#1 RSA).
func ParsePublicKey(pemStr string) (crypto.PublicKey, error) {
	block, _ := pem.Decode([]byte(CleanPEM(pemStr)))
	if block == nil {
		return nil, fmt.Errorf("public key: PEM inválido")
	}
	if pub, err := x509.ParsePKIXPublicKey(block.Bytes); err == nil {
		return pub, nil
	}
	if pub, err := x509.ParsePKCS1PublicKey(block.Bytes); err == nil {
		return pub, nil
	}
	return nil, fmt.Errorf("public key: formato no reconocido")
}

// ParsePrivateKey decodifica una clave privada PEM (PKCS#8, PKCS#1 o EC).
func ParsePrivateKey(pemStr string) (crypto.Signer, error) {
	block, _ := pem.Decode([]byte(CleanPEM(pemStr)))
	if block == nil {
		return nil, fmt.Errorf("private key: PEM inválido")
	}
	if k, err := x509.ParsePKCS8PrivateKey(block.Bytes); err == nil {
		if s, ok := k.(crypto.Signer); ok {
			return s, nil
		}
		return nil, fmt.Errorf("private key: tipo no soportado %T", k)
	}
	if k, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return k, nil
	}
	if k, err := x509.ParseECPrivateKey(block.Bytes); err == nil {
		return k, nil
	}
	return nil, fmt.Errorf("private key: formato no reconocido")
}

// MarshalPublicKeyPEM serializa una pública a PEM (PKIX).
func MarshalPublicKeyPEM(pub crypto.PublicKey) (string, error) {
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return "", fmt.Errorf("marshal public: %w", err)
	}
	return string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})), nil
}

// MarshalPrivateKeyPEM serializa una privada a PEM (PKCS#8).
func MarshalPrivateKeyPEM(priv crypto.Signer) (string, error) {
	der, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return "", fmt.Errorf("marshal private: %w", err)
	}
	return string(pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})), nil
}

// NormalizedPublicDER retorna los bytes DER (PKIX) de una pública PEM.
// Es la representación estable usada para fingerprints: dos PEMs con distinto
// whitespace del mismo material producen el mismo DER.
func NormalizedPublicDER(pemStr string) ([]byte, error) {
	pub, err := ParsePublicKey(pemStr)
	if err != nil {
		return nil, err
	}
	switch pub.(type) {
	case *rsa.PublicKey, *ecdsa.PublicKey:
		return x509.MarshalPKIXPublicKey(pub)
	default:
		return nil, fmt.Errorf("public key: tipo no soportado %T", pub)
	}
}
