package sigcodec

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Fingerprint computa el hash estable de una pública PEM, en formato
// "ab:cd:...". Es determinístico para el mismo material aunque cambie el
// whitespace del PEM: se hashea el DER normalizado.
// Se usa para correlación de auditoría y chequeos de igualdad.
func Fingerprint(publicKeyPEM string) (string, error) {
	der, err := NormalizedPublicDER(publicKeyPEM)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(der)
	hx := hex.EncodeToString(sum[:])
	parts := make([]string, 0, len(hx)/2)
	for i := 0; i+1 < len(hx); i += 2 {
		parts = append(parts, hx[i:i+2])
	}
	return strings.Join(parts, ":"), nil
}
