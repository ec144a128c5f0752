package sigcodec

import (
	"crypto"
	"crypto/elliptic"

	"github.com/dropDatabas3/sigil/internal/store/core"
)

// params son los parámetros de verificación de un algoritmo.
type params struct {
	hash  crypto.Hash
	rsa   bool           // PKCS#1 v1.5; si no, ECDSA
	curve elliptic.Curve // sólo ECDSA
}

// algParams mapea identificador → parámetros.
// RS256/RS512 → RSA PKCS#1v1.5 con SHA-256/SHA-512.
// ES256/ES512 → ECDSA sobre P-256/P-521 con SHA-256/SHA-512.
var algParams = map[core.Algorithm]params{
	core.AlgRS256: {hash: crypto.SHA256, rsa: true},
	core.AlgRS512: {hash: crypto.SHA512, rsa: true},
	core.AlgES256: {hash: crypto.SHA256, curve: elliptic.P256()},
	core.AlgES512: {hash: crypto.SHA512, curve: elliptic.P521()},
}

// Supported reporta si el algoritmo está soportado por el codec.
func Supported(alg core.Algorithm) bool {
	_, ok := algParams[alg]
	return ok
}
