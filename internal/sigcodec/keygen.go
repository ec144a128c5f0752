package sigcodec

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/rsa"
	"fmt"

	"github.com/dropDatabas3/sigil/internal/store/core"
)

// GenerateOptions controla la generación de pares.
type GenerateOptions struct {
	// RSABits aplica sólo a RS256/RS512. Default 2048.
	RSABits int
}

// GeneratedPair es un par recién generado, ambos lados en PEM.
type GeneratedPair struct {
	PublicKeyPEM  string
	PrivateKeyPEM string
	Algorithm     core.Algorithm
}

// GenerateKeyPair genera un par para el algoritmo dado.
// La curva queda fijada por el algoritmo (ES256→P-256, ES512→P-521).
func GenerateKeyPair(alg core.Algorithm, opts GenerateOptions) (*GeneratedPair, error) {
	p, ok := algParams[alg]
	if !ok {
		return nil, fmt.Errorf("algoritmo no soportado: %s", alg)
	}

	var signer crypto.Signer
	if p.rsa {
		bits := opts.RSABits
		if bits == 0 {
			bits = 2048
		}
		if bits < 2048 {
			return nil, fmt.Errorf("RSA requiere al menos 2048 bits, pidieron %d", bits)
		}
		k, err := rsa.GenerateKey(rand.Reader, bits)
		if err != nil {
			return nil, fmt.Errorf("generate rsa: %w", err)
		}
		signer = k
	} else {
		k, err := ecdsa.GenerateKey(p.curve, rand.Reader)
		if err != nil {
			return nil, fmt.Errorf("generate ec: %w", err)
		}
		signer = k
	}

	privPEM, err := MarshalPrivateKeyPEM(signer)
	if err != nil {
		return nil, err
	}
	pubPEM, err := MarshalPublicKeyPEM(signer.Public())
	if err != nil {
		return nil, err
	}
	return &GeneratedPair{PublicKeyPEM: pubPEM, PrivateKeyPEM: privPEM, Algorithm: alg}, nil
}
