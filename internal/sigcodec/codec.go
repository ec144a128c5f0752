package sigcodec

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"fmt"

	"github.com/dropDatabas3/sigil/internal/store/core"
)

// Sign firma data con una privada PEM y retorna base64(firma).
// ECDSA usa encoding ASN.1 DER (el mismo que emiten los clients).
// Lo usa el helper de cliente, el lifecycle y los tests.
func Sign(data string, privateKeyPEM string, alg core.Algorithm) (string, error) {
	p, ok := algParams[alg]
	if !ok {
		return "", fmt.Errorf("algoritmo no soportado: %s", alg)
	}
	signer, err := ParsePrivateKey(privateKeyPEM)
	if err != nil {
		return "", err
	}

	h := p.hash.New()
	h.Write([]byte(data))
	digest := h.Sum(nil)

	var sig []byte
	if p.rsa {
		rk, ok := signer.(*rsa.PrivateKey)
		if !ok {
			return "", fmt.Errorf("alg %s requiere clave RSA, hay %T", alg, signer)
		}
		sig, err = rsa.SignPKCS1v15(rand.Reader, rk, p.hash, digest)
	} else {
		ek, ok := signer.(*ecdsa.PrivateKey)
		if !ok {
			return "", fmt.Errorf("alg %s requiere clave EC, hay %T", alg, signer)
		}
		if ek.Curve != p.curve {
			return "", fmt.Errorf("alg %s requiere curva %s, hay %s", alg, p.curve.Params().Name, ek.Curve.Params().Name)
		}
		sig, err = ecdsa.SignASN1(rand.Reader, ek, digest)
	}
	if err != nil {
		return "", fmt.Errorf("sign: %w", err)
	}
	return base64.StdEncoding.EncodeToString(sig), nil
}

// Verify verifica base64(firma) sobre data contra una pública PEM.
// Nunca paniquea ni retorna error por input malformado: retorna false y el
// caller clasifica la falla.
func Verify(data, signatureB64, publicKeyPEM string, alg core.Algorithm) bool {
	pub, err := ParsePublicKey(publicKeyPEM)
	if err != nil {
		return false
	}
	return VerifyParsed(data, signatureB64, pub, alg)
}

// VerifyParsed es Verify con la pública ya parseada (camino cacheado).
func VerifyParsed(data, signatureB64 string, pub crypto.PublicKey, alg core.Algorithm) bool {
	p, ok := algParams[alg]
	if !ok {
		return false
	}
	sig, err := base64.StdEncoding.DecodeString(signatureB64)
	if err != nil || len(sig) == 0 {
		return false
	}

	h := p.hash.New()
	h.Write([]byte(data))
	digest := h.Sum(nil)

	if p.rsa {
		rk, ok := pub.(*rsa.PublicKey)
		if !ok {
			return false
		}
		return rsa.VerifyPKCS1v15(rk, p.hash, digest, sig) == nil
	}
	ek, ok := pub.(*ecdsa.PublicKey)
	if !ok || ek.Curve != p.curve {
		return false
	}
	return ecdsa.VerifyASN1(ek, digest, sig)
}
