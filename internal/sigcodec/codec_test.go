package sigcodec

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/dropDatabas3/sigil/internal/store/core"
)

func TestBuildSigningString(t *testing.T) {
	got := BuildSigningString("2026-01-02T03:04:05.000Z", "post", "/v1/orders", "app1", `{"x":1}`)
	want := "2026-01-02T03:04:05.000Z\nPOST\n/v1/orders\napp1\n{\"x\":1}"
	if got != want {
		t.Fatalf("canonical:\n got %q\nwant %q", got, want)
	}
}

func TestSignVerifyRoundTripAllAlgorithms(t *testing.T) {
	algs := []core.Algorithm{core.AlgRS256, core.AlgRS512, core.AlgES256, core.AlgES512}
	data := "2026-01-02T03:04:05.000Z\nGET\n/v1/ping\napp1\n"

	for _, alg := range algs {
		t.Run(string(alg), func(t *testing.T) {
			pair, err := GenerateKeyPair(alg, GenerateOptions{})
			if err != nil {
				t.Fatalf("generate: %v", err)
			}
			sig, err := Sign(data, pair.PrivateKeyPEM, alg)
			if err != nil {
				t.Fatalf("sign: %v", err)
			}
			if !Verify(data, sig, pair.PublicKeyPEM, alg) {
				t.Fatalf("la firma propia debe verificar")
			}
			if Verify(data+"x", sig, pair.PublicKeyPEM, alg) {
				t.Fatalf("data alterada debe fallar")
			}

			raw, err := base64.StdEncoding.DecodeString(sig)
			if err != nil {
				t.Fatalf("la firma debe ser base64: %v", err)
			}
			raw[0] ^= 0x01
			tampered := base64.StdEncoding.EncodeToString(raw)
			if Verify(data, tampered, pair.PublicKeyPEM, alg) {
				t.Fatalf("firma alterada debe fallar")
			}
		})
	}
}

func TestVerifyNeverPanicsOnGarbage(t *testing.T) {
	pair, err := GenerateKeyPair(core.AlgRS256, GenerateOptions{})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	cases := []struct{ data, sig, pub string }{
		{"data", "no-es-base64!!", pair.PublicKeyPEM},
		{"data", "YWJj", "no es un PEM"},
		{"", "", ""},
	}
	for _, c := range cases {
		if Verify(c.data, c.sig, c.pub, core.AlgRS256) {
			t.Fatalf("input inválido nunca verifica: %+v", c)
		}
	}
	if Verify("data", "YWJj", pair.PublicKeyPEM, core.Algorithm("HS256")) {
		t.Fatalf("algoritmo desconocido nunca verifica")
	}
}

func TestCrossAlgorithmVerifyFails(t *testing.T) {
	rsaPair, err := GenerateKeyPair(core.AlgRS256, GenerateOptions{})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	sig, err := Sign("data", rsaPair.PrivateKeyPEM, core.AlgRS256)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	// misma clave, digest equivocado
	if Verify("data", sig, rsaPair.PublicKeyPEM, core.AlgRS512) {
		t.Fatalf("RS256 firmado no debe verificar como RS512")
	}
}

func TestCleanPEMNormalizesWhitespace(t *testing.T) {
	pair, err := GenerateKeyPair(core.AlgES256, GenerateOptions{})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	messy := "  " + strings.ReplaceAll(pair.PublicKeyPEM, "\n", "\r\n") + "\n\n"
	if CleanPEM(messy) != CleanPEM(pair.PublicKeyPEM) {
		t.Fatalf("CleanPEM debe normalizar CRLF y espacios")
	}
	if _, err := ParsePublicKey(messy); err != nil {
		t.Fatalf("parse de PEM desprolijo: %v", err)
	}
}

func TestFingerprintStableAcrossFormatting(t *testing.T) {
	pair, err := GenerateKeyPair(core.AlgRS256, GenerateOptions{})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	fp1, err := Fingerprint(pair.PublicKeyPEM)
	if err != nil {
		t.Fatalf("fingerprint: %v", err)
	}
	fp2, err := Fingerprint("\n " + strings.ReplaceAll(pair.PublicKeyPEM, "\n", "\r\n"))
	if err != nil {
		t.Fatalf("fingerprint reformateado: %v", err)
	}
	if fp1 != fp2 {
		t.Fatalf("mismo material, fingerprints distintos: %s vs %s", fp1, fp2)
	}

	other, err := GenerateKeyPair(core.AlgRS256, GenerateOptions{})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	fp3, err := Fingerprint(other.PublicKeyPEM)
	if err != nil {
		t.Fatalf("fingerprint: %v", err)
	}
	if fp1 == fp3 {
		t.Fatalf("claves distintas con mismo fingerprint")
	}
	if !strings.Contains(fp1, ":") {
		t.Fatalf("formato esperado aa:bb:..., got %s", fp1)
	}
}

func TestGenerateKeyPairRSABits(t *testing.T) {
	pair, err := GenerateKeyPair(core.AlgRS512, GenerateOptions{RSABits: 3072})
	if err != nil {
		t.Fatalf("generate 3072: %v", err)
	}
	if _, err := ParsePrivateKey(pair.PrivateKeyPEM); err != nil {
		t.Fatalf("la privada generada debe parsear: %v", err)
	}
	if _, err := GenerateKeyPair(core.Algorithm("HS256"), GenerateOptions{}); err == nil {
		t.Fatalf("algoritmo no soportado debe fallar")
	}
}
