package signclient

import (
	"testing"
	"time"

	"github.com/dropDatabas3/sigil/internal/sigcodec"
	"github.com/dropDatabas3/sigil/internal/store/core"
)

func newSigner(t *testing.T) (*Signer, string) {
	t.Helper()
	pair, err := sigcodec.GenerateKeyPair(core.AlgES256, sigcodec.GenerateOptions{})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	s := &Signer{
		AppID:         "a1",
		PrivateKeyPEM: pair.PrivateKeyPEM,
		Algorithm:     core.AlgES256,
		Now:           func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) },
	}
	return s, pair.PublicKeyPEM
}

func TestHeadersVerifiable(t *testing.T) {
	s, pub := newSigner(t)
	h, err := s.Headers("post", "/v1/orders", `{"qty":1}`)
	if err != nil {
		t.Fatalf("headers: %v", err)
	}
	if h[HeaderAppID] != "a1" {
		t.Fatalf("app id: %q", h[HeaderAppID])
	}
	if h[HeaderTimestamp] != "2026-03-01T12:00:00.000Z" {
		t.Fatalf("timestamp: %q", h[HeaderTimestamp])
	}
	if _, ok := h[HeaderKeyID]; ok {
		t.Fatalf("sin KeyID explícito no se emite el header")
	}

	// el método se firma normalizado a mayúsculas
	canonical := sigcodec.BuildSigningString(h[HeaderTimestamp], "POST", "/v1/orders", "a1", `{"qty":1}`)
	if !sigcodec.Verify(canonical, h[HeaderSignature], pub, core.AlgES256) {
		t.Fatalf("la firma no verifica contra la pública")
	}
}

func TestGetIgnoresBody(t *testing.T) {
	s, pub := newSigner(t)
	h, err := s.Headers("GET", "/v1/ping", "esto no se firma")
	if err != nil {
		t.Fatalf("headers: %v", err)
	}
	canonical := sigcodec.BuildSigningString(h[HeaderTimestamp], "GET", "/v1/ping", "a1", "")
	if !sigcodec.Verify(canonical, h[HeaderSignature], pub, core.AlgES256) {
		t.Fatalf("GET debe firmar con body vacío")
	}
}

func TestExplicitKeyID(t *testing.T) {
	s, _ := newSigner(t)
	s.KeyID = "k2"
	h, err := s.Headers("GET", "/v1/ping", "")
	if err != nil {
		t.Fatalf("headers: %v", err)
	}
	if h[HeaderKeyID] != "k2" {
		t.Fatalf("key id: %q", h[HeaderKeyID])
	}
}

func TestMissingConfig(t *testing.T) {
	s := &Signer{AppID: "a1"}
	if _, err := s.Headers("GET", "/v1/ping", ""); err == nil {
		t.Fatalf("sin private key debe fallar")
	}
}
