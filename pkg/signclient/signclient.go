// Package signclient firma requests del lado cliente: produce los headers
// que el verificador espera. Útil en integraciones y en tests end-to-end.
package signclient

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/dropDatabas3/sigil/internal/sigcodec"
	"github.com/dropDatabas3/sigil/internal/store/core"
)

// Signer firma requests para una app con una clave fija.
type Signer struct {
	AppID         string
	KeyID         string // vacío => el server asume "default"
	PrivateKeyPEM string
	Algorithm     core.Algorithm

	// Now permite fijar el reloj en tests.
	Now func() time.Time
}

// Headers del protocolo. Duplicados acá para que el cliente sea
// autocontenido.
const (
	HeaderSignature = "X-Signature"
	HeaderTimestamp = "X-Timestamp"
	HeaderAppID     = "X-App-Id"
	HeaderKeyID     = "X-Key-Id"
)

// Headers calcula los headers de firma para method/path/body. El body se
// ignora en GET/HEAD (firman con cuerpo vacío).
func (s *Signer) Headers(method, path, body string) (map[string]string, error) {
	if s.AppID == "" || s.PrivateKeyPEM == "" {
		return nil, fmt.Errorf("signclient: appId y private key son requeridos")
	}
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	ts := now().UTC().Format("2006-01-02T15:04:05.000Z")

	m := strings.ToUpper(method)
	signBody := body
	if m == http.MethodGet || m == http.MethodHead {
		signBody = ""
	}
	canonical := sigcodec.BuildSigningString(ts, m, path, s.AppID, signBody)
	sig, err := sigcodec.Sign(canonical, s.PrivateKeyPEM, s.Algorithm)
	if err != nil {
		return nil, fmt.Errorf("signclient: %w", err)
	}

	h := map[string]string{
		HeaderSignature: sig,
		HeaderTimestamp: ts,
		HeaderAppID:     s.AppID,
	}
	if s.KeyID != "" {
		h[HeaderKeyID] = s.KeyID
	}
	return h, nil
}

// Sign aplica los headers directamente sobre un *http.Request, leyendo
// body del parámetro (el caller ya lo tiene serializado).
func (s *Signer) Sign(req *http.Request, body string) error {
	headers, err := s.Headers(req.Method, req.URL.Path, body)
	if err != nil {
		return err
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return nil
}
