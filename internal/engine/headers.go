package engine

import (
	"strings"
	"time"

	"github.com/dropDatabas3/sigil/internal/apperrors"
)

// Headers del protocolo de firma.
const (
	HeaderSignature = "X-Signature"
	HeaderTimestamp = "X-Timestamp"
	HeaderAppID     = "X-App-Id"
	HeaderKeyID     = "X-Key-Id"

	// DefaultKeyID se asume cuando el cliente no manda X-Key-Id.
	DefaultKeyID = "default"
)

// HeaderGetter abstrae de dónde vienen los headers. http.Header lo
// satisface directo.
type HeaderGetter interface {
	Get(name string) string
}

// SignatureHeaders es el set extraído de un request.
type SignatureHeaders struct {
	Signature string
	Timestamp string
	AppID     string
	KeyID     string
}

// ExtractHeaders valida presencia de los tres headers obligatorios y
// aplica el default de keyId.
func ExtractHeaders(h HeaderGetter) (SignatureHeaders, error) {
	out := SignatureHeaders{
		Signature: strings.TrimSpace(h.Get(HeaderSignature)),
		Timestamp: strings.TrimSpace(h.Get(HeaderTimestamp)),
		AppID:     strings.TrimSpace(h.Get(HeaderAppID)),
		KeyID:     strings.TrimSpace(h.Get(HeaderKeyID)),
	}
	if out.Signature == "" || out.Timestamp == "" || out.AppID == "" {
		var missing []string
		if out.Signature == "" {
			missing = append(missing, HeaderSignature)
		}
		if out.Timestamp == "" {
			missing = append(missing, HeaderTimestamp)
		}
		if out.AppID == "" {
			missing = append(missing, HeaderAppID)
		}
		return out, apperrors.ErrMissingHeaders.WithField("missing", strings.Join(missing, ","))
	}
	if out.KeyID == "" {
		out.KeyID = DefaultKeyID
	}
	return out, nil
}

// timestampLayouts acepta ISO-8601 con y sin milisegundos.
var timestampLayouts = []string{
	"2006-01-02T15:04:05.000Z07:00",
	time.RFC3339Nano,
	time.RFC3339,
}

// ParseTimestamp parsea el X-Timestamp. Un timestamp no parseable se
// clasifica igual que uno fuera de ventana.
func ParseTimestamp(raw string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, apperrors.ErrInvalidTimestamp.WithDetail("timestamp no parseable").WithField("timestamp", raw)
}

// FormatTimestamp produce el formato canónico del protocolo: UTC con
// milisegundos y sufijo Z.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z")
}
