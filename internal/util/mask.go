package util

import "strings"

// MaskSignature deja visibles sólo los extremos de una firma base64 para
// logs. Nunca loguear la firma completa.
func MaskSignature(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if len(s) <= 12 {
		return "***"
	}
	return s[:6] + "…" + s[len(s)-6:]
}

// MaskKeyID abrevia un keyId largo conservando prefijo reconocible.
func MaskKeyID(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= 8 {
		return s
	}
	return s[:8] + "…"
}

// MaskPEM reemplaza el cuerpo de un PEM por un placeholder, conservando
// los delimitadores para diagnóstico.
func MaskPEM(pem string) string {
	if !strings.Contains(pem, "-----BEGIN") {
		return "***"
	}
	lines := strings.Split(strings.TrimSpace(pem), "\n")
	if len(lines) < 2 {
		return "***"
	}
	return lines[0] + "\n…\n" + lines[len(lines)-1]
}
