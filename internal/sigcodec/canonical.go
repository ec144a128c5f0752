// Package sigcodec implementa el protocolo de firma de requests: string
// canónico, mapeo de algoritmos y sign/verify contra claves PEM.
// Es puro: sin estado, sin I/O de red.
package sigcodec

import "strings"

// BuildSigningString arma el string canónico que se firma/verifica.
// El orden y el separador son parte del contrato de wire: debe coincidir
// byte a byte entre firmante y verificador.
//
//	timestamp \n METHOD \n path \n appId \n body
//
// body es string vacío para requests sin cuerpo (GET/HEAD).
func BuildSigningString(timestamp, method, path, appID, body string) string {
	return strings.Join([]string{timestamp, strings.ToUpper(method), path, appID, body}, "\n")
}
