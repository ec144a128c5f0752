package logger

import (
	"time"

	"go.uber.org/zap"

	"github.com/dropDatabas3/sigil/internal/util"
)

// =================================================================================
// CAMPOS ESTÁNDAR - HTTP / REQUEST
// =================================================================================

// RequestID crea un campo para el ID del request.
func RequestID(v string) zap.Field {
	return zap.String("request_id", v)
}

// Method crea un campo para el método HTTP.
func Method(v string) zap.Field {
	return zap.String("method", v)
}

// Path crea un campo para el path del request.
func Path(v string) zap.Field {
	return zap.String("path", v)
}

// Duration crea un campo para la duración de una operación.
func Duration(v time.Duration) zap.Field {
	return zap.Duration("duration", v)
}

// ClientIP crea un campo para la IP del cliente.
func ClientIP(v string) zap.Field {
	return zap.String("client_ip", v)
}

// =================================================================================
// CAMPOS ESTÁNDAR - DOMINIO
// =================================================================================

// AppID crea un campo para el ID de la app que firma.
func AppID(v string) zap.Field {
	return zap.String("app_id", v)
}

// KeyID crea un campo para el ID de clave. Los ids largos se loguean
// enmascarados.
func KeyID(v string) zap.Field {
	return zap.String("key_id", util.MaskKeyID(v))
}

// Algorithm crea un campo para el algoritmo de firma.
func Algorithm(v string) zap.Field {
	return zap.String("algorithm", v)
}

// Fingerprint crea un campo para el fingerprint de una pública.
// El fingerprint es seguro de loguear; el material de clave nunca lo es.
func Fingerprint(v string) zap.Field {
	return zap.String("fingerprint", v)
}

// ErrorCode crea un campo para el código de error tipado.
func ErrorCode(v string) zap.Field {
	return zap.String("error_code", v)
}

// =================================================================================
// CAMPOS ESTÁNDAR - SISTEMA
// =================================================================================

// Component crea un campo para el componente/módulo.
func Component(v string) zap.Field {
	return zap.String("component", v)
}

// Op crea un campo para la operación actual.
func Op(v string) zap.Field {
	return zap.String("op", v)
}

// Err crea un campo para un error.
func Err(err error) zap.Field {
	return zap.Error(err)
}

// Count crea un campo para un conteo.
func Count(v int) zap.Field {
	return zap.Int("count", v)
}
