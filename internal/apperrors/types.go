// Package apperrors define la taxonomía de errores tipados del engine.
// Cada error lleva un código estable y detalle estructurado; jamás material
// de clave privada. Las fallas cruzan el límite del módulo como valores
// tipados, nunca como panics.
package apperrors

import (
	"fmt"
	"net/http"
)

// AppError define la estructura estándar para errores del engine.
type AppError struct {
	Code       string            `json:"code"`
	Message    string            `json:"message"`
	Detail     string            `json:"detail,omitempty"`
	Fields     map[string]string `json:"fields,omitempty"` // app_id, key_id, path, method...
	HTTPStatus int               `json:"-"`                // no se serializa, usado para el header
	Err        error             `json:"-"`                // causa original, útil para logs
}

// Error implementa la interfaz error.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap permite acceder al error original.
func (e *AppError) Unwrap() error {
	return e.Err
}

// WithDetail agrega detalle al error. Devuelve una COPIA para no mutar las
// variables globales base.
func (e *AppError) WithDetail(detail string) *AppError {
	newErr := *e
	newErr.Detail = detail
	return &newErr
}

// WithCause agrega el error original (causa). Devuelve una COPIA.
func (e *AppError) WithCause(err error) *AppError {
	newErr := *e
	newErr.Err = err
	return &newErr
}

// WithField agrega un campo de diagnóstico (app_id, key_id, path...).
// Devuelve una COPIA, con el mapa clonado.
func (e *AppError) WithField(key, value string) *AppError {
	newErr := *e
	newErr.Fields = make(map[string]string, len(e.Fields)+1)
	for k, v := range e.Fields {
		newErr.Fields[k] = v
	}
	newErr.Fields[key] = value
	return &newErr
}

// Is permite errors.Is contra los valores base por código.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	return ok && t.Code == e.Code
}

// FromError convierte un error genérico en AppError. Si no lo es, devuelve
// un STORAGE_ERROR conservando la causa (las fallas no clasificadas que
// llegan acá vienen de backends).
func FromError(err error) *AppError {
	if appErr, ok := err.(*AppError); ok {
		return appErr
	}
	return ErrStorage.WithCause(err)
}

// =================================================================================
// TAXONOMÍA
// =================================================================================

var (
	// ErrMissingHeaders: faltan headers de firma requeridos (error de cliente).
	ErrMissingHeaders = &AppError{
		Code:       "MISSING_HEADERS",
		Message:    "Faltan headers de firma requeridos (X-Signature, X-Timestamp, X-App-Id).",
		HTTPStatus: http.StatusBadRequest,
	}

	// ErrInvalidTimestamp: timestamp fuera de la ventana de tolerancia o imparseable.
	ErrInvalidTimestamp = &AppError{
		Code:       "INVALID_TIMESTAMP",
		Message:    "El timestamp del request está fuera de la ventana permitida o es inválido.",
		HTTPStatus: http.StatusUnauthorized,
	}

	// ErrAppNotFound: app inexistente, deshabilitada o denegada por access control.
	ErrAppNotFound = &AppError{
		Code:       "APP_NOT_FOUND",
		Message:    "La app no existe o no está habilitada.",
		HTTPStatus: http.StatusUnauthorized,
	}

	// ErrKeyNotFound: keyId desconocido, deshabilitado o expirado para una app válida.
	ErrKeyNotFound = &AppError{
		Code:       "KEY_NOT_FOUND",
		Message:    "La clave indicada no existe, está deshabilitada o expiró.",
		HTTPStatus: http.StatusUnauthorized,
	}

	// ErrSignatureInvalid: la verificación criptográfica falló.
	ErrSignatureInvalid = &AppError{
		Code:       "SIGNATURE_INVALID",
		Message:    "La firma del request no verifica.",
		HTTPStatus: http.StatusUnauthorized,
	}

	// ErrPermissionDenied: autenticado pero sin autorización para la ruta.
	ErrPermissionDenied = &AppError{
		Code:       "PERMISSION_DENIED",
		Message:    "La app no está autorizada para esta ruta.",
		HTTPStatus: http.StatusForbidden,
	}

	// ErrValidation: configuración o datos de request malformados.
	ErrValidation = &AppError{
		Code:       "VALIDATION_ERROR",
		Message:    "Datos de configuración o de request malformados.",
		HTTPStatus: http.StatusBadRequest,
	}

	// ErrStorage: falla de I/O del backend tras agotar reintentos.
	ErrStorage = &AppError{
		Code:       "STORAGE_ERROR",
		Message:    "Falla del backend de almacenamiento.",
		HTTPStatus: http.StatusInternalServerError,
	}

	// ErrDecryption: descifrado de clave distribuida falló (tamper o clave equivocada).
	ErrDecryption = &AppError{
		Code:       "DECRYPTION_ERROR",
		Message:    "No se pudo descifrar la clave privada distribuida.",
		HTTPStatus: http.StatusBadRequest,
	}
)
