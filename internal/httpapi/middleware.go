// Package httpapi es el shim HTTP alrededor del engine: middleware de
// verificación de firma, propagación de identidad por contexto y el
// endpoint de métricas. No contiene lógica de verificación propia.
package httpapi

import (
	"context"
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dropDatabas3/sigil/internal/apperrors"
	"github.com/dropDatabas3/sigil/internal/engine"
	"github.com/dropDatabas3/sigil/internal/observability/logger"
)

type ctxKey int

const identityKey ctxKey = iota

// IdentityFrom recupera la identidad autenticada del contexto, si la hay.
func IdentityFrom(ctx context.Context) (*engine.Identity, bool) {
	id, ok := ctx.Value(identityKey).(*engine.Identity)
	return id, ok
}

// maxBodyBytes limita cuánto body se lee para la cadena canónica.
const maxBodyBytes = 1 << 20

// SignatureAuth verifica la firma de cada request y deja la identidad en
// el contexto. El body se lee entero (acotado) porque forma parte de la
// cadena firmada, y se repone para el handler.
func SignatureAuth(eng *engine.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body := ""
			if r.Body != nil && r.Method != http.MethodGet && r.Method != http.MethodHead {
				raw, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
				if err != nil {
					apperrors.WriteError(w, apperrors.ErrValidation.WithDetail("no se pudo leer el body"))
					return
				}
				r.Body.Close()
				body = string(raw)
				r.Body = io.NopCloser(strings.NewReader(body))
			}

			requestID := uuid.NewString()
			ctx := logger.ToContext(r.Context(), logger.With(
				logger.RequestID(requestID), logger.Method(r.Method), logger.Path(r.URL.Path)))

			id, err := eng.VerifyRequest(ctx, engine.Request{
				Method:   r.Method,
				Path:     r.URL.Path,
				Body:     body,
				ClientIP: clientIP(r),
				Headers:  r.Header,
			})
			if err != nil {
				w.Header().Set("X-Request-ID", requestID)
				apperrors.WriteError(w, err)
				return
			}

			w.Header().Set("X-Request-ID", requestID)
			ctx = context.WithValue(ctx, identityKey, id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequirePermission exige un permiso puntual sobre la identidad ya
// autenticada por SignatureAuth.
func RequirePermission(perm string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := IdentityFrom(r.Context())
			if !ok || id.Skipped {
				apperrors.WriteError(w, apperrors.ErrPermissionDenied)
				return
			}
			for _, p := range id.Permissions {
				if p == perm || p == "*" {
					next.ServeHTTP(w, r)
					return
				}
			}
			logger.From(r.Context()).Warn("permission denied",
				logger.AppID(id.AppID), zap.String("permission", perm))
			apperrors.WriteError(w, apperrors.ErrPermissionDenied.WithField("permission", perm))
		})
	}
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i > 0 {
			return strings.TrimSpace(fwd[:i])
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
