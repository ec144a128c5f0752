package engine

import (
	"context"
	"crypto"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dropDatabas3/sigil/internal/apperrors"
	"github.com/dropDatabas3/sigil/internal/keycache"
	"github.com/dropDatabas3/sigil/internal/observability/logger"
	"github.com/dropDatabas3/sigil/internal/routeauth"
	"github.com/dropDatabas3/sigil/internal/sigcodec"
	"github.com/dropDatabas3/sigil/internal/store/core"
	"github.com/dropDatabas3/sigil/internal/util"
)

// Request es lo que el shim HTTP le entrega al engine.
type Request struct {
	Method   string
	Path     string
	Body     string
	ClientIP string
	Headers  HeaderGetter
}

// Identity es el resultado de una verificación exitosa.
type Identity struct {
	AppID       string
	KeyID       string
	Algorithm   core.Algorithm
	Permissions []string
	// Skipped indica que el path estaba exento y no hubo verificación.
	Skipped    bool
	VerifiedAt time.Time
}

// VerifyRequest corre el pipeline completo. Cualquier falla corta con un
// error tipado; nunca hay éxito parcial.
func (e *Engine) VerifyRequest(ctx context.Context, req Request) (*Identity, error) {
	start := time.Now()
	id, err := e.verify(ctx, req)
	if e.monitor != nil {
		e.monitor.Record("verify_request", time.Since(start), err == nil)
	}
	if err != nil {
		ae := apperrors.FromError(err)
		fields := []zap.Field{logger.Method(req.Method), logger.Path(req.Path), logger.ErrorCode(ae.Code)}
		if req.Headers != nil {
			// la firma nunca se loguea entera
			fields = append(fields, zap.String("signature", util.MaskSignature(req.Headers.Get(HeaderSignature))))
		}
		logger.From(ctx).Debug("request verification failed", fields...)
		return nil, ae
	}
	return id, nil
}

func (e *Engine) verify(ctx context.Context, req Request) (*Identity, error) {
	now := e.now()

	if e.skipped(req.Path) {
		return &Identity{Skipped: true, VerifiedAt: now}, nil
	}
	var decision *routeauth.Decision
	if e.auth != nil {
		d := e.auth.Resolve(req.Path, req.Method)
		if !d.RequireAuth {
			return &Identity{Skipped: true, VerifiedAt: now}, nil
		}
		decision = &d
	}

	hdrs, err := ExtractHeaders(req.Headers)
	if err != nil {
		return nil, err
	}

	app, err := e.resolveApp(ctx, hdrs.AppID)
	if err != nil {
		return nil, err
	}
	if err := checkAccessControl(app, req.Path, req.ClientIP); err != nil {
		return nil, err
	}

	ts, err := ParseTimestamp(hdrs.Timestamp)
	if err != nil {
		return nil, err
	}
	if err := e.checkWindow(ts, app, now); err != nil {
		return nil, err
	}

	key, pub, err := e.resolveKey(app, hdrs.KeyID, now)
	if err != nil {
		return nil, err
	}

	canonical := sigcodec.BuildSigningString(hdrs.Timestamp, req.Method, req.Path, hdrs.AppID, canonicalBody(req))
	if !sigcodec.VerifyParsed(canonical, hdrs.Signature, pub, key.Algorithm) {
		return nil, apperrors.ErrSignatureInvalid.
			WithField("app_id", app.AppID).WithField("key_id", key.KeyID)
	}

	if decision != nil {
		if err := e.auth.Authorize(ctx, *decision, app.AppID); err != nil {
			return nil, err
		}
	}

	return &Identity{
		AppID:       app.AppID,
		KeyID:       key.KeyID,
		Algorithm:   key.Algorithm,
		Permissions: append([]string(nil), app.Permissions...),
		VerifiedAt:  now,
	}, nil
}

// exempt: el path está exento por skip-list o porque la ruta resuelta no
// exige autenticación.
func (e *Engine) exempt(req Request) bool {
	if e.skipped(req.Path) {
		return true
	}
	if e.auth != nil && !e.auth.Resolve(req.Path, req.Method).RequireAuth {
		return true
	}
	return false
}

// canonicalBody: los métodos sin cuerpo firman con body vacío.
func canonicalBody(req Request) string {
	switch req.Method {
	case "GET", "HEAD", "get", "head":
		return ""
	}
	return req.Body
}

// BatchResult mantiene el orden de entrada: Results[i] corresponde a
// Requests[i].
type BatchResult struct {
	Identity *Identity
	Err      error
}

// VerifyBatch verifica un lote. Pre-resuelve cada clave distinta una sola
// vez en paralelo y después corre las verificaciones independientes en
// paralelo, preservando el orden de entrada en la salida.
func (e *Engine) VerifyBatch(ctx context.Context, reqs []Request) []BatchResult {
	start := time.Now()
	results := make([]BatchResult, len(reqs))

	// Fase 1: resolver apps/claves distintas una sola vez.
	type refKey struct{ appID, keyID string }
	type resolved struct {
		app *core.AppConfig
		key *core.KeyPair
		pub crypto.PublicKey
		err error
	}
	now := e.now()
	distinct := make(map[refKey]*resolved)
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	for i := range reqs {
		if e.exempt(reqs[i]) {
			continue // no necesita resolución de clave
		}
		hdrs, err := ExtractHeaders(reqs[i].Headers)
		if err != nil {
			continue // la fase 2 reporta el error en orden
		}
		ref := refKey{hdrs.AppID, hdrs.KeyID}
		mu.Lock()
		if _, seen := distinct[ref]; seen {
			mu.Unlock()
			continue
		}
		r := &resolved{}
		distinct[ref] = r
		mu.Unlock()

		g.Go(func() error {
			app, err := e.resolveApp(gctx, ref.appID)
			if err != nil {
				r.err = err
				return nil
			}
			key, pub, err := e.resolveKey(app, ref.keyID, now)
			if err != nil {
				r.err = err
				return nil
			}
			r.app, r.key, r.pub = app, key, pub
			return nil
		})
	}
	_ = g.Wait()

	// Fase 2: verificaciones independientes, salida en orden de entrada.
	var wg sync.WaitGroup
	for i := range reqs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			req := reqs[i]

			if e.skipped(req.Path) {
				results[i].Identity = &Identity{Skipped: true, VerifiedAt: now}
				return
			}
			var decision *routeauth.Decision
			if e.auth != nil {
				d := e.auth.Resolve(req.Path, req.Method)
				if !d.RequireAuth {
					results[i].Identity = &Identity{Skipped: true, VerifiedAt: now}
					return
				}
				decision = &d
			}

			hdrs, err := ExtractHeaders(req.Headers)
			if err != nil {
				results[i].Err = err
				return
			}
			r := distinct[refKey{hdrs.AppID, hdrs.KeyID}]
			if r == nil || r.err != nil {
				if r != nil {
					results[i].Err = r.err
				} else {
					results[i].Err = apperrors.ErrAppNotFound.WithField("app_id", hdrs.AppID)
				}
				return
			}

			if err := checkAccessControl(r.app, req.Path, req.ClientIP); err != nil {
				results[i].Err = err
				return
			}
			ts, err := ParseTimestamp(hdrs.Timestamp)
			if err != nil {
				results[i].Err = err
				return
			}
			if err := e.checkWindow(ts, r.app, now); err != nil {
				results[i].Err = err
				return
			}
			canonical := sigcodec.BuildSigningString(hdrs.Timestamp, req.Method, req.Path, hdrs.AppID, canonicalBody(req))
			if !sigcodec.VerifyParsed(canonical, hdrs.Signature, r.pub, r.key.Algorithm) {
				results[i].Err = apperrors.ErrSignatureInvalid.
					WithField("app_id", r.app.AppID).WithField("key_id", r.key.KeyID)
				return
			}
			if decision != nil {
				if err := e.auth.Authorize(ctx, *decision, r.app.AppID); err != nil {
					results[i].Err = err
					return
				}
			}
			results[i].Identity = &Identity{
				AppID:       r.app.AppID,
				KeyID:       r.key.KeyID,
				Algorithm:   r.key.Algorithm,
				Permissions: append([]string(nil), r.app.Permissions...),
				VerifiedAt:  now,
			}
		}(i)
	}
	wg.Wait()

	if e.monitor != nil {
		ok := true
		for i := range results {
			if results[i].Err != nil {
				ok = false
				break
			}
		}
		e.monitor.Record("verify_batch", time.Since(start), ok)
	}
	return results
}

// PEMCacheStats expone las estadísticas del cache de PEMs limpios.
func (e *Engine) PEMCacheStats() keycache.Stats { return e.pemCache.Stats() }
