package lifecycle

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/dropDatabas3/sigil/internal/observability/logger"
	"github.com/dropDatabas3/sigil/internal/sigcodec"
	"github.com/dropDatabas3/sigil/internal/store/core"
)

// RotationStrategy determina qué tan rápido se apaga la clave vieja.
type RotationStrategy string

const (
	// StrategyImmediate deshabilita la clave vieja en el momento de rotar.
	StrategyImmediate RotationStrategy = "immediate"
	// StrategyGradual deja la vieja habilitada durante el grace period.
	StrategyGradual RotationStrategy = "gradual"
	// StrategyScheduled difiere la vigencia de la clave nueva a EffectiveAt.
	StrategyScheduled RotationStrategy = "scheduled"
)

func (s RotationStrategy) valid() bool {
	switch s {
	case StrategyImmediate, StrategyGradual, StrategyScheduled:
		return true
	}
	return false
}

// RotationPlan es un plan validado, listo para ejecutar.
type RotationPlan struct {
	AppID       string
	Algorithm   core.Algorithm
	Options     sigcodec.GenerateOptions
	EffectiveAt time.Time // sólo scheduled
	Strategy    RotationStrategy
	// GracePeriod pisa el default del manager para esta rotación (gradual).
	GracePeriod time.Duration
	// KeyTTL opcional para la clave nueva.
	KeyTTL time.Duration
}

// RotationResult es el resultado de una rotación ejecutada.
type RotationResult struct {
	AppID        string    `json:"appId"`
	OldKeyID     string    `json:"oldKeyId"`
	NewKeyID     string    `json:"newKeyId"`
	RotationTime time.Time `json:"rotationTime"`
	// NewPrivateKeyPEM se retorna para distribución inmediata; no se persiste.
	NewPrivateKeyPEM string `json:"-"`
}

// CreateRotationPlan valida que la app exista y que el plan sea ejecutable.
func (m *Manager) CreateRotationPlan(ctx context.Context, appID string, alg core.Algorithm, opts sigcodec.GenerateOptions, effectiveAt time.Time, strategy RotationStrategy) (*RotationPlan, error) {
	if !alg.Valid() {
		return nil, fmt.Errorf("%w: algoritmo no soportado %q", core.ErrInvalid, alg)
	}
	if !strategy.valid() {
		return nil, fmt.Errorf("%w: estrategia de rotación desconocida %q", core.ErrInvalid, strategy)
	}
	if strategy == StrategyScheduled && effectiveAt.IsZero() {
		return nil, fmt.Errorf("%w: scheduled requiere effectiveAt", core.ErrInvalid)
	}
	ok, err := m.store.AppExists(ctx, appID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("app %q: %w", appID, core.ErrNotFound)
	}
	return &RotationPlan{
		AppID:       appID,
		Algorithm:   alg,
		Options:     opts,
		EffectiveAt: effectiveAt,
		Strategy:    strategy,
	}, nil
}

// ExecuteRotation genera la clave nueva bajo el algoritmo del plan y la
// agrega a la app. La vieja nunca se borra sincrónicamente: queda deprecada
// (habilitada o no según estrategia) y la barre cleanup más adelante.
// oldKeyID vacío rota la clave habilitada más nueva.
func (m *Manager) ExecuteRotation(ctx context.Context, plan *RotationPlan, oldKeyID string) (*RotationResult, error) {
	if plan == nil || !plan.Strategy.valid() {
		return nil, fmt.Errorf("%w: plan de rotación inválido", core.ErrInvalid)
	}
	app, err := m.store.GetAppConfig(ctx, plan.AppID)
	if err != nil {
		return nil, err
	}
	now := m.now()

	var old *core.KeyPair
	if oldKeyID != "" {
		if old = app.FindKey(oldKeyID); old == nil {
			return nil, fmt.Errorf("key %q: %w", oldKeyID, core.ErrNotFound)
		}
	} else {
		old = currentKey(app, now)
	}

	pair, err := sigcodec.GenerateKeyPair(plan.Algorithm, plan.Options)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrInvalid, err)
	}

	newKey := core.KeyPair{
		KeyID:     newKeyID(now),
		PublicKey: pair.PublicKeyPEM,
		Algorithm: plan.Algorithm,
		CreatedAt: now,
		Enabled:   true,
	}
	if plan.KeyTTL > 0 {
		exp := now.Add(plan.KeyTTL)
		newKey.ExpiresAt = &exp
	}
	if plan.Strategy == StrategyScheduled && plan.EffectiveAt.After(now) {
		nb := plan.EffectiveAt.UTC()
		newKey.NotBefore = &nb
	}

	grace := plan.GracePeriod
	if grace <= 0 {
		grace = m.opts.GracePeriod
	}

	if old != nil {
		switch plan.Strategy {
		case StrategyImmediate:
			old.Enabled = false
		case StrategyGradual, StrategyScheduled:
			// La vieja sigue honrándose durante el grace period; se le fija
			// un vencimiento si no tenía uno anterior más cercano.
			deadline := now.Add(grace)
			if old.ExpiresAt == nil || old.ExpiresAt.After(deadline) {
				old.ExpiresAt = &deadline
			}
		}
	}

	app.Keys = append(app.Keys, newKey)
	if err := m.store.SaveAppConfig(ctx, app); err != nil {
		return nil, err
	}

	res := &RotationResult{
		AppID:            plan.AppID,
		NewKeyID:         newKey.KeyID,
		RotationTime:     now,
		NewPrivateKeyPEM: pair.PrivateKeyPEM,
	}
	if old != nil {
		res.OldKeyID = old.KeyID
	}
	logger.From(ctx).Info("key rotated",
		logger.AppID(plan.AppID),
		zap.String("old_key_id", res.OldKeyID),
		zap.String("new_key_id", res.NewKeyID),
		zap.String("strategy", string(plan.Strategy)))
	return res, nil
}

// BatchRotateKeys rota varias apps con la misma estrategia. Las fallas por
// app no cortan el batch: se reportan en el mapa de errores.
func (m *Manager) BatchRotateKeys(ctx context.Context, appIDs []string, alg core.Algorithm, strategy RotationStrategy) (map[string]*RotationResult, map[string]error) {
	results := make(map[string]*RotationResult)
	errs := make(map[string]error)
	for _, appID := range appIDs {
		plan, err := m.CreateRotationPlan(ctx, appID, alg, sigcodec.GenerateOptions{}, time.Time{}, strategy)
		if err != nil {
			errs[appID] = err
			continue
		}
		res, err := m.ExecuteRotation(ctx, plan, "")
		if err != nil {
			errs[appID] = err
			continue
		}
		results[appID] = res
	}
	return results, errs
}
