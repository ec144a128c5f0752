package lifecycle

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/dropDatabas3/sigil/internal/observability/logger"
	"github.com/dropDatabas3/sigil/internal/store/core"
)

// CleanupReport resume una pasada de limpieza.
type CleanupReport struct {
	Removed []string          `json:"removed"` // "appId/keyId"
	Errors  map[string]string `json:"errors,omitempty"`
}

// MaintenanceReport resume una pasada de mantenimiento completa.
type MaintenanceReport struct {
	Cleanup  CleanupReport     `json:"cleanup"`
	Statuses []KeyHealthStatus `json:"statuses"`
	Warnings int               `json:"warnings"`
	Critical int               `json:"critical"`
}

// expiredScanner lo implementan los backends que saben listar claves
// vencidas por su cuenta (p.ej. redisstore); el barrido completo los usa para
// visitar sólo las apps que tienen algo que purgar.
type expiredScanner interface {
	ScanExpiredKeys(ctx context.Context, now time.Time) (map[string][]string, error)
}

// CleanupExpiredKeys remueve claves cuyo ExpiresAt ya pasó, con la condición
// de que quede al menos otra clave habilitada en la app: la limpieza jamás
// deja una app sin claves usables. Si remover la última usable fuera el
// resultado, eso se reporta como error para esa clave, no se saltea en
// silencio. appID vacío barre todas las apps.
func (m *Manager) CleanupExpiredKeys(ctx context.Context, appID string) (*CleanupReport, error) {
	report := &CleanupReport{Errors: map[string]string{}}

	var ids []string
	switch {
	case appID != "":
		ids = []string{appID}
	default:
		if sc, ok := m.store.(expiredScanner); ok {
			expired, err := sc.ScanExpiredKeys(ctx, m.now())
			if err != nil {
				return nil, err
			}
			for id := range expired {
				ids = append(ids, id)
			}
		} else {
			var err error
			if ids, err = m.store.ListAppIDs(ctx); err != nil {
				return nil, err
			}
		}
	}

	for _, id := range ids {
		if err := m.cleanupApp(ctx, id, report); err != nil {
			report.Errors[id] = err.Error()
		}
	}
	return report, nil
}

func (m *Manager) cleanupApp(ctx context.Context, appID string, report *CleanupReport) error {
	app, err := m.store.GetAppConfig(ctx, appID)
	if err != nil {
		return err
	}
	now := m.now()

	var keep []core.KeyPair
	var removed []string
	for _, k := range app.Keys {
		if !k.Expired(now) {
			keep = append(keep, k)
		}
	}
	for _, k := range app.Keys {
		if !k.Expired(now) {
			continue
		}
		// Sólo se remueve si sobrevive al menos una clave habilitada.
		if countEnabled(keep, now) == 0 {
			report.Errors[appID+"/"+k.KeyID] = "cleanup dejaría la app sin claves habilitadas"
			keep = append(keep, k)
			continue
		}
		removed = append(removed, k.KeyID)
	}

	if len(removed) == 0 {
		return nil
	}
	app.Keys = keep
	if err := m.store.SaveAppConfig(ctx, app); err != nil {
		return err
	}
	for _, kid := range removed {
		report.Removed = append(report.Removed, appID+"/"+kid)
	}
	logger.From(ctx).Info("expired keys cleaned",
		logger.AppID(appID), zap.Strings("key_ids", removed))
	return nil
}

func countEnabled(keys []core.KeyPair, now time.Time) int {
	n := 0
	for _, k := range keys {
		if k.Enabled && !k.Expired(now) {
			n++
		}
	}
	return n
}

// PerformMaintenance corre cleanup + scan de salud sobre todas las apps.
// Seguro de correr concurrente con tráfico de verificación: sólo agrega o
// marca, nunca muta claves en uso sin copia.
func (m *Manager) PerformMaintenance(ctx context.Context) (*MaintenanceReport, error) {
	cleanup, err := m.CleanupExpiredKeys(ctx, "")
	if err != nil {
		return nil, err
	}
	report := &MaintenanceReport{Cleanup: *cleanup}

	ids, err := m.store.ListAppIDs(ctx)
	if err != nil {
		return nil, err
	}
	apps, err := m.store.GetAppConfigs(ctx, ids)
	if err != nil {
		return nil, err
	}
	now := m.now()
	for _, id := range sortedAppIDs(apps) {
		app := apps[id]
		for i := range app.Keys {
			st := m.classify(app, &app.Keys[i], now)
			report.Statuses = append(report.Statuses, st)
			switch st.Health {
			case HealthWarning:
				report.Warnings++
			case HealthCritical:
				report.Critical++
			}
		}
	}
	if report.Critical > 0 || report.Warnings > 0 {
		logger.From(ctx).Warn("maintenance found unhealthy keys",
			zap.Int("warnings", report.Warnings),
			zap.Int("critical", report.Critical))
	}
	return report, nil
}
