// Package core define el contrato de almacenamiento de AppConfigs y los
// tipos compartidos por todos los backends.
package core

import (
	"context"
	"fmt"
)

// Store es el contrato común de todos los backends.
// Todas las operaciones devuelven ErrNotFound/ErrInvalid/ErrReadOnly como
// sentinelas; cualquier otro error se considera falla de storage.
type Store interface {
	GetAppConfig(ctx context.Context, appID string) (*AppConfig, error)
	SaveAppConfig(ctx context.Context, app *AppConfig) error
	DeleteAppConfig(ctx context.Context, appID string) error
	ListAppIDs(ctx context.Context) ([]string, error)

	// GetAppConfigs resuelve varios ids en un solo viaje (batch).
	// Los ids inexistentes simplemente no aparecen en el mapa.
	GetAppConfigs(ctx context.Context, appIDs []string) (map[string]*AppConfig, error)

	// AppExists evita deserializar el config completo cuando sólo importa existencia.
	AppExists(ctx context.Context, appID string) (bool, error)

	Close() error
}

func errInvalid(detail string) error {
	return fmt.Errorf("%w: %s", ErrInvalid, detail)
}
