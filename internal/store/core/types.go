package core

import (
	"strings"
	"time"
)

// Algorithm identifica el esquema de firma de una clave.
type Algorithm string

const (
	AlgRS256 Algorithm = "RS256"
	AlgRS512 Algorithm = "RS512"
	AlgES256 Algorithm = "ES256"
	AlgES512 Algorithm = "ES512"
)

// Valid reporta si el algoritmo está soportado.
func (a Algorithm) Valid() bool {
	switch a {
	case AlgRS256, AlgRS512, AlgES256, AlgES512:
		return true
	}
	return false
}

// KeyPair es una clave de firma de una app.
// PrivateKey sólo está presente en generación/distribución; nunca se persiste
// en claro del lado del server para distribución.
type KeyPair struct {
	KeyID      string     `json:"keyId" yaml:"key_id"`
	PublicKey  string     `json:"publicKey" yaml:"public_key"`   // PEM
	PrivateKey string     `json:"privateKey,omitempty" yaml:"-"` // PEM, efímero
	Algorithm  Algorithm  `json:"algorithm" yaml:"algorithm"`
	CreatedAt  time.Time  `json:"createdAt" yaml:"created_at"`
	ExpiresAt  *time.Time `json:"expiresAt,omitempty" yaml:"expires_at,omitempty"`
	NotBefore  *time.Time `json:"notBefore,omitempty" yaml:"not_before,omitempty"`
	Enabled    bool       `json:"enabled" yaml:"enabled"`
}

// Expired reporta si la clave venció a un instante dado.
// Sin ExpiresAt => nunca expira.
func (k *KeyPair) Expired(now time.Time) bool {
	return k.ExpiresAt != nil && now.After(*k.ExpiresAt)
}

// Usable reporta si la clave puede seleccionarse para verificación:
// habilitada, no expirada y ya vigente (NotBefore).
func (k *KeyPair) Usable(now time.Time) bool {
	if !k.Enabled || k.Expired(now) {
		return false
	}
	if k.NotBefore != nil && now.Before(*k.NotBefore) {
		return false
	}
	return true
}

// RateLimit es configuración de límite de requests (sólo datos; el
// enforcement es externo).
type RateLimit struct {
	RequestsPerMinute int `json:"requestsPerMinute" yaml:"requests_per_minute"`
	BurstLimit        int `json:"burstLimit" yaml:"burst_limit"`
}

// AccessControl es la configuración opcional de control de acceso por app.
type AccessControl struct {
	AllowedPaths []string   `json:"allowedPaths,omitempty" yaml:"allowed_paths,omitempty"`
	DeniedPaths  []string   `json:"deniedPaths,omitempty" yaml:"denied_paths,omitempty"`
	AllowedIPs   []string   `json:"allowedIPs,omitempty" yaml:"allowed_ips,omitempty"`
	RateLimit    *RateLimit `json:"rateLimit,omitempty" yaml:"rate_limit,omitempty"`
	// CustomTimeWindow (segundos) pisa la tolerancia global de timestamp para esta app.
	CustomTimeWindow *int `json:"customTimeWindow,omitempty" yaml:"custom_time_window,omitempty"`
}

// AppConfig es el registro de una app que firma requests.
// Es propiedad del Store: se muta sólo a través de operaciones de escritura.
type AppConfig struct {
	AppID         string         `json:"appId" yaml:"app_id"`
	Name          string         `json:"name" yaml:"name"`
	Keys          []KeyPair      `json:"keyPairs" yaml:"key_pairs"`
	Enabled       bool           `json:"enabled" yaml:"enabled"`
	Permissions   []string       `json:"permissions,omitempty" yaml:"permissions,omitempty"`
	AccessControl *AccessControl `json:"accessControl,omitempty" yaml:"access_control,omitempty"`
	Description   string         `json:"description,omitempty" yaml:"description,omitempty"`
	Tags          []string       `json:"tags,omitempty" yaml:"tags,omitempty"`
	CreatedAt     time.Time      `json:"createdAt" yaml:"created_at"`
	UpdatedAt     time.Time      `json:"updatedAt" yaml:"updated_at"`
}

// FindKey busca una clave por id. Retorna nil si no existe.
func (a *AppConfig) FindKey(keyID string) *KeyPair {
	for i := range a.Keys {
		if a.Keys[i].KeyID == keyID {
			return &a.Keys[i]
		}
	}
	return nil
}

// EnabledKeys retorna las claves habilitadas y no expiradas.
func (a *AppConfig) EnabledKeys(now time.Time) []KeyPair {
	var out []KeyPair
	for _, k := range a.Keys {
		if k.Usable(now) {
			out = append(out, k)
		}
	}
	return out
}

// Clone retorna una copia profunda. Los backends la usan para que los callers
// no puedan mutar estado interno a través de referencias retornadas.
func (a *AppConfig) Clone() *AppConfig {
	if a == nil {
		return nil
	}
	cp := *a
	cp.Keys = make([]KeyPair, len(a.Keys))
	for i, k := range a.Keys {
		cp.Keys[i] = k
		if k.ExpiresAt != nil {
			t := *k.ExpiresAt
			cp.Keys[i].ExpiresAt = &t
		}
		if k.NotBefore != nil {
			t := *k.NotBefore
			cp.Keys[i].NotBefore = &t
		}
	}
	cp.Permissions = append([]string(nil), a.Permissions...)
	cp.Tags = append([]string(nil), a.Tags...)
	if a.AccessControl != nil {
		ac := *a.AccessControl
		ac.AllowedPaths = append([]string(nil), a.AccessControl.AllowedPaths...)
		ac.DeniedPaths = append([]string(nil), a.AccessControl.DeniedPaths...)
		ac.AllowedIPs = append([]string(nil), a.AccessControl.AllowedIPs...)
		if a.AccessControl.RateLimit != nil {
			rl := *a.AccessControl.RateLimit
			ac.RateLimit = &rl
		}
		if a.AccessControl.CustomTimeWindow != nil {
			w := *a.AccessControl.CustomTimeWindow
			ac.CustomTimeWindow = &w
		}
		cp.AccessControl = &ac
	}
	return &cp
}

// Validate chequea invariantes estructurales antes de aceptar una escritura.
func (a *AppConfig) Validate() error {
	if strings.TrimSpace(a.AppID) == "" {
		return errInvalid("appId vacío")
	}
	if strings.TrimSpace(a.Name) == "" {
		return errInvalid("name vacío")
	}
	if len(a.Keys) == 0 {
		return errInvalid("se requiere al menos un key pair")
	}
	seen := make(map[string]struct{}, len(a.Keys))
	for _, k := range a.Keys {
		if strings.TrimSpace(k.KeyID) == "" {
			return errInvalid("keyId vacío")
		}
		if _, dup := seen[k.KeyID]; dup {
			return errInvalid("keyId duplicado: " + k.KeyID)
		}
		seen[k.KeyID] = struct{}{}
		if !k.Algorithm.Valid() {
			return errInvalid("algoritmo no soportado: " + string(k.Algorithm))
		}
		if !looksLikePEM(k.PublicKey) {
			return errInvalid("public key no es PEM: " + k.KeyID)
		}
	}
	return nil
}

func looksLikePEM(s string) bool {
	s = strings.TrimSpace(s)
	return strings.HasPrefix(s, "-----BEGIN ") && strings.Contains(s, "-----END ")
}
