// Package distribute empaqueta claves para entrega a clientes: fingerprint
// estable, cifrado simétrico de la privada, historial de distribución por
// app/clave, revocación y limpieza por edad.
package distribute

import (
	"context"
	"crypto/ecdsa"
	"crypto/rsa"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dropDatabas3/sigil/internal/apperrors"
	"github.com/dropDatabas3/sigil/internal/observability/logger"
	"github.com/dropDatabas3/sigil/internal/sigcodec"
	"github.com/dropDatabas3/sigil/internal/store/core"
)

// PackageMetadata describe la clave empaquetada.
type PackageMetadata struct {
	Algorithm   string `json:"algorithm"`
	Fingerprint string `json:"fingerprint"`
	KeySize     int    `json:"keySize,omitempty"` // bits, sólo RSA
	Curve       string `json:"curve,omitempty"`   // sólo EC
}

// ClientInfo identifica al receptor de una distribución.
type ClientInfo struct {
	ClientID  string `json:"clientId"`
	ClientIP  string `json:"clientIP,omitempty"`
	UserAgent string `json:"userAgent,omitempty"`
}

// KeyDistributionPackage es el bundle que se entrega al cliente.
// Serializable a JSON, fechas ISO-8601.
type KeyDistributionPackage struct {
	AppID               string          `json:"appId"`
	KeyID               string          `json:"keyId"`
	PublicKey           string          `json:"publicKey"`
	EncryptedPrivateKey string          `json:"encryptedPrivateKey,omitempty"`
	Metadata            PackageMetadata `json:"metadata"`
	DistributedAt       time.Time       `json:"distributedAt"`
	DistributedTo       *ClientInfo     `json:"distributedTo,omitempty"`
}

// Record es una entrada del historial de distribución.
type Record struct {
	ID            string     `json:"id"`
	AppID         string     `json:"appId"`
	KeyID         string     `json:"keyId"`
	ClientID      string     `json:"clientId,omitempty"`
	Fingerprint   string     `json:"fingerprint"`
	DistributedAt time.Time  `json:"distributedAt"`
	Revoked       bool       `json:"revoked"`
	RevokedAt     *time.Time `json:"revokedAt,omitempty"`
}

// AuditEntry registra cada llamada a DistributeKeys, exitosa o no.
type AuditEntry struct {
	RequestID string    `json:"requestId"`
	AppID     string    `json:"appId"`
	KeyID     string    `json:"keyId"`
	ClientID  string    `json:"clientId,omitempty"`
	Success   bool      `json:"success"`
	ErrorCode string    `json:"errorCode,omitempty"`
	At        time.Time `json:"at"`
}

// Options configura el distribuidor.
type Options struct {
	// EncryptionKey es la clave server-side para cifrar privadas.
	// Vacía => empaquetar con privada falla con error de configuración.
	EncryptionKey string
	// Freshness: edad máxima aceptada del timestamp de un request de
	// distribución. Default 5 minutos.
	Freshness time.Duration
	// AuditEnabled habilita el log de auditoría. Default true vía New.
	AuditEnabled bool
}

// Distributor gestiona empaquetado y distribución. Instancia explícita,
// segura para uso concurrente.
type Distributor struct {
	wrapKey  []byte // nil si no hay clave configurada
	fresh    time.Duration
	auditing bool

	mu      sync.Mutex
	records []Record
	audit   []AuditEntry

	now func() time.Time
}

// New crea el distribuidor. Una EncryptionKey inválida es error inmediato
// (mejor fallar al construir que al primer empaquetado).
func New(opts Options) (*Distributor, error) {
	d := &Distributor{
		fresh:    opts.Freshness,
		auditing: opts.AuditEnabled,
		now:      func() time.Time { return time.Now().UTC() },
	}
	if d.fresh <= 0 {
		d.fresh = 5 * time.Minute
	}
	if opts.EncryptionKey != "" {
		k, err := DeriveWrapKey(opts.EncryptionKey)
		if err != nil {
			return nil, apperrors.ErrValidation.WithDetail("encryption key inválida").WithCause(err)
		}
		d.wrapKey = k
	}
	return d, nil
}

// WithClock reemplaza el reloj. Usar sólo en tests.
func (d *Distributor) WithClock(now func() time.Time) *Distributor {
	d.now = now
	return d
}

// CreateKeyPackage arma el paquete para un KeyPair. Si includePrivateKey,
// cifra la privada con la clave del server; sin clave configurada es un
// error de configuración, no un paquete sin privada.
func (d *Distributor) CreateKeyPackage(keyPair *core.KeyPair, appID string, includePrivateKey bool, client *ClientInfo) (*KeyDistributionPackage, error) {
	if keyPair == nil || strings.TrimSpace(appID) == "" {
		return nil, apperrors.ErrValidation.WithDetail("keyPair y appId son requeridos")
	}

	fp, err := sigcodec.Fingerprint(keyPair.PublicKey)
	if err != nil {
		return nil, apperrors.ErrValidation.WithDetail("public key inválida").WithCause(err)
	}
	meta := PackageMetadata{Algorithm: string(keyPair.Algorithm), Fingerprint: fp}
	if pub, err := sigcodec.ParsePublicKey(keyPair.PublicKey); err == nil {
		switch p := pub.(type) {
		case *rsa.PublicKey:
			meta.KeySize = p.N.BitLen()
		case *ecdsa.PublicKey:
			meta.Curve = p.Curve.Params().Name
		}
	}

	pkg := &KeyDistributionPackage{
		AppID:         appID,
		KeyID:         keyPair.KeyID,
		PublicKey:     keyPair.PublicKey,
		Metadata:      meta,
		DistributedAt: d.now(),
		DistributedTo: client,
	}

	if includePrivateKey {
		if d.wrapKey == nil {
			return nil, apperrors.ErrValidation.WithDetail("no hay encryption key configurada para distribuir privadas")
		}
		if keyPair.PrivateKey == "" {
			return nil, apperrors.ErrValidation.WithDetail("el key pair no trae privada para distribuir")
		}
		enc, err := EncryptPrivateKey(keyPair.PrivateKey, d.wrapKey)
		if err != nil {
			return nil, apperrors.ErrValidation.WithDetail("no se pudo cifrar la privada").WithCause(err)
		}
		pkg.EncryptedPrivateKey = enc
	}
	return pkg, nil
}

// DecryptPackagePrivateKey descifra la privada de un paquete usando la clave
// dada (lado cliente). Inverso exacto del cifrado del paquete.
func DecryptPackagePrivateKey(encrypted string, encryptionKey string) (string, error) {
	wk, err := DeriveWrapKey(encryptionKey)
	if err != nil {
		return "", apperrors.ErrDecryption.WithCause(err)
	}
	pt, err := DecryptPrivateKey(encrypted, wk)
	if err != nil {
		return "", apperrors.ErrDecryption.WithCause(err)
	}
	return pt, nil
}

// Request es un pedido de distribución validable.
type Request struct {
	AppID             string        `json:"appId"`
	KeyPair           *core.KeyPair `json:"-"`
	IncludePrivateKey bool          `json:"includePrivateKey"`
	Timestamp         time.Time     `json:"timestamp"`
	Client            *ClientInfo   `json:"client,omitempty"`
}

// Response es la respuesta; siempre lleva un request id único.
type Response struct {
	RequestID string                  `json:"requestId"`
	Package   *KeyDistributionPackage `json:"package,omitempty"`
}

// DistributeKeys valida el request (campos requeridos + frescura del
// timestamp) y empaqueta. Éxito o falla, la llamada queda en el log de
// auditoría cuando está habilitado.
func (d *Distributor) DistributeKeys(ctx context.Context, req Request) (*Response, error) {
	resp := &Response{RequestID: uuid.NewString()}

	fail := func(err *apperrors.AppError) (*Response, error) {
		d.recordAudit(ctx, resp.RequestID, req, false, err.Code)
		return resp, err
	}

	if strings.TrimSpace(req.AppID) == "" || req.KeyPair == nil {
		return fail(apperrors.ErrValidation.WithDetail("appId y keyPair son requeridos"))
	}
	if req.Timestamp.IsZero() {
		return fail(apperrors.ErrValidation.WithDetail("timestamp requerido"))
	}
	if age := d.now().Sub(req.Timestamp); age > d.fresh {
		return fail(apperrors.ErrValidation.WithDetail("request de distribución vencido").
			WithField("max_age", d.fresh.String()))
	}

	pkg, err := d.CreateKeyPackage(req.KeyPair, req.AppID, req.IncludePrivateKey, req.Client)
	if err != nil {
		return fail(apperrors.FromError(err))
	}
	resp.Package = pkg

	d.mu.Lock()
	rec := Record{
		ID:            resp.RequestID,
		AppID:         req.AppID,
		KeyID:         req.KeyPair.KeyID,
		Fingerprint:   pkg.Metadata.Fingerprint,
		DistributedAt: pkg.DistributedAt,
	}
	if req.Client != nil {
		rec.ClientID = req.Client.ClientID
	}
	d.records = append(d.records, rec)
	d.mu.Unlock()

	d.recordAudit(ctx, resp.RequestID, req, true, "")
	return resp, nil
}

func (d *Distributor) recordAudit(ctx context.Context, requestID string, req Request, ok bool, code string) {
	if !d.auditing {
		return
	}
	e := AuditEntry{RequestID: requestID, AppID: req.AppID, Success: ok, ErrorCode: code, At: d.now()}
	if req.KeyPair != nil {
		e.KeyID = req.KeyPair.KeyID
	}
	if req.Client != nil {
		e.ClientID = req.Client.ClientID
	}
	d.mu.Lock()
	d.audit = append(d.audit, e)
	d.mu.Unlock()

	if !ok {
		logger.From(ctx).Warn("key distribution rejected",
			logger.RequestID(requestID), logger.AppID(req.AppID), logger.ErrorCode(code))
	} else {
		logger.From(ctx).Info("key distributed",
			logger.RequestID(requestID), logger.AppID(req.AppID), logger.KeyID(e.KeyID))
	}
}

// RevokeKeyDistribution marca revocadas las distribuciones que matcheen
// app/clave (y cliente, si se indica). Cero afectadas es un resultado
// válido, no un error.
func (d *Distributor) RevokeKeyDistribution(ctx context.Context, appID, keyID, clientID string) (int, error) {
	if strings.TrimSpace(appID) == "" || strings.TrimSpace(keyID) == "" {
		return 0, apperrors.ErrValidation.WithDetail("appId y keyId son requeridos")
	}
	now := d.now()
	affected := 0

	d.mu.Lock()
	for i := range d.records {
		r := &d.records[i]
		if r.Revoked || r.AppID != appID || r.KeyID != keyID {
			continue
		}
		if clientID != "" && r.ClientID != clientID {
			continue
		}
		r.Revoked = true
		r.RevokedAt = &now
		affected++
	}
	d.mu.Unlock()

	logger.From(ctx).Info("distribution revoked",
		logger.AppID(appID), logger.KeyID(keyID), zap.Int("affected", affected))
	return affected, nil
}

// History retorna copias de los registros de distribución de una app
// (todos si appID es vacío).
func (d *Distributor) History(appID string) []Record {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []Record
	for _, r := range d.records {
		if appID == "" || r.AppID == appID {
			out = append(out, r)
		}
	}
	return out
}

// AuditLog retorna una copia del log de auditoría.
func (d *Distributor) AuditLog() []AuditEntry {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]AuditEntry(nil), d.audit...)
}

// CleanupExpiredDistributions poda registros y auditoría más viejos que
// maxAgeDays. Retorna (limpiados, restantes).
func (d *Distributor) CleanupExpiredDistributions(ctx context.Context, maxAgeDays int) (cleaned, remaining int) {
	if maxAgeDays <= 0 {
		maxAgeDays = 90
	}
	cutoff := d.now().AddDate(0, 0, -maxAgeDays)

	d.mu.Lock()
	var keepRecs []Record
	for _, r := range d.records {
		if r.DistributedAt.Before(cutoff) {
			cleaned++
		} else {
			keepRecs = append(keepRecs, r)
		}
	}
	d.records = keepRecs

	var keepAudit []AuditEntry
	for _, a := range d.audit {
		if a.At.Before(cutoff) {
			cleaned++
		} else {
			keepAudit = append(keepAudit, a)
		}
	}
	d.audit = keepAudit
	remaining = len(d.records) + len(d.audit)
	d.mu.Unlock()

	logger.From(ctx).Info("distribution records cleaned",
		zap.Int("cleaned", cleaned), zap.Int("remaining", remaining))
	return cleaned, remaining
}
