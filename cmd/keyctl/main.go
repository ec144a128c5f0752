// keyctl administra claves de firma contra el backend configurado:
// generación, rotación, estado de salud, limpieza y empaquetado para
// distribución.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/dropDatabas3/sigil/internal/config"
	"github.com/dropDatabas3/sigil/internal/distribute"
	"github.com/dropDatabas3/sigil/internal/lifecycle"
	"github.com/dropDatabas3/sigil/internal/observability/logger"
	"github.com/dropDatabas3/sigil/internal/sigcodec"
	"github.com/dropDatabas3/sigil/internal/store"
	"github.com/dropDatabas3/sigil/internal/store/core"
)

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func printJSON(v any) {
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
}

func openStore(ctx context.Context, cfgPath string) (core.Store, *config.Config, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, nil, err
	}
	var sc store.Config
	sc.Driver = cfg.Storage.Driver
	sc.Layered = cfg.Storage.Layered
	sc.CacheTTL = cfg.Storage.CacheTTL
	sc.Redis.Addr = cfg.Storage.Redis.Addr
	sc.Redis.Password = cfg.Storage.Redis.Password
	sc.Redis.DB = cfg.Storage.Redis.DB
	sc.Redis.Prefix = cfg.Storage.Redis.Prefix
	sc.Postgres.DSN = cfg.Storage.Postgres.DSN
	sc.File.Path = cfg.Storage.File.Path
	st, err := store.Open(ctx, sc)
	if err != nil {
		return nil, nil, err
	}
	return st, cfg, nil
}

func main() {
	_ = godotenv.Load()
	logger.Init(logger.Config{Env: envOr("SIGIL_ENV", "dev"), Level: "warn"})
	defer logger.Sync()

	var cfgPath string

	root := &cobra.Command{
		Use:           "keyctl",
		Short:         "Administración de claves de firma",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", os.Getenv("SIGIL_CONFIG"), "ruta al YAML de configuración")

	var (
		alg     string
		rsaBits int
		ttl     time.Duration
	)
	generate := &cobra.Command{
		Use:   "generate <appId>",
		Short: "Genera una clave nueva para una app",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			st, cfg, err := openStore(ctx, cfgPath)
			if err != nil {
				return err
			}
			defer st.Close()
			mgr := lifecycle.New(st, lifecycle.Options{
				GracePeriod: cfg.Lifecycle.GracePeriod,
				WarnHorizon: cfg.Lifecycle.WarnHorizon,
			})
			kp, err := mgr.GenerateKey(ctx, args[0], core.Algorithm(alg), sigcodec.GenerateOptions{RSABits: rsaBits}, ttl)
			if err != nil {
				return err
			}
			// la privada sólo se muestra acá, nunca se persiste
			printJSON(kp)
			return nil
		},
	}
	generate.Flags().StringVar(&alg, "alg", "RS256", "algoritmo: RS256|RS512|ES256|ES512")
	generate.Flags().IntVar(&rsaBits, "rsa-bits", 0, "tamaño RSA (default 2048)")
	generate.Flags().DurationVar(&ttl, "ttl", 0, "expiración de la clave (0 = nunca)")

	var (
		strategy string
		oldKeyID string
	)
	rotate := &cobra.Command{
		Use:   "rotate <appId>",
		Short: "Rota la clave activa de una app",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			st, cfg, err := openStore(ctx, cfgPath)
			if err != nil {
				return err
			}
			defer st.Close()
			mgr := lifecycle.New(st, lifecycle.Options{
				GracePeriod: cfg.Lifecycle.GracePeriod,
				WarnHorizon: cfg.Lifecycle.WarnHorizon,
			})
			plan, err := mgr.CreateRotationPlan(ctx, args[0], core.Algorithm(alg),
				sigcodec.GenerateOptions{RSABits: rsaBits}, time.Now().UTC(), lifecycle.RotationStrategy(strategy))
			if err != nil {
				return err
			}
			res, err := mgr.ExecuteRotation(ctx, plan, oldKeyID)
			if err != nil {
				return err
			}
			printJSON(res)
			fmt.Fprintln(os.Stderr, "guardá la privada nueva ahora: no se persiste")
			fmt.Println(res.NewPrivateKeyPEM)
			return nil
		},
	}
	rotate.Flags().StringVar(&alg, "alg", "RS256", "algoritmo de la clave nueva")
	rotate.Flags().IntVar(&rsaBits, "rsa-bits", 0, "tamaño RSA (default 2048)")
	rotate.Flags().StringVar(&strategy, "strategy", "gradual", "immediate|gradual|scheduled")
	rotate.Flags().StringVar(&oldKeyID, "old-key", "", "keyId a deprecar (default: la activa más nueva)")

	status := &cobra.Command{
		Use:   "status <appId>",
		Short: "Estado de salud de las claves de una app",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			st, cfg, err := openStore(ctx, cfgPath)
			if err != nil {
				return err
			}
			defer st.Close()
			mgr := lifecycle.New(st, lifecycle.Options{
				GracePeriod: cfg.Lifecycle.GracePeriod,
				WarnHorizon: cfg.Lifecycle.WarnHorizon,
			})
			statuses, err := mgr.GetAppKeyStatuses(ctx, args[0])
			if err != nil {
				return err
			}
			printJSON(statuses)
			return nil
		},
	}

	var cleanupApp string
	cleanup := &cobra.Command{
		Use:   "cleanup",
		Short: "Remueve claves expiradas (nunca deja una app sin claves)",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			st, cfg, err := openStore(ctx, cfgPath)
			if err != nil {
				return err
			}
			defer st.Close()
			mgr := lifecycle.New(st, lifecycle.Options{
				GracePeriod: cfg.Lifecycle.GracePeriod,
				WarnHorizon: cfg.Lifecycle.WarnHorizon,
			})
			report, err := mgr.CleanupExpiredKeys(ctx, cleanupApp)
			if err != nil {
				return err
			}
			printJSON(report)
			return nil
		},
	}
	cleanup.Flags().StringVar(&cleanupApp, "app", "", "limitar a una app (default: todas)")

	var (
		pkgKeyID string
		withPriv bool
		clientID string
	)
	pkgCmd := &cobra.Command{
		Use:   "package <appId>",
		Short: "Arma un paquete de distribución para una clave",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			st, cfg, err := openStore(ctx, cfgPath)
			if err != nil {
				return err
			}
			defer st.Close()

			app, err := st.GetAppConfig(ctx, args[0])
			if err != nil {
				return err
			}
			key := app.FindKey(pkgKeyID)
			if key == nil {
				return fmt.Errorf("keyId %q no existe en %q", pkgKeyID, args[0])
			}

			dist, err := distribute.New(distribute.Options{
				EncryptionKey: cfg.Distribution.EncryptionKey,
				Freshness:     cfg.Distribution.Freshness,
				AuditEnabled:  cfg.Distribution.AuditEnabled,
			})
			if err != nil {
				return err
			}
			var client *distribute.ClientInfo
			if clientID != "" {
				client = &distribute.ClientInfo{ClientID: clientID}
			}
			resp, err := dist.DistributeKeys(ctx, distribute.Request{
				AppID:             args[0],
				KeyPair:           key,
				IncludePrivateKey: withPriv,
				Timestamp:         time.Now().UTC(),
				Client:            client,
			})
			if err != nil {
				return err
			}
			printJSON(resp)
			return nil
		},
	}
	pkgCmd.Flags().StringVar(&pkgKeyID, "key", "default", "keyId a empaquetar")
	pkgCmd.Flags().BoolVar(&withPriv, "with-private", false, "incluir la privada cifrada")
	pkgCmd.Flags().StringVar(&clientID, "client", "", "clientId receptor")

	root.AddCommand(generate, rotate, status, cleanup, pkgCmd)

	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
