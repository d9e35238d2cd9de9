// Package server arma el handler HTTP del broker con todas sus dependencias.
package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/dropDatabas3/tokenbooth/internal/cache"
	cachememory "github.com/dropDatabas3/tokenbooth/internal/cache/memory"
	cacheredis "github.com/dropDatabas3/tokenbooth/internal/cache/redis"
	"github.com/dropDatabas3/tokenbooth/internal/config"
	"github.com/dropDatabas3/tokenbooth/internal/federation"
	httpx "github.com/dropDatabas3/tokenbooth/internal/http"
	"github.com/dropDatabas3/tokenbooth/internal/http/controllers"
	mw "github.com/dropDatabas3/tokenbooth/internal/http/middlewares"
	"github.com/dropDatabas3/tokenbooth/internal/http/router"
	"github.com/dropDatabas3/tokenbooth/internal/identity/acs"
	"github.com/dropDatabas3/tokenbooth/internal/issuance"
	"github.com/dropDatabas3/tokenbooth/internal/observability/logger"
	"github.com/dropDatabas3/tokenbooth/internal/store"
	storefs "github.com/dropDatabas3/tokenbooth/internal/store/fs"
	storepg "github.com/dropDatabas3/tokenbooth/internal/store/pg"
)

// Build construye el handler completo a partir de la configuración.
// Retorna también un cleanup para cerrar el store.
func Build(ctx context.Context, cfg *config.Config) (http.Handler, func() error, error) {
	// 1. Store, con el lock de mutación compartido por emisión y federación
	raw, err := buildStore(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	db := store.NewGuard(raw)
	cleanup := func() error { return db.Close() }

	// 2. Provider client
	broker, err := acs.New(cfg.Provider.ConnectionString)
	if err != nil {
		_ = cleanup()
		return nil, nil, fmt.Errorf("provider client: %w", err)
	}

	// 3. Cache para sesiones de federación
	sessionCache := buildCache(cfg)
	sessions := federation.NewSessionStore(sessionCache, cfg.SessionTTL())

	// 4. Servicios
	issuer := issuance.New(db, broker, cfg.Provider.TokenScopes)
	aad := federation.NewAAD(cfg.Federation.ClientID, cfg.Federation.ClientSecret, cfg.Federation.TenantID)
	flow := federation.NewController(aad, broker, sessions, db, cfg.Federation.RedirectURI, cfg.Federation.Scopes)

	// 5. Métricas
	metricsHandler := httpx.RegisterMetrics(prometheus.DefaultRegisterer)

	// 6. Controllers y rutas
	h := router.New(router.Deps{
		Token:      controllers.NewTokenController(issuer, httpx.ObserveIssuanceDecision),
		Users:      controllers.NewUsersController(issuer),
		Federation: controllers.NewFederationController(flow, httpx.ObserveFederationFlow),
		Health:     controllers.NewHealthController(db),
		Metrics:    metricsHandler,
	})

	// 7. Middlewares globales (el primero es el más externo)
	handler := mw.Chain(h,
		mw.WithRequestID(),
		mw.WithLogging(),
		httpx.WithMetrics(),
		mw.WithCORS(cfg.Server.CORSAllowedOrigins),
		mw.WithRecover(),
	)

	logger.L().Info("broker wired",
		logger.Driver(cfg.Storage.Driver),
		logger.String("cache", cfg.Cache.Kind),
		logger.String("addr", cfg.Server.Addr),
	)

	return handler, cleanup, nil
}

func buildStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	switch cfg.Storage.Driver {
	case "pg":
		return storepg.New(ctx, cfg.Storage.Postgres.DSN)
	case "fs", "":
		return storefs.New(cfg.Storage.FS.Path)
	default:
		return nil, fmt.Errorf("storage driver desconocido: %s", cfg.Storage.Driver)
	}
}

func buildCache(cfg *config.Config) cache.Cache {
	if cfg.Cache.Kind == "redis" {
		return cacheredis.New(cfg.Cache.Redis.Addr, cfg.Cache.Redis.DB, cfg.Cache.Redis.Prefix)
	}
	return cachememory.New(cfg.MemoryTTL())
}
