// Package api provides the HTTP API for the application
package api

import (
	"overtid/internal/platform/config"
	"overtid/internal/platform/logger"
	phttp "overtid/internal/platform/net/http"
	"overtid/internal/platform/store"

	"overtid/internal/adapters/ingest/ftzapi"
	"overtid/internal/modkit"
	"overtid/internal/modkit/httpkit"
	"overtid/internal/modkit/module"
	"overtid/internal/modkit/swaggerkit"

	danlonmod "overtid/internal/services/api/danlon/module"
	metamod "overtid/internal/services/api/meta/module"
	previewmod "overtid/internal/services/api/preview/module"
	previewsvc "overtid/internal/services/api/preview/service"
)

// Options are the API options
type Options struct {
	Config         config.Conf
	Store          *store.Store
	Logger         *logger.Logger
	EnableSwagger  bool
	EnableProfiler bool
}

// Mount mounts the API service onto the given router
func Mount(r phttp.Router, opt Options) {
	// shared deps for modules
	deps := modkit.Deps{
		Cfg: opt.Config,
		PG:  opt.Store.PG,
	}

	// Preview owns the in-memory sessions; the payroll module reads computed
	// outputs through its Sessions port, so preview is constructed first
	preview := previewmod.New(
		deps,
		modkit.WithPorts(previewmod.Ports{
			Fetcher: ftzFetcherFromConfig(deps.Cfg),
		}),
	)
	sessions := module.MustPortsOf[previewmod.Provided](preview).Sessions

	danlon := danlonmod.New(
		deps,
		modkit.WithPorts(danlonmod.Ports{
			Sessions: sessions,
			Options:  danlonmod.FromConfig(deps.Cfg),
		}),
	)

	mods := []module.Module{
		metamod.New(deps),
		preview,
		danlon,
	}

	// The upload and payroll endpoints are fixed wire contracts, so modules
	// mount at their own prefixes rather than under a versioned tree
	swaggerkit.Mount(r, opt.EnableSwagger)
	phttp.MountProfiler(r, "/debug", opt.EnableProfiler)

	for _, mw := range httpkit.CommonStack() {
		r.Use(mw)
	}
	for _, m := range mods {
		// register each module's ports under its own name (for cross-module lookups)
		module.Register(m.Name(), m.Ports())

		// mount module routes under its Prefix()
		m.MountRoutes(r)
	}
}

// ftzFetcherFromConfig builds the upstream registration client from the FTZ_
// keyspace; without an auth key the fetch endpoint stays disabled
func ftzFetcherFromConfig(cfg config.Conf) previewsvc.Fetcher {
	f := cfg.Prefix("FTZ_")
	authKey := f.MayString("AUTH_KEY", "")
	if authKey == "" {
		return nil
	}
	return ftzapi.NewClient(ftzapi.Options{
		CoreBaseURL:     f.MayString("CORE_BASE_URL", ""),
		TimeBaseURL:     f.MayString("TIME_BASE_URL", ""),
		AuthKey:         authKey,
		SubscriptionKey: f.MayString("SUBSCRIPTION_KEY", ""),
	})
}
