package module

import (
	"time"

	"overtid/internal/platform/config"
	danlonsvc "overtid/internal/services/api/danlon/service"
)

// Options bundles the config-driven settings of the payroll module
type Options struct {
	Service     danlonsvc.Options
	DefaultUser string
}

// FromConfig reads the payroll settings from the DANLON_ keyspace. The demo
// environment is the default so a fresh install never talks to production
func FromConfig(cfg config.Conf) Options {
	d := cfg.Prefix("DANLON_")
	return Options{
		Service: danlonsvc.Options{
			Environment:  d.MayEnum("ENV", "demo", "demo", "prod"),
			ClientID:     d.MayString("CLIENT_ID", "partner-showcase"),
			ClientSecret: d.MayString("CLIENT_SECRET", ""),
			AppBaseURL:   d.MayString("APP_BASE_URL", "http://localhost:4000"),
			Timeout:      d.MayDuration("HTTP_TIMEOUT", 30*time.Second),
		},
		DefaultUser: d.MayString("DEFAULT_USER", "default"),
	}
}
