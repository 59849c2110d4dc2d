// Package module wires the payroll integration into the API using modkit
package module

import (
	"net/http"

	modkit "overtid/internal/modkit"
	"overtid/internal/modkit/httpkit"
	str "overtid/internal/platform/strings"
	danlonhttp "overtid/internal/services/api/danlon/http"
	"overtid/internal/services/api/danlon/repo"
	danlonsvc "overtid/internal/services/api/danlon/service"
)

// Module implements the modkit.Module interface
type Module struct {
	deps   modkit.Deps
	name   string
	prefix string

	mws       []func(http.Handler) http.Handler
	ports     any
	swaggerOn bool

	subrouter func(httpkit.Router) httpkit.Router
	register  func(httpkit.Router)

	svc danlonsvc.Service
}

// Ports carries the injectable dependencies for the payroll module
type Ports struct {
	Sessions danlonsvc.SessionReader
	Options  Options
}

// New constructs the payroll module with the provided dependencies and options
func New(deps modkit.Deps, opts ...modkit.Option) modkit.Module {
	b := modkit.Build(append([]modkit.Option{modkit.WithName("danlon"), modkit.WithPrefix("/danlon")}, opts...)...)

	var (
		sessions danlonsvc.SessionReader
		o        Options
	)
	if p, ok := b.Ports.(Ports); ok {
		sessions = p.Sessions
		o = p.Options
	}
	svc := danlonsvc.New(deps.PG, repo.NewPG(), sessions, o.Service)

	m := &Module{
		deps:      deps,
		name:      b.Name,
		prefix:    b.Prefix,
		mws:       b.Mw,
		swaggerOn: b.SwaggerOn,
		subrouter: b.Subrouter,
		svc:       svc,
	}
	m.ports = Provided{Service: svc}

	external := b.Register
	m.register = func(r httpkit.Router) {
		danlonhttp.Register(r, m.svc, o.DefaultUser)
		if external != nil {
			external(r)
		}
	}
	return m
}

// MountRoutes implements the modkit.Module interface
func (m *Module) MountRoutes(r httpkit.Router) {
	r.Route(m.prefix, func(rr httpkit.Router) {
		for _, mw := range m.mws {
			rr.Use(mw)
		}
		if m.subrouter != nil {
			rr = m.subrouter(rr)
		}
		if m.register != nil {
			m.register(rr)
		}
	})
}

// Name returns the module name
func (m *Module) Name() string { return str.MustString(m.name, "module name") }

// Prefix returns the module route prefix
func (m *Module) Prefix() string { return str.MustPrefix(m.prefix) }

// Middlewares returns the module middlewares
func (m *Module) Middlewares() []func(http.Handler) http.Handler { return m.mws }
