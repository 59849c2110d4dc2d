package module

import (
	danlondom "overtid/internal/services/api/danlon/domain"
)

// Ports returns the module ports
func (m *Module) Ports() any { return m.ports }

// Provided are the ports the payroll module registers for cross module use
type Provided struct {
	Service danlondom.ServicePort
}
