package module

import (
	previewdom "overtid/internal/services/api/preview/domain"
	previewsvc "overtid/internal/services/api/preview/service"
)

// Ports returns the module ports
func (m *Module) Ports() any { return m.ports }

// Provided are the ports preview registers for cross module use; the payroll
// sync module reads cached session outputs through Sessions
type Provided struct {
	Service  previewdom.ServicePort
	Sessions previewsvc.SessionReader
}
