package domain

import "context"

// ServicePort defines the service contract for the payroll integration
type ServicePort interface {
	AuthorizeURL(returnURI string) string
	Callback(ctx context.Context, userID, code, returnURI string) (redirect string, err error)
	Success(ctx context.Context, userID, code, companyIDB64, returnURI string) (redirect string, err error)
	Pending(ctx context.Context, userID string) (PendingInfo, error)
	Complete(ctx context.Context, in CompleteInput) (ConnectionStatus, error)
	Disconnect(ctx context.Context, userID, companyID string) error
	Status(ctx context.Context, userID, companyID string) (ConnectionStatus, error)

	PayCodeMapping(ctx context.Context, userID, companyID string) (PayCodeMapping, error)
	SavePayCodeMapping(ctx context.Context, userID, companyID string, m PayCodeMapping) error
	EmployeeMapping(ctx context.Context, userID, companyID string) (EmployeeMapping, error)
	SaveEmployeeMapping(ctx context.Context, userID, companyID string, m EmployeeMapping) error

	Employees(ctx context.Context, userID, companyID string, includeDeleted bool) ([]Employee, error)
	PayPartMeta(ctx context.Context, userID, companyID string) (PayPartMeta, error)

	Sync(ctx context.Context, sessionID, userID, companyID string) (SyncResult, error)
}
