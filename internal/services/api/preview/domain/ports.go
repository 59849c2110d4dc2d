package domain

import "context"

// ServicePort defines the service contract for preview
type ServicePort interface {
	Preview(ctx context.Context, files [][]byte, employeeType string) (PreviewPayload, error)
	Export(ctx context.Context, sessionID string, in ExportInput) (ExportFile, error)
	MarkAbsence(ctx context.Context, sessionID string, selections map[string]string) (PreviewPayload, error)
	FetchUpstream(ctx context.Context, in FetchInput) (PreviewPayload, error)
}
