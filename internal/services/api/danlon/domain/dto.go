// Package domain holds DTOs for the payroll integration http and service
// contracts
package domain

import "time"

// ConnectionStatus reports whether a (user, company) pair holds a live token
type ConnectionStatus struct {
	Connected   bool   `json:"connected"`
	CompanyID   string `json:"company_id,omitempty"`
	CompanyName string `json:"company_name,omitempty"`
	ExpiresAt   string `json:"expires_at,omitempty"`
	CreatedAt   string `json:"created_at,omitempty"`
}

// PendingInfo describes an authorization waiting for company selection
type PendingInfo struct {
	Pending          bool   `json:"pending"`
	SelectCompanyURL string `json:"select_company_url,omitempty"`
	ExpiresAt        string `json:"expires_at,omitempty"`
}

// CompleteInput finishes a connection manually. Either Code alone, or the
// token pair with a company id, must be supplied
type CompleteInput struct {
	UserID       string `json:"user_id" validate:"required" example:"default"`
	Code         string `json:"code,omitempty"`
	AccessToken  string `json:"access_token,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
	CompanyID    string `json:"company_id,omitempty"`
	CompanyName  string `json:"company_name,omitempty"`
}

// PayCodeMapping selects which payroll codes receive the three pay kinds
type PayCodeMapping struct {
	NormalCode   string `json:"normal_code" validate:"required" example:"T1"`
	OvertimeCode string `json:"overtime_code" validate:"required" example:"T2"`
	CallOutCode  string `json:"callout_code" validate:"required" example:"T3"`
}

// DefaultPayCodes is the mapping used until the user saves one
var DefaultPayCodes = PayCodeMapping{NormalCode: "T1", OvertimeCode: "T2", CallOutCode: "T3"}

// EmployeeMappingRow links a worker name from the registration files to a
// payroll employee; a fallback row catches every unmatched name
type EmployeeMappingRow struct {
	FtzEmployeeName    string `json:"ftz_employee_name,omitempty"`
	DanlonEmployeeID   string `json:"danlon_employee_id" validate:"required"`
	DanlonEmployeeName string `json:"danlon_employee_name,omitempty"`
	IsFallback         bool   `json:"is_fallback"`
}

// EmployeeMapping is the full mapping set for a (user, company)
type EmployeeMapping struct {
	Rows []EmployeeMappingRow `json:"rows" validate:"dive"`
}

// Employee is a payroll employee as listed by the downstream
type Employee struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email,omitempty"`
	DomainID string `json:"domain_id,omitempty"`
	Deleted  bool   `json:"deleted,omitempty"`
}

// PayPartMeta lists the code vocabularies the mapping UI offers
type PayPartMeta struct {
	PayCodes     []CodeInfo `json:"pay_codes"`
	AbsenceCodes []CodeInfo `json:"absence_codes"`
	HourTypes    []CodeInfo `json:"hour_types"`
}

// CodeInfo is one selectable code
type CodeInfo struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// CreatedPayPart echoes one successfully submitted pay part
type CreatedPayPart struct {
	Worker     string  `json:"worker"`
	EmployeeID string  `json:"employee_id"`
	Code       string  `json:"code"`
	Date       string  `json:"date"`
	Hours      float64 `json:"hours,omitempty"`
	Units      int     `json:"units,omitempty"`
	Amount     int     `json:"amount,omitempty"`
}

// SkippedItem is one row the sync could not submit
type SkippedItem struct {
	Worker string `json:"worker"`
	Date   string `json:"date"`
	Reason string `json:"reason"`
}

// SyncSummary counts the outcome classes
type SyncSummary struct {
	Created int `json:"created"`
	Skipped int `json:"skipped"`
	Errors  int `json:"errors"`
}

// SyncResult is the structured outcome of one sync run; per-row failures do
// not fail the run
type SyncResult struct {
	Success          bool             `json:"success"`
	Summary          SyncSummary      `json:"summary"`
	CreatedPayParts  []CreatedPayPart `json:"created_payparts"`
	SkippedItems     []SkippedItem    `json:"skipped_items"`
	UnmatchedWorkers []string         `json:"unmatched_workers"`
}

// Token is a stored OAuth credential pair for (user, company)
type Token struct {
	UserID       string
	CompanyID    string
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	CompanyName  string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// PendingSession is the short-lived state between the first token exchange
// and company selection
type PendingSession struct {
	SessionID        string
	UserID           string
	SelectCompanyURL string
	TempAccessToken  string
	TempRefreshToken string
	CreatedAt        time.Time
	ExpiresAt        time.Time
}
