package ftzapi

import (
	"fmt"
	"strings"
	"time"
)

// authResponse is the token exchange reply. Expiry arrives either as a
// relative expiresIn (seconds) or an absolute validTo timestamp
type authResponse struct {
	Token     string `json:"token"`
	ExpiresIn int    `json:"expiresIn"`
	ValidTo   string `json:"validTo"`
}

func (a authResponse) expiresAt(now time.Time) time.Time {
	if a.ExpiresIn > 0 {
		return now.Add(time.Duration(a.ExpiresIn) * time.Second)
	}
	if a.ValidTo != "" {
		if t, err := time.Parse(time.RFC3339, a.ValidTo); err == nil {
			return t
		}
	}
	return now.Add(time.Hour)
}

// Employee is one row from the employee search
type Employee struct {
	EmployeeID int    `json:"employeeId"`
	Firstname  string `json:"firstname"`
	Lastname   string `json:"lastname"`
	Deleted    bool   `json:"deleted"`
}

// FullName joins first and last name, falling back to the numeric id when
// the upstream row carries neither
func (e Employee) FullName() string {
	first := strings.TrimSpace(e.Firstname)
	last := strings.TrimSpace(e.Lastname)
	switch {
	case first != "" && last != "":
		return first + " " + last
	case first != "":
		return first
	case last != "":
		return last
	default:
		return fmt.Sprintf("Employee %d", e.EmployeeID)
	}
}

// TimeRegistration is one completed registration from the search endpoint.
// Timestamps are UTC
type TimeRegistration struct {
	StartTimeUtc       time.Time `json:"startTimeUtc"`
	EndTimeUtc         time.Time `json:"endTimeUtc"`
	CaseNo             int       `json:"caseNo"`
	ElapsedHours       float64   `json:"elapsedHours"`
	RegistrationTypeID int       `json:"registrationTypeId"`
}

type searchResponse struct {
	Results    []TimeRegistration `json:"results"`
	TotalCount int                `json:"totalCount"`
}
