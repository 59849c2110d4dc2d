// Package repo provides postgres access for the payroll integration state:
// stored tokens, pending sessions and the two mapping tables
package repo

import (
	"context"
	"time"

	"overtid/internal/modkit/repokit"
	perr "overtid/internal/platform/errors"
	"overtid/internal/platform/store"
	"overtid/internal/services/api/danlon/domain"
)

// Repo defines the repository contract for the payroll integration
type Repo interface {
	UpsertToken(ctx context.Context, t domain.Token) error
	Token(ctx context.Context, userID, companyID string) (domain.Token, error)
	AnyToken(ctx context.Context, userID string) (domain.Token, error)
	DeleteToken(ctx context.Context, userID, companyID string) error

	InsertPending(ctx context.Context, p domain.PendingSession) error
	LatestPending(ctx context.Context, userID string, now time.Time) (domain.PendingSession, error)
	DeletePendingForUser(ctx context.Context, userID string) error

	PayCodes(ctx context.Context, userID, companyID string) (domain.PayCodeMapping, bool, error)
	SavePayCodes(ctx context.Context, userID, companyID string, m domain.PayCodeMapping) error

	EmployeeRows(ctx context.Context, userID, companyID string) ([]domain.EmployeeMappingRow, error)
	ReplaceEmployeeRows(ctx context.Context, userID, companyID string, rows []domain.EmployeeMappingRow) error
}

type (
	// PG implements the Repo interface using Postgres
	PG struct{}

	// queries holds the database query methods
	queries struct{ q repokit.Queryer }
)

// NewPG creates a new Postgres repository binder
func NewPG() repokit.Binder[Repo] { return PG{} }

// Bind binds a Postgres queryer to the Repo implementation
func (PG) Bind(q repokit.Queryer) Repo { return &queries{q: q} }

func (r *queries) UpsertToken(ctx context.Context, t domain.Token) error {
	const sql = `
insert into oauth_tokens (user_id, company_id, access_token, refresh_token, expires_at, company_name, created_at, updated_at)
values ($1, $2, $3, $4, $5, $6, now(), now())
on conflict (user_id, company_id) do update
set access_token = excluded.access_token,
    refresh_token = excluded.refresh_token,
    expires_at = excluded.expires_at,
    company_name = excluded.company_name,
    updated_at = now()
`
	err := store.ExecOne(ctx, r.q, sql, t.UserID, t.CompanyID, t.AccessToken, t.RefreshToken, t.ExpiresAt, t.CompanyName)
	return perr.FromPostgres(err, "upsert token")
}

func scanToken(row store.Row) (domain.Token, error) {
	var t domain.Token
	err := row.Scan(
		&t.UserID,
		&t.CompanyID,
		&t.AccessToken,
		&t.RefreshToken,
		&t.ExpiresAt,
		&t.CompanyName,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	return t, err
}

func (r *queries) Token(ctx context.Context, userID, companyID string) (domain.Token, error) {
	const sql = `
select user_id, company_id, access_token, refresh_token, expires_at, company_name, created_at, updated_at
from oauth_tokens
where user_id = $1 and company_id = $2
`
	return store.One(ctx, r.q, scanToken, sql, userID, companyID)
}

// AnyToken returns the most recently updated token for the user, for status
// calls that do not name a company
func (r *queries) AnyToken(ctx context.Context, userID string) (domain.Token, error) {
	const sql = `
select user_id, company_id, access_token, refresh_token, expires_at, company_name, created_at, updated_at
from oauth_tokens
where user_id = $1
order by updated_at desc
limit 1
`
	return store.One(ctx, r.q, scanToken, sql, userID)
}

func (r *queries) DeleteToken(ctx context.Context, userID, companyID string) error {
	_, err := store.Exec(ctx, r.q, `delete from oauth_tokens where user_id = $1 and company_id = $2`, userID, companyID)
	return perr.FromPostgres(err, "delete token")
}

func (r *queries) InsertPending(ctx context.Context, p domain.PendingSession) error {
	const sql = `
insert into pending_sessions (session_id, user_id, select_company_url, temp_access_token, temp_refresh_token, created_at, expires_at)
values ($1, $2, $3, $4, $5, now(), $6)
`
	err := store.ExecOne(ctx, r.q, sql, p.SessionID, p.UserID, p.SelectCompanyURL, p.TempAccessToken, p.TempRefreshToken, p.ExpiresAt)
	return perr.FromPostgres(err, "insert pending session")
}

// LatestPending returns the newest unexpired session for the user and lazily
// drops anything already past its TTL
func (r *queries) LatestPending(ctx context.Context, userID string, now time.Time) (domain.PendingSession, error) {
	if _, err := store.Exec(ctx, r.q, `delete from pending_sessions where expires_at < $1`, now); err != nil {
		return domain.PendingSession{}, perr.FromPostgres(err, "expire pending sessions")
	}

	const sql = `
select session_id, user_id, select_company_url, temp_access_token, temp_refresh_token, created_at, expires_at
from pending_sessions
where user_id = $1 and expires_at >= $2
order by created_at desc
limit 1
`
	return store.One(ctx, r.q, func(row store.Row) (domain.PendingSession, error) {
		var p domain.PendingSession
		err := row.Scan(
			&p.SessionID,
			&p.UserID,
			&p.SelectCompanyURL,
			&p.TempAccessToken,
			&p.TempRefreshToken,
			&p.CreatedAt,
			&p.ExpiresAt,
		)
		return p, err
	}, sql, userID, now)
}

func (r *queries) DeletePendingForUser(ctx context.Context, userID string) error {
	_, err := store.Exec(ctx, r.q, `delete from pending_sessions where user_id = $1`, userID)
	return perr.FromPostgres(err, "delete pending sessions")
}

// PayCodes returns the stored mapping; the bool reports whether a row exists
func (r *queries) PayCodes(ctx context.Context, userID, companyID string) (domain.PayCodeMapping, bool, error) {
	const sql = `
select normal_code, overtime_code, callout_code
from paycode_mappings
where user_id = $1 and company_id = $2
`
	m, err := store.One(ctx, r.q, func(row store.Row) (domain.PayCodeMapping, error) {
		var m domain.PayCodeMapping
		err := row.Scan(&m.NormalCode, &m.OvertimeCode, &m.CallOutCode)
		return m, err
	}, sql, userID, companyID)
	if err != nil {
		if perr.IsCode(err, perr.ErrorCodeNotFound) {
			return domain.PayCodeMapping{}, false, nil
		}
		return domain.PayCodeMapping{}, false, err
	}
	return m, true, nil
}

func (r *queries) SavePayCodes(ctx context.Context, userID, companyID string, m domain.PayCodeMapping) error {
	const sql = `
insert into paycode_mappings (user_id, company_id, normal_code, overtime_code, callout_code, created_at, updated_at)
values ($1, $2, $3, $4, $5, now(), now())
on conflict (user_id, company_id) do update
set normal_code = excluded.normal_code,
    overtime_code = excluded.overtime_code,
    callout_code = excluded.callout_code,
    updated_at = now()
`
	err := store.ExecOne(ctx, r.q, sql, userID, companyID, m.NormalCode, m.OvertimeCode, m.CallOutCode)
	return perr.FromPostgres(err, "save pay code mapping")
}

func (r *queries) EmployeeRows(ctx context.Context, userID, companyID string) ([]domain.EmployeeMappingRow, error) {
	const sql = `
select coalesce(ftz_employee_name, ''), danlon_employee_id, danlon_employee_name, is_fallback
from employee_mappings
where user_id = $1 and company_id = $2
order by is_fallback, ftz_employee_name
`
	return store.Many(ctx, r.q, func(row store.Row) (domain.EmployeeMappingRow, error) {
		var m domain.EmployeeMappingRow
		err := row.Scan(&m.FtzEmployeeName, &m.DanlonEmployeeID, &m.DanlonEmployeeName, &m.IsFallback)
		return m, err
	}, sql, userID, companyID)
}

// ReplaceEmployeeRows swaps the whole mapping set in one statement pair; the
// caller runs it inside a transaction
func (r *queries) ReplaceEmployeeRows(ctx context.Context, userID, companyID string, rows []domain.EmployeeMappingRow) error {
	if _, err := store.Exec(ctx, r.q, `delete from employee_mappings where user_id = $1 and company_id = $2`, userID, companyID); err != nil {
		return perr.FromPostgres(err, "clear employee mapping")
	}

	const sql = `
insert into employee_mappings (user_id, company_id, ftz_employee_name, danlon_employee_id, danlon_employee_name, is_fallback, created_at)
values ($1, $2, nullif($3, ''), $4, $5, $6, now())
`
	for _, m := range rows {
		if err := store.ExecOne(ctx, r.q, sql, userID, companyID, m.FtzEmployeeName, m.DanlonEmployeeID, m.DanlonEmployeeName, m.IsFallback); err != nil {
			return perr.FromPostgres(err, "insert employee mapping row")
		}
	}
	return nil
}
