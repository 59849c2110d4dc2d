package repo

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	perr "overtid/internal/platform/errors"
	"overtid/internal/platform/store"
	"overtid/internal/services/api/danlon/domain"
)

type cmdTag string

func (c cmdTag) String() string      { return string(c) }
func (c cmdTag) RowsAffected() int64 { return 0 }

type fakeRows struct {
	cols   []string
	data   [][]any
	idx    int
	err    error
	closed bool
}

func newRows(cols []string, data [][]any) *fakeRows {
	return &fakeRows{cols: cols, data: data, idx: -1}
}

func (r *fakeRows) Columns() []string { return r.cols }
func (r *fakeRows) Next() bool {
	if r.err != nil {
		return false
	}
	r.idx++
	return r.idx >= 0 && r.idx < len(r.data)
}

func (r *fakeRows) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	if r.idx < 0 || r.idx >= len(r.data) {
		return errors.New("scan out of bounds")
	}
	row := r.data[r.idx]
	if len(dest) != len(row) {
		return errors.New("dest len mismatch")
	}
	for i := range dest {
		dv := reflect.ValueOf(dest[i])
		if dv.Kind() != reflect.Pointer || !dv.Elem().CanSet() {
			return errors.New("dest not settable")
		}
		val := reflect.ValueOf(row[i])
		if val.IsValid() && val.Type().AssignableTo(dv.Elem().Type()) {
			dv.Elem().Set(val)
			continue
		}
		dv.Elem().Set(reflect.Zero(dv.Elem().Type()))
	}
	return nil
}
func (r *fakeRows) Err() error { return r.err }
func (r *fakeRows) Close()     { r.closed = true }

type fakeQueryer struct {
	execSQLs []string
	execTag  store.CommandTag
	execErr  error

	queryRows *fakeRows
	queryErr  error
}

func (f *fakeQueryer) Exec(ctx context.Context, sql string, args ...any) (store.CommandTag, error) {
	f.execSQLs = append(f.execSQLs, sql)
	if f.execTag == nil {
		return cmdTag("INSERT 0 1"), f.execErr
	}
	return f.execTag, f.execErr
}

func (f *fakeQueryer) Query(ctx context.Context, sql string, args ...any) (store.Rows, error) {
	return f.queryRows, f.queryErr
}

func (f *fakeQueryer) QueryRow(ctx context.Context, sql string, args ...any) store.Row {
	return &singleRow{rows: f.queryRows}
}

type singleRow struct{ rows *fakeRows }

func (r *singleRow) Scan(dest ...any) error {
	if !r.rows.Next() {
		return errors.New("no rows")
	}
	return r.rows.Scan(dest...)
}

var tokenCols = []string{
	"user_id", "company_id", "access_token", "refresh_token",
	"expires_at", "company_name", "created_at", "updated_at",
}

func TestToken_ScansStoredCredential(t *testing.T) {
	t.Parallel()

	exp := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	f := &fakeQueryer{queryRows: newRows(tokenCols, [][]any{
		{"default", "co-1", "at", "rt", exp, "Mekanik ApS", exp, exp},
	})}

	got, err := NewPG().Bind(f).Token(context.Background(), "default", "co-1")
	if err != nil {
		t.Fatalf("Token err: %v", err)
	}
	want := domain.Token{
		UserID: "default", CompanyID: "co-1",
		AccessToken: "at", RefreshToken: "rt",
		ExpiresAt: exp, CompanyName: "Mekanik ApS",
		CreatedAt: exp, UpdatedAt: exp,
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Token %+v want %+v", got, want)
	}
	if !f.queryRows.closed {
		t.Fatalf("rows not closed")
	}
}

func TestToken_MissReportsNotFound(t *testing.T) {
	t.Parallel()

	f := &fakeQueryer{queryRows: newRows(tokenCols, nil)}
	_, err := NewPG().Bind(f).Token(context.Background(), "default", "co-1")
	if !errors.Is(err, perr.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if !perr.IsCode(err, perr.ErrorCodeNotFound) {
		t.Fatalf("expected not-found code, got %v", err)
	}
}

func TestUpsertToken_MapsDuplicateKey(t *testing.T) {
	t.Parallel()

	f := &fakeQueryer{execErr: &pgconn.PgError{Code: "23505", ConstraintName: "oauth_tokens_pkey"}}
	err := NewPG().Bind(f).UpsertToken(context.Background(), domain.Token{UserID: "default", CompanyID: "co-1"})
	if err == nil {
		t.Fatalf("expected error")
	}
	if !perr.IsCode(err, perr.ErrorCodeDuplicateKey) {
		t.Fatalf("expected duplicate-key code, got %v", err)
	}
}

func TestPayCodes_NoRowIsNotAnError(t *testing.T) {
	t.Parallel()

	f := &fakeQueryer{queryRows: newRows([]string{"normal_code", "overtime_code", "callout_code"}, nil)}
	m, found, err := NewPG().Bind(f).PayCodes(context.Background(), "default", "co-1")
	if err != nil {
		t.Fatalf("PayCodes err: %v", err)
	}
	if found {
		t.Fatalf("expected found=false")
	}
	if m != (domain.PayCodeMapping{}) {
		t.Fatalf("expected zero mapping, got %+v", m)
	}
}

func TestPayCodes_ScansStoredMapping(t *testing.T) {
	t.Parallel()

	f := &fakeQueryer{queryRows: newRows([]string{"normal_code", "overtime_code", "callout_code"}, [][]any{
		{"T1", "T2", "T3"},
	})}
	m, found, err := NewPG().Bind(f).PayCodes(context.Background(), "default", "co-1")
	if err != nil {
		t.Fatalf("PayCodes err: %v", err)
	}
	if !found {
		t.Fatalf("expected found=true")
	}
	want := domain.PayCodeMapping{NormalCode: "T1", OvertimeCode: "T2", CallOutCode: "T3"}
	if m != want {
		t.Fatalf("PayCodes %+v want %+v", m, want)
	}
}

func TestEmployeeRows_ScansAllRows(t *testing.T) {
	t.Parallel()

	cols := []string{"ftz_employee_name", "danlon_employee_id", "danlon_employee_name", "is_fallback"}
	f := &fakeQueryer{queryRows: newRows(cols, [][]any{
		{"Jens Hansen", "emp-1", "Jens Hansen", false},
		{"", "emp-9", "Reservemedarbejder", true},
	})}

	got, err := NewPG().Bind(f).EmployeeRows(context.Background(), "default", "co-1")
	if err != nil {
		t.Fatalf("EmployeeRows err: %v", err)
	}
	want := []domain.EmployeeMappingRow{
		{FtzEmployeeName: "Jens Hansen", DanlonEmployeeID: "emp-1", DanlonEmployeeName: "Jens Hansen"},
		{DanlonEmployeeID: "emp-9", DanlonEmployeeName: "Reservemedarbejder", IsFallback: true},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("EmployeeRows %+v want %+v", got, want)
	}
	if !f.queryRows.closed {
		t.Fatalf("rows not closed")
	}
}

func TestReplaceEmployeeRows_DeletesThenInserts(t *testing.T) {
	t.Parallel()

	f := &fakeQueryer{execTag: cmdTag("INSERT 0 1")}
	rows := []domain.EmployeeMappingRow{
		{FtzEmployeeName: "Jens Hansen", DanlonEmployeeID: "emp-1"},
		{DanlonEmployeeID: "emp-9", IsFallback: true},
	}
	if err := NewPG().Bind(f).ReplaceEmployeeRows(context.Background(), "default", "co-1", rows); err != nil {
		t.Fatalf("ReplaceEmployeeRows err: %v", err)
	}
	if len(f.execSQLs) != 3 {
		t.Fatalf("exec count %d want 3 (delete + 2 inserts)", len(f.execSQLs))
	}
}

func TestLatestPending_ExpiresBeforeSelecting(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	cols := []string{
		"session_id", "user_id", "select_company_url",
		"temp_access_token", "temp_refresh_token", "created_at", "expires_at",
	}
	f := &fakeQueryer{queryRows: newRows(cols, [][]any{
		{"sess-1", "default", "https://example.test/select", "ta", "tr", now, now.Add(10 * time.Minute)},
	})}

	p, err := NewPG().Bind(f).LatestPending(context.Background(), "default", now)
	if err != nil {
		t.Fatalf("LatestPending err: %v", err)
	}
	if p.SessionID != "sess-1" || p.SelectCompanyURL != "https://example.test/select" {
		t.Fatalf("LatestPending %+v", p)
	}
	if len(f.execSQLs) != 1 {
		t.Fatalf("expected one expiry delete before the select, got %d", len(f.execSQLs))
	}
}
