package service

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"overtid/internal/core/timereg"
	"overtid/internal/modkit/repokit"
	perr "overtid/internal/platform/errors"
	"overtid/internal/platform/logger"
	"overtid/internal/platform/store"
	"overtid/internal/services/api/danlon/domain"
	danrepo "overtid/internal/services/api/danlon/repo"
)

// fakeRepo is an in-memory Repo for service tests
type fakeRepo struct {
	tokens   map[string]domain.Token
	pending  []domain.PendingSession
	payCodes map[string]domain.PayCodeMapping
	rows     map[string][]domain.EmployeeMappingRow
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		tokens:   map[string]domain.Token{},
		payCodes: map[string]domain.PayCodeMapping{},
		rows:     map[string][]domain.EmployeeMappingRow{},
	}
}

func pairKey(userID, companyID string) string { return userID + "/" + companyID }

func (f *fakeRepo) UpsertToken(_ context.Context, t domain.Token) error {
	f.tokens[pairKey(t.UserID, t.CompanyID)] = t
	return nil
}

func (f *fakeRepo) Token(_ context.Context, userID, companyID string) (domain.Token, error) {
	t, ok := f.tokens[pairKey(userID, companyID)]
	if !ok {
		return domain.Token{}, perr.ErrNotFound
	}
	return t, nil
}

func (f *fakeRepo) AnyToken(_ context.Context, userID string) (domain.Token, error) {
	for _, t := range f.tokens {
		if t.UserID == userID {
			return t, nil
		}
	}
	return domain.Token{}, perr.ErrNotFound
}

func (f *fakeRepo) DeleteToken(_ context.Context, userID, companyID string) error {
	delete(f.tokens, pairKey(userID, companyID))
	return nil
}

func (f *fakeRepo) InsertPending(_ context.Context, p domain.PendingSession) error {
	f.pending = append(f.pending, p)
	return nil
}

func (f *fakeRepo) LatestPending(_ context.Context, userID string, now time.Time) (domain.PendingSession, error) {
	for i := len(f.pending) - 1; i >= 0; i-- {
		p := f.pending[i]
		if p.UserID == userID && !p.ExpiresAt.Before(now) {
			return p, nil
		}
	}
	return domain.PendingSession{}, perr.ErrNotFound
}

func (f *fakeRepo) DeletePendingForUser(_ context.Context, userID string) error {
	kept := f.pending[:0]
	for _, p := range f.pending {
		if p.UserID != userID {
			kept = append(kept, p)
		}
	}
	f.pending = kept
	return nil
}

func (f *fakeRepo) PayCodes(_ context.Context, userID, companyID string) (domain.PayCodeMapping, bool, error) {
	m, ok := f.payCodes[pairKey(userID, companyID)]
	return m, ok, nil
}

func (f *fakeRepo) SavePayCodes(_ context.Context, userID, companyID string, m domain.PayCodeMapping) error {
	f.payCodes[pairKey(userID, companyID)] = m
	return nil
}

func (f *fakeRepo) EmployeeRows(_ context.Context, userID, companyID string) ([]domain.EmployeeMappingRow, error) {
	return f.rows[pairKey(userID, companyID)], nil
}

func (f *fakeRepo) ReplaceEmployeeRows(_ context.Context, userID, companyID string, rows []domain.EmployeeMappingRow) error {
	f.rows[pairKey(userID, companyID)] = rows
	return nil
}

// fakeTx satisfies repokit.TxRunner; Tx records the context user id and runs
// fn against itself
type fakeTx struct {
	txCalls int
	userID  string
}

func (f *fakeTx) Exec(context.Context, string, ...any) (store.CommandTag, error) { return nil, nil }
func (f *fakeTx) Query(context.Context, string, ...any) (store.Rows, error)      { return nil, nil }
func (f *fakeTx) QueryRow(context.Context, string, ...any) store.Row             { return nil }

func (f *fakeTx) Tx(ctx context.Context, fn func(q store.RowQuerier) error) error {
	f.txCalls++
	f.userID, _ = store.UserID(ctx)
	return fn(f)
}

// fakeSessions serves fixed outputs under one session id
type fakeSessions struct {
	id      string
	outputs []timereg.DailyOutput
}

func (f *fakeSessions) Outputs(sessionID string) ([]timereg.DailyOutput, bool) {
	if sessionID != f.id {
		return nil, false
	}
	return f.outputs, true
}

// gqlServer answers the employee query and records the mutation it receives
type gqlServer struct {
	employees []map[string]any
	mutations []string
}

func (g *gqlServer) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var req struct {
			Query string `json:"query"`
		}
		_ = json.Unmarshal(body, &req)

		switch {
		case strings.Contains(req.Query, "GetCompanyEmployees"):
			_ = json.NewEncoder(w).Encode(map[string]any{
				"data": map[string]any{
					"companiesExt": map[string]any{
						"companies": []any{
							map[string]any{"employees": map[string]any{"employees": g.employees}},
						},
					},
				},
			})
		case strings.Contains(req.Query, "CreatePayParts"):
			g.mutations = append(g.mutations, req.Query)
			_ = json.NewEncoder(w).Encode(map[string]any{
				"data": map[string]any{
					"createPayParts": map[string]any{"createdPayParts": []any{}},
				},
			})
		default:
			_ = json.NewEncoder(w).Encode(map[string]any{
				"data": map[string]any{
					"current_company": map[string]any{"id": "comp-1", "name": "Auto A/S"},
				},
			})
		}
	}
}

func newTestSvc(repo *fakeRepo, sessions SessionReader, gqlURL, tokenURL string) *Svc {
	eps := DemoEndpoints()
	if tokenURL != "" {
		eps.TokenURL = tokenURL
	}
	s := &Svc{
		Repo:     repo,
		binder:   repokit.BindFunc[danrepo.Repo](func(repokit.Queryer) danrepo.Repo { return repo }),
		db:       &fakeTx{},
		broker:   newBroker(eps, "partner-showcase", "secret", "http://localhost:4000", time.Second),
		sessions: sessions,
		now:      time.Now,
		log:      *logger.Named("danlon-test"),
	}
	if gqlURL != "" {
		s.gql = newGQLClient(gqlURL, time.Second)
	}
	return s
}

func liveToken(userID, companyID string) domain.Token {
	return domain.Token{
		UserID:       userID,
		CompanyID:    companyID,
		AccessToken:  "acc-1",
		RefreshToken: "ref-1",
		ExpiresAt:    time.Now().Add(10 * time.Minute),
	}
}

func TestAuthorizeURL(t *testing.T) {
	s := newTestSvc(newFakeRepo(), nil, "", "")

	raw := s.AuthorizeURL("http://front/app")
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse authorize url: %v", err)
	}

	q := u.Query()
	if q.Get("client_id") != "partner-showcase" {
		t.Fatalf("client_id = %q", q.Get("client_id"))
	}
	if q.Get("response_type") != "code" {
		t.Fatalf("response_type = %q", q.Get("response_type"))
	}
	if q.Get("scope") != "openid email offline_access" {
		t.Fatalf("scope = %q", q.Get("scope"))
	}
	redirect := q.Get("redirect_uri")
	if !strings.HasPrefix(redirect, "http://localhost:4000/danlon/callback") {
		t.Fatalf("redirect_uri = %q", redirect)
	}
	if !strings.Contains(redirect, "return_uri=") {
		t.Fatalf("redirect_uri should carry the return target: %q", redirect)
	}
}

func TestSelectCompanyURL(t *testing.T) {
	s := newTestSvc(newFakeRepo(), nil, "", "")

	raw := s.broker.SelectCompanyURL("temp-token", "http://front/app")
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse select url: %v", err)
	}

	tok, err := base64.StdEncoding.DecodeString(u.Query().Get("token"))
	if err != nil || string(tok) != "temp-token" {
		t.Fatalf("token param = %q err %v", tok, err)
	}
	ret := u.Query().Get("return_uri")
	if !strings.HasPrefix(ret, "http://localhost:4000/danlon/success") {
		t.Fatalf("return_uri = %q", ret)
	}
}

func TestEndpointsFor(t *testing.T) {
	if got := EndpointsFor("prod").GraphQLURL; got != "https://api.danlon.dk/graphql" {
		t.Fatalf("prod graphql = %q", got)
	}
	if got := EndpointsFor("demo").GraphQLURL; got != "https://api-demo.danlon.dk/graphql" {
		t.Fatalf("demo graphql = %q", got)
	}
	if got := EndpointsFor("").GraphQLURL; got != "https://api-demo.danlon.dk/graphql" {
		t.Fatalf("unset environment should default to demo, got %q", got)
	}
}

func TestUnitsFromHours(t *testing.T) {
	cases := []struct {
		hours float64
		want  int
	}{
		{8, 800},
		{7.5, 750},
		{7.4, 740},
		{2.005, 201},
		{0, 0},
	}
	for _, tc := range cases {
		if got := unitsFromHours(tc.hours); got != tc.want {
			t.Fatalf("unitsFromHours(%v) = %d, want %d", tc.hours, got, tc.want)
		}
	}
}

func TestBuildCreatePayParts(t *testing.T) {
	q := buildCreatePayParts("comp-1", []payPart{
		{EmployeeID: "emp-1", Code: "T1", Units: 800},
		{EmployeeID: "emp-2", Code: "T3", Amount: 750},
	})

	for _, want := range []string{
		`companyId: "comp-1"`,
		`{employeeId: "emp-1", code: "T1", units: 800}`,
		`{employeeId: "emp-2", code: "T3", amount: 750}`,
		"createdPayParts",
	} {
		if !strings.Contains(q, want) {
			t.Fatalf("mutation missing %q:\n%s", want, q)
		}
	}
	if strings.Contains(q, "variables") {
		t.Fatalf("mutation must inline its input:\n%s", q)
	}
}

func TestBuildCreatePayParts_EscapesStrings(t *testing.T) {
	q := buildCreatePayParts(`comp"1`, []payPart{{EmployeeID: `emp\1`, Code: "T1", Units: 100}})

	if !strings.Contains(q, `companyId: "comp\"1"`) {
		t.Fatalf("company id not escaped:\n%s", q)
	}
	if !strings.Contains(q, `employeeId: "emp\\1"`) {
		t.Fatalf("employee id not escaped:\n%s", q)
	}
}

func TestGraphQL_ErrorMapping(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"errors": []any{map[string]any{"message": "bad pay code"}},
		})
	}))
	defer srv.Close()

	g := newGQLClient(srv.URL, time.Second)
	_, _, err := g.CurrentCompany(context.Background(), "tok")
	if !perr.IsCode(err, perr.ErrorCodeUpstreamGraphQL) {
		t.Fatalf("err = %v, want upstream graphql", err)
	}

	srv2 := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv2.Close()

	g2 := newGQLClient(srv2.URL, time.Second)
	if _, _, err := g2.CurrentCompany(context.Background(), "tok"); !perr.IsCode(err, perr.ErrorCodeUpstreamHTTP) {
		t.Fatalf("err = %v, want upstream http", err)
	}
}

func TestValidAccessToken_SkipsRefreshInsideWindow(t *testing.T) {
	repo := newFakeRepo()
	_ = repo.UpsertToken(context.Background(), liveToken("u1", "comp-1"))

	tokenCalls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenCalls++
	}))
	defer srv.Close()

	s := newTestSvc(repo, nil, "", srv.URL)
	access, _, err := s.validAccessToken(context.Background(), "u1", "comp-1")
	if err != nil {
		t.Fatalf("validAccessToken: %v", err)
	}
	if access != "acc-1" {
		t.Fatalf("access = %q", access)
	}
	if tokenCalls != 0 {
		t.Fatalf("token endpoint called %d times, want 0", tokenCalls)
	}
}

func TestValidAccessToken_RefreshesNearExpiry(t *testing.T) {
	repo := newFakeRepo()
	tok := liveToken("u1", "comp-1")
	tok.ExpiresAt = time.Now().Add(30 * time.Second)
	_ = repo.UpsertToken(context.Background(), tok)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		if got := r.Form.Get("grant_type"); got != "refresh_token" {
			t.Errorf("grant_type = %q", got)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "acc-2",
			"refresh_token": "ref-2",
			"expires_in":    300,
		})
	}))
	defer srv.Close()

	s := newTestSvc(repo, nil, "", srv.URL)
	access, _, err := s.validAccessToken(context.Background(), "u1", "comp-1")
	if err != nil {
		t.Fatalf("validAccessToken: %v", err)
	}
	if access != "acc-2" {
		t.Fatalf("access = %q, want refreshed token", access)
	}

	stored, _ := repo.Token(context.Background(), "u1", "comp-1")
	if stored.RefreshToken != "ref-2" {
		t.Fatalf("rotated refresh token not stored, got %q", stored.RefreshToken)
	}
}

func TestValidAccessToken_RefreshRejected(t *testing.T) {
	repo := newFakeRepo()
	tok := liveToken("u1", "comp-1")
	tok.ExpiresAt = time.Now().Add(-time.Minute)
	_ = repo.UpsertToken(context.Background(), tok)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	s := newTestSvc(repo, nil, "", srv.URL)
	_, _, err := s.validAccessToken(context.Background(), "u1", "comp-1")
	if !perr.IsCode(err, perr.ErrorCodeTokenRefreshFailed) {
		t.Fatalf("err = %v, want token refresh failed", err)
	}

	if _, err := repo.Token(context.Background(), "u1", "comp-1"); err != nil {
		t.Fatalf("stored token should survive a rejected refresh: %v", err)
	}
}

func TestValidAccessToken_NotConnected(t *testing.T) {
	s := newTestSvc(newFakeRepo(), nil, "", "")
	_, _, err := s.validAccessToken(context.Background(), "u1", "comp-1")
	if !perr.IsCode(err, perr.ErrorCodeNotConnected) {
		t.Fatalf("err = %v, want not connected", err)
	}
}

func TestStatus(t *testing.T) {
	repo := newFakeRepo()
	s := newTestSvc(repo, nil, "", "")

	st, err := s.Status(context.Background(), "u1", "")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if st.Connected {
		t.Fatalf("expected not connected")
	}

	tok := liveToken("u1", "comp-1")
	tok.CompanyName = "Auto A/S"
	_ = repo.UpsertToken(context.Background(), tok)

	st, err = s.Status(context.Background(), "u1", "")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !st.Connected || st.CompanyID != "comp-1" || st.CompanyName != "Auto A/S" {
		t.Fatalf("status = %+v", st)
	}
}

func TestComplete_RequiresCodeOrTokens(t *testing.T) {
	s := newTestSvc(newFakeRepo(), nil, "", "")
	_, err := s.Complete(context.Background(), domain.CompleteInput{UserID: "u1"})
	if !perr.IsCode(err, perr.ErrorCodeInvalidInput) {
		t.Fatalf("err = %v, want invalid input", err)
	}
}

func TestComplete_WithTokenPair(t *testing.T) {
	repo := newFakeRepo()
	s := newTestSvc(repo, nil, "", "")

	_ = repo.InsertPending(context.Background(), domain.PendingSession{
		SessionID: "sess-old",
		UserID:    "u1",
		ExpiresAt: time.Now().Add(10 * time.Minute),
	})

	st, err := s.Complete(context.Background(), domain.CompleteInput{
		UserID:       "u1",
		AccessToken:  "acc-9",
		RefreshToken: "ref-9",
		CompanyID:    "comp-9",
		CompanyName:  "Smede A/S",
	})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if !st.Connected || st.CompanyID != "comp-9" {
		t.Fatalf("status = %+v", st)
	}
	if len(repo.pending) != 0 {
		t.Fatalf("pending sessions not cleared with the stored token: %+v", repo.pending)
	}
	if tx := s.db.(*fakeTx); tx.txCalls != 1 {
		t.Fatalf("tx calls = %d, want 1", tx.txCalls)
	}
}

func TestSaveEmployeeMapping_Validation(t *testing.T) {
	repo := newFakeRepo()
	s := newTestSvc(repo, nil, "", "")
	s.db = nil // validation fails before any tx

	err := s.SaveEmployeeMapping(context.Background(), "u1", "comp-1", domain.EmployeeMapping{
		Rows: []domain.EmployeeMappingRow{
			{DanlonEmployeeID: "e1", IsFallback: true},
			{DanlonEmployeeID: "e2", IsFallback: true},
		},
	})
	if !perr.IsCode(err, perr.ErrorCodeInvalidInput) {
		t.Fatalf("two fallbacks: err = %v, want invalid input", err)
	}

	err = s.SaveEmployeeMapping(context.Background(), "u1", "comp-1", domain.EmployeeMapping{
		Rows: []domain.EmployeeMappingRow{{DanlonEmployeeID: "e1"}},
	})
	if !perr.IsCode(err, perr.ErrorCodeInvalidInput) {
		t.Fatalf("nameless row: err = %v, want invalid input", err)
	}
}

func TestSaveEmployeeMapping_RunsInUserScope(t *testing.T) {
	repo := newFakeRepo()
	s := newTestSvc(repo, nil, "", "")

	rows := []domain.EmployeeMappingRow{
		{FtzEmployeeName: "Jens Hansen", DanlonEmployeeID: "emp-1"},
		{DanlonEmployeeID: "emp-9", IsFallback: true},
	}
	if err := s.SaveEmployeeMapping(context.Background(), "u1", "comp-1", domain.EmployeeMapping{Rows: rows}); err != nil {
		t.Fatalf("save: %v", err)
	}

	tx := s.db.(*fakeTx)
	if tx.txCalls != 1 {
		t.Fatalf("tx calls = %d, want 1", tx.txCalls)
	}
	if tx.userID != "u1" {
		t.Fatalf("tx user id = %q, want %q", tx.userID, "u1")
	}

	stored, _ := repo.EmployeeRows(context.Background(), "u1", "comp-1")
	if len(stored) != 2 {
		t.Fatalf("stored rows = %d, want 2", len(stored))
	}
}

func syncOutputs() []timereg.DailyOutput {
	day := time.Date(2026, 1, 12, 0, 0, 0, 0, time.UTC)
	return []timereg.DailyOutput{
		{
			Worker:      "Jens Hansen",
			Date:        day,
			NormalHours: 8,
			Breakdown:   timereg.OvertimeBreakdown{Hour12: 2},
		},
		{
			Worker:         "Bob Ukendt",
			Date:           day.AddDate(0, 0, 1),
			NormalHours:    7.5,
			CallOutApplied: true,
			CallOutPayment: 750,
		},
		{
			Worker: "Tom Tom",
			Date:   day.AddDate(0, 0, 2),
			// nothing payable, must be ignored entirely
		},
		{
			Worker:      "Ny Mand",
			Date:        day.AddDate(0, 0, 3),
			NormalHours: 6,
		},
	}
}

func TestSync_ResolvesAndSubmits(t *testing.T) {
	repo := newFakeRepo()
	_ = repo.UpsertToken(context.Background(), liveToken("u1", "comp-1"))
	repo.rows[pairKey("u1", "comp-1")] = []domain.EmployeeMappingRow{
		{FtzEmployeeName: "Bob Ukendt", DanlonEmployeeID: "emp-bob", DanlonEmployeeName: "Bob U"},
	}

	gql := &gqlServer{employees: []map[string]any{
		{"id": "emp-jens", "active": true, "name": "Jens Hansen"},
	}}
	srv := httptest.NewServer(gql.handler())
	defer srv.Close()

	sessions := &fakeSessions{id: "sess-1", outputs: syncOutputs()}
	s := newTestSvc(repo, sessions, srv.URL, "")

	res, err := s.Sync(context.Background(), "sess-1", "u1", "comp-1")
	if err != nil {
		t.Fatalf("sync: %v", err)
	}

	// Jens: normal + overtime. Bob: normal + call-out. Ny Mand: unmatched
	if res.Summary.Created != 4 {
		t.Fatalf("created = %d, want 4 (%+v)", res.Summary.Created, res.CreatedPayParts)
	}
	if res.Summary.Skipped != 1 {
		t.Fatalf("skipped = %d, want 1", res.Summary.Skipped)
	}
	if len(res.UnmatchedWorkers) != 1 || res.UnmatchedWorkers[0] != "Ny Mand" {
		t.Fatalf("unmatched = %v", res.UnmatchedWorkers)
	}

	if len(gql.mutations) != 1 {
		t.Fatalf("mutations sent = %d, want 1", len(gql.mutations))
	}
	mut := gql.mutations[0]
	for _, want := range []string{
		`{employeeId: "emp-jens", code: "T1", units: 800}`,
		`{employeeId: "emp-jens", code: "T2", units: 200}`,
		`{employeeId: "emp-bob", code: "T1", units: 750}`,
		`{employeeId: "emp-bob", code: "T3", amount: 750}`,
	} {
		if !strings.Contains(mut, want) {
			t.Fatalf("mutation missing %q:\n%s", want, mut)
		}
	}
}

func TestSync_FallbackCatchesEveryone(t *testing.T) {
	repo := newFakeRepo()
	_ = repo.UpsertToken(context.Background(), liveToken("u1", "comp-1"))
	repo.rows[pairKey("u1", "comp-1")] = []domain.EmployeeMappingRow{
		{DanlonEmployeeID: "emp-pool", DanlonEmployeeName: "Pool", IsFallback: true},
	}

	gql := &gqlServer{}
	srv := httptest.NewServer(gql.handler())
	defer srv.Close()

	sessions := &fakeSessions{id: "sess-1", outputs: syncOutputs()}
	s := newTestSvc(repo, sessions, srv.URL, "")

	res, err := s.Sync(context.Background(), "sess-1", "u1", "comp-1")
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if len(res.UnmatchedWorkers) != 0 {
		t.Fatalf("unmatched = %v, want none with a fallback row", res.UnmatchedWorkers)
	}
	if res.Summary.Skipped != 0 {
		t.Fatalf("skipped = %d, want 0", res.Summary.Skipped)
	}
}

func TestSync_SessionMissing(t *testing.T) {
	s := newTestSvc(newFakeRepo(), &fakeSessions{id: "other"}, "", "")
	_, err := s.Sync(context.Background(), "sess-1", "u1", "comp-1")
	if !perr.IsCode(err, perr.ErrorCodeSessionNotFound) {
		t.Fatalf("err = %v, want session not found", err)
	}
}

func TestPayCodeMapping_Defaults(t *testing.T) {
	repo := newFakeRepo()
	s := newTestSvc(repo, nil, "", "")

	m, err := s.PayCodeMapping(context.Background(), "u1", "comp-1")
	if err != nil {
		t.Fatalf("paycode mapping: %v", err)
	}
	if m != domain.DefaultPayCodes {
		t.Fatalf("mapping = %+v, want defaults", m)
	}

	custom := domain.PayCodeMapping{NormalCode: "100", OvertimeCode: "200", CallOutCode: "300"}
	if err := s.SavePayCodeMapping(context.Background(), "u1", "comp-1", custom); err != nil {
		t.Fatalf("save: %v", err)
	}
	m, _ = s.PayCodeMapping(context.Background(), "u1", "comp-1")
	if m != custom {
		t.Fatalf("mapping = %+v, want %+v", m, custom)
	}
}
