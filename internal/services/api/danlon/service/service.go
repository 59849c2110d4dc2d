// Package service implements the payroll connection lifecycle and the hour
// submission workflow
package service

import (
	"context"
	"encoding/base64"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"overtid/internal/core/timereg"
	"overtid/internal/modkit/repokit"
	perr "overtid/internal/platform/errors"
	"overtid/internal/platform/logger"
	"overtid/internal/platform/store"
	"overtid/internal/services/api/danlon/domain"
	"overtid/internal/services/api/danlon/repo"
)

const (
	// refreshBuffer forces a refresh when the access token is within a
	// minute of expiry
	refreshBuffer = 60 * time.Second

	// pendingTTL bounds the window between token exchange and company
	// selection
	pendingTTL = 15 * time.Minute

	// defaultExpiresIn applies when the IdP omits expires_in
	defaultExpiresIn = 300

	wireDateLayout = "02-01-2006"
)

// SessionReader looks up the computed day rows of a preview session
type SessionReader interface {
	Outputs(sessionID string) ([]timereg.DailyOutput, bool)
}

// Options configures the payroll integration service
type Options struct {
	Environment  string
	ClientID     string
	ClientSecret string
	AppBaseURL   string
	Timeout      time.Duration
}

// Service defines the service contract for the payroll integration
type Service interface{ domain.ServicePort }

// Svc implements the Service interface
type Svc struct {
	Repo   repo.Repo
	binder repokit.Binder[repo.Repo]
	db     repokit.TxRunner

	broker   *broker
	gql      *gqlClient
	sessions SessionReader

	now func() time.Time
	log logger.Logger
}

// New creates a new payroll integration service
func New(db repokit.TxRunner, binder repokit.Binder[repo.Repo], sessions SessionReader, opts Options) *Svc {
	if db == nil {
		panic("danlon.Service requires a non nil TxRunner")
	}
	if binder == nil {
		panic("danlon.Service requires a non nil Repo binder")
	}

	eps := EndpointsFor(opts.Environment)
	return &Svc{
		Repo:     binder.Bind(db),
		binder:   binder,
		db:       db,
		broker:   newBroker(eps, opts.ClientID, opts.ClientSecret, opts.AppBaseURL, opts.Timeout),
		gql:      newGQLClient(eps.GraphQLURL, opts.Timeout),
		sessions: sessions,
		now:      time.Now,
		log:      *logger.Named("danlon"),
	}
}

// AuthorizeURL builds the IdP redirect that starts a connection
func (s *Svc) AuthorizeURL(returnURI string) string {
	return s.broker.AuthorizeURL(returnURI)
}

// Callback exchanges the authorization code, stores a pending session and
// returns the company selection URL to redirect to
func (s *Svc) Callback(ctx context.Context, userID, code, returnURI string) (string, error) {
	if code == "" {
		return "", perr.InvalidInputf("missing authorization code")
	}

	tok, err := s.broker.ExchangeCode(ctx, code, s.broker.redirectURI(returnURI))
	if err != nil {
		return "", err
	}

	selectURL := s.broker.SelectCompanyURL(tok.AccessToken, returnURI)
	now := s.now().UTC()
	pending := domain.PendingSession{
		SessionID:        uuid.NewString(),
		UserID:           userID,
		SelectCompanyURL: selectURL,
		TempAccessToken:  tok.AccessToken,
		TempRefreshToken: tok.RefreshToken,
		CreatedAt:        now,
		ExpiresAt:        now.Add(pendingTTL),
	}
	if err := s.Repo.InsertPending(ctx, pending); err != nil {
		return "", err
	}

	s.log.Info().Str("user_id", userID).Msg("authorization pending company selection")
	return selectURL, nil
}

// Success finishes the flow after company selection: it exchanges the
// marketplace code for the final token pair, resolves the company and stores
// the connection. It returns where to send the user next
func (s *Svc) Success(ctx context.Context, userID, code, companyIDB64, returnURI string) (string, error) {
	if code == "" {
		return "", perr.InvalidInputf("missing marketplace code")
	}

	tok, err := s.broker.Code2Token(ctx, code)
	if err != nil {
		return "", err
	}

	companyID, companyName, err := s.resolveCompany(ctx, tok.AccessToken, companyIDB64)
	if err != nil {
		return "", err
	}

	if err := s.storeToken(ctx, userID, companyID, companyName, tok); err != nil {
		return "", err
	}

	s.log.Info().Str("user_id", userID).Str("company_id", companyID).Msg("payroll connection established")
	if returnURI != "" {
		return returnURI, nil
	}
	return "/", nil
}

// resolveCompany decodes the base64 company id handed back by the
// marketplace, falling back to asking the API which company the token binds
func (s *Svc) resolveCompany(ctx context.Context, accessToken, companyIDB64 string) (id, name string, err error) {
	if companyIDB64 != "" {
		if raw, decErr := base64.StdEncoding.DecodeString(companyIDB64); decErr == nil && len(raw) > 0 {
			return string(raw), "", nil
		}
	}
	return s.gql.CurrentCompany(ctx, accessToken)
}

// storeToken persists the final credential and clears any pending session for
// the user in one transaction
func (s *Svc) storeToken(ctx context.Context, userID, companyID, companyName string, tok tokenResponse) error {
	expiresIn := tok.ExpiresIn
	if expiresIn <= 0 {
		expiresIn = defaultExpiresIn
	}
	now := s.now().UTC()
	stored := domain.Token{
		UserID:       userID,
		CompanyID:    companyID,
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresAt:    now.Add(time.Duration(expiresIn) * time.Second),
		CompanyName:  companyName,
	}
	return repokit.WithTx(ctx, s.db, func(q repokit.Queryer) error {
		r := s.binder.Bind(q)
		if err := r.UpsertToken(ctx, stored); err != nil {
			return err
		}
		return r.DeletePendingForUser(ctx, userID)
	})
}

// Pending reports whether the user has an authorization waiting for company
// selection
func (s *Svc) Pending(ctx context.Context, userID string) (domain.PendingInfo, error) {
	p, err := s.Repo.LatestPending(ctx, userID, s.now().UTC())
	if err != nil {
		if perr.IsCode(err, perr.ErrorCodeNotFound) {
			return domain.PendingInfo{Pending: false}, nil
		}
		return domain.PendingInfo{}, err
	}
	return domain.PendingInfo{
		Pending:          true,
		SelectCompanyURL: p.SelectCompanyURL,
		ExpiresAt:        p.ExpiresAt.UTC().Format(time.RFC3339),
	}, nil
}

// Complete finishes a connection without the browser redirects: either with
// a marketplace code or with an explicit token pair and company id
func (s *Svc) Complete(ctx context.Context, in domain.CompleteInput) (domain.ConnectionStatus, error) {
	switch {
	case in.Code != "":
		if _, err := s.Success(ctx, in.UserID, in.Code, in.CompanyID, ""); err != nil {
			return domain.ConnectionStatus{}, err
		}
	case in.AccessToken != "" && in.RefreshToken != "" && in.CompanyID != "":
		tok := tokenResponse{AccessToken: in.AccessToken, RefreshToken: in.RefreshToken}
		if err := s.storeToken(ctx, in.UserID, in.CompanyID, in.CompanyName, tok); err != nil {
			return domain.ConnectionStatus{}, err
		}
	default:
		return domain.ConnectionStatus{}, perr.InvalidInputf("supply either code or access_token, refresh_token and company_id")
	}
	return s.Status(ctx, in.UserID, in.CompanyID)
}

// Disconnect revokes the refresh token upstream and always drops the local
// credential, even when the revoke call fails
func (s *Svc) Disconnect(ctx context.Context, userID, companyID string) error {
	tok, err := s.loadToken(ctx, userID, companyID)
	if err != nil {
		return err
	}

	if err := s.broker.Revoke(ctx, tok.RefreshToken); err != nil {
		s.log.Warn().Err(err).Str("user_id", userID).Msg("upstream revoke failed, deleting local token anyway")
	}
	if err := s.Repo.DeleteToken(ctx, tok.UserID, tok.CompanyID); err != nil {
		return err
	}

	s.log.Info().Str("user_id", userID).Str("company_id", tok.CompanyID).Msg("payroll connection removed")
	return nil
}

// Status reports the stored connection for the pair; with an empty company
// id the most recently updated connection wins
func (s *Svc) Status(ctx context.Context, userID, companyID string) (domain.ConnectionStatus, error) {
	tok, err := s.lookupToken(ctx, userID, companyID)
	if err != nil {
		if perr.IsCode(err, perr.ErrorCodeNotFound) {
			return domain.ConnectionStatus{Connected: false}, nil
		}
		return domain.ConnectionStatus{}, err
	}
	return domain.ConnectionStatus{
		Connected:   true,
		CompanyID:   tok.CompanyID,
		CompanyName: tok.CompanyName,
		ExpiresAt:   tok.ExpiresAt.UTC().Format(time.RFC3339),
		CreatedAt:   tok.CreatedAt.UTC().Format(time.RFC3339),
	}, nil
}

func (s *Svc) lookupToken(ctx context.Context, userID, companyID string) (domain.Token, error) {
	if companyID != "" {
		return s.Repo.Token(ctx, userID, companyID)
	}
	return s.Repo.AnyToken(ctx, userID)
}

// loadToken is lookupToken with the miss mapped to a not-connected error
func (s *Svc) loadToken(ctx context.Context, userID, companyID string) (domain.Token, error) {
	tok, err := s.lookupToken(ctx, userID, companyID)
	if err != nil {
		if perr.IsCode(err, perr.ErrorCodeNotFound) {
			return domain.Token{}, perr.NotConnectedf("no payroll connection for user %s", userID)
		}
		return domain.Token{}, err
	}
	return tok, nil
}

// validAccessToken returns a usable access token, refreshing when within the
// buffer of expiry. A rejected refresh keeps the stored token so the user
// can retry or reconnect
func (s *Svc) validAccessToken(ctx context.Context, userID, companyID string) (string, domain.Token, error) {
	tok, err := s.loadToken(ctx, userID, companyID)
	if err != nil {
		return "", domain.Token{}, err
	}

	now := s.now().UTC()
	if now.Add(refreshBuffer).Before(tok.ExpiresAt) {
		return tok.AccessToken, tok, nil
	}

	fresh, err := s.broker.Refresh(ctx, tok.RefreshToken)
	if err != nil {
		return "", domain.Token{}, perr.TokenRefreshFailedf("token refresh rejected for user %s: %v", userID, err)
	}

	tok.AccessToken = fresh.AccessToken
	if fresh.RefreshToken != "" {
		tok.RefreshToken = fresh.RefreshToken
	}
	expiresIn := fresh.ExpiresIn
	if expiresIn <= 0 {
		expiresIn = defaultExpiresIn
	}
	tok.ExpiresAt = now.Add(time.Duration(expiresIn) * time.Second)

	if err := s.Repo.UpsertToken(ctx, tok); err != nil {
		return "", domain.Token{}, err
	}
	return tok.AccessToken, tok, nil
}

// PayCodeMapping returns the stored pay code mapping, or the defaults when
// none was saved yet
func (s *Svc) PayCodeMapping(ctx context.Context, userID, companyID string) (domain.PayCodeMapping, error) {
	m, ok, err := s.Repo.PayCodes(ctx, userID, companyID)
	if err != nil {
		return domain.PayCodeMapping{}, err
	}
	if !ok {
		return domain.DefaultPayCodes, nil
	}
	return m, nil
}

// SavePayCodeMapping stores the mapping for the pair
func (s *Svc) SavePayCodeMapping(ctx context.Context, userID, companyID string, m domain.PayCodeMapping) error {
	if m.NormalCode == "" || m.OvertimeCode == "" || m.CallOutCode == "" {
		return perr.InvalidInputf("all three pay codes are required")
	}
	return s.Repo.SavePayCodes(ctx, userID, companyID, m)
}

// EmployeeMapping returns the stored employee mapping rows
func (s *Svc) EmployeeMapping(ctx context.Context, userID, companyID string) (domain.EmployeeMapping, error) {
	rows, err := s.Repo.EmployeeRows(ctx, userID, companyID)
	if err != nil {
		return domain.EmployeeMapping{}, err
	}
	return domain.EmployeeMapping{Rows: rows}, nil
}

// SaveEmployeeMapping replaces the mapping set; at most one fallback row is
// accepted
func (s *Svc) SaveEmployeeMapping(ctx context.Context, userID, companyID string, m domain.EmployeeMapping) error {
	fallbacks := 0
	for _, row := range m.Rows {
		if row.DanlonEmployeeID == "" {
			return perr.InvalidInputf("mapping row without employee id")
		}
		if row.IsFallback {
			fallbacks++
		}
		if !row.IsFallback && row.FtzEmployeeName == "" {
			return perr.InvalidInputf("non-fallback mapping row without a worker name")
		}
	}
	if fallbacks > 1 {
		return perr.InvalidInputf("at most one fallback row is allowed")
	}

	return store.RunAsUser(ctx, s.db, userID, func(ctx context.Context, q store.RowQuerier) error {
		return s.binder.Bind(q).ReplaceEmployeeRows(ctx, userID, companyID, m.Rows)
	})
}

// Employees lists the payroll employees of the connected company
func (s *Svc) Employees(ctx context.Context, userID, companyID string, includeDeleted bool) ([]domain.Employee, error) {
	access, tok, err := s.validAccessToken(ctx, userID, companyID)
	if err != nil {
		return nil, err
	}
	return s.gql.Employees(ctx, access, tok.CompanyID, includeDeleted)
}

// PayPartMeta returns the code vocabularies for the mapping UI
func (s *Svc) PayPartMeta(ctx context.Context, userID, companyID string) (domain.PayPartMeta, error) {
	access, _, err := s.validAccessToken(ctx, userID, companyID)
	if err != nil {
		return domain.PayPartMeta{}, err
	}

	meta, err := s.gql.CompanyMeta(ctx, access)
	if err != nil {
		return domain.PayPartMeta{}, err
	}
	if len(meta.PayCodes) == 0 {
		if codes, err := s.gql.PayPartsMeta(ctx, access); err == nil {
			meta.PayCodes = codes
		}
	}
	return meta, nil
}

// resolution maps lowercased worker names to payroll employees; lookup order
// is live name match, explicit mapping row, then the fallback row
type resolution struct {
	live     map[string]domain.Employee
	explicit map[string]domain.EmployeeMappingRow
	fallback *domain.EmployeeMappingRow
}

func (r resolution) resolve(worker string) (id, name string, ok bool) {
	key := strings.ToLower(strings.TrimSpace(worker))
	if e, found := r.live[key]; found {
		return e.ID, e.Name, true
	}
	if m, found := r.explicit[key]; found {
		return m.DanlonEmployeeID, m.DanlonEmployeeName, true
	}
	if r.fallback != nil {
		return r.fallback.DanlonEmployeeID, r.fallback.DanlonEmployeeName, true
	}
	return "", "", false
}

// Sync submits the computed hours of a preview session as pay parts in one
// mutation. Workers that resolve to no employee are reported, not fatal
func (s *Svc) Sync(ctx context.Context, sessionID, userID, companyID string) (domain.SyncResult, error) {
	outputs, ok := s.sessions.Outputs(sessionID)
	if !ok {
		return domain.SyncResult{}, perr.SessionNotFoundf("session %s not found or expired", sessionID)
	}

	access, tok, err := s.validAccessToken(ctx, userID, companyID)
	if err != nil {
		return domain.SyncResult{}, err
	}

	codes, err := s.PayCodeMapping(ctx, userID, tok.CompanyID)
	if err != nil {
		return domain.SyncResult{}, err
	}

	res, err := s.buildResolution(ctx, access, userID, tok.CompanyID)
	if err != nil {
		return domain.SyncResult{}, err
	}

	var (
		parts     []payPart
		created   []domain.CreatedPayPart
		skipped   []domain.SkippedItem
		unmatched = map[string]bool{}
	)

	addPart := func(out timereg.DailyOutput, employeeID, code string, hours float64, amount int) {
		p := payPart{EmployeeID: employeeID, Code: code, Amount: amount}
		if hours > 0 {
			p.Units = unitsFromHours(hours)
		}
		parts = append(parts, p)
		created = append(created, domain.CreatedPayPart{
			Worker:     out.Worker,
			EmployeeID: employeeID,
			Code:       code,
			Date:       out.Date.Format(wireDateLayout),
			Hours:      timereg.Round2(hours),
			Units:      p.Units,
			Amount:     amount,
		})
	}

	for _, out := range outputs {
		overtime := out.Breakdown.Total()
		if out.NormalHours <= 0 && overtime <= 0 && !out.CallOutApplied {
			continue
		}

		employeeID, _, found := res.resolve(out.Worker)
		if !found {
			unmatched[out.Worker] = true
			skipped = append(skipped, domain.SkippedItem{
				Worker: out.Worker,
				Date:   out.Date.Format(wireDateLayout),
				Reason: "no matching payroll employee",
			})
			continue
		}

		if out.NormalHours > 0 {
			addPart(out, employeeID, codes.NormalCode, out.NormalHours, 0)
		}
		if overtime > 0 {
			addPart(out, employeeID, codes.OvertimeCode, overtime, 0)
		}
		if out.CallOutApplied && out.CallOutPayment > 0 {
			addPart(out, employeeID, codes.CallOutCode, 0, int(math.Round(out.CallOutPayment)))
		}
	}

	if len(parts) > 0 {
		if _, err := s.gql.CreatePayParts(ctx, access, tok.CompanyID, parts); err != nil {
			return domain.SyncResult{}, err
		}
	}

	names := make([]string, 0, len(unmatched))
	for w := range unmatched {
		names = append(names, w)
	}
	sort.Strings(names)

	s.log.Info().
		Str("session_id", sessionID).
		Int("created", len(created)).
		Int("skipped", len(skipped)).
		Msg("pay parts submitted")

	return domain.SyncResult{
		Success:          true,
		Summary:          domain.SyncSummary{Created: len(created), Skipped: len(skipped)},
		CreatedPayParts:  created,
		SkippedItems:     skipped,
		UnmatchedWorkers: names,
	}, nil
}

// buildResolution assembles the three lookup stages for the sync
func (s *Svc) buildResolution(ctx context.Context, access, userID, companyID string) (resolution, error) {
	res := resolution{
		live:     map[string]domain.Employee{},
		explicit: map[string]domain.EmployeeMappingRow{},
	}

	employees, err := s.gql.Employees(ctx, access, companyID, false)
	if err != nil {
		return resolution{}, err
	}
	for _, e := range employees {
		if key := strings.ToLower(strings.TrimSpace(e.Name)); key != "" {
			res.live[key] = e
		}
	}

	rows, err := s.Repo.EmployeeRows(ctx, userID, companyID)
	if err != nil {
		return resolution{}, err
	}
	for _, row := range rows {
		if row.IsFallback {
			r := row
			res.fallback = &r
			continue
		}
		if key := strings.ToLower(strings.TrimSpace(row.FtzEmployeeName)); key != "" {
			res.explicit[key] = row
		}
	}
	return res, nil
}
