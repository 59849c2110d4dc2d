// Package service contains the preview workflows: file upload and upstream
// fetch into the calculation pipeline, session-scoped recalculation for
// absence and call-out edits, and CSV export
package service

import (
	"context"
	"sort"
	"time"

	"overtid/internal/adapters/ingest/ftzapi"
	"overtid/internal/adapters/ingest/ftzcsv"
	"overtid/internal/core/absence"
	"overtid/internal/core/callout"
	"overtid/internal/core/datefill"
	"overtid/internal/core/interval"
	"overtid/internal/core/overtime"
	"overtid/internal/core/timereg"
	perr "overtid/internal/platform/errors"
	"overtid/internal/platform/logger"
	"overtid/internal/services/api/preview/domain"
)

const sessionTTL = time.Hour

// Fetcher pulls employees and registrations from the upstream workshop API
type Fetcher interface {
	Employees(ctx context.Context) ([]ftzapi.Employee, error)
	TimeRegistrations(ctx context.Context, employeeID int, fromUTC, toUTC time.Time) ([]ftzapi.TimeRegistration, error)
}

// Service defines the service contract for preview
type Service interface{ domain.ServicePort }

// SessionReader lets other modules read a cached session's computed outputs
type SessionReader interface {
	Outputs(sessionID string) ([]timereg.DailyOutput, bool)
}

// Svc implements the Service interface
type Svc struct {
	cache   *sessionCache
	fetcher Fetcher
	log     logger.Logger
}

// New creates a new preview service. The fetcher may be nil when the
// upstream API is not configured; FetchUpstream then fails cleanly
func New(fetcher Fetcher) *Svc {
	return &Svc{
		cache:   newSessionCache(sessionTTL),
		fetcher: fetcher,
		log:     *logger.Named("preview"),
	}
}

// Preview parses the uploaded CSV files, runs the pipeline and caches the
// result under a fresh session id
func (s *Svc) Preview(ctx context.Context, files [][]byte, employeeType string) (domain.PreviewPayload, error) {
	if len(files) == 0 {
		return domain.PreviewPayload{}, perr.InvalidInputf("no files uploaded")
	}

	var records []timereg.DailyRecord
	for i, raw := range files {
		recs, err := ftzcsv.Parse(raw)
		if err != nil {
			return domain.PreviewPayload{}, perr.Wrapf(err, perr.ErrorCodeInvalidInput, "file %d", i+1)
		}
		records = append(records, recs...)
	}

	snap := snapshot{records: records, overrides: map[string]timereg.AbsenceType{}}
	if err := s.recalc(&snap); err != nil {
		return domain.PreviewPayload{}, err
	}
	id := s.cache.Put(snap)

	s.log.Info().
		Str("session_id", id).
		Int("files", len(files)).
		Int("records", len(snap.records)).
		Str("employee_type", employeeType).
		Msg("preview session created")
	return payload(id, snap), nil
}

// FetchUpstream pulls one employee's completed registrations for a local
// date range and runs them through the same pipeline as an upload
func (s *Svc) FetchUpstream(ctx context.Context, in domain.FetchInput) (domain.PreviewPayload, error) {
	if s.fetcher == nil {
		return domain.PreviewPayload{}, perr.Internalf("upstream api not configured")
	}

	from, err := domain.ParseWireDate(in.StartDate)
	if err != nil {
		return domain.PreviewPayload{}, perr.InvalidInputf("start_date: %v", err)
	}
	to, err := domain.ParseWireDate(in.EndDate)
	if err != nil {
		return domain.PreviewPayload{}, perr.InvalidInputf("end_date: %v", err)
	}
	if to.Before(from) {
		return domain.PreviewPayload{}, perr.InvalidInputf("end_date before start_date")
	}

	name, err := s.employeeName(ctx, in.EmployeeID)
	if err != nil {
		return domain.PreviewPayload{}, err
	}

	fromUTC, toUTC := ftzapi.LocalWindowUTC(from, to)
	regs, err := s.fetcher.TimeRegistrations(ctx, in.EmployeeID, fromUTC, toUTC)
	if err != nil {
		return domain.PreviewPayload{}, err
	}
	records, err := ftzapi.ToRecords(regs, name)
	if err != nil {
		return domain.PreviewPayload{}, err
	}
	if len(records) == 0 {
		return domain.PreviewPayload{}, perr.InvalidInputf("no completed registrations for employee %d in range", in.EmployeeID)
	}

	snap := snapshot{records: records, overrides: map[string]timereg.AbsenceType{}}
	if err := s.recalc(&snap); err != nil {
		return domain.PreviewPayload{}, err
	}
	id := s.cache.Put(snap)

	s.log.Info().
		Str("session_id", id).
		Int("employee_id", in.EmployeeID).
		Int("records", len(records)).
		Msg("upstream fetch session created")
	return payload(id, snap), nil
}

// MarkAbsence applies per-day absence selections to the session and re-runs
// the full pipeline; hourly tiering is order dependent across the week, so
// partial updates are not possible
func (s *Svc) MarkAbsence(ctx context.Context, sessionID string, selections map[string]string) (domain.PreviewPayload, error) {
	snap, ok := s.cache.Get(sessionID)
	if !ok {
		return domain.PreviewPayload{}, perr.SessionNotFoundf("session %s not found or expired", sessionID)
	}

	for date, sel := range selections {
		if _, err := domain.ParseWireDate(date); err != nil {
			return domain.PreviewPayload{}, perr.InvalidInputf("absence_selections: %v", err)
		}
		switch sel {
		case "Vacation":
			snap.overrides[date] = timereg.AbsenceVacation
		case "Sick":
			snap.overrides[date] = timereg.AbsenceSick
		case "Kursus":
			snap.overrides[date] = timereg.AbsenceKursus
		case "None", "":
			snap.overrides[date] = timereg.AbsenceNone
		default:
			return domain.PreviewPayload{}, perr.InvalidInputf("unknown absence type %q", sel)
		}
	}

	if err := s.recalc(&snap); err != nil {
		return domain.PreviewPayload{}, err
	}
	s.cache.Replace(sessionID, snap)
	return payload(sessionID, snap), nil
}

// Export re-runs the pipeline with the confirmed call-out days applied and
// renders the selected CSV format
func (s *Svc) Export(ctx context.Context, sessionID string, in domain.ExportInput) (domain.ExportFile, error) {
	snap, ok := s.cache.Get(sessionID)
	if !ok {
		return domain.ExportFile{}, perr.SessionNotFoundf("session %s not found or expired", sessionID)
	}

	for i := range snap.records {
		key := snap.records[i].Date.Format(domain.DateLayout)
		snap.records[i].CallOutConfirmed = snap.records[i].CallOutEligible && in.CallOutSelections[key]
	}

	if err := s.recalc(&snap); err != nil {
		return domain.ExportFile{}, err
	}
	s.cache.Replace(sessionID, snap)

	return render(in.Format, snap.outputs, snap.summaries)
}

// Outputs implements SessionReader
func (s *Svc) Outputs(sessionID string) ([]timereg.DailyOutput, bool) {
	snap, ok := s.cache.Get(sessionID)
	if !ok {
		return nil, false
	}
	return snap.outputs, true
}

// recalc runs the full pipeline over the snapshot's records, honoring the
// user's absence overrides, and refreshes the computed fields
func (s *Svc) recalc(snap *snapshot) error {
	records, err := interval.AnnotateRecords(snap.records)
	if err != nil {
		return err
	}
	records = absence.Classify(records)

	for i := range records {
		sel, ok := snap.overrides[records[i].Date.Format(domain.DateLayout)]
		if !ok {
			continue
		}
		records[i].AbsentType = sel
		records[i].CreditedHours = 0
		records[i].IsDayOff = false
	}

	records = callout.Annotate(records)
	records = overtime.ApplyCredits(records)

	outputs, summaries := overtime.Process(records)
	for i := range outputs {
		if outputs[i].CallOutApplied {
			outputs[i].CallOutPayment = callout.Payment
		}
	}
	outputs = datefill.Fill(outputs)

	snap.records = records
	snap.outputs = outputs
	snap.summaries = summaries
	snap.callOutDays = eligibleDays(records)
	return nil
}

func (s *Svc) employeeName(ctx context.Context, id int) (string, error) {
	emps, err := s.fetcher.Employees(ctx)
	if err != nil {
		return "", err
	}
	for _, e := range emps {
		if e.EmployeeID == id {
			return e.FullName(), nil
		}
	}
	return ftzapi.Employee{EmployeeID: id}.FullName(), nil
}

func eligibleDays(records []timereg.DailyRecord) []string {
	var dates []time.Time
	for _, r := range records {
		if r.CallOutEligible {
			dates = append(dates, r.Date)
		}
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	days := make([]string, 0, len(dates))
	for _, d := range dates {
		days = append(days, d.Format(domain.DateLayout))
	}
	return days
}

func payload(id string, snap snapshot) domain.PreviewPayload {
	daily := make([]domain.DailyJSON, 0, len(snap.outputs))
	for _, o := range snap.outputs {
		daily = append(daily, domain.DailyFromOutput(o))
	}
	weekly := make([]domain.WeeklyJSON, 0, len(snap.summaries))
	for _, w := range snap.summaries {
		weekly = append(weekly, domain.WeeklyFromSummary(w))
	}
	return domain.PreviewPayload{
		SessionID:           id,
		Daily:               daily,
		Weekly:              weekly,
		CallOutEligibleDays: snap.callOutDays,
		TotalRecords:        len(snap.outputs),
		TotalWeeks:          len(snap.summaries),
	}
}
