package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	reportserrors "labbook/internal/reports/errors"
	"labbook/internal/reports/repository"
	"labbook/pkg/auth"
	"labbook/pkg/config"
	apperrors "labbook/pkg/errors"
	"labbook/pkg/model"
	"labbook/pkg/sanitizer"
	"labbook/pkg/timeslot"
	"labbook/pkg/validation"

	"github.com/go-playground/validator/v10"
)

const (
	trendDays       = 30
	popularLabLimit = 5
	peakHourLimit   = 3
)

var utilizedStatuses = []model.BookingStatus{model.StatusApproved, model.StatusCompleted}

// LabDirectory resolves lab names for aggregates.
type LabDirectory interface {
	FindByIDs(ctx context.Context, ids []string) (map[string]*model.Lab, error)
	FindActive(ctx context.Context) ([]*model.Lab, error)
}

// UserDirectory resolves accounts for per-user aggregates.
type UserDirectory interface {
	FindByIDs(ctx context.Context, ids []string) (map[string]*model.User, error)
	FindAll(ctx context.Context) ([]*model.User, error)
}

type Notifier interface {
	Notify(ctx context.Context, userID, title, message string, typ model.NotificationType, opts model.NotifyOptions)
}

type ReportService interface {
	BookingStats(ctx context.Context, from, to *time.Time) (*model.BookingStats, error)
	LabUtilization(ctx context.Context, startDate, endDate string) (*model.UtilizationReport, error)
	GenerateBookingSummary(ctx context.Context, req *model.ReportRequest, principal auth.Principal) (*model.Report, error)
	GenerateLabUtilization(ctx context.Context, req *model.ReportRequest, principal auth.Principal) (*model.Report, error)
	GenerateUserActivity(ctx context.Context, req *model.ReportRequest, principal auth.Principal) (*model.Report, error)
	GetReport(ctx context.Context, id string) (*model.Report, error)
	ListReports(ctx context.Context, page, limit int) ([]*model.Report, int64, error)
	DeleteReport(ctx context.Context, id string, principal auth.Principal) error
	ReportStats(ctx context.Context, from, to *time.Time) (*model.ReportStats, error)
}

type reportService struct {
	reports  repository.ReportRepository
	stats    repository.StatsRepository
	labs     LabDirectory
	users    UserDirectory
	notifier Notifier
	validate *validator.Validate
	cfg      *config.Config
	now      func() time.Time
}

func NewReportService(
	reports repository.ReportRepository,
	stats repository.StatsRepository,
	labs LabDirectory,
	users UserDirectory,
	notifier Notifier,
	cfg *config.Config,
) ReportService {
	return &reportService{
		reports:  reports,
		stats:    stats,
		labs:     labs,
		users:    users,
		notifier: notifier,
		validate: validation.New(cfg.Log),
		cfg:      cfg,
		now:      time.Now,
	}
}

func (s *reportService) BookingStats(ctx context.Context, from, to *time.Time) (*model.BookingStats, error) {
	if from != nil && to != nil && to.Before(*from) {
		return nil, apperrors.InvalidInput("End date must be on or after start date")
	}
	match := repository.BookingMatch{From: from, To: to}

	var (
		totals     []repository.StatusTotal
		trend      []model.DailyCount
		popular    []model.LabCount
		totalsErr  error
		trendErr   error
		popularErr error
		wg         sync.WaitGroup
	)

	wg.Add(3)
	go func() {
		defer wg.Done()
		totals, totalsErr = s.stats.StatusTotals(ctx, match)
	}()
	go func() {
		defer wg.Done()
		since := timeslot.Day(s.now()).AddDate(0, 0, -trendDays)
		trend, trendErr = s.stats.DailyTrend(ctx, since)
	}()
	go func() {
		defer wg.Done()
		popular, popularErr = s.stats.LabCounts(ctx, match, popularLabLimit)
	}()
	wg.Wait()

	if err := errors.Join(totalsErr, trendErr, popularErr); err != nil {
		s.cfg.Log.Error("Failed to compute booking statistics", "error", err)
		return nil, apperrors.Internal("Failed to compute booking statistics", err)
	}

	stats := &model.BookingStats{
		ByStatus:    make(map[string]model.StatusCount, len(totals)),
		Trend:       nonNil(trend),
		PopularLabs: s.nameLabs(ctx, popular),
	}
	for _, t := range totals {
		stats.Total += t.Count
		stats.ByStatus[t.Status] = model.StatusCount{Count: t.Count, TotalParticipants: t.Participants}
	}
	return stats, nil
}

func (s *reportService) LabUtilization(ctx context.Context, startDate, endDate string) (*model.UtilizationReport, error) {
	from, to, err := parseRange(startDate, endDate)
	if err != nil {
		return nil, err
	}

	report, err := s.utilization(ctx, from, to)
	if err != nil {
		s.cfg.Log.Error("Failed to compute lab utilization", "start_date", startDate, "end_date", endDate, "error", err)
		return nil, apperrors.Internal("Failed to compute lab utilization", err)
	}
	return report, nil
}

// utilization rates each active lab by booked hours against
// days in range × workday hours.
func (s *reportService) utilization(ctx context.Context, from, to time.Time) (*model.UtilizationReport, error) {
	match := repository.BookingMatch{From: &from, To: &to, Statuses: utilizedStatuses}

	var (
		labs     []*model.Lab
		usage    []model.LabUsage
		peak     []model.HourCount
		labsErr  error
		usageErr error
		peakErr  error
		wg       sync.WaitGroup
	)

	wg.Add(3)
	go func() {
		defer wg.Done()
		labs, labsErr = s.labs.FindActive(ctx)
	}()
	go func() {
		defer wg.Done()
		usage, usageErr = s.stats.LabUsage(ctx, match)
	}()
	go func() {
		defer wg.Done()
		peak, peakErr = s.stats.PeakHours(ctx, match, peakHourLimit)
	}()
	wg.Wait()

	if err := errors.Join(labsErr, usageErr, peakErr); err != nil {
		return nil, err
	}

	days := timeslot.DaysInclusive(from, to)
	available := float64(days * s.cfg.WorkdayHours)

	byLab := make(map[string]model.LabUsage, len(usage))
	for _, u := range usage {
		byLab[u.LabID] = u
	}

	report := &model.UtilizationReport{
		StartDate: timeslot.FormatDate(from),
		EndDate:   timeslot.FormatDate(to),
		Days:      days,
		Labs:      make([]model.LabUtilization, 0, len(labs)),
		PeakHours: nonNil(peak),
	}

	var totalBooked float64
	for _, lab := range labs {
		u := byLab[lab.ID]
		booked := float64(u.BookedMinutes) / 60
		totalBooked += booked

		report.Labs = append(report.Labs, model.LabUtilization{
			LabID:           lab.ID,
			Name:            lab.Name,
			Code:            lab.Code,
			BookingCount:    u.BookingCount,
			BookedHours:     timeslot.Round2(booked),
			AvailableHours:  available,
			UtilizationRate: rate(booked, available),
		})
	}

	sort.SliceStable(report.Labs, func(i, j int) bool {
		if report.Labs[i].UtilizationRate != report.Labs[j].UtilizationRate {
			return report.Labs[i].UtilizationRate > report.Labs[j].UtilizationRate
		}
		return report.Labs[i].Name < report.Labs[j].Name
	})

	report.AverageUtilization = rate(totalBooked, available*float64(len(labs)))
	return report, nil
}

func (s *reportService) GenerateBookingSummary(ctx context.Context, req *model.ReportRequest, principal auth.Principal) (*model.Report, error) {
	from, to, err := s.prepare(req, principal)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	report := &model.Report{
		Title:       defaultText(req.Title, "Booking Summary Report - "+timeslot.FormatDate(now)),
		Description: defaultText(req.Description, fmt.Sprintf("Booking summary from %s to %s", timeslot.FormatDate(from), timeslot.FormatDate(to))),
		Type:        model.ReportBookingSummary,
		Format:      model.ReportFormatJSON,
		GeneratedBy: principal.ID,
		Filters:     model.ReportFilters{StartDate: &from, EndDate: &to, LabID: req.LabID},
		CreatedAt:   now,
	}

	summary, err := s.bookingSummary(ctx, repository.BookingMatch{
		From:     &from,
		To:       &to,
		LabID:    req.LabID,
		Statuses: utilizedStatuses,
	})
	if err != nil {
		return nil, s.fail(ctx, report, err)
	}

	report.RecordCount = int(summary.TotalBookings)
	return s.complete(ctx, report, summary)
}

func (s *reportService) GenerateLabUtilization(ctx context.Context, req *model.ReportRequest, principal auth.Principal) (*model.Report, error) {
	from, to, err := s.prepare(req, principal)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	report := &model.Report{
		Title:       defaultText(req.Title, "Lab Utilization Report - "+timeslot.FormatDate(now)),
		Description: defaultText(req.Description, fmt.Sprintf("Lab utilization analysis from %s to %s", timeslot.FormatDate(from), timeslot.FormatDate(to))),
		Type:        model.ReportLabUtilization,
		Format:      model.ReportFormatJSON,
		GeneratedBy: principal.ID,
		Filters:     model.ReportFilters{StartDate: &from, EndDate: &to},
		CreatedAt:   now,
	}

	utilization, err := s.utilization(ctx, from, to)
	if err != nil {
		return nil, s.fail(ctx, report, err)
	}

	report.RecordCount = len(utilization.Labs)
	return s.complete(ctx, report, utilization)
}

func (s *reportService) GetReport(ctx context.Context, id string) (*model.Report, error) {
	report, err := s.reports.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, reportserrors.ErrNotFound) || errors.Is(err, reportserrors.ErrInvalidID) {
			return nil, apperrors.NotFoundWithID("Report", id)
		}
		s.cfg.Log.Error("Failed to get report", "id", id, "error", err)
		return nil, apperrors.Internal("Failed to retrieve report", err)
	}
	return report, nil
}

func (s *reportService) ListReports(ctx context.Context, page, limit int) ([]*model.Report, int64, error) {
	var (
		reports  []*model.Report
		total    int64
		listErr  error
		countErr error
		wg       sync.WaitGroup
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		reports, listErr = s.reports.List(ctx, page, limit)
	}()
	go func() {
		defer wg.Done()
		total, countErr = s.reports.Count(ctx)
	}()
	wg.Wait()

	if err := errors.Join(listErr, countErr); err != nil {
		s.cfg.Log.Error("Failed to list reports", "error", err)
		return nil, 0, apperrors.Internal("Failed to retrieve reports", err)
	}
	return reports, total, nil
}

func (s *reportService) GenerateUserActivity(ctx context.Context, req *model.ReportRequest, principal auth.Principal) (*model.Report, error) {
	from, to, err := s.prepare(req, principal)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	description := fmt.Sprintf("User activity from %s to %s", timeslot.FormatDate(from), timeslot.FormatDate(to))
	if req.Department != "" {
		description += " for " + req.Department
	}
	report := &model.Report{
		Title:       defaultText(req.Title, "User Activity Report - "+timeslot.FormatDate(now)),
		Description: defaultText(req.Description, description),
		Type:        model.ReportUserActivity,
		Format:      model.ReportFormatJSON,
		GeneratedBy: principal.ID,
		Filters: model.ReportFilters{
			StartDate:  &from,
			EndDate:    &to,
			LabID:      req.LabID,
			Department: req.Department,
			Role:       req.Role,
		},
		CreatedAt: now,
	}

	activity, err := s.userActivity(ctx, from, to, req)
	if err != nil {
		return nil, s.fail(ctx, report, err)
	}

	report.RecordCount = activity.TotalUsers
	return s.complete(ctx, report, activity)
}

// userActivity lists every account matching the department and role
// filters, including those without bookings in range.
func (s *reportService) userActivity(ctx context.Context, from, to time.Time, req *model.ReportRequest) (*model.UserActivityReport, error) {
	var (
		users    []*model.User
		rows     []model.UserBookings
		usersErr error
		rowsErr  error
		wg       sync.WaitGroup
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		users, usersErr = s.users.FindAll(ctx)
	}()
	go func() {
		defer wg.Done()
		rows, rowsErr = s.stats.UserActivity(ctx, repository.BookingMatch{From: &from, To: &to, LabID: req.LabID})
	}()
	wg.Wait()

	if err := errors.Join(usersErr, rowsErr); err != nil {
		return nil, err
	}

	byUser := make(map[string]model.UserBookings, len(rows))
	for _, row := range rows {
		byUser[row.UserID] = row
	}

	report := &model.UserActivityReport{
		StartDate: timeslot.FormatDate(from),
		EndDate:   timeslot.FormatDate(to),
		Users:     []model.UserActivity{},
	}
	for _, u := range users {
		if req.Department != "" && !strings.EqualFold(u.Department, req.Department) {
			continue
		}
		if req.Role != "" && u.Role != req.Role {
			continue
		}

		row := byUser[u.ID]
		activity := model.UserActivity{
			UserID:            u.ID,
			Name:              u.Name,
			Email:             u.Email,
			Department:        u.Department,
			Role:              u.Role,
			TotalBookings:     row.Total,
			ApprovedBookings:  row.Approved,
			PendingBookings:   row.Pending,
			TotalParticipants: row.Participants,
			BookingFrequency:  bookingFrequency(row),
		}
		if row.Total > 0 {
			last := row.LastDate.UTC()
			activity.LastBooking = &last
			report.ActiveUsers++
		}
		report.TotalBookings += row.Total
		report.Users = append(report.Users, activity)
	}

	sort.SliceStable(report.Users, func(i, j int) bool {
		if report.Users[i].TotalBookings != report.Users[j].TotalBookings {
			return report.Users[i].TotalBookings > report.Users[j].TotalBookings
		}
		return report.Users[i].Name < report.Users[j].Name
	})
	report.TotalUsers = len(report.Users)
	return report, nil
}

// bookingFrequency buckets bookings per day between the first and last
// booked day.
func bookingFrequency(row model.UserBookings) string {
	if row.Total == 0 {
		return "None"
	}
	span := row.LastDate.Sub(row.FirstDate).Hours() / 24
	if span <= 0 {
		return "Daily"
	}

	perDay := float64(row.Total) / span
	switch {
	case perDay >= 1:
		return "Daily"
	case perDay >= 0.5:
		return "Every other day"
	case perDay >= 0.14:
		return "Weekly"
	default:
		return "Monthly or less"
	}
}

// DeleteReport removes a stored report. Admins may delete any report, other
// callers only their own.
func (s *reportService) DeleteReport(ctx context.Context, id string, principal auth.Principal) error {
	report, err := s.GetReport(ctx, id)
	if err != nil {
		return err
	}
	if !principal.IsAdmin() && report.GeneratedBy != principal.ID {
		return apperrors.Forbidden("Not authorized to delete this report")
	}

	if err := s.reports.Delete(ctx, id); err != nil {
		if errors.Is(err, reportserrors.ErrNotFound) || errors.Is(err, reportserrors.ErrInvalidID) {
			return apperrors.NotFoundWithID("Report", id)
		}
		s.cfg.Log.Error("Failed to delete report", "id", id, "error", err)
		return apperrors.Internal("Failed to delete report", err)
	}

	s.cfg.Log.Info("Report deleted", "id", id, "type", report.Type, "by", principal.ID)
	return nil
}

func (s *reportService) ReportStats(ctx context.Context, from, to *time.Time) (*model.ReportStats, error) {
	if from != nil && to != nil && to.Before(*from) {
		return nil, apperrors.InvalidInput("End date must be on or after start date")
	}

	stats, err := s.reports.Stats(ctx, from, to)
	if err != nil {
		s.cfg.Log.Error("Failed to compute report statistics", "error", err)
		return nil, apperrors.Internal("Failed to compute report statistics", err)
	}

	stats.ByType = nonNil(stats.ByType)
	stats.ByStatus = nonNil(stats.ByStatus)
	stats.ByFormat = nonNil(stats.ByFormat)
	stats.MonthlyTrend = nonNil(stats.MonthlyTrend)
	stats.TotalReports = 0
	for _, b := range stats.ByType {
		stats.TotalReports += b.Count
	}
	// Stored newest first so the limit keeps recent months.
	slices.Reverse(stats.MonthlyTrend)
	return stats, nil
}

func (s *reportService) bookingSummary(ctx context.Context, match repository.BookingMatch) (*model.BookingSummary, error) {
	var (
		totals    []repository.StatusTotal
		byLab     []model.LabCount
		byUser    []model.UserCount
		byDay     []model.DailyCount
		totalsErr error
		byLabErr  error
		byUserErr error
		byDayErr  error
		wg        sync.WaitGroup
	)

	wg.Add(4)
	go func() {
		defer wg.Done()
		totals, totalsErr = s.stats.StatusTotals(ctx, match)
	}()
	go func() {
		defer wg.Done()
		byLab, byLabErr = s.stats.LabCounts(ctx, match, 0)
	}()
	go func() {
		defer wg.Done()
		byUser, byUserErr = s.stats.UserCounts(ctx, match, 0)
	}()
	go func() {
		defer wg.Done()
		byDay, byDayErr = s.stats.DailyCounts(ctx, match)
	}()
	wg.Wait()

	if err := errors.Join(totalsErr, byLabErr, byUserErr, byDayErr); err != nil {
		return nil, err
	}

	summary := &model.BookingSummary{
		StartDate: timeslot.FormatDate(*match.From),
		EndDate:   timeslot.FormatDate(*match.To),
		ByStatus:  make(map[string]model.StatusCount, len(totals)),
		ByLab:     s.nameLabs(ctx, byLab),
		ByUser:    s.nameUsers(ctx, byUser),
		ByDay:     nonNil(byDay),
	}

	var minutes int64
	for _, t := range totals {
		summary.TotalBookings += t.Count
		summary.TotalParticipants += t.Participants
		summary.ByStatus[t.Status] = model.StatusCount{Count: t.Count, TotalParticipants: t.Participants}
		minutes += t.Minutes
	}
	summary.TotalHours = timeslot.Round2(float64(minutes) / 60)
	return summary, nil
}

func (s *reportService) prepare(req *model.ReportRequest, principal auth.Principal) (time.Time, time.Time, error) {
	if !principal.IsAdmin() {
		return time.Time{}, time.Time{}, apperrors.Forbidden("Only admins can generate reports")
	}

	req.Title = sanitizer.Text(req.Title)
	req.Description = sanitizer.Multiline(req.Description)
	if err := validation.Struct(s.validate, req); err != nil {
		var verrs validation.ValidationErrors
		if errors.As(err, &verrs) {
			return time.Time{}, time.Time{}, apperrors.Validation("Report request validation failed", verrs.Details())
		}
		return time.Time{}, time.Time{}, apperrors.InvalidInput(err.Error())
	}

	return parseRange(req.StartDate, req.EndDate)
}

func (s *reportService) complete(ctx context.Context, report *model.Report, summary any) (*model.Report, error) {
	doc, err := document(summary)
	if err != nil {
		return nil, s.fail(ctx, report, err)
	}
	report.Summary = doc
	report.Status = model.ReportCompleted

	if err := s.reports.Create(ctx, report); err != nil {
		s.cfg.Log.Error("Failed to save report", "type", report.Type, "error", err)
		return nil, apperrors.Internal("Failed to save report", err)
	}

	s.cfg.Log.Info("Report generated", "id", report.ID, "type", report.Type, "by", report.GeneratedBy, "records", report.RecordCount)

	s.notifier.Notify(context.WithoutCancel(ctx), report.GeneratedBy,
		"Report Ready",
		fmt.Sprintf("Your report %q has been generated.", report.Title),
		model.NotificationReportReady,
		model.NotifyOptions{
			RelatedTo:   &model.RelatedTo{Model: model.RelatedReport, ID: report.ID},
			Priority:    model.PriorityLow,
			ActionURL:   s.cfg.AppBaseURL + "/admin/reports/" + report.ID,
			ActionLabel: "View report",
			Data: map[string]any{
				"report_id":    report.ID,
				"report_type":  string(report.Type),
				"record_count": report.RecordCount,
			},
			SkipEmail: true,
		},
	)
	return report, nil
}

// fail records the failed run and returns the error for the caller.
func (s *reportService) fail(ctx context.Context, report *model.Report, cause error) error {
	s.cfg.Log.Error("Failed to generate report", "type", report.Type, "by", report.GeneratedBy, "error", cause)

	report.Status = model.ReportFailed
	report.Error = cause.Error()
	if err := s.reports.Create(ctx, report); err != nil {
		s.cfg.Log.Warn("Failed to record report failure", "type", report.Type, "error", err)
	}
	return apperrors.Internal("Failed to generate report", cause)
}

func (s *reportService) nameLabs(ctx context.Context, counts []model.LabCount) []model.LabCount {
	if len(counts) == 0 {
		return []model.LabCount{}
	}

	ids := make([]string, 0, len(counts))
	for _, c := range counts {
		ids = append(ids, c.LabID)
	}

	labs, err := s.labs.FindByIDs(ctx, ids)
	if err != nil {
		s.cfg.Log.Warn("Failed to resolve lab names", "error", err)
		return counts
	}
	for i := range counts {
		if lab, ok := labs[counts[i].LabID]; ok {
			counts[i].Name = lab.Name
			counts[i].Code = lab.Code
		}
	}
	return counts
}

func (s *reportService) nameUsers(ctx context.Context, counts []model.UserCount) []model.UserCount {
	if len(counts) == 0 {
		return []model.UserCount{}
	}

	ids := make([]string, 0, len(counts))
	for _, c := range counts {
		ids = append(ids, c.UserID)
	}

	users, err := s.users.FindByIDs(ctx, ids)
	if err != nil {
		s.cfg.Log.Warn("Failed to resolve user names", "error", err)
		return counts
	}
	for i := range counts {
		if u, ok := users[counts[i].UserID]; ok {
			counts[i].Name = u.Name
			counts[i].Email = u.Email
		}
	}
	return counts
}

func parseRange(startDate, endDate string) (time.Time, time.Time, error) {
	details := map[string]any{}

	from, err := timeslot.ParseDate(startDate)
	if err != nil {
		details["start_date"] = "Start date must be a valid date (YYYY-MM-DD)"
	}
	to, err := timeslot.ParseDate(endDate)
	if err != nil {
		details["end_date"] = "End date must be a valid date (YYYY-MM-DD)"
	}
	if len(details) > 0 {
		return time.Time{}, time.Time{}, apperrors.Validation("Invalid date range", details)
	}

	if to.Before(from) {
		return time.Time{}, time.Time{}, apperrors.InvalidInput("End date must be on or after start date")
	}
	return from, to, nil
}

func rate(booked, available float64) float64 {
	if available <= 0 {
		return 0
	}
	return timeslot.Round2(booked / available * 100)
}

// document converts an aggregate into the generic form stored on a report.
func document(v any) (map[string]any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode report summary: %w", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to encode report summary: %w", err)
	}
	return doc, nil
}

func defaultText(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
