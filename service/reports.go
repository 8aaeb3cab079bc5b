package service

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"civicwatch/database"
	"civicwatch/dedup"
	"civicwatch/models"
	"civicwatch/sanitize"

	"github.com/apex/log"
)

// SubmitRequest carries one user-originated report through the submission
// pipeline. All free-text fields arrive unsanitized.
type SubmitRequest struct {
	Type        string
	Title       string
	Description string
	Location    string
	State       string
	Category    string
	SubmittedBy string
	Email       string
	IsAnonymous bool
	IPAddress   string
}

// SubmitReport runs duplicate-check -> insert -> publish, in that order. A
// report is only ever published after it has been persisted. Duplicate
// content is rejected with database.ErrDuplicateContent before any insert.
func (s *Service) SubmitReport(ctx context.Context, req SubmitRequest) (*models.Report, error) {
	title := sanitize.Text(req.Title)
	description := sanitize.Text(req.Description)

	contentHash := dedup.HashContent(title, description)

	dctx, cancel := s.dbCtx(ctx)
	defer cancel()

	if s.detector.Check(dctx, contentHash) {
		return nil, database.ErrDuplicateContent
	}

	report := &models.Report{
		Type:        req.Type,
		Title:       title,
		Description: description,
		Location:    sanitize.Text(req.Location),
		State:       sanitize.Text(req.State),
		Category:    sanitize.Text(req.Category),
		Status:      models.StatusPending,
		SourceType:  models.SourceUser,
		ContentHash: contentHash,
	}

	submission := &models.Submission{
		SubmittedBy: "Anonymous",
		IsAnonymous: req.IsAnonymous,
		IPAddress:   req.IPAddress,
	}
	if !req.IsAnonymous && req.SubmittedBy != "" {
		submission.SubmittedBy = sanitize.Text(req.SubmittedBy)
		if req.Email != "" {
			submission.Email = sql.NullString{String: sanitize.Text(req.Email), Valid: true}
		}
	}

	stored, err := s.store.CreateReportWithSubmission(dctx, report, submission)
	if err != nil {
		return nil, err
	}

	s.publishReport(stored)
	return stored, nil
}

// GetReport fetches a report by id. Every successful fetch counts as a
// view; the returned report carries the incremented count.
func (s *Service) GetReport(ctx context.Context, id int64) (*models.Report, error) {
	dctx, cancel := s.dbCtx(ctx)
	defer cancel()

	if err := s.store.IncrementViewCount(dctx, id); err != nil {
		return nil, err
	}
	return s.store.GetReportByID(dctx, id)
}

// ListReports returns a filtered page of reports.
func (s *Service) ListReports(ctx context.Context, filters models.ListFilters) ([]models.Report, error) {
	dctx, cancel := s.dbCtx(ctx)
	defer cancel()
	return s.store.ListReports(dctx, filters)
}

// GetFeed returns the latest verified reports for a feed topic.
func (s *Service) GetFeed(ctx context.Context, reportType string, limit int) ([]models.Report, error) {
	dctx, cancel := s.dbCtx(ctx)
	defer cancel()
	return s.store.GetFeedByType(dctx, reportType, limit)
}

// AppreciateReport records one appreciation per address per report and
// broadcasts the new count to every connected session.
func (s *Service) AppreciateReport(ctx context.Context, id int64, ipAddress string) (int, error) {
	dctx, cancel := s.dbCtx(ctx)
	defer cancel()

	count, err := s.store.RecordAppreciation(dctx, id, ipAddress)
	if err != nil {
		return 0, err
	}

	s.broadcaster.PublishGlobal(models.BroadcastMessage{
		Type:      models.EventAppreciationUpdate,
		Data:      models.AppreciationUpdate{ReportID: id, Count: count},
		Timestamp: time.Now().UTC(),
	})
	return count, nil
}

// publishReport pushes a freshly stored report to its feed topic and, when
// configured, to the downstream exchange.
func (s *Service) publishReport(report *models.Report) {
	s.broadcaster.PublishToTopic(report.Type, models.BroadcastMessage{
		Type:      models.EventFeedUpdate,
		Data:      report,
		Timestamp: time.Now().UTC(),
	})

	if s.publisher != nil {
		if err := s.publisher.PublishReport(report); err != nil {
			log.WithError(err).Warn("failed to publish report downstream")
		}
	}
}

// ValidateSubmission applies the submission bounds: a known type, a title
// of at least 10 characters and a description of at least 50.
func ValidateSubmission(req SubmitRequest) string {
	if !models.ValidType(req.Type) {
		return "Invalid report type"
	}
	if len(strings.TrimSpace(req.Title)) < 10 {
		return "Title must be at least 10 characters"
	}
	if len(strings.TrimSpace(req.Description)) < 50 {
		return "Description must be at least 50 characters"
	}
	return ""
}
