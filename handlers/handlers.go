// Package handlers exposes the HTTP and websocket surface. Handlers stay
// thin: parse and validate the request, call the service, map errors to
// status codes.
package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"civicwatch/database"
	"civicwatch/models"
	"civicwatch/service"
	ws "civicwatch/websocket"

	"github.com/apex/log"
	"github.com/gin-gonic/gin"
	gorilla "github.com/gorilla/websocket"
)

// MaxFeedLimit caps the number of reports a single feed query can request.
const MaxFeedLimit = 200

// ReportService is the surface the handlers need from the service layer.
// *service.Service satisfies it.
type ReportService interface {
	SubmitReport(ctx context.Context, req service.SubmitRequest) (*models.Report, error)
	GetReport(ctx context.Context, id int64) (*models.Report, error)
	ListReports(ctx context.Context, filters models.ListFilters) ([]models.Report, error)
	GetFeed(ctx context.Context, reportType string, limit int) ([]models.Report, error)
	AppreciateReport(ctx context.Context, id int64, ipAddress string) (int, error)
}

// Handlers contains all HTTP handlers.
type Handlers struct {
	hub *ws.Hub
	svc ReportService
}

// NewHandlers creates a new handlers instance.
func NewHandlers(hub *ws.Hub, svc ReportService) *Handlers {
	return &Handlers{
		hub: hub,
		svc: svc,
	}
}

// SubmitReportRequest is the payload schema for report submission.
type SubmitReportRequest struct {
	Type        string `json:"type"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Location    string `json:"location"`
	State       string `json:"state"`
	Category    string `json:"category"`
	SubmittedBy string `json:"submitted_by"`
	Email       string `json:"email"`
	IsAnonymous bool   `json:"is_anonymous"`
}

// SubmitReport handles POST /api/v3/reports
func (h *Handlers) SubmitReport(c *gin.Context) {
	var req SubmitReportRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	submit := service.SubmitRequest{
		Type:        req.Type,
		Title:       req.Title,
		Description: req.Description,
		Location:    req.Location,
		State:       req.State,
		Category:    req.Category,
		SubmittedBy: req.SubmittedBy,
		Email:       req.Email,
		IsAnonymous: req.IsAnonymous,
		IPAddress:   c.ClientIP(),
	}

	if msg := service.ValidateSubmission(submit); msg != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": msg})
		return
	}

	report, err := h.svc.SubmitReport(c.Request.Context(), submit)
	if err != nil {
		if errors.Is(err, database.ErrDuplicateContent) {
			c.JSON(http.StatusConflict, gin.H{"error": "A similar report has already been submitted"})
			return
		}
		log.WithError(err).Error("failed to submit report")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to submit report"})
		return
	}

	c.JSON(http.StatusCreated, report)
}

// ListReports handles GET /api/v3/reports
func (h *Handlers) ListReports(c *gin.Context) {
	filters := models.ListFilters{
		Status:   c.Query("status"),
		State:    c.Query("state"),
		Category: c.Query("category"),
	}

	if limitStr := c.Query("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid 'limit' parameter. Must be a positive integer."})
			return
		}
		filters.Limit = limit
	}
	if offsetStr := c.Query("offset"); offsetStr != "" {
		offset, err := strconv.Atoi(offsetStr)
		if err != nil || offset < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid 'offset' parameter. Must be a non-negative integer."})
			return
		}
		filters.Offset = offset
	}

	reports, err := h.svc.ListReports(c.Request.Context(), filters)
	if err != nil {
		log.WithError(err).Error("failed to list reports")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve reports"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"reports": reports,
		"count":   len(reports),
	})
}

// GetReport handles GET /api/v3/reports/:id
func (h *Handlers) GetReport(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid 'id' parameter. Must be a positive integer."})
		return
	}

	report, err := h.svc.GetReport(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Report not found"})
			return
		}
		log.WithError(err).Errorf("failed to get report %d", id)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve report"})
		return
	}

	c.JSON(http.StatusOK, report)
}

// AppreciateReport handles POST /api/v3/reports/:id/appreciate
func (h *Handlers) AppreciateReport(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid 'id' parameter. Must be a positive integer."})
		return
	}

	count, err := h.svc.AppreciateReport(c.Request.Context(), id, c.ClientIP())
	if err != nil {
		switch {
		case errors.Is(err, database.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Report not found"})
		case errors.Is(err, database.ErrAlreadyAppreciated):
			c.JSON(http.StatusConflict, gin.H{"error": "You have already appreciated this report"})
		default:
			log.WithError(err).Errorf("failed to appreciate report %d", id)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to record appreciation"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"report_id":          id,
		"appreciation_count": count,
	})
}

// GetFeed handles GET /api/v3/reports/feed/:type
func (h *Handlers) GetFeed(c *gin.Context) {
	reportType := c.Param("type")
	if !models.ValidType(reportType) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid feed type. Must be 'hero' or 'corruption'."})
		return
	}

	limit := 50
	if limitStr := c.Query("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid 'limit' parameter. Must be a positive integer."})
			return
		}
		limit = parsed
	}
	if limit > MaxFeedLimit {
		limit = MaxFeedLimit
	}

	reports, err := h.svc.GetFeed(c.Request.Context(), reportType, limit)
	if err != nil {
		log.WithError(err).Errorf("failed to get %s feed", reportType)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve feed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"type":    reportType,
		"reports": reports,
		"count":   len(reports),
	})
}

// WebSocket upgrader
var upgrader = gorilla.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Allow all origins for now
		// In production, you should implement proper origin checking
		return true
	},
}

// ListenReports handles websocket connections for the live report feed.
func (h *Handlers) ListenReports(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.WithError(err).Error("failed to upgrade connection to websocket")
		return
	}

	client := ws.NewClient(h.hub, conn)
	if !h.hub.AddClient(client) {
		conn.Close()
		return
	}

	go client.WritePump()
	go client.ReadPump()

	log.Infof("websocket connection established: %s", client.ID)
}

// HealthCheck returns the service health status.
func (h *Handlers) HealthCheck(c *gin.Context) {
	response := models.HealthResponse{
		Status:           "healthy",
		Service:          "civicwatch",
		Timestamp:        time.Now().UTC().Format(time.RFC3339),
		ConnectedClients: h.hub.ConnectedClients(),
	}

	c.JSON(http.StatusOK, response)
}
