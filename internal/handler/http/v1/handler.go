package v1

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shenikar/truck_dispatch_system/internal/config"
	"github.com/shenikar/truck_dispatch_system/internal/dispatch"
	"github.com/shenikar/truck_dispatch_system/internal/models"
	"github.com/shenikar/truck_dispatch_system/internal/service"
	"github.com/sirupsen/logrus"
)

type Handler struct {
	reportService service.ReportService
	logger        *logrus.Logger
	validate      *validator.Validate
	cfg           *config.Config
}

func NewHandler(reportService service.ReportService, logger *logrus.Logger, cfg *config.Config) *Handler {
	return &Handler{
		reportService: reportService,
		logger:        logger,
		validate:      validator.New(),
		cfg:           cfg,
	}
}

// @Summary Create a new incident report
// @Description Accept an incident report and queue it for dispatch. Requires API key when API_KEYS is set.
// @Tags Reports
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param report body CreateReportRequest true "Report creation request"
// @Success 201 {object} CreateReportResponse
// @Failure 400 {object} map[string]string "Invalid request body or validation error"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /reports [post]
func (h *Handler) createReport(c *gin.Context) {
	var input CreateReportRequest
	log := h.logger.WithField("method", "createReport")

	if err := c.ShouldBindJSON(&input); err != nil {
		log.WithError(err).Warn("Failed to bind JSON")
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if err := h.validate.Struct(input); err != nil {
		log.WithError(err).Warn("Validation failed")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	model := DTOToReportModel(input)
	if err := h.reportService.CreateReport(ctx, model); err != nil {
		h.respondError(c, log, err)
		return
	}
	c.JSON(http.StatusCreated, CreateReportResponse{ID: model.ID})
}

// @Summary Get all reports
// @Description Get every report keyed by its ID. Requires API key when API_KEYS is set.
// @Tags Reports
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} map[string]ReportResponse
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /reports [get]
func (h *Handler) listReports(c *gin.Context) {
	log := h.logger.WithField("method", "listReports")
	ctx, cancel := h.requestContext(c)
	defer cancel()

	reports, err := h.reportService.ListReports(ctx)
	if err != nil {
		h.respondError(c, log, err)
		return
	}
	c.JSON(http.StatusOK, ModelsToReportMap(reports))
}

// @Summary Get report status
// @Description Get a single report with its assignment and ETA. Requires API key when API_KEYS is set.
// @Tags Reports
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "Report ID"
// @Success 200 {object} ReportResponse
// @Failure 400 {object} map[string]string "Invalid report ID"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 404 {object} map[string]string "Report not found"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /reports/{id} [get]
func (h *Handler) getReport(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid report ID"})
		return
	}
	log := h.logger.WithField("method", "getReport").WithField("id", id)
	ctx, cancel := h.requestContext(c)
	defer cancel()

	report, err := h.reportService.GetReport(ctx, id)
	if err != nil {
		h.respondError(c, log, err)
		return
	}
	c.JSON(http.StatusOK, ModelToReportResponse(report))
}

// @Summary Complete a report
// @Description Mark an assigned report as resolved and release its truck. Requires API key when API_KEYS is set.
// @Tags Reports
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "Report ID"
// @Success 200 {object} ReportResponse
// @Failure 400 {object} map[string]string "Invalid report ID"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 404 {object} map[string]string "Report not found"
// @Failure 409 {object} map[string]string "Report is not assigned"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /reports/{id}/complete [post]
func (h *Handler) completeReport(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid report ID"})
		return
	}
	log := h.logger.WithField("method", "completeReport").WithField("id", id)
	ctx, cancel := h.requestContext(c)
	defer cancel()

	report, err := h.reportService.CompleteReport(ctx, id)
	if err != nil {
		h.respondError(c, log, err)
		return
	}
	c.JSON(http.StatusOK, ModelToReportResponse(report))
}

// @Summary Get trucks
// @Description Get every truck with its availability and open assignment. Requires API key when API_KEYS is set.
// @Tags Trucks
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {array} TruckResponse
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /trucks [get]
func (h *Handler) listTrucks(c *gin.Context) {
	log := h.logger.WithField("method", "listTrucks")
	ctx, cancel := h.requestContext(c)
	defer cancel()

	trucks, err := h.reportService.ListTrucks(ctx)
	if err != nil {
		h.respondError(c, log, err)
		return
	}
	c.JSON(http.StatusOK, TruckStatesToResponses(trucks))
}

// @Summary Get assignment history
// @Description Get every truck assignment in the order it was made. Requires API key when API_KEYS is set.
// @Tags Trucks
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {array} AssignmentResponse
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /assignments [get]
func (h *Handler) listAssignments(c *gin.Context) {
	log := h.logger.WithField("method", "listAssignments")
	ctx, cancel := h.requestContext(c)
	defer cancel()

	assignments, err := h.reportService.ListAssignments(ctx)
	if err != nil {
		h.respondError(c, log, err)
		return
	}
	c.JSON(http.StatusOK, AssignmentsToResponses(assignments))
}

// @Summary Reset dispatch state
// @Description Wipe all reports and return every truck to its default position. Requires the admin secret.
// @Tags Admin
// @Produce json
// @Param X-Admin-Secret header string true "Admin secret"
// @Success 200 {object} map[string]string "Reset done"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /admin/reset [post]
func (h *Handler) resetState(c *gin.Context) {
	log := h.logger.WithField("method", "resetState")
	ctx, cancel := h.requestContext(c)
	defer cancel()

	if err := h.reportService.Reset(ctx, c.GetHeader("X-Admin-Secret")); err != nil {
		h.respondError(c, log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "reset"})
}

// @Summary Get application health status
// @Description Get health status of the application
// @Tags System
// @Accept json
// @Produce json
// @Success 200 {object} map[string]string "Status OK"
// @Router /system/health [get]
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// requestContext ограничивает обращение к сервису таймаутом запроса
func (h *Handler) requestContext(c *gin.Context) (context.Context, context.CancelFunc) {
	if h.cfg.RequestTimeout <= 0 {
		return context.WithCancel(c.Request.Context())
	}
	return context.WithTimeout(c.Request.Context(), h.cfg.RequestTimeout)
}

// respondError переводит ошибку сервиса в HTTP-ответ
func (h *Handler) respondError(c *gin.Context, log *logrus.Entry, err error) {
	switch {
	case errors.Is(err, models.ErrInvalidSeverity), errors.Is(err, models.ErrInvalidCoordinates):
		log.WithError(err).Warn("Validation failed")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, models.ErrReportNotFound):
		log.WithError(err).Warn("Report not found")
		c.JSON(http.StatusNotFound, gin.H{"error": "report not found"})
	case errors.Is(err, dispatch.ErrInvalidTransition):
		log.WithError(err).Warn("Invalid report status transition")
		c.JSON(http.StatusConflict, gin.H{"error": dispatch.ErrInvalidTransition.Error()})
	case errors.Is(err, service.ErrUnauthorized):
		log.Warn("Unauthorized request")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
	default:
		log.WithError(err).Error("Request failed in service")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
