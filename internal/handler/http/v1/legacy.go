package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Маршруты в формате, который ожидает чат-бот. В swagger не описаны:
// они обслуживаются от корня, а не от /api/v1.

// newReport принимает отчет в формате чат-бота и возвращает его hash
func (h *Handler) newReport(c *gin.Context) {
	var input LegacyReportRequest
	log := h.logger.WithField("method", "newReport")

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

	model := LegacyDTOToReportModel(input)
	if err := h.reportService.CreateReport(ctx, model); err != nil {
		h.respondError(c, log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"hash": model.ID.String()})
}

// getData возвращает все отчеты по hash
func (h *Handler) getData(c *gin.Context) {
	log := h.logger.WithField("method", "getData")
	ctx, cancel := h.requestContext(c)
	defer cancel()

	reports, err := h.reportService.ListReports(ctx)
	if err != nil {
		h.respondError(c, log, err)
		return
	}
	c.JSON(http.StatusOK, ModelsToLegacyMap(reports))
}

// repStatus возвращает отчет по query-параметру hash.
// Нечитаемый hash не может указывать на отчет, поэтому ответ 404.
func (h *Handler) repStatus(c *gin.Context) {
	id, err := uuid.Parse(c.Query("hash"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "report not found"})
		return
	}
	log := h.logger.WithField("method", "repStatus").WithField("id", id)
	ctx, cancel := h.requestContext(c)
	defer cancel()

	report, err := h.reportService.GetReport(ctx, id)
	if err != nil {
		h.respondError(c, log, err)
		return
	}
	c.JSON(http.StatusOK, ModelToLegacyReport(report))
}

// trucksManagement возвращает машины по номеру
func (h *Handler) trucksManagement(c *gin.Context) {
	log := h.logger.WithField("method", "trucksManagement")
	ctx, cancel := h.requestContext(c)
	defer cancel()

	trucks, err := h.reportService.ListTrucks(ctx)
	if err != nil {
		h.respondError(c, log, err)
		return
	}
	c.JSON(http.StatusOK, TruckStatesToLegacy(trucks))
}

// updateReport подтверждает, что чат-бот уведомил отправителя
func (h *Handler) updateReport(c *gin.Context) {
	var input LegacyUpdateRequest
	log := h.logger.WithField("method", "updateReport")

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
	if !input.Processed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "only processed=true is accepted"})
		return
	}
	id, err := uuid.Parse(input.Hash)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid report hash"})
		return
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	report, err := h.reportService.MarkNotified(ctx, id)
	if err != nil {
		h.respondError(c, log, err)
		return
	}
	c.JSON(http.StatusOK, ModelToLegacyReport(report))
}
