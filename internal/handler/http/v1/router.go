package v1

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes регистрирует все маршруты API v1
func (h *Handler) RegisterRoutes(api *gin.RouterGroup) {
	protected := h.protectedGroup(api)

	// Маршруты для работы с отчетами
	reports := protected.Group("/reports")
	{
		reports.POST("", h.createReport)
		reports.GET("", h.listReports)
		reports.GET("/:id", h.getReport)
		reports.POST("/:id/complete", h.completeReport)
	}

	// Автопарк и журнал назначений
	protected.GET("/trucks", h.listTrucks)
	protected.GET("/assignments", h.listAssignments)

	// Сброс защищен собственным секретом
	api.POST("/admin/reset", h.resetState)

	// Маршрут Health-check
	api.GET("/system/health", h.healthCheck)
}

// RegisterLegacyRoutes регистрирует маршруты чат-бота в корне
func (h *Handler) RegisterLegacyRoutes(router *gin.RouterGroup) {
	legacy := h.protectedGroup(router)
	legacy.POST("/newReport", h.newReport)
	legacy.GET("/getData", h.getData)
	legacy.GET("/repStatus", h.repStatus)
	legacy.GET("/trucksManagement", h.trucksManagement)
	legacy.POST("/updateReport", h.updateReport)
}

// protectedGroup включает проверку API-ключа, если ключи заданы
func (h *Handler) protectedGroup(parent *gin.RouterGroup) *gin.RouterGroup {
	group := parent.Group("")
	if len(h.cfg.APIKeys) > 0 {
		group.Use(APIKeyAuthMiddleware(h.cfg, h.logger))
	}
	return group
}
