package v1

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes регистрирует все маршруты API v1
func (h *Handler) RegisterRoutes(api *gin.RouterGroup) {
	// Маршруты, требующие ключа и пользователя
	secured := api.Group("", APIKeyAuthMiddleware(h.cfg, h.logger), IdentityMiddleware(h.logger))

	incidents := secured.Group("/incidents")
	{
		incidents.POST("", h.createIncident)
		incidents.GET("", h.listIncidents)
		incidents.GET("/live", h.liveIncidents)
		incidents.PATCH("/live/:stream", h.updateLiveFilter)
		incidents.GET("/stats", h.getStats)
		incidents.GET("/stats/live", h.liveStats)
		incidents.GET("/:id", h.getIncident)
		incidents.PUT("/:id", h.updateIncident)
		incidents.DELETE("/:id", h.deleteIncident)

		// Жизненный цикл (только администраторы)
		incidents.POST("/:id/status", h.changeStatus)
		incidents.POST("/:id/assign", h.assignIncident)
		incidents.POST("/:id/merge", h.mergeIncident)
	}

	secured.POST("/classify", h.classify)

	// Маршрут Health-check
	api.GET("/system/health", h.healthCheck)
}
