package approuters

import (
	"github.com/Parth8155/SkillSwap/internal/configuration"
	"github.com/Parth8155/SkillSwap/internal/handler"
	"github.com/Parth8155/SkillSwap/internal/hub"

	"github.com/gin-gonic/gin"
)

// MonitorRouters sets up monitoring API routes
func MonitorRouters(router *gin.Engine, container *configuration.Container) {
	monitorService := hub.NewMonitorService(container.Hub)
	monitorHandler := handler.NewMonitorHandler(monitorService)

	monitorGroup := router.Group("/api/monitor")
	{
		monitorGroup.GET("/stats", monitorHandler.GetHubStats)
	}
}
