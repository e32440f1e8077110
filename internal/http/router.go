package http

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/usgs/neic-locator-go/internal/usecase"
)

// SetupRouter builds the service-mode HTTP surface:
// JSON and hydra location endpoints plus a health check, open to any origin since
// this runs as an internal batch/service tool, not a public API.
func SetupRouter(collab usecase.Collaborators, workers int) *gin.Engine {
	router := gin.Default()

	corsCfg := cors.DefaultConfig()
	corsCfg.AllowAllOrigins = true
	corsCfg.AllowMethods = []string{"GET", "POST"}
	corsCfg.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsCfg))

	handler := NewHandler(collab, workers)

	v1 := router.Group("/v1")
	{
		v1.POST("/locate", handler.Locate)
		v1.POST("/locate/hydra", handler.LocateHydra)
	}

	router.GET("/healthz", handler.HealthCheck)

	return router
}
