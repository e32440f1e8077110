package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/usgs/neic-locator-go/internal/adapter/hydra"
	"github.com/usgs/neic-locator-go/internal/adapter/jsonio"
	"github.com/usgs/neic-locator-go/internal/usecase"
)

// Handler serves the locator's "service" CLI mode over HTTP.
type Handler struct {
	collab  usecase.Collaborators
	workers int
}

// NewHandler builds a Handler sharing collab across every request: the
// travel-time/craton/zone collaborators are read-only and process-wide; each
// request still gets its own Engine).
func NewHandler(collab usecase.Collaborators, workers int) *Handler {
	return &Handler{collab: collab, workers: workers}
}

// Locate handles POST /v1/locate: JSON request in, JSON response out.
func (h *Handler) Locate(c *gin.Context) {
	req, err := jsonio.DecodeRequest(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	log := logrus.NewEntry(logrus.StandardLogger())
	engine, err := usecase.NewEngine(req, h.collab.TravelTime, h.collab.Craton, h.collab.Zones, log)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp := engine.Locate()
	c.Status(http.StatusOK)
	c.Header("Content-Type", "application/json")
	if err := jsonio.EncodeResponse(c.Writer, resp); err != nil {
		logrus.WithError(err).Error("failed to encode locate response")
	}
}

// LocateHydra handles POST /v1/locate/hydra: the legacy fixed-format text
// request and response.
func (h *Handler) LocateHydra(c *gin.Context) {
	req, err := hydra.ParseRequest(c.Request.Body)
	if err != nil {
		c.String(http.StatusBadRequest, "error: %v\n", err)
		return
	}

	log := logrus.NewEntry(logrus.StandardLogger())
	engine, err := usecase.NewEngine(req, h.collab.TravelTime, h.collab.Craton, h.collab.Zones, log)
	if err != nil {
		c.String(http.StatusBadRequest, "error: %v\n", err)
		return
	}

	resp := engine.Locate()
	c.Status(http.StatusOK)
	c.Header("Content-Type", "text/plain")
	if err := hydra.WriteResponse(c.Writer, resp); err != nil {
		logrus.WithError(err).Error("failed to write hydra response")
	}
}

// HealthCheck handles GET /healthz.
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}
