// Package handler implements the HTTP endpoints.
package handler

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/elastic/go-elasticsearch/v8"

	"github.com/toolscout/toolscout/internal/models"
	"github.com/toolscout/toolscout/internal/service"
)

const version = "1.0.0"

// HealthHandler handles GET /health with dependency checks
type HealthHandler struct {
	es *elasticsearch.Client
	bq *service.BigQueryService
}

func NewHealthHandler(es *elasticsearch.Client, bq *service.BigQueryService) *HealthHandler {
	return &HealthHandler{es: es, bq: bq}
}

func (h *HealthHandler) pingES(ctx context.Context) error {
	res, err := h.es.Ping(h.es.Ping.WithContext(ctx))
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("ping error: %s", res.Status())
	}
	return nil
}

// Health handles GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{"server": "ok"}
	overallStatus := "healthy"

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if h.es != nil {
		if err := h.pingES(ctx); err != nil {
			checks["elasticsearch"] = "unavailable: " + err.Error()
			overallStatus = "degraded"
		} else {
			checks["elasticsearch"] = "ok"
		}
	} else {
		checks["elasticsearch"] = "disabled"
	}

	if h.bq != nil {
		if err := h.bq.TestConnection(ctx); err != nil {
			checks["bigquery"] = "unavailable: " + err.Error()
			overallStatus = "degraded"
		} else {
			checks["bigquery"] = "ok"
		}
	} else {
		checks["bigquery"] = "disabled"
	}

	statusCode := http.StatusOK
	if overallStatus == "degraded" {
		statusCode = http.StatusServiceUnavailable
	}

	models.WriteJSON(w, statusCode, models.HealthResponse{
		Status:  overallStatus,
		Version: version,
		Checks:  checks,
	})
}
