package api

import (
	_ "embed"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	"streamsynth/internal/api/handler"
	"streamsynth/pkg/router"
)

//go:embed openapi.yaml
var openAPISpec []byte

// RegisterRoutes wires the admin API, prometheus metrics and API docs.
// gatherer may be nil to skip /metrics.
func RegisterRoutes(r *router.Router, h *handler.PipelineHandler, gatherer prometheus.Gatherer) {
	r.GET("/api/v1/pipeline", h.GetPipeline)
	r.GET("/api/v1/pipeline/errors", h.GetPipelineErrors)
	r.GET("/api/v1/spillover", h.GetSpillover)
	r.POST("/api/v1/spillover/reload", h.ReloadSpillover)
	r.GET("/api/v1/runs", h.ListRuns)
	r.GET("/api/v1/runs/*", h.GetRun)

	if gatherer != nil {
		r.Handle(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	// Swagger UI at /docs, reading the OpenAPI document from /openapi.yaml.
	r.GET("/openapi.yaml", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/yaml")
		w.Write(openAPISpec)
	})
	r.Handle(http.MethodGet, "/docs/*", httpSwagger.Handler(httpSwagger.URL("/openapi.yaml")))
}
