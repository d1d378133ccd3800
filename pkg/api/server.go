// Package api Niflheim REST API
//
// @title           Niflheim REST API
// @version         1.0.0
// @description     Read-only inspection service for schema-driven game asset containers.
// @host            localhost:9200
// @BasePath        /api/v1
//
// @securityDefinitions.apikey ApiKeyAuth
// @in              header
// @name            X-API-Key
package api

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/ssargent/niflheim/pkg/toaster"
	"github.com/swaggo/swag"
)

// StartServer starts the HTTP server with all routes configured
func StartServer(formats []toaster.Format, config ServerConfig) error {
	// Set Swagger host with port
	if SwaggerInfo != nil {
		SwaggerInfo.Host = fmt.Sprintf("localhost:%d", config.Port)
	}

	// Initialize metrics
	metrics := NewMetrics()

	server := NewServer(formats, config, metrics)

	r := chi.NewRouter()

	// Middleware
	r.Use(requestIDMiddleware)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Prometheus metrics endpoint (unprotected for scraping)
	r.Handle("/metrics", promhttp.Handler())

	// API key authentication middleware for protected routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(metrics.InstrumentAuthMiddleware(apiKeyMiddleware(config.APIKey)))

		// Health check
		r.Get("/health", metrics.InstrumentHandler("GET", "/api/v1/health", server.handleHealth))

		// Container operations
		r.Post("/inspect", metrics.InstrumentHandler("POST", "/api/v1/inspect", server.handleInspect))
		r.Post("/dump", metrics.InstrumentHandler("POST", "/api/v1/dump", server.handleDump))
		r.Get("/formats", metrics.InstrumentHandler("GET", "/api/v1/formats", server.handleFormats))

		// Diagnostics
		r.Get("/stats", metrics.InstrumentHandler("GET", "/api/v1/stats", server.handleStats))
	})

	// Swagger documentation (unprotected)
	r.Get("/swagger/*", serveSwagger)

	addr := fmt.Sprintf(":%d", config.Port)
	fmt.Printf("Starting Niflheim REST API server on %s\n", addr)
	fmt.Printf("Metrics available at: http://localhost:%d/metrics\n", config.Port)
	return http.ListenAndServe(addr, r)
}

// serveSwagger serves the Swagger UI and the generated document behind it
func serveSwagger(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path
	if path == "/swagger/" || path == "/swagger/index.html" {
		// Serve the Swagger UI HTML
		w.Header().Set("Content-Type", "text/html")
		html := `<!DOCTYPE html>
<html>
<head>
	 <title>Niflheim API Documentation</title>
	 <link rel="stylesheet" type="text/css" href="https://unpkg.com/swagger-ui-dist@3.25.0/swagger-ui.css" />
</head>
<body>
	 <div id="swagger-ui"></div>
	 <script src="https://unpkg.com/swagger-ui-dist@3.25.0/swagger-ui-bundle.js"></script>
	 <script>
	   window.onload = function() {
	     SwaggerUIBundle({
	       url: '/swagger/swagger.json',
	       dom_id: '#swagger-ui',
	       presets: [
	         SwaggerUIBundle.presets.apis,
	         SwaggerUIBundle.presets.standalone
	       ]
	     });
	   };
	 </script>
</body>
</html>`
		w.Write([]byte(html))
		return
	}

	if path == "/swagger/swagger.json" {
		// Serve the dynamically generated Swagger JSON
		doc, err := swag.ReadDoc("swagger")
		if err != nil {
			http.Error(w, "Failed to generate Swagger documentation", 500)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(doc))
		return
	}

	// For any other paths, return 404
	http.NotFound(w, r)
}
