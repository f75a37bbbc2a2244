package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/utafrali/RelistGo/internal/imaging"
	"github.com/utafrali/RelistGo/internal/service"
	"github.com/utafrali/RelistGo/pkg/health"
	"github.com/utafrali/RelistGo/pkg/middleware"
)

// RouterConfig carries the HTTP-level knobs the router needs beyond its
// service dependencies.
type RouterConfig struct {
	Environment       string
	AllowedOrigins    []string
	PprofAllowedCIDRs []string
}

// NewRouter creates a chi router with all relist service routes registered.
func NewRouter(
	productService *service.ProductService,
	harvestService *service.HarvestService,
	materializerService *service.MaterializerService,
	registrationService *service.RegistrationService,
	categoryService *service.CategoryService,
	settingsService *service.SettingsService,
	exportService *service.ExportService,
	quota *imaging.QuotaFlag,
	healthHandler *health.Handler,
	cfg RouterConfig,
	logger *slog.Logger,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.CORS(middleware.CORSConfig{
		AllowedOrigins: cfg.AllowedOrigins,
		Environment:    cfg.Environment,
	}))
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.PrometheusMetrics("relist"))
	r.Use(middleware.Tracing("relist"))
	r.Use(middleware.RequestLogger(logger))

	// Health check endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		promhttp.Handler().ServeHTTP(w, r)
	})

	middleware.RegisterPprof(r, cfg.PprofAllowedCIDRs, logger)

	// Product API endpoints
	productHandler := NewProductHandler(productService, exportService, logger)

	r.Route("/api/v1/products", func(r chi.Router) {
		r.Use(ContentTypeJSON)

		r.Get("/", productHandler.ListProducts)
		r.Get("/export", productHandler.ExportProducts)
		r.Put("/visibility", productHandler.SetVisibility)
		r.Post("/batch-delete", productHandler.DeleteProducts)
		r.Get("/{itemNumber}", productHandler.GetProduct)
		r.Delete("/{itemNumber}/images", productHandler.RemoveImage)
	})

	r.Route("/api/v1/origins", func(r chi.Router) {
		r.Use(ContentTypeJSON)

		r.Get("/", productHandler.ListOrigins)
		r.Get("/{productId}", productHandler.GetOrigin)
	})

	// Harvest API endpoints
	harvestHandler := NewHarvestHandler(harvestService, logger)

	r.Route("/api/v1/harvest", func(r chi.Router) {
		r.Use(ContentTypeJSON)

		r.Post("/keyword", harvestHandler.HarvestByKeyword)
		r.Post("/category", harvestHandler.HarvestByCategory)
		r.Post("/image-search", harvestHandler.SearchByImage)
	})

	// Materialization API endpoints
	materializeHandler := NewMaterializeHandler(materializerService, quota, logger)

	r.Route("/api/v1/materialize", func(r chi.Router) {
		r.Use(ContentTypeJSON)

		r.Post("/", materializeHandler.Materialize)
	})

	// Marketplace registration API endpoints
	registrationHandler := NewRegistrationHandler(registrationService, logger)

	r.Route("/api/v1/registration", func(r chi.Router) {
		r.Use(ContentTypeJSON)

		r.Post("/items", registrationHandler.Register)
		r.Post("/images", registrationHandler.RegisterImages)
		r.Post("/inventory", registrationHandler.RegisterInventory)
		r.Post("/reconcile", registrationHandler.Reconcile)
		r.Post("/delete", registrationHandler.Delete)
	})

	// Category API endpoints
	categoryHandler := NewCategoryHandler(categoryService, logger)

	r.Route("/api/v1/categories", func(r chi.Router) {
		r.Use(ContentTypeJSON)

		r.Get("/", categoryHandler.ListCategories)
		r.Post("/", categoryHandler.CreateCategory)
		r.Get("/primaries", categoryHandler.ListPrimaryCategories)
		r.Post("/primaries", categoryHandler.CreatePrimaryCategory)
		r.Delete("/primaries/{id}", categoryHandler.DeletePrimaryCategory)
		r.Get("/{id}", categoryHandler.GetCategory)
		r.Put("/{id}", categoryHandler.UpdateCategory)
		r.Delete("/{id}", categoryHandler.DeleteCategory)
	})

	// Settings API endpoints
	settingsHandler := NewSettingsHandler(settingsService, logger)

	r.Route("/api/v1/settings", func(r chi.Router) {
		r.Use(ContentTypeJSON)

		r.Get("/pricing", settingsHandler.GetPricingSettings)
		r.Put("/pricing", settingsHandler.UpdatePricingSettings)
	})

	return r
}
