// Package router provides HTTP routing, middleware configuration, and server setup for the web application
package router

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/amirphl/likebounty/app/dto"
	"github.com/amirphl/likebounty/app/handlers"
	"github.com/amirphl/likebounty/app/middleware"
	"github.com/amirphl/likebounty/config"
	"github.com/amirphl/likebounty/utils"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/helmet"
	"github.com/gofiber/fiber/v3/middleware/limiter"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/gofiber/fiber/v3/middleware/requestid"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Router interface for HTTP routing
type Router interface {
	SetupRoutes()
	Start(address string) error
	GetApp() *fiber.App
}

// Handlers groups the endpoint handlers served by the router
type Handlers struct {
	Campaign handlers.CampaignHandlerInterface
	Registry handlers.RegistryHandlerInterface
	Wallet   handlers.WalletHandlerInterface
	Health   *handlers.HealthHandler
}

// Options carries the router's collaborators. Gatherer and HTTPMetrics may
// be nil, which disables the metrics endpoint and request instrumentation.
type Options struct {
	Server          config.ServerConfig
	Security        config.SecurityConfig
	Metrics         config.MetricsConfig
	EnableAccessLog bool
	Auth            *middleware.AuthMiddleware
	HTTPMetrics     *middleware.HTTPMetrics
	Gatherer        prometheus.Gatherer
	Logger          *zap.Logger
}

// FiberRouter implements Router using Fiber v3
type FiberRouter struct {
	app      *fiber.App
	handlers Handlers
	opts     Options
	logger   *zap.Logger
}

// NewFiberRouter creates a new Fiber router
func NewFiberRouter(h Handlers, opts Options) Router {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	r := &FiberRouter{
		handlers: h,
		opts:     opts,
		logger:   log.Named("http"),
	}

	bodyLimit := opts.Server.BodyLimit
	if bodyLimit <= 0 {
		bodyLimit = 1024 * 1024
	}
	r.app = fiber.New(fiber.Config{
		AppName:      "LikeBounty API",
		ServerHeader: "LikeBounty",
		ErrorHandler: r.errorHandler,
		BodyLimit:    bodyLimit,
		ReadTimeout:  opts.Server.ReadTimeout,
		WriteTimeout: opts.Server.WriteTimeout,
		IdleTimeout:  opts.Server.IdleTimeout,
		JSONEncoder:  json.Marshal,
		JSONDecoder:  json.Unmarshal,
	})

	return r
}

// SetupRoutes configures all application routes
func (r *FiberRouter) SetupRoutes() {
	r.logger.Info("Setting up routes")

	// Global middleware
	r.setupMiddleware()

	if r.opts.Metrics.Enabled && r.opts.Gatherer != nil {
		path := r.opts.Metrics.Path
		if path == "" {
			path = "/metrics"
		}
		r.app.Get(path, adaptor.HTTPHandler(promhttp.HandlerFor(r.opts.Gatherer, promhttp.HandlerOpts{})))
	}

	api := r.app.Group("/api/v1")

	// Health check route (no rate limiting)
	api.Get("/health", r.handlers.Health.HealthCheck)

	if r.opts.Security.GlobalRateLimit > 0 {
		api.Use(limiter.New(limiter.Config{
			Max:        r.opts.Security.GlobalRateLimit,
			Expiration: r.opts.Security.RateLimitWindow,
			KeyGenerator: func(c fiber.Ctx) string {
				return c.IP()
			},
			LimitReached: func(c fiber.Ctx) error {
				return c.Status(fiber.StatusTooManyRequests).JSON(dto.APIResponse{
					Success: false,
					Message: "Too many requests. Please try again later.",
					Error: dto.ErrorDetail{
						Code: "RATE_LIMIT_EXCEEDED",
					},
				})
			},
			Next: func(c fiber.Ctx) bool {
				return c.Path() == "/api/v1/health"
			},
		}))
	}

	auth := r.opts.Auth.Authenticate()

	// Registry administration (owner only; enforced by the registry)
	registry := api.Group("/registry")
	registry.Get("/", r.handlers.Registry.Status)
	registry.Post("/pause", auth, r.handlers.Registry.Pause)
	registry.Post("/unpause", auth, r.handlers.Registry.Unpause)

	sponsors := api.Group("/sponsors")
	sponsors.Post("/", auth, r.handlers.Registry.AddSponsor)
	sponsors.Get("/:identity", r.handlers.Registry.GetSponsor)
	sponsors.Delete("/:identity", auth, r.handlers.Registry.RemoveSponsor)
	sponsors.Get("/:identity/campaigns", r.handlers.Registry.ListSponsorCampaigns)

	campaigns := api.Group("/campaigns")
	campaigns.Get("/", r.handlers.Campaign.ListCampaigns)
	campaigns.Post("/", auth, r.handlers.Campaign.CreateCampaign)
	campaigns.Get("/:id", r.handlers.Campaign.GetCampaign)
	campaigns.Post("/:id/apply", auth, r.handlers.Campaign.Apply)
	campaigns.Post("/:id/select", auth, r.handlers.Campaign.Select)
	campaigns.Post("/:id/engage", auth, r.handlers.Campaign.Engage)
	campaigns.Post("/:id/claim", auth, r.handlers.Campaign.ClaimPayout)
	campaigns.Post("/:id/refund", auth, r.handlers.Campaign.ExpireAndRefund)

	wallets := api.Group("/wallets", auth)
	wallets.Post("/deposit", r.handlers.Wallet.Deposit)
	wallets.Get("/me", r.handlers.Wallet.GetWallet)

	// Not found handler
	r.app.Use(r.notFoundHandler)

	r.logger.Info("Routes configured successfully")
}

// SetupMiddleware configures global middleware
func (r *FiberRouter) setupMiddleware() {
	// Request ID middleware - must be first
	r.app.Use(requestid.New(requestid.Config{
		Header: "X-Request-ID",
		Generator: func() string {
			return uuid.NewString()
		},
	}))

	// Security headers middleware
	r.app.Use(helmet.New(helmet.Config{
		XSSProtection:             "1; mode=block",
		ContentTypeNosniff:        "nosniff",
		XFrameOptions:             "DENY",
		HSTSMaxAge:                31536000,
		ContentSecurityPolicy:     "default-src 'none'; frame-ancestors 'none';",
		ReferrerPolicy:            "strict-origin-when-cross-origin",
		CrossOriginOpenerPolicy:   "same-origin",
		CrossOriginResourcePolicy: "same-origin",
		XDNSPrefetchControl:       "off",
		XPermittedCrossDomain:     "none",
	}))

	if len(r.opts.Security.AllowedOrigins) > 0 {
		r.app.Use(cors.New(cors.Config{
			AllowOrigins: r.opts.Security.AllowedOrigins,
			AllowMethods: []string{
				"GET", "POST", "DELETE", "HEAD", "OPTIONS",
			},
			AllowHeaders: []string{
				"Origin",
				"Content-Type",
				"Accept",
				"Authorization",
				"X-Request-ID",
			},
			ExposeHeaders: []string{
				"X-Request-ID",
			},
			AllowCredentials: r.opts.Security.AllowCredentials,
			MaxAge:           r.opts.Security.CORSMaxAge,
		}))
	}

	if r.opts.HTTPMetrics != nil {
		r.app.Use(r.opts.HTTPMetrics.Metrics())
	}

	if r.opts.EnableAccessLog {
		r.app.Use(logger.New(logger.Config{
			Format:     `{"time":"${time}","request_id":"${respHeader:X-Request-ID}","level":"info","method":"${method}","path":"${path}","ip":"${ip}","status":${status},"latency":"${latency}","bytes_in":${bytesReceived},"bytes_out":${bytesSent}}` + "\n",
			TimeFormat: time.RFC3339,
			TimeZone:   "UTC",
			Next: func(c fiber.Ctx) bool {
				return c.Path() == "/api/v1/health"
			},
		}))
	}

	// Recovery middleware with custom error handling
	r.app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
		StackTraceHandler: func(c fiber.Ctx, e any) {
			r.logger.Error("panic recovered",
				zap.Any("error", e),
				zap.String("request_id", requestid.FromContext(c)),
				zap.String("path", c.Path()),
				zap.String("method", c.Method()),
				zap.String("ip", c.IP()),
			)
		},
	}))
}

// Start starts the HTTP server
func (r *FiberRouter) Start(address string) error {
	r.logger.Info("Starting server", zap.String("address", address))
	return r.app.Listen(address, fiber.ListenConfig{DisableStartupMessage: true})
}

// GetApp returns the Fiber app instance
func (r *FiberRouter) GetApp() *fiber.App {
	return r.app
}

// Not found handler
func (r *FiberRouter) notFoundHandler(c fiber.Ctx) error {
	return c.Status(fiber.StatusNotFound).JSON(dto.APIResponse{
		Success: false,
		Message: "The requested resource was not found",
		Error: dto.ErrorDetail{
			Code: "NOT_FOUND",
			Details: fiber.Map{
				"path":       c.Path(),
				"method":     c.Method(),
				"request_id": requestid.FromContext(c),
			},
		},
	})
}

// Global error handler
func (r *FiberRouter) errorHandler(c fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "An internal server error occurred"
	errorCode := "INTERNAL_ERROR"

	// Retrieve the custom status code if it's a fiber.*Error
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		if code < fiber.StatusInternalServerError {
			message = e.Message
			errorCode = strings.ToUpper(strings.ReplaceAll(http.StatusText(code), " ", "_"))
		}
	}

	r.logger.Error("request failed",
		zap.Int("status", code),
		zap.Error(err),
		zap.String("request_id", requestid.FromContext(c)),
	)

	return c.Status(code).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code: errorCode,
			Details: fiber.Map{
				"timestamp":  utils.UTCNow().Unix(),
				"request_id": requestid.FromContext(c),
			},
		},
	})
}
