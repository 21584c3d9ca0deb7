// Package httpapi wires the HTTP transport (Gin) to application services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging/redaction, panic recovery, metrics,
// session identity, CORS, security headers, idempotency, and rate limiting.
//
// Design goals:
//   - Put observability first (OTel + Prometheus)
//   - Safe-by-default middleware ordering (RequestID → logging → recovery)
//   - Identity is resolved once, globally; route groups decide whether it is required
//   - The WebSocket endpoint shares the chain but does its own admission
package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/coony/chat-backend/docs"
	"github.com/coony/chat-backend/internal/config"
	"github.com/coony/chat-backend/internal/http/handlers"
	"github.com/coony/chat-backend/internal/http/middleware"
	"github.com/coony/chat-backend/internal/realtime"
	"github.com/coony/chat-backend/internal/services"
	"github.com/coony/chat-backend/internal/view"
)

// maxBodyBytes caps every request body.
const maxBodyBytes = 1 << 20

// Session tokens are minted by Issue and verified by Parse.
// *auth.Tokens satisfies it.
type Tokens interface {
	handlers.TokenIssuer
	middleware.TokenParser
}

// Deps are the process-level resources the routes are built on.
type Deps struct {
	DB     *gorm.DB
	Tokens Tokens
	Broker realtime.Broker
	// Hub tracks live sockets for shutdown; nil disables tracking.
	Hub *realtime.Hub
}

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine. It configures observability (tracing, metrics), identity,
// idempotency and rate limiting, CORS and security headers, health, metrics
// and docs endpoints, and then mounts the JSON API under cfg.APIBasePath and
// the WebSocket endpoint at /ws/chat/:id.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. AccessLog: structured logs with PII scrubbing
//  4. Recovery: capture panics after logger
//  5. Body size limiter
//  6. Metrics
//  7. Identity: resolve the session token (never rejects)
//  8. Idempotency validator (needs identity; before rate limiter to allow bypass on replay)
//  9. Rate limiter (per user/IP, bypass on replay)
//  10. CORS, security headers and compression
func RegisterRoutes(r *gin.Engine, d Deps, cfg config.Config) {
	r.HandleMethodNotAllowed = true
	apiBase := cfg.APIBasePath // e.g. "/api/v1"

	// Services
	userSvc := services.NewUserService(d.DB)
	convSvc := services.NewConversationService(d.DB)
	msgSvc := services.NewMessageService(d.DB, d.Broker)
	msgSvc.MaxRunes = cfg.MaxMessageRunes
	msgSvc.IdempotencyTTL = cfg.IdempotencyTTL
	notifSvc := services.NewNotificationService(d.DB)
	socialSvc := services.NewSocialService(d.DB)
	socialSvc.MaxRunes = cfg.MaxMessageRunes

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Structured logging with redaction. The token query parameter carries
	// the session of WebSocket clients.
	r.Use(middleware.AccessLog(middleware.RedactOptions{
		MaskHeaders: []string{"Cookie", "Set-Cookie"},
		MaskQuery:   []string{"token"},
	}))

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Global body size limit
	r.Use(limitBody(maxBodyBytes))

	// 6) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 7) Session identity
	r.Use(middleware.Identity(d.Tokens, middleware.IdentityOptions{
		CookieName: cfg.Session.CookieName,
	}))

	// 8) Idempotency validation (before rate limiting). Only message sends
	// store results, so only they are looked up.
	sendRoute := joinPath(apiBase, "/conversations/:id/messages/send")
	r.Use(middleware.IdempotencyValidator(
		middleware.IdempotencyOptions{
			MaxLen: 200,
			Scope: func(c *gin.Context) string {
				if c.Request.Method != http.MethodPost || c.FullPath() != sendRoute {
					return ""
				}
				id, err := strconv.ParseUint(c.Param("id"), 10, 64)
				if err != nil || id == 0 {
					return ""
				}
				return services.IdempotencyScope(uint(id))
			},
		},
		msgSvc.HasReplay,
	))

	// 9) Token-bucket rate limiter per user/IP
	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByUserOrIP(), "/health", "/metrics")
	r.Use(rl.Handler())

	// 10) CORS posture (safe defaults: allow all if none configured)
	r.Use(corsMiddleware(cfg.CORS.AllowedOrigins)...)

	// Security headers (HSTS only when enabled and request is HTTPS)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		NoStore:      false,
		EnablePolicy: true,
	}))

	// Compression; sockets and scrapes are left alone.
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/ws/", "/metrics"})))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "Rota não encontrada")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "Método não permitido")
	})

	// Liveness/health
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	// API docs (opt-in)
	if cfg.SwaggerEnabled {
		docs.SwaggerInfo.BasePath = apiBase
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	h := handlers.New(handlers.Deps{
		Users:          userSvc,
		Conversations:  convSvc,
		Messages:       msgSvc,
		Notifications:  notifSvc,
		Social:         socialSvc,
		Tokens:         d.Tokens,
		Presenter:      view.Presenter{DefaultAvatar: cfg.DefaultAvatarURL},
		CookieName:     cfg.Session.CookieName,
		Broker:         d.Broker,
		Hub:            d.Hub,
		SendBuffer:     cfg.Realtime.SendBuffer,
		AllowedOrigins: cfg.Realtime.AllowedOrigins,
	})

	// Realtime: admission failures are close codes, not HTTP errors.
	r.GET("/ws/chat/:id", h.ChatSocket)

	api := groupWithPrefix(r, apiBase)
	{
		// Public
		api.POST("/auth/register", h.Register)
		api.POST("/auth/login", h.Login)
		api.POST("/auth/logout", h.Logout)
	}

	authed := api.Group("", middleware.RequireUser())
	{
		// Identity
		authed.GET("/me", h.Me)
		authed.PATCH("/me", h.UpdateMe)
		authed.GET("/search-users", h.SearchUsers)

		// Conversations
		authed.GET("/conversations", h.ListConversations)
		authed.POST("/conversations/start", h.StartConversation)

		// Messages
		authed.GET("/conversations/:id/messages", h.ListMessages)
		authed.POST("/conversations/:id/messages/send", h.SendMessage)
		authed.POST("/messages/:id/delete", h.DeleteMessage)

		// Notifications
		authed.GET("/notifications", h.ListNotifications)
		authed.POST("/notifications/clear", h.ClearNotifications)

		// Timeline
		authed.GET("/posts", h.ListPosts)
		authed.POST("/posts", h.CreatePost)
		authed.DELETE("/posts/:id", h.DeletePost)
		authed.POST("/posts/:id/like", h.ToggleLike)
		authed.POST("/posts/:id/comments", h.CreateComment)
	}
}

// corsMiddleware returns the CORS chain. With no allowlist every origin is
// accepted without credentials; with one, listed origins are echoed and may
// send the session cookie.
func corsMiddleware(origins []string) []gin.HandlerFunc {
	allowHeaders := []string{"Origin", "Content-Type", "Accept", "Authorization", "If-None-Match", middleware.HeaderIdempotencyKey}
	exposeHeaders := []string{"X-Request-ID", "Content-Length", "ETag", "Idempotency-Replayed"}
	methods := []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}

	if len(origins) == 0 {
		return []gin.HandlerFunc{
			// Force ACAO: * even for requests without an Origin header.
			func(c *gin.Context) {
				c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
				c.Next()
			},
			cors.New(cors.Config{
				AllowAllOrigins:  true,
				AllowMethods:     methods,
				AllowHeaders:     allowHeaders,
				ExposeHeaders:    exposeHeaders,
				AllowCredentials: false, // must remain false with AllowAllOrigins
				MaxAge:           12 * time.Hour,
			}),
		}
	}

	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		allowed[o] = struct{}{}
	}
	return []gin.HandlerFunc{
		func(c *gin.Context) {
			if origin := c.GetHeader("Origin"); origin != "" {
				if _, ok := allowed[origin]; ok {
					h := c.Writer.Header()
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
			}
			c.Next()
		},
		cors.New(cors.Config{
			AllowOrigins:     origins,
			AllowMethods:     methods,
			AllowHeaders:     allowHeaders,
			ExposeHeaders:    exposeHeaders,
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}),
	}
}

// limitBody returns a Gin middleware that caps the request body size for all
// endpoints to maxBytes using http.MaxBytesReader. Requests exceeding the cap
// will cause downstream body reads to error.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}

// joinPath mirrors how gin joins a group prefix with a relative route.
func joinPath(prefix, route string) string {
	if prefix == "" || prefix == "/" {
		return route
	}
	return prefix + route
}
