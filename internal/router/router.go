package router

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/workeasy-api/internal/handler"
	"github.com/noah-isme/workeasy-api/internal/middleware"
	"github.com/noah-isme/workeasy-api/internal/models"
	"github.com/noah-isme/workeasy-api/pkg/config"
	"github.com/noah-isme/workeasy-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/workeasy-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/workeasy-api/pkg/middleware/requestid"
)

// Handlers groups the HTTP handlers mounted by Setup.
type Handlers struct {
	Store        *handler.StoreHandler
	Shift        *handler.ShiftHandler
	Exchange     *handler.ExchangeHandler
	Invitation   *handler.InvitationHandler
	Notification *handler.NotificationHandler
	Metrics      *handler.MetricsHandler
}

// Dependencies are the collaborators the middleware chain needs.
type Dependencies struct {
	Tokens  middleware.TokenValidator
	Stores  middleware.StoreResolver
	Metrics middleware.HTTPObserver
	Logger  *zap.Logger
}

// Setup builds the gin engine with every route.
func Setup(cfg *config.Config, h Handlers, deps Dependencies) *gin.Engine {
	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(deps.Logger))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(deps.Metrics))

	r.GET("/health", h.Metrics.Health)
	r.GET("/ready", h.Metrics.Ready)
	r.GET("/metrics", h.Metrics.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	auth := middleware.JWT(deps.Tokens)
	scope := middleware.StoreScope(deps.Stores)
	managerOnly := middleware.RequireStoreRole(models.RoleManager)

	// Kept outside the versioned prefix for existing clients.
	r.POST("/api/invitations/send", auth, h.Invitation.Send)

	prefix := cfg.APIPrefix
	if prefix == "" {
		prefix = "/api/v1"
	}
	api := r.Group(prefix)
	api.Use(auth)
	{
		api.GET("/system/metrics", h.Metrics.Snapshot)

		me := api.Group("/me")
		{
			me.GET("/role", h.Store.Role)
			me.GET("/profile", h.Store.Profile)
			me.PUT("/profile", h.Store.UpdateProfile)
		}

		stores := api.Group("/stores")
		{
			stores.GET("", h.Store.Mine)
			stores.POST("", h.Store.Create)
			stores.GET("/current", h.Store.Current)
			stores.GET("/staff", scope, h.Store.Staff)
			stores.GET("/:storeId/staff", scope, h.Store.Staff)
		}

		shifts := api.Group("/shifts")
		{
			shifts.GET("/mine", h.Shift.Mine)
			shifts.GET("/:id", h.Shift.Get)

			scoped := shifts.Group("", scope)
			scoped.GET("", h.Shift.List)
			scoped.GET("/range", h.Shift.Range)
			scoped.POST("", h.Shift.Create)
			scoped.POST("/overlap", h.Shift.CheckOverlap)
			scoped.PUT("/:id", managerOnly, h.Shift.Update)
			scoped.DELETE("/:id", managerOnly, h.Shift.Delete)
			scoped.GET("/export", managerOnly, h.Shift.Export)
		}

		exchanges := api.Group("/exchanges")
		{
			exchanges.POST("", scope, h.Exchange.Create)
			exchanges.GET("", scope, managerOnly, h.Exchange.List)
			exchanges.GET("/incoming", h.Exchange.Incoming)
			exchanges.GET("/sent", h.Exchange.Sent)
			exchanges.GET("/accepted", h.Exchange.Accepted)
			exchanges.GET("/summary", h.Exchange.Summary)
			exchanges.GET("/pending-count", h.Exchange.PendingCount)
			exchanges.GET("/:id", h.Exchange.Get)
			exchanges.PATCH("/:id", h.Exchange.Update)
			exchanges.DELETE("/:id", h.Exchange.Delete)
			exchanges.POST("/:id/accept", h.Exchange.Accept)
			exchanges.POST("/:id/reject", h.Exchange.Reject)
			exchanges.POST("/:id/cancel", h.Exchange.Cancel)
		}

		invitations := api.Group("/invitations")
		{
			invitations.POST("/accept", h.Invitation.Accept)

			managed := invitations.Group("", scope, managerOnly)
			managed.GET("", h.Invitation.List)
			managed.POST("", h.Invitation.Create)
			managed.DELETE("/:id", h.Invitation.Delete)
		}

		notifications := api.Group("/notifications")
		{
			notifications.GET("", h.Notification.List)
			notifications.POST("/read-all", h.Notification.MarkAllRead)
			notifications.POST("/:id/read", h.Notification.MarkRead)
		}
	}

	return r
}
