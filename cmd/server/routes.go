package main

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/temirov/GAuss/pkg/constants"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/MarkoPoloResearchLab/countdownforge/internal/auth"
	"github.com/MarkoPoloResearchLab/countdownforge/internal/builder"
	"github.com/MarkoPoloResearchLab/countdownforge/internal/embed"
	"github.com/MarkoPoloResearchLab/countdownforge/internal/httpapi"
	"github.com/MarkoPoloResearchLab/countdownforge/internal/render"
	"github.com/MarkoPoloResearchLab/countdownforge/internal/storage"
	"github.com/MarkoPoloResearchLab/countdownforge/internal/styles"
	"github.com/MarkoPoloResearchLab/countdownforge/internal/timeengine"
)

const (
	corsOriginWildcard = "*"
	apiRoutePrefix     = "/api"
	corsMaxAge         = 12 * time.Hour
	secureSchemePrefix = "https://"

	publicRouteRuntimeScript = "/widget-runtime.js"
	publicRouteVisitorAnchor = "/api/visitor-anchor"

	apiRouteMe = "/me"

	apiRouteTimers            = "/timers"
	apiRouteTimer             = "/timers/:id"
	apiRouteTimerPreview      = "/timers/:id/preview"
	apiRouteTimerEvents       = "/timers/:id/events"
	apiRouteTimerLive         = "/timers/:id/live"
	apiRouteTimerEmbed        = "/timers/:id/embed"
	apiRouteTimerExport       = "/timers/:id/export"
	apiRouteTimerBannerClose  = "/timers/:id/banner/close"
	apiRouteTimerBannerReopen = "/timers/:id/banner/reopen"

	apiRouteWidgets          = "/widgets"
	apiRouteWidget           = "/widgets/:id"
	apiRouteWidgetPreview    = "/widgets/:id/preview"
	apiRouteWidgetEvents     = "/widgets/:id/events"
	apiRouteWidgetExport     = "/widgets/:id/export"
	apiRouteWidgetBlocks     = "/widgets/:id/blocks"
	apiRouteWidgetBlock      = "/widgets/:id/blocks/:blockId"
	apiRouteBlockVisibility  = "/widgets/:id/blocks/:blockId/visibility"
	apiRouteBlockMove        = "/widgets/:id/blocks/:blockId/move"
	apiRouteBlockEdit        = "/widgets/:id/blocks/:blockId/edit"
	apiRouteWidgetEditSave   = "/widgets/:id/edit/save"
	apiRouteWidgetEditCancel = "/widgets/:id/edit/cancel"
)

var (
	corsAllowedMethods = []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions}
	corsAllowedHeaders = []string{"Content-Type", "Accept", "Origin"}
	corsExposedHeaders = []string{"Content-Disposition"}
)

// serviceDependencies holds the long-lived collaborators behind the router.
type serviceDependencies struct {
	registry       *builder.Registry
	authManager    *httpapi.AuthManager
	timerHandlers  *httpapi.TimerHandlers
	widgetHandlers *httpapi.WidgetHandlers
	publicHandlers *httpapi.PublicHandlers
}

func newServiceDependencies(serverConfig ServerConfig, database *gorm.DB, logger *zap.Logger) serviceDependencies {
	clock := timeengine.SystemClock{}
	anchorStore := storage.NewVisitorAnchorStore(database)
	engine := timeengine.NewEngine(clock, anchorStore)
	registry := builder.NewRegistry(builder.RegistryConfig{
		Engine:        engine,
		TimerRenderer: render.NewTimerRenderer(styles.NewParser(logger), logger),
		BlockRenderer: render.NewBlockRenderer(),
		Clock:         clock,
		Logger:        logger,
		IdleTimeout:   serverConfig.SessionIdleTimeout,
	})
	generator := embed.NewGenerator(serverConfig.RuntimeScriptURL)
	cookieStore := httpapi.NewVisitorCookieStore([]byte(serverConfig.SessionSecret), isSecureBaseURL(serverConfig.PublicBaseURL))

	return serviceDependencies{
		registry:       registry,
		authManager:    httpapi.NewAuthManager(logger),
		timerHandlers:  httpapi.NewTimerHandlers(registry, generator, clock, logger),
		widgetHandlers: httpapi.NewWidgetHandlers(registry, generator, logger),
		publicHandlers: httpapi.NewPublicHandlers(anchorStore, cookieStore, clock, logger),
	}
}

func buildRouter(serverConfig ServerConfig, service serviceDependencies, oauthHandlers *auth.Handlers, logger *zap.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(httpapi.RequestLogger(logger))

	authMux := http.NewServeMux()
	oauthHandlers.RegisterRoutes(authMux)
	authHandler := gin.WrapH(authMux)
	for _, authPath := range []string{constants.LoginPath, constants.GoogleAuthPath, constants.CallbackPath, constants.LogoutPath} {
		router.Any(authPath, authHandler)
	}
	router.GET("/", func(context *gin.Context) {
		context.Redirect(http.StatusFound, constants.LoginPath)
	})

	registerPublicRoutes(router, service.publicHandlers)
	registerBuilderRoutes(router, service, serverConfig.PublicBaseURL)
	return router
}

func registerPublicRoutes(router *gin.Engine, publicHandlers *httpapi.PublicHandlers) {
	publicGroup := router.Group("/")
	publicGroup.Use(cors.New(cors.Config{
		AllowOrigins:     []string{corsOriginWildcard},
		AllowMethods:     []string{http.MethodGet, http.MethodOptions},
		AllowHeaders:     corsAllowedHeaders,
		AllowCredentials: false,
		MaxAge:           corsMaxAge,
	}))
	publicGroup.GET(publicRouteRuntimeScript, publicHandlers.RuntimeScript)
	publicGroup.GET(publicRouteVisitorAnchor, publicHandlers.VisitorAnchor)
	publicGroup.OPTIONS(publicRouteVisitorAnchor, func(context *gin.Context) {
		context.Status(http.StatusNoContent)
	})
}

func registerBuilderRoutes(router *gin.Engine, service serviceDependencies, authenticatedOrigin string) {
	apiGroup := router.Group(apiRoutePrefix)
	apiGroup.Use(cors.New(cors.Config{
		AllowOrigins:     []string{authenticatedOrigin},
		AllowMethods:     corsAllowedMethods,
		AllowHeaders:     corsAllowedHeaders,
		ExposeHeaders:    corsExposedHeaders,
		AllowCredentials: true,
		MaxAge:           corsMaxAge,
	}))
	registerAPIPreflightRoutes(apiGroup)
	apiGroup.Use(service.authManager.RequireAuthenticatedJSON())
	apiGroup.GET(apiRouteMe, service.authManager.CurrentUser)

	timerHandlers := service.timerHandlers
	apiGroup.POST(apiRouteTimers, timerHandlers.CreateTimer)
	apiGroup.GET(apiRouteTimer, timerHandlers.GetTimer)
	apiGroup.PATCH(apiRouteTimer, timerHandlers.UpdateTimer)
	apiGroup.DELETE(apiRouteTimer, timerHandlers.DeleteTimer)
	apiGroup.GET(apiRouteTimerPreview, timerHandlers.PreviewTimer)
	apiGroup.GET(apiRouteTimerEvents, timerHandlers.StreamTimerFrames)
	apiGroup.GET(apiRouteTimerLive, timerHandlers.LiveTimer)
	apiGroup.GET(apiRouteTimerEmbed, timerHandlers.TimerEmbed)
	apiGroup.GET(apiRouteTimerExport, timerHandlers.ExportTimer)
	apiGroup.POST(apiRouteTimerBannerClose, timerHandlers.CloseBanner)
	apiGroup.POST(apiRouteTimerBannerReopen, timerHandlers.ReopenBanner)

	widgetHandlers := service.widgetHandlers
	apiGroup.POST(apiRouteWidgets, widgetHandlers.CreateWidget)
	apiGroup.GET(apiRouteWidget, widgetHandlers.GetWidget)
	apiGroup.PATCH(apiRouteWidget, widgetHandlers.UpdateWidget)
	apiGroup.DELETE(apiRouteWidget, widgetHandlers.DeleteWidget)
	apiGroup.GET(apiRouteWidgetPreview, widgetHandlers.PreviewWidget)
	apiGroup.GET(apiRouteWidgetEvents, widgetHandlers.StreamWidgetFrames)
	apiGroup.GET(apiRouteWidgetExport, widgetHandlers.ExportWidget)
	apiGroup.POST(apiRouteWidgetBlocks, widgetHandlers.AppendBlock)
	apiGroup.PATCH(apiRouteWidgetBlock, widgetHandlers.UpdateBlock)
	apiGroup.DELETE(apiRouteWidgetBlock, widgetHandlers.DeleteBlock)
	apiGroup.POST(apiRouteBlockVisibility, widgetHandlers.ToggleBlockVisibility)
	apiGroup.POST(apiRouteBlockMove, widgetHandlers.MoveBlock)
	apiGroup.POST(apiRouteBlockEdit, widgetHandlers.BeginEdit)
	apiGroup.POST(apiRouteWidgetEditSave, widgetHandlers.SaveEdit)
	apiGroup.POST(apiRouteWidgetEditCancel, widgetHandlers.CancelEdit)
}

// registerAPIPreflightRoutes answers OPTIONS before authentication runs, so
// browsers can negotiate CORS for credentialed builder calls.
func registerAPIPreflightRoutes(apiGroup *gin.RouterGroup) {
	preflight := func(context *gin.Context) {
		context.Status(http.StatusNoContent)
	}
	for _, route := range []string{apiRouteTimers, apiRouteTimer, apiRouteWidgets, apiRouteWidget, apiRouteWidgetBlocks, apiRouteWidgetBlock} {
		apiGroup.OPTIONS(route, preflight)
	}
}

func isSecureBaseURL(baseURL string) bool {
	return strings.HasPrefix(strings.ToLower(baseURL), secureSchemePrefix)
}
