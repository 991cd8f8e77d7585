package httpapi_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/MarkoPoloResearchLab/countdownforge/internal/builder"
	"github.com/MarkoPoloResearchLab/countdownforge/internal/embed"
	"github.com/MarkoPoloResearchLab/countdownforge/internal/httpapi"
	"github.com/MarkoPoloResearchLab/countdownforge/internal/render"
	"github.com/MarkoPoloResearchLab/countdownforge/internal/storage"
	"github.com/MarkoPoloResearchLab/countdownforge/internal/testutil"
	"github.com/MarkoPoloResearchLab/countdownforge/internal/timeengine"
)

const (
	testBuilderEmail      = "builder@example.com"
	testVisitorSecret     = "visitor-cookie-secret"
	testRuntimePath       = "/widget-runtime.js"
	testPublicAnchorRoute = "/api/visitor-anchor"
)

var testExportNow = time.Date(2026, time.October, 18, 14, 5, 9, 0, time.UTC)

type handlerHarness struct {
	router   *gin.Engine
	registry *builder.Registry
}

// buildHandlerHarness mounts every builder and public handler the way the
// server does, behind the GAuss session middleware.
func buildHandlerHarness(testingT *testing.T) handlerHarness {
	testingT.Helper()
	gin.SetMode(gin.TestMode)
	testutil.InitializeSessionStore(testingT)

	logger := zap.NewNop()
	clock := timeengine.SystemClock{}
	anchorStore := storage.NewVisitorAnchorStore(testutil.OpenMigratedDatabase(testingT))
	registry := builder.NewRegistry(builder.RegistryConfig{
		Engine:        timeengine.NewEngine(clock, timeengine.NewMemoryAnchorStore()),
		TimerRenderer: render.NewTimerRenderer(nil, logger),
		BlockRenderer: render.NewBlockRenderer(),
		Clock:         clock,
		Logger:        logger,
	})
	testingT.Cleanup(registry.Close)

	generator := embed.NewGenerator("")
	exportClock := timeengine.ClockFunc(func() time.Time { return testExportNow })
	timerHandlers := httpapi.NewTimerHandlers(registry, generator, exportClock, logger)
	widgetHandlers := httpapi.NewWidgetHandlers(registry, generator, logger)
	publicHandlers := httpapi.NewPublicHandlers(anchorStore, httpapi.NewVisitorCookieStore([]byte(testVisitorSecret), false), clock, logger)
	authManager := httpapi.NewAuthManager(logger)

	router := gin.New()
	router.Use(httpapi.RequestLogger(logger))
	router.GET(testRuntimePath, publicHandlers.RuntimeScript)
	router.GET(testPublicAnchorRoute, publicHandlers.VisitorAnchor)

	api := router.Group("/api")
	api.Use(authManager.RequireAuthenticatedJSON())
	api.GET("/me", authManager.CurrentUser)
	api.POST("/timers", timerHandlers.CreateTimer)
	api.GET("/timers/:id", timerHandlers.GetTimer)
	api.PATCH("/timers/:id", timerHandlers.UpdateTimer)
	api.DELETE("/timers/:id", timerHandlers.DeleteTimer)
	api.GET("/timers/:id/preview", timerHandlers.PreviewTimer)
	api.GET("/timers/:id/events", timerHandlers.StreamTimerFrames)
	api.GET("/timers/:id/live", timerHandlers.LiveTimer)
	api.GET("/timers/:id/embed", timerHandlers.TimerEmbed)
	api.GET("/timers/:id/export", timerHandlers.ExportTimer)
	api.POST("/timers/:id/banner/close", timerHandlers.CloseBanner)
	api.POST("/timers/:id/banner/reopen", timerHandlers.ReopenBanner)
	api.POST("/widgets", widgetHandlers.CreateWidget)
	api.GET("/widgets/:id", widgetHandlers.GetWidget)
	api.PATCH("/widgets/:id", widgetHandlers.UpdateWidget)
	api.DELETE("/widgets/:id", widgetHandlers.DeleteWidget)
	api.GET("/widgets/:id/preview", widgetHandlers.PreviewWidget)
	api.GET("/widgets/:id/events", widgetHandlers.StreamWidgetFrames)
	api.GET("/widgets/:id/export", widgetHandlers.ExportWidget)
	api.POST("/widgets/:id/blocks", widgetHandlers.AppendBlock)
	api.PATCH("/widgets/:id/blocks/:blockId", widgetHandlers.UpdateBlock)
	api.DELETE("/widgets/:id/blocks/:blockId", widgetHandlers.DeleteBlock)
	api.POST("/widgets/:id/blocks/:blockId/visibility", widgetHandlers.ToggleBlockVisibility)
	api.POST("/widgets/:id/blocks/:blockId/move", widgetHandlers.MoveBlock)
	api.POST("/widgets/:id/blocks/:blockId/edit", widgetHandlers.BeginEdit)
	api.POST("/widgets/:id/edit/save", widgetHandlers.SaveEdit)
	api.POST("/widgets/:id/edit/cancel", widgetHandlers.CancelEdit)

	return handlerHarness{router: router, registry: registry}
}

// do performs an authenticated request; a nil body sends no payload.
func (harness handlerHarness) do(testingT *testing.T, method string, path string, body any) *httptest.ResponseRecorder {
	testingT.Helper()
	var reader io.Reader
	switch typed := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(typed)
	default:
		encoded, marshalErr := json.Marshal(typed)
		require.NoError(testingT, marshalErr)
		reader = bytes.NewReader(encoded)
	}
	request := httptest.NewRequest(method, path, reader)
	if reader != nil {
		request.Header.Set("Content-Type", "application/json")
	}
	request.AddCookie(testutil.AuthenticatedSessionCookie(testingT, testBuilderEmail))
	recorder := httptest.NewRecorder()
	harness.router.ServeHTTP(recorder, request)
	return recorder
}

func decodeJSON[T any](testingT *testing.T, recorder *httptest.ResponseRecorder) T {
	testingT.Helper()
	var decoded T
	require.NoError(testingT, json.Unmarshal(recorder.Body.Bytes(), &decoded), recorder.Body.String())
	return decoded
}

func requireErrorCode(testingT *testing.T, recorder *httptest.ResponseRecorder, status int, code string) {
	testingT.Helper()
	require.Equal(testingT, status, recorder.Code, recorder.Body.String())
	payload := decodeJSON[map[string]string](testingT, recorder)
	require.Equal(testingT, code, payload["error"])
}

func TestBuilderRoutesRejectAnonymousRequests(testingT *testing.T) {
	harness := buildHandlerHarness(testingT)

	recorder := httptest.NewRecorder()
	harness.router.ServeHTTP(recorder, httptest.NewRequest(http.MethodPost, "/api/timers", nil))
	requireErrorCode(testingT, recorder, http.StatusUnauthorized, "unauthorized")
	require.Zero(testingT, harness.registry.SessionCount())
}

func TestCurrentUserReportsSessionProfile(testingT *testing.T) {
	harness := buildHandlerHarness(testingT)

	recorder := harness.do(testingT, http.MethodGet, "/api/me", nil)
	require.Equal(testingT, http.StatusOK, recorder.Code)
	payload := decodeJSON[map[string]string](testingT, recorder)
	require.Equal(testingT, testBuilderEmail, payload["email"])
	require.Equal(testingT, "Test Builder", payload["name"])
}
