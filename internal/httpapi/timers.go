package httpapi

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/coder/websocket"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/MarkoPoloResearchLab/countdownforge/internal/auth"
	"github.com/MarkoPoloResearchLab/countdownforge/internal/builder"
	"github.com/MarkoPoloResearchLab/countdownforge/internal/embed"
	"github.com/MarkoPoloResearchLab/countdownforge/internal/model"
	"github.com/MarkoPoloResearchLab/countdownforge/internal/render"
	"github.com/MarkoPoloResearchLab/countdownforge/internal/timeengine"
)

const (
	timerPreviewTitle = "Countdown timer preview"

	timerEventsPathFormat      = "/api/timers/%s/events"
	timerBannerClosePathFormat = "/api/timers/%s/banner/close"

	logEventCreateTimer = "create_timer_session"
)

// TimerHandlers serve the countdown builder API.
type TimerHandlers struct {
	registry  *builder.Registry
	generator *embed.Generator
	clock     timeengine.Clock
	logger    *zap.Logger
}

func NewTimerHandlers(registry *builder.Registry, generator *embed.Generator, clock timeengine.Clock, logger *zap.Logger) *TimerHandlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	if clock == nil {
		clock = timeengine.SystemClock{}
	}
	if generator == nil {
		generator = embed.NewGenerator("")
	}
	return &TimerHandlers{
		registry:  registry,
		generator: generator,
		clock:     clock,
		logger:    logger,
	}
}

// CreateTimer starts a session from the defaults, optionally merged with the request body.
func (handlers *TimerHandlers) CreateTimer(context *gin.Context) {
	body, readErr := readRequestBody(context)
	if readErr != nil {
		context.JSON(http.StatusBadRequest, gin.H{jsonKeyError: errorValueInvalidJSON})
		return
	}
	initial := model.DefaultTimerConfig(handlers.clock.Now())
	if len(body) > 0 {
		patch, decodeErr := model.DecodeTimerConfigPatch(body)
		if decodeErr != nil {
			context.JSON(http.StatusBadRequest, gin.H{jsonKeyError: errorValueInvalidJSON})
			return
		}
		merged, applyErr := initial.Apply(patch)
		if applyErr != nil {
			context.JSON(http.StatusUnprocessableEntity, gin.H{jsonKeyError: validationCode(applyErr)})
			return
		}
		initial = merged
	}

	session, createErr := handlers.registry.CreateTimer(&initial)
	if createErr != nil {
		if isValidationError(createErr) {
			context.JSON(http.StatusUnprocessableEntity, gin.H{jsonKeyError: validationCode(createErr)})
			return
		}
		handlers.logger.Warn(logEventCreateTimer, zap.Error(createErr))
		context.JSON(http.StatusInternalServerError, gin.H{jsonKeyError: errorValueCreateFailed})
		return
	}
	context.JSON(http.StatusCreated, gin.H{jsonKeyID: session.ID(), jsonKeyConfig: session.Config()})
}

func (handlers *TimerHandlers) GetTimer(context *gin.Context) {
	session, ok := handlers.session(context)
	if !ok {
		return
	}
	context.JSON(http.StatusOK, gin.H{jsonKeyID: session.ID(), jsonKeyConfig: session.Config()})
}

// UpdateTimer merges a partial configuration into the session.
func (handlers *TimerHandlers) UpdateTimer(context *gin.Context) {
	session, ok := handlers.session(context)
	if !ok {
		return
	}
	body, readErr := readRequestBody(context)
	if readErr != nil {
		context.JSON(http.StatusBadRequest, gin.H{jsonKeyError: errorValueInvalidJSON})
		return
	}
	patch, decodeErr := model.DecodeTimerConfigPatch(body)
	if decodeErr != nil {
		context.JSON(http.StatusBadRequest, gin.H{jsonKeyError: errorValueInvalidJSON})
		return
	}
	updated, updateErr := session.Update(patch)
	if updateErr != nil {
		respondSessionError(context, updateErr)
		return
	}
	context.JSON(http.StatusOK, gin.H{jsonKeyID: session.ID(), jsonKeyConfig: updated})
}

func (handlers *TimerHandlers) DeleteTimer(context *gin.Context) {
	if closeErr := handlers.registry.CloseTimer(context.Param(pathParamSessionID)); closeErr != nil {
		respondSessionError(context, closeErr)
		return
	}
	context.Status(http.StatusNoContent)
}

// PreviewTimer renders the full preview page; the page then follows the event stream.
func (handlers *TimerHandlers) PreviewTimer(context *gin.Context) {
	session, ok := handlers.session(context)
	if !ok {
		return
	}
	device, requested, deviceErr := parseDevice(context)
	if deviceErr != nil {
		context.JSON(http.StatusBadRequest, gin.H{jsonKeyError: errorValueInvalidDevice})
		return
	}
	if requested {
		if setErr := session.SetDevice(device); setErr != nil {
			context.JSON(http.StatusBadRequest, gin.H{jsonKeyError: errorValueInvalidDevice})
			return
		}
	}

	page := render.PreviewPage{
		Title:     timerPreviewTitle,
		FontURLs:  session.FontURLs(),
		Body:      session.PreviewBody(),
		StreamURL: fmt.Sprintf(timerEventsPathFormat, session.ID()),
		CloseURL:  fmt.Sprintf(timerBannerClosePathFormat, session.ID()),
	}
	document, renderErr := page.Render()
	if renderErr != nil {
		handlers.logger.Error(logEventPreviewRenderFailed, zap.String(logFieldSessionID, session.ID()), zap.Error(renderErr))
		context.JSON(http.StatusInternalServerError, gin.H{jsonKeyError: errorValueRenderFailed})
		return
	}
	context.Data(http.StatusOK, contentTypeHTML, []byte(document))
}

func (handlers *TimerHandlers) StreamTimerFrames(ginContext *gin.Context) {
	session, ok := handlers.session(ginContext)
	if !ok {
		return
	}
	streamFrames(ginContext, session.Subscribe(), session.Latest(), handlers.logger)
}

// LiveTimer upgrades to a websocket carrying frames out and configuration patches in.
func (handlers *TimerHandlers) LiveTimer(ginContext *gin.Context) {
	session, ok := handlers.session(ginContext)
	if !ok {
		return
	}
	codec, codecErr := frameCodecByName(ginContext.Query(queryParamCodec))
	if codecErr != nil {
		ginContext.JSON(http.StatusBadRequest, gin.H{jsonKeyError: errorValueInvalidFormat})
		return
	}
	subscription := session.Subscribe()
	if subscription == nil {
		ginContext.JSON(http.StatusServiceUnavailable, gin.H{jsonKeyError: errorValueStreamUnavailable})
		return
	}
	defer subscription.Close()

	connection, acceptErr := websocket.Accept(ginContext.Writer, ginContext.Request, nil)
	if acceptErr != nil {
		handlers.logger.Debug(logEventLiveAcceptFailed, zap.String(logFieldSessionID, session.ID()), zap.Error(acceptErr))
		return
	}
	defer connection.CloseNow()

	serveLive(ginContext.Request.Context(), connection, codec, subscription, session.Latest(), func(payload []byte) error {
		patch, decodeErr := codec.DecodePatch(payload)
		if decodeErr != nil {
			return fmt.Errorf("%w: %w", errInvalidPatchPayload, decodeErr)
		}
		_, updateErr := session.Update(patch)
		return updateErr
	}, handlers.logger)
}

// TimerEmbed returns the snippet for the requested format as plain text.
func (handlers *TimerHandlers) TimerEmbed(context *gin.Context) {
	session, ok := handlers.session(context)
	if !ok {
		return
	}
	format, formatErr := embed.ParseFormat(context.Query(queryParamFormat))
	if formatErr != nil {
		context.JSON(http.StatusBadRequest, gin.H{jsonKeyError: errorValueInvalidFormat})
		return
	}
	snippet, generateErr := handlers.generatorForRequest(context.Request).Generate(session.Config(), format)
	if generateErr != nil {
		context.JSON(http.StatusUnprocessableEntity, gin.H{jsonKeyError: validationCode(generateErr)})
		return
	}
	context.Data(http.StatusOK, contentTypeText, []byte(snippet))
}

// ExportTimer downloads the configuration as an indented JSON file.
func (handlers *TimerHandlers) ExportTimer(context *gin.Context) {
	session, ok := handlers.session(context)
	if !ok {
		return
	}
	payload, marshalErr := session.Config().MarshalExport()
	if marshalErr != nil {
		context.JSON(http.StatusInternalServerError, gin.H{jsonKeyError: errorValueRenderFailed})
		return
	}
	fileName := model.ExportFileName(handlers.clock.Now())
	context.Header(headerContentDisposition, fmt.Sprintf("attachment; filename=%q", fileName))
	context.Data(http.StatusOK, contentTypeJSON, payload)
}

// generatorForRequest makes a path-only runtime URL absolute against the host
// the builder was reached on, since snippets run on other sites.
func (handlers *TimerHandlers) generatorForRequest(request *http.Request) *embed.Generator {
	runtimeURL := handlers.generator.RuntimeURL()
	if !strings.HasPrefix(runtimeURL, "/") || strings.HasPrefix(runtimeURL, "//") {
		return handlers.generator
	}
	baseURL, baseErr := auth.RequestBaseURL(request, nil)
	if baseErr != nil {
		return handlers.generator
	}
	return embed.NewGenerator(strings.TrimRight(baseURL, "/") + runtimeURL)
}

func (handlers *TimerHandlers) CloseBanner(context *gin.Context) {
	handlers.setBannerClosed(context, true)
}

func (handlers *TimerHandlers) ReopenBanner(context *gin.Context) {
	handlers.setBannerClosed(context, false)
}

func (handlers *TimerHandlers) setBannerClosed(context *gin.Context, closed bool) {
	session, ok := handlers.session(context)
	if !ok {
		return
	}
	session.SetBannerClosed(closed)
	context.Status(http.StatusNoContent)
}

func (handlers *TimerHandlers) session(context *gin.Context) (*builder.TimerSession, bool) {
	session, lookupErr := handlers.registry.Timer(context.Param(pathParamSessionID))
	if lookupErr != nil {
		respondSessionError(context, lookupErr)
		return nil, false
	}
	return session, true
}
