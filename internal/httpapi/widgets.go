package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/MarkoPoloResearchLab/countdownforge/internal/builder"
	"github.com/MarkoPoloResearchLab/countdownforge/internal/embed"
	"github.com/MarkoPoloResearchLab/countdownforge/internal/model"
	"github.com/MarkoPoloResearchLab/countdownforge/internal/render"
)

const (
	widgetPreviewTitle = "Widget preview"

	widgetEventsPathFormat = "/api/widgets/%s/events"
	widgetSelectPathFormat = "/api/widgets/%s/blocks/:blockId/edit"

	logEventCreateWidget = "create_widget_session"
	logEventExportWidget = "export_widget"
)

type appendBlockRequest struct {
	Type model.BlockType `json:"type"`
}

type moveBlockRequest struct {
	Index *int `json:"index"`
}

type widgetResponse struct {
	ID      string             `json:"id"`
	Config  model.WidgetConfig `json:"config"`
	Editing *builder.BlockEdit `json:"editing,omitempty"`
}

// WidgetHandlers serve the block builder API.
type WidgetHandlers struct {
	registry  *builder.Registry
	generator *embed.Generator
	logger    *zap.Logger
}

func NewWidgetHandlers(registry *builder.Registry, generator *embed.Generator, logger *zap.Logger) *WidgetHandlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	if generator == nil {
		generator = embed.NewGenerator("")
	}
	return &WidgetHandlers{registry: registry, generator: generator, logger: logger}
}

// CreateWidget starts a session from the request body or, when empty, the default popup.
func (handlers *WidgetHandlers) CreateWidget(context *gin.Context) {
	body, readErr := readRequestBody(context)
	if readErr != nil {
		context.JSON(http.StatusBadRequest, gin.H{jsonKeyError: errorValueInvalidJSON})
		return
	}
	var initial *model.WidgetConfig
	if len(strings.TrimSpace(string(body))) > 0 {
		var decoded model.WidgetConfig
		if decodeErr := json.Unmarshal(body, &decoded); decodeErr != nil {
			context.JSON(http.StatusBadRequest, gin.H{jsonKeyError: errorValueInvalidJSON})
			return
		}
		initial = &decoded
	}
	session, createErr := handlers.registry.CreateWidget(initial)
	if createErr != nil {
		if isValidationError(createErr) {
			context.JSON(http.StatusUnprocessableEntity, gin.H{jsonKeyError: validationCode(createErr)})
			return
		}
		handlers.logger.Warn(logEventCreateWidget, zap.Error(createErr))
		context.JSON(http.StatusInternalServerError, gin.H{jsonKeyError: errorValueCreateFailed})
		return
	}
	context.JSON(http.StatusCreated, handlers.response(session))
}

func (handlers *WidgetHandlers) GetWidget(context *gin.Context) {
	session, ok := handlers.session(context)
	if !ok {
		return
	}
	context.JSON(http.StatusOK, handlers.response(session))
}

func (handlers *WidgetHandlers) UpdateWidget(context *gin.Context) {
	session, ok := handlers.session(context)
	if !ok {
		return
	}
	var patch model.WidgetConfigPatch
	if bindErr := context.ShouldBindJSON(&patch); bindErr != nil {
		context.JSON(http.StatusBadRequest, gin.H{jsonKeyError: errorValueInvalidJSON})
		return
	}
	if _, updateErr := session.Update(patch); updateErr != nil {
		respondSessionError(context, updateErr)
		return
	}
	context.JSON(http.StatusOK, handlers.response(session))
}

func (handlers *WidgetHandlers) DeleteWidget(context *gin.Context) {
	if closeErr := handlers.registry.CloseWidget(context.Param(pathParamSessionID)); closeErr != nil {
		respondSessionError(context, closeErr)
		return
	}
	context.Status(http.StatusNoContent)
}

func (handlers *WidgetHandlers) AppendBlock(context *gin.Context) {
	session, ok := handlers.session(context)
	if !ok {
		return
	}
	var payload appendBlockRequest
	if bindErr := context.ShouldBindJSON(&payload); bindErr != nil {
		context.JSON(http.StatusBadRequest, gin.H{jsonKeyError: errorValueInvalidJSON})
		return
	}
	block, appendErr := session.AppendBlock(payload.Type)
	if appendErr != nil {
		respondSessionError(context, appendErr)
		return
	}
	context.JSON(http.StatusCreated, gin.H{jsonKeyBlock: block, jsonKeyConfig: session.Config()})
}

// UpdateBlock applies a live edit to one block.
func (handlers *WidgetHandlers) UpdateBlock(context *gin.Context) {
	session, ok := handlers.session(context)
	if !ok {
		return
	}
	var patch model.BlockPatch
	if bindErr := context.ShouldBindJSON(&patch); bindErr != nil {
		context.JSON(http.StatusBadRequest, gin.H{jsonKeyError: errorValueInvalidJSON})
		return
	}
	if _, updateErr := session.UpdateBlock(context.Param(pathParamBlockID), patch); updateErr != nil {
		respondSessionError(context, updateErr)
		return
	}
	context.JSON(http.StatusOK, handlers.response(session))
}

func (handlers *WidgetHandlers) DeleteBlock(context *gin.Context) {
	session, ok := handlers.session(context)
	if !ok {
		return
	}
	if _, removeErr := session.RemoveBlock(context.Param(pathParamBlockID)); removeErr != nil {
		respondSessionError(context, removeErr)
		return
	}
	context.JSON(http.StatusOK, handlers.response(session))
}

func (handlers *WidgetHandlers) ToggleBlockVisibility(context *gin.Context) {
	session, ok := handlers.session(context)
	if !ok {
		return
	}
	if _, toggleErr := session.ToggleBlockVisibility(context.Param(pathParamBlockID)); toggleErr != nil {
		respondSessionError(context, toggleErr)
		return
	}
	context.JSON(http.StatusOK, handlers.response(session))
}

func (handlers *WidgetHandlers) MoveBlock(context *gin.Context) {
	session, ok := handlers.session(context)
	if !ok {
		return
	}
	var payload moveBlockRequest
	if bindErr := context.ShouldBindJSON(&payload); bindErr != nil || payload.Index == nil {
		context.JSON(http.StatusBadRequest, gin.H{jsonKeyError: errorValueInvalidJSON})
		return
	}
	if _, moveErr := session.MoveBlock(context.Param(pathParamBlockID), *payload.Index); moveErr != nil {
		respondSessionError(context, moveErr)
		return
	}
	context.JSON(http.StatusOK, handlers.response(session))
}

// BeginEdit opens a block in the editor; preview clicks land here.
func (handlers *WidgetHandlers) BeginEdit(context *gin.Context) {
	session, ok := handlers.session(context)
	if !ok {
		return
	}
	if _, editErr := session.BeginEdit(context.Param(pathParamBlockID)); editErr != nil {
		respondSessionError(context, editErr)
		return
	}
	context.JSON(http.StatusOK, handlers.response(session))
}

func (handlers *WidgetHandlers) SaveEdit(context *gin.Context) {
	session, ok := handlers.session(context)
	if !ok {
		return
	}
	if _, saveErr := session.SaveEdit(); saveErr != nil {
		respondSessionError(context, saveErr)
		return
	}
	context.JSON(http.StatusOK, handlers.response(session))
}

func (handlers *WidgetHandlers) CancelEdit(context *gin.Context) {
	session, ok := handlers.session(context)
	if !ok {
		return
	}
	if _, cancelErr := session.CancelEdit(); cancelErr != nil {
		respondSessionError(context, cancelErr)
		return
	}
	context.JSON(http.StatusOK, handlers.response(session))
}

func (handlers *WidgetHandlers) PreviewWidget(context *gin.Context) {
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
	body, bodyErr := session.PreviewBody(context.Query(queryParamSelected))
	if bodyErr != nil {
		respondSessionError(context, bodyErr)
		return
	}

	page := render.PreviewPage{
		Title:     widgetPreviewTitle,
		FontURLs:  session.FontURLs(),
		Body:      body,
		StreamURL: fmt.Sprintf(widgetEventsPathFormat, session.ID()),
		SelectURL: fmt.Sprintf(widgetSelectPathFormat, session.ID()),
	}
	document, renderErr := page.Render()
	if renderErr != nil {
		handlers.logger.Error(logEventPreviewRenderFailed, zap.String(logFieldSessionID, session.ID()), zap.Error(renderErr))
		context.JSON(http.StatusInternalServerError, gin.H{jsonKeyError: errorValueRenderFailed})
		return
	}
	context.Data(http.StatusOK, contentTypeHTML, []byte(document))
}

func (handlers *WidgetHandlers) StreamWidgetFrames(ginContext *gin.Context) {
	session, ok := handlers.session(ginContext)
	if !ok {
		return
	}
	streamFrames(ginContext, session.Subscribe(), session.Latest(), handlers.logger)
}

// ExportWidget returns the HTML, JavaScript and CSS of the export dialog.
func (handlers *WidgetHandlers) ExportWidget(context *gin.Context) {
	session, ok := handlers.session(context)
	if !ok {
		return
	}
	export, exportErr := handlers.generator.GenerateBlockExport(session.Config())
	if exportErr != nil {
		handlers.logger.Warn(logEventExportWidget, zap.String(logFieldSessionID, session.ID()), zap.Error(exportErr))
		context.JSON(http.StatusUnprocessableEntity, gin.H{jsonKeyError: validationCode(exportErr)})
		return
	}
	context.JSON(http.StatusOK, export)
}

func (handlers *WidgetHandlers) response(session *builder.WidgetSession) widgetResponse {
	response := widgetResponse{ID: session.ID(), Config: session.Config()}
	if edit, editing := session.Editing(); editing {
		response.Editing = &edit
	}
	return response
}

func (handlers *WidgetHandlers) session(context *gin.Context) (*builder.WidgetSession, bool) {
	session, lookupErr := handlers.registry.Widget(context.Param(pathParamSessionID))
	if lookupErr != nil {
		respondSessionError(context, lookupErr)
		return nil, false
	}
	return session, true
}
