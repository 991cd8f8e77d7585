package httpapi

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/MarkoPoloResearchLab/countdownforge/internal/builder"
	"github.com/MarkoPoloResearchLab/countdownforge/internal/model"
)

const (
	jsonKeyError  = "error"
	jsonKeyID     = "id"
	jsonKeyConfig = "config"
	jsonKeyBlock  = "block"

	errorValueInvalidJSON       = "invalid_json"
	errorValueInvalidConfig     = "invalid_config"
	errorValueInvalidDevice     = "invalid_device"
	errorValueInvalidFormat     = "invalid_format"
	errorValueUnknownSession    = "unknown_session"
	errorValueSessionClosed     = "session_closed"
	errorValueRenderFailed      = "render_failed"
	errorValueCreateFailed      = "create_failed"
	errorValueStreamUnavailable = "stream_unavailable"

	contentTypeHTML       = "text/html; charset=utf-8"
	contentTypeText       = "text/plain; charset=utf-8"
	contentTypeJSON       = "application/json; charset=utf-8"
	contentTypeJavaScript = "application/javascript; charset=utf-8"

	headerContentDisposition = "Content-Disposition"

	pathParamSessionID = "id"
	pathParamBlockID   = "blockId"
	queryParamDevice   = "device"
	queryParamFormat   = "format"
	queryParamSelected = "selected"
	queryParamCodec    = "codec"
	queryParamKey      = "key"

	logEventPreviewRenderFailed = "preview_render_failed"
	logFieldSessionID           = "session_id"
	logFieldCodec               = "codec"

	maximumRequestBodyBytes = 1 << 20
)

// validationSentinels are reported to clients by their snake_case text.
var validationSentinels = []error{
	model.ErrLastVisibleUnit,
	model.ErrInvalidEnumValue,
	model.ErrInvalidBannerHeight,
	model.ErrInvalidScale,
	model.ErrInvalidDuration,
	model.ErrUnknownTimeUnit,
	model.ErrMissingRedirectURL,
	model.ErrUnknownBlock,
	model.ErrDuplicateBlockID,
	model.ErrInvalidBlockType,
	model.ErrInvalidWidgetType,
	model.ErrInvalidBackgroundType,
	model.ErrInvalidPopupPosition,
	model.ErrInvalidBlockIndex,
	builder.ErrNoActiveEdit,
	builder.ErrInvalidDevice,
}

// respondSessionError writes the response for a failed session operation.
func respondSessionError(context *gin.Context, err error) {
	switch {
	case errors.Is(err, builder.ErrSessionNotFound):
		context.JSON(http.StatusNotFound, gin.H{jsonKeyError: errorValueUnknownSession})
	case errors.Is(err, builder.ErrSessionClosed):
		context.JSON(http.StatusGone, gin.H{jsonKeyError: errorValueSessionClosed})
	case errors.Is(err, model.ErrUnknownBlock):
		context.JSON(http.StatusNotFound, gin.H{jsonKeyError: model.ErrUnknownBlock.Error()})
	case errors.Is(err, builder.ErrNoActiveEdit):
		context.JSON(http.StatusConflict, gin.H{jsonKeyError: builder.ErrNoActiveEdit.Error()})
	default:
		context.JSON(http.StatusUnprocessableEntity, gin.H{jsonKeyError: validationCode(err)})
	}
}

func isValidationError(err error) bool {
	for _, sentinel := range validationSentinels {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}

func validationCode(err error) string {
	for _, sentinel := range validationSentinels {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}
	return errorValueInvalidConfig
}

func readRequestBody(context *gin.Context) ([]byte, error) {
	if context.Request.Body == nil {
		return nil, nil
	}
	return io.ReadAll(http.MaxBytesReader(context.Writer, context.Request.Body, maximumRequestBodyBytes))
}

func parseDevice(context *gin.Context) (model.DeviceView, bool, error) {
	rawDevice := context.Query(queryParamDevice)
	if rawDevice == "" {
		return "", false, nil
	}
	device := model.DeviceView(rawDevice)
	if !device.Valid() {
		return "", true, builder.ErrInvalidDevice
	}
	return device, true, nil
}
