package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/sessions"
	"go.uber.org/zap"

	"github.com/MarkoPoloResearchLab/countdownforge/internal/embed"
	"github.com/MarkoPoloResearchLab/countdownforge/internal/timeengine"
)

const (
	VisitorCookieName      = "countdownforge_visitor"
	visitorSessionKeyID    = "visitor_id"
	visitorCookieMaxAge    = 365 * 24 * 60 * 60
	maximumAnchorKeyLength = 128
	runtimeCacheControl    = "public, max-age=300"

	errorValueMissingKey     = "missing_key"
	errorValueInvalidKey     = "invalid_key"
	errorValueVisitorFailed  = "visitor_failed"
	errorValueAnchorFailed   = "anchor_failed"
	logEventSaveVisitor      = "save_visitor_cookie"
	logEventLoadVisitor      = "load_visitor_cookie"
	logEventRecordAnchor     = "record_visitor_anchor"
	logFieldAnchorKey        = "anchor_key"
	jsonKeyVisitorID         = "visitorId"
	jsonKeyAnchorKey         = "key"
	jsonKeyFirstVisitAt      = "firstVisitAt"
	firstVisitTimestampStyle = "2006-01-02T15:04:05.000Z07:00"
)

// NewVisitorCookieStore builds the cookie store that identifies anonymous
// visitors. Secure stores send the cookie cross-site so hosted snippets can use it.
func NewVisitorCookieStore(secret []byte, secure bool) *sessions.CookieStore {
	store := sessions.NewCookieStore(secret)
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   visitorCookieMaxAge,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
	if secure {
		store.Options.SameSite = http.SameSiteNoneMode
	}
	return store
}

// PublicHandlers serve the unauthenticated endpoints used by embedded widgets.
type PublicHandlers struct {
	anchorStore timeengine.AnchorStore
	cookieStore sessions.Store
	clock       timeengine.Clock
	logger      *zap.Logger
}

func NewPublicHandlers(anchorStore timeengine.AnchorStore, cookieStore sessions.Store, clock timeengine.Clock, logger *zap.Logger) *PublicHandlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	if clock == nil {
		clock = timeengine.SystemClock{}
	}
	return &PublicHandlers{
		anchorStore: anchorStore,
		cookieStore: cookieStore,
		clock:       clock,
		logger:      logger,
	}
}

// RuntimeScript serves the widget runtime referenced by hosted snippets.
func (handlers *PublicHandlers) RuntimeScript(context *gin.Context) {
	context.Header("Cache-Control", runtimeCacheControl)
	context.Data(http.StatusOK, contentTypeJavaScript, []byte(embed.RuntimeSource()))
}

// VisitorAnchor returns the first-visit instant of the calling visitor for an
// anchor key, recording it on the first call.
func (handlers *PublicHandlers) VisitorAnchor(context *gin.Context) {
	anchorKey := strings.TrimSpace(context.Query(queryParamKey))
	if anchorKey == "" {
		context.JSON(http.StatusBadRequest, gin.H{jsonKeyError: errorValueMissingKey})
		return
	}
	if len(anchorKey) > maximumAnchorKeyLength {
		context.JSON(http.StatusBadRequest, gin.H{jsonKeyError: errorValueInvalidKey})
		return
	}
	visitorID, visitorErr := handlers.visitorID(context)
	if visitorErr != nil {
		context.JSON(http.StatusInternalServerError, gin.H{jsonKeyError: errorValueVisitorFailed})
		return
	}
	firstVisitAt, anchorErr := handlers.anchorStore.FirstVisit(context.Request.Context(), visitorID, anchorKey, handlers.clock.Now())
	if anchorErr != nil {
		handlers.logger.Warn(logEventRecordAnchor, zap.String(logFieldAnchorKey, anchorKey), zap.Error(anchorErr))
		context.JSON(http.StatusInternalServerError, gin.H{jsonKeyError: errorValueAnchorFailed})
		return
	}
	context.JSON(http.StatusOK, gin.H{
		jsonKeyVisitorID:    visitorID,
		jsonKeyAnchorKey:    anchorKey,
		jsonKeyFirstVisitAt: firstVisitAt.UTC().Truncate(time.Millisecond).Format(firstVisitTimestampStyle),
	})
}

func (handlers *PublicHandlers) visitorID(context *gin.Context) (string, error) {
	sessionInstance, sessionErr := handlers.cookieStore.Get(context.Request, VisitorCookieName)
	if sessionErr != nil {
		handlers.logger.Debug(logEventLoadVisitor, zap.Error(sessionErr))
		sessionInstance, sessionErr = handlers.cookieStore.New(context.Request, VisitorCookieName)
		if sessionInstance == nil {
			return "", sessionErr
		}
	}
	if visitorID := extractString(sessionInstance.Values[visitorSessionKeyID]); visitorID != "" {
		return visitorID, nil
	}
	visitorID := uuid.NewString()
	sessionInstance.Values[visitorSessionKeyID] = visitorID
	if saveErr := sessionInstance.Save(context.Request, context.Writer); saveErr != nil {
		handlers.logger.Warn(logEventSaveVisitor, zap.Error(saveErr))
		return "", saveErr
	}
	return visitorID, nil
}
