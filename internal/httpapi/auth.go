package httpapi

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/sessions"
	"github.com/temirov/GAuss/pkg/constants"
	"github.com/temirov/GAuss/pkg/session"
	"go.uber.org/zap"
)

const (
	contextKeyCurrentUser = "httpapi_current_user"
	authErrorUnauthorized = "unauthorized"
	logEventLoadSession   = "load_session"
)

// CurrentUser is the builder user signed in through GAuss.
type CurrentUser struct {
	Email      string
	Name       string
	PictureURL string
}

type AuthManager struct {
	logger       *zap.Logger
	sessionStore *sessions.CookieStore
}

// NewAuthManager reads identities from the GAuss session store, which must be
// initialized with session.NewSession before the first request.
func NewAuthManager(logger *zap.Logger) *AuthManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthManager{
		logger:       logger,
		sessionStore: session.Store(),
	}
}

func (authManager *AuthManager) RequireAuthenticatedJSON() gin.HandlerFunc {
	return func(context *gin.Context) {
		if _, ok := authManager.ensureUser(context); !ok {
			context.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{jsonKeyError: authErrorUnauthorized})
			return
		}
		context.Next()
	}
}

// CurrentUser reports the signed-in builder user.
func (authManager *AuthManager) CurrentUser(context *gin.Context) {
	currentUser, ok := CurrentUserFromContext(context)
	if !ok {
		context.JSON(http.StatusUnauthorized, gin.H{jsonKeyError: authErrorUnauthorized})
		return
	}
	context.JSON(http.StatusOK, gin.H{
		"email":   currentUser.Email,
		"name":    currentUser.Name,
		"picture": currentUser.PictureURL,
	})
}

func CurrentUserFromContext(context *gin.Context) (*CurrentUser, bool) {
	value, exists := context.Get(contextKeyCurrentUser)
	if !exists {
		return nil, false
	}
	currentUser, ok := value.(*CurrentUser)
	return currentUser, ok
}

func (authManager *AuthManager) ensureUser(context *gin.Context) (*CurrentUser, bool) {
	if currentUser, exists := CurrentUserFromContext(context); exists {
		return currentUser, true
	}
	if authManager.sessionStore == nil {
		return nil, false
	}

	sessionInstance, sessionErr := authManager.sessionStore.Get(context.Request, constants.SessionName)
	if sessionErr != nil {
		authManager.logger.Warn(logEventLoadSession, zap.Error(sessionErr))
		return nil, false
	}

	email := extractString(sessionInstance.Values[constants.SessionKeyUserEmail])
	if email == "" {
		return nil, false
	}

	currentUser := &CurrentUser{
		Email:      email,
		Name:       extractString(sessionInstance.Values[constants.SessionKeyUserName]),
		PictureURL: extractString(sessionInstance.Values[constants.SessionKeyUserPicture]),
	}

	context.Set(contextKeyCurrentUser, currentUser)
	return currentUser, true
}

func extractString(value interface{}) string {
	text, ok := value.(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(text)
}
