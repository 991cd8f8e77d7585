package testutil

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/temirov/GAuss/pkg/constants"
	"github.com/temirov/GAuss/pkg/session"
)

const testSessionSecret = "countdownforge-test-session-secret"

// InitializeSessionStore prepares the GAuss cookie store shared by the
// authentication middleware.
func InitializeSessionStore(testingT testing.TB) {
	testingT.Helper()
	session.NewSession([]byte(testSessionSecret))
}

// AuthenticatedSessionCookie returns a signed session cookie for a signed-in user.
func AuthenticatedSessionCookie(testingT testing.TB, email string) *http.Cookie {
	testingT.Helper()
	InitializeSessionStore(testingT)

	request := httptest.NewRequest(http.MethodGet, "/", nil)
	recorder := httptest.NewRecorder()
	sessionInstance, sessionErr := session.Store().Get(request, constants.SessionName)
	if sessionErr != nil {
		testingT.Fatalf("load session: %v", sessionErr)
	}
	sessionInstance.Values[constants.SessionKeyUserEmail] = email
	sessionInstance.Values[constants.SessionKeyUserName] = "Test Builder"
	sessionInstance.Values[constants.SessionKeyUserPicture] = "https://example.com/avatar.png"
	if saveErr := sessionInstance.Save(request, recorder); saveErr != nil {
		testingT.Fatalf("save session: %v", saveErr)
	}
	for _, cookie := range recorder.Result().Cookies() {
		if cookie.Name == constants.SessionName {
			return cookie
		}
	}
	testingT.Fatalf("session cookie %s not written", constants.SessionName)
	return nil
}
