package main

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/temirov/GAuss/pkg/constants"
)

func TestGoogleAuthRedirectHonorsForwardedProtocol(t *testing.T) {
	router, _ := newTestRouter(t)

	request := httptest.NewRequest(http.MethodGet, constants.GoogleAuthPath, nil)
	request.Host = "countdown.mprlab.com"
	request.Header.Set("X-Forwarded-Proto", "https")

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, request)

	require.Equal(t, http.StatusFound, recorder.Code)

	redirectLocation := recorder.Header().Get("Location")
	require.NotEmpty(t, redirectLocation)

	redirectURL, parseErr := url.Parse(redirectLocation)
	require.NoError(t, parseErr)

	redirectURIValue := redirectURL.Query().Get("redirect_uri")
	require.Equal(t, "https://countdown.mprlab.com"+constants.CallbackPath, redirectURIValue)
}

func TestRootRedirectsToLogin(t *testing.T) {
	router, _ := newTestRouter(t)

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusFound, recorder.Code)
	require.Equal(t, constants.LoginPath, recorder.Header().Get("Location"))
}
