package auth

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRequestBaseURL(t *testing.T) {
	fallback, parseErr := url.Parse("https://builder.example.com")
	require.NoError(t, parseErr)

	testCases := []struct {
		name     string
		headers  map[string]string
		host     string
		tls      bool
		expected string
	}{
		{
			name:     "plain request keeps configured scheme",
			host:     "localhost:8080",
			expected: "https://localhost:8080",
		},
		{
			name:     "forwarded header wins",
			host:     "internal:8080",
			headers:  map[string]string{"Forwarded": `for=1.2.3.4;proto=http;host="timers.example.org"`},
			expected: "http://timers.example.org",
		},
		{
			name:     "x-forwarded headers with port",
			host:     "internal",
			headers:  map[string]string{"X-Forwarded-Host": "edge.example.net, proxy", "X-Forwarded-Proto": "HTTPS", "X-Forwarded-Port": "8443"},
			expected: "https://edge.example.net:8443",
		},
		{
			name:     "tls request",
			host:     "secure.example.com",
			tls:      true,
			expected: "https://secure.example.com",
		},
	}

	for _, testCase := range testCases {
		testCase := testCase
		t.Run(testCase.name, func(testingT *testing.T) {
			request := httptest.NewRequest(http.MethodGet, "/auth/google", nil)
			request.Host = testCase.host
			if !testCase.tls {
				request.TLS = nil
			} else {
				request.TLS = &tls.ConnectionState{}
			}
			for name, value := range testCase.headers {
				request.Header.Set(name, value)
			}
			resolved, resolveErr := RequestBaseURL(request, fallback)
			require.NoError(testingT, resolveErr)
			require.Equal(testingT, testCase.expected, resolved)
		})
	}
}

func TestRequestBaseURLRequiresHost(t *testing.T) {
	request := httptest.NewRequest(http.MethodGet, "/", nil)
	request.Host = ""
	_, resolveErr := RequestBaseURL(request, nil)
	require.ErrorIs(t, resolveErr, ErrUnresolvableHost)
}
