package auth

import (
	"errors"
	"net/http"
	"net/url"
	"strings"
)

const (
	headerForwarded        = "Forwarded"
	headerXForwardedProto  = "X-Forwarded-Proto"
	headerXForwardedScheme = "X-Forwarded-Scheme"
	headerXForwardedHost   = "X-Forwarded-Host"
	headerXForwardedPort   = "X-Forwarded-Port"
	forwardedProtoKey      = "proto"
	forwardedHostKey       = "host"
	urlSchemeHTTPS         = "https"
)

// ErrUnresolvableHost is returned when neither the request nor the fallback names a host.
var ErrUnresolvableHost = errors.New("auth: request host unavailable")

// RequestBaseURL returns the public scheme and host a request was addressed
// to, honoring proxy headers. The fallback supplies the path and any part the
// request does not carry.
func RequestBaseURL(request *http.Request, fallback *url.URL) (string, error) {
	resolved := url.URL{}
	if fallback != nil {
		resolved = *fallback
	}

	host := firstNonEmpty(
		forwardedDirective(request.Header.Get(headerForwarded), forwardedHostKey),
		firstListValue(request.Header.Get(headerXForwardedHost)),
		request.Host,
		resolved.Host,
	)
	if host == "" {
		return "", ErrUnresolvableHost
	}
	if port := firstListValue(request.Header.Get(headerXForwardedPort)); port != "" && !strings.Contains(host, ":") {
		host = host + ":" + port
	}

	scheme := firstNonEmpty(
		forwardedDirective(request.Header.Get(headerForwarded), forwardedProtoKey),
		firstListValue(request.Header.Get(headerXForwardedProto)),
		firstListValue(request.Header.Get(headerXForwardedScheme)),
	)
	if scheme == "" && request.TLS != nil {
		scheme = urlSchemeHTTPS
	}
	if scheme == "" && request.URL != nil {
		scheme = request.URL.Scheme
	}
	scheme = firstNonEmpty(scheme, resolved.Scheme, urlSchemeHTTPS)

	resolved.Scheme = strings.ToLower(scheme)
	resolved.Host = host
	return resolved.String(), nil
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

func firstListValue(rawValue string) string {
	for _, segment := range strings.Split(rawValue, ",") {
		if trimmed := strings.TrimSpace(segment); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

// forwardedDirective extracts key from the first element of an RFC 7239 Forwarded header that carries it.
func forwardedDirective(headerValue string, key string) string {
	for _, element := range strings.Split(headerValue, ",") {
		for _, pair := range strings.Split(element, ";") {
			name, value, found := strings.Cut(strings.TrimSpace(pair), "=")
			if !found || !strings.EqualFold(strings.TrimSpace(name), key) {
				continue
			}
			if unquoted := strings.Trim(strings.TrimSpace(value), "\""); unquoted != "" {
				return unquoted
			}
		}
	}
	return ""
}
