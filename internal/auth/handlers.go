// Package auth mounts the Google sign-in flow that guards the builder API.
package auth

import (
	"fmt"
	"net/http"
	"net/url"
	"sync"

	"github.com/temirov/GAuss/pkg/constants"
	"github.com/temirov/GAuss/pkg/gauss"
	"go.uber.org/zap"
)

const (
	logEventResolveHandlers = "resolve_oauth_handlers"
	createServiceError      = "create oauth service"
	createHandlersError     = "create oauth handlers"
	parseBaseURLError       = "parse public base url"
)

// Config captures dependencies for building OAuth handlers.
type Config struct {
	GoogleClientID     string
	GoogleClientSecret string
	PublicBaseURL      string
	// LocalRedirectPath is where users land after signing in, usually the builder.
	LocalRedirectPath string
	Scopes            []string
	LoginTemplate     string
	Logger            *zap.Logger
}

// Handlers serves the GAuss login, callback and logout endpoints. Redirect URLs
// follow the host each request arrived on, so one deployment can answer on
// several domains.
type Handlers struct {
	configuration     Config
	configuredBaseURL *url.URL
	defaultHandlers   *gauss.Handlers
	loginServeMux     *http.ServeMux
	logger            *zap.Logger

	cacheMutex    sync.Mutex
	handlersByURL map[string]*gauss.Handlers
}

func NewHandlers(configuration Config) (*Handlers, error) {
	logger := configuration.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	baseURL, parseErr := url.Parse(configuration.PublicBaseURL)
	if parseErr != nil {
		return nil, fmt.Errorf("%s: %w", parseBaseURLError, parseErr)
	}

	handlers := &Handlers{
		configuration:     configuration,
		configuredBaseURL: baseURL,
		logger:            logger,
		handlersByURL:     make(map[string]*gauss.Handlers),
	}
	defaultHandlers, buildErr := handlers.build(configuration.PublicBaseURL)
	if buildErr != nil {
		return nil, buildErr
	}
	handlers.defaultHandlers = defaultHandlers
	handlers.loginServeMux = http.NewServeMux()
	defaultHandlers.RegisterRoutes(handlers.loginServeMux)
	return handlers, nil
}

// RegisterRoutes wires the OAuth endpoints to the provided ServeMux.
func (handlers *Handlers) RegisterRoutes(mux *http.ServeMux) {
	mux.Handle(constants.LoginPath, handlers.loginServeMux)
	mux.HandleFunc(constants.GoogleAuthPath, handlers.forRequest(func(gaussHandlers *gauss.Handlers) http.HandlerFunc {
		return gaussHandlers.Login
	}))
	mux.HandleFunc(constants.CallbackPath, handlers.forRequest(func(gaussHandlers *gauss.Handlers) http.HandlerFunc {
		return gaussHandlers.Callback
	}))
	mux.HandleFunc(constants.LogoutPath, handlers.defaultHandlers.Logout)
}

func (handlers *Handlers) forRequest(selectHandler func(*gauss.Handlers) http.HandlerFunc) http.HandlerFunc {
	return func(responseWriter http.ResponseWriter, request *http.Request) {
		gaussHandlers, resolutionErr := handlers.handlersForRequest(request)
		if resolutionErr != nil {
			handlers.logger.Warn(logEventResolveHandlers, zap.Error(resolutionErr))
			http.Error(responseWriter, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		selectHandler(gaussHandlers)(responseWriter, request)
	}
}

func (handlers *Handlers) handlersForRequest(request *http.Request) (*gauss.Handlers, error) {
	baseURL, baseErr := RequestBaseURL(request, handlers.configuredBaseURL)
	if baseErr != nil {
		return nil, baseErr
	}

	handlers.cacheMutex.Lock()
	defer handlers.cacheMutex.Unlock()
	if cached := handlers.handlersByURL[baseURL]; cached != nil {
		return cached, nil
	}
	gaussHandlers, buildErr := handlers.build(baseURL)
	if buildErr != nil {
		return nil, buildErr
	}
	handlers.handlersByURL[baseURL] = gaussHandlers
	return gaussHandlers, nil
}

func (handlers *Handlers) build(baseURL string) (*gauss.Handlers, error) {
	serviceInstance, serviceErr := gauss.NewService(
		handlers.configuration.GoogleClientID,
		handlers.configuration.GoogleClientSecret,
		baseURL,
		handlers.configuration.LocalRedirectPath,
		handlers.configuration.Scopes,
		handlers.configuration.LoginTemplate,
	)
	if serviceErr != nil {
		return nil, fmt.Errorf("%s: %w", createServiceError, serviceErr)
	}
	gaussHandlers, handlersErr := gauss.NewHandlers(serviceInstance)
	if handlersErr != nil {
		return nil, fmt.Errorf("%s: %w", createHandlersError, handlersErr)
	}
	return gaussHandlers, nil
}
