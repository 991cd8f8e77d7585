package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/temirov/GAuss/pkg/gauss"
	"github.com/temirov/GAuss/pkg/session"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/MarkoPoloResearchLab/countdownforge/internal/auth"
	"github.com/MarkoPoloResearchLab/countdownforge/internal/builder"
	"github.com/MarkoPoloResearchLab/countdownforge/internal/storage"
)

const (
	commandUseName                = "server"
	commandShortDescription       = "Run the countdown widget builder"
	commandLongDescription        = "Launch the HTTP service that hosts builder sessions, live previews and the embeddable widget runtime"
	missingConfigurationMessage   = "missing required configuration"
	loggerCreationErrorMessage    = "logger"
	logEventListening             = "listening"
	logEventShutdown              = "shutdown"
	logFieldAddress               = "addr"
	loggerContextOpenDatabase     = "open_db"
	loggerContextAutoMigrate      = "migrate"
	loggerContextServer           = "server"
	unexpectedArgumentsMessage    = "unexpected command arguments"
	commandInitializationFailure  = "failed to configure command"
	flagNotDefinedMessage         = "flag %s not defined"
	environmentConfigurationError = "failed to apply environment configuration"
	invalidIdleTimeoutMessage     = "invalid session idle timeout"

	flagNameApplicationAddress     = "app-addr"
	flagNameDatabaseDriver         = "db-driver"
	flagNameDatabaseDataSourceName = "db-dsn"
	flagNameSessionSecret          = "session-secret"
	flagNameGoogleClientID         = "google-client-id"
	flagNameGoogleClientSecret     = "google-client-secret"
	flagNamePublicBaseURL          = "public-base-url"
	flagNameRuntimeScriptURL       = "runtime-script-url"
	flagNameSessionIdleTimeout     = "session-idle-timeout"

	environmentKeyApplicationAddress = "APP_ADDR"
	environmentKeyDatabaseDriver     = "DB_DRIVER"
	environmentKeyDatabaseDataSource = "DB_DSN"
	environmentKeySessionSecret      = "SESSION_SECRET"
	environmentKeyGoogleClientID     = "GOOGLE_CLIENT_ID"
	environmentKeyGoogleClientSecret = "GOOGLE_CLIENT_SECRET"
	environmentKeyPublicBaseURL      = "PUBLIC_BASE_URL"
	environmentKeyRuntimeScriptURL   = "RUNTIME_SCRIPT_URL"
	environmentKeySessionIdleTimeout = "SESSION_IDLE_TIMEOUT"

	defaultApplicationAddress = ":8080"
	defaultDatabaseDriver     = storage.DriverNameSQLite
	defaultDatabaseDSN        = "file:countdownforge.db?_foreign_keys=on"
	defaultSessionIdleTimeout = "30m"
	builderLandingPath        = "/"

	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 10 * time.Second
)

// configurationEntry binds one flag to its environment key.
type configurationEntry struct {
	flagName       string
	environmentKey string
	defaultValue   string
	usage          string
	required       bool
}

var configurationEntries = []configurationEntry{
	{flagNameApplicationAddress, environmentKeyApplicationAddress, defaultApplicationAddress, "address for the HTTP server to listen on", false},
	{flagNameDatabaseDriver, environmentKeyDatabaseDriver, defaultDatabaseDriver, "database driver for visitor anchors (sqlite or postgres)", false},
	{flagNameDatabaseDataSourceName, environmentKeyDatabaseDataSource, defaultDatabaseDSN, "database connection string", false},
	{flagNameSessionSecret, environmentKeySessionSecret, "", "secret used to sign session cookies", true},
	{flagNameGoogleClientID, environmentKeyGoogleClientID, "", "Google OAuth client id", true},
	{flagNameGoogleClientSecret, environmentKeyGoogleClientSecret, "", "Google OAuth client secret", true},
	{flagNamePublicBaseURL, environmentKeyPublicBaseURL, "", "public URL of the builder, used for OAuth redirects and CORS", true},
	{flagNameRuntimeScriptURL, environmentKeyRuntimeScriptURL, "", "address hosted snippets load the widget runtime from", false},
	{flagNameSessionIdleTimeout, environmentKeySessionIdleTimeout, defaultSessionIdleTimeout, "builder sessions idle longer than this are closed", false},
}

// ServerConfig captures configuration needed to run the server.
type ServerConfig struct {
	ApplicationAddress     string
	DatabaseDriverName     string
	DatabaseDataSourceName string
	SessionSecret          string
	GoogleClientID         string
	GoogleClientSecret     string
	PublicBaseURL          string
	RuntimeScriptURL       string
	SessionIdleTimeout     time.Duration
}

// DatabaseOpener opens the visitor anchor database.
type DatabaseOpener func(storage.Config) (*gorm.DB, error)

// ServerApplication constructs and executes the server command.
type ServerApplication struct {
	configurationLoader *viper.Viper
	databaseOpener      DatabaseOpener
}

// NewServerApplication creates a ServerApplication with default dependencies.
func NewServerApplication() *ServerApplication {
	return &ServerApplication{
		configurationLoader: viper.New(),
		databaseOpener:      storage.OpenDatabase,
	}
}

// WithDatabaseOpener overrides the database opener dependency.
func (application *ServerApplication) WithDatabaseOpener(databaseOpener DatabaseOpener) *ServerApplication {
	application.databaseOpener = databaseOpener
	return application
}

// Command builds the Cobra command for the server.
func (application *ServerApplication) Command() (*cobra.Command, error) {
	rootCommand := &cobra.Command{
		Use:   commandUseName,
		Short: commandShortDescription,
		Long:  commandLongDescription,
		RunE:  application.runCommand,
	}

	if configurationErr := application.configureCommand(rootCommand); configurationErr != nil {
		return nil, configurationErr
	}

	return rootCommand, nil
}

func (application *ServerApplication) configureCommand(command *cobra.Command) error {
	application.configurationLoader.AutomaticEnv()
	commandFlags := command.Flags()
	for _, entry := range configurationEntries {
		application.configurationLoader.SetDefault(entry.environmentKey, entry.defaultValue)
		commandFlags.String(entry.flagName, entry.defaultValue, entry.usage)
	}
	for _, entry := range configurationEntries {
		if bindErr := application.bindFlag(commandFlags, entry.environmentKey, entry.flagName); bindErr != nil {
			return bindErr
		}
		if environmentErr := application.applyEnvironmentConfiguration(commandFlags, entry.environmentKey, entry.flagName); environmentErr != nil {
			return environmentErr
		}
	}
	return nil
}

func (application *ServerApplication) bindFlag(flagSet *pflag.FlagSet, environmentKey string, flagName string) error {
	flag := flagSet.Lookup(flagName)
	if flag == nil {
		return fmt.Errorf(flagNotDefinedMessage, flagName)
	}

	if bindErr := application.configurationLoader.BindPFlag(environmentKey, flag); bindErr != nil {
		return bindErr
	}

	return nil
}

func (application *ServerApplication) applyEnvironmentConfiguration(flagSet *pflag.FlagSet, environmentKey string, flagName string) error {
	environmentValue, environmentFound := os.LookupEnv(environmentKey)
	if !environmentFound {
		return nil
	}

	if setErr := flagSet.Set(flagName, environmentValue); setErr != nil {
		return fmt.Errorf("%s: %w", environmentConfigurationError, setErr)
	}

	return nil
}

func (application *ServerApplication) loadServerConfig() (ServerConfig, error) {
	loader := application.configurationLoader
	idleTimeout, parseErr := time.ParseDuration(strings.TrimSpace(loader.GetString(environmentKeySessionIdleTimeout)))
	if parseErr != nil || idleTimeout <= 0 {
		return ServerConfig{}, fmt.Errorf("%s: %q", invalidIdleTimeoutMessage, loader.GetString(environmentKeySessionIdleTimeout))
	}
	return ServerConfig{
		ApplicationAddress:     strings.TrimSpace(loader.GetString(environmentKeyApplicationAddress)),
		DatabaseDriverName:     strings.TrimSpace(loader.GetString(environmentKeyDatabaseDriver)),
		DatabaseDataSourceName: strings.TrimSpace(loader.GetString(environmentKeyDatabaseDataSource)),
		SessionSecret:          strings.TrimSpace(loader.GetString(environmentKeySessionSecret)),
		GoogleClientID:         strings.TrimSpace(loader.GetString(environmentKeyGoogleClientID)),
		GoogleClientSecret:     strings.TrimSpace(loader.GetString(environmentKeyGoogleClientSecret)),
		PublicBaseURL:          strings.TrimRight(strings.TrimSpace(loader.GetString(environmentKeyPublicBaseURL)), "/"),
		RuntimeScriptURL:       strings.TrimSpace(loader.GetString(environmentKeyRuntimeScriptURL)),
		SessionIdleTimeout:     idleTimeout,
	}, nil
}

func (application *ServerApplication) runCommand(command *cobra.Command, arguments []string) error {
	if len(arguments) > 0 {
		return fmt.Errorf("%s: %s", unexpectedArgumentsMessage, strings.Join(arguments, " "))
	}

	serverConfig, configErr := application.loadServerConfig()
	if configErr != nil {
		return configErr
	}
	if validationErr := ensureRequiredConfiguration(serverConfig); validationErr != nil {
		return validationErr
	}

	logger, loggerErr := zap.NewProduction()
	if loggerErr != nil {
		return fmt.Errorf("%s: %w", loggerCreationErrorMessage, loggerErr)
	}
	defer func() {
		_ = logger.Sync()
	}()

	database, databaseErr := application.databaseOpener(storage.Config{
		DriverName:     serverConfig.DatabaseDriverName,
		DataSourceName: serverConfig.DatabaseDataSourceName,
	})
	if databaseErr != nil {
		logger.Error(loggerContextOpenDatabase, zap.Error(databaseErr))
		return databaseErr
	}
	if migrateErr := storage.AutoMigrate(database); migrateErr != nil {
		logger.Error(loggerContextAutoMigrate, zap.Error(migrateErr))
		return migrateErr
	}

	session.NewSession([]byte(serverConfig.SessionSecret))
	oauthHandlers, oauthErr := auth.NewHandlers(auth.Config{
		GoogleClientID:     serverConfig.GoogleClientID,
		GoogleClientSecret: serverConfig.GoogleClientSecret,
		PublicBaseURL:      serverConfig.PublicBaseURL,
		LocalRedirectPath:  builderLandingPath,
		Scopes:             gauss.ScopeStrings(gauss.DefaultScopes),
		Logger:             logger,
	})
	if oauthErr != nil {
		return oauthErr
	}

	service := newServiceDependencies(serverConfig, database, logger)
	defer service.registry.Close()

	router := buildRouter(serverConfig, service, oauthHandlers, logger)

	runtimeContext, stopSignals := signal.NotifyContext(commandContext(command), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	sweeper := builder.NewSweeper(service.registry, sweepInterval(serverConfig.SessionIdleTimeout), logger)
	sweeper.Start(runtimeContext)
	defer sweeper.Stop()

	httpServer := &http.Server{
		Addr:              serverConfig.ApplicationAddress,
		Handler:           router,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	serveErrors := make(chan error, 1)
	go func() {
		logger.Info(logEventListening, zap.String(logFieldAddress, serverConfig.ApplicationAddress))
		serveErrors <- httpServer.ListenAndServe()
	}()

	select {
	case serveErr := <-serveErrors:
		if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			logger.Error(loggerContextServer, zap.Error(serveErr))
			return serveErr
		}
		return nil
	case <-runtimeContext.Done():
	}

	logger.Info(logEventShutdown)
	shutdownContext, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()
	return httpServer.Shutdown(shutdownContext)
}

func commandContext(command *cobra.Command) context.Context {
	if commandCtx := command.Context(); commandCtx != nil {
		return commandCtx
	}
	return context.Background()
}

// sweepInterval checks for idle sessions a few times per timeout window.
func sweepInterval(idleTimeout time.Duration) time.Duration {
	interval := idleTimeout / 4
	if interval < time.Second {
		return time.Second
	}
	return interval
}

func ensureRequiredConfiguration(configuration ServerConfig) error {
	provided := map[string]string{
		flagNameSessionSecret:      configuration.SessionSecret,
		flagNameGoogleClientID:     configuration.GoogleClientID,
		flagNameGoogleClientSecret: configuration.GoogleClientSecret,
		flagNamePublicBaseURL:      configuration.PublicBaseURL,
	}
	var missingParameters []string
	for _, entry := range configurationEntries {
		if !entry.required {
			continue
		}
		if provided[entry.flagName] == "" {
			missingParameters = append(missingParameters, entry.flagName)
		}
	}

	if len(missingParameters) == 0 {
		return nil
	}

	return fmt.Errorf("%s: %s", missingConfigurationMessage, strings.Join(missingParameters, ", "))
}

func main() {
	application := NewServerApplication()
	rootCommand, commandErr := application.Command()
	if commandErr != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", commandInitializationFailure, commandErr)
		os.Exit(1)
	}

	if executeErr := rootCommand.Execute(); executeErr != nil {
		os.Exit(1)
	}
}
