package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/snippetx/backend/internal/auth"
	"github.com/snippetx/backend/internal/config"
	"github.com/snippetx/backend/internal/logging"
	"github.com/snippetx/backend/internal/mirror"
	"github.com/snippetx/backend/internal/ratelimit"
	"github.com/snippetx/backend/internal/server"
	"github.com/snippetx/backend/internal/snippets"
	"github.com/snippetx/backend/internal/syncer"
)

var cfgFile string

func main() {
	rootCmd := &cobra.Command{
		Use:   "snippetx-api",
		Short: "SnippetX snippet backend service",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}

	setupFlags(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupFlags(cmd *cobra.Command) {
	config.ApplyDefaults(viper.GetViper())
	defaults := config.NewViper()
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file")
	cmd.PersistentFlags().String("http-address", defaults.GetString("http.address"), "HTTP listen address")
	cmd.PersistentFlags().String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().String("api-key", "", "Shared API key (overrides env)")
	cmd.PersistentFlags().String("signing-secret", "", "Backend token signing secret (overrides env)")
	cmd.PersistentFlags().Int("token-ttl-minutes", defaults.GetInt("token.ttl_minutes"), "Backend token TTL in minutes")
	cmd.PersistentFlags().Int("ratelimit-window-minutes", defaults.GetInt("ratelimit.window_minutes"), "General rate-limit window in minutes")
	cmd.PersistentFlags().Int("ratelimit-max-requests", defaults.GetInt("ratelimit.max_requests"), "General rate-limit request quota")
	cmd.PersistentFlags().String("mirror-token", "", "Mirror access token (overrides env)")
	cmd.PersistentFlags().String("mirror-repository", defaults.GetString("mirror.repository"), "Mirror repository (owner/repo)")
	cmd.PersistentFlags().String("mirror-branch", defaults.GetString("mirror.branch"), "Mirror branch")
	cmd.PersistentFlags().String("mirror-path-prefix", defaults.GetString("mirror.path_prefix"), "Mirror path prefix for snippet collections")

	bindFlag(cmd, "http.address", "http-address")
	bindFlag(cmd, "log.level", "log-level")
	bindFlag(cmd, "auth.api_key", "api-key")
	bindFlag(cmd, "auth.signing_secret", "signing-secret")
	bindFlag(cmd, "token.ttl_minutes", "token-ttl-minutes")
	bindFlag(cmd, "ratelimit.window_minutes", "ratelimit-window-minutes")
	bindFlag(cmd, "ratelimit.max_requests", "ratelimit-max-requests")
	bindFlag(cmd, "mirror.token", "mirror-token")
	bindFlag(cmd, "mirror.repository", "mirror-repository")
	bindFlag(cmd, "mirror.branch", "mirror-branch")
	bindFlag(cmd, "mirror.path_prefix", "mirror-path-prefix")
}

func bindFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func initConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}

	if err := viper.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if cfgFile != "" && errors.As(err, &configNotFound) {
			return err
		}
	}

	return nil
}

func runServer(ctx context.Context) error {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(appConfig.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	tokenIssuer, err := auth.NewTokenIssuer(auth.TokenIssuerConfig{
		SigningSecret: []byte(appConfig.SigningSecret),
		Issuer:        "snippetx-auth",
		Audience:      "snippetx-api",
		TokenTTL:      appConfig.TokenTTL,
	})
	if err != nil {
		return err
	}

	authenticator, err := auth.NewAuthenticator(appConfig.APIKey, tokenIssuer)
	if err != nil {
		return err
	}

	limiter := ratelimit.NewLimiter(ratelimit.Config{
		GeneralWindow: appConfig.RateLimitWindow,
		GeneralMax:    appConfig.RateLimitMax,
		Logger:        logger,
	})
	limiter.Start()
	defer limiter.Stop()

	store := snippets.NewStore(snippets.StoreConfig{Logger: logger})

	var mirrorClient mirror.Client
	if appConfig.MirrorRepository != "" && appConfig.MirrorToken != "" {
		client, err := mirror.NewGitHubClient(mirror.GitHubClientConfig{
			Token:      appConfig.MirrorToken,
			Repository: appConfig.MirrorRepository,
			Branch:     appConfig.MirrorBranch,
			Logger:     logger,
		})
		if err != nil {
			return err
		}
		mirrorClient = client
	} else {
		logger.Info("remote mirror not configured, sync endpoints disabled")
	}

	reconciler, err := syncer.NewReconciler(syncer.ReconcilerConfig{
		Store:      store,
		Mirror:     mirrorClient,
		Repository: appConfig.MirrorRepository,
		PathPrefix: appConfig.MirrorPathPrefix,
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	handler, err := server.NewHTTPHandler(server.Dependencies{
		Store:         store,
		Limiter:       limiter,
		Reconciler:    reconciler,
		Authenticator: authenticator,
		Logger:        logger,
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:    appConfig.HTTPAddress,
		Handler: handler,
	}

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("address", appConfig.HTTPAddress))
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-signalCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
