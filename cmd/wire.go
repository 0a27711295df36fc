package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/hirewire/internal/ai"
	"github.com/spigell/hirewire/internal/ai/gemini"
	"github.com/spigell/hirewire/internal/app"
	"github.com/spigell/hirewire/internal/auth"
	"github.com/spigell/hirewire/internal/backend"
	"github.com/spigell/hirewire/internal/cache"
	"github.com/spigell/hirewire/internal/capture"
	"github.com/spigell/hirewire/internal/filtering"
	"github.com/spigell/hirewire/internal/logger"
	"github.com/spigell/hirewire/internal/secrets"
	"github.com/spigell/hirewire/internal/store/postgres"
)

// runtime is everything a command needs, built from the config.
type runtime struct {
	logger *zap.Logger
	config *Config
	auth   *auth.Client
	app    *app.App

	closers []func() error
}

func (r *runtime) Close() {
	r.app.Stop()
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](); err != nil {
			r.logger.Debug("closing resource", zap.Error(err))
		}
	}
	_ = r.logger.Sync()
}

// bootstrap builds the logger and wires the app. Startup failures are fatal,
// like everywhere else in the CLI.
func bootstrap(ctx context.Context) *runtime {
	zl, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}
	r := &runtime{logger: zl}
	r.wire(ctx)
	return r
}

func (r *runtime) wire(ctx context.Context) {
	log := r.logger

	config, err := getConfig()
	if err != nil {
		log.Fatal("getting a config", zap.Error(err))
	}

	log.Info("starting the hirewire", zap.String("version", version))

	r.config = config

	anonKey, err := secrets.Load(secrets.Source{
		Name:  "backend anon key",
		Value: config.Backend.AnonKey,
		File:  config.Backend.AnonKeyFile,
	})
	if err != nil {
		log.Fatal("loading backend anon key", zap.Error(err), zap.String("hint", "set backend.anon-key-file or HIREWIRE_BACKEND_ANON_KEY"))
	}
	if strings.TrimSpace(config.Backend.URL) == "" {
		log.Fatal("backend url is required", zap.String("hint", "set backend.url or HIREWIRE_BACKEND_URL"))
	}

	jwtSecret, err := secrets.Optional(secrets.Source{
		Name:  "jwt secret",
		Value: config.Backend.JWTSecret,
		File:  config.Backend.JWTSecretFile,
	})
	if err != nil {
		log.Fatal("loading jwt secret", zap.Error(err))
	}
	if jwtSecret == "" {
		log.Warn("no jwt secret configured, access token claims are not verified")
	}

	r.auth = auth.New(log, config.Backend.URL, anonKey, jwtSecret)
	r.auth.UserAgent = config.Backend.UserAgent
	r.auth.HTTPClient.Timeout = config.Backend.RequestTimeout

	store, err := buildStore(ctx, log, config, anonKey, r.auth)
	if err != nil {
		log.Fatal("building record store", zap.Error(err))
	}
	if closer, ok := store.(interface{ Close() error }); ok {
		r.closers = append(r.closers, closer.Close)
	}

	assistant, err := buildAssistant(ctx, log, config)
	if err != nil {
		log.Warn("ai assistant disabled", zap.Error(err))
		assistant = nil
	}

	if config.Redis.Addr != "" && assistant != nil {
		redisCache := cache.NewRedis(ctx, log, cache.Options{
			Addr:     config.Redis.Addr,
			Password: config.Redis.Password,
			DB:       config.Redis.DB,
			Prefix:   config.Redis.Prefix,
			TTL:      config.Redis.TTL,
		})
		r.closers = append(r.closers, redisCache.Close)
		if redisCache.Available() {
			assistant = ai.NewCached(assistant, redisCache, config.Redis.TTL, log)
		}
	}

	r.app = app.New(app.Deps{
		Logger:    log,
		Auth:      r.auth,
		Store:     store,
		Assistant: assistant,
	})

	if err := r.app.Start(ctx); err != nil {
		log.Fatal("restoring session", zap.Error(err))
	}
}

func buildStore(ctx context.Context, log *zap.Logger, config *Config, anonKey string, tokens backend.TokenSource) (app.Store, error) {
	dsn, err := secrets.Optional(secrets.Source{
		Name:  "database dsn",
		Value: config.Database.DSN,
		File:  config.Database.DSNFile,
	})
	if err != nil {
		return nil, err
	}

	if dsn != "" {
		log.Info("using direct postgres record store")
		store, err := postgres.Open(ctx, log, dsn)
		if err != nil {
			return nil, err
		}
		return store, nil
	}

	client := backend.New(log, config.Backend.URL, anonKey, tokens)
	client.UserAgent = config.Backend.UserAgent
	client.HTTPClient.Timeout = config.Backend.RequestTimeout
	return client, nil
}

func buildAssistant(ctx context.Context, log *zap.Logger, config *Config) (ai.Assistant, error) {
	provider := strings.TrimSpace(strings.ToLower(config.AI.Provider))
	if provider != "" && provider != "gemini" {
		return nil, fmt.Errorf("unsupported ai provider: %s", config.AI.Provider)
	}

	apiKey, err := secrets.Load(secrets.Source{
		Name:  "gemini api key",
		Value: config.AI.Gemini.APIKey,
		Env:   "GEMINI_API_KEY",
		File:  config.AI.Gemini.APIKeyFile,
	})
	if err != nil {
		return nil, fmt.Errorf("%w (set ai.gemini.api-key-file or GEMINI_API_KEY)", err)
	}

	generator, err := gemini.NewGenerator(ctx, log, gemini.Options{
		APIKey:     apiKey,
		Model:      config.AI.Gemini.Model,
		MaxRetries: config.AI.Gemini.MaxRetries,
	})
	if err != nil {
		return nil, err
	}

	matcher := gemini.NewMatcher(generator, log, config.AI.Gemini.MaxLogLength)
	matcher.SetPromptOverrides(gemini.PromptOverrides{
		Focus:            config.AI.Gemini.Focus,
		UserInstructions: config.AI.Gemini.Instructions,
	})
	return matcher, nil
}

func (r *runtime) uploader() *capture.HTTPUploader {
	target := r.config.Uploads.URL
	if target == "" {
		target = strings.TrimRight(r.config.Backend.URL, "/") + "/storage/v1/object/pitches"
	}
	u := capture.NewHTTPUploader(r.logger, target, r.config.Uploads.ChunkSize)
	u.Tokens = r.auth
	return u
}

func (r *runtime) browseConfig(query, location string) filtering.Config {
	return filtering.Config{
		Query:            query,
		Location:         location,
		ExcludeCompanies: r.config.Browse.ExcludeCompanies,
		SkipAssessments:  r.config.Browse.SkipAssessments,
		AI: &filtering.AIConfig{
			Enabled:         r.config.AI.Enabled,
			MinimumFitScore: r.config.AI.MinimumFitScore,
			Limit:           r.config.AI.Limit,
		},
	}
}

// signInFromConfig signs in with backend.email and the password secret when
// there is no restored session.
func (r *runtime) signInFromConfig(ctx context.Context) error {
	if !r.app.Identity().IsGuest() {
		return nil
	}

	email := strings.TrimSpace(r.config.Backend.Email)
	if email == "" {
		return errors.New("not signed in and backend.email is not configured")
	}
	password, err := secrets.Load(secrets.Source{
		Name: "account password",
		Env:  envPrefix + "_PASSWORD",
		File: r.config.Backend.PasswordFile,
	})
	if err != nil {
		return err
	}
	return r.app.SignIn(ctx, email, password)
}
