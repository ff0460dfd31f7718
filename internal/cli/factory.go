// Package cli wires configuration into a running bot for the formbot commands.
package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/aretw0/formbot"
	"github.com/aretw0/formbot/internal/adapters/file"
	redisstore "github.com/aretw0/formbot/internal/adapters/redis"
	"github.com/aretw0/formbot/internal/adapters/sqlite"
	"github.com/aretw0/formbot/internal/config"
	"github.com/aretw0/formbot/pkg/adapters/gemini"
	"github.com/aretw0/formbot/pkg/adapters/memory"
	"github.com/aretw0/formbot/pkg/adapters/mistral"
	redislock "github.com/aretw0/formbot/pkg/adapters/redis"
	"github.com/aretw0/formbot/pkg/forms"
	"github.com/aretw0/formbot/pkg/observability"
	"github.com/aretw0/formbot/pkg/persistence/middleware"
	"github.com/aretw0/formbot/pkg/ports"
	"github.com/prometheus/client_golang/prometheus"
)

const lockPrefix = "formbot:lock:"

// Storage is an opened StateStore with its optional locker, health check and cleanup.
type Storage struct {
	Store  ports.StateStore
	Locker ports.DistributedLocker
	// Check pings the backend; nil for backends with nothing to ping.
	Check func(ctx context.Context) error
	Close func() error
}

// OpenStorage opens the configured backend and wraps it with the answer
// redaction and encryption middleware when configured.
func OpenStorage(cfg *config.Config) (*Storage, error) {
	st := &Storage{Close: func() error { return nil }}

	var base ports.StateStore
	switch cfg.Storage.Backend {
	case config.StoreMemory, "":
		base = memory.NewStore()
	case config.StoreFile:
		base = file.New(cfg.Storage.DataDir)
	case config.StoreSQLite:
		db, err := sqlite.New(cfg.Storage.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		base = db
		st.Check = db.Ping
		st.Close = db.Close
	case config.StoreRedis:
		rdb := redisstore.New(cfg.Storage.RedisAddr, cfg.Storage.RedisPassword, cfg.Storage.RedisDB)
		base = rdb
		st.Check = func(ctx context.Context) error { return rdb.Client().Ping(ctx).Err() }
		st.Close = rdb.Close
		if cfg.Storage.RedisLock {
			st.Locker = redislock.NewLocker(rdb.Client(), lockPrefix)
		}
	default:
		return nil, fmt.Errorf("unknown store %q", cfg.Storage.Backend)
	}

	mws, err := storeMiddleware(cfg.Encryption)
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	st.Store = middleware.Chain(base, mws...)
	return st, nil
}

// storeMiddleware orders redaction before encryption so masked values are never sealed.
func storeMiddleware(enc config.EncryptionConfig) ([]middleware.Middleware, error) {
	var mws []middleware.Middleware
	for _, p := range enc.RedactFields {
		if _, err := regexp.Compile(p); err != nil {
			return nil, fmt.Errorf("FORMBOT_REDACT_FIELDS: %w", err)
		}
	}
	if len(enc.RedactFields) > 0 {
		mws = append(mws, middleware.NewPIIMiddleware(enc.RedactFields))
	}
	if enc.Key == "" {
		return mws, nil
	}
	active, err := middleware.ParseKey(enc.Key)
	if err != nil {
		return nil, fmt.Errorf("FORMBOT_ENCRYPTION_KEY: %w", err)
	}
	ec := middleware.EncryptionConfig{ActiveKey: active}
	for i, k := range enc.FallbackKeys {
		key, err := middleware.ParseKey(k)
		if err != nil {
			return nil, fmt.Errorf("FORMBOT_ENCRYPTION_FALLBACK_KEYS[%d]: %w", i, err)
		}
		ec.FallbackKeys = append(ec.FallbackKeys, key)
	}
	return append(mws, middleware.NewEncryptionMiddleware(ec)), nil
}

// NewGenerator returns the configured text-generation client, or nil for provider "none".
// The returned chat model is the one to pass to formbot.WithChatModel.
func NewGenerator(ctx context.Context, cfg *config.Config, logger *slog.Logger) (ports.Generator, string, error) {
	switch cfg.LLM.Provider {
	case config.ProviderMistral:
		opts := []mistral.Option{mistral.WithModel(cfg.LLM.Model), mistral.WithLogger(logger)}
		if cfg.LLM.MistralURL != "" {
			opts = append(opts, mistral.WithBaseURL(cfg.LLM.MistralURL))
		}
		return mistral.New(cfg.LLM.MistralAPIKey, opts...), cfg.LLM.ChatModel, nil
	case config.ProviderGemini:
		// Model names default to Mistral's; those mean "provider default" here.
		client, err := gemini.New(ctx, cfg.LLM.GeminiAPIKey, geminiModel(cfg.LLM.Model))
		if err != nil {
			return nil, "", err
		}
		return client, geminiModel(cfg.LLM.ChatModel), nil
	case config.ProviderNone, "":
		return nil, "", nil
	default:
		return nil, "", fmt.Errorf("unknown LLM provider %q", cfg.LLM.Provider)
	}
}

func geminiModel(m string) string {
	if strings.HasPrefix(m, "mistral") {
		return ""
	}
	return m
}

// App is a fully wired bot with the resources it holds.
type App struct {
	Bot     *formbot.Bot
	Storage *Storage
	Logger  *slog.Logger
}

// Close releases the store.
func (a *App) Close() error {
	return a.Storage.Close()
}

// AppOption customises NewApp.
type AppOption func(*appOptions)

type appOptions struct {
	registerer prometheus.Registerer
	metrics    bool
}

// WithMetrics registers the formbot collectors on reg (nil means the default registry).
func WithMetrics(reg prometheus.Registerer) AppOption {
	return func(o *appOptions) {
		o.metrics = true
		o.registerer = reg
	}
}

// NewApp opens storage, loads forms, selects the generator and builds the bot.
func NewApp(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts ...AppOption) (*App, error) {
	var o appOptions
	for _, opt := range opts {
		opt(&o)
	}

	registry, err := forms.NewRegistry(cfg.Forms.Path)
	if err != nil {
		return nil, fmt.Errorf("load forms: %w", err)
	}

	gen, chatModel, err := NewGenerator(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("create generator: %w", err)
	}

	hooks := observability.LogHooks(logger)
	if o.metrics {
		m, err := observability.NewMetrics(o.registerer)
		if err != nil {
			var already prometheus.AlreadyRegisteredError
			if !errors.As(err, &already) {
				return nil, fmt.Errorf("register metrics: %w", err)
			}
			logger.Warn("Metrics already registered", "err", err)
		} else {
			hooks = observability.Combine(hooks, m.Hooks())
		}
	}

	st, err := OpenStorage(cfg)
	if err != nil {
		return nil, err
	}

	botOpts := []formbot.Option{
		formbot.WithStore(st.Store),
		formbot.WithForms(registry),
		formbot.WithGenerationTimeout(cfg.LLM.Timeout),
		formbot.WithChatModel(chatModel),
		formbot.WithLifecycleHooks(hooks),
		formbot.WithLogger(logger),
		formbot.WithDefaultForm(cfg.Forms.DefaultForm),
		formbot.WithRegistrationRequired(cfg.Forms.RequireRegistration),
	}
	if gen != nil {
		botOpts = append(botOpts, formbot.WithGenerator(gen))
	}
	if st.Locker != nil {
		botOpts = append(botOpts, formbot.WithLocker(st.Locker))
	}

	bot, err := formbot.New(botOpts...)
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	logger.Debug("Bot ready",
		"store", cfg.Storage.Backend,
		"provider", cfg.LLM.Provider,
		"default_form", bot.DefaultForm(),
		"encrypted", cfg.Encryption.Key != "",
	)
	return &App{Bot: bot, Storage: st, Logger: logger}, nil
}
