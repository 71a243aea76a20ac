// Command chatd serves the conversational pipeline over HTTP.
//
// Configuration comes from the environment (optionally via a .env file):
//
//	CHATD_ADDR              listen address (default :8080)
//	CHATD_MODEL_PROVIDER    openai | anthropic | mock (default mock)
//	CHATD_MODEL_NAME        provider model override
//	CHATD_SESSION_BACKEND   memory | file | redis (default memory)
//	CHATD_SESSION_DIR       session directory for the file backend
//	CHATD_REDIS_ADDR        redis address for the redis backend
//	CHATD_KNOWLEDGE_BASE    path to a JSON document file for retrieval
//	CHATD_FAQ_FILE          path to a JSON file with curated FAQ entries
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/redis/go-redis/v9"

	"github.com/hupe1980/chatgraph/chat"
	"github.com/hupe1980/chatgraph/core"
	"github.com/hupe1980/chatgraph/faq"
	"github.com/hupe1980/chatgraph/logging"
	"github.com/hupe1980/chatgraph/model"
	"github.com/hupe1980/chatgraph/model/anthropic"
	"github.com/hupe1980/chatgraph/model/openai"
	"github.com/hupe1980/chatgraph/retrieval"
	"github.com/hupe1980/chatgraph/server"
	"github.com/hupe1980/chatgraph/session"
)

type config struct {
	Addr      string `envconfig:"ADDR" default:":8080"`
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"text"`

	ModelProvider string  `envconfig:"MODEL_PROVIDER" default:"mock"`
	ModelName     string  `envconfig:"MODEL_NAME"`
	Temperature   float64 `envconfig:"TEMPERATURE" default:"0.2"`

	SessionBackend string `envconfig:"SESSION_BACKEND" default:"memory"`
	SessionDir     string `envconfig:"SESSION_DIR" default:"./sessions"`
	RedisAddr      string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisPassword  string `envconfig:"REDIS_PASSWORD"`
	RedisDB        int    `envconfig:"REDIS_DB" default:"0"`

	KnowledgeBase string `envconfig:"KNOWLEDGE_BASE"`
	FAQFile       string `envconfig:"FAQ_FILE"`

	MaxToolRounds  int           `envconfig:"MAX_TOOL_ROUNDS" default:"5"`
	WindowPairs    int           `envconfig:"WINDOW_PAIRS" default:"5"`
	RequestTimeout time.Duration `envconfig:"REQUEST_TIMEOUT" default:"120s"`

	AllowedOrigins []string `envconfig:"ALLOWED_ORIGINS"`
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "chatd:", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	var cfg config
	if err := envconfig.Process("CHATD", &cfg); err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := logging.NewSlogLogger(parseLevel(cfg.LogLevel), cfg.LogFormat, false)

	m, err := buildModel(cfg)
	if err != nil {
		return err
	}
	store, err := buildStore(cfg)
	if err != nil {
		return err
	}

	var svcOpts []func(o *chat.ServiceOptions)
	svcOpts = append(svcOpts, func(o *chat.ServiceOptions) {
		o.Logger = logger
		o.MaxToolRounds = cfg.MaxToolRounds
		o.WindowPairs = cfg.WindowPairs
	})

	if cfg.KnowledgeBase != "" {
		index, err := retrieval.NewIndexFromFile(cfg.KnowledgeBase)
		if err != nil {
			return fmt.Errorf("load knowledge base: %w", err)
		}
		svcOpts = append(svcOpts, func(o *chat.ServiceOptions) { o.Retriever = index })
		logger.Info("knowledge base loaded", "path", cfg.KnowledgeBase)
	}

	if cfg.FAQFile != "" {
		matcher, err := faq.NewMatcherFromFile(buildEmbedder(cfg), cfg.FAQFile)
		if err != nil {
			return fmt.Errorf("load faq entries: %w", err)
		}
		svcOpts = append(svcOpts, func(o *chat.ServiceOptions) { o.FAQMatcher = matcher })
		logger.Info("faq entries loaded", "path", cfg.FAQFile, "entries", len(matcher.Entries()))
	}

	svc, err := chat.NewService(m, store, svcOpts...)
	if err != nil {
		return fmt.Errorf("create service: %w", err)
	}

	srv := server.New(svc, func(o *server.Options) {
		o.Addr = cfg.Addr
		o.Logger = logger
		o.AllowedOrigins = cfg.AllowedOrigins
		o.RequestTimeout = cfg.RequestTimeout
	})

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-stop:
		logger.Info("shutting down", "signal", sig.String())
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(ctx)
	}
}

func buildModel(cfg config) (model.Model, error) {
	switch cfg.ModelProvider {
	case "openai":
		return openai.NewModel(func(o *openai.Options) {
			if cfg.ModelName != "" {
				o.Model = cfg.ModelName
			}
			o.Temperature = cfg.Temperature
		}), nil
	case "anthropic":
		return anthropic.NewModel(func(o *anthropic.Options) {
			if cfg.ModelName != "" {
				o.Model = anthropicsdk.Model(cfg.ModelName)
			}
			o.Temperature = cfg.Temperature
		}), nil
	case "mock":
		return model.NewMockModel("chatd-mock", "mock"), nil
	default:
		return nil, fmt.Errorf("unknown model provider %q", cfg.ModelProvider)
	}
}

// buildEmbedder picks the FAQ embedder: real embeddings with an OpenAI
// backend, lexical hashing otherwise.
func buildEmbedder(cfg config) faq.Embedder {
	if cfg.ModelProvider == "openai" {
		return openai.NewEmbedder()
	}
	return faq.NewLexicalEmbedder(0)
}

func buildStore(cfg config) (core.SessionStore, error) {
	switch cfg.SessionBackend {
	case "memory":
		return session.NewInMemoryStore(), nil
	case "file":
		return session.NewFileStore(cfg.SessionDir)
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		return session.NewRedisStore(client), nil
	default:
		return nil, fmt.Errorf("unknown session backend %q", cfg.SessionBackend)
	}
}

func parseLevel(s string) logging.LogLevel {
	switch s {
	case "debug":
		return logging.LogLevelDebug
	case "warn":
		return logging.LogLevelWarn
	case "error":
		return logging.LogLevelError
	default:
		return logging.LogLevelInfo
	}
}
