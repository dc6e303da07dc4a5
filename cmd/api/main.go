package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/asynkron/protoactor-go/actor"
	"github.com/joho/godotenv"
	zLog "github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms/openai"
	"golang.org/x/sync/errgroup"

	"go-codeagent/internal/agents"
	"go-codeagent/internal/api"
	"go-codeagent/internal/config"
	"go-codeagent/pkg/capabilities"
	"go-codeagent/pkg/logger"
	"go-codeagent/pkg/selection"
)

type cli struct {
	Config   string `help:"Path to the TOML configuration file." default:"config.toml" type:"path"`
	EnvFile  string `help:"Path to a .env file loaded before startup." default:".env" name:"env-file"`
	LogLevel string `help:"Overrides log.level." name:"log-level"`
	JSONLogs bool   `help:"Log JSON lines instead of console output." name:"json-logs"`
	Addr     string `help:"Overrides server.addr."`
}

func main() {
	var args cli
	kong.Parse(&args,
		kong.Name("codeagent"),
		kong.Description("Plans goals as chains of sandboxed routines and selects tools for chat sessions."),
	)

	if err := run(args); err != nil {
		log.Fatalf("codeagent: %v", err)
	}
}

func run(args cli) error {
	if err := godotenv.Load(args.EnvFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load env: %w", err)
	}

	cfg, err := config.Load(args.Config)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if args.LogLevel != "" {
		cfg.Log.Level = args.LogLevel
	}
	if args.JSONLogs {
		cfg.Log.Pretty = false
	}
	if args.Addr != "" {
		cfg.Server.Addr = args.Addr
	}

	if err := logger.NewGlobal(cfg.Log.Level, cfg.Log.Pretty); err != nil {
		return fmt.Errorf("initialize logger: %w", err)
	}
	zLog.Info().Msg("starting server")

	opts := []openai.Option{openai.WithModel(cfg.LLM.Model), openai.WithToken(os.Getenv(cfg.LLM.TokenEnv))}
	if cfg.LLM.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.LLM.BaseURL))
	}
	llm, err := openai.New(opts...)
	if err != nil {
		return fmt.Errorf("openai client: %w", err)
	}

	registry := capabilities.Default(llm, cfg.Capabilities.HTTPTimeout, cfg.Capabilities.HTTPMaxBytes)
	if cfg.Capabilities.Catalog != "" {
		if err := registry.LoadCatalog(cfg.Capabilities.Catalog); err != nil {
			return fmt.Errorf("capabilities: %w", err)
		}
	}

	var tools []selection.Tool
	if cfg.Selection.Tools != "" {
		tools, err = selection.LoadTools(cfg.Selection.Tools)
		if err != nil {
			return fmt.Errorf("selection: %w", err)
		}
	}
	zLog.Info().Strs("capabilities", registry.Available()).Int("tools", len(tools)).Msg("catalogs loaded")

	system := actor.NewActorSystem()
	app := api.New(system.Root, api.Options{
		Addr: cfg.Server.Addr,
		Agents: agents.Config{
			LLM:           llm,
			Capabilities:  registry,
			Tools:         tools,
			MaxIterations: cfg.Agent.MaxIterations,
			OracleTimeout: cfg.Agent.OracleTimeout,
			MaxSteps:      cfg.Agent.MaxSteps,
		},
		Timeout: cfg.Agent.StatusTimeout,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(app.Start)
	g.Go(func() error {
		<-gctx.Done()
		zLog.Info().Msg("shutting down gracefully")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return app.Stop(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	zLog.Info().Msg("server exiting")
	return nil
}
