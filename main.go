package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"iot_query_agent/internal/config"
	"iot_query_agent/internal/core"
	"iot_query_agent/internal/llm"
	"iot_query_agent/internal/logger"
	"iot_query_agent/internal/nodes"
	"iot_query_agent/internal/storage"
	"iot_query_agent/internal/tools"
	"iot_query_agent/internal/verification"
)

// backends bundles the storage implementations selected at startup.
type backends struct {
	sessions  storage.SessionStore
	telemetry tools.TelemetryStore
	entities  verification.EntityStore
}

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	query := flag.String("query", "", "run a single query and exit instead of starting the chat loop")
	flag.Parse()

	// Optional; real deployments inject env vars directly.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "config error: %v\n", err)
			os.Exit(1)
		}
		cfg = config.Default()
	}
	if cfg.LLM.APIKey == "" {
		cfg.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
	}

	if err := logger.Init(cfg.Logging); err != nil {
		fmt.Fprintf(os.Stderr, "logger error: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()

	stores, err := buildBackends(ctx, cfg)
	if err != nil {
		logger.Error().Err(err).Msg("❌ storage initialization failed")
		os.Exit(1)
	}

	generator, err := buildGenerator(ctx, cfg)
	if err != nil {
		logger.Error().Err(err).Msg("❌ generator initialization failed")
		os.Exit(1)
	}

	registry := tools.NewRegistry()
	if err := tools.RegisterBuiltin(registry, stores.telemetry); err != nil {
		logger.Error().Err(err).Msg("❌ tool registration failed")
		os.Exit(1)
	}

	cache := verification.NewEntityCache(stores.entities,
		time.Duration(cfg.Verification.TTLSeconds)*time.Second)
	verifier := verification.NewVerifier(cache)

	pipeline := nodes.Pipeline(registry, generator, verifier, stores.sessions,
		time.Duration(cfg.Agent.ToolTimeoutSeconds)*time.Second)
	orch, err := core.NewOrchestrator(pipeline,
		nodes.NewErrorHandlerNode(*cfg.Agent.MaxRetries),
		stores.sessions,
		core.Options{
			MaxRetries:     *cfg.Agent.MaxRetries,
			ProcessTimeout: time.Duration(cfg.Agent.ProcessTimeoutSeconds) * time.Second,
			Provider:       generator.Provider(),
		})
	if err != nil {
		logger.Error().Err(err).Msg("❌ orchestrator initialization failed")
		os.Exit(1)
	}

	logger.Info().
		Str("provider", generator.Provider()).
		Msg("✅ agent initialized")

	if *query != "" {
		runOnce(ctx, orch, *query)
		return
	}
	chatLoop(ctx, orch)
}

// buildBackends selects Redis when configured, otherwise a seeded in-memory
// store so the agent is usable out of the box.
func buildBackends(ctx context.Context, cfg *config.Config) (*backends, error) {
	if cfg.Redis.URL != "" {
		client, err := storage.NewRedisClient(ctx, cfg.Redis.URL)
		if err != nil {
			return nil, err
		}
		telemetry := storage.NewRedisTelemetryStore(client)
		return &backends{
			sessions: storage.NewRedisSessionStore(client, cfg.Agent.SessionCap,
				time.Duration(cfg.Redis.SessionTTLSeconds)*time.Second),
			telemetry: telemetry,
			entities:  telemetry,
		}, nil
	}

	memory := storage.NewMemoryTelemetryStore()
	if err := memory.SeedDemo(ctx); err != nil {
		return nil, err
	}
	logger.Warn().Msg("⚠️ no redis configured, using in-memory demo data")
	return &backends{
		sessions:  storage.NewMemorySessionStore(cfg.Agent.SessionCap),
		telemetry: memory,
		entities:  memory,
	}, nil
}

func buildGenerator(ctx context.Context, cfg *config.Config) (llm.Generator, error) {
	switch strings.ToLower(cfg.LLM.Provider) {
	case "openai":
		return llm.NewOpenAIGenerator(ctx, llm.OpenAIConfig{
			APIKey:      cfg.LLM.APIKey,
			BaseURL:     cfg.LLM.BaseURL,
			Model:       cfg.LLM.Model,
			MaxTokens:   cfg.LLM.MaxTokens,
			Temperature: *cfg.LLM.Temperature,
		})
	case "ollama":
		return llm.NewOllamaGenerator(ctx, llm.OllamaConfig{
			BaseURL: cfg.LLM.BaseURL,
			Model:   cfg.LLM.Model,
		})
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.LLM.Provider)
	}
}

func runOnce(ctx context.Context, orch *core.Orchestrator, query string) {
	result, err := orch.Process(ctx, query, "")
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(result.Response)
}

func chatLoop(ctx context.Context, orch *core.Orchestrator) {
	sessionID := "cli"
	fmt.Println("IoT query agent. Ask about your sensors; type 'help' for commands.")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("\n> ")
		if !scanner.Scan() {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		switch strings.ToLower(line) {
		case "exit", "quit":
			return
		case "help":
			fmt.Println("commands: status, history, reset, exit")
			continue
		case "status":
			status := orch.Status(ctx)
			fmt.Printf("provider=%s active_sessions=%d\n", status.Provider, status.ActiveSessions)
			continue
		case "history":
			records, err := orch.SessionHistory(ctx, sessionID)
			if err != nil {
				fmt.Printf("history unavailable: %v\n", err)
				continue
			}
			for i, record := range records {
				fmt.Printf("%2d. [%s] %s\n", i+1, record.Status, record.Query)
			}
			continue
		case "reset":
			existed, err := orch.ResetSession(ctx, sessionID)
			if err != nil {
				fmt.Printf("reset failed: %v\n", err)
			} else if existed {
				fmt.Println("session cleared")
			} else {
				fmt.Println("no session to clear")
			}
			continue
		}

		result, err := orch.Process(ctx, line, sessionID)
		if err != nil {
			fmt.Printf("error: %v\n", err)
			continue
		}
		fmt.Println(result.Response)
	}
}
