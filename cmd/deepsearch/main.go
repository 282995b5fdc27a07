package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/openresearch/deepsearch/pkg/config"
	"github.com/openresearch/deepsearch/pkg/llm"
	"github.com/openresearch/deepsearch/pkg/observability"
	"github.com/openresearch/deepsearch/pkg/search"
	"github.com/openresearch/deepsearch/pkg/state"
	"github.com/openresearch/deepsearch/pkg/workflow"
)

var (
	// Version information (set by build flags)
	Version   = "dev"
	BuildTime = "unknown"

	telemetry *observability.Telemetry
)

func main() {
	var (
		configPath = flag.String("config", "configs/default.yaml", "Path to configuration file")
		query      = flag.String("query", "", "Research query")
		resume     = flag.String("resume", "", "Run ID to resume from its last checkpoint")
		outputDir  = flag.String("output", "./reports", "Directory for the generated report")
		version    = flag.Bool("version", false, "Show version information")
	)
	flag.Parse()

	if *version {
		fmt.Printf("deepsearch\n")
		fmt.Printf("Version: %s\n", Version)
		fmt.Printf("Build Time: %s\n", BuildTime)
		os.Exit(0)
	}

	// API keys commonly live in a .env file during development. Absence
	// is fine; the environment may already be populated.
	_ = godotenv.Load()

	cfg := config.LoadOrDefault(*configPath)
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Configuration invalid: %v", err)
	}

	ctx := context.Background()
	if err := initObservability(cfg); err != nil {
		log.Fatalf("Failed to initialize observability: %v", err)
	}
	defer shutdownObservability(ctx)

	log.Printf("Starting deepsearch v%s (built: %s)", Version, BuildTime)

	if err := run(ctx, cfg, *query, *resume, *outputDir); err != nil {
		log.Fatalf("Research failed: %v", err)
	}
}

func initObservability(cfg *config.Config) error {
	// Loggers read LOG_LEVEL at construction; the config level is the
	// default when the environment does not set one.
	if os.Getenv("LOG_LEVEL") == "" {
		os.Setenv("LOG_LEVEL", cfg.Observability.Logging.Level)
	}

	telConfig := &observability.TelemetryConfig{
		ServiceName:    "deepsearch",
		ServiceVersion: Version,
		Environment:    getEnvironment(),
		OTLPEndpoint:   cfg.Observability.Tracing.Endpoint,
		PrometheusPort: cfg.Observability.Metrics.Port,
		SamplingRate:   cfg.Observability.Tracing.SamplingRate,
		EnableTracing:  cfg.Observability.Tracing.Enabled,
		EnableMetrics:  cfg.Observability.Metrics.Enabled,
		EnableLogging:  true,
	}

	var err error
	telemetry, err = observability.NewTelemetry(telConfig)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	return nil
}

func shutdownObservability(ctx context.Context) {
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if telemetry != nil {
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			log.Printf("Error shutting down telemetry: %v", err)
		}
	}
}

func run(ctx context.Context, cfg *config.Config, query, resume, outputDir string) error {
	if query == "" && resume == "" {
		fmt.Print("Enter your research query: ")
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil {
			return fmt.Errorf("failed to read query from stdin: %w", err)
		}
		query = strings.TrimSpace(line)
		if query == "" {
			return fmt.Errorf("no research query provided")
		}
	}

	engine, err := buildEngine(cfg)
	if err != nil {
		return err
	}

	// Graceful shutdown: the run checkpoints after every transition, so
	// an interrupted run resumes with -resume <run id>.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Println("Received shutdown signal")
		cancel()
	}()

	startTime := time.Now()

	var result *workflow.Result
	if resume != "" {
		log.Printf("Resuming run %s", resume)
		result, err = engine.Resume(ctx, resume)
	} else {
		log.Printf("Starting research for: %s", query)
		result, err = engine.Run(ctx, query)
	}
	if err != nil {
		return err
	}

	reportPath, err := writeReport(outputDir, result)
	if err != nil {
		return err
	}

	fmt.Println(result.Report)
	log.Printf("Run %s finished in %s", result.RunID, time.Since(startTime).Round(time.Second))
	log.Printf("Report written to %s", reportPath)

	return nil
}

func buildEngine(cfg *config.Config) (*workflow.Engine, error) {
	logger := observability.NewStructuredLogger("deepsearch")

	client, err := llm.NewRegistry().Resolve(cfg.LLM)
	if err != nil {
		return nil, err
	}

	// A local model server that is down should fail before any planning
	// happens, not mid-run.
	if ollama, ok := client.(*llm.OllamaClient); ok {
		healthCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := ollama.CheckHealth(healthCtx); err != nil {
			return nil, fmt.Errorf("ollama is not reachable: %w", err)
		}
	}

	generation := client
	if cfg.Observability.Tracing.Enabled || cfg.Observability.Metrics.Enabled {
		instrumented, err := llm.NewInstrumentedClient(client, telemetry, cfg.LLM.Model)
		if err != nil {
			return nil, err
		}
		generation = instrumented
	}

	llmGateway := llm.NewGateway(generation, logger, llm.GatewayOptions{
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
	})

	var tel *observability.Telemetry
	if cfg.Observability.Tracing.Enabled || cfg.Observability.Metrics.Enabled {
		tel = telemetry
	}

	var metrics *observability.Metrics
	if cfg.Observability.Metrics.Enabled {
		m, err := observability.NewMetrics(telemetry.Meter())
		if err != nil {
			return nil, err
		}
		metrics = m
	}

	tavily := search.NewTavilyClient(cfg.Search.APIKey, nil)
	searchGateway := search.NewGateway(tavily, logger, search.GatewayOptions{
		MaxResults:       cfg.Search.MaxResults,
		MaxContentLength: cfg.Search.MaxContentLength,
		Timeout:          cfg.Search.TimeoutDuration(),
		Retries:          cfg.Search.Retries,
		Telemetry:        tel,
		Metrics:          metrics,
	})

	var store state.Store
	if cfg.Storage.Type == "file" {
		fileStore, err := state.NewFileStore(cfg.Storage.Dir)
		if err != nil {
			return nil, err
		}
		store = fileStore
	} else {
		store = state.NewMemoryStore()
	}

	return workflow.NewEngine(llmGateway, searchGateway, store, workflow.EngineOptions{
		MaxParagraphs:   cfg.Research.MaxParagraphs,
		MaxReflections:  cfg.Research.ReflectionBudget(),
		MaxConcurrency:  cfg.Research.MaxConcurrency,
		SaveCheckpoints: cfg.Storage.SaveCheckpoints,
		Telemetry:       tel,
		Logger:          logger,
	})
}

// writeReport writes the report Markdown under outputDir, named after
// the research query, with the final run state JSON beside it.
func writeReport(outputDir string, result *workflow.Result) (string, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	base := sanitizeFilename(result.Snapshot.Query)
	if base == "" {
		base = result.RunID
	}

	reportPath := filepath.Join(outputDir, base+".md")
	if err := os.WriteFile(reportPath, []byte(result.Report), 0o644); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}

	stateData, err := json.MarshalIndent(result.Snapshot, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal run state: %w", err)
	}
	statePath := filepath.Join(outputDir, base+".state.json")
	if err := os.WriteFile(statePath, stateData, 0o644); err != nil {
		return "", fmt.Errorf("failed to write run state: %w", err)
	}

	return reportPath, nil
}

// sanitizeFilename reduces a query to a safe filename stem.
func sanitizeFilename(query string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(query)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '_':
			b.WriteRune('_')
		}
	}
	name := strings.Trim(b.String(), "_")
	if len(name) > 80 {
		name = name[:80]
	}
	return name
}

func getEnvironment() string {
	if env := os.Getenv("ENVIRONMENT"); env != "" {
		return env
	}
	return "development"
}
