// Package main is the triagem CLI entry point.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/hci/triagem/internal/casestore"
	"github.com/hci/triagem/internal/config"
	"github.com/hci/triagem/internal/embedding"
	"github.com/hci/triagem/internal/generation"
	"github.com/hci/triagem/internal/keyword"
	"github.com/hci/triagem/internal/models"
	"github.com/hci/triagem/internal/parser"
	"github.com/hci/triagem/internal/prompt"
	"github.com/hci/triagem/internal/review"
	"github.com/hci/triagem/internal/server"
	"github.com/hci/triagem/internal/storage"
	"github.com/hci/triagem/internal/triage"
	"github.com/hci/triagem/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/triagem/config.yaml"

// loadConfig loads config from path. When path is the default, it first looks
// for config.yaml in the current directory (for development); if that exists
// it is used. Returns the config and the path that was actually loaded.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	// API keys for remote backends may live in a local .env file.
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	switch os.Args[1] {
	case "server":
		runServer()
	case "triage":
		runTriage()
	case "validate":
		runValidate()
	case "records":
		runRecords()
	case "stats":
		runStats()
	case "delete":
		runDelete()
	case "version", "--version", "-v":
		fmt.Printf("triagem version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode),
	)

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	// The case store must be fully populated before the first query; serving
	// against a partial store degrades grounding without any error signal.
	ctx := context.Background()
	if _, err := components.Service.Bootstrap(ctx); err != nil {
		logger.Fatal("Case store bootstrap failed", zap.Error(err))
	}
	if n, err := components.Service.RebuildRecordIndex(ctx); err != nil {
		logger.Warn("record index rebuild failed", zap.Error(err))
	} else {
		logger.Info("record index rebuilt", zap.Int("records", n))
	}

	srv := server.NewServer(components.Service, components.Review, components.Storage, &cfg.Server, logger)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(shutdownCtx)
}

func runTriage() {
	fs := flag.NewFlagSet("triage", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "http://localhost:8080", "server URL (empty = run the pipeline directly)")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: triagem triage [flags] <symptom description>")
		os.Exit(1)
	}
	symptoms := strings.TrimSpace(strings.Join(fs.Args(), " "))

	if *serverURL != "" {
		record, err := triageViaHTTP(*serverURL, symptoms)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Triage failed: %v\n", err)
			os.Exit(1)
		}
		printRecord(record)
		return
	}

	// Direct pipeline (server not running).
	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize", zap.Error(err))
	}
	defer components.Close()

	ctx := context.Background()
	if _, err := components.Service.Bootstrap(ctx); err != nil {
		logger.Fatal("Case store bootstrap failed", zap.Error(err))
	}
	record, err := components.Service.Triage(ctx, symptoms)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Triage failed: %v\n", err)
		os.Exit(1)
	}
	printRecord(record)
}

func runValidate() {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "server URL")
	reviewer := fs.String("reviewer", "", "reviewer identity (required)")
	feedback := fs.String("feedback", "", "review feedback")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 || *reviewer == "" {
		fmt.Println("Usage: triagem validate --reviewer <name> [--feedback <text>] <record-id>")
		os.Exit(1)
	}
	id := fs.Arg(0)

	body, _ := json.Marshal(models.ValidationRequest{Reviewer: *reviewer, Feedback: *feedback})
	resp, err := http.Post(*serverURL+"/api/v1/records/"+id+"/validate", "application/json", bytes.NewReader(body))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Request failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	var out models.ValidationResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		fmt.Fprintf(os.Stderr, "Parse failed: %v\n", err)
		os.Exit(1)
	}
	if !out.Success {
		fmt.Fprintf(os.Stderr, "Validation failed: %s\n", out.Message)
		os.Exit(1)
	}
	fmt.Printf("Validated: %s\n", id)
}

func runRecords() {
	fs := flag.NewFlagSet("records", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "server URL")
	filter := fs.String("filter", "all", "record filter: all, pending or validated")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	resp, err := http.Get(*serverURL + "/api/v1/records?filter=" + *filter)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Request failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		fmt.Fprintf(os.Stderr, "List failed (%d): %s\n", resp.StatusCode, string(b))
		os.Exit(1)
	}
	var out struct {
		Records []*models.TriageRecord `json:"records"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		fmt.Fprintf(os.Stderr, "Parse failed: %v\n", err)
		os.Exit(1)
	}

	if *outputFormat == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(out.Records)
		return
	}
	for _, record := range out.Records {
		status := "pending"
		if record.Validation.Validated {
			status = "validated by " + record.Validation.ValidatedBy
		}
		fmt.Printf("%s  [%s]  %s  (%s)\n",
			record.ID, record.Classification,
			record.CreatedAt.Format("2006-01-02 15:04:05"), status)
	}
}

func runStats() {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "server URL")
	_ = fs.Parse(os.Args[2:])

	resp, err := http.Get(*serverURL + "/api/v1/stats")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Request failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		fmt.Fprintf(os.Stderr, "Stats failed (%d): %s\n", resp.StatusCode, string(b))
		os.Exit(1)
	}
	var stats models.Stats
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		fmt.Fprintf(os.Stderr, "Parse failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("total:      %d\n", stats.Total)
	fmt.Printf("validated:  %d\n", stats.Validated)
	fmt.Printf("pending:    %d\n", stats.Pending)
}

func runDelete() {
	fs := flag.NewFlagSet("delete", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "server URL")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: triagem delete [flags] <record-id>")
		os.Exit(1)
	}
	id := fs.Arg(0)

	req, _ := http.NewRequest(http.MethodDelete, *serverURL+"/api/v1/records/"+id, nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Request failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		fmt.Fprintf(os.Stderr, "Delete failed (%d): %s\n", resp.StatusCode, string(b))
		os.Exit(1)
	}
	fmt.Printf("Record deleted: %s\n", id)
}

func triageViaHTTP(serverURL, symptoms string) (*models.TriageRecord, error) {
	body, err := json.Marshal(models.TriageRequest{Symptoms: symptoms})
	if err != nil {
		return nil, err
	}
	resp, err := http.Post(serverURL+"/api/v1/triage", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	var record models.TriageRecord
	if err := json.NewDecoder(resp.Body).Decode(&record); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &record, nil
}

func printRecord(record *models.TriageRecord) {
	fmt.Printf("id:              %s\n", record.ID)
	fmt.Printf("classification:  %s\n", record.Classification)
	fmt.Printf("justification:   %s\n", record.Justification)
	fmt.Printf("recommendations: %s\n", record.Recommendations)
}

// Components holds initialized services.
type Components struct {
	Storage     storage.Store
	Embedder    embedding.Embedder
	Cases       *casestore.Store
	RecordIndex keyword.RecordIndex
	Service     *triage.Service
	Review      *review.Workflow
}

func (c *Components) Close() {
	if c.Storage != nil {
		_ = c.Storage.Close()
	}
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
	if c.RecordIndex != nil {
		_ = c.RecordIndex.Close()
	}
}

func newEmbedder(cfg *config.Config) (embedding.Embedder, error) {
	switch cfg.Embedding.Provider {
	case "onnx":
		return embedding.NewONNXEmbedder(
			cfg.Embedding.ModelPath,
			cfg.Embedding.Dimensions,
			cfg.Embedding.MaxTokens,
			cfg.Embedding.CacheSize,
		)
	case "http":
		return embedding.NewHTTPEmbedder(embedding.HTTPConfig{
			BaseURL:    cfg.Embedding.BaseURL,
			APIKeyEnv:  cfg.Embedding.APIKeyEnv,
			Model:      cfg.Embedding.Model,
			Dimensions: cfg.Embedding.Dimensions,
			MaxTokens:  cfg.Embedding.MaxTokens,
			CacheSize:  cfg.Embedding.CacheSize,
		})
	case "mock":
		return embedding.NewMockEmbedder(cfg.Embedding.Dimensions), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider: %q", cfg.Embedding.Provider)
	}
}

func newGenerator(cfg *config.Config) (generation.Generator, error) {
	switch cfg.Generation.Provider {
	case "ollama":
		return generation.NewOllamaClient(generation.OllamaConfig{
			BaseURL:     cfg.Generation.BaseURL,
			Model:       cfg.Generation.Model,
			Temperature: cfg.Generation.Temperature,
			Timeout:     cfg.Generation.Timeout(),
		}), nil
	case "openai":
		return generation.NewOpenAIClient(generation.OpenAIConfig{
			APIKeyEnv:   cfg.Generation.APIKeyEnv,
			Model:       cfg.Generation.Model,
			Temperature: cfg.Generation.Temperature,
			Timeout:     cfg.Generation.Timeout(),
		})
	default:
		return nil, fmt.Errorf("unknown generation provider: %q", cfg.Generation.Provider)
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger) (*Components, error) {
	store, err := storage.NewSQLiteStore(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	embedder, err := newEmbedder(cfg)
	if err != nil {
		// Without embeddings nothing can be grounded; fall back to the
		// deterministic mock only in debug so a missing model is loud in prod.
		if !cfg.Debug {
			_ = store.Close()
			return nil, err
		}
		logger.Warn("embedder init failed, using mock embedder", zap.Error(err))
		embedder = embedding.NewMockEmbedder(cfg.Embedding.Dimensions)
	}

	cases, err := casestore.New(cfg.Embedding.Dimensions)
	if err != nil {
		_ = store.Close()
		_ = embedder.Close()
		return nil, fmt.Errorf("failed to initialize case store: %w", err)
	}

	generator, err := newGenerator(cfg)
	if err != nil {
		_ = store.Close()
		_ = embedder.Close()
		return nil, err
	}

	recordIndex, err := keyword.NewBleveIndex(cfg.Storage.RecordIndexPath)
	if err != nil {
		_ = store.Close()
		_ = embedder.Close()
		return nil, fmt.Errorf("failed to initialize record index: %w", err)
	}

	composer := prompt.NewComposer(cfg.Triage.PromptCharBudget)
	responseParser := parser.New(cfg.Triage.MinJustificationLen)

	service := triage.NewService(
		embedder, cases, composer, generator, responseParser,
		store, recordIndex, cfg.Triage.Neighbors, logger,
	)
	reviewWorkflow := review.NewWorkflow(store, embedder, cases, logger)

	return &Components{
		Storage:     store,
		Embedder:    embedder,
		Cases:       cases,
		RecordIndex: recordIndex,
		Service:     service,
		Review:      reviewWorkflow,
	}, nil
}

func printUsage() {
	fmt.Println(`triagem - Similarity-grounded clinical triage service (Manchester Protocol)

Usage:
  triagem server [flags]                    Start the HTTP server
  triagem triage [flags] <symptoms>         Classify a symptom description
  triagem validate [flags] <record-id>      Validate a triage record
  triagem records [flags]                   List triage records
  triagem stats [flags]                     Show validation statistics
  triagem delete [flags] <record-id>        Delete a triage record (admin)
  triagem version                           Show version
  triagem help                              Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/triagem/config.yaml)
  --debug            Enable debug logging

Triage Flags:
  --config string    Config file path (for direct pipeline mode)
  --server string    Server URL (default: http://localhost:8080). Use empty (--server "") to run the pipeline directly.

Validate Flags:
  --server string    Server URL
  --reviewer string  Reviewer identity (required)
  --feedback string  Review feedback text

Records Flags:
  --server string    Server URL
  --filter string    all, pending or validated (default: all)
  --output string    text or json (default: text)

Examples:
  triagem server
  triagem triage "Paciente com febre alta, tosse seca e dificuldade para respirar"
  triagem validate --reviewer medico01 --feedback "classificação correta" 3f2a...
  triagem records --filter pending
  triagem stats`)
}
