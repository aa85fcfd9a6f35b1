// Command enginectl runs one pipeline, workflow, or discount evaluation
// from a JSON/YAML document and prints the result as JSON. It has no
// server loop: every invocation is a single document in, a single result
// out, backed by either an in-memory or a Redis-backed Storage.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/go-redis/redis/v8"

	transformdomain "github.com/flowlayer/enginecore/internal/app/domain/transform"
	workflowdomain "github.com/flowlayer/enginecore/internal/app/domain/workflow"
	"github.com/flowlayer/enginecore/internal/app/services/discount"
	"github.com/flowlayer/enginecore/internal/app/services/transform"
	"github.com/flowlayer/enginecore/internal/app/services/workflow"
	appstorage "github.com/flowlayer/enginecore/internal/app/storage"
	"github.com/flowlayer/enginecore/internal/app/storage/memory"
	"github.com/flowlayer/enginecore/internal/app/storage/rediskv"
	"github.com/flowlayer/enginecore/pkg/config"
	"github.com/flowlayer/enginecore/pkg/logger"
)

func main() {
	mode := flag.String("mode", "", "what to run: pipeline | workflow | discount")
	inputPath := flag.String("input", "", "path to a JSON/YAML document describing the run")
	configPath := flag.String("config", "", "path to configuration file (JSON or YAML)")
	storageBackend := flag.String("storage-backend", "", "storage backend override: memory | redis")
	redisAddr := flag.String("redis-addr", "", "redis address override")
	flag.Parse()

	if *mode == "" || *inputPath == "" {
		fmt.Fprintln(os.Stderr, "usage: enginectl -mode=pipeline|workflow|discount -input=path/to/document.yaml")
		os.Exit(2)
	}

	cfg := config.New()
	if *configPath != "" {
		loaded, err := config.LoadFile(*configPath)
		if err != nil {
			log.Fatalf("load config: %v", err)
		}
		cfg = loaded
	}
	if *storageBackend != "" {
		cfg.Engine.StorageBackend = *storageBackend
	}
	if *redisAddr != "" {
		cfg.Engine.RedisAddr = *redisAddr
	}

	appLog := logger.New(logger.LoggingConfig{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		FilePrefix: cfg.Logging.FilePrefix,
	})

	doc, err := loadDocument(*inputPath, *mode)
	if err != nil {
		appLog.Fatalf("load document: %v", err)
	}

	store, err := buildStorage(cfg)
	if err != nil {
		appLog.Fatalf("build storage: %v", err)
	}

	ctx := context.Background()

	var result any
	switch *mode {
	case "pipeline":
		result, err = runPipeline(ctx, store, doc.Pipeline)
	case "workflow":
		result, err = runWorkflow(ctx, store, appLog, doc.Workflow)
	case "discount":
		result, err = runDiscount(doc.Discount)
	default:
		err = fmt.Errorf("unknown mode %q", *mode)
	}
	if err != nil {
		appLog.Fatalf("run %s: %v", *mode, err)
	}

	encoded, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		appLog.Fatalf("encode result: %v", err)
	}
	fmt.Println(string(encoded))
}

// buildStorage constructs the Storage backed by the configured RecordStore
// implementation, mirroring the teacher's DSN-presence-selects-backend
// convention from cmd/appserver.
func buildStorage(cfg *config.Config) (*appstorage.Storage, error) {
	switch cfg.Engine.StorageBackend {
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr: cfg.Engine.RedisAddr,
			DB:   cfg.Engine.RedisDB,
		})
		return appstorage.New(rediskv.New(client, "enginecore")), nil
	case "", "memory":
		return appstorage.New(memory.New()), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Engine.StorageBackend)
	}
}

func runPipeline(ctx context.Context, store *appstorage.Storage, input *PipelineInput) (*transformdomain.Run, error) {
	pipeline := input.Definition
	if pipeline.Status == "" {
		pipeline.Status = transformdomain.PipelineActive
	}
	if err := pipeline.Validate(); err != nil {
		return nil, fmt.Errorf("invalid pipeline: %w", err)
	}

	for collection, rows := range input.Seed {
		if err := store.ReplaceAll(ctx, collection, rows); err != nil {
			return nil, fmt.Errorf("seed %s: %w", collection, err)
		}
	}

	runs := appstorage.NewRepository[*transformdomain.Run](store, "_pipeline_runs")
	return transform.RunPipeline(ctx, store, runs, &pipeline, transform.RunOptions{ContinueOnError: input.ContinueOnError})
}

func runWorkflow(ctx context.Context, store *appstorage.Storage, appLog *logger.Logger, input *WorkflowInput) (*workflowdomain.Execution, error) {
	wf := input.Definition
	if wf.Status == "" {
		wf.Status = workflowdomain.StatusActive
	}
	if err := wf.Validate(); err != nil {
		return nil, fmt.Errorf("invalid workflow: %w", err)
	}

	engine := workflow.New(store)
	engine.Actions.Messages = consoleMessages{log: appLog}
	engine.Actions.Log = logrusLogger{log: appLog}
	engine.Actions.HTTP = newHTTPClient()
	if input.ActionRetryAttempts > 0 {
		policy := engine.Base().RetryPolicy()
		policy.Attempts = input.ActionRetryAttempts
		engine.Base().WithRetryPolicy(policy)
	}

	descriptor := engine.Base().Descriptor()
	appLog.Infof("%s ready (domain=%s, capabilities=%v)", descriptor.Name, descriptor.Domain, descriptor.Capabilities)

	return engine.StartExecution(ctx, &wf, input.InitialContext)
}

func runDiscount(input *DiscountInput) (*discount.EvaluationResult, error) {
	for _, d := range input.Discounts {
		if err := d.Validate(); err != nil {
			return nil, fmt.Errorf("invalid discount %s: %w", d.ID, err)
		}
	}
	strategy := input.Strategy
	if strategy == "" {
		strategy = discount.StrategyByPriority
	}
	result := discount.Evaluate(input.Discounts, input.Cart, strategy)
	return &result, nil
}
