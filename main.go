package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"go.uber.org/zap"

	"github.com/molly-mint-choco/email-dedup/bus"
	"github.com/molly-mint-choco/email-dedup/config"
	"github.com/molly-mint-choco/email-dedup/database"
	"github.com/molly-mint-choco/email-dedup/dedup"
	"github.com/molly-mint-choco/email-dedup/query"
	"github.com/molly-mint-choco/email-dedup/web"
)

func main() {
	mode := flag.String("mode", "all", "Run mode: producer, consumer, api, or all")
	flag.Parse()

	logger, err := config.InitLogger()
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer config.Cleanup()
	cfg := config.Load(logger)

	runProducer := *mode == "producer" || *mode == "all"
	runConsumer := *mode == "consumer" || *mode == "all"
	runAPI := *mode == "api" || *mode == "all"
	if !runProducer && !runConsumer && !runAPI {
		logger.Fatal("Unknown run mode", zap.String("mode", *mode))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	store, err := database.NewPostgresStore(cfg.DBConnString)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer store.Close()

	if err := store.EnsureSchema(ctx); err != nil {
		logger.Fatal("Failed to ensure database schema", zap.Error(err))
	}
	if err := store.VerifyInvariants(ctx); err != nil {
		logger.Fatal("Persisted state violates hierarchy invariants", zap.Error(err))
	}

	auditor := database.NewAuditRecorder(store, logger)

	fingerprinter := dedup.NewFingerprinter(cfg.EmailMaxWorkers)
	defer fingerprinter.Close()
	engine := dedup.NewEngine(store, fingerprinter, dedup.DistanceOracle{Threshold: cfg.EmailThreshold}, logger)

	var wg sync.WaitGroup

	if runProducer {
		producer := bus.NewProducer(cfg.KafkaBootstrap, cfg.KafkaTopic, cfg.KafkaClientID, cfg.EmailReadDir, auditor, logger)
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer producer.Close()
			if _, err := producer.PublishAll(ctx); err != nil {
				logger.Error("Email ingestion publisher failed", zap.Error(err))
			}
		}()
	}

	if runConsumer {
		workerCfg := bus.WorkerConfig{
			Bootstrap:      cfg.KafkaBootstrap,
			Topic:          cfg.KafkaTopic,
			DeadLetter:     cfg.KafkaDeadLetter,
			GroupID:        cfg.KafkaGroupID,
			ClientID:       cfg.KafkaClientID,
			ReadDir:        cfg.EmailReadDir,
			PollInterval:   cfg.KafkaPollInterval,
			MinCommitCount: cfg.KafkaMinCommitCount,
			MaxRetryCount:  cfg.KafkaMaxRetryCount,
		}
		// Consumers in the same group split partitions among themselves.
		workers := cfg.KafkaMaxWorkers
		if workers < 1 {
			workers = 1
		}
		for i := 0; i < workers; i++ {
			worker := bus.NewWorker(workerCfg, engine, auditor, logger)
			wg.Add(1)
			go func() {
				defer wg.Done()
				defer worker.Close()
				if err := worker.Run(ctx); err != nil {
					logger.Error("Consumer loop failed", zap.Error(err))
					cancel()
				}
			}()
		}
	}

	if runAPI {
		queryHandler, err := query.NewHandler(store, cfg.QueryCacheSize, logger)
		if err != nil {
			logger.Fatal("Failed to initialize query handler", zap.Error(err))
		}
		server := web.NewServer(queryHandler, logger)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := server.Start(ctx, ":"+cfg.Port); err != nil {
				logger.Error("Web server error", zap.Error(err))
			}
		}()
	}

	wg.Wait()
}
