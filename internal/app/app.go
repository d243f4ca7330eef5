package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/nsqio/go-nsq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"kontext/apps/processor/features/job"
	"kontext/apps/processor/features/stats"
	"kontext/apps/processor/internal/adapter/statuscache"
	"kontext/apps/processor/internal/config"
	"kontext/apps/processor/internal/crawl"
	"kontext/apps/processor/internal/dispatch"
	"kontext/apps/processor/internal/extract"
	"kontext/apps/processor/internal/materialize"
	"kontext/apps/processor/internal/middleware"
	"kontext/apps/processor/internal/parser"
	"kontext/apps/processor/internal/queue"
	"kontext/apps/processor/internal/text"
	"kontext/apps/processor/internal/worker"
)

type App struct {
	Handler   http.Handler
	Processor *worker.BatchProcessor
	Jobs      *job.Service

	cfg  *config.Config
	deps *Dependencies
}

// New wires the processing graph and the admin routes from deps.
func New(cfg *config.Config, deps *Dependencies, logger *slog.Logger) (*App, error) {
	tokens, err := text.NewTokenCounter(cfg.Tokenizer)
	if err != nil {
		return nil, err
	}
	chunkers := text.NewSentenceChunkerFactory(tokens)

	crawlCfg := crawl.DefaultConfig()
	crawlCfg.PageTimeout = cfg.CrawlTimeout()
	crawlCfg.SettleDelay = cfg.CrawlSettleDelay()
	crawlCfg.UserAgent = cfg.CrawlUserAgent
	crawlCfg.FollowExternalLinks = cfg.CrawlExternalLinks

	documents := parser.NewDocumentParser(deps.Blobs, extract.NewDefaultRegistry(cfg.PDFPageTimeout()), chunkers, cfg.ScratchDir)
	web := parser.NewWebParser(crawl.New(cfg.Crawler, crawlCfg), chunkers)
	router := dispatch.New(dispatch.DefaultRegistry(documents, web), cfg.ChunkSize, cfg.ChunkOverlap)
	materializer := materialize.New(deps.Blobs, cfg.S3Bucket)

	responses, requests, err := senders(cfg, deps)
	if err != nil {
		return nil, err
	}

	opts := []worker.Option{worker.WithConcurrency(cfg.WorkerConcurrency)}

	var jobs *job.Service
	var ledger *job.PostgresRepo
	if deps.DB != nil {
		ledger = job.NewPostgresRepo(deps.DB)
		jobs = job.NewService(ledger, requests, logger)
		opts = append(opts, worker.WithFailureRecorder(jobs))
	}
	if deps.Redis != nil {
		opts = append(opts, worker.WithStatusTracker(statuscache.NewTracker(deps.Redis, cfg.StatusTTL())))
	}

	processor := worker.NewBatchProcessor(router, materializer, responses, opts...)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	mux.Handle("GET /metrics", promhttp.Handler())
	if jobs != nil {
		job.NewHandler(jobs).Register(mux)
		stats.NewHandler(ledger).Register(mux)
	}

	return &App{
		Handler:   middleware.CorrelationID(mux),
		Processor: processor,
		Jobs:      jobs,
		cfg:       cfg,
		deps:      deps,
	}, nil
}

// senders returns the response channel and the inbound channel used for
// operator requeues.
func senders(cfg *config.Config, deps *Dependencies) (worker.ResponseSender, job.Requeuer, error) {
	switch cfg.Transport {
	case config.TransportSQS:
		if deps.Queue == nil {
			return nil, nil, errors.New("sqs transport selected without a queue client")
		}
		return deps.Queue.Sender(cfg.ProcessingQueueURL), deps.Queue.Sender(cfg.ProcessQueueURL), nil
	case config.TransportNSQ:
		if deps.NSQProducer == nil {
			return nil, nil, errors.New("nsq transport selected without a producer")
		}
		return queue.NewTopicSender(deps.NSQProducer, config.TopicProcessResponse),
			queue.NewTopicSender(deps.NSQProducer, config.TopicProcessRequest), nil
	case config.TransportAMQP:
		if deps.Broker == nil {
			return nil, nil, errors.New("amqp transport selected without a broker")
		}
		return queue.NewTopicSender(deps.Broker, cfg.AMQPResponseQueue),
			queue.NewTopicSender(deps.Broker, cfg.AMQPRequestQueue), nil
	default:
		return nil, nil, fmt.Errorf("unknown transport %q", cfg.Transport)
	}
}

// Run serves the admin routes and consumes the configured transport until
// ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", a.cfg.ServerPort),
		Handler: a.Handler,
	}
	g.Go(func() error {
		slog.Info("server starting", "port", a.cfg.ServerPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		slog.Info("shutting down server...")
		if err := srv.Shutdown(context.Background()); err != nil {
			slog.Error("server shutdown failed", "error", err)
		}
		return nil
	})
	g.Go(func() error {
		return a.consume(ctx)
	})

	return g.Wait()
}

func (a *App) consume(ctx context.Context) error {
	switch a.cfg.Transport {
	case config.TransportSQS:
		poller := worker.NewPoller(a.deps.Queue, a.Processor, worker.PollerConfig{
			QueueURL:    a.cfg.ProcessQueueURL,
			MaxMessages: a.cfg.MaxMessages,
			WaitSeconds: a.cfg.WaitTimeSeconds,
		})
		return poller.Run(ctx)
	case config.TransportNSQ:
		return a.consumeNSQ(ctx)
	case config.TransportAMQP:
		return a.deps.Broker.Consume(ctx, a.cfg.AMQPRequestQueue, a.cfg.AMQPPrefetch, a.Processor.HandleDelivery)
	default:
		return fmt.Errorf("unknown transport %q", a.cfg.Transport)
	}
}

func (a *App) consumeNSQ(ctx context.Context) error {
	nsqCfg := nsq.NewConfig()
	nsqCfg.MaxInFlight = max(a.cfg.WorkerConcurrency, 1)
	if a.cfg.NSQMaxAttempts > 0 {
		nsqCfg.MaxAttempts = a.cfg.NSQMaxAttempts
	}

	consumer, err := nsq.NewConsumer(config.TopicProcessRequest, a.cfg.NSQChannel, nsqCfg)
	if err != nil {
		return fmt.Errorf("nsq consumer error: %w", err)
	}
	consumer.AddConcurrentHandlers(worker.NewNSQHandler(ctx, a.Processor), max(a.cfg.WorkerConcurrency, 1))

	if a.cfg.NSQLookupd != "" {
		err = consumer.ConnectToNSQLookupd(a.cfg.NSQLookupd)
	} else {
		err = consumer.ConnectToNSQD(a.cfg.NSQDHost)
	}
	if err != nil {
		return fmt.Errorf("nsq connect error: %w", err)
	}
	slog.Info("NSQ request consumer connected", "topic", config.TopicProcessRequest, "channel", a.cfg.NSQChannel)

	<-ctx.Done()
	consumer.Stop()
	<-consumer.StopChan
	return nil
}
