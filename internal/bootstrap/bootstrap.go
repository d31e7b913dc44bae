package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/durquijop/Cerebro-Visas-sub001/internal/config"
	"github.com/durquijop/Cerebro-Visas-sub001/internal/core/ports"
	"github.com/durquijop/Cerebro-Visas-sub001/internal/core/usecase"
	"github.com/durquijop/Cerebro-Visas-sub001/internal/infrastructure/chunking"
	"github.com/durquijop/Cerebro-Visas-sub001/internal/infrastructure/extractor"
	"github.com/durquijop/Cerebro-Visas-sub001/internal/infrastructure/llm/openai"
	"github.com/durquijop/Cerebro-Visas-sub001/internal/infrastructure/normalize"
	"github.com/durquijop/Cerebro-Visas-sub001/internal/infrastructure/ocr"
	"github.com/durquijop/Cerebro-Visas-sub001/internal/infrastructure/queue/nats"
	"github.com/durquijop/Cerebro-Visas-sub001/internal/infrastructure/repository/postgres"
	"github.com/durquijop/Cerebro-Visas-sub001/internal/infrastructure/resilience"
	"github.com/durquijop/Cerebro-Visas-sub001/internal/infrastructure/storage/localfs"
	"github.com/durquijop/Cerebro-Visas-sub001/internal/infrastructure/storage/minio"
	"github.com/durquijop/Cerebro-Visas-sub001/internal/infrastructure/storage/s3"
	"github.com/durquijop/Cerebro-Visas-sub001/internal/infrastructure/vector/memory"
	"github.com/durquijop/Cerebro-Visas-sub001/internal/infrastructure/vector/qdrant"
)

// Observer is the pipeline metrics surface shared by the api and worker processes.
type Observer interface {
	ObserveOCRBatch(outcome string)
	ObserveChunkEmbedding(err error)
	ObserveIngestFile(stage string, success bool)
	ObserveBreakerState(operation, from, to string)
}

type Options struct {
	Observer Observer
	// WithoutQueue skips the NATS connection; uploads then embed inline only.
	WithoutQueue bool
	// ObserveQueueLag is forwarded to the subscriber.
	ObserveQueueLag func(time.Duration)
}

type App struct {
	Config config.Config

	Queue     ports.MessageQueue
	Repo      ports.DocumentRepository
	IngestUC  ports.DocumentIngestor
	DocsUC    ports.DocumentService
	ProcessUC ports.DocumentProcessor
	SearchUC  ports.SearchService

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, opts Options) (*App, error) {
	db, err := postgres.OpenDB(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	closers := []func(){func() { _ = db.Close() }}
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	dims := cfg.EmbedDimensions
	if cfg.VectorBackend != "pgvector" {
		// The embedding table still exists but stays unused.
		dims = 0
	}
	if err := postgres.EnsureSchema(ctx, db, dims); err != nil {
		closeAll()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	repo := postgres.NewDocumentRepository(db, cfg.MaxStoredText)

	blobs, err := newBlobStore(ctx, cfg)
	if err != nil {
		closeAll()
		return nil, fmt.Errorf("init object storage: %w", err)
	}
	store := newChunkStore(cfg, db)

	resilienceCfg := resilience.DefaultConfig()
	if opts.Observer != nil {
		resilienceCfg.OnStateChange = opts.Observer.ObserveBreakerState
	}
	executor := resilience.NewExecutor(resilienceCfg)

	llm := openai.New(openai.Config{
		BaseURL:  cfg.LLMBaseURL,
		APIKey:   cfg.LLMAPIKey,
		Timeout:  time.Duration(cfg.LLMTimeoutSeconds) * time.Second,
		Executor: executor,
	})
	// Vision calls run under the OCR engine's own per-call deadlines.
	visionLLM := openai.New(openai.Config{
		BaseURL:  cfg.LLMBaseURL,
		APIKey:   cfg.LLMAPIKey,
		Timeout:  -1,
		Executor: executor,
	})
	embedder := openai.NewEmbedder(llm, cfg.EmbedModel, cfg.EmbedMaxInputChars)
	generator := openai.NewAnswerGenerator(llm, cfg.ChatModel)

	extractorOpts := extractor.Options{PDFReader: extractor.TextLayerReader{}}
	if cfg.OCREnabled {
		var batchObserver ocr.BatchObserver
		if opts.Observer != nil {
			batchObserver = opts.Observer
		}
		extractorOpts.OCR = ocr.NewEngine(
			openai.NewVisionTranscriber(visionLLM, cfg.VisionModel),
			ocr.WithPageCountFallback(ocr.NewPDFCPUSplitter(), extractor.TextLayerReader{}),
			ocr.Options{
				WholeDocMaxBytes: cfg.OCRWholeDocMaxBytes,
				WholeDocTimeout:  time.Duration(cfg.OCRWholeDocTimeoutSeconds) * time.Second,
				BatchPages:       cfg.OCRBatchPages,
				BatchTimeout:     time.Duration(cfg.OCRBatchTimeoutSeconds) * time.Second,
			},
			batchObserver,
		)
	}
	textExtractor := extractor.New(extractorOpts)
	normalizer := normalize.New()
	chunker := chunking.NewSplitter(cfg.ChunkSize, chunkOverlapWords(cfg))

	indexOpts := usecase.EmbeddingIndexOptions{
		MinChars:      cfg.EmbedMinChars,
		RatePerSecond: cfg.EmbedRatePerSec,
	}
	ingestOpts := usecase.IngestOptions{
		MaxFileBytes:  cfg.MaxUploadBytes,
		MaxStoredText: cfg.MaxStoredText,
	}
	searchOpts := usecase.SearchOptions{
		DefaultThreshold: cfg.SearchDefaultThreshold,
		DefaultLimit:     cfg.SearchDefaultLimit,
	}
	if opts.Observer != nil {
		indexOpts.Observer = opts.Observer
		ingestOpts.Observer = opts.Observer
		if searchObserver, ok := opts.Observer.(usecase.SearchObserver); ok {
			searchOpts.Observer = searchObserver
		}
	}

	var queue ports.MessageQueue
	if !opts.WithoutQueue {
		natsQueue, err := nats.New(cfg.NATSURL, cfg.NATSSubject, nats.Options{
			ResilienceExecutor: executor,
			ObserveLag:         opts.ObserveQueueLag,
		})
		if err != nil {
			closeAll()
			return nil, fmt.Errorf("init message queue: %w", err)
		}
		closers = append(closers, natsQueue.Close)
		queue = natsQueue
	}

	indexUC := usecase.NewEmbeddingIndexUseCase(chunker, embedder, store, indexOpts)
	ingestUC := usecase.NewIngestDocumentUseCase(repo, blobs, textExtractor, normalizer, indexUC, queue, ingestOpts)
	docsUC := usecase.NewDocumentUseCase(repo, blobs, store, indexUC)
	processUC := usecase.NewProcessDocumentUseCase(repo, blobs, textExtractor, normalizer, indexUC).
		WithMaxStoredText(cfg.MaxStoredText)
	searchUC := usecase.NewSearchUseCase(embedder, store, generator, searchOpts)

	slog.Info("bootstrap_ready",
		"vector_backend", cfg.VectorBackend,
		"storage_backend", cfg.StorageBackend,
		"ocr_enabled", cfg.OCREnabled,
		"queue", queue != nil,
	)

	return &App{
		Config: cfg,
		Queue:  queue,
		Repo:   repo,

		IngestUC:  ingestUC,
		DocsUC:    docsUC,
		ProcessUC: processUC,
		SearchUC:  searchUC,

		closeFn: closeAll,
	}, nil
}

func chunkOverlapWords(cfg config.Config) int {
	if cfg.ChunkOverlapChars > 0 {
		return chunking.OverlapWordsFromChars(cfg.ChunkOverlapChars)
	}
	return cfg.ChunkOverlapWords
}

func newBlobStore(ctx context.Context, cfg config.Config) (ports.BlobStore, error) {
	switch cfg.StorageBackend {
	case "s3":
		return s3.New(ctx, s3.Config{
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			Bucket:    cfg.S3Bucket,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			PathStyle: cfg.S3PathStyle,
		})
	case "minio":
		return minio.New(ctx, minio.Config{
			Endpoint:  cfg.MinioEndpoint,
			Bucket:    cfg.MinioBucket,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			UseSSL:    cfg.MinioUseSSL,
		})
	default:
		return localfs.New(cfg.StoragePath)
	}
}

func newChunkStore(cfg config.Config, db *sql.DB) ports.ChunkStore {
	switch cfg.VectorBackend {
	case "qdrant":
		return qdrant.New(cfg.QdrantURL, cfg.QdrantCollection)
	case "memory":
		return memory.New()
	default:
		return postgres.NewChunkStore(db)
	}
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
