package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsglue "github.com/aws/aws-sdk-go-v2/service/glue"
	awskinesis "github.com/aws/aws-sdk-go-v2/service/kinesis"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"StreamLookup/internal/config"
	"StreamLookup/internal/infrastructure/checkpoint"
	"StreamLookup/internal/infrastructure/clickhouse"
	"StreamLookup/internal/infrastructure/dynamo"
	"StreamLookup/internal/infrastructure/glue"
	"StreamLookup/internal/infrastructure/kinesis"
	"StreamLookup/internal/infrastructure/s3store"
	"StreamLookup/internal/infrastructure/scheduler"
	"StreamLookup/internal/infrastructure/storage"
	"StreamLookup/internal/logging"
	"StreamLookup/internal/ports"
	"StreamLookup/internal/reference"
	"StreamLookup/internal/usecase"
)

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg       config.Config
	logger    *slog.Logger
	processor *usecase.StreamProcessor
	scheduler *scheduler.WindowScheduler
	closers   []func() error
}

// New resolves catalog tables, builds every adapter and the stream driver.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level, cfg.Logging.Format)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	awsCfg, err := loadAWS(ctx, cfg.AWS)
	if err != nil {
		return nil, err
	}

	s3Client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.AWS.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.AWS.Endpoint)
			o.UsePathStyle = true
		}
	})
	glueClient := awsglue.NewFromConfig(awsCfg, func(o *awsglue.Options) {
		o.BaseEndpoint = endpoint(cfg.AWS)
	})
	kinesisClient := awskinesis.NewFromConfig(awsCfg, func(o *awskinesis.Options) {
		o.BaseEndpoint = endpoint(cfg.AWS)
	})

	application := &Application{cfg: cfg, logger: baseLogger}
	locator := glue.NewTableLocator(glueClient, cfg.Catalog.Database)

	streamName := cfg.Stream.Name
	if streamName == "" {
		streamName, err = locator.StreamName(ctx, cfg.Catalog.StreamTable)
		if err != nil {
			return nil, fmt.Errorf("resolve stream: %w", err)
		}
	}

	backends, err := application.referenceBackends(ctx, awsCfg, locator)
	if err != nil {
		_ = application.Close()
		return nil, err
	}
	backend, err := backends.Resolve(cfg.Reference.Backend)
	if err != nil {
		_ = application.Close()
		return nil, err
	}

	checkpoints, err := checkpointStore(s3Client, cfg.CheckpointLocation())
	if err != nil {
		_ = application.Close()
		return nil, err
	}

	outputRoot := fmt.Sprintf("s3://%s/%s", cfg.Output.Bucket, strings.TrimSuffix(cfg.Output.Prefix, "/")+"/")

	enricher := usecase.NewBatchEnricher(usecase.EnricherDeps{
		Markers:   s3store.NewMarkerStore(s3Client, cfg.Output.Bucket, cfg.Output.ChangeKey),
		Reference: backend,
		Sink: s3store.NewCSVSink(s3Client, s3store.SinkOptions{
			Bucket:      cfg.Output.Bucket,
			Prefix:      cfg.Output.Prefix,
			WriteHeader: cfg.Output.HeaderEnabled(),
		}, baseLogger.With("component", "sink.s3")),
		Catalog: glue.NewCatalog(glueClient, glue.TableOptions{
			Database:    cfg.Catalog.Database,
			Table:       cfg.Catalog.OutputTable,
			Location:    outputRoot,
			WriteHeader: cfg.Output.HeaderEnabled(),
		}, baseLogger.With("component", "catalog.glue")),
		Logger: baseLogger.With("component", "enricher"),
	})

	application.scheduler = scheduler.NewWindowScheduler(cfg.Stream.Window())
	application.processor = usecase.NewStreamProcessor(usecase.StreamDeps{
		JobName: cfg.Job.Name,
		Source: kinesis.NewSource(kinesisClient, kinesis.Options{
			Stream:             streamName,
			StartingPosition:   cfg.Stream.StartingPosition,
			MaxRecordsPerShard: cfg.Stream.MaxRecordsPerShard,
		}, baseLogger.With("component", "source.kinesis")),
		Checkpoints: checkpoints,
		Scheduler:   application.scheduler,
		Enricher:    enricher,
		Logger:      baseLogger.With("component", "stream"),
	})

	baseLogger.Info("application configured",
		"job", cfg.Job.Name,
		"stream", streamName,
		"reference_backend", backend.Name(),
		"reference_backends", backends.Names(),
		"output", outputRoot,
		"checkpoint", cfg.CheckpointLocation(),
		"window", cfg.Stream.Window(),
	)
	return application, nil
}

// Run drives the micro-batch loop until ctx is cancelled or a batch fails.
func (a *Application) Run(ctx context.Context) error {
	if a.processor == nil {
		return nil
	}

	runID := uuid.NewString()
	a.logger.Info("run started", "run_id", runID)
	err := a.processor.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		a.logger.Error("run failed", "run_id", runID, "error", err)
		return err
	}
	a.logger.Info("run stopped", "run_id", runID, "refreshes", a.processor.State().Refreshes())
	return nil
}

// Stop ends the loop after the window in flight.
func (a *Application) Stop(ctx context.Context) error {
	if a.scheduler == nil {
		return nil
	}
	return a.scheduler.Stop(ctx)
}

// Close releases reference backend connections.
func (a *Application) Close() error {
	var errs []error
	for _, closeFn := range a.closers {
		errs = append(errs, closeFn())
	}
	a.closers = nil
	return errors.Join(errs...)
}

// MarkReferenceChanged raises the change marker so the next batch reloads
// the reference table.
func MarkReferenceChanged(ctx context.Context, cfg config.Config) error {
	if cfg.Output.Bucket == "" {
		return errors.New("output bucket is required")
	}

	awsCfg, err := loadAWS(ctx, cfg.AWS)
	if err != nil {
		return err
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.AWS.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.AWS.Endpoint)
			o.UsePathStyle = true
		}
	})
	return markChanged(ctx, s3store.NewMarkerStore(client, cfg.Output.Bucket, cfg.Output.ChangeKey))
}

func markChanged(ctx context.Context, markers ports.ChangeMarkerStore) error {
	if err := markers.Put(ctx); err != nil {
		return fmt.Errorf("raise change marker: %w", err)
	}
	return nil
}

// referenceBackends registers every backend the config describes. DynamoDB is
// registered when selected or when its table is named; the SQL backends when
// their connection settings are present.
func (a *Application) referenceBackends(ctx context.Context, awsCfg aws.Config, locator *glue.TableLocator) (*reference.Registry, error) {
	cfg := a.cfg.Reference
	registry := reference.NewRegistry()

	if cfg.Backend == config.BackendDynamoDB || cfg.DynamoDB.Table != "" {
		table := cfg.DynamoDB.Table
		if table == "" {
			if locator == nil {
				return nil, errors.New("resolve reference table: no catalog")
			}
			var err error
			table, err = locator.DynamoTable(ctx, a.cfg.Catalog.ReferenceTable)
			if err != nil {
				return nil, fmt.Errorf("resolve reference table: %w", err)
			}
		}
		client := dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
			o.BaseEndpoint = endpoint(a.cfg.AWS)
		})
		registry.Register(dynamo.NewReferenceSource(client, table, cfg.DynamoDB.ConsistentRead))
	}

	if cfg.Postgres.DSN != "" {
		db, err := sql.Open("postgres", cfg.Postgres.DSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		a.closers = append(a.closers, db.Close)
		registry.Register(storage.NewPostgresReference(db, cfg.Postgres.Table))
	}

	if cfg.ClickHouse.Addr != "" {
		src, err := clickhouse.Open(clickhouse.Config{
			Addr:     cfg.ClickHouse.Addr,
			Database: cfg.ClickHouse.Database,
			Username: cfg.ClickHouse.Username,
			Password: cfg.ClickHouse.Password,
			Table:    cfg.ClickHouse.Table,
		})
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, src.Close)
		registry.Register(src)
	}

	return registry, nil
}

func checkpointStore(client s3store.API, location string) (ports.CheckpointStore, error) {
	if strings.HasPrefix(location, "s3://") {
		return s3store.NewCheckpointStore(client, location)
	}
	return checkpoint.NewFileStore(location)
}

func loadAWS(ctx context.Context, cfg config.AWSConfig) (aws.Config, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("load aws config: %w", err)
	}
	return awsCfg, nil
}

func endpoint(cfg config.AWSConfig) *string {
	if cfg.Endpoint == "" {
		return nil
	}
	return aws.String(cfg.Endpoint)
}
