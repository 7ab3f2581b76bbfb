package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	configPathEnv       = "STREAM_LOOKUP_CONFIG"
	jobNameEnv          = "JOB_NAME"
	targetBucketEnv     = "TGT_S3_BKT"
	tempDirEnv          = "TEMP_DIR"
	logLevelEnv         = "LOG_LEVEL"
	awsRegionEnv        = "AWS_REGION"
	awsEndpointEnv      = "AWS_ENDPOINT_URL"
	referenceBackendEnv = "REFERENCE_BACKEND"
	postgresDSNEnv      = "POSTGRES_DSN"
	clickhouseAddrEnv   = "CLICKHOUSE_ADDR"
	clickhouseUserEnv   = "CLICKHOUSE_USER"
	clickhousePassEnv   = "CLICKHOUSE_PASSWORD"

	defaultWindow = 10 * time.Second
)

// Reference backend names understood by the application wiring.
const (
	BackendDynamoDB   = "dynamodb"
	BackendPostgres   = "postgres"
	BackendClickHouse = "clickhouse"
)

// Config holds high-level settings required across the application.
type Config struct {
	Job       JobConfig       `yaml:"job"`
	Logging   LoggingConfig   `yaml:"logging"`
	AWS       AWSConfig       `yaml:"aws"`
	Catalog   CatalogConfig   `yaml:"catalog"`
	Stream    StreamConfig    `yaml:"stream"`
	Reference ReferenceConfig `yaml:"reference"`
	Output    OutputConfig    `yaml:"output"`
}

// JobConfig names the running job; TempDir hosts its checkpoint.
type JobConfig struct {
	Name    string `yaml:"name"`
	TempDir string `yaml:"tempDir"`
}

// LoggingConfig selects slog level and handler.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// AWSConfig overrides SDK defaults; Endpoint is meant for local stacks.
type AWSConfig struct {
	Region   string `yaml:"region"`
	Endpoint string `yaml:"endpoint"`
}

// CatalogConfig lists the Glue tables the job reads from and writes to.
type CatalogConfig struct {
	Database       string `yaml:"database"`
	StreamTable    string `yaml:"streamTable"`
	ReferenceTable string `yaml:"referenceTable"`
	OutputTable    string `yaml:"outputTable"`
}

// StreamConfig describes the input stream and the micro-batch window.
type StreamConfig struct {
	Name               string `yaml:"name"`
	StartingPosition   string `yaml:"startingPosition"`
	WindowSize         string `yaml:"windowSize"`
	MaxRecordsPerShard int32  `yaml:"maxRecordsPerShard"`
	window             time.Duration
}

// Window returns the parsed window size.
func (s StreamConfig) Window() time.Duration {
	if s.window > 0 {
		return s.window
	}
	return defaultWindow
}

// ReferenceConfig picks the reference backend and its connection details.
type ReferenceConfig struct {
	Backend    string           `yaml:"backend"`
	DynamoDB   DynamoDBConfig   `yaml:"dynamodb"`
	Postgres   PostgresConfig   `yaml:"postgres"`
	ClickHouse ClickHouseConfig `yaml:"clickhouse"`
}

// DynamoDBConfig names the table; empty means resolve it through the catalog.
type DynamoDBConfig struct {
	Table          string `yaml:"table"`
	ConsistentRead bool   `yaml:"consistentRead"`
}

// PostgresConfig describes a Postgres copy of the reference table.
type PostgresConfig struct {
	DSN   string `yaml:"dsn"`
	Table string `yaml:"table"`
}

// ClickHouseConfig describes a ClickHouse copy of the reference table.
type ClickHouseConfig struct {
	Addr     string `yaml:"addr"`
	Database string `yaml:"database"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Table    string `yaml:"table"`
}

// OutputConfig describes the target bucket layout.
type OutputConfig struct {
	Bucket      string `yaml:"bucket"`
	Prefix      string `yaml:"prefix"`
	ChangeKey   string `yaml:"changeKey"`
	WriteHeader *bool  `yaml:"writeHeader"`
}

// HeaderEnabled reports whether CSV objects start with a header row.
func (o OutputConfig) HeaderEnabled() bool {
	return o.WriteHeader == nil || *o.WriteHeader
}

// Load reads YAML configuration (if present) and applies environment overrides.
func Load() Config {
	return LoadFrom(os.Getenv(configPathEnv))
}

// LoadFrom is Load with an explicit YAML path; an empty path means defaults.
func LoadFrom(path string) Config {
	cfg := defaultConfig()

	if path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			var fileCfg Config
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = mergeConfig(cfg, fileCfg)
			}
		}
	}

	cfg.applyEnvOverrides()
	cfg.BindWindow()

	return cfg
}

// BindWindow parses Stream.WindowSize, reverting to the default on bad input.
func (c *Config) BindWindow() {
	window, err := ParseWindow(c.Stream.WindowSize)
	if err != nil {
		log.Printf("config: %v, reverting to %s", err, defaultWindow)
		window = defaultWindow
	}
	c.Stream.window = window
}

// CheckpointLocation is <tempDir>/<job name>/checkpoint/.
func (c Config) CheckpointLocation() string {
	return strings.TrimSuffix(c.Job.TempDir, "/") + "/" + c.Job.Name + "/checkpoint/"
}

// Validate checks the parameters the job cannot start without.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Job.Name) == "" {
		errs = append(errs, errors.New("job name is required"))
	}
	if strings.TrimSpace(c.Output.Bucket) == "" {
		errs = append(errs, errors.New("output bucket is required"))
	}
	switch c.Reference.Backend {
	case BackendDynamoDB:
	case BackendPostgres:
		if c.Reference.Postgres.DSN == "" {
			errs = append(errs, errors.New("postgres reference backend needs a dsn"))
		}
	case BackendClickHouse:
		if c.Reference.ClickHouse.Addr == "" {
			errs = append(errs, errors.New("clickhouse reference backend needs an addr"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown reference backend %q", c.Reference.Backend))
	}
	return errors.Join(errs...)
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(jobNameEnv); v != "" {
		c.Job.Name = v
	}
	if v := os.Getenv(targetBucketEnv); v != "" {
		c.Output.Bucket = v
	}
	if v := os.Getenv(tempDirEnv); v != "" {
		c.Job.TempDir = v
	}
	if v := os.Getenv(logLevelEnv); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv(awsRegionEnv); v != "" {
		c.AWS.Region = v
	}
	if v := os.Getenv(awsEndpointEnv); v != "" {
		c.AWS.Endpoint = v
	}
	if v := os.Getenv(referenceBackendEnv); v != "" {
		c.Reference.Backend = v
	}
	if v := os.Getenv(postgresDSNEnv); v != "" {
		c.Reference.Postgres.DSN = v
	}
	if v := os.Getenv(clickhouseAddrEnv); v != "" {
		c.Reference.ClickHouse.Addr = v
	}
	if v := os.Getenv(clickhouseUserEnv); v != "" {
		c.Reference.ClickHouse.Username = v
	}
	if v := os.Getenv(clickhousePassEnv); v != "" {
		c.Reference.ClickHouse.Password = v
	}
}

func mergeConfig(base, override Config) Config {
	if override.Job.Name != "" {
		base.Job.Name = override.Job.Name
	}
	if override.Job.TempDir != "" {
		base.Job.TempDir = override.Job.TempDir
	}

	if override.Logging.Level != "" {
		base.Logging.Level = override.Logging.Level
	}
	if override.Logging.Format != "" {
		base.Logging.Format = override.Logging.Format
	}

	if override.AWS.Region != "" {
		base.AWS.Region = override.AWS.Region
	}
	if override.AWS.Endpoint != "" {
		base.AWS.Endpoint = override.AWS.Endpoint
	}

	if override.Catalog.Database != "" {
		base.Catalog.Database = override.Catalog.Database
	}
	if override.Catalog.StreamTable != "" {
		base.Catalog.StreamTable = override.Catalog.StreamTable
	}
	if override.Catalog.ReferenceTable != "" {
		base.Catalog.ReferenceTable = override.Catalog.ReferenceTable
	}
	if override.Catalog.OutputTable != "" {
		base.Catalog.OutputTable = override.Catalog.OutputTable
	}

	if override.Stream.Name != "" {
		base.Stream.Name = override.Stream.Name
	}
	if override.Stream.StartingPosition != "" {
		base.Stream.StartingPosition = override.Stream.StartingPosition
	}
	if override.Stream.WindowSize != "" {
		base.Stream.WindowSize = override.Stream.WindowSize
	}
	if override.Stream.MaxRecordsPerShard > 0 {
		base.Stream.MaxRecordsPerShard = override.Stream.MaxRecordsPerShard
	}

	if override.Reference.Backend != "" {
		base.Reference.Backend = override.Reference.Backend
	}
	if override.Reference.DynamoDB.Table != "" {
		base.Reference.DynamoDB.Table = override.Reference.DynamoDB.Table
	}
	if override.Reference.DynamoDB.ConsistentRead {
		base.Reference.DynamoDB.ConsistentRead = true
	}
	if override.Reference.Postgres.DSN != "" {
		base.Reference.Postgres.DSN = override.Reference.Postgres.DSN
	}
	if override.Reference.Postgres.Table != "" {
		base.Reference.Postgres.Table = override.Reference.Postgres.Table
	}
	if override.Reference.ClickHouse.Addr != "" {
		base.Reference.ClickHouse = mergeClickHouse(base.Reference.ClickHouse, override.Reference.ClickHouse)
	}

	if override.Output.Bucket != "" {
		base.Output.Bucket = override.Output.Bucket
	}
	if override.Output.Prefix != "" {
		base.Output.Prefix = override.Output.Prefix
	}
	if override.Output.ChangeKey != "" {
		base.Output.ChangeKey = override.Output.ChangeKey
	}
	if override.Output.WriteHeader != nil {
		base.Output.WriteHeader = override.Output.WriteHeader
	}

	return base
}

func mergeClickHouse(base, override ClickHouseConfig) ClickHouseConfig {
	base.Addr = override.Addr
	if override.Database != "" {
		base.Database = override.Database
	}
	if override.Username != "" {
		base.Username = override.Username
	}
	if override.Password != "" {
		base.Password = override.Password
	}
	if override.Table != "" {
		base.Table = override.Table
	}
	return base
}

// ParseWindow accepts Go durations ("10s") and the "<n> seconds" form.
func ParseWindow(value string) (time.Duration, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return defaultWindow, nil
	}
	if d, err := time.ParseDuration(value); err == nil {
		if d <= 0 {
			return 0, fmt.Errorf("window size %q must be positive", value)
		}
		return d, nil
	}

	fields := strings.Fields(value)
	if len(fields) != 2 {
		return 0, fmt.Errorf("invalid window size %q", value)
	}
	n, err := strconv.Atoi(fields[0])
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid window size %q", value)
	}

	var unit time.Duration
	switch strings.TrimSuffix(strings.ToLower(fields[1]), "s") {
	case "millisecond":
		unit = time.Millisecond
	case "second":
		unit = time.Second
	case "minute":
		unit = time.Minute
	case "hour":
		unit = time.Hour
	default:
		return 0, fmt.Errorf("invalid window unit in %q", value)
	}
	return time.Duration(n) * unit, nil
}

func defaultConfig() Config {
	return Config{
		Job:     JobConfig{TempDir: os.TempDir()},
		Logging: LoggingConfig{Level: "info", Format: "text"},
		Catalog: CatalogConfig{
			Database:       "my-database",
			StreamTable:    "source-kinesis-stream-tbl",
			ReferenceTable: "productpriority",
			OutputTable:    "demo-final-data",
		},
		Stream: StreamConfig{
			StartingPosition:   "latest",
			WindowSize:         "10 seconds",
			MaxRecordsPerShard: 10000,
			window:             defaultWindow,
		},
		Reference: ReferenceConfig{
			Backend:    BackendDynamoDB,
			Postgres:   PostgresConfig{Table: "productpriority"},
			ClickHouse: ClickHouseConfig{Database: "default", Username: "default", Table: "productpriority"},
		},
		Output: OutputConfig{
			Prefix:    "demo-final-data/",
			ChangeKey: "change_flags/CHANGE_FLAG",
		},
	}
}
