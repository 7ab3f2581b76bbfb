// Package glue keeps the Glue Data Catalog in step with the output and
// resolves the physical names behind the catalog's input tables.
package glue

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/glue"
	"github.com/aws/aws-sdk-go-v2/service/glue/types"

	"StreamLookup/internal/domain"
	"StreamLookup/internal/ports"
)

const (
	maxPartitionsPerCall = 100

	serdeLibrary = "org.apache.hadoop.hive.serde2.lazy.LazySimpleSerDe"
	inputFormat  = "org.apache.hadoop.mapred.TextInputFormat"
	outputFormat = "org.apache.hadoop.hive.ql.io.HiveIgnoreKeyTextOutputFormat"
)

// API is the subset of *glue.Client used by this package.
type API interface {
	GetTable(ctx context.Context, params *glue.GetTableInput, optFns ...func(*glue.Options)) (*glue.GetTableOutput, error)
	CreateTable(ctx context.Context, params *glue.CreateTableInput, optFns ...func(*glue.Options)) (*glue.CreateTableOutput, error)
	UpdateTable(ctx context.Context, params *glue.UpdateTableInput, optFns ...func(*glue.Options)) (*glue.UpdateTableOutput, error)
	BatchCreatePartition(ctx context.Context, params *glue.BatchCreatePartitionInput, optFns ...func(*glue.Options)) (*glue.BatchCreatePartitionOutput, error)
}

var _ API = (*glue.Client)(nil)

// TableOptions describes the output table.
type TableOptions struct {
	Database string
	Table    string
	// Location is the s3:// root of the partitioned output.
	Location    string
	WriteHeader bool
}

// Catalog creates or updates the output table on first use and adds every
// partition it has not registered yet.
type Catalog struct {
	client API
	opts   TableOptions
	logger *slog.Logger

	mu    sync.Mutex
	ready bool
	known map[string]bool
}

var _ ports.Catalog = (*Catalog)(nil)

func NewCatalog(client API, opts TableOptions, logger *slog.Logger) *Catalog {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Catalog{client: client, opts: opts, logger: logger, known: map[string]bool{}}
}

// RegisterOutput makes the written partitions visible to catalog readers.
func (c *Catalog) RegisterOutput(ctx context.Context, partitions []domain.Partition) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.ready {
		if err := c.ensureTable(ctx); err != nil {
			return err
		}
		c.ready = true
	}

	var pending []domain.Partition
	seen := map[string]bool{}
	for _, p := range partitions {
		key := p.Item + "\x00" + p.Priority
		if c.known[key] || seen[key] {
			continue
		}
		seen[key] = true
		pending = append(pending, p)
	}

	for start := 0; start < len(pending); start += maxPartitionsPerCall {
		end := min(start+maxPartitionsPerCall, len(pending))
		if err := c.createPartitions(ctx, pending[start:end]); err != nil {
			return err
		}
	}

	for _, p := range pending {
		c.known[p.Item+"\x00"+p.Priority] = true
	}
	return nil
}

func (c *Catalog) ensureTable(ctx context.Context) error {
	out, err := c.client.GetTable(ctx, &glue.GetTableInput{
		DatabaseName: aws.String(c.opts.Database),
		Name:         aws.String(c.opts.Table),
	})

	var notFound *types.EntityNotFoundException
	switch {
	case errors.As(err, &notFound):
		_, err = c.client.CreateTable(ctx, &glue.CreateTableInput{
			DatabaseName: aws.String(c.opts.Database),
			TableInput:   c.tableInput(),
		})
		if err != nil {
			return fmt.Errorf("create table %s.%s: %w", c.opts.Database, c.opts.Table, err)
		}
		c.logger.Info("catalog table created", "table", c.opts.Table)
		return nil
	case err != nil:
		return fmt.Errorf("get table %s.%s: %w", c.opts.Database, c.opts.Table, err)
	}

	if c.matches(out.Table) {
		return nil
	}

	_, err = c.client.UpdateTable(ctx, &glue.UpdateTableInput{
		DatabaseName: aws.String(c.opts.Database),
		TableInput:   c.tableInput(),
	})
	if err != nil {
		return fmt.Errorf("update table %s.%s: %w", c.opts.Database, c.opts.Table, err)
	}
	c.logger.Info("catalog table schema updated", "table", c.opts.Table)
	return nil
}

func (c *Catalog) createPartitions(ctx context.Context, batch []domain.Partition) error {
	inputs := make([]types.PartitionInput, 0, len(batch))
	for _, p := range batch {
		inputs = append(inputs, types.PartitionInput{
			Values:            p.Values(),
			StorageDescriptor: c.storageDescriptor(p.Location),
		})
	}

	out, err := c.client.BatchCreatePartition(ctx, &glue.BatchCreatePartitionInput{
		DatabaseName:       aws.String(c.opts.Database),
		TableName:          aws.String(c.opts.Table),
		PartitionInputList: inputs,
	})
	if err != nil {
		return fmt.Errorf("create partitions: %w", err)
	}

	for _, pe := range out.Errors {
		if pe.ErrorDetail != nil && aws.ToString(pe.ErrorDetail.ErrorCode) == "AlreadyExistsException" {
			continue
		}
		detail := ""
		if pe.ErrorDetail != nil {
			detail = aws.ToString(pe.ErrorDetail.ErrorCode) + ": " + aws.ToString(pe.ErrorDetail.ErrorMessage)
		}
		return fmt.Errorf("create partition %s: %s", strings.Join(pe.PartitionValues, "/"), detail)
	}

	c.logger.Debug("partitions registered", "count", len(batch))
	return nil
}

func (c *Catalog) tableInput() *types.TableInput {
	params := map[string]string{
		"classification": "csv",
		"delimiter":      ",",
	}
	if c.opts.WriteHeader {
		params["skip.header.line.count"] = "1"
	}

	return &types.TableInput{
		Name:              aws.String(c.opts.Table),
		TableType:         aws.String("EXTERNAL_TABLE"),
		Parameters:        params,
		PartitionKeys:     PartitionKeys(),
		StorageDescriptor: c.storageDescriptor(c.opts.Location),
	}
}

func (c *Catalog) storageDescriptor(location string) *types.StorageDescriptor {
	serdeParams := map[string]string{"field.delim": ","}
	if c.opts.WriteHeader {
		serdeParams["skip.header.line.count"] = "1"
	}
	return &types.StorageDescriptor{
		Columns:      DataColumns(),
		Location:     aws.String(location),
		InputFormat:  aws.String(inputFormat),
		OutputFormat: aws.String(outputFormat),
		SerdeInfo: &types.SerDeInfo{
			SerializationLibrary: aws.String(serdeLibrary),
			Parameters:           serdeParams,
		},
	}
}

// matches reports whether the stored table already has our columns,
// partition keys and header setting.
func (c *Catalog) matches(t *types.Table) bool {
	if t == nil || t.StorageDescriptor == nil {
		return false
	}
	if !sameColumns(t.StorageDescriptor.Columns, DataColumns()) || !sameColumns(t.PartitionKeys, PartitionKeys()) {
		return false
	}
	_, skips := t.Parameters["skip.header.line.count"]
	return skips == c.opts.WriteHeader
}

func sameColumns(got, want []types.Column) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if !strings.EqualFold(aws.ToString(got[i].Name), aws.ToString(want[i].Name)) ||
			!strings.EqualFold(aws.ToString(got[i].Type), aws.ToString(want[i].Type)) {
			return false
		}
	}
	return true
}

// DataColumns is the catalog schema of the CSV files.
func DataColumns() []types.Column {
	return []types.Column{
		{Name: aws.String(domain.ColumnCost), Type: aws.String("double")},
		{Name: aws.String(domain.ColumnPrice), Type: aws.String("double")},
		{Name: aws.String(domain.ColumnCustomerID), Type: aws.String("string")},
	}
}

// PartitionKeys is the catalog schema of the partition directories.
func PartitionKeys() []types.Column {
	return []types.Column{
		{Name: aws.String(domain.ColumnItem), Type: aws.String("string")},
		{Name: aws.String(domain.ColumnPriority), Type: aws.String("bigint")},
	}
}
