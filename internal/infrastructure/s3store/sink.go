package s3store

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"StreamLookup/internal/domain"
	"StreamLookup/internal/ports"
)

// DefaultPartitionName stands in for empty partition values, as Hive does.
const DefaultPartitionName = "__HIVE_DEFAULT_PARTITION__"

// SinkOptions configures where and how CSV objects are written.
type SinkOptions struct {
	Bucket      string
	Prefix      string
	WriteHeader bool
}

// CSVSink appends rows as CSV objects under Hive-style
// item=<v>/priority=<v>/ prefixes. Every call writes new objects; nothing is
// overwritten.
type CSVSink struct {
	client API
	opts   SinkOptions
	newID  func() string
	logger *slog.Logger
}

var _ ports.OutputSink = (*CSVSink)(nil)

// NewCSVSink wires the S3 client with output options.
func NewCSVSink(client API, opts SinkOptions, logger *slog.Logger) *CSVSink {
	return &CSVSink{
		client: client,
		opts:   opts,
		newID:  func() string { return uuid.NewString() },
		logger: logger,
	}
}

type partitionRows struct {
	item     string
	priority string
	rows     []domain.EnrichedRow
}

// Write groups rows by partition and uploads one object per partition.
// Objects already uploaded stay in place when a later PUT fails, so a retried
// batch duplicates their rows (at-least-once).
func (s *CSVSink) Write(ctx context.Context, batchID int64, rows []domain.EnrichedRow) ([]domain.Partition, error) {
	groups := groupByPartition(rows)
	partitions := make([]domain.Partition, 0, len(groups))

	for _, group := range groups {
		body, err := s.encode(group.rows)
		if err != nil {
			return nil, fmt.Errorf("encode partition %s/%s: %w", group.item, group.priority, err)
		}

		dir := joinKey(s.opts.Prefix, PartitionPath(group.item, group.priority))
		key := dir + fmt.Sprintf("batch-%d-%s.csv", batchID, s.newID())

		_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(s.opts.Bucket),
			Key:         aws.String(key),
			Body:        bytes.NewReader(body),
			ContentType: aws.String("text/csv"),
		})
		if err != nil {
			return nil, fmt.Errorf("put s3://%s/%s: %w", s.opts.Bucket, key, err)
		}

		s.debug("partition written", "key", key, "rows", len(group.rows))
		partitions = append(partitions, domain.Partition{
			Item:     group.item,
			Priority: group.priority,
			Location: fmt.Sprintf("s3://%s/%s", s.opts.Bucket, dir),
			Rows:     len(group.rows),
		})
	}

	return partitions, nil
}

func (s *CSVSink) encode(rows []domain.EnrichedRow) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if s.opts.WriteHeader {
		if err := w.Write(domain.DataColumns); err != nil {
			return nil, err
		}
	}

	record := make([]string, len(domain.DataColumns))
	for _, row := range rows {
		for i, col := range domain.DataColumns {
			record[i], _ = row.Field(col)
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (s *CSVSink) debug(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}

func groupByPartition(rows []domain.EnrichedRow) []partitionRows {
	index := map[[2]string]int{}
	var groups []partitionRows

	for _, row := range rows {
		k := [2]string{row.Item, strconv.Itoa(row.Priority)}
		i, ok := index[k]
		if !ok {
			i = len(groups)
			index[k] = i
			groups = append(groups, partitionRows{item: k[0], priority: k[1]})
		}
		groups[i].rows = append(groups[i].rows, row)
	}

	sort.SliceStable(groups, func(a, b int) bool {
		if groups[a].item != groups[b].item {
			return groups[a].item < groups[b].item
		}
		return groups[a].priority < groups[b].priority
	})
	return groups
}

// PartitionPath renders "item=<v>/priority=<v>/" with Hive escaping.
func PartitionPath(item, priority string) string {
	return domain.ColumnItem + "=" + EscapePartitionValue(item) + "/" +
		domain.ColumnPriority + "=" + EscapePartitionValue(priority) + "/"
}

// EscapePartitionValue percent-encodes the characters Hive escapes in
// partition directory names.
func EscapePartitionValue(v string) string {
	if v == "" {
		return DefaultPartitionName
	}

	var b strings.Builder
	for i := 0; i < len(v); i++ {
		c := v[i]
		if needsEscape(c) {
			fmt.Fprintf(&b, "%%%02X", c)
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

func needsEscape(c byte) bool {
	if c < 0x20 || c == 0x7F {
		return true
	}
	return strings.IndexByte("\"#%'*/:=?\\{[]^", c) >= 0
}
