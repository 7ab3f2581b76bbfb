// Package kinesis polls a Kinesis data stream shard by shard and decodes the
// JSON payloads into stream records.
package kinesis

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/kinesis"
	"github.com/aws/aws-sdk-go-v2/service/kinesis/types"

	"StreamLookup/internal/domain"
	"StreamLookup/internal/ports"
)

// Starting positions accepted in configuration.
const (
	StartLatest      = "latest"
	StartTrimHorizon = "trim_horizon"
)

// API is the subset of *kinesis.Client used by Source.
type API interface {
	ListShards(ctx context.Context, params *kinesis.ListShardsInput, optFns ...func(*kinesis.Options)) (*kinesis.ListShardsOutput, error)
	GetShardIterator(ctx context.Context, params *kinesis.GetShardIteratorInput, optFns ...func(*kinesis.Options)) (*kinesis.GetShardIteratorOutput, error)
	GetRecords(ctx context.Context, params *kinesis.GetRecordsInput, optFns ...func(*kinesis.Options)) (*kinesis.GetRecordsOutput, error)
}

var _ API = (*kinesis.Client)(nil)

// Options configures the stream reader.
type Options struct {
	Stream             string
	StartingPosition   string
	MaxRecordsPerShard int32
}

type shardCursor struct {
	iterator string
	// at is the sequence number the iterator was opened after.
	at string
}

// Source reads every open shard once per Poll. Shard iterators are kept
// between polls while the caller's position agrees with them.
//
// The configured starting position only applies to the shards listed by the
// first Poll of a fresh run. Shards found later (children after a reshard) and
// shards missing from a restored position are read from TRIM_HORIZON.
type Source struct {
	client API
	opts   Options
	logger *slog.Logger

	shards  []string
	cursors map[string]shardCursor
	closed  map[string]bool

	listed  bool
	initial map[string]bool
}

var _ ports.StreamSource = (*Source)(nil)

func NewSource(client API, opts Options, logger *slog.Logger) *Source {
	if opts.MaxRecordsPerShard <= 0 {
		opts.MaxRecordsPerShard = 10000
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Source{
		client:  client,
		opts:    opts,
		logger:  logger,
		cursors: map[string]shardCursor{},
		closed:  map[string]bool{},
		initial: map[string]bool{},
	}
}

// Poll returns the records that arrived after from and the position just past
// them. Shards without new records keep their previous position.
func (s *Source) Poll(ctx context.Context, from domain.Position) ([]domain.StreamRecord, domain.Position, error) {
	if s.shards == nil {
		if err := s.listShards(ctx); err != nil {
			return nil, from, err
		}
		if !s.listed {
			s.listed = true
			if len(from) == 0 {
				for _, shard := range s.shards {
					s.initial[shard] = true
				}
			}
		}
	}

	next := from.Clone()
	var (
		records     []domain.StreamRecord
		shardClosed bool
		undecodable int
	)

	for _, shard := range s.shards {
		if s.closed[shard] {
			continue
		}

		out, err := s.getRecords(ctx, shard, from[shard])
		if err != nil {
			return nil, from, err
		}

		for _, rec := range out.Records {
			decoded, ok := Decode(rec.Data)
			if !ok {
				undecodable++
			}
			decoded.ShardID = shard
			decoded.SequenceNumber = aws.ToString(rec.SequenceNumber)
			decoded.ArrivedAt = aws.ToTime(rec.ApproximateArrivalTimestamp)
			records = append(records, decoded)
			next[shard] = decoded.SequenceNumber
		}

		if out.NextShardIterator == nil {
			s.closed[shard] = true
			delete(s.cursors, shard)
			shardClosed = true
			continue
		}
		s.cursors[shard] = shardCursor{iterator: aws.ToString(out.NextShardIterator), at: next[shard]}
	}

	if undecodable > 0 {
		s.logger.Warn("stream records are not JSON objects", "count", undecodable)
	}
	if shardClosed {
		// Pick up child shards on the next poll.
		s.shards = nil
	}
	return records, next, nil
}

func (s *Source) getRecords(ctx context.Context, shard, after string) (*kinesis.GetRecordsOutput, error) {
	for attempt := 0; ; attempt++ {
		iterator, err := s.iterator(ctx, shard, after)
		if err != nil {
			return nil, err
		}

		out, err := s.client.GetRecords(ctx, &kinesis.GetRecordsInput{
			ShardIterator: aws.String(iterator),
			Limit:         aws.Int32(s.opts.MaxRecordsPerShard),
		})

		var expired *types.ExpiredIteratorException
		if errors.As(err, &expired) && attempt == 0 {
			delete(s.cursors, shard)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("get records %s/%s: %w", s.opts.Stream, shard, err)
		}
		return out, nil
	}
}

func (s *Source) iterator(ctx context.Context, shard, after string) (string, error) {
	if c, ok := s.cursors[shard]; ok && c.at == after {
		return c.iterator, nil
	}

	in := &kinesis.GetShardIteratorInput{
		StreamName: aws.String(s.opts.Stream),
		ShardId:    aws.String(shard),
	}
	switch {
	case after != "":
		in.ShardIteratorType = types.ShardIteratorTypeAfterSequenceNumber
		in.StartingSequenceNumber = aws.String(after)
	case s.initial[shard] && !strings.EqualFold(s.opts.StartingPosition, StartTrimHorizon):
		in.ShardIteratorType = types.ShardIteratorTypeLatest
	default:
		in.ShardIteratorType = types.ShardIteratorTypeTrimHorizon
	}

	out, err := s.client.GetShardIterator(ctx, in)
	if err != nil {
		return "", fmt.Errorf("get shard iterator %s/%s: %w", s.opts.Stream, shard, err)
	}
	return aws.ToString(out.ShardIterator), nil
}

func (s *Source) listShards(ctx context.Context) error {
	in := &kinesis.ListShardsInput{StreamName: aws.String(s.opts.Stream)}
	shards := []string{}

	for {
		out, err := s.client.ListShards(ctx, in)
		if err != nil {
			return fmt.Errorf("list shards %s: %w", s.opts.Stream, err)
		}
		for _, shard := range out.Shards {
			shards = append(shards, aws.ToString(shard.ShardId))
		}
		if out.NextToken == nil {
			break
		}
		in = &kinesis.ListShardsInput{NextToken: out.NextToken}
	}

	sort.Strings(shards)
	s.shards = shards
	s.logger.Debug("shards listed", "stream", s.opts.Stream, "count", len(shards))
	return nil
}
