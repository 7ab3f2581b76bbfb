// Package dynamo loads the reference table from DynamoDB with a full scan.
package dynamo

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/shopspring/decimal"

	"StreamLookup/internal/domain"
	"StreamLookup/internal/ports"
)

// Name is the backend identifier used in configuration.
const Name = "dynamodb"

type itemKey struct {
	Item string `dynamodbav:"item"`
}

// ReferenceSource scans one DynamoDB table per load.
type ReferenceSource struct {
	client         dynamodb.ScanAPIClient
	table          string
	consistentRead bool
}

var _ ports.ReferenceSource = (*ReferenceSource)(nil)

func NewReferenceSource(client dynamodb.ScanAPIClient, table string, consistentRead bool) *ReferenceSource {
	return &ReferenceSource{client: client, table: table, consistentRead: consistentRead}
}

func (s *ReferenceSource) Name() string { return Name }

// LoadReference pages through the whole table.
func (s *ReferenceSource) LoadReference(ctx context.Context) ([]domain.ReferenceRow, error) {
	paginator := dynamodb.NewScanPaginator(s.client, &dynamodb.ScanInput{
		TableName:      aws.String(s.table),
		ConsistentRead: aws.Bool(s.consistentRead),
	})

	var rows []domain.ReferenceRow
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", s.table, err)
		}
		for _, item := range page.Items {
			row, err := decodeRow(item)
			if err != nil {
				return nil, fmt.Errorf("decode %s item: %w", s.table, err)
			}
			rows = append(rows, row)
		}
	}
	return rows, nil
}

func decodeRow(item map[string]types.AttributeValue) (domain.ReferenceRow, error) {
	var key itemKey
	if err := attributevalue.UnmarshalMap(item, &key); err != nil {
		return domain.ReferenceRow{}, err
	}

	cost, err := decimalAttr(item, domain.ColumnCost)
	if err != nil {
		return domain.ReferenceRow{}, err
	}
	price, err := decimalAttr(item, domain.ColumnPrice)
	if err != nil {
		return domain.ReferenceRow{}, err
	}
	priority, err := intAttr(item, domain.ColumnPriority)
	if err != nil {
		return domain.ReferenceRow{}, err
	}

	return domain.ReferenceRow{Item: key.Item, Cost: cost, Price: price, Priority: priority}, nil
}

// scalarAttr returns the textual value of an N or S attribute. Missing and
// NULL attributes read as "".
func scalarAttr(item map[string]types.AttributeValue, name string) (string, error) {
	switch v := item[name].(type) {
	case nil, *types.AttributeValueMemberNULL:
		return "", nil
	case *types.AttributeValueMemberN:
		return v.Value, nil
	case *types.AttributeValueMemberS:
		return strings.TrimSpace(v.Value), nil
	default:
		return "", fmt.Errorf("attribute %s: unsupported type %T", name, v)
	}
}

func decimalAttr(item map[string]types.AttributeValue, name string) (decimal.Decimal, error) {
	raw, err := scalarAttr(item, name)
	if err != nil || raw == "" {
		return decimal.Zero, err
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("attribute %s: %w", name, err)
	}
	return d, nil
}

func intAttr(item map[string]types.AttributeValue, name string) (int, error) {
	raw, err := scalarAttr(item, name)
	if err != nil || raw == "" {
		return 0, err
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return 0, fmt.Errorf("attribute %s: %w", name, err)
	}
	return int(d.IntPart()), nil
}
